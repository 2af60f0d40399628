package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/jacl-coder/FlagStorm-Server/internal/common"
	"github.com/jacl-coder/FlagStorm-Server/internal/models"
	"github.com/jacl-coder/FlagStorm-Server/internal/protocol"
	"github.com/jacl-coder/FlagStorm-Server/internal/store"
)

// ErrCoordinatorStopped 协调器已被移除
var ErrCoordinatorStopped = common.Errorf(common.ErrInvalidSession, "会话已关闭")

const maxPlayerNameLength = 50

// Deps 协调器的外部依赖
type Deps struct {
	Store   store.Store
	Gateway Broadcaster
	Mirror  LeaderboardMirror // 可选
	Rules   Rules
	Logger  *slog.Logger

	// 测试中注入
	Now  func() time.Time
	Rand *rand.Rand
}

// playerState 玩家在内存中的状态
type playerState struct {
	models.Player

	solved      map[string]struct{}
	solvedOrder []string
	lastAttack  time.Time
	attacking   int // 进行中的攻击数
	underAttack int
}

func (p *playerState) hasSolved(challengeID string) bool {
	_, ok := p.solved[challengeID]
	return ok
}

func (p *playerState) addSolved(challengeID string) {
	if p.hasSolved(challengeID) {
		return
	}
	p.solved[challengeID] = struct{}{}
	p.solvedOrder = append(p.solvedOrder, challengeID)
}

func (p *playerState) removeSolved(challengeID string) {
	if !p.hasSolved(challengeID) {
		return
	}
	delete(p.solved, challengeID)
	for i, id := range p.solvedOrder {
		if id == challengeID {
			p.solvedOrder = append(p.solvedOrder[:i], p.solvedOrder[i+1:]...)
			break
		}
	}
}

func (p *playerState) view() models.PlayerView {
	return models.PlayerView{
		ID:          p.ID,
		Name:        p.Username,
		Score:       p.Score,
		Coins:       p.Coins,
		SolvedFlags: append([]string{}, p.solvedOrder...),
	}
}

func (p *playerState) summary() models.PlayerSummary {
	return models.PlayerSummary{
		ID:          p.ID,
		Name:        p.Username,
		Score:       p.Score,
		SolvedCount: len(p.solvedOrder),
		Connected:   p.Connected(),
		IsAttacking: p.attacking > 0,
		UnderAttack: p.underAttack > 0,
	}
}

// command 在协调器协程中执行的一个事务
type command struct {
	fn    func() error
	err   error
	touch bool
	done  chan struct{}
}

// Coordinator 单个会话的权威状态。所有状态只在 run 协程中访问，
// 外部通过 exec 提交命令，包括攻击到期的定时回调。
type Coordinator struct {
	sessionID string
	code      string
	room      string

	store  store.Store
	gw     Broadcaster
	mirror LeaderboardMirror
	rules  Rules
	logger *slog.Logger
	now    func() time.Time
	rng    *rand.Rand

	// 以下字段只在 run 协程中访问
	session  models.Session
	players  map[string]*playerState
	order    []string          // 加入顺序
	byName   map[string]string // 小写用户名 -> 玩家ID
	byConn   map[string]string // 连接ID -> 玩家ID
	catalog  *catalog
	attacks  map[string]*activeAttack
	activity []models.Activity
	touched  time.Time

	cmds     chan *command
	mirrorCh chan []models.LeaderboardEntry
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// loadCoordinator 从存储重建会话状态并启动协调器
func loadCoordinator(ctx context.Context, sessionID string, deps Deps) (*Coordinator, error) {
	c := &Coordinator{
		sessionID: sessionID,
		room:      RoomName(sessionID),
		store:     deps.Store,
		gw:        deps.Gateway,
		mirror:    deps.Mirror,
		rules:     deps.Rules,
		logger:    deps.Logger,
		now:       deps.Now,
		rng:       deps.Rand,
		players:   make(map[string]*playerState),
		byName:    make(map[string]string),
		byConn:    make(map[string]string),
		attacks:   make(map[string]*activeAttack),
		cmds:      make(chan *command),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.rng == nil {
		c.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if c.rules.Attacks == nil {
		c.rules = DefaultRules()
	}
	if c.rules.StoreTimeout <= 0 {
		c.rules.StoreTimeout = DefaultRules().StoreTimeout
	}

	if err := c.load(ctx); err != nil {
		return nil, err
	}
	c.logger = c.logger.With("session", c.code)
	c.touched = c.now()

	if c.mirror != nil {
		c.mirrorCh = make(chan []models.LeaderboardEntry, 1)
		go c.mirrorLoop()
	}
	go c.run()

	c.logger.Info("会话协调器已加载", "players", len(c.players), "challenges", len(c.catalog.order))
	return c, nil
}

func (c *Coordinator) load(ctx context.Context) error {
	sctx, cancel := c.storeCtx(ctx)
	defer cancel()

	session, err := c.store.GetSession(sctx, c.sessionID)
	if err != nil {
		return fmt.Errorf("加载会话失败: %w", err)
	}
	c.session = *session
	c.code = session.Code

	challenges, err := c.store.GetSessionChallenges(sctx, c.sessionID)
	if err != nil {
		return fmt.Errorf("加载题目失败: %w", err)
	}
	c.catalog = newCatalog(challenges)

	players, err := c.store.ListSessionPlayers(sctx, c.sessionID)
	if err != nil {
		return fmt.Errorf("加载玩家失败: %w", err)
	}
	for _, p := range players {
		ps := &playerState{Player: *p, solved: make(map[string]struct{})}
		solutions, err := c.store.ListPlayerSolutions(sctx, p.ID)
		if err != nil {
			return fmt.Errorf("加载解题记录失败: %w", err)
		}
		for _, s := range solutions {
			ps.addSolved(s.ChallengeID)
		}
		// 进程重启前的连接已经不存在
		if ps.ConnectionID != "" && !c.gw.IsConnected(ps.ConnectionID) {
			ps.ConnectionID = ""
		}
		c.addPlayerState(ps)
	}
	return nil
}

func (c *Coordinator) addPlayerState(ps *playerState) {
	c.players[ps.ID] = ps
	c.order = append(c.order, ps.ID)
	c.byName[strings.ToLower(ps.Username)] = ps.ID
	if ps.ConnectionID != "" {
		c.byConn[ps.ConnectionID] = ps.ID
	}
}

// SessionID 会话ID
func (c *Coordinator) SessionID() string { return c.sessionID }

// Code 会话代码
func (c *Coordinator) Code() string { return c.code }

// run 协调器主循环
func (c *Coordinator) run() {
	defer close(c.done)
	for {
		select {
		case cmd := <-c.cmds:
			c.handle(cmd)
		case <-c.quit:
			c.stopTimers()
			return
		}
	}
}

func (c *Coordinator) handle(cmd *command) {
	defer close(cmd.done)
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("处理命令时发生panic", "panic", r)
			cmd.err = fmt.Errorf("panic: %v", r)
		}
	}()
	cmd.err = cmd.fn()
	if cmd.touch {
		c.touched = c.now()
	}
}

// exec 提交会修改状态的命令并等待完成
func (c *Coordinator) exec(ctx context.Context, fn func() error) error {
	return c.submit(ctx, &command{fn: fn, touch: true, done: make(chan struct{})})
}

// query 提交只读命令，不刷新空闲时间
func (c *Coordinator) query(ctx context.Context, fn func() error) error {
	return c.submit(ctx, &command{fn: fn, done: make(chan struct{})})
}

func (c *Coordinator) submit(ctx context.Context, cmd *command) error {
	select {
	case c.cmds <- cmd:
	case <-c.quit:
		return ErrCoordinatorStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	<-cmd.done
	return cmd.err
}

// Stop 停止协调器，取消所有定时器；可重复调用
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() {
		close(c.quit)
	})
	<-c.done
}

// Stopped 协调器是否已停止
func (c *Coordinator) Stopped() bool {
	select {
	case <-c.quit:
		return true
	default:
		return false
	}
}

// storeCtx 存储调用的超时上下文
func (c *Coordinator) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.rules.StoreTimeout)
}

// logEvent 写事件日志，事件日志不是状态来源，失败只记录
func (c *Coordinator) logEvent(ctx context.Context, playerID, eventType string, data map[string]interface{}) {
	sctx, cancel := c.storeCtx(ctx)
	defer cancel()
	if err := c.store.LogEvent(sctx, c.sessionID, playerID, eventType, data); err != nil {
		c.logger.Warn("写入事件日志失败", "event", eventType, "error", err)
	}
}

func (c *Coordinator) send(connID string, msgType string, payload interface{}) {
	if connID == "" {
		return
	}
	c.gw.Send(connID, protocol.NewOutbound(msgType, payload))
}

func (c *Coordinator) broadcast(msgType string, payload interface{}) {
	c.gw.Broadcast(c.room, protocol.NewOutbound(msgType, payload))
}

// player 查找已认证的玩家
func (c *Coordinator) player(playerID string) (*playerState, error) {
	p, ok := c.players[playerID]
	if !ok || !p.Active {
		return nil, common.Errorf(common.ErrNotAuthenticated, "请先加入会话")
	}
	return p, nil
}

func (c *Coordinator) requireActive() error {
	if c.session.Status != models.SessionActive {
		return common.Errorf(common.ErrInvalidSession, "游戏尚未开始或已结束")
	}
	return nil
}

func (c *Coordinator) activePlayerCount() int {
	n := 0
	for _, p := range c.players {
		if p.Active {
			n++
		}
	}
	return n
}

func (c *Coordinator) snapshot(p *playerState) *protocol.JoinedPayload {
	others := make([]models.PlayerSummary, 0, len(c.order))
	for _, id := range c.order {
		o := c.players[id]
		if id == p.ID || !o.Active {
			continue
		}
		others = append(others, o.summary())
	}
	return &protocol.JoinedPayload{
		Player:      p.view(),
		SessionCode: c.session.Code,
		SessionName: c.session.Name,
		Status:      c.session.Status,
		Challenges:  c.catalog.public(),
		Players:     others,
		Attacks:     c.rules.attackCosts(),
	}
}

// Join 加入会话或重新连接
func (c *Coordinator) Join(ctx context.Context, name, connID string) (*protocol.JoinedPayload, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxPlayerNameLength {
		return nil, common.Errorf(common.ErrBadRequest, "用户名长度必须在1到%d之间", maxPlayerNameLength)
	}
	if connID == "" {
		return nil, common.Errorf(common.ErrBadRequest, "缺少连接")
	}

	var result *protocol.JoinedPayload
	err := c.exec(ctx, func() error {
		if c.session.Status == models.SessionEnded {
			return common.Errorf(common.ErrInvalidSession, "会话已结束")
		}

		sctx, cancel := c.storeCtx(ctx)
		defer cancel()

		var p *playerState
		if id, ok := c.byName[strings.ToLower(name)]; ok {
			p = c.players[id]
			if p.ConnectionID != "" && p.ConnectionID != connID && c.gw.IsConnected(p.ConnectionID) {
				return common.Errorf(common.ErrConflict, "用户名 %s 已被使用", name)
			}
			if !p.Active && c.activePlayerCount() >= c.session.MaxPlayers {
				return common.Errorf(common.ErrConflict, "会话已满")
			}
			if err := c.store.UpdatePlayerConnection(sctx, p.ID, connID); err != nil {
				return err
			}
			if p.ConnectionID != "" {
				delete(c.byConn, p.ConnectionID)
			}
			p.ConnectionID = connID
			p.Active = true
			p.LastActivity = c.now()
			c.logger.Info("玩家重新连接", "player", p.Username)
		} else {
			if c.activePlayerCount() >= c.session.MaxPlayers {
				return common.Errorf(common.ErrConflict, "会话已满")
			}
			created, err := c.store.AddPlayer(sctx, c.sessionID, name, connID, c.rules.StartingCoins)
			if err != nil {
				return err
			}
			p = &playerState{Player: *created, solved: make(map[string]struct{})}
			p.LastActivity = c.now()
			c.addPlayerState(p)
			c.addActivity(models.ActivityJoin, p.Username, fmt.Sprintf("%s 加入了游戏", p.Username))
			c.logger.Info("玩家加入会话", "player", p.Username)
		}

		// 同一连接之前绑定的其他玩家视为断开
		if prev, ok := c.byConn[connID]; ok && prev != p.ID {
			old := c.players[prev]
			if err := c.store.UpdatePlayerConnection(sctx, old.ID, ""); err != nil {
				c.logger.Warn("清除旧玩家连接失败", "player", old.Username, "error", err)
			}
			old.ConnectionID = ""
		}
		c.byConn[connID] = p.ID
		c.gw.JoinRoom(connID, c.room)

		c.logEvent(ctx, p.ID, models.EventPlayerJoined, map[string]interface{}{"username": p.Username})

		result = c.snapshot(p)
		c.send(connID, protocol.MsgJoined, result)
		c.broadcastLeaderboard()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Disconnect 连接断开，保留玩家以便重连
func (c *Coordinator) Disconnect(ctx context.Context, connID string) error {
	return c.exec(ctx, func() error {
		c.gw.LeaveRoom(connID, c.room)
		id, ok := c.byConn[connID]
		if !ok {
			return nil
		}
		delete(c.byConn, connID)
		p := c.players[id]
		if p.ConnectionID != connID {
			return nil
		}

		sctx, cancel := c.storeCtx(ctx)
		defer cancel()
		// 连接映射不是计分状态，写入失败时仍然断开
		if err := c.store.UpdatePlayerConnection(sctx, p.ID, ""); err != nil {
			c.logger.Warn("更新玩家连接失败", "player", p.Username, "error", err)
		}
		p.ConnectionID = ""
		p.LastActivity = c.now()
		c.logger.Info("玩家断开连接", "player", p.Username)

		c.broadcastLeaderboard()
		return nil
	})
}

// PlayerByConnection 返回连接绑定的玩家ID
func (c *Coordinator) PlayerByConnection(ctx context.Context, connID string) (string, error) {
	var playerID string
	err := c.query(ctx, func() error {
		id, ok := c.byConn[connID]
		if !ok {
			return common.Errorf(common.ErrNotAuthenticated, "请先加入会话")
		}
		playerID = id
		return nil
	})
	return playerID, err
}

// SetStatus 管理员切换会话状态，只能向前
func (c *Coordinator) SetStatus(ctx context.Context, status models.SessionStatus) error {
	if !status.Valid() {
		return common.Errorf(common.ErrBadRequest, "无效的会话状态: %s", status)
	}
	return c.exec(ctx, func() error {
		current := c.session.Status
		if !current.CanTransitionTo(status) {
			return common.Errorf(common.ErrInvalidSession, "会话无法从 %s 切换到 %s", current, status)
		}

		sctx, cancel := c.storeCtx(ctx)
		defer cancel()
		if err := c.store.SetSessionStatus(sctx, c.session.Code, status); err != nil {
			return err
		}

		now := c.now()
		c.session.Status = status
		var message, event string
		switch status {
		case models.SessionActive:
			c.session.StartedAt = &now
			message, event = "游戏开始", models.EventSessionStart
		case models.SessionEnded:
			c.session.EndedAt = &now
			message, event = "游戏结束", models.EventSessionEnd
			c.expireAll()
		}
		c.logEvent(ctx, "", event, map[string]interface{}{"from": string(current), "to": string(status)})
		c.logger.Info("会话状态变更", "from", current, "to", status)

		c.broadcast(protocol.MsgStatusChanged, protocol.StatusChangedPayload{Status: status, Message: message})
		c.broadcastLeaderboard()
		return nil
	})
}

// SubmitAnswer 提交答案
func (c *Coordinator) SubmitAnswer(ctx context.Context, playerID, challengeID, answer string) (*protocol.AnswerResultPayload, error) {
	var result *protocol.AnswerResultPayload
	err := c.exec(ctx, func() error {
		p, err := c.player(playerID)
		if err != nil {
			return err
		}
		if err := c.requireActive(); err != nil {
			return err
		}
		ch, ok := c.catalog.active(challengeID)
		if !ok {
			return common.Errorf(common.ErrNotFound, "题目不存在")
		}
		if p.hasSolved(challengeID) {
			return common.Errorf(common.ErrConflict, "已经解出该题目")
		}

		if !ch.Matches(strings.TrimSpace(answer)) {
			p.LastActivity = c.now()
			result = &protocol.AnswerResultPayload{
				ChallengeID: challengeID,
				Correct:     false,
				Score:       p.Score,
				Message:     "答案错误，再试一次",
			}
			c.send(p.ConnectionID, protocol.MsgAnswerResult, result)
			return nil
		}

		sctx, cancel := c.storeCtx(ctx)
		defer cancel()
		if err := c.store.AddPlayerSolution(sctx, p.ID, ch.ID, ch.Points); err != nil {
			return err
		}

		p.addSolved(ch.ID)
		p.Score += ch.Points
		p.LastActivity = c.now()
		c.addActivity(models.ActivityAchievement, p.Username,
			fmt.Sprintf("%s 解出了 %s (+%d)", p.Username, ch.Title, ch.Points))
		c.logEvent(ctx, p.ID, models.EventFlagSolved, map[string]interface{}{
			"challenge_id": ch.ID,
			"points":       ch.Points,
		})
		c.logger.Info("玩家解出题目", "player", p.Username, "challenge", ch.Title, "points", ch.Points)

		result = &protocol.AnswerResultPayload{
			ChallengeID: ch.ID,
			Correct:     true,
			Points:      ch.Points,
			Score:       p.Score,
			Message:     fmt.Sprintf("回答正确！获得 %d 分", ch.Points),
		}
		c.send(p.ConnectionID, protocol.MsgAnswerResult, result)
		c.broadcast(protocol.MsgAchievement, protocol.AchievementPayload{
			PlayerName:     p.Username,
			ChallengeTitle: ch.Title,
			Points:         ch.Points,
		})
		c.broadcastLeaderboard()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// PurchaseHint 购买提示，超出范围的序号截断到最后一条
func (c *Coordinator) PurchaseHint(ctx context.Context, playerID, challengeID string, hintIndex int) (*protocol.HintResultPayload, error) {
	var result *protocol.HintResultPayload
	err := c.exec(ctx, func() error {
		p, err := c.player(playerID)
		if err != nil {
			return err
		}
		if err := c.requireActive(); err != nil {
			return err
		}
		ch, ok := c.catalog.active(challengeID)
		if !ok {
			return common.Errorf(common.ErrNotFound, "题目不存在")
		}
		if len(ch.Hints) == 0 {
			return common.Errorf(common.ErrNotFound, "该题目没有提示")
		}
		cost := c.rules.HintCost
		if p.Coins < cost {
			return common.Errorf(common.ErrConflict, "金币不足，需要 %d 金币", cost)
		}

		if hintIndex < 0 {
			hintIndex = 0
		}
		if hintIndex > len(ch.Hints)-1 {
			hintIndex = len(ch.Hints) - 1
		}

		sctx, cancel := c.storeCtx(ctx)
		defer cancel()
		if err := c.store.UpdatePlayerScoreAndCurrency(sctx, p.ID, 0, -cost); err != nil {
			return err
		}
		p.Coins -= cost
		p.LastActivity = c.now()
		c.logEvent(ctx, p.ID, models.EventHintPurchased, map[string]interface{}{
			"challenge_id": ch.ID,
			"hint_index":   hintIndex,
			"cost":         cost,
		})

		result = &protocol.HintResultPayload{
			ChallengeID: ch.ID,
			HintIndex:   hintIndex,
			Hint:        ch.Hints[hintIndex],
			Coins:       p.Coins,
		}
		c.send(p.ConnectionID, protocol.MsgHintResult, result)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Watch 管理员订阅会话房间
func (c *Coordinator) Watch(ctx context.Context, connID string) error {
	return c.query(ctx, func() error {
		c.gw.JoinRoom(connID, c.room)
		c.send(connID, protocol.MsgLeaderboard, c.leaderboardPayload())
		return nil
	})
}

// Unwatch 取消订阅
func (c *Coordinator) Unwatch(ctx context.Context, connID string) error {
	return c.query(ctx, func() error {
		c.gw.LeaveRoom(connID, c.room)
		return nil
	})
}

// SessionInfo 会话的只读视图
type SessionInfo struct {
	Session     models.Session              `json:"session"`
	Challenges  []models.PublicChallenge    `json:"challenges"`
	Leaderboard protocol.LeaderboardPayload `json:"leaderboard"`
}

// Snapshot 当前状态的只读副本
func (c *Coordinator) Snapshot(ctx context.Context) (*SessionInfo, error) {
	var info *SessionInfo
	err := c.query(ctx, func() error {
		info = &SessionInfo{
			Session:     c.session,
			Challenges:  c.catalog.public(),
			Leaderboard: c.leaderboardPayload(),
		}
		return nil
	})
	return info, err
}

// Leaderboard 当前排行榜
func (c *Coordinator) Leaderboard(ctx context.Context) ([]models.LeaderboardEntry, error) {
	var entries []models.LeaderboardEntry
	err := c.query(ctx, func() error {
		entries = ProjectLeaderboard(c.standings())
		return nil
	})
	return entries, err
}

// Player 玩家当前状态
func (c *Coordinator) Player(ctx context.Context, playerID string) (*models.PlayerView, error) {
	var view *models.PlayerView
	err := c.query(ctx, func() error {
		p, ok := c.players[playerID]
		if !ok {
			return common.Errorf(common.ErrNotFound, "玩家不存在")
		}
		v := p.view()
		view = &v
		return nil
	})
	return view, err
}

// ReloadChallenges 管理员修改题库后同步内存
func (c *Coordinator) ReloadChallenges(ctx context.Context) error {
	return c.exec(ctx, func() error {
		sctx, cancel := c.storeCtx(ctx)
		defer cancel()
		list, err := c.store.GetSessionChallenges(sctx, c.sessionID)
		if err != nil {
			return err
		}
		c.catalog = newCatalog(list)
		c.broadcast(protocol.MsgChallengesUpdated, protocol.ChallengesUpdatedPayload{Challenges: c.catalog.public()})
		return nil
	})
}

// SweepIdle 停用断开超过 timeout 的玩家，返回停用数量
func (c *Coordinator) SweepIdle(ctx context.Context, timeout time.Duration) (int, error) {
	var swept int
	err := c.exec(ctx, func() error {
		now := c.now()
		var ids []string
		for _, id := range c.order {
			p := c.players[id]
			if !p.Active {
				continue
			}
			if p.ConnectionID != "" && c.gw.IsConnected(p.ConnectionID) {
				continue
			}
			if now.Sub(p.LastActivity) < timeout {
				continue
			}
			ids = append(ids, id)
		}
		if len(ids) == 0 {
			return nil
		}

		sctx, cancel := c.storeCtx(ctx)
		defer cancel()
		if err := c.store.DeactivatePlayers(sctx, ids); err != nil {
			return err
		}
		for _, id := range ids {
			p := c.players[id]
			if p.ConnectionID != "" {
				delete(c.byConn, p.ConnectionID)
			}
			p.ConnectionID = ""
			p.Active = false
		}
		swept = len(ids)
		c.logger.Info("清理离线玩家", "count", swept)
		c.broadcastLeaderboard()
		return nil
	})
	return swept, err
}

// evictable 已结束、无在线玩家且空闲超过 grace 的会话可以从内存移除
func (c *Coordinator) evictable(ctx context.Context, grace time.Duration) (bool, error) {
	var ok bool
	err := c.query(ctx, func() error {
		if c.session.Status != models.SessionEnded {
			return nil
		}
		for _, p := range c.players {
			if p.ConnectionID != "" && c.gw.IsConnected(p.ConnectionID) {
				return nil
			}
		}
		ok = c.now().Sub(c.touched) >= grace
		return nil
	})
	if errors.Is(err, ErrCoordinatorStopped) {
		return true, nil
	}
	return ok, err
}

// Status 当前会话状态
func (c *Coordinator) Status(ctx context.Context) (models.SessionStatus, error) {
	var status models.SessionStatus
	err := c.query(ctx, func() error {
		status = c.session.Status
		return nil
	})
	return status, err
}

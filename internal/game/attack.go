package game

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jacl-coder/FlagStorm-Server/internal/common"
	"github.com/jacl-coder/FlagStorm-Server/internal/models"
	"github.com/jacl-coder/FlagStorm-Server/internal/protocol"
)

// activeAttack 进行中的攻击及其到期定时器
type activeAttack struct {
	attack       *models.Attack
	attackerName string
	targetNames  []string
	expiresAt    time.Time
	timer        *time.Timer
}

// LaunchAttack 发起攻击，target 为玩家ID或 "all"
func (c *Coordinator) LaunchAttack(ctx context.Context, playerID string, kind models.AttackKind, target string) (*protocol.AttackResultPayload, error) {
	var result *protocol.AttackResultPayload
	err := c.exec(ctx, func() error {
		attacker, err := c.player(playerID)
		if err != nil {
			return err
		}
		spec, ok := c.rules.Attacks[kind]
		if !ok {
			return common.Errorf(common.ErrBadRequest, "未知的攻击类型: %s", kind)
		}
		if target == "" {
			return common.Errorf(common.ErrBadRequest, "缺少攻击目标")
		}
		if err := c.requireActive(); err != nil {
			return err
		}

		all := strings.EqualFold(target, models.TargetAll)
		cost, _ := c.rules.AttackCost(kind, all)
		if attacker.Coins < cost {
			return common.Errorf(common.ErrConflict, "金币不足，需要 %d 金币", cost)
		}

		now := c.now()
		if !attacker.lastAttack.IsZero() {
			if remaining := c.rules.AttackCooldown - now.Sub(attacker.lastAttack); remaining > 0 {
				return common.Errorf(common.ErrConflict, "攻击冷却中，还需 %d 秒", int(remaining.Seconds()+0.999))
			}
		}

		targets, err := c.resolveTargets(attacker, target, all)
		if err != nil {
			return err
		}

		attack := &models.Attack{
			ID:         uuid.NewString(),
			SessionID:  c.sessionID,
			AttackerID: attacker.ID,
			Kind:       kind,
			Cost:       cost,
			Duration:   spec.Duration,
			TargetAll:  all,
			LaunchedAt: now,
		}
		names := make([]string, len(targets))
		for i, t := range targets {
			attack.TargetIDs = append(attack.TargetIDs, t.ID)
			names[i] = t.Username
		}

		var transfers []models.SolutionTransfer
		if kind == models.AttackSteal {
			for _, t := range targets {
				attack.Outcomes = append(attack.Outcomes, models.StealOutcome{
					TargetID:   t.ID,
					TargetName: t.Username,
					Challenges: []models.StolenChallenge{},
				})
				transfers = append(transfers, c.planSteal(attacker, t)...)
			}
		}

		// 扣费、窃取和攻击记录同一事务，失败时内存不变
		sctx, cancel := c.storeCtx(ctx)
		defer cancel()
		if err := c.store.RecordAttack(sctx, attack, transfers); err != nil {
			return err
		}

		attacker.Coins -= cost
		attacker.lastAttack = now
		attacker.LastActivity = now
		attacker.attacking++
		for _, t := range targets {
			t.underAttack++
		}
		for _, outcome := range attack.Outcomes {
			c.applySteal(ctx, attacker, c.players[outcome.TargetID], outcome)
		}

		c.schedule(attack, attacker.Username, names)

		c.addActivity(models.ActivityAttack, attacker.Username,
			fmt.Sprintf("%s 对 %s 发动了 %s", attacker.Username, strings.Join(names, ", "), kind))
		c.logEvent(ctx, attacker.ID, models.EventAttackLaunched, map[string]interface{}{
			"attack_id":  attack.ID,
			"type":       string(kind),
			"cost":       cost,
			"targets":    attack.TargetIDs,
			"target_all": all,
		})
		c.logger.Info("玩家发动攻击", "player", attacker.Username, "type", kind, "targets", len(targets), "cost", cost)

		result = &protocol.AttackResultPayload{
			AttackID:   attack.ID,
			Kind:       kind,
			Cost:       cost,
			Coins:      attacker.Coins,
			DurationMs: spec.Duration.Milliseconds(),
			Targets:    names,
			Outcomes:   attack.Outcomes,
			Message:    fmt.Sprintf("%s 攻击已发动", kind),
		}
		c.send(attacker.ConnectionID, protocol.MsgAttackResult, result)
		c.broadcast(protocol.MsgAttackBroadcast, protocol.AttackBroadcastPayload{
			AttackID:   attack.ID,
			Kind:       kind,
			Attacker:   attacker.Username,
			Targets:    names,
			DurationMs: spec.Duration.Milliseconds(),
		})
		for _, t := range targets {
			c.send(t.ConnectionID, protocol.MsgAttackTargeted, protocol.AttackTargetedPayload{
				AttackID:   attack.ID,
				Kind:       kind,
				Attacker:   attacker.Username,
				DurationMs: spec.Duration.Milliseconds(),
			})
		}
		for i, outcome := range attack.Outcomes {
			if len(outcome.Challenges) == 0 {
				continue
			}
			c.send(targets[i].ConnectionID, protocol.MsgStealNotification, protocol.StealNotificationPayload{
				Attacker:   attacker.Username,
				Challenges: outcome.Challenges,
				Points:     outcome.Points,
			})
		}
		c.broadcastLeaderboard()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// resolveTargets 按加入顺序解析目标；all 为除自己外的所有在场玩家
func (c *Coordinator) resolveTargets(attacker *playerState, target string, all bool) ([]*playerState, error) {
	if !all {
		if target == attacker.ID {
			return nil, common.Errorf(common.ErrConflict, "不能攻击自己")
		}
		t, ok := c.players[target]
		if !ok || !t.Active {
			return nil, common.Errorf(common.ErrNotFound, "目标玩家不存在")
		}
		return []*playerState{t}, nil
	}

	var targets []*playerState
	for _, id := range c.order {
		p := c.players[id]
		if id == attacker.ID || !p.Active {
			continue
		}
		targets = append(targets, p)
	}
	if len(targets) == 0 {
		return nil, common.Errorf(common.ErrConflict, "没有可攻击的目标")
	}
	return targets, nil
}

// stealCount 最多 StealMaxItems 个，不超过一半，至少1个
func (c *Coordinator) stealCount(n int) int {
	if n == 0 {
		return 0
	}
	k := n / 2
	if k < 1 {
		k = 1
	}
	if k > c.rules.StealMaxItems {
		k = c.rules.StealMaxItems
	}
	return k
}

// planSteal 从目标的已解题目中随机选出待转移的题目，攻击者已拥有的跳过
func (c *Coordinator) planSteal(attacker, target *playerState) []models.SolutionTransfer {
	n := len(target.solvedOrder)
	k := c.stealCount(n)
	if k == 0 {
		return nil
	}

	var plan []models.SolutionTransfer
	for _, i := range c.rng.Perm(n)[:k] {
		cid := target.solvedOrder[i]
		if attacker.hasSolved(cid) {
			continue
		}
		title := cid
		if ch, ok := c.catalog.get(cid); ok {
			title = ch.Title
		}
		plan = append(plan, models.SolutionTransfer{
			FromID:      target.ID,
			ToID:        attacker.ID,
			ChallengeID: cid,
			Title:       title,
			Points:      c.catalog.points(cid),
		})
	}
	return plan
}

// applySteal 存储提交后同步内存中的解题记录和分数
func (c *Coordinator) applySteal(ctx context.Context, attacker, target *playerState, outcome models.StealOutcome) {
	if target == nil || len(outcome.Challenges) == 0 {
		return
	}
	for _, ch := range outcome.Challenges {
		target.removeSolved(ch.ID)
		target.Score -= ch.Points
		attacker.addSolved(ch.ID)
		attacker.Score += ch.Points
	}

	c.addActivity(models.ActivitySteal, attacker.Username,
		fmt.Sprintf("%s 从 %s 偷走了 %d 道题目 (%d 分)", attacker.Username, target.Username, len(outcome.Challenges), outcome.Points))
	c.logEvent(ctx, attacker.ID, models.EventSteal, map[string]interface{}{
		"target_id":  target.ID,
		"challenges": len(outcome.Challenges),
		"points":     outcome.Points,
	})
}

// schedule 登记攻击并在持续时间后通过命令队列使其到期
func (c *Coordinator) schedule(attack *models.Attack, attackerName string, targetNames []string) {
	aa := &activeAttack{
		attack:       attack,
		attackerName: attackerName,
		targetNames:  targetNames,
		expiresAt:    attack.LaunchedAt.Add(attack.Duration),
	}
	id := attack.ID
	aa.timer = time.AfterFunc(attack.Duration, func() {
		err := c.exec(context.Background(), func() error {
			c.expireAttack(id)
			return nil
		})
		if err != nil && !errors.Is(err, ErrCoordinatorStopped) {
			c.logger.Warn("攻击到期处理失败", "attack", id, "error", err)
		}
	})
	c.attacks[id] = aa
}

// expireAttack 定时器到期；攻击已被提前结束时什么都不做
func (c *Coordinator) expireAttack(id string) {
	aa, ok := c.attacks[id]
	if !ok {
		return
	}
	c.removeAttack(aa)
	c.broadcastLeaderboard()
}

func (c *Coordinator) removeAttack(aa *activeAttack) {
	aa.timer.Stop()
	delete(c.attacks, aa.attack.ID)

	if p, ok := c.players[aa.attack.AttackerID]; ok && p.attacking > 0 {
		p.attacking--
	}
	for _, tid := range aa.attack.TargetIDs {
		if p, ok := c.players[tid]; ok && p.underAttack > 0 {
			p.underAttack--
		}
	}
	c.broadcast(protocol.MsgAttackExpired, protocol.AttackExpiredPayload{
		AttackID: aa.attack.ID,
		Kind:     aa.attack.Kind,
		Attacker: aa.attackerName,
	})
}

// expireAll 会话结束时强制结束所有攻击
func (c *Coordinator) expireAll() {
	for _, aa := range c.attacks {
		c.removeAttack(aa)
	}
}

// stopTimers 协调器停止时取消所有定时器
func (c *Coordinator) stopTimers() {
	for id, aa := range c.attacks {
		aa.timer.Stop()
		delete(c.attacks, id)
	}
}

// ActiveAttackCount 进行中的攻击数量
func (c *Coordinator) ActiveAttackCount(ctx context.Context) (int, error) {
	var n int
	err := c.query(ctx, func() error {
		n = len(c.attacks)
		return nil
	})
	return n, err
}

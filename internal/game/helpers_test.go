package game

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/jacl-coder/FlagStorm-Server/internal/common"
	"github.com/jacl-coder/FlagStorm-Server/internal/models"
	"github.com/jacl-coder/FlagStorm-Server/internal/protocol"
	"github.com/jacl-coder/FlagStorm-Server/internal/store"
	"github.com/stretchr/testify/require"
)

// fakeGateway 记录所有发出的消息
type fakeGateway struct {
	mu         sync.Mutex
	sent       map[string][]protocol.Outbound
	broadcasts map[string][]protocol.Outbound
	rooms      map[string]map[string]bool
	live       map[string]bool
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		sent:       make(map[string][]protocol.Outbound),
		broadcasts: make(map[string][]protocol.Outbound),
		rooms:      make(map[string]map[string]bool),
		live:       make(map[string]bool),
	}
}

func (g *fakeGateway) Send(connID string, msg protocol.Outbound) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sent[connID] = append(g.sent[connID], msg)
}

func (g *fakeGateway) Broadcast(room string, msg protocol.Outbound) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.broadcasts[room] = append(g.broadcasts[room], msg)
}

func (g *fakeGateway) JoinRoom(connID, room string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.rooms[room] == nil {
		g.rooms[room] = make(map[string]bool)
	}
	g.rooms[room][connID] = true
}

func (g *fakeGateway) LeaveRoom(connID, room string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.rooms[room], connID)
}

func (g *fakeGateway) IsConnected(connID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.live[connID]
}

func (g *fakeGateway) connect(connID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.live[connID] = true
}

func (g *fakeGateway) drop(connID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.live, connID)
}

// messages 返回连接收到的指定类型消息
func (g *fakeGateway) messages(connID, msgType string) []protocol.Outbound {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []protocol.Outbound
	for _, m := range g.sent[connID] {
		if m.Type == msgType {
			out = append(out, m)
		}
	}
	return out
}

// roomMessages 返回房间收到的指定类型广播
func (g *fakeGateway) roomMessages(room, msgType string) []protocol.Outbound {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []protocol.Outbound
	for _, m := range g.broadcasts[room] {
		if m.Type == msgType {
			out = append(out, m)
		}
	}
	return out
}

// failingStore 在指定操作上模拟存储失败
type failingStore struct {
	*store.MemoryStore
	failSolution  bool
	failAttack    bool
	failSteal     bool
	blockSolution bool
}

var errBoom = errors.New("connection reset")

func (s *failingStore) AddPlayerSolution(ctx context.Context, playerID, challengeID string, points int) error {
	if s.blockSolution {
		// 模拟卡住的数据库，直到调用方超时
		<-ctx.Done()
		return common.StoreError("AddPlayerSolution", ctx.Err())
	}
	if s.failSolution {
		return common.StoreError("AddPlayerSolution", errBoom)
	}
	return s.MemoryStore.AddPlayerSolution(ctx, playerID, challengeID, points)
}

func (s *failingStore) RecordAttack(ctx context.Context, attack *models.Attack, transfers []models.SolutionTransfer) error {
	if s.failAttack {
		return common.StoreError("RecordAttack", errBoom)
	}
	// 转移解题记录时连接中断，整个事务回滚
	if s.failSteal && len(transfers) > 0 {
		return common.StoreError("RecordAttack", errBoom)
	}
	return s.MemoryStore.RecordAttack(ctx, attack, transfers)
}

type fixture struct {
	t        *testing.T
	ctx      context.Context
	store    *store.MemoryStore
	gw       *fakeGateway
	registry *Registry
	session  *models.Session
	coord    *Coordinator
	// 题目标题 -> ID
	challenges map[string]string
}

type fixtureOption func(*Deps, *store.MemoryStore)

func withRules(fn func(*Rules)) fixtureOption {
	return func(d *Deps, _ *store.MemoryStore) { fn(&d.Rules) }
}

// withFailingStore 用 fs 包装内存存储
func withFailingStore(fs *failingStore) fixtureOption {
	return func(d *Deps, ms *store.MemoryStore) {
		fs.MemoryStore = ms
		d.Store = fs
	}
}

func withClock(now func() time.Time) fixtureOption {
	return func(d *Deps, _ *store.MemoryStore) { d.Now = now }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	ctx := context.Background()
	ms := store.NewMemoryStore()
	gw := newFakeGateway()

	sess, err := ms.CreateSession(ctx, "Test Session", "TEST", "hash", 10)
	require.NoError(t, err)
	require.NoError(t, ms.SeedSessionChallenges(ctx, sess.ID, []models.ChallengeInput{
		{Title: "Fifty", Clue: "c", Answer: "Fifty", Hints: []string{"h1", "h2"}, Difficulty: models.DifficultyEasy, Points: 50},
		{Title: "Hundred", Clue: "c", Answer: "hundred", Hints: []string{"only"}, Difficulty: models.DifficultyMedium, Points: 100},
		{Title: "Thirty", Clue: "c", Answer: "thirty", Difficulty: models.DifficultyHard, Points: 30},
	}))

	deps := Deps{
		Store:   ms,
		Gateway: gw,
		Rules:   DefaultRules(),
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Rand:    rand.New(rand.NewSource(1)),
	}
	for _, opt := range opts {
		opt(&deps, ms)
	}

	registry := NewRegistry(deps)
	t.Cleanup(registry.Close)

	coord, err := registry.GetOrCreate(ctx, sess.ID)
	require.NoError(t, err)

	list, err := ms.GetSessionChallenges(ctx, sess.ID)
	require.NoError(t, err)
	ids := make(map[string]string)
	for _, c := range list {
		ids[c.Title] = c.ID
	}

	return &fixture{
		t:          t,
		ctx:        ctx,
		store:      ms,
		gw:         gw,
		registry:   registry,
		session:    sess,
		coord:      coord,
		challenges: ids,
	}
}

func (f *fixture) room() string {
	return RoomName(f.session.ID)
}

// join 连接并加入，返回玩家ID
func (f *fixture) join(name, connID string) string {
	f.t.Helper()
	f.gw.connect(connID)
	joined, err := f.coord.Join(f.ctx, name, connID)
	require.NoError(f.t, err)
	return joined.Player.ID
}

func (f *fixture) start() {
	f.t.Helper()
	require.NoError(f.t, f.coord.SetStatus(f.ctx, models.SessionActive))
}

func (f *fixture) solve(playerID, title, answer string) {
	f.t.Helper()
	res, err := f.coord.SubmitAnswer(f.ctx, playerID, f.challenges[title], answer)
	require.NoError(f.t, err)
	require.True(f.t, res.Correct)
}

func (f *fixture) player(playerID string) *models.PlayerView {
	f.t.Helper()
	view, err := f.coord.Player(f.ctx, playerID)
	require.NoError(f.t, err)
	return view
}

// pointsOf 根据已解题目计算应有分数
func (f *fixture) pointsOf(view *models.PlayerView) int {
	f.t.Helper()
	total := 0
	for _, cid := range view.SolvedFlags {
		c, err := f.store.GetChallenge(f.ctx, cid)
		require.NoError(f.t, err)
		total += c.Points
	}
	return total
}

// requireScoreInvariant 内存和存储中分数都等于已解题目分值之和
func (f *fixture) requireScoreInvariant(playerIDs ...string) {
	f.t.Helper()
	for _, id := range playerIDs {
		view := f.player(id)
		require.Equal(f.t, f.pointsOf(view), view.Score, "score of %s", view.Name)

		stored, err := f.store.GetPlayer(f.ctx, id)
		require.NoError(f.t, err)
		require.Equal(f.t, view.Score, stored.Score)
		require.Equal(f.t, view.Coins, stored.Coins)

		sols, err := f.store.ListPlayerSolutions(f.ctx, id)
		require.NoError(f.t, err)
		require.Len(f.t, sols, len(view.SolvedFlags))
	}
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond)
}

// fakeClock 手动推进的时钟
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

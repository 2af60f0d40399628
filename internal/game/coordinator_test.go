package game

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jacl-coder/FlagStorm-Server/internal/common"
	"github.com/jacl-coder/FlagStorm-Server/internal/models"
	"github.com/jacl-coder/FlagStorm-Server/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinSendsSnapshot(t *testing.T) {
	f := newFixture(t)
	f.gw.connect("c1")

	joined, err := f.coord.Join(f.ctx, "  Ann ", "c1")
	require.NoError(t, err)
	assert.Equal(t, "Ann", joined.Player.Name)
	assert.Equal(t, f.coord.rules.StartingCoins, joined.Player.Coins)
	assert.Equal(t, models.SessionWaiting, joined.Status)
	assert.Len(t, joined.Challenges, 3)
	assert.Empty(t, joined.Players)
	assert.Equal(t, 10, joined.Attacks[models.AttackSleep])

	assert.Len(t, f.gw.messages("c1", protocol.MsgJoined), 1)
	assert.True(t, f.gw.rooms[f.room()]["c1"])
	assert.NotEmpty(t, f.gw.roomMessages(f.room(), protocol.MsgLeaderboard))

	f.join("Bob", "c2")
	_, err = f.coord.Join(f.ctx, "", "c3")
	assert.True(t, errors.Is(err, common.ErrBadRequest))

	board, err := f.coord.Leaderboard(f.ctx)
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, "Ann", board[0].Name)
}

func TestJoinNameCollisionAndReconnect(t *testing.T) {
	f := newFixture(t)
	annID := f.join("Ann", "c1")

	f.gw.connect("c2")
	_, err := f.coord.Join(f.ctx, "ann", "c2")
	assert.True(t, errors.Is(err, common.ErrConflict))

	// 原连接断开后同名加入视为重连
	f.gw.drop("c1")
	require.NoError(t, f.coord.Disconnect(f.ctx, "c1"))
	joined, err := f.coord.Join(f.ctx, "ANN", "c2")
	require.NoError(t, err)
	assert.Equal(t, annID, joined.Player.ID)

	id, err := f.coord.PlayerByConnection(f.ctx, "c2")
	require.NoError(t, err)
	assert.Equal(t, annID, id)
	_, err = f.coord.PlayerByConnection(f.ctx, "c1")
	assert.True(t, errors.Is(err, common.ErrNotAuthenticated))

	stored, err := f.store.GetPlayer(f.ctx, annID)
	require.NoError(t, err)
	assert.Equal(t, "c2", stored.ConnectionID)
}

func TestJoinStaleConnectionIsReplaced(t *testing.T) {
	f := newFixture(t)
	annID := f.join("Ann", "c1")

	// 连接已不存在但还没收到断开事件
	f.gw.drop("c1")
	annID2 := f.join("Ann", "c2")
	assert.Equal(t, annID, annID2)
}

func TestJoinFullSession(t *testing.T) {
	f := newFixture(t)
	err := f.coord.exec(f.ctx, func() error {
		f.coord.session.MaxPlayers = 1
		return nil
	})
	require.NoError(t, err)

	f.join("Ann", "c1")
	f.gw.connect("c2")
	_, err = f.coord.Join(f.ctx, "Bob", "c2")
	assert.True(t, errors.Is(err, common.ErrConflict))
}

func TestJoinEndedSession(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.coord.SetStatus(f.ctx, models.SessionEnded))

	f.gw.connect("c1")
	_, err := f.coord.Join(f.ctx, "Ann", "c1")
	assert.True(t, errors.Is(err, common.ErrInvalidSession))
}

func TestStatusTransitions(t *testing.T) {
	f := newFixture(t)
	f.join("Ann", "c1")

	assert.True(t, errors.Is(f.coord.SetStatus(f.ctx, "paused"), common.ErrBadRequest))
	assert.True(t, errors.Is(f.coord.SetStatus(f.ctx, models.SessionWaiting), common.ErrInvalidSession))

	f.start()
	changed := f.gw.roomMessages(f.room(), protocol.MsgStatusChanged)
	require.Len(t, changed, 1)
	assert.Equal(t, models.SessionActive, changed[0].Payload.(protocol.StatusChangedPayload).Status)

	stored, err := f.store.GetSession(f.ctx, f.session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionActive, stored.Status)
	assert.NotNil(t, stored.StartedAt)

	require.NoError(t, f.coord.SetStatus(f.ctx, models.SessionEnded))
	assert.True(t, errors.Is(f.coord.SetStatus(f.ctx, models.SessionActive), common.ErrInvalidSession))

	status, err := f.coord.Status(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, models.SessionEnded, status)
}

func TestSubmitBeforeStart(t *testing.T) {
	f := newFixture(t)
	annID := f.join("Ann", "c1")

	_, err := f.coord.SubmitAnswer(f.ctx, annID, f.challenges["Fifty"], "fifty")
	assert.True(t, errors.Is(err, common.ErrInvalidSession))
	assert.Equal(t, 0, f.player(annID).Score)
}

func TestSubmitAnswer(t *testing.T) {
	f := newFixture(t)
	annID := f.join("Ann", "c1")
	bobID := f.join("Bob", "c2")
	f.start()

	res, err := f.coord.SubmitAnswer(f.ctx, annID, f.challenges["Hundred"], "  HUNDRED ")
	require.NoError(t, err)
	assert.True(t, res.Correct)
	assert.Equal(t, 100, res.Points)
	assert.Equal(t, 100, res.Score)

	assert.Len(t, f.gw.messages("c1", protocol.MsgAnswerResult), 1)
	assert.Empty(t, f.gw.messages("c2", protocol.MsgAnswerResult))

	achievements := f.gw.roomMessages(f.room(), protocol.MsgAchievement)
	require.Len(t, achievements, 1)
	assert.Equal(t, "Ann", achievements[0].Payload.(protocol.AchievementPayload).PlayerName)

	board, err := f.coord.Leaderboard(f.ctx)
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, 1, board[0].Rank)
	assert.Equal(t, "Ann", board[0].Name)
	assert.Equal(t, 100, board[0].Score)
	assert.Equal(t, 1, board[0].SolvedFlags)
	assert.Equal(t, 2, board[1].Rank)

	f.requireScoreInvariant(annID, bobID)
}

func TestSubmitIsIdempotent(t *testing.T) {
	f := newFixture(t)
	annID := f.join("Ann", "c1")
	f.start()
	f.solve(annID, "Fifty", "fifty")

	_, err := f.coord.SubmitAnswer(f.ctx, annID, f.challenges["Fifty"], "fifty")
	assert.True(t, errors.Is(err, common.ErrConflict))

	view := f.player(annID)
	assert.Equal(t, 50, view.Score)
	assert.Len(t, view.SolvedFlags, 1)
	f.requireScoreInvariant(annID)
}

func TestSubmitWrongAnswer(t *testing.T) {
	f := newFixture(t)
	annID := f.join("Ann", "c1")
	f.start()
	before := len(f.gw.roomMessages(f.room(), protocol.MsgLeaderboard))

	res, err := f.coord.SubmitAnswer(f.ctx, annID, f.challenges["Fifty"], "nope")
	require.NoError(t, err)
	assert.False(t, res.Correct)
	assert.Equal(t, 0, res.Score)

	assert.Empty(t, f.gw.roomMessages(f.room(), protocol.MsgAchievement))
	assert.Len(t, f.gw.roomMessages(f.room(), protocol.MsgLeaderboard), before)
}

func TestSubmitErrors(t *testing.T) {
	f := newFixture(t)
	annID := f.join("Ann", "c1")
	f.start()

	_, err := f.coord.SubmitAnswer(f.ctx, "ghost", f.challenges["Fifty"], "fifty")
	assert.True(t, errors.Is(err, common.ErrNotAuthenticated))

	_, err = f.coord.SubmitAnswer(f.ctx, annID, "missing", "fifty")
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestSubmitStoreFailureLeavesStateUnchanged(t *testing.T) {
	fs := &failingStore{failSolution: true}
	f := newFixture(t, withFailingStore(fs))
	annID := f.join("Ann", "c1")
	f.start()

	_, err := f.coord.SubmitAnswer(f.ctx, annID, f.challenges["Fifty"], "fifty")
	assert.True(t, errors.Is(err, common.ErrStoreFailure))

	view := f.player(annID)
	assert.Equal(t, 0, view.Score)
	assert.Empty(t, view.SolvedFlags)
	assert.Empty(t, f.gw.roomMessages(f.room(), protocol.MsgAchievement))

	// 恢复后可以正常提交
	fs.failSolution = false
	f.solve(annID, "Fifty", "fifty")
	f.requireScoreInvariant(annID)
}

func TestPurchaseHint(t *testing.T) {
	f := newFixture(t)
	annID := f.join("Ann", "c1")
	f.start()
	cost := f.coord.rules.HintCost

	res, err := f.coord.PurchaseHint(f.ctx, annID, f.challenges["Fifty"], 99)
	require.NoError(t, err)
	assert.Equal(t, 1, res.HintIndex)
	assert.Equal(t, "h2", res.Hint)
	assert.Equal(t, f.coord.rules.StartingCoins-cost, res.Coins)

	res, err = f.coord.PurchaseHint(f.ctx, annID, f.challenges["Fifty"], -3)
	require.NoError(t, err)
	assert.Equal(t, 0, res.HintIndex)

	_, err = f.coord.PurchaseHint(f.ctx, annID, f.challenges["Thirty"], 0)
	assert.True(t, errors.Is(err, common.ErrNotFound))

	assert.Len(t, f.gw.messages("c1", protocol.MsgHintResult), 2)
	f.requireScoreInvariant(annID)
}

func TestPurchaseHintInsufficientCoins(t *testing.T) {
	f := newFixture(t, withRules(func(r *Rules) { r.StartingCoins = 3 }))
	annID := f.join("Ann", "c1")
	f.start()

	_, err := f.coord.PurchaseHint(f.ctx, annID, f.challenges["Fifty"], 0)
	assert.True(t, errors.Is(err, common.ErrConflict))
	assert.Equal(t, 3, f.player(annID).Coins)
}

func TestDisconnectKeepsPlayer(t *testing.T) {
	f := newFixture(t)
	annID := f.join("Ann", "c1")

	f.gw.drop("c1")
	require.NoError(t, f.coord.Disconnect(f.ctx, "c1"))
	// 未知连接直接忽略
	require.NoError(t, f.coord.Disconnect(f.ctx, "unknown"))

	board, err := f.coord.Leaderboard(f.ctx)
	require.NoError(t, err)
	require.Len(t, board, 1)
	assert.Equal(t, annID, board[0].PlayerID)
	assert.False(t, board[0].Connected)
}

func TestSweepIdle(t *testing.T) {
	clock := newFakeClock()
	f := newFixture(t, withClock(clock.Now))
	annID := f.join("Ann", "c1")
	bobID := f.join("Bob", "c2")

	f.gw.drop("c1")
	require.NoError(t, f.coord.Disconnect(f.ctx, "c1"))

	n, err := f.coord.SweepIdle(f.ctx, time.Minute)
	require.NoError(t, err)
	assert.Zero(t, n)

	clock.Advance(2 * time.Minute)
	n, err = f.coord.SweepIdle(f.ctx, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stored, err := f.store.GetPlayer(f.ctx, annID)
	require.NoError(t, err)
	assert.False(t, stored.Active)

	board, err := f.coord.Leaderboard(f.ctx)
	require.NoError(t, err)
	require.Len(t, board, 1)
	assert.Equal(t, bobID, board[0].PlayerID)

	// 被停用的玩家可以重新加入
	assert.Equal(t, annID, f.join("Ann", "c3"))
}

func TestReloadChallenges(t *testing.T) {
	f := newFixture(t)
	annID := f.join("Ann", "c1")
	f.start()

	require.NoError(t, f.store.DeactivateChallenge(f.ctx, f.challenges["Thirty"]))
	require.NoError(t, f.coord.ReloadChallenges(f.ctx))

	updated := f.gw.roomMessages(f.room(), protocol.MsgChallengesUpdated)
	require.Len(t, updated, 1)
	assert.Len(t, updated[0].Payload.(protocol.ChallengesUpdatedPayload).Challenges, 2)

	_, err := f.coord.SubmitAnswer(f.ctx, annID, f.challenges["Thirty"], "thirty")
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestSnapshotAndWatch(t *testing.T) {
	f := newFixture(t)
	f.join("Ann", "c1")

	require.NoError(t, f.coord.Watch(f.ctx, "op"))
	assert.Len(t, f.gw.messages("op", protocol.MsgLeaderboard), 1)
	assert.True(t, f.gw.rooms[f.room()]["op"])

	info, err := f.coord.Snapshot(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, "TEST", info.Session.Code)
	assert.Len(t, info.Challenges, 3)
	assert.Equal(t, 1, info.Leaderboard.TotalPlayers)

	require.NoError(t, f.coord.Unwatch(f.ctx, "op"))
	assert.False(t, f.gw.rooms[f.room()]["op"])
}

func TestConcurrentSubmissions(t *testing.T) {
	f := newFixture(t)
	annID := f.join("Ann", "c1")
	f.start()

	var wg sync.WaitGroup
	var mu sync.Mutex
	okCount := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.coord.SubmitAnswer(f.ctx, annID, f.challenges["Hundred"], "hundred")
			if err == nil && res.Correct {
				mu.Lock()
				okCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, okCount)
	assert.Equal(t, 100, f.player(annID).Score)
	f.requireScoreInvariant(annID)
}

func TestSubmitStoreTimeout(t *testing.T) {
	fs := &failingStore{blockSolution: true}
	f := newFixture(t, withFailingStore(fs), withRules(func(r *Rules) {
		r.StoreTimeout = 30 * time.Millisecond
	}))
	annID := f.join("Ann", "c1")
	f.start()

	started := time.Now()
	_, err := f.coord.SubmitAnswer(f.ctx, annID, f.challenges["Fifty"], "fifty")
	assert.True(t, errors.Is(err, common.ErrStoreFailure))
	assert.Equal(t, common.CodeStoreFailure, common.Code(err))
	assert.Less(t, time.Since(started), time.Second)

	view := f.player(annID)
	assert.Zero(t, view.Score)
	assert.Empty(t, view.SolvedFlags)
	assert.Empty(t, f.gw.roomMessages(f.room(), protocol.MsgAchievement))

	// 协调器没有被卡住
	fs.blockSolution = false
	f.solve(annID, "Fifty", "fifty")
	f.requireScoreInvariant(annID)
}

func TestConcurrentJoinSameName(t *testing.T) {
	tests := []struct {
		name      string
		firstLive bool
		wantOK    int
	}{
		// 第一个连接仍在线，第二个视为重名
		{"live connection collides", true, 1},
		// 第一个连接已失效，第二个视为重连
		{"stale connection reattaches", false, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.firstLive {
				f.gw.connect("c1")
				f.gw.connect("c2")
			}

			var wg sync.WaitGroup
			var mu sync.Mutex
			var ids []string
			var conflicts int
			for _, conn := range []string{"c1", "c2"} {
				wg.Add(1)
				go func(conn string) {
					defer wg.Done()
					joined, err := f.coord.Join(f.ctx, "Dan", conn)
					mu.Lock()
					defer mu.Unlock()
					if err != nil {
						assert.True(t, errors.Is(err, common.ErrConflict))
						conflicts++
						return
					}
					ids = append(ids, joined.Player.ID)
				}(conn)
			}
			wg.Wait()

			assert.Len(t, ids, tt.wantOK)
			assert.Equal(t, 2-tt.wantOK, conflicts)
			for _, id := range ids {
				assert.Equal(t, ids[0], id)
			}

			players, err := f.store.ListSessionPlayers(f.ctx, f.session.ID)
			require.NoError(t, err)
			require.Len(t, players, 1)
			assert.Equal(t, "Dan", players[0].Username)
		})
	}
}

func TestRejoinAsOtherPlayerClearsStoredConnection(t *testing.T) {
	f := newFixture(t)
	annID := f.join("Ann", "c1")

	bobID := f.join("Bob", "c1")
	assert.NotEqual(t, annID, bobID)

	stored, err := f.store.GetPlayer(f.ctx, annID)
	require.NoError(t, err)
	assert.Empty(t, stored.ConnectionID)

	board, err := f.coord.Leaderboard(f.ctx)
	require.NoError(t, err)
	for _, e := range board {
		assert.Equal(t, e.PlayerID == bobID, e.Connected, e.Name)
	}

	id, err := f.coord.PlayerByConnection(f.ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, bobID, id)
}

func TestStoppedCoordinator(t *testing.T) {
	f := newFixture(t)
	f.coord.Stop()
	f.coord.Stop()

	assert.True(t, f.coord.Stopped())
	_, err := f.coord.Leaderboard(f.ctx)
	assert.ErrorIs(t, err, ErrCoordinatorStopped)
}

package game

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jacl-coder/FlagStorm-Server/internal/common"
	"github.com/jacl-coder/FlagStorm-Server/internal/models"
	"github.com/jacl-coder/FlagStorm-Server/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingMirror 记录最近一次同步的排行榜
type recordingMirror struct {
	mu      sync.Mutex
	latest  map[string][]models.LeaderboardEntry
	cleared []string
}

func (m *recordingMirror) Publish(ctx context.Context, sessionID string, entries []models.LeaderboardEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.latest == nil {
		m.latest = make(map[string][]models.LeaderboardEntry)
	}
	m.latest[sessionID] = entries
	return nil
}

func (m *recordingMirror) Clear(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleared = append(m.cleared, sessionID)
	return nil
}

func (m *recordingMirror) entries(sessionID string) []models.LeaderboardEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latest[sessionID]
}

func TestRegistryConcurrentLoad(t *testing.T) {
	f := newFixture(t)
	f.registry.Remove(f.session.ID)
	require.Zero(t, f.registry.Count())

	const n = 32
	results := make([]*Coordinator, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := f.registry.GetOrCreate(f.ctx, f.session.ID)
			assert.NoError(t, err)
			results[i] = c
		}(i)
	}
	wg.Wait()

	for _, c := range results {
		assert.Same(t, results[0], c)
	}
	assert.Equal(t, 1, f.registry.Count())
}

func TestRegistryUnknownSession(t *testing.T) {
	f := newFixture(t)
	_, err := f.registry.GetOrCreate(f.ctx, "missing")
	assert.True(t, errors.Is(err, common.ErrNotFound))
	assert.Equal(t, 1, f.registry.Count())
}

func TestRegistryReloadRestoresState(t *testing.T) {
	f := newFixture(t)
	annID := f.join("Ann", "c1")
	f.start()
	f.solve(annID, "Hundred", "hundred")

	f.registry.Remove(f.session.ID)
	assert.True(t, f.coord.Stopped())

	// 重启后原连接已不存在
	f.gw.drop("c1")
	c, err := f.registry.GetOrCreate(f.ctx, f.session.ID)
	require.NoError(t, err)
	require.NotSame(t, f.coord, c)

	view, err := c.Player(f.ctx, annID)
	require.NoError(t, err)
	assert.Equal(t, 100, view.Score)
	assert.Len(t, view.SolvedFlags, 1)

	status, err := c.Status(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, models.SessionActive, status)

	board, err := c.Leaderboard(f.ctx)
	require.NoError(t, err)
	require.Len(t, board, 1)
	assert.False(t, board[0].Connected)
}

func TestRegistryCleanup(t *testing.T) {
	clock := newFakeClock()
	f := newFixture(t, withClock(clock.Now))
	f.join("Ann", "c1")
	f.start()

	assert.Zero(t, f.registry.Cleanup(f.ctx, time.Minute))

	require.NoError(t, f.coord.SetStatus(f.ctx, models.SessionEnded))
	clock.Advance(2 * time.Minute)
	// 仍有在线连接
	assert.Zero(t, f.registry.Cleanup(f.ctx, time.Minute))

	f.gw.drop("c1")
	assert.Equal(t, 1, f.registry.Cleanup(f.ctx, time.Minute))
	assert.Zero(t, f.registry.Count())
	assert.True(t, f.coord.Stopped())
}

func TestRegistrySweep(t *testing.T) {
	clock := newFakeClock()
	f := newFixture(t, withClock(clock.Now))
	f.join("Ann", "c1")
	f.gw.drop("c1")
	require.NoError(t, f.coord.Disconnect(f.ctx, "c1"))

	clock.Advance(time.Hour)
	assert.Equal(t, 1, f.registry.Sweep(f.ctx, 30*time.Minute))
}

func TestRegistryClose(t *testing.T) {
	f := newFixture(t)
	f.registry.Close()

	assert.True(t, f.coord.Stopped())
	_, err := f.registry.GetOrCreate(f.ctx, f.session.ID)
	assert.ErrorIs(t, err, ErrCoordinatorStopped)
}

func TestLeaderboardMirror(t *testing.T) {
	mirror := &recordingMirror{}
	f := newFixture(t, func(d *Deps, _ *store.MemoryStore) { d.Mirror = mirror })
	f.join("Ann", "c1")
	f.join("Bob", "c2")

	eventually(t, func() bool {
		return len(mirror.entries(f.session.ID)) == 2
	})

	f.registry.ClearMirror(f.ctx, f.session.ID)
	assert.Equal(t, []string{f.session.ID}, mirror.cleared)
}

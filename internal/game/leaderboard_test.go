package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectLeaderboard(t *testing.T) {
	input := []Standing{
		{PlayerID: "a", Name: "Ann", Score: 50},
		{PlayerID: "b", Name: "Bob", Score: 100},
		{PlayerID: "c", Name: "Cat", Score: 50},
		{PlayerID: "d", Name: "Dan", Score: 0},
	}

	entries := ProjectLeaderboard(input)
	require.Len(t, entries, 4)

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
		assert.Equal(t, i+1, e.Rank)
	}
	// 同分按加入顺序
	assert.Equal(t, []string{"Bob", "Ann", "Cat", "Dan"}, names)

	// 输入不被修改
	assert.Equal(t, "Ann", input[0].Name)
}

func TestProjectLeaderboardEmpty(t *testing.T) {
	assert.Empty(t, ProjectLeaderboard(nil))
}

func TestActivityLimit(t *testing.T) {
	f := newFixture(t, withRules(func(r *Rules) { r.ActivityLimit = 2 }))
	f.join("Ann", "c1")
	f.join("Bob", "c2")
	f.join("Cat", "c3")

	info, err := f.coord.Snapshot(f.ctx)
	require.NoError(t, err)
	require.Len(t, info.Leaderboard.Activity, 2)
	assert.Equal(t, "Cat", info.Leaderboard.Activity[0].PlayerName)
	assert.Equal(t, "Bob", info.Leaderboard.Activity[1].PlayerName)
}

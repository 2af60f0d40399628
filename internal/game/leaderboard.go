package game

import (
	"context"
	"time"

	"github.com/jacl-coder/FlagStorm-Server/internal/models"
	"github.com/jacl-coder/FlagStorm-Server/internal/protocol"
	"golang.org/x/exp/slices"
)

// Standing 排行榜计算的输入，按加入顺序排列
type Standing struct {
	PlayerID    string
	Name        string
	Score       int
	SolvedCount int
	IsAttacking bool
	Connected   bool
}

// ProjectLeaderboard 按分数降序排名，同分保持加入顺序；不修改输入
func ProjectLeaderboard(standings []Standing) []models.LeaderboardEntry {
	sorted := slices.Clone(standings)
	slices.SortStableFunc(sorted, func(a, b Standing) int {
		return b.Score - a.Score
	})

	entries := make([]models.LeaderboardEntry, len(sorted))
	for i, s := range sorted {
		entries[i] = models.LeaderboardEntry{
			Rank:        i + 1,
			PlayerID:    s.PlayerID,
			Name:        s.Name,
			Score:       s.Score,
			SolvedFlags: s.SolvedCount,
			IsAttacking: s.IsAttacking,
			Connected:   s.Connected,
		}
	}
	return entries
}

// standings 当前在会话中的玩家
func (c *Coordinator) standings() []Standing {
	list := make([]Standing, 0, len(c.order))
	for _, id := range c.order {
		p := c.players[id]
		if !p.Active {
			continue
		}
		list = append(list, Standing{
			PlayerID:    p.ID,
			Name:        p.Username,
			Score:       p.Score,
			SolvedCount: len(p.solvedOrder),
			IsAttacking: p.attacking > 0,
			Connected:   p.Connected(),
		})
	}
	return list
}

// leaderboardPayload 排行榜、动态和进行中的攻击
func (c *Coordinator) leaderboardPayload() protocol.LeaderboardPayload {
	entries := ProjectLeaderboard(c.standings())

	attacks := make([]protocol.ActiveAttack, 0, len(c.attacks))
	for _, a := range c.attacks {
		attacks = append(attacks, protocol.ActiveAttack{
			ID:        a.attack.ID,
			Kind:      a.attack.Kind,
			Attacker:  a.attackerName,
			Targets:   a.targetNames,
			ExpiresAt: a.expiresAt,
		})
	}
	slices.SortFunc(attacks, func(a, b protocol.ActiveAttack) int {
		return a.ExpiresAt.Compare(b.ExpiresAt)
	})

	return protocol.LeaderboardPayload{
		Leaderboard:   entries,
		Activity:      slices.Clone(c.activity),
		ActiveAttacks: attacks,
		TotalPlayers:  len(entries),
	}
}

// broadcastLeaderboard 每次状态变化后调用
func (c *Coordinator) broadcastLeaderboard() {
	payload := c.leaderboardPayload()
	c.gw.Broadcast(c.room, protocol.NewOutbound(protocol.MsgLeaderboard, payload))
	c.publishMirror(payload.Leaderboard)
}

// addActivity 新动态在前，超过上限的丢弃
func (c *Coordinator) addActivity(kind models.ActivityType, playerName, message string) {
	entry := models.Activity{
		Type:       kind,
		Message:    message,
		PlayerName: playerName,
		Timestamp:  c.now(),
	}
	c.activity = append([]models.Activity{entry}, c.activity...)
	if limit := c.rules.ActivityLimit; limit > 0 && len(c.activity) > limit {
		c.activity = c.activity[:limit]
	}
}

// publishMirror 只保留最新一份待写入的排行榜
func (c *Coordinator) publishMirror(entries []models.LeaderboardEntry) {
	if c.mirrorCh == nil {
		return
	}
	select {
	case <-c.mirrorCh:
	default:
	}
	select {
	case c.mirrorCh <- entries:
	default:
	}
}

func (c *Coordinator) mirrorLoop() {
	for {
		select {
		case entries := <-c.mirrorCh:
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if err := c.mirror.Publish(ctx, c.sessionID, entries); err != nil {
				c.logger.Warn("同步排行榜到镜像失败", "error", err)
			}
			cancel()
		case <-c.quit:
			return
		}
	}
}

// player.go

package models

import (
	"time"
)

// DefaultStartingCoins 新玩家的初始金币
const DefaultStartingCoins = 100

// Player 玩家模型
type Player struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	Username  string `json:"username"`

	// 当前连接ID，为空表示已断开但尚未清理
	ConnectionID string `json:"-"`

	Score int `json:"score"`
	Coins int `json:"coins"`

	JoinedAt     time.Time `json:"joined_at"`
	LastActivity time.Time `json:"last_activity"`
	Active       bool      `json:"is_active"`
}

// Connected 玩家是否绑定了连接
func (p *Player) Connected() bool {
	return p.ConnectionID != ""
}

// PlayerSummary 其他玩家可见的公开信息
type PlayerSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Score       int    `json:"score"`
	SolvedCount int    `json:"solved_flags"`
	Connected   bool   `json:"connected"`
	IsAttacking bool   `json:"is_attacking"`
	UnderAttack bool   `json:"under_attack"`
}

// PlayerView 玩家自己的完整状态
type PlayerView struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Score       int      `json:"score"`
	Coins       int      `json:"coins"`
	SolvedFlags []string `json:"solved_flags"`
}

// Solution 解题记录，(player, challenge) 唯一
type Solution struct {
	PlayerID    string    `json:"player_id"`
	ChallengeID string    `json:"flag_id"`
	SolvedAt    time.Time `json:"solved_at"`
}

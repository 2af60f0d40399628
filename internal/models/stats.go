// stats.go

package models

import (
	"time"
)

// LeaderboardEntry 排行榜条目
type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	PlayerID    string `json:"player_id"`
	Name        string `json:"name"`
	Score       int    `json:"score"`
	SolvedFlags int    `json:"solved_flags"`
	IsAttacking bool   `json:"is_attacking"`
	Connected   bool   `json:"connected"`
}

// ActivityType 动态类型
type ActivityType string

const (
	ActivityAchievement ActivityType = "achievement"
	ActivityAttack      ActivityType = "attack"
	ActivitySteal       ActivityType = "steal"
	ActivityJoin        ActivityType = "join"
)

// Activity 会话动态条目
type Activity struct {
	Type       ActivityType `json:"type"`
	Message    string       `json:"message"`
	PlayerName string       `json:"player_name"`
	Timestamp  time.Time    `json:"timestamp"`
}

// 事件日志类型
const (
	EventPlayerJoined   = "player_joined"
	EventFlagSolved     = "flag_solved"
	EventHintPurchased  = "hint_purchased"
	EventAttackLaunched = "attack_launched"
	EventSteal          = "steal"
	EventSessionStart   = "session_start"
	EventSessionEnd     = "session_end"
)

// GameEvent 事件日志
type GameEvent struct {
	ID        string                 `json:"id"`
	SessionID string                 `json:"session_id"`
	PlayerID  string                 `json:"player_id,omitempty"`
	Username  string                 `json:"username,omitempty"`
	Type      string                 `json:"event_type"`
	Data      map[string]interface{} `json:"event_data"`
	Timestamp time.Time              `json:"timestamp"`
}

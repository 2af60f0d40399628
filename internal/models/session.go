package models

import (
	"time"
)

// SessionStatus 会话状态
type SessionStatus string

const (
	// SessionWaiting 等待开始
	SessionWaiting SessionStatus = "waiting"
	// SessionActive 进行中
	SessionActive SessionStatus = "active"
	// SessionEnded 已结束
	SessionEnded SessionStatus = "ended"
)

// Valid 检查状态值是否合法
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionWaiting, SessionActive, SessionEnded:
		return true
	}
	return false
}

// CanTransitionTo 状态只能向前推进：waiting → active → ended
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	switch s {
	case SessionWaiting:
		return next == SessionActive || next == SessionEnded
	case SessionActive:
		return next == SessionEnded
	}
	return false
}

// Session 游戏会话
type Session struct {
	ID              string        `json:"id"`
	Code            string        `json:"session_code"`
	Name            string        `json:"session_name"`
	AdminSecretHash string        `json:"-"`
	Status          SessionStatus `json:"status"`
	MaxPlayers      int           `json:"max_players"`
	CreatedAt       time.Time     `json:"created_at"`
	StartedAt       *time.Time    `json:"started_at,omitempty"`
	EndedAt         *time.Time    `json:"ended_at,omitempty"`
}

// SessionSummary 会话列表条目
type SessionSummary struct {
	Session
	PlayerCount int `json:"player_count"`
}

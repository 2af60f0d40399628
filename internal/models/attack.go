// attack.go

package models

import (
	"time"
)

// AttackKind 攻击类型
type AttackKind string

const (
	// AttackSleep 冻结目标
	AttackSleep AttackKind = "sleep"
	// AttackJam 干扰目标
	AttackJam AttackKind = "jam"
	// AttackSteal 窃取目标已解出的题目
	AttackSteal AttackKind = "steal"
)

// TargetAll 目标选择器：会话内所有其他玩家
const TargetAll = "all"

// AttackSpec 攻击类型的花费和持续时间
type AttackSpec struct {
	Kind     AttackKind    `json:"kind"`
	Cost     int           `json:"cost"`
	Duration time.Duration `json:"duration"`
}

// DefaultAttackSpecs 默认攻击目录
func DefaultAttackSpecs() map[AttackKind]AttackSpec {
	return map[AttackKind]AttackSpec{
		AttackSleep: {Kind: AttackSleep, Cost: 10, Duration: 10 * time.Second},
		AttackJam:   {Kind: AttackJam, Cost: 50, Duration: 5 * time.Second},
		AttackSteal: {Kind: AttackSteal, Cost: 100, Duration: 3 * time.Second},
	}
}

// Attack 攻击记录，创建后只会在过期时被移除
type Attack struct {
	ID         string        `json:"id"`
	SessionID  string        `json:"session_id"`
	AttackerID string        `json:"attacker_id"`
	Kind       AttackKind    `json:"kind"`
	Cost       int           `json:"cost"`
	Duration   time.Duration `json:"duration"`
	TargetIDs  []string      `json:"target_ids"`
	TargetAll  bool          `json:"target_all"`
	LaunchedAt time.Time     `json:"launched_at"`

	// 仅 steal 攻击有结果
	Outcomes []StealOutcome `json:"outcomes,omitempty"`
}

// StolenChallenge 被转移的题目
type StolenChallenge struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Points int    `json:"points"`
}

// StealOutcome 对单个目标的窃取结果
type StealOutcome struct {
	TargetID   string            `json:"target_id"`
	TargetName string            `json:"target_name"`
	Challenges []StolenChallenge `json:"challenges"`
	Points     int               `json:"points"`
}

// SolutionTransfer 窃取时计划转移的一道题
type SolutionTransfer struct {
	FromID      string
	ToID        string
	ChallengeID string
	Title       string
	Points      int
}

// Package protocol 客户端与服务器之间的消息定义
package protocol

import (
	"encoding/json"
	"time"

	"github.com/jacl-coder/FlagStorm-Server/internal/models"
)

// 客户端发送的消息类型
const (
	MsgJoin         = "join"
	MsgSubmitAnswer = "submit-answer"
	MsgPurchaseHint = "purchase-hint"
	MsgLaunchAttack = "launch-attack"

	MsgOperatorAuth            = "operator-auth"
	MsgOperatorWatch           = "operator-watch"
	MsgOperatorSetStatus       = "operator-set-status"
	MsgOperatorListChallenges  = "operator-list-challenges"
	MsgOperatorAddChallenge    = "operator-add-challenge"
	MsgOperatorUpdateChallenge = "operator-update-challenge"
	MsgOperatorDeleteChallenge = "operator-delete-challenge"
	MsgOperatorListTemplates   = "operator-list-templates"
	MsgOperatorAddTemplate     = "operator-add-template"
	MsgOperatorUpdateTemplate  = "operator-update-template"
	MsgOperatorDeleteTemplate  = "operator-delete-template"
	MsgOperatorListSessions    = "operator-list-sessions"
	MsgOperatorEndSession      = "operator-end-session"
	MsgOperatorDeleteSession   = "operator-delete-session"
)

// 服务器发送的消息类型
const (
	MsgJoined            = "joined"
	MsgStatusChanged     = "status-changed"
	MsgAnswerResult      = "answer-result"
	MsgHintResult        = "hint-result"
	MsgAttackResult      = "attack-result"
	MsgAttackBroadcast   = "attack-broadcast"
	MsgAttackTargeted    = "attack-targeted"
	MsgAttackExpired     = "attack-expired"
	MsgAchievement       = "achievement"
	MsgStealNotification = "steal-notification"
	MsgLeaderboard       = "leaderboard-update"
	MsgChallengesUpdated = "challenges-updated"
	MsgError             = "error"

	MsgOperatorAuthenticated = "operator-authenticated"
	MsgOperatorResult        = "operator-result"
)

// Envelope 收到的消息，payload 延迟解析
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Outbound 发出的消息
type Outbound struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// NewOutbound 创建发出的消息
func NewOutbound(msgType string, payload interface{}) Outbound {
	return Outbound{Type: msgType, Payload: payload}
}

// ===== 客户端请求 =====

type JoinRequest struct {
	SessionCode string `json:"session_code"`
	PlayerName  string `json:"player_name"`
}

type SubmitAnswerRequest struct {
	ChallengeID string `json:"challenge_id"`
	Answer      string `json:"answer"`
}

type PurchaseHintRequest struct {
	ChallengeID string `json:"challenge_id"`
	HintIndex   int    `json:"hint_index"`
}

type LaunchAttackRequest struct {
	Kind   models.AttackKind `json:"attack_type"`
	Target string            `json:"target"` // 玩家ID 或 "all"
}

// OperatorAuthRequest 管理员认证，会话不存在时创建
type OperatorAuthRequest struct {
	SessionCode string `json:"session_code"`
	SessionName string `json:"session_name"`
	AdminSecret string `json:"admin_password"`
	MaxPlayers  int    `json:"max_players"`
	Activate    bool   `json:"activate"`

	// 已有令牌时可直接使用
	Token string `json:"token"`
}

type SetStatusRequest struct {
	Status models.SessionStatus `json:"status"`
}

type ChallengeRequest struct {
	ChallengeID string                `json:"challenge_id"`
	Challenge   models.ChallengeInput `json:"challenge"`
}

type TemplateRequest struct {
	TemplateID string                `json:"template_id"`
	Template   models.ChallengeInput `json:"template"`
}

type SessionRequest struct {
	SessionCode string `json:"session_code"`
}

// ===== 服务器响应 =====

// JoinedPayload 加入会话后的完整快照
type JoinedPayload struct {
	Player      models.PlayerView         `json:"player"`
	SessionCode string                    `json:"session_code"`
	SessionName string                    `json:"session_name"`
	Status      models.SessionStatus      `json:"status"`
	Challenges  []models.PublicChallenge  `json:"challenges"`
	Players     []models.PlayerSummary    `json:"players"`
	Attacks     map[models.AttackKind]int `json:"attack_costs"`
}

type StatusChangedPayload struct {
	Status  models.SessionStatus `json:"status"`
	Message string               `json:"message"`
}

type AnswerResultPayload struct {
	ChallengeID string `json:"challenge_id"`
	Correct     bool   `json:"correct"`
	Points      int    `json:"points"`
	Score       int    `json:"score"`
	Message     string `json:"message"`
}

type HintResultPayload struct {
	ChallengeID string `json:"challenge_id"`
	HintIndex   int    `json:"hint_index"`
	Hint        string `json:"hint"`
	Coins       int    `json:"coins"`
}

type AttackResultPayload struct {
	AttackID   string                `json:"attack_id"`
	Kind       models.AttackKind     `json:"attack_type"`
	Cost       int                   `json:"cost"`
	Coins      int                   `json:"coins"`
	DurationMs int64                 `json:"duration"`
	Targets    []string              `json:"targets"`
	Outcomes   []models.StealOutcome `json:"steal_results,omitempty"`
	Message    string                `json:"message"`
}

type AttackBroadcastPayload struct {
	AttackID   string            `json:"attack_id"`
	Kind       models.AttackKind `json:"attack_type"`
	Attacker   string            `json:"attacker"`
	Targets    []string          `json:"targets"`
	DurationMs int64             `json:"duration"`
}

type AttackTargetedPayload struct {
	AttackID   string            `json:"attack_id"`
	Kind       models.AttackKind `json:"attack_type"`
	Attacker   string            `json:"attacker"`
	DurationMs int64             `json:"duration"`
}

type AttackExpiredPayload struct {
	AttackID string            `json:"attack_id"`
	Kind     models.AttackKind `json:"attack_type"`
	Attacker string            `json:"attacker"`
}

type AchievementPayload struct {
	PlayerName     string `json:"player_name"`
	ChallengeTitle string `json:"challenge_title"`
	Points         int    `json:"points"`
}

type StealNotificationPayload struct {
	Attacker   string                   `json:"attacker"`
	Challenges []models.StolenChallenge `json:"challenges"`
	Points     int                      `json:"points"`
}

// ActiveAttack 排行榜中展示的进行中攻击
type ActiveAttack struct {
	ID        string            `json:"id"`
	Kind      models.AttackKind `json:"attack_type"`
	Attacker  string            `json:"attacker"`
	Targets   []string          `json:"targets"`
	ExpiresAt time.Time         `json:"expires_at"`
}

type LeaderboardPayload struct {
	Leaderboard   []models.LeaderboardEntry `json:"leaderboard"`
	Activity      []models.Activity         `json:"activity"`
	ActiveAttacks []ActiveAttack            `json:"active_attacks"`
	TotalPlayers  int                       `json:"total_players"`
}

type ChallengesUpdatedPayload struct {
	Challenges []models.PublicChallenge `json:"challenges"`
}

type ErrorPayload struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	RequestType string `json:"request_type,omitempty"`
}

type OperatorAuthenticatedPayload struct {
	Token   string         `json:"token"`
	Session models.Session `json:"session"`
	Created bool           `json:"created"`
}

type OperatorResultPayload struct {
	Action string      `json:"action"`
	Data   interface{} `json:"data,omitempty"`
}

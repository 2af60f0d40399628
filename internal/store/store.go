// Package store 持久化层：会话、玩家、题目、解题记录、攻击和事件日志。
package store

import (
	"context"

	"github.com/jacl-coder/FlagStorm-Server/internal/models"
)

// Store 协调器依赖的持久化契约。
//
// 所有方法都可能失败：找不到记录返回 common.ErrNotFound，唯一约束冲突或余额不足
// 返回 common.ErrConflict，其余错误包装为 common.ErrStoreFailure。
type Store interface {
	// 会话
	GetSessionByCode(ctx context.Context, code string) (*models.Session, error)
	GetSession(ctx context.Context, id string) (*models.Session, error)
	CreateSession(ctx context.Context, name, code, adminSecretHash string, maxPlayers int) (*models.Session, error)
	VerifyAdminSecret(ctx context.Context, code, secret string) (bool, error)
	SetSessionStatus(ctx context.Context, code string, status models.SessionStatus) error
	ListSessions(ctx context.Context) ([]models.SessionSummary, error)
	EndSession(ctx context.Context, id string) error
	DeleteSessionCascade(ctx context.Context, id string) error

	// 玩家
	AddPlayer(ctx context.Context, sessionID, username, connID string, coins int) (*models.Player, error)
	GetPlayer(ctx context.Context, id string) (*models.Player, error)
	// UpdatePlayerConnection 更新连接ID，connID 为空表示断开；同时刷新最后活动时间
	UpdatePlayerConnection(ctx context.Context, playerID, connID string) error
	// UpdatePlayerScoreAndCurrency 增量修改分数和金币，金币不足时返回 ErrConflict
	UpdatePlayerScoreAndCurrency(ctx context.Context, playerID string, scoreDelta, coinDelta int) error
	ListSessionPlayers(ctx context.Context, sessionID string) ([]*models.Player, error)
	DeactivatePlayers(ctx context.Context, playerIDs []string) error

	// 题目
	GetSessionChallenges(ctx context.Context, sessionID string) ([]*models.Challenge, error)
	GetChallenge(ctx context.Context, id string) (*models.Challenge, error)
	AddChallenge(ctx context.Context, sessionID string, in models.ChallengeInput) (*models.Challenge, error)
	UpdateChallenge(ctx context.Context, id string, in models.ChallengeInput) (*models.Challenge, error)
	DeactivateChallenge(ctx context.Context, id string) error
	SeedSessionChallenges(ctx context.Context, sessionID string, inputs []models.ChallengeInput) error

	// 模板题目
	ListTemplates(ctx context.Context) ([]*models.TemplateChallenge, error)
	GetTemplate(ctx context.Context, id string) (*models.TemplateChallenge, error)
	AddTemplate(ctx context.Context, in models.ChallengeInput) (*models.TemplateChallenge, error)
	UpdateTemplate(ctx context.Context, id string, in models.ChallengeInput) (*models.TemplateChallenge, error)
	DeactivateTemplate(ctx context.Context, id string) error

	// 解题记录，分数变化与记录在同一事务内
	AddPlayerSolution(ctx context.Context, playerID, challengeID string, points int) error
	RemovePlayerSolution(ctx context.Context, playerID, challengeID string, points int) error
	ListPlayerSolutions(ctx context.Context, playerID string) ([]models.Solution, error)

	// 攻击和事件
	// RecordAttack 在一个事务内扣除攻击者金币、转移 transfers 中的解题记录和分值并写入攻击记录。
	// 目标已不再拥有或接收方已拥有的题目跳过；实际转移的题目追加到 attack.Outcomes 中对应目标的条目，返回错误时 Outcomes 无效。
	RecordAttack(ctx context.Context, attack *models.Attack, transfers []models.SolutionTransfer) error
	LogEvent(ctx context.Context, sessionID, playerID, eventType string, data map[string]interface{}) error
	RecentEvents(ctx context.Context, sessionID string, limit int) ([]models.GameEvent, error)
}

// addOutcome 把已转移的题目记到对应目标的结果里
func addOutcome(attack *models.Attack, t models.SolutionTransfer) {
	for i := range attack.Outcomes {
		o := &attack.Outcomes[i]
		if o.TargetID != t.FromID {
			continue
		}
		o.Challenges = append(o.Challenges, models.StolenChallenge{ID: t.ChallengeID, Title: t.Title, Points: t.Points})
		o.Points += t.Points
		return
	}
	attack.Outcomes = append(attack.Outcomes, models.StealOutcome{
		TargetID:   t.FromID,
		Challenges: []models.StolenChallenge{{ID: t.ChallengeID, Title: t.Title, Points: t.Points}},
		Points:     t.Points,
	})
}

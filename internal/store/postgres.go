package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jacl-coder/FlagStorm-Server/internal/common"
	"github.com/jacl-coder/FlagStorm-Server/internal/models"
	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"
)

var _ Store = (*PostgresStore)(nil)

// PostgresStore 基于 database/sql + lib/pq 的持久化实现
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore 创建PostgreSQL存储，db 通常是 db.DB
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// wrapErr 将驱动错误映射到领域错误
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, common.ErrNotFound)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" { // 唯一约束冲突
		return fmt.Errorf("%s: %w", op, common.ErrConflict)
	}
	return common.StoreError(op, err)
}

// withTx 在事务中执行 fn，fn 返回错误时回滚
func (s *PostgresStore) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapErr(op, err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return wrapErr(op, err)
	}
	return wrapErr(op, tx.Commit())
}

// expectRows 影响行数为0时返回 err
func expectRows(res sql.Result, err error, none error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return none
	}
	return nil
}

const sessionColumns = `id, session_code, session_name, admin_password, status, max_players, created_at, started_at, ended_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner, extra ...interface{}) (*models.Session, error) {
	sess := &models.Session{}
	var startedAt, endedAt sql.NullTime
	dest := []interface{}{
		&sess.ID, &sess.Code, &sess.Name, &sess.AdminSecretHash, &sess.Status,
		&sess.MaxPlayers, &sess.CreatedAt, &startedAt, &endedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if startedAt.Valid {
		sess.StartedAt = &startedAt.Time
	}
	if endedAt.Valid {
		sess.EndedAt = &endedAt.Time
	}
	return sess, nil
}

func (s *PostgresStore) GetSessionByCode(ctx context.Context, code string) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM game_sessions WHERE session_code = $1`
	sess, err := scanSession(s.db.QueryRowContext(ctx, query, strings.ToUpper(code)))
	if err != nil {
		return nil, wrapErr("PostgresStore.GetSessionByCode", err)
	}
	return sess, nil
}

func (s *PostgresStore) GetSession(ctx context.Context, id string) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM game_sessions WHERE id = $1`
	sess, err := scanSession(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, wrapErr("PostgresStore.GetSession", err)
	}
	return sess, nil
}

func (s *PostgresStore) CreateSession(ctx context.Context, name, code, adminSecretHash string, maxPlayers int) (*models.Session, error) {
	query := `INSERT INTO game_sessions (id, session_code, session_name, admin_password, status, max_players)
	          VALUES ($1, $2, $3, $4, $5, $6)
	          RETURNING ` + sessionColumns
	sess, err := scanSession(s.db.QueryRowContext(ctx, query,
		uuid.NewString(), strings.ToUpper(code), name, adminSecretHash, models.SessionWaiting, maxPlayers))
	if err != nil {
		return nil, wrapErr("PostgresStore.CreateSession", err)
	}
	return sess, nil
}

func (s *PostgresStore) VerifyAdminSecret(ctx context.Context, code, secret string) (bool, error) {
	var hash string
	err := s.db.QueryRowContext(ctx,
		`SELECT admin_password FROM game_sessions WHERE session_code = $1`, strings.ToUpper(code)).Scan(&hash)
	if err != nil {
		return false, wrapErr("PostgresStore.VerifyAdminSecret", err)
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil, nil
}

func (s *PostgresStore) SetSessionStatus(ctx context.Context, code string, status models.SessionStatus) error {
	query := `UPDATE game_sessions SET status = $1,
	              started_at = CASE WHEN $1 = 'active' THEN CURRENT_TIMESTAMP ELSE started_at END,
	              ended_at = CASE WHEN $1 = 'ended' THEN CURRENT_TIMESTAMP ELSE ended_at END
	          WHERE session_code = $2`
	res, err := s.db.ExecContext(ctx, query, string(status), strings.ToUpper(code))
	return wrapErr("PostgresStore.SetSessionStatus", expectRows(res, err, sql.ErrNoRows))
}

func (s *PostgresStore) ListSessions(ctx context.Context) ([]models.SessionSummary, error) {
	query := `SELECT ` + prefixed("gs", sessionColumns) + `, COUNT(p.id) FILTER (WHERE p.is_active)
	          FROM game_sessions gs
	          LEFT JOIN players p ON p.session_id = gs.id
	          GROUP BY gs.id
	          ORDER BY gs.created_at DESC`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, wrapErr("PostgresStore.ListSessions", err)
	}
	defer rows.Close()

	var list []models.SessionSummary
	for rows.Next() {
		var count int
		sess, err := scanSession(rows, &count)
		if err != nil {
			return nil, wrapErr("PostgresStore.ListSessions", err)
		}
		list = append(list, models.SessionSummary{Session: *sess, PlayerCount: count})
	}
	return list, wrapErr("PostgresStore.ListSessions", rows.Err())
}

func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ", ")
	for i, c := range parts {
		parts[i] = alias + "." + c
	}
	return strings.Join(parts, ", ")
}

func (s *PostgresStore) EndSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE game_sessions SET status = 'ended', ended_at = CURRENT_TIMESTAMP WHERE id = $1`, id)
	return wrapErr("PostgresStore.EndSession", expectRows(res, err, sql.ErrNoRows))
}

// DeleteSessionCascade 删除会话，外键级联删除玩家、题目、解题记录、攻击和事件
func (s *PostgresStore) DeleteSessionCascade(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM game_sessions WHERE id = $1`, id)
	return wrapErr("PostgresStore.DeleteSessionCascade", expectRows(res, err, sql.ErrNoRows))
}

const playerColumns = `id, session_id, username, socket_id, score, coins, joined_at, last_activity, is_active`

func scanPlayer(row rowScanner) (*models.Player, error) {
	p := &models.Player{}
	var socketID sql.NullString
	if err := row.Scan(&p.ID, &p.SessionID, &p.Username, &socketID, &p.Score, &p.Coins,
		&p.JoinedAt, &p.LastActivity, &p.Active); err != nil {
		return nil, err
	}
	p.ConnectionID = socketID.String
	return p, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (s *PostgresStore) AddPlayer(ctx context.Context, sessionID, username, connID string, coins int) (*models.Player, error) {
	query := `INSERT INTO players (id, session_id, username, socket_id, coins)
	          VALUES ($1, $2, $3, $4, $5)
	          RETURNING ` + playerColumns
	p, err := scanPlayer(s.db.QueryRowContext(ctx, query, uuid.NewString(), sessionID, username, nullString(connID), coins))
	if err != nil {
		return nil, wrapErr("PostgresStore.AddPlayer", err)
	}
	return p, nil
}

func (s *PostgresStore) GetPlayer(ctx context.Context, id string) (*models.Player, error) {
	p, err := scanPlayer(s.db.QueryRowContext(ctx, `SELECT `+playerColumns+` FROM players WHERE id = $1`, id))
	if err != nil {
		return nil, wrapErr("PostgresStore.GetPlayer", err)
	}
	return p, nil
}

func (s *PostgresStore) UpdatePlayerConnection(ctx context.Context, playerID, connID string) error {
	query := `UPDATE players SET socket_id = $1, last_activity = CURRENT_TIMESTAMP,
	              is_active = is_active OR $1 IS NOT NULL
	          WHERE id = $2`
	res, err := s.db.ExecContext(ctx, query, nullString(connID), playerID)
	return wrapErr("PostgresStore.UpdatePlayerConnection", expectRows(res, err, sql.ErrNoRows))
}

func (s *PostgresStore) UpdatePlayerScoreAndCurrency(ctx context.Context, playerID string, scoreDelta, coinDelta int) error {
	return s.withTx(ctx, "PostgresStore.UpdatePlayerScoreAndCurrency", func(tx *sql.Tx) error {
		var coins int
		if err := tx.QueryRowContext(ctx, `SELECT coins FROM players WHERE id = $1 FOR UPDATE`, playerID).Scan(&coins); err != nil {
			return err
		}
		if coins+coinDelta < 0 {
			return common.Errorf(common.ErrConflict, "金币不足")
		}
		_, err := tx.ExecContext(ctx,
			`UPDATE players SET score = score + $1, coins = coins + $2, last_activity = CURRENT_TIMESTAMP WHERE id = $3`,
			scoreDelta, coinDelta, playerID)
		return err
	})
}

func (s *PostgresStore) ListSessionPlayers(ctx context.Context, sessionID string) ([]*models.Player, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+playerColumns+` FROM players WHERE session_id = $1 ORDER BY joined_at, id`, sessionID)
	if err != nil {
		return nil, wrapErr("PostgresStore.ListSessionPlayers", err)
	}
	defer rows.Close()

	var list []*models.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, wrapErr("PostgresStore.ListSessionPlayers", err)
		}
		list = append(list, p)
	}
	return list, wrapErr("PostgresStore.ListSessionPlayers", rows.Err())
}

func (s *PostgresStore) DeactivatePlayers(ctx context.Context, playerIDs []string) error {
	if len(playerIDs) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE players SET is_active = false, socket_id = NULL WHERE id = ANY($1)`, pq.Array(playerIDs))
	return wrapErr("PostgresStore.DeactivatePlayers", err)
}

const challengeColumns = `id, session_id, title, clue, answer, hints, difficulty, points, is_active, created_at`

func scanChallenge(row rowScanner) (*models.Challenge, error) {
	c := &models.Challenge{}
	if err := row.Scan(&c.ID, &c.SessionID, &c.Title, &c.Clue, &c.Answer, pq.Array(&c.Hints),
		&c.Difficulty, &c.Points, &c.Active, &c.CreatedAt); err != nil {
		return nil, err
	}
	if c.Hints == nil {
		c.Hints = []string{}
	}
	return c, nil
}

func (s *PostgresStore) GetSessionChallenges(ctx context.Context, sessionID string) ([]*models.Challenge, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+challengeColumns+` FROM challenges WHERE session_id = $1 ORDER BY created_at, id`, sessionID)
	if err != nil {
		return nil, wrapErr("PostgresStore.GetSessionChallenges", err)
	}
	defer rows.Close()

	var list []*models.Challenge
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, wrapErr("PostgresStore.GetSessionChallenges", err)
		}
		list = append(list, c)
	}
	return list, wrapErr("PostgresStore.GetSessionChallenges", rows.Err())
}

func (s *PostgresStore) GetChallenge(ctx context.Context, id string) (*models.Challenge, error) {
	c, err := scanChallenge(s.db.QueryRowContext(ctx, `SELECT `+challengeColumns+` FROM challenges WHERE id = $1`, id))
	if err != nil {
		return nil, wrapErr("PostgresStore.GetChallenge", err)
	}
	return c, nil
}

const insertChallengeSQL = `INSERT INTO challenges (id, session_id, title, clue, answer, hints, difficulty, points)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	RETURNING ` + challengeColumns

func (s *PostgresStore) AddChallenge(ctx context.Context, sessionID string, in models.ChallengeInput) (*models.Challenge, error) {
	c, err := scanChallenge(s.db.QueryRowContext(ctx, insertChallengeSQL, uuid.NewString(), sessionID,
		in.Title, in.Clue, in.Answer, pq.Array(in.Hints), in.Difficulty, in.Points))
	if err != nil {
		return nil, wrapErr("PostgresStore.AddChallenge", err)
	}
	return c, nil
}

func (s *PostgresStore) UpdateChallenge(ctx context.Context, id string, in models.ChallengeInput) (*models.Challenge, error) {
	query := `UPDATE challenges SET title = $1, clue = $2, answer = $3, hints = $4, difficulty = $5, points = $6
	          WHERE id = $7
	          RETURNING ` + challengeColumns
	c, err := scanChallenge(s.db.QueryRowContext(ctx, query,
		in.Title, in.Clue, in.Answer, pq.Array(in.Hints), in.Difficulty, in.Points, id))
	if err != nil {
		return nil, wrapErr("PostgresStore.UpdateChallenge", err)
	}
	return c, nil
}

func (s *PostgresStore) DeactivateChallenge(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE challenges SET is_active = false WHERE id = $1`, id)
	return wrapErr("PostgresStore.DeactivateChallenge", expectRows(res, err, sql.ErrNoRows))
}

func (s *PostgresStore) SeedSessionChallenges(ctx context.Context, sessionID string, inputs []models.ChallengeInput) error {
	return s.withTx(ctx, "PostgresStore.SeedSessionChallenges", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, insertChallengeSQL)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, in := range inputs {
			if _, err := stmt.ExecContext(ctx, uuid.NewString(), sessionID,
				in.Title, in.Clue, in.Answer, pq.Array(in.Hints), in.Difficulty, in.Points); err != nil {
				return err
			}
		}
		return nil
	})
}

const templateColumns = `id, title, clue, answer, hints, difficulty, points, is_active, created_at`

func scanTemplate(row rowScanner) (*models.TemplateChallenge, error) {
	t := &models.TemplateChallenge{}
	if err := row.Scan(&t.ID, &t.Title, &t.Clue, &t.Answer, pq.Array(&t.Hints),
		&t.Difficulty, &t.Points, &t.Active, &t.CreatedAt); err != nil {
		return nil, err
	}
	if t.Hints == nil {
		t.Hints = []string{}
	}
	return t, nil
}

func (s *PostgresStore) ListTemplates(ctx context.Context) ([]*models.TemplateChallenge, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+templateColumns+` FROM template_challenges WHERE is_active = true ORDER BY created_at, id`)
	if err != nil {
		return nil, wrapErr("PostgresStore.ListTemplates", err)
	}
	defer rows.Close()

	var list []*models.TemplateChallenge
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, wrapErr("PostgresStore.ListTemplates", err)
		}
		list = append(list, t)
	}
	return list, wrapErr("PostgresStore.ListTemplates", rows.Err())
}

func (s *PostgresStore) GetTemplate(ctx context.Context, id string) (*models.TemplateChallenge, error) {
	t, err := scanTemplate(s.db.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM template_challenges WHERE id = $1`, id))
	if err != nil {
		return nil, wrapErr("PostgresStore.GetTemplate", err)
	}
	return t, nil
}

func (s *PostgresStore) AddTemplate(ctx context.Context, in models.ChallengeInput) (*models.TemplateChallenge, error) {
	query := `INSERT INTO template_challenges (id, title, clue, answer, hints, difficulty, points)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)
	          RETURNING ` + templateColumns
	t, err := scanTemplate(s.db.QueryRowContext(ctx, query, uuid.NewString(),
		in.Title, in.Clue, in.Answer, pq.Array(in.Hints), in.Difficulty, in.Points))
	if err != nil {
		return nil, wrapErr("PostgresStore.AddTemplate", err)
	}
	return t, nil
}

func (s *PostgresStore) UpdateTemplate(ctx context.Context, id string, in models.ChallengeInput) (*models.TemplateChallenge, error) {
	query := `UPDATE template_challenges SET title = $1, clue = $2, answer = $3, hints = $4, difficulty = $5, points = $6
	          WHERE id = $7
	          RETURNING ` + templateColumns
	t, err := scanTemplate(s.db.QueryRowContext(ctx, query,
		in.Title, in.Clue, in.Answer, pq.Array(in.Hints), in.Difficulty, in.Points, id))
	if err != nil {
		return nil, wrapErr("PostgresStore.UpdateTemplate", err)
	}
	return t, nil
}

func (s *PostgresStore) DeactivateTemplate(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE template_challenges SET is_active = false WHERE id = $1`, id)
	return wrapErr("PostgresStore.DeactivateTemplate", expectRows(res, err, sql.ErrNoRows))
}

func (s *PostgresStore) AddPlayerSolution(ctx context.Context, playerID, challengeID string, points int) error {
	return s.withTx(ctx, "PostgresStore.AddPlayerSolution", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO player_solutions (player_id, challenge_id) VALUES ($1, $2)`, playerID, challengeID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE players SET score = score + $1, last_activity = CURRENT_TIMESTAMP WHERE id = $2`, points, playerID)
		return expectRows(res, err, sql.ErrNoRows)
	})
}

func (s *PostgresStore) RemovePlayerSolution(ctx context.Context, playerID, challengeID string, points int) error {
	return s.withTx(ctx, "PostgresStore.RemovePlayerSolution", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM player_solutions WHERE player_id = $1 AND challenge_id = $2`, playerID, challengeID)
		if err := expectRows(res, err, sql.ErrNoRows); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `UPDATE players SET score = score - $1 WHERE id = $2`, points, playerID)
		return err
	})
}

func (s *PostgresStore) ListPlayerSolutions(ctx context.Context, playerID string) ([]models.Solution, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT player_id, challenge_id, solved_at FROM player_solutions WHERE player_id = $1 ORDER BY solved_at`, playerID)
	if err != nil {
		return nil, wrapErr("PostgresStore.ListPlayerSolutions", err)
	}
	defer rows.Close()

	var list []models.Solution
	for rows.Next() {
		var sol models.Solution
		if err := rows.Scan(&sol.PlayerID, &sol.ChallengeID, &sol.SolvedAt); err != nil {
			return nil, wrapErr("PostgresStore.ListPlayerSolutions", err)
		}
		list = append(list, sol)
	}
	return list, wrapErr("PostgresStore.ListPlayerSolutions", rows.Err())
}

// transferTx 转移一道题；目标已不再拥有或接收方已拥有时返回 false
func transferTx(ctx context.Context, tx *sql.Tx, t models.SolutionTransfer) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`DELETE FROM player_solutions
		 WHERE player_id = $1 AND challenge_id = $2
		   AND NOT EXISTS (SELECT 1 FROM player_solutions WHERE player_id = $3 AND challenge_id = $2)`,
		t.FromID, t.ChallengeID, t.ToID)
	if err != nil {
		return false, err
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return false, err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO player_solutions (player_id, challenge_id) VALUES ($1, $2)`, t.ToID, t.ChallengeID); err != nil {
		return false, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE players SET score = score - $1 WHERE id = $2`, t.Points, t.FromID); err != nil {
		return false, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE players SET score = score + $1 WHERE id = $2`, t.Points, t.ToID); err != nil {
		return false, err
	}
	return true, nil
}

func (s *PostgresStore) RecordAttack(ctx context.Context, attack *models.Attack, transfers []models.SolutionTransfer) error {
	return s.withTx(ctx, "PostgresStore.RecordAttack", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE players SET coins = coins - $1, last_activity = CURRENT_TIMESTAMP WHERE id = $2 AND coins >= $1`,
			attack.Cost, attack.AttackerID)
		if err := expectRows(res, err, common.Errorf(common.ErrConflict, "金币不足")); err != nil {
			return err
		}

		for _, t := range transfers {
			moved, err := transferTx(ctx, tx, t)
			if err != nil {
				return err
			}
			if moved {
				addOutcome(attack, t)
			}
		}

		var payload []byte
		if attack.Outcomes != nil {
			if payload, err = json.Marshal(attack.Outcomes); err != nil {
				return err
			}
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO attacks (id, session_id, attacker_id, attack_type, target_ids, target_all, cost, duration_ms, outcomes, launched_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			attack.ID, attack.SessionID, attack.AttackerID, string(attack.Kind), pq.Array(attack.TargetIDs),
			attack.TargetAll, attack.Cost, attack.Duration.Milliseconds(), nullBytes(payload), attack.LaunchedAt)
		return err
	})
}

func nullBytes(b []byte) interface{} {
	if b == nil {
		return nil
	}
	return string(b)
}

func (s *PostgresStore) LogEvent(ctx context.Context, sessionID, playerID, eventType string, data map[string]interface{}) error {
	if data == nil {
		data = map[string]interface{}{}
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("PostgresStore.LogEvent: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO game_events (id, session_id, player_id, event_type, event_data) VALUES ($1, $2, $3, $4, $5)`,
		uuid.NewString(), sessionID, nullString(playerID), eventType, string(payload))
	return wrapErr("PostgresStore.LogEvent", err)
}

func (s *PostgresStore) RecentEvents(ctx context.Context, sessionID string, limit int) ([]models.GameEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT e.id, e.session_id, COALESCE(e.player_id, ''), COALESCE(p.username, ''),
	                 e.event_type, e.event_data, e.timestamp
	          FROM game_events e
	          LEFT JOIN players p ON p.id = e.player_id
	          WHERE e.session_id = $1
	          ORDER BY e.timestamp DESC
	          LIMIT $2`
	rows, err := s.db.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		return nil, wrapErr("PostgresStore.RecentEvents", err)
	}
	defer rows.Close()

	var list []models.GameEvent
	for rows.Next() {
		var (
			e       models.GameEvent
			payload []byte
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &e.PlayerID, &e.Username, &e.Type, &payload, &e.Timestamp); err != nil {
			return nil, wrapErr("PostgresStore.RecentEvents", err)
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &e.Data); err != nil {
				return nil, fmt.Errorf("PostgresStore.RecentEvents: %w", err)
			}
		}
		list = append(list, e)
	}
	return list, wrapErr("PostgresStore.RecentEvents", rows.Err())
}

// Ping 健康检查
func (s *PostgresStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return wrapErr("PostgresStore.Ping", s.db.PingContext(ctx))
}

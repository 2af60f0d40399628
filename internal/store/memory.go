package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jacl-coder/FlagStorm-Server/internal/common"
	"github.com/jacl-coder/FlagStorm-Server/internal/models"
	"golang.org/x/crypto/bcrypt"
)

type solutionKey struct {
	playerID    string
	challengeID string
}

var _ Store = (*MemoryStore)(nil)

// MemoryStore 进程内存储，用于测试和无数据库运行
type MemoryStore struct {
	mu sync.RWMutex

	sessions   map[string]*models.Session
	players    map[string]*models.Player
	challenges map[string]*models.Challenge
	templates  map[string]*models.TemplateChallenge
	solutions  map[solutionKey]time.Time
	attacks    map[string]*models.Attack
	events     []models.GameEvent

	// 插入顺序，保证列表结果稳定
	playerOrder    []string
	challengeOrder []string
	templateOrder  []string
}

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:   make(map[string]*models.Session),
		players:    make(map[string]*models.Player),
		challenges: make(map[string]*models.Challenge),
		templates:  make(map[string]*models.TemplateChallenge),
		solutions:  make(map[solutionKey]time.Time),
		attacks:    make(map[string]*models.Attack),
	}
}

func (s *MemoryStore) GetSessionByCode(ctx context.Context, code string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sess := s.sessionByCode(code); sess != nil {
		c := *sess
		return &c, nil
	}
	return nil, common.ErrNotFound
}

func (s *MemoryStore) sessionByCode(code string) *models.Session {
	for _, sess := range s.sessions {
		if strings.EqualFold(sess.Code, code) {
			return sess
		}
	}
	return nil
}

func (s *MemoryStore) GetSession(ctx context.Context, id string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	c := *sess
	return &c, nil
}

func (s *MemoryStore) CreateSession(ctx context.Context, name, code, adminSecretHash string, maxPlayers int) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessionByCode(code) != nil {
		return nil, common.Errorf(common.ErrConflict, "会话代码 %s 已存在", code)
	}
	sess := &models.Session{
		ID:              uuid.NewString(),
		Code:            code,
		Name:            name,
		AdminSecretHash: adminSecretHash,
		Status:          models.SessionWaiting,
		MaxPlayers:      maxPlayers,
		CreatedAt:       time.Now(),
	}
	s.sessions[sess.ID] = sess
	c := *sess
	return &c, nil
}

func (s *MemoryStore) VerifyAdminSecret(ctx context.Context, code, secret string) (bool, error) {
	s.mu.RLock()
	sess := s.sessionByCode(code)
	var hash string
	if sess != nil {
		hash = sess.AdminSecretHash
	}
	s.mu.RUnlock()
	if sess == nil {
		return false, common.ErrNotFound
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil, nil
}

func (s *MemoryStore) SetSessionStatus(ctx context.Context, code string, status models.SessionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.sessionByCode(code)
	if sess == nil {
		return common.ErrNotFound
	}
	setStatus(sess, status, time.Now())
	return nil
}

func setStatus(sess *models.Session, status models.SessionStatus, now time.Time) {
	sess.Status = status
	switch status {
	case models.SessionActive:
		sess.StartedAt = &now
	case models.SessionEnded:
		sess.EndedAt = &now
	}
}

func (s *MemoryStore) ListSessions(ctx context.Context) ([]models.SessionSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[string]int)
	for _, p := range s.players {
		if p.Active {
			counts[p.SessionID]++
		}
	}
	list := make([]models.SessionSummary, 0, len(s.sessions))
	for _, sess := range s.sessions {
		list = append(list, models.SessionSummary{Session: *sess, PlayerCount: counts[sess.ID]})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return list, nil
}

func (s *MemoryStore) EndSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return common.ErrNotFound
	}
	setStatus(sess, models.SessionEnded, time.Now())
	return nil
}

func (s *MemoryStore) DeleteSessionCascade(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return common.ErrNotFound
	}
	delete(s.sessions, id)

	for pid, p := range s.players {
		if p.SessionID != id {
			continue
		}
		delete(s.players, pid)
		for key := range s.solutions {
			if key.playerID == pid {
				delete(s.solutions, key)
			}
		}
	}
	for cid, c := range s.challenges {
		if c.SessionID == id {
			delete(s.challenges, cid)
		}
	}
	for aid, a := range s.attacks {
		if a.SessionID == id {
			delete(s.attacks, aid)
		}
	}
	kept := s.events[:0]
	for _, e := range s.events {
		if e.SessionID != id {
			kept = append(kept, e)
		}
	}
	s.events = kept
	return nil
}

func (s *MemoryStore) AddPlayer(ctx context.Context, sessionID, username, connID string, coins int) (*models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return nil, common.ErrNotFound
	}
	for _, p := range s.players {
		if p.SessionID == sessionID && strings.EqualFold(p.Username, username) {
			return nil, common.Errorf(common.ErrConflict, "用户名 %s 已被使用", username)
		}
	}
	now := time.Now()
	p := &models.Player{
		ID:           uuid.NewString(),
		SessionID:    sessionID,
		Username:     username,
		ConnectionID: connID,
		Coins:        coins,
		JoinedAt:     now,
		LastActivity: now,
		Active:       true,
	}
	s.players[p.ID] = p
	s.playerOrder = append(s.playerOrder, p.ID)
	c := *p
	return &c, nil
}

func (s *MemoryStore) GetPlayer(ctx context.Context, id string) (*models.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.players[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	c := *p
	return &c, nil
}

func (s *MemoryStore) UpdatePlayerConnection(ctx context.Context, playerID, connID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[playerID]
	if !ok {
		return common.ErrNotFound
	}
	p.ConnectionID = connID
	p.LastActivity = time.Now()
	if connID != "" {
		p.Active = true
	}
	return nil
}

func (s *MemoryStore) UpdatePlayerScoreAndCurrency(ctx context.Context, playerID string, scoreDelta, coinDelta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[playerID]
	if !ok {
		return common.ErrNotFound
	}
	if p.Coins+coinDelta < 0 {
		return common.Errorf(common.ErrConflict, "金币不足")
	}
	p.Score += scoreDelta
	p.Coins += coinDelta
	p.LastActivity = time.Now()
	return nil
}

func (s *MemoryStore) ListSessionPlayers(ctx context.Context, sessionID string) ([]*models.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var list []*models.Player
	for _, id := range s.playerOrder {
		p, ok := s.players[id]
		if !ok || p.SessionID != sessionID {
			continue
		}
		c := *p
		list = append(list, &c)
	}
	return list, nil
}

func (s *MemoryStore) DeactivatePlayers(ctx context.Context, playerIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range playerIDs {
		if p, ok := s.players[id]; ok {
			p.Active = false
			p.ConnectionID = ""
		}
	}
	return nil
}

func (s *MemoryStore) GetSessionChallenges(ctx context.Context, sessionID string) ([]*models.Challenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var list []*models.Challenge
	for _, id := range s.challengeOrder {
		c, ok := s.challenges[id]
		if !ok || c.SessionID != sessionID {
			continue
		}
		list = append(list, copyChallenge(c))
	}
	return list, nil
}

func copyChallenge(c *models.Challenge) *models.Challenge {
	cc := *c
	cc.Hints = append([]string(nil), c.Hints...)
	return &cc
}

func (s *MemoryStore) GetChallenge(ctx context.Context, id string) (*models.Challenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.challenges[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return copyChallenge(c), nil
}

func (s *MemoryStore) AddChallenge(ctx context.Context, sessionID string, in models.ChallengeInput) (*models.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return nil, common.ErrNotFound
	}
	c := s.insertChallenge(sessionID, in)
	return copyChallenge(c), nil
}

func (s *MemoryStore) insertChallenge(sessionID string, in models.ChallengeInput) *models.Challenge {
	c := &models.Challenge{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		Title:      in.Title,
		Clue:       in.Clue,
		Answer:     in.Answer,
		Hints:      append([]string{}, in.Hints...),
		Difficulty: in.Difficulty,
		Points:     in.Points,
		Active:     true,
		CreatedAt:  time.Now(),
	}
	s.challenges[c.ID] = c
	s.challengeOrder = append(s.challengeOrder, c.ID)
	return c
}

func (s *MemoryStore) UpdateChallenge(ctx context.Context, id string, in models.ChallengeInput) (*models.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.challenges[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	c.Title = in.Title
	c.Clue = in.Clue
	c.Answer = in.Answer
	c.Hints = append([]string{}, in.Hints...)
	c.Difficulty = in.Difficulty
	c.Points = in.Points
	return copyChallenge(c), nil
}

func (s *MemoryStore) DeactivateChallenge(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.challenges[id]
	if !ok {
		return common.ErrNotFound
	}
	c.Active = false
	return nil
}

func (s *MemoryStore) SeedSessionChallenges(ctx context.Context, sessionID string, inputs []models.ChallengeInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return common.ErrNotFound
	}
	for _, in := range inputs {
		s.insertChallenge(sessionID, in)
	}
	return nil
}

func (s *MemoryStore) ListTemplates(ctx context.Context) ([]*models.TemplateChallenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var list []*models.TemplateChallenge
	for _, id := range s.templateOrder {
		t, ok := s.templates[id]
		if !ok || !t.Active {
			continue
		}
		list = append(list, copyTemplate(t))
	}
	return list, nil
}

func copyTemplate(t *models.TemplateChallenge) *models.TemplateChallenge {
	tc := *t
	tc.Hints = append([]string(nil), t.Hints...)
	return &tc
}

func (s *MemoryStore) GetTemplate(ctx context.Context, id string) (*models.TemplateChallenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.templates[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return copyTemplate(t), nil
}

func (s *MemoryStore) AddTemplate(ctx context.Context, in models.ChallengeInput) (*models.TemplateChallenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &models.TemplateChallenge{
		ID:         uuid.NewString(),
		Title:      in.Title,
		Clue:       in.Clue,
		Answer:     in.Answer,
		Hints:      append([]string{}, in.Hints...),
		Difficulty: in.Difficulty,
		Points:     in.Points,
		Active:     true,
		CreatedAt:  time.Now(),
	}
	s.templates[t.ID] = t
	s.templateOrder = append(s.templateOrder, t.ID)
	return copyTemplate(t), nil
}

func (s *MemoryStore) UpdateTemplate(ctx context.Context, id string, in models.ChallengeInput) (*models.TemplateChallenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.templates[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	t.Title = in.Title
	t.Clue = in.Clue
	t.Answer = in.Answer
	t.Hints = append([]string{}, in.Hints...)
	t.Difficulty = in.Difficulty
	t.Points = in.Points
	return copyTemplate(t), nil
}

func (s *MemoryStore) DeactivateTemplate(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.templates[id]
	if !ok {
		return common.ErrNotFound
	}
	t.Active = false
	return nil
}

func (s *MemoryStore) AddPlayerSolution(ctx context.Context, playerID, challengeID string, points int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[playerID]
	if !ok {
		return common.ErrNotFound
	}
	key := solutionKey{playerID, challengeID}
	if _, exists := s.solutions[key]; exists {
		return common.Errorf(common.ErrConflict, "已经解出该题目")
	}
	s.solutions[key] = time.Now()
	p.Score += points
	return nil
}

func (s *MemoryStore) RemovePlayerSolution(ctx context.Context, playerID, challengeID string, points int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[playerID]
	if !ok {
		return common.ErrNotFound
	}
	key := solutionKey{playerID, challengeID}
	if _, exists := s.solutions[key]; !exists {
		return common.ErrNotFound
	}
	delete(s.solutions, key)
	p.Score -= points
	return nil
}

func (s *MemoryStore) ListPlayerSolutions(ctx context.Context, playerID string) ([]models.Solution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var list []models.Solution
	for key, at := range s.solutions {
		if key.playerID == playerID {
			list = append(list, models.Solution{PlayerID: playerID, ChallengeID: key.challengeID, SolvedAt: at})
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].SolvedAt.Before(list[j].SolvedAt) })
	return list, nil
}

// transfer 调用方持有写锁；不满足条件时返回 false 且不做任何修改
func (s *MemoryStore) transfer(t models.SolutionTransfer) bool {
	from, ok := s.players[t.FromID]
	if !ok {
		return false
	}
	to, ok := s.players[t.ToID]
	if !ok {
		return false
	}
	fromKey := solutionKey{t.FromID, t.ChallengeID}
	toKey := solutionKey{t.ToID, t.ChallengeID}
	if _, exists := s.solutions[fromKey]; !exists {
		return false
	}
	if _, exists := s.solutions[toKey]; exists {
		return false
	}
	delete(s.solutions, fromKey)
	s.solutions[toKey] = time.Now()
	from.Score -= t.Points
	to.Score += t.Points
	return true
}

func (s *MemoryStore) RecordAttack(ctx context.Context, attack *models.Attack, transfers []models.SolutionTransfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[attack.AttackerID]
	if !ok {
		return common.ErrNotFound
	}
	if p.Coins < attack.Cost {
		return common.Errorf(common.ErrConflict, "金币不足")
	}
	p.Coins -= attack.Cost
	p.LastActivity = time.Now()

	for _, t := range transfers {
		if !s.transfer(t) {
			continue
		}
		addOutcome(attack, t)
	}

	a := *attack
	a.TargetIDs = append([]string(nil), attack.TargetIDs...)
	a.Outcomes = make([]models.StealOutcome, len(attack.Outcomes))
	for i, o := range attack.Outcomes {
		o.Challenges = append([]models.StolenChallenge(nil), o.Challenges...)
		a.Outcomes[i] = o
	}
	s.attacks[a.ID] = &a
	return nil
}

func (s *MemoryStore) LogEvent(ctx context.Context, sessionID, playerID, eventType string, data map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := models.GameEvent{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		PlayerID:  playerID,
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now(),
	}
	if p, ok := s.players[playerID]; ok {
		e.Username = p.Username
	}
	s.events = append(s.events, e)
	return nil
}

func (s *MemoryStore) RecentEvents(ctx context.Context, sessionID string, limit int) ([]models.GameEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var list []models.GameEvent
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].SessionID != sessionID {
			continue
		}
		list = append(list, s.events[i])
		if limit > 0 && len(list) >= limit {
			break
		}
	}
	return list, nil
}

// Attacks 返回会话的攻击记录，仅用于测试和调试
func (s *MemoryStore) Attacks(sessionID string) []models.Attack {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var list []models.Attack
	for _, a := range s.attacks {
		if a.SessionID == sessionID {
			list = append(list, *a)
		}
	}
	return list
}

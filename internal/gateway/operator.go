package gateway

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/gosimple/slug"
	"github.com/jacl-coder/FlagStorm-Server/internal/common"
	"github.com/jacl-coder/FlagStorm-Server/internal/game"
	"github.com/jacl-coder/FlagStorm-Server/internal/models"
	"github.com/jacl-coder/FlagStorm-Server/internal/protocol"
	"github.com/jacl-coder/FlagStorm-Server/internal/store"
	"golang.org/x/crypto/bcrypt"
)

const maxSessionCodeLength = 32

// NormalizeCode 会话代码不区分大小写，统一存为大写
func NormalizeCode(code string) string {
	return strings.ToUpper(slug.Make(strings.TrimSpace(code)))
}

// OperatorService 管理员操作，WebSocket 和 REST 共用
type OperatorService struct {
	store    store.Store
	registry *game.Registry
	auth     *Auth
	logger   *slog.Logger
}

// NewOperatorService 创建管理员服务
func NewOperatorService(st store.Store, registry *game.Registry, auth *Auth, logger *slog.Logger) *OperatorService {
	if logger == nil {
		logger = slog.Default()
	}
	return &OperatorService{
		store:    st,
		registry: registry,
		auth:     auth,
		logger:   logger,
	}
}

// Authenticate 校验管理员密码，会话不存在时创建并初始化题库
func (s *OperatorService) Authenticate(ctx context.Context, req protocol.OperatorAuthRequest) (*protocol.OperatorAuthenticatedPayload, *OperatorClaims, error) {
	if req.Token != "" {
		oc, err := s.auth.Parse(ctx, req.Token)
		if err != nil {
			return nil, nil, err
		}
		session, err := s.store.GetSession(ctx, oc.SessionID)
		if err != nil {
			return nil, nil, err
		}
		return &protocol.OperatorAuthenticatedPayload{Token: req.Token, Session: *session}, oc, nil
	}

	code := NormalizeCode(req.SessionCode)
	if code == "" || len(code) > maxSessionCodeLength {
		return nil, nil, common.Errorf(common.ErrBadRequest, "无效的会话代码")
	}
	if req.AdminSecret == "" {
		return nil, nil, common.Errorf(common.ErrBadRequest, "缺少管理员密码")
	}

	created := false
	session, err := s.store.GetSessionByCode(ctx, code)
	switch {
	case errors.Is(err, common.ErrNotFound):
		session, err = s.createSession(ctx, code, req)
		if err != nil {
			return nil, nil, err
		}
		created = true
	case err != nil:
		return nil, nil, err
	default:
		ok, err := s.store.VerifyAdminSecret(ctx, code, req.AdminSecret)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			return nil, nil, common.Errorf(common.ErrPermissionDenied, "管理员密码错误")
		}
	}

	if req.Activate && session.Status == models.SessionWaiting {
		coord, err := s.registry.GetOrCreate(ctx, session.ID)
		if err != nil {
			return nil, nil, err
		}
		if err := coord.SetStatus(ctx, models.SessionActive); err != nil {
			return nil, nil, err
		}
		session.Status = models.SessionActive
	}

	token, oc, err := s.auth.Issue(session)
	if err != nil {
		return nil, nil, err
	}
	s.logger.Info("管理员已认证", "session", code, "created", created)
	return &protocol.OperatorAuthenticatedPayload{Token: token, Session: *session, Created: created}, oc, nil
}

// createSession 创建会话，题库来自模板，没有模板时使用内置题目
func (s *OperatorService) createSession(ctx context.Context, code string, req protocol.OperatorAuthRequest) (*models.Session, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.AdminSecret), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.SessionName)
	if name == "" {
		name = code
	}
	maxPlayers := req.MaxPlayers
	if maxPlayers <= 0 {
		maxPlayers = s.registry.Rules().DefaultMaxPlayers
	}

	session, err := s.store.CreateSession(ctx, name, code, string(hash), maxPlayers)
	if err != nil {
		return nil, err
	}

	templates, err := s.store.ListTemplates(ctx)
	if err != nil {
		return nil, err
	}
	inputs := make([]models.ChallengeInput, 0, len(templates))
	for _, t := range templates {
		inputs = append(inputs, t.Input())
	}
	if len(inputs) == 0 {
		inputs = game.DefaultChallenges()
	}
	if err := s.store.SeedSessionChallenges(ctx, session.ID, inputs); err != nil {
		return nil, err
	}

	s.logger.Info("创建会话", "session", code, "challenges", len(inputs))
	return session, nil
}

// Logout 注销令牌
func (s *OperatorService) Logout(ctx context.Context, oc *OperatorClaims) error {
	return s.auth.Revoke(ctx, oc)
}

// Watch 订阅会话房间
func (s *OperatorService) Watch(ctx context.Context, oc *OperatorClaims, connID string) error {
	coord, err := s.registry.GetOrCreate(ctx, oc.SessionID)
	if err != nil {
		return err
	}
	return coord.Watch(ctx, connID)
}

// Unwatch 取消订阅，协调器未加载时什么都不做
func (s *OperatorService) Unwatch(ctx context.Context, sessionID, connID string) {
	if coord, ok := s.registry.Get(sessionID); ok {
		if err := coord.Unwatch(ctx, connID); err != nil && !errors.Is(err, game.ErrCoordinatorStopped) {
			s.logger.Debug("取消订阅失败", "error", err)
		}
	}
}

// SetStatus 切换会话状态
func (s *OperatorService) SetStatus(ctx context.Context, oc *OperatorClaims, status models.SessionStatus) (*game.SessionInfo, error) {
	coord, err := s.registry.GetOrCreate(ctx, oc.SessionID)
	if err != nil {
		return nil, err
	}
	if err := coord.SetStatus(ctx, status); err != nil {
		return nil, err
	}
	return coord.Snapshot(ctx)
}

// Snapshot 会话当前状态
func (s *OperatorService) Snapshot(ctx context.Context, oc *OperatorClaims) (*game.SessionInfo, error) {
	coord, err := s.registry.GetOrCreate(ctx, oc.SessionID)
	if err != nil {
		return nil, err
	}
	return coord.Snapshot(ctx)
}

// ===== 题目管理 =====

// ListChallenges 会话题库，包含答案和已删除的题目
func (s *OperatorService) ListChallenges(ctx context.Context, oc *OperatorClaims) ([]*models.Challenge, error) {
	return s.store.GetSessionChallenges(ctx, oc.SessionID)
}

func (s *OperatorService) AddChallenge(ctx context.Context, oc *OperatorClaims, in models.ChallengeInput) (*models.Challenge, error) {
	if err := validateInput(&in); err != nil {
		return nil, err
	}
	ch, err := s.store.AddChallenge(ctx, oc.SessionID, in)
	if err != nil {
		return nil, err
	}
	s.reload(ctx, oc.SessionID)
	return ch, nil
}

func (s *OperatorService) UpdateChallenge(ctx context.Context, oc *OperatorClaims, id string, in models.ChallengeInput) (*models.Challenge, error) {
	if err := s.ownChallenge(ctx, oc, id); err != nil {
		return nil, err
	}
	if err := validateInput(&in); err != nil {
		return nil, err
	}
	ch, err := s.store.UpdateChallenge(ctx, id, in)
	if err != nil {
		return nil, err
	}
	s.reload(ctx, oc.SessionID)
	return ch, nil
}

// DeleteChallenge 软删除，已解出的记录保留
func (s *OperatorService) DeleteChallenge(ctx context.Context, oc *OperatorClaims, id string) error {
	if err := s.ownChallenge(ctx, oc, id); err != nil {
		return err
	}
	if err := s.store.DeactivateChallenge(ctx, id); err != nil {
		return err
	}
	s.reload(ctx, oc.SessionID)
	return nil
}

// ownChallenge 其他会话的题目视为不存在
func (s *OperatorService) ownChallenge(ctx context.Context, oc *OperatorClaims, id string) error {
	if id == "" {
		return common.Errorf(common.ErrBadRequest, "缺少题目ID")
	}
	ch, err := s.store.GetChallenge(ctx, id)
	if err != nil {
		return err
	}
	if ch.SessionID != oc.SessionID {
		return common.Errorf(common.ErrNotFound, "题目不存在")
	}
	return nil
}

// reload 通知已加载的协调器刷新题库
func (s *OperatorService) reload(ctx context.Context, sessionID string) {
	coord, ok := s.registry.Get(sessionID)
	if !ok {
		return
	}
	if err := coord.ReloadChallenges(ctx); err != nil {
		s.logger.Warn("刷新题库失败", "session", coord.Code(), "error", err)
	}
}

func validateInput(in *models.ChallengeInput) error {
	in.Normalize()
	if msg := in.Validate(); msg != "" {
		return common.Errorf(common.ErrBadRequest, "%s", msg)
	}
	return nil
}

// ===== 模板管理 =====

func (s *OperatorService) ListTemplates(ctx context.Context) ([]*models.TemplateChallenge, error) {
	return s.store.ListTemplates(ctx)
}

func (s *OperatorService) AddTemplate(ctx context.Context, in models.ChallengeInput) (*models.TemplateChallenge, error) {
	if err := validateInput(&in); err != nil {
		return nil, err
	}
	return s.store.AddTemplate(ctx, in)
}

func (s *OperatorService) UpdateTemplate(ctx context.Context, id string, in models.ChallengeInput) (*models.TemplateChallenge, error) {
	if id == "" {
		return nil, common.Errorf(common.ErrBadRequest, "缺少模板ID")
	}
	if err := validateInput(&in); err != nil {
		return nil, err
	}
	return s.store.UpdateTemplate(ctx, id, in)
}

func (s *OperatorService) DeleteTemplate(ctx context.Context, id string) error {
	if id == "" {
		return common.Errorf(common.ErrBadRequest, "缺少模板ID")
	}
	return s.store.DeactivateTemplate(ctx, id)
}

// ===== 会话管理 =====

func (s *OperatorService) ListSessions(ctx context.Context) ([]models.SessionSummary, error) {
	return s.store.ListSessions(ctx)
}

// RecentEvents 会话最近的事件日志
func (s *OperatorService) RecentEvents(ctx context.Context, oc *OperatorClaims, limit int) ([]models.GameEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.store.RecentEvents(ctx, oc.SessionID, limit)
}

// EndSession 结束会话。协调器已加载时通过它结束以取消攻击并通知玩家
func (s *OperatorService) EndSession(ctx context.Context, code string) (*models.Session, error) {
	session, err := s.store.GetSessionByCode(ctx, NormalizeCode(code))
	if err != nil {
		return nil, err
	}
	if session.Status == models.SessionEnded {
		return session, nil
	}

	if coord, ok := s.registry.Get(session.ID); ok {
		err = coord.SetStatus(ctx, models.SessionEnded)
		if errors.Is(err, game.ErrCoordinatorStopped) {
			err = s.store.EndSession(ctx, session.ID)
		}
	} else {
		err = s.store.EndSession(ctx, session.ID)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("会话已结束", "session", session.Code)
	return s.store.GetSession(ctx, session.ID)
}

// DeleteSession 结束并删除会话及其所有数据
func (s *OperatorService) DeleteSession(ctx context.Context, code string) error {
	session, err := s.EndSession(ctx, code)
	if err != nil {
		return err
	}
	s.registry.Remove(session.ID)
	if err := s.store.DeleteSessionCascade(ctx, session.ID); err != nil {
		return err
	}
	s.registry.ClearMirror(ctx, session.ID)
	s.logger.Info("会话已删除", "session", session.Code)
	return nil
}

package gateway

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jacl-coder/FlagStorm-Server/internal/common"
	"github.com/jacl-coder/FlagStorm-Server/internal/game"
	"github.com/jacl-coder/FlagStorm-Server/internal/protocol"
	"github.com/jacl-coder/FlagStorm-Server/internal/store"
)

// Router 把客户端消息分发到协调器和管理员服务
type Router struct {
	hub       *Hub
	store     store.Store
	registry  *game.Registry
	operators *OperatorService
	logger    *slog.Logger
}

// NewRouter 创建消息路由
func NewRouter(hub *Hub, st store.Store, registry *game.Registry, operators *OperatorService, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		hub:       hub,
		store:     st,
		registry:  registry,
		operators: operators,
		logger:    logger,
	}
}

type handlerFunc func(ctx context.Context, c *Client, env protocol.Envelope) error

func (rt *Router) handlers() map[string]handlerFunc {
	return map[string]handlerFunc{
		protocol.MsgJoin:         rt.handleJoin,
		protocol.MsgSubmitAnswer: rt.handleSubmitAnswer,
		protocol.MsgPurchaseHint: rt.handlePurchaseHint,
		protocol.MsgLaunchAttack: rt.handleLaunchAttack,

		protocol.MsgOperatorAuth:            rt.handleOperatorAuth,
		protocol.MsgOperatorWatch:           rt.operatorOnly(rt.handleOperatorWatch),
		protocol.MsgOperatorSetStatus:       rt.operatorOnly(rt.handleOperatorSetStatus),
		protocol.MsgOperatorListChallenges:  rt.operatorOnly(rt.handleOperatorListChallenges),
		protocol.MsgOperatorAddChallenge:    rt.operatorOnly(rt.handleOperatorAddChallenge),
		protocol.MsgOperatorUpdateChallenge: rt.operatorOnly(rt.handleOperatorUpdateChallenge),
		protocol.MsgOperatorDeleteChallenge: rt.operatorOnly(rt.handleOperatorDeleteChallenge),
		protocol.MsgOperatorListTemplates:   rt.operatorOnly(rt.handleOperatorListTemplates),
		protocol.MsgOperatorAddTemplate:     rt.operatorOnly(rt.handleOperatorAddTemplate),
		protocol.MsgOperatorUpdateTemplate:  rt.operatorOnly(rt.handleOperatorUpdateTemplate),
		protocol.MsgOperatorDeleteTemplate:  rt.operatorOnly(rt.handleOperatorDeleteTemplate),
		protocol.MsgOperatorListSessions:    rt.operatorOnly(rt.handleOperatorListSessions),
		protocol.MsgOperatorEndSession:      rt.operatorOnly(rt.handleOperatorEndSession),
		protocol.MsgOperatorDeleteSession:   rt.operatorOnly(rt.handleOperatorDeleteSession),
	}
}

// Dispatch 处理一条消息，错误只回复给发送者
func (rt *Router) Dispatch(ctx context.Context, c *Client, env protocol.Envelope) {
	h, ok := rt.handlers()[env.Type]
	if !ok {
		rt.replyError(c, env.Type, common.Errorf(common.ErrBadRequest, "未知消息类型: %s", env.Type))
		return
	}
	if err := h(ctx, c, env); err != nil {
		rt.replyError(c, env.Type, err)
	}
}

func (rt *Router) replyError(c *Client, requestType string, err error) {
	code := common.Code(err)
	if code == common.CodeStoreFailure || code == common.CodeInternal {
		rt.logger.Error("处理消息失败", "type", requestType, "conn", c.ID, "error", err)
	} else {
		rt.logger.Debug("请求被拒绝", "type", requestType, "conn", c.ID, "error", err)
	}
	rt.hub.Send(c.ID, protocol.NewOutbound(protocol.MsgError, protocol.ErrorPayload{
		Code:        code,
		Message:     common.Message(err),
		RequestType: requestType,
	}))
}

func (rt *Router) reply(c *Client, action string, data interface{}) {
	rt.hub.Send(c.ID, protocol.NewOutbound(protocol.MsgOperatorResult, protocol.OperatorResultPayload{
		Action: action,
		Data:   data,
	}))
}

// disconnect 连接关闭时通知协调器
func (rt *Router) disconnect(ctx context.Context, c *Client) {
	if c.sessionID != "" {
		if coord, ok := rt.registry.Get(c.sessionID); ok {
			if err := coord.Disconnect(ctx, c.ID); err != nil && !errors.Is(err, game.ErrCoordinatorStopped) {
				rt.logger.Warn("断开连接处理失败", "conn", c.ID, "error", err)
			}
		}
	}
	if c.watching != "" {
		rt.operators.Unwatch(ctx, c.watching, c.ID)
	}
}

// ===== 玩家消息 =====

func (rt *Router) handleJoin(ctx context.Context, c *Client, env protocol.Envelope) error {
	var req protocol.JoinRequest
	if err := protocol.DecodePayload(env, &req); err != nil {
		return err
	}
	code := NormalizeCode(req.SessionCode)
	if code == "" {
		return common.Errorf(common.ErrBadRequest, "缺少会话代码")
	}

	session, err := rt.store.GetSessionByCode(ctx, code)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.Errorf(common.ErrInvalidSession, "会话 %s 不存在", code)
		}
		return err
	}
	coord, err := rt.registry.GetOrCreate(ctx, session.ID)
	if err != nil {
		return err
	}

	// 一个连接同一时间只属于一个会话
	if c.sessionID != "" && c.sessionID != session.ID {
		rt.disconnect(ctx, c)
		c.sessionID, c.playerID = "", ""
	}

	joined, err := coord.Join(ctx, req.PlayerName, c.ID)
	if err != nil {
		return err
	}
	c.sessionID = session.ID
	c.playerID = joined.Player.ID
	return nil
}

// player 当前连接所在的协调器和玩家
func (rt *Router) player(ctx context.Context, c *Client) (*game.Coordinator, string, error) {
	if c.sessionID == "" || c.playerID == "" {
		return nil, "", common.Errorf(common.ErrNotAuthenticated, "请先加入会话")
	}
	coord, err := rt.registry.GetOrCreate(ctx, c.sessionID)
	if err != nil {
		return nil, "", err
	}
	return coord, c.playerID, nil
}

func (rt *Router) handleSubmitAnswer(ctx context.Context, c *Client, env protocol.Envelope) error {
	var req protocol.SubmitAnswerRequest
	if err := protocol.DecodePayload(env, &req); err != nil {
		return err
	}
	coord, playerID, err := rt.player(ctx, c)
	if err != nil {
		return err
	}
	_, err = coord.SubmitAnswer(ctx, playerID, req.ChallengeID, req.Answer)
	return err
}

func (rt *Router) handlePurchaseHint(ctx context.Context, c *Client, env protocol.Envelope) error {
	var req protocol.PurchaseHintRequest
	if err := protocol.DecodePayload(env, &req); err != nil {
		return err
	}
	coord, playerID, err := rt.player(ctx, c)
	if err != nil {
		return err
	}
	_, err = coord.PurchaseHint(ctx, playerID, req.ChallengeID, req.HintIndex)
	return err
}

func (rt *Router) handleLaunchAttack(ctx context.Context, c *Client, env protocol.Envelope) error {
	var req protocol.LaunchAttackRequest
	if err := protocol.DecodePayload(env, &req); err != nil {
		return err
	}
	coord, playerID, err := rt.player(ctx, c)
	if err != nil {
		return err
	}
	_, err = coord.LaunchAttack(ctx, playerID, req.Kind, req.Target)
	return err
}

// ===== 管理员消息 =====

type operatorHandler func(ctx context.Context, c *Client, oc *OperatorClaims, env protocol.Envelope) error

func (rt *Router) operatorOnly(h operatorHandler) handlerFunc {
	return func(ctx context.Context, c *Client, env protocol.Envelope) error {
		if c.operator == nil {
			// 已作为玩家加入的连接没有管理员权限
			if c.playerID != "" {
				return common.Errorf(common.ErrPermissionDenied, "玩家不能执行管理员操作")
			}
			return common.Errorf(common.ErrNotAuthenticated, "需要管理员认证")
		}
		return h(ctx, c, c.operator, env)
	}
}

func (rt *Router) handleOperatorAuth(ctx context.Context, c *Client, env protocol.Envelope) error {
	var req protocol.OperatorAuthRequest
	if err := protocol.DecodePayload(env, &req); err != nil {
		return err
	}
	payload, oc, err := rt.operators.Authenticate(ctx, req)
	if err != nil {
		return err
	}
	c.operator = oc
	rt.hub.Send(c.ID, protocol.NewOutbound(protocol.MsgOperatorAuthenticated, payload))
	return nil
}

func (rt *Router) handleOperatorWatch(ctx context.Context, c *Client, oc *OperatorClaims, env protocol.Envelope) error {
	if c.watching != "" && c.watching != oc.SessionID {
		rt.operators.Unwatch(ctx, c.watching, c.ID)
	}
	if err := rt.operators.Watch(ctx, oc, c.ID); err != nil {
		return err
	}
	c.watching = oc.SessionID
	return nil
}

func (rt *Router) handleOperatorSetStatus(ctx context.Context, c *Client, oc *OperatorClaims, env protocol.Envelope) error {
	var req protocol.SetStatusRequest
	if err := protocol.DecodePayload(env, &req); err != nil {
		return err
	}
	info, err := rt.operators.SetStatus(ctx, oc, req.Status)
	if err != nil {
		return err
	}
	rt.reply(c, env.Type, info.Session)
	return nil
}

func (rt *Router) handleOperatorListChallenges(ctx context.Context, c *Client, oc *OperatorClaims, env protocol.Envelope) error {
	list, err := rt.operators.ListChallenges(ctx, oc)
	if err != nil {
		return err
	}
	rt.reply(c, env.Type, list)
	return nil
}

func (rt *Router) handleOperatorAddChallenge(ctx context.Context, c *Client, oc *OperatorClaims, env protocol.Envelope) error {
	var req protocol.ChallengeRequest
	if err := protocol.DecodePayload(env, &req); err != nil {
		return err
	}
	ch, err := rt.operators.AddChallenge(ctx, oc, req.Challenge)
	if err != nil {
		return err
	}
	rt.reply(c, env.Type, ch)
	return nil
}

func (rt *Router) handleOperatorUpdateChallenge(ctx context.Context, c *Client, oc *OperatorClaims, env protocol.Envelope) error {
	var req protocol.ChallengeRequest
	if err := protocol.DecodePayload(env, &req); err != nil {
		return err
	}
	ch, err := rt.operators.UpdateChallenge(ctx, oc, req.ChallengeID, req.Challenge)
	if err != nil {
		return err
	}
	rt.reply(c, env.Type, ch)
	return nil
}

func (rt *Router) handleOperatorDeleteChallenge(ctx context.Context, c *Client, oc *OperatorClaims, env protocol.Envelope) error {
	var req protocol.ChallengeRequest
	if err := protocol.DecodePayload(env, &req); err != nil {
		return err
	}
	if err := rt.operators.DeleteChallenge(ctx, oc, req.ChallengeID); err != nil {
		return err
	}
	rt.reply(c, env.Type, map[string]string{"challenge_id": req.ChallengeID})
	return nil
}

func (rt *Router) handleOperatorListTemplates(ctx context.Context, c *Client, oc *OperatorClaims, env protocol.Envelope) error {
	list, err := rt.operators.ListTemplates(ctx)
	if err != nil {
		return err
	}
	rt.reply(c, env.Type, list)
	return nil
}

func (rt *Router) handleOperatorAddTemplate(ctx context.Context, c *Client, oc *OperatorClaims, env protocol.Envelope) error {
	var req protocol.TemplateRequest
	if err := protocol.DecodePayload(env, &req); err != nil {
		return err
	}
	t, err := rt.operators.AddTemplate(ctx, req.Template)
	if err != nil {
		return err
	}
	rt.reply(c, env.Type, t)
	return nil
}

func (rt *Router) handleOperatorUpdateTemplate(ctx context.Context, c *Client, oc *OperatorClaims, env protocol.Envelope) error {
	var req protocol.TemplateRequest
	if err := protocol.DecodePayload(env, &req); err != nil {
		return err
	}
	t, err := rt.operators.UpdateTemplate(ctx, req.TemplateID, req.Template)
	if err != nil {
		return err
	}
	rt.reply(c, env.Type, t)
	return nil
}

func (rt *Router) handleOperatorDeleteTemplate(ctx context.Context, c *Client, oc *OperatorClaims, env protocol.Envelope) error {
	var req protocol.TemplateRequest
	if err := protocol.DecodePayload(env, &req); err != nil {
		return err
	}
	if err := rt.operators.DeleteTemplate(ctx, req.TemplateID); err != nil {
		return err
	}
	rt.reply(c, env.Type, map[string]string{"template_id": req.TemplateID})
	return nil
}

func (rt *Router) handleOperatorListSessions(ctx context.Context, c *Client, oc *OperatorClaims, env protocol.Envelope) error {
	list, err := rt.operators.ListSessions(ctx)
	if err != nil {
		return err
	}
	rt.reply(c, env.Type, list)
	return nil
}

func (rt *Router) handleOperatorEndSession(ctx context.Context, c *Client, oc *OperatorClaims, env protocol.Envelope) error {
	var req protocol.SessionRequest
	if err := protocol.DecodePayload(env, &req); err != nil {
		return err
	}
	code := req.SessionCode
	if code == "" {
		code = oc.SessionCode
	}
	session, err := rt.operators.EndSession(ctx, code)
	if err != nil {
		return err
	}
	rt.reply(c, env.Type, session)
	return nil
}

func (rt *Router) handleOperatorDeleteSession(ctx context.Context, c *Client, oc *OperatorClaims, env protocol.Envelope) error {
	var req protocol.SessionRequest
	if err := protocol.DecodePayload(env, &req); err != nil {
		return err
	}
	if req.SessionCode == "" {
		return common.Errorf(common.ErrBadRequest, "缺少会话代码")
	}
	if err := rt.operators.DeleteSession(ctx, req.SessionCode); err != nil {
		return err
	}
	rt.reply(c, env.Type, map[string]string{"session_code": NormalizeCode(req.SessionCode)})
	return nil
}

package gateway

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jacl-coder/FlagStorm-Server/internal/common"
	"github.com/jacl-coder/FlagStorm-Server/internal/models"
	"github.com/jacl-coder/FlagStorm-Server/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebSocketGameFlow(t *testing.T) {
	e := newTestEnv(t)
	srv := httptest.NewServer(e.server.Handler())
	t.Cleanup(srv.Close)

	op := dialWS(t, srv)
	writeMsg(t, op, protocol.MsgOperatorAuth, map[string]interface{}{
		"session_code":   "wsgame",
		"admin_password": "pw",
		"activate":       true,
	})
	auth := payloadOf(readUntil(t, op, protocol.MsgOperatorAuthenticated))
	assert.Equal(t, true, auth["created"])

	writeMsg(t, op, protocol.MsgOperatorWatch, nil)
	readUntil(t, op, protocol.MsgLeaderboard)

	player := dialWS(t, srv)
	writeMsg(t, player, protocol.MsgJoin, map[string]string{"session_code": "wsgame", "player_name": "alice"})
	joined := payloadOf(readUntil(t, player, protocol.MsgJoined))
	assert.Equal(t, "WSGAME", joined["session_code"])

	var challengeID string
	for _, raw := range joined["challenges"].([]interface{}) {
		ch := raw.(map[string]interface{})
		assert.NotContains(t, ch, "answer")
		if ch["title"] == "Welcome Challenge" {
			challengeID = ch["id"].(string)
		}
	}
	require.NotEmpty(t, challengeID)

	writeMsg(t, player, protocol.MsgSubmitAnswer, map[string]string{"challenge_id": challengeID, "answer": "wrong"})
	result := payloadOf(readUntil(t, player, protocol.MsgAnswerResult))
	assert.Equal(t, false, result["correct"])

	writeMsg(t, player, protocol.MsgSubmitAnswer, map[string]string{"challenge_id": challengeID, "answer": "42"})
	result = payloadOf(readUntil(t, player, protocol.MsgAnswerResult))
	assert.Equal(t, true, result["correct"])
	assert.Equal(t, float64(100), result["score"])

	// 管理员收到解题广播
	achievement := payloadOf(readUntil(t, op, protocol.MsgAchievement))
	assert.Equal(t, "alice", achievement["player_name"])

	// 重复提交被拒绝，只回复给提交者
	writeMsg(t, player, protocol.MsgSubmitAnswer, map[string]string{"challenge_id": challengeID, "answer": "42"})
	errMsg := payloadOf(readUntil(t, player, protocol.MsgError))
	assert.Equal(t, common.CodeConflict, errMsg["code"])
	assert.Equal(t, protocol.MsgSubmitAnswer, errMsg["request_type"])

	// 断开后玩家标记为离线
	player.Close()
	coord, ok := e.registry.Get(auth["session"].(map[string]interface{})["id"].(string))
	require.True(t, ok)
	assert.Eventually(t, func() bool {
		board, err := coord.Leaderboard(e.ctx)
		return err == nil && len(board) == 1 && !board[0].Connected
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocketErrors(t *testing.T) {
	e := newTestEnv(t)
	e.login("errs", "pw", true)
	srv := httptest.NewServer(e.server.Handler())
	t.Cleanup(srv.Close)

	conn := dialWS(t, srv)

	tests := []struct {
		name    string
		msgType string
		payload interface{}
		code    string
	}{
		{"unknown type", "dance", nil, common.CodeBadRequest},
		{"submit before join", protocol.MsgSubmitAnswer, map[string]string{"challenge_id": "x", "answer": "y"}, common.CodeNotAuthenticated},
		{"operator without auth", protocol.MsgOperatorListChallenges, nil, common.CodeNotAuthenticated},
		{"unknown session", protocol.MsgJoin, map[string]string{"session_code": "missing", "player_name": "bob"}, common.CodeInvalidSession},
		{"empty session code", protocol.MsgJoin, map[string]string{"player_name": "bob"}, common.CodeBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writeMsg(t, conn, tt.msgType, tt.payload)
			msg := payloadOf(readUntil(t, conn, protocol.MsgError))
			assert.Equal(t, tt.code, msg["code"])
		})
	}

	// 无法解析的帧
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	msg := payloadOf(readUntil(t, conn, protocol.MsgError))
	assert.Equal(t, common.CodeBadRequest, msg["code"])
}

func TestRouterOperatorMessages(t *testing.T) {
	e := newTestEnv(t)
	c := e.testClient()

	e.server.router.Dispatch(e.ctx, c, envelope(t, protocol.MsgOperatorAuth, protocol.OperatorAuthRequest{
		SessionCode: "router", AdminSecret: "pw",
	}))
	require.NotNil(t, c.operator)
	require.Len(t, ofType(drain(t, c), protocol.MsgOperatorAuthenticated), 1)

	e.server.router.Dispatch(e.ctx, c, envelope(t, protocol.MsgOperatorSetStatus, protocol.SetStatusRequest{Status: "active"}))
	results := ofType(drain(t, c), protocol.MsgOperatorResult)
	require.Len(t, results, 1)
	assert.Equal(t, protocol.MsgOperatorSetStatus, payloadOf(results[0])["action"])

	e.server.router.Dispatch(e.ctx, c, envelope(t, protocol.MsgOperatorAddTemplate, map[string]interface{}{
		"template": map[string]interface{}{"title": "T", "clue": "c", "answer": "a"},
	}))
	require.Len(t, ofType(drain(t, c), protocol.MsgOperatorResult), 1)

	e.server.router.Dispatch(e.ctx, c, envelope(t, protocol.MsgOperatorDeleteSession, protocol.SessionRequest{}))
	errs := ofType(drain(t, c), protocol.MsgError)
	require.Len(t, errs, 1)
	assert.Equal(t, common.CodeBadRequest, payloadOf(errs[0])["code"])

	// 缺省结束自己的会话
	e.server.router.Dispatch(e.ctx, c, envelope(t, protocol.MsgOperatorEndSession, protocol.SessionRequest{}))
	results = ofType(drain(t, c), protocol.MsgOperatorResult)
	require.Len(t, results, 1)
	session := payloadOf(results[0])["data"].(map[string]interface{})
	assert.Equal(t, "ended", session["status"])
}

func TestRouterJoinSwitchesSession(t *testing.T) {
	e := newTestEnv(t)
	_, first := e.login("first", "pw", true)
	e.login("second", "pw", true)
	c := e.testClient()

	e.server.router.Dispatch(e.ctx, c, envelope(t, protocol.MsgJoin, protocol.JoinRequest{SessionCode: "first", PlayerName: "alice"}))
	require.Equal(t, first.SessionID, c.sessionID)
	firstPlayer := c.playerID

	e.server.router.Dispatch(e.ctx, c, envelope(t, protocol.MsgJoin, protocol.JoinRequest{SessionCode: "second", PlayerName: "alice"}))
	assert.NotEqual(t, first.SessionID, c.sessionID)
	assert.NotEqual(t, firstPlayer, c.playerID)

	coord, ok := e.registry.Get(first.SessionID)
	require.True(t, ok)
	board, err := coord.Leaderboard(e.ctx)
	require.NoError(t, err)
	require.Len(t, board, 1)
	assert.False(t, board[0].Connected)
}

func TestRouterPlayerCannotRunOperatorActions(t *testing.T) {
	e := newTestEnv(t)
	e.login("perm", "pw", true)
	c := e.testClient()

	e.server.router.Dispatch(e.ctx, c, envelope(t, protocol.MsgJoin, protocol.JoinRequest{SessionCode: "perm", PlayerName: "alice"}))
	require.NotEmpty(t, c.playerID)
	drain(t, c)

	for _, msgType := range []string{protocol.MsgOperatorSetStatus, protocol.MsgOperatorListChallenges, protocol.MsgOperatorEndSession} {
		e.server.router.Dispatch(e.ctx, c, envelope(t, msgType, protocol.SetStatusRequest{Status: "ended"}))
		errs := ofType(drain(t, c), protocol.MsgError)
		require.Len(t, errs, 1, msgType)
		assert.Equal(t, common.CodePermissionDenied, payloadOf(errs[0])["code"], msgType)
		assert.Equal(t, msgType, payloadOf(errs[0])["request_type"])
	}

	session, err := e.store.GetSessionByCode(e.ctx, "PERM")
	require.NoError(t, err)
	assert.Equal(t, models.SessionActive, session.Status)
}

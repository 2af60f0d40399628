package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jacl-coder/FlagStorm-Server/config"
	"github.com/jacl-coder/FlagStorm-Server/internal/game"
	"github.com/jacl-coder/FlagStorm-Server/internal/protocol"
	"github.com/jacl-coder/FlagStorm-Server/internal/store"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// memoryDenylist 内存版令牌注销表
type memoryDenylist struct {
	mu      sync.Mutex
	revoked map[string]time.Duration
}

func newMemoryDenylist() *memoryDenylist {
	return &memoryDenylist{revoked: make(map[string]time.Duration)}
}

func (d *memoryDenylist) Revoke(_ context.Context, tokenID string, ttl time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.revoked[tokenID] = ttl
	return nil
}

func (d *memoryDenylist) Revoked(_ context.Context, tokenID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.revoked[tokenID]
	return ok, nil
}

type testEnv struct {
	t         *testing.T
	ctx       context.Context
	store     *store.MemoryStore
	hub       *Hub
	registry  *game.Registry
	auth      *Auth
	denylist  *memoryDenylist
	operators *OperatorService
	server    *Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st := store.NewMemoryStore()
	hub := NewHub(discardLogger)
	registry := game.NewRegistry(game.Deps{
		Store:   st,
		Gateway: hub,
		Rules:   game.DefaultRules(),
		Logger:  discardLogger,
	})
	t.Cleanup(registry.Close)

	denylist := newMemoryDenylist()
	auth := NewAuth(testSecret, time.Hour, denylist)
	server := NewServer(config.ServerConfig{
		RequestsPerMinute: 1000,
		AllowedOrigins:    []string{"*"},
	}, Options{
		Store:    st,
		Registry: registry,
		Hub:      hub,
		Auth:     auth,
		Logger:   discardLogger,
	})

	return &testEnv{
		t:         t,
		ctx:       context.Background(),
		store:     st,
		hub:       hub,
		registry:  registry,
		auth:      auth,
		denylist:  denylist,
		operators: server.operators,
		server:    server,
	}
}

// login 创建或登录会话
func (e *testEnv) login(code, secret string, activate bool) (*protocol.OperatorAuthenticatedPayload, *OperatorClaims) {
	e.t.Helper()
	payload, oc, err := e.operators.Authenticate(e.ctx, protocol.OperatorAuthRequest{
		SessionCode: code,
		AdminSecret: secret,
		Activate:    activate,
	})
	require.NoError(e.t, err)
	return payload, oc
}

// testClient 注册到 hub 的假连接，直接读取发送队列
func (e *testEnv) testClient() *Client {
	c := newClient(protocol.JSONCodec{})
	e.hub.register(c)
	return c
}

// drain 取出发送队列中已有的消息
func drain(t *testing.T, c *Client) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for {
		select {
		case f, ok := <-c.send:
			if !ok {
				return out
			}
			var m map[string]interface{}
			require.NoError(t, json.Unmarshal(f.data, &m))
			out = append(out, m)
		default:
			return out
		}
	}
}

func ofType(msgs []map[string]interface{}, msgType string) []map[string]interface{} {
	var out []map[string]interface{}
	for _, m := range msgs {
		if m["type"] == msgType {
			out = append(out, m)
		}
	}
	return out
}

func envelope(t *testing.T, msgType string, payload interface{}) protocol.Envelope {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return protocol.Envelope{Type: msgType, Payload: raw}
}

// dialWS 连接测试服务器的 /ws
func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil 读取消息直到出现指定类型
func readUntil(t *testing.T, conn *websocket.Conn, msgType string) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %s", msgType)
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &m))
		if m["type"] == msgType {
			return m
		}
	}
}

func writeMsg(t *testing.T, conn *websocket.Conn, msgType string, payload interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": msgType, "payload": payload}))
}

func payloadOf(m map[string]interface{}) map[string]interface{} {
	p, _ := m["payload"].(map[string]interface{})
	return p
}

// websocket.go

package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jacl-coder/FlagStorm-Server/internal/protocol"
)

const (
	// 写入超时时间
	writeWait = 10 * time.Second

	// 读取超时时间
	pongWait = 60 * time.Second

	// 发送 ping 的间隔时间
	pingPeriod = (pongWait * 9) / 10

	// 最大消息大小
	maxMessageSize = 64 * 1024

	// 每个连接的发送队列长度
	sendBufferSize = 256
)

// newUpgrader 按允许的来源创建升级器，列表为空或包含 * 时不检查
func newUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowAll := len(allowedOrigins) == 0
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if allowAll {
				return true
			}
			origin := r.Header.Get("Origin")
			return origin == "" || allowed[origin]
		},
	}
}

// handleWSConnection 处理WebSocket连接，?codec=proto 使用二进制编码
func (s *Server) handleWSConnection(w http.ResponseWriter, r *http.Request) {
	codec := protocol.CodecByName(r.URL.Query().Get("codec"))

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket升级失败", "error", err)
		return
	}

	client := newClient(codec)
	s.hub.register(client)
	s.logger.Debug("连接已建立", "conn", client.ID, "codec", codec.Name(), "remote", r.RemoteAddr)

	go s.writePump(conn, client)
	s.readPump(s.baseContext(), conn, client)
}

// readPump 从WebSocket读取数据，退出时清理连接
func (s *Server) readPump(ctx context.Context, conn *websocket.Conn, client *Client) {
	defer func() {
		s.router.disconnect(context.WithoutCancel(ctx), client)
		s.hub.unregister(client.ID)
		conn.Close()
		s.logger.Debug("连接已断开", "conn", client.ID)
	}()

	// 设置读取参数
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Warn("WebSocket错误", "conn", client.ID, "error", err)
			}
			return
		}

		env, err := client.codec.Decode(data)
		if err != nil {
			s.router.replyError(client, "", err)
			continue
		}
		s.router.Dispatch(ctx, client, env)
	}
}

// writePump 向WebSocket写入数据
func (s *Server) writePump(conn *websocket.Conn, client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case f, ok := <-client.send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// 通道已关闭
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			messageType := websocket.TextMessage
			if f.binary {
				messageType = websocket.BinaryMessage
			}
			if err := conn.WriteMessage(messageType, f.data); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

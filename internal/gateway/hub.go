package gateway

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/jacl-coder/FlagStorm-Server/internal/protocol"
)

// frame 一条待写出的消息
type frame struct {
	binary bool
	data   []byte
}

// Client 一个WebSocket连接
type Client struct {
	ID    string
	codec protocol.Codec

	// 通信通道
	send chan frame

	// 以下字段只在读协程中访问
	sessionID string
	playerID  string
	operator  *OperatorClaims
	watching  string // 管理员订阅的会话ID
}

func newClient(codec protocol.Codec) *Client {
	return &Client{
		ID:    uuid.NewString(),
		codec: codec,
		send:  make(chan frame, sendBufferSize),
	}
}

// Hub 连接和广播房间的注册表，实现 game.Broadcaster
type Hub struct {
	clients map[string]*Client
	rooms   map[string]map[string]*Client
	mutex   sync.RWMutex
	logger  *slog.Logger
}

// NewHub 创建连接注册表
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]*Client),
		logger:  logger,
	}
}

func (h *Hub) register(c *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.clients[c.ID] = c
}

// unregister 移除连接并关闭发送通道，可重复调用
func (h *Hub) unregister(connID string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	c, ok := h.clients[connID]
	if !ok {
		return
	}
	for room, members := range h.rooms {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(h.clients, connID)
	close(c.send)
}

// IsConnected 连接是否仍在注册表中
func (h *Hub) IsConnected(connID string) bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	_, ok := h.clients[connID]
	return ok
}

// Count 当前连接数
func (h *Hub) Count() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// JoinRoom 订阅房间
func (h *Hub) JoinRoom(connID, room string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	c, ok := h.clients[connID]
	if !ok {
		return
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]*Client)
		h.rooms[room] = members
	}
	members[connID] = c
}

// LeaveRoom 取消订阅
func (h *Hub) LeaveRoom(connID, room string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// Send 发给单个连接
func (h *Hub) Send(connID string, msg protocol.Outbound) {
	h.mutex.RLock()
	c, ok := h.clients[connID]
	if !ok {
		h.mutex.RUnlock()
		return
	}
	data, err := c.codec.Encode(msg)
	if err != nil {
		h.mutex.RUnlock()
		h.logger.Error("编码消息失败", "type", msg.Type, "error", err)
		return
	}
	full := !h.enqueue(c, frame{binary: c.codec.Binary(), data: data})
	h.mutex.RUnlock()

	if full {
		h.dropSlow(c)
	}
}

// Broadcast 发给房间内所有连接，每种编码只序列化一次
func (h *Hub) Broadcast(room string, msg protocol.Outbound) {
	var slow []*Client

	h.mutex.RLock()
	encoded := make(map[string][]byte)
	for _, c := range h.rooms[room] {
		name := c.codec.Name()
		data, ok := encoded[name]
		if !ok {
			var err error
			data, err = c.codec.Encode(msg)
			if err != nil {
				h.logger.Error("编码消息失败", "type", msg.Type, "codec", name, "error", err)
				continue
			}
			encoded[name] = data
		}
		if !h.enqueue(c, frame{binary: c.codec.Binary(), data: data}) {
			slow = append(slow, c)
		}
	}
	h.mutex.RUnlock()

	for _, c := range slow {
		h.dropSlow(c)
	}
}

// enqueue 需要持有读锁，保证发送通道未被关闭
func (h *Hub) enqueue(c *Client, f frame) bool {
	select {
	case c.send <- f:
		return true
	default:
		return false
	}
}

// dropSlow 发送队列已满，关闭连接；读协程随后会收到断开
func (h *Hub) dropSlow(c *Client) {
	h.logger.Warn("发送队列已满，关闭连接", "conn", c.ID)
	h.unregister(c.ID)
}

// CloseAll 关闭所有连接
func (h *Hub) CloseAll() {
	h.mutex.Lock()
	clients := h.clients
	h.clients = make(map[string]*Client)
	h.rooms = make(map[string]map[string]*Client)
	h.mutex.Unlock()

	for _, c := range clients {
		close(c.send)
	}
}

package game

import (
	"context"

	"github.com/jacl-coder/FlagStorm-Server/internal/models"
	"github.com/jacl-coder/FlagStorm-Server/internal/protocol"
)

// Broadcaster 消息投递网关，协调器只调用它，不关心传输层
type Broadcaster interface {
	// Send 发给单个连接，连接不存在时静默丢弃
	Send(connID string, msg protocol.Outbound)
	// Broadcast 发给订阅了房间的所有连接
	Broadcast(room string, msg protocol.Outbound)
	JoinRoom(connID, room string)
	LeaveRoom(connID, room string)
	// IsConnected 连接是否仍然存活
	IsConnected(connID string) bool
}

// LeaderboardMirror 排行榜的外部只读副本（例如Redis），写入失败不影响游戏
type LeaderboardMirror interface {
	Publish(ctx context.Context, sessionID string, entries []models.LeaderboardEntry) error
	Clear(ctx context.Context, sessionID string) error
}

// RoomName 会话对应的广播房间
func RoomName(sessionID string) string {
	return "session:" + sessionID
}

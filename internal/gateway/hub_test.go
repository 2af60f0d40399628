package gateway

import (
	"testing"

	"github.com/jacl-coder/FlagStorm-Server/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestHubRooms(t *testing.T) {
	hub := NewHub(discardLogger)
	a := newClient(protocol.JSONCodec{})
	b := newClient(protocol.JSONCodec{})
	outsider := newClient(protocol.JSONCodec{})
	hub.register(a)
	hub.register(b)
	hub.register(outsider)

	hub.JoinRoom(a.ID, "room")
	hub.JoinRoom(b.ID, "room")
	hub.JoinRoom("missing", "room")

	hub.Broadcast("room", protocol.NewOutbound(protocol.MsgLeaderboard, nil))
	assert.Len(t, drain(t, a), 1)
	assert.Len(t, drain(t, b), 1)
	assert.Empty(t, drain(t, outsider))

	hub.LeaveRoom(b.ID, "room")
	hub.Broadcast("room", protocol.NewOutbound(protocol.MsgLeaderboard, nil))
	assert.Len(t, drain(t, a), 1)
	assert.Empty(t, drain(t, b))
}

func TestHubSend(t *testing.T) {
	hub := NewHub(discardLogger)
	c := newClient(protocol.JSONCodec{})
	hub.register(c)
	assert.True(t, hub.IsConnected(c.ID))
	assert.Equal(t, 1, hub.Count())

	hub.Send(c.ID, protocol.NewOutbound(protocol.MsgError, protocol.ErrorPayload{Code: "X"}))
	hub.Send("missing", protocol.NewOutbound(protocol.MsgError, nil))

	msgs := drain(t, c)
	require.Len(t, msgs, 1)
	assert.Equal(t, protocol.MsgError, msgs[0]["type"])
	assert.Equal(t, "X", payloadOf(msgs[0])["code"])
}

func TestHubMixedCodecs(t *testing.T) {
	hub := NewHub(discardLogger)
	text := newClient(protocol.JSONCodec{})
	bin := newClient(protocol.ProtoCodec{})
	hub.register(text)
	hub.register(bin)
	hub.JoinRoom(text.ID, "room")
	hub.JoinRoom(bin.ID, "room")

	hub.Broadcast("room", protocol.NewOutbound(protocol.MsgStatusChanged, protocol.StatusChangedPayload{Message: "go"}))

	f := <-text.send
	assert.False(t, f.binary)
	assert.Contains(t, string(f.data), `"status-changed"`)

	f = <-bin.send
	assert.True(t, f.binary)
	var s structpb.Struct
	require.NoError(t, proto.Unmarshal(f.data, &s))
	assert.Equal(t, protocol.MsgStatusChanged, s.Fields["type"].GetStringValue())
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := NewHub(discardLogger)
	slow := &Client{ID: "slow", codec: protocol.JSONCodec{}, send: make(chan frame, 1)}
	hub.register(slow)
	hub.JoinRoom(slow.ID, "room")

	hub.Broadcast("room", protocol.NewOutbound(protocol.MsgLeaderboard, nil))
	hub.Broadcast("room", protocol.NewOutbound(protocol.MsgLeaderboard, nil))

	assert.False(t, hub.IsConnected(slow.ID))
	_, ok := <-slow.send
	assert.True(t, ok, "queued frame is still delivered")
	_, ok = <-slow.send
	assert.False(t, ok, "send channel closed after drop")

	// 已移除的连接不会再次关闭通道
	hub.unregister(slow.ID)
	hub.Send(slow.ID, protocol.NewOutbound(protocol.MsgLeaderboard, nil))
}

func TestHubCloseAll(t *testing.T) {
	hub := NewHub(discardLogger)
	c := newClient(protocol.JSONCodec{})
	hub.register(c)
	hub.JoinRoom(c.ID, "room")

	hub.CloseAll()
	assert.Equal(t, 0, hub.Count())
	_, ok := <-c.send
	assert.False(t, ok)

	hub.unregister(c.ID)
	hub.Broadcast("room", protocol.NewOutbound(protocol.MsgLeaderboard, nil))
}

package protocol

import (
	"encoding/json"

	"github.com/jacl-coder/FlagStorm-Server/internal/common"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Codec 连接使用的消息编解码器
type Codec interface {
	Name() string
	// Binary 为 true 时使用二进制帧
	Binary() bool
	Encode(msg Outbound) ([]byte, error)
	Decode(data []byte) (Envelope, error)
}

// CodecByName 按名称选择编解码器，未知名称使用JSON
func CodecByName(name string) Codec {
	if name == ProtoCodecName {
		return ProtoCodec{}
	}
	return JSONCodec{}
}

// JSONCodec 文本帧JSON
type JSONCodec struct{}

const (
	JSONCodecName  = "json"
	ProtoCodecName = "proto"
)

func (JSONCodec) Name() string { return JSONCodecName }

func (JSONCodec) Binary() bool { return false }

func (JSONCodec) Encode(msg Outbound) ([]byte, error) {
	return json.Marshal(msg)
}

func (JSONCodec) Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, common.Errorf(common.ErrBadRequest, "解析消息失败: %v", err)
	}
	return env, nil
}

// ProtoCodec 二进制帧，消息编码为 google.protobuf.Struct
type ProtoCodec struct{}

func (ProtoCodec) Name() string { return ProtoCodecName }

func (ProtoCodec) Binary() bool { return true }

func (ProtoCodec) Encode(msg Outbound) ([]byte, error) {
	s, err := ToStruct(msg)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(s)
}

func (ProtoCodec) Decode(data []byte) (Envelope, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return Envelope{}, common.Errorf(common.ErrBadRequest, "解析消息失败: %v", err)
	}
	return FromStruct(&s)
}

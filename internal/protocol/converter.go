package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/jacl-coder/FlagStorm-Server/internal/common"
	"google.golang.org/protobuf/types/known/structpb"
)

// ToStruct 将发出的消息转换为 protobuf Struct
func ToStruct(msg Outbound) (*structpb.Struct, error) {
	fields := map[string]interface{}{"type": msg.Type}
	if msg.Payload != nil {
		payload, err := toGeneric(msg.Payload)
		if err != nil {
			return nil, fmt.Errorf("转换消息 %s 失败: %w", msg.Type, err)
		}
		fields["payload"] = payload
	}
	return structpb.NewStruct(fields)
}

// FromStruct 将 protobuf Struct 转换为收到的消息
func FromStruct(s *structpb.Struct) (Envelope, error) {
	m := s.AsMap()
	msgType, _ := m["type"].(string)
	if msgType == "" {
		return Envelope{}, common.Errorf(common.ErrBadRequest, "消息缺少类型")
	}
	env := Envelope{Type: msgType}
	if payload, ok := m["payload"]; ok && payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Envelope{}, fmt.Errorf("转换消息 %s 失败: %w", msgType, err)
		}
		env.Payload = raw
	}
	return env, nil
}

// toGeneric 通过JSON把结构体转换为 structpb 支持的通用值
func toGeneric(v interface{}) (interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DecodePayload 解析消息负载，空负载保持零值
func DecodePayload(env Envelope, v interface{}) error {
	if len(env.Payload) == 0 || string(env.Payload) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Payload, v); err != nil {
		return common.Errorf(common.ErrBadRequest, "解析 %s 负载失败: %v", env.Type, err)
	}
	return nil
}

package common

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrInvalidSession   = errors.New("invalid session state")
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict") // 重名、重复解题、余额不足、冷却中、无效目标
	ErrStoreFailure     = errors.New("store failure")
	ErrPermissionDenied = errors.New("permission denied")
	ErrBadRequest       = errors.New("bad request")
)

// 错误码，发送给客户端
const (
	CodeNotAuthenticated = "NOT_AUTHENTICATED"
	CodeInvalidSession   = "INVALID_SESSION"
	CodeNotFound         = "NOT_FOUND"
	CodeConflict         = "CONFLICT"
	CodeStoreFailure     = "STORE_FAILURE"
	CodePermissionDenied = "PERMISSION_DENIED"
	CodeBadRequest       = "BAD_REQUEST"
	CodeInternal         = "INTERNAL_ERROR"
)

// Error 带有玩家可读信息的领域错误
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

// Errorf creates a domain error of the given kind with a formatted message.
func Errorf(kind error, format string, args ...interface{}) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Message 返回可以展示给客户端的错误信息，存储和内部错误不泄露细节
func Message(err error) string {
	if err == nil {
		return ""
	}
	switch Code(err) {
	case CodeStoreFailure, CodeInternal:
		return "服务器错误"
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}

// Code 将错误映射为客户端错误码
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotAuthenticated):
		return CodeNotAuthenticated
	case errors.Is(err, ErrInvalidSession):
		return CodeInvalidSession
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrConflict):
		return CodeConflict
	case errors.Is(err, ErrStoreFailure),
		errors.Is(err, context.DeadlineExceeded):
		return CodeStoreFailure
	case errors.Is(err, ErrPermissionDenied):
		return CodePermissionDenied
	case errors.Is(err, ErrBadRequest):
		return CodeBadRequest
	default:
		return CodeInternal
	}
}

// HTTPStatusFromError maps domain errors to HTTP status codes.
func HTTPStatusFromError(err error) int {
	switch Code(err) {
	case "":
		return http.StatusOK
	case CodeNotAuthenticated:
		return http.StatusUnauthorized
	case CodePermissionDenied:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeInvalidSession:
		return http.StatusConflict
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodeStoreFailure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// StoreError 包装存储层错误：领域错误原样返回，其余一律视为存储失败
func StoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) || errors.Is(err, ErrStoreFailure) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStoreFailure, err)
}

package common

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeAndStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{"nil", nil, "", http.StatusOK},
		{"not authenticated", Errorf(ErrNotAuthenticated, "请先加入会话"), CodeNotAuthenticated, http.StatusUnauthorized},
		{"invalid session", Errorf(ErrInvalidSession, "游戏未开始"), CodeInvalidSession, http.StatusConflict},
		{"wrapped not found", fmt.Errorf("load: %w", ErrNotFound), CodeNotFound, http.StatusNotFound},
		{"conflict", Errorf(ErrConflict, "金币不足"), CodeConflict, http.StatusConflict},
		{"permission", ErrPermissionDenied, CodePermissionDenied, http.StatusForbidden},
		{"deadline", context.DeadlineExceeded, CodeStoreFailure, http.StatusServiceUnavailable},
		{"bad request", ErrBadRequest, CodeBadRequest, http.StatusBadRequest},
		{"unknown", errors.New("boom"), CodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, Code(tt.err))
			assert.Equal(t, tt.status, HTTPStatusFromError(tt.err))
		})
	}
}

func TestStoreError(t *testing.T) {
	assert.NoError(t, StoreError("op", nil))

	err := StoreError("GetPlayer", sql.ErrConnDone)
	assert.ErrorIs(t, err, ErrStoreFailure)
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.Equal(t, "服务器错误", Message(err))

	err = StoreError("GetPlayer", ErrNotFound)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrStoreFailure)
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "金币不足", Message(Errorf(ErrConflict, "金币不足")))
	assert.Equal(t, "金币不足", Message(fmt.Errorf("hint: %w", Errorf(ErrConflict, "金币不足"))))
	assert.Equal(t, "", Message(nil))
}

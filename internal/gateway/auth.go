package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jacl-coder/FlagStorm-Server/internal/common"
	"github.com/jacl-coder/FlagStorm-Server/internal/models"
)

const operatorSubject = "operator"

// OperatorClaims 管理员令牌中的信息
type OperatorClaims struct {
	SessionID   string
	SessionCode string
	TokenID     string
	ExpiresAt   time.Time
}

// TokenDenylist 已注销令牌的记录
type TokenDenylist interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	Revoked(ctx context.Context, tokenID string) (bool, error)
}

// Auth 签发和校验管理员令牌
type Auth struct {
	tokenAuth *jwtauth.JWTAuth
	ttl       time.Duration
	denylist  TokenDenylist // 可选
}

// NewAuth 创建令牌服务，denylist 为 nil 时注销只在令牌过期后生效
func NewAuth(secret string, ttl time.Duration, denylist TokenDenylist) *Auth {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Auth{
		tokenAuth: jwtauth.New("HS256", []byte(secret), nil),
		ttl:       ttl,
		denylist:  denylist,
	}
}

// TokenAuth 供 jwtauth.Verifier 使用
func (a *Auth) TokenAuth() *jwtauth.JWTAuth {
	return a.tokenAuth
}

// Issue 为会话签发管理员令牌
func (a *Auth) Issue(session *models.Session) (string, *OperatorClaims, error) {
	now := time.Now()
	oc := &OperatorClaims{
		SessionID:   session.ID,
		SessionCode: session.Code,
		TokenID:     uuid.NewString(),
		ExpiresAt:   now.Add(a.ttl),
	}
	claims := jwt.MapClaims{
		"sub":          operatorSubject,
		"jti":          oc.TokenID,
		"session_id":   oc.SessionID,
		"session_code": oc.SessionCode,
		"iat":          now.Unix(),
		"exp":          oc.ExpiresAt.Unix(),
	}
	_, token, err := a.tokenAuth.Encode(claims)
	if err != nil {
		return "", nil, err
	}
	return token, oc, nil
}

// Parse 校验令牌字符串，WebSocket 上的 operator-auth 使用
func (a *Auth) Parse(ctx context.Context, token string) (*OperatorClaims, error) {
	tok, err := jwtauth.VerifyToken(a.tokenAuth, token)
	if err != nil {
		return nil, common.Errorf(common.ErrNotAuthenticated, "无效的令牌")
	}
	m, err := tok.AsMap(ctx)
	if err != nil {
		return nil, common.Errorf(common.ErrNotAuthenticated, "无效的令牌")
	}
	return a.claimsFromMap(ctx, m)
}

func (a *Auth) claimsFromMap(ctx context.Context, m map[string]interface{}) (*OperatorClaims, error) {
	claims := jwt.MapClaims(m)
	if sub, _ := claims.GetSubject(); sub != operatorSubject {
		return nil, common.Errorf(common.ErrPermissionDenied, "需要管理员权限")
	}

	oc := &OperatorClaims{}
	oc.SessionID, _ = claims["session_id"].(string)
	oc.SessionCode, _ = claims["session_code"].(string)
	oc.TokenID, _ = claims["jti"].(string)
	if oc.SessionID == "" || oc.TokenID == "" {
		return nil, common.Errorf(common.ErrNotAuthenticated, "令牌缺少会话信息")
	}
	switch exp := claims["exp"].(type) {
	case time.Time:
		oc.ExpiresAt = exp
	case float64:
		oc.ExpiresAt = time.Unix(int64(exp), 0)
	}

	if a.denylist != nil {
		revoked, err := a.denylist.Revoked(ctx, oc.TokenID)
		if err != nil {
			return nil, common.StoreError("Revoked", err)
		}
		if revoked {
			return nil, common.Errorf(common.ErrNotAuthenticated, "令牌已注销")
		}
	}
	return oc, nil
}

// Revoke 注销令牌直到其原本的过期时间
func (a *Auth) Revoke(ctx context.Context, oc *OperatorClaims) error {
	if a.denylist == nil {
		return nil
	}
	ttl := time.Until(oc.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	return a.denylist.Revoke(ctx, oc.TokenID, ttl)
}

type contextKey string

const operatorCtxKey contextKey = "operator"

// Authenticator 在 jwtauth.Verifier 之后使用，校验管理员身份
func (a *Auth) Authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, claims, err := jwtauth.FromContext(r.Context())
		if err != nil || token == nil {
			respondWithError(w, common.Errorf(common.ErrNotAuthenticated, "需要管理员令牌"))
			return
		}

		oc, err := a.claimsFromMap(r.Context(), claims)
		if err != nil {
			respondWithError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), operatorCtxKey, oc)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OperatorFromContext 获取已认证的管理员
func OperatorFromContext(ctx context.Context) (*OperatorClaims, bool) {
	oc, ok := ctx.Value(operatorCtxKey).(*OperatorClaims)
	return oc, ok
}

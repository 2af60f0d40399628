package store

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// TokenDenylistPrefix 已注销的管理员令牌，值无意义，随令牌过期
const TokenDenylistPrefix = "flagstorm:revoked:"

// RedisTokenDenylist 管理员令牌注销表
type RedisTokenDenylist struct {
	client *redis.Client
}

// NewRedisTokenDenylist 创建注销表
func NewRedisTokenDenylist(client *redis.Client) *RedisTokenDenylist {
	return &RedisTokenDenylist{client: client}
}

func (d *RedisTokenDenylist) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	return d.client.Set(ctx, TokenDenylistPrefix+tokenID, 1, ttl).Err()
}

func (d *RedisTokenDenylist) Revoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := d.client.Exists(ctx, TokenDenylistPrefix+tokenID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

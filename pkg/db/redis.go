package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jacl-coder/FlagStorm-Server/config"
)

var (
	// RedisClient 全局Redis客户端实例，未启用Redis时为nil
	RedisClient *redis.Client
)

// InitRedis 初始化Redis连接
func InitRedis(ctx context.Context) error {
	redisConfig := config.GlobalConfig.Redis

	RedisClient = redis.NewClient(&redis.Options{
		Addr:     redisConfig.GetRedisAddr(),
		Password: redisConfig.Password,
		DB:       redisConfig.DB,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := RedisClient.Ping(ctx).Result(); err != nil {
		RedisClient.Close()
		RedisClient = nil
		return fmt.Errorf("Redis连接失败: %w", err)
	}

	slog.Info("成功连接到Redis服务器", "addr", redisConfig.GetRedisAddr())
	return nil
}

// CloseRedis 关闭Redis连接
func CloseRedis() {
	if RedisClient != nil {
		if err := RedisClient.Close(); err != nil {
			slog.Error("关闭Redis连接时发生错误", "error", err)
			return
		}
		slog.Info("Redis连接已关闭")
	}
}

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jacl-coder/FlagStorm-Server/internal/models"
)

// 排行榜Redis键名
const (
	// 会话排行榜 ZSET，成员为玩家ID，分数为得分
	LeaderboardKeyPrefix = "flagstorm:leaderboard:"
	// 会话排行榜快照，完整条目的JSON
	LeaderboardSnapshotPrefix = "flagstorm:leaderboard:snapshot:"

	// 排行榜缓存时间，会话结束后自然过期
	LeaderboardCacheTTL = 24 * time.Hour
)

// RedisLeaderboard 会话排行榜的Redis镜像，只供外部读取，协调器从不回读
type RedisLeaderboard struct {
	client *redis.Client
}

// NewRedisLeaderboard 创建Redis排行榜镜像
func NewRedisLeaderboard(client *redis.Client) *RedisLeaderboard {
	return &RedisLeaderboard{client: client}
}

func leaderboardKey(sessionID string) string {
	return LeaderboardKeyPrefix + sessionID
}

func snapshotKey(sessionID string) string {
	return LeaderboardSnapshotPrefix + sessionID
}

// Publish 覆盖写入会话排行榜
func (rl *RedisLeaderboard) Publish(ctx context.Context, sessionID string, entries []models.LeaderboardEntry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("序列化排行榜失败: %w", err)
	}

	key := leaderboardKey(sessionID)
	_, err = rl.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(entries) > 0 {
			members := make([]*redis.Z, 0, len(entries))
			for _, e := range entries {
				members = append(members, &redis.Z{Score: float64(e.Score), Member: e.PlayerID})
			}
			pipe.ZAdd(ctx, key, members...)
			pipe.Expire(ctx, key, LeaderboardCacheTTL)
		}
		pipe.Set(ctx, snapshotKey(sessionID), data, LeaderboardCacheTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("写入Redis排行榜失败: %w", err)
	}
	return nil
}

// Top 读取排行榜快照的前 limit 名，limit<=0 返回全部
func (rl *RedisLeaderboard) Top(ctx context.Context, sessionID string, limit int) ([]models.LeaderboardEntry, error) {
	data, err := rl.client.Get(ctx, snapshotKey(sessionID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var entries []models.LeaderboardEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// PlayerRank 获取玩家排名，从1开始，不在榜上返回-1
func (rl *RedisLeaderboard) PlayerRank(ctx context.Context, sessionID, playerID string) (int, error) {
	rank, err := rl.client.ZRevRank(ctx, leaderboardKey(sessionID), playerID).Result()
	if err != nil {
		if err == redis.Nil {
			return -1, nil
		}
		return -1, err
	}
	return int(rank) + 1, nil
}

// Clear 删除会话排行榜
func (rl *RedisLeaderboard) Clear(ctx context.Context, sessionID string) error {
	return rl.client.Del(ctx, leaderboardKey(sessionID), snapshotKey(sessionID)).Err()
}

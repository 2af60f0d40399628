// main.go

package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jacl-coder/FlagStorm-Server/config"
	"github.com/jacl-coder/FlagStorm-Server/internal/game"
	"github.com/jacl-coder/FlagStorm-Server/internal/gateway"
	"github.com/jacl-coder/FlagStorm-Server/internal/store"
	"github.com/jacl-coder/FlagStorm-Server/pkg/db"
	"github.com/lmittmann/tint"
	"golang.org/x/sync/errgroup"
)

func main() {
	// 解析命令行参数
	configPath := flag.String("config", "config/config.yaml", "配置文件路径")
	flag.Parse()

	// 加载配置
	if err := config.LoadConfig(*configPath); err != nil {
		slog.Error("加载配置失败", "error", err)
		os.Exit(1)
	}
	cfg := config.GlobalConfig

	logger := newLogger(cfg.Server)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("服务器异常退出", "error", err)
		os.Exit(1)
	}
	logger.Info("服务器已安全关闭")
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	pingers := make(map[string]gateway.PingFunc)

	// 存储
	var st store.Store
	switch cfg.Database.Driver {
	case "memory":
		logger.Warn("使用内存存储，重启后数据丢失")
		st = store.NewMemoryStore()
	default:
		if err := db.InitPostgres(); err != nil {
			return err
		}
		defer db.Close()
		if err := db.InitAllTables(); err != nil {
			return err
		}
		pg := store.NewPostgresStore(db.DB)
		st = pg
		pingers["postgres"] = pg.Ping
	}

	hub := gateway.NewHub(logger)
	deps := game.Deps{
		Store:   st,
		Gateway: hub,
		Rules:   game.RulesFromConfig(cfg.Game),
		Logger:  logger,
	}

	// Redis 可选，用于排行榜镜像和令牌注销
	var (
		leaderboard gateway.LeaderboardReader
		denylist    gateway.TokenDenylist
	)
	if cfg.Redis.Enabled {
		if err := db.InitRedis(ctx); err != nil {
			return err
		}
		defer db.CloseRedis()

		mirror := store.NewRedisLeaderboard(db.RedisClient)
		deps.Mirror = mirror
		leaderboard = mirror
		denylist = store.NewRedisTokenDenylist(db.RedisClient)
		pingers["redis"] = func(ctx context.Context) error {
			return db.RedisClient.Ping(ctx).Err()
		}
	}

	registry := game.NewRegistry(deps)
	defer registry.Close()

	auth := gateway.NewAuth(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, denylist)
	server := gateway.NewServer(cfg.Server, gateway.Options{
		Store:       st,
		Registry:    registry,
		Hub:         hub,
		Auth:        auth,
		Leaderboard: leaderboard,
		Pingers:     pingers,
		Logger:      logger,
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		registry.Run(ctx, cfg.Game.SweepInterval, cfg.Game.IdleTimeout, cfg.Game.CleanupGrace)
		return nil
	})
	g.Go(func() error {
		return server.Run(ctx)
	})
	return g.Wait()
}

// newLogger 彩色日志，级别来自配置
func newLogger(cfg config.ServerConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if cfg.Debug && level > slog.LevelDebug {
		level = slog.LevelDebug
	}

	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.DateTime,
		AddSource:  cfg.Debug,
	}))
}

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/jwtauth/v5"
	"github.com/gorilla/websocket"
	"github.com/jacl-coder/FlagStorm-Server/config"
	"github.com/jacl-coder/FlagStorm-Server/internal/game"
	"github.com/jacl-coder/FlagStorm-Server/internal/models"
	"github.com/jacl-coder/FlagStorm-Server/internal/store"
)

// 公开排行榜的缓存时间
const leaderboardCacheTTL = time.Second

// LeaderboardReader 排行榜镜像的读取端
type LeaderboardReader interface {
	Top(ctx context.Context, sessionID string, limit int) ([]models.LeaderboardEntry, error)
	PlayerRank(ctx context.Context, sessionID, playerID string) (int, error)
}

// PingFunc 健康检查项
type PingFunc func(ctx context.Context) error

// Options 服务器依赖
type Options struct {
	Store    store.Store
	Registry *game.Registry
	Hub      *Hub
	Auth     *Auth

	// 可选
	Leaderboard LeaderboardReader
	Pingers     map[string]PingFunc
	Logger      *slog.Logger
}

// Server WebSocket 和 REST 接口
type Server struct {
	config      config.ServerConfig
	hub         *Hub
	store       store.Store
	registry    *game.Registry
	auth        *Auth
	operators   *OperatorService
	router      *Router
	leaderboard LeaderboardReader
	pingers     map[string]PingFunc
	limiter     *RateLimiter
	cache       *ResponseCache
	upgrader    websocket.Upgrader
	logger      *slog.Logger

	ctx        context.Context
	httpServer *http.Server
}

// NewServer 创建服务器
func NewServer(cfg config.ServerConfig, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	operators := NewOperatorService(opts.Store, opts.Registry, opts.Auth, logger)
	return &Server{
		config:      cfg,
		hub:         opts.Hub,
		store:       opts.Store,
		registry:    opts.Registry,
		auth:        opts.Auth,
		operators:   operators,
		router:      NewRouter(opts.Hub, opts.Store, opts.Registry, operators, logger),
		leaderboard: opts.Leaderboard,
		pingers:     opts.Pingers,
		limiter:     NewRateLimiter(cfg.RequestsPerMinute),
		cache:       NewResponseCache(leaderboardCacheTTL, 1000),
		upgrader:    newUpgrader(cfg.AllowedOrigins),
		logger:      logger,
		ctx:         context.Background(),
	}
}

func (s *Server) baseContext() context.Context {
	return s.ctx
}

// Handler 创建HTTP处理器
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(requestLogger(s.logger))
	r.Use(securityHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Requested-With"},
		AllowCredentials: false,
		MaxAge:           86400,
	}))

	// WebSocket 连接端点
	r.Get("/ws", s.handleWSConnection)

	// 健康检查端点
	r.Get("/health", s.handleHealth)

	r.Route("/api", func(api chi.Router) {
		api.Use(s.limiter.Middleware)
		api.Use(jsonContentType)

		api.With(s.cache.Middleware).Get("/sessions/{code}/leaderboard", s.handlePublicLeaderboard)
		api.Post("/operator/login", s.handleOperatorLogin)

		api.Group(func(op chi.Router) {
			op.Use(jwtauth.Verifier(s.auth.TokenAuth()))
			op.Use(s.auth.Authenticator)
			s.operatorRoutes(op)
		})
	})

	return r
}

// Run 启动HTTP服务器，ctx 取消后优雅关闭
func (s *Server) Run(ctx context.Context) error {
	s.ctx = ctx
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.limiter.Run(ctx)
	go s.cache.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("服务器启动", "port", s.config.Port)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("HTTP服务器错误: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	return s.Stop()
}

// Stop 停止服务器并关闭所有连接
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.hub.CloseAll()
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("HTTP服务器关闭错误: %w", err)
		}
	}
	s.logger.Info("服务器已停止")
	return nil
}

// handleHealth 健康检查，依赖不可用时返回503
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(s.pingers))
	for name, ping := range s.pingers {
		if err := ping(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	respondJSON(w, status, map[string]interface{}{
		"status":      http.StatusText(status),
		"connections": s.hub.Count(),
		"sessions":    s.registry.Count(),
		"checks":      checks,
	})
}

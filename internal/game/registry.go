package game

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Registry 进程内会话ID到协调器的映射。首次访问时从存储加载，
// 同一会话的并发首次访问只会构造一个协调器。
type Registry struct {
	deps Deps

	coordinators map[string]*Coordinator
	mutex        sync.RWMutex
	group        singleflight.Group

	// 关闭信号
	shutdown  chan struct{}
	closeOnce sync.Once
}

// NewRegistry 创建会话注册表
func NewRegistry(deps Deps) *Registry {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Rules.Attacks == nil {
		deps.Rules = DefaultRules()
	}
	return &Registry{
		deps:         deps,
		coordinators: make(map[string]*Coordinator),
		shutdown:     make(chan struct{}),
	}
}

// Rules 注册表使用的游戏规则
func (r *Registry) Rules() Rules {
	return r.deps.Rules
}

// Get 获取已加载的协调器，不触发加载
func (r *Registry) Get(sessionID string) (*Coordinator, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	c, ok := r.coordinators[sessionID]
	return c, ok
}

// GetOrCreate 获取协调器，不存在时从存储加载
func (r *Registry) GetOrCreate(ctx context.Context, sessionID string) (*Coordinator, error) {
	if c, ok := r.Get(sessionID); ok {
		return c, nil
	}

	select {
	case <-r.shutdown:
		return nil, ErrCoordinatorStopped
	default:
	}

	v, err, _ := r.group.Do(sessionID, func() (interface{}, error) {
		if c, ok := r.Get(sessionID); ok {
			return c, nil
		}
		// 加载结果被多个调用方共享，不受第一个调用方取消的影响
		c, err := loadCoordinator(context.WithoutCancel(ctx), sessionID, r.deps)
		if err != nil {
			return nil, err
		}

		r.mutex.Lock()
		defer r.mutex.Unlock()
		r.coordinators[sessionID] = c
		return c, nil
	})
	if err != nil {
		return nil, fmt.Errorf("加载会话 %s 失败: %w", sessionID, err)
	}
	return v.(*Coordinator), nil
}

// Remove 从内存移除并停止协调器，不修改持久化数据
func (r *Registry) Remove(sessionID string) {
	r.mutex.Lock()
	c, ok := r.coordinators[sessionID]
	delete(r.coordinators, sessionID)
	r.mutex.Unlock()
	r.group.Forget(sessionID)

	if ok {
		c.Stop()
		r.deps.Logger.Info("会话协调器已移除", "session", c.Code())
	}
}

// ClearMirror 会话被删除后清理外部排行榜副本
func (r *Registry) ClearMirror(ctx context.Context, sessionID string) {
	if r.deps.Mirror == nil {
		return
	}
	if err := r.deps.Mirror.Clear(ctx, sessionID); err != nil {
		r.deps.Logger.Warn("清理排行榜镜像失败", "session", sessionID, "error", err)
	}
}

// List 所有已加载的协调器
func (r *Registry) List() []*Coordinator {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	list := make([]*Coordinator, 0, len(r.coordinators))
	for _, c := range r.coordinators {
		list = append(list, c)
	}
	return list
}

// Count 已加载的协调器数量
func (r *Registry) Count() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.coordinators)
}

// Sweep 在每个会话中停用长时间离线的玩家
func (r *Registry) Sweep(ctx context.Context, idleTimeout time.Duration) int {
	total := 0
	for _, c := range r.List() {
		n, err := c.SweepIdle(ctx, idleTimeout)
		if err != nil {
			r.deps.Logger.Warn("清理离线玩家失败", "session", c.Code(), "error", err)
			continue
		}
		total += n
	}
	return total
}

// Cleanup 移除已结束且无人在线的会话，下次访问时会重新加载
func (r *Registry) Cleanup(ctx context.Context, grace time.Duration) int {
	removed := 0
	for _, c := range r.List() {
		ok, err := c.evictable(ctx, grace)
		if err != nil || !ok {
			continue
		}
		r.deps.Logger.Info("清理已结束的会话", "session", c.Code())
		r.Remove(c.SessionID())
		removed++
	}
	return removed
}

// Run 后台维护循环，直到 ctx 取消或注册表关闭
func (r *Registry) Run(ctx context.Context, interval, idleTimeout, grace time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := r.Sweep(ctx, idleTimeout); n > 0 {
				r.deps.Logger.Info("已清理离线玩家", "count", n)
			}
			r.Cleanup(ctx, grace)
		case <-ctx.Done():
			return
		case <-r.shutdown:
			return
		}
	}
}

// Close 停止所有协调器
func (r *Registry) Close() {
	r.closeOnce.Do(func() {
		close(r.shutdown)
	})

	r.mutex.Lock()
	coordinators := r.coordinators
	r.coordinators = make(map[string]*Coordinator)
	r.mutex.Unlock()

	for _, c := range coordinators {
		c.Stop()
	}
	r.deps.Logger.Info("所有会话协调器已停止", "count", len(coordinators))
}

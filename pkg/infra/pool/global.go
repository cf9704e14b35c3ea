package pool

import (
	"context"
	"sync"
	"time"

	"github.com/kart-io/logger"

	pooloptions "github.com/kart-io/discovery-search/pkg/options/pool"
)

// 全局池管理器
var (
	globalManager   *Manager
	globalManagerMu sync.RWMutex
)

// ConfigsFromOptions 根据命令行配置生成各类池配置
func ConfigsFromOptions(opts *pooloptions.Options) map[Type]*Config {
	def := DefaultPoolConfig()
	query := QueryPoolConfig()
	background := BackgroundPoolConfig()

	if opts != nil {
		def.Capacity = opts.DefaultCapacity
		def.ExpiryDuration = opts.ExpiryDuration
		def.Nonblocking = opts.Nonblocking
		query.Capacity = opts.QueryCapacity
		query.ExpiryDuration = opts.ExpiryDuration
		query.Nonblocking = opts.Nonblocking
	}

	return map[Type]*Config{
		DefaultPool:    def,
		QueryPool:      query,
		BackgroundPool: background,
	}
}

// InitGlobal 初始化全局池管理器，重复调用会直接返回
func InitGlobal(opts *pooloptions.Options) error {
	globalManagerMu.Lock()
	defer globalManagerMu.Unlock()

	if globalManager != nil {
		return nil
	}

	manager := NewManager()
	for typ, cfg := range ConfigsFromOptions(opts) {
		if err := manager.Register(typ, cfg); err != nil {
			manager.ReleaseAll()
			return err
		}
	}

	globalManager = manager
	logger.Infow("全局池管理器初始化完成", "pools", manager.List())
	return nil
}

// GetGlobal 获取全局池管理器，未初始化时按默认配置初始化
func GetGlobal() *Manager {
	globalManagerMu.RLock()
	m := globalManager
	globalManagerMu.RUnlock()
	if m != nil {
		return m
	}

	if err := InitGlobal(pooloptions.NewOptions()); err != nil {
		logger.Errorw("自动初始化全局池管理器失败", "error", err)
		return nil
	}

	globalManagerMu.RLock()
	defer globalManagerMu.RUnlock()
	return globalManager
}

// ShutdownGlobal 关闭全局池管理器
func ShutdownGlobal(timeout time.Duration) error {
	globalManagerMu.Lock()
	defer globalManagerMu.Unlock()

	if globalManager == nil {
		return nil
	}
	for _, st := range globalManager.Stats() {
		logger.Infow("关闭工作池", "pool", st.Name,
			"submitted", st.SubmittedTasks, "completed", st.CompletedTasks,
			"rejected", st.RejectedTasks, "panics", st.PanicRecovered)
	}
	err := globalManager.ReleaseAllTimeout(timeout)
	globalManager = nil
	return err
}

// SubmitToType 提交任务到全局管理器中的指定池
func SubmitToType(typ Type, task func()) error {
	m := GetGlobal()
	if m == nil {
		return ErrManagerNotInitialized
	}
	return m.Submit(typ, task)
}

// Go 在指定池中执行 fn，池不可用（已满或未初始化）时退化为普通 goroutine。
// 返回的通道在 fn 完成后关闭。
func Go(ctx context.Context, typ Type, fn func(ctx context.Context)) <-chan struct{} {
	done := make(chan struct{})
	task := func() {
		defer close(done)
		fn(ctx)
	}

	m := GetGlobal()
	if m == nil {
		go task()
		return done
	}
	if err := m.Submit(typ, task); err != nil {
		logger.Warnw("池提交失败，使用独立 goroutine", "pool", typ, "error", err)
		go task()
	}
	return done
}

package discoverysvc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/discovery-search/internal/discovery/biz"
	"github.com/kart-io/discovery-search/internal/discovery/handler"
	"github.com/kart-io/discovery-search/internal/discovery/metrics"
	"github.com/kart-io/discovery-search/internal/discovery/router"
	"github.com/kart-io/discovery-search/internal/pkg/projection"
	"github.com/kart-io/discovery-search/pkg/infra/app"
	"github.com/kart-io/discovery-search/pkg/infra/pool"
	"github.com/kart-io/discovery-search/pkg/infra/tracing"
)

// Server represents the discovery search server.
type Server struct {
	cfg       *Config
	deps      *deps
	http      *http.Server
	reindexer *biz.Reindexer
	tracing   *tracing.Provider
}

// services are the biz layer objects built on top of deps.
type services struct {
	searcher  *biz.Searcher
	facets    *biz.FacetService
	entities  *biz.EntityService
	reindexer *biz.Reindexer
	metrics   *metrics.DiscoveryMetrics
}

// bootstrap runs the steps shared by the server and the reindex command.
func (cfg *Config) bootstrap(ctx context.Context) (*deps, *services, *tracing.Provider, error) {
	// 1. 初始化日志
	cfg.LogOptions.AddInitialField("service.name", Name)
	cfg.LogOptions.AddInitialField("service.version", app.GetVersion())
	if err := cfg.LogOptions.Init(); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	// 2. 初始化链路追踪
	tp, err := tracing.NewProvider(cfg.TracingOptions)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	logger.Infow("Tracing initialized", "enabled", tp.Enabled())

	// 3. 初始化协程池
	if err := pool.InitGlobal(cfg.PoolOptions); err != nil {
		_ = tp.Shutdown(ctx)
		return nil, nil, nil, fmt.Errorf("failed to initialize pools: %w", err)
	}

	// 4. 初始化存储、搜索引擎、重建锁
	d, err := cfg.buildDeps(ctx)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, nil, nil, err
	}

	// 5. 初始化 Biz 层
	return d, cfg.newServices(d), tp, nil
}

func (cfg *Config) newServices(d *deps) *services {
	opts := cfg.DiscoveryOptions
	m := metrics.Get()

	var cache *biz.SearchCache
	if d.redis != nil && cfg.CacheOptions.Enabled {
		cache = biz.NewSearchCache(d.redis.Client(), &biz.SearchCacheConfig{
			Enabled:   true,
			TTL:       cfg.CacheOptions.TTL,
			KeyPrefix: cfg.CacheOptions.KeyPrefix,
		})
		logger.Infow("Search cache initialized", "ttl", cfg.CacheOptions.TTL)
	} else {
		logger.Info("Search cache is disabled")
	}

	entities := d.factory.Entities()
	facets := biz.NewFacetService(entities, opts.Search.FacetsSize, opts.Search.FacetsTTL)

	reindexOpts := []biz.ReindexOption{
		biz.WithMetrics(m),
		biz.WithCacheInvalidator(facets),
	}
	if cache != nil {
		reindexOpts = append(reindexOpts, biz.WithCacheInvalidator(cache))
	}
	reindexer := biz.NewReindexer(entities, d.locker, d.engine, biz.ReindexConfig{
		Alias:       opts.Reindex.Alias,
		IndexPrefix: opts.Reindex.IndexPrefix,
		BatchSize:   opts.Reindex.BatchSize,
		Projection: projection.Options{
			MaxChars:     opts.Reindex.ChunkSize,
			OverlapChars: opts.Reindex.ChunkOverlap,
		},
	}, reindexOpts...)

	searcher := biz.NewSearcher(d.engine, biz.SearchConfig{
		Alias:        opts.Reindex.Alias,
		MaxHits:      opts.Search.MaxHits,
		FragmentSize: opts.Search.FragmentSize,
		Timeout:      opts.Search.Timeout,
	}, cache, m)

	logger.Infow("Discovery services initialized",
		"alias", opts.Reindex.Alias,
		"batch_size", opts.Reindex.BatchSize,
		"cache.enabled", cache != nil,
	)
	return &services{
		searcher:  searcher,
		facets:    facets,
		entities:  biz.NewEntityService(entities),
		reindexer: reindexer,
		metrics:   m,
	}
}

// NewServer initializes and returns a new Server instance.
func (cfg *Config) NewServer(ctx context.Context) (*Server, error) {
	printBanner(cfg)

	d, svc, tp, err := cfg.bootstrap(ctx)
	if err != nil {
		return nil, err
	}

	// 6. 初始化 Handler 层
	handlers := &router.Handlers{
		Health: handler.NewHealthHandler(3*time.Second,
			handler.HealthCheck{Name: "store", Check: d.factory.Ping},
			handler.HealthCheck{Name: "search_engine", Check: d.engine.Ping},
		),
		Search:  handler.NewSearchHandler(svc.searcher, svc.facets),
		Entity:  handler.NewEntityHandler(svc.entities),
		Admin:   handler.NewAdminHandler(svc.reindexer, cfg.DiscoveryOptions.Reindex.Timeout),
		Metrics: handler.NewMetricsHandler(svc.metrics),
	}
	logger.Info("Handler layer initialized")

	// 7. 注册路由
	gin.SetMode(cfg.HTTPOptions.Mode)
	engine := router.New(router.Config{
		RequestTimeout: cfg.HTTPOptions.RequestTimeout,
		AdminToken:     cfg.DiscoveryOptions.Admin.Token,
		RequireToken:   cfg.DiscoveryOptions.Admin.RequireToken,
	}, handlers)

	// 8. 初始化 HTTP 服务器
	srv := &http.Server{
		Addr:         cfg.HTTPOptions.Addr,
		Handler:      engine,
		ReadTimeout:  cfg.HTTPOptions.ReadTimeout,
		WriteTimeout: cfg.HTTPOptions.WriteTimeout,
		IdleTimeout:  cfg.HTTPOptions.IdleTimeout,
	}

	logger.Info("Discovery search service is ready")
	return &Server{cfg: cfg, deps: d, http: srv, reindexer: svc.reindexer, tracing: tp}, nil
}

// Run starts the server and blocks until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	defer s.release()

	errCh := make(chan error, 1)
	go func() {
		logger.Infow("HTTP server listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	if every := s.cfg.DiscoveryOptions.Reindex.Schedule; every > 0 {
		pool.Go(ctx, pool.BackgroundPool, func(ctx context.Context) {
			s.schedule(ctx, every)
		})
	}

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down discovery search service...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.HTTPOptions.ShutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	logger.Info("HTTP server stopped")
	return nil
}

// schedule rebuilds the index periodically. Lock contention with another
// replica is logged and skipped.
func (s *Server) schedule(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	logger.Infow("Scheduled reindex enabled", "interval", every)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runCtx, cancel := context.WithTimeout(ctx, s.cfg.DiscoveryOptions.Reindex.Timeout)
			if _, err := s.reindexer.Reindex(runCtx); err != nil {
				logger.Warnw("Scheduled reindex did not complete", "error", err)
			}
			cancel()
		}
	}
}

func (s *Server) release() {
	s.deps.close()
	_ = pool.ShutdownGlobal(5 * time.Second)
	_ = s.tracing.Shutdown(context.Background())
	_ = logger.Flush()
}

// RunReindex performs one reindex and releases every backend. Used by the
// reindex sub command.
func (cfg *Config) RunReindex(ctx context.Context) (*biz.ReindexResult, error) {
	d, svc, tp, err := cfg.bootstrap(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		d.close()
		_ = pool.ShutdownGlobal(5 * time.Second)
		_ = tp.Shutdown(context.Background())
		_ = logger.Flush()
	}()

	ctx, cancel := context.WithTimeout(ctx, cfg.DiscoveryOptions.Reindex.Timeout)
	defer cancel()
	return svc.reindexer.Reindex(ctx)
}

func printBanner(cfg *Config) {
	fmt.Printf("Starting %s %s...\n", Name, app.GetVersion())
	fmt.Printf("  Store: %s\n", cfg.DiscoveryOptions.Store.Driver)
	fmt.Printf("  Engine: %s\n", cfg.DiscoveryOptions.Engine.Driver)
	fmt.Printf("  Lock: %s\n", cfg.DiscoveryOptions.Lock.Driver)
}

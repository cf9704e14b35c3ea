// Package router provides discovery search service routing.
package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/discovery-search/internal/discovery/handler"
	"github.com/kart-io/discovery-search/pkg/infra/middleware"
)

// Handlers bundles the HTTP handlers of the service.
type Handlers struct {
	Health  *handler.HealthHandler
	Search  *handler.SearchHandler
	Entity  *handler.EntityHandler
	Admin   *handler.AdminHandler
	Metrics *handler.MetricsHandler
}

// Config controls the middleware chain.
type Config struct {
	// RequestTimeout bounds public handlers. Admin routes are not bounded.
	RequestTimeout time.Duration
	AdminToken     string
	RequireToken   bool
}

// skipPaths 不记录访问日志、不创建 span 的探针路径
var skipPaths = []string{"/health", "/metrics"}

// New creates a gin engine with the middleware chain and all routes.
func New(cfg Config, h *Handlers) *gin.Engine {
	engine := gin.New()
	engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Tracing(skipPaths...),
		middleware.Logger(skipPaths...),
	)
	Register(engine, cfg, h)
	return engine
}

// Register registers the discovery routes.
func Register(engine *gin.Engine, cfg Config, h *Handlers) {
	logger.Info("Registering discovery routes...")

	engine.GET("/health", h.Health.Health)
	engine.GET("/metrics", h.Metrics.Metrics)

	v1 := engine.Group("/v1")
	{
		public := v1.Group("", middleware.Timeout(cfg.RequestTimeout))
		public.GET("/search", h.Search.Search)
		public.GET("/facets", h.Search.Facets)
		public.GET("/entity/:id", h.Entity.Get)

		admin := v1.Group("/admin", middleware.AdminToken(cfg.AdminToken, cfg.RequireToken))
		admin.POST("/reindex", h.Admin.Reindex)
		admin.GET("/reindex/status", h.Admin.Status)
	}

	logger.Info("HTTP routes registered")
}

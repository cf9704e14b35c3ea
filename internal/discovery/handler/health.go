package handler

import (
	"context"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	errs "github.com/kart-io/discovery-search/pkg/errors"
	"github.com/kart-io/discovery-search/pkg/infra/logger"
	"github.com/kart-io/discovery-search/pkg/infra/pool"
	"github.com/kart-io/discovery-search/pkg/response"
)

// HealthCheck probes one dependency.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthHandler reports dependency health.
type HealthHandler struct {
	checks  []HealthCheck
	timeout time.Duration
}

// NewHealthHandler creates a HealthHandler. A zero timeout defaults to 3s.
func NewHealthHandler(timeout time.Duration, checks ...HealthCheck) *HealthHandler {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HealthHandler{checks: checks, timeout: timeout}
}

// Health runs all checks concurrently. It responds 200 when every check
// passes and 503 otherwise; the payload maps each check name to its result.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	status := h.Run(ctx)
	if status["ok"] {
		response.OK(c, status)
		return
	}
	response.NewWriter(c).FailWithData(errs.ErrDependencyUnavailable, status)
}

// Run executes the checks on the query pool and collects the results.
func (h *HealthHandler) Run(ctx context.Context) map[string]bool {
	var mu sync.Mutex
	status := make(map[string]bool, len(h.checks)+1)
	ok := true

	done := make([]<-chan struct{}, 0, len(h.checks))
	for _, check := range h.checks {
		done = append(done, pool.Go(ctx, pool.QueryPool, func(ctx context.Context) {
			err := check.Check(ctx)
			if err != nil {
				logger.GetLogger(ctx).Warnw("Health check failed", "check", check.Name, "error", err)
			}
			mu.Lock()
			status[check.Name] = err == nil
			ok = ok && err == nil
			mu.Unlock()
		}))
	}
	for _, ch := range done {
		<-ch
	}

	status["ok"] = ok
	return status
}

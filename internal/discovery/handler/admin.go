package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/discovery-search/pkg/infra/logger"
	"github.com/kart-io/discovery-search/pkg/response"
)

// AdminHandler serves reindex administration.
type AdminHandler struct {
	reindexer Reindexer
	timeout   time.Duration
}

// NewAdminHandler creates an AdminHandler. Each reindex run is bounded by
// timeout; a non-positive timeout leaves it unbounded.
func NewAdminHandler(reindexer Reindexer, timeout time.Duration) *AdminHandler {
	return &AdminHandler{reindexer: reindexer, timeout: timeout}
}

// Reindex handles POST /v1/admin/reindex. The run is synchronous and is not
// cancelled when the client disconnects.
func (h *AdminHandler) Reindex(c *gin.Context) {
	ctx := context.WithoutCancel(c.Request.Context())
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	result, err := h.reindexer.Reindex(ctx)
	if err != nil {
		logger.GetLogger(ctx).Errorw("Reindex request failed", "error", err)
		response.FailWithError(c, err)
		return
	}
	response.OK(c, result)
}

// Status handles GET /v1/admin/reindex/status.
func (h *AdminHandler) Status(c *gin.Context) {
	response.OK(c, h.reindexer.Status())
}

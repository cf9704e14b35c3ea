package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/discovery-search/internal/discovery/metrics"
	"github.com/kart-io/discovery-search/pkg/response"
)

// MetricsHandler exposes service counters.
type MetricsHandler struct {
	metrics *metrics.DiscoveryMetrics
}

// NewMetricsHandler creates a MetricsHandler.
func NewMetricsHandler(m *metrics.DiscoveryMetrics) *MetricsHandler {
	return &MetricsHandler{metrics: m}
}

// Metrics handles GET /metrics. ?format=prometheus returns the text
// exposition format instead of JSON.
func (h *MetricsHandler) Metrics(c *gin.Context) {
	if c.Query("format") == "prometheus" {
		c.Data(http.StatusOK, "text/plain; version=0.0.4; charset=utf-8", []byte(h.metrics.Export()))
		return
	}
	response.OK(c, h.metrics.Snapshot())
}

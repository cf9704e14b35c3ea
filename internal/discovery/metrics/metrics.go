// Package metrics 提供发现搜索服务的业务指标收集。
package metrics

import (
	"sync"
	"time"

	"github.com/kart-io/discovery-search/pkg/observability/metrics"
)

const namespace = "discovery"

// Snapshot is the JSON view served by GET /metrics.
type Snapshot struct {
	Searches          uint64  `json:"searches"`
	SearchErrors      uint64  `json:"search_errors"`
	ShortQueries      uint64  `json:"short_queries"`
	CacheHits         uint64  `json:"cache_hits"`
	CacheMisses       uint64  `json:"cache_misses"`
	ReindexRuns       uint64  `json:"reindex_runs"`
	ReindexFailures   uint64  `json:"reindex_failures"`
	ReindexRejections uint64  `json:"reindex_rejections"`
	LastReindexMs     int64   `json:"last_reindex_ms"`
	LastEntities      int64   `json:"last_indexed_entities"`
	LastChunks        int64   `json:"last_chunk_count"`
	SearchLatencyAvg  float64 `json:"search_latency_avg_ms"`
	UptimeSeconds     float64 `json:"uptime_seconds"`
}

// DiscoveryMetrics 发现搜索业务指标。
type DiscoveryMetrics struct {
	registry *metrics.Registry
	started  time.Time

	searches      metrics.Counter
	searchErrors  metrics.Counter
	shortQueries  metrics.Counter
	cache         metrics.CounterVec
	searchLatency metrics.Histogram

	reindexRuns     metrics.CounterVec
	reindexDuration metrics.Gauge
	lastEntities    metrics.Gauge
	lastChunks      metrics.Gauge
}

var (
	instance *DiscoveryMetrics
	once     sync.Once
)

// Get returns the process wide instance registered in the default registry.
func Get() *DiscoveryMetrics {
	once.Do(func() {
		instance = New(metrics.DefaultRegistry)
	})
	return instance
}

// New creates metrics registered in r.
func New(r *metrics.Registry) *DiscoveryMetrics {
	m := &DiscoveryMetrics{
		registry:        r,
		started:         time.Now(),
		searches:        metrics.NewCounter(namespace+"_searches_total", "Search requests executed."),
		searchErrors:    metrics.NewCounter(namespace+"_search_errors_total", "Search requests that failed."),
		shortQueries:    metrics.NewCounter(namespace+"_short_queries_total", "Searches answered empty because the query was too short."),
		cache:           metrics.NewCounterVec(namespace+"_search_cache_total", "Search result cache lookups."),
		searchLatency:   metrics.NewHistogram(namespace+"_search_duration_seconds", "Search latency.", nil),
		reindexRuns:     metrics.NewCounterVec(namespace+"_reindex_runs_total", "Reindex runs by outcome."),
		reindexDuration: metrics.NewGauge(namespace+"_reindex_last_duration_seconds", "Duration of the last successful reindex."),
		lastEntities:    metrics.NewGauge(namespace+"_reindex_last_entities", "Entities indexed by the last successful reindex."),
		lastChunks:      metrics.NewGauge(namespace+"_reindex_last_chunks", "Chunks indexed by the last successful reindex."),
	}
	for _, metric := range []metrics.Metric{
		m.searches, m.searchErrors, m.shortQueries, m.cache, m.searchLatency,
		m.reindexRuns, m.reindexDuration, m.lastEntities, m.lastChunks,
	} {
		r.Register(metric)
	}
	return m
}

// RecordSearch 记录一次搜索。
func (m *DiscoveryMetrics) RecordSearch(duration time.Duration, err error) {
	m.searches.Inc()
	if err != nil {
		m.searchErrors.Inc()
		return
	}
	m.searchLatency.Observe(duration.Seconds())
}

// RecordShortQuery 记录过短查询。
func (m *DiscoveryMetrics) RecordShortQuery() {
	m.shortQueries.Inc()
}

// RecordCache 记录缓存命中或未命中。
func (m *DiscoveryMetrics) RecordCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cache.With(map[string]string{"result": result}).Inc()
}

// RecordReindex 记录一次重建结果。
func (m *DiscoveryMetrics) RecordReindex(duration time.Duration, entities, chunks int, err error) {
	if err != nil {
		m.reindexRuns.With(map[string]string{"outcome": "failed"}).Inc()
		return
	}
	m.reindexRuns.With(map[string]string{"outcome": "succeeded"}).Inc()
	m.reindexDuration.Set(duration.Seconds())
	m.lastEntities.Set(float64(entities))
	m.lastChunks.Set(float64(chunks))
}

// RecordReindexRejected 记录因锁冲突被拒绝的重建。
func (m *DiscoveryMetrics) RecordReindexRejected() {
	m.reindexRuns.With(map[string]string{"outcome": "rejected"}).Inc()
}

// Snapshot 返回当前统计信息（用于 API）。
func (m *DiscoveryMetrics) Snapshot() Snapshot {
	runs := func(outcome string) uint64 {
		return uint64(m.reindexRuns.With(map[string]string{"outcome": outcome}).Get())
	}

	avg := 0.0
	if n := m.searchLatency.Count(); n > 0 {
		avg = m.searchLatency.Sum() / float64(n) * 1000
	}

	succeeded, failed := runs("succeeded"), runs("failed")
	return Snapshot{
		Searches:          uint64(m.searches.Get()),
		SearchErrors:      uint64(m.searchErrors.Get()),
		ShortQueries:      uint64(m.shortQueries.Get()),
		CacheHits:         uint64(m.cache.With(map[string]string{"result": "hit"}).Get()),
		CacheMisses:       uint64(m.cache.With(map[string]string{"result": "miss"}).Get()),
		ReindexRuns:       succeeded + failed,
		ReindexFailures:   failed,
		ReindexRejections: runs("rejected"),
		LastReindexMs:     int64(m.reindexDuration.Get() * 1000),
		LastEntities:      int64(m.lastEntities.Get()),
		LastChunks:        int64(m.lastChunks.Get()),
		SearchLatencyAvg:  avg,
		UptimeSeconds:     time.Since(m.started).Seconds(),
	}
}

// Export 导出 Prometheus 格式指标。
func (m *DiscoveryMetrics) Export() string {
	return m.registry.Export()
}

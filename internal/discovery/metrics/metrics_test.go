package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kart-io/discovery-search/pkg/observability/metrics"
)

func TestDiscoveryMetrics(t *testing.T) {
	m := New(metrics.NewRegistry())

	m.RecordSearch(20*time.Millisecond, nil)
	m.RecordSearch(40*time.Millisecond, nil)
	m.RecordSearch(0, errors.New("boom"))
	m.RecordShortQuery()
	m.RecordCache(true)
	m.RecordCache(false)
	m.RecordCache(false)
	m.RecordReindex(1500*time.Millisecond, 12, 30, nil)
	m.RecordReindex(0, 0, 0, errors.New("bulk"))
	m.RecordReindexRejected()

	s := m.Snapshot()
	assert.Equal(t, uint64(3), s.Searches)
	assert.Equal(t, uint64(1), s.SearchErrors)
	assert.Equal(t, uint64(1), s.ShortQueries)
	assert.Equal(t, uint64(1), s.CacheHits)
	assert.Equal(t, uint64(2), s.CacheMisses)
	assert.Equal(t, uint64(2), s.ReindexRuns)
	assert.Equal(t, uint64(1), s.ReindexFailures)
	assert.Equal(t, uint64(1), s.ReindexRejections)
	assert.Equal(t, int64(1500), s.LastReindexMs)
	assert.Equal(t, int64(12), s.LastEntities)
	assert.Equal(t, int64(30), s.LastChunks)
	assert.InDelta(t, 30.0, s.SearchLatencyAvg, 0.001)
}

func TestExport(t *testing.T) {
	m := New(metrics.NewRegistry())
	m.RecordReindexRejected()

	out := m.Export()
	assert.Contains(t, out, "# TYPE discovery_reindex_runs_total counter")
	assert.Contains(t, out, `discovery_reindex_runs_total{outcome="rejected"} 1`)
	assert.Contains(t, out, "discovery_searches_total 0")
}

package metrics

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

type baseMetric struct {
	name string
	help string
	typ  MetricType
}

func (m *baseMetric) Name() string     { return m.name }
func (m *baseMetric) Help() string     { return m.help }
func (m *baseMetric) Type() MetricType { return m.typ }

func (m *baseMetric) header(sb *strings.Builder) {
	fmt.Fprintf(sb, "# HELP %s %s\n", m.name, m.help)
	fmt.Fprintf(sb, "# TYPE %s %s\n", m.name, m.typ)
}

// atomicFloat stores float64 bits in a uint64 so it can be updated with CAS.
type atomicFloat struct {
	bits uint64
}

func (f *atomicFloat) load() float64 {
	return math.Float64frombits(atomic.LoadUint64(&f.bits))
}

func (f *atomicFloat) store(v float64) {
	atomic.StoreUint64(&f.bits, math.Float64bits(v))
}

func (f *atomicFloat) add(v float64) {
	for {
		old := atomic.LoadUint64(&f.bits)
		next := math.Float64bits(math.Float64frombits(old) + v)
		if atomic.CompareAndSwapUint64(&f.bits, old, next) {
			return
		}
	}
}

// --- Counter ---

type counter struct {
	baseMetric
	val atomicFloat
}

// NewCounter creates a Counter.
func NewCounter(name, help string) Counter {
	return &counter{baseMetric: baseMetric{name: name, help: help, typ: TypeCounter}}
}

func (c *counter) Inc() { c.Add(1) }

// Add ignores negative deltas.
func (c *counter) Add(v float64) {
	if v < 0 {
		return
	}
	c.val.add(v)
}

func (c *counter) Get() float64 { return c.val.load() }

func (c *counter) Describe() string {
	var sb strings.Builder
	c.header(&sb)
	fmt.Fprintf(&sb, "%s %g\n", c.name, c.Get())
	return sb.String()
}

// --- Gauge ---

type gauge struct {
	baseMetric
	val atomicFloat
}

// NewGauge creates a Gauge.
func NewGauge(name, help string) Gauge {
	return &gauge{baseMetric: baseMetric{name: name, help: help, typ: TypeGauge}}
}

func (g *gauge) Set(v float64) { g.val.store(v) }
func (g *gauge) Add(v float64) { g.val.add(v) }
func (g *gauge) Get() float64  { return g.val.load() }

func (g *gauge) Describe() string {
	var sb strings.Builder
	g.header(&sb)
	fmt.Fprintf(&sb, "%s %g\n", g.name, g.Get())
	return sb.String()
}

// --- Histogram ---

// DefaultBuckets are latency buckets in seconds.
var DefaultBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

type histogram struct {
	baseMetric
	buckets []float64
	counts  []uint64
	sum     atomicFloat
	count   uint64
}

// NewHistogram creates a Histogram. Empty buckets fall back to DefaultBuckets.
func NewHistogram(name, help string, buckets []float64) Histogram {
	if len(buckets) == 0 {
		buckets = DefaultBuckets
	}
	bs := append([]float64(nil), buckets...)
	sort.Float64s(bs)
	return &histogram{
		baseMetric: baseMetric{name: name, help: help, typ: TypeHistogram},
		buckets:    bs,
		counts:     make([]uint64, len(bs)),
	}
}

func (h *histogram) Observe(v float64) {
	atomic.AddUint64(&h.count, 1)
	h.sum.add(v)
	for i, upper := range h.buckets {
		if v <= upper {
			atomic.AddUint64(&h.counts[i], 1)
		}
	}
}

func (h *histogram) Count() uint64 { return atomic.LoadUint64(&h.count) }
func (h *histogram) Sum() float64  { return h.sum.load() }

func (h *histogram) Describe() string {
	var sb strings.Builder
	h.header(&sb)
	for i, upper := range h.buckets {
		fmt.Fprintf(&sb, "%s_bucket{le=\"%g\"} %d\n", h.name, upper, atomic.LoadUint64(&h.counts[i]))
	}
	fmt.Fprintf(&sb, "%s_bucket{le=\"+Inf\"} %d\n", h.name, h.Count())
	fmt.Fprintf(&sb, "%s_sum %g\n", h.name, h.Sum())
	fmt.Fprintf(&sb, "%s_count %d\n", h.name, h.Count())
	return sb.String()
}

// --- CounterVec ---

func formatLabels(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}
	pairs := make([]string, 0, len(labels))
	for k, v := range labels {
		pairs = append(pairs, fmt.Sprintf("%s=%q", k, v))
	}
	sort.Strings(pairs)
	return name + "{" + strings.Join(pairs, ",") + "}"
}

type counterVec struct {
	baseMetric
	children sync.Map // series -> *counter
}

// NewCounterVec creates a CounterVec.
func NewCounterVec(name, help string) CounterVec {
	return &counterVec{baseMetric: baseMetric{name: name, help: help, typ: TypeCounter}}
}

func (v *counterVec) With(labels map[string]string) Counter {
	series := formatLabels(v.name, labels)
	if c, ok := v.children.Load(series); ok {
		return c.(*counter)
	}
	c, _ := v.children.LoadOrStore(series, &counter{
		baseMetric: baseMetric{name: series, help: v.help, typ: TypeCounter},
	})
	return c.(*counter)
}

func (v *counterVec) Describe() string {
	var series []string
	v.children.Range(func(key, _ interface{}) bool {
		series = append(series, key.(string))
		return true
	})
	sort.Strings(series)

	var sb strings.Builder
	v.header(&sb)
	for _, s := range series {
		if c, ok := v.children.Load(s); ok {
			fmt.Fprintf(&sb, "%s %g\n", s, c.(*counter).Get())
		}
	}
	return sb.String()
}

// Package metrics provides lock-free metric primitives and a registry that
// renders them in the Prometheus text format.
package metrics

// MetricType represents the type of metric.
type MetricType string

// Metric type constants.
const (
	TypeCounter   MetricType = "counter"
	TypeGauge     MetricType = "gauge"
	TypeHistogram MetricType = "histogram"
)

// Metric is the base interface for all metrics.
type Metric interface {
	Name() string
	Help() string
	Type() MetricType
	// Describe renders the metric in Prometheus text format.
	Describe() string
}

// Counter only goes up.
type Counter interface {
	Metric
	Inc()
	Add(float64)
	Get() float64
}

// Gauge can go up and down.
type Gauge interface {
	Metric
	Set(float64)
	Add(float64)
	Get() float64
}

// Histogram counts observations into cumulative buckets.
type Histogram interface {
	Metric
	Observe(float64)
	Count() uint64
	Sum() float64
}

// CounterVec is a family of counters partitioned by labels.
type CounterVec interface {
	Metric
	With(labels map[string]string) Counter
}

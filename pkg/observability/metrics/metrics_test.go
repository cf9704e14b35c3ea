package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCounter(t *testing.T) {
	c := NewCounter("test_counter", "Test counter")
	assert.Equal(t, "test_counter", c.Name())
	assert.Equal(t, TypeCounter, c.Type())

	c.Inc()
	c.Add(5)
	c.Add(-3) // 计数器不能递减
	assert.Equal(t, float64(6), c.Get())
	assert.Contains(t, c.Describe(), "test_counter 6\n")
}

func TestGauge(t *testing.T) {
	g := NewGauge("test_gauge", "Test gauge")
	g.Set(10)
	g.Add(-4)
	assert.Equal(t, float64(6), g.Get())
}

func TestHistogram(t *testing.T) {
	h := NewHistogram("test_histogram", "Test histogram", []float64{5, 1, 10})
	h.Observe(2)
	h.Observe(7)
	h.Observe(12)

	assert.Equal(t, uint64(3), h.Count())
	assert.Equal(t, float64(21), h.Sum())

	desc := h.Describe()
	for _, line := range []string{
		`test_histogram_bucket{le="1"} 0`,
		`test_histogram_bucket{le="5"} 1`,
		`test_histogram_bucket{le="10"} 2`,
		`test_histogram_bucket{le="+Inf"} 3`,
		"test_histogram_count 3",
	} {
		assert.Contains(t, desc, line)
	}
}

func TestCounterVec(t *testing.T) {
	cv := NewCounterVec("http_requests", "HTTP Requests")
	cv.With(map[string]string{"method": "GET"}).Inc()
	cv.With(map[string]string{"method": "POST"}).Add(2)
	cv.With(map[string]string{"method": "GET"}).Inc()

	out := cv.Describe()
	assert.Contains(t, out, `http_requests{method="GET"} 2`)
	assert.Contains(t, out, `http_requests{method="POST"} 2`)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	c := NewCounter("test_counter", "help")
	r.Register(c)
	c.Inc()

	out := r.Export()
	assert.Contains(t, out, "# HELP test_counter help")
	assert.Contains(t, out, "test_counter 1")

	r.Reset()
	assert.Empty(t, r.Export())
}

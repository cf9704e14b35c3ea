package logger

import (
	"context"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	logopts "github.com/kart-io/discovery-search/pkg/options/logger"
)

func TestWithRequestID(t *testing.T) {
	tests := []struct {
		name      string
		requestID string
		want      []interface{}
	}{
		{name: "valid request ID", requestID: "req-123", want: []interface{}{"request_id", "req-123"}},
		{name: "empty request ID", requestID: "", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := WithRequestID(context.Background(), tt.requestID)
			assert.Equal(t, tt.want, GetContextFields(ctx))
		})
	}
}

func TestWithFieldsDoesNotMutateParent(t *testing.T) {
	parent := WithFields(context.Background(), "q", "nordic", "type", "startup")
	child := WithFields(parent, "q", "seed", "dangling")

	assert.Equal(t, []interface{}{"q", "nordic", "type", "startup"}, GetContextFields(parent))
	assert.Equal(t, []interface{}{"q", "seed", "type", "startup"}, GetContextFields(child))
	assert.NotNil(t, GetLogger(child))
}

func TestWithTraceFields(t *testing.T) {
	assert.Nil(t, GetContextFields(WithTraceFields(context.Background())))

	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "search")
	defer span.End()

	fields := GetContextFields(WithTraceFields(ctx))
	require.Len(t, fields, 4)
	assert.Equal(t, "span_id", fields[0])
	assert.Equal(t, span.SpanContext().SpanID().String(), fields[1])
	assert.Equal(t, "trace_id", fields[2])
	assert.Equal(t, span.SpanContext().TraceID().String(), fields[3])
}

func TestReloadableLogger(t *testing.T) {
	opts := logopts.NewOptions()
	opts.Level = "INFO"
	require.NoError(t, opts.Init())

	rl := NewReloadableLogger(opts, "")

	v := viper.New()
	v.Set("log.level", "DEBUG")
	v.Set("log.format", opts.Format)
	v.Set("log.engine", opts.Engine)
	require.NoError(t, rl.Reload(v))
	assert.Equal(t, "DEBUG", rl.Level())

	// 非法级别不生效
	v.Set("log.level", "LOUD")
	assert.Error(t, rl.Reload(v))
	assert.Equal(t, "DEBUG", rl.Level())
}

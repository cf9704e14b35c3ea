// Package logger carries per-request log fields (request id, trace ids,
// search parameters) through context.Context and hot-reloads the global
// logger when the config file changes.
package logger

import (
	"context"
	"sort"

	"go.opentelemetry.io/otel/trace"

	"github.com/kart-io/logger"
	"github.com/kart-io/logger/core"
)

type contextKey int

const loggerFieldsKey contextKey = iota

type loggerFields map[string]interface{}

func getLoggerFields(ctx context.Context) loggerFields {
	if lf, ok := ctx.Value(loggerFieldsKey).(loggerFields); ok {
		return lf
	}
	return nil
}

// withFields 拷贝后写入，父 context 中的字段不受影响
func withFields(ctx context.Context, kv map[string]interface{}) context.Context {
	old := getLoggerFields(ctx)
	lf := make(loggerFields, len(old)+len(kv))
	for k, v := range old {
		lf[k] = v
	}
	for k, v := range kv {
		lf[k] = v
	}
	return context.WithValue(ctx, loggerFieldsKey, lf)
}

// WithRequestID adds request_id to the context logger fields.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return withFields(ctx, map[string]interface{}{"request_id": requestID})
}

// WithFields adds key-value pairs to the context logger fields.
// A dangling key without value is ignored.
func WithFields(ctx context.Context, keysAndValues ...interface{}) context.Context {
	if len(keysAndValues) < 2 {
		return ctx
	}

	kv := make(map[string]interface{}, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if key, ok := keysAndValues[i].(string); ok {
			kv[key] = keysAndValues[i+1]
		}
	}
	return withFields(ctx, kv)
}

// WithTraceFields copies trace_id / span_id of the active span into the
// context logger fields.
func WithTraceFields(ctx context.Context) context.Context {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return ctx
	}
	return withFields(ctx, map[string]interface{}{
		"trace_id": spanCtx.TraceID().String(),
		"span_id":  spanCtx.SpanID().String(),
	})
}

// GetContextFields returns the context fields as a key-value slice sorted by key.
func GetContextFields(ctx context.Context) []interface{} {
	lf := getLoggerFields(ctx)
	if len(lf) == 0 {
		return nil
	}

	keys := make([]string, 0, len(lf))
	for k := range lf {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]interface{}, 0, len(keys)*2)
	for _, k := range keys {
		out = append(out, k, lf[k])
	}
	return out
}

// GetLogger returns the global logger enriched with the context fields.
func GetLogger(ctx context.Context) core.Logger {
	fields := GetContextFields(ctx)
	if len(fields) == 0 {
		return logger.Global()
	}
	return logger.Global().With(fields...)
}

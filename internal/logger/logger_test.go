package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"job-annotation-service/internal/config"
)

func TestTraceHandler_AddsSpanIDs(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Default()
	cfg.Env = "production"
	log := slog.New(newHandler(cfg, &buf)).With("component", "test")

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	log.InfoContext(ctx, "annotations loaded", "job_id", 7)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", rec["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", rec["span_id"])
	assert.Equal(t, "test", rec["component"])
	assert.EqualValues(t, 7, rec["job_id"])
}

func TestLevel(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, slog.LevelDebug, level(cfg))

	cfg.Env = "production"
	assert.Equal(t, slog.LevelInfo, level(cfg))

	cfg.LogLevel = "WARN"
	assert.Equal(t, slog.LevelWarn, level(cfg))
}

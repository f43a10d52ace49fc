// Package logger configures the process-wide slog logger.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/trace"

	"job-annotation-service/internal/config"
)

// Setup installs the default logger: text in development, JSON in production,
// the OTel bridge when an OTLP endpoint is configured in production.
func Setup(cfg config.Config) {
	slog.SetDefault(slog.New(newHandler(cfg, os.Stdout)))
}

func newHandler(cfg config.Config, w io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{Level: level(cfg)}

	switch {
	case cfg.IsProduction() && cfg.OTel.Enabled():
		return otelslog.NewHandler(
			cfg.OTel.ServiceName,
			otelslog.WithLoggerProvider(global.GetLoggerProvider()),
		)
	case cfg.IsProduction():
		return NewTraceHandler(slog.NewJSONHandler(w, opts))
	default:
		return NewTraceHandler(slog.NewTextHandler(w, opts))
	}
}

func level(cfg config.Config) slog.Level {
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "info":
		return slog.LevelInfo
	}
	if cfg.IsDevelopment() {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// TraceHandler adds trace_id and span_id of the active span.
type TraceHandler struct {
	slog.Handler
}

func NewTraceHandler(h slog.Handler) *TraceHandler {
	return &TraceHandler{Handler: h}
}

func (h *TraceHandler) Handle(ctx context.Context, r slog.Record) error {
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return h.Handler.Handle(ctx, r)
}

func (h *TraceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TraceHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *TraceHandler) WithGroup(name string) slog.Handler {
	return &TraceHandler{Handler: h.Handler.WithGroup(name)}
}

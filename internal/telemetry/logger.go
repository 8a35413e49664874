// Package telemetry wires zerolog to OpenTelemetry tracing: every log line
// carries the active span's trace/span id, and span helpers exist for each
// pipeline phase.
package telemetry

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTELHook adds trace and span IDs to every log entry.
type OTELHook struct{}

func (h OTELHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	ctx := e.GetCtx()
	if ctx == nil {
		return
	}

	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return
	}

	e.Str("trace_id", span.SpanContext().TraceID().String())
	e.Str("span_id", span.SpanContext().SpanID().String())

	if level == zerolog.ErrorLevel {
		span.SetStatus(codes.Error, msg)
	}
}

// Logger wraps zerolog with OTEL integration.
type Logger struct {
	zerolog.Logger
}

// NewLogger creates a logger for the named service, at the given level
// ("debug", "info", "warn", "error"; defaults to info on a bad value).
func NewLogger(service, level string) *Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	logger := zerolog.New(os.Stdout).
		Level(lvl).
		With().
		Timestamp().
		Str("service", service).
		Logger().
		Hook(OTELHook{})

	return &Logger{Logger: logger}
}

// WithContext returns a logger bound to ctx, for trace propagation.
func (l *Logger) WithContext(ctx context.Context) *zerolog.Logger {
	logger := l.Logger.With().Ctx(ctx).Logger()
	return &logger
}

// LogSpanStart logs the start of a pipeline phase span.
func (l *Logger) LogSpanStart(ctx context.Context, spanName string, attrs ...attribute.KeyValue) {
	logger := l.WithContext(ctx)

	event := logger.Info().Str("span_name", spanName)
	for _, attr := range attrs {
		event = addAttributeToEvent(event, attr)
	}
	event.Msg("phase started")
}

// LogSpanEnd logs the end of a pipeline phase span.
func (l *Logger) LogSpanEnd(ctx context.Context, spanName string, err error) {
	logger := l.WithContext(ctx)

	if err != nil {
		logger.Error().
			Err(err).
			Str("span_name", spanName).
			Msg("phase failed")
	} else {
		logger.Debug().
			Str("span_name", spanName).
			Msg("phase completed")
	}
}

func addAttributeToEvent(event *zerolog.Event, attr attribute.KeyValue) *zerolog.Event {
	key := string(attr.Key)

	switch attr.Value.Type() {
	case attribute.STRING:
		return event.Str(key, attr.Value.AsString())
	case attribute.INT64:
		return event.Int64(key, attr.Value.AsInt64())
	case attribute.FLOAT64:
		return event.Float64(key, attr.Value.AsFloat64())
	case attribute.BOOL:
		return event.Bool(key, attr.Value.AsBool())
	default:
		return event.Str(key, attr.Value.AsString())
	}
}

// Convenience methods for crawl-phase logging.

func (l *Logger) LogCrawlStart(ctx context.Context, accountCount int) {
	l.WithContext(ctx).Info().
		Int("account_count", accountCount).
		Str("operation", "crawl").
		Msg("starting crawl")
}

func (l *Logger) LogCrawlComplete(ctx context.Context, resourceCount, edgeCount int, durationMS float64) {
	l.WithContext(ctx).Info().
		Int("resources", resourceCount).
		Int("edges", edgeCount).
		Float64("duration_ms", durationMS).
		Str("operation", "crawl").
		Msg("crawl completed")
}

func (l *Logger) LogPhaseError(ctx context.Context, phase string, err error) {
	l.WithContext(ctx).Error().
		Err(err).
		Str("phase", phase).
		Msg("phase reported an error")
}

func (l *Logger) LogItemFailures(ctx context.Context, phase string, count int) {
	l.WithContext(ctx).Warn().
		Str("phase", phase).
		Int("failed_items", count).
		Msg("phase completed with per-item failures")
}

func (l *Logger) LogBatchOperation(ctx context.Context, operation string, batchSize int) {
	l.WithContext(ctx).Info().
		Str("operation", operation).
		Int("batch_size", batchSize).
		Msg("processing batch")
}

package editor

import (
	"context"
	"log/slog"
	"sort"
)

// Telemetry records editor events for observability.
type Telemetry interface {
	Record(ctx context.Context, event string, payload map[string]any)
}

type noopTelemetry struct{}

func (noopTelemetry) Record(context.Context, string, map[string]any) {}

func normalizeTelemetry(t Telemetry) Telemetry {
	if t == nil {
		return noopTelemetry{}
	}
	return t
}

// TelemetryFunc adapts a function into Telemetry.
type TelemetryFunc func(ctx context.Context, event string, payload map[string]any)

func (fn TelemetryFunc) Record(ctx context.Context, event string, payload map[string]any) {
	fn(ctx, event, payload)
}

type slogTelemetry struct {
	logger *slog.Logger
	level  slog.Level
}

// NewSlogTelemetry writes every event as a structured log line at level.
func NewSlogTelemetry(logger *slog.Logger, level slog.Level) Telemetry {
	if logger == nil {
		logger = slog.Default()
	}
	return slogTelemetry{logger: logger, level: level}
}

func (t slogTelemetry) Record(ctx context.Context, event string, payload map[string]any) {
	if ctx == nil {
		ctx = context.Background()
	}
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	attrs := make([]slog.Attr, 0, len(keys)+1)
	attrs = append(attrs, slog.String("event", event))
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, payload[k]))
	}
	if meta := activityContextFrom(ctx); meta.ActorID != "" {
		attrs = append(attrs, slog.String("actor_id", meta.ActorID))
	}
	t.logger.LogAttrs(ctx, t.level, "report builder event", attrs...)
}

package otel

import (
	"context"
	"sort"
	"time"

	otellog "go.opentelemetry.io/otel/log"

	"danus-dashboard/backend/internal/telemetry"
)

const loggerName = "danus-dashboard/auth-events"

// recordEmitter is the part of otellog.Logger the event emitter uses.
type recordEmitter interface {
	Emit(ctx context.Context, rec otellog.Record)
}

// NewEventEmitter returns an EventEmitter that sends events as OTel log records via provider.
// A nil provider yields a no-op emitter.
func NewEventEmitter(provider otellog.LoggerProvider) telemetry.EventEmitter {
	if provider == nil {
		return noopEmitter{}
	}
	return NewEventEmitterWithLogger(provider.Logger(loggerName))
}

// NewEventEmitterWithLogger wraps an existing logger.
func NewEventEmitterWithLogger(logger recordEmitter) telemetry.EventEmitter {
	return &logEmitter{logger: logger}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *telemetry.Event) error { return nil }

type logEmitter struct {
	logger recordEmitter
}

// Emit converts the event to one log record. The body is the event type; ids and attrs become attributes.
func (e *logEmitter) Emit(ctx context.Context, event *telemetry.Event) error {
	if event == nil {
		return nil
	}
	var rec otellog.Record
	ts := event.CreatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	rec.SetTimestamp(ts)
	rec.SetObservedTimestamp(time.Now().UTC())
	rec.SetSeverity(severityFor(event.Type))
	rec.SetBody(otellog.StringValue(event.Type))
	rec.AddAttributes(otellog.String("event_type", event.Type))
	for _, kv := range []struct{ k, v string }{
		{"user_id", event.UserID},
		{"org_id", event.OrgID},
		{"session_id", event.SessionID},
		{"source", event.Source},
		{"client_ip", event.IP},
	} {
		if kv.v != "" {
			rec.AddAttributes(otellog.String(kv.k, kv.v))
		}
	}
	keys := make([]string, 0, len(event.Attrs))
	for k := range event.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		rec.AddAttributes(otellog.String("attr."+k, event.Attrs[k]))
	}
	e.logger.Emit(ctx, rec)
	return nil
}

func severityFor(eventType string) otellog.Severity {
	switch eventType {
	case telemetry.EventSignInFailed, telemetry.EventRoleDenied:
		return otellog.SeverityWarn
	default:
		return otellog.SeverityInfo
	}
}

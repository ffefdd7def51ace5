package otel

import (
	"context"
	"testing"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"danus-dashboard/backend/internal/telemetry"
)

// recordCapture stores the last Record passed to Emit for assertion.
type recordCapture struct {
	rec otellog.Record
	n   int
}

func (r *recordCapture) Emit(ctx context.Context, rec otellog.Record) {
	r.rec = rec
	r.n++
}

func attrsOf(rec otellog.Record) map[string]string {
	attrs := make(map[string]string)
	rec.WalkAttributes(func(kv otellog.KeyValue) bool {
		attrs[kv.Key] = kv.Value.AsString()
		return true
	})
	return attrs
}

func TestNewEventEmitter_NilProvider_ReturnsNoop(t *testing.T) {
	em := NewEventEmitter(nil)
	if err := em.Emit(context.Background(), telemetry.NewEvent(telemetry.EventSignedIn, "u1")); err != nil {
		t.Errorf("noop Emit: %v", err)
	}
}

func TestNewEventEmitter_SDKProvider(t *testing.T) {
	provider := sdklog.NewLoggerProvider()
	defer func() { _ = provider.Shutdown(context.Background()) }()
	em := NewEventEmitter(provider)
	if err := em.Emit(context.Background(), nil); err != nil {
		t.Errorf("Emit(nil): %v", err)
	}
	if err := em.Emit(context.Background(), telemetry.NewEvent(telemetry.EventSignedOut, "u1")); err != nil {
		t.Errorf("Emit: %v", err)
	}
}

func TestEmit_AttributeMapping(t *testing.T) {
	capture := &recordCapture{}
	em := NewEventEmitterWithLogger(capture)
	event := &telemetry.Event{
		Type:      telemetry.EventSignedIn,
		UserID:    "user1",
		SessionID: "sess1",
		Source:    "http",
		IP:        "10.0.0.1",
		Attrs:     map[string]string{"email": "dana@example.com"},
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	if err := em.Emit(context.Background(), event); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	rec := capture.rec
	if rec.Body().AsString() != telemetry.EventSignedIn {
		t.Errorf("body = %q", rec.Body().AsString())
	}
	if !rec.Timestamp().Equal(event.CreatedAt) {
		t.Errorf("timestamp = %v, want %v", rec.Timestamp(), event.CreatedAt)
	}
	if rec.Severity() != otellog.SeverityInfo {
		t.Errorf("severity = %v, want info", rec.Severity())
	}
	want := map[string]string{
		"event_type": telemetry.EventSignedIn, "user_id": "user1", "session_id": "sess1",
		"source": "http", "client_ip": "10.0.0.1", "attr.email": "dana@example.com",
	}
	attrs := attrsOf(rec)
	for k, v := range want {
		if attrs[k] != v {
			t.Errorf("attr %q = %q, want %q", k, attrs[k], v)
		}
	}
	if _, ok := attrs["org_id"]; ok {
		t.Error("empty org_id should not be emitted")
	}
}

func TestEmit_FailureIsWarn(t *testing.T) {
	capture := &recordCapture{}
	em := NewEventEmitterWithLogger(capture)
	if err := em.Emit(context.Background(), telemetry.NewEvent(telemetry.EventSignInFailed, "")); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if capture.rec.Severity() != otellog.SeverityWarn {
		t.Errorf("severity = %v, want warn", capture.rec.Severity())
	}
}

func TestEmit_ZeroTimestamp_SetsCurrentTime(t *testing.T) {
	capture := &recordCapture{}
	em := NewEventEmitterWithLogger(capture)
	before := time.Now().UTC()
	if err := em.Emit(context.Background(), &telemetry.Event{Type: "x"}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if capture.rec.Timestamp().Before(before) {
		t.Errorf("timestamp %v before %v", capture.rec.Timestamp(), before)
	}
}

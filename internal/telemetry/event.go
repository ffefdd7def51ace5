// Package telemetry carries authentication and authorization events from the request path
// to best-effort sinks (OpenTelemetry logs, Kafka, the audit log).
package telemetry

import (
	"context"
	"time"
)

// Event types emitted by the service.
const (
	EventRegistered        = "auth.registered"
	EventSignedIn          = "auth.signed_in"
	EventSignInFailed      = "auth.sign_in_failed"
	EventSignedOut         = "auth.signed_out"
	EventGuardRedirect     = "session.guard_redirect"
	EventRoleDenied        = "rbac.denied"
	EventCapabilityDecided = "consent.decided"
)

// Event is one auth/session/authorization occurrence. Only Type is required.
type Event struct {
	Type      string            `json:"type"`
	UserID    string            `json:"user_id,omitempty"`
	OrgID     string            `json:"org_id,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
	Source    string            `json:"source,omitempty"`
	IP        string            `json:"ip,omitempty"`
	Attrs     map[string]string `json:"attrs,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// NewEvent returns an event of the given type stamped with the current time.
func NewEvent(eventType, userID string) *Event {
	return &Event{Type: eventType, UserID: userID, CreatedAt: time.Now().UTC()}
}

// With sets one attribute and returns e for chaining.
func (e *Event) With(key, value string) *Event {
	if e.Attrs == nil {
		e.Attrs = make(map[string]string)
	}
	e.Attrs[key] = value
	return e
}

// EventEmitter sends events to a sink. Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *Event) error
}

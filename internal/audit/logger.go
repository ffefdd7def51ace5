package audit

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"

	"danus-dashboard/backend/internal/audit/domain"
	auditrepo "danus-dashboard/backend/internal/audit/repository"
	"danus-dashboard/backend/internal/telemetry"
)

// SentinelOrgID is the org_id used for audit events that have no organization (sign-in, sign-out).
const SentinelOrgID = "_system"

// IPExtractor returns the client IP from the request context.
type IPExtractor func(context.Context) string

// AuditLogger writes a single audit event with explicit action/resource.
// LogEvent is best-effort: failures are logged and do not affect the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, orgID, userID, action, resource, metadata string)
}

// Logger persists audit entries through the repository. It also implements
// telemetry.EventEmitter so auth events can be recorded directly or by the Kafka worker.
type Logger struct {
	repo        auditrepo.Repository
	ipExtractor IPExtractor
	now         func() time.Time
}

// NewLogger returns a Logger that persists to repo. ipExtractor may be nil; then IP is "unknown"
// unless the event carries one.
func NewLogger(repo auditrepo.Repository, ipExtractor IPExtractor) *Logger {
	return &Logger{repo: repo, ipExtractor: ipExtractor, now: time.Now}
}

// LogEvent writes one audit log entry. Errors are logged and not returned.
func (l *Logger) LogEvent(ctx context.Context, orgID, userID, action, resource, metadata string) {
	entry := l.entry(ctx, orgID, userID, action, resource, "")
	entry.Metadata = metadata
	if err := l.write(ctx, entry); err != nil {
		log.Printf("audit: failed to log event %s/%s: %v", action, resource, err)
	}
}

// Emit records a telemetry event as an audit entry and returns the write error.
func (l *Logger) Emit(ctx context.Context, event *telemetry.Event) error {
	if event == nil {
		return nil
	}
	ar := ActionForEvent(event.Type)
	entry := l.entry(ctx, event.OrgID, event.UserID, ar.Action, ar.Resource, event.IP)
	if !event.CreatedAt.IsZero() {
		entry.CreatedAt = event.CreatedAt.UTC()
	}
	meta := make(map[string]string, len(event.Attrs)+2)
	for k, v := range event.Attrs {
		meta[k] = v
	}
	if event.SessionID != "" {
		meta["session_id"] = event.SessionID
	}
	if event.Source != "" {
		meta["source"] = event.Source
	}
	if len(meta) > 0 {
		b, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		entry.Metadata = string(b)
	}
	return l.write(ctx, entry)
}

func (l *Logger) entry(ctx context.Context, orgID, userID, action, resource, ip string) *domain.AuditLog {
	if ip == "" {
		ip = "unknown"
		if l.ipExtractor != nil {
			ip = l.ipExtractor(ctx)
		}
	}
	if orgID == "" {
		orgID = SentinelOrgID
	}
	return &domain.AuditLog{
		ID:        uuid.New().String(),
		OrgID:     orgID,
		UserID:    userID,
		Action:    action,
		Resource:  resource,
		IP:        ip,
		CreatedAt: l.now().UTC(),
	}
}

func (l *Logger) write(ctx context.Context, entry *domain.AuditLog) error {
	if l == nil || l.repo == nil {
		return nil
	}
	if entry.Metadata == "" {
		entry.Metadata = "{}"
	}
	return l.repo.Create(ctx, entry)
}

package domain

import "time"

// AuditLog is one recorded security-relevant action.
type AuditLog struct {
	ID        string
	OrgID     string // SentinelOrgID when the action is not organization-scoped
	UserID    string // empty for anonymous actions such as a failed sign-in
	Action    string
	Resource  string
	IP        string
	Metadata  string // JSON object; "{}" when empty
	CreatedAt time.Time
}

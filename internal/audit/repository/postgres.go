package repository

import (
	"context"
	"database/sql"

	"danus-dashboard/backend/internal/audit/domain"
)

const auditColumns = `id, org_id, user_id, action, resource, ip, metadata, created_at`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an audit log repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts the entry. The entry must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.AuditLog) error {
	metadata := a.Metadata
	if metadata == "" {
		metadata = "{}"
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_logs (`+auditColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.OrgID, sql.NullString{String: a.UserID, Valid: a.UserID != ""},
		a.Action, a.Resource, a.IP, metadata, a.CreatedAt)
	return err
}

// ListByUser returns the newest entries for the user.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string, limit int32) ([]*domain.AuditLog, error) {
	return r.list(ctx, `SELECT `+auditColumns+` FROM audit_logs WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`, userID, limit)
}

// ListByOrg returns entries for the organization, newest first, paginated.
func (r *PostgresRepository) ListByOrg(ctx context.Context, orgID string, limit, offset int32) ([]*domain.AuditLog, error) {
	return r.list(ctx, `SELECT `+auditColumns+` FROM audit_logs WHERE org_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, orgID, limit, offset)
}

func (r *PostgresRepository) list(ctx context.Context, q string, args ...any) ([]*domain.AuditLog, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.AuditLog
	for rows.Next() {
		var (
			a      domain.AuditLog
			userID sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.OrgID, &userID, &a.Action, &a.Resource, &a.IP, &a.Metadata, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.UserID = userID.String
		out = append(out, &a)
	}
	return out, rows.Err()
}

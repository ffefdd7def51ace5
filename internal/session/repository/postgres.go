package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"danus-dashboard/backend/internal/session/domain"
)

const sessionColumns = `id, user_id, expires_at, revoked_at, last_seen_at, ip_address, created_at`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the session for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	s, err := scanSession(r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

// ListByUser returns every non-revoked session for the user, newest first.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE user_id = $1 AND revoked_at IS NULL ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Create persists the session to the database. The session must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (`+sessionColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		s.ID, s.UserID, s.ExpiresAt, timeToNullTime(s.RevokedAt), timeToNullTime(s.LastSeenAt),
		sql.NullString{String: s.IPAddress, Valid: s.IPAddress != ""}, s.CreatedAt)
	return err
}

// Revoke marks the session revoked. Revoking an already revoked session keeps the first timestamp.
func (r *PostgresRepository) Revoke(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`, id, time.Now().UTC())
	return err
}

// RevokeAllSessionsByUser revokes every live session of the user.
func (r *PostgresRepository) RevokeAllSessionsByUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = $2 WHERE user_id = $1 AND revoked_at IS NULL`, userID, time.Now().UTC())
	return err
}

// UpdateLastSeen sets last_seen_at for the session.
func (r *PostgresRepository) UpdateLastSeen(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE sessions SET last_seen_at = $2 WHERE id = $1`, id, at)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(sc scanner) (*domain.Session, error) {
	var (
		s                 domain.Session
		revoked, lastSeen sql.NullTime
		ip                sql.NullString
	)
	if err := sc.Scan(&s.ID, &s.UserID, &s.ExpiresAt, &revoked, &lastSeen, &ip, &s.CreatedAt); err != nil {
		return nil, err
	}
	s.RevokedAt = nullTimeToPtr(revoked)
	s.LastSeenAt = nullTimeToPtr(lastSeen)
	s.IPAddress = ip.String
	return &s, nil
}

func timeToNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullTimeToPtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time
	return &t
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"danus-dashboard/backend/internal/membership/domain"
)

const membershipColumns = `id, user_id, org_id, role, created_at`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a membership repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// FindByUserAndOrg returns the memberships for the given user and org; empty when the user is not a member.
// It returns an error only for database failures or rows with an unknown role.
func (r *PostgresRepository) FindByUserAndOrg(ctx context.Context, userID, orgID string) ([]*domain.Membership, error) {
	return r.query(ctx, `SELECT `+membershipColumns+` FROM memberships WHERE user_id = $1 AND org_id = $2`, userID, orgID)
}

// ListByOrg returns all memberships for the given org. Returns (nil, error) only on database errors.
func (r *PostgresRepository) ListByOrg(ctx context.Context, orgID string) ([]*domain.Membership, error) {
	return r.query(ctx, `SELECT `+membershipColumns+` FROM memberships WHERE org_id = $1 ORDER BY created_at`, orgID)
}

// ListByUser returns all memberships held by the given user.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Membership, error) {
	return r.query(ctx, `SELECT `+membershipColumns+` FROM memberships WHERE user_id = $1 ORDER BY created_at`, userID)
}

// Create persists the membership to the database. The membership must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, m *domain.Membership) error {
	if err := m.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO memberships (id, user_id, org_id, role, created_at) VALUES ($1, $2, $3, $4, $5)`,
		m.ID, m.UserID, m.OrgID, m.Role.String(), m.CreatedAt)
	return err
}

// UpdateRole sets the role for the given user and org and returns the updated membership, or nil if none exists.
func (r *PostgresRepository) UpdateRole(ctx context.Context, userID, orgID string, role domain.Role) (*domain.Membership, error) {
	if !role.Valid() {
		return nil, domain.ErrUnknownRole
	}
	row := r.db.QueryRowContext(ctx,
		`UPDATE memberships SET role = $3 WHERE user_id = $1 AND org_id = $2 RETURNING `+membershipColumns,
		userID, orgID, role.String())
	m, err := scanMembership(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}

// DeleteByUserAndOrg removes the membership for the given user and org. Missing rows are not an error.
func (r *PostgresRepository) DeleteByUserAndOrg(ctx context.Context, userID, orgID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM memberships WHERE user_id = $1 AND org_id = $2`, userID, orgID)
	return err
}

func (r *PostgresRepository) query(ctx context.Context, q string, args ...any) ([]*domain.Membership, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMembership(s scanner) (*domain.Membership, error) {
	var (
		m    domain.Membership
		role string
	)
	if err := s.Scan(&m.ID, &m.UserID, &m.OrgID, &role, &m.CreatedAt); err != nil {
		return nil, err
	}
	parsed, err := domain.ParseRole(role)
	if err != nil {
		return nil, fmt.Errorf("membership %s: %w", m.ID, err)
	}
	m.Role = parsed
	return &m, nil
}

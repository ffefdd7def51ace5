package repository

import (
	"context"
	"database/sql"
	"errors"

	"danus-dashboard/backend/internal/organization/domain"
)

const orgColumns = `id, name, description, target, raised, latitude, longitude, status, created_at`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an organization repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetOrganizationByID returns the organization for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetOrganizationByID(ctx context.Context, id string) (*domain.Org, error) {
	o, err := scanOrg(r.db.QueryRowContext(ctx, `SELECT `+orgColumns+` FROM organizations WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return o, nil
}

// ListOrganizations returns every active organization ordered by name.
func (r *PostgresRepository) ListOrganizations(ctx context.Context) ([]*domain.Org, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+orgColumns+` FROM organizations WHERE status = 'active' ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Org
	for rows.Next() {
		o, err := scanOrg(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// CreateOrganization persists the organization to the database. The organization must have ID set.
func (r *PostgresRepository) CreateOrganization(ctx context.Context, o *domain.Org) error {
	if err := o.Validate(); err != nil {
		return err
	}
	lat, lng := locationToNull(o.Location)
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO organizations (`+orgColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		o.ID, o.Name, o.Description, o.Target, o.Raised, lat, lng, string(o.Status), o.CreatedAt)
	return err
}

// UpdateOrganization updates the mutable fields of the organization.
func (r *PostgresRepository) UpdateOrganization(ctx context.Context, o *domain.Org) error {
	if err := o.Validate(); err != nil {
		return err
	}
	lat, lng := locationToNull(o.Location)
	_, err := r.db.ExecContext(ctx,
		`UPDATE organizations SET name = $2, description = $3, target = $4, raised = $5, latitude = $6, longitude = $7, status = $8 WHERE id = $1`,
		o.ID, o.Name, o.Description, o.Target, o.Raised, lat, lng, string(o.Status))
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOrg(s scanner) (*domain.Org, error) {
	var (
		o        domain.Org
		lat, lng sql.NullFloat64
		status   string
	)
	if err := s.Scan(&o.ID, &o.Name, &o.Description, &o.Target, &o.Raised, &lat, &lng, &status, &o.CreatedAt); err != nil {
		return nil, err
	}
	o.Status = domain.OrgStatus(status)
	if lat.Valid && lng.Valid {
		o.Location = &domain.Location{Latitude: lat.Float64, Longitude: lng.Float64}
	}
	return &o, nil
}

func locationToNull(l *domain.Location) (sql.NullFloat64, sql.NullFloat64) {
	if l == nil {
		return sql.NullFloat64{}, sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: l.Latitude, Valid: true}, sql.NullFloat64{Float64: l.Longitude, Valid: true}
}

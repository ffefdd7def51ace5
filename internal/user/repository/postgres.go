package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"danus-dashboard/backend/internal/user/domain"
)

const userColumns = `id, email, name, is_entrepreneur, status, created_at, updated_at`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a user repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByEmail returns the user with the given email, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

// Create persists the user to the database. The user must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, name, is_entrepreneur, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, u.Email, u.Name, u.IsEntrepreneur, string(u.Status), u.CreatedAt, u.UpdatedAt)
	return err
}

// Update updates name, entrepreneur flag and status. UpdatedAt is set to now.
func (r *PostgresRepository) Update(ctx context.Context, u *domain.User) error {
	u.UpdatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET name = $2, is_entrepreneur = $3, status = $4, updated_at = $5 WHERE id = $1`,
		u.ID, u.Name, u.IsEntrepreneur, string(u.Status), u.UpdatedAt)
	return err
}

func (r *PostgresRepository) getOne(ctx context.Context, q string, arg string) (*domain.User, error) {
	var (
		u      domain.User
		status string
	)
	err := r.db.QueryRowContext(ctx, q, arg).Scan(&u.ID, &u.Email, &u.Name, &u.IsEntrepreneur, &status, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	u.Status = domain.UserStatus(status)
	return &u, nil
}

package repository

import (
	"context"

	"danus-dashboard/backend/internal/membership/domain"
)

// Repository defines persistence for memberships.
//
// Lookups by (user, org) return every matching row so callers can detect a violated
// uniqueness invariant instead of silently taking the first row.
type Repository interface {
	FindByUserAndOrg(ctx context.Context, userID, orgID string) ([]*domain.Membership, error)
	ListByOrg(ctx context.Context, orgID string) ([]*domain.Membership, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Membership, error)
	Create(ctx context.Context, m *domain.Membership) error
	UpdateRole(ctx context.Context, userID, orgID string, role domain.Role) (*domain.Membership, error)
	DeleteByUserAndOrg(ctx context.Context, userID, orgID string) error
}

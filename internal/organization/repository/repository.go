package repository

import (
	"context"

	"danus-dashboard/backend/internal/organization/domain"
)

// Repository defines persistence for organizations.
type Repository interface {
	GetOrganizationByID(ctx context.Context, id string) (*domain.Org, error)
	ListOrganizations(ctx context.Context) ([]*domain.Org, error)
	CreateOrganization(ctx context.Context, o *domain.Org) error
	UpdateOrganization(ctx context.Context, o *domain.Org) error
}

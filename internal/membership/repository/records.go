package repository

import (
	"context"
	"fmt"

	"danus-dashboard/backend/internal/membership/domain"
	"danus-dashboard/backend/internal/recordstore"
)

// CollectionMemberships is the record-service collection holding membership rows.
const CollectionMemberships = "memberships"

// lookupLimit bounds (user, org) lookups. More than one row is already an invariant violation,
// so a small page is enough to detect it.
const lookupLimit = 2

// RecordClient is the subset of the record-service client used by RecordsRepository.
type RecordClient interface {
	List(ctx context.Context, collection string, opts recordstore.ListOptions) (*recordstore.ListResult, error)
	ListAll(ctx context.Context, collection string, filter recordstore.Filter, limit int) ([]recordstore.Record, error)
	Create(ctx context.Context, collection string, fields map[string]any) (recordstore.Record, error)
	Update(ctx context.Context, collection, id string, fields map[string]any) (recordstore.Record, error)
	Delete(ctx context.Context, collection, id string) error
}

// RecordsRepository reads and writes memberships in the hosted record service.
type RecordsRepository struct {
	client RecordClient
}

// NewRecordsRepository returns a membership repository backed by the record service.
func NewRecordsRepository(client RecordClient) *RecordsRepository {
	return &RecordsRepository{client: client}
}

// FindByUserAndOrg issues user="<id>" && organization="<id>".
func (r *RecordsRepository) FindByUserAndOrg(ctx context.Context, userID, orgID string) ([]*domain.Membership, error) {
	return r.find(ctx, userOrgFilter(userID, orgID))
}

// ListByOrg returns every membership of orgID.
func (r *RecordsRepository) ListByOrg(ctx context.Context, orgID string) ([]*domain.Membership, error) {
	recs, err := r.client.ListAll(ctx, CollectionMemberships, recordstore.Eq("organization", orgID), 0)
	if err != nil {
		return nil, err
	}
	return recordsToDomain(recs)
}

// ListByUser returns every membership held by userID.
func (r *RecordsRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Membership, error) {
	recs, err := r.client.ListAll(ctx, CollectionMemberships, recordstore.Eq("user", userID), 0)
	if err != nil {
		return nil, err
	}
	return recordsToDomain(recs)
}

// Create stores m. The record service assigns the id; m.ID is updated from the response.
func (r *RecordsRepository) Create(ctx context.Context, m *domain.Membership) error {
	if err := m.Validate(); err != nil {
		return err
	}
	rec, err := r.client.Create(ctx, CollectionMemberships, map[string]any{
		"user":         m.UserID,
		"organization": m.OrgID,
		"role":         m.Role.String(),
	})
	if err != nil {
		return err
	}
	if id := rec.ID(); id != "" {
		m.ID = id
	}
	return nil
}

// UpdateRole changes the role of the (user, org) membership. Returns nil if no membership exists.
func (r *RecordsRepository) UpdateRole(ctx context.Context, userID, orgID string, role domain.Role) (*domain.Membership, error) {
	if !role.Valid() {
		return nil, domain.ErrUnknownRole
	}
	existing, err := r.FindByUserAndOrg(ctx, userID, orgID)
	if err != nil {
		return nil, err
	}
	if len(existing) == 0 {
		return nil, nil
	}
	rec, err := r.client.Update(ctx, CollectionMemberships, existing[0].ID, map[string]any{"role": role.String()})
	if err != nil {
		return nil, err
	}
	return recordToDomain(rec)
}

// DeleteByUserAndOrg removes every membership row for (user, org).
func (r *RecordsRepository) DeleteByUserAndOrg(ctx context.Context, userID, orgID string) error {
	existing, err := r.FindByUserAndOrg(ctx, userID, orgID)
	if err != nil {
		return err
	}
	for _, m := range existing {
		if err := r.client.Delete(ctx, CollectionMemberships, m.ID); err != nil {
			return err
		}
	}
	return nil
}

func (r *RecordsRepository) find(ctx context.Context, filter recordstore.Filter) ([]*domain.Membership, error) {
	res, err := r.client.List(ctx, CollectionMemberships, recordstore.ListOptions{Filter: filter, Page: 1, PerPage: lookupLimit})
	if err != nil {
		return nil, err
	}
	return recordsToDomain(res.Items)
}

func userOrgFilter(userID, orgID string) recordstore.Filter {
	return recordstore.Eq("user", userID).And("organization", orgID)
}

func recordsToDomain(recs []recordstore.Record) ([]*domain.Membership, error) {
	out := make([]*domain.Membership, 0, len(recs))
	for _, rec := range recs {
		m, err := recordToDomain(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func recordToDomain(rec recordstore.Record) (*domain.Membership, error) {
	role, err := domain.ParseRole(rec.String("role"))
	if err != nil {
		return nil, fmt.Errorf("membership %s: %w", rec.ID(), err)
	}
	return &domain.Membership{
		ID:        rec.ID(),
		UserID:    rec.String("user"),
		OrgID:     rec.String("organization"),
		Role:      role,
		CreatedAt: rec.Time("created"),
	}, nil
}

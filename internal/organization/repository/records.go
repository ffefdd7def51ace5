package repository

import (
	"context"
	"errors"

	"danus-dashboard/backend/internal/organization/domain"
	"danus-dashboard/backend/internal/recordstore"
)

// CollectionOrganizations is the record-service collection holding organizations.
const CollectionOrganizations = "organizations"

// RecordClient is the subset of the record-service client used by RecordsRepository.
type RecordClient interface {
	First(ctx context.Context, collection string, filter recordstore.Filter) (recordstore.Record, error)
	ListAll(ctx context.Context, collection string, filter recordstore.Filter, limit int) ([]recordstore.Record, error)
	Create(ctx context.Context, collection string, fields map[string]any) (recordstore.Record, error)
	Update(ctx context.Context, collection, id string, fields map[string]any) (recordstore.Record, error)
}

// RecordsRepository reads and writes organizations in the hosted record service.
type RecordsRepository struct {
	client RecordClient
}

// NewRecordsRepository returns an organization repository backed by the record service.
func NewRecordsRepository(client RecordClient) *RecordsRepository {
	return &RecordsRepository{client: client}
}

// GetOrganizationByID returns the organization for id, or nil if not found.
func (r *RecordsRepository) GetOrganizationByID(ctx context.Context, id string) (*domain.Org, error) {
	rec, err := r.client.First(ctx, CollectionOrganizations, recordstore.Eq("id", id))
	if err != nil {
		if errors.Is(err, recordstore.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return recordToOrg(rec), nil
}

// ListOrganizations returns every active organization.
func (r *RecordsRepository) ListOrganizations(ctx context.Context) ([]*domain.Org, error) {
	recs, err := r.client.ListAll(ctx, CollectionOrganizations, recordstore.Eq("status", string(domain.OrgStatusActive)), 0)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Org, 0, len(recs))
	for _, rec := range recs {
		out = append(out, recordToOrg(rec))
	}
	return out, nil
}

// CreateOrganization stores o; the record service assigns the id.
func (r *RecordsRepository) CreateOrganization(ctx context.Context, o *domain.Org) error {
	if err := o.Validate(); err != nil {
		return err
	}
	rec, err := r.client.Create(ctx, CollectionOrganizations, orgToFields(o))
	if err != nil {
		return err
	}
	if id := rec.ID(); id != "" {
		o.ID = id
	}
	return nil
}

// UpdateOrganization patches the stored organization.
func (r *RecordsRepository) UpdateOrganization(ctx context.Context, o *domain.Org) error {
	if err := o.Validate(); err != nil {
		return err
	}
	_, err := r.client.Update(ctx, CollectionOrganizations, o.ID, orgToFields(o))
	return err
}

func orgToFields(o *domain.Org) map[string]any {
	fields := map[string]any{
		"name":        o.Name,
		"description": o.Description,
		"target":      o.Target,
		"raised":      o.Raised,
		"status":      string(o.Status),
	}
	if o.Location != nil {
		fields["latitude"] = o.Location.Latitude
		fields["longitude"] = o.Location.Longitude
	}
	return fields
}

func recordToOrg(rec recordstore.Record) *domain.Org {
	o := &domain.Org{
		ID:          rec.ID(),
		Name:        rec.String("name"),
		Description: rec.String("description"),
		Target:      rec.Float("target"),
		Raised:      rec.Float("raised"),
		Status:      domain.OrgStatus(rec.String("status")),
		CreatedAt:   rec.Time("created"),
	}
	if o.Status == "" {
		o.Status = domain.OrgStatusActive
	}
	_, hasLat := rec["latitude"].(float64)
	_, hasLng := rec["longitude"].(float64)
	if hasLat && hasLng {
		o.Location = &domain.Location{Latitude: rec.Float("latitude"), Longitude: rec.Float("longitude")}
	}
	return o
}

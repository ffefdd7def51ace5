package repository

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"danus-dashboard/backend/internal/membership/domain"
)

const cacheKeyPrefix = "membership:"

// CachedRepository is a read-through Redis cache in front of another membership Repository.
// Only (user, org) lookups are cached; writes go to the underlying repository and invalidate
// the affected key. Cache failures are logged and fall through to the underlying repository.
type CachedRepository struct {
	Repository
	rdb redis.Cmdable
	ttl time.Duration
}

// NewCachedRepository wraps next with a Redis cache. ttl <= 0 defaults to 30s.
func NewCachedRepository(next Repository, rdb redis.Cmdable, ttl time.Duration) *CachedRepository {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &CachedRepository{Repository: next, rdb: rdb, ttl: ttl}
}

type cachedMembership struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	OrgID     string    `json:"org_id"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func cacheKey(userID, orgID string) string {
	return cacheKeyPrefix + orgID + ":" + userID
}

// FindByUserAndOrg returns the cached rows for (user, org), loading and caching them on a miss.
// Empty results are cached too so repeated checks by non-members do not hit the backend.
func (c *CachedRepository) FindByUserAndOrg(ctx context.Context, userID, orgID string) ([]*domain.Membership, error) {
	key := cacheKey(userID, orgID)
	b, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if ms, decErr := decodeMemberships(b); decErr == nil {
			return ms, nil
		}
		log.Printf("membership cache: dropping undecodable entry %s", key)
	case !errors.Is(err, redis.Nil):
		log.Printf("membership cache: get %s: %v", key, err)
	}

	ms, err := c.Repository.FindByUserAndOrg(ctx, userID, orgID)
	if err != nil {
		return nil, err
	}
	if enc, encErr := encodeMemberships(ms); encErr == nil {
		if setErr := c.rdb.Set(ctx, key, enc, c.ttl).Err(); setErr != nil {
			log.Printf("membership cache: set %s: %v", key, setErr)
		}
	}
	return ms, nil
}

// Create persists m and invalidates the cached lookup.
func (c *CachedRepository) Create(ctx context.Context, m *domain.Membership) error {
	if err := c.Repository.Create(ctx, m); err != nil {
		return err
	}
	c.invalidate(ctx, m.UserID, m.OrgID)
	return nil
}

// UpdateRole updates the role and invalidates the cached lookup.
func (c *CachedRepository) UpdateRole(ctx context.Context, userID, orgID string, role domain.Role) (*domain.Membership, error) {
	m, err := c.Repository.UpdateRole(ctx, userID, orgID, role)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, userID, orgID)
	return m, nil
}

// DeleteByUserAndOrg deletes the membership and invalidates the cached lookup.
func (c *CachedRepository) DeleteByUserAndOrg(ctx context.Context, userID, orgID string) error {
	if err := c.Repository.DeleteByUserAndOrg(ctx, userID, orgID); err != nil {
		return err
	}
	c.invalidate(ctx, userID, orgID)
	return nil
}

func (c *CachedRepository) invalidate(ctx context.Context, userID, orgID string) {
	if err := c.rdb.Del(ctx, cacheKey(userID, orgID)).Err(); err != nil {
		log.Printf("membership cache: invalidate %s/%s: %v", orgID, userID, err)
	}
}

func encodeMemberships(ms []*domain.Membership) ([]byte, error) {
	out := make([]cachedMembership, 0, len(ms))
	for _, m := range ms {
		out = append(out, cachedMembership{ID: m.ID, UserID: m.UserID, OrgID: m.OrgID, Role: m.Role.String(), CreatedAt: m.CreatedAt})
	}
	return json.Marshal(out)
}

func decodeMemberships(b []byte) ([]*domain.Membership, error) {
	var in []cachedMembership
	if err := json.Unmarshal(b, &in); err != nil {
		return nil, err
	}
	out := make([]*domain.Membership, 0, len(in))
	for _, c := range in {
		role, err := domain.ParseRole(c.Role)
		if err != nil {
			return nil, err
		}
		out = append(out, &domain.Membership{ID: c.ID, UserID: c.UserID, OrgID: c.OrgID, Role: role, CreatedAt: c.CreatedAt})
	}
	return out, nil
}

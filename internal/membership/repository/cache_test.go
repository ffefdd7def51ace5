package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"danus-dashboard/backend/internal/membership/domain"
)

// fakeRedis overrides the three commands CachedRepository uses; any other call panics.
type fakeRedis struct {
	redis.Cmdable
	data   map[string]string
	ttls   map[string]time.Duration
	getErr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

// countingRepo is an in-memory Repository that counts lookups.
type countingRepo struct {
	Repository
	rows    map[string][]*domain.Membership
	lookups int
	err     error
}

func (r *countingRepo) FindByUserAndOrg(ctx context.Context, userID, orgID string) ([]*domain.Membership, error) {
	r.lookups++
	if r.err != nil {
		return nil, r.err
	}
	return r.rows[userID+":"+orgID], nil
}

func (r *countingRepo) UpdateRole(ctx context.Context, userID, orgID string, role domain.Role) (*domain.Membership, error) {
	ms := r.rows[userID+":"+orgID]
	if len(ms) == 0 {
		return nil, nil
	}
	ms[0].Role = role
	return ms[0], nil
}

func newCountingRepo() *countingRepo {
	return &countingRepo{rows: map[string][]*domain.Membership{
		"u1:o1": {{ID: "m1", UserID: "u1", OrgID: "o1", Role: domain.RoleModerator}},
	}}
}

func TestCachedRepository_HitAvoidsBackend(t *testing.T) {
	next := newCountingRepo()
	rdb := newFakeRedis()
	c := NewCachedRepository(next, rdb, time.Minute)

	for i := 0; i < 3; i++ {
		ms, err := c.FindByUserAndOrg(context.Background(), "u1", "o1")
		if err != nil {
			t.Fatalf("FindByUserAndOrg: %v", err)
		}
		if len(ms) != 1 || ms[0].Role != domain.RoleModerator {
			t.Fatalf("memberships = %+v", ms)
		}
	}
	if next.lookups != 1 {
		t.Errorf("backend lookups = %d, want 1", next.lookups)
	}
	if rdb.ttls[cacheKey("u1", "o1")] != time.Minute {
		t.Errorf("ttl = %v, want %v", rdb.ttls[cacheKey("u1", "o1")], time.Minute)
	}
}

func TestCachedRepository_CachesNonMembers(t *testing.T) {
	next := newCountingRepo()
	c := NewCachedRepository(next, newFakeRedis(), 0)

	for i := 0; i < 2; i++ {
		ms, err := c.FindByUserAndOrg(context.Background(), "u2", "o1")
		if err != nil || len(ms) != 0 {
			t.Fatalf("FindByUserAndOrg = (%v, %v), want empty", ms, err)
		}
	}
	if next.lookups != 1 {
		t.Errorf("backend lookups = %d, want 1", next.lookups)
	}
}

func TestCachedRepository_UpdateRoleInvalidates(t *testing.T) {
	next := newCountingRepo()
	c := NewCachedRepository(next, newFakeRedis(), time.Minute)
	ctx := context.Background()

	if _, err := c.FindByUserAndOrg(ctx, "u1", "o1"); err != nil {
		t.Fatalf("FindByUserAndOrg: %v", err)
	}
	if _, err := c.UpdateRole(ctx, "u1", "o1", domain.RoleAdmin); err != nil {
		t.Fatalf("UpdateRole: %v", err)
	}
	ms, err := c.FindByUserAndOrg(ctx, "u1", "o1")
	if err != nil {
		t.Fatalf("FindByUserAndOrg: %v", err)
	}
	if len(ms) != 1 || ms[0].Role != domain.RoleAdmin {
		t.Errorf("memberships after update = %+v, want admin", ms)
	}
	if next.lookups != 2 {
		t.Errorf("backend lookups = %d, want 2", next.lookups)
	}
}

func TestCachedRepository_RedisErrorFallsThrough(t *testing.T) {
	next := newCountingRepo()
	rdb := newFakeRedis()
	rdb.getErr = errors.New("connection refused")
	c := NewCachedRepository(next, rdb, time.Minute)

	ms, err := c.FindByUserAndOrg(context.Background(), "u1", "o1")
	if err != nil {
		t.Fatalf("FindByUserAndOrg: %v", err)
	}
	if len(ms) != 1 {
		t.Errorf("memberships = %+v", ms)
	}
}

func TestCachedRepository_BackendErrorNotCached(t *testing.T) {
	next := newCountingRepo()
	next.err = errors.New("database error")
	rdb := newFakeRedis()
	c := NewCachedRepository(next, rdb, time.Minute)

	if _, err := c.FindByUserAndOrg(context.Background(), "u1", "o1"); err == nil {
		t.Fatal("expected backend error")
	}
	if len(rdb.data) != 0 {
		t.Errorf("cache entries = %d, want 0", len(rdb.data))
	}
}

func TestCachedRepository_UndecodableEntryReloaded(t *testing.T) {
	next := newCountingRepo()
	rdb := newFakeRedis()
	rdb.data[cacheKey("u1", "o1")] = `[{"id":"m1","role":"owner"}]`
	c := NewCachedRepository(next, rdb, time.Minute)

	ms, err := c.FindByUserAndOrg(context.Background(), "u1", "o1")
	if err != nil {
		t.Fatalf("FindByUserAndOrg: %v", err)
	}
	if len(ms) != 1 || ms[0].Role != domain.RoleModerator {
		t.Errorf("memberships = %+v", ms)
	}
	if next.lookups != 1 {
		t.Errorf("backend lookups = %d, want 1", next.lookups)
	}
}

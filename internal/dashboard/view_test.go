package dashboard

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	membershipdomain "danus-dashboard/backend/internal/membership/domain"
	orgdomain "danus-dashboard/backend/internal/organization/domain"
	"danus-dashboard/backend/internal/platform/rbac"
	"danus-dashboard/backend/internal/session/gate"
	userdomain "danus-dashboard/backend/internal/user/domain"
)

// mockGate settles when release is closed.
type mockGate struct {
	release chan struct{}
	snap    gate.Snapshot
	settled atomic.Bool
}

func newMockGate(user *userdomain.User) *mockGate {
	state := gate.StateUnauthenticated
	if user != nil {
		state = gate.StateAuthenticated
	}
	return &mockGate{release: make(chan struct{}), snap: gate.Snapshot{State: state, User: user}}
}

func (m *mockGate) Settled(ctx context.Context) (gate.Snapshot, error) {
	select {
	case <-m.release:
		m.settled.Store(true)
		return m.snap, nil
	case <-ctx.Done():
		return gate.Snapshot{State: gate.StateLoading}, ctx.Err()
	}
}

type mockResolver struct {
	role       membershipdomain.Role
	calls      atomic.Int32
	beforeGate atomic.Int32
	gate       *mockGate
	block      chan struct{}
}

func (m *mockResolver) Verdict(ctx context.Context, userID, orgID string) rbac.Verdict {
	m.calls.Add(1)
	if m.gate != nil && !m.gate.settled.Load() {
		m.beforeGate.Add(1)
	}
	if m.block != nil {
		<-m.block
	}
	return rbac.Verdict{UserID: userID, OrgID: orgID, Role: m.role}
}

type mockPolicy struct{}

func (mockPolicy) PermittedActions(ctx context.Context, v rbac.Verdict) []string {
	if v.IsAdmin() {
		return []string{"update_organization", "view_dashboard"}
	}
	return []string{"view_dashboard"}
}

type mockOrgs map[string]*orgdomain.Org

func (m mockOrgs) GetOrganizationByID(ctx context.Context, id string) (*orgdomain.Org, error) {
	return m[id], nil
}

var testOrgs = mockOrgs{"o1": {ID: "o1", Name: "Kopi Bersama", Target: 100}}

func waitState(t *testing.T, v *View) State {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	st, err := v.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	return st
}

func TestMount_WaitsForGateBeforeLookup(t *testing.T) {
	g := newMockGate(&userdomain.User{ID: "u1"})
	r := &mockResolver{role: membershipdomain.RoleAdmin, gate: g}
	v := Mount(context.Background(), g, r, mockPolicy{}, testOrgs, "o1")

	time.Sleep(20 * time.Millisecond)
	if !v.State().Loading {
		t.Error("view should be loading until the gate settles")
	}
	if r.calls.Load() != 0 {
		t.Fatalf("resolver called %d times before gate settled", r.calls.Load())
	}
	close(g.release)
	st := waitState(t, v)
	if st.Loading || st.Err != nil {
		t.Fatalf("state = %+v", st)
	}
	if !st.Verdict.IsAdmin() || len(st.Actions) != 2 {
		t.Errorf("verdict = %+v actions = %v", st.Verdict, st.Actions)
	}
	if r.calls.Load() != 1 || r.beforeGate.Load() != 0 {
		t.Errorf("calls = %d, before gate = %d", r.calls.Load(), r.beforeGate.Load())
	}
}

func TestMount_Unauthenticated(t *testing.T) {
	g := newMockGate(nil)
	close(g.release)
	r := &mockResolver{role: membershipdomain.RoleAdmin}
	st := waitState(t, Mount(context.Background(), g, r, mockPolicy{}, testOrgs, "o1"))
	if !errors.Is(st.Err, ErrUnauthenticated) {
		t.Errorf("err = %v, want ErrUnauthenticated", st.Err)
	}
	if r.calls.Load() != 0 {
		t.Error("no lookup without a user")
	}
}

func TestMount_NonMemberForbidden(t *testing.T) {
	g := newMockGate(&userdomain.User{ID: "u1"})
	close(g.release)
	st := waitState(t, Mount(context.Background(), g, &mockResolver{}, mockPolicy{}, testOrgs, "o1"))
	if !errors.Is(st.Err, ErrForbidden) {
		t.Errorf("err = %v, want ErrForbidden", st.Err)
	}
	if len(st.Actions) != 0 {
		t.Errorf("actions = %v, want none", st.Actions)
	}
}

func TestMount_OrgNotFound(t *testing.T) {
	g := newMockGate(&userdomain.User{ID: "u1"})
	close(g.release)
	st := waitState(t, Mount(context.Background(), g, &mockResolver{role: membershipdomain.RoleMember}, mockPolicy{}, testOrgs, "missing"))
	if !errors.Is(st.Err, ErrOrgNotFound) {
		t.Errorf("err = %v, want ErrOrgNotFound", st.Err)
	}
}

func TestUnmount_DiscardsLateResult(t *testing.T) {
	g := newMockGate(&userdomain.User{ID: "u1"})
	close(g.release)
	r := &mockResolver{role: membershipdomain.RoleAdmin, block: make(chan struct{})}
	v := Mount(context.Background(), g, r, mockPolicy{}, testOrgs, "o1")

	for r.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	v.Unmount()
	close(r.block)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	st, err := v.Wait(ctx)
	if !errors.Is(err, ErrUnmounted) {
		t.Errorf("Wait err = %v, want ErrUnmounted", err)
	}
	if !st.Loading || st.Org != nil || st.Verdict.Role != membershipdomain.RoleNone {
		t.Errorf("late result mutated state: %+v", st)
	}
}

func TestUnmount_WhileGateLoading(t *testing.T) {
	g := newMockGate(&userdomain.User{ID: "u1"})
	r := &mockResolver{role: membershipdomain.RoleAdmin}
	v := Mount(context.Background(), g, r, mockPolicy{}, testOrgs, "o1")
	v.Unmount()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := v.Wait(ctx); !errors.Is(err, ErrUnmounted) {
		t.Errorf("Wait err = %v, want ErrUnmounted", err)
	}
	if r.calls.Load() != 0 {
		t.Error("resolver must not run after unmount")
	}
}

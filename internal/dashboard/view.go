// Package dashboard loads the organization dashboard for the signed-in user. Loading waits for
// the session gate to settle before any role lookup starts.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"

	orgdomain "danus-dashboard/backend/internal/organization/domain"
	"danus-dashboard/backend/internal/platform/rbac"
	"danus-dashboard/backend/internal/session/gate"
	userdomain "danus-dashboard/backend/internal/user/domain"
)

var (
	ErrUnauthenticated = errors.New("dashboard: not signed in")
	ErrOrgNotFound     = errors.New("dashboard: organization not found")
	ErrForbidden       = errors.New("dashboard: no role in organization")
	ErrUnmounted       = errors.New("dashboard: view unmounted")
)

// SessionGate is the part of the session gate the dashboard waits on.
type SessionGate interface {
	Settled(ctx context.Context) (gate.Snapshot, error)
}

// VerdictResolver resolves a user's role once per decision.
type VerdictResolver interface {
	Verdict(ctx context.Context, userID, orgID string) rbac.Verdict
}

// ActionLister lists the actions a verdict permits.
type ActionLister interface {
	PermittedActions(ctx context.Context, v rbac.Verdict) []string
}

// OrgFinder loads an organization; nil, nil when it does not exist.
type OrgFinder interface {
	GetOrganizationByID(ctx context.Context, id string) (*orgdomain.Org, error)
}

// State is what the dashboard shows.
type State struct {
	Loading bool
	User    *userdomain.User
	Org     *orgdomain.Org
	Verdict rbac.Verdict
	Actions []string
	Err     error
}

// View is one mount of the dashboard for one organization.
type View struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.Mutex
	state     State
	unmounted bool
}

// Mount starts loading the dashboard for orgID. The load waits for g to settle, then performs
// exactly one role lookup.
func Mount(ctx context.Context, g SessionGate, resolver VerdictResolver, policy ActionLister, orgs OrgFinder, orgID string) *View {
	ctx, cancel := context.WithCancel(ctx)
	v := &View{
		cancel: cancel,
		done:   make(chan struct{}),
		state:  State{Loading: true},
	}
	go func() {
		defer close(v.done)
		v.commit(ctx, load(ctx, g, resolver, policy, orgs, orgID))
	}()
	return v
}

func load(ctx context.Context, g SessionGate, resolver VerdictResolver, policy ActionLister, orgs OrgFinder, orgID string) State {
	snap, err := g.Settled(ctx)
	if err != nil {
		return State{Err: err}
	}
	if snap.User == nil {
		return State{Err: ErrUnauthenticated}
	}
	st := State{User: snap.User}
	org, err := orgs.GetOrganizationByID(ctx, orgID)
	if err != nil {
		st.Err = fmt.Errorf("dashboard: load organization: %w", err)
		return st
	}
	if org == nil {
		st.Err = ErrOrgNotFound
		return st
	}
	st.Org = org
	st.Verdict = resolver.Verdict(ctx, snap.User.ID, orgID)
	if !st.Verdict.IsMember() {
		st.Err = ErrForbidden
		return st
	}
	st.Actions = policy.PermittedActions(ctx, st.Verdict)
	return st
}

// commit stores a finished load unless the view was unmounted or its context ended.
func (v *View) commit(ctx context.Context, st State) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.unmounted || ctx.Err() != nil {
		return
	}
	v.state = st
}

// State returns the current state. Loading is true until the load finishes.
func (v *View) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Wait blocks until the load finishes or ctx ends, then returns the state.
// An unmounted view returns ErrUnmounted.
func (v *View) Wait(ctx context.Context) (State, error) {
	select {
	case <-v.done:
	case <-ctx.Done():
		return v.State(), ctx.Err()
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.unmounted {
		return v.state, ErrUnmounted
	}
	return v.state, nil
}

// Unmount cancels in-flight lookups. Results that arrive afterwards are discarded.
func (v *View) Unmount() {
	v.mu.Lock()
	v.unmounted = true
	v.mu.Unlock()
	v.cancel()
}

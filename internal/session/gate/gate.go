// Package gate holds the authentication state a client renders against: Loading until the
// persisted credential has been checked, then Authenticated(user) or Unauthenticated.
package gate

import (
	"context"
	"errors"
	"log"
	"sync"

	identitydomain "danus-dashboard/backend/internal/identity/domain"
	userdomain "danus-dashboard/backend/internal/user/domain"
)

// State is the gate's authentication state.
type State int

const (
	StateLoading State = iota
	StateAuthenticated
	StateUnauthenticated
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// Snapshot is an immutable view of the gate. User is set only in StateAuthenticated.
type Snapshot struct {
	State State
	User  *userdomain.User
}

// Loading reports whether the gate has not settled yet.
func (s Snapshot) Loading() bool { return s.State == StateLoading }

// CredentialStore persists the session credential between restores (a cookie, a file, memory).
// Load returns "" with a nil error when nothing is stored.
type CredentialStore interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, credential string) error
	Clear(ctx context.Context) error
}

// Authenticator checks credentials and revokes them.
type Authenticator interface {
	Authenticate(ctx context.Context, credential string) (*identitydomain.Principal, error)
	SignOut(ctx context.Context, credential string) error
}

// ErrNoCredential is returned by SignIn for an empty credential.
var ErrNoCredential = errors.New("gate: no credential")

// Gate is the session state container. Transitions are serialized; reads never block on them.
type Gate struct {
	store CredentialStore
	auth  Authenticator

	transition sync.Mutex

	mu      sync.RWMutex
	snap    Snapshot
	settled chan struct{}
	subs    map[int]func(Snapshot)
	nextSub int

	pending    []Snapshot
	delivering bool
}

// New returns a gate in StateLoading. Call Restore to settle it.
func New(store CredentialStore, auth Authenticator) *Gate {
	return &Gate{
		store:   store,
		auth:    auth,
		snap:    Snapshot{State: StateLoading},
		settled: make(chan struct{}),
		subs:    make(map[int]func(Snapshot)),
	}
}

// Restore reads the persisted credential and settles the gate. Every failure settles to
// StateUnauthenticated.
func (g *Gate) Restore(ctx context.Context) Snapshot {
	defer g.notify()
	g.transition.Lock()
	defer g.transition.Unlock()
	g.set(Snapshot{State: StateLoading})
	return g.set(g.restore(ctx))
}

func (g *Gate) restore(ctx context.Context) Snapshot {
	credential, err := g.store.Load(ctx)
	if err != nil {
		log.Printf("gate: load credential: %v", err)
		return Snapshot{State: StateUnauthenticated}
	}
	if credential == "" {
		return Snapshot{State: StateUnauthenticated}
	}
	p, err := g.auth.Authenticate(ctx, credential)
	if err != nil || p == nil || p.User == nil {
		return Snapshot{State: StateUnauthenticated}
	}
	return Snapshot{State: StateAuthenticated, User: p.User}
}

// SignIn authenticates credential and, on success, persists it and settles to
// StateAuthenticated. On failure the gate settles to StateUnauthenticated and the error is returned.
func (g *Gate) SignIn(ctx context.Context, credential string) (Snapshot, error) {
	defer g.notify()
	g.transition.Lock()
	defer g.transition.Unlock()
	g.set(Snapshot{State: StateLoading})
	if credential == "" {
		return g.set(Snapshot{State: StateUnauthenticated}), ErrNoCredential
	}
	p, err := g.auth.Authenticate(ctx, credential)
	if err == nil && (p == nil || p.User == nil) {
		err = errors.New("gate: authenticator returned no user")
	}
	if err != nil {
		return g.set(Snapshot{State: StateUnauthenticated}), err
	}
	if err := g.store.Save(ctx, credential); err != nil {
		return g.set(Snapshot{State: StateUnauthenticated}), err
	}
	return g.set(Snapshot{State: StateAuthenticated, User: p.User}), nil
}

// SignOut clears and revokes the persisted credential, then re-runs restore, which settles to
// StateUnauthenticated unless the store still yields a valid credential.
func (g *Gate) SignOut(ctx context.Context) Snapshot {
	defer g.notify()
	g.transition.Lock()
	defer g.transition.Unlock()
	g.set(Snapshot{State: StateLoading})
	credential, err := g.store.Load(ctx)
	if err != nil {
		log.Printf("gate: load credential for sign-out: %v", err)
	}
	if err := g.store.Clear(ctx); err != nil {
		log.Printf("gate: clear credential: %v", err)
	}
	if credential != "" {
		if err := g.auth.SignOut(ctx, credential); err != nil {
			log.Printf("gate: revoke credential: %v", err)
		}
	}
	return g.set(g.restore(ctx))
}

// Snapshot returns the current state.
func (g *Gate) Snapshot() Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.snap
}

// CurrentUser returns the signed-in user. It is absent while loading.
func (g *Gate) CurrentUser() (*userdomain.User, bool) {
	s := g.Snapshot()
	if s.State != StateAuthenticated {
		return nil, false
	}
	return s.User, true
}

// IsLoading reports whether the gate is in StateLoading.
func (g *Gate) IsLoading() bool {
	return g.Snapshot().Loading()
}

// Settled blocks until the gate leaves StateLoading or ctx is done.
func (g *Gate) Settled(ctx context.Context) (Snapshot, error) {
	for {
		g.mu.RLock()
		snap, ch := g.snap, g.settled
		g.mu.RUnlock()
		if !snap.Loading() {
			return snap, nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return snap, ctx.Err()
		}
	}
}

// Subscribe registers fn to be called with every new snapshot. Calls happen in transition order,
// after the transition lock is released, so fn may start another transition. Snapshots from
// such a nested transition are delivered once fn returns. The returned function unsubscribes.
func (g *Gate) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	g.mu.Lock()
	id := g.nextSub
	g.nextSub++
	g.subs[id] = fn
	g.mu.Unlock()
	return func() {
		g.mu.Lock()
		delete(g.subs, id)
		g.mu.Unlock()
	}
}

// set installs snap, wakes Settled waiters when leaving loading, and queues snap for
// subscribers. Callers hold g.transition.
func (g *Gate) set(snap Snapshot) Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	wasLoading := g.snap.Loading()
	g.snap = snap
	switch {
	case wasLoading && !snap.Loading():
		close(g.settled)
	case !wasLoading && snap.Loading():
		g.settled = make(chan struct{})
	}
	if len(g.subs) > 0 {
		g.pending = append(g.pending, snap)
	}
	return snap
}

// notify delivers queued snapshots. Callers must not hold g.transition. Only one goroutine
// delivers at a time; others leave their snapshots to it.
func (g *Gate) notify() {
	g.mu.Lock()
	if g.delivering {
		g.mu.Unlock()
		return
	}
	g.delivering = true
	for len(g.pending) > 0 {
		snap := g.pending[0]
		g.pending = g.pending[1:]
		subs := make([]func(Snapshot), 0, len(g.subs))
		for _, fn := range g.subs {
			subs = append(subs, fn)
		}
		g.mu.Unlock()
		for _, fn := range subs {
			fn(snap)
		}
		g.mu.Lock()
	}
	g.pending = nil
	g.delivering = false
	g.mu.Unlock()
}

package gate

import (
	"sync"

	userdomain "danus-dashboard/backend/internal/user/domain"
)

// NoticeAuthRequired is shown once when a protected view settles without a user.
const NoticeAuthRequired = "authentication required"

// Navigator performs a client-side navigation.
type Navigator interface {
	Redirect(path string)
}

// Notifier shows a transient message to the user.
type Notifier interface {
	Notify(message string)
}

// OutcomeKind is what a guarded view renders.
type OutcomeKind int

const (
	// OutcomeLoading is the loading indicator; protected content is never produced while loading.
	OutcomeLoading OutcomeKind = iota
	OutcomeContent
	// OutcomeNothing means the view renders nothing because a redirect was issued.
	OutcomeNothing
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeLoading:
		return "loading"
	case OutcomeContent:
		return "content"
	case OutcomeNothing:
		return "nothing"
	default:
		return "unknown"
	}
}

// Outcome is the result of one Render.
type Outcome struct {
	Kind OutcomeKind
	User *userdomain.User
}

// ViewGuard protects one mounted view. After it has redirected, it renders nothing for the rest
// of the mount. Create a new guard for each mount.
type ViewGuard struct {
	gate       *Gate
	nav        Navigator
	notifier   Notifier
	signInPath string

	mu         sync.Mutex
	redirected bool
}

// NewViewGuard returns a guard for one mount of a protected view.
func NewViewGuard(g *Gate, nav Navigator, notifier Notifier, signInPath string) *ViewGuard {
	return &ViewGuard{gate: g, nav: nav, notifier: notifier, signInPath: signInPath}
}

// Render decides what the view shows for the gate's current state. content runs only for a
// settled, authenticated user.
func (v *ViewGuard) Render(content func(*userdomain.User)) Outcome {
	return v.render(v.gate.Snapshot(), content)
}

// Watch renders against every snapshot the gate publishes until stop is called.
func (v *ViewGuard) Watch(content func(*userdomain.User)) (stop func()) {
	return v.gate.Subscribe(func(snap Snapshot) { v.render(snap, content) })
}

func (v *ViewGuard) render(snap Snapshot, content func(*userdomain.User)) Outcome {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.redirected {
		return Outcome{Kind: OutcomeNothing}
	}
	switch snap.State {
	case StateLoading:
		return Outcome{Kind: OutcomeLoading}
	case StateAuthenticated:
		if content != nil {
			content(snap.User)
		}
		return Outcome{Kind: OutcomeContent, User: snap.User}
	default:
		v.redirected = true
		if v.notifier != nil {
			v.notifier.Notify(NoticeAuthRequired)
		}
		v.nav.Redirect(v.signInPath)
		return Outcome{Kind: OutcomeNothing}
	}
}

// Redirected reports whether this mount has already navigated away.
func (v *ViewGuard) Redirected() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.redirected
}

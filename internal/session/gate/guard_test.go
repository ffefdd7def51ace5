package gate

import (
	"context"
	"testing"

	userdomain "danus-dashboard/backend/internal/user/domain"
)

type recordingNavigator struct{ paths []string }

func (n *recordingNavigator) Redirect(path string) { n.paths = append(n.paths, path) }

type recordingNotifier struct{ messages []string }

func (n *recordingNotifier) Notify(message string) { n.messages = append(n.messages, message) }

func TestViewGuard_LoadingNeverRendersContent(t *testing.T) {
	g := New(&MemoryStore{credential: "cred-dana"}, newFakeAuth())
	nav, notes := &recordingNavigator{}, &recordingNotifier{}
	guard := NewViewGuard(g, nav, notes, "/login")

	rendered := false
	for i := 0; i < 3; i++ {
		if out := guard.Render(func(*userdomain.User) { rendered = true }); out.Kind != OutcomeLoading {
			t.Fatalf("render %d: kind = %v, want loading", i, out.Kind)
		}
	}
	if rendered || len(nav.paths) != 0 || len(notes.messages) != 0 {
		t.Errorf("loading produced side effects: rendered=%v redirects=%v notices=%v", rendered, nav.paths, notes.messages)
	}
}

func TestViewGuard_AuthenticatedRendersContent(t *testing.T) {
	g := New(&MemoryStore{credential: "cred-dana"}, newFakeAuth())
	g.Restore(context.Background())
	nav := &recordingNavigator{}
	guard := NewViewGuard(g, nav, &recordingNotifier{}, "/login")

	var got *userdomain.User
	out := guard.Render(func(u *userdomain.User) { got = u })
	if out.Kind != OutcomeContent || got == nil || got.ID != "u1" {
		t.Errorf("outcome = %+v, user = %+v", out, got)
	}
	if len(nav.paths) != 0 {
		t.Errorf("redirects = %v, want none", nav.paths)
	}
}

func TestViewGuard_UnauthenticatedRedirectsExactlyOnce(t *testing.T) {
	g := New(&MemoryStore{}, newFakeAuth())
	nav, notes := &recordingNavigator{}, &recordingNotifier{}
	guard := NewViewGuard(g, nav, notes, "/login")

	if out := guard.Render(nil); out.Kind != OutcomeLoading {
		t.Fatalf("before settle: kind = %v", out.Kind)
	}
	g.Restore(context.Background())

	for i := 0; i < 5; i++ {
		if out := guard.Render(func(*userdomain.User) { t.Error("content rendered for anonymous user") }); out.Kind != OutcomeNothing {
			t.Fatalf("render %d: kind = %v, want nothing", i, out.Kind)
		}
	}
	if len(nav.paths) != 1 || nav.paths[0] != "/login" {
		t.Errorf("redirects = %v, want exactly [/login]", nav.paths)
	}
	if len(notes.messages) != 1 || notes.messages[0] != NoticeAuthRequired {
		t.Errorf("notices = %v, want exactly one %q", notes.messages, NoticeAuthRequired)
	}
	if !guard.Redirected() {
		t.Error("Redirected() = false")
	}
}

func TestViewGuard_StaysRedirectedAfterLaterSignIn(t *testing.T) {
	g := New(&MemoryStore{}, newFakeAuth())
	g.Restore(context.Background())
	nav := &recordingNavigator{}
	guard := NewViewGuard(g, nav, nil, "/login")
	guard.Render(nil)

	if _, err := g.SignIn(context.Background(), "cred-dana"); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if out := guard.Render(nil); out.Kind != OutcomeNothing {
		t.Errorf("kind = %v, want nothing for the redirected mount", out.Kind)
	}
	if out := NewViewGuard(g, nav, nil, "/login").Render(nil); out.Kind != OutcomeContent {
		t.Errorf("new mount kind = %v, want content", out.Kind)
	}
	if len(nav.paths) != 1 {
		t.Errorf("redirects = %v", nav.paths)
	}
}

func TestViewGuard_SignOutWhileMounted(t *testing.T) {
	g := New(&MemoryStore{credential: "cred-dana"}, newFakeAuth())
	g.Restore(context.Background())
	nav, notes := &recordingNavigator{}, &recordingNotifier{}
	guard := NewViewGuard(g, nav, notes, "/login")
	if out := guard.Render(nil); out.Kind != OutcomeContent {
		t.Fatalf("kind = %v", out.Kind)
	}
	g.SignOut(context.Background())
	guard.Render(nil)
	guard.Render(nil)
	if len(nav.paths) != 1 || len(notes.messages) != 1 {
		t.Errorf("redirects = %v notices = %v, want one each", nav.paths, notes.messages)
	}
}

func TestViewGuard_WatchRedirectsOnceWhenRestoreFindsNoUser(t *testing.T) {
	g := New(&MemoryStore{}, newFakeAuth())
	nav, notes := &recordingNavigator{}, &recordingNotifier{}
	guard := NewViewGuard(g, nav, notes, "/login")

	stop := guard.Watch(func(*userdomain.User) { t.Error("content rendered for anonymous user") })
	defer stop()
	g.Restore(context.Background())
	g.Restore(context.Background())

	if !guard.Redirected() {
		t.Fatal("Redirected() = false after settling without a user")
	}
	if len(nav.paths) != 1 || len(notes.messages) != 1 {
		t.Errorf("redirects = %v, notices = %v, want exactly one each", nav.paths, notes.messages)
	}
}

func TestViewGuard_WatchRendersContentOnSettle(t *testing.T) {
	g := New(&MemoryStore{credential: "cred-dana"}, newFakeAuth())
	nav := &recordingNavigator{}
	guard := NewViewGuard(g, nav, &recordingNotifier{}, "/login")

	var users []string
	stop := guard.Watch(func(u *userdomain.User) { users = append(users, u.ID) })
	g.Restore(context.Background())
	stop()
	g.Restore(context.Background())

	if len(users) != 1 || users[0] != "u1" {
		t.Errorf("content renders = %v, want [u1]", users)
	}
	if guard.Redirected() || len(nav.paths) != 0 {
		t.Errorf("unexpected redirect: %v", nav.paths)
	}
}

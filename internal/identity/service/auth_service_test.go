package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	identitydomain "danus-dashboard/backend/internal/identity/domain"
	"danus-dashboard/backend/internal/security"
	sessiondomain "danus-dashboard/backend/internal/session/domain"
	"danus-dashboard/backend/internal/telemetry"
	userdomain "danus-dashboard/backend/internal/user/domain"
)

type memUserRepo struct {
	mu      sync.Mutex
	byID    map[string]*userdomain.User
	byEmail map[string]*userdomain.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{byID: map[string]*userdomain.User{}, byEmail: map[string]*userdomain.User{}}
}

func (r *memUserRepo) GetByID(ctx context.Context, id string) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byID[id], nil
}

func (r *memUserRepo) GetByEmail(ctx context.Context, email string) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byEmail[email], nil
}

func (r *memUserRepo) Create(ctx context.Context, u *userdomain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[u.ID] = u
	r.byEmail[u.Email] = u
	return nil
}

type memIdentityRepo struct {
	mu     sync.Mutex
	byUser map[string]*identitydomain.Identity
}

func (r *memIdentityRepo) GetByUserAndProvider(ctx context.Context, userID string, provider identitydomain.IdentityProvider) (*identitydomain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byUser[userID], nil
}

func (r *memIdentityRepo) Create(ctx context.Context, i *identitydomain.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byUser[i.UserID] = i
	return nil
}

type memSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*sessiondomain.Session
	getErr   error
}

func (r *memSessionRepo) GetByID(ctx context.Context, id string) (*sessiondomain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	s, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *memSessionRepo) Create(ctx context.Context, s *sessiondomain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
	return nil
}

func (r *memSessionRepo) Revoke(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok && s.RevokedAt == nil {
		now := time.Now().UTC()
		s.RevokedAt = &now
	}
	return nil
}

func (r *memSessionRepo) UpdateLastSeen(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.LastSeenAt = &at
	}
	return nil
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []string
}

func (e *recordingEmitter) Emit(ctx context.Context, ev *telemetry.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev.Type)
	return nil
}

type fixture struct {
	svc      *AuthService
	users    *memUserRepo
	sessions *memSessionRepo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	issuer, err := security.NewTestCredentialIssuer(time.Hour)
	if err != nil {
		t.Fatalf("NewTestCredentialIssuer: %v", err)
	}
	users := newMemUserRepo()
	sessions := &memSessionRepo{sessions: map[string]*sessiondomain.Session{}}
	svc := NewAuthService(users, &memIdentityRepo{byUser: map[string]*identitydomain.Identity{}}, sessions,
		security.NewPasswordHasher(4), issuer, &recordingEmitter{})
	return &fixture{svc: svc, users: users, sessions: sessions}
}

const testPassword = "kopi-danus-2024"

func (f *fixture) register(t *testing.T, email string) *userdomain.User {
	t.Helper()
	u, err := f.svc.Register(context.Background(), email, testPassword, "Dana", true)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	return u
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	u := f.register(t, "  Dana@Example.com ")
	if u.Email != "dana@example.com" || !u.IsEntrepreneur || u.Status != userdomain.UserStatusActive {
		t.Errorf("user = %+v", u)
	}
	if _, err := f.svc.Register(context.Background(), "dana@example.com", testPassword, "Other", false); !errors.Is(err, ErrEmailAlreadyRegistered) {
		t.Errorf("second Register err = %v, want ErrEmailAlreadyRegistered", err)
	}
}

func TestRegister_Validation(t *testing.T) {
	f := newFixture(t)
	testCases := []struct {
		email, password string
	}{
		{"", testPassword},
		{"not-an-email", testPassword},
		{"dana@localhost", testPassword},
		{"dana@example.com", "short1"},
		{"dana@example.com", "onlyletters-here"},
		{"dana@example.com", "1234567890123"},
	}
	for _, tc := range testCases {
		if _, err := f.svc.Register(context.Background(), tc.email, tc.password, "", false); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Register(%q, %q) err = %v, want ErrInvalidInput", tc.email, tc.password, err)
		}
	}
}

func TestSignIn_AuthenticateSignOut(t *testing.T) {
	f := newFixture(t)
	u := f.register(t, "dana@example.com")
	ctx := context.Background()

	cred, err := f.svc.SignIn(ctx, "DANA@example.com", testPassword)
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if cred.Token == "" || cred.UserID != u.ID || cred.SessionID == "" {
		t.Fatalf("credential = %+v", cred)
	}

	p, err := f.svc.Authenticate(ctx, cred.Token)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if p.User.ID != u.ID || p.SessionID != cred.SessionID {
		t.Errorf("principal = %+v", p)
	}
	if s, _ := f.sessions.GetByID(ctx, cred.SessionID); s.LastSeenAt == nil {
		t.Error("LastSeenAt not updated")
	}

	if err := f.svc.SignOut(ctx, cred.Token); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if _, err := f.svc.Authenticate(ctx, cred.Token); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("Authenticate after SignOut err = %v, want ErrInvalidSession", err)
	}
}

func TestSignIn_WrongPasswordAndUnknownUser(t *testing.T) {
	f := newFixture(t)
	f.register(t, "dana@example.com")
	ctx := context.Background()
	if _, err := f.svc.SignIn(ctx, "dana@example.com", "wrong-password-1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password err = %v", err)
	}
	if _, err := f.svc.SignIn(ctx, "nobody@example.com", testPassword); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown user err = %v", err)
	}
	if _, err := f.svc.SignIn(ctx, "", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("empty err = %v", err)
	}
}

func TestSignIn_DisabledUser(t *testing.T) {
	f := newFixture(t)
	u := f.register(t, "dana@example.com")
	u.Status = userdomain.UserStatusDisabled
	if _, err := f.svc.SignIn(context.Background(), "dana@example.com", testPassword); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestAuthenticate_Rejects(t *testing.T) {
	f := newFixture(t)
	f.register(t, "dana@example.com")
	ctx := context.Background()
	cred, err := f.svc.SignIn(ctx, "dana@example.com", testPassword)
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	if _, err := f.svc.Authenticate(ctx, ""); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("empty token err = %v", err)
	}
	if _, err := f.svc.Authenticate(ctx, "garbage"); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("garbage token err = %v", err)
	}

	f.svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := f.svc.Authenticate(ctx, cred.Token); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("expired session err = %v", err)
	}
}

func TestAuthenticate_RepositoryErrorPropagates(t *testing.T) {
	f := newFixture(t)
	f.register(t, "dana@example.com")
	cred, err := f.svc.SignIn(context.Background(), "dana@example.com", testPassword)
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	f.sessions.getErr = errors.New("db down")
	if _, err := f.svc.Authenticate(context.Background(), cred.Token); err == nil || errors.Is(err, ErrInvalidSession) {
		t.Errorf("err = %v, want repository error", err)
	}
}

func TestSignOut_InvalidTokenIsNoop(t *testing.T) {
	f := newFixture(t)
	if err := f.svc.SignOut(context.Background(), "garbage"); err != nil {
		t.Errorf("SignOut: %v", err)
	}
}

func TestSignInSignOut_ConcurrentSameUser(t *testing.T) {
	f := newFixture(t)
	f.register(t, "dana@example.com")
	ctx := context.Background()

	var wg sync.WaitGroup
	creds := make(chan *Credential, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cred, err := f.svc.SignIn(ctx, "dana@example.com", testPassword)
			if err != nil {
				t.Errorf("SignIn: %v", err)
				return
			}
			if err := f.svc.SignOut(ctx, cred.Token); err != nil {
				t.Errorf("SignOut: %v", err)
			}
			creds <- cred
		}()
	}
	wg.Wait()
	close(creds)
	for cred := range creds {
		if _, err := f.svc.Authenticate(ctx, cred.Token); !errors.Is(err, ErrInvalidSession) {
			t.Errorf("session %s still valid after sign-out", cred.SessionID)
		}
	}
	if n := len(f.svc.locks.locks); n != 0 {
		t.Errorf("lock table size = %d, want 0", n)
	}
}

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	k := newKeyedMutex()
	unlock := k.Lock("u1")
	acquired := make(chan struct{})
	go func() {
		u := k.Lock("u1")
		close(acquired)
		u()
	}()
	select {
	case <-acquired:
		t.Fatal("second Lock acquired while first held")
	case <-time.After(20 * time.Millisecond):
	}
	other := k.Lock("u2")
	other()
	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second Lock never acquired")
	}
}

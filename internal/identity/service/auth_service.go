package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	identitydomain "danus-dashboard/backend/internal/identity/domain"
	sessiondomain "danus-dashboard/backend/internal/session/domain"
	"danus-dashboard/backend/internal/telemetry"
	userdomain "danus-dashboard/backend/internal/user/domain"
)

// Sentinel errors for the auth service; transports map them to status codes.
var (
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrInvalidSession         = errors.New("invalid or expired session")
	ErrInvalidInput           = errors.New("invalid input")
)

// Credential is the result of a successful sign-in.
type Credential struct {
	Token     string
	SessionID string
	UserID    string
	ExpiresAt time.Time
}

// UserRepo is the minimal user repository needed by the auth service.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
	Create(ctx context.Context, u *userdomain.User) error
}

// IdentityRepo is the minimal identity repository needed by the auth service.
type IdentityRepo interface {
	GetByUserAndProvider(ctx context.Context, userID string, provider identitydomain.IdentityProvider) (*identitydomain.Identity, error)
	Create(ctx context.Context, i *identitydomain.Identity) error
}

// SessionRepo is the minimal session repository needed by the auth service.
type SessionRepo interface {
	GetByID(ctx context.Context, id string) (*sessiondomain.Session, error)
	Create(ctx context.Context, s *sessiondomain.Session) error
	Revoke(ctx context.Context, id string) error
	UpdateLastSeen(ctx context.Context, id string, at time.Time) error
}

// CredentialIssuer signs and validates session credentials.
type CredentialIssuer interface {
	Issue(sessionID, userID string) (string, time.Time, error)
	Validate(token string) (sessionID, userID string, err error)
}

// PasswordHasher hashes and checks passwords.
type PasswordHasher interface {
	Hash(password []byte) (string, error)
	Compare(hash string, password []byte) error
	CompareDummy(password []byte)
}

// AuthService implements password sign-in, sign-out, registration, and credential authentication.
// Sign-in and sign-out for the same user are serialized.
type AuthService struct {
	users      UserRepo
	identities IdentityRepo
	sessions   SessionRepo
	hasher     PasswordHasher
	issuer     CredentialIssuer
	events     telemetry.EventEmitter
	locks      *keyedMutex
	now        func() time.Time
}

// NewAuthService returns an AuthService. events may be nil.
func NewAuthService(users UserRepo, identities IdentityRepo, sessions SessionRepo, hasher PasswordHasher, issuer CredentialIssuer, events telemetry.EventEmitter) *AuthService {
	return &AuthService{
		users:      users,
		identities: identities,
		sessions:   sessions,
		hasher:     hasher,
		issuer:     issuer,
		events:     events,
		locks:      newKeyedMutex(),
		now:        time.Now,
	}
}

// Register creates a user and its local password identity.
func (s *AuthService) Register(ctx context.Context, email, password, name string, entrepreneur bool) (*userdomain.User, error) {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailAlreadyRegistered
	}
	hashed, err := s.hasher.Hash([]byte(password))
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	user := &userdomain.User{
		ID:             uuid.New().String(),
		Email:          email,
		Name:           strings.TrimSpace(name),
		IsEntrepreneur: entrepreneur,
		Status:         userdomain.UserStatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	if err := s.identities.Create(ctx, &identitydomain.Identity{
		ID:           uuid.New().String(),
		UserID:       user.ID,
		Provider:     identitydomain.IdentityProviderLocal,
		ProviderID:   email,
		PasswordHash: hashed,
		CreatedAt:    now,
	}); err != nil {
		return nil, err
	}
	s.emit(telemetry.NewEvent(telemetry.EventRegistered, user.ID))
	return user, nil
}

// SignIn verifies email and password, opens a session, and returns its credential.
// Every failure mode is reported as ErrInvalidCredentials.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (*Credential, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if !user.Active() {
		s.hasher.CompareDummy([]byte(password))
		s.emit(telemetry.NewEvent(telemetry.EventSignInFailed, "").With("reason", "unknown_user"))
		return nil, ErrInvalidCredentials
	}

	unlock := s.locks.Lock(user.ID)
	defer unlock()

	ident, err := s.identities.GetByUserAndProvider(ctx, user.ID, identitydomain.IdentityProviderLocal)
	if err != nil {
		return nil, err
	}
	if ident == nil || ident.PasswordHash == "" {
		s.hasher.CompareDummy([]byte(password))
		s.emit(telemetry.NewEvent(telemetry.EventSignInFailed, user.ID).With("reason", "no_password"))
		return nil, ErrInvalidCredentials
	}
	if err := s.hasher.Compare(ident.PasswordHash, []byte(password)); err != nil {
		s.emit(telemetry.NewEvent(telemetry.EventSignInFailed, user.ID).With("reason", "bad_password"))
		return nil, ErrInvalidCredentials
	}

	sessionID := uuid.New().String()
	token, expiresAt, err := s.issuer.Issue(sessionID, user.ID)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Create(ctx, &sessiondomain.Session{
		ID:        sessionID,
		UserID:    user.ID,
		ExpiresAt: expiresAt,
		CreatedAt: s.now().UTC(),
	}); err != nil {
		return nil, err
	}
	ev := telemetry.NewEvent(telemetry.EventSignedIn, user.ID)
	ev.SessionID = sessionID
	s.emit(ev)
	return &Credential{Token: token, SessionID: sessionID, UserID: user.ID, ExpiresAt: expiresAt}, nil
}

// SignOut revokes the session bound to token. Invalid or already revoked credentials are a no-op.
func (s *AuthService) SignOut(ctx context.Context, token string) error {
	sessionID, userID, err := s.issuer.Validate(token)
	if err != nil {
		return nil
	}
	unlock := s.locks.Lock(userID)
	defer unlock()
	if err := s.sessions.Revoke(ctx, sessionID); err != nil {
		return err
	}
	ev := telemetry.NewEvent(telemetry.EventSignedOut, userID)
	ev.SessionID = sessionID
	s.emit(ev)
	return nil
}

// Authenticate validates token and its session and returns the signed-in principal.
// Any failure yields ErrInvalidSession except repository errors, which are returned as-is.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*identitydomain.Principal, error) {
	if token == "" {
		return nil, ErrInvalidSession
	}
	sessionID, userID, err := s.issuer.Validate(token)
	if err != nil {
		return nil, ErrInvalidSession
	}
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if sess == nil || sess.UserID != userID || !sess.Active(now) {
		return nil, ErrInvalidSession
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.Active() {
		return nil, ErrInvalidSession
	}
	if err := s.sessions.UpdateLastSeen(ctx, sessionID, now); err != nil {
		log.Printf("identity: update last seen for session %s: %v", sessionID, err)
	}
	return &identitydomain.Principal{SessionID: sessionID, User: user}, nil
}

func (s *AuthService) emit(ev *telemetry.Event) {
	ev.Source = "identity"
	telemetry.EmitAsync(s.events, ev)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@"):], ".") {
		return fmt.Errorf("%w: invalid email format", ErrInvalidInput)
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < 10 {
		return fmt.Errorf("%w: password must be at least 10 characters", ErrInvalidInput)
	}
	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return fmt.Errorf("%w: password must contain a letter and a digit", ErrInvalidInput)
	}
	return nil
}

package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"danus-dashboard/backend/internal/dashboard"
	identitydomain "danus-dashboard/backend/internal/identity/domain"
	identityservice "danus-dashboard/backend/internal/identity/service"
	membershipdomain "danus-dashboard/backend/internal/membership/domain"
	orgdomain "danus-dashboard/backend/internal/organization/domain"
	"danus-dashboard/backend/internal/server/middleware"
	"danus-dashboard/backend/internal/session/gate"
	"danus-dashboard/backend/internal/telemetry"
	userdomain "danus-dashboard/backend/internal/user/domain"
)

// AuthAPI is the authentication service the HTTP surface drives. Implemented by
// *identityservice.AuthService.
type AuthAPI interface {
	Register(ctx context.Context, email, password, name string, entrepreneur bool) (*userdomain.User, error)
	SignIn(ctx context.Context, email, password string) (*identityservice.Credential, error)
	SignOut(ctx context.Context, token string) error
	Authenticate(ctx context.Context, token string) (*identitydomain.Principal, error)
}

// OrgStore reads organizations.
type OrgStore interface {
	GetOrganizationByID(ctx context.Context, id string) (*orgdomain.Org, error)
	ListOrganizations(ctx context.Context) ([]*orgdomain.Org, error)
}

// MembershipLister lists a user's memberships.
type MembershipLister interface {
	ListByUser(ctx context.Context, userID string) ([]*membershipdomain.Membership, error)
}

// CookieConfig configures the session cookie.
type CookieConfig struct {
	Name   string
	Secure bool
	MaxAge time.Duration
}

// HTTPDeps holds the dependencies of the HTTP surface. Health and Events may be nil.
type HTTPDeps struct {
	Auth              AuthAPI
	Resolver          dashboard.VerdictResolver
	Actions           dashboard.ActionLister
	Orgs              OrgStore
	Memberships       MembershipLister
	Health            http.Handler
	Events            telemetry.EventEmitter
	Cookie            CookieConfig
	SignInPath        string
	ProtectedPrefixes []string
}

// HTTPServer serves the dashboard, map and sign-in endpoints.
type HTTPServer struct {
	deps HTTPDeps
}

// NewHTTPServer returns the HTTP surface. An empty SignInPath defaults to "/login" and an
// empty prefix list protects "/dashboard" and "/map".
func NewHTTPServer(deps HTTPDeps) *HTTPServer {
	if deps.SignInPath == "" {
		deps.SignInPath = "/login"
	}
	if len(deps.ProtectedPrefixes) == 0 {
		deps.ProtectedPrefixes = []string{"/dashboard", "/map"}
	}
	if deps.Cookie.Name == "" {
		deps.Cookie.Name = "danus_session"
	}
	return &HTTPServer{deps: deps}
}

// Handler returns the chi router with every route mounted.
func (s *HTTPServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequireSession(middleware.SessionGuardConfig{
		Prefixes:      s.deps.ProtectedPrefixes,
		SignInPath:    s.deps.SignInPath,
		CookieName:    s.deps.Cookie.Name,
		Authenticator: s.deps.Auth,
		OnRedirect:    s.guardRedirected,
	}))
	s.RegisterRoutes(r)
	return r
}

// RegisterRoutes mounts every endpoint on r.
func (s *HTTPServer) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", s.handleHealth)
	r.Get(s.deps.SignInPath, s.handleLogin)
	r.Get("/map", s.handleMap)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Post("/sign-in", s.handleSignIn)
		r.Post("/sign-out", s.handleSignOut)
	})

	r.Route("/dashboard", func(r chi.Router) {
		r.Get("/", s.handleDashboard)
		r.Get("/orgs/{orgID}", s.handleOrgDashboard)
	})
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	s.deps.Health.ServeHTTP(w, r)
}

func (s *HTTPServer) guardRedirected(r *http.Request) {
	ev := telemetry.NewEvent(telemetry.EventGuardRedirect, "").With("path", r.URL.Path)
	ev.Source = "route_guard"
	ev.IP = clientIP(r)
	telemetry.EmitAsync(s.deps.Events, ev)
}

// newGate returns a gate for one request. The credential is read from the bearer header or the
// session cookie; changes are written back as cookies.
func (s *HTTPServer) newGate(w http.ResponseWriter, r *http.Request) *gate.Gate {
	store := &requestStore{
		CookieStore: gate.NewCookieStore(w, r, s.deps.Cookie.Name, s.deps.Cookie.Secure, s.deps.Cookie.MaxAge),
		bearer:      middleware.Credential(r, ""),
	}
	var auth gate.Authenticator = s.deps.Auth
	if p, ok := middleware.PrincipalFromContext(r.Context()); ok {
		auth = &knownPrincipal{AuthAPI: s.deps.Auth, credential: middleware.Credential(r, s.deps.Cookie.Name), principal: p}
	}
	return gate.New(store, auth)
}

// requestStore prefers a bearer credential over the cookie. Save and Clear drop the bearer.
type requestStore struct {
	*gate.CookieStore
	bearer string
}

func (s *requestStore) Load(ctx context.Context) (string, error) {
	if s.bearer != "" {
		return s.bearer, nil
	}
	return s.CookieStore.Load(ctx)
}

func (s *requestStore) Save(ctx context.Context, credential string) error {
	s.bearer = ""
	return s.CookieStore.Save(ctx, credential)
}

func (s *requestStore) Clear(ctx context.Context) error {
	s.bearer = ""
	return s.CookieStore.Clear(ctx)
}

// knownPrincipal reuses the principal the route guard already authenticated for this request.
type knownPrincipal struct {
	AuthAPI
	credential string
	principal  *identitydomain.Principal
}

func (k *knownPrincipal) Authenticate(ctx context.Context, credential string) (*identitydomain.Principal, error) {
	if credential != "" && credential == k.credential {
		return k.principal, nil
	}
	return k.AuthAPI.Authenticate(ctx, credential)
}

// httpNavigator turns a view guard redirect into 303 See Other.
type httpNavigator struct {
	w http.ResponseWriter
	r *http.Request
}

func (n *httpNavigator) Redirect(path string) {
	http.Redirect(n.w, n.r, middleware.SignInURL(path, n.r.URL.RequestURI()), http.StatusSeeOther)
}

// headerNotifier carries the notice to the client in a response header.
type headerNotifier struct {
	w http.ResponseWriter
}

func (n *headerNotifier) Notify(message string) {
	n.w.Header().Set("X-Notice", message)
}

const maxBodyBytes = 1 << 20

type jsonErr struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, jsonErr{Error: msg, Code: status})
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// safeNext returns next if it is a local absolute path, else fallback.
func safeNext(next, fallback string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, "\\") {
		return fallback
	}
	return next
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

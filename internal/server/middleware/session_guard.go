// Package middleware holds the HTTP middleware that backs the dashboard's render-level guard
// with a request-level check.
package middleware

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	identitydomain "danus-dashboard/backend/internal/identity/domain"
	"danus-dashboard/backend/internal/server/interceptors"
)

// Authenticator validates a session credential.
type Authenticator interface {
	Authenticate(ctx context.Context, credential string) (*identitydomain.Principal, error)
}

// SessionGuardConfig configures RequireSession.
type SessionGuardConfig struct {
	// Prefixes are protected path prefixes such as "/dashboard". A prefix protects itself and
	// everything below it, never siblings like "/dashboardx".
	Prefixes      []string
	SignInPath    string
	CookieName    string
	Authenticator Authenticator
	// OnRedirect, if set, is called for every request sent to sign-in.
	OnRedirect func(r *http.Request)
}

type principalKeyType struct{}

var principalKey principalKeyType

// PrincipalFromContext returns the principal RequireSession attached to the request.
func PrincipalFromContext(ctx context.Context) (*identitydomain.Principal, bool) {
	p, ok := ctx.Value(principalKey).(*identitydomain.Principal)
	return p, ok && p != nil
}

// WithPrincipal attaches p and its identity to ctx.
func WithPrincipal(ctx context.Context, p *identitydomain.Principal) context.Context {
	ctx = context.WithValue(ctx, principalKey, p)
	if p != nil && p.User != nil {
		ctx = interceptors.WithIdentity(ctx, p.User.ID, p.SessionID)
	}
	return ctx
}

// RequireSession sends requests for protected paths without a valid credential to the sign-in
// path with 303 See Other, carrying the original path in ?next=. Valid requests continue with
// the principal in their context. Other paths pass through untouched.
func RequireSession(cfg SessionGuardConfig) func(http.Handler) http.Handler {
	prefixes := make([]string, 0, len(cfg.Prefixes))
	for _, p := range cfg.Prefixes {
		if p = strings.TrimRight(strings.TrimSpace(p), "/"); p != "" {
			prefixes = append(prefixes, p)
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !IsProtected(prefixes, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			credential := Credential(r, cfg.CookieName)
			if credential != "" {
				p, err := cfg.Authenticator.Authenticate(r.Context(), credential)
				if err == nil && p != nil && p.User != nil {
					next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
					return
				}
			}
			if cfg.OnRedirect != nil {
				cfg.OnRedirect(r)
			}
			http.Redirect(w, r, SignInURL(cfg.SignInPath, r.URL.RequestURI()), http.StatusSeeOther)
		})
	}
}

// IsProtected reports whether path equals a prefix or lies below one.
func IsProtected(prefixes []string, path string) bool {
	for _, p := range prefixes {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// Credential returns the bearer token, falling back to the session cookie.
func Credential(r *http.Request, cookieName string) string {
	if t := interceptors.ParseBearer(r.Header.Get("Authorization")); t != "" {
		return t
	}
	if cookieName == "" {
		return ""
	}
	if c, err := r.Cookie(cookieName); err == nil {
		return c.Value
	}
	return ""
}

// SignInURL returns signInPath with next set to the page the user asked for.
func SignInURL(signInPath, next string) string {
	if next == "" || next == signInPath {
		return signInPath
	}
	return signInPath + "?next=" + url.QueryEscape(next)
}

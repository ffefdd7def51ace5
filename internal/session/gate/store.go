package gate

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"
)

// MemoryStore keeps the credential in memory. The zero value is empty and ready to use.
type MemoryStore struct {
	mu         sync.Mutex
	credential string
}

func (s *MemoryStore) Load(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.credential, nil
}

func (s *MemoryStore) Save(_ context.Context, credential string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credential = credential
	return nil
}

func (s *MemoryStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credential = ""
	return nil
}

// CookieStore reads the credential from one request's cookie and writes changes to its response.
type CookieStore struct {
	r      *http.Request
	w      http.ResponseWriter
	name   string
	secure bool
	maxAge time.Duration

	mu      sync.Mutex
	current *string // set after Save or Clear; overrides the request cookie
}

// NewCookieStore returns a store bound to one request/response pair.
func NewCookieStore(w http.ResponseWriter, r *http.Request, name string, secure bool, maxAge time.Duration) *CookieStore {
	return &CookieStore{r: r, w: w, name: name, secure: secure, maxAge: maxAge}
}

func (s *CookieStore) Load(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		return *s.current, nil
	}
	c, err := s.r.Cookie(s.name)
	if errors.Is(err, http.ErrNoCookie) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return c.Value, nil
}

func (s *CookieStore) Save(_ context.Context, credential string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = &credential
	http.SetCookie(s.w, s.cookie(credential, int(s.maxAge.Seconds())))
	return nil
}

func (s *CookieStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	empty := ""
	s.current = &empty
	http.SetCookie(s.w, s.cookie("", -1))
	return nil
}

func (s *CookieStore) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     s.name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

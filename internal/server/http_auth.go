package server

import (
	"errors"
	"log"
	"net/http"
	"time"

	identityservice "danus-dashboard/backend/internal/identity/service"
	"danus-dashboard/backend/internal/session/gate"
	userdomain "danus-dashboard/backend/internal/user/domain"
)

type userView struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	Name           string `json:"name"`
	IsEntrepreneur bool   `json:"is_entrepreneur"`
}

func newUserView(u *userdomain.User) *userView {
	if u == nil {
		return nil
	}
	return &userView{ID: u.ID, Email: u.Email, Name: u.Name, IsEntrepreneur: u.IsEntrepreneur}
}

type registerRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	Name         string `json:"name"`
	Entrepreneur bool   `json:"entrepreneur"`
}

func (s *HTTPServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	u, err := s.deps.Auth.Register(r.Context(), req.Email, req.Password, req.Name, req.Entrepreneur)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, newUserView(u))
	case errors.Is(err, identityservice.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, identityservice.ErrEmailAlreadyRegistered):
		writeError(w, http.StatusConflict, "email already registered")
	default:
		log.Printf("http: register: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Next     string `json:"next,omitempty"`
}

type signInResponse struct {
	User      *userView `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Next      string    `json:"next"`
}

func (s *HTTPServer) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	cred, err := s.deps.Auth.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		if !errors.Is(err, identityservice.ErrInvalidCredentials) {
			log.Printf("http: sign in: %v", err)
		}
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	snap, err := s.newGate(w, r).SignIn(r.Context(), cred.Token)
	if err != nil {
		log.Printf("http: settle gate after sign in: %v", err)
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	writeJSON(w, http.StatusOK, signInResponse{
		User:      newUserView(snap.User),
		Token:     cred.Token,
		ExpiresAt: cred.ExpiresAt,
		Next:      safeNext(req.Next, "/dashboard"),
	})
}

func (s *HTTPServer) handleSignOut(w http.ResponseWriter, r *http.Request) {
	g := s.newGate(w, r)
	g.Restore(r.Context())
	snap := g.SignOut(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"state": snap.State.String()})
}

// handleLogin is the sign-in entry point guards redirect to. A settled, signed-in user is sent
// on to next.
func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	next := safeNext(r.URL.Query().Get("next"), "/dashboard")
	snap := s.newGate(w, r).Restore(r.Context())
	if snap.State == gate.StateAuthenticated {
		http.Redirect(w, r, next, http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"sign_in": "/auth/sign-in",
		"next":    next,
	})
}

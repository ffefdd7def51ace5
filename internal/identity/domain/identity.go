package domain

import (
	"time"

	userdomain "danus-dashboard/backend/internal/user/domain"
)

// Identity represents a user's linked sign-in identity.
type Identity struct {
	ID           string
	UserID       string
	Provider     IdentityProvider
	ProviderID   string
	PasswordHash string // empty if not local
	CreatedAt    time.Time
}

type IdentityProvider string

const (
	IdentityProviderLocal IdentityProvider = "local"
)

// Principal is an authenticated user bound to the session its credential was issued for.
type Principal struct {
	SessionID string
	User      *userdomain.User
}

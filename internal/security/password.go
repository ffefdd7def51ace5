package security

import (
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher hashes and verifies passwords using bcrypt. Callers must not log or
// persist plaintext passwords.
type PasswordHasher struct {
	Cost int

	dummyOnce sync.Once
	dummy     []byte
}

// NewPasswordHasher returns a PasswordHasher with cost clamped to bcrypt's range.
// Zero selects bcrypt.DefaultCost.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	cost = min(max(cost, bcrypt.MinCost), bcrypt.MaxCost)
	return &PasswordHasher{Cost: cost}
}

// Hash returns a bcrypt hash of password suitable for storage.
func (h *PasswordHasher) Hash(password []byte) (string, error) {
	b, err := bcrypt.GenerateFromPassword(password, h.Cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Compare returns nil when password matches hash.
func (h *PasswordHasher) Compare(hash string, password []byte) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), password)
}

// CompareDummy spends the same work as Compare against a throwaway hash. Sign-in calls it
// when the email is unknown so response time does not reveal which accounts exist.
func (h *PasswordHasher) CompareDummy(password []byte) {
	h.dummyOnce.Do(func() {
		h.dummy, _ = bcrypt.GenerateFromPassword([]byte("dummy-password"), h.Cost)
	})
	_ = bcrypt.CompareHashAndPassword(h.dummy, password)
}

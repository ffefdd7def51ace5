package security

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"time"
)

// NewTestCredentialIssuer returns a CredentialIssuer backed by a freshly generated P-256 key.
// For unit tests only.
func NewTestCredentialIssuer(ttl time.Duration) (*CredentialIssuer, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return NewCredentialIssuer(key, key.Public(), "test-issuer", "test-audience", ttl)
}

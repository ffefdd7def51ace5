package security

import (
	"crypto"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned when a session credential is malformed, expired, or signed by another key.
var ErrInvalidToken = errors.New("invalid token")

// SessionClaims are the claims carried by a session credential.
type SessionClaims struct {
	jwt.RegisteredClaims
	SessionID string `json:"session_id"`
}

// CredentialIssuer issues and validates signed session credentials (RS256 or ES256).
type CredentialIssuer struct {
	privateKey crypto.Signer
	publicKey  crypto.PublicKey
	method     jwt.SigningMethod
	issuer     string
	audience   string
	ttl        time.Duration
	now        func() time.Time
}

// NewCredentialIssuer returns a CredentialIssuer signing with privateKey. The signing algorithm
// follows the key type.
func NewCredentialIssuer(privateKey crypto.Signer, publicKey crypto.PublicKey, issuer, audience string, ttl time.Duration) (*CredentialIssuer, error) {
	method := signingMethod(privateKey.Public())
	if method == nil {
		return nil, ErrInvalidKey
	}
	return &CredentialIssuer{
		privateKey: privateKey,
		publicKey:  publicKey,
		method:     method,
		issuer:     issuer,
		audience:   audience,
		ttl:        ttl,
		now:        time.Now,
	}, nil
}

// TTL is the lifetime of issued credentials.
func (c *CredentialIssuer) TTL() time.Duration { return c.ttl }

// Issue returns a credential binding userID to sessionID, and its expiry.
func (c *CredentialIssuer) Issue(sessionID, userID string) (string, time.Time, error) {
	now := c.now().UTC()
	expiresAt := now.Add(c.ttl)
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			Subject:   userID,
			Issuer:    c.issuer,
			Audience:  jwt.ClaimStrings{c.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		SessionID: sessionID,
	}
	token, err := jwt.NewWithClaims(c.method, claims).SignedString(c.privateKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// Validate checks signature, expiry, issuer and audience and returns the session and user ids.
func (c *CredentialIssuer) Validate(token string) (sessionID, userID string, err error) {
	claims := &SessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return c.publicKey, nil
	},
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithAudience(c.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil || !parsed.Valid {
		return "", "", ErrInvalidToken
	}
	if claims.SessionID == "" || claims.Subject == "" {
		return "", "", ErrInvalidToken
	}
	return claims.SessionID, claims.Subject, nil
}

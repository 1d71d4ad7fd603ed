// Package auth verifies client-presented bearer tokens and resolves them to
// an owner identity. The gateway verifies exactly once per connection, before
// any protocol message is processed.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for any token that fails verification,
// regardless of the underlying reason (bad signature, expiry, wrong issuer).
// Callers must not leak the reason to the client.
var ErrInvalidToken = errors.New("auth: invalid token")

// Identity is the authenticated principal behind a connection.
type Identity struct {
	// OwnerID scopes all session ownership checks. Never empty for a
	// successfully verified token.
	OwnerID string

	// Email is informational and may be empty.
	Email string
}

// Verifier validates a raw bearer token and resolves the caller's identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// ─────────────────────────────────────────────────────────────────────────────
// JWT verifier
// ─────────────────────────────────────────────────────────────────────────────

// Compile-time interface check.
var _ Verifier = (*JWTVerifier)(nil)

// JWTVerifier validates HS256-signed JWTs against a shared secret.
// Issuer and audience checks are applied only when configured.
type JWTVerifier struct {
	secret   []byte
	issuer   string
	audience string
}

// JWTOption customizes a [JWTVerifier].
type JWTOption func(*JWTVerifier)

// WithIssuer requires the token "iss" claim to equal issuer.
func WithIssuer(issuer string) JWTOption {
	return func(v *JWTVerifier) { v.issuer = issuer }
}

// WithAudience requires the token "aud" claim to contain audience.
func WithAudience(audience string) JWTOption {
	return func(v *JWTVerifier) { v.audience = audience }
}

// NewJWTVerifier creates a verifier for HS256 tokens signed with secret.
func NewJWTVerifier(secret []byte, opts ...JWTOption) (*JWTVerifier, error) {
	if len(secret) == 0 {
		return nil, errors.New("auth: empty signing secret")
	}
	v := &JWTVerifier{secret: secret}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Verify implements [Verifier]. The token subject becomes the owner ID.
func (v *JWTVerifier) Verify(_ context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrInvalidToken
	}

	parseOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		parseOpts = append(parseOpts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		parseOpts = append(parseOpts, jwt.WithAudience(v.audience))
	}

	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, parseOpts...)
	if err != nil || !parsed.Valid {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return Identity{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	id := Identity{OwnerID: sub}
	if email, ok := claims["email"].(string); ok {
		id.Email = email
	}
	return id, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Static verifier
// ─────────────────────────────────────────────────────────────────────────────

// Compile-time interface check.
var _ Verifier = (*Static)(nil)

// Static maps literal token strings to identities. Intended for tests and
// local development only.
type Static struct {
	// Tokens maps an exact token string to its identity.
	Tokens map[string]Identity
}

// Verify implements [Verifier].
func (s *Static) Verify(_ context.Context, token string) (Identity, error) {
	id, ok := s.Tokens[token]
	if !ok {
		return Identity{}, ErrInvalidToken
	}
	return id, nil
}

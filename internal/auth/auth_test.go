package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("test-secret")

func signToken(t *testing.T, secret []byte, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub":   "user-123",
		"email": "alice@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
}

func TestJWTVerifierAcceptsValidToken(t *testing.T) {
	v, err := NewJWTVerifier(testSecret)
	if err != nil {
		t.Fatalf("NewJWTVerifier() error = %v", err)
	}

	id, err := v.Verify(context.Background(), signToken(t, testSecret, validClaims()))
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if id.OwnerID != "user-123" {
		t.Errorf("OwnerID = %q, want %q", id.OwnerID, "user-123")
	}
	if id.Email != "alice@example.com" {
		t.Errorf("Email = %q, want %q", id.Email, "alice@example.com")
	}
}

func TestJWTVerifierRejections(t *testing.T) {
	v, err := NewJWTVerifier(testSecret, WithIssuer("scribed"))
	if err != nil {
		t.Fatalf("NewJWTVerifier() error = %v", err)
	}

	expired := validClaims()
	expired["iss"] = "scribed"
	expired["exp"] = time.Now().Add(-time.Hour).Unix()

	noSubject := validClaims()
	noSubject["iss"] = "scribed"
	delete(noSubject, "sub")

	withIssuer := validClaims()
	withIssuer["iss"] = "scribed"

	wrongIssuer := validClaims()
	wrongIssuer["iss"] = "someone-else"

	cases := map[string]string{
		"empty":           "",
		"garbage":         "not.a.jwt",
		"wrong secret":    signToken(t, []byte("other-secret"), withIssuer),
		"expired":         signToken(t, testSecret, expired),
		"missing subject": signToken(t, testSecret, noSubject),
		"wrong issuer":    signToken(t, testSecret, wrongIssuer),
		"missing issuer":  signToken(t, testSecret, validClaims()),
	}
	for name, token := range cases {
		if _, err := v.Verify(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Verify(%s): error = %v, want ErrInvalidToken", name, err)
		}
	}

	if _, err := v.Verify(context.Background(), signToken(t, testSecret, withIssuer)); err != nil {
		t.Errorf("Verify(valid with issuer): error = %v", err)
	}
}

func TestJWTVerifierRejectsUnexpectedAlgorithm(t *testing.T) {
	v, err := NewJWTVerifier(testSecret)
	if err != nil {
		t.Fatalf("NewJWTVerifier() error = %v", err)
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodNone, validClaims())
	signed, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign unsigned token: %v", err)
	}
	if _, err := v.Verify(context.Background(), signed); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify(alg=none): error = %v, want ErrInvalidToken", err)
	}
}

func TestNewJWTVerifierEmptySecret(t *testing.T) {
	if _, err := NewJWTVerifier(nil); err == nil {
		t.Error("NewJWTVerifier(nil) error = nil, want error")
	}
}

func TestStaticVerifier(t *testing.T) {
	v := &Static{Tokens: map[string]Identity{
		"tok-alice": {OwnerID: "alice"},
	}}

	id, err := v.Verify(context.Background(), "tok-alice")
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if id.OwnerID != "alice" {
		t.Errorf("OwnerID = %q, want %q", id.OwnerID, "alice")
	}

	if _, err := v.Verify(context.Background(), "tok-unknown"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify(unknown): error = %v, want ErrInvalidToken", err)
	}
}

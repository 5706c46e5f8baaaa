// ABOUTME: Unit tests for admin token inspection
// ABOUTME: Tests claim extraction, expiry checks, and non-JWT tokens

package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte("platform-secret-we-do-not-know"))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return s
}

func TestInspect_Claims(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	iat := time.Now().Add(-time.Minute).Truncate(time.Second)

	token := signToken(t, jwt.MapClaims{
		"sub":   "admin-7",
		"name":  "Ada",
		"email": "ada@example.com",
		"role":  "admin",
		"exp":   exp.Unix(),
		"iat":   iat.Unix(),
	})

	info, err := Inspect(token)
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}

	if info.Subject != "admin-7" {
		t.Errorf("Subject = %q, want admin-7", info.Subject)
	}
	if info.Name != "Ada" || info.Email != "ada@example.com" || info.Role != "admin" {
		t.Errorf("unexpected profile claims: %+v", info)
	}
	if !info.ExpiresAt.Equal(exp) {
		t.Errorf("ExpiresAt = %v, want %v", info.ExpiresAt, exp)
	}
	if !info.IssuedAt.Equal(iat) {
		t.Errorf("IssuedAt = %v, want %v", info.IssuedAt, iat)
	}
	if info.Expired(time.Now()) {
		t.Error("token should not be expired")
	}
	if info.ExpiresIn(time.Now()) <= 0 {
		t.Error("ExpiresIn should be positive")
	}
}

func TestInspect_ExpiredTokenStillDecodes(t *testing.T) {
	token := signToken(t, jwt.MapClaims{
		"id":  float64(42),
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	info, err := Inspect(token)
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	if info.Subject != "42" {
		t.Errorf("Subject = %q, want 42 from the id claim", info.Subject)
	}
	if !info.Expired(time.Now()) {
		t.Error("token should be expired")
	}
	if info.ExpiresIn(time.Now()) != 0 {
		t.Error("ExpiresIn should be zero once expired")
	}
}

func TestInspect_NoExpiry(t *testing.T) {
	info, err := Inspect(signToken(t, jwt.MapClaims{"sub": "x"}))
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	if !info.ExpiresAt.IsZero() {
		t.Errorf("ExpiresAt = %v, want zero", info.ExpiresAt)
	}
	if info.Expired(time.Now()) {
		t.Error("token without exp never counts as expired")
	}
}

func TestInspect_InvalidTokens(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{"empty token", "", ErrEmptyToken},
		{"opaque token", "3f9a1c0d8e", ErrOpaqueToken},
		{"malformed JWT", "header.payload.signature", ErrOpaqueToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Inspect(tt.token)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Inspect() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// ABOUTME: Inspection of the admin bearer token issued by the platform
// ABOUTME: Reads JWT claims without verifying the signature; the platform API verifies

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token errors
var (
	ErrEmptyToken  = errors.New("empty token")
	ErrOpaqueToken = errors.New("token is not a JWT")
)

// TokenInfo is what the dashboard can learn from a token locally.
type TokenInfo struct {
	Subject   string
	Name      string
	Email     string
	Role      string
	IssuedAt  time.Time
	ExpiresAt time.Time // zero when the token carries no exp claim
}

// Expired reports whether the token's exp claim is in the past.
func (i *TokenInfo) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && !now.Before(i.ExpiresAt)
}

// ExpiresIn returns the time left, or zero when expired or unknown.
func (i *TokenInfo) ExpiresIn(now time.Time) time.Duration {
	if i.ExpiresAt.IsZero() || i.Expired(now) {
		return 0
	}
	return i.ExpiresAt.Sub(now)
}

// Inspect decodes the claims of a JWT bearer token. The signature is not
// checked: the dashboard never trusts these claims for access decisions,
// it only shows them and warns about expiry before the API rejects the
// token. Tokens that are not JWTs yield ErrOpaqueToken.
func Inspect(tokenString string) (*TokenInfo, error) {
	if tokenString == "" {
		return nil, ErrEmptyToken
	}

	claims := jwt.MapClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(tokenString, claims)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpaqueToken, err)
	}

	info := &TokenInfo{
		Name:  stringClaim(claims, "name"),
		Email: stringClaim(claims, "email"),
		Role:  stringClaim(claims, "role"),
	}

	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		info.Subject = sub
	} else {
		info.Subject = firstNonEmpty(stringClaim(claims, "id"), stringClaim(claims, "userId"))
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		info.ExpiresAt = exp.Time
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		info.IssuedAt = iat.Time
	}
	return info, nil
}

// stringClaim renders string and numeric claims as strings.
func stringClaim(claims jwt.MapClaims, key string) string {
	switch v := claims[key].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	default:
		return ""
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

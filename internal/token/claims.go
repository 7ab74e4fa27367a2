// Package token decodes access-token claims and classifies stored tokens as
// valid, expired or absent. Signatures are never checked here; the backend
// is the verification authority.
package token

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// ErrNoExpiry is returned for tokens that carry no exp claim.
var ErrNoExpiry = errors.New("token has no exp claim")

// Claims are the timing claims read from an access token.
type Claims struct {
	ExpiresAt time.Time
	IssuedAt  time.Time
}

var parser = jwt.NewParser()

// Decode reads the claims of raw without verifying its signature.
func Decode(raw string) (Claims, error) {
	var registered jwt.RegisteredClaims
	if _, _, err := parser.ParseUnverified(raw, &registered); err != nil {
		return Claims{}, fmt.Errorf("decode token: %w", err)
	}
	if registered.ExpiresAt == nil {
		return Claims{}, ErrNoExpiry
	}

	claims := Claims{ExpiresAt: registered.ExpiresAt.Time}
	if registered.IssuedAt != nil {
		claims.IssuedAt = registered.IssuedAt.Time
	}
	return claims, nil
}

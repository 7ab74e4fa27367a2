package token

import (
	"context"
	"time"

	"github.com/spec-kit/portal-session/internal/domain"
)

// Status classifies a stored access token.
type Status int

const (
	StatusAbsent Status = iota
	StatusExpired
	StatusValid
)

func (s Status) String() string {
	switch s {
	case StatusValid:
		return "valid"
	case StatusExpired:
		return "expired"
	default:
		return "absent"
	}
}

// Clock returns the current time.
type Clock func() time.Time

// TokenSource yields the stored token pair of a role.
type TokenSource interface {
	LoadTokens(ctx context.Context, role domain.Role) (domain.TokenPair, bool, error)
}

// Gate decides whether an access token may still be sent.
type Gate struct {
	now Clock
}

// NewGate builds a gate reading wall-clock time from now; nil means time.Now.
func NewGate(now Clock) *Gate {
	if now == nil {
		now = time.Now
	}
	return &Gate{now: now}
}

// Status classifies raw. A token whose exp is at or before the current second
// is expired, and so is anything that fails to decode.
func (g *Gate) Status(raw string) Status {
	if raw == "" {
		return StatusAbsent
	}
	claims, err := Decode(raw)
	if err != nil {
		return StatusExpired
	}
	if claims.ExpiresAt.Unix() <= g.now().UTC().Unix() {
		return StatusExpired
	}
	return StatusValid
}

// Check loads the access token stored for role and classifies it.
func (g *Gate) Check(ctx context.Context, src TokenSource, role domain.Role) (Status, string, error) {
	tokens, ok, err := src.LoadTokens(ctx, role)
	if err != nil {
		return StatusAbsent, "", err
	}
	if !ok || tokens.AccessToken == "" {
		return StatusAbsent, "", nil
	}
	return g.Status(tokens.AccessToken), tokens.AccessToken, nil
}

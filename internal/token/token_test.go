package token

import (
	"context"
	"errors"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/portal-session/internal/domain"
)

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("unrelated-secret"))
	require.NoError(t, err)
	return raw
}

func fixedClock(at time.Time) Clock {
	return func() time.Time { return at }
}

func TestDecode(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	raw := signed(t, jwt.MapClaims{"exp": now.Unix() + 60, "iat": now.Unix()})

	claims, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, now.Unix()+60, claims.ExpiresAt.Unix())
	assert.Equal(t, now.Unix(), claims.IssuedAt.Unix())
}

func TestDecode_Failures(t *testing.T) {
	_, err := Decode("not-a-token")
	assert.Error(t, err)

	_, err = Decode(signed(t, jwt.MapClaims{"sub": "1"}))
	assert.ErrorIs(t, err, ErrNoExpiry)
}

func TestGate_Status(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	gate := NewGate(fixedClock(now))

	cases := []struct {
		name string
		raw  string
		want Status
	}{
		{name: "empty", raw: "", want: StatusAbsent},
		{name: "one second ago", raw: signed(t, jwt.MapClaims{"exp": now.Unix() - 1}), want: StatusExpired},
		{name: "exactly now", raw: signed(t, jwt.MapClaims{"exp": now.Unix()}), want: StatusExpired},
		{name: "one hour ahead", raw: signed(t, jwt.MapClaims{"exp": now.Unix() + 3600}), want: StatusValid},
		{name: "garbage", raw: "abc.def.ghi", want: StatusExpired},
		{name: "no exp", raw: signed(t, jwt.MapClaims{"iat": now.Unix()}), want: StatusExpired},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, gate.Status(tc.raw))
		})
	}
}

type stubSource struct {
	pair domain.TokenPair
	ok   bool
	err  error
}

func (s stubSource) LoadTokens(context.Context, domain.Role) (domain.TokenPair, bool, error) {
	return s.pair, s.ok, s.err
}

func TestGate_Check(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	gate := NewGate(fixedClock(now))
	valid := signed(t, jwt.MapClaims{"exp": now.Unix() + 10})

	status, raw, err := gate.Check(context.Background(), stubSource{pair: domain.TokenPair{AccessToken: valid}, ok: true}, domain.RoleUser)
	require.NoError(t, err)
	assert.Equal(t, StatusValid, status)
	assert.Equal(t, valid, raw)

	status, _, err = gate.Check(context.Background(), stubSource{}, domain.RoleUser)
	require.NoError(t, err)
	assert.Equal(t, StatusAbsent, status)

	boom := errors.New("medium down")
	_, _, err = gate.Check(context.Background(), stubSource{err: boom}, domain.RoleAdmin)
	assert.ErrorIs(t, err, boom)
}

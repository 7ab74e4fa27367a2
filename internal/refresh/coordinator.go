// Package refresh exchanges refresh tokens for new access tokens, collapsing
// concurrent refresh attempts for the same role onto one backend call.
package refresh

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/spec-kit/portal-session/internal/domain"
	"github.com/spec-kit/portal-session/internal/observability"
	"github.com/spec-kit/portal-session/internal/session"
	"github.com/spec-kit/portal-session/internal/token"
)

const defaultTimeout = 10 * time.Second

var errEmptyAccessToken = errors.New("refresh response carried no access token")

// Refresher performs the refresh call against the backend.
type Refresher interface {
	Refresh(ctx context.Context, role domain.Role, refreshToken string) (domain.TokenPair, error)
}

// Dependencies bundles the collaborators of a Coordinator.
type Dependencies struct {
	Store     *session.Store
	Gate      *token.Gate
	Refresher Refresher
	Logger    *zap.Logger
	Metrics   *observability.Metrics
}

// Coordinator hands out usable access tokens, refreshing them when needed.
type Coordinator struct {
	store     *session.Store
	gate      *token.Gate
	refresher Refresher
	logger    *zap.Logger
	metrics   *observability.Metrics
	timeout   time.Duration

	group singleflight.Group
}

// NewCoordinator builds a coordinator. timeout bounds each shared refresh call.
func NewCoordinator(deps Dependencies, timeout time.Duration) *Coordinator {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if deps.Gate == nil {
		deps.Gate = token.NewGate(nil)
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Coordinator{
		store:     deps.Store,
		gate:      deps.Gate,
		refresher: deps.Refresher,
		logger:    deps.Logger,
		metrics:   deps.Metrics,
		timeout:   timeout,
	}
}

// EnsureValidAccessToken returns a usable access token for role, refreshing
// an expired one first. An empty token means the role is no longer
// authenticated; callers must not retry the refresh themselves.
func (c *Coordinator) EnsureValidAccessToken(ctx context.Context, role domain.Role) (string, error) {
	status, access, err := c.gate.Check(ctx, c.store, role)
	if err != nil {
		return "", err
	}
	switch status {
	case token.StatusValid:
		return access, nil
	case token.StatusAbsent:
		return "", nil
	}
	return c.refresh(ctx, role, access)
}

// ForceRefresh refreshes after the backend rejected the access token
// rejected, whatever its exp claim says. When the stored token already
// differs from rejected and is valid, it is returned without a call.
func (c *Coordinator) ForceRefresh(ctx context.Context, role domain.Role, rejected string) (string, error) {
	return c.refresh(ctx, role, rejected)
}

// refresh joins the in-flight refresh for role or starts one. The caller's
// context only bounds its own wait.
func (c *Coordinator) refresh(ctx context.Context, role domain.Role, stale string) (string, error) {
	if !role.Valid() {
		return "", nil
	}
	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(string(role), func() (interface{}, error) {
		return c.run(detached, role, stale)
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Shared {
			c.metrics.RecordRefresh(string(role), observability.RefreshShared)
		}
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (c *Coordinator) run(parent context.Context, role domain.Role, stale string) (string, error) {
	ctx, cancel := context.WithTimeout(parent, c.timeout)
	defer cancel()

	tokens, ok, err := c.store.LoadTokens(ctx, role)
	if err != nil {
		return "", err
	}
	if !ok {
		c.metrics.RecordRefresh(string(role), observability.RefreshSkipped)
		return "", nil
	}
	if tokens.AccessToken != stale && c.gate.Status(tokens.AccessToken) == token.StatusValid {
		c.metrics.RecordRefresh(string(role), observability.RefreshSkipped)
		return tokens.AccessToken, nil
	}
	if tokens.RefreshToken == "" {
		c.logger.Info("session has no refresh token; clearing", zap.String("role", string(role)))
		_, err := c.store.ClearStale(ctx, role, tokens.RefreshToken)
		return "", err
	}

	c.metrics.RecordRefresh(string(role), observability.RefreshStarted)
	pair, err := c.refresher.Refresh(ctx, role, tokens.RefreshToken)
	if err == nil && pair.AccessToken == "" {
		err = errEmptyAccessToken
	}
	if err != nil {
		c.metrics.RecordRefresh(string(role), observability.RefreshFailed)
		c.logger.Warn("token refresh failed; clearing session", zap.String("role", string(role)), zap.Error(err))
		_, clearErr := c.store.ClearStale(parent, role, tokens.RefreshToken)
		return "", clearErr
	}

	if pair.RefreshToken == "" {
		pair.RefreshToken = tokens.RefreshToken
	}
	replaced, err := c.store.ReplaceTokens(ctx, role, tokens.RefreshToken, pair)
	if err != nil {
		return "", err
	}
	if !replaced {
		c.logger.Info("session changed during refresh; discarding new token", zap.String("role", string(role)))
		return "", nil
	}

	c.metrics.RecordRefresh(string(role), observability.RefreshSucceeded)
	c.logger.Debug("access token refreshed", zap.String("role", string(role)))
	return pair.AccessToken, nil
}

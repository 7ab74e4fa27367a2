package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/spec-kit/portal-session/internal/apierror"
	"github.com/spec-kit/portal-session/internal/domain"
	"github.com/spec-kit/portal-session/internal/events"
)

// Credentials are posted to a login endpoint.
type Credentials struct {
	LoginID  string `json:"loginId"`
	Password string `json:"password"`
}

// Login signs in as role and drops any session of the other role.
func (c *Client) Login(ctx context.Context, role domain.Role, creds Credentials) (*Result, error) {
	return c.login(ctx, role, creds, true)
}

// LoginConcurrent signs in as role and keeps a resident session of the other role.
func (c *Client) LoginConcurrent(ctx context.Context, role domain.Role, creds Credentials) (*Result, error) {
	return c.login(ctx, role, creds, false)
}

func (c *Client) login(ctx context.Context, role domain.Role, creds Credentials, exclusive bool) (*Result, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("login: unknown role %q", role)
	}
	body, err := json.Marshal(creds)
	if err != nil {
		return nil, fmt.Errorf("encode credentials: %w", err)
	}

	a := c.transport.do(ctx, call{
		method:  http.MethodPost,
		path:    c.transport.paths.login(role),
		body:    body,
		timeout: c.timeout,
	})
	if !a.success {
		return c.finish(http.MethodPost, a, role, true), nil
	}

	payload, err := parseAuthPayload(a.raw)
	if err != nil || payload.identity == nil || !payload.identity.Matches(role) {
		c.logger.Warn("unusable login response", zap.String("role", string(role)), zap.Error(err))
		a.success = false
		a.code = domain.CodeInvalidResponse
		return c.finish(http.MethodPost, a, role, true), nil
	}

	if exclusive {
		err = c.store.LoginExclusive(ctx, role, *payload.identity, payload.tokens)
	} else {
		err = c.store.SaveSession(ctx, role, *payload.identity, payload.tokens)
	}
	if err != nil {
		return nil, err
	}

	identity, err := json.Marshal(payload.identity)
	if err != nil {
		return nil, fmt.Errorf("encode identity: %w", err)
	}
	c.logger.Info("signed in",
		zap.String("role", string(role)),
		zap.Int64("account_id", payload.identity.ID),
		zap.Bool("exclusive", exclusive),
	)
	ev := events.NewEvent(events.EventSignedIn, role)
	ev.AccountID = payload.identity.ID
	c.publish(ctx, ev)
	return &Result{Success: true, Status: a.status, Data: identity}, nil
}

// Logout ends the current role's session and returns the role it ended.
// The backend is told to revoke the refresh token on a best-effort basis;
// the local session is cleared whatever it answers.
func (c *Client) Logout(ctx context.Context) (domain.Role, error) {
	role, err := c.store.CurrentRole(ctx)
	if err != nil {
		return domain.RoleNone, err
	}
	if role == domain.RoleNone {
		return role, nil
	}
	c.revoke(ctx, role)
	if err := c.store.ClearRole(ctx, role); err != nil {
		return role, err
	}
	c.publish(ctx, events.NewEvent(events.EventSignedOut, role))
	return role, nil
}

// LogoutAll ends the sessions of both roles.
func (c *Client) LogoutAll(ctx context.Context) error {
	var ended []domain.Role
	for _, role := range domain.Roles {
		if _, ok, err := c.store.LoadIdentity(ctx, role); err == nil && ok {
			ended = append(ended, role)
		}
		c.revoke(ctx, role)
	}
	if err := c.store.ClearAll(ctx); err != nil {
		return err
	}
	for _, role := range ended {
		c.publish(ctx, events.NewEvent(events.EventSignedOut, role))
	}
	return nil
}

func (c *Client) publish(ctx context.Context, ev events.Event) {
	if c.events == nil {
		return
	}
	if err := c.events.Publish(ctx, ev); err != nil {
		c.logger.Warn("session event handler failed", zap.String("type", string(ev.Type)), zap.Error(err))
	}
}

func (c *Client) revoke(ctx context.Context, role domain.Role) {
	if c.transport.paths.Logout == "" {
		return
	}
	tokens, ok, err := c.store.LoadTokens(ctx, role)
	if err != nil || !ok || tokens.RefreshToken == "" {
		return
	}
	body, err := json.Marshal(map[string]string{"refreshToken": tokens.RefreshToken})
	if err != nil {
		return
	}
	a := c.transport.do(ctx, call{
		method:  http.MethodPost,
		path:    c.transport.paths.Logout,
		body:    body,
		bearer:  tokens.AccessToken,
		timeout: c.timeout,
	})
	if !a.success {
		c.logger.Info("logout not acknowledged by backend",
			zap.String("role", string(role)),
			zap.Int("status", a.status),
			zap.String("code", a.code.String()),
		)
	}
}

// CurrentRole reports the active role; admin wins when both are signed in.
func (c *Client) CurrentRole(ctx context.Context) (domain.Role, error) {
	return c.store.CurrentRole(ctx)
}

// Identity returns the identity record held for role.
func (c *Client) Identity(ctx context.Context, role domain.Role) (domain.IdentityRecord, bool, error) {
	return c.store.LoadIdentity(ctx, role)
}

// Area is a class of UI locations a route guard protects.
type Area int

const (
	AreaPublic Area = iota
	AreaUser
	AreaAdmin
	AreaUserLogin
	AreaAdminLogin
)

// GuardDecision tells a route guard whether to render or where to go instead.
type GuardDecision struct {
	Allowed    bool
	RedirectTo string
}

// Guard decides access to area from the resident sessions. User areas need a
// user session and admin areas an admin session; login pages send an already
// signed-in role to its landing page.
func (c *Client) Guard(ctx context.Context, area Area) (GuardDecision, error) {
	routes := c.classifier.Routes()
	switch area {
	case AreaUser, AreaAdmin:
		role := domain.RoleUser
		if area == AreaAdmin {
			role = domain.RoleAdmin
		}
		_, ok, err := c.store.LoadIdentity(ctx, role)
		if err != nil {
			return GuardDecision{}, err
		}
		if !ok {
			return GuardDecision{RedirectTo: routes.LoginPath(role)}, nil
		}
		return GuardDecision{Allowed: true}, nil
	case AreaUserLogin, AreaAdminLogin:
		role := domain.RoleUser
		if area == AreaAdminLogin {
			role = domain.RoleAdmin
		}
		_, ok, err := c.store.LoadIdentity(ctx, role)
		if err != nil {
			return GuardDecision{}, err
		}
		if ok {
			return GuardDecision{RedirectTo: routes.LandingPath(role)}, nil
		}
		return GuardDecision{Allowed: true}, nil
	default:
		return GuardDecision{Allowed: true}, nil
	}
}

// LandingPath is the home of the current role, or the user home when signed out.
func (c *Client) LandingPath(ctx context.Context) (string, error) {
	role, err := c.store.CurrentRole(ctx)
	if err != nil {
		return "", err
	}
	return c.classifier.Routes().LandingPath(role), nil
}

// Effects are the UI operations a directive may ask for.
type Effects interface {
	ShowMessage(msg string)
	Navigate(path, returnTo string)
}

// Apply carries out d. Auto-logout clears the directive's role before the
// message is shown; the redirect after a logout carries returnTo so the
// post-login flow can come back.
func (c *Client) Apply(ctx context.Context, d apierror.Directive, returnTo string, fx Effects) error {
	if d.AutoLogout && d.Role.Valid() {
		if err := c.store.ClearRole(ctx, d.Role); err != nil {
			return err
		}
		c.logger.Info("session cleared by directive",
			zap.String("role", string(d.Role)),
			zap.String("code", d.Code.String()),
		)
		ev := events.NewEvent(events.EventSessionExpired, d.Role)
		ev.Code = d.Code
		c.publish(ctx, ev)
	}
	if fx == nil {
		return nil
	}
	if d.ShowPopup && d.UserMessage != "" {
		fx.ShowMessage(d.UserMessage)
	}
	if d.RedirectTo != "" {
		back := ""
		if d.AutoLogout {
			back = returnTo
		}
		fx.Navigate(d.RedirectTo, back)
	}
	return nil
}

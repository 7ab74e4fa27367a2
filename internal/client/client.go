// Package client is the portal's resilient request pipeline. It attaches
// role tokens, refreshes and retries once on 401, and turns every failure
// into an apierror.Directive for the host application to carry out.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/portal-session/internal/apierror"
	"github.com/spec-kit/portal-session/internal/config"
	"github.com/spec-kit/portal-session/internal/domain"
	"github.com/spec-kit/portal-session/internal/events"
	"github.com/spec-kit/portal-session/internal/observability"
	"github.com/spec-kit/portal-session/internal/refresh"
	"github.com/spec-kit/portal-session/internal/session"
	"github.com/spec-kit/portal-session/internal/token"
)

const defaultRequestTimeout = 15 * time.Second

// Paths are the backend endpoints the lifecycle operations call.
type Paths struct {
	UserLogin    string
	AdminLogin   string
	UserRefresh  string
	AdminRefresh string
	Logout       string
}

func (p Paths) login(role domain.Role) string {
	if role == domain.RoleAdmin {
		return p.AdminLogin
	}
	return p.UserLogin
}

func (p Paths) refresh(role domain.Role) string {
	if role == domain.RoleAdmin {
		return p.AdminRefresh
	}
	return p.UserRefresh
}

// Options configure a Client. Zero values fall back to defaults.
type Options struct {
	BaseURL        string
	RequestTimeout time.Duration
	RefreshTimeout time.Duration
	Paths          Paths
	Routes         apierror.Routes
	Doer           Doer
	Clock          token.Clock
	Logger         *zap.Logger
	Metrics        *observability.Metrics
	// Events receives session changes; nil disables publication.
	Events events.Dispatcher
}

// OptionsFromConfig maps loaded configuration onto client options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		BaseURL:        cfg.Client.BaseURL,
		RequestTimeout: cfg.Client.RequestTimeout(),
		RefreshTimeout: cfg.Client.RefreshTimeout(),
		Paths: Paths{
			UserLogin:    cfg.Client.UserLoginPath,
			AdminLogin:   cfg.Client.AdminLoginPath,
			UserRefresh:  cfg.Client.UserRefreshPath,
			AdminRefresh: cfg.Client.AdminRefreshPath,
			Logout:       cfg.Client.LogoutPath,
		},
		Routes: apierror.Routes{
			UserLogin:  cfg.Routes.UserLogin,
			AdminLogin: cfg.Routes.AdminLogin,
			UserHome:   cfg.Routes.UserHome,
			AdminHome:  cfg.Routes.AdminHome,
		},
	}
}

// Client issues portal API calls on behalf of the sessions held in a Store.
type Client struct {
	store      *session.Store
	gate       *token.Gate
	coord      *refresh.Coordinator
	transport  *transport
	classifier *apierror.Classifier
	logger     *zap.Logger
	metrics    *observability.Metrics
	events     events.Dispatcher
	timeout    time.Duration
}

// New builds a client over store.
func New(store *session.Store, opts Options) *Client {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Doer == nil {
		opts.Doer = NewHTTPClient()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}

	tr := &transport{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		doer:    opts.Doer,
		paths:   opts.Paths,
		logger:  opts.Logger,
		metrics: opts.Metrics,
	}
	gate := token.NewGate(opts.Clock)
	coord := refresh.NewCoordinator(refresh.Dependencies{
		Store:     store,
		Gate:      gate,
		Refresher: tr,
		Logger:    opts.Logger,
		Metrics:   opts.Metrics,
	}, opts.RefreshTimeout)

	return &Client{
		store:      store,
		gate:       gate,
		coord:      coord,
		transport:  tr,
		classifier: apierror.NewClassifier(opts.Routes),
		logger:     opts.Logger,
		metrics:    opts.Metrics,
		events:     opts.Events,
		timeout:    opts.RequestTimeout,
	}
}

// Request describes one logical API call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	// Body is sent as JSON. []byte and json.RawMessage are sent as is.
	Body   any
	Header http.Header
	// Role selects the session to use; empty means the current role.
	Role domain.Role
	// Timeout overrides the default per-attempt budget.
	Timeout time.Duration
}

// Result is the discriminated outcome of a logical request.
type Result struct {
	Success   bool
	Status    int
	Data      json.RawMessage
	Directive *apierror.Directive
}

// Decode unmarshals the success payload into v. An empty payload leaves v untouched.
func (r *Result) Decode(v any) error {
	if len(r.Data) == 0 || string(r.Data) == "null" {
		return nil
	}
	return json.Unmarshal(r.Data, v)
}

// PublicRequest sends req with the role's access token only if it is valid
// right now. It never waits for a refresh before the first attempt, and a
// failure of a call that carried no token never asks for logout or redirect.
func (c *Client) PublicRequest(ctx context.Context, req Request) (*Result, error) {
	base, err := c.prepare(req)
	if err != nil {
		return nil, err
	}
	role, err := c.resolveRole(ctx, req.Role)
	if err != nil {
		return nil, err
	}

	var stale, bearer string
	if role.Valid() {
		status, access, err := c.gate.Check(ctx, c.store, role)
		if err != nil {
			return nil, err
		}
		stale = access
		if status == token.StatusValid {
			bearer = access
		}
	}

	base.bearer = bearer
	a := c.transport.do(ctx, base)
	if a.status == http.StatusUnauthorized && stale != "" {
		fresh, err := c.coord.ForceRefresh(ctx, role, stale)
		if code, ok := contextCode(err); ok {
			return c.synthetic(req.Method, code, role, bearer == ""), nil
		}
		if err != nil {
			return nil, err
		}
		if fresh != "" {
			base.bearer = fresh
			a = c.transport.do(ctx, base)
		}
	}
	return c.finish(req.Method, a, role, base.bearer == ""), nil
}

// AuthenticatedRequest obtains a valid access token first, refreshing it if
// needed, and fails without calling the backend when none can be produced.
func (c *Client) AuthenticatedRequest(ctx context.Context, req Request) (*Result, error) {
	base, err := c.prepare(req)
	if err != nil {
		return nil, err
	}
	role, err := c.resolveRole(ctx, req.Role)
	if err != nil {
		return nil, err
	}
	if !role.Valid() {
		return c.synthetic(req.Method, domain.CodeUnauthorized, role, false), nil
	}

	access, err := c.coord.EnsureValidAccessToken(ctx, role)
	if code, ok := contextCode(err); ok {
		return c.synthetic(req.Method, code, role, false), nil
	}
	if err != nil {
		return nil, err
	}
	if access == "" {
		return c.synthetic(req.Method, domain.CodeUnauthorized, role, false), nil
	}

	base.bearer = access
	a := c.transport.do(ctx, base)
	if a.status == http.StatusUnauthorized {
		fresh, err := c.coord.ForceRefresh(ctx, role, access)
		if code, ok := contextCode(err); ok {
			return c.synthetic(req.Method, code, role, false), nil
		}
		if err != nil {
			return nil, err
		}
		if fresh != "" {
			base.bearer = fresh
			a = c.transport.do(ctx, base)
		}
	}
	return c.finish(req.Method, a, role, false), nil
}

func (c *Client) prepare(req Request) (call, error) {
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	body, err := encodeBody(req.Body)
	if err != nil {
		return call{}, err
	}
	return call{
		method:  method,
		path:    req.Path,
		query:   req.Query,
		body:    body,
		header:  req.Header,
		timeout: timeout,
	}, nil
}

func encodeBody(body any) ([]byte, error) {
	switch v := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case json.RawMessage:
		return v, nil
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		return raw, nil
	}
}

func (c *Client) resolveRole(ctx context.Context, role domain.Role) (domain.Role, error) {
	if role == domain.RoleNone {
		return c.store.CurrentRole(ctx)
	}
	if !role.Valid() {
		return domain.RoleNone, nil
	}
	return role, nil
}

func (c *Client) finish(method string, a attempt, role domain.Role, anonymous bool) *Result {
	res := &Result{Success: a.success, Status: a.status, Data: a.data}
	if a.success {
		return res
	}
	d := c.classifier.Classify(a.code, role).WithServerMessage(a.message)
	if anonymous {
		d = d.Anonymous()
	}
	res.Directive = &d
	c.metrics.RecordError(a.code.String())
	c.logger.Debug("request failed",
		zap.String("method", method),
		zap.Int("status", a.status),
		zap.String("code", a.code.String()),
		zap.String("role", string(role)),
	)
	return res
}

// synthetic is a failure produced without a backend response.
func (c *Client) synthetic(method string, code domain.ErrorCode, role domain.Role, anonymous bool) *Result {
	return c.finish(method, attempt{code: code}, role, anonymous)
}

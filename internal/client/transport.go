package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/portal-session/internal/apierror"
	"github.com/spec-kit/portal-session/internal/domain"
	"github.com/spec-kit/portal-session/internal/observability"
)

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 4 << 20

// Doer sends a prepared HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// NewHTTPClient returns the default Doer with pooled keep-alive connections.
// Deadlines are applied per attempt through the request context.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   16,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   5 * time.Second,
			ExpectContinueTimeout: time.Second,
			ForceAttemptHTTP2:     true,
		},
	}
}

// envelope is the backend's response wrapper.
type envelope struct {
	Success      *bool            `json:"success"`
	Data         json.RawMessage  `json:"data"`
	ErrorCode    domain.ErrorCode `json:"errorCode"`
	ErrorMessage string           `json:"errorMessage"`
}

// call is one outbound HTTP exchange.
type call struct {
	method  string
	path    string
	query   url.Values
	body    []byte
	header  http.Header
	bearer  string
	timeout time.Duration
}

// attempt is the normalized outcome of a call. A zero status means the call
// never produced a response.
type attempt struct {
	status  int
	success bool
	data    json.RawMessage
	raw     []byte
	code    domain.ErrorCode
	message string
}

func (a attempt) transportFailure() bool {
	return a.status == 0
}

type transport struct {
	baseURL string
	doer    Doer
	paths   Paths
	logger  *zap.Logger
	metrics *observability.Metrics
}

func (t *transport) do(ctx context.Context, c call) attempt {
	attemptCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(attemptCtx, c.method, t.url(c.path, c.query), bodyReader(c.body))
	if err != nil {
		t.logger.Error("build request failed", zap.String("path", c.path), zap.Error(err))
		return attempt{code: domain.CodeNetworkError}
	}
	for k, vals := range c.header {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if c.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}

	start := time.Now()
	resp, err := t.doer.Do(req)
	if err != nil {
		return t.failed(ctx, attemptCtx, c, requestID, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return t.failed(ctx, attemptCtx, c, requestID, err)
	}

	t.metrics.RecordRequest(c.method, c.path, resp.StatusCode)
	t.logger.Debug("portal call",
		zap.String("method", c.method),
		zap.String("path", c.path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
		zap.String("request_id", requestID),
	)
	return decodeAttempt(resp.StatusCode, raw)
}

func (t *transport) failed(ctx, attemptCtx context.Context, c call, requestID string, err error) attempt {
	code := transportCode(ctx, attemptCtx, err)
	t.metrics.RecordRequest(c.method, c.path, 0)
	t.logger.Warn("portal call failed",
		zap.String("method", c.method),
		zap.String("path", c.path),
		zap.String("code", code.String()),
		zap.String("request_id", requestID),
		zap.Error(err),
	)
	return attempt{code: code}
}

// transportCode tells a caller cancellation from an expired budget.
func transportCode(ctx, attemptCtx context.Context, err error) domain.ErrorCode {
	if errors.Is(ctx.Err(), context.Canceled) {
		return domain.CodeRequestCanceled
	}
	if attemptCtx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		return domain.CodeRequestTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.CodeRequestTimeout
	}
	return domain.CodeNetworkError
}

// contextCode maps an error returned while waiting on ctx to a synthetic code.
func contextCode(err error) (domain.ErrorCode, bool) {
	switch {
	case errors.Is(err, context.Canceled):
		return domain.CodeRequestCanceled, true
	case errors.Is(err, context.DeadlineExceeded):
		return domain.CodeRequestTimeout, true
	default:
		return 0, false
	}
}

func decodeAttempt(status int, raw []byte) attempt {
	a := attempt{status: status, raw: raw}
	ok := status >= 200 && status < 300

	if status == http.StatusNoContent || len(bytes.TrimSpace(raw)) == 0 {
		if ok {
			a.success = true
			return a
		}
		a.code = apierror.FromStatus(status)
		return a
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if ok {
			a.code = domain.CodeInvalidResponse
			return a
		}
		a.code = apierror.FromStatus(status)
		return a
	}

	if ok && (env.Success == nil || *env.Success) {
		a.success = true
		a.data = env.Data
		if len(a.data) == 0 && env.Success == nil {
			a.data = raw
		}
		return a
	}

	a.code = env.ErrorCode
	if a.code == 0 {
		a.code = apierror.FromStatus(status)
	}
	a.message = env.ErrorMessage
	return a
}

func (t *transport) url(path string, query url.Values) string {
	u := t.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) == 0 {
		return u
	}
	sep := "?"
	if strings.Contains(u, "?") {
		sep = "&"
	}
	return u + sep + query.Encode()
}

func bodyReader(body []byte) io.Reader {
	if body == nil {
		return nil
	}
	return bytes.NewReader(body)
}

// Refresh exchanges refreshToken at the role's refresh endpoint. It is the
// Refresher used by the refresh coordinator.
func (t *transport) Refresh(ctx context.Context, role domain.Role, refreshToken string) (domain.TokenPair, error) {
	body, err := json.Marshal(map[string]string{"refreshToken": refreshToken})
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("encode refresh body: %w", err)
	}
	a := t.do(ctx, call{method: http.MethodPost, path: t.paths.refresh(role), body: body})
	if a.transportFailure() {
		return domain.TokenPair{}, fmt.Errorf("refresh %s: %s", role, a.code)
	}
	if !a.success {
		return domain.TokenPair{}, fmt.Errorf("refresh %s rejected: status %d, %s", role, a.status, a.code)
	}
	payload, err := parseAuthPayload(a.raw)
	if err != nil {
		return domain.TokenPair{}, err
	}
	return payload.tokens, nil
}

// tokenFields accepts both spellings of the access token.
type tokenFields struct {
	Token        string `json:"token"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func (f tokenFields) pair() domain.TokenPair {
	access := f.AccessToken
	if access == "" {
		access = f.Token
	}
	return domain.TokenPair{AccessToken: access, RefreshToken: f.RefreshToken}
}

type identityFields struct {
	User     *domain.IdentityRecord `json:"user"`
	Admin    *domain.IdentityRecord `json:"admin"`
	Identity *domain.IdentityRecord `json:"identity"`
}

func (f identityFields) record() *domain.IdentityRecord {
	switch {
	case f.User != nil:
		return f.User
	case f.Admin != nil:
		return f.Admin
	default:
		return f.Identity
	}
}

type authFields struct {
	tokenFields
	identityFields
}

type authBody struct {
	authFields
	Data *authFields `json:"data"`
}

// authPayload is a login or refresh response reduced to one shape.
type authPayload struct {
	tokens   domain.TokenPair
	identity *domain.IdentityRecord
}

// parseAuthPayload accepts tokens and identity nested under data or at the
// top level, data taking precedence.
func parseAuthPayload(raw []byte) (authPayload, error) {
	var body authBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return authPayload{}, fmt.Errorf("decode auth response: %w", err)
	}

	var out authPayload
	if body.Data != nil {
		out.tokens = body.Data.pair()
		out.identity = body.Data.record()
	}
	if out.tokens.AccessToken == "" {
		out.tokens = body.pair()
	}
	if out.identity == nil {
		out.identity = body.record()
	}
	if out.tokens.AccessToken == "" {
		return authPayload{}, errors.New("auth response carried no access token")
	}
	return out, nil
}

package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/portal-session/internal/domain"
	"github.com/spec-kit/portal-session/internal/events"
	"github.com/spec-kit/portal-session/internal/observability"
	"github.com/spec-kit/portal-session/internal/session"
)

var (
	testNow = time.Unix(1_700_000_000, 0)

	userIdentity  = domain.IdentityRecord{ID: 7, LoginID: "kim", DisplayName: "Kim", Role: domain.RoleTagUser}
	adminIdentity = domain.IdentityRecord{ID: 1, LoginID: "root", DisplayName: "Root", Role: domain.RoleTagAdmin, RoleCode: "SUPER", RoleName: "Super admin"}

	testPaths = Paths{
		UserLogin:    "/api/auth/login",
		AdminLogin:   "/api/admin/auth/login",
		UserRefresh:  "/api/auth/refresh",
		AdminRefresh: "/api/admin/auth/refresh",
		Logout:       "/api/auth/logout",
	}
)

func signToken(t *testing.T, exp time.Time, subject string) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
		"exp": exp.Unix(),
		"iat": testNow.Unix(),
	}).SignedString([]byte("client-test"))
	require.NoError(t, err)
	return raw
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeFailure(w http.ResponseWriter, status int, code domain.ErrorCode, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "errorCode": code, "errorMessage": msg})
}

func bearer(r *http.Request) string {
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

type harness struct {
	client  *Client
	store   *session.Store
	metrics *observability.Metrics
	events  events.Dispatcher
}

func newHarness(t *testing.T, handler http.Handler) *harness {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	store := session.NewStore(session.NewMemoryMedium())
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	c := New(store, Options{
		BaseURL:        srv.URL,
		RequestTimeout: 2 * time.Second,
		RefreshTimeout: 2 * time.Second,
		Paths:          testPaths,
		Clock:          func() time.Time { return testNow },
		Metrics:        metrics,
		Events:         dispatcher,
	})
	return &harness{client: c, store: store, metrics: metrics, events: dispatcher}
}

func (h *harness) signIn(t *testing.T, role domain.Role, tokens domain.TokenPair) {
	t.Helper()
	identity := userIdentity
	if role == domain.RoleAdmin {
		identity = adminIdentity
	}
	require.NoError(t, h.store.SaveSession(context.Background(), role, identity, tokens))
}

func TestAuthenticatedRequest_RefreshesExpiredTokenBeforeCalling(t *testing.T) {
	expired := signToken(t, testNow.Add(-5*time.Second), "7")
	fresh := signToken(t, testNow.Add(900*time.Second), "7")

	var refreshCalls, meCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, "r-1", body["refreshToken"])
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": map[string]string{"token": fresh}})
	})
	mux.HandleFunc("/api/me", func(w http.ResponseWriter, r *http.Request) {
		meCalls.Add(1)
		if bearer(r) != fresh {
			writeFailure(w, http.StatusUnauthorized, domain.CodeTokenExpired, "expired")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": map[string]any{"id": 7}})
	})

	h := newHarness(t, mux)
	h.signIn(t, domain.RoleUser, domain.TokenPair{AccessToken: expired, RefreshToken: "r-1"})

	res, err := h.client.AuthenticatedRequest(context.Background(), Request{Path: "/api/me"})
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Nil(t, res.Directive)

	var me struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, res.Decode(&me))
	assert.EqualValues(t, 7, me.ID)
	assert.EqualValues(t, 1, refreshCalls.Load())
	assert.EqualValues(t, 1, meCalls.Load())

	stored, ok, err := h.store.LoadTokens(context.Background(), domain.RoleUser)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, fresh, stored.AccessToken)
	assert.Equal(t, "r-1", stored.RefreshToken)
}

func TestAuthenticatedRequest_RetriesOnceAfter401(t *testing.T) {
	revoked := signToken(t, testNow.Add(time.Hour), "revoked")
	fresh := signToken(t, testNow.Add(time.Hour), "fresh")

	var refreshCalls, targetCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": map[string]string{"token": fresh, "refreshToken": "r-2"}})
	})
	mux.HandleFunc("/api/me", func(w http.ResponseWriter, r *http.Request) {
		targetCalls.Add(1)
		if bearer(r) != fresh {
			writeFailure(w, http.StatusUnauthorized, domain.CodeTokenInvalid, "invalid")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": map[string]any{}})
	})

	h := newHarness(t, mux)
	h.signIn(t, domain.RoleUser, domain.TokenPair{AccessToken: revoked, RefreshToken: "r-1"})

	res, err := h.client.AuthenticatedRequest(context.Background(), Request{Path: "/api/me"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.EqualValues(t, 1, refreshCalls.Load())
	assert.EqualValues(t, 2, targetCalls.Load())

	stored, _, err := h.store.LoadTokens(context.Background(), domain.RoleUser)
	require.NoError(t, err)
	assert.Equal(t, "r-2", stored.RefreshToken)
}

func TestAuthenticatedRequest_NoRetryStorm(t *testing.T) {
	valid := signToken(t, testNow.Add(time.Hour), "7")

	var refreshCalls, targetCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		writeFailure(w, http.StatusUnauthorized, domain.CodeRefreshTokenInvalid, "refresh token revoked")
	})
	mux.HandleFunc("/api/me", func(w http.ResponseWriter, r *http.Request) {
		targetCalls.Add(1)
		writeFailure(w, http.StatusUnauthorized, domain.CodeTokenInvalid, "invalid")
	})

	h := newHarness(t, mux)
	h.signIn(t, domain.RoleUser, domain.TokenPair{AccessToken: valid, RefreshToken: "r-1"})

	res, err := h.client.AuthenticatedRequest(context.Background(), Request{Path: "/api/me"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, http.StatusUnauthorized, res.Status)
	require.NotNil(t, res.Directive)
	assert.Equal(t, domain.CodeTokenInvalid, res.Directive.Code)
	assert.True(t, res.Directive.AutoLogout)
	assert.Equal(t, "/login", res.Directive.RedirectTo)

	assert.EqualValues(t, 1, refreshCalls.Load())
	assert.EqualValues(t, 1, targetCalls.Load())

	_, ok, err := h.store.LoadTokens(context.Background(), domain.RoleUser)
	require.NoError(t, err)
	assert.False(t, ok, "failed refresh clears the session")
}

func TestAuthenticatedRequest_SecondRejectionIsSurfaced(t *testing.T) {
	valid := signToken(t, testNow.Add(time.Hour), "a")
	fresh := signToken(t, testNow.Add(time.Hour), "b")

	var refreshCalls, targetCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/admin/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": map[string]string{"token": fresh}})
	})
	mux.HandleFunc("/api/admin/api-keys", func(w http.ResponseWriter, r *http.Request) {
		targetCalls.Add(1)
		writeFailure(w, http.StatusUnauthorized, domain.CodeSessionExpired, "session expired")
	})

	h := newHarness(t, mux)
	h.signIn(t, domain.RoleAdmin, domain.TokenPair{AccessToken: valid, RefreshToken: "ra"})

	res, err := h.client.AuthenticatedRequest(context.Background(), Request{Path: "/api/admin/api-keys"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	require.NotNil(t, res.Directive)
	assert.Equal(t, domain.RoleAdmin, res.Directive.Role)
	assert.Equal(t, "/admin/login", res.Directive.RedirectTo)
	assert.True(t, res.Directive.AutoLogout)
	assert.EqualValues(t, 1, refreshCalls.Load())
	assert.EqualValues(t, 2, targetCalls.Load())
}

func TestAuthenticatedRequest_CoalescesConcurrentRefreshes(t *testing.T) {
	expired := signToken(t, testNow.Add(-time.Minute), "7")
	fresh := signToken(t, testNow.Add(time.Hour), "7")

	var refreshCalls, targetCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		time.Sleep(100 * time.Millisecond)
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": map[string]string{"token": fresh, "refreshToken": "r-2"}})
	})
	mux.HandleFunc("/api/notices", func(w http.ResponseWriter, r *http.Request) {
		targetCalls.Add(1)
		if bearer(r) != fresh {
			writeFailure(w, http.StatusUnauthorized, domain.CodeTokenExpired, "expired")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": []any{}})
	})

	h := newHarness(t, mux)
	h.signIn(t, domain.RoleUser, domain.TokenPair{AccessToken: expired, RefreshToken: "r-1"})

	const callers = 5
	results := make([]*Result, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := h.client.AuthenticatedRequest(context.Background(), Request{Path: "/api/notices"})
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, refreshCalls.Load())
	assert.EqualValues(t, callers, targetCalls.Load())
	for _, res := range results {
		require.NotNil(t, res)
		assert.True(t, res.Success)
	}
}

func TestAuthenticatedRequest_WithoutSessionShortCircuits(t *testing.T) {
	var calls atomic.Int32
	h := newHarness(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))

	res, err := h.client.AuthenticatedRequest(context.Background(), Request{Path: "/api/me"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Zero(t, res.Status)
	require.NotNil(t, res.Directive)
	assert.Equal(t, domain.CodeUnauthorized, res.Directive.Code)
	assert.False(t, res.Directive.AutoLogout)
	assert.Equal(t, "/login", res.Directive.RedirectTo)
	assert.Zero(t, calls.Load())
}

func TestRequest_NoContentIsSuccess(t *testing.T) {
	valid := signToken(t, testNow.Add(time.Hour), "1")
	h := newHarness(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNoContent)
	}))
	h.signIn(t, domain.RoleAdmin, domain.TokenPair{AccessToken: valid, RefreshToken: "ra"})

	res, err := h.client.AuthenticatedRequest(context.Background(), Request{Method: "delete", Path: "/api/admin/api-keys/k1"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, http.StatusNoContent, res.Status)
	assert.Nil(t, res.Data)
	assert.Nil(t, res.Directive)

	var v map[string]any
	assert.NoError(t, res.Decode(&v))
	assert.Nil(t, v)
}

func TestRequest_TimeoutProducesDirective(t *testing.T) {
	valid := signToken(t, testNow.Add(time.Hour), "7")
	h := newHarness(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	h.signIn(t, domain.RoleUser, domain.TokenPair{AccessToken: valid, RefreshToken: "r-1"})

	res, err := h.client.AuthenticatedRequest(context.Background(), Request{Path: "/api/me", Timeout: 30 * time.Millisecond})
	require.NoError(t, err)
	assert.False(t, res.Success)
	require.NotNil(t, res.Directive)
	assert.Equal(t, domain.CodeRequestTimeout, res.Directive.Code)
	assert.False(t, res.Directive.AutoLogout)
	assert.Empty(t, res.Directive.RedirectTo)

	_, ok, err := h.store.LoadTokens(context.Background(), domain.RoleUser)
	require.NoError(t, err)
	assert.True(t, ok, "a timeout never touches the session")
	assert.EqualValues(t, 1, h.metrics.Errors("REQUEST_TIMEOUT"))
}

func TestRequest_CallerCancellation(t *testing.T) {
	h := newHarness(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	res, err := h.client.PublicRequest(ctx, Request{Path: "/api/notices"})
	require.NoError(t, err)
	require.NotNil(t, res.Directive)
	assert.Equal(t, domain.CodeRequestCanceled, res.Directive.Code)
}

func TestRequest_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c := New(session.NewStore(session.NewMemoryMedium()), Options{BaseURL: srv.URL, Paths: testPaths})
	res, err := c.PublicRequest(context.Background(), Request{Path: "/api/notices"})
	require.NoError(t, err)
	require.NotNil(t, res.Directive)
	assert.Equal(t, domain.CodeNetworkError, res.Directive.Code)
	assert.True(t, res.Directive.ShowPopup)
}

func TestRequest_ValidationMessageIsVerbatim(t *testing.T) {
	valid := signToken(t, testNow.Add(time.Hour), "1")
	h := newHarness(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeFailure(w, http.StatusBadRequest, domain.CodeInvalidInput, "name is required")
	}))
	h.signIn(t, domain.RoleAdmin, domain.TokenPair{AccessToken: valid, RefreshToken: "ra"})

	res, err := h.client.AuthenticatedRequest(context.Background(), Request{
		Method: http.MethodPost,
		Path:   "/api/admin/api-keys",
		Body:   map[string]string{"name": ""},
	})
	require.NoError(t, err)
	require.NotNil(t, res.Directive)
	assert.Equal(t, "name is required", res.Directive.UserMessage)
	assert.False(t, res.Directive.AutoLogout)
	assert.Empty(t, res.Directive.RedirectTo)
}

func TestRequest_ForbiddenRedirectsToLanding(t *testing.T) {
	valid := signToken(t, testNow.Add(time.Hour), "7")
	h := newHarness(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeFailure(w, http.StatusForbidden, domain.CodeAdminOnly, "admins only")
	}))
	h.signIn(t, domain.RoleUser, domain.TokenPair{AccessToken: valid, RefreshToken: "r-1"})

	res, err := h.client.AuthenticatedRequest(context.Background(), Request{Path: "/api/admin/api-keys"})
	require.NoError(t, err)
	require.NotNil(t, res.Directive)
	assert.Equal(t, domain.CodeAdminOnly, res.Directive.Code)
	assert.Equal(t, "/", res.Directive.RedirectTo)
	assert.False(t, res.Directive.AutoLogout)
}

func TestRequest_UndecodableSuccessBody(t *testing.T) {
	h := newHarness(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("<html>maintenance</html>"))
	}))

	res, err := h.client.PublicRequest(context.Background(), Request{Path: "/api/notices"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	require.NotNil(t, res.Directive)
	assert.Equal(t, domain.CodeInvalidResponse, res.Directive.Code)
}

func TestRequest_FailureWithoutCodeFallsBackToStatus(t *testing.T) {
	h := newHarness(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))

	res, err := h.client.PublicRequest(context.Background(), Request{Path: "/api/notices"})
	require.NoError(t, err)
	require.NotNil(t, res.Directive)
	assert.Equal(t, domain.CodeInternal, res.Directive.Code)
}

func TestPublicRequest_AnonymousFailureHasNoSessionEffects(t *testing.T) {
	var refreshCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
	})
	mux.HandleFunc("/api/notices", func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		writeFailure(w, http.StatusUnauthorized, domain.CodeTokenMissing, "token missing")
	})
	h := newHarness(t, mux)

	res, err := h.client.PublicRequest(context.Background(), Request{Path: "/api/notices"})
	require.NoError(t, err)
	require.NotNil(t, res.Directive)
	assert.Equal(t, domain.CodeTokenMissing, res.Directive.Code)
	assert.False(t, res.Directive.AutoLogout)
	assert.Empty(t, res.Directive.RedirectTo)
	assert.Zero(t, refreshCalls.Load())
}

func TestPublicRequest_AttachesValidTokenOnly(t *testing.T) {
	valid := signToken(t, testNow.Add(time.Hour), "7")
	expired := signToken(t, testNow.Add(-time.Hour), "7")

	seen := make(chan string, 2)
	var refreshCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
	})
	mux.HandleFunc("/api/notices", func(w http.ResponseWriter, r *http.Request) {
		seen <- bearer(r)
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": []any{}})
	})
	h := newHarness(t, mux)

	h.signIn(t, domain.RoleUser, domain.TokenPair{AccessToken: valid, RefreshToken: "r-1"})
	res, err := h.client.PublicRequest(context.Background(), Request{Path: "/api/notices", Query: map[string][]string{"page": {"2"}}})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, valid, <-seen)

	h.signIn(t, domain.RoleUser, domain.TokenPair{AccessToken: expired, RefreshToken: "r-1"})
	res, err = h.client.PublicRequest(context.Background(), Request{Path: "/api/notices"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Empty(t, <-seen)
	assert.Zero(t, refreshCalls.Load(), "public calls never wait on a refresh up front")
}

func TestPublicRequest_RefreshesAfter401WhenSessionExists(t *testing.T) {
	revoked := signToken(t, testNow.Add(time.Hour), "old")
	fresh := signToken(t, testNow.Add(time.Hour), "new")

	var refreshCalls, targetCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": map[string]string{"token": fresh}})
	})
	mux.HandleFunc("/api/notices", func(w http.ResponseWriter, r *http.Request) {
		targetCalls.Add(1)
		if bearer(r) != fresh {
			writeFailure(w, http.StatusUnauthorized, domain.CodeTokenInvalid, "invalid")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": []any{}})
	})
	h := newHarness(t, mux)
	h.signIn(t, domain.RoleUser, domain.TokenPair{AccessToken: revoked, RefreshToken: "r-1"})

	res, err := h.client.PublicRequest(context.Background(), Request{Path: "/api/notices"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.EqualValues(t, 1, refreshCalls.Load())
	assert.EqualValues(t, 2, targetCalls.Load())
}

func TestRequest_ExplicitRoleOverridesCurrentRole(t *testing.T) {
	userToken := signToken(t, testNow.Add(time.Hour), "user")
	adminToken := signToken(t, testNow.Add(time.Hour), "admin")

	seen := make(chan string, 1)
	h := newHarness(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen <- bearer(r)
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	}))
	h.signIn(t, domain.RoleUser, domain.TokenPair{AccessToken: userToken, RefreshToken: "r-u"})
	h.signIn(t, domain.RoleAdmin, domain.TokenPair{AccessToken: adminToken, RefreshToken: "r-a"})

	_, err := h.client.AuthenticatedRequest(context.Background(), Request{Path: "/api/me", Role: domain.RoleUser})
	require.NoError(t, err)
	assert.Equal(t, userToken, <-seen)
}

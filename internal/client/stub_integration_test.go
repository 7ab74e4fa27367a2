package client_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	httptransport "github.com/spec-kit/portal-session/internal/api/http"
	"github.com/spec-kit/portal-session/internal/apierror"
	"github.com/spec-kit/portal-session/internal/auth"
	"github.com/spec-kit/portal-session/internal/client"
	"github.com/spec-kit/portal-session/internal/config"
	"github.com/spec-kit/portal-session/internal/domain"
	"github.com/spec-kit/portal-session/internal/repository"
	"github.com/spec-kit/portal-session/internal/service"
	"github.com/spec-kit/portal-session/internal/session"
)

// fiberDoer serves client requests from an in-process fiber app.
type fiberDoer struct {
	app *fiber.App
}

func (d fiberDoer) Do(req *http.Request) (*http.Response, error) {
	return d.app.Test(req, -1)
}

type portal struct {
	client *client.Client
	store  *session.Store
	tokens *auth.TokenManager
}

func newPortal(t *testing.T) *portal {
	t.Helper()
	ctx := context.Background()
	cfg := config.AuthConfig{JWTSecret: "portal-secret", AccessTokenTTLSeconds: 900, RefreshTokenTTLMinutes: 60, BcryptCost: bcrypt.MinCost}

	accounts := repository.NewMemoryAccountRepository()
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL())
	authService := service.NewAuthService(cfg, service.AuthDependencies{
		AccountRepo:      accounts,
		RefreshTokenRepo: repository.NewMemoryRefreshTokenRepository(),
		TokenManager:     tokens,
	})
	_, err := authService.Register(ctx, service.RegisterInput{Role: domain.RoleUser, LoginID: "kim", DisplayName: "Kim", Password: "pw-user"})
	require.NoError(t, err)
	_, err = authService.Register(ctx, service.RegisterInput{Role: domain.RoleAdmin, LoginID: "root", DisplayName: "Root", Password: "pw-admin", RoleCode: "SUPER", RoleName: "Super admin"})
	require.NoError(t, err)

	content := service.NewContentService(repository.NewMemoryNoticeRepository())
	require.NoError(t, content.Publish(ctx, &domain.Notice{Title: "Welcome", CreatedAt: time.Now()}))
	require.NoError(t, content.Publish(ctx, &domain.Notice{Title: "Members only", MembersOnly: true, CreatedAt: time.Now()}))

	app := httptransport.NewApp(httptransport.ServerDeps{
		Name:     "portal-stub",
		Accounts: accounts,
		Auth:     authService,
		APIKeys:  service.NewAPIKeyService(repository.NewMemoryAPIKeyRepository()),
		Content:  content,
	})

	store := session.NewStore(session.NewMemoryMedium(), session.WithNamespace("portal"))
	c := client.New(store, client.Options{
		BaseURL: "http://portal.test",
		Paths: client.Paths{
			UserLogin:    "/api/auth/login",
			AdminLogin:   "/api/admin/auth/login",
			UserRefresh:  "/api/auth/refresh",
			AdminRefresh: "/api/admin/auth/refresh",
			Logout:       "/api/auth/logout",
		},
		Routes: apierror.DefaultRoutes,
		Doer:   fiberDoer{app: app},
	})
	return &portal{client: c, store: store, tokens: tokens}
}

func (p *portal) signIn(t *testing.T, role domain.Role, loginID, password string, exclusive bool) {
	t.Helper()
	creds := client.Credentials{LoginID: loginID, Password: password}
	var (
		res *client.Result
		err error
	)
	if exclusive {
		res, err = p.client.Login(context.Background(), role, creds)
	} else {
		res, err = p.client.LoginConcurrent(context.Background(), role, creds)
	}
	require.NoError(t, err)
	require.True(t, res.Success, "%+v", res.Directive)
}

// expireAccessToken swaps the stored access token for an expired one the
// backend would also accept as well-signed.
func (p *portal) expireAccessToken(t *testing.T, role domain.Role) domain.TokenPair {
	t.Helper()
	ctx := context.Background()
	identity, ok, err := p.store.LoadIdentity(ctx, role)
	require.NoError(t, err)
	require.True(t, ok)
	current, ok, err := p.store.LoadTokens(ctx, role)
	require.NoError(t, err)
	require.True(t, ok)

	expired, _, err := p.tokens.WithClock(func() time.Time { return time.Now().Add(-time.Hour) }).GenerateToken(identity.ID, role.Tag())
	require.NoError(t, err)
	stale := domain.TokenPair{AccessToken: expired, RefreshToken: current.RefreshToken}
	swapped, err := p.store.ReplaceTokens(ctx, role, current.RefreshToken, stale)
	require.NoError(t, err)
	require.True(t, swapped)
	return stale
}

func TestPortal_SignInAndCallAuthenticatedEndpoint(t *testing.T) {
	p := newPortal(t)
	p.signIn(t, domain.RoleUser, "kim", "pw-user", true)

	res, err := p.client.AuthenticatedRequest(context.Background(), client.Request{Method: http.MethodGet, Path: "/api/me"})
	require.NoError(t, err)
	require.True(t, res.Success)

	var me domain.IdentityRecord
	require.NoError(t, res.Decode(&me))
	assert.Equal(t, "kim", me.LoginID)
	assert.Equal(t, domain.RoleTagUser, me.Role)
}

func TestPortal_ExpiredAccessTokenIsRefreshedAndRotated(t *testing.T) {
	p := newPortal(t)
	p.signIn(t, domain.RoleUser, "kim", "pw-user", true)
	stale := p.expireAccessToken(t, domain.RoleUser)

	res, err := p.client.AuthenticatedRequest(context.Background(), client.Request{Path: "/api/me"})
	require.NoError(t, err)
	require.True(t, res.Success, "%+v", res.Directive)

	fresh, ok, err := p.store.LoadTokens(context.Background(), domain.RoleUser)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEqual(t, stale.AccessToken, fresh.AccessToken)
	assert.NotEqual(t, stale.RefreshToken, fresh.RefreshToken, "the backend rotates refresh tokens")
}

func TestPortal_RevokedRefreshTokenEndsSession(t *testing.T) {
	p := newPortal(t)
	ctx := context.Background()
	p.signIn(t, domain.RoleUser, "kim", "pw-user", true)
	stale := p.expireAccessToken(t, domain.RoleUser)

	swapped, err := p.store.ReplaceTokens(ctx, domain.RoleUser, stale.RefreshToken, domain.TokenPair{AccessToken: stale.AccessToken, RefreshToken: "revoked"})
	require.NoError(t, err)
	require.True(t, swapped)

	res, err := p.client.AuthenticatedRequest(ctx, client.Request{Path: "/api/me"})
	require.NoError(t, err)
	require.False(t, res.Success)
	require.NotNil(t, res.Directive)
	assert.True(t, res.Directive.AutoLogout)
	assert.Equal(t, "/login", res.Directive.RedirectTo)

	_, ok, err := p.store.LoadIdentity(ctx, domain.RoleUser)
	require.NoError(t, err)
	assert.False(t, ok, "a failed refresh clears the session")
}

func TestPortal_ConcurrentRolesAndAdminOnlyRoute(t *testing.T) {
	p := newPortal(t)
	ctx := context.Background()
	p.signIn(t, domain.RoleUser, "kim", "pw-user", true)
	p.signIn(t, domain.RoleAdmin, "root", "pw-admin", false)

	role, err := p.client.CurrentRole(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, role)

	res, err := p.client.AuthenticatedRequest(ctx, client.Request{Path: "/api/admin/api-keys", Role: domain.RoleUser})
	require.NoError(t, err)
	require.False(t, res.Success)
	assert.Equal(t, domain.CodeAdminOnly, res.Directive.Code)
	assert.False(t, res.Directive.AutoLogout)

	res, err = p.client.AuthenticatedRequest(ctx, client.Request{Method: http.MethodPost, Path: "/api/admin/api-keys", Body: map[string]string{"name": "deploy"}})
	require.NoError(t, err)
	require.True(t, res.Success, "%+v", res.Directive)
	assert.Equal(t, http.StatusCreated, res.Status)

	res, err = p.client.AuthenticatedRequest(ctx, client.Request{Method: http.MethodPost, Path: "/api/admin/api-keys", Body: map[string]string{"name": ""}})
	require.NoError(t, err)
	require.False(t, res.Success)
	assert.Equal(t, domain.CodeInvalidInput, res.Directive.Code)
	assert.Equal(t, "name is required", res.Directive.UserMessage)
}

func TestPortal_PublicNoticesDependOnSession(t *testing.T) {
	p := newPortal(t)
	ctx := context.Background()

	var notices []map[string]any
	res, err := p.client.PublicRequest(ctx, client.Request{Path: "/api/notices"})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.NoError(t, res.Decode(&notices))
	assert.Len(t, notices, 1)

	p.signIn(t, domain.RoleUser, "kim", "pw-user", true)
	res, err = p.client.PublicRequest(ctx, client.Request{Path: "/api/notices"})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.NoError(t, res.Decode(&notices))
	assert.Len(t, notices, 2)
}

func TestPortal_LogoutRevokesOnBackend(t *testing.T) {
	p := newPortal(t)
	ctx := context.Background()
	p.signIn(t, domain.RoleUser, "kim", "pw-user", true)
	p.signIn(t, domain.RoleAdmin, "root", "pw-admin", false)

	stale := p.expireAccessToken(t, domain.RoleAdmin)

	role, err := p.client.Logout(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, role)

	role, err = p.client.CurrentRole(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, role, "the user session survives an admin logout")

	// Restoring the old admin tokens shows the backend no longer honors them.
	require.NoError(t, p.store.SaveSession(ctx, domain.RoleAdmin,
		domain.IdentityRecord{ID: 2, LoginID: "root", Role: domain.RoleTagAdmin}, stale))
	res, err := p.client.AuthenticatedRequest(ctx, client.Request{Path: "/api/admin/api-keys", Role: domain.RoleAdmin})
	require.NoError(t, err)
	require.False(t, res.Success)
	assert.True(t, res.Directive.AutoLogout)
	assert.Equal(t, "/admin/login", res.Directive.RedirectTo)
}

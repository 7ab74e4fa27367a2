package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/portal-session/internal/api/http/handlers"
	"github.com/spec-kit/portal-session/internal/auth"
	"github.com/spec-kit/portal-session/internal/observability"
	"github.com/spec-kit/portal-session/internal/persistence"
	"github.com/spec-kit/portal-session/internal/repository"
	"github.com/spec-kit/portal-session/internal/service"
)

// ServerDeps are the collaborators of the stub backend app.
type ServerDeps struct {
	Name           string
	Version        string
	RequestTimeout time.Duration
	Logger         *zap.Logger
	Metrics        *observability.Metrics
	Accounts       repository.AccountRepository
	Auth           *service.AuthService
	APIKeys        *service.APIKeyService
	Content        *service.ContentService
	Postgres       *persistence.Postgres
	Redis          *persistence.Redis
}

// NewApp assembles the fiber app with middlewares and routes.
func NewApp(deps ServerDeps) *fiber.App {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	app := fiber.New(fiber.Config{
		AppName:               deps.Name,
		DisableStartupMessage: true,
	})
	RegisterMiddlewares(app, deps.Logger, deps.Metrics, deps.RequestTimeout)

	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler(deps.Name, deps.Version, deps.Postgres, deps.Redis),
		Auth:           handlers.NewAuthHandler(deps.Auth),
		Accounts:       handlers.NewAccountHandler(),
		Content:        handlers.NewContentHandler(deps.Content),
		APIKeys:        handlers.NewAPIKeysHandler(deps.APIKeys),
		AuthMiddleware: auth.NewAuthMiddleware(deps.Auth.TokenManager(), deps.Accounts),
	})
	return app
}

package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/portal-session/internal/api/http/handlers"
	"github.com/spec-kit/portal-session/internal/auth"
	"github.com/spec-kit/portal-session/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Accounts       *handlers.AccountHandler
	Content        *handlers.ContentHandler
	APIKeys        *handlers.APIKeysHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	api := app.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Post("/login", cfg.Auth.UserLogin)
	authGroup.Post("/refresh", cfg.Auth.UserRefresh)
	authGroup.Post("/logout", cfg.Auth.Logout)

	adminAuth := api.Group("/admin/auth")
	adminAuth.Post("/login", cfg.Auth.AdminLogin)
	adminAuth.Post("/refresh", cfg.Auth.AdminRefresh)

	api.Get("/notices", cfg.AuthMiddleware.Optional, cfg.Content.Notices)
	api.Get("/me", cfg.AuthMiddleware.Handle, auth.RequireAnyRole(), cfg.Accounts.Me)

	// Group middleware applies to the whole prefix, so keep it off /admin/auth.
	keys := api.Group("/admin/api-keys", cfg.AuthMiddleware.Handle, auth.RequireRole(domain.RoleAdmin))
	keys.Get("", cfg.APIKeys.List)
	keys.Post("", cfg.APIKeys.Create)
	keys.Delete("/:id", cfg.APIKeys.Delete)
}

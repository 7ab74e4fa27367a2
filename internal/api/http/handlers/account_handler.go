package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/portal-session/internal/auth"
	"github.com/spec-kit/portal-session/internal/domain"
)

// AccountHandler serves the caller's own account.
type AccountHandler struct{}

// NewAccountHandler constructs handler.
func NewAccountHandler() *AccountHandler {
	return &AccountHandler{}
}

// Me handles GET /api/me.
func (h *AccountHandler) Me(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "authentication required")
	}
	return c.JSON(fiber.Map{"success": true, "data": principal.Account.Identity()})
}

// signedIn reports whether an optional-auth route has a principal.
func signedIn(c *fiber.Ctx) (*auth.Principal, bool) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Role == domain.RoleNone {
		return nil, false
	}
	return principal, true
}

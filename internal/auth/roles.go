package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/portal-session/internal/domain"
	apperrors "github.com/spec-kit/portal-session/pkg/util"
)

// RequireRole ensures the principal signed in as role.
func RequireRole(role domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized(domain.CodeTokenMissing, "authentication required")
		}
		if principal.Role == role {
			return c.Next()
		}
		if role == domain.RoleAdmin {
			return apperrors.NewForbidden(domain.CodeAdminOnly, "administrator access required")
		}
		return apperrors.NewForbidden(domain.CodeAccessDenied, "insufficient role")
	}
}

// RequireAnyRole ensures the caller is authenticated as user or admin.
func RequireAnyRole() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return apperrors.NewUnauthorized(domain.CodeTokenMissing, "authentication required")
		}
		return c.Next()
	}
}

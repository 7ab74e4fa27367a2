package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/portal-session/internal/domain"
	"github.com/spec-kit/portal-session/internal/repository"
	apperrors "github.com/spec-kit/portal-session/pkg/util"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller.
type Principal struct {
	Role    domain.Role
	Account *domain.Account
}

// AuthMiddleware validates bearer tokens and loads principals.
type AuthMiddleware struct {
	tokens   *TokenManager
	accounts repository.AccountRepository
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, accounts repository.AccountRepository) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, accounts: accounts}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return apperrors.NewUnauthorized(domain.CodeTokenMissing, "missing authorization header")
	}
	return m.authenticate(c, authHeader)
}

// Optional attaches a principal when a bearer token is sent and lets
// anonymous requests through. A token that is sent but unusable is rejected
// so the caller can refresh it.
func (m *AuthMiddleware) Optional(c *fiber.Ctx) error {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return c.Next()
	}
	return m.authenticate(c, authHeader)
}

func (m *AuthMiddleware) authenticate(c *fiber.Ctx, authHeader string) error {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return apperrors.NewUnauthorized(domain.CodeTokenInvalid, "invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return apperrors.NewUnauthorized(domain.CodeTokenExpired, "token expired")
		}
		return apperrors.NewUnauthorized(domain.CodeTokenInvalid, "invalid token")
	}
	accountID, err := claims.AccountID()
	if err != nil {
		return apperrors.NewUnauthorized(domain.CodeTokenInvalid, "invalid token subject")
	}

	account, err := m.accounts.GetByID(c.UserContext(), accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewUnauthorized(domain.CodeUnauthorized, "account not found")
		}
		return apperrors.MapError(err)
	}
	if account.Status != domain.AccountStatusActive || account.Role != claims.Role {
		return apperrors.NewUnauthorized(domain.CodeUnauthorized, "account not usable")
	}

	c.Locals(principalKey, &Principal{Role: domain.RoleFromTag(account.Role), Account: account})
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}

package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/portal-session/internal/api/dto"
	"github.com/spec-kit/portal-session/internal/domain"
	"github.com/spec-kit/portal-session/internal/service"
	apperrors "github.com/spec-kit/portal-session/pkg/util"
)

// AuthHandler exposes login, refresh and logout for both roles.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// UserLogin handles POST /api/auth/login.
func (h *AuthHandler) UserLogin(c *fiber.Ctx) error {
	session, err := h.login(c, domain.RoleUser)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data": dto.UserLoginResponse{
			TokenResponse: tokenResponse(session),
			User:          session.Account.Identity(),
		},
	})
}

// AdminLogin handles POST /api/admin/auth/login.
func (h *AuthHandler) AdminLogin(c *fiber.Ctx) error {
	session, err := h.login(c, domain.RoleAdmin)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data": dto.AdminLoginResponse{
			TokenResponse: tokenResponse(session),
			Admin:         session.Account.Identity(),
		},
	})
}

func (h *AuthHandler) login(c *fiber.Ctx, role domain.Role) (*service.Session, error) {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, apperrors.NewValidationError("invalid payload", nil)
	}
	if req.LoginID == "" || req.Password == "" {
		return nil, apperrors.NewValidationError("loginId and password required", nil)
	}
	return h.auth.Login(c.UserContext(), role, req.LoginID, req.Password)
}

// UserRefresh handles POST /api/auth/refresh.
func (h *AuthHandler) UserRefresh(c *fiber.Ctx) error {
	return h.refresh(c, domain.RoleUser)
}

// AdminRefresh handles POST /api/admin/auth/refresh.
func (h *AuthHandler) AdminRefresh(c *fiber.Ctx) error {
	return h.refresh(c, domain.RoleAdmin)
}

func (h *AuthHandler) refresh(c *fiber.Ctx, role domain.Role) error {
	var req dto.RefreshRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	session, err := h.auth.Refresh(c.UserContext(), role, req.RefreshToken)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": tokenResponse(session)})
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	var req dto.LogoutRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := h.auth.Logout(c.UserContext(), req.RefreshToken); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func tokenResponse(s *service.Session) dto.TokenResponse {
	return dto.TokenResponse{Token: s.AccessToken, RefreshToken: s.RefreshToken, ExpiresAt: s.ExpiresAt}
}

package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/portal-session/internal/api/dto"
	"github.com/spec-kit/portal-session/internal/auth"
	"github.com/spec-kit/portal-session/internal/service"
	apperrors "github.com/spec-kit/portal-session/pkg/util"
)

// APIKeysHandler exposes API-key administration.
type APIKeysHandler struct {
	keys *service.APIKeyService
}

// NewAPIKeysHandler constructs handler.
func NewAPIKeysHandler(keys *service.APIKeyService) *APIKeysHandler {
	return &APIKeysHandler{keys: keys}
}

// List handles GET /api/admin/api-keys.
func (h *APIKeysHandler) List(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	keys, err := h.keys.List(c.UserContext(), principal.Account.ID)
	if err != nil {
		return err
	}
	resp := make([]dto.APIKeyResponse, 0, len(keys))
	for _, key := range keys {
		resp = append(resp, dto.NewAPIKeyResponse(key, false))
	}
	return c.JSON(fiber.Map{"success": true, "data": resp})
}

// Create handles POST /api/admin/api-keys.
func (h *APIKeysHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateAPIKeyRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	principal, _ := auth.PrincipalFromContext(c)
	key, err := h.keys.Issue(c.UserContext(), principal.Account.ID, req.Name)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": dto.NewAPIKeyResponse(*key, true)})
}

// Delete handles DELETE /api/admin/api-keys/:id.
func (h *APIKeysHandler) Delete(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	if err := h.keys.Revoke(c.UserContext(), principal.Account.ID, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

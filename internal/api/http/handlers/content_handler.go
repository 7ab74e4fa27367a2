package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/portal-session/internal/api/dto"
	"github.com/spec-kit/portal-session/internal/service"
)

// ContentHandler serves public portal content.
type ContentHandler struct {
	content *service.ContentService
}

// NewContentHandler constructs handler.
func NewContentHandler(content *service.ContentService) *ContentHandler {
	return &ContentHandler{content: content}
}

// Notices handles GET /api/notices. Signed-in callers also get members-only notices.
func (h *ContentHandler) Notices(c *fiber.Ctx) error {
	_, member := signedIn(c)
	notices, err := h.content.Notices(c.UserContext(), member)
	if err != nil {
		return err
	}
	resp := make([]dto.NoticeResponse, 0, len(notices))
	for _, n := range notices {
		resp = append(resp, dto.NewNoticeResponse(n))
	}
	return c.JSON(fiber.Map{"success": true, "data": resp})
}

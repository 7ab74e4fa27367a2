package dto

import (
	"time"

	"github.com/spec-kit/portal-session/internal/domain"
)

// CreateAPIKeyRequest payload for issuing a key.
type CreateAPIKeyRequest struct {
	Name string `json:"name"`
}

// APIKeyResponse is an API key as listed. The secret is only shown on creation.
type APIKeyResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Key       string    `json:"key,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewAPIKeyResponse maps a key, optionally including its secret.
func NewAPIKeyResponse(key domain.APIKey, withSecret bool) APIKeyResponse {
	resp := APIKeyResponse{ID: key.ID, Name: key.Name, CreatedAt: key.CreatedAt}
	if withSecret {
		resp.Key = key.Key
	}
	return resp
}

// NoticeResponse is a notice as listed.
type NoticeResponse struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Pinned      bool      `json:"pinned"`
	MembersOnly bool      `json:"membersOnly"`
	CreatedAt   time.Time `json:"createdAt"`
}

// NewNoticeResponse maps a notice.
func NewNoticeResponse(n domain.Notice) NoticeResponse {
	return NoticeResponse{
		ID:          n.ID,
		Title:       n.Title,
		Body:        n.Body,
		Pinned:      n.Pinned,
		MembersOnly: n.MembersOnly,
		CreatedAt:   n.CreatedAt,
	}
}

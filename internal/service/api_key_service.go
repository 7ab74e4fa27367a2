package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/spec-kit/portal-session/internal/domain"
	"github.com/spec-kit/portal-session/internal/repository"
	apperrors "github.com/spec-kit/portal-session/pkg/util"
)

const maxKeyNameLength = 64

// APIKeyService issues and revokes API keys for administrators.
type APIKeyService struct {
	keys repository.APIKeyRepository
}

// NewAPIKeyService builds the service.
func NewAPIKeyService(keys repository.APIKeyRepository) *APIKeyService {
	return &APIKeyService{keys: keys}
}

// Issue creates a key named name for ownerID.
func (s *APIKeyService) Issue(ctx context.Context, ownerID int64, name string) (*domain.APIKey, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewValidationError("name is required", nil)
	}
	if len(name) > maxKeyNameLength {
		return nil, apperrors.NewValidationError("name is too long", map[string]any{"max": maxKeyNameLength})
	}

	key := &domain.APIKey{
		ID:      uuid.NewString(),
		OwnerID: ownerID,
		Name:    name,
		Key:     "pk_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
	}
	if err := s.keys.Create(ctx, key); err != nil {
		return nil, err
	}
	return key, nil
}

// List returns the owner's active keys.
func (s *APIKeyService) List(ctx context.Context, ownerID int64) ([]domain.APIKey, error) {
	return s.keys.ListByOwner(ctx, ownerID)
}

// Revoke disables a key of ownerID.
func (s *APIKeyService) Revoke(ctx context.Context, ownerID int64, id string) error {
	if err := s.keys.Revoke(ctx, ownerID, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewNotFound("api key", map[string]any{"id": id})
		}
		return err
	}
	return nil
}

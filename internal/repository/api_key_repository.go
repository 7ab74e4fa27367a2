package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/spec-kit/portal-session/internal/domain"
)

// APIKeyRepository persists issued API keys.
type APIKeyRepository interface {
	Create(ctx context.Context, key *domain.APIKey) error
	ListByOwner(ctx context.Context, ownerID int64) ([]domain.APIKey, error)
	Revoke(ctx context.Context, ownerID int64, id string) error
}

type memoryAPIKeyRepository struct {
	mu   sync.RWMutex
	keys map[string]domain.APIKey
}

// NewMemoryAPIKeyRepository returns an in-process implementation.
func NewMemoryAPIKeyRepository() APIKeyRepository {
	return &memoryAPIKeyRepository{keys: make(map[string]domain.APIKey)}
}

func (r *memoryAPIKeyRepository) Create(_ context.Context, key *domain.APIKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.keys[key.ID]; exists {
		return ErrDuplicate
	}
	if key.CreatedAt.IsZero() {
		key.CreatedAt = time.Now().UTC()
	}
	r.keys[key.ID] = *key
	return nil
}

// ListByOwner returns the owner's active keys, oldest first.
func (r *memoryAPIKeyRepository) ListByOwner(_ context.Context, ownerID int64) ([]domain.APIKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]domain.APIKey, 0)
	for _, key := range r.keys {
		if key.OwnerID == ownerID && key.RevokedAt == nil {
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].CreatedAt.Before(keys[j].CreatedAt)
	})
	return keys, nil
}

func (r *memoryAPIKeyRepository) Revoke(_ context.Context, ownerID int64, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key, ok := r.keys[id]
	if !ok || key.OwnerID != ownerID || key.RevokedAt != nil {
		return ErrNotFound
	}
	now := time.Now().UTC()
	key.RevokedAt = &now
	r.keys[id] = key
	return nil
}

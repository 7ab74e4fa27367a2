package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/portal-session/internal/domain"
)

// RefreshToken is an issued, not yet used refresh credential.
type RefreshToken struct {
	Token     string         `json:"token"`
	AccountID int64          `json:"accountId"`
	Role      domain.RoleTag `json:"role"`
	ExpiresAt time.Time      `json:"expiresAt"`
}

// RefreshTokenRepository stores refresh tokens until they are used or revoked.
type RefreshTokenRepository interface {
	Save(ctx context.Context, token RefreshToken) error
	// Consume removes and returns token in one step, so a refresh token
	// can be exchanged at most once.
	Consume(ctx context.Context, token string) (*RefreshToken, error)
	Revoke(ctx context.Context, token string) error
}

type redisRefreshTokenRepository struct {
	client *redis.Client
	prefix string
}

// NewRefreshTokenRepository returns a Redis-backed implementation.
func NewRefreshTokenRepository(client *redis.Client) RefreshTokenRepository {
	return &redisRefreshTokenRepository{client: client, prefix: "portal:refresh:"}
}

func (r *redisRefreshTokenRepository) Save(ctx context.Context, token RefreshToken) error {
	ttl := time.Until(token.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("refresh token already expired")
	}
	raw, err := json.Marshal(token)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.prefix+token.Token, raw, ttl).Err()
}

func (r *redisRefreshTokenRepository) Consume(ctx context.Context, token string) (*RefreshToken, error) {
	raw, err := r.client.GetDel(ctx, r.prefix+token).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var stored RefreshToken
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("decode refresh token: %w", err)
	}
	return &stored, nil
}

func (r *redisRefreshTokenRepository) Revoke(ctx context.Context, token string) error {
	return r.client.Del(ctx, r.prefix+token).Err()
}

type memoryRefreshTokenRepository struct {
	mu     sync.Mutex
	now    func() time.Time
	tokens map[string]RefreshToken
}

// NewMemoryRefreshTokenRepository returns an in-process implementation.
func NewMemoryRefreshTokenRepository() RefreshTokenRepository {
	return &memoryRefreshTokenRepository{now: time.Now, tokens: make(map[string]RefreshToken)}
}

func (r *memoryRefreshTokenRepository) Save(_ context.Context, token RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[token.Token] = token
	return nil
}

func (r *memoryRefreshTokenRepository) Consume(_ context.Context, token string) (*RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.tokens[token]
	if !ok {
		return nil, ErrNotFound
	}
	delete(r.tokens, token)
	if !stored.ExpiresAt.After(r.now()) {
		return nil, ErrNotFound
	}
	return &stored, nil
}

func (r *memoryRefreshTokenRepository) Revoke(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tokens, token)
	return nil
}

// Package session persists the token pair and identity record of each login
// role under disjoint keys, so a user session and an admin session can be
// resident at the same time.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/portal-session/internal/domain"
)

// ErrInvalidSession is returned when a session is saved with inconsistent parts.
var ErrInvalidSession = errors.New("invalid session")

// Store is the single shared holder of session state.
//
// Compound reads and writes are serialized so no caller observes a token pair
// without its identity record or the other way round.
type Store struct {
	medium    Medium
	namespace string
	logger    *zap.Logger

	mu sync.RWMutex
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for corruption warnings.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithNamespace sets the key prefix shared by both roles.
func WithNamespace(namespace string) Option {
	return func(s *Store) {
		if namespace != "" {
			s.namespace = namespace
		}
	}
}

// NewStore builds a store persisting into medium.
func NewStore(medium Medium, opts ...Option) *Store {
	s := &Store{medium: medium, namespace: "portal", logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) tokensKey(role domain.Role) string {
	return fmt.Sprintf("%s:%s:tokens", s.namespace, role)
}

func (s *Store) identityKey(role domain.Role) string {
	return fmt.Sprintf("%s:%s:identity", s.namespace, role)
}

// SaveSession writes both records of role, replacing whatever it held before.
func (s *Store) SaveSession(ctx context.Context, role domain.Role, identity domain.IdentityRecord, tokens domain.TokenPair) error {
	values, err := s.encode(role, identity, tokens)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.medium.SetMany(ctx, values)
}

// LoginExclusive clears the opposite role and then saves the session for role.
func (s *Store) LoginExclusive(ctx context.Context, role domain.Role, identity domain.IdentityRecord, tokens domain.TokenPair) error {
	values, err := s.encode(role, identity, tokens)
	if err != nil {
		return err
	}
	other := role.Opposite()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.medium.Delete(ctx, s.tokensKey(other), s.identityKey(other)); err != nil {
		return err
	}
	return s.medium.SetMany(ctx, values)
}

// LoadIdentity returns the identity record of role, if a consistent session exists.
func (s *Store) LoadIdentity(ctx context.Context, role domain.Role) (domain.IdentityRecord, bool, error) {
	identity, _, ok, err := s.load(ctx, role)
	return identity, ok, err
}

// LoadTokens returns the token pair of role, if a consistent session exists.
func (s *Store) LoadTokens(ctx context.Context, role domain.Role) (domain.TokenPair, bool, error) {
	_, tokens, ok, err := s.load(ctx, role)
	return tokens, ok, err
}

// ReplaceTokens overwrites the token pair of role, but only while the stored
// refresh token is still expectedRefresh. It reports whether the write happened.
func (s *Store) ReplaceTokens(ctx context.Context, role domain.Role, expectedRefresh string, tokens domain.TokenPair) (bool, error) {
	if tokens.AccessToken == "" {
		return false, fmt.Errorf("%w: empty access token", ErrInvalidSession)
	}
	raw, err := json.Marshal(tokens)
	if err != nil {
		return false, fmt.Errorf("encode tokens: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, current, ok, err := s.loadLocked(ctx, role)
	if err != nil {
		return false, err
	}
	if !ok || current.RefreshToken != expectedRefresh {
		return false, nil
	}
	if err := s.medium.SetMany(ctx, map[string]string{s.tokensKey(role): string(raw)}); err != nil {
		return false, err
	}
	return true, nil
}

// ClearRole removes both records of role and nothing else.
func (s *Store) ClearRole(ctx context.Context, role domain.Role) error {
	if !role.Valid() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.medium.Delete(ctx, s.tokensKey(role), s.identityKey(role))
}

// ClearStale removes the session of role only if it still holds refreshToken,
// so a failed refresh cannot wipe a session established in the meantime.
func (s *Store) ClearStale(ctx context.Context, role domain.Role, refreshToken string) (bool, error) {
	if !role.Valid() {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, current, ok, err := s.loadLocked(ctx, role)
	if err != nil {
		return false, err
	}
	if ok && current.RefreshToken != refreshToken {
		return false, nil
	}
	if err := s.medium.Delete(ctx, s.tokensKey(role), s.identityKey(role)); err != nil {
		return false, err
	}
	return true, nil
}

// ClearAll removes the sessions of both roles.
func (s *Store) ClearAll(ctx context.Context) error {
	keys := make([]string, 0, 2*len(domain.Roles))
	for _, role := range domain.Roles {
		keys = append(keys, s.tokensKey(role), s.identityKey(role))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.medium.Delete(ctx, keys...)
}

// CurrentRole derives the active role: admin wins when both sessions are resident.
func (s *Store) CurrentRole(ctx context.Context) (domain.Role, error) {
	for _, role := range domain.Roles {
		_, ok, err := s.LoadIdentity(ctx, role)
		if err != nil {
			return domain.RoleNone, err
		}
		if ok {
			return role, nil
		}
	}
	return domain.RoleNone, nil
}

func (s *Store) encode(role domain.Role, identity domain.IdentityRecord, tokens domain.TokenPair) (map[string]string, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidSession, role)
	}
	if !identity.Matches(role) {
		return nil, fmt.Errorf("%w: identity tag %q does not belong to %s", ErrInvalidSession, identity.Role, role)
	}
	if tokens.AccessToken == "" {
		return nil, fmt.Errorf("%w: empty access token", ErrInvalidSession)
	}

	rawTokens, err := json.Marshal(tokens)
	if err != nil {
		return nil, fmt.Errorf("encode tokens: %w", err)
	}
	rawIdentity, err := json.Marshal(identity)
	if err != nil {
		return nil, fmt.Errorf("encode identity: %w", err)
	}
	return map[string]string{
		s.tokensKey(role):   string(rawTokens),
		s.identityKey(role): string(rawIdentity),
	}, nil
}

func (s *Store) load(ctx context.Context, role domain.Role) (domain.IdentityRecord, domain.TokenPair, bool, error) {
	if !role.Valid() {
		return domain.IdentityRecord{}, domain.TokenPair{}, false, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadLocked(ctx, role)
}

// loadLocked reads both records. Anything unparsable or inconsistent reads as
// absent and is left in place for an explicit clear.
func (s *Store) loadLocked(ctx context.Context, role domain.Role) (domain.IdentityRecord, domain.TokenPair, bool, error) {
	var (
		identity domain.IdentityRecord
		tokens   domain.TokenPair
	)

	rawTokens, hasTokens, err := s.medium.Get(ctx, s.tokensKey(role))
	if err != nil {
		return identity, tokens, false, err
	}
	rawIdentity, hasIdentity, err := s.medium.Get(ctx, s.identityKey(role))
	if err != nil {
		return identity, tokens, false, err
	}
	if !hasTokens && !hasIdentity {
		return identity, tokens, false, nil
	}
	if hasTokens != hasIdentity {
		s.logger.Warn("incomplete session treated as absent",
			zap.String("role", string(role)),
			zap.Bool("has_tokens", hasTokens),
			zap.Bool("has_identity", hasIdentity),
		)
		return identity, tokens, false, nil
	}

	if err := json.Unmarshal([]byte(rawTokens), &tokens); err != nil || tokens.AccessToken == "" {
		s.logger.Warn("malformed token pair treated as absent", zap.String("role", string(role)), zap.Error(err))
		return domain.IdentityRecord{}, domain.TokenPair{}, false, nil
	}
	if err := json.Unmarshal([]byte(rawIdentity), &identity); err != nil {
		s.logger.Warn("malformed identity treated as absent", zap.String("role", string(role)), zap.Error(err))
		return domain.IdentityRecord{}, domain.TokenPair{}, false, nil
	}
	if !identity.Matches(role) {
		s.logger.Warn("identity tag mismatch treated as absent",
			zap.String("role", string(role)),
			zap.String("tag", string(identity.Role)),
		)
		return domain.IdentityRecord{}, domain.TokenPair{}, false, nil
	}
	return identity, tokens, true, nil
}

package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/portal-session/internal/auth"
	"github.com/spec-kit/portal-session/internal/config"
	"github.com/spec-kit/portal-session/internal/domain"
	"github.com/spec-kit/portal-session/internal/repository"
	apperrors "github.com/spec-kit/portal-session/pkg/util"
)

// Session is what a successful login or refresh hands back.
type Session struct {
	Account      *domain.Account
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// AuthService coordinates login, refresh rotation and logout for both roles.
type AuthService struct {
	accounts   repository.AccountRepository
	refresh    repository.RefreshTokenRepository
	tokenMgr   *auth.TokenManager
	bcryptCost int
	refreshTTL time.Duration
	logger     *zap.Logger
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	AccountRepo      repository.AccountRepository
	RefreshTokenRepo repository.RefreshTokenRepository
	TokenManager     *auth.TokenManager
	Logger           *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	tokenMgr := deps.TokenManager
	if tokenMgr == nil {
		tokenMgr = auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL())
	}
	refreshTTL := cfg.RefreshTokenTTL()
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		accounts:   deps.AccountRepo,
		refresh:    deps.RefreshTokenRepo,
		tokenMgr:   tokenMgr,
		bcryptCost: cfg.BcryptCost,
		refreshTTL: refreshTTL,
		logger:     logger,
	}
}

// RegisterInput describes a new account.
type RegisterInput struct {
	Role        domain.Role
	LoginID     string
	DisplayName string
	Password    string
	RoleCode    string
	RoleName    string
}

// Register creates an active account for the given role.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.Account, error) {
	if !in.Role.Valid() {
		return nil, apperrors.NewValidationError("unknown role", map[string]any{"role": in.Role})
	}
	in.LoginID = strings.TrimSpace(in.LoginID)
	if in.LoginID == "" || in.Password == "" {
		return nil, apperrors.NewValidationError("loginId and password required", nil)
	}
	if in.DisplayName == "" {
		in.DisplayName = in.LoginID
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	account := &domain.Account{
		LoginID:      in.LoginID,
		DisplayName:  in.DisplayName,
		PasswordHash: hash,
		Role:         in.Role.Tag(),
		RoleCode:     in.RoleCode,
		RoleName:     in.RoleName,
		Status:       domain.AccountStatusActive,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewConflict("login ID already registered", map[string]any{"loginId": in.LoginID})
		}
		return nil, err
	}
	return account, nil
}

// Login authenticates loginID against the accounts of role.
func (s *AuthService) Login(ctx context.Context, role domain.Role, loginID, password string) (*Session, error) {
	account, err := s.accounts.GetByLoginID(ctx, role.Tag(), strings.TrimSpace(loginID))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewLoginFailed()
		}
		return nil, err
	}
	ok, err := auth.CheckPassword(account.PasswordHash, password)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if !ok {
		return nil, apperrors.NewLoginFailed()
	}
	if account.Status != domain.AccountStatusActive {
		return nil, apperrors.NewForbidden(domain.CodeAccessDenied, "account suspended")
	}

	session, err := s.issue(ctx, account)
	if err != nil {
		return nil, err
	}
	s.logger.Info("login succeeded", zap.String("role", string(role)), zap.Int64("account_id", account.ID))
	return session, nil
}

// Refresh exchanges a refresh token issued to role for a new pair. The
// presented token is used up whether or not the exchange succeeds.
func (s *AuthService) Refresh(ctx context.Context, role domain.Role, refreshToken string) (*Session, error) {
	if refreshToken == "" {
		return nil, apperrors.NewValidationError("refreshToken required", nil)
	}
	stored, err := s.refresh.Consume(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewUnauthorized(domain.CodeRefreshTokenInvalid, "refresh token invalid or expired")
		}
		return nil, err
	}
	if stored.Role != role.Tag() {
		return nil, apperrors.NewUnauthorized(domain.CodeRefreshTokenInvalid, "refresh token issued to another role")
	}

	account, err := s.accounts.GetByID(ctx, stored.AccountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewUnauthorized(domain.CodeSessionExpired, "account no longer exists")
		}
		return nil, err
	}
	if account.Status != domain.AccountStatusActive {
		return nil, apperrors.NewUnauthorized(domain.CodeSessionExpired, "account suspended")
	}
	return s.issue(ctx, account)
}

// Logout revokes a refresh token. Unknown tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.refresh.Revoke(ctx, refreshToken)
}

func (s *AuthService) issue(ctx context.Context, account *domain.Account) (*Session, error) {
	access, exp, err := s.tokenMgr.GenerateToken(account.ID, account.Role)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	refreshToken := uuid.NewString()
	if err := s.refresh.Save(ctx, repository.RefreshToken{
		Token:     refreshToken,
		AccountID: account.ID,
		Role:      account.Role,
		ExpiresAt: time.Now().Add(s.refreshTTL),
	}); err != nil {
		return nil, err
	}
	return &Session{Account: account, AccessToken: access, RefreshToken: refreshToken, ExpiresAt: exp}, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

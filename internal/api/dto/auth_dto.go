package dto

import (
	"time"

	"github.com/spec-kit/portal-session/internal/domain"
)

// LoginRequest payload for both login endpoints.
type LoginRequest struct {
	LoginID  string `json:"loginId"`
	Password string `json:"password"`
}

// RefreshRequest payload for the refresh endpoints.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// LogoutRequest payload for logout.
type LogoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// TokenResponse carries an issued token pair.
type TokenResponse struct {
	Token        string    `json:"token"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// UserLoginResponse is the data of a user login.
type UserLoginResponse struct {
	TokenResponse
	User domain.IdentityRecord `json:"user"`
}

// AdminLoginResponse is the data of an administrator login.
type AdminLoginResponse struct {
	TokenResponse
	Admin domain.IdentityRecord `json:"admin"`
}

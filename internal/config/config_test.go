package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SESSION_STORE", "")
	t.Setenv("PORTAL_API_BASE_URL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverRedis, cfg.Session.Driver)
	assert.Equal(t, "portal", cfg.Session.Namespace)
	assert.Equal(t, "http://127.0.0.1:8080", cfg.Client.BaseURL)
	assert.Equal(t, 15*time.Second, cfg.Client.RequestTimeout())
	assert.Equal(t, 10*time.Second, cfg.Client.RefreshTimeout())
	assert.Equal(t, "/admin/login", cfg.Routes.AdminLogin)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SESSION_STORE", "Memory")
	t.Setenv("PORTAL_API_BASE_URL", "https://portal.example.com/")
	t.Setenv("PORTAL_REQUEST_TIMEOUT_SECONDS", "3")
	t.Setenv("AUTH_ACCESS_TOKEN_TTL_SECONDS", "60")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverMemory, cfg.Session.Driver)
	assert.Equal(t, "https://portal.example.com", cfg.Client.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Client.RequestTimeout())
	assert.Equal(t, time.Minute, cfg.Auth.AccessTokenTTL())
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	t.Setenv("SESSION_STORE", "cookie")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_PostgresRequiresDSN(t *testing.T) {
	t.Setenv("SESSION_STORE", "postgres")
	t.Setenv("POSTGRES_DSN", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_InvalidRedisDB(t *testing.T) {
	t.Setenv("SESSION_STORE", "memory")
	t.Setenv("REDIS_DB", "zero")

	_, err := Load()
	assert.Error(t, err)
}

func TestSeconds_NonPositive(t *testing.T) {
	assert.Zero(t, ClientConfig{}.RequestTimeout())
	assert.Zero(t, AuthConfig{RefreshTokenTTLMinutes: -1}.RefreshTokenTTL())
}

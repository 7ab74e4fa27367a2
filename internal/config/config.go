package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the portal client and the stub backend.
type Config struct {
	App      AppConfig
	Client   ClientConfig
	Routes   RoutesConfig
	Session  SessionConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Seed     SeedConfig
}

// AppConfig controls stub server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// ClientConfig holds what the host application supplies to the request pipeline.
type ClientConfig struct {
	BaseURL               string
	RequestTimeoutSeconds int
	RefreshTimeoutSeconds int
	UserLoginPath         string
	AdminLoginPath        string
	UserRefreshPath       string
	AdminRefreshPath      string
	LogoutPath            string
}

// RoutesConfig names the UI locations directives redirect to.
type RoutesConfig struct {
	UserLogin  string
	AdminLogin string
	UserHome   string
	AdminHome  string
}

// SessionConfig selects the key/value medium backing the session store.
type SessionConfig struct {
	Driver    string
	Namespace string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines token parameters of the stub backend.
type AuthConfig struct {
	JWTSecret              string
	AccessTokenTTLSeconds  int
	RefreshTokenTTLMinutes int
	BcryptCost             int
}

// SeedConfig names the demo accounts the stub backend creates at startup.
// An empty password skips that account.
type SeedConfig struct {
	UserLoginID   string
	UserPassword  string
	AdminLoginID  string
	AdminPassword string
}

// Session drivers.
const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "portal-stub"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Client: ClientConfig{
			BaseURL:               strings.TrimRight(getEnv("PORTAL_API_BASE_URL", "http://127.0.0.1:8080"), "/"),
			RequestTimeoutSeconds: getEnvAsInt("PORTAL_REQUEST_TIMEOUT_SECONDS", 15),
			RefreshTimeoutSeconds: getEnvAsInt("PORTAL_REFRESH_TIMEOUT_SECONDS", 10),
			UserLoginPath:         getEnv("PORTAL_USER_LOGIN_PATH", "/api/auth/login"),
			AdminLoginPath:        getEnv("PORTAL_ADMIN_LOGIN_PATH", "/api/admin/auth/login"),
			UserRefreshPath:       getEnv("PORTAL_USER_REFRESH_PATH", "/api/auth/refresh"),
			AdminRefreshPath:      getEnv("PORTAL_ADMIN_REFRESH_PATH", "/api/admin/auth/refresh"),
			LogoutPath:            getEnv("PORTAL_LOGOUT_PATH", "/api/auth/logout"),
		},
		Routes: RoutesConfig{
			UserLogin:  getEnv("PORTAL_ROUTE_USER_LOGIN", "/login"),
			AdminLogin: getEnv("PORTAL_ROUTE_ADMIN_LOGIN", "/admin/login"),
			UserHome:   getEnv("PORTAL_ROUTE_USER_HOME", "/"),
			AdminHome:  getEnv("PORTAL_ROUTE_ADMIN_HOME", "/admin"),
		},
		Session: SessionConfig{
			Driver:    strings.ToLower(getEnv("SESSION_STORE", DriverRedis)),
			Namespace: getEnv("SESSION_NAMESPACE", "portal"),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:              getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLSeconds:  getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_SECONDS", 900),
			RefreshTokenTTLMinutes: getEnvAsInt("AUTH_REFRESH_TOKEN_TTL_MINUTES", 60*24*7),
			BcryptCost:             getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Seed: SeedConfig{
			UserLoginID:   getEnv("STUB_USER_LOGIN_ID", "user"),
			UserPassword:  os.Getenv("STUB_USER_PASSWORD"),
			AdminLoginID:  getEnv("STUB_ADMIN_LOGIN_ID", "admin"),
			AdminPassword: os.Getenv("STUB_ADMIN_PASSWORD"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Session.Driver {
	case DriverMemory, DriverRedis, DriverPostgres:
	default:
		return fmt.Errorf("invalid SESSION_STORE %q", c.Session.Driver)
	}
	if c.Session.Driver == DriverPostgres && c.Postgres.DSN == "" {
		return fmt.Errorf("SESSION_STORE=postgres requires POSTGRES_DSN")
	}
	if c.Session.Namespace == "" {
		return fmt.Errorf("SESSION_NAMESPACE must not be empty")
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	return seconds(a.RequestTimeoutSeconds)
}

// RequestTimeout is the default per-call budget of the request pipeline.
func (c ClientConfig) RequestTimeout() time.Duration {
	return seconds(c.RequestTimeoutSeconds)
}

// RefreshTimeout bounds a shared refresh call.
func (c ClientConfig) RefreshTimeout() time.Duration {
	return seconds(c.RefreshTimeoutSeconds)
}

// AccessTokenTTL returns the lifetime of issued access tokens.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	return seconds(a.AccessTokenTTLSeconds)
}

// RefreshTokenTTL returns the lifetime of issued refresh tokens.
func (a AuthConfig) RefreshTokenTTL() time.Duration {
	if a.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(a.RefreshTokenTTLMinutes) * time.Minute
}

func seconds(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

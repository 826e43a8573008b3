package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for both the issuing and the verifying service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Issuer   IssuerConfig
	Cache    CacheConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	// ReadBufferSize caps request header bytes. ML-DSA-65 bearer tokens run past
	// fasthttp's 4 KiB default.
	ReadBufferSize int
}

// DefaultReadBufferSize fits a post-quantum bearer token plus ordinary headers.
const DefaultReadBufferSize = 16 << 10

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

// AuthConfig defines token issuance parameters. UsePostQuantum selects the
// authoritative provider and is read once when the token service is built.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	UsePostQuantum        bool
	BcryptCost            int
}

// IssuerConfig tells a verifying service where the token issuer lives.
type IssuerConfig struct {
	AuthServiceURL         string
	KeyFetchTimeoutSeconds int
	KeyCacheTTLSeconds     int
}

// CacheConfig controls the redis-backed principal attribute cache.
type CacheConfig struct {
	PrincipalTTLSeconds int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	usePQ, err := strconv.ParseBool(getEnv("AUTH_USE_POST_QUANTUM", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid AUTH_USE_POST_QUANTUM: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "auth-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8083"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
			ReadBufferSize:        getEnvAsInt("HTTP_READ_BUFFER_SIZE", DefaultReadBufferSize),
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
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret-change-me-dev-secret-change-me"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			UsePostQuantum:        usePQ,
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Issuer: IssuerConfig{
			AuthServiceURL:         strings.TrimRight(getEnv("AUTH_SERVICE_URL", "http://localhost:8083"), "/"),
			KeyFetchTimeoutSeconds: getEnvAsInt("AUTH_SERVICE_KEY_FETCH_TIMEOUT_SECONDS", 5),
			KeyCacheTTLSeconds:     getEnvAsInt("AUTH_SERVICE_KEY_CACHE_TTL_SECONDS", 900),
		},
		Cache: CacheConfig{
			PrincipalTTLSeconds: getEnvAsInt("CACHE_PRINCIPAL_TTL_SECONDS", 60),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// HeaderBufferSize returns the fiber read buffer size, never below the default.
func (a AppConfig) HeaderBufferSize() int {
	if a.ReadBufferSize < DefaultReadBufferSize {
		return DefaultReadBufferSize
	}
	return a.ReadBufferSize
}

// AccessTokenTTL returns the token lifetime, defaulting to one hour.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	if a.AccessTokenTTLMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(a.AccessTokenTTLMinutes) * time.Minute
}

// FetchTimeout bounds a single public key fetch.
func (i IssuerConfig) FetchTimeout() time.Duration {
	if i.KeyFetchTimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(i.KeyFetchTimeoutSeconds) * time.Second
}

// KeyCacheTTL returns how long a fetched key is trusted. Zero means forever.
func (i IssuerConfig) KeyCacheTTL() time.Duration {
	if i.KeyCacheTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(i.KeyCacheTTLSeconds) * time.Second
}

// PrincipalTTL returns the principal cache lifetime. Zero disables caching.
func (c CacheConfig) PrincipalTTL() time.Duration {
	if c.PrincipalTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(c.PrincipalTTLSeconds) * time.Second
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

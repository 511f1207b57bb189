package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Tokens   TokenConfig
	Cache    CacheConfig
	Email    EmailConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all (e.g. http://localhost:3000,http://localhost:3001)
	PublicBaseURL      string // used to build verification / invitation links in emails
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is (e.g. postgres://localhost:5432/linkforge?sslmode=disable)
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds signing settings for session credentials. Access and
// refresh tokens use independent secrets so one can never stand in for the other.
type JWTConfig struct {
	AccessSecret        string
	RefreshSecret       string
	AccessExpireMinutes int
	RefreshExpireHours  int
}

// TokenConfig holds single-use token TTLs (email verification, invitations, password resets).
type TokenConfig struct {
	VerifyTTLSeconds int
	InviteTTLHours   int
	ResetTTLSeconds  int
}

// CacheConfig holds the two-tier response cache settings.
type CacheConfig struct {
	Prefix            string
	DefaultTTLSeconds int // remote tier default
	LocalTTLSeconds   int // in-process tier, independent of remote TTL
	LocalMaxEntries   int
}

// EmailConfig holds the transactional mail provider settings.
type EmailConfig struct {
	APIKey      string
	APISecret   string
	FromAddress string
	FromName    string
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Validate rejects configurations the server must not start with.
// A missing signing secret is a fatal configuration error, not something
// recoverable at request time.
func (c *Config) Validate() error {
	if c.JWT.AccessSecret == "" || c.JWT.RefreshSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET are required")
	}
	if c.JWT.AccessSecret == c.JWT.RefreshSecret {
		return fmt.Errorf("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}
	return nil
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	readTimeout, _ := strconv.Atoi(getEnv("READ_TIMEOUT_SEC", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("WRITE_TIMEOUT_SEC", "30"))
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        readTimeout,
			WriteTimeout:       writeTimeout,
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:3001"),
			PublicBaseURL:      strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		},
		Database: DatabaseConfig{
			// No default: DATABASE_URL overrides the DB_* components only
			// when explicitly set.
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "linkforge"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		JWT: JWTConfig{
			AccessSecret:        getEnv("JWT_ACCESS_SECRET", ""),
			RefreshSecret:       getEnv("JWT_REFRESH_SECRET", ""),
			AccessExpireMinutes: getEnvInt("JWT_ACCESS_EXPIRE_MINUTES", 60),
			RefreshExpireHours:  getEnvInt("JWT_REFRESH_EXPIRE_HOURS", 72),
		},
		Tokens: TokenConfig{
			VerifyTTLSeconds: getEnvInt("VERIFY_TOKEN_TTL_SEC", 600),
			InviteTTLHours:   getEnvInt("INVITE_TOKEN_TTL_HOURS", 168),
			ResetTTLSeconds:  getEnvInt("RESET_TOKEN_TTL_SEC", 900),
		},
		Cache: CacheConfig{
			Prefix:            getEnv("CACHE_PREFIX", "cache:"),
			DefaultTTLSeconds: getEnvInt("CACHE_DEFAULT_TTL_SEC", 300),
			LocalTTLSeconds:   getEnvInt("CACHE_LOCAL_TTL_SEC", 30),
			LocalMaxEntries:   getEnvInt("CACHE_LOCAL_MAX_ENTRIES", 1024),
		},
		Email: EmailConfig{
			APIKey:      getEnv("MAIL_API_KEY", ""),
			APISecret:   getEnv("MAIL_API_SECRET", ""),
			FromAddress: getEnv("EMAIL_FROM_ADDRESS", "noreply@linkforge.app"),
			FromName:    getEnv("EMAIL_FROM_NAME", "Linkforge"),
		},
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

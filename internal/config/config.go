package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	ServerPort   string
	DatabaseType string
	DatabasePath string
	DatabaseURL  string
	AppBaseURL   string

	// Inbound bearer tokens are issued by the identity provider and verified here
	TokenSecret   string
	TokenIssuer   string
	TokenAudience string

	InvitationTTL    time.Duration
	SweepInterval    time.Duration
	PreviewRateLimit int

	// Peers whose X-Forwarded-For and X-Real-IP headers are honored
	TrustedProxies []string

	// Identity provider role-claim sync; disabled when IDPBaseURL is empty
	IDPBaseURL      string
	IDPTokenURL     string
	IDPClientID     string
	IDPClientSecret string
	IDPSyncTimeout  time.Duration

	// Invitation email via Amazon SES; disabled when SESFromEmail is empty
	AWSRegion    string
	SESFromEmail string
	SESFromName  string
	EmailDebug   bool

	LogLevel  string
	LogFormat string
}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is loaded first when present; values
// already set in the environment win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{
		ServerPort:       getEnv("PORT", "8080"),
		DatabaseType:     getEnv("DB_TYPE", "sqlite"),
		DatabasePath:     getEnv("DB_PATH", "./coparent.db"),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		AppBaseURL:       strings.TrimRight(getEnv("APP_BASE_URL", "http://localhost:8080"), "/"),
		TokenSecret:      getEnv("TOKEN_SECRET", ""),
		TokenIssuer:      getEnv("TOKEN_ISSUER", "coparent-idp"),
		TokenAudience:    getEnv("TOKEN_AUDIENCE", "coparent-api"),
		InvitationTTL:    getDuration("INVITATION_TTL", 7*24*time.Hour),
		SweepInterval:    getDuration("SWEEP_INTERVAL", time.Hour),
		PreviewRateLimit: getInt("PREVIEW_RATE_LIMIT", 30),
		TrustedProxies:   getList("TRUSTED_PROXIES"),
		IDPBaseURL:       strings.TrimRight(getEnv("IDP_BASE_URL", ""), "/"),
		IDPTokenURL:      getEnv("IDP_TOKEN_URL", ""),
		IDPClientID:      getEnv("IDP_CLIENT_ID", ""),
		IDPClientSecret:  getEnv("IDP_CLIENT_SECRET", ""),
		IDPSyncTimeout:   getDuration("IDP_SYNC_TIMEOUT", 5*time.Second),
		AWSRegion:        getEnv("AWS_REGION", "us-east-1"),
		SESFromEmail:     getEnv("SES_FROM_EMAIL", ""),
		SESFromName:      getEnv("SES_FROM_NAME", "Coparent"),
		EmailDebug:       getEnv("EMAIL_DEBUG", "") == "true",
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "text"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required values and cross-field constraints
func (c *Config) Validate() error {
	if c.TokenSecret == "" {
		return errors.New("TOKEN_SECRET is required")
	}
	switch strings.ToLower(c.DatabaseType) {
	case "postgres", "postgresql", "mysql":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for %s", c.DatabaseType)
		}
	}
	if c.IDPBaseURL != "" && c.IDPTokenURL == "" {
		return errors.New("IDP_TOKEN_URL is required when IDP_BASE_URL is set")
	}
	if c.InvitationTTL <= 0 {
		return errors.New("INVITATION_TTL must be positive")
	}
	if c.IDPSyncTimeout <= 0 {
		return errors.New("IDP_SYNC_TIMEOUT must be positive")
	}
	return nil
}

// HTTPAddress returns the address for the HTTP server to bind to.
func (c *Config) HTTPAddress() string {
	return ":" + c.ServerPort
}

// roleSyncCallsPerTransfer is the worst case of one admin transfer: two
// forward role changes, then both compensated.
const roleSyncCallsPerTransfer = 4

// minWriteTimeout is the HTTP write timeout when role sync is fast
const minWriteTimeout = 15 * time.Second

// WriteTimeout returns the HTTP server write timeout. It outlasts a
// transfer whose every role-sync call runs to IDPSyncTimeout.
func (c *Config) WriteTimeout() time.Duration {
	return max(minWriteTimeout, roleSyncCallsPerTransfer*c.IDPSyncTimeout+5*time.Second)
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

func getInt(key string, defaultValue int) int {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return defaultValue
	}
	return n
}

// getList reads a comma-separated variable, dropping empty items
func getList(key string) []string {
	var out []string
	for _, item := range strings.Split(getEnv(key, ""), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

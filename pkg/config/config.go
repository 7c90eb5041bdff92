package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/museumhub/centralauth/pkg/identity"
	"github.com/museumhub/centralauth/pkg/observability"
)

// Mode controls how an authentication source participates in login.
type Mode string

const (
	// ModeDisabled excludes the source entirely.
	ModeDisabled Mode = "disabled"
	// ModeOptional tries the source first but falls back to later tiers.
	ModeOptional Mode = "optional"
	// ModeRequired makes the source authoritative: no fallback on a
	// definitive rejection, and the local form is suppressed.
	ModeRequired Mode = "required"
	// ModeGateway probes for an existing upstream session without
	// forcing an interactive login.
	ModeGateway Mode = "gateway"
)

// ParseMode parses a mode name, defaulting to disabled
func ParseMode(s string) Mode {
	switch strings.ToLower(s) {
	case "optional":
		return ModeOptional
	case "required":
		return ModeRequired
	case "gateway":
		return ModeGateway
	default:
		return ModeDisabled
	}
}

// Enabled reports whether the source participates at all
func (m Mode) Enabled() bool {
	return m != ModeDisabled
}

// AuthConfig holds the source selection and reconciliation settings.
// It is the unit handed out by a Provider snapshot: callers get a copy
// and mutations never leak back.
type AuthConfig struct {
	// SSO tier
	SSOMode    Mode
	SSOKind    identity.SourceKind
	SSOOptions map[string]string

	// Directory tier
	DirectoryMode    Mode
	DirectoryOptions map[string]string

	// Reconciliation
	MatchBy     identity.MatchBy
	EmailDomain string

	// UpstreamTimeout bounds each upstream call made on behalf of a
	// single request.
	UpstreamTimeout time.Duration
}

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Auth          AuthConfig
	Storage       StorageConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string

	// ExternalURL is the public base URL used when building SSO
	// callback and logout return addresses.
	ExternalURL string
}

// StorageConfig holds user store and session store settings
type StorageConfig struct {
	PostgresURL   string
	RedisURL      string
	RedisPassword string
	RedisDB       int
	SessionTTL    time.Duration
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Auth:          loadAuthConfig(),
		Storage:       loadStorageConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("CENTRALAUTH_HOST", "0.0.0.0"),
		Port:            getEnv("CENTRALAUTH_PORT", "8080"),
		ReadTimeout:     getEnvDuration("CENTRALAUTH_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("CENTRALAUTH_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("CENTRALAUTH_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("CENTRALAUTH_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("CENTRALAUTH_HEALTH_PORT", "9090"),
		ExternalURL:     getEnv("CENTRALAUTH_EXTERNAL_URL", "http://localhost:8080"),
	}
}

// loadAuthConfig loads source selection settings from environment
func loadAuthConfig() AuthConfig {
	return AuthConfig{
		SSOMode:          ParseMode(getEnv("CENTRALAUTH_SSO_MODE", "disabled")),
		SSOKind:          parseSSOKind(getEnv("CENTRALAUTH_SSO_KIND", "cas")),
		SSOOptions:       parseOptions(getEnv("CENTRALAUTH_SSO_OPTIONS", "")),
		DirectoryMode:    ParseMode(getEnv("CENTRALAUTH_DIRECTORY_MODE", "disabled")),
		DirectoryOptions: parseOptions(getEnv("CENTRALAUTH_DIRECTORY_OPTIONS", "")),
		MatchBy:          parseMatchBy(getEnv("CENTRALAUTH_MATCH_BY", "username")),
		EmailDomain:      getEnv("CENTRALAUTH_EMAIL_DOMAIN", ""),
		UpstreamTimeout:  getEnvDuration("CENTRALAUTH_UPSTREAM_TIMEOUT", 10*time.Second),
	}
}

// loadStorageConfig loads user store and session settings from environment
func loadStorageConfig() StorageConfig {
	return StorageConfig{
		PostgresURL:   getEnv("CENTRALAUTH_POSTGRES_URL", ""),
		RedisURL:      getEnv("CENTRALAUTH_REDIS_URL", ""),
		RedisPassword: getEnv("CENTRALAUTH_REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("CENTRALAUTH_REDIS_DB", 0),
		SessionTTL:    getEnvDuration("CENTRALAUTH_SESSION_TTL", 12*time.Hour),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       observability.ParseLogLevel(getEnv("CENTRALAUTH_LOG_LEVEL", "info")),
		MetricsEnabled: getEnvBool("CENTRALAUTH_METRICS_ENABLED", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	return c.Auth.Validate()
}

// Validate checks the source selection settings for contradictions
func (c *AuthConfig) Validate() error {
	if c.SSOMode.Enabled() && !c.SSOKind.IsSSO() {
		return fmt.Errorf("invalid sso kind: %s (must be %s, %s, or %s)",
			c.SSOKind, identity.SourceCAS, identity.SourceSAML, identity.SourceOIDC)
	}
	if c.DirectoryMode == ModeGateway {
		return fmt.Errorf("gateway mode only applies to the sso tier")
	}
	if c.MatchBy != identity.MatchByUsername && c.MatchBy != identity.MatchByEmail {
		return fmt.Errorf("invalid match strategy: %s (must be username or email)", c.MatchBy)
	}
	if c.MatchBy == identity.MatchByEmail && c.EmailDomain == "" {
		return fmt.Errorf("email domain is required when matching by email")
	}
	if c.UpstreamTimeout <= 0 {
		return fmt.Errorf("upstream timeout must be positive")
	}
	return nil
}

// Clone returns a deep copy so callers can mutate options freely
func (c AuthConfig) Clone() AuthConfig {
	out := c
	out.SSOOptions = make(map[string]string, len(c.SSOOptions))
	for k, v := range c.SSOOptions {
		out.SSOOptions[k] = v
	}
	out.DirectoryOptions = make(map[string]string, len(c.DirectoryOptions))
	for k, v := range c.DirectoryOptions {
		out.DirectoryOptions[k] = v
	}
	return out
}

// parseSSOKind maps a short protocol name to a source kind
func parseSSOKind(s string) identity.SourceKind {
	switch strings.ToLower(s) {
	case "saml":
		return identity.SourceSAML
	case "oidc":
		return identity.SourceOIDC
	default:
		return identity.SourceCAS
	}
}

// parseMatchBy parses a match strategy, defaulting to username
func parseMatchBy(s string) identity.MatchBy {
	if strings.ToLower(s) == "email" {
		return identity.MatchByEmail
	}
	return identity.MatchByUsername
}

// parseOptions parses "key=value,key=value" pairs
func parseOptions(s string) map[string]string {
	opts := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		opts[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	return opts
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Package config provides application configuration management.
//
// # Overview
//
// Process-level settings (listen addresses, timeouts, storage URLs) are
// loaded once from environment variables. Auth source selection settings
// come from a Provider, which can be a fixed value or a YAML file that
// reloads on change; every login request takes one snapshot so the rules
// cannot shift mid-request.
//
// # Configuration Structure
//
// Server settings:
//
//	CENTRALAUTH_HOST="0.0.0.0"
//	CENTRALAUTH_PORT="8080"
//	CENTRALAUTH_HEALTH_PORT="9090"
//	CENTRALAUTH_EXTERNAL_URL="https://auth.museum.example"
//
// Storage settings:
//
//	CENTRALAUTH_POSTGRES_URL="postgres://localhost/centralauth"
//	CENTRALAUTH_REDIS_URL="redis://localhost:6379"
//	CENTRALAUTH_SESSION_TTL="12h"
//
// Auth settings (environment form; a YAML file via --auth-config takes
// precedence and reloads on save):
//
//	CENTRALAUTH_SSO_MODE="optional"       # disabled, optional, required, gateway
//	CENTRALAUTH_SSO_KIND="cas"            # cas, saml, oidc
//	CENTRALAUTH_SSO_OPTIONS="hostname=sso.museum.example,uri=cas"
//	CENTRALAUTH_DIRECTORY_MODE="optional" # disabled, optional, required
//	CENTRALAUTH_MATCH_BY="username"       # username, email
//	CENTRALAUTH_UPSTREAM_TIMEOUT="10s"
//
// Observability settings:
//
//	CENTRALAUTH_LOG_LEVEL="info"  # debug, info, warn, error
//	CENTRALAUTH_METRICS_ENABLED="true"
//
// # Usage Example
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	provider := config.NewStatic(cfg.Auth)
//	snapshot := provider.Snapshot()
//
// # Related Packages
//
//   - pkg/broker: consumes an AuthConfig snapshot per request
//   - pkg/observability: uses the log level setting
package config

// Package observability provides structured logging, Prometheus metrics,
// and health probes for the authentication broker.
//
// Logging uses a slog-backed JSON logger with field chaining:
//
//	log := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	log.WithField("source", "sso-cas").Info("login succeeded")
//
// Metrics are registered against a caller-supplied prometheus.Registry and
// exposed through Metrics.Handler. All metric names carry the centralauth_
// prefix.
package observability

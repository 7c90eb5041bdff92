// Package audit records the operator-facing trail of authentication
// events.
//
// # Overview
//
// Every login, logout, and gateway probe leaves an event. The trail is
// the only place allowed to distinguish "no matching account" from
// "account disabled"; user-facing responses always collapse the two.
//
// Recorders are best-effort by contract: the HTTP layer logs a failed
// write and moves on, a broken trail never blocks a login or logout.
//
// # Backends
//
//   - DBRecorder: PostgreSQL table auth_audit_log, created on startup
//   - FileRecorder: JSON lines appended to a local file
//   - MultiRecorder: fan-out to several backends
//   - NopRecorder: discard everything (tests, minimal deployments)
package audit

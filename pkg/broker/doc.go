// Package broker orchestrates one login attempt end to end.
//
// # Overview
//
// The broker asks the selector for an ordered list of sources, calls
// each source, hands the raw assertion to the reconciliation policy,
// and classifies the attempt as succeeded, recoverable, or terminal.
// Terminal means a required source rejected the login and the host must
// not offer the local credential form.
//
// A broker is built per request from a configuration snapshot and the
// sources constructed for that request. Outcomes are memoized by source
// kind for the life of the broker, so reading a result twice never
// contacts an upstream twice.
//
// # Usage Example
//
//	b := broker.New(cfg, broker.Sources{SSO: cas, Local: local}, policy, log, metrics)
//	result := b.Authenticate(ctx, creds, formSubmitted)
//	switch result.State {
//	case broker.StateSucceeded:
//		// establish a session for result.Outcome.AccountID
//	case broker.StateFailedTerminal:
//		// render the blocking page, no local form
//	}
//
// Logout is a fan-out: every configured external source is notified and
// a failing source never stops the loop.
//
// # Related Packages
//
//   - pkg/source: the upstream source implementations
//   - pkg/reconcile: maps raw assertions to normalized outcomes
package broker

package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/museumhub/centralauth/pkg/identity"
)

// Source is the capability interface implemented by every upstream
// identity system.
//
// Authenticate consults the upstream and reports a raw outcome. A source
// may ignore the credentials (redirect-based SSO) or require them
// (directory, local). Sources must be safe to call any number of times per
// process; result memoization belongs to the broker, not the source.
//
// Logout is best-effort: transport failures are returned for logging but
// must never prevent the user from leaving.
type Source interface {
	Kind() identity.SourceKind
	Authenticate(ctx context.Context, creds *identity.Credentials) identity.RawOutcome
	Logout(ctx context.Context, returnURL string) error
}

// LoginRedirector is implemented by sources whose login flow begins with a
// browser redirect. LoginURL returns the upstream login endpoint; with
// gateway set, the upstream is asked to check for an existing session
// without forcing an interactive login.
type LoginRedirector interface {
	LoginURL(returnURL string, gateway bool) (string, error)
}

// Options is the flat string configuration bag handed to a source
// constructor. The broker core treats it as opaque; each source knows its
// own keys.
type Options map[string]string

// Get returns the value for key, or empty string
func (o Options) Get(key string) string {
	return o[key]
}

// GetDefault returns the value for key, or def when absent or empty
func (o Options) GetDefault(key, def string) string {
	if v := o[key]; v != "" {
		return v
	}
	return def
}

// Bool interprets the value for key as a boolean flag
func (o Options) Bool(key string) bool {
	v := strings.ToLower(o[key])
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

// Require returns an error naming the first missing key
func (o Options) Require(keys ...string) error {
	for _, key := range keys {
		if o[key] == "" {
			return fmt.Errorf("option %q is required", key)
		}
	}
	return nil
}

// unavailableSource stands in for a source that could not be constructed
// (bad options, failed discovery). Every authentication attempt against it
// reports the construction failure as an unavailable outcome, which lets
// the broker's availability rules apply instead of surfacing a raw error.
type unavailableSource struct {
	kind   identity.SourceKind
	reason string
}

// NewUnavailable returns a Source that always reports unavailable
func NewUnavailable(kind identity.SourceKind, reason string) Source {
	return &unavailableSource{kind: kind, reason: reason}
}

func (s *unavailableSource) Kind() identity.SourceKind {
	return s.kind
}

func (s *unavailableSource) Authenticate(ctx context.Context, creds *identity.Credentials) identity.RawOutcome {
	return identity.RawOutcome{Kind: identity.RawUnavailable, Reason: s.reason}
}

func (s *unavailableSource) Logout(ctx context.Context, returnURL string) error {
	return fmt.Errorf("source unavailable: %s", s.reason)
}

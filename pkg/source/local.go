package source

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/museumhub/centralauth/pkg/identity"
	"github.com/museumhub/centralauth/pkg/observability"
)

// ErrNoCredentials is returned by a CredentialStore when no stored
// credential exists for the username.
var ErrNoCredentials = errors.New("no stored credentials for user")

// CredentialStore is the host's local credential backend. It returns the
// bcrypt hash stored for a username, or ErrNoCredentials.
type CredentialStore interface {
	PasswordHash(ctx context.Context, username string) (string, error)
}

// LocalSource verifies a submitted username/password against the host's
// own credential store. It is the fallback of last resort when no external
// source decides the attempt.
type LocalSource struct {
	store CredentialStore
	log   *observability.Logger
}

// NewLocal creates a local credential source
func NewLocal(store CredentialStore, log *observability.Logger) *LocalSource {
	return &LocalSource{store: store, log: log}
}

// Kind returns the local source kind
func (s *LocalSource) Kind() identity.SourceKind {
	return identity.SourceLocal
}

// Authenticate compares the submitted password against the stored bcrypt
// hash. An unknown username and a wrong password produce the same outcome
// so the response cannot be used to enumerate accounts.
func (s *LocalSource) Authenticate(ctx context.Context, creds *identity.Credentials) identity.RawOutcome {
	if creds == nil || creds.Username == "" || creds.Password == "" {
		return identity.RawOutcome{Kind: identity.RawNotAuthenticated}
	}

	hash, err := s.store.PasswordHash(ctx, creds.Username)
	if errors.Is(err, ErrNoCredentials) {
		s.log.WithField("username", creds.Username).Info("no stored credentials for user")
		return identity.RawOutcome{Kind: identity.RawNotAuthenticated}
	}
	if err != nil {
		s.log.WithError(err).Warn("credential store lookup failed")
		return identity.RawOutcome{Kind: identity.RawUnavailable, Reason: "credential store unavailable"}
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(creds.Password)); err != nil {
		return identity.RawOutcome{Kind: identity.RawNotAuthenticated}
	}

	return identity.RawOutcome{Kind: identity.RawAuthenticated, Username: creds.Username}
}

// Logout is a no-op: local sessions are owned by the host
func (s *LocalSource) Logout(ctx context.Context, returnURL string) error {
	return nil
}

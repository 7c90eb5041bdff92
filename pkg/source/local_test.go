package source

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/museumhub/centralauth/pkg/identity"
)

// fakeCredentialStore maps usernames to bcrypt hashes
type fakeCredentialStore struct {
	hashes map[string]string
	err    error
	calls  int
}

func (s *fakeCredentialStore) PasswordHash(ctx context.Context, username string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	hash, ok := s.hashes[username]
	if !ok {
		return "", ErrNoCredentials
	}
	return hash, nil
}

func newLocalFixture(t *testing.T) (*LocalSource, *fakeCredentialStore) {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)

	store := &fakeCredentialStore{hashes: map[string]string{"alice": string(hash)}}
	return NewLocal(store, testLogger()), store
}

func TestLocal_Authenticate_Success(t *testing.T) {
	src, _ := newLocalFixture(t)

	out := src.Authenticate(context.Background(), creds("alice", "hunter2"))
	assert.Equal(t, identity.RawAuthenticated, out.Kind)
	assert.Equal(t, "alice", out.Username)
}

func TestLocal_Authenticate_WrongPassword(t *testing.T) {
	src, _ := newLocalFixture(t)

	out := src.Authenticate(context.Background(), creds("alice", "wrong"))
	assert.Equal(t, identity.RawNotAuthenticated, out.Kind)
}

func TestLocal_Authenticate_UnknownUser(t *testing.T) {
	src, _ := newLocalFixture(t)

	// Same outcome kind as a wrong password.
	out := src.Authenticate(context.Background(), creds("mallory", "hunter2"))
	assert.Equal(t, identity.RawNotAuthenticated, out.Kind)
}

func TestLocal_Authenticate_MissingCredentials(t *testing.T) {
	src, store := newLocalFixture(t)

	assert.Equal(t, identity.RawNotAuthenticated, src.Authenticate(context.Background(), nil).Kind)
	assert.Equal(t, identity.RawNotAuthenticated, src.Authenticate(context.Background(), creds("", "pw")).Kind)
	assert.Zero(t, store.calls)
}

func TestLocal_Authenticate_StoreError(t *testing.T) {
	store := &fakeCredentialStore{err: errors.New("connection reset")}
	src := NewLocal(store, testLogger())

	out := src.Authenticate(context.Background(), creds("alice", "hunter2"))
	assert.Equal(t, identity.RawUnavailable, out.Kind)
}

func TestLocal_Logout_NoOp(t *testing.T) {
	src, _ := newLocalFixture(t)
	assert.NoError(t, src.Logout(context.Background(), ""))
}

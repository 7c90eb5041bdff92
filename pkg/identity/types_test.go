package identity

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewKey_Username(t *testing.T) {
	key := NewKey("alice", MatchByUsername, "example.com")
	assert.Equal(t, "alice", key.Value)
	assert.Equal(t, MatchByUsername, key.By)
}

func TestNewKey_Email(t *testing.T) {
	key := NewKey("alice", MatchByEmail, "example.com")
	assert.Equal(t, "alice@example.com", key.Value)
	assert.Equal(t, MatchByEmail, key.By)
}

func TestNewKey_PreservesCase(t *testing.T) {
	// No normalization: the backing store's case policy governs.
	key := NewKey("ALice", MatchByEmail, "Example.COM")
	assert.Equal(t, "ALice@Example.COM", key.Value)
}

func TestCredentials_StringRedactsPassword(t *testing.T) {
	creds := Credentials{Username: "alice", Password: "hunter2"}
	rendered := fmt.Sprintf("%v", creds)
	assert.Contains(t, rendered, "alice")
	assert.NotContains(t, rendered, "hunter2")
}

func TestSourceKind_IsSSO(t *testing.T) {
	assert.True(t, SourceCAS.IsSSO())
	assert.True(t, SourceSAML.IsSSO())
	assert.True(t, SourceOIDC.IsSSO())
	assert.False(t, SourceDirectory.IsSSO())
	assert.False(t, SourceLocal.IsSSO())
}

func TestOutcomeConstructors(t *testing.T) {
	tests := []struct {
		name    string
		outcome Outcome
		kind    OutcomeKind
	}{
		{"success", Success(42, "alice"), OutcomeSuccess},
		{"not found", NotFound("alice@example.com", DetailAccountUnknown), OutcomeIdentityNotFound},
		{"unavailable", Unavailable("upstream unreachable"), OutcomeUnavailable},
		{"ambiguous", Ambiguous(""), OutcomeAmbiguous},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.outcome.Kind)
		})
	}

	ok := Success(42, "alice")
	assert.EqualValues(t, 42, ok.AccountID)
	assert.Equal(t, "alice", ok.LookupKey)
	assert.Empty(t, ok.Reason)

	missing := NotFound("alice@example.com", DetailAccountUnknown)
	assert.Zero(t, missing.AccountID)
	assert.Equal(t, "alice@example.com", missing.LookupKey)
	assert.Equal(t, DetailAccountUnknown, missing.Detail)
	assert.Empty(t, missing.Reason)

	down := Unavailable("timeout")
	assert.Zero(t, down.AccountID)
	assert.Empty(t, down.LookupKey)
	assert.Equal(t, "timeout", down.Reason)
}

func TestKindStrings(t *testing.T) {
	assert.Equal(t, "authenticated", RawAuthenticated.String())
	assert.Equal(t, "not_authenticated", RawNotAuthenticated.String())
	assert.Equal(t, "unavailable", RawUnavailable.String())

	assert.Equal(t, "success", OutcomeSuccess.String())
	assert.Equal(t, "identity_not_found", OutcomeIdentityNotFound.String())
	assert.Equal(t, "unavailable", OutcomeUnavailable.String())
	assert.Equal(t, "ambiguous", OutcomeAmbiguous.String())
}

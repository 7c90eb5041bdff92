package config

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/museumhub/centralauth/pkg/identity"
	"github.com/museumhub/centralauth/pkg/observability"
)

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		input    string
		expected Mode
	}{
		{"disabled", ModeDisabled},
		{"optional", ModeOptional},
		{"required", ModeRequired},
		{"gateway", ModeGateway},
		{"REQUIRED", ModeRequired},
		{"", ModeDisabled},
		{"bogus", ModeDisabled},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseMode(tt.input))
		})
	}
}

func TestModeEnabled(t *testing.T) {
	assert.False(t, ModeDisabled.Enabled())
	assert.True(t, ModeOptional.Enabled())
	assert.True(t, ModeRequired.Enabled())
	assert.True(t, ModeGateway.Enabled())
}

func TestParseOptions(t *testing.T) {
	opts := parseOptions("hostname=sso.museum.example, port=8443 ,uri=cas")
	assert.Equal(t, "sso.museum.example", opts["hostname"])
	assert.Equal(t, "8443", opts["port"])
	assert.Equal(t, "cas", opts["uri"])

	assert.Empty(t, parseOptions(""))
	assert.Empty(t, parseOptions("no-equals-sign"))
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.HealthPort)
	assert.Equal(t, ModeDisabled, cfg.Auth.SSOMode)
	assert.Equal(t, ModeDisabled, cfg.Auth.DirectoryMode)
	assert.Equal(t, identity.MatchByUsername, cfg.Auth.MatchBy)
	assert.Equal(t, 10*time.Second, cfg.Auth.UpstreamTimeout)
	assert.Equal(t, 12*time.Hour, cfg.Storage.SessionTTL)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("CENTRALAUTH_PORT", "8888")
	t.Setenv("CENTRALAUTH_SSO_MODE", "required")
	t.Setenv("CENTRALAUTH_SSO_KIND", "oidc")
	t.Setenv("CENTRALAUTH_SSO_OPTIONS", "issuer-url=https://idp.museum.example,client-id=museum")
	t.Setenv("CENTRALAUTH_DIRECTORY_MODE", "optional")
	t.Setenv("CENTRALAUTH_MATCH_BY", "email")
	t.Setenv("CENTRALAUTH_EMAIL_DOMAIN", "museum.example")
	t.Setenv("CENTRALAUTH_UPSTREAM_TIMEOUT", "3s")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8888", cfg.Server.Port)
	assert.Equal(t, ModeRequired, cfg.Auth.SSOMode)
	assert.Equal(t, identity.SourceOIDC, cfg.Auth.SSOKind)
	assert.Equal(t, "https://idp.museum.example", cfg.Auth.SSOOptions["issuer-url"])
	assert.Equal(t, ModeOptional, cfg.Auth.DirectoryMode)
	assert.Equal(t, identity.MatchByEmail, cfg.Auth.MatchBy)
	assert.Equal(t, "museum.example", cfg.Auth.EmailDomain)
	assert.Equal(t, 3*time.Second, cfg.Auth.UpstreamTimeout)
}

func TestValidate(t *testing.T) {
	valid := func() AuthConfig {
		return AuthConfig{
			SSOMode:         ModeOptional,
			SSOKind:         identity.SourceCAS,
			DirectoryMode:   ModeDisabled,
			MatchBy:         identity.MatchByUsername,
			UpstreamTimeout: 10 * time.Second,
		}
	}

	t.Run("valid", func(t *testing.T) {
		cfg := valid()
		assert.NoError(t, cfg.Validate())
	})

	t.Run("gateway directory rejected", func(t *testing.T) {
		cfg := valid()
		cfg.DirectoryMode = ModeGateway
		assert.Error(t, cfg.Validate())
	})

	t.Run("non-sso kind for sso tier rejected", func(t *testing.T) {
		cfg := valid()
		cfg.SSOKind = identity.SourceLocal
		assert.Error(t, cfg.Validate())
	})

	t.Run("email match needs a domain", func(t *testing.T) {
		cfg := valid()
		cfg.MatchBy = identity.MatchByEmail
		assert.Error(t, cfg.Validate())

		cfg.EmailDomain = "museum.example"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("zero timeout rejected", func(t *testing.T) {
		cfg := valid()
		cfg.UpstreamTimeout = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("port clash rejected", func(t *testing.T) {
		cfg := Config{
			Server: ServerConfig{Port: "8080", HealthPort: "8080"},
			Auth:   valid(),
		}
		assert.Error(t, cfg.Validate())
	})
}

func TestCloneIsolatesOptions(t *testing.T) {
	cfg := AuthConfig{
		SSOOptions:       map[string]string{"hostname": "sso.museum.example"},
		DirectoryOptions: map[string]string{"host": "ldap.museum.example"},
	}

	clone := cfg.Clone()
	clone.SSOOptions["hostname"] = "changed"
	clone.DirectoryOptions["host"] = "changed"

	assert.Equal(t, "sso.museum.example", cfg.SSOOptions["hostname"])
	assert.Equal(t, "ldap.museum.example", cfg.DirectoryOptions["host"])
}

func TestStaticProvider(t *testing.T) {
	provider := NewStatic(AuthConfig{
		SSOMode:    ModeOptional,
		SSOOptions: map[string]string{"hostname": "sso.museum.example"},
	})

	snap := provider.Snapshot()
	snap.SSOOptions["hostname"] = "changed"

	assert.Equal(t, "sso.museum.example", provider.Snapshot().SSOOptions["hostname"])
}

const validAuthYAML = `
sso:
  mode: optional
  kind: cas
  options:
    hostname: sso.museum.example
    uri: cas
directory:
  mode: disabled
match_by: username
upstream_timeout: 5s
`

func TestFileProviderLoads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validAuthYAML), 0644))

	provider, err := NewFileProvider(path, testLogger())
	require.NoError(t, err)
	defer provider.Close()

	cfg := provider.Snapshot()
	assert.Equal(t, ModeOptional, cfg.SSOMode)
	assert.Equal(t, identity.SourceCAS, cfg.SSOKind)
	assert.Equal(t, "sso.museum.example", cfg.SSOOptions["hostname"])
	assert.Equal(t, 5*time.Second, cfg.UpstreamTimeout)
}

func TestFileProviderReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validAuthYAML), 0644))

	provider, err := NewFileProvider(path, testLogger())
	require.NoError(t, err)
	defer provider.Close()

	updated := `
sso:
  mode: required
  kind: cas
  options:
    hostname: sso.museum.example
directory:
  mode: disabled
match_by: username
`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0644))

	require.Eventually(t, func() bool {
		return provider.Snapshot().SSOMode == ModeRequired
	}, 5*time.Second, 25*time.Millisecond)
}

func TestFileProviderKeepsOldConfigOnBadReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validAuthYAML), 0644))

	provider, err := NewFileProvider(path, testLogger())
	require.NoError(t, err)
	defer provider.Close()

	require.NoError(t, os.WriteFile(path, []byte("sso: [not a mapping"), 0644))

	// The watcher has no completion signal for a rejected reload, so
	// give it a moment and confirm the snapshot is unchanged.
	time.Sleep(500 * time.Millisecond)
	assert.Equal(t, ModeOptional, provider.Snapshot().SSOMode)
}

func TestFileProviderMissingFile(t *testing.T) {
	_, err := NewFileProvider(filepath.Join(t.TempDir(), "absent.yaml"), testLogger())
	assert.Error(t, err)
}

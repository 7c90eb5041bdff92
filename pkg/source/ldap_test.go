package source

import (
	"context"
	"errors"
	"testing"

	"github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/museumhub/centralauth/pkg/identity"
)

// fakeLDAPConn scripts bind and search behavior for tests
type fakeLDAPConn struct {
	bindErr    map[string]error // keyed by DN; missing key means success
	searchDNs  []string
	searchErr  error
	bindCalls  []string
	lastFilter string
	closed     bool
}

func (c *fakeLDAPConn) Bind(username, password string) error {
	c.bindCalls = append(c.bindCalls, username)
	if err, ok := c.bindErr[username]; ok {
		return err
	}
	return nil
}

func (c *fakeLDAPConn) Search(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	c.lastFilter = req.Filter
	if c.searchErr != nil {
		return nil, c.searchErr
	}
	res := &ldap.SearchResult{}
	for _, dn := range c.searchDNs {
		res.Entries = append(res.Entries, &ldap.Entry{DN: dn})
	}
	return res, nil
}

func (c *fakeLDAPConn) Close() error {
	c.closed = true
	return nil
}

func newTestDirectory(t *testing.T, opts Options, conn *fakeLDAPConn, dialErr error) *DirectorySource {
	t.Helper()

	if opts == nil {
		opts = Options{
			dirOptHost:   "ldap.example.com",
			dirOptBaseDN: "ou=people,dc=example,dc=com",
		}
	}
	src, err := NewDirectory(opts, testLogger())
	require.NoError(t, err)
	src.dial = func(ctx context.Context) (ldapConn, error) {
		if dialErr != nil {
			return nil, dialErr
		}
		return conn, nil
	}
	return src
}

func creds(username, password string) *identity.Credentials {
	return &identity.Credentials{Username: username, Password: password}
}

func TestNewDirectory_RequiresHost(t *testing.T) {
	_, err := NewDirectory(Options{dirOptBaseDN: "dc=example,dc=com"}, testLogger())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "host")
}

func TestNewDirectory_RequiresBaseDNOrTemplate(t *testing.T) {
	_, err := NewDirectory(Options{dirOptHost: "ldap.example.com"}, testLogger())
	assert.Error(t, err)

	_, err = NewDirectory(Options{
		dirOptHost:         "ldap.example.com",
		dirOptBindDNFormat: "uid=%s,ou=people,dc=example,dc=com",
	}, testLogger())
	assert.NoError(t, err)
}

func TestDirectory_Authenticate_NoCredentials(t *testing.T) {
	src := newTestDirectory(t, nil, &fakeLDAPConn{}, nil)

	assert.Equal(t, identity.RawNotAuthenticated, src.Authenticate(context.Background(), nil).Kind)
	assert.Equal(t, identity.RawNotAuthenticated, src.Authenticate(context.Background(), creds("alice", "")).Kind)
}

func TestDirectory_Authenticate_SearchThenBind(t *testing.T) {
	conn := &fakeLDAPConn{
		searchDNs: []string{"uid=alice,ou=people,dc=example,dc=com"},
	}
	src := newTestDirectory(t, Options{
		dirOptHost:         "ldap.example.com",
		dirOptBaseDN:       "ou=people,dc=example,dc=com",
		dirOptBindUsername: "cn=svc,dc=example,dc=com",
		dirOptBindPassword: "svc-secret",
	}, conn, nil)

	out := src.Authenticate(context.Background(), creds("alice", "secret"))

	assert.Equal(t, identity.RawAuthenticated, out.Kind)
	assert.Equal(t, "alice", out.Username)
	assert.Equal(t, "(uid=alice)", conn.lastFilter)
	// Service bind first, then the user's own bind.
	require.Len(t, conn.bindCalls, 2)
	assert.Equal(t, "cn=svc,dc=example,dc=com", conn.bindCalls[0])
	assert.Equal(t, "uid=alice,ou=people,dc=example,dc=com", conn.bindCalls[1])
	assert.True(t, conn.closed)
}

func TestDirectory_Authenticate_DNTemplate(t *testing.T) {
	conn := &fakeLDAPConn{}
	src := newTestDirectory(t, Options{
		dirOptHost:         "ldap.example.com",
		dirOptBindDNFormat: "uid=%s,ou=people,dc=example,dc=com",
	}, conn, nil)

	out := src.Authenticate(context.Background(), creds("bob", "secret"))

	assert.Equal(t, identity.RawAuthenticated, out.Kind)
	require.Len(t, conn.bindCalls, 1)
	assert.Equal(t, "uid=bob,ou=people,dc=example,dc=com", conn.bindCalls[0])
}

func TestDirectory_Authenticate_DNTemplateEscapesUsername(t *testing.T) {
	conn := &fakeLDAPConn{}
	src := newTestDirectory(t, Options{
		dirOptHost:         "ldap.example.com",
		dirOptBindDNFormat: "uid=%s,ou=people,dc=example,dc=com",
	}, conn, nil)

	src.Authenticate(context.Background(), creds("bob,ou=admins", "secret"))

	require.Len(t, conn.bindCalls, 1)
	assert.Equal(t, `uid=bob\,ou=admins,ou=people,dc=example,dc=com`, conn.bindCalls[0])
}

func TestDirectory_Authenticate_InvalidCredentials(t *testing.T) {
	userDN := "uid=alice,ou=people,dc=example,dc=com"
	conn := &fakeLDAPConn{
		searchDNs: []string{userDN},
		bindErr: map[string]error{
			userDN: ldap.NewError(ldap.LDAPResultInvalidCredentials, errors.New("invalid credentials")),
		},
	}
	src := newTestDirectory(t, nil, conn, nil)

	out := src.Authenticate(context.Background(), creds("alice", "wrong"))
	assert.Equal(t, identity.RawNotAuthenticated, out.Kind)
}

func TestDirectory_Authenticate_UnknownUser(t *testing.T) {
	src := newTestDirectory(t, nil, &fakeLDAPConn{searchDNs: nil}, nil)

	out := src.Authenticate(context.Background(), creds("nobody", "secret"))
	assert.Equal(t, identity.RawNotAuthenticated, out.Kind)
}

func TestDirectory_Authenticate_DialFailure(t *testing.T) {
	src := newTestDirectory(t, nil, nil, errors.New("connection refused"))

	out := src.Authenticate(context.Background(), creds("alice", "secret"))
	assert.Equal(t, identity.RawUnavailable, out.Kind)
	assert.Contains(t, out.Reason, "unreachable")
}

func TestDirectory_Authenticate_SearchFailure(t *testing.T) {
	src := newTestDirectory(t, nil, &fakeLDAPConn{searchErr: errors.New("server busy")}, nil)

	out := src.Authenticate(context.Background(), creds("alice", "secret"))
	assert.Equal(t, identity.RawUnavailable, out.Kind)
}

func TestDirectory_Authenticate_AmbiguousMatch(t *testing.T) {
	conn := &fakeLDAPConn{
		searchDNs: []string{
			"uid=alice,ou=people,dc=example,dc=com",
			"uid=alice,ou=others,dc=example,dc=com",
		},
	}
	src := newTestDirectory(t, nil, conn, nil)

	out := src.Authenticate(context.Background(), creds("alice", "secret"))
	assert.Equal(t, identity.RawUnavailable, out.Kind)
}

func TestDirectory_Authenticate_FilterEscapesUsername(t *testing.T) {
	conn := &fakeLDAPConn{searchDNs: []string{"uid=x,dc=example,dc=com"}}
	src := newTestDirectory(t, nil, conn, nil)

	src.Authenticate(context.Background(), creds("al*ce)(uid=*", "secret"))
	assert.NotContains(t, conn.lastFilter, "al*ce)(uid=*")
}

func TestDirectory_Logout_NoOp(t *testing.T) {
	src := newTestDirectory(t, nil, &fakeLDAPConn{}, nil)
	assert.NoError(t, src.Logout(context.Background(), "https://app.example.com/"))
}

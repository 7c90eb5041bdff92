package source

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/go-ldap/ldap/v3"

	"github.com/museumhub/centralauth/pkg/identity"
	"github.com/museumhub/centralauth/pkg/observability"
)

// Directory option keys. The bag mirrors the host's flat per-adapter
// option mapping; values are strings throughout.
const (
	dirOptHost          = "host"
	dirOptPort          = "port"
	dirOptUseSSL        = "use-ssl"
	dirOptUseStartTLS   = "use-start-tls"
	dirOptBaseDN        = "base-dn"
	dirOptBindDNFormat  = "bind-dn-format"
	dirOptBindUsername  = "bind-username"
	dirOptBindPassword  = "bind-password"
	dirOptAccountFilter = "account-filter-format"
)

// ldapConn is the subset of *ldap.Conn the directory source uses, split out
// so tests can substitute a fake server connection.
type ldapConn interface {
	Bind(username, password string) error
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	Close() error
}

type ldapDialFunc func(ctx context.Context) (ldapConn, error)

// DirectorySource authenticates a submitted username/password against an
// LDAP directory, either by binding a templated DN directly or by
// search-then-bind with a service account.
type DirectorySource struct {
	baseDN        string
	bindDNFormat  string
	bindUsername  string
	bindPassword  string
	accountFilter string
	dial          ldapDialFunc
	log           *observability.Logger
}

// NewDirectory creates a directory source from its option bag
func NewDirectory(opts Options, log *observability.Logger) (*DirectorySource, error) {
	if err := opts.Require(dirOptHost); err != nil {
		return nil, fmt.Errorf("directory: %w", err)
	}
	if opts.Get(dirOptBindDNFormat) == "" && opts.Get(dirOptBaseDN) == "" {
		return nil, fmt.Errorf("directory: option %q or %q is required", dirOptBindDNFormat, dirOptBaseDN)
	}

	host := opts.Get(dirOptHost)
	useSSL := opts.Bool(dirOptUseSSL)
	useStartTLS := opts.Bool(dirOptUseStartTLS)

	scheme, defaultPort := "ldap", "389"
	if useSSL {
		scheme, defaultPort = "ldaps", "636"
	}
	addr := fmt.Sprintf("%s://%s:%s", scheme, host, opts.GetDefault(dirOptPort, defaultPort))

	dial := func(ctx context.Context) (ldapConn, error) {
		conn, err := ldap.DialURL(addr, ldap.DialWithDialer(&net.Dialer{Timeout: 10 * time.Second}))
		if err != nil {
			return nil, err
		}
		if deadline, ok := ctx.Deadline(); ok {
			conn.SetTimeout(time.Until(deadline))
		}
		if useStartTLS {
			if err := conn.StartTLS(&tls.Config{ServerName: host}); err != nil {
				conn.Close()
				return nil, err
			}
		}
		return conn, nil
	}

	return &DirectorySource{
		baseDN:        opts.Get(dirOptBaseDN),
		bindDNFormat:  opts.Get(dirOptBindDNFormat),
		bindUsername:  opts.Get(dirOptBindUsername),
		bindPassword:  opts.Get(dirOptBindPassword),
		accountFilter: opts.GetDefault(dirOptAccountFilter, "(uid=%s)"),
		dial:          dial,
		log:           log,
	}, nil
}

// Kind returns the directory source kind
func (s *DirectorySource) Kind() identity.SourceKind {
	return identity.SourceDirectory
}

// Authenticate binds the submitted credentials against the directory.
// Credentials are required; an attempt without them is a rejection, not an
// outage.
func (s *DirectorySource) Authenticate(ctx context.Context, creds *identity.Credentials) identity.RawOutcome {
	if creds == nil || creds.Username == "" || creds.Password == "" {
		return identity.RawOutcome{Kind: identity.RawNotAuthenticated}
	}

	conn, err := s.dial(ctx)
	if err != nil {
		s.log.WithError(err).Warn("directory connection failed")
		return identity.RawOutcome{Kind: identity.RawUnavailable, Reason: "directory unreachable"}
	}
	defer conn.Close()

	userDN, err := s.resolveDN(conn, creds.Username)
	if err != nil {
		s.log.WithError(err).WithField("username", creds.Username).Warn("directory account lookup failed")
		return identity.RawOutcome{Kind: identity.RawUnavailable, Reason: "directory lookup failed"}
	}
	if userDN == "" {
		return identity.RawOutcome{Kind: identity.RawNotAuthenticated}
	}

	if err := conn.Bind(userDN, creds.Password); err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultInvalidCredentials) {
			return identity.RawOutcome{Kind: identity.RawNotAuthenticated}
		}
		s.log.WithError(err).Warn("directory bind failed")
		return identity.RawOutcome{Kind: identity.RawUnavailable, Reason: "directory bind failed"}
	}

	return identity.RawOutcome{Kind: identity.RawAuthenticated, Username: creds.Username}
}

// resolveDN finds the distinguished name to bind as. With a DN template the
// name is derived directly; otherwise the directory is searched with the
// service account, returning empty when no entry matches.
func (s *DirectorySource) resolveDN(conn ldapConn, username string) (string, error) {
	if s.bindDNFormat != "" {
		return fmt.Sprintf(s.bindDNFormat, ldap.EscapeDN(username)), nil
	}

	if s.bindUsername != "" {
		if err := conn.Bind(s.bindUsername, s.bindPassword); err != nil {
			return "", fmt.Errorf("service bind: %w", err)
		}
	}

	filter := fmt.Sprintf(s.accountFilter, ldap.EscapeFilter(username))
	req := ldap.NewSearchRequest(
		s.baseDN,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 2, 0, false,
		filter,
		[]string{"dn"},
		nil,
	)

	res, err := conn.Search(req)
	if err != nil {
		return "", fmt.Errorf("search: %w", err)
	}
	if len(res.Entries) == 0 {
		return "", nil
	}
	if len(res.Entries) > 1 {
		return "", fmt.Errorf("filter %q matched %d entries", filter, len(res.Entries))
	}
	return res.Entries[0].DN, nil
}

// Logout is a no-op: directory binds are per-request and hold no session
func (s *DirectorySource) Logout(ctx context.Context, returnURL string) error {
	return nil
}

package identity

// SourceKind identifies which upstream system produced an identity
type SourceKind string

const (
	SourceCAS       SourceKind = "sso-cas"
	SourceSAML      SourceKind = "sso-saml"
	SourceOIDC      SourceKind = "sso-oidc"
	SourceDirectory SourceKind = "directory"
	SourceLocal     SourceKind = "local"
)

// IsSSO reports whether the source is a redirect-based single sign-on system
func (k SourceKind) IsSSO() bool {
	switch k {
	case SourceCAS, SourceSAML, SourceOIDC:
		return true
	}
	return false
}

// Credentials holds a submitted username and password.
// Present only for form-based logins; SSO probes carry none.
type Credentials struct {
	Username string
	Password string
}

// String implements fmt.Stringer and never includes the password
func (c Credentials) String() string {
	return "credentials{username=" + c.Username + " password=<redacted>}"
}

// ExternalIdentity is the raw identity asserted by an upstream source.
// It exists only for the duration of a single authentication attempt.
type ExternalIdentity struct {
	RawUsername string
	Source      SourceKind
}

// MatchBy selects the strategy used to map an external identity
// to a local account
type MatchBy string

const (
	MatchByUsername MatchBy = "username"
	MatchByEmail    MatchBy = "email"
)

// Key is a derived local-account lookup key
type Key struct {
	Value string
	By    MatchBy
}

// NewKey derives the lookup key for a raw external username. With
// MatchByEmail the username is joined with the configured domain to form
// an email address; otherwise the username is used verbatim. No case
// normalization is applied - the backing store's case policy governs.
func NewKey(rawUsername string, by MatchBy, emailDomain string) Key {
	if by == MatchByEmail {
		return Key{Value: rawUsername + "@" + emailDomain, By: MatchByEmail}
	}
	return Key{Value: rawUsername, By: MatchByUsername}
}

// LocalAccount is a read-only view of a user record owned by the host's
// user store. The broker never creates or mutates accounts.
type LocalAccount struct {
	ID       int64
	Username string
	Email    string
	Active   bool
}

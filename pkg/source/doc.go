// Package source implements the upstream identity systems the broker can
// consult: CAS and SAML 2.0 and OpenID Connect single sign-on, an LDAP
// directory, and the host's local credential store.
//
// Every implementation satisfies the Source capability interface.
// Redirect-based SSO sources additionally implement LoginRedirector and
// are constructed per request with the inbound protocol artifact (service
// ticket, SAMLResponse, or authorization code).
//
// Sources report raw outcomes only; matching the asserted identity to a
// local account is the reconciliation policy's job, and result caching is
// the broker's. A source that cannot be constructed is represented by
// NewUnavailable, so selection and fallback rules still apply.
package source

package source

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"net/http"
	"net/url"
	"time"

	saml2 "github.com/russellhaering/gosaml2"
	dsig "github.com/russellhaering/goxmldsig"

	"github.com/museumhub/centralauth/pkg/identity"
	"github.com/museumhub/centralauth/pkg/observability"
)

// SAML option keys
const (
	samlOptEntityID     = "entity-id"
	samlOptSSOURL       = "sso-url"
	samlOptSLOURL       = "slo-url"
	samlOptCertificate  = "certificate"
	samlOptPrivateKey   = "private-key"
	samlOptSignRequests = "sign-requests"
	samlOptUsernameAttr = "username-attribute"
	samlOptNameIDFormat = "name-id-format"
)

// SAMLSource authenticates via a SAML 2.0 identity provider. It is
// constructed per request with the inbound base64 SAMLResponse (empty when
// the request carries none).
type SAMLSource struct {
	sp           *saml2.SAMLServiceProvider
	sloURL       string
	usernameAttr string
	response     string
	client       *http.Client
	log          *observability.Logger
}

// NewSAML creates a SAML source. baseURL is this service's externally
// visible URL; response is the inbound base64 SAMLResponse, if any.
func NewSAML(opts Options, baseURL, response string, log *observability.Logger) (*SAMLSource, error) {
	if err := opts.Require(samlOptEntityID, samlOptSSOURL, samlOptCertificate); err != nil {
		return nil, fmt.Errorf("saml: %w", err)
	}

	certBlock, _ := pem.Decode([]byte(opts.Get(samlOptCertificate)))
	if certBlock == nil {
		return nil, fmt.Errorf("saml: failed to decode certificate PEM")
	}
	cert, err := x509.ParseCertificate(certBlock.Bytes)
	if err != nil {
		return nil, fmt.Errorf("saml: failed to parse certificate: %w", err)
	}

	certStore := &dsig.MemoryX509CertificateStore{
		Roots: []*x509.Certificate{cert},
	}

	var keyStore dsig.X509KeyStore
	if keyPEM := opts.Get(samlOptPrivateKey); keyPEM != "" {
		keyBlock, _ := pem.Decode([]byte(keyPEM))
		if keyBlock == nil {
			return nil, fmt.Errorf("saml: failed to decode private key PEM")
		}
		privateKey, err := x509.ParsePKCS1PrivateKey(keyBlock.Bytes)
		if err != nil {
			// Try PKCS8 format
			pkcs8Key, err := x509.ParsePKCS8PrivateKey(keyBlock.Bytes)
			if err != nil {
				return nil, fmt.Errorf("saml: failed to parse private key: %w", err)
			}
			var ok bool
			privateKey, ok = pkcs8Key.(*rsa.PrivateKey)
			if !ok {
				return nil, fmt.Errorf("saml: private key is not RSA")
			}
		}
		keyStore = &dsig.TLSCertKeyStore{
			PrivateKey:  privateKey,
			Certificate: [][]byte{[]byte(opts.Get(samlOptCertificate))},
		}
	}

	sp := &saml2.SAMLServiceProvider{
		IdentityProviderSSOURL:      opts.Get(samlOptSSOURL),
		IdentityProviderIssuer:      opts.Get(samlOptEntityID),
		ServiceProviderIssuer:       baseURL + "/sso/metadata",
		AssertionConsumerServiceURL: baseURL + "/auth/sso/callback",
		SignAuthnRequests:           opts.Bool(samlOptSignRequests),
		AudienceURI:                 baseURL,
		IDPCertificateStore:         certStore,
		SPKeyStore:                  keyStore,
	}
	if format := opts.Get(samlOptNameIDFormat); format != "" {
		sp.NameIdFormat = format
	}

	return &SAMLSource{
		sp:           sp,
		sloURL:       opts.Get(samlOptSLOURL),
		usernameAttr: opts.Get(samlOptUsernameAttr),
		response:     response,
		client:       &http.Client{Timeout: 30 * time.Second},
		log:          log,
	}, nil
}

// Kind returns the SAML source kind
func (s *SAMLSource) Kind() identity.SourceKind {
	return identity.SourceSAML
}

// LoginURL builds the AuthnRequest redirect to the identity provider.
// Gateway probes rely on the IdP's existing session: the IdP answers
// without interaction when one exists.
func (s *SAMLSource) LoginURL(returnURL string, gateway bool) (string, error) {
	authURL, err := s.sp.BuildAuthURL(returnURL)
	if err != nil {
		return "", fmt.Errorf("saml: failed to build auth URL: %w", err)
	}
	return authURL, nil
}

// Authenticate validates the inbound SAML assertion. An invalid or
// rejected assertion is a credential-level failure; only configuration
// problems surface as unavailable.
func (s *SAMLSource) Authenticate(ctx context.Context, creds *identity.Credentials) identity.RawOutcome {
	if s.response == "" {
		return identity.RawOutcome{Kind: identity.RawNotAuthenticated}
	}

	assertionInfo, err := s.sp.RetrieveAssertionInfo(s.response)
	if err != nil {
		s.log.WithError(err).Info("SAML assertion rejected")
		return identity.RawOutcome{Kind: identity.RawNotAuthenticated}
	}

	if wi := assertionInfo.WarningInfo; wi != nil && (wi.InvalidTime || wi.NotInAudience) {
		s.log.WithFields(map[string]interface{}{
			"invalid_time":    wi.InvalidTime,
			"not_in_audience": wi.NotInAudience,
		}).Info("SAML assertion rejected by constraint check")
		return identity.RawOutcome{Kind: identity.RawNotAuthenticated}
	}

	username := assertionInfo.NameID
	if s.usernameAttr != "" {
		for _, attr := range assertionInfo.Values {
			if attr.Name == s.usernameAttr && len(attr.Values) > 0 {
				username = attr.Values[0].Value
				break
			}
		}
	}
	if username == "" {
		s.log.Warn("SAML assertion carried no usable identity")
		return identity.RawOutcome{Kind: identity.RawNotAuthenticated}
	}

	return identity.RawOutcome{Kind: identity.RawAuthenticated, Username: username}
}

// Logout sends a LogoutRequest to the IdP's SLO endpoint when one is
// configured.
func (s *SAMLSource) Logout(ctx context.Context, returnURL string) error {
	if s.sloURL == "" {
		return nil
	}

	logoutRequest := fmt.Sprintf(`<?xml version="1.0"?>
<samlp:LogoutRequest xmlns:samlp="urn:oasis:names:tc:SAML:2.0:protocol"
                     xmlns:saml="urn:oasis:names:tc:SAML:2.0:assertion"
                     ID="_%s"
                     Version="2.0"
                     IssueInstant="%s"
                     Destination="%s">
  <saml:Issuer>%s</saml:Issuer>
</samlp:LogoutRequest>`,
		randomSAMLID(),
		time.Now().UTC().Format("2006-01-02T15:04:05Z"),
		s.sloURL,
		s.sp.ServiceProviderIssuer)

	u, err := url.Parse(s.sloURL)
	if err != nil {
		return fmt.Errorf("saml: invalid SLO URL: %w", err)
	}
	q := u.Query()
	q.Set("SAMLRequest", base64.StdEncoding.EncodeToString([]byte(logoutRequest)))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("saml logout: %w", err)
	}
	resp.Body.Close()
	return nil
}

// randomSAMLID generates a random ID for SAML requests
func randomSAMLID() string {
	b := make([]byte, 20)
	rand.Read(b)
	return hex.EncodeToString(b)
}

package source

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/museumhub/centralauth/pkg/identity"
	"github.com/museumhub/centralauth/pkg/observability"
)

// CAS option keys
const (
	casOptHostname = "hostname"
	casOptPort     = "port"
	casOptURI      = "uri"
)

// CASSource authenticates against a CAS v2 server. It is constructed per
// request with the inbound service ticket (empty when the request carries
// none, e.g. the initial visit or a gateway probe that found no session).
type CASSource struct {
	serverURL string
	service   string
	ticket    string
	client    *http.Client
	log       *observability.Logger
}

// NewCAS creates a CAS source. service is the URL the CAS server returns
// the browser to; ticket is the inbound service ticket, if any.
func NewCAS(opts Options, service, ticket string, log *observability.Logger) (*CASSource, error) {
	if err := opts.Require(casOptHostname); err != nil {
		return nil, fmt.Errorf("cas: %w", err)
	}

	host := opts.Get(casOptHostname)
	if port := opts.Get(casOptPort); port != "" {
		host = host + ":" + port
	}
	uri := strings.Trim(opts.GetDefault(casOptURI, "cas"), "/")

	return &CASSource{
		serverURL: "https://" + host + "/" + uri,
		service:   service,
		ticket:    ticket,
		client:    &http.Client{Timeout: 30 * time.Second},
		log:       log,
	}, nil
}

// Kind returns the CAS source kind
func (s *CASSource) Kind() identity.SourceKind {
	return identity.SourceCAS
}

// LoginURL returns the CAS login endpoint for this service. With gateway
// set, CAS checks for an existing single sign-on session and returns
// without a ticket instead of prompting for credentials.
func (s *CASSource) LoginURL(returnURL string, gateway bool) (string, error) {
	u, err := url.Parse(s.serverURL + "/login")
	if err != nil {
		return "", fmt.Errorf("cas: invalid server URL: %w", err)
	}

	q := u.Query()
	q.Set("service", s.service)
	if gateway {
		q.Set("gateway", "true")
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Authenticate validates the inbound service ticket against the CAS
// serviceValidate endpoint. Credentials are ignored; CAS collects them on
// its own login page. An absent ticket means the user has not (yet)
// authenticated with CAS.
func (s *CASSource) Authenticate(ctx context.Context, creds *identity.Credentials) identity.RawOutcome {
	if s.ticket == "" {
		return identity.RawOutcome{Kind: identity.RawNotAuthenticated}
	}

	u, err := url.Parse(s.serverURL + "/serviceValidate")
	if err != nil {
		return identity.RawOutcome{Kind: identity.RawUnavailable, Reason: "invalid server URL"}
	}
	q := u.Query()
	q.Set("service", s.service)
	q.Set("ticket", s.ticket)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return identity.RawOutcome{Kind: identity.RawUnavailable, Reason: err.Error()}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.WithError(err).Warn("CAS ticket validation request failed")
		return identity.RawOutcome{Kind: identity.RawUnavailable, Reason: "cas server unreachable"}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.log.WithField("status", resp.StatusCode).Warn("CAS ticket validation returned non-200")
		return identity.RawOutcome{Kind: identity.RawUnavailable, Reason: fmt.Sprintf("cas server returned status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return identity.RawOutcome{Kind: identity.RawUnavailable, Reason: "failed to read cas response"}
	}

	var sr casServiceResponse
	if err := xml.Unmarshal(body, &sr); err != nil {
		return identity.RawOutcome{Kind: identity.RawUnavailable, Reason: "malformed cas response"}
	}

	if sr.Success != nil && sr.Success.User != "" {
		return identity.RawOutcome{Kind: identity.RawAuthenticated, Username: strings.TrimSpace(sr.Success.User)}
	}

	if sr.Failure != nil {
		// Invalid or expired ticket is a credential-level rejection, not
		// an infrastructure failure.
		s.log.WithFields(map[string]interface{}{
			"code":    sr.Failure.Code,
			"message": strings.TrimSpace(sr.Failure.Message),
		}).Info("CAS rejected service ticket")
		return identity.RawOutcome{Kind: identity.RawNotAuthenticated}
	}

	return identity.RawOutcome{Kind: identity.RawUnavailable, Reason: "cas response carried no result"}
}

// Logout notifies the CAS server so the single sign-on session is
// terminated, passing the URL the user should land on afterwards.
func (s *CASSource) Logout(ctx context.Context, returnURL string) error {
	u, err := url.Parse(s.serverURL + "/logout")
	if err != nil {
		return fmt.Errorf("cas: invalid server URL: %w", err)
	}
	if returnURL != "" {
		q := u.Query()
		q.Set("service", returnURL)
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("cas logout: %w", err)
	}
	resp.Body.Close()
	return nil
}

// casServiceResponse models the CAS v2 serviceValidate XML body.
// Namespace prefixes are ignored so both cas: and unprefixed responses
// parse.
type casServiceResponse struct {
	XMLName xml.Name    `xml:"serviceResponse"`
	Success *casSuccess `xml:"authenticationSuccess"`
	Failure *casFailure `xml:"authenticationFailure"`
}

type casSuccess struct {
	User string `xml:"user"`
}

type casFailure struct {
	Code    string `xml:"code,attr"`
	Message string `xml:",chardata"`
}

package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/museumhub/centralauth/pkg/identity"
	"github.com/museumhub/centralauth/pkg/observability"
)

// OIDC option keys
const (
	oidcOptIssuerURL     = "issuer-url"
	oidcOptClientID      = "client-id"
	oidcOptClientSecret  = "client-secret"
	oidcOptScopes        = "scopes"
	oidcOptUsernameClaim = "username-claim"
)

// OIDCSource authenticates via an OpenID Connect provider. It is
// constructed per request with the inbound authorization code (empty when
// the request carries none). Provider discovery happens at construction.
type OIDCSource struct {
	provider      *oidc.Provider
	verifier      *oidc.IDTokenVerifier
	oauth2Config  *oauth2.Config
	usernameClaim string
	code          string
	client        *http.Client
	log           *observability.Logger
}

// NewOIDC creates an OIDC source. redirectURL is this service's callback
// endpoint; code is the inbound authorization code, if any.
func NewOIDC(ctx context.Context, opts Options, redirectURL, code string, log *observability.Logger) (*OIDCSource, error) {
	if err := opts.Require(oidcOptIssuerURL, oidcOptClientID, oidcOptClientSecret); err != nil {
		return nil, fmt.Errorf("oidc: %w", err)
	}

	provider, err := oidc.NewProvider(ctx, opts.Get(oidcOptIssuerURL))
	if err != nil {
		return nil, fmt.Errorf("oidc: failed to discover provider: %w", err)
	}

	scopes := []string{oidc.ScopeOpenID, "profile", "email"}
	if raw := opts.Get(oidcOptScopes); raw != "" {
		scopes = strings.Split(raw, ",")
		for i := range scopes {
			scopes[i] = strings.TrimSpace(scopes[i])
		}
	}

	verifier := provider.Verifier(&oidc.Config{ClientID: opts.Get(oidcOptClientID)})

	oauth2Config := &oauth2.Config{
		ClientID:     opts.Get(oidcOptClientID),
		ClientSecret: opts.Get(oidcOptClientSecret),
		Endpoint:     provider.Endpoint(),
		RedirectURL:  redirectURL,
		Scopes:       scopes,
	}

	return &OIDCSource{
		provider:      provider,
		verifier:      verifier,
		oauth2Config:  oauth2Config,
		usernameClaim: opts.GetDefault(oidcOptUsernameClaim, "preferred_username"),
		code:          code,
		client:        &http.Client{Timeout: 30 * time.Second},
		log:           log,
	}, nil
}

// Kind returns the OIDC source kind
func (s *OIDCSource) Kind() identity.SourceKind {
	return identity.SourceOIDC
}

// LoginURL returns the authorization endpoint redirect. Gateway probes use
// prompt=none: the provider answers immediately with either a code (when a
// session exists) or an error redirect, never an interactive prompt.
func (s *OIDCSource) LoginURL(returnURL string, gateway bool) (string, error) {
	extras := []oauth2.AuthCodeOption{}
	if gateway {
		extras = append(extras, oauth2.SetAuthURLParam("prompt", "none"))
	}
	return s.oauth2Config.AuthCodeURL(returnURL, extras...), nil
}

// Authenticate exchanges the inbound authorization code and verifies the
// ID token. Token-exchange transport failures are infrastructure outages;
// a rejected or unverifiable token is a credential-level failure.
func (s *OIDCSource) Authenticate(ctx context.Context, creds *identity.Credentials) identity.RawOutcome {
	if s.code == "" {
		return identity.RawOutcome{Kind: identity.RawNotAuthenticated}
	}

	token, err := s.oauth2Config.Exchange(ctx, s.code)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			// The provider answered and refused the code.
			s.log.WithError(err).Info("OIDC provider rejected authorization code")
			return identity.RawOutcome{Kind: identity.RawNotAuthenticated}
		}
		s.log.WithError(err).Warn("OIDC token exchange failed")
		return identity.RawOutcome{Kind: identity.RawUnavailable, Reason: "oidc provider unreachable"}
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		s.log.Warn("OIDC token response carried no id_token")
		return identity.RawOutcome{Kind: identity.RawNotAuthenticated}
	}

	idToken, err := s.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		s.log.WithError(err).Info("OIDC ID token verification failed")
		return identity.RawOutcome{Kind: identity.RawNotAuthenticated}
	}

	var claims map[string]interface{}
	if err := idToken.Claims(&claims); err != nil {
		s.log.WithError(err).Warn("OIDC claims parse failed")
		return identity.RawOutcome{Kind: identity.RawNotAuthenticated}
	}

	username, _ := claims[s.usernameClaim].(string)
	if username == "" {
		// Subject is always present on a verified token.
		username = idToken.Subject
	}

	return identity.RawOutcome{Kind: identity.RawAuthenticated, Username: username}
}

// Logout performs RP-initiated logout when the provider advertises an
// end_session_endpoint.
func (s *OIDCSource) Logout(ctx context.Context, returnURL string) error {
	var discovery struct {
		EndSessionEndpoint string `json:"end_session_endpoint"`
	}
	if err := s.provider.Claims(&discovery); err != nil || discovery.EndSessionEndpoint == "" {
		return nil
	}

	u, err := url.Parse(discovery.EndSessionEndpoint)
	if err != nil {
		return fmt.Errorf("oidc: invalid end_session_endpoint: %w", err)
	}
	if returnURL != "" {
		q := u.Query()
		q.Set("post_logout_redirect_uri", returnURL)
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("oidc logout: %w", err)
	}
	resp.Body.Close()
	return nil
}

package api

import (
	"net"
	"net/http"

	"github.com/museumhub/centralauth/pkg/audit"
	"github.com/museumhub/centralauth/pkg/broker"
	"github.com/museumhub/centralauth/pkg/httputil"
	"github.com/museumhub/centralauth/pkg/identity"
	"github.com/museumhub/centralauth/pkg/observability"
	"github.com/museumhub/centralauth/pkg/source"
)

// genericLoginError is the only failure message a caller ever sees
const genericLoginError = "authentication failed"

// handleLoginPage decides how a login attempt should start. When the
// configuration puts an SSO tier first, the browser is redirected to
// the SSO service; otherwise the host is told to render its form.
func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cfg := s.provider.Snapshot()

	choices := broker.Select(cfg, false, false)
	choice := choices[0]

	if !choice.Kind.IsSSO() {
		httputil.WriteSuccess(w, loginResponse{State: "form", LocalFormEnabled: true})
		return
	}

	// A completed gateway probe with no decision must not probe again.
	if choice.Gateway {
		if _, err := r.Cookie(probeCookie); err == nil {
			httputil.WriteSuccess(w, loginResponse{State: "ambiguous", LocalFormEnabled: true})
			return
		}
	}

	sources := s.buildSources(ctx, cfg, "")
	if redirector, ok := sources.SSO.(source.LoginRedirector); ok {
		loginURL, err := redirector.LoginURL(s.callbackURL(), choice.Gateway)
		if err == nil {
			if choice.Gateway {
				http.SetCookie(w, &http.Cookie{
					Name:     probeCookie,
					Value:    "1",
					Path:     "/",
					MaxAge:   probeCookieAge,
					HttpOnly: true,
				})
			}
			http.Redirect(w, r, loginURL, http.StatusFound)
			return
		}
		s.log.WithError(err).Warn("failed to build sso login url")
	}

	// No redirect possible: let the broker classify the unavailable
	// tier, which also applies the required-mode downgrade.
	result := s.newBroker(cfg, sources).Authenticate(ctx, nil, false)
	s.writeResult(w, r, result)
}

// handleLoginSubmit authenticates a posted credential form against the
// directory and local tiers.
func (s *Server) handleLoginSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cfg := s.provider.Snapshot()

	if err := r.ParseForm(); err != nil {
		httputil.WriteValidationError(w, "malformed form body")
		return
	}
	creds := &identity.Credentials{
		Username: r.PostFormValue("username"),
		Password: r.PostFormValue("password"),
	}
	if creds.Username == "" {
		httputil.WriteValidationError(w, "username is required")
		return
	}

	sources := s.buildSources(ctx, cfg, "")
	result := s.newBroker(cfg, sources).Authenticate(ctx, creds, true)
	s.writeResult(w, r, result)
}

// handleSSOCallback finishes a redirect flow: the SSO service sent the
// browser back with a protocol artifact to validate.
func (s *Server) handleSSOCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cfg := s.provider.Snapshot()

	if !cfg.SSOMode.Enabled() {
		httputil.WriteNotFoundError(w, "sso is not enabled")
		return
	}

	artifact := ssoArtifact(r, cfg.SSOKind)
	sources := s.buildSources(ctx, cfg, artifact)
	result := s.newBroker(cfg, sources).Authenticate(ctx, nil, false)

	if result.Outcome.Kind == identity.OutcomeAmbiguous {
		// Remember the empty probe so the login page shows the form.
		http.SetCookie(w, &http.Cookie{
			Name:     probeCookie,
			Value:    "1",
			Path:     "/",
			MaxAge:   probeCookieAge,
			HttpOnly: true,
		})
	}

	if result.State == broker.StateSucceeded {
		if returnTo := r.URL.Query().Get("return"); returnTo != "" {
			if _, err := s.establishSession(w, r, result); err != nil {
				s.log.WithError(err).Error("failed to establish session")
				httputil.WriteErrorMessage(w, http.StatusInternalServerError, "internal error")
				return
			}
			s.recordAuth(r, result)
			http.Redirect(w, r, returnTo, http.StatusFound)
			return
		}
	}

	s.writeResult(w, r, result)
}

// handleLogout notifies every configured external source and clears the
// local session. External failures never block the logout.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cfg := s.provider.Snapshot()

	returnURL := r.URL.Query().Get("return")
	if returnURL == "" {
		returnURL = s.externalURL
	}

	sources := s.buildSources(ctx, cfg, "")
	s.newBroker(cfg, sources).Logout(ctx, returnURL)

	if cookie, err := r.Cookie(sessionCookie); err == nil {
		if err := s.sessions.Clear(ctx, cookie.Value); err != nil {
			s.log.WithError(err).Warn("failed to clear session")
		} else {
			s.metrics.SessionsClearedTotal.Inc()
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})

	s.recordEvent(r, &audit.Event{
		Type:   audit.EventTypeLogout,
		Status: audit.EventStatusSuccess,
	})
	httputil.WriteSuccess(w, map[string]string{"state": "logged_out"})
}

// handleSession reports the caller's current session, if any
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		httputil.WriteErrorMessage(w, http.StatusUnauthorized, "no session")
		return
	}

	sess, err := s.sessions.Get(r.Context(), cookie.Value)
	if err != nil {
		httputil.WriteErrorMessage(w, http.StatusUnauthorized, "no session")
		return
	}

	httputil.WriteSuccess(w, sessionResponse{
		SessionID: sess.ID,
		AccountID: sess.AccountID,
		Source:    sess.Source,
		CreatedAt: sess.CreatedAt,
	})
}

// establishSession stores a session and sets the cookie
func (s *Server) establishSession(w http.ResponseWriter, r *http.Request, result broker.Result) (string, error) {
	sess, err := s.sessions.Establish(r.Context(), result.Outcome.AccountID, string(result.Source))
	if err != nil {
		return "", err
	}
	s.metrics.SessionsEstablishedTotal.Inc()

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
	})
	return sess.ID, nil
}

// recordEvent stamps request metadata onto an audit event and writes
// it best-effort
func (s *Server) recordEvent(r *http.Request, event *audit.Event) {
	event.IPAddress = clientAddr(r)
	event.RequestID = observability.GetRequestID(r.Context())
	if err := s.auditor.Record(r.Context(), event); err != nil {
		s.log.WithError(err).Warn("failed to record audit event")
	}
}

// recordAuth writes the audit trail entry for one login attempt
func (s *Server) recordAuth(r *http.Request, result broker.Result) {
	event := &audit.Event{
		Source:   string(result.Source),
		Outcome:  result.Outcome.Kind.String(),
		Username: result.Outcome.LookupKey,
	}

	switch {
	case result.State == broker.StateSucceeded:
		event.Type = audit.EventTypeLogin
		event.Status = audit.EventStatusSuccess
		id := result.Outcome.AccountID
		event.AccountID = &id
	case result.Outcome.Kind == identity.OutcomeAmbiguous:
		event.Type = audit.EventTypeGatewayProbe
		event.Status = audit.EventStatusSuccess
	case result.State == broker.StateFailedTerminal:
		event.Type = audit.EventTypeLoginFailed
		event.Status = audit.EventStatusDenied
		event.Message = result.Outcome.Reason
	default:
		event.Type = audit.EventTypeLoginFailed
		if result.Outcome.Kind == identity.OutcomeUnavailable && result.Source.IsSSO() {
			event.Type = audit.EventTypeSSOUnreachable
		}
		event.Status = audit.EventStatusFailure
		event.Message = result.Outcome.Reason
	}

	// The trail is the one surface allowed to say whether the account
	// was missing or disabled.
	if result.Outcome.Kind == identity.OutcomeIdentityNotFound {
		event.Message = result.Outcome.Detail
	}

	s.recordEvent(r, event)
}

// writeResult renders a broker result as JSON
func (s *Server) writeResult(w http.ResponseWriter, r *http.Request, result broker.Result) {
	s.recordAuth(r, result)

	switch result.State {
	case broker.StateSucceeded:
		id, err := s.establishSession(w, r, result)
		if err != nil {
			s.log.WithError(err).Error("failed to establish session")
			httputil.WriteErrorMessage(w, http.StatusInternalServerError, "internal error")
			return
		}
		httputil.WriteSuccess(w, loginResponse{State: "succeeded", SessionID: id})

	case broker.StateFailedTerminal:
		httputil.WriteJSON(w, http.StatusForbidden, loginResponse{
			State: "failed_terminal",
			Error: genericLoginError,
		})

	default:
		if result.Outcome.Kind == identity.OutcomeAmbiguous {
			httputil.WriteSuccess(w, loginResponse{State: "ambiguous", LocalFormEnabled: true})
			return
		}
		httputil.WriteJSON(w, http.StatusUnauthorized, loginResponse{
			State:            "failed_recoverable",
			LocalFormEnabled: true,
			Error:            genericLoginError,
		})
	}
}

// clientAddr extracts the client address, preferring X-Forwarded-For
// since the service normally sits behind the host's proxy
func clientAddr(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ssoArtifact extracts the protocol payload the SSO service sent back
func ssoArtifact(r *http.Request, kind identity.SourceKind) string {
	switch kind {
	case identity.SourceSAML:
		return r.FormValue("SAMLResponse")
	case identity.SourceOIDC:
		return r.URL.Query().Get("code")
	default:
		return r.URL.Query().Get("ticket")
	}
}

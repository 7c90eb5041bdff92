package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/museumhub/centralauth/pkg/audit"
	"github.com/museumhub/centralauth/pkg/broker"
	"github.com/museumhub/centralauth/pkg/config"
	"github.com/museumhub/centralauth/pkg/httputil"
	"github.com/museumhub/centralauth/pkg/identity"
	"github.com/museumhub/centralauth/pkg/middleware"
	"github.com/museumhub/centralauth/pkg/observability"
	"github.com/museumhub/centralauth/pkg/reconcile"
	"github.com/museumhub/centralauth/pkg/session"
	"github.com/museumhub/centralauth/pkg/source"
)

const (
	sessionCookie = "centralauth_session"

	// probeCookie marks that a gateway probe already ran for this
	// browser, so a probe with no upstream session does not loop.
	probeCookie    = "centralauth_probe"
	probeCookieAge = 60
)

// Server is the HTTP surface of the broker
type Server struct {
	provider config.Provider
	policy   *reconcile.Policy
	store    source.CredentialStore
	sessions session.Store
	auditor  audit.Recorder
	limiter  *middleware.RateLimiter
	log      *observability.Logger
	metrics  *observability.Metrics
	router   *mux.Router

	// externalURL is the public base for SSO callback and logout
	// return addresses.
	externalURL string

	// buildSources constructs the per-request sources. Swapped in
	// tests to avoid real upstream construction.
	buildSources func(ctx context.Context, cfg config.AuthConfig, artifact string) broker.Sources
}

// NewServer creates the HTTP server
func NewServer(provider config.Provider, policy *reconcile.Policy, store source.CredentialStore, sessions session.Store, auditor audit.Recorder, externalURL string, log *observability.Logger, metrics *observability.Metrics) *Server {
	s := &Server{
		provider:    provider,
		policy:      policy,
		store:       store,
		sessions:    sessions,
		auditor:     auditor,
		limiter:     middleware.NewRateLimiter(middleware.LoginRateLimitConfig()),
		log:         log,
		metrics:     metrics,
		router:      mux.NewRouter(),
		externalURL: externalURL,
	}
	s.buildSources = s.newSources
	s.setupRoutes()
	return s
}

// StartCleanup launches the login rate limiter's idle-bucket eviction.
// It runs until ctx is canceled; without it the limiter's per-client
// state grows with every distinct caller.
func (s *Server) StartCleanup(ctx context.Context) {
	s.limiter.StartCleanup(ctx)
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	s.router.Use(httputil.RecoveryMiddleware(s.log))
	s.router.Use(httputil.MaxBytesMiddleware(1 << 20))
	s.router.Use(s.requestMiddleware)

	s.router.HandleFunc("/auth/login", s.handleLoginPage).Methods("GET")
	s.router.Handle("/auth/login", s.limiter.Middleware(http.HandlerFunc(s.handleLoginSubmit))).Methods("POST")
	s.router.Handle("/auth/sso/callback", s.limiter.Middleware(http.HandlerFunc(s.handleSSOCallback))).Methods("GET", "POST")
	s.router.HandleFunc("/auth/logout", s.handleLogout).Methods("POST")
	s.router.HandleFunc("/auth/session", s.handleSession).Methods("GET")
}

// Router returns the configured router
func (s *Server) Router() *mux.Router {
	return s.router
}

// requestMiddleware attaches a request id and logs each request
func (s *Server) requestMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := observability.WithRequestID(r.Context(), uuid.New().String())
		start := time.Now()

		next.ServeHTTP(w, r.WithContext(ctx))

		s.log.WithFields(map[string]interface{}{
			"method":     r.Method,
			"path":       r.URL.Path,
			"request_id": observability.GetRequestID(ctx),
			"duration":   time.Since(start).String(),
		}).Debug("request handled")
	})
}

// callbackURL is where the SSO service sends the browser back
func (s *Server) callbackURL() string {
	return s.externalURL + "/auth/sso/callback"
}

// newSources constructs the sources for one request. The artifact is
// the protocol payload carried back from the SSO service (CAS ticket,
// SAML response, OIDC code); it is empty on the outbound leg.
func (s *Server) newSources(ctx context.Context, cfg config.AuthConfig, artifact string) broker.Sources {
	sources := broker.Sources{
		Local: source.NewLocal(s.store, s.log),
	}

	if cfg.SSOMode.Enabled() {
		sources.SSO = s.newSSOSource(ctx, cfg, artifact)
	}
	if cfg.DirectoryMode.Enabled() {
		dir, err := source.NewDirectory(source.Options(cfg.DirectoryOptions), s.log)
		if err != nil {
			s.log.WithError(err).Warn("directory source misconfigured")
			sources.Directory = source.NewUnavailable(identity.SourceDirectory, err.Error())
		} else {
			sources.Directory = dir
		}
	}
	return sources
}

func (s *Server) newSSOSource(ctx context.Context, cfg config.AuthConfig, artifact string) source.Source {
	opts := source.Options(cfg.SSOOptions)

	var (
		src source.Source
		err error
	)
	switch cfg.SSOKind {
	case identity.SourceSAML:
		src, err = source.NewSAML(opts, s.externalURL, artifact, s.log)
	case identity.SourceOIDC:
		src, err = source.NewOIDC(ctx, opts, s.callbackURL(), artifact, s.log)
	default:
		src, err = source.NewCAS(opts, s.callbackURL(), artifact, s.log)
	}
	if err != nil {
		s.log.WithError(err).WithField("kind", string(cfg.SSOKind)).Warn("sso source misconfigured")
		return source.NewUnavailable(cfg.SSOKind, err.Error())
	}
	return src
}

// newBroker assembles the request-scoped broker
func (s *Server) newBroker(cfg config.AuthConfig, sources broker.Sources) *broker.Broker {
	return broker.New(cfg, sources, s.policy, s.log, s.metrics)
}

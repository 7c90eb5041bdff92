package broker

import (
	"context"
	"time"

	"github.com/museumhub/centralauth/pkg/config"
	"github.com/museumhub/centralauth/pkg/identity"
	"github.com/museumhub/centralauth/pkg/observability"
	"github.com/museumhub/centralauth/pkg/reconcile"
	"github.com/museumhub/centralauth/pkg/source"
)

// State classifies the end of one login attempt.
type State string

const (
	// StateSucceeded means a local session should be established.
	StateSucceeded State = "succeeded"
	// StateFailedRecoverable means this attempt failed but the host may
	// still offer the local credential form.
	StateFailedRecoverable State = "failed_recoverable"
	// StateFailedTerminal means a required source rejected the attempt;
	// the local form must be suppressed.
	StateFailedTerminal State = "failed_terminal"
)

// Result is what one login attempt produced.
type Result struct {
	State   State
	Outcome identity.Outcome

	// Source is the kind that decided the attempt.
	Source identity.SourceKind

	// SuppressLocalForm tells the host not to render the local
	// credential form.
	SuppressLocalForm bool
}

// Sources holds the constructed sources for one request. Entries may be
// nil when the corresponding tier is disabled.
type Sources struct {
	SSO       source.Source
	Directory source.Source
	Local     source.Source
}

// For returns the source for a kind, or nil if none is configured
func (s Sources) For(kind identity.SourceKind) source.Source {
	switch {
	case kind.IsSSO():
		return s.SSO
	case kind == identity.SourceDirectory:
		return s.Directory
	case kind == identity.SourceLocal:
		return s.Local
	}
	return nil
}

type memoEntry struct {
	outcome identity.Outcome
	raw     identity.RawKind
}

// Broker runs one login attempt: it picks sources, calls them, and
// reconciles what they assert against the local user store.
//
// A Broker is request-scoped and not safe for concurrent use. The memo
// holds each source's outcome for the life of the request so repeated
// reads of the result never recontact an upstream.
type Broker struct {
	cfg     config.AuthConfig
	sources Sources
	policy  *reconcile.Policy
	log     *observability.Logger
	metrics *observability.Metrics

	memo map[identity.SourceKind]memoEntry
}

// New creates a broker for a single request
func New(cfg config.AuthConfig, sources Sources, policy *reconcile.Policy, log *observability.Logger, metrics *observability.Metrics) *Broker {
	return &Broker{
		cfg:     cfg,
		sources: sources,
		policy:  policy,
		log:     log,
		metrics: metrics,
		memo:    make(map[identity.SourceKind]memoEntry),
	}
}

// Authenticate runs the selection and reconciliation for one attempt.
//
// Sources are tried in selector order. The first success wins. A
// rejection on a source that is not required falls through to the next
// choice; a rejection on a required source ends the attempt, except
// that an infrastructural outage on the required source downgrades to
// recoverable so an upstream failure cannot lock every user out.
func (b *Broker) Authenticate(ctx context.Context, creds *identity.Credentials, formSubmitted bool) Result {
	choices := Select(b.cfg, formSubmitted, false)

	var last Result
	for _, choice := range choices {
		start := time.Now()
		outcome, rawKind := b.authenticateSource(ctx, choice, creds)
		b.metrics.LoginAttemptsTotal.WithLabelValues(string(choice.Kind), outcome.Kind.String()).Inc()
		b.metrics.LoginDuration.WithLabelValues(string(choice.Kind)).Observe(time.Since(start).Seconds())

		log := b.log.WithFields(map[string]interface{}{
			"source":  string(choice.Kind),
			"outcome": outcome.Kind.String(),
		})

		switch outcome.Kind {
		case identity.OutcomeSuccess:
			log.WithField("account_id", outcome.AccountID).Info("login succeeded")
			return Result{State: StateSucceeded, Outcome: outcome, Source: choice.Kind}

		case identity.OutcomeAmbiguous:
			// A gateway probe with no upstream session is no opinion.
			log.Debug("gateway probe found no upstream session")
			return Result{State: StateFailedRecoverable, Outcome: outcome, Source: choice.Kind}
		}

		if choice.Required {
			if rawKind == identity.RawUnavailable {
				b.metrics.RequiredDowngrades.WithLabelValues(string(choice.Kind)).Inc()
				log.Warn("required source unavailable, allowing direct login")
				return Result{State: StateFailedRecoverable, Outcome: outcome, Source: choice.Kind}
			}
			log.Info("required source rejected login")
			return Result{State: StateFailedTerminal, Outcome: outcome, Source: choice.Kind, SuppressLocalForm: true}
		}

		log.Debug("source did not authenticate, trying next tier")
		last = Result{State: StateFailedRecoverable, Outcome: outcome, Source: choice.Kind}
	}

	return last
}

// authenticateSource answers one source attempt, from the memo when the
// source was already asked during this request.
func (b *Broker) authenticateSource(ctx context.Context, choice Choice, creds *identity.Credentials) (identity.Outcome, identity.RawKind) {
	if entry, ok := b.memo[choice.Kind]; ok {
		b.metrics.MemoHitsTotal.WithLabelValues(string(choice.Kind)).Inc()
		return entry.outcome, entry.raw
	}

	src := b.sources.For(choice.Kind)
	if src == nil {
		src = source.NewUnavailable(choice.Kind, "source not configured")
	}

	callCtx, cancel := context.WithTimeout(ctx, b.cfg.UpstreamTimeout)
	defer cancel()

	start := time.Now()
	raw := src.Authenticate(callCtx, creds)
	b.metrics.UpstreamCallsTotal.WithLabelValues(string(choice.Kind)).Inc()
	b.metrics.UpstreamCallDuration.WithLabelValues(string(choice.Kind)).Observe(time.Since(start).Seconds())
	if raw.Kind == identity.RawUnavailable {
		b.metrics.UpstreamErrorsTotal.WithLabelValues(string(choice.Kind)).Inc()
		b.log.WithFields(map[string]interface{}{
			"source": string(choice.Kind),
			"reason": raw.Reason,
		}).Warn("upstream source unavailable")
	}

	outcome := b.policy.Reconcile(ctx, raw, choice.Kind, b.cfg.MatchBy, b.cfg.EmailDomain, choice.Gateway)
	b.memo[choice.Kind] = memoEntry{outcome: outcome, raw: raw.Kind}
	return outcome, raw.Kind
}

// Logout notifies every configured external source. A failing source is
// logged and counted, never allowed to stop the fan-out; the caller
// clears the local session regardless.
func (b *Broker) Logout(ctx context.Context, returnURL string) {
	for _, src := range []source.Source{b.sources.SSO, b.sources.Directory} {
		if src == nil {
			continue
		}

		callCtx, cancel := context.WithTimeout(ctx, b.cfg.UpstreamTimeout)
		err := src.Logout(callCtx, returnURL)
		cancel()
		if err != nil {
			b.metrics.LogoutFailuresTotal.WithLabelValues(string(src.Kind())).Inc()
			b.log.WithError(err).WithField("source", string(src.Kind())).Warn("external logout failed")
		}
	}
}

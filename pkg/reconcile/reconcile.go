// Package reconcile turns a raw upstream authentication outcome into a
// normalized result by matching the asserted identity against the local
// user store.
package reconcile

import (
	"context"

	"github.com/museumhub/centralauth/pkg/identity"
	"github.com/museumhub/centralauth/pkg/observability"
	"github.com/museumhub/centralauth/pkg/resolver"
)

// ReasonAuthFailed is the generic user-facing reason for rejected
// attempts. It deliberately does not say which factor failed.
const ReasonAuthFailed = "authentication failed"

// Policy reconciles raw source outcomes with local accounts
type Policy struct {
	resolver resolver.Resolver
	log      *observability.Logger
}

// New creates a reconciliation policy backed by the given resolver
func New(res resolver.Resolver, log *observability.Logger) *Policy {
	return &Policy{resolver: res, log: log}
}

// Reconcile normalizes one raw outcome:
//
//   - Unavailable passes through untouched; no lookup is attempted.
//   - NotAuthenticated during a gateway probe is Ambiguous (the absence of
//     an existing session is no opinion, not a failure).
//   - NotAuthenticated otherwise becomes a generic Unavailable so the
//     response does not leak which factor failed.
//   - Authenticated identities are matched against the local store. Only a
//     found and active account is a success; a missing account and a
//     disabled account produce the same IdentityNotFound outcome so the
//     result cannot be used to enumerate accounts. The distinction is
//     kept to operator surfaces: the log and the outcome's audit detail.
func (p *Policy) Reconcile(ctx context.Context, raw identity.RawOutcome, src identity.SourceKind, matchBy identity.MatchBy, emailDomain string, gateway bool) identity.Outcome {
	switch raw.Kind {
	case identity.RawUnavailable:
		return identity.Unavailable(raw.Reason)

	case identity.RawNotAuthenticated:
		if gateway {
			return identity.Ambiguous("")
		}
		return identity.Unavailable(ReasonAuthFailed)
	}

	key := identity.NewKey(raw.Username, matchBy, emailDomain)
	log := p.log.WithFields(map[string]interface{}{
		"source":     string(src),
		"lookup_key": key.Value,
	})

	account, err := p.resolver.Resolve(ctx, key)
	if err != nil {
		log.WithError(err).Error("local account lookup failed")
		return identity.Unavailable("user store unavailable")
	}

	if account == nil {
		log.Info("no local account matches external identity")
		return identity.NotFound(key.Value, identity.DetailAccountUnknown)
	}
	if !account.Active {
		log.WithField("account_id", account.ID).Warn("local account matching external identity is inactive")
		return identity.NotFound(key.Value, identity.DetailAccountInactive)
	}

	log.WithField("account_id", account.ID).Info("external identity reconciled")
	return identity.Success(account.ID, key.Value)
}

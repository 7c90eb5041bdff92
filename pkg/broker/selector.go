package broker

import (
	"github.com/museumhub/centralauth/pkg/config"
	"github.com/museumhub/centralauth/pkg/identity"
)

// Choice is one source the broker should try, with the policy flags
// that govern how its outcome is treated.
type Choice struct {
	Kind identity.SourceKind

	// Gateway marks a passive probe for an existing upstream session.
	Gateway bool

	// Required suppresses fallback to weaker tiers when this source
	// rejects the attempt.
	Required bool
}

// Select returns the ordered list of sources to try for one login
// attempt. It is a pure function of the configuration snapshot and the
// request shape.
//
// Precedence is SSO, then directory, then local. SSO is a redirect flow
// and is never attempted for a submitted credential form; when it is
// eligible it is returned alone, since its failure handling is a state
// decision rather than an in-request fallback. A directory tier that is
// not required carries the local store behind it so a rejected bind can
// still fall through to local credentials.
//
// Logout requests and bare session probes select nothing: logout fans
// out to every configured source instead of choosing one.
func Select(cfg config.AuthConfig, formSubmitted, logoutOrProbe bool) []Choice {
	if logoutOrProbe {
		return nil
	}

	if cfg.SSOMode.Enabled() && !formSubmitted {
		return []Choice{{
			Kind:     cfg.SSOKind,
			Gateway:  cfg.SSOMode == config.ModeGateway,
			Required: cfg.SSOMode == config.ModeRequired,
		}}
	}

	if cfg.DirectoryMode.Enabled() {
		choices := []Choice{{
			Kind:     identity.SourceDirectory,
			Required: cfg.DirectoryMode == config.ModeRequired,
		}}
		if cfg.DirectoryMode != config.ModeRequired {
			choices = append(choices, Choice{Kind: identity.SourceLocal})
		}
		return choices
	}

	return []Choice{{Kind: identity.SourceLocal}}
}

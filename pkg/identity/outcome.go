package identity

// RawKind classifies the result of a single upstream authentication call,
// before any local-account reconciliation.
type RawKind int

const (
	// RawAuthenticated means the upstream asserted an identity
	RawAuthenticated RawKind = iota
	// RawNotAuthenticated means the upstream rejected the attempt or
	// found no established session
	RawNotAuthenticated
	// RawUnavailable means the upstream could not be consulted at all
	RawUnavailable
)

func (k RawKind) String() string {
	switch k {
	case RawAuthenticated:
		return "authenticated"
	case RawNotAuthenticated:
		return "not_authenticated"
	case RawUnavailable:
		return "unavailable"
	}
	return "unknown"
}

// RawOutcome is the unreconciled result of one IdentitySource call.
// Username is set only for RawAuthenticated; Reason only for RawUnavailable.
type RawOutcome struct {
	Kind     RawKind
	Username string
	Reason   string
}

// OutcomeKind classifies a normalized authentication result
type OutcomeKind int

const (
	// OutcomeSuccess means an active local account matched the identity
	OutcomeSuccess OutcomeKind = iota
	// OutcomeIdentityNotFound means the upstream authenticated the user but
	// no matching active local account exists. Deliberately covers both
	// "no such account" and "account disabled" so the user-facing result
	// cannot be used to enumerate accounts.
	OutcomeIdentityNotFound
	// OutcomeUnavailable means authentication could not be completed
	OutcomeUnavailable
	// OutcomeAmbiguous means a gateway probe found no existing session.
	// Not a failure: the source simply has no opinion.
	OutcomeAmbiguous
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeIdentityNotFound:
		return "identity_not_found"
	case OutcomeUnavailable:
		return "unavailable"
	case OutcomeAmbiguous:
		return "ambiguous"
	}
	return "unknown"
}

// Operator-facing detail for IdentityNotFound outcomes. Written to the
// audit trail only; user-facing responses never carry it.
const (
	DetailAccountUnknown  = "no matching local account"
	DetailAccountInactive = "local account inactive"
)

// Outcome is the normalized result of one authentication attempt against
// one source. The payload is selected by Kind: AccountID and LookupKey
// for success, LookupKey for identity-not-found and ambiguous, Reason
// for unavailable.
type Outcome struct {
	Kind      OutcomeKind
	AccountID int64
	LookupKey string
	Reason    string

	// Detail tells the audit trail whether an IdentityNotFound came
	// from a missing or a disabled account. It is never rendered to
	// the user.
	Detail string
}

// Success builds an outcome for a matched active local account. The
// lookup key is kept so the attempt can be audited under a name.
func Success(accountID int64, lookupKey string) Outcome {
	return Outcome{Kind: OutcomeSuccess, AccountID: accountID, LookupKey: lookupKey}
}

// NotFound builds an outcome for an authenticated identity with no
// matching active local account. Both the missing and the disabled
// account case land here; detail records which, for operators only.
func NotFound(lookupKey, detail string) Outcome {
	return Outcome{Kind: OutcomeIdentityNotFound, LookupKey: lookupKey, Detail: detail}
}

// Unavailable builds an outcome for an upstream that could not decide
func Unavailable(reason string) Outcome {
	return Outcome{Kind: OutcomeUnavailable, Reason: reason}
}

// Ambiguous builds the gateway-mode "no opinion" outcome
func Ambiguous(lookupKey string) Outcome {
	return Outcome{Kind: OutcomeAmbiguous, LookupKey: lookupKey}
}

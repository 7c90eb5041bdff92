package audit

import "time"

// EventType represents the category of audit event
type EventType string

const (
	EventTypeLogin          EventType = "auth.login"
	EventTypeLoginFailed    EventType = "auth.login_failed"
	EventTypeLogout         EventType = "auth.logout"
	EventTypeGatewayProbe   EventType = "auth.gateway_probe"
	EventTypeSSOUnreachable EventType = "auth.sso_unreachable"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
)

// Event is a single audit log entry. The operator-facing trail is the
// one place where "no such account" and "account disabled" may be told
// apart; user-facing responses never carry that detail.
type Event struct {
	Timestamp time.Time   `json:"timestamp"`
	Type      EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	// AccountID is set when a local account was involved
	AccountID *int64 `json:"account_id,omitempty"`
	Username  string `json:"username,omitempty"`

	// Source is the tier that decided the attempt
	Source  string `json:"source,omitempty"`
	Outcome string `json:"outcome,omitempty"`

	IPAddress string `json:"ip_address,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Message   string `json:"message,omitempty"`
}

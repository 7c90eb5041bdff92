package api

import "time"

// loginResponse tells the host what happened and what it may render.
// The error message is deliberately generic: the response never says
// which factor failed or whether an account exists.
type loginResponse struct {
	State            string `json:"state"`
	SessionID        string `json:"session_id,omitempty"`
	LocalFormEnabled bool   `json:"local_form_enabled"`
	Error            string `json:"error,omitempty"`
}

// sessionResponse describes an established session
type sessionResponse struct {
	SessionID string    `json:"session_id"`
	AccountID int64     `json:"account_id"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

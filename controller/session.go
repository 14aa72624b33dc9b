package controller

import "time"

// State is the controller's position in the request lifecycle.
type State string

const (
	// Idle means no session is active; only a trigger is accepted.
	Idle State = "idle"
	// RequestPending means the clipboard was read and the rewrite call is outstanding.
	RequestPending State = "request_pending"
	// AwaitingSuggestion means the suggestion surface is open.
	AwaitingSuggestion State = "awaiting_suggestion"
)

// SessionState is the state of a single trigger session.
type SessionState string

const (
	// SessionPending means the session was created and its clipboard text
	// is not yet validated.
	SessionPending SessionState = "pending"
	// SessionInFlight means the rewrite call is running or its suggestion is
	// on screen.
	SessionInFlight SessionState = "in_flight"
	// SessionResolved means the suggestion was accepted and copied.
	SessionResolved SessionState = "resolved"
	// SessionFailed means the session ended with an error before a
	// suggestion was shown.
	SessionFailed SessionState = "failed"
)

// Session is one hotkey-to-resolution cycle.
type Session struct {
	ID         string
	SourceText string
	State      SessionState
	Started    time.Time
}

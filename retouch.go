// Package retouch defines the configuration, failure taxonomy and control-socket
// messages shared by the retouch agent and its command-line client.
// Control messages are JSON-encoded and sent over a Unix domain socket, one per line.
package retouch

// Control actions understood by the running agent.
const (
	ActionTrigger = "trigger"
	ActionStatus  = "status"
	ActionReload  = "reload"
	ActionConfig  = "config"
)

// ControlRequest is sent from the command-line client to the agent.
type ControlRequest struct {
	// Action is one of "trigger", "status", "reload" or "config".
	Action string `json:"action"`
}

// ControlResponse is sent from the agent back to the client.
type ControlResponse struct {
	// OK is false when the action was refused, e.g. a trigger dropped
	// because a session is already in flight.
	OK bool `json:"ok"`
	// State is the controller state after the action.
	State string `json:"state,omitempty"`
	// SessionID identifies the active session, if any.
	SessionID string `json:"session_id,omitempty"`
	// Config is the current configuration with the API key masked (for "config").
	Config *Config `json:"config,omitempty"`
	// Error is set when the agent cannot fulfill the request.
	Error *ControlError `json:"error,omitempty"`
}

// ControlError describes an agent-side error returned to the client.
type ControlError struct {
	// Code is a machine-readable error identifier (e.g. "unknown_action", "config_error").
	Code string `json:"code"`
	// Message is a human-readable error description.
	Message string `json:"message"`
}

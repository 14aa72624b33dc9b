package retouch

import (
	"errors"
	"fmt"
)

// Kind classifies why a rewrite session failed.
type Kind string

const (
	KindEmptyInput        Kind = "empty_input"        // clipboard had nothing to rewrite
	KindMissingCredential Kind = "missing_credential" // no API key configured
	KindTransport         Kind = "transport_error"    // network or connection failure
	KindAPI               Kind = "api_error"          // non-2xx response from the endpoint
	KindMalformedResponse Kind = "malformed_response" // 2xx without a usable suggestion
	KindCancelled         Kind = "cancelled"          // deadline exceeded or explicit cancellation
)

// Error is a failed rewrite session. Detail never contains the credential.
type Error struct {
	Kind   Kind
	Detail string
	// Status is the HTTP status for KindAPI, zero otherwise.
	Status int
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Detail == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// Notice returns the notification shown to the user for this failure.
func (e *Error) Notice() (title, body string) {
	switch e.Kind {
	case KindEmptyInput:
		return "No Text Selected", "Please copy text first"
	case KindMissingCredential:
		return "API Key Missing", "Open Settings from the tray to add your OpenAI API key"
	case KindTransport:
		return "Error", "Failed to communicate with the rewrite service"
	case KindAPI:
		if e.Status != 0 {
			return "Error", fmt.Sprintf("The rewrite service returned an error (status %d)", e.Status)
		}
		return "Error", "The rewrite service returned an error"
	case KindMalformedResponse:
		return "Error", "No suggestion in the response"
	case KindCancelled:
		return "Cancelled", "The rewrite request was cancelled"
	}
	return "Error", e.Error()
}

// NewEmptyInput creates an error for an empty or whitespace-only clipboard.
func NewEmptyInput() *Error {
	return &Error{Kind: KindEmptyInput, Detail: "clipboard is empty"}
}

// NewMissingCredential creates an error for a missing API key.
func NewMissingCredential() *Error {
	return &Error{Kind: KindMissingCredential, Detail: "API key not configured"}
}

// NewTransport wraps a network failure.
func NewTransport(err error) *Error {
	return &Error{Kind: KindTransport, Detail: detailOf(err)}
}

// NewAPI creates an error for a non-success HTTP response.
func NewAPI(status int, detail string) *Error {
	return &Error{Kind: KindAPI, Status: status, Detail: detail}
}

// NewMalformedResponse creates an error for a response without a usable suggestion.
func NewMalformedResponse(detail string) *Error {
	return &Error{Kind: KindMalformedResponse, Detail: detail}
}

// NewCancelled wraps a context error.
func NewCancelled(err error) *Error {
	return &Error{Kind: KindCancelled, Detail: detailOf(err)}
}

// KindOf returns the Kind of err, or "" if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func detailOf(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

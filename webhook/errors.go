package webhook

import (
	"errors"
	"fmt"
)

// Ingest rejections: returned to the caller synchronously, nothing is persisted or queued
var (
	ErrInvalidSignature  = errors.New("invalid webhook signature")
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrIPNotAllowed      = errors.New("ip address not allowed")
	ErrUnknownProvider   = errors.New("unknown webhook provider")
	ErrInvalidPayload    = errors.New("invalid JSON payload")
)

var messages = map[error]string{
	ErrInvalidSignature:  "Invalid webhook signature",
	ErrRateLimitExceeded: "Rate limit exceeded",
	ErrIPNotAllowed:      "IP address not allowed",
	ErrUnknownProvider:   "Unknown webhook provider",
	ErrInvalidPayload:    "Invalid JSON payload",
}

// Message returns the text reported to the webhook sender for err
func Message(err error) string {
	for sentinel, msg := range messages {
		if errors.Is(err, sentinel) {
			return msg
		}
	}
	return "Internal processing error"
}

// ErrNotFound is returned by repositories when an event does not exist
var ErrNotFound = errors.New("event not found")

/* ProcessingError wraps a provider handler failure
 * Trace is set when the handler panicked
 */
type ProcessingError struct {
	Provider  string
	EventType string
	Err       error
	Trace     string
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("processing %s %s: %v", e.Provider, e.EventType, e.Err)
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// Stack returns the captured stack, if any
func (e *ProcessingError) Stack() string {
	return e.Trace
}

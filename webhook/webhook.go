package webhook

import (
	"encoding/json"
	"net/http"
	"time"
)

/* Event is the durable record of a received webhook
 * Uses value semantics as it represents data, not behavior
 * Processed moves from false to true exactly once
 */
type Event struct {
	ID               string          `json:"id"`
	Provider         string          `json:"provider"`
	EventType        string          `json:"event_type"`
	Payload          json.RawMessage `json:"payload"`
	Signature        string          `json:"signature,omitempty"`
	Timestamp        time.Time       `json:"timestamp"`
	SourceIP         string          `json:"source_ip"`
	UserAgent        string          `json:"user_agent"`
	Processed        bool            `json:"processed"`
	Success          *bool           `json:"success"`
	RetryCount       int             `json:"retry_count"`
	ErrorMessage     string          `json:"error_message,omitempty"`
	ProcessingTimeMs int64           `json:"processing_time_ms"`
	ProcessedAt      *time.Time      `json:"processed_at,omitempty"`
}

// Status derives the lifecycle state of the event
func (e Event) Status() Status {
	switch {
	case e.Processed && e.Success != nil && *e.Success:
		return Succeeded
	case e.Processed:
		return Failed
	case e.RetryCount > 0:
		return Retrying
	default:
		return Pending
	}
}

// Request is an inbound webhook as seen by the HTTP layer
type Request struct {
	Provider  string
	Body      []byte
	Headers   http.Header
	SourceIP  string
	UserAgent string
}

// Result is the processing summary returned to the webhook sender
type Result struct {
	Success          bool     `json:"success"`
	EventID          string   `json:"event_id,omitempty"`
	ProcessedRecords int      `json:"processed_records"`
	Errors           []string `json:"errors"`
	DurationMs       int64    `json:"duration_ms"`
	ActionsTriggered []string `json:"actions_triggered"`
}

// ProcessResult is what a provider event handler reports
type ProcessResult struct {
	Success          bool
	ProcessedRecords int
	Errors           []string
	ActionsTriggered []string
}

// Completion records the outcome of processing an event
type Completion struct {
	ID             string
	Success        bool
	RetryCount     int
	Error          string
	ProcessingTime time.Duration
	ProcessedAt    time.Time
}

// ErrorRecord is an entry of the processing error log (webhook_errors)
type ErrorRecord struct {
	Provider  string
	EventType string
	EventID   string
	Message   string
	Stack     string
	Payload   json.RawMessage
	CreatedAt time.Time
}

// DeadLetterRecord archives an event whose retries are exhausted (webhook_dead_letter)
type DeadLetterRecord struct {
	EventID    string
	Provider   string
	EventType  string
	Payload    json.RawMessage
	Priority   string
	Reason     string
	Stack      string
	RetryCount int
	FailedAt   time.Time
}

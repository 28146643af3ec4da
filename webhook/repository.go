package webhook

import (
	"context"
)

/* Small, focused interfaces
 * Each store implementation provides all of them; callers depend on what they use
 */

// Reader provides read operations for events
type Reader interface {
	Get(ctx context.Context, id string) (Event, error)
	List(ctx context.Context, filter Filter) ([]Event, error)
}

// Writer provides write operations for events
type Writer interface {
	Store(ctx context.Context, event Event) error
	/* MarkProcessed sets processed=true with the outcome
	 * Returns false when the event had already been marked, leaving it untouched
	 */
	MarkProcessed(ctx context.Context, c Completion) (bool, error)
	// RecordAttempt updates retry_count and error_message after a failed attempt
	RecordAttempt(ctx context.Context, id string, retryCount int, errMsg string) error
	/* Reopen returns a failed event to the unprocessed state with retry_count reset
	 * Succeeded events are left untouched and yield false
	 */
	Reopen(ctx context.Context, id string) (bool, error)
}

// ErrorLog stores processing failures (webhook_errors)
type ErrorLog interface {
	RecordError(ctx context.Context, rec ErrorRecord) error
}

// DeadLetterArchive stores events whose retries are exhausted (webhook_dead_letter)
type DeadLetterArchive interface {
	ArchiveDeadLetter(ctx context.Context, rec DeadLetterRecord) error
}

// Repository combines every persistence concern of the ingest path
type Repository interface {
	Reader
	Writer
	ErrorLog
	DeadLetterArchive
}

// Filter narrows event listings
type Filter struct {
	Provider  string
	EventType string
	Status    Status
	Limit     int
}

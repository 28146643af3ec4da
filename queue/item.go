package queue

import (
	"encoding/json"
	"time"
)

// DefaultMaxRetries is applied to items enqueued without an explicit budget
const DefaultMaxRetries = 3

/* Item is the queue-resident projection of a received webhook event
 * Priority is fixed at enqueue time, RetryCount grows with each failed attempt
 */
type Item struct {
	ID         string          `json:"id"`
	Provider   string          `json:"provider"`
	EventType  string          `json:"event_type"`
	Payload    json.RawMessage `json:"payload"`
	Priority   Priority        `json:"priority"`
	RetryCount int             `json:"retry_count"`
	MaxRetries int             `json:"max_retries"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	// ClaimedAt identifies the processing claim made by Pop; zero outside processing
	ClaimedAt time.Time `json:"-"`
}

// DeadLetter is an item whose retry budget is exhausted
type DeadLetter struct {
	Item     Item      `json:"item"`
	Reason   string    `json:"reason"`
	Stack    string    `json:"stack,omitempty"`
	FailedAt time.Time `json:"failed_at"`
}

// Stats is a point-in-time view of the queue
type Stats struct {
	Pending    int64            `json:"pending"`
	Delayed    int64            `json:"delayed"`
	Processing int64            `json:"processing"`
	Completed  int64            `json:"completed"`
	Failed     int64            `json:"failed"`
	DeadLetter int64            `json:"dead_letter"`
	Lanes      map[string]int64 `json:"lanes"`
}

// Heartbeat is the liveness record a consumer publishes while polling
type Heartbeat struct {
	ConsumerID    string    `json:"consumer_id"`
	Status        string    `json:"status"` // "idle", "processing"
	LastHeartbeat time.Time `json:"last_heartbeat"`
}

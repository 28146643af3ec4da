package metrics

import (
	"context"
	"time"

	"github.com/marcelsud/webhook-hub/queue"
)

// Snapshot represents the current state of the webhook hub.
type Snapshot struct {
	// Queue holds lane lengths and lifecycle counters
	Queue queue.Stats `json:"queue"`

	// Consumers lists queue consumers whose heartbeat is still live
	Consumers []queue.Heartbeat `json:"consumers"`

	// Connections is the number of open real-time connections
	Connections int `json:"connections"`

	// Timestamp when the snapshot was collected
	Timestamp time.Time `json:"timestamp"`
}

// Collector defines the interface for collecting metrics from the hub.
type Collector interface {
	// Collect gathers a full snapshot
	Collect(ctx context.Context) (Snapshot, error)

	// QueueStats returns lane lengths and lifecycle counters
	QueueStats(ctx context.Context) (queue.Stats, error)

	// ActiveConsumers returns consumers with a live heartbeat
	ActiveConsumers(ctx context.Context) ([]queue.Heartbeat, error)

	// Connections returns the number of open real-time connections
	Connections() int
}

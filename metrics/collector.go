package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/marcelsud/webhook-hub/queue"
)

// StatsSource reports queue statistics
type StatsSource interface {
	Stats(ctx context.Context) (queue.Stats, error)
}

// ConsumerSource lists live queue consumers
type ConsumerSource interface {
	ActiveConsumers(ctx context.Context) ([]queue.Heartbeat, error)
}

// ConnectionCounter reports open real-time connections
type ConnectionCounter interface {
	Count() int
}

// QueueCollector implements Collector over the queue manager, its store and the hub
type QueueCollector struct {
	stats       StatsSource
	consumers   ConsumerSource
	connections ConnectionCounter
}

/* NewCollector creates a collector
 * consumers and connections may be nil when the backing store has no heartbeats
 * or no hub is running
 */
func NewCollector(stats StatsSource, consumers ConsumerSource, connections ConnectionCounter) *QueueCollector {
	return &QueueCollector{
		stats:       stats,
		consumers:   consumers,
		connections: connections,
	}
}

// Collect gathers every metric into one snapshot
func (c *QueueCollector) Collect(ctx context.Context) (Snapshot, error) {
	stats, err := c.QueueStats(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("getting queue stats: %w", err)
	}

	consumers, err := c.ActiveConsumers(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("getting active consumers: %w", err)
	}

	return Snapshot{
		Queue:       stats,
		Consumers:   consumers,
		Connections: c.Connections(),
		Timestamp:   time.Now().UTC(),
	}, nil
}

// QueueStats returns lane lengths and lifecycle counters
func (c *QueueCollector) QueueStats(ctx context.Context) (queue.Stats, error) {
	return c.stats.Stats(ctx)
}

// ActiveConsumers returns consumers with a live heartbeat
func (c *QueueCollector) ActiveConsumers(ctx context.Context) ([]queue.Heartbeat, error) {
	if c.consumers == nil {
		return []queue.Heartbeat{}, nil
	}
	return c.consumers.ActiveConsumers(ctx)
}

// Connections returns the number of open real-time connections
func (c *QueueCollector) Connections() int {
	if c.connections == nil {
		return 0
	}
	return c.connections.Count()
}

package queue

import (
	"context"
	"time"
)

/* Store owns the lane, processing, delayed and dead-letter structures
 * Every method that moves an item between structures must do so atomically
 * so an item has at most one active owner
 * A claim is the processing marker Pop creates, identified by the item id and
 * Item.ClaimedAt; Complete, Retry and Bury act only while that exact claim is
 * still held and report false otherwise, leaving the store untouched
 */
type Store interface {
	// Push appends an item to the tail of its priority lane
	Push(ctx context.Context, item Item) error
	/* Pop moves the head of the highest non-empty lane into the processing set
	 * The returned item carries its claim in ClaimedAt
	 * Returns false when every lane is empty
	 */
	Pop(ctx context.Context, now time.Time) (Item, bool, error)
	// Complete releases the claim and counts a completion
	Complete(ctx context.Context, item Item) (bool, error)
	// Retry releases the claim and schedules the item for readyAt
	Retry(ctx context.Context, item Item, readyAt time.Time) (bool, error)
	// PromoteDue moves scheduled retries whose time has come back into their lanes
	PromoteDue(ctx context.Context, now time.Time) (int, error)
	// Stale lists claims made before the cutoff without releasing them
	Stale(ctx context.Context, before time.Time) ([]Item, error)
	// Bury releases the claim, stores the dead letter and counts a failure
	Bury(ctx context.Context, dl DeadLetter) (bool, error)
	// Replay moves up to n dead letters back to their lanes with RetryCount reset
	Replay(ctx context.Context, n int) ([]Item, error)
	// DeadLetters lists up to limit dead letters, oldest first
	DeadLetters(ctx context.Context, limit int) ([]DeadLetter, error)
	Stats(ctx context.Context) (Stats, error)
}

// Heartbeater is implemented by stores able to publish consumer liveness
type Heartbeater interface {
	Heartbeat(ctx context.Context, consumerID, status string) error
}

//go:build integration

package redis_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/marcelsud/webhook-hub/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testItem(id string, p queue.Priority) queue.Item {
	return queue.Item{
		ID:         id,
		Provider:   "github",
		EventType:  "push",
		Payload:    []byte(`{"ref":"main"}`),
		Priority:   p,
		MaxRetries: 3,
		EnqueuedAt: time.Now().UTC(),
	}
}

func TestStore_Lanes_Integration(t *testing.T) {
	ctx := context.Background()
	rc, cleanup := SetupRedisContainer(t, ctx)
	defer cleanup()

	store := CreateTestStore(t, rc.Addr)
	defer store.Close(ctx)

	require.NoError(t, store.Push(ctx, testItem("low-1", queue.Low)))
	require.NoError(t, store.Push(ctx, testItem("medium-1", queue.Medium)))
	require.NoError(t, store.Push(ctx, testItem("high-1", queue.High)))
	require.NoError(t, store.Push(ctx, testItem("high-2", queue.High)))

	var order []string
	for {
		item, ok, err := store.Pop(ctx, time.Now())
		require.NoError(t, err)
		if !ok {
			break
		}
		order = append(order, item.ID)
		owned, err := store.Complete(ctx, item)
		require.NoError(t, err)
		assert.True(t, owned)
	}

	assert.Equal(t, []string{"high-1", "high-2", "medium-1", "low-1"}, order)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.Completed)
	assert.Equal(t, int64(0), stats.Pending)
	assert.Equal(t, int64(0), stats.Processing)
}

func TestStore_RetryAndPromote_Integration(t *testing.T) {
	ctx := context.Background()
	rc, cleanup := SetupRedisContainer(t, ctx)
	defer cleanup()

	store := CreateTestStore(t, rc.Addr)
	defer store.Close(ctx)

	now := time.Now()
	require.NoError(t, store.Push(ctx, testItem("evt-1", queue.Low)))

	item, ok, err := store.Pop(ctx, now)
	require.NoError(t, err)
	require.True(t, ok)

	item.RetryCount = 1
	owned, err := store.Retry(ctx, item, now.Add(5*time.Second))
	require.NoError(t, err)
	require.True(t, owned)

	n, err := store.PromoteDue(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Delayed)
	assert.Equal(t, int64(1), stats.Pending)

	n, err = store.PromoteDue(ctx, now.Add(5*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	retried, ok, err := store.Pop(ctx, now)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "evt-1", retried.ID)
	assert.Equal(t, 1, retried.RetryCount)
	assert.Equal(t, queue.Low, retried.Priority)
}

func TestStore_DeadLetter_Integration(t *testing.T) {
	ctx := context.Background()
	rc, cleanup := SetupRedisContainer(t, ctx)
	defer cleanup()

	store := CreateTestStore(t, rc.Addr)
	defer store.Close(ctx)

	require.NoError(t, store.Push(ctx, testItem("evt-dead", queue.High)))
	item, ok, err := store.Pop(ctx, time.Now())
	require.NoError(t, err)
	require.True(t, ok)

	item.RetryCount = 4
	owned, err := store.Bury(ctx, queue.DeadLetter{
		Item:     item,
		Reason:   errors.New("upstream 500").Error(),
		FailedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	require.True(t, owned)

	dead, err := store.DeadLetters(ctx, 10)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, "upstream 500", dead[0].Reason)

	replayed, err := store.Replay(ctx, 10)
	require.NoError(t, err)
	require.Len(t, replayed, 1)
	assert.Equal(t, 0, replayed[0].RetryCount)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.DeadLetter)
	assert.Equal(t, int64(1), stats.Failed)
	assert.Equal(t, int64(1), stats.Lanes["high"])
}

func TestStore_StaleClaim_Integration(t *testing.T) {
	ctx := context.Background()
	rc, cleanup := SetupRedisContainer(t, ctx)
	defer cleanup()

	store := CreateTestStore(t, rc.Addr)
	defer store.Close(ctx)

	claimedAt := time.Now().Add(-10 * time.Minute)
	require.NoError(t, store.Push(ctx, testItem("evt-stuck", queue.Medium)))
	first, ok, err := store.Pop(ctx, claimedAt)
	require.NoError(t, err)
	require.True(t, ok)

	stale, err := store.Stale(ctx, time.Now().Add(-5*time.Minute))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "evt-stuck", stale[0].ID)
	assert.Equal(t, first.ClaimedAt, stale[0].ClaimedAt)

	// The sweep wins the claim; the original owner's outcomes are dropped
	owned, err := store.Retry(ctx, stale[0], time.Now().Add(-time.Second))
	require.NoError(t, err)
	require.True(t, owned)

	owned, err = store.Retry(ctx, first, time.Now())
	require.NoError(t, err)
	assert.False(t, owned)

	owned, err = store.Bury(ctx, queue.DeadLetter{Item: first, Reason: "late"})
	require.NoError(t, err)
	assert.False(t, owned)

	_, err = store.PromoteDue(ctx, time.Now())
	require.NoError(t, err)
	second, ok, err := store.Pop(ctx, time.Now())
	require.NoError(t, err)
	require.True(t, ok)

	owned, err = store.Complete(ctx, first)
	require.NoError(t, err)
	assert.False(t, owned)

	owned, err = store.Complete(ctx, second)
	require.NoError(t, err)
	assert.True(t, owned)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Delayed)
	assert.Equal(t, int64(0), stats.DeadLetter)
	assert.Equal(t, int64(0), stats.Failed)
	assert.Equal(t, int64(1), stats.Completed)
}

func TestStore_Heartbeat_Integration(t *testing.T) {
	ctx := context.Background()
	rc, cleanup := SetupRedisContainer(t, ctx)
	defer cleanup()

	store := CreateTestStore(t, rc.Addr)
	defer store.Close(ctx)

	require.NoError(t, store.Heartbeat(ctx, "consumer-a", "idle"))

	consumers, err := store.ActiveConsumers(ctx)
	require.NoError(t, err)
	require.Len(t, consumers, 1)
	assert.Equal(t, "consumer-a", consumers[0].ConsumerID)
	assert.Equal(t, "idle", consumers[0].Status)

	ttl := GetKeyTTL(t, rc.Addr, "{queue}:consumer:heartbeat:consumer-a")
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, 60*time.Second)
}

func TestManager_WithRedisStore_Integration(t *testing.T) {
	ctx := context.Background()
	rc, cleanup := SetupRedisContainer(t, ctx)
	defer cleanup()

	store := CreateTestStore(t, rc.Addr)
	defer store.Close(ctx)

	m := queue.NewManager(store)
	require.NoError(t, m.Enqueue(ctx, testItem("evt-1", queue.Medium)))

	h := &countingHandler{}
	processed, err := m.ProcessNext(ctx, h)
	require.NoError(t, err)
	assert.True(t, processed)
	assert.Equal(t, 1, h.handled)

	stats, err := m.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Completed)
}

type countingHandler struct {
	handled int
}

func (h *countingHandler) Handle(ctx context.Context, item queue.Item) error {
	h.handled++
	return nil
}

func (h *countingHandler) Failed(ctx context.Context, item queue.Item, err error, deadLettered bool) {
}

package metrics

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/marcelsud/webhook-hub/queue"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStats struct {
	stats queue.Stats
	err   error
}

func (f fakeStats) Stats(ctx context.Context) (queue.Stats, error) { return f.stats, f.err }

type fakeConsumers []queue.Heartbeat

func (f fakeConsumers) ActiveConsumers(ctx context.Context) ([]queue.Heartbeat, error) { return f, nil }

type fakeHub int

func (f fakeHub) Count() int { return int(f) }

func sampleStats() queue.Stats {
	return queue.Stats{
		Pending:    3,
		Processing: 1,
		Completed:  10,
		Failed:     2,
		DeadLetter: 2,
		Lanes:      map[string]int64{"high": 1, "medium": 2, "low": 0},
	}
}

func TestQueueCollector_Collect(t *testing.T) {
	ctx := context.Background()

	t.Run("gathers every source", func(t *testing.T) {
		consumers := fakeConsumers{{ConsumerID: "c1", Status: "idle", LastHeartbeat: time.Now()}}
		c := NewCollector(fakeStats{stats: sampleStats()}, consumers, fakeHub(4))

		snap, err := c.Collect(ctx)

		require.NoError(t, err)
		assert.Equal(t, int64(3), snap.Queue.Pending)
		assert.Len(t, snap.Consumers, 1)
		assert.Equal(t, 4, snap.Connections)
		assert.False(t, snap.Timestamp.IsZero())
	})

	t.Run("optional sources", func(t *testing.T) {
		c := NewCollector(fakeStats{stats: sampleStats()}, nil, nil)

		snap, err := c.Collect(ctx)

		require.NoError(t, err)
		assert.Empty(t, snap.Consumers)
		assert.Equal(t, 0, snap.Connections)
	})

	t.Run("stats failure", func(t *testing.T) {
		c := NewCollector(fakeStats{err: errors.New("redis down")}, nil, nil)

		_, err := c.Collect(ctx)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "getting queue stats")
	})
}

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.Ingested("shopify", "accepted")
	r.Ingested("shopify", "accepted")
	r.Ingested("shopify", "invalid_signature")
	r.Processed("shopify", true, 20*time.Millisecond)
	r.Processed("shopify", false, time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.ingested.WithLabelValues("shopify", "accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.ingested.WithLabelValues("shopify", "invalid_signature")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.processed.WithLabelValues("shopify", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.processed.WithLabelValues("shopify", "failure")))
}

func TestOTelExporter_Handler(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(fakeStats{stats: sampleStats()}, fakeConsumers{{ConsumerID: "c1"}}, fakeHub(2))

	oe, err := NewOTelExporter(c, reg)
	require.NoError(t, err)
	defer oe.Shutdown(context.Background())

	rec := httptest.NewRecorder()
	oe.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), "webhook_queue_length")
	assert.Contains(t, string(body), `queue_lane="medium"`)
	assert.Contains(t, string(body), "webhook_connections_active")
}

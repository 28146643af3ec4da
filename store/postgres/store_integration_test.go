//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/marcelsud/webhook-hub/monitoring"
	"github.com/marcelsud/webhook-hub/providers"
	"github.com/marcelsud/webhook-hub/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	store, cleanup := SetupPostgresContainer(t, ctx)
	defer cleanup()

	now := time.Now().UTC().Truncate(time.Millisecond)

	t.Run("migrate is idempotent", func(t *testing.T) {
		require.NoError(t, store.Migrate(ctx))
	})

	t.Run("event lifecycle", func(t *testing.T) {
		TruncateAll(t, ctx, store)

		require.NoError(t, store.Store(ctx, webhook.Event{
			ID: "evt-1", Provider: "shopify", EventType: "orders/create", Payload: []byte(`{"id": 1}`), Timestamp: now,
		}))

		require.NoError(t, store.RecordAttempt(ctx, "evt-1", 1, "timeout"))
		e, err := store.Get(ctx, "evt-1")
		require.NoError(t, err)
		assert.Equal(t, webhook.Retrying, e.Status())

		ok, err := store.MarkProcessed(ctx, webhook.Completion{ID: "evt-1", Success: true, RetryCount: 1, ProcessingTime: 25 * time.Millisecond, ProcessedAt: now})
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.MarkProcessed(ctx, webhook.Completion{ID: "evt-1", Success: false, ProcessedAt: now})
		require.NoError(t, err)
		assert.False(t, ok)

		e, err = store.Get(ctx, "evt-1")
		require.NoError(t, err)
		assert.Equal(t, webhook.Succeeded, e.Status())
		assert.Equal(t, int64(25), e.ProcessingTimeMs)

		events, err := store.EventsBetween(ctx, "shopify", now.Add(-time.Minute), now.Add(time.Minute))
		require.NoError(t, err)
		assert.Len(t, events, 1)

		n, err := store.DeleteEventsBefore(ctx, now.Add(time.Second))
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("alert dedup window", func(t *testing.T) {
		TruncateAll(t, ctx, store)

		rule := monitoring.Rule{ID: "rule-1", Name: "success", Metric: monitoring.SuccessRate, Threshold: 90,
			Comparison: monitoring.LessThan, TimeWindowMinutes: 5, Enabled: true, CreatedAt: now}
		require.NoError(t, store.SaveRule(ctx, rule))
		require.NoError(t, store.SaveAlert(ctx, monitoring.Alert{ID: "a1", RuleID: "rule-1", RuleName: "success",
			Metric: monitoring.SuccessRate, Severity: monitoring.Critical, CreatedAt: now}))

		exists, err := store.HasUnacknowledgedAlert(ctx, "rule-1", now.Add(-time.Hour))
		require.NoError(t, err)
		assert.True(t, exists)

		require.NoError(t, store.AcknowledgeAlert(ctx, "a1", now))
		exists, err = store.HasUnacknowledgedAlert(ctx, "rule-1", now.Add(-time.Hour))
		require.NoError(t, err)
		assert.False(t, exists)

		rules, err := store.EnabledRules(ctx)
		require.NoError(t, err)
		require.Len(t, rules, 1)
		assert.Empty(t, rules[0].NotificationChannels)
	})

	t.Run("provider configs", func(t *testing.T) {
		TruncateAll(t, ctx, store)

		require.NoError(t, store.SaveConfig(ctx, providers.Config{
			Provider: "github", Secret: "s", HighPriorityEvents: []string{"push"},
		}.WithDefaults()))

		c, err := store.Config(ctx, "github")
		require.NoError(t, err)
		assert.Equal(t, []string{"push"}, c.HighPriorityEvents)
		assert.Equal(t, providers.DefaultRateLimit, c.RateLimit)
	})

	t.Run("reports and broadcast logs", func(t *testing.T) {
		TruncateAll(t, ctx, store)

		report := monitoring.DailyReport{Date: now, Provider: "shopify", TotalEvents: 3, EventTypes: map[string]int{"orders/create": 3}}
		require.NoError(t, store.SaveDailyReport(ctx, report))
		report.TotalEvents = 4
		require.NoError(t, store.SaveDailyReport(ctx, report))

		var total int
		require.NoError(t, store.DB.QueryRowContext(ctx, "SELECT total_events FROM webhook_daily_reports").Scan(&total))
		assert.Equal(t, 4, total)

		require.NoError(t, store.RecordBroadcast(ctx, "webhook-event", map[string]any{"event_id": "evt-1"}, 2))
	})
}

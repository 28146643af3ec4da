package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/marcelsud/webhook-hub/monitoring"
	"github.com/marcelsud/webhook-hub/providers"
	"github.com/marcelsud/webhook-hub/store/memory"
	"github.com/marcelsud/webhook-hub/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

func event(id, provider string, at time.Time) webhook.Event {
	return webhook.Event{ID: id, Provider: provider, EventType: "orders/create", Payload: []byte(`{}`), Timestamp: at}
}

func TestStore_Events(t *testing.T) {
	ctx := context.Background()

	t.Run("store and get", func(t *testing.T) {
		s := memory.NewStore()
		require.NoError(t, s.Store(ctx, event("evt-1", "shopify", base)))

		got, err := s.Get(ctx, "evt-1")
		require.NoError(t, err)
		assert.Equal(t, "shopify", got.Provider)
		assert.False(t, got.Processed)

		assert.Error(t, s.Store(ctx, event("evt-1", "shopify", base)))
	})

	t.Run("get missing", func(t *testing.T) {
		_, err := memory.NewStore().Get(ctx, "nope")
		assert.ErrorIs(t, err, webhook.ErrNotFound)
	})

	t.Run("mark processed only once", func(t *testing.T) {
		s := memory.NewStore()
		require.NoError(t, s.Store(ctx, event("evt-1", "shopify", base)))

		ok, err := s.MarkProcessed(ctx, webhook.Completion{ID: "evt-1", Success: true, RetryCount: 2, ProcessingTime: 40 * time.Millisecond, ProcessedAt: base})
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = s.MarkProcessed(ctx, webhook.Completion{ID: "evt-1", Success: false, ProcessedAt: base})
		require.NoError(t, err)
		assert.False(t, ok)

		got, _ := s.Get(ctx, "evt-1")
		assert.Equal(t, webhook.Succeeded, got.Status())
		assert.Equal(t, 2, got.RetryCount)
		assert.Equal(t, int64(40), got.ProcessingTimeMs)
	})

	t.Run("record attempt ignored after processing", func(t *testing.T) {
		s := memory.NewStore()
		require.NoError(t, s.Store(ctx, event("evt-1", "shopify", base)))
		require.NoError(t, s.RecordAttempt(ctx, "evt-1", 1, "boom"))

		got, _ := s.Get(ctx, "evt-1")
		assert.Equal(t, webhook.Retrying, got.Status())

		_, err := s.MarkProcessed(ctx, webhook.Completion{ID: "evt-1", Success: true, RetryCount: 1, ProcessedAt: base})
		require.NoError(t, err)
		require.NoError(t, s.RecordAttempt(ctx, "evt-1", 3, "late"))

		got, _ = s.Get(ctx, "evt-1")
		assert.Equal(t, 1, got.RetryCount)
	})

	t.Run("reopen only failed events", func(t *testing.T) {
		s := memory.NewStore()
		require.NoError(t, s.Store(ctx, event("dead", "shopify", base)))
		require.NoError(t, s.Store(ctx, event("done", "shopify", base)))
		_, err := s.MarkProcessed(ctx, webhook.Completion{ID: "dead", Success: false, RetryCount: 4, Error: "crm down", ProcessedAt: base})
		require.NoError(t, err)
		_, err = s.MarkProcessed(ctx, webhook.Completion{ID: "done", Success: true, ProcessedAt: base})
		require.NoError(t, err)

		ok, err := s.Reopen(ctx, "dead")
		require.NoError(t, err)
		assert.True(t, ok)
		got, _ := s.Get(ctx, "dead")
		assert.Equal(t, webhook.Pending, got.Status())
		assert.Equal(t, 0, got.RetryCount)
		assert.Nil(t, got.ProcessedAt)

		ok, err = s.Reopen(ctx, "done")
		require.NoError(t, err)
		assert.False(t, ok)

		_, err = s.Reopen(ctx, "nope")
		assert.ErrorIs(t, err, webhook.ErrNotFound)
	})

	t.Run("list newest first with filters", func(t *testing.T) {
		s := memory.NewStore()
		require.NoError(t, s.Store(ctx, event("a", "shopify", base)))
		require.NoError(t, s.Store(ctx, event("b", "github", base.Add(time.Second))))
		require.NoError(t, s.Store(ctx, event("c", "shopify", base.Add(2*time.Second))))

		all, err := s.List(ctx, webhook.Filter{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "c", all[0].ID)

		shopify, err := s.List(ctx, webhook.Filter{Provider: "shopify", Limit: 1})
		require.NoError(t, err)
		require.Len(t, shopify, 1)
		assert.Equal(t, "c", shopify[0].ID)
	})

	t.Run("events between and retention", func(t *testing.T) {
		s := memory.NewStore()
		require.NoError(t, s.Store(ctx, event("old", "shopify", base.Add(-31*24*time.Hour))))
		require.NoError(t, s.Store(ctx, event("new", "shopify", base)))

		in, err := s.EventsBetween(ctx, "shopify", base.Add(-time.Hour), base)
		require.NoError(t, err)
		require.Len(t, in, 1)
		assert.Equal(t, "new", in[0].ID)

		n, err := s.DeleteEventsBefore(ctx, base.Add(-30*24*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		_, err = s.Get(ctx, "old")
		assert.ErrorIs(t, err, webhook.ErrNotFound)
	})
}

func TestStore_Alerts(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()

	require.NoError(t, s.SaveAlert(ctx, monitoring.Alert{ID: "a1", RuleID: "r1", CreatedAt: base}))

	exists, err := s.HasUnacknowledgedAlert(ctx, "r1", base.Add(-time.Hour))
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = s.HasUnacknowledgedAlert(ctx, "r1", base.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, s.AcknowledgeAlert(ctx, "a1", base))
	exists, err = s.HasUnacknowledgedAlert(ctx, "r1", base.Add(-time.Hour))
	require.NoError(t, err)
	assert.False(t, exists)

	assert.ErrorIs(t, s.AcknowledgeAlert(ctx, "missing", base), monitoring.ErrNotFound)

	open, err := s.Alerts(ctx, monitoring.AlertFilter{Unacknowledged: true})
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestStore_Rules(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()

	require.NoError(t, s.SaveRule(ctx, monitoring.Rule{ID: "r1", Name: "on", Enabled: true, CreatedAt: base}))
	require.NoError(t, s.SaveRule(ctx, monitoring.Rule{ID: "r2", Name: "off", CreatedAt: base.Add(time.Second)}))

	all, err := s.Rules(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	enabled, err := s.EnabledRules(ctx)
	require.NoError(t, err)
	require.Len(t, enabled, 1)
	assert.Equal(t, "r1", enabled[0].ID)
}

func TestStore_Configs(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	inactive := false

	require.NoError(t, s.SaveConfig(ctx, providers.Config{Provider: "shopify", Secret: "s"}.WithDefaults()))
	require.NoError(t, s.SaveConfig(ctx, providers.Config{Provider: "github", Active: &inactive}.WithDefaults()))

	c, err := s.Config(ctx, "shopify")
	require.NoError(t, err)
	assert.Equal(t, providers.DefaultRateLimit, c.RateLimit)

	_, err = s.Config(ctx, "github")
	assert.ErrorIs(t, err, providers.ErrNotFound)

	all, err := s.Configs(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

package processor_test

import (
	"context"
	"errors"
	"testing"

	"github.com/marcelsud/webhook-hub/webhook"
	"github.com/marcelsud/webhook-hub/webhook/processor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Process(t *testing.T) {
	ctx := context.Background()

	t.Run("exact handler wins over wildcard", func(t *testing.T) {
		r := processor.NewRegistry()
		r.Register("shopify", processor.Wildcard, processor.Passthrough("generic"))
		r.Register("Shopify", "orders/create", processor.Passthrough("order_synced"))

		res, err := r.Process(ctx, webhook.Event{Provider: "shopify", EventType: "orders/create", Payload: []byte(`{"id":1}`)})

		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Equal(t, 1, res.ProcessedRecords)
		assert.Equal(t, []string{"order_synced"}, res.ActionsTriggered)
	})

	t.Run("wildcard handler", func(t *testing.T) {
		r := processor.NewRegistry()
		r.Register("hubspot", processor.Wildcard, processor.Passthrough(""))

		res, err := r.Process(ctx, webhook.Event{Provider: "hubspot", EventType: "deal.creation", Payload: []byte(`[{},{}]`)})

		require.NoError(t, err)
		assert.Equal(t, 2, res.ProcessedRecords)
		assert.Empty(t, res.ActionsTriggered)
	})

	t.Run("no handler acknowledges", func(t *testing.T) {
		res, err := processor.NewRegistry().Process(ctx, webhook.Event{Provider: "acme", EventType: "x"})

		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Equal(t, 0, res.ProcessedRecords)
	})

	t.Run("handler error is wrapped", func(t *testing.T) {
		r := processor.NewRegistry()
		cause := errors.New("upstream 503")
		r.Register("github", "push", processor.HandlerFunc(func(ctx context.Context, e webhook.Event) (webhook.ProcessResult, error) {
			return webhook.ProcessResult{}, cause
		}))

		_, err := r.Process(ctx, webhook.Event{Provider: "github", EventType: "push"})

		require.ErrorIs(t, err, cause)
		assert.Contains(t, err.Error(), "handling github event push")
	})
}

package payload

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventType(t *testing.T) {
	t.Run("shopify topic header", func(t *testing.T) {
		h := http.Header{}
		h.Set("X-Shopify-Topic", "orders/create")

		assert.Equal(t, "orders/create", EventType(h, []byte(`{"type":"ignored"}`)))
	})

	t.Run("github event header", func(t *testing.T) {
		h := http.Header{}
		h.Set("X-GitHub-Event", "push")

		assert.Equal(t, "push", EventType(h, []byte(`{}`)))
	})

	t.Run("body type field", func(t *testing.T) {
		assert.Equal(t, "invoice.paid", EventType(http.Header{}, []byte(`{"type":"invoice.paid"}`)))
	})

	t.Run("body field precedence", func(t *testing.T) {
		body := []byte(`{"topic":"t","event_type":"customer.created"}`)
		assert.Equal(t, "customer.created", EventType(http.Header{}, body))
	})

	t.Run("hubspot batch", func(t *testing.T) {
		body := []byte(`[{"subscriptionType":"deal.propertyChange","objectId":1},{"subscriptionType":"deal.creation"}]`)
		assert.Equal(t, "deal.propertyChange", EventType(http.Header{}, body))
	})

	t.Run("non string field skipped", func(t *testing.T) {
		body := []byte(`{"type":42,"event":"lead.created"}`)
		assert.Equal(t, "lead.created", EventType(http.Header{}, body))
	})

	t.Run("unknown", func(t *testing.T) {
		assert.Equal(t, Unknown, EventType(http.Header{}, []byte(`{"id":1}`)))
		assert.Equal(t, Unknown, EventType(http.Header{}, []byte(`not json`)))
	})
}

func TestRecords(t *testing.T) {
	assert.Equal(t, 3, Records([]byte(`[{},{},{}]`)))
	assert.Equal(t, 1, Records([]byte(`{"id":1}`)))
	assert.Equal(t, 0, Records([]byte(`[]`)))
}

func TestMatches(t *testing.T) {
	tests := []struct {
		name      string
		eventType string
		patterns  []string
		want      bool
	}{
		{"no filter", "orders/create", nil, true},
		{"exact", "orders/create", []string{"orders/create"}, true},
		{"wildcard", "anything", []string{"*"}, true},
		{"slash prefix", "orders/paid", []string{"orders/*"}, true},
		{"dot prefix", "deal.creation", []string{"deal.*"}, true},
		{"prefix needs suffix", "orders/", []string{"orders/*"}, false},
		{"other prefix", "customers/create", []string{"orders/*"}, false},
		{"no match", "push", []string{"pull_request", "issues"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(tt.eventType, tt.patterns))
		})
	}
}

func TestValidateEventType(t *testing.T) {
	for _, valid := range []string{"*", "push", "orders/create", "orders/*", "deal.propertyChange", "deal.*", "pull_request"} {
		require.NoError(t, ValidateEventType(valid), valid)
	}

	for _, invalid := range []string{"", "orders//create", "has space", ".leading"} {
		assert.Error(t, ValidateEventType(invalid), invalid)
	}
}

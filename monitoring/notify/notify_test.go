package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/marcelsud/webhook-hub/monitoring"
	"github.com/marcelsud/webhook-hub/monitoring/notify"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAlert() monitoring.Alert {
	return monitoring.Alert{
		ID:           "alert-1",
		RuleID:       "rule-1",
		RuleName:     "shopify success",
		Provider:     "shopify",
		Metric:       monitoring.SuccessRate,
		CurrentValue: 40,
		Threshold:    90,
		Severity:     monitoring.Critical,
		Message:      "shopify success: success_rate is 40.00",
		CreatedAt:    time.Date(2026, 10, 2, 9, 30, 0, 0, time.UTC),
	}
}

type recordingChannel struct {
	sent []monitoring.Alert
	err  error
}

func (c *recordingChannel) Send(ctx context.Context, alert monitoring.Alert) error {
	c.sent = append(c.sent, alert)
	return c.err
}

func TestDispatcher_Notify(t *testing.T) {
	ctx := context.Background()

	t.Run("routes to named channels only", func(t *testing.T) {
		d := notify.NewDispatcher(zerolog.Nop())
		email := &recordingChannel{}
		slack := &recordingChannel{}
		d.Register(notify.Email, email)
		d.Register(notify.Slack, slack)

		d.Notify(ctx, []string{"EMAIL", "pager"}, testAlert())

		assert.Len(t, email.sent, 1)
		assert.Empty(t, slack.sent)
		assert.ElementsMatch(t, []string{"email", "slack"}, d.Channels())
	})

	t.Run("a failing channel does not stop the others", func(t *testing.T) {
		d := notify.NewDispatcher(zerolog.Nop())
		broken := &recordingChannel{err: errors.New("smtp down")}
		hook := &recordingChannel{}
		d.Register(notify.Email, broken)
		d.Register(notify.Webhook, hook)

		d.Notify(ctx, []string{notify.Email, notify.Webhook}, testAlert())

		assert.Len(t, broken.sent, 1)
		assert.Len(t, hook.sent, 1)
	})
}

func TestWebhookChannel_Send(t *testing.T) {
	t.Run("posts the alert", func(t *testing.T) {
		var got map[string]any
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.WriteHeader(http.StatusNoContent)
		}))
		defer server.Close()

		err := notify.NewWebhookChannel(server.URL).Send(context.Background(), testAlert())

		require.NoError(t, err)
		assert.Equal(t, monitoring.EventAlert, got["type"])
		alert := got["alert"].(map[string]any)
		assert.Equal(t, "alert-1", alert["id"])
		assert.Equal(t, "critical", alert["severity"])
	})

	t.Run("non-2xx is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer server.Close()

		err := notify.NewWebhookChannel(server.URL).Send(context.Background(), testAlert())

		require.Error(t, err)
		assert.Contains(t, err.Error(), "400")
	})
}

func TestSlackChannel_Send(t *testing.T) {
	t.Run("posts a message with fields", func(t *testing.T) {
		var got map[string]any
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			_, _ = w.Write([]byte("ok"))
		}))
		defer server.Close()

		err := notify.SlackChannel{WebhookURL: server.URL}.Send(context.Background(), testAlert())

		require.NoError(t, err)
		assert.Contains(t, got["text"], "CRITICAL")
		attachments := got["attachments"].([]any)
		require.Len(t, attachments, 1)
		assert.Equal(t, "#CC0000", attachments[0].(map[string]any)["color"])
	})

	t.Run("server error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		err := notify.SlackChannel{WebhookURL: server.URL}.Send(context.Background(), testAlert())

		assert.Error(t, err)
	})
}

func TestEmailChannel_Send(t *testing.T) {
	t.Run("sends through the mail api", func(t *testing.T) {
		var calls atomic.Int32
		var body []byte
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			assert.Equal(t, "/v3/mail/send", r.URL.Path)
			assert.Equal(t, "Bearer sg-key", r.Header.Get("Authorization"))
			body, _ = io.ReadAll(r.Body)
			w.WriteHeader(http.StatusAccepted)
		}))
		defer server.Close()

		c := notify.EmailChannel{APIKey: "sg-key", From: "alerts@example.com", To: []string{"ops@example.com"}, Host: server.URL}
		err := c.Send(context.Background(), testAlert())

		require.NoError(t, err)
		assert.Equal(t, int32(1), calls.Load())
		assert.Contains(t, string(body), "ops@example.com")
		assert.Contains(t, string(body), "shopify success")
	})

	t.Run("rejected by the api", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		c := notify.EmailChannel{APIKey: "bad", From: "alerts@example.com", To: []string{"ops@example.com"}, Host: server.URL}
		err := c.Send(context.Background(), testAlert())

		assert.Error(t, err)
	})

	t.Run("no recipients", func(t *testing.T) {
		err := notify.EmailChannel{APIKey: "k"}.Send(context.Background(), testAlert())
		assert.Error(t, err)
	})
}

func TestSMSChannel_Send(t *testing.T) {
	assert.NoError(t, notify.SMSChannel{Logger: zerolog.Nop()}.Send(context.Background(), testAlert()))
}

package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/marcelsud/webhook-hub/monitoring"
)

// WebhookChannel POSTs the alert as JSON to a URL
type WebhookChannel struct {
	url    string
	client *resty.Client
}

// NewWebhookChannel creates a webhook channel with a bounded timeout and two retries
func NewWebhookChannel(url string) *WebhookChannel {
	client := resty.New().
		SetTimeout(10*time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500*time.Millisecond).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "webhook-hub/alerts")
	return &WebhookChannel{url: url, client: client}
}

// Send implements Channel
func (c *WebhookChannel) Send(ctx context.Context, alert monitoring.Alert) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"type":  monitoring.EventAlert,
			"alert": alert,
		}).
		Post(c.url)
	if err != nil {
		return fmt.Errorf("posting alert: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("alert webhook returned status %d", resp.StatusCode())
	}
	return nil
}

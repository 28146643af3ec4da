package notify

import (
	"context"
	"fmt"

	"github.com/marcelsud/webhook-hub/monitoring"
	"github.com/slack-go/slack"
)

var severityColors = map[monitoring.Severity]string{
	monitoring.Low:      "#4CAF50",
	monitoring.Medium:   "#FDEF19",
	monitoring.High:     "#FF9800",
	monitoring.Critical: "#CC0000",
}

// SlackChannel posts alerts to an incoming webhook
type SlackChannel struct {
	WebhookURL string
}

// Send implements Channel
func (c SlackChannel) Send(ctx context.Context, alert monitoring.Alert) error {
	msg := &slack.WebhookMessage{
		Text: subject(alert),
		Attachments: []slack.Attachment{{
			Color: severityColors[alert.Severity],
			Text:  alert.Message,
			Fields: []slack.AttachmentField{
				{Title: "Metric", Value: alert.Metric.String(), Short: true},
				{Title: "Severity", Value: alert.Severity.String(), Short: true},
				{Title: "Current value", Value: fmt.Sprintf("%.2f", alert.CurrentValue), Short: true},
				{Title: "Threshold", Value: fmt.Sprintf("%.2f", alert.Threshold), Short: true},
			},
		}},
	}
	if err := slack.PostWebhookContext(ctx, c.WebhookURL, msg); err != nil {
		return fmt.Errorf("posting to slack: %w", err)
	}
	return nil
}

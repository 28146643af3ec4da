package notify

import (
	"context"
	"fmt"

	"github.com/marcelsud/webhook-hub/monitoring"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridSendPath = "/v3/mail/send"
)

// EmailChannel sends alerts through SendGrid
type EmailChannel struct {
	APIKey string
	From   string
	To     []string
	// Host overrides the SendGrid API host
	Host string
}

// Send implements Channel
func (c EmailChannel) Send(ctx context.Context, alert monitoring.Alert) error {
	if len(c.To) == 0 {
		return fmt.Errorf("no email recipients configured")
	}

	m := mail.NewV3Mail()
	m.SetFrom(mail.NewEmail("Webhook Hub", c.From))
	m.Subject = subject(alert)

	p := mail.NewPersonalization()
	for _, to := range c.To {
		p.AddTos(mail.NewEmail("", to))
	}
	m.AddPersonalizations(p)
	m.AddContent(mail.NewContent("text/plain", body(alert)))

	host := c.Host
	if host == "" {
		host = sendgridHost
	}
	request := sendgrid.GetRequest(c.APIKey, sendgridSendPath, host)
	request.Method = "POST"
	request.Body = mail.GetRequestBody(m)

	response, err := sendgrid.MakeRequestRetry(request)
	if err != nil {
		return fmt.Errorf("sending email: %w", err)
	}
	if response.StatusCode >= 300 {
		return fmt.Errorf("sendgrid returned status %d: %s", response.StatusCode, response.Body)
	}
	return nil
}

func body(alert monitoring.Alert) string {
	return fmt.Sprintf("%s\n\nMetric: %s\nCurrent value: %.2f\nThreshold: %.2f\nSeverity: %s\nCreated at: %s\nAlert ID: %s\n",
		alert.Message, alert.Metric, alert.CurrentValue, alert.Threshold, alert.Severity,
		alert.CreatedAt.Format("2006-01-02 15:04:05 MST"), alert.ID)
}

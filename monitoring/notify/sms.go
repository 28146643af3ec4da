package notify

import (
	"context"

	"github.com/marcelsud/webhook-hub/monitoring"
	"github.com/rs/zerolog"
)

// SMSChannel has no gateway; it records what would have been sent
type SMSChannel struct {
	Logger zerolog.Logger
}

// Send implements Channel
func (c SMSChannel) Send(ctx context.Context, alert monitoring.Alert) error {
	c.Logger.Info().
		Str("alert_id", alert.ID).
		Str("severity", alert.Severity.String()).
		Msg("sms notification: " + subject(alert))
	return nil
}

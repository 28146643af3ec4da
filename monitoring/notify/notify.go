package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/marcelsud/webhook-hub/monitoring"
	"github.com/rs/zerolog"
)

// Channel names accepted in alert rules
const (
	Email   = "email"
	Slack   = "slack"
	Webhook = "webhook"
	SMS     = "sms"
)

// Channel delivers one alert to one destination
type Channel interface {
	Send(ctx context.Context, alert monitoring.Alert) error
}

/* Dispatcher fans an alert out to the channels a rule names
 * Unknown or unconfigured channels are skipped; delivery errors are logged, never returned
 */
type Dispatcher struct {
	channels map[string]Channel
	logger   zerolog.Logger
}

// NewDispatcher creates a dispatcher with no channels
func NewDispatcher(logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{channels: make(map[string]Channel), logger: logger}
}

// Register binds a channel implementation to a name
func (d *Dispatcher) Register(name string, c Channel) {
	d.channels[strings.ToLower(name)] = c
}

// Channels returns the registered channel names
func (d *Dispatcher) Channels() []string {
	names := make([]string, 0, len(d.channels))
	for name := range d.channels {
		names = append(names, name)
	}
	return names
}

// Notify implements monitoring.Notifier
func (d *Dispatcher) Notify(ctx context.Context, channels []string, alert monitoring.Alert) {
	for _, name := range channels {
		c, ok := d.channels[strings.ToLower(name)]
		if !ok {
			d.logger.Debug().Str("channel", name).Str("alert_id", alert.ID).Msg("notification channel not configured")
			continue
		}
		if err := c.Send(ctx, alert); err != nil {
			d.logger.Error().Err(err).Str("channel", name).Str("alert_id", alert.ID).Msg("sending alert notification")
		}
	}
}

func subject(alert monitoring.Alert) string {
	scope := "all providers"
	if alert.Provider != "" {
		scope = alert.Provider
	}
	return fmt.Sprintf("[%s] Webhook alert: %s (%s)", strings.ToUpper(alert.Severity.String()), alert.RuleName, scope)
}

package providers

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/marcelsud/webhook-hub/queue"
	"github.com/marcelsud/webhook-hub/webhook/payload"
)

// ErrNotFound is returned when no configuration exists for a provider
var ErrNotFound = errors.New("provider not found")

const (
	// DefaultRateLimit is the per-minute request budget when none is configured
	DefaultRateLimit = 100
)

/* Config is the per-provider ingest configuration (webhook_configs)
 * An empty IPWhitelist permits every source and empty Events subscribes to everything
 */
type Config struct {
	Provider           string   `json:"provider" yaml:"provider"`
	Secret             string   `json:"-" yaml:"secret"`
	RateLimit          int      `json:"rate_limit" yaml:"rate_limit"`
	IPWhitelist        []string `json:"ip_whitelist" yaml:"ip_whitelist"`
	Events             []string `json:"events" yaml:"events"`
	HighPriorityEvents []string `json:"high_priority_events" yaml:"high_priority_events"`
	LowPriorityEvents  []string `json:"low_priority_events" yaml:"low_priority_events"`
	MaxRetries         int      `json:"max_retries" yaml:"max_retries"`
	Active             *bool    `json:"active,omitempty" yaml:"active"`
}

// WithDefaults fills unset numeric fields
func (c Config) WithDefaults() Config {
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = queue.DefaultMaxRetries
	}
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	return c
}

// IsActive reports whether the provider accepts webhooks; unset means active
func (c Config) IsActive() bool {
	return c.Active == nil || *c.Active
}

// Validate checks if the provider configuration is valid
func (c Config) Validate() error {
	if c.Provider == "" {
		return fmt.Errorf("provider cannot be empty")
	}
	if c.Secret == "" {
		return fmt.Errorf("secret cannot be empty for provider %s", c.Provider)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate_limit cannot be negative for provider %s", c.Provider)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative for provider %s", c.Provider)
	}
	for _, entry := range c.IPWhitelist {
		if _, _, err := net.ParseCIDR(entry); err == nil {
			continue
		}
		if net.ParseIP(entry) == nil {
			return fmt.Errorf("invalid ip_whitelist entry '%s' for provider %s", entry, c.Provider)
		}
	}
	lists := [][]string{c.Events, c.HighPriorityEvents, c.LowPriorityEvents}
	for _, list := range lists {
		for _, eventType := range list {
			if err := payload.ValidateEventType(eventType); err != nil {
				return fmt.Errorf("invalid event type '%s' for provider %s: %w", eventType, c.Provider, err)
			}
		}
	}
	return nil
}

// AllowsIP checks the source address against the allow-list of IPs and CIDR ranges
func (c Config) AllowsIP(source string) bool {
	if len(c.IPWhitelist) == 0 {
		return true
	}
	ip := net.ParseIP(strings.TrimSpace(source))
	for _, entry := range c.IPWhitelist {
		if entry == source {
			return true
		}
		if ip == nil {
			continue
		}
		if _, network, err := net.ParseCIDR(entry); err == nil && network.Contains(ip) {
			return true
		}
		if allowed := net.ParseIP(entry); allowed != nil && allowed.Equal(ip) {
			return true
		}
	}
	return false
}

// Subscribes reports whether the provider wants events of this type
func (c Config) Subscribes(eventType string) bool {
	return payload.Matches(eventType, c.Events)
}

// PriorityFor classifies an event type into a queue lane
func (c Config) PriorityFor(eventType string) queue.Priority {
	if len(c.HighPriorityEvents) > 0 && payload.Matches(eventType, c.HighPriorityEvents) {
		return queue.High
	}
	if len(c.LowPriorityEvents) > 0 && payload.Matches(eventType, c.LowPriorityEvents) {
		return queue.Low
	}
	return queue.Medium
}

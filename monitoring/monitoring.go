package monitoring

import (
	"fmt"
	"time"
)

// Hub event types
const (
	EventAlert         = "webhook-alert"
	EventMetricsUpdate = "webhook-metrics-update"
)

// Metric is the quantity an alert rule watches
type Metric int

const (
	SuccessRate Metric = iota + 1
	ErrorRate
	ProcessingTime
	EventVolume
)

// String returns the string representation of the metric
func (m Metric) String() string {
	switch m {
	case SuccessRate:
		return "success_rate"
	case ErrorRate:
		return "error_rate"
	case ProcessingTime:
		return "processing_time"
	case EventVolume:
		return "event_volume"
	default:
		return "unknown"
	}
}

// NewMetric creates a Metric from a string; unknown names yield an invalid metric
func NewMetric(s string) Metric {
	switch s {
	case "success_rate":
		return SuccessRate
	case "error_rate":
		return ErrorRate
	case "processing_time":
		return ProcessingTime
	case "event_volume":
		return EventVolume
	default:
		return 0
	}
}

// Validate checks if the metric is valid
func (m Metric) Validate() error {
	if m < SuccessRate || m > EventVolume {
		return fmt.Errorf("invalid metric: %d", m)
	}
	return nil
}

func (m Metric) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Metric) UnmarshalText(b []byte) error {
	*m = NewMetric(string(b))
	return m.Validate()
}

// Comparison is how a metric value is compared with a rule threshold
type Comparison int

const (
	LessThan Comparison = iota + 1
	GreaterThan
	Equals
)

// String returns the string representation of the comparison
func (c Comparison) String() string {
	switch c {
	case LessThan:
		return "less_than"
	case GreaterThan:
		return "greater_than"
	case Equals:
		return "equals"
	default:
		return "unknown"
	}
}

// NewComparison creates a Comparison from a string
func NewComparison(s string) Comparison {
	switch s {
	case "less_than":
		return LessThan
	case "greater_than":
		return GreaterThan
	case "equals":
		return Equals
	default:
		return 0
	}
}

// Validate checks if the comparison is valid
func (c Comparison) Validate() error {
	if c < LessThan || c > Equals {
		return fmt.Errorf("invalid comparison: %d", c)
	}
	return nil
}

func (c Comparison) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Comparison) UnmarshalText(b []byte) error {
	*c = NewComparison(string(b))
	return c.Validate()
}

// Holds reports whether value satisfies the comparison against threshold
func (c Comparison) Holds(value, threshold float64) bool {
	switch c {
	case LessThan:
		return value < threshold
	case GreaterThan:
		return value > threshold
	case Equals:
		return value == threshold
	default:
		return false
	}
}

// Severity grades an alert
type Severity int

const (
	Low Severity = iota + 1
	Medium
	High
	Critical
)

// String returns the string representation of the severity
func (s Severity) String() string {
	switch s {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	case Critical:
		return "critical"
	default:
		return "unknown"
	}
}

// NewSeverity creates a Severity from a string
func NewSeverity(s string) Severity {
	switch s {
	case "low":
		return Low
	case "medium":
		return Medium
	case "high":
		return High
	case "critical":
		return Critical
	default:
		return Low
	}
}

func (s Severity) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Severity) UnmarshalText(b []byte) error {
	*s = NewSeverity(string(b))
	return nil
}

// SeverityFor grades a breaching value with fixed per-metric thresholds
func SeverityFor(m Metric, value float64) Severity {
	switch m {
	case SuccessRate:
		switch {
		case value < 50:
			return Critical
		case value < 75:
			return High
		case value < 90:
			return Medium
		}
		return Low
	case ErrorRate:
		switch {
		case value > 50:
			return Critical
		case value > 25:
			return High
		case value > 10:
			return Medium
		}
		return Low
	case ProcessingTime:
		switch {
		case value > 10000:
			return Critical
		case value > 5000:
			return High
		case value > 2000:
			return Medium
		}
		return Low
	default:
		return Medium
	}
}

/* Rule is an operator-defined alert condition (webhook_alert_rules)
 * An empty Provider scopes the rule to every provider
 */
type Rule struct {
	ID                   string     `json:"id"`
	Name                 string     `json:"name"`
	Provider             string     `json:"provider,omitempty"`
	Metric               Metric     `json:"metric"`
	Threshold            float64    `json:"threshold"`
	Comparison           Comparison `json:"comparison"`
	TimeWindowMinutes    int        `json:"time_window_minutes"`
	Enabled              bool       `json:"enabled"`
	NotificationChannels []string   `json:"notification_channels"`
	CreatedAt            time.Time  `json:"created_at"`
}

// Validate checks if the rule is valid
func (r Rule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if err := r.Metric.Validate(); err != nil {
		return err
	}
	if err := r.Comparison.Validate(); err != nil {
		return err
	}
	if r.TimeWindowMinutes < 1 {
		return fmt.Errorf("time_window_minutes must be at least 1")
	}
	return nil
}

// Urgent rules are also evaluated on every new event
func (r Rule) Urgent() bool {
	return r.TimeWindowMinutes <= 1
}

// Alert is a fired rule (webhook_alerts)
type Alert struct {
	ID             string     `json:"id"`
	RuleID         string     `json:"rule_id"`
	RuleName       string     `json:"rule_name"`
	Provider       string     `json:"provider,omitempty"`
	Metric         Metric     `json:"metric"`
	CurrentValue   float64    `json:"current_value"`
	Threshold      float64    `json:"threshold"`
	Severity       Severity   `json:"severity"`
	Message        string     `json:"message"`
	Acknowledged   bool       `json:"acknowledged"`
	CreatedAt      time.Time  `json:"created_at"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
}

// AlertFilter narrows alert listings
type AlertFilter struct {
	Unacknowledged bool
	Provider       string
	Limit          int
}

// Metrics is one provider's rolling-window snapshot (webhook_metrics)
type Metrics struct {
	Provider              string     `json:"provider"`
	WindowStart           time.Time  `json:"window_start"`
	WindowEnd             time.Time  `json:"window_end"`
	TotalEvents           int        `json:"total_events"`
	SuccessfulEvents      int        `json:"successful_events"`
	FailedEvents          int        `json:"failed_events"`
	SuccessRate           float64    `json:"success_rate"`
	ErrorRate             float64    `json:"error_rate"`
	AverageProcessingTime float64    `json:"average_processing_time"`
	EventsPerMinute       float64    `json:"events_per_minute"`
	LastEventAt           *time.Time `json:"last_event_at,omitempty"`
}

// DailyReport aggregates one provider's events over a UTC day (webhook_daily_reports)
type DailyReport struct {
	Date                  time.Time      `json:"date"`
	Provider              string         `json:"provider"`
	TotalEvents           int            `json:"total_events"`
	SuccessfulEvents      int            `json:"successful_events"`
	FailedEvents          int            `json:"failed_events"`
	PendingEvents         int            `json:"pending_events"`
	SuccessRate           float64        `json:"success_rate"`
	AverageProcessingTime float64        `json:"average_processing_time"`
	EventTypes            map[string]int `json:"event_types"`
}

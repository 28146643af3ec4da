package monitoring

import (
	"context"
	"time"

	"github.com/marcelsud/webhook-hub/webhook"
)

// EventSource reads and expires webhook events
type EventSource interface {
	// EventsBetween returns events received in [from, to]; an empty provider means all
	EventsBetween(ctx context.Context, provider string, from, to time.Time) ([]webhook.Event, error)
	DeleteEventsBefore(ctx context.Context, before time.Time) (int64, error)
}

// RuleStore persists alert rules
type RuleStore interface {
	Rules(ctx context.Context) ([]Rule, error)
	EnabledRules(ctx context.Context) ([]Rule, error)
	SaveRule(ctx context.Context, rule Rule) error
}

// AlertStore persists alerts
type AlertStore interface {
	// HasUnacknowledgedAlert reports whether the rule fired at or after since and is still unacknowledged
	HasUnacknowledgedAlert(ctx context.Context, ruleID string, since time.Time) (bool, error)
	SaveAlert(ctx context.Context, alert Alert) error
	Alerts(ctx context.Context, filter AlertFilter) ([]Alert, error)
	AcknowledgeAlert(ctx context.Context, id string, at time.Time) error
}

// ReportStore persists metric snapshots and daily reports
type ReportStore interface {
	SaveMetrics(ctx context.Context, metrics []Metrics) error
	DeleteMetricsBefore(ctx context.Context, before time.Time) (int64, error)
	SaveDailyReport(ctx context.Context, report DailyReport) error
}

// Store combines every persistence concern of the monitoring service
type Store interface {
	EventSource
	RuleStore
	AlertStore
	ReportStore
}

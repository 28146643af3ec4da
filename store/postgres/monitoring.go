package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/marcelsud/webhook-hub/monitoring"
)

const ruleColumns = `id, name, provider, metric, threshold, comparison, time_window_minutes, enabled, notification_channels, created_at`

// Rules returns every alert rule
func (s *Store) Rules(ctx context.Context) ([]monitoring.Rule, error) {
	return s.queryRules(ctx, "SELECT "+ruleColumns+" FROM webhook_alert_rules ORDER BY created_at")
}

// EnabledRules returns the rules evaluated each cycle
func (s *Store) EnabledRules(ctx context.Context) ([]monitoring.Rule, error) {
	return s.queryRules(ctx, "SELECT "+ruleColumns+" FROM webhook_alert_rules WHERE enabled = TRUE ORDER BY created_at")
}

// SaveRule inserts or replaces a rule
func (s *Store) SaveRule(ctx context.Context, r monitoring.Rule) error {
	query := `
		INSERT INTO webhook_alert_rules (` + ruleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, provider = EXCLUDED.provider, metric = EXCLUDED.metric,
			threshold = EXCLUDED.threshold, comparison = EXCLUDED.comparison,
			time_window_minutes = EXCLUDED.time_window_minutes, enabled = EXCLUDED.enabled,
			notification_channels = EXCLUDED.notification_channels
	`
	_, err := s.DB.ExecContext(ctx, query,
		r.ID, r.Name, r.Provider, r.Metric.String(), r.Threshold, r.Comparison.String(),
		r.TimeWindowMinutes, r.Enabled, pq.Array(nonNil(r.NotificationChannels)), r.CreatedAt)
	if err != nil {
		return fmt.Errorf("saving rule: %w", err)
	}
	return nil
}

func (s *Store) queryRules(ctx context.Context, query string) ([]monitoring.Rule, error) {
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("selecting rules: %w", err)
	}
	defer rows.Close()

	rules := make([]monitoring.Rule, 0)
	for rows.Next() {
		var (
			r                  monitoring.Rule
			metric, comparison string
			channels           []string
		)
		err := rows.Scan(&r.ID, &r.Name, &r.Provider, &metric, &r.Threshold, &comparison,
			&r.TimeWindowMinutes, &r.Enabled, pq.Array(&channels), &r.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning rule: %w", err)
		}
		r.Metric = monitoring.NewMetric(metric)
		r.Comparison = monitoring.NewComparison(comparison)
		r.NotificationChannels = channels
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rules: %w", err)
	}
	return rules, nil
}

// HasUnacknowledgedAlert reports whether the rule fired at or after since and is still open
func (s *Store) HasUnacknowledgedAlert(ctx context.Context, ruleID string, since time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM webhook_alerts
			WHERE rule_id = $1 AND acknowledged = FALSE AND created_at >= $2
		)
	`
	var exists bool
	if err := s.DB.QueryRowContext(ctx, query, ruleID, since).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking alerts: %w", err)
	}
	return exists, nil
}

// SaveAlert inserts an alert
func (s *Store) SaveAlert(ctx context.Context, a monitoring.Alert) error {
	query := `
		INSERT INTO webhook_alerts (id, rule_id, rule_name, provider, metric, current_value, threshold, severity, message, acknowledged, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := s.DB.ExecContext(ctx, query,
		a.ID, a.RuleID, a.RuleName, a.Provider, a.Metric.String(), a.CurrentValue, a.Threshold,
		a.Severity.String(), a.Message, a.Acknowledged, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting alert: %w", err)
	}
	return nil
}

// Alerts returns alerts newest first
func (s *Store) Alerts(ctx context.Context, filter monitoring.AlertFilter) ([]monitoring.Alert, error) {
	query := `
		SELECT id, rule_id, rule_name, provider, metric, current_value, threshold, severity, message,
			acknowledged, created_at, acknowledged_at
		FROM webhook_alerts
		WHERE ($1 = FALSE OR acknowledged = FALSE) AND ($2 = '' OR provider = $2)
		ORDER BY created_at DESC
		LIMIT $3
	`
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.DB.QueryContext(ctx, query, filter.Unacknowledged, filter.Provider, limit)
	if err != nil {
		return nil, fmt.Errorf("selecting alerts: %w", err)
	}
	defer rows.Close()

	alerts := make([]monitoring.Alert, 0)
	for rows.Next() {
		var (
			a                monitoring.Alert
			metric, severity string
			acknowledgedAt   sql.NullTime
		)
		err := rows.Scan(&a.ID, &a.RuleID, &a.RuleName, &a.Provider, &metric, &a.CurrentValue, &a.Threshold,
			&severity, &a.Message, &a.Acknowledged, &a.CreatedAt, &acknowledgedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning alert: %w", err)
		}
		a.Metric = monitoring.NewMetric(metric)
		a.Severity = monitoring.NewSeverity(severity)
		if acknowledgedAt.Valid {
			t := acknowledgedAt.Time
			a.AcknowledgedAt = &t
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating alerts: %w", err)
	}
	return alerts, nil
}

// AcknowledgeAlert marks an alert handled
func (s *Store) AcknowledgeAlert(ctx context.Context, id string, at time.Time) error {
	result, err := s.DB.ExecContext(ctx,
		"UPDATE webhook_alerts SET acknowledged = TRUE, acknowledged_at = $2 WHERE id = $1", id, at)
	if err != nil {
		return fmt.Errorf("acknowledging alert: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rows == 0 {
		return monitoring.ErrNotFound
	}
	return nil
}

// SaveMetrics appends snapshots in one transaction
func (s *Store) SaveMetrics(ctx context.Context, metrics []monitoring.Metrics) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	query := `
		INSERT INTO webhook_metrics (provider, window_start, window_end, total_events, successful_events, failed_events,
			success_rate, error_rate, average_processing_time, events_per_minute, last_event_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	for _, m := range metrics {
		var last sql.NullTime
		if m.LastEventAt != nil {
			last = sql.NullTime{Time: *m.LastEventAt, Valid: true}
		}
		_, err := tx.ExecContext(ctx, query,
			m.Provider, m.WindowStart, m.WindowEnd, m.TotalEvents, m.SuccessfulEvents, m.FailedEvents,
			m.SuccessRate, m.ErrorRate, m.AverageProcessingTime, m.EventsPerMinute, last)
		if err != nil {
			return fmt.Errorf("inserting metrics for %s: %w", m.Provider, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing metrics: %w", err)
	}
	return nil
}

// DeleteMetricsBefore removes snapshots whose window ended before the cutoff
func (s *Store) DeleteMetricsBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.DB.ExecContext(ctx, "DELETE FROM webhook_metrics WHERE window_end < $1", before)
	if err != nil {
		return 0, fmt.Errorf("deleting metrics: %w", err)
	}
	return result.RowsAffected()
}

// SaveDailyReport upserts the report for (date, provider)
func (s *Store) SaveDailyReport(ctx context.Context, r monitoring.DailyReport) error {
	types, err := json.Marshal(r.EventTypes)
	if err != nil {
		return fmt.Errorf("marshaling event types: %w", err)
	}

	query := `
		INSERT INTO webhook_daily_reports (date, provider, total_events, successful_events, failed_events,
			pending_events, success_rate, average_processing_time, event_types)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (date, provider) DO UPDATE SET
			total_events = EXCLUDED.total_events, successful_events = EXCLUDED.successful_events,
			failed_events = EXCLUDED.failed_events, pending_events = EXCLUDED.pending_events,
			success_rate = EXCLUDED.success_rate, average_processing_time = EXCLUDED.average_processing_time,
			event_types = EXCLUDED.event_types
	`
	_, err = s.DB.ExecContext(ctx, query,
		r.Date.Format("2006-01-02"), r.Provider, r.TotalEvents, r.SuccessfulEvents, r.FailedEvents,
		r.PendingEvents, r.SuccessRate, r.AverageProcessingTime, string(types))
	if err != nil {
		return fmt.Errorf("saving daily report: %w", err)
	}
	return nil
}

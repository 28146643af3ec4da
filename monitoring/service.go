package monitoring

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/marcelsud/webhook-hub/webhook"
	"github.com/rs/zerolog"
)

// ErrNotFound is returned when a rule or alert does not exist
var ErrNotFound = errors.New("not found")

// ErrInvalidRule is returned when a rule fails validation
var ErrInvalidRule = errors.New("invalid rule")

const (
	metricsWindow   = time.Hour
	dedupWindow     = time.Hour
	eventRetention  = 30 * 24 * time.Hour
	metricRetention = 90 * 24 * time.Hour
)

// Notifier delivers an alert to the rule's channels; failures are handled inside
type Notifier interface {
	Notify(ctx context.Context, channels []string, alert Alert)
}

// Broadcaster pushes messages to connected dashboard clients
type Broadcaster interface {
	Broadcast(eventType string, data any) int
}

// Option configures a Service
type Option func(*Service)

// WithNotifier sets the alert notifier
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithBroadcaster sets the real-time hub
func WithBroadcaster(b Broadcaster) Option {
	return func(s *Service) { s.hub = b }
}

// WithClock replaces the wall clock
func WithClock(c clockwork.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithLogger sets the logger
func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

/* Service aggregates metrics, evaluates alert rules and produces reports
 * Alert creation is serialized so the dedup check and the insert are atomic
 */
type Service struct {
	store    Store
	notifier Notifier
	hub      Broadcaster
	clock    clockwork.Clock
	logger   zerolog.Logger

	alertMu sync.Mutex
}

// NewService creates a monitoring service
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		clock:  clockwork.NewRealClock(),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecomputeMetrics snapshots every provider over the trailing hour and broadcasts the result
func (s *Service) RecomputeMetrics(ctx context.Context) ([]Metrics, error) {
	now := s.clock.Now().UTC()
	from := now.Add(-metricsWindow)

	events, err := s.store.EventsBetween(ctx, "", from, now)
	if err != nil {
		return nil, fmt.Errorf("loading events: %w", err)
	}

	byProvider := make(map[string][]webhook.Event)
	for _, e := range events {
		byProvider[e.Provider] = append(byProvider[e.Provider], e)
	}

	snapshots := make([]Metrics, 0, len(byProvider))
	for provider, evs := range byProvider {
		snapshots = append(snapshots, computeMetrics(provider, evs, from, now))
	}
	sort.Slice(snapshots, func(i, j int) bool { return snapshots[i].Provider < snapshots[j].Provider })

	if len(snapshots) > 0 {
		if err := s.store.SaveMetrics(ctx, snapshots); err != nil {
			return nil, fmt.Errorf("saving metrics: %w", err)
		}
	}

	s.broadcast(EventMetricsUpdate, map[string]any{"metrics": snapshots, "window_minutes": int(metricsWindow.Minutes())})
	return snapshots, nil
}

// EvaluateRules checks every enabled rule and returns the alerts created
func (s *Service) EvaluateRules(ctx context.Context) ([]Alert, error) {
	rules, err := s.store.EnabledRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading rules: %w", err)
	}

	var created []Alert
	for _, rule := range rules {
		alert, err := s.Evaluate(ctx, rule)
		if err != nil {
			s.logger.Error().Err(err).Str("rule_id", rule.ID).Msg("evaluating alert rule")
			continue
		}
		if alert != nil {
			created = append(created, *alert)
		}
	}
	return created, nil
}

/* EventRecorded evaluates urgent rules scoped to the event's provider
 * It implements webhook.Observer
 */
func (s *Service) EventRecorded(ctx context.Context, event webhook.Event) {
	rules, err := s.store.EnabledRules(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("loading rules for event evaluation")
		return
	}
	for _, rule := range rules {
		if !rule.Urgent() {
			continue
		}
		if rule.Provider != "" && rule.Provider != event.Provider {
			continue
		}
		if _, err := s.Evaluate(ctx, rule); err != nil {
			s.logger.Error().Err(err).Str("rule_id", rule.ID).Msg("evaluating urgent alert rule")
		}
	}
}

/* Evaluate computes the rule's metric over its window and fires an alert when the
 * condition holds and no unacknowledged alert for the rule exists within the last hour
 * Returns nil when nothing was created
 */
func (s *Service) Evaluate(ctx context.Context, rule Rule) (*Alert, error) {
	now := s.clock.Now().UTC()
	from := now.Add(-time.Duration(rule.TimeWindowMinutes) * time.Minute)

	events, err := s.store.EventsBetween(ctx, rule.Provider, from, now)
	if err != nil {
		return nil, fmt.Errorf("loading events: %w", err)
	}

	value, ok := metricValue(rule.Metric, events)
	if !ok || !rule.Comparison.Holds(value, rule.Threshold) {
		return nil, nil
	}

	s.alertMu.Lock()
	exists, err := s.store.HasUnacknowledgedAlert(ctx, rule.ID, now.Add(-dedupWindow))
	if err != nil {
		s.alertMu.Unlock()
		return nil, fmt.Errorf("checking recent alerts: %w", err)
	}
	if exists {
		s.alertMu.Unlock()
		return nil, nil
	}

	alert := Alert{
		ID:           uuid.New().String(),
		RuleID:       rule.ID,
		RuleName:     rule.Name,
		Provider:     rule.Provider,
		Metric:       rule.Metric,
		CurrentValue: value,
		Threshold:    rule.Threshold,
		Severity:     SeverityFor(rule.Metric, value),
		Message:      alertMessage(rule, value),
		CreatedAt:    now,
	}
	err = s.store.SaveAlert(ctx, alert)
	s.alertMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("saving alert: %w", err)
	}

	s.logger.Warn().
		Str("rule_id", rule.ID).
		Str("severity", alert.Severity.String()).
		Float64("value", value).
		Msg(alert.Message)

	if s.notifier != nil {
		s.notifier.Notify(ctx, rule.NotificationChannels, alert)
	}
	s.broadcast(EventAlert, alert)
	return &alert, nil
}

// GenerateDailyReport aggregates the UTC day before now, one report per provider
func (s *Service) GenerateDailyReport(ctx context.Context) ([]DailyReport, error) {
	now := s.clock.Now().UTC()
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	start := end.AddDate(0, 0, -1)

	events, err := s.store.EventsBetween(ctx, "", start, end.Add(-time.Nanosecond))
	if err != nil {
		return nil, fmt.Errorf("loading events: %w", err)
	}

	byProvider := make(map[string]*DailyReport)
	totalTime := make(map[string]int64)
	processed := make(map[string]int)
	for _, e := range events {
		r, ok := byProvider[e.Provider]
		if !ok {
			r = &DailyReport{Date: start, Provider: e.Provider, EventTypes: make(map[string]int)}
			byProvider[e.Provider] = r
		}
		r.TotalEvents++
		r.EventTypes[e.EventType]++
		switch {
		case !e.Processed:
			r.PendingEvents++
		case e.Success != nil && *e.Success:
			r.SuccessfulEvents++
		default:
			r.FailedEvents++
		}
		if e.Processed {
			processed[e.Provider]++
			totalTime[e.Provider] += e.ProcessingTimeMs
		}
	}

	reports := make([]DailyReport, 0, len(byProvider))
	for provider, r := range byProvider {
		if n := processed[provider]; n > 0 {
			r.SuccessRate = percent(r.SuccessfulEvents, n)
			r.AverageProcessingTime = float64(totalTime[provider]) / float64(n)
		}
		if err := s.store.SaveDailyReport(ctx, *r); err != nil {
			return nil, fmt.Errorf("saving daily report for %s: %w", provider, err)
		}
		reports = append(reports, *r)
	}
	sort.Slice(reports, func(i, j int) bool { return reports[i].Provider < reports[j].Provider })

	s.logger.Info().Time("date", start).Int("providers", len(reports)).Msg("daily report generated")
	return reports, nil
}

// Cleanup deletes events older than 30 days and metric snapshots older than 90 days
func (s *Service) Cleanup(ctx context.Context) (events, metrics int64, err error) {
	now := s.clock.Now().UTC()

	events, err = s.store.DeleteEventsBefore(ctx, now.Add(-eventRetention))
	if err != nil {
		return 0, 0, fmt.Errorf("deleting old events: %w", err)
	}
	metrics, err = s.store.DeleteMetricsBefore(ctx, now.Add(-metricRetention))
	if err != nil {
		return events, 0, fmt.Errorf("deleting old metrics: %w", err)
	}

	s.logger.Info().Int64("events", events).Int64("metrics", metrics).Msg("retention cleanup finished")
	return events, metrics, nil
}

// Rules lists every alert rule
func (s *Service) Rules(ctx context.Context) ([]Rule, error) {
	return s.store.Rules(ctx)
}

// SaveRule validates and stores a rule, assigning an id to new rules
func (s *Service) SaveRule(ctx context.Context, rule Rule) (Rule, error) {
	rule.Provider = strings.ToLower(rule.Provider)
	if err := rule.Validate(); err != nil {
		return Rule{}, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = s.clock.Now().UTC()
	}
	if err := s.store.SaveRule(ctx, rule); err != nil {
		return Rule{}, fmt.Errorf("saving rule: %w", err)
	}
	return rule, nil
}

// Alerts lists alerts
func (s *Service) Alerts(ctx context.Context, filter AlertFilter) ([]Alert, error) {
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	return s.store.Alerts(ctx, filter)
}

// Acknowledge marks an alert as handled, which re-enables alerting for its rule
func (s *Service) Acknowledge(ctx context.Context, id string) error {
	if err := s.store.AcknowledgeAlert(ctx, id, s.clock.Now().UTC()); err != nil {
		return fmt.Errorf("acknowledging alert: %w", err)
	}
	return nil
}

func (s *Service) broadcast(eventType string, data any) {
	if s.hub == nil {
		return
	}
	s.hub.Broadcast(eventType, data)
}

/* metricValue computes a rule metric over events
 * Rates and latency only consider processed events; with none, there is nothing to judge
 */
func metricValue(m Metric, events []webhook.Event) (float64, bool) {
	if m == EventVolume {
		return float64(len(events)), true
	}

	var processed, succeeded int
	var totalMs int64
	for _, e := range events {
		if !e.Processed {
			continue
		}
		processed++
		totalMs += e.ProcessingTimeMs
		if e.Success != nil && *e.Success {
			succeeded++
		}
	}
	if processed == 0 {
		return 0, false
	}

	switch m {
	case SuccessRate:
		return percent(succeeded, processed), true
	case ErrorRate:
		return percent(processed-succeeded, processed), true
	case ProcessingTime:
		return float64(totalMs) / float64(processed), true
	default:
		return 0, false
	}
}

func computeMetrics(provider string, events []webhook.Event, from, to time.Time) Metrics {
	m := Metrics{Provider: provider, WindowStart: from, WindowEnd: to, TotalEvents: len(events)}

	var processed int
	var totalMs int64
	for _, e := range events {
		if m.LastEventAt == nil || e.Timestamp.After(*m.LastEventAt) {
			ts := e.Timestamp
			m.LastEventAt = &ts
		}
		if !e.Processed {
			continue
		}
		processed++
		totalMs += e.ProcessingTimeMs
		if e.Success != nil && *e.Success {
			m.SuccessfulEvents++
		} else {
			m.FailedEvents++
		}
	}

	if processed > 0 {
		m.SuccessRate = percent(m.SuccessfulEvents, processed)
		m.ErrorRate = percent(m.FailedEvents, processed)
		m.AverageProcessingTime = float64(totalMs) / float64(processed)
	}
	m.EventsPerMinute = float64(len(events)) / to.Sub(from).Minutes()
	return m
}

func percent(part, whole int) float64 {
	return float64(part) / float64(whole) * 100
}

func alertMessage(rule Rule, value float64) string {
	scope := "all providers"
	if rule.Provider != "" {
		scope = rule.Provider
	}
	return fmt.Sprintf("%s: %s is %.2f (%s %.2f) over %d minutes for %s",
		rule.Name, rule.Metric, value, strings.ReplaceAll(rule.Comparison.String(), "_", " "),
		rule.Threshold, rule.TimeWindowMinutes, scope)
}

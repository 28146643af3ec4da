package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/marcelsud/webhook-hub/monitoring"
	"github.com/marcelsud/webhook-hub/providers"
	"github.com/marcelsud/webhook-hub/webhook"
)

/* In-process record store
 * Implements webhook.Repository, monitoring.Store and the broadcast recorder
 * Suitable for development and tests; nothing survives a restart
 */

// BroadcastLog is one recorded broadcast
type BroadcastLog struct {
	EventType  string
	Data       any
	Recipients int
	CreatedAt  time.Time
}

type Store struct {
	mu          sync.RWMutex
	events      map[string]webhook.Event
	order       []string
	errors      []webhook.ErrorRecord
	deadLetters []webhook.DeadLetterRecord
	rules       map[string]monitoring.Rule
	alerts      []monitoring.Alert
	metrics     []monitoring.Metrics
	reports     map[string]monitoring.DailyReport
	broadcasts  []BroadcastLog
	configs     map[string]providers.Config
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		events:  make(map[string]webhook.Event),
		rules:   make(map[string]monitoring.Rule),
		reports: make(map[string]monitoring.DailyReport),
		configs: make(map[string]providers.Config),
	}
}

// Store inserts an event
func (s *Store) Store(ctx context.Context, event webhook.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[event.ID]; ok {
		return fmt.Errorf("event %s already exists", event.ID)
	}
	s.events[event.ID] = event
	s.order = append(s.order, event.ID)
	return nil
}

// Get returns an event by id
func (s *Store) Get(ctx context.Context, id string) (webhook.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.events[id]
	if !ok {
		return webhook.Event{}, webhook.ErrNotFound
	}
	return e, nil
}

// List returns events newest first
func (s *Store) List(ctx context.Context, filter webhook.Filter) ([]webhook.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]webhook.Event, 0)
	for i := len(s.order) - 1; i >= 0; i-- {
		e, ok := s.events[s.order[i]]
		if !ok {
			continue
		}
		if filter.Provider != "" && e.Provider != filter.Provider {
			continue
		}
		if filter.EventType != "" && e.EventType != filter.EventType {
			continue
		}
		if filter.Status != 0 && e.Status() != filter.Status {
			continue
		}
		out = append(out, e)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

// MarkProcessed sets the outcome once
func (s *Store) MarkProcessed(ctx context.Context, c webhook.Completion) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[c.ID]
	if !ok {
		return false, webhook.ErrNotFound
	}
	if e.Processed {
		return false, nil
	}
	success := c.Success
	processedAt := c.ProcessedAt
	e.Processed = true
	e.Success = &success
	e.RetryCount = c.RetryCount
	e.ErrorMessage = c.Error
	e.ProcessingTimeMs = c.ProcessingTime.Milliseconds()
	e.ProcessedAt = &processedAt
	s.events[c.ID] = e
	return true, nil
}

// RecordAttempt updates retry bookkeeping of an unprocessed event
func (s *Store) RecordAttempt(ctx context.Context, id string, retryCount int, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return webhook.ErrNotFound
	}
	if e.Processed {
		return nil
	}
	e.RetryCount = retryCount
	e.ErrorMessage = errMsg
	s.events[id] = e
	return nil
}

// Reopen clears the outcome of a failed event so a replay can process it again
func (s *Store) Reopen(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return false, webhook.ErrNotFound
	}
	if !e.Processed || e.Success == nil || *e.Success {
		return false, nil
	}
	e.Processed = false
	e.Success = nil
	e.RetryCount = 0
	e.ProcessedAt = nil
	e.ProcessingTimeMs = 0
	s.events[id] = e
	return true, nil
}

// RecordError appends to the error log
func (s *Store) RecordError(ctx context.Context, rec webhook.ErrorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, rec)
	return nil
}

// Errors returns the error log
func (s *Store) Errors() []webhook.ErrorRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]webhook.ErrorRecord(nil), s.errors...)
}

// ArchiveDeadLetter appends to the dead-letter archive
func (s *Store) ArchiveDeadLetter(ctx context.Context, rec webhook.DeadLetterRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deadLetters = append(s.deadLetters, rec)
	return nil
}

// DeadLetterRecords returns the archive
func (s *Store) DeadLetterRecords() []webhook.DeadLetterRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]webhook.DeadLetterRecord(nil), s.deadLetters...)
}

// EventsBetween returns events received in [from, to]
func (s *Store) EventsBetween(ctx context.Context, provider string, from, to time.Time) ([]webhook.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []webhook.Event
	for _, id := range s.order {
		e, ok := s.events[id]
		if !ok {
			continue
		}
		if provider != "" && e.Provider != provider {
			continue
		}
		if e.Timestamp.Before(from) || e.Timestamp.After(to) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// DeleteEventsBefore removes events received before the cutoff
func (s *Store) DeleteEventsBefore(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	kept := s.order[:0]
	for _, id := range s.order {
		if s.events[id].Timestamp.Before(before) {
			delete(s.events, id)
			n++
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
	return n, nil
}

// Rules returns every rule sorted by creation time
func (s *Store) Rules(ctx context.Context) ([]monitoring.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]monitoring.Rule, 0, len(s.rules))
	for _, r := range s.rules {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// EnabledRules returns enabled rules
func (s *Store) EnabledRules(ctx context.Context) ([]monitoring.Rule, error) {
	all, _ := s.Rules(ctx)
	out := all[:0]
	for _, r := range all {
		if r.Enabled {
			out = append(out, r)
		}
	}
	return out, nil
}

// SaveRule inserts or replaces a rule
func (s *Store) SaveRule(ctx context.Context, rule monitoring.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[rule.ID] = rule
	return nil
}

// HasUnacknowledgedAlert reports an unacknowledged alert for the rule created at or after since
func (s *Store) HasUnacknowledgedAlert(ctx context.Context, ruleID string, since time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.alerts {
		if a.RuleID == ruleID && !a.Acknowledged && !a.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

// SaveAlert appends an alert
func (s *Store) SaveAlert(ctx context.Context, alert monitoring.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, alert)
	return nil
}

// Alerts returns alerts newest first
func (s *Store) Alerts(ctx context.Context, filter monitoring.AlertFilter) ([]monitoring.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]monitoring.Alert, 0)
	for i := len(s.alerts) - 1; i >= 0; i-- {
		a := s.alerts[i]
		if filter.Unacknowledged && a.Acknowledged {
			continue
		}
		if filter.Provider != "" && a.Provider != filter.Provider {
			continue
		}
		out = append(out, a)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

// AcknowledgeAlert marks an alert handled
func (s *Store) AcknowledgeAlert(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.alerts {
		if s.alerts[i].ID == id {
			s.alerts[i].Acknowledged = true
			s.alerts[i].AcknowledgedAt = &at
			return nil
		}
	}
	return monitoring.ErrNotFound
}

// SaveMetrics appends metric snapshots
func (s *Store) SaveMetrics(ctx context.Context, metrics []monitoring.Metrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = append(s.metrics, metrics...)
	return nil
}

// Metrics returns every stored snapshot
func (s *Store) Metrics() []monitoring.Metrics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]monitoring.Metrics(nil), s.metrics...)
}

// DeleteMetricsBefore removes snapshots whose window ended before the cutoff
func (s *Store) DeleteMetricsBefore(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	kept := s.metrics[:0]
	for _, m := range s.metrics {
		if m.WindowEnd.Before(before) {
			n++
			continue
		}
		kept = append(kept, m)
	}
	s.metrics = kept
	return n, nil
}

// SaveDailyReport upserts a report by (date, provider)
func (s *Store) SaveDailyReport(ctx context.Context, report monitoring.DailyReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[report.Date.Format("2006-01-02")+"/"+report.Provider] = report
	return nil
}

// DailyReports returns stored reports
func (s *Store) DailyReports() []monitoring.DailyReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]monitoring.DailyReport, 0, len(s.reports))
	for _, r := range s.reports {
		out = append(out, r)
	}
	return out
}

// RecordBroadcast appends a broadcast log entry
func (s *Store) RecordBroadcast(ctx context.Context, eventType string, data any, recipients int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcasts = append(s.broadcasts, BroadcastLog{EventType: eventType, Data: data, Recipients: recipients, CreatedAt: time.Now().UTC()})
	return nil
}

// Broadcasts returns the broadcast log
func (s *Store) Broadcasts() []BroadcastLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]BroadcastLog(nil), s.broadcasts...)
}

// SaveConfig upserts a provider configuration
func (s *Store) SaveConfig(ctx context.Context, c providers.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[c.Provider] = c
	return nil
}

// Config returns an active provider configuration
func (s *Store) Config(ctx context.Context, provider string) (providers.Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.configs[provider]
	if !ok || !c.IsActive() {
		return providers.Config{}, fmt.Errorf("%w: %s", providers.ErrNotFound, provider)
	}
	return c, nil
}

// Configs returns every provider configuration
func (s *Store) Configs(ctx context.Context) ([]providers.Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]providers.Config, 0, len(s.configs))
	for _, c := range s.configs {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Provider < out[j].Provider })
	return out, nil
}

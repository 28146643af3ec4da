package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/marcelsud/webhook-hub/webhook"
)

const eventColumns = `id, provider, event_type, payload, signature, timestamp, source_ip, user_agent,
		processed, success, retry_count, error_message, processing_time_ms, processed_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (webhook.Event, error) {
	var (
		e           webhook.Event
		payload     []byte
		success     sql.NullBool
		processedAt sql.NullTime
	)
	err := row.Scan(
		&e.ID, &e.Provider, &e.EventType, &payload, &e.Signature, &e.Timestamp, &e.SourceIP, &e.UserAgent,
		&e.Processed, &success, &e.RetryCount, &e.ErrorMessage, &e.ProcessingTimeMs, &processedAt,
	)
	if err != nil {
		return webhook.Event{}, err
	}
	e.Payload = payload
	if success.Valid {
		v := success.Bool
		e.Success = &v
	}
	if processedAt.Valid {
		t := processedAt.Time.UTC()
		e.ProcessedAt = &t
	}
	e.Timestamp = e.Timestamp.UTC()
	return e, nil
}

// Store inserts a new event
func (s *Store) Store(ctx context.Context, e webhook.Event) error {
	query := `
		INSERT INTO webhook_events (id, provider, event_type, payload, signature, timestamp, source_ip, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.DB.ExecContext(ctx, query,
		e.ID, e.Provider, e.EventType, string(e.Payload), e.Signature, e.Timestamp, e.SourceIP, e.UserAgent)
	if err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}
	return nil
}

// Get returns an event by id
func (s *Store) Get(ctx context.Context, id string) (webhook.Event, error) {
	query := "SELECT " + eventColumns + " FROM webhook_events WHERE id = $1"

	e, err := scanEvent(s.DB.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return webhook.Event{}, webhook.ErrNotFound
	}
	if err != nil {
		return webhook.Event{}, fmt.Errorf("selecting event: %w", err)
	}
	return e, nil
}

// List returns events newest first
func (s *Store) List(ctx context.Context, filter webhook.Filter) ([]webhook.Event, error) {
	var (
		where []string
		args  []any
	)
	if filter.Provider != "" {
		args = append(args, filter.Provider)
		where = append(where, fmt.Sprintf("provider = $%d", len(args)))
	}
	if filter.EventType != "" {
		args = append(args, filter.EventType)
		where = append(where, fmt.Sprintf("event_type = $%d", len(args)))
	}
	switch filter.Status {
	case webhook.Pending:
		where = append(where, "processed = FALSE AND retry_count = 0")
	case webhook.Retrying:
		where = append(where, "processed = FALSE AND retry_count > 0")
	case webhook.Succeeded:
		where = append(where, "processed = TRUE AND success = TRUE")
	case webhook.Failed:
		where = append(where, "processed = TRUE AND success IS NOT TRUE")
	}

	query := "SELECT " + eventColumns + " FROM webhook_events"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY timestamp DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	return s.queryEvents(ctx, query, args...)
}

// MarkProcessed records the outcome unless the event was already processed
func (s *Store) MarkProcessed(ctx context.Context, c webhook.Completion) (bool, error) {
	query := `
		UPDATE webhook_events
		SET processed = TRUE, success = $2, retry_count = $3, error_message = $4,
			processing_time_ms = $5, processed_at = $6
		WHERE id = $1 AND processed = FALSE
	`
	result, err := s.DB.ExecContext(ctx, query,
		c.ID, c.Success, c.RetryCount, c.Error, c.ProcessingTime.Milliseconds(), c.ProcessedAt)
	if err != nil {
		return false, fmt.Errorf("marking event processed: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("getting rows affected: %w", err)
	}
	if rows == 1 {
		return true, nil
	}

	var exists bool
	if err := s.DB.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM webhook_events WHERE id = $1)", c.ID).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking event: %w", err)
	}
	if !exists {
		return false, webhook.ErrNotFound
	}
	return false, nil
}

// Reopen clears the outcome of a failed event so a replay can process it again
func (s *Store) Reopen(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE webhook_events
		SET processed = FALSE, success = NULL, retry_count = 0,
			processing_time_ms = 0, processed_at = NULL
		WHERE id = $1 AND processed = TRUE AND success = FALSE
	`
	result, err := s.DB.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("reopening event: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("getting rows affected: %w", err)
	}
	return rows == 1, nil
}

// RecordAttempt stores retry bookkeeping for an event still in flight
func (s *Store) RecordAttempt(ctx context.Context, id string, retryCount int, errMsg string) error {
	query := `
		UPDATE webhook_events
		SET retry_count = $2, error_message = $3
		WHERE id = $1 AND processed = FALSE
	`
	if _, err := s.DB.ExecContext(ctx, query, id, retryCount, errMsg); err != nil {
		return fmt.Errorf("recording attempt: %w", err)
	}
	return nil
}

// RecordError appends to webhook_errors
func (s *Store) RecordError(ctx context.Context, rec webhook.ErrorRecord) error {
	query := `
		INSERT INTO webhook_errors (provider, event_type, event_id, message, stack, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.DB.ExecContext(ctx, query,
		rec.Provider, rec.EventType, rec.EventID, rec.Message, rec.Stack, nullJSON(rec.Payload), rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting error record: %w", err)
	}
	return nil
}

// ArchiveDeadLetter appends to webhook_dead_letter
func (s *Store) ArchiveDeadLetter(ctx context.Context, rec webhook.DeadLetterRecord) error {
	query := `
		INSERT INTO webhook_dead_letter (event_id, provider, event_type, payload, priority, reason, stack, retry_count, failed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.DB.ExecContext(ctx, query,
		rec.EventID, rec.Provider, rec.EventType, nullJSON(rec.Payload), rec.Priority, rec.Reason, rec.Stack, rec.RetryCount, rec.FailedAt)
	if err != nil {
		return fmt.Errorf("archiving dead letter: %w", err)
	}
	return nil
}

// EventsBetween returns events received in [from, to]; an empty provider means all
func (s *Store) EventsBetween(ctx context.Context, provider string, from, to time.Time) ([]webhook.Event, error) {
	if provider == "" {
		query := "SELECT " + eventColumns + " FROM webhook_events WHERE timestamp BETWEEN $1 AND $2 ORDER BY timestamp"
		return s.queryEvents(ctx, query, from, to)
	}
	query := "SELECT " + eventColumns + " FROM webhook_events WHERE provider = $1 AND timestamp BETWEEN $2 AND $3 ORDER BY timestamp"
	return s.queryEvents(ctx, query, provider, from, to)
}

// DeleteEventsBefore removes events received before the cutoff
func (s *Store) DeleteEventsBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.DB.ExecContext(ctx, "DELETE FROM webhook_events WHERE timestamp < $1", before)
	if err != nil {
		return 0, fmt.Errorf("deleting events: %w", err)
	}
	return result.RowsAffected()
}

func (s *Store) queryEvents(ctx context.Context, query string, args ...any) ([]webhook.Event, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("selecting events: %w", err)
	}
	defer rows.Close()

	events := make([]webhook.Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating events: %w", err)
	}
	return events, nil
}

package postgres

import (
	"context"
	"encoding/json"
	"fmt"
)

// RecordBroadcast appends to webhook_broadcast_logs
func (s *Store) RecordBroadcast(ctx context.Context, eventType string, data any, recipients int) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling broadcast data: %w", err)
	}
	query := "INSERT INTO webhook_broadcast_logs (event_type, data, recipients) VALUES ($1, $2, $3)"
	if _, err := s.DB.ExecContext(ctx, query, eventType, string(payload), recipients); err != nil {
		return fmt.Errorf("inserting broadcast log: %w", err)
	}
	return nil
}

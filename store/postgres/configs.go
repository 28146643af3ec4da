package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/marcelsud/webhook-hub/providers"
)

const configColumns = `provider, secret, rate_limit, ip_whitelist, events, high_priority_events, low_priority_events, max_retries, active`

func scanConfig(row scanner) (providers.Config, error) {
	var (
		c      providers.Config
		active bool
	)
	err := row.Scan(&c.Provider, &c.Secret, &c.RateLimit, pq.Array(&c.IPWhitelist), pq.Array(&c.Events),
		pq.Array(&c.HighPriorityEvents), pq.Array(&c.LowPriorityEvents), &c.MaxRetries, &active)
	if err != nil {
		return providers.Config{}, err
	}
	c.Active = &active
	return c, nil
}

// Config returns the active configuration for a provider (webhook_configs)
func (s *Store) Config(ctx context.Context, provider string) (providers.Config, error) {
	query := "SELECT " + configColumns + " FROM webhook_configs WHERE provider = $1 AND active = TRUE"

	c, err := scanConfig(s.DB.QueryRowContext(ctx, query, provider))
	if errors.Is(err, sql.ErrNoRows) {
		return providers.Config{}, fmt.Errorf("%w: %s", providers.ErrNotFound, provider)
	}
	if err != nil {
		return providers.Config{}, fmt.Errorf("selecting provider config: %w", err)
	}
	return c, nil
}

// Configs returns every provider configuration
func (s *Store) Configs(ctx context.Context) ([]providers.Config, error) {
	rows, err := s.DB.QueryContext(ctx, "SELECT "+configColumns+" FROM webhook_configs ORDER BY provider")
	if err != nil {
		return nil, fmt.Errorf("selecting provider configs: %w", err)
	}
	defer rows.Close()

	configs := make([]providers.Config, 0)
	for rows.Next() {
		c, err := scanConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning provider config: %w", err)
		}
		configs = append(configs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating provider configs: %w", err)
	}
	return configs, nil
}

// SaveConfig upserts a provider configuration
func (s *Store) SaveConfig(ctx context.Context, c providers.Config) error {
	query := `
		INSERT INTO webhook_configs (` + configColumns + `, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (provider) DO UPDATE SET
			secret = EXCLUDED.secret, rate_limit = EXCLUDED.rate_limit, ip_whitelist = EXCLUDED.ip_whitelist,
			events = EXCLUDED.events, high_priority_events = EXCLUDED.high_priority_events,
			low_priority_events = EXCLUDED.low_priority_events, max_retries = EXCLUDED.max_retries,
			active = EXCLUDED.active, updated_at = NOW()
	`
	_, err := s.DB.ExecContext(ctx, query,
		c.Provider, c.Secret, c.RateLimit, pq.Array(nonNil(c.IPWhitelist)), pq.Array(nonNil(c.Events)),
		pq.Array(nonNil(c.HighPriorityEvents)), pq.Array(nonNil(c.LowPriorityEvents)), c.MaxRetries, c.IsActive())
	if err != nil {
		return fmt.Errorf("saving provider config: %w", err)
	}
	return nil
}

// nonNil keeps NOT NULL array columns from receiving NULL
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

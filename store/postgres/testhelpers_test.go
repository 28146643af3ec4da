//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// SetupPostgresContainer starts a disposable PostgreSQL and returns a migrated store
func SetupPostgresContainer(t *testing.T, ctx context.Context) (*Store, func()) {
	t.Helper()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("webhooks"),
		postgres.WithUsername("hub"),
		postgres.WithPassword("hub"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	store, err := NewStore(connStr)
	require.NoError(t, err)
	require.NoError(t, store.Migrate(ctx))

	cleanup := func() {
		_ = store.Close(ctx)
		_ = pgContainer.Terminate(ctx)
	}
	return store, cleanup
}

// TruncateAll empties every table between tests
func TruncateAll(t *testing.T, ctx context.Context, s *Store) {
	t.Helper()

	_, err := s.DB.ExecContext(ctx, `TRUNCATE webhook_events, webhook_errors, webhook_dead_letter, webhook_configs,
		webhook_alerts, webhook_alert_rules, webhook_metrics, webhook_daily_reports, webhook_broadcast_logs RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
}

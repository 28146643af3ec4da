package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/marcelsud/webhook-hub/config"
	"github.com/marcelsud/webhook-hub/queue"
	queueredis "github.com/marcelsud/webhook-hub/queue/redis"
	"github.com/marcelsud/webhook-hub/store/postgres"
	"github.com/spf13/cobra"
)

/* Operator CLI
 * Usage:
 *   cli stats            queue counters as JSON
 *   cli replay -n 10     move dead letters back to their lanes
 *   cli dead-letter      list dead letters
 *   cli migrate          apply the postgres schema
 *   cli gen-secret       print a random provider secret
 */

func main() {
	cfg, err := config.GetConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := newRootCmd(cfg).ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:          "cli",
		Short:        "Operate the webhook hub queue and store",
		SilenceUsage: true,
	}

	var limit int
	deadLetter := &cobra.Command{
		Use:   "dead-letter",
		Short: "List dead-lettered events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withQueue(cmd.Context(), cfg, func(m *queue.Manager) error {
				dead, err := m.DeadLetters(cmd.Context(), limit)
				if err != nil {
					return err
				}
				return printJSON(cmd, dead)
			})
		},
	}
	deadLetter.Flags().IntVarP(&limit, "limit", "l", 50, "maximum entries to list")

	var n int
	replay := &cobra.Command{
		Use:   "replay",
		Short: "Move dead letters back to their priority lanes",
		RunE: func(cmd *cobra.Command, args []string) error {
			if n < 1 {
				return fmt.Errorf("-n must be at least 1")
			}
			return withQueue(cmd.Context(), cfg, func(m *queue.Manager) error {
				replayed, err := m.Replay(cmd.Context(), n)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "replayed %d event(s)\n", replayed)
				return nil
			})
		},
	}
	replay.Flags().IntVarP(&n, "count", "n", 10, "number of dead letters to replay")

	root.AddCommand(
		&cobra.Command{
			Use:   "stats",
			Short: "Print queue counters",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withQueue(cmd.Context(), cfg, func(m *queue.Manager) error {
					stats, err := m.Stats(cmd.Context())
					if err != nil {
						return err
					}
					return printJSON(cmd, stats)
				})
			},
		},
		deadLetter,
		replay,
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply the record store schema",
			RunE: func(cmd *cobra.Command, args []string) error {
				if cfg.PostgresURL == "" {
					return fmt.Errorf("POSTGRES_URL is required")
				}
				store, err := postgres.NewStoreWithPoolConfig(cfg.PostgresURL, 2, 1, 5)
				if err != nil {
					return err
				}
				defer store.Close(cmd.Context())
				if err := store.Migrate(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "schema applied")
				return nil
			},
		},
		&cobra.Command{
			Use:   "gen-secret",
			Short: "Generate a random provider signing secret",
			RunE: func(cmd *cobra.Command, args []string) error {
				b := make([]byte, 32)
				if _, err := rand.Read(b); err != nil {
					return fmt.Errorf("reading random bytes: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(b))
				return nil
			},
		},
	)
	return root
}

func withQueue(ctx context.Context, cfg *config.Config, fn func(m *queue.Manager) error) error {
	store, err := queueredis.NewStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return err
	}
	defer store.Close(ctx)
	return fn(queue.NewManager(store))
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/marcelsud/webhook-hub/broadcast"
	"github.com/marcelsud/webhook-hub/config"
	"github.com/marcelsud/webhook-hub/internal/http/chi"
	"github.com/marcelsud/webhook-hub/metrics"
	"github.com/marcelsud/webhook-hub/monitoring"
	"github.com/marcelsud/webhook-hub/monitoring/notify"
	"github.com/marcelsud/webhook-hub/providers"
	"github.com/marcelsud/webhook-hub/queue"
	queuememory "github.com/marcelsud/webhook-hub/queue/memory"
	queueredis "github.com/marcelsud/webhook-hub/queue/redis"
	"github.com/marcelsud/webhook-hub/store/memory"
	"github.com/marcelsud/webhook-hub/store/postgres"
	"github.com/marcelsud/webhook-hub/webhook"
	"github.com/marcelsud/webhook-hub/webhook/processor"
	"github.com/marcelsud/webhook-hub/webhook/ratelimit"
	"github.com/marcelsud/webhook-hub/webhook/signature"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const TIMEOUT = 30 * time.Second

/*
 * main wires every package together: stores, queue, ingest service, hub, monitoring and HTTP
 * Imports flow one way: cmd imports the business packages, which import their storage
 */

// recordStore is what both record store drivers provide
type recordStore interface {
	webhook.Repository
	monitoring.Store
	broadcast.Recorder
	Config(ctx context.Context, provider string) (providers.Config, error)
	Configs(ctx context.Context) ([]providers.Config, error)
	SaveConfig(ctx context.Context, c providers.Config) error
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.GetConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT,
	)
	defer stop()

	records, closeRecords, err := openRecordStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRecords()

	if err := seedProviders(ctx, cfg.ProvidersFile, records, logger); err != nil {
		return err
	}

	qstore, redisClient, err := openQueueStore(cfg)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	clock := clockwork.NewRealClock()
	manager := queue.NewManager(qstore,
		queue.WithClock(clock),
		queue.WithLogger(logger.With().Str("component", "queue").Logger()),
	)

	limiter, err := newLimiter(cfg, redisClient, clock)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewRecorder(registry)

	var collector *metrics.QueueCollector
	hub := broadcast.NewHub(
		broadcast.WithClock(clock),
		broadcast.WithLogger(logger.With().Str("component", "hub").Logger()),
		broadcast.WithRecorder(records),
		broadcast.WithStats(func(ctx context.Context) (any, error) {
			return collector.Collect(ctx)
		}),
	)
	var consumers metrics.ConsumerSource
	if rs, ok := qstore.(*queueredis.Store); ok {
		consumers = rs
	}
	collector = metrics.NewCollector(manager, consumers, hub)
	exporter, err := metrics.NewOTelExporter(collector, registry)
	if err != nil {
		return fmt.Errorf("creating metrics exporter: %w", err)
	}
	defer exporter.Shutdown(context.Background())

	monitor := monitoring.NewService(records,
		monitoring.WithNotifier(newDispatcher(cfg, logger)),
		monitoring.WithBroadcaster(hub),
		monitoring.WithClock(clock),
		monitoring.WithLogger(logger.With().Str("component", "monitoring").Logger()),
	)
	scheduler, err := monitoring.NewScheduler(monitor, logger.With().Str("component", "scheduler").Logger())
	if err != nil {
		return fmt.Errorf("creating scheduler: %w", err)
	}

	webhooks := webhook.NewService(records, records, manager, processor.NewRegistry(),
		webhook.WithLimiter(limiter),
		webhook.WithSignatures(signature.DefaultRegistry()),
		webhook.WithObserver(monitor),
		webhook.WithBroadcaster(hub),
		webhook.WithMetrics(recorder),
		webhook.WithClock(clock),
		webhook.WithLogger(logger.With().Str("component", "webhook").Logger()),
	)

	httpLogger := logger.With().Str("component", "http").Logger()
	r := chi.Handlers(ctx, chi.Dependencies{
		Webhooks:   webhooks,
		Providers:  records,
		Queue:      manager,
		Monitoring: monitor,
		Realtime:   hub,
		WSPath:     cfg.WSPath,
		Metrics:    exporter.Handler(),
		Logger:     &httpLogger,
	})
	srv := &http.Server{
		ReadTimeout: 30 * time.Second,
		Addr:        ":" + cfg.Port,
		Handler:     r,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return manager.Run(gctx, webhooks) })
	g.Go(func() error { return hub.Run(gctx) })
	g.Go(func() error { return scheduler.Run(gctx) })
	g.Go(func() error {
		logger.Info().Str("port", cfg.Port).Str("queue", cfg.QueueDriver).Str("store", cfg.StoreDriver).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	})
	g.Go(func() error { return shutdown(gctx, srv, logger) })

	return g.Wait()
}

func shutdown(ctx context.Context, server *http.Server, logger zerolog.Logger) error {
	<-ctx.Done()

	ctxTimeout, stop := context.WithTimeout(context.Background(), TIMEOUT)
	defer stop()

	logger.Info().Msg("shutting down server")
	if err := server.Shutdown(ctxTimeout); err != nil {
		return fmt.Errorf("forcing closing the server: %w", err)
	}
	return nil
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	var logger zerolog.Logger
	if cfg.LogFormat == "text" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Str("service", "webhook-hub").Logger()
}

func openRecordStore(ctx context.Context, cfg *config.Config) (recordStore, func(), error) {
	if cfg.StoreDriver == "memory" {
		return memory.NewStore(), func() {}, nil
	}
	store, err := postgres.NewStore(cfg.PostgresURL)
	if err != nil {
		return nil, nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close(ctx)
		return nil, nil, err
	}
	return store, func() { store.Close(context.Background()) }, nil
}

// seedProviders upserts the YAML provider configurations into the record store
func seedProviders(ctx context.Context, path string, records recordStore, logger zerolog.Logger) error {
	if path == "" {
		return nil
	}
	loader := providers.NewLoader()
	if err := loader.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn().Str("file", path).Msg("providers file not found, using stored configurations")
			return nil
		}
		return err
	}
	configs, err := loader.Configs(ctx)
	if err != nil {
		return err
	}
	for _, c := range configs {
		if err := records.SaveConfig(ctx, c); err != nil {
			return fmt.Errorf("seeding provider %s: %w", c.Provider, err)
		}
	}
	logger.Info().Int("providers", len(configs)).Str("file", path).Msg("provider configurations loaded")
	return nil
}

func openQueueStore(cfg *config.Config) (queue.Store, *redis.Client, error) {
	if cfg.QueueDriver == "memory" {
		if cfg.RateLimitDriver != "redis" {
			return queuememory.NewStore(), nil, nil
		}
		client, err := dialRedis(cfg)
		if err != nil {
			return nil, nil, err
		}
		return queuememory.NewStore(), client, nil
	}
	store, err := queueredis.NewStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, nil, err
	}
	return store, store.Client(), nil
}

func dialRedis(cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to Redis: %w", err)
	}
	return client, nil
}

func newLimiter(cfg *config.Config, client *redis.Client, clock clockwork.Clock) (ratelimit.Limiter, error) {
	if cfg.RateLimitDriver != "redis" {
		return ratelimit.NewMemory(clock), nil
	}
	if client == nil {
		return nil, fmt.Errorf("redis rate limiter requires a Redis connection")
	}
	return ratelimit.NewRedis(client), nil
}

func newDispatcher(cfg *config.Config, logger zerolog.Logger) *notify.Dispatcher {
	d := notify.NewDispatcher(logger.With().Str("component", "notify").Logger())
	if cfg.SendGridAPIKey != "" && len(cfg.AlertRecipients()) > 0 {
		d.Register(notify.Email, &notify.EmailChannel{
			APIKey: cfg.SendGridAPIKey,
			From:   cfg.AlertEmailFrom,
			To:     cfg.AlertRecipients(),
		})
	}
	if cfg.SlackWebhookURL != "" {
		d.Register(notify.Slack, &notify.SlackChannel{WebhookURL: cfg.SlackWebhookURL})
	}
	if cfg.AlertWebhookURL != "" {
		d.Register(notify.Webhook, notify.NewWebhookChannel(cfg.AlertWebhookURL))
	}
	d.Register(notify.SMS, &notify.SMSChannel{Logger: logger.With().Str("channel", "sms").Logger()})
	logger.Info().Strs("channels", d.Channels()).Msg("notification channels configured")
	return d
}

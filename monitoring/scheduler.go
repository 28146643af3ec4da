package monitoring

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job schedules
const (
	MetricsSchedule     = "@every 1m"
	EvaluateSchedule    = "@every 5m"
	DailyReportSchedule = "@daily"
	CleanupSchedule     = "@weekly"
)

// cronLogger adapts zerolog to cron.Logger
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}

// Scheduler runs the monitoring jobs on cron schedules in UTC
type Scheduler struct {
	cron    *cron.Cron
	service *Service
	logger  zerolog.Logger
	timeout time.Duration
}

// NewScheduler registers the four monitoring jobs
func NewScheduler(service *Service, logger zerolog.Logger) (*Scheduler, error) {
	cl := cronLogger{logger: logger}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		service: service,
		logger:  logger,
		timeout: 5 * time.Minute,
	}

	jobs := []struct {
		spec string
		name string
		run  func(ctx context.Context) error
	}{
		{MetricsSchedule, "recompute_metrics", func(ctx context.Context) error {
			_, err := service.RecomputeMetrics(ctx)
			return err
		}},
		{EvaluateSchedule, "evaluate_rules", func(ctx context.Context) error {
			_, err := service.EvaluateRules(ctx)
			return err
		}},
		{DailyReportSchedule, "daily_report", func(ctx context.Context) error {
			_, err := service.GenerateDailyReport(ctx)
			return err
		}},
		{CleanupSchedule, "retention_cleanup", func(ctx context.Context) error {
			_, _, err := service.Cleanup(ctx)
			return err
		}},
	}

	for _, job := range jobs {
		job := job
		if _, err := s.cron.AddFunc(job.spec, func() { s.run(job.name, job.run) }); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Scheduler) run(name string, job func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	if err := job(ctx); err != nil {
		s.logger.Error().Err(err).Str("job", name).Msg("monitoring job failed")
		return
	}
	s.logger.Debug().Str("job", name).Dur("took", time.Since(start)).Msg("monitoring job finished")
}

// Jobs returns the number of registered jobs
func (s *Scheduler) Jobs() int {
	return len(s.cron.Entries())
}

// Run starts the scheduler and blocks until ctx is cancelled, then waits for running jobs
func (s *Scheduler) Run(ctx context.Context) error {
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
	return nil
}

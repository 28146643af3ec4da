package queue

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ErrProcessingTimeout marks an item reclaimed from the processing set by the sweep
var ErrProcessingTimeout = errors.New("processing timeout")

/* Handler executes a dequeued item
 * Failed is called after every failed attempt, deadLettered reports whether
 * the retry budget is exhausted
 */
type Handler interface {
	Handle(ctx context.Context, item Item) error
	Failed(ctx context.Context, item Item, err error, deadLettered bool)
}

// Options tunes the consumer loop and retry policy
type Options struct {
	PollInterval      time.Duration
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	ProcessingTimeout time.Duration
	SweepInterval     time.Duration
	PromoteBatch      int
}

// DefaultOptions returns the production settings
func DefaultOptions() Options {
	return Options{
		PollInterval:      time.Second,
		BaseDelay:         5 * time.Second,
		MaxDelay:          5 * time.Minute,
		ProcessingTimeout: 5 * time.Minute,
		SweepInterval:     time.Minute,
		PromoteBatch:      100,
	}
}

// Option configures a Manager
type Option func(*Manager)

// WithClock replaces the wall clock, mainly for tests
func WithClock(c clockwork.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithLogger sets the logger
func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithOptions overrides the timing options
func WithOptions(o Options) Option {
	return func(m *Manager) { m.opts = o }
}

// WithConsumerID names the consumer in heartbeats
func WithConsumerID(id string) Option {
	return func(m *Manager) { m.consumerID = id }
}

/* Manager is the priority event queue
 * A single sequential consumer drains the lanes; a sweep recovers stuck items
 */
type Manager struct {
	store      Store
	clock      clockwork.Clock
	logger     zerolog.Logger
	opts       Options
	consumerID string
}

// NewManager creates a queue manager over the given store
func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		store:      store,
		clock:      clockwork.NewRealClock(),
		logger:     zerolog.Nop(),
		opts:       DefaultOptions(),
		consumerID: "consumer-" + uuid.NewString()[:8],
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Enqueue places an item at the tail of its lane
func (m *Manager) Enqueue(ctx context.Context, item Item) error {
	if item.ID == "" {
		return fmt.Errorf("item id is required")
	}
	if err := item.Priority.Validate(); err != nil {
		return fmt.Errorf("validating priority: %w", err)
	}
	if item.MaxRetries <= 0 {
		item.MaxRetries = DefaultMaxRetries
	}
	if item.EnqueuedAt.IsZero() {
		item.EnqueuedAt = m.clock.Now().UTC()
	}
	if err := m.store.Push(ctx, item); err != nil {
		return fmt.Errorf("pushing item: %w", err)
	}
	return nil
}

// Run drives the consumer loop and the stale sweep until ctx is cancelled
func (m *Manager) Run(ctx context.Context, h Handler) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return m.consume(ctx, h) })
	g.Go(func() error { return m.sweepLoop(ctx, h) })
	return g.Wait()
}

func (m *Manager) consume(ctx context.Context, h Handler) error {
	m.logger.Info().Str("consumer_id", m.consumerID).Msg("queue consumer started")
	for {
		if ctx.Err() != nil {
			return nil
		}
		m.heartbeat(ctx, "idle")
		processed, err := m.ProcessNext(ctx, h)
		if err != nil {
			m.logger.Error().Err(err).Msg("queue poll failed")
		}
		if processed {
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case <-m.clock.After(m.opts.PollInterval):
		}
	}
}

/* ProcessNext promotes due retries, then pops and handles one item
 * Returns false when there was nothing to process
 */
func (m *Manager) ProcessNext(ctx context.Context, h Handler) (bool, error) {
	now := m.clock.Now()
	if _, err := m.store.PromoteDue(ctx, now); err != nil {
		return false, fmt.Errorf("promoting due retries: %w", err)
	}
	item, ok, err := m.store.Pop(ctx, now)
	if err != nil {
		return false, fmt.Errorf("popping item: %w", err)
	}
	if !ok {
		return false, nil
	}
	m.heartbeat(ctx, "processing")

	log := m.logger.With().
		Str("event_id", item.ID).
		Str("provider", item.Provider).
		Str("priority", item.Priority.String()).
		Int("retry_count", item.RetryCount).
		Logger()

	if err := m.handle(ctx, h, item); err != nil {
		log.Warn().Err(err).Msg("event processing failed")
		_, err := m.fail(ctx, h, item, err)
		return true, err
	}

	owned, err := m.store.Complete(ctx, item)
	if err != nil {
		return true, fmt.Errorf("completing item: %w", err)
	}
	if !owned {
		log.Warn().Msg("completed item had already been reclaimed")
	}
	log.Debug().Msg("event processed")
	return true, nil
}

func (m *Manager) handle(ctx context.Context, h Handler, item Item) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Trace: string(debug.Stack())}
		}
	}()
	return h.Handle(ctx, item)
}

/* fail records a failed attempt against the claim item holds
 * An outcome for a claim that was already released, by the sweep or another
 * worker, is dropped and reported as not owned
 */
func (m *Manager) fail(ctx context.Context, h Handler, item Item, cause error) (bool, error) {
	item.RetryCount++
	if item.RetryCount <= item.MaxRetries {
		delay := Backoff(m.opts.BaseDelay, m.opts.MaxDelay, item.RetryCount)
		owned, err := m.store.Retry(ctx, item, m.clock.Now().Add(delay))
		if err != nil {
			return false, fmt.Errorf("scheduling retry: %w", err)
		}
		if !owned {
			m.dropStale(item, cause)
			return false, nil
		}
		h.Failed(ctx, item, cause, false)
		return true, nil
	}

	dl := DeadLetter{
		Item:     item,
		Reason:   cause.Error(),
		Stack:    StackOf(cause),
		FailedAt: m.clock.Now().UTC(),
	}
	owned, err := m.store.Bury(ctx, dl)
	if err != nil {
		return false, fmt.Errorf("moving to dead letter: %w", err)
	}
	if !owned {
		m.dropStale(item, cause)
		return false, nil
	}
	m.logger.Error().
		Str("event_id", item.ID).
		Str("provider", item.Provider).
		Int("retry_count", item.RetryCount).
		Str("reason", dl.Reason).
		Msg("event moved to dead letter")
	h.Failed(ctx, item, cause, true)
	return true, nil
}

func (m *Manager) dropStale(item Item, cause error) {
	m.logger.Warn().
		Err(cause).
		Str("event_id", item.ID).
		Msg("failed item had already been reclaimed")
}

func (m *Manager) sweepLoop(ctx context.Context, h Handler) error {
	ticker := m.clock.NewTicker(m.opts.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			if n, err := m.Sweep(ctx, h); err != nil {
				m.logger.Error().Err(err).Msg("processing sweep failed")
			} else if n > 0 {
				m.logger.Warn().Int("reclaimed", n).Msg("reclaimed stuck events")
			}
		}
	}
}

// Sweep treats processing entries older than the timeout as failed attempts
func (m *Manager) Sweep(ctx context.Context, h Handler) (int, error) {
	cutoff := m.clock.Now().Add(-m.opts.ProcessingTimeout)
	stale, err := m.store.Stale(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("listing stale items: %w", err)
	}
	reclaimed := 0
	for _, item := range stale {
		owned, err := m.fail(ctx, h, item, ErrProcessingTimeout)
		if err != nil {
			return reclaimed, err
		}
		if owned {
			reclaimed++
		}
	}
	return reclaimed, nil
}

// Replay moves up to n dead letters back to their original lanes
func (m *Manager) Replay(ctx context.Context, n int) (int, error) {
	if n <= 0 {
		return 0, nil
	}
	items, err := m.store.Replay(ctx, n)
	if err != nil {
		return 0, fmt.Errorf("replaying dead letters: %w", err)
	}
	for _, item := range items {
		m.logger.Info().Str("event_id", item.ID).Str("priority", item.Priority.String()).Msg("dead letter replayed")
	}
	return len(items), nil
}

// DeadLetters lists dead-lettered items
func (m *Manager) DeadLetters(ctx context.Context, limit int) ([]DeadLetter, error) {
	return m.store.DeadLetters(ctx, limit)
}

// Stats returns the current queue counters
func (m *Manager) Stats(ctx context.Context) (Stats, error) {
	return m.store.Stats(ctx)
}

func (m *Manager) heartbeat(ctx context.Context, status string) {
	hb, ok := m.store.(Heartbeater)
	if !ok {
		return
	}
	if err := hb.Heartbeat(ctx, m.consumerID, status); err != nil {
		m.logger.Debug().Err(err).Msg("heartbeat failed")
	}
}

// Backoff returns min(base * 2^(retryCount-1), max)
func Backoff(base, max time.Duration, retryCount int) time.Duration {
	if retryCount < 1 {
		retryCount = 1
	}
	delay := base
	for i := 1; i < retryCount; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}

package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/marcelsud/webhook-hub/providers"
	"github.com/marcelsud/webhook-hub/queue"
	"github.com/marcelsud/webhook-hub/webhook/payload"
	"github.com/marcelsud/webhook-hub/webhook/ratelimit"
	"github.com/marcelsud/webhook-hub/webhook/signature"
	"github.com/rs/zerolog"
)

// EventBroadcast is the hub event type announcing a processing outcome
const EventBroadcast = "webhook-event"

// ConfigSource resolves provider configuration
type ConfigSource interface {
	Config(ctx context.Context, provider string) (providers.Config, error)
}

// Enqueuer submits events to the priority queue
type Enqueuer interface {
	Enqueue(ctx context.Context, item queue.Item) error
}

// Processor runs the provider-specific handling of an event
type Processor interface {
	Process(ctx context.Context, event Event) (ProcessResult, error)
}

// Validator checks provider signatures
type Validator interface {
	Validate(payload []byte, signature, secret, provider string) bool
	FromHeaders(provider string, h http.Header) string
}

/* Observer is told about every event off the request path, once when it is
 * persisted and again when its final outcome is recorded
 */
type Observer interface {
	EventRecorded(ctx context.Context, event Event)
}

// Broadcaster pushes messages to connected dashboard clients
type Broadcaster interface {
	Broadcast(eventType string, data any) int
}

// Recorder receives ingest and processing measurements
type Recorder interface {
	Ingested(provider, outcome string)
	Processed(provider string, success bool, d time.Duration)
}

/* Service represents the business logic layer
 * Uses pointer semantics as it's an API, not data
 */

// UseCase defines the ingest operations exposed to transports
type UseCase interface {
	Receive(ctx context.Context, req Request) (Result, error)
	Get(ctx context.Context, id string) (Event, error)
	List(ctx context.Context, filter Filter) ([]Event, error)
}

type Service struct {
	Repo        Repository
	providers   ConfigSource
	queue       Enqueuer
	processor   Processor
	limiter     ratelimit.Limiter
	signatures  Validator
	observer    Observer
	broadcaster Broadcaster
	metrics     Recorder
	clock       clockwork.Clock
	logger      zerolog.Logger
}

// Option configures a Service
type Option func(*Service)

// WithLimiter replaces the in-memory rate limiter
func WithLimiter(l ratelimit.Limiter) Option {
	return func(s *Service) { s.limiter = l }
}

// WithSignatures replaces the default signature registry
func WithSignatures(v Validator) Option {
	return func(s *Service) { s.signatures = v }
}

// WithObserver registers the monitoring observer
func WithObserver(o Observer) Option {
	return func(s *Service) { s.observer = o }
}

// WithBroadcaster registers the real-time hub
func WithBroadcaster(b Broadcaster) Option {
	return func(s *Service) { s.broadcaster = b }
}

// WithMetrics registers the metrics recorder
func WithMetrics(r Recorder) Option {
	return func(s *Service) { s.metrics = r }
}

// WithClock replaces the wall clock
func WithClock(c clockwork.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithLogger sets the logger
func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a new ingest service with dependency injection
func NewService(configs ConfigSource, repo Repository, q Enqueuer, proc Processor, opts ...Option) *Service {
	s := &Service{
		Repo:       repo,
		providers:  configs,
		queue:      q,
		processor:  proc,
		signatures: signature.DefaultRegistry(),
		metrics:    nopRecorder{},
		clock:      clockwork.NewRealClock(),
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.limiter == nil {
		s.limiter = ratelimit.NewMemory(s.clock)
	}
	return s
}

/* Receive runs an inbound webhook through the ingest pipeline:
 * provider lookup, IP allow-list, rate limit, signature, persist, enqueue,
 * and inline processing for high-priority event types
 * A rejection returns the sentinel error with nothing persisted or queued
 */
func (s *Service) Receive(ctx context.Context, req Request) (Result, error) {
	start := s.clock.Now()
	provider := strings.ToLower(strings.TrimSpace(req.Provider))
	log := s.logger.With().Str("provider", provider).Str("source_ip", req.SourceIP).Logger()

	reject := func(err error) (Result, error) {
		s.metrics.Ingested(provider, outcome(err))
		log.Warn().Err(err).Msg("webhook rejected")
		return s.errorResult(start, err), err
	}

	cfg, err := s.providers.Config(ctx, provider)
	if errors.Is(err, providers.ErrNotFound) {
		return reject(ErrUnknownProvider)
	}
	if err != nil {
		return reject(fmt.Errorf("loading provider config: %w", err))
	}

	if !cfg.AllowsIP(req.SourceIP) {
		return reject(ErrIPNotAllowed)
	}

	allowed, err := s.limiter.Allow(ctx, provider, req.SourceIP, cfg.RateLimit)
	if err != nil {
		log.Warn().Err(err).Msg("rate limiter unavailable, allowing request")
		allowed = true
	}
	if !allowed {
		return reject(ErrRateLimitExceeded)
	}

	sig := s.signatures.FromHeaders(provider, req.Headers)
	if !s.signatures.Validate(req.Body, sig, cfg.Secret, provider) {
		return reject(ErrInvalidSignature)
	}

	if !json.Valid(req.Body) {
		return reject(ErrInvalidPayload)
	}

	eventType := payload.EventType(req.Headers, req.Body)
	if !cfg.Subscribes(eventType) {
		s.metrics.Ingested(provider, "ignored")
		log.Debug().Str("event_type", eventType).Msg("event type not subscribed, ignoring")
		return Result{Success: true, Errors: []string{}, ActionsTriggered: []string{}, DurationMs: s.elapsedMs(start)}, nil
	}

	event := Event{
		ID:        uuid.New().String(),
		Provider:  provider,
		EventType: eventType,
		Payload:   json.RawMessage(req.Body),
		Signature: sig,
		Timestamp: start.UTC(),
		SourceIP:  req.SourceIP,
		UserAgent: req.UserAgent,
	}
	log = log.With().Str("event_id", event.ID).Str("event_type", eventType).Logger()

	if err := s.Repo.Store(ctx, event); err != nil {
		return reject(fmt.Errorf("storing event: %w", err))
	}
	s.observe(event)

	priority := cfg.PriorityFor(eventType)
	item := queue.Item{
		ID:         event.ID,
		Provider:   provider,
		EventType:  eventType,
		Payload:    event.Payload,
		Priority:   priority,
		MaxRetries: cfg.MaxRetries,
		EnqueuedAt: start.UTC(),
	}
	if err := s.queue.Enqueue(ctx, item); err != nil {
		return reject(fmt.Errorf("queueing event: %w", err))
	}

	result := Result{Success: true, EventID: event.ID, Errors: []string{}, ActionsTriggered: []string{}}

	if priority == queue.High {
		res, err := s.execute(ctx, event)
		if err != nil {
			// The queued copy retries it
			result.Errors = append(result.Errors, err.Error())
		} else {
			result.ProcessedRecords = res.ProcessedRecords
			result.Errors = append(result.Errors, res.Errors...)
			result.ActionsTriggered = append(result.ActionsTriggered, res.ActionsTriggered...)
			if err := s.complete(ctx, event, 0, true, "", s.clock.Since(start)); err != nil {
				log.Error().Err(err).Msg("marking inline event processed")
			}
		}
	}

	s.metrics.Ingested(provider, "accepted")
	log.Info().Str("priority", priority.String()).Msg("webhook accepted")
	result.DurationMs = s.elapsedMs(start)
	return result, nil
}

// Get returns a stored event
func (s *Service) Get(ctx context.Context, id string) (Event, error) {
	event, err := s.Repo.Get(ctx, id)
	if err != nil {
		return Event{}, fmt.Errorf("getting event: %w", err)
	}
	return event, nil
}

// List returns stored events matching the filter
func (s *Service) List(ctx context.Context, filter Filter) ([]Event, error) {
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 50
	}
	events, err := s.Repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	return events, nil
}

/* Handle processes a dequeued event; it implements queue.Handler
 * Succeeded events (inline, or by an earlier attempt) complete without re-running
 * A processed but failed event is back on the queue only through a dead-letter
 * replay, so it is reopened and processed again
 */
func (s *Service) Handle(ctx context.Context, item queue.Item) error {
	event, err := s.Repo.Get(ctx, item.ID)
	if errors.Is(err, ErrNotFound) {
		s.logger.Warn().Str("event_id", item.ID).Msg("queued event has no record, skipping")
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading event: %w", err)
	}
	if event.Processed {
		if event.Status() == Succeeded {
			return nil
		}
		reopened, err := s.Repo.Reopen(ctx, event.ID)
		if err != nil {
			return fmt.Errorf("reopening event: %w", err)
		}
		if !reopened {
			return nil
		}
		event.Processed = false
		event.Success = nil
		event.RetryCount = 0
		s.logger.Info().Str("event_id", event.ID).Msg("replayed event reopened")
	}

	start := s.clock.Now()
	if _, err := s.execute(ctx, event); err != nil {
		return err
	}
	return s.complete(ctx, event, item.RetryCount, true, "", s.clock.Since(start))
}

// Failed records a failed attempt; it implements queue.Handler
func (s *Service) Failed(ctx context.Context, item queue.Item, cause error, deadLettered bool) {
	log := s.logger.With().
		Str("event_id", item.ID).
		Str("provider", item.Provider).
		Str("event_type", item.EventType).
		Int("retry_count", item.RetryCount).
		Logger()

	if errors.Is(cause, queue.ErrProcessingTimeout) {
		s.logError(ctx, Event{ID: item.ID, Provider: item.Provider, EventType: item.EventType, Payload: item.Payload}, cause)
	}

	if !deadLettered {
		if err := s.Repo.RecordAttempt(ctx, item.ID, item.RetryCount, cause.Error()); err != nil {
			log.Error().Err(err).Msg("recording failed attempt")
		}
		log.Warn().Err(cause).Msg("event processing failed, retry scheduled")
		return
	}

	event := Event{ID: item.ID, Provider: item.Provider, EventType: item.EventType}
	if err := s.complete(ctx, event, item.RetryCount, false, cause.Error(), 0); err != nil {
		log.Error().Err(err).Msg("marking dead-lettered event")
	}

	rec := DeadLetterRecord{
		EventID:    item.ID,
		Provider:   item.Provider,
		EventType:  item.EventType,
		Payload:    item.Payload,
		Priority:   item.Priority.String(),
		Reason:     cause.Error(),
		Stack:      queue.StackOf(cause),
		RetryCount: item.RetryCount,
		FailedAt:   s.clock.Now().UTC(),
	}
	if err := s.Repo.ArchiveDeadLetter(ctx, rec); err != nil {
		log.Error().Err(err).Msg("archiving dead letter")
	}
	log.Error().Err(cause).Msg("event dead-lettered")
}

// execute runs the processor, turning panics and reported failures into ProcessingError
func (s *Service) execute(ctx context.Context, event Event) (res ProcessResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ProcessingError{
				Provider:  event.Provider,
				EventType: event.EventType,
				Err:       fmt.Errorf("panic: %v", r),
				Trace:     string(debug.Stack()),
			}
		}
		if err != nil {
			s.logError(ctx, event, err)
		}
	}()

	res, err = s.processor.Process(ctx, event)
	if err != nil {
		return res, &ProcessingError{Provider: event.Provider, EventType: event.EventType, Err: err}
	}
	if !res.Success {
		msg := "handler reported failure"
		if len(res.Errors) > 0 {
			msg = strings.Join(res.Errors, "; ")
		}
		return res, &ProcessingError{Provider: event.Provider, EventType: event.EventType, Err: errors.New(msg)}
	}
	return res, nil
}

func (s *Service) complete(ctx context.Context, event Event, retryCount int, success bool, errMsg string, elapsed time.Duration) error {
	marked, err := s.Repo.MarkProcessed(ctx, Completion{
		ID:             event.ID,
		Success:        success,
		RetryCount:     retryCount,
		Error:          errMsg,
		ProcessingTime: elapsed,
		ProcessedAt:    s.clock.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marking event processed: %w", err)
	}
	if !marked {
		return nil
	}

	s.metrics.Processed(event.Provider, success, elapsed)
	done := event
	done.Processed = true
	done.Success = &success
	done.RetryCount = retryCount
	done.ErrorMessage = errMsg
	done.ProcessingTimeMs = elapsed.Milliseconds()
	s.observe(done)
	if s.broadcaster != nil {
		s.broadcaster.Broadcast(EventBroadcast, map[string]any{
			"event_id":    event.ID,
			"provider":    event.Provider,
			"event_type":  event.EventType,
			"success":     success,
			"retry_count": retryCount,
		})
	}
	return nil
}

// logError writes to the processing error log; a failing write is only logged
func (s *Service) logError(ctx context.Context, event Event, cause error) {
	rec := ErrorRecord{
		Provider:  event.Provider,
		EventType: event.EventType,
		EventID:   event.ID,
		Message:   cause.Error(),
		Stack:     queue.StackOf(cause),
		Payload:   event.Payload,
		CreatedAt: s.clock.Now().UTC(),
	}
	if err := s.Repo.RecordError(ctx, rec); err != nil {
		s.logger.Error().Err(err).Str("event_id", event.ID).Msg("writing error log")
	}
}

func (s *Service) observe(event Event) {
	if s.observer == nil {
		return
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error().Interface("panic", r).Str("event_id", event.ID).Msg("event observer panicked")
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.observer.EventRecorded(ctx, event)
	}()
}

func (s *Service) errorResult(start time.Time, err error) Result {
	return Result{
		Success:          false,
		Errors:           []string{Message(err)},
		DurationMs:       s.elapsedMs(start),
		ActionsTriggered: []string{},
	}
}

func (s *Service) elapsedMs(start time.Time) int64 {
	return s.clock.Since(start).Milliseconds()
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, ErrRateLimitExceeded):
		return "rate_limited"
	case errors.Is(err, ErrIPNotAllowed):
		return "ip_denied"
	case errors.Is(err, ErrUnknownProvider):
		return "unknown_provider"
	case errors.Is(err, ErrInvalidPayload):
		return "invalid_payload"
	default:
		return "error"
	}
}

type nopRecorder struct{}

func (nopRecorder) Ingested(string, string)               {}
func (nopRecorder) Processed(string, bool, time.Duration) {}

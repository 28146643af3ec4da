package processor

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/marcelsud/webhook-hub/webhook"
	"github.com/marcelsud/webhook-hub/webhook/payload"
)

// Wildcard registers a handler for every event type of a provider
const Wildcard = "*"

// Handler processes one provider event
type Handler interface {
	Handle(ctx context.Context, event webhook.Event) (webhook.ProcessResult, error)
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(ctx context.Context, event webhook.Event) (webhook.ProcessResult, error)

// Handle calls f(ctx, event)
func (f HandlerFunc) Handle(ctx context.Context, event webhook.Event) (webhook.ProcessResult, error) {
	return f(ctx, event)
}

/* Registry dispatches events to handlers registered per (provider, event type)
 * Lookup tries the exact event type first, then the provider wildcard
 * Events without a handler are acknowledged as successful with no records
 */
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]map[string]Handler
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]map[string]Handler)}
}

// Register binds a handler to a provider and event type (or Wildcard)
func (r *Registry) Register(provider, eventType string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	provider = strings.ToLower(provider)
	if r.handlers[provider] == nil {
		r.handlers[provider] = make(map[string]Handler)
	}
	r.handlers[provider][eventType] = h
}

// Lookup returns the handler for an event, if any
func (r *Registry) Lookup(provider, eventType string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	byType := r.handlers[strings.ToLower(provider)]
	if h, ok := byType[eventType]; ok {
		return h, true
	}
	h, ok := byType[Wildcard]
	return h, ok
}

// Process implements webhook.Processor
func (r *Registry) Process(ctx context.Context, event webhook.Event) (webhook.ProcessResult, error) {
	h, ok := r.Lookup(event.Provider, event.EventType)
	if !ok {
		return webhook.ProcessResult{Success: true}, nil
	}
	res, err := h.Handle(ctx, event)
	if err != nil {
		return res, fmt.Errorf("handling %s event %s: %w", event.Provider, event.EventType, err)
	}
	return res, nil
}

/* Passthrough acknowledges events and counts their records
 * Used as the default handler until a provider integration is registered
 */
func Passthrough(action string) Handler {
	return HandlerFunc(func(ctx context.Context, event webhook.Event) (webhook.ProcessResult, error) {
		res := webhook.ProcessResult{
			Success:          true,
			ProcessedRecords: payload.Records(event.Payload),
		}
		if action != "" {
			res.ActionsTriggered = []string{action}
		}
		return res, nil
	})
}

package chi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog"
	"github.com/marcelsud/webhook-hub/monitoring"
	"github.com/marcelsud/webhook-hub/providers"
	"github.com/marcelsud/webhook-hub/queue"
	"github.com/marcelsud/webhook-hub/webhook"
	"github.com/rs/zerolog"
)

// QueueOperator exposes queue inspection and dead-letter replay
type QueueOperator interface {
	Stats(ctx context.Context) (queue.Stats, error)
	DeadLetters(ctx context.Context, limit int) ([]queue.DeadLetter, error)
	Replay(ctx context.Context, n int) (int, error)
}

// AlertOperator exposes alerts and alert rules
type AlertOperator interface {
	Alerts(ctx context.Context, filter monitoring.AlertFilter) ([]monitoring.Alert, error)
	Acknowledge(ctx context.Context, id string) error
	Rules(ctx context.Context) ([]monitoring.Rule, error)
	SaveRule(ctx context.Context, rule monitoring.Rule) (monitoring.Rule, error)
}

// ProviderLister lists provider configurations
type ProviderLister interface {
	Configs(ctx context.Context) ([]providers.Config, error)
}

/* Dependencies wires the HTTP surface
 * Realtime and Metrics are optional; nil handlers leave their paths unmounted
 */
type Dependencies struct {
	Webhooks   webhook.UseCase
	Providers  ProviderLister
	Queue      QueueOperator
	Monitoring AlertOperator
	Realtime   http.Handler
	WSPath     string
	Metrics    http.Handler
	// Logger defaults to an httplog JSON logger
	Logger *zerolog.Logger
}

// Handlers sets up the ingest, operator, realtime and metrics routes
func Handlers(ctx context.Context, deps Dependencies) *chi.Mux {
	var logger zerolog.Logger
	if deps.Logger != nil {
		logger = *deps.Logger
	} else {
		logger = httplog.NewLogger("webhook-hub", httplog.Options{
			JSON: true,
		})
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	// The websocket upgrade must not sit behind the timeout middleware
	if deps.Realtime != nil {
		path := deps.WSPath
		if path == "" {
			path = "/ws"
		}
		r.Method(http.MethodGet, path, deps.Realtime)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))

		r.Method(http.MethodPost, "/webhooks/{provider}", postWebhook(deps.Webhooks))

		r.Route("/v1", func(r chi.Router) {
			r.Method(http.MethodGet, "/providers", getProviders(deps.Providers))
			r.Method(http.MethodGet, "/events", getEvents(deps.Webhooks))
			r.Method(http.MethodGet, "/events/{id}", getEvent(deps.Webhooks))

			r.Method(http.MethodGet, "/queue/stats", getQueueStats(deps.Queue))
			r.Method(http.MethodGet, "/queue/dead-letter", getDeadLetters(deps.Queue))
			r.Method(http.MethodPost, "/queue/replay", postReplay(deps.Queue))

			r.Method(http.MethodGet, "/alerts", getAlerts(deps.Monitoring))
			r.Method(http.MethodPost, "/alerts/{id}/ack", postAcknowledge(deps.Monitoring))
			r.Method(http.MethodGet, "/alert-rules", getRules(deps.Monitoring))
			r.Method(http.MethodPost, "/alert-rules", postRule(deps.Monitoring))
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

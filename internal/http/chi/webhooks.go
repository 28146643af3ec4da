package chi

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/marcelsud/webhook-hub/webhook"
)

// maxBodyBytes bounds an inbound webhook body
const maxBodyBytes = 5 << 20

/* HTTP layer DTOs for the event API
 * Separate from domain entities to avoid leaking internal structure
 */

type eventResponse struct {
	ID               string          `json:"id"`
	Provider         string          `json:"provider"`
	EventType        string          `json:"event_type"`
	Payload          json.RawMessage `json:"payload"`
	Timestamp        time.Time       `json:"timestamp"`
	SourceIP         string          `json:"source_ip"`
	UserAgent        string          `json:"user_agent"`
	Status           string          `json:"status"`
	Processed        bool            `json:"processed"`
	Success          *bool           `json:"success"`
	RetryCount       int             `json:"retry_count"`
	ErrorMessage     string          `json:"error_message,omitempty"`
	ProcessingTimeMs int64           `json:"processing_time_ms"`
	ProcessedAt      *time.Time      `json:"processed_at,omitempty"`
}

func toEventResponse(e webhook.Event) eventResponse {
	return eventResponse{
		ID:               e.ID,
		Provider:         e.Provider,
		EventType:        e.EventType,
		Payload:          e.Payload,
		Timestamp:        e.Timestamp,
		SourceIP:         e.SourceIP,
		UserAgent:        e.UserAgent,
		Status:           e.Status().String(),
		Processed:        e.Processed,
		Success:          e.Success,
		RetryCount:       e.RetryCount,
		ErrorMessage:     e.ErrorMessage,
		ProcessingTimeMs: e.ProcessingTimeMs,
		ProcessedAt:      e.ProcessedAt,
	}
}

// statusFor maps an ingest rejection to its HTTP status
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, webhook.ErrInvalidSignature):
		return http.StatusUnauthorized
	case errors.Is(err, webhook.ErrRateLimitExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, webhook.ErrIPNotAllowed):
		return http.StatusForbidden
	case errors.Is(err, webhook.ErrUnknownProvider):
		return http.StatusNotFound
	case errors.Is(err, webhook.ErrInvalidPayload):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// sourceIP returns the client address; RealIP has already applied forwarding headers
func sourceIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// postWebhook handles POST /webhooks/{provider}
func postWebhook(webhookService webhook.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			writeJSON(w, http.StatusRequestEntityTooLarge, webhook.Result{
				Errors: []string{"failed to read request body"}, ActionsTriggered: []string{},
			})
			return
		}
		defer r.Body.Close()

		result, err := webhookService.Receive(r.Context(), webhook.Request{
			Provider:  chi.URLParam(r, "provider"),
			Body:      body,
			Headers:   r.Header,
			SourceIP:  sourceIP(r),
			UserAgent: r.UserAgent(),
		})
		if errors.Is(err, webhook.ErrRateLimitExceeded) {
			w.Header().Set("Retry-After", "60")
		}
		writeJSON(w, statusFor(err), result)
	})
}

// getEvents handles GET /v1/events?provider=&event_type=&status=&limit=
func getEvents(webhookService webhook.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := webhook.Filter{
			Provider:  q.Get("provider"),
			EventType: q.Get("event_type"),
		}
		if s := q.Get("status"); s != "" {
			filter.Status = webhook.NewStatus(s)
			if err := filter.Status.Validate(); err != nil {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
				return
			}
		}
		if l := q.Get("limit"); l != "" {
			limit, err := strconv.Atoi(l)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a number"})
				return
			}
			filter.Limit = limit
		}

		events, err := webhookService.List(r.Context(), filter)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
			return
		}
		result := make([]eventResponse, 0, len(events))
		for _, e := range events {
			result = append(result, toEventResponse(e))
		}
		writeJSON(w, http.StatusOK, result)
	})
}

// getEvent handles GET /v1/events/{id}
func getEvent(webhookService webhook.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		e, err := webhookService.Get(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, webhook.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "event not found"})
			return
		}
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, toEventResponse(e))
	})
}

// getProviders handles GET /v1/providers; secrets are never returned
func getProviders(lister ProviderLister) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		configs, err := lister.Configs(r.Context())
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, configs)
	})
}

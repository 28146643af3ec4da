package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/marcelsud/webhook-hub/monitoring"
)

const (
	defaultDeadLetterLimit = 50
	defaultReplayBatch     = 10
)

// queryInt reads a positive integer query parameter, falling back to def
func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errors.New(key + " must be a positive number")
	}
	return n, nil
}

// getQueueStats handles GET /v1/queue/stats
func getQueueStats(q QueueOperator) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stats, err := q.Stats(r.Context())
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, stats)
	})
}

// getDeadLetters handles GET /v1/queue/dead-letter?limit=
func getDeadLetters(q QueueOperator) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit, err := queryInt(r, "limit", defaultDeadLetterLimit)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		dead, err := q.DeadLetters(r.Context(), limit)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, dead)
	})
}

type replayResponse struct {
	Replayed int `json:"replayed"`
}

// postReplay handles POST /v1/queue/replay?n=
func postReplay(q QueueOperator) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n, err := queryInt(r, "n", defaultReplayBatch)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		replayed, err := q.Replay(r.Context(), n)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, replayResponse{Replayed: replayed})
	})
}

// getAlerts handles GET /v1/alerts?unacknowledged=&provider=&limit=
func getAlerts(alerts AlertOperator) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit, err := queryInt(r, "limit", 100)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		unacked, _ := strconv.ParseBool(r.URL.Query().Get("unacknowledged"))

		result, err := alerts.Alerts(r.Context(), monitoring.AlertFilter{
			Unacknowledged: unacked,
			Provider:       r.URL.Query().Get("provider"),
			Limit:          limit,
		})
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
			return
		}
		if result == nil {
			result = []monitoring.Alert{}
		}
		writeJSON(w, http.StatusOK, result)
	})
}

// postAcknowledge handles POST /v1/alerts/{id}/ack
func postAcknowledge(alerts AlertOperator) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := alerts.Acknowledge(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, monitoring.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "alert not found"})
			return
		}
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

// getRules handles GET /v1/alert-rules
func getRules(alerts AlertOperator) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rules, err := alerts.Rules(r.Context())
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
			return
		}
		if rules == nil {
			rules = []monitoring.Rule{}
		}
		writeJSON(w, http.StatusOK, rules)
	})
}

// postRule handles POST /v1/alert-rules, creating or replacing a rule
func postRule(alerts AlertOperator) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var rule monitoring.Rule
		if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid rule body: " + err.Error()})
			return
		}
		defer r.Body.Close()

		saved, err := alerts.SaveRule(r.Context(), rule)
		if errors.Is(err, monitoring.ErrInvalidRule) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusCreated, saved)
	})
}

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder counts ingest outcomes and processing results in Prometheus
type Recorder struct {
	ingested  *prometheus.CounterVec
	processed *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

// NewRecorder registers the counters on reg
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		ingested: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_ingested_total",
			Help: "Inbound webhooks by provider and outcome",
		}, []string{"provider", "outcome"}),
		processed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_processed_total",
			Help: "Completed webhook processing by provider and result",
		}, []string{"provider", "result"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "webhook_processing_duration_seconds",
			Help:    "Time spent in the provider handler",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
	}
}

// Ingested implements webhook.Recorder
func (r *Recorder) Ingested(provider, outcome string) {
	r.ingested.WithLabelValues(provider, outcome).Inc()
}

// Processed implements webhook.Recorder
func (r *Recorder) Processed(provider string, success bool, d time.Duration) {
	result := "success"
	if !success {
		result = "failure"
	}
	r.processed.WithLabelValues(provider, result).Inc()
	r.duration.WithLabelValues(provider).Observe(d.Seconds())
}

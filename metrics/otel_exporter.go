package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// OTelExporter provides OpenTelemetry metrics export following OTel standards
type OTelExporter struct {
	meterProvider *sdkmetric.MeterProvider
	collector     Collector
	registry      *prometheus.Registry

	// OTel meters and instruments
	meter            metric.Meter
	laneLengthGauge  metric.Int64ObservableGauge
	queueStateGauge  metric.Int64ObservableGauge
	consumersGauge   metric.Int64ObservableGauge
	connectionsGauge metric.Int64ObservableGauge
}

// NewOTelExporter creates an exporter whose Prometheus output is gathered from registry
func NewOTelExporter(collector Collector, registry *prometheus.Registry) (*OTelExporter, error) {
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("creating prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(meterProvider)

	meter := meterProvider.Meter(
		"webhook-hub",
		metric.WithInstrumentationVersion("1.0.0"),
	)

	oe := &OTelExporter{
		meterProvider: meterProvider,
		collector:     collector,
		registry:      registry,
		meter:         meter,
	}

	if err := oe.registerInstruments(); err != nil {
		return nil, fmt.Errorf("registering instruments: %w", err)
	}

	return oe, nil
}

// registerInstruments creates and registers all OpenTelemetry metric instruments
func (oe *OTelExporter) registerInstruments() error {
	var err error

	// Pending items per priority lane
	oe.laneLengthGauge, err = oe.meter.Int64ObservableGauge(
		"webhook.queue.length",
		metric.WithDescription("Number of pending events per priority lane"),
		metric.WithUnit("{events}"),
		metric.WithInt64Callback(oe.observeLaneLengths),
	)
	if err != nil {
		return fmt.Errorf("creating lane length gauge: %w", err)
	}

	// Processing, delayed, dead letter and lifecycle counters
	oe.queueStateGauge, err = oe.meter.Int64ObservableGauge(
		"webhook.queue.state",
		metric.WithDescription("Number of events by queue state"),
		metric.WithUnit("{events}"),
		metric.WithInt64Callback(oe.observeQueueState),
	)
	if err != nil {
		return fmt.Errorf("creating queue state gauge: %w", err)
	}

	oe.consumersGauge, err = oe.meter.Int64ObservableGauge(
		"webhook.consumers.active",
		metric.WithDescription("Number of queue consumers with a live heartbeat"),
		metric.WithUnit("{consumers}"),
		metric.WithInt64Callback(oe.observeConsumers),
	)
	if err != nil {
		return fmt.Errorf("creating active consumers gauge: %w", err)
	}

	oe.connectionsGauge, err = oe.meter.Int64ObservableGauge(
		"webhook.connections.active",
		metric.WithDescription("Number of open real-time connections"),
		metric.WithUnit("{connections}"),
		metric.WithInt64Callback(oe.observeConnections),
	)
	if err != nil {
		return fmt.Errorf("creating connections gauge: %w", err)
	}

	return nil
}

func (oe *OTelExporter) observeLaneLengths(ctx context.Context, observer metric.Int64Observer) error {
	stats, err := oe.collector.QueueStats(ctx)
	if err != nil {
		return err
	}

	for lane, length := range stats.Lanes {
		observer.Observe(length, metric.WithAttributes(
			attribute.String("queue.lane", lane),
		))
	}

	return nil
}

func (oe *OTelExporter) observeQueueState(ctx context.Context, observer metric.Int64Observer) error {
	stats, err := oe.collector.QueueStats(ctx)
	if err != nil {
		return err
	}

	states := map[string]int64{
		"pending":     stats.Pending,
		"delayed":     stats.Delayed,
		"processing":  stats.Processing,
		"completed":   stats.Completed,
		"failed":      stats.Failed,
		"dead_letter": stats.DeadLetter,
	}
	for state, n := range states {
		observer.Observe(n, metric.WithAttributes(
			attribute.String("queue.state", state),
		))
	}

	return nil
}

func (oe *OTelExporter) observeConsumers(ctx context.Context, observer metric.Int64Observer) error {
	consumers, err := oe.collector.ActiveConsumers(ctx)
	if err != nil {
		return err
	}
	observer.Observe(int64(len(consumers)))
	return nil
}

func (oe *OTelExporter) observeConnections(ctx context.Context, observer metric.Int64Observer) error {
	observer.Observe(int64(oe.collector.Connections()))
	return nil
}

// Handler serves Prometheus-formatted metrics from the exporter's registry
func (oe *OTelExporter) Handler() http.Handler {
	return promhttp.HandlerFor(oe.registry, promhttp.HandlerOpts{})
}

// Shutdown gracefully shuts down the meter provider
func (oe *OTelExporter) Shutdown(ctx context.Context) error {
	if oe.meterProvider != nil {
		return oe.meterProvider.Shutdown(ctx)
	}
	return nil
}

package infrastructure

import (
	"context"
	"fmt"
	"net/http"

	"github.com/architeacher/svc-commerce-saga/internal/config"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const metricsNamespace = "commerce_saga"

type (
	Metrics interface {
		RecordOutboxEvent(ctx context.Context, success bool, eventType string)
		RecordConsumedEvent(ctx context.Context, queue string, outcome string)
		RecordSagaTimeout(ctx context.Context, eventType string)
		RecordBreakerStateChange(ctx context.Context, name, from, to string)
		Handler() http.Handler
		Shutdown(ctx context.Context) error
	}

	OTELMetrics struct {
		meterProvider *sdkmetric.MeterProvider
		meter         metric.Meter
		logger        Logger

		outboxPublishedTotal metric.Int64Counter
		outboxFailedTotal    metric.Int64Counter
		consumedTotal        metric.Int64Counter
		sagaTimeoutTotal     metric.Int64Counter
		breakerStateTotal    metric.Int64Counter
	}

	// NoOpMetrics is used when telemetry is disabled.
	NoOpMetrics struct{}
)

func NewMetrics(ctx context.Context, cfg config.ServiceConfig, logger Logger) (Metrics, error) {
	if !cfg.Telemetry.Metrics.Enabled {
		logger.Info().Msg("metrics disabled, using NoOp implementation")

		return &NoOpMetrics{}, nil
	}

	return NewOTELMetrics(ctx, cfg, logger)
}

func NewOTELMetrics(ctx context.Context, cfg config.ServiceConfig, logger Logger) (*OTELMetrics, error) {
	endpoint := fmt.Sprintf("%s:%s", cfg.Telemetry.OtelGRPCHost, cfg.Telemetry.OtelGRPCPort)

	conn, err := grpc.NewClient(
		endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection to OTEL collector: %w", err)
	}

	exporter, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metric exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.AppConfig.ServiceName),
			semconv.ServiceVersionKey.String(cfg.AppConfig.ServiceVersion),
			semconv.ServiceInstanceIDKey.String(cfg.AppConfig.CommitSHA),
			semconv.DeploymentEnvironmentKey.String(cfg.AppConfig.Env),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		sdkmetric.WithResource(res),
	)

	m := &OTELMetrics{
		meterProvider: meterProvider,
		meter:         meterProvider.Meter(metricsNamespace),
		logger:        logger,
	}

	if err := m.initInstruments(); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *OTELMetrics) initInstruments() error {
	var err error

	if m.outboxPublishedTotal, err = m.meter.Int64Counter(
		metricsNamespace+"_outbox_published_total",
		metric.WithDescription("Outbox events successfully published to the broker"),
	); err != nil {
		return fmt.Errorf("failed to create outbox published counter: %w", err)
	}

	if m.outboxFailedTotal, err = m.meter.Int64Counter(
		metricsNamespace+"_outbox_failed_total",
		metric.WithDescription("Outbox publish attempts that failed"),
	); err != nil {
		return fmt.Errorf("failed to create outbox failed counter: %w", err)
	}

	if m.consumedTotal, err = m.meter.Int64Counter(
		metricsNamespace+"_consumed_total",
		metric.WithDescription("Deliveries processed by consumers, by outcome"),
	); err != nil {
		return fmt.Errorf("failed to create consumed counter: %w", err)
	}

	if m.sagaTimeoutTotal, err = m.meter.Int64Counter(
		metricsNamespace+"_saga_timeout_total",
		metric.WithDescription("Saga legs expired by the timeout worker"),
	); err != nil {
		return fmt.Errorf("failed to create saga timeout counter: %w", err)
	}

	if m.breakerStateTotal, err = m.meter.Int64Counter(
		metricsNamespace+"_breaker_state_changes_total",
		metric.WithDescription("Circuit breaker state transitions"),
	); err != nil {
		return fmt.Errorf("failed to create breaker state counter: %w", err)
	}

	return nil
}

func (m *OTELMetrics) RecordOutboxEvent(ctx context.Context, success bool, eventType string) {
	attrs := metric.WithAttributes(attribute.String("event_type", eventType))

	if success {
		m.outboxPublishedTotal.Add(ctx, 1, attrs)

		return
	}

	m.outboxFailedTotal.Add(ctx, 1, attrs)
}

func (m *OTELMetrics) RecordConsumedEvent(ctx context.Context, queue string, outcome string) {
	m.consumedTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("queue", queue),
		attribute.String("outcome", outcome),
	))
}

func (m *OTELMetrics) RecordSagaTimeout(ctx context.Context, eventType string) {
	m.sagaTimeoutTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("event_type", eventType)))
}

func (m *OTELMetrics) RecordBreakerStateChange(ctx context.Context, name, from, to string) {
	m.breakerStateTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("name", name),
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

func (m *OTELMetrics) Handler() http.Handler {
	return promhttp.Handler()
}

func (m *OTELMetrics) Shutdown(ctx context.Context) error {
	return m.meterProvider.Shutdown(ctx)
}

func (n *NoOpMetrics) RecordOutboxEvent(context.Context, bool, string)                  {}
func (n *NoOpMetrics) RecordConsumedEvent(context.Context, string, string)              {}
func (n *NoOpMetrics) RecordSagaTimeout(context.Context, string)                        {}
func (n *NoOpMetrics) RecordBreakerStateChange(context.Context, string, string, string) {}

func (n *NoOpMetrics) Handler() http.Handler {
	return http.NotFoundHandler()
}

func (n *NoOpMetrics) Shutdown(context.Context) error {
	return nil
}

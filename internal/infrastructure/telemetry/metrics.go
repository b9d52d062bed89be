package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.uber.org/zap"
)

// MeterProvider wraps the OpenTelemetry MeterProvider with lifecycle management
type MeterProvider struct {
	provider *sdkmetric.MeterProvider
	logger   *zap.Logger
}

// NewMeterProvider creates a MeterProvider exporting over OTLP gRPC.
// If telemetry is disabled, it returns a no-op provider.
func NewMeterProvider(ctx context.Context, cfg Config, logger *zap.Logger) (*MeterProvider, error) {
	mp := &MeterProvider{logger: logger}
	if !cfg.Enabled {
		return mp, nil
	}

	exporterOpts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(cfg.CollectorEndpoint),
	}
	if cfg.Insecure {
		exporterOpts = append(exporterOpts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, exporterOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metric exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	mp.provider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(30*time.Second))),
	)
	otel.SetMeterProvider(mp.provider)
	return mp, nil
}

// Shutdown flushes and stops the meter provider
func (mp *MeterProvider) Shutdown(ctx context.Context) error {
	if mp.provider == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return mp.provider.Shutdown(shutdownCtx)
}

// MigrationMetrics records import activity counters
type MigrationMetrics struct {
	jobsStarted      metric.Int64Counter
	jobsCompleted    metric.Int64Counter
	jobsFailed       metric.Int64Counter
	entitiesImported metric.Int64Counter
	entitiesSkipped  metric.Int64Counter
}

// NewMigrationMetrics registers the migration counters on the global meter
func NewMigrationMetrics() (*MigrationMetrics, error) {
	meter := otel.Meter("agencyboard.migration")

	jobsStarted, err := meter.Int64Counter("migration.jobs.started",
		metric.WithDescription("Number of migration jobs started"))
	if err != nil {
		return nil, err
	}
	jobsCompleted, err := meter.Int64Counter("migration.jobs.completed",
		metric.WithDescription("Number of migration jobs completed successfully"))
	if err != nil {
		return nil, err
	}
	jobsFailed, err := meter.Int64Counter("migration.jobs.failed",
		metric.WithDescription("Number of migration jobs that failed"))
	if err != nil {
		return nil, err
	}
	entitiesImported, err := meter.Int64Counter("migration.entities.imported",
		metric.WithDescription("Number of entities imported, by kind"))
	if err != nil {
		return nil, err
	}
	entitiesSkipped, err := meter.Int64Counter("migration.entities.skipped",
		metric.WithDescription("Number of entities skipped because they were already imported"))
	if err != nil {
		return nil, err
	}

	return &MigrationMetrics{
		jobsStarted:      jobsStarted,
		jobsCompleted:    jobsCompleted,
		jobsFailed:       jobsFailed,
		entitiesImported: entitiesImported,
		entitiesSkipped:  entitiesSkipped,
	}, nil
}

// JobStarted records a job start
func (m *MigrationMetrics) JobStarted(ctx context.Context) {
	m.jobsStarted.Add(ctx, 1)
}

// JobCompleted records a successful job completion
func (m *MigrationMetrics) JobCompleted(ctx context.Context) {
	m.jobsCompleted.Add(ctx, 1)
}

// JobFailed records a job failure
func (m *MigrationMetrics) JobFailed(ctx context.Context) {
	m.jobsFailed.Add(ctx, 1)
}

// EntityImported records a successfully imported entity of the given kind
func (m *MigrationMetrics) EntityImported(ctx context.Context, kind string) {
	m.entitiesImported.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// EntitySkipped records an entity skipped by the idempotency ledger
func (m *MigrationMetrics) EntitySkipped(ctx context.Context, kind string) {
	m.entitiesSkipped.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

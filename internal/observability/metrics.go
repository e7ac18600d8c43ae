package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/uiowa-coph/roomres/internal/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

type AppMetrics struct {
	authRefreshCounter   metric.Int64Counter
	appTokenCounter      metric.Int64Counter
	pipelineStageCounter metric.Int64Counter
	repositoryCounter    metric.Int64Counter
	docSyncCounter       metric.Int64Counter
}

var (
	metricsMu  sync.RWMutex
	appMetrics *AppMetrics
)

func InitMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sdkmetric.MeterProvider, error) {
	if !cfg.OTELMetricsEnabled {
		mp := sdkmetric.NewMeterProvider()
		otel.SetMeterProvider(mp)
		logger.Info("otel metrics disabled")
		return mp, nil
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTELExporterOTLPEndpoint)}
	if cfg.OTELExporterOTLPInsecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp metric exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", cfg.OTELServiceName),
			attribute.String("deployment.environment", cfg.OTELEnvironment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create metric resource: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.OTELMetricsExportInterval))
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(mp)

	meter := mp.Meter("roomres")
	refreshCounter, err := meter.Int64Counter("auth.refresh.attempts")
	if err != nil {
		return nil, err
	}
	appTokenCounter, err := meter.Int64Counter("auth.app_token.acquisitions")
	if err != nil {
		return nil, err
	}
	stageCounter, err := meter.Int64Counter("pipeline.stage.outcomes")
	if err != nil {
		return nil, err
	}
	repoCounter, err := meter.Int64Counter("repository.operations")
	if err != nil {
		return nil, err
	}
	docSyncCounter, err := meter.Int64Counter("docsync.attempts")
	if err != nil {
		return nil, err
	}

	metricsMu.Lock()
	appMetrics = &AppMetrics{
		authRefreshCounter:   refreshCounter,
		appTokenCounter:      appTokenCounter,
		pipelineStageCounter: stageCounter,
		repositoryCounter:    repoCounter,
		docSyncCounter:       docSyncCounter,
	}
	metricsMu.Unlock()

	logger.Info("otel metrics initialized", "endpoint", cfg.OTELExporterOTLPEndpoint)
	return mp, nil
}

func RecordAuthRefresh(status string) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.authRefreshCounter.Add(context.Background(), 1, metric.WithAttributes(attribute.String("status", status)))
}

func RecordAppTokenAcquisition(status string) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.appTokenCounter.Add(context.Background(), 1, metric.WithAttributes(attribute.String("status", status)))
}

func RecordPipelineStage(operation, stage, outcome string) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.pipelineStageCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("stage", stage),
			attribute.String("outcome", outcome),
		),
	)
}

func RecordRepositoryOperation(ctx context.Context, entity, operation, outcome string) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.repositoryCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("entity", entity),
			attribute.String("operation", operation),
			attribute.String("outcome", outcome),
		),
	)
}

func RecordDocSyncAttempt(action, outcome string) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.docSyncCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String("action", action),
			attribute.String("outcome", outcome),
		),
	)
}

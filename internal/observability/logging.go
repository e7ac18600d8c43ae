package observability

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/uiowa-coph/roomres/internal/config"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
)

// InitLogger builds the process logger. With OTel logs enabled the slog
// bridge ships records through the OTLP exporter; otherwise records go to
// stderr as JSON.
func InitLogger(ctx context.Context, cfg *config.Config) (*slog.Logger, *sdklog.LoggerProvider, error) {
	if !cfg.OTELLogsEnabled {
		return slog.New(slog.NewJSONHandler(os.Stderr, nil)), nil, nil
	}

	opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(cfg.OTELExporterOTLPEndpoint)}
	if cfg.OTELExporterOTLPInsecure {
		opts = append(opts, otlploggrpc.WithInsecure())
	}
	exporter, err := otlploggrpc.New(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("create otlp log exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", cfg.OTELServiceName),
			attribute.String("deployment.environment", cfg.OTELEnvironment),
		),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("create log resource: %w", err)
	}

	lp := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
		sdklog.WithResource(res),
	)
	handler := otelslog.NewHandler(cfg.OTELServiceName, otelslog.WithLoggerProvider(lp))
	return slog.New(handler), lp, nil
}

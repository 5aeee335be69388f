package tracing

import (
	"context"
	"time"

	"github.com/lshigami/formresponses/config"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.uber.org/fx"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Init installs the W3C propagator and, when an OTLP endpoint is configured,
// a batching tracer provider exporting over gRPC. The exporter is flushed
// when the application stops.
func Init(lc fx.Lifecycle, cfg *config.Config) error {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	if cfg.Tracing.Endpoint == "" {
		log.Info().Msg("OTEL_EXPORTER_OTLP_ENDPOINT not set, traces are not exported")
		return nil
	}

	ctx := context.Background()
	conn, err := grpc.NewClient(cfg.Tracing.Endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return err
	}
	exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return err
	}
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceNameKey.String(cfg.Tracing.ServiceName)))
	if err != nil {
		return err
	}
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(provider)
	log.Info().Str("endpoint", cfg.Tracing.Endpoint).Msg("Trace export enabled")

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			if err := provider.Shutdown(ctx); err != nil {
				log.Error().Err(err).Msg("Failed to flush traces")
			}
			return conn.Close()
		},
	})
	return nil
}

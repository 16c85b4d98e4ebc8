// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package utils

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"go.opentelemetry.io/contrib/propagators/jaeger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// OTLP transport protocols.
const (
	OTelProtocolGRPC = "grpc"
	OTelProtocolHTTP = "http"
)

// Exporter selections for traces, metrics and logs.
const (
	OTelExporterOTLP = "otlp"
	OTelExporterNone = "none"
)

const defaultServiceName = "lfx-v2-live-session-service"

// OTelConfig holds the OpenTelemetry SDK settings.
type OTelConfig struct {
	ServiceName       string
	ServiceVersion    string
	Protocol          string
	Endpoint          string
	Insecure          bool
	TracesExporter    string
	TracesSampleRatio float64
	MetricsExporter   string
	LogsExporter      string
}

// OTelConfigFromEnv reads the OTEL_* environment variables.
func OTelConfigFromEnv() OTelConfig {
	serviceName := os.Getenv("OTEL_SERVICE_NAME")
	if serviceName == "" {
		serviceName = defaultServiceName
	}

	protocol := os.Getenv("OTEL_EXPORTER_OTLP_PROTOCOL")
	if protocol != OTelProtocolHTTP {
		protocol = OTelProtocolGRPC
	}

	ratio := 1.0
	if raw := os.Getenv("OTEL_TRACES_SAMPLE_RATIO"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		switch {
		case err != nil:
			slog.Warn("invalid OTEL_TRACES_SAMPLE_RATIO, using 1.0", "value", raw)
		case parsed < 0 || parsed > 1:
			slog.Warn("OTEL_TRACES_SAMPLE_RATIO out of range, using 1.0", "value", raw)
		default:
			ratio = parsed
		}
	}

	return OTelConfig{
		ServiceName:       serviceName,
		ServiceVersion:    os.Getenv("OTEL_SERVICE_VERSION"),
		Protocol:          protocol,
		Endpoint:          os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		Insecure:          os.Getenv("OTEL_EXPORTER_OTLP_INSECURE") == "true",
		TracesExporter:    exporterFromEnv("OTEL_TRACES_EXPORTER"),
		TracesSampleRatio: ratio,
		MetricsExporter:   exporterFromEnv("OTEL_METRICS_EXPORTER"),
		LogsExporter:      exporterFromEnv("OTEL_LOGS_EXPORTER"),
	}
}

func exporterFromEnv(key string) string {
	if os.Getenv(key) == OTelExporterOTLP {
		return OTelExporterOTLP
	}
	return OTelExporterNone
}

// SetupOTelSDK bootstraps the OpenTelemetry pipeline from the environment.
func SetupOTelSDK(ctx context.Context) (func(context.Context) error, error) {
	return SetupOTelSDKWithConfig(ctx, OTelConfigFromEnv())
}

// SetupOTelSDKWithConfig bootstraps the OpenTelemetry pipeline.
// The returned shutdown flushes and stops every provider; calling it more than once is safe.
func SetupOTelSDKWithConfig(ctx context.Context, cfg OTelConfig) (shutdown func(context.Context) error, err error) {
	var shutdownFuncs []func(context.Context) error

	shutdown = func(ctx context.Context) error {
		var errs error
		for _, fn := range shutdownFuncs {
			errs = errors.Join(errs, fn(ctx))
		}
		shutdownFuncs = nil
		return errs
	}

	handleErr := func(inErr error) {
		err = errors.Join(inErr, shutdown(ctx))
	}

	otel.SetTextMapPropagator(newPropagator())

	res, rErr := newResource(cfg)
	if rErr != nil {
		handleErr(rErr)
		return shutdown, err
	}

	if cfg.TracesExporter != OTelExporterNone {
		tracerProvider, tErr := newTracerProvider(ctx, cfg, res)
		if tErr != nil {
			handleErr(tErr)
			return shutdown, err
		}
		shutdownFuncs = append(shutdownFuncs, tracerProvider.Shutdown)
		otel.SetTracerProvider(tracerProvider)
	}

	if cfg.MetricsExporter != OTelExporterNone {
		meterProvider, mErr := newMeterProvider(ctx, cfg, res)
		if mErr != nil {
			handleErr(mErr)
			return shutdown, err
		}
		shutdownFuncs = append(shutdownFuncs, meterProvider.Shutdown)
		otel.SetMeterProvider(meterProvider)
	}

	if cfg.LogsExporter != OTelExporterNone {
		loggerProvider, lErr := newLoggerProvider(ctx, cfg, res)
		if lErr != nil {
			handleErr(lErr)
			return shutdown, err
		}
		shutdownFuncs = append(shutdownFuncs, loggerProvider.Shutdown)
		global.SetLoggerProvider(loggerProvider)
	}

	return shutdown, nil
}

func newResource(cfg OTelConfig) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		attribute.String("service.name", cfg.ServiceName),
	}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, attribute.String("service.version", cfg.ServiceVersion))
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(attrs...))
	if err != nil {
		return nil, fmt.Errorf("failed to build otel resource: %w", err)
	}
	return res, nil
}

func newPropagator() propagation.TextMapPropagator {
	return propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
		jaeger.Jaeger{},
	)
}

func newTracerProvider(ctx context.Context, cfg OTelConfig, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	var (
		exporter sdktrace.SpanExporter
		err      error
	)
	if cfg.Protocol == OTelProtocolHTTP {
		var opts []otlptracehttp.Option
		if cfg.Endpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpoint(cfg.Endpoint))
		}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		exporter, err = otlptracehttp.New(ctx, opts...)
	} else {
		var opts []otlptracegrpc.Option
		if cfg.Endpoint != "" {
			opts = append(opts, otlptracegrpc.WithEndpoint(cfg.Endpoint))
		}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exporter, err = otlptracegrpc.New(ctx, opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.TracesSampleRatio))),
		sdktrace.WithBatcher(exporter),
	), nil
}

func newMeterProvider(ctx context.Context, cfg OTelConfig, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	var (
		exporter sdkmetric.Exporter
		err      error
	)
	if cfg.Protocol == OTelProtocolHTTP {
		var opts []otlpmetrichttp.Option
		if cfg.Endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(cfg.Endpoint))
		}
		if cfg.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		exporter, err = otlpmetrichttp.New(ctx, opts...)
	} else {
		var opts []otlpmetricgrpc.Option
		if cfg.Endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(cfg.Endpoint))
		}
		if cfg.Insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		exporter, err = otlpmetricgrpc.New(ctx, opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	return sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
	), nil
}

func newLoggerProvider(ctx context.Context, cfg OTelConfig, res *resource.Resource) (*sdklog.LoggerProvider, error) {
	var (
		exporter sdklog.Exporter
		err      error
	)
	if cfg.Protocol == OTelProtocolHTTP {
		var opts []otlploghttp.Option
		if cfg.Endpoint != "" {
			opts = append(opts, otlploghttp.WithEndpoint(cfg.Endpoint))
		}
		if cfg.Insecure {
			opts = append(opts, otlploghttp.WithInsecure())
		}
		exporter, err = otlploghttp.New(ctx, opts...)
	} else {
		var opts []otlploggrpc.Option
		if cfg.Endpoint != "" {
			opts = append(opts, otlploggrpc.WithEndpoint(cfg.Endpoint))
		}
		if cfg.Insecure {
			opts = append(opts, otlploggrpc.WithInsecure())
		}
		exporter, err = otlploggrpc.New(ctx, opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create log exporter: %w", err)
	}

	return sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
	), nil
}

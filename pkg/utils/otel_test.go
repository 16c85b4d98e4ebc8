// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package utils

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/propagation"
)

var otelEnvVars = []string{
	"OTEL_SERVICE_NAME",
	"OTEL_SERVICE_VERSION",
	"OTEL_EXPORTER_OTLP_PROTOCOL",
	"OTEL_EXPORTER_OTLP_ENDPOINT",
	"OTEL_EXPORTER_OTLP_INSECURE",
	"OTEL_TRACES_EXPORTER",
	"OTEL_TRACES_SAMPLE_RATIO",
	"OTEL_METRICS_EXPORTER",
	"OTEL_LOGS_EXPORTER",
}

func clearOTelEnv(t *testing.T) {
	t.Helper()
	for _, key := range otelEnvVars {
		t.Setenv(key, "")
	}
}

func disabledOTelConfig() OTelConfig {
	return OTelConfig{
		ServiceName:       "test-service",
		Protocol:          OTelProtocolGRPC,
		TracesExporter:    OTelExporterNone,
		TracesSampleRatio: 1.0,
		MetricsExporter:   OTelExporterNone,
		LogsExporter:      OTelExporterNone,
	}
}

func TestOTelConfigFromEnv_Defaults(t *testing.T) {
	clearOTelEnv(t)

	cfg := OTelConfigFromEnv()

	assert.Equal(t, "lfx-v2-live-session-service", cfg.ServiceName)
	assert.Empty(t, cfg.ServiceVersion)
	assert.Equal(t, OTelProtocolGRPC, cfg.Protocol)
	assert.Empty(t, cfg.Endpoint)
	assert.False(t, cfg.Insecure)
	assert.Equal(t, OTelExporterNone, cfg.TracesExporter)
	assert.Equal(t, 1.0, cfg.TracesSampleRatio)
	assert.Equal(t, OTelExporterNone, cfg.MetricsExporter)
	assert.Equal(t, OTelExporterNone, cfg.LogsExporter)
}

func TestOTelConfigFromEnv_CustomValues(t *testing.T) {
	t.Setenv("OTEL_SERVICE_NAME", "test-service")
	t.Setenv("OTEL_SERVICE_VERSION", "1.2.3")
	t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "http")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "true")
	t.Setenv("OTEL_TRACES_EXPORTER", "otlp")
	t.Setenv("OTEL_TRACES_SAMPLE_RATIO", "0.5")
	t.Setenv("OTEL_METRICS_EXPORTER", "otlp")
	t.Setenv("OTEL_LOGS_EXPORTER", "otlp")

	cfg := OTelConfigFromEnv()

	assert.Equal(t, "test-service", cfg.ServiceName)
	assert.Equal(t, "1.2.3", cfg.ServiceVersion)
	assert.Equal(t, OTelProtocolHTTP, cfg.Protocol)
	assert.Equal(t, "localhost:4318", cfg.Endpoint)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, OTelExporterOTLP, cfg.TracesExporter)
	assert.Equal(t, 0.5, cfg.TracesSampleRatio)
	assert.Equal(t, OTelExporterOTLP, cfg.MetricsExporter)
	assert.Equal(t, OTelExporterOTLP, cfg.LogsExporter)
}

func TestOTelConfigFromEnv_TracesSampleRatio(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected float64
	}{
		{"valid zero", "0.0", 0.0},
		{"valid half", "0.5", 0.5},
		{"valid one", "1.0", 1.0},
		{"negative falls back", "-0.1", 1.0},
		{"above one falls back", "1.5", 1.0},
		{"not a number falls back", "abc", 1.0},
		{"empty falls back", "", 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearOTelEnv(t)
			t.Setenv("OTEL_TRACES_SAMPLE_RATIO", tt.value)
			assert.Equal(t, tt.expected, OTelConfigFromEnv().TracesSampleRatio)
		})
	}
}

func TestOTelConfigFromEnv_InsecureFlag(t *testing.T) {
	tests := []struct {
		value    string
		expected bool
	}{
		{"true", true},
		{"false", false},
		{"1", false},
		{"TRUE", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run("value="+tt.value, func(t *testing.T) {
			clearOTelEnv(t)
			t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", tt.value)
			assert.Equal(t, tt.expected, OTelConfigFromEnv().Insecure)
		})
	}
}

func TestSetupOTelSDKWithConfig_AllDisabled(t *testing.T) {
	shutdown, err := SetupOTelSDKWithConfig(context.Background(), disabledOTelConfig())
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetupOTelSDKWithConfig_ShutdownIdempotent(t *testing.T) {
	shutdown, err := SetupOTelSDKWithConfig(context.Background(), disabledOTelConfig())
	require.NoError(t, err)

	assert.NoError(t, shutdown(context.Background()))
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetupOTelSDK(t *testing.T) {
	clearOTelEnv(t)

	shutdown, err := SetupOTelSDK(context.Background())
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestNewResource(t *testing.T) {
	tests := []struct {
		name    string
		cfg     OTelConfig
		version string
	}{
		{"name only", OTelConfig{ServiceName: "live-sessions"}, ""},
		{"name and version", OTelConfig{ServiceName: "live-sessions", ServiceVersion: "2.0.0"}, "2.0.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := newResource(tt.cfg)
			require.NoError(t, err)

			attrs := map[string]string{}
			for _, kv := range res.Attributes() {
				attrs[string(kv.Key)] = kv.Value.AsString()
			}
			assert.Equal(t, "live-sessions", attrs["service.name"])
			if tt.version != "" {
				assert.Equal(t, tt.version, attrs["service.version"])
			}
		})
	}
}

func TestNewPropagator(t *testing.T) {
	fields := newPropagator().Fields()
	for _, expected := range []string{"traceparent", "tracestate", "baggage"} {
		assert.Contains(t, fields, expected)
	}

	var _ propagation.TextMapPropagator = newPropagator()
}

func TestOTelConfig_ZeroValue(t *testing.T) {
	var cfg OTelConfig

	// An empty exporter is not "none"; callers must opt out explicitly.
	assert.NotEqual(t, OTelExporterNone, cfg.TracesExporter)
	assert.Zero(t, cfg.TracesSampleRatio)
}

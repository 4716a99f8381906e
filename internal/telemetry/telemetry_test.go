package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"github.com/airsense/aqiforecast/internal/telemetry"
)

func TestInit_Disabled(t *testing.T) {
	ctx := context.Background()

	provider, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    "aqiforecast-test",
		ServiceVersion: "1.0.0",
		Environment:    "test",
		OTLPEndpoint:   "localhost:4317",
		Enabled:        false,
	})

	require.NoError(t, err)
	assert.NotNil(t, provider)
	assert.NotNil(t, provider.Tracer)
	assert.NotNil(t, provider.Meter)

	// Noop provider should have nil TracerProvider and MeterProvider
	assert.Nil(t, provider.TracerProvider)
	assert.Nil(t, provider.MeterProvider)

	// Shutdown should not error
	err = provider.Shutdown(ctx)
	assert.NoError(t, err)
}

func TestProvider_Shutdown_NilProviders(t *testing.T) {
	provider := &telemetry.Provider{}
	err := provider.Shutdown(context.Background())
	assert.NoError(t, err)
}

func TestConfig_Resource(t *testing.T) {
	cfg := telemetry.Config{
		ServiceName:    "aqiforecast-api",
		ServiceVersion: "1.2.0",
		Environment:    "staging",
		InstanceID:     "replica-1",
	}

	res, err := cfg.Resource(context.Background())
	require.NoError(t, err)

	attrs := res.Set()
	name, ok := attrs.Value(semconv.ServiceNameKey)
	require.True(t, ok)
	assert.Equal(t, "aqiforecast-api", name.AsString())

	instance, ok := attrs.Value(semconv.ServiceInstanceIDKey)
	require.True(t, ok)
	assert.Equal(t, "replica-1", instance.AsString())

	env, ok := attrs.Value(semconv.DeploymentEnvironmentKey)
	require.True(t, ok)
	assert.Equal(t, "staging", env.AsString())
}

func TestConfig_ResourceGeneratesInstanceID(t *testing.T) {
	res, err := telemetry.Config{ServiceName: "aqiforecast-worker"}.Resource(context.Background())
	require.NoError(t, err)

	instance, ok := res.Set().Value(semconv.ServiceInstanceIDKey)
	require.True(t, ok)
	assert.Len(t, instance.AsString(), 36)
}

func TestConfig_Sampler(t *testing.T) {
	tests := []struct {
		name  string
		ratio float64
		want  string
	}{
		{"zero samples everything", 0, "AlwaysOnSampler"},
		{"one samples everything", 1, "AlwaysOnSampler"},
		{"fraction is parent based", 0.25, "ParentBased{root:TraceIDRatioBased{0.25}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := telemetry.Config{SampleRatio: tt.ratio}
			assert.Contains(t, cfg.Sampler().Description(), tt.want)
		})
	}
}

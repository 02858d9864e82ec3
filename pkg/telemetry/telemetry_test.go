package telemetry

import (
	"context"
	"testing"

	"github.com/jingkaihe/skillet/pkg/config"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(previous) })
	return recorder
}

func TestWithSpan(t *testing.T) {
	recorder := withRecorder(t)
	ctx := context.Background()

	err := WithSpan(ctx, "select", func(ctx context.Context) error {
		AddEvent(ctx, "matched", attribute.String("skill", "code-explainer"))
		return nil
	}, attribute.String("text", "hello"))
	require.NoError(t, err)

	err = WithSpan(ctx, "lint", func(context.Context) error {
		return errors.New("boom")
	})
	require.EqualError(t, err, "boom")

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "select", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	require.Len(t, spans[0].Events(), 1)
	assert.Equal(t, "matched", spans[0].Events()[0].Name)
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, "boom", spans[1].Status().Description)
}

func TestWithSpanValue(t *testing.T) {
	recorder := withRecorder(t)

	out, err := WithSpanValue(context.Background(), "render", func(context.Context) (string, error) {
		return "rendered", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "rendered", out)
	require.Len(t, recorder.Ended(), 1)
}

func TestInitTracerDisabled(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), Config{Enabled: false})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(config.TracingConfig{Enabled: true, Sampler: "ratio", Ratio: 0.5}, "1.2.3")
	assert.Equal(t, Config{
		Enabled:        true,
		ServiceName:    ServiceName,
		ServiceVersion: "1.2.3",
		SamplerType:    "ratio",
		SamplerRatio:   0.5,
	}, cfg)
}

func TestGetSampler(t *testing.T) {
	assert.Contains(t, getSampler(Config{SamplerType: "never"}).Description(), "AlwaysOff")
	assert.Contains(t, getSampler(Config{SamplerType: "always"}).Description(), "AlwaysOn")
	assert.Contains(t, getSampler(Config{SamplerType: "ratio", SamplerRatio: 0.5}).Description(), "ParentBased")
}

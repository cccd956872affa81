package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

func setupRecorded(t *testing.T, cfg Config) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	p, err := Setup(cfg, sdktrace.WithSpanProcessor(sr))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })
	return sr
}

func TestSetup_FullRatioRecordsSpans(t *testing.T) {
	sr := setupRecorded(t, Config{
		ServiceName:    "xlsession-test",
		ServiceVersion: "1.2.3",
		InstanceID:     "host-42",
		SampleRatio:    1,
	})

	_, span := StartSpan(context.Background(), "test", "session.open")
	assert.True(t, span.SpanContext().IsSampled())
	EndSpan(span, errors.New("launch failed"))

	ended := sr.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "session.open", ended[0].Name())
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Equal(t, "launch failed", ended[0].Status().Description)

	attrs := ended[0].Resource().Set()
	name, ok := attrs.Value(semconv.ServiceNameKey)
	require.True(t, ok)
	assert.Equal(t, "xlsession-test", name.AsString())
	version, ok := attrs.Value(semconv.ServiceVersionKey)
	require.True(t, ok)
	assert.Equal(t, "1.2.3", version.AsString())
	instance, ok := attrs.Value(semconv.ServiceInstanceIDKey)
	require.True(t, ok)
	assert.Equal(t, "host-42", instance.AsString())
}

func TestSetup_ZeroRatioDropsRootSpans(t *testing.T) {
	sr := setupRecorded(t, Config{ServiceName: "xlsession-test", SampleRatio: 0})

	ctx, span := StartSpan(context.Background(), "test", "session.acquire")
	assert.False(t, span.SpanContext().IsSampled())
	// log correlation still gets a trace id
	assert.Equal(t, span.SpanContext().TraceID().String(), GetTraceID(ctx))
	EndSpan(span, nil)

	assert.Empty(t, sr.Ended())
}

func TestSetup_RejectsRatioOutOfRange(t *testing.T) {
	for _, ratio := range []float64{-0.1, 1.01} {
		p, err := Setup(Config{ServiceName: "xlsession-test", SampleRatio: ratio})
		require.Error(t, err)
		assert.Nil(t, p)
		assert.Contains(t, err.Error(), "sample ratio")
	}
}

func TestProvider_ShutdownNil(t *testing.T) {
	var p *Provider
	assert.NoError(t, p.Shutdown(context.Background()))
}

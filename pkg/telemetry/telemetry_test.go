package telemetry_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/cablecat/pkg/telemetry"
)

//nolint:paralleltest // Init replaces the global tracer provider.
func TestInit_Stdout(t *testing.T) {
	var buf bytes.Buffer

	shutdown, err := telemetry.Init(t.Context(), telemetry.Options{
		Exporter:       telemetry.ExporterStdout,
		Writer:         &buf,
		ServiceVersion: "test",
	})
	require.NoError(t, err)

	_, span := telemetry.Tracer().Start(t.Context(), "classify")
	span.End()

	require.NoError(t, shutdown(t.Context()))
	assert.Contains(t, buf.String(), `"Name":"classify"`)
	assert.Contains(t, buf.String(), "cablecat")
}

func TestInit(t *testing.T) {
	t.Parallel()

	shutdown, err := telemetry.Init(t.Context(), telemetry.Options{Exporter: telemetry.ExporterNone})
	require.NoError(t, err)
	require.NoError(t, shutdown(t.Context()))

	_, err = telemetry.Init(t.Context(), telemetry.Options{Exporter: "jaeger"})
	require.ErrorIs(t, err, telemetry.ErrUnknownExporter)
}

//nolint:paralleltest // Uses t.Setenv.
func TestOptions_FromEnv(t *testing.T) {
	t.Setenv("OTEL_TRACES_EXPORTER", "otlp")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "TRUE")

	got := telemetry.Options{Exporter: "none", Endpoint: "localhost:4317"}.FromEnv()
	assert.Equal(t, telemetry.Options{Exporter: "otlp", Endpoint: "collector:4317", Insecure: true}, got)
}

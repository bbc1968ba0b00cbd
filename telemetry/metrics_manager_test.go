package telemetry

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

func TestMetricsManager_Disabled(t *testing.T) {
	cfg := DefaultMetricsConfig()
	cfg.Enabled = false

	m, err := NewMetricsManager(cfg)
	require.NoError(t, err)
	assert.False(t, m.IsEnabled())
	assert.NotNil(t, m.MeterProvider())
	assert.NoError(t, m.ForceFlush(context.Background()))
	assert.NoError(t, m.Shutdown(context.Background()))
}

func TestMetricsManager_StdoutExporter(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultMetricsConfig()
	cfg.Exporter = "stdout"
	cfg.Labels = map[string]string{"env": "test"}

	m, err := NewMetricsManager(cfg, WithWriter(&buf))
	require.NoError(t, err)
	require.True(t, m.IsEnabled())

	counter, err := NewMetricsBuilder(m.MeterProvider().Meter("test"), "tiercache").Counter("writes_total", "writes")
	require.NoError(t, err)
	counter.Add(context.Background(), 1)

	require.NoError(t, m.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), "tiercache_writes_total")
}

func TestMetricsManager_ExtraReader(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	m, err := NewMetricsManager(DefaultMetricsConfig(), WithReader(reader))
	require.NoError(t, err)
	defer m.Shutdown(context.Background())

	counter, err := NewMetricsBuilder(m.MeterProvider().Meter("test"), "").Counter("hits_total", "hits")
	require.NoError(t, err)
	counter.Add(context.Background(), 2)

	_, ok := collect(t, reader)["hits_total"]
	assert.True(t, ok)
}

func TestMetricsConfig_Validate(t *testing.T) {
	cfg := DefaultMetricsConfig()
	cfg.Exporter = "otlp"
	assert.Error(t, cfg.Validate())

	cfg.Exporter = "stdout"
	cfg.ExportInterval = 0
	assert.Error(t, cfg.Validate())
}

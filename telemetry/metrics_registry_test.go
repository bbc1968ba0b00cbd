package telemetry

import (
	"errors"
	"testing"

	"github.com/KOMKZ/go-yogan-tiercache/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

type mockMetricsProvider struct {
	name           string
	enabled        bool
	registerCalled bool
	registerError  error
}

func (m *mockMetricsProvider) MetricsName() string { return m.name }

func (m *mockMetricsProvider) RegisterMetrics(metric.Meter) error {
	m.registerCalled = true
	return m.registerError
}

func (m *mockMetricsProvider) IsMetricsEnabled() bool { return m.enabled }

func newTestRegistry() *MetricsRegistry {
	return NewMetricsRegistry(noop.NewMeterProvider(), WithLogger(logger.Nop()))
}

func TestMetricsRegistry_Register(t *testing.T) {
	r := newTestRegistry()
	p := &mockMetricsProvider{name: "cache", enabled: true}

	require.NoError(t, r.Register(p))
	assert.True(t, p.registerCalled)
	assert.Equal(t, 1, r.ProviderCount())

	err := r.Register(&mockMetricsProvider{name: "cache", enabled: true})
	assert.Error(t, err)
}

func TestMetricsRegistry_RegisterSkipsDisabled(t *testing.T) {
	r := newTestRegistry()
	p := &mockMetricsProvider{name: "cache", enabled: false}
	require.NoError(t, r.Register(p))
	assert.False(t, p.registerCalled)

	r.SetEnabled(false)
	p2 := &mockMetricsProvider{name: "other", enabled: true}
	require.NoError(t, r.Register(p2))
	assert.False(t, p2.registerCalled)
	assert.Equal(t, 0, r.ProviderCount())
}

func TestMetricsRegistry_RegisterErrors(t *testing.T) {
	r := newTestRegistry()
	assert.Error(t, r.Register(nil))
	assert.Error(t, r.Register(&mockMetricsProvider{enabled: true}))

	boom := errors.New("boom")
	err := r.Register(&mockMetricsProvider{name: "bad", enabled: true, registerError: boom})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, r.ProviderCount())
}

func TestMetricsRegistry_GetMeterCached(t *testing.T) {
	r := newTestRegistry()
	assert.Same(t, r.GetMeter("cache"), r.GetMeter("cache"))
}

package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

// MetricsManager owns the SDK MeterProvider
type MetricsManager struct {
	meterProvider *sdkmetric.MeterProvider
	config        MetricsConfig
	enabled       bool
}

// MetricsManagerOption configures a MetricsManager
type MetricsManagerOption func(*metricsManagerOptions)

type metricsManagerOptions struct {
	writer  io.Writer
	readers []sdkmetric.Reader
	global  bool
}

// WithWriter stdout exporter destination (default os.Stdout)
func WithWriter(w io.Writer) MetricsManagerOption {
	return func(o *metricsManagerOptions) { o.writer = w }
}

// WithReader adds an extra reader, e.g. sdkmetric.NewManualReader() in tests
func WithReader(r sdkmetric.Reader) MetricsManagerOption {
	return func(o *metricsManagerOptions) { o.readers = append(o.readers, r) }
}

// WithGlobal installs the provider as the otel global MeterProvider
func WithGlobal() MetricsManagerOption {
	return func(o *metricsManagerOptions) { o.global = true }
}

// NewMetricsManager builds the MeterProvider. A disabled config yields a no-op manager.
func NewMetricsManager(cfg MetricsConfig, opts ...MetricsManagerOption) (*MetricsManager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		return &MetricsManager{config: cfg}, nil
	}

	o := &metricsManagerOptions{writer: os.Stdout}
	for _, opt := range opts {
		opt(o)
	}

	var providerOpts []sdkmetric.Option
	providerOpts = append(providerOpts, sdkmetric.WithResource(newResource(cfg)))

	if cfg.Exporter == "stdout" {
		exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(o.writer))
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout metrics exporter: %w", err)
		}
		providerOpts = append(providerOpts, sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.ExportInterval)),
		))
	}
	for _, r := range o.readers {
		providerOpts = append(providerOpts, sdkmetric.WithReader(r))
	}

	mp := sdkmetric.NewMeterProvider(providerOpts...)
	if o.global {
		otel.SetMeterProvider(mp)
	}

	return &MetricsManager{
		meterProvider: mp,
		config:        cfg,
		enabled:       true,
	}, nil
}

func newResource(cfg MetricsConfig) *resource.Resource {
	attrs := []attribute.KeyValue{attribute.String("service.name", cfg.ServiceName)}
	keys := make([]string, 0, len(cfg.Labels))
	for k := range cfg.Labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, attribute.String(k, os.ExpandEnv(cfg.Labels[k])))
	}
	return resource.NewSchemaless(attrs...)
}

// MeterProvider returns the SDK provider, or a no-op provider when disabled
func (m *MetricsManager) MeterProvider() metric.MeterProvider {
	if m.meterProvider == nil {
		return noop.NewMeterProvider()
	}
	return m.meterProvider
}

// ForceFlush exports pending data (used by short-lived CLI runs)
func (m *MetricsManager) ForceFlush(ctx context.Context) error {
	if m.meterProvider == nil {
		return nil
	}
	return m.meterProvider.ForceFlush(ctx)
}

// Shutdown flushes and stops every reader
func (m *MetricsManager) Shutdown(ctx context.Context) error {
	if m.meterProvider == nil {
		return nil
	}
	return m.meterProvider.Shutdown(ctx)
}

func (m *MetricsManager) IsEnabled() bool {
	return m.enabled
}

func (m *MetricsManager) GetConfig() MetricsConfig {
	return m.config
}

package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsBuilder 指标构建器，统一命名空间和单位
type MetricsBuilder struct {
	meter     metric.Meter
	namespace string
}

func NewMetricsBuilder(meter metric.Meter, namespace string) *MetricsBuilder {
	return &MetricsBuilder{
		meter:     meter,
		namespace: namespace,
	}
}

// fullName namespace_name
func (b *MetricsBuilder) fullName(name string) string {
	if b.namespace == "" {
		return name
	}
	return b.namespace + "_" + name
}

// Counter 创建 Int64Counter
func (b *MetricsBuilder) Counter(name, desc string) (metric.Int64Counter, error) {
	return b.meter.Int64Counter(
		b.fullName(name),
		metric.WithDescription(desc),
		metric.WithUnit("{count}"),
	)
}

// Histogram 创建 Float64Histogram
func (b *MetricsBuilder) Histogram(name, desc, unit string) (metric.Float64Histogram, error) {
	return b.meter.Float64Histogram(
		b.fullName(name),
		metric.WithDescription(desc),
		metric.WithUnit(unit),
	)
}

// DurationHistogram seconds
func (b *MetricsBuilder) DurationHistogram(name, desc string) (metric.Float64Histogram, error) {
	return b.Histogram(name, desc, "s")
}

// BytesHistogram 创建字节大小直方图
func (b *MetricsBuilder) BytesHistogram(name, desc string) (metric.Int64Histogram, error) {
	return b.meter.Int64Histogram(
		b.fullName(name),
		metric.WithDescription(desc),
		metric.WithUnit("By"),
	)
}

// Gauge single-value observable gauge
func (b *MetricsBuilder) Gauge(name, desc string, callback func(context.Context) (int64, error)) (metric.Int64ObservableGauge, error) {
	return b.meter.Int64ObservableGauge(
		b.fullName(name),
		metric.WithDescription(desc),
		metric.WithInt64Callback(func(ctx context.Context, o metric.Int64Observer) error {
			val, err := callback(ctx)
			if err != nil {
				return err
			}
			o.Observe(val)
			return nil
		}),
	)
}

// ObserveFunc records one series of a multi-series gauge
type ObserveFunc func(value int64, attrs ...attribute.KeyValue)

// MultiGauge observable gauge reporting one series per attribute set,
// e.g. live entries per category
func (b *MetricsBuilder) MultiGauge(name, desc string, callback func(context.Context, ObserveFunc) error) (metric.Int64ObservableGauge, error) {
	return b.meter.Int64ObservableGauge(
		b.fullName(name),
		metric.WithDescription(desc),
		metric.WithInt64Callback(func(ctx context.Context, o metric.Int64Observer) error {
			return callback(ctx, func(value int64, attrs ...attribute.KeyValue) {
				o.Observe(value, metric.WithAttributes(attrs...))
			})
		}),
	)
}

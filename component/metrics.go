package component

import (
	"go.opentelemetry.io/otel/metric"
)

// MetricsProvider is implemented by components that expose OpenTelemetry instruments.
//
//	func (m *Metrics) MetricsName() string { return "tiercache" }
//
//	func (m *Metrics) RegisterMetrics(meter metric.Meter) error {
//	    hits, err := meter.Int64Counter("tiercache_hits_total")
//	    ...
//	}
type MetricsProvider interface {
	// MetricsName short lowercase group name, used for the meter
	MetricsName() string

	// RegisterMetrics creates instruments on the given meter
	RegisterMetrics(meter metric.Meter) error

	IsMetricsEnabled() bool
}

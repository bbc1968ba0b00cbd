package cache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/KOMKZ/go-yogan-tiercache/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics OpenTelemetry instruments for the cache (implements component.MetricsProvider).
// Safe to use before RegisterMetrics: records are dropped until instruments exist.
type Metrics struct {
	enabled bool

	hits              metric.Int64Counter
	misses            metric.Int64Counter
	writes            metric.Int64Counter
	tierErrors        metric.Int64Counter
	recomputeDuration metric.Float64Histogram
	redisCommands     metric.Float64Histogram
	entries           metric.Int64ObservableGauge

	registered atomic.Bool
	counter    atomic.Pointer[CategoryCounter]
}

// NewMetrics 创建缓存指标
func NewMetrics(enabled bool) *Metrics {
	return &Metrics{enabled: enabled}
}

func (m *Metrics) MetricsName() string {
	return "tiercache"
}

func (m *Metrics) IsMetricsEnabled() bool {
	return m != nil && m.enabled
}

// RegisterMetrics 注册指标
func (m *Metrics) RegisterMetrics(meter metric.Meter) error {
	b := telemetry.NewMetricsBuilder(meter, "tiercache")

	var err error
	if m.hits, err = b.Counter("hits_total", "Cache hits by tier"); err != nil {
		return err
	}
	if m.misses, err = b.Counter("misses_total", "Cache misses by category"); err != nil {
		return err
	}
	if m.writes, err = b.Counter("writes_total", "Entries written by category"); err != nil {
		return err
	}
	if m.tierErrors, err = b.Counter("tier_errors_total", "Absorbed persistent tier failures"); err != nil {
		return err
	}
	if m.recomputeDuration, err = b.DurationHistogram("recompute_duration_seconds", "Recompute latency"); err != nil {
		return err
	}
	if m.redisCommands, err = b.DurationHistogram("redis_command_duration_seconds", "Redis tier command latency"); err != nil {
		return err
	}
	m.entries, err = b.MultiGauge("entries", "Live memory entries by category",
		func(_ context.Context, observe telemetry.ObserveFunc) error {
			c := m.counter.Load()
			if c == nil {
				return nil
			}
			for cat, n := range (*c).CategoryCounts() {
				observe(int64(n), attribute.String("category", string(cat)))
			}
			return nil
		})
	if err != nil {
		return err
	}

	m.registered.Store(true)
	return nil
}

func (m *Metrics) bindEntries(c CategoryCounter) {
	if m == nil || c == nil {
		return
	}
	m.counter.Store(&c)
}

func (m *Metrics) active() bool {
	return m != nil && m.enabled && m.registered.Load()
}

func (m *Metrics) recordHit(ctx context.Context, tier string, c Category) {
	if !m.active() {
		return
	}
	m.hits.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tier", tier),
		attribute.String("category", string(c)),
	))
}

func (m *Metrics) recordMiss(ctx context.Context, c Category) {
	if !m.active() {
		return
	}
	m.misses.Add(ctx, 1, metric.WithAttributes(attribute.String("category", string(c))))
}

func (m *Metrics) recordWrite(ctx context.Context, c Category, n int) {
	if !m.active() {
		return
	}
	m.writes.Add(ctx, int64(n), metric.WithAttributes(attribute.String("category", string(c))))
}

func (m *Metrics) recordTierError(ctx context.Context, tier, op string) {
	if !m.active() {
		return
	}
	m.tierErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tier", tier),
		attribute.String("op", op),
	))
}

func (m *Metrics) recordRecompute(ctx context.Context, c Category, d time.Duration, err error) {
	if !m.active() {
		return
	}
	m.recomputeDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("category", string(c)),
		attribute.Bool("error", err != nil),
	))
}

func (m *Metrics) recordRedisCommand(ctx context.Context, command string, d time.Duration, failed bool) {
	if !m.active() {
		return
	}
	m.redisCommands.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("command", command),
		attribute.Bool("error", failed),
	))
}

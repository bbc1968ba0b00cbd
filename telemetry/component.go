package telemetry

import (
	"context"
	"sync"

	"github.com/KOMKZ/go-yogan-tiercache/component"
	"github.com/KOMKZ/go-yogan-tiercache/logger"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Component owns the MetricsManager and the MetricsRegistry (config key "telemetry.metrics")
type Component struct {
	config   MetricsConfig
	opts     []MetricsManagerOption
	exporter string

	manager  *MetricsManager
	registry *MetricsRegistry
	logger   *logger.CtxZapLogger

	stopOnce sync.Once
}

func NewComponent(opts ...MetricsManagerOption) *Component {
	return &Component{config: DefaultMetricsConfig(), opts: opts}
}

// SetExporter 覆盖配置中的 exporter 并强制启用（tierctl --metrics）；Init 之前调用
func (c *Component) SetExporter(exporter string) {
	c.exporter = exporter
}

func (c *Component) Name() string {
	return component.ComponentTelemetry
}

func (c *Component) DependsOn() []string {
	return []string{component.ComponentConfig, component.ComponentLogger}
}

func (c *Component) Init(ctx context.Context, loader component.ConfigLoader) error {
	c.logger = logger.GetLogger("tiercache")

	c.config = DefaultMetricsConfig()
	if loader.IsSet("telemetry.metrics") {
		if err := loader.Unmarshal("telemetry.metrics", &c.config); err != nil {
			return err
		}
	}
	if c.exporter != "" {
		c.config.Exporter = c.exporter
		c.config.Enabled = true
	}

	manager, err := NewMetricsManager(c.config, c.opts...)
	if err != nil {
		return err
	}
	c.manager = manager
	c.registry = NewMetricsRegistry(manager.MeterProvider(),
		WithNamespace(c.config.Namespace),
		WithLogger(c.logger),
	)
	c.registry.SetEnabled(manager.IsEnabled())

	c.logger.DebugCtx(ctx, "telemetry initialized",
		zap.Bool("enabled", manager.IsEnabled()),
		zap.String("exporter", c.config.Exporter))
	return nil
}

func (c *Component) Start(context.Context) error {
	return nil
}

// Stop flushes pending data points then shuts the provider down; only the first call does work
func (c *Component) Stop(ctx context.Context) error {
	if c.manager == nil {
		return nil
	}
	var err error
	c.stopOnce.Do(func() {
		err = multierr.Append(c.manager.ForceFlush(ctx), c.manager.Shutdown(ctx))
	})
	return err
}

// Register hands a provider to the registry; no-op before Init
func (c *Component) Register(provider component.MetricsProvider) error {
	if c.registry == nil {
		return nil
	}
	return c.registry.Register(provider)
}

func (c *Component) GetManager() *MetricsManager {
	return c.manager
}

func (c *Component) GetRegistry() *MetricsRegistry {
	return c.registry
}

func (c *Component) GetConfig() MetricsConfig {
	return c.config
}

package health

import (
	"context"
	"time"

	"github.com/KOMKZ/go-yogan-tiercache/component"
	"github.com/KOMKZ/go-yogan-tiercache/logger"
	"github.com/KOMKZ/go-yogan-tiercache/registry"
	"go.uber.org/zap"
)

const ComponentName = "health"

// Component 健康检查组件，Start 时从 Registry 发现所有 HealthCheckProvider
type Component struct {
	aggregator *Aggregator
	config     Config
	logger     *logger.CtxZapLogger
	registry   *registry.Registry
}

func NewComponent() *Component {
	return &Component{config: DefaultConfig()}
}

func (c *Component) Name() string {
	return ComponentName
}

// DependsOn 可选依赖保证被检查的组件先于本组件启动
func (c *Component) DependsOn() []string {
	return []string{
		component.ComponentConfig,
		component.ComponentLogger,
		"optional:" + component.ComponentDatabase,
		"optional:" + component.ComponentCache,
	}
}

func (c *Component) Init(ctx context.Context, loader component.ConfigLoader) error {
	c.logger = logger.GetLogger("tiercache")

	c.config = DefaultConfig()
	if loader.IsSet("health") {
		if err := loader.Unmarshal("health", &c.config); err != nil {
			c.logger.WarnCtx(ctx, "invalid health config, using defaults", zap.Error(err))
			c.config = DefaultConfig()
		}
	}

	if !c.config.Enabled {
		c.logger.InfoCtx(ctx, "health check disabled")
		return nil
	}

	c.aggregator = NewAggregator(c.config.Timeout)
	c.aggregator.SetMetadata("service", c.config.Service)
	return nil
}

func (c *Component) Start(ctx context.Context) error {
	if c.aggregator == nil || c.registry == nil {
		return nil
	}

	for _, comp := range c.registry.Components() {
		if comp.Name() == ComponentName {
			continue
		}
		provider, ok := comp.(component.HealthCheckProvider)
		if !ok {
			continue
		}
		if checker := provider.GetHealthChecker(); checker != nil {
			c.aggregator.Register(checker)
			c.logger.DebugCtx(ctx, "health checker registered", zap.String("name", checker.Name()))
		}
	}
	return nil
}

func (c *Component) Stop(context.Context) error {
	return nil
}

// SetRegistry 由 Registry.Register 自动调用
func (c *Component) SetRegistry(r *registry.Registry) {
	c.registry = r
}

func (c *Component) GetAggregator() *Aggregator {
	return c.aggregator
}

func (c *Component) IsEnabled() bool {
	return c.config.Enabled
}

// Check 禁用时返回 healthy 且 metadata.enabled=false
func (c *Component) Check(ctx context.Context) *Response {
	if c.aggregator == nil {
		return &Response{
			Status:    StatusHealthy,
			Timestamp: time.Now(),
			Checks:    make(map[string]CheckResult),
			Metadata:  map[string]interface{}{"enabled": false},
		}
	}
	return c.aggregator.Check(ctx)
}

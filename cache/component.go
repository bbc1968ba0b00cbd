package cache

import (
	"context"
	"errors"
	"time"

	"github.com/KOMKZ/go-yogan-tiercache/component"
	"github.com/KOMKZ/go-yogan-tiercache/event"
	"github.com/KOMKZ/go-yogan-tiercache/health"
	"github.com/KOMKZ/go-yogan-tiercache/logger"
	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// ComponentName 组件名称
const ComponentName = component.ComponentCache

// Component 缓存组件
type Component struct {
	config    *Config
	manager   *Manager
	loader    *BatchLoader
	metrics   *Metrics
	scheduler gocron.Scheduler
	clock     clockwork.Clock
	log       *logger.CtxZapLogger

	// 外部依赖（需外部注入）
	dispatcher  event.Dispatcher
	unsubscribe func()
}

// NewComponent 创建缓存组件
func NewComponent() *Component {
	return &Component{clock: clockwork.NewRealClock()}
}

// Name 返回组件名称
func (c *Component) Name() string {
	return ComponentName
}

// DependsOn 依赖的组件
func (c *Component) DependsOn() []string {
	return []string{
		component.ComponentConfig,
		component.ComponentLogger,
		"optional:" + component.ComponentEvent,
		"optional:" + component.ComponentTelemetry,
	}
}

// Init reads the cache section and opens the tiers
func (c *Component) Init(ctx context.Context, loader component.ConfigLoader) error {
	cfg, err := LoadConfig(loader)
	if err != nil {
		return err
	}
	c.config = &cfg
	c.log = logger.GetLogger(LogModule)

	if !cfg.Enabled {
		return nil
	}

	c.metrics = NewMetrics(cfg.Metrics.Enabled)
	m, err := NewFromConfig(ctx, cfg,
		WithLogger(c.log),
		WithClock(c.clock),
		WithMetrics(c.metrics),
	)
	if err != nil {
		return err
	}
	if rt, ok := m.Disk().(*RedisTier); ok {
		rt.Instrument(c.metrics)
	}
	c.manager = m
	c.loader = NewBatchLoader(m, cfg.BatchSize)
	return nil
}

// Start subscribes invalidation rules, runs configured preloads and schedules the sweep
func (c *Component) Start(ctx context.Context) error {
	if c.manager == nil {
		c.log.Info("cache component disabled")
		return nil
	}

	if c.dispatcher != nil && len(c.config.InvalidationRules) > 0 {
		unsub, err := c.manager.SubscribeInvalidation(c.dispatcher, c.config.InvalidationRules)
		if err != nil {
			return err
		}
		c.unsubscribe = unsub
	}

	if err := c.preload(ctx); err != nil {
		// a cold cache still works
		c.log.WarnCtx(ctx, "cache preload incomplete", zap.Error(err))
	}

	if c.config.MaintenanceInterval > 0 {
		if err := c.startScheduler(c.config.MaintenanceInterval); err != nil {
			return err
		}
	}

	c.log.Info("cache component started")
	return nil
}

func (c *Component) preload(ctx context.Context) error {
	jobs, err := c.config.PreloadJobs()
	if err != nil || len(jobs) == 0 {
		return err
	}
	_, err = NewPreloader(c.loader, c.config.PreloadWorkers, c.log).Run(ctx, jobs...)
	return err
}

func (c *Component) startScheduler(interval time.Duration) error {
	s, err := gocron.NewScheduler(gocron.WithClock(c.clock))
	if err != nil {
		return ErrConfigInvalid.Wrapf(err, "create maintenance scheduler")
	}
	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(c.sweep),
		gocron.WithName("tiercache-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return ErrConfigInvalid.Wrapf(err, "schedule maintenance sweep")
	}
	s.Start()
	c.scheduler = s
	return nil
}

func (c *Component) sweep() {
	n, err := c.manager.Sweep(context.Background())
	if err != nil && !errors.Is(err, ErrManagerClosed) {
		c.log.Warn("scheduled cache sweep failed", zap.Int("reclaimed", n), zap.Error(err))
	}
}

// Stop 停止组件（可重复调用）
func (c *Component) Stop(ctx context.Context) error {
	if c.scheduler != nil {
		if err := c.scheduler.Shutdown(); err != nil {
			c.log.Warn("maintenance scheduler shutdown failed", zap.Error(err))
		}
		c.scheduler = nil
	}
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
	if c.manager == nil {
		return nil
	}
	if err := c.manager.Shutdown(); err != nil {
		return err
	}
	c.log.Info("cache component stopped")
	return nil
}

// SetEventDispatcher 设置事件分发器（Start 之前调用）
func (c *Component) SetEventDispatcher(dispatcher event.Dispatcher) {
	c.dispatcher = dispatcher
}

// SetClock replaces the clock used by the manager and the scheduler; call before Init
func (c *Component) SetClock(clock clockwork.Clock) {
	c.clock = clock
}

// GetManager nil when the component is disabled
func (c *Component) GetManager() *Manager {
	return c.manager
}

// GetBatchLoader 批量加载器
func (c *Component) GetBatchLoader() *BatchLoader {
	return c.loader
}

// GetMetrics provider for telemetry.MetricsRegistry; nil when disabled
func (c *Component) GetMetrics() component.MetricsProvider {
	if c.metrics == nil {
		return nil
	}
	return c.metrics
}

// GetHealthChecker 获取健康检查器
func (c *Component) GetHealthChecker() component.HealthChecker {
	return c
}

// Check 健康检查；持久层不可达只算降级，Manager 会吸收这类错误
func (c *Component) Check(ctx context.Context) error {
	if c.manager == nil {
		return nil // 未启用时视为健康
	}
	if _, _, err := c.manager.Peek(ctx, CategoryGeneric, "__health_check__"); err != nil {
		return err
	}
	if p, ok := c.manager.Disk().(Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return health.Degraded(err)
		}
	}
	return nil
}

package event

import (
	"context"

	"github.com/KOMKZ/go-yogan-tiercache/component"
	"github.com/KOMKZ/go-yogan-tiercache/logger"
	"go.uber.org/zap"
)

// Component owns the process-wide dispatcher
type Component struct {
	dispatcher *dispatcher
	logger     *logger.CtxZapLogger
	config     Config
}

func NewComponent() *Component {
	return &Component{config: DefaultConfig()}
}

func (c *Component) Name() string {
	return component.ComponentEvent
}

func (c *Component) DependsOn() []string {
	return []string{component.ComponentConfig, component.ComponentLogger}
}

// Init reads the "event" section; a missing section keeps the defaults
func (c *Component) Init(ctx context.Context, loader component.ConfigLoader) error {
	c.logger = logger.GetLogger("tiercache")

	c.config = DefaultConfig()
	if loader.IsSet("event") {
		if err := loader.Unmarshal("event", &c.config); err != nil {
			return err
		}
	}

	if !c.config.Enabled {
		c.logger.InfoCtx(ctx, "event dispatcher disabled")
		return nil
	}

	c.dispatcher = NewDispatcher(
		WithPoolSize(c.config.PoolSize),
		WithSetAllSync(c.config.SetAllSync),
		WithLogger(c.logger),
	)
	c.logger.DebugCtx(ctx, "event dispatcher initialized", zap.Int("pool_size", c.config.PoolSize))
	return nil
}

func (c *Component) Start(context.Context) error {
	return nil
}

func (c *Component) Stop(context.Context) error {
	if c.dispatcher != nil {
		c.dispatcher.Close()
	}
	return nil
}

// GetDispatcher nil when disabled or not initialized
func (c *Component) GetDispatcher() Dispatcher {
	if c.dispatcher == nil {
		return nil
	}
	return c.dispatcher
}

func (c *Component) IsEnabled() bool {
	return c.config.Enabled && c.dispatcher != nil
}

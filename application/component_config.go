package application

import (
	"context"
	"fmt"

	"github.com/KOMKZ/go-yogan-tiercache/component"
	"github.com/KOMKZ/go-yogan-tiercache/config"
)

// ConfigComponent 配置组件，同时实现 component.ConfigLoader
type ConfigComponent struct {
	options Options
	loader  *config.Loader
}

func NewConfigComponent(opts Options) *ConfigComponent {
	return &ConfigComponent{options: opts}
}

func (c *ConfigComponent) Name() string {
	return component.ComponentConfig
}

func (c *ConfigComponent) DependsOn() []string {
	return nil
}

// Init 构建并加载 Loader；传入的 loader 就是组件自己，忽略
func (c *ConfigComponent) Init(context.Context, component.ConfigLoader) error {
	loader, err := config.NewLoaderBuilder().
		WithConfigPath(c.options.ConfigPath).
		WithConfigFile(c.options.ConfigFile).
		WithEnvPrefix(c.options.EnvPrefix).
		Build()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	c.loader = loader
	return nil
}

func (c *ConfigComponent) Start(context.Context) error {
	return nil
}

func (c *ConfigComponent) Stop(context.Context) error {
	return nil
}

// GetLoader nil before Init
func (c *ConfigComponent) GetLoader() *config.Loader {
	return c.loader
}

func (c *ConfigComponent) Get(key string) interface{} {
	return c.loader.Get(key)
}

func (c *ConfigComponent) Unmarshal(key string, v interface{}) error {
	return c.loader.Unmarshal(key, v)
}

func (c *ConfigComponent) GetString(key string) string {
	return c.loader.GetString(key)
}

func (c *ConfigComponent) GetInt(key string) int {
	return c.loader.GetInt(key)
}

func (c *ConfigComponent) GetBool(key string) bool {
	return c.loader.GetBool(key)
}

func (c *ConfigComponent) IsSet(key string) bool {
	return c.loader.IsSet(key)
}

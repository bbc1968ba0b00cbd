package application

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const cliShutdownTimeout = 5 * time.Second

// CLIApplication BaseApplication + cobra。
// 组件在根命令的 PersistentPreRunE 中完成 Setup（此时 --config 等参数已解析），
// 命令结束后统一 Shutdown；子命令不要再设置 PersistentPreRunE。
type CLIApplication struct {
	*BaseApplication

	rootCmd *cobra.Command
	options Options
}

// NewCLI 在 rootCmd 上注册 --config / --config-dir / --env-prefix，opts 为默认值
func NewCLI(rootCmd *cobra.Command, opts Options) *CLIApplication {
	c := &CLIApplication{
		BaseApplication: NewBase(opts),
		rootCmd:         rootCmd,
		options:         opts,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&c.options.ConfigFile, "config", opts.ConfigFile, "config file (yaml)")
	flags.StringVar(&c.options.ConfigPath, "config-dir", opts.ConfigPath, "directory holding config.yaml and <env>.yaml")
	flags.StringVar(&c.options.EnvPrefix, "env-prefix", opts.EnvPrefix, "environment variable prefix")

	userHook := rootCmd.PersistentPreRunE
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if userHook != nil {
			if err := userHook(cmd, args); err != nil {
				return err
			}
		}
		return c.setup()
	}
	return c
}

// OnSetup 链式注册 Setup 回调
func (c *CLIApplication) OnSetup(fn func(*CLIApplication) error) *CLIApplication {
	c.BaseApplication.OnSetup(func(*BaseApplication) error {
		return fn(c)
	})
	return c
}

// OnReady 组件全部启动后、命令执行前调用
func (c *CLIApplication) OnReady(fn func(*CLIApplication) error) *CLIApplication {
	c.BaseApplication.OnReady(func(*BaseApplication) error {
		return fn(c)
	})
	return c
}

func (c *CLIApplication) OnShutdown(fn func(*CLIApplication) error) *CLIApplication {
	c.BaseApplication.OnShutdown(func(context.Context) error {
		return fn(c)
	})
	return c
}

func (c *CLIApplication) setup() error {
	c.configComp.options = c.options
	if err := c.Setup(); err != nil {
		return fmt.Errorf("setup failed: %w", err)
	}

	c.setState(StateRunning)
	if c.onReady != nil {
		if err := c.onReady(c.BaseApplication); err != nil {
			return fmt.Errorf("onReady failed: %w", err)
		}
	}
	c.MustGetLogger().DebugCtx(c.ctx, "CLI application initialized",
		zap.Duration("startup", c.GetStartDuration()))
	return nil
}

// Execute 同步执行命令；无论成功与否都会关闭已初始化的组件
func (c *CLIApplication) Execute() error {
	return c.ExecuteContext(context.Background())
}

func (c *CLIApplication) ExecuteContext(ctx context.Context) error {
	err := c.rootCmd.ExecuteContext(ctx)

	var shutdownErr error
	if c.GetState() != StateInit {
		shutdownErr = c.Shutdown(cliShutdownTimeout)
	}
	if err != nil {
		return err
	}
	return shutdownErr
}

// GetRootCmd 测试用
func (c *CLIApplication) GetRootCmd() *cobra.Command {
	return c.rootCmd
}

// AddCommand 添加子命令
func (c *CLIApplication) AddCommand(cmds ...*cobra.Command) *CLIApplication {
	c.rootCmd.AddCommand(cmds...)
	return c
}

// Options 解析命令行后的配置来源
func (c *CLIApplication) Options() Options {
	return c.options
}

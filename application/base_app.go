// Package application 应用启动框架：组件注册、按依赖初始化、跨组件装配、优雅关闭
// BaseApplication 是核心抽象，CLIApplication 在其上挂接 cobra
package application

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/KOMKZ/go-yogan-tiercache/component"
	"github.com/KOMKZ/go-yogan-tiercache/config"
	"github.com/KOMKZ/go-yogan-tiercache/logger"
	"github.com/KOMKZ/go-yogan-tiercache/registry"
	"go.uber.org/zap"
)

// LogModule 应用日志模块名
const LogModule = "tiercache"

// BaseApplication 应用核心框架
type BaseApplication struct {
	registry   *registry.Registry
	configComp *ConfigComponent
	loggerComp *LoggerComponent

	// Setup 之后可用
	logger *logger.CtxZapLogger

	// 生命周期
	ctx       context.Context
	cancel    context.CancelFunc
	state     AppState
	mu        sync.RWMutex
	startTime time.Time

	version string

	onSetup    func(*BaseApplication) error
	onReady    func(*BaseApplication) error
	onShutdown func(context.Context) error
}

// AppState 应用状态
type AppState int

const (
	StateInit AppState = iota
	StateSetup
	StateRunning
	StateStopping
	StateStopped
)

func (s AppState) String() string {
	switch s {
	case StateInit:
		return "Init"
	case StateSetup:
		return "Setup"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// NewBase 注册 config 和 logger 两个核心组件；配置在 Setup 时才加载
func NewBase(opts Options) *BaseApplication {
	ctx, cancel := context.WithCancel(context.Background())

	configComp := NewConfigComponent(opts)
	loggerComp := NewLoggerComponent(LogModule)

	reg := registry.NewRegistry()
	reg.MustRegister(configComp)
	reg.MustRegister(loggerComp)

	return &BaseApplication{
		registry:   reg,
		configComp: configComp,
		loggerComp: loggerComp,
		ctx:        ctx,
		cancel:     cancel,
		state:      StateInit,
		startTime:  time.Now(),
	}
}

// Register 注册业务组件（Setup 之前调用）
func (b *BaseApplication) Register(comps ...component.Component) error {
	for _, c := range comps {
		if err := b.registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// MustRegister 注册失败直接 panic
func (b *BaseApplication) MustRegister(comps ...component.Component) *BaseApplication {
	if err := b.Register(comps...); err != nil {
		panic(err)
	}
	return b
}

// WithVersion 设置应用版本号（链式调用）
func (b *BaseApplication) WithVersion(version string) *BaseApplication {
	b.version = version
	return b
}

func (b *BaseApplication) GetVersion() string {
	return b.version
}

// Setup 初始化 → 装配 → 启动所有组件，然后触发 OnSetup
func (b *BaseApplication) Setup() error {
	if state := b.GetState(); state != StateInit {
		return fmt.Errorf("setup called in state %s", state)
	}
	b.setState(StateSetup)

	if err := b.registry.Init(b.ctx); err != nil {
		return fmt.Errorf("init components: %w", err)
	}

	b.mu.Lock()
	b.logger = b.loggerComp.GetLogger()
	b.mu.Unlock()
	b.registry.SetLogger(b.logger)

	if err := b.wireComponents(b.ctx); err != nil {
		return fmt.Errorf("wire components: %w", err)
	}
	if err := b.registry.Start(b.ctx); err != nil {
		return fmt.Errorf("start components: %w", err)
	}

	if b.onSetup != nil {
		if err := b.onSetup(b); err != nil {
			return fmt.Errorf("onSetup failed: %w", err)
		}
	}

	b.log().DebugCtx(b.ctx, "application setup complete",
		zap.String("version", b.version),
		zap.Strings("config_files", b.configComp.GetLoader().GetLoadedFiles()))
	return nil
}

// Shutdown 优雅关闭：OnShutdown 回调 → 反向停止组件
func (b *BaseApplication) Shutdown(timeout time.Duration) error {
	if state := b.GetState(); state == StateStopping || state == StateStopped {
		return nil
	}
	b.setState(StateStopping)
	log := b.log()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if b.onShutdown != nil {
		if err := b.onShutdown(ctx); err != nil {
			log.ErrorCtx(ctx, "OnShutdown callback failed", zap.Error(err))
		}
	}

	err := b.registry.Stop(ctx)
	b.cancel()
	b.setState(StateStopped)
	return err
}

// WaitShutdown 阻塞直到 SIGINT/SIGTERM 或 Cancel；第二次信号强制退出
func (b *BaseApplication) WaitShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	log := b.log()
	select {
	case sig := <-quit:
		log.InfoCtx(b.ctx, "shutdown signal received", zap.String("signal", sig.String()))
		b.cancel()
		go func() {
			sig := <-quit
			log.WarnCtx(context.Background(), "second signal received, forcing exit", zap.String("signal", sig.String()))
			os.Exit(1)
		}()
	case <-b.ctx.Done():
		log.DebugCtx(context.Background(), "context cancelled, starting graceful shutdown")
	}
}

// Cancel 手动触发关闭（测试或程序控制）
func (b *BaseApplication) Cancel() {
	b.cancel()
}

func (b *BaseApplication) OnSetup(fn func(*BaseApplication) error) *BaseApplication {
	b.onSetup = fn
	return b
}

func (b *BaseApplication) OnReady(fn func(*BaseApplication) error) *BaseApplication {
	b.onReady = fn
	return b
}

func (b *BaseApplication) OnShutdown(fn func(context.Context) error) *BaseApplication {
	b.onShutdown = fn
	return b
}

// MustGetLogger Setup 之前调用会 panic
func (b *BaseApplication) MustGetLogger() *logger.CtxZapLogger {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.logger == nil {
		panic("logger not initialized, please call Setup() first")
	}
	return b.logger
}

// GetConfigLoader Setup 之前调用会 panic
func (b *BaseApplication) GetConfigLoader() *config.Loader {
	loader := b.configComp.GetLoader()
	if loader == nil {
		panic("config loader not initialized, please call Setup() first")
	}
	return loader
}

// GetRegistry 组件注册中心
func (b *BaseApplication) GetRegistry() *registry.Registry {
	return b.registry
}

func (b *BaseApplication) GetState() AppState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

func (b *BaseApplication) Context() context.Context {
	return b.ctx
}

// GetStartDuration 距 NewBase 的时长
func (b *BaseApplication) GetStartDuration() time.Duration {
	return time.Since(b.startTime)
}

// log Setup 失败时 logger 可能还没有
func (b *BaseApplication) log() *logger.CtxZapLogger {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.logger == nil {
		return logger.Nop()
	}
	return b.logger
}

func (b *BaseApplication) setState(state AppState) {
	b.mu.Lock()
	old := b.state
	b.state = state
	l := b.logger
	b.mu.Unlock()

	if l != nil {
		l.DebugCtx(b.ctx, "state changed", zap.String("from", old.String()), zap.String("to", state.String()))
	}
}

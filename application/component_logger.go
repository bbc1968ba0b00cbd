package application

import (
	"context"
	"fmt"

	"github.com/KOMKZ/go-yogan-tiercache/component"
	"github.com/KOMKZ/go-yogan-tiercache/logger"
)

// LoggerComponent 日志组件（核心组件）
type LoggerComponent struct {
	module     string
	coreLogger *logger.CtxZapLogger
}

// NewLoggerComponent module 为应用自身日志的模块名
func NewLoggerComponent(module string) *LoggerComponent {
	return &LoggerComponent{module: module}
}

func (l *LoggerComponent) Name() string {
	return component.ComponentLogger
}

func (l *LoggerComponent) DependsOn() []string {
	return []string{component.ComponentConfig}
}

// Init 读取 logger 配置并重建全局 Manager
func (l *LoggerComponent) Init(_ context.Context, loader component.ConfigLoader) error {
	cfg := logger.DefaultManagerConfig()
	if loader.IsSet("logger") {
		if err := loader.Unmarshal("logger", &cfg); err != nil {
			return fmt.Errorf("decode logger config: %w", err)
		}
	}

	logger.InitManager(cfg)
	if err := logger.ReloadConfig(cfg); err != nil {
		return err
	}
	l.coreLogger = logger.GetLogger(l.module)
	return nil
}

func (l *LoggerComponent) Start(context.Context) error {
	return nil
}

// Stop 刷新并关闭所有日志文件
func (l *LoggerComponent) Stop(ctx context.Context) error {
	if l.coreLogger != nil {
		l.coreLogger.DebugCtx(ctx, "application stopped")
		logger.CloseAll()
	}
	return nil
}

func (l *LoggerComponent) GetLogger() *logger.CtxZapLogger {
	return l.coreLogger
}

package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// NewObserved returns a logger recording into memory, for assertions in tests
//
//	log, logs := logger.NewObserved("tiercache", zapcore.DebugLevel)
//	mgr := cache.NewManager(cfg, cache.WithLogger(log))
//	assert.Equal(t, 1, logs.FilterMessage("tier write failed").Len())
func NewObserved(module string, level zapcore.Level) (*CtxZapLogger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return Wrap(module, zap.New(core), nil), logs
}

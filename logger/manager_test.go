package logger

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func fileManager(t *testing.T, mutate func(*ManagerConfig)) (*Manager, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := ManagerConfig{
		BaseLogDir:            dir,
		Level:                 "debug",
		Encoding:              "json",
		EnableFile:            true,
		EnableConsole:         false,
		EnableLevelInFilename: true,
		EnableTraceID:         true,
		MaxSize:               10,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return NewManager(cfg), dir
}

func readLog(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestManager_LevelSeparation(t *testing.T) {
	m, dir := fileManager(t, nil)
	log := m.GetLogger("tiercache")

	log.Debug("debug line")
	log.Warn("warn line")
	log.Error("error line")
	m.CloseAll()

	info := readLog(t, filepath.Join(dir, "tiercache", "tiercache-info.log"))
	errs := readLog(t, filepath.Join(dir, "tiercache", "tiercache-error.log"))

	assert.Contains(t, info, "debug line")
	assert.Contains(t, info, "warn line")
	assert.NotContains(t, info, "error line")
	assert.Contains(t, errs, "error line")
	assert.NotContains(t, errs, "warn line")
	assert.Contains(t, info, `"module":"tiercache"`)
}

func TestManager_FileDisabled(t *testing.T) {
	m, dir := fileManager(t, func(c *ManagerConfig) { c.EnableFile = false })
	m.GetLogger("tiercache").Info("nowhere")
	m.CloseAll()

	_, err := os.Stat(filepath.Join(dir, "tiercache"))
	assert.True(t, os.IsNotExist(err))
}

func TestManager_SameModuleSameInstance(t *testing.T) {
	m, _ := fileManager(t, nil)
	defer m.CloseAll()

	var wg sync.WaitGroup
	got := make([]*CtxZapLogger, 16)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = m.GetLogger("tiercache")
		}(i)
	}
	wg.Wait()

	for _, l := range got {
		assert.Same(t, got[0], l)
	}
	assert.NotSame(t, got[0], m.GetLogger("tiercache_sql"))
}

func TestManager_DateInFilename(t *testing.T) {
	m, dir := fileManager(t, func(c *ManagerConfig) {
		c.EnableDateInFilename = true
		c.DateFormat = "2006"
	})
	m.GetLogger("tiercache").Info("dated")
	m.CloseAll()

	matches, err := filepath.Glob(filepath.Join(dir, "tiercache", "tiercache-info-*.log"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestManager_TraceIDFromContext(t *testing.T) {
	m, dir := fileManager(t, nil)
	ctx := context.WithValue(context.Background(), "trace_id", "trace-abc")
	m.GetLogger("tiercache").InfoCtx(ctx, "traced", zap.String("category", "geo"))
	m.CloseAll()

	info := readLog(t, filepath.Join(dir, "tiercache", "tiercache-info.log"))
	assert.Contains(t, info, `"trace_id":"trace-abc"`)
	assert.Contains(t, info, `"category":"geo"`)
}

func TestManager_TraceIDDisabled(t *testing.T) {
	m, dir := fileManager(t, func(c *ManagerConfig) { c.EnableTraceID = false })
	ctx := context.WithValue(context.Background(), "trace_id", "trace-abc")
	m.GetLogger("tiercache").InfoCtx(ctx, "untraced")
	m.CloseAll()

	info := readLog(t, filepath.Join(dir, "tiercache", "tiercache-info.log"))
	assert.NotContains(t, info, "trace-abc")
}

func TestManager_StacktraceOnError(t *testing.T) {
	m, dir := fileManager(t, func(c *ManagerConfig) {
		c.EnableStacktrace = true
		c.StacktraceLevel = "error"
		c.StacktraceDepth = 3
	})
	m.GetLogger("tiercache").Error("boom")
	m.CloseAll()

	errs := readLog(t, filepath.Join(dir, "tiercache", "tiercache-error.log"))
	assert.Contains(t, errs, `"stack"`)
}

func TestManager_ReloadConfig(t *testing.T) {
	m, _ := fileManager(t, nil)
	first := m.GetLogger("tiercache")

	err := m.ReloadConfig(ManagerConfig{Level: "warn", EnableConsole: false})
	require.NoError(t, err)
	assert.Equal(t, "warn", m.Config().Level)
	assert.NotSame(t, first, m.GetLogger("tiercache"))

	err = m.ReloadConfig(ManagerConfig{Level: "loud"})
	assert.Error(t, err)
}

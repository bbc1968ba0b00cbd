package cache

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/KOMKZ/go-yogan-tiercache/logger"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var epoch = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	mgr   *Manager
	clock *clockwork.FakeClock
	logs  *observer.ObservedLogs
	mem   *MemoryTier
}

// newTestManager memory tier + optional disk tier on a fake clock
func newTestManager(t *testing.T, disk Tier, opts ...Option) *testEnv {
	t.Helper()
	clock := clockwork.NewFakeClockAt(epoch)
	log, logs := logger.NewObserved(LogModule, zapcore.DebugLevel)
	mem := NewMemoryTier(WithShards(4))
	opts = append([]Option{WithClock(clock), WithLogger(log)}, opts...)
	m := NewManager(mem, disk, opts...)
	t.Cleanup(func() { _ = m.Shutdown() })
	return &testEnv{mgr: m, clock: clock, logs: logs, mem: mem}
}

func newFileTier(t *testing.T) *FileTier {
	t.Helper()
	ft, err := NewFileTier(t.TempDir(), WithSyncWrites(false))
	require.NoError(t, err)
	return ft
}

// counting recompute returning value; calls counts invocations
func counting(value string, calls *atomic.Int32) RecomputeFunc {
	return func(context.Context) ([]byte, error) {
		calls.Add(1)
		return []byte(value), nil
	}
}

func writeRaw(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}

// mustNotRecompute fails the test when the cache falls through to recompute
func mustNotRecompute(t *testing.T) RecomputeFunc {
	t.Helper()
	return func(context.Context) ([]byte, error) {
		t.Error("unexpected recompute")
		return nil, errors.New("unexpected recompute")
	}
}

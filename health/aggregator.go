package health

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Aggregator 并发执行所有检查项并汇总状态
type Aggregator struct {
	checkers []Checker
	timeout  time.Duration
	clock    clockwork.Clock
	mu       sync.RWMutex
	metadata map[string]interface{}
}

// NewAggregator timeout <= 0 时使用 5s
func NewAggregator(timeout time.Duration) *Aggregator {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Aggregator{
		timeout:  timeout,
		clock:    clockwork.NewRealClock(),
		metadata: make(map[string]interface{}),
	}
}

// WithClock 替换时钟（测试用）
func (a *Aggregator) WithClock(clock clockwork.Clock) *Aggregator {
	a.clock = clock
	return a
}

func (a *Aggregator) Register(checker Checker) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.checkers = append(a.checkers, checker)
}

func (a *Aggregator) SetMetadata(key string, value interface{}) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.metadata[key] = value
}

// CheckerCount 已注册检查项数量
func (a *Aggregator) CheckerCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.checkers)
}

// Check 执行所有检查；超时的检查项记为 unhealthy
func (a *Aggregator) Check(ctx context.Context) *Response {
	start := a.clock.Now()

	checkCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	a.mu.RLock()
	checkers := make([]Checker, len(a.checkers))
	copy(checkers, a.checkers)
	metadata := make(map[string]interface{}, len(a.metadata))
	for k, v := range a.metadata {
		metadata[k] = v
	}
	a.mu.RUnlock()

	results := make(chan CheckResult, len(checkers))
	for _, checker := range checkers {
		go func(c Checker) {
			results <- a.checkOne(checkCtx, c)
		}(checker)
	}

	checks := make(map[string]CheckResult, len(checkers))
	for range checkers {
		result := <-results
		checks[result.Name] = result
	}

	return &Response{
		Status:    overallStatus(checks),
		Timestamp: a.clock.Now(),
		Duration:  a.clock.Since(start),
		Checks:    checks,
		Metadata:  metadata,
	}
}

func (a *Aggregator) checkOne(ctx context.Context, checker Checker) CheckResult {
	start := a.clock.Now()
	result := CheckResult{
		Name:      checker.Name(),
		Timestamp: start,
	}

	err := checker.Check(ctx)
	result.Duration = a.clock.Since(start)

	switch {
	case err == nil:
		result.Status = StatusHealthy
		result.Message = "OK"
	case errors.As(err, new(*DegradedError)):
		result.Status = StatusDegraded
		result.Error = err.Error()
		result.Message = "running degraded"
	case errors.Is(err, context.DeadlineExceeded):
		result.Status = StatusUnhealthy
		result.Error = err.Error()
		result.Message = "health check timed out"
	default:
		result.Status = StatusUnhealthy
		result.Error = err.Error()
		result.Message = "health check failed"
	}
	return result
}

func overallStatus(checks map[string]CheckResult) Status {
	status := StatusHealthy
	for _, result := range checks {
		switch result.Status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded:
			status = StatusDegraded
		}
	}
	return status
}

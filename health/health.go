// Package health 聚合各组件的健康检查
package health

import (
	"time"

	"github.com/KOMKZ/go-yogan-tiercache/component"
)

// Status 健康状态
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded" // 部分功能不可用
	StatusUnhealthy Status = "unhealthy"
)

// Checker 是 component.HealthChecker 的别名
type Checker = component.HealthChecker

// CheckResult 单个检查项的结果
type CheckResult struct {
	Name      string        `json:"name"`
	Status    Status        `json:"status"`
	Message   string        `json:"message,omitempty"`
	Error     string        `json:"error,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration,omitempty"`
}

// Response 健康检查响应
type Response struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Duration  time.Duration          `json:"duration"`
	Checks    map[string]CheckResult `json:"checks"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

func (r *Response) IsHealthy() bool {
	return r.Status == StatusHealthy
}

func (r *Response) IsDegraded() bool {
	return r.Status == StatusDegraded
}

// DegradedError 检查失败但组件仍可用（例如缓存持久层不可达，内存层照常服务）
type DegradedError struct {
	Err error
}

func (e *DegradedError) Error() string {
	return "degraded: " + e.Err.Error()
}

func (e *DegradedError) Unwrap() error {
	return e.Err
}

// Degraded nil 原样返回
func Degraded(err error) error {
	if err == nil {
		return nil
	}
	return &DegradedError{Err: err}
}

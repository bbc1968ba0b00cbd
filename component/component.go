// Package component defines the lifecycle contracts shared by tiercache packages.
// It imports nothing from the rest of the module.
package component

import "context"

// Component lifecycle: Init → Start → Stop
type Component interface {
	// Name unique component name
	Name() string

	// DependsOn names of components that must be initialized first.
	// An "optional:" prefix marks a dependency that may be absent.
	DependsOn() []string

	// Init reads configuration and creates resources; no background work yet
	Init(ctx context.Context, loader ConfigLoader) error

	// Start begins background work (schedulers, subscriptions)
	Start(ctx context.Context) error

	// Stop releases resources; must be idempotent
	Stop(ctx context.Context) error
}

// HealthChecker optional health check
type HealthChecker interface {
	// Check nil means healthy
	Check(ctx context.Context) error
	Name() string
}

// HealthCheckProvider 组件可选实现，提供健康检查器
type HealthCheckProvider interface {
	GetHealthChecker() HealthChecker
}

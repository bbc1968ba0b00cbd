package application

import (
	"context"
	"fmt"

	"github.com/KOMKZ/go-yogan-tiercache/component"
	"github.com/KOMKZ/go-yogan-tiercache/event"
	"github.com/KOMKZ/go-yogan-tiercache/registry"
	"github.com/KOMKZ/go-yogan-tiercache/telemetry"
	"go.uber.org/zap"
)

// dispatcherAware 需要事件分发器的组件（cache 订阅失效事件）
type dispatcherAware interface {
	SetEventDispatcher(event.Dispatcher)
}

// metricsSource 暴露 MetricsProvider 的组件；返回 nil 表示未启用
type metricsSource interface {
	GetMetrics() component.MetricsProvider
}

// wireComponents 在 Init 之后、Start 之前注入跨组件依赖
func (b *BaseApplication) wireComponents(ctx context.Context) error {
	comps := b.registry.Components()

	if ev, ok := registry.GetTyped[*event.Component](b.registry, component.ComponentEvent); ok && ev.IsEnabled() {
		d := ev.GetDispatcher()
		for _, c := range comps {
			if aware, ok := c.(dispatcherAware); ok {
				aware.SetEventDispatcher(d)
				b.log().DebugCtx(ctx, "event dispatcher injected", zap.String("component", c.Name()))
			}
		}
	}

	tc, ok := registry.GetTyped[*telemetry.Component](b.registry, component.ComponentTelemetry)
	if !ok {
		return nil
	}
	for _, c := range comps {
		src, ok := c.(metricsSource)
		if !ok {
			continue
		}
		provider := src.GetMetrics()
		if provider == nil {
			continue
		}
		if err := tc.Register(provider); err != nil {
			return fmt.Errorf("register metrics of %q: %w", c.Name(), err)
		}
	}
	return nil
}

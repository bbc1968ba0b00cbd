// Package registry 组件注册中心：按依赖层级初始化、启动、停止组件
package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/KOMKZ/go-yogan-tiercache/component"
	"github.com/KOMKZ/go-yogan-tiercache/logger"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const optionalPrefix = "optional:"

// Registry 组件注册中心
type Registry struct {
	mu         sync.RWMutex
	components map[string]component.Component
	logger     *logger.CtxZapLogger // 可选，Init 之后注入
}

func NewRegistry() *Registry {
	return &Registry{
		components: make(map[string]component.Component),
	}
}

// Register 注册组件；实现 SetRegistry(*Registry) 的组件会拿到注册中心引用
func (r *Registry) Register(comp component.Component) error {
	if comp == nil {
		return fmt.Errorf("component is nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	name := comp.Name()
	if name == "" {
		return fmt.Errorf("component name is empty")
	}
	if _, exists := r.components[name]; exists {
		return fmt.Errorf("component %q already registered", name)
	}
	r.components[name] = comp

	if setter, ok := comp.(interface{ SetRegistry(*Registry) }); ok {
		setter.SetRegistry(r)
	}
	return nil
}

// MustRegister 核心组件注册失败直接 panic
func (r *Registry) MustRegister(comp component.Component) {
	if err := r.Register(comp); err != nil {
		panic(fmt.Sprintf("register core component: %v", err))
	}
}

// SetLogger 只允许设置一次
func (r *Registry) SetLogger(l *logger.CtxZapLogger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.logger != nil {
		panic("registry logger already set")
	}
	r.logger = l
}

func (r *Registry) log() *logger.CtxZapLogger {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.logger == nil {
		return logger.Nop()
	}
	return r.logger
}

func (r *Registry) Get(name string) (component.Component, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	comp, ok := r.components[name]
	return comp, ok
}

func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Components 所有已注册组件，按名称排序
func (r *Registry) Components() []component.Component {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.components))
	for name := range r.components {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]component.Component, 0, len(names))
	for _, name := range names {
		out = append(out, r.components[name])
	}
	return out
}

// GetTyped 获取组件并做类型断言
//
//	cacheComp, ok := registry.GetTyped[*cache.Component](reg, component.ComponentCache)
func GetTyped[T component.Component](r *Registry, name string) (T, bool) {
	var zero T
	comp, ok := r.Get(name)
	if !ok {
		return zero, false
	}
	typed, ok := comp.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}

// Resolve 拓扑排序后的组件列表
func (r *Registry) Resolve() ([]component.Component, error) {
	layers, err := r.resolveLayers()
	if err != nil {
		return nil, err
	}
	var out []component.Component
	for _, layer := range layers {
		out = append(out, layer...)
	}
	return out, nil
}

// Init 按层初始化；配置组件本身充当 ConfigLoader
func (r *Registry) Init(ctx context.Context) error {
	configComp, ok := r.Get(component.ComponentConfig)
	if !ok {
		return fmt.Errorf("config component not registered")
	}
	loader, ok := configComp.(component.ConfigLoader)
	if !ok {
		return fmt.Errorf("config component does not implement ConfigLoader")
	}

	layers, err := r.resolveLayers()
	if err != nil {
		return fmt.Errorf("resolve component dependencies: %w", err)
	}

	for i, layer := range layers {
		r.log().DebugCtx(ctx, "init component layer", zap.Int("layer", i), zap.Int("count", len(layer)))
		if err := r.runLayer(layer, func(c component.Component) error {
			return c.Init(ctx, loader)
		}); err != nil {
			return err
		}
	}
	return nil
}

// Start 按层启动
func (r *Registry) Start(ctx context.Context) error {
	layers, err := r.resolveLayers()
	if err != nil {
		return fmt.Errorf("resolve component dependencies: %w", err)
	}

	for i, layer := range layers {
		r.log().DebugCtx(ctx, "start component layer", zap.Int("layer", i), zap.Int("count", len(layer)))
		if err := r.runLayer(layer, func(c component.Component) error {
			return c.Start(ctx)
		}); err != nil {
			return err
		}
	}
	r.log().DebugCtx(ctx, "all components started")
	return nil
}

// Stop 反向逐层停止；单个组件失败不影响其余组件
func (r *Registry) Stop(ctx context.Context) error {
	layers, err := r.resolveLayers()
	if err != nil {
		return fmt.Errorf("resolve component dependencies: %w", err)
	}

	var errs error
	for i := len(layers) - 1; i >= 0; i-- {
		errs = multierr.Append(errs, r.stopLayer(ctx, layers[i]))
	}
	r.log().DebugCtx(ctx, "all components stopped", zap.Int("errors", len(multierr.Errors(errs))))
	return errs
}

// runLayer 同层组件互不依赖，并发执行
func (r *Registry) runLayer(layer []component.Component, fn func(component.Component) error) error {
	if len(layer) == 1 {
		if err := fn(layer[0]); err != nil {
			return fmt.Errorf("component %q: %w", layer[0].Name(), err)
		}
		return nil
	}

	type result struct {
		name string
		err  error
	}
	results := make(chan result, len(layer))
	for _, comp := range layer {
		go func(c component.Component) {
			results <- result{name: c.Name(), err: fn(c)}
		}(comp)
	}

	var first error
	for range layer {
		res := <-results
		if res.err != nil && first == nil {
			first = fmt.Errorf("component %q: %w", res.name, res.err)
		}
	}
	return first
}

func (r *Registry) stopLayer(ctx context.Context, layer []component.Component) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs error
	)
	for _, comp := range layer {
		wg.Add(1)
		go func(c component.Component) {
			defer wg.Done()
			if err := c.Stop(ctx); err != nil {
				r.log().WarnCtx(ctx, "component stop failed", zap.String("component", c.Name()), zap.Error(err))
				mu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("component %q: %w", c.Name(), err))
				mu.Unlock()
			}
		}(comp)
	}
	wg.Wait()
	return errs
}

// resolveLayers 按依赖分层；每层内按名称排序，保证输出稳定
func (r *Registry) resolveLayers() ([][]component.Component, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	inDegree := make(map[string]int, len(r.components))
	graph := make(map[string][]string, len(r.components))
	for name := range r.components {
		inDegree[name] = 0
	}

	for name, comp := range r.components {
		for _, dep := range comp.DependsOn() {
			depName, optional := strings.CutPrefix(dep, optionalPrefix)
			if _, ok := r.components[depName]; !ok {
				if optional {
					continue
				}
				return nil, fmt.Errorf("component %q depends on unregistered %q", name, depName)
			}
			graph[depName] = append(graph[depName], name)
			inDegree[name]++
		}
	}

	var layers [][]component.Component
	processed := make(map[string]bool, len(r.components))
	for len(processed) < len(r.components) {
		var current []string
		for name, degree := range inDegree {
			if !processed[name] && degree == 0 {
				current = append(current, name)
			}
		}
		if len(current) == 0 {
			return nil, fmt.Errorf("circular component dependency detected")
		}
		sort.Strings(current)

		layer := make([]component.Component, 0, len(current))
		for _, name := range current {
			processed[name] = true
			layer = append(layer, r.components[name])
			for _, next := range graph[name] {
				inDegree[next]--
			}
		}
		layers = append(layers, layer)
	}
	return layers, nil
}

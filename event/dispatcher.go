package event

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/KOMKZ/go-yogan-tiercache/logger"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

// UnsubscribeFunc removes the subscription it was returned for
type UnsubscribeFunc func()

// Dispatcher in-process event bus
type Dispatcher interface {
	// Subscribe registers a listener for one event name
	Subscribe(eventName string, listener Listener, opts ...SubscribeOption) UnsubscribeFunc

	// Dispatch runs listeners synchronously unless WithDispatchAsync is given
	Dispatch(ctx context.Context, event Event, opts ...DispatchOption) error

	// DispatchAsync is Dispatch(ctx, event, WithDispatchAsync())
	DispatchAsync(ctx context.Context, event Event)

	// Use registers a global interceptor
	Use(interceptor Interceptor)
}

type dispatcher struct {
	mu           sync.RWMutex
	listeners    map[string][]listenerEntry
	interceptors []Interceptor
	nextID       uint64
	pool         *ants.Pool
	poolSize     int
	logger       *logger.CtxZapLogger
	closed       atomic.Bool
	setAllSync   bool
}

// NewDispatcher creates a dispatcher backed by an ants goroutine pool
func NewDispatcher(opts ...DispatcherOption) *dispatcher {
	d := &dispatcher{
		listeners: make(map[string][]listenerEntry),
		poolSize:  100,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = logger.GetLogger("tiercache")
	}

	var err error
	d.pool, err = ants.NewPool(d.poolSize)
	if err != nil {
		d.logger.Warn("invalid pool size, falling back to 100", zap.Int("pool_size", d.poolSize), zap.Error(err))
		d.pool, _ = ants.NewPool(100)
	}
	return d
}

func (d *dispatcher) Subscribe(eventName string, listener Listener, opts ...SubscribeOption) UnsubscribeFunc {
	if eventName == "" || listener == nil {
		return func() {}
	}

	entry := listenerEntry{
		id:       atomic.AddUint64(&d.nextID, 1),
		listener: listener,
	}
	for _, opt := range opts {
		opt(&entry)
	}
	if d.setAllSync {
		entry.async = false
	}

	d.mu.Lock()
	entries := append(d.listeners[eventName], entry)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].priority < entries[j].priority
	})
	d.listeners[eventName] = entries
	d.mu.Unlock()

	return func() {
		d.removeListeners(eventName, entry.id)
	}
}

// removeListeners drops the given subscription ids
func (d *dispatcher) removeListeners(eventName string, ids ...uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	entries := d.listeners[eventName]
	kept := make([]listenerEntry, 0, len(entries))
	for _, e := range entries {
		if !slices.Contains(ids, e.id) {
			kept = append(kept, e)
		}
	}
	d.listeners[eventName] = kept
}

func (d *dispatcher) Use(interceptor Interceptor) {
	d.mu.Lock()
	d.interceptors = append(d.interceptors, interceptor)
	d.mu.Unlock()
}

func (d *dispatcher) Dispatch(ctx context.Context, event Event, opts ...DispatchOption) error {
	if event == nil {
		return nil
	}
	if d.closed.Load() {
		return ErrDispatcherClosed
	}

	options := &dispatchOptions{}
	for _, opt := range opts {
		opt(options)
	}

	if options.async && !d.setAllSync {
		d.dispatchAsync(ctx, event)
		return nil
	}
	return d.dispatchSync(ctx, event)
}

func (d *dispatcher) DispatchAsync(ctx context.Context, event Event) {
	_ = d.Dispatch(ctx, event, WithDispatchAsync())
}

func (d *dispatcher) dispatchSync(ctx context.Context, event Event) error {
	d.mu.RLock()
	interceptors := slices.Clone(d.interceptors)
	entries := slices.Clone(d.listeners[event.Name()])
	d.mu.RUnlock()

	err := d.buildHandlerChain(entries, interceptors)(ctx, event)

	var onceIDs []uint64
	for _, e := range entries {
		if e.once {
			onceIDs = append(onceIDs, e.id)
		}
	}
	if len(onceIDs) > 0 {
		d.removeListeners(event.Name(), onceIDs...)
	}

	if errors.Is(err, ErrStopPropagation) {
		return nil
	}
	return err
}

// dispatchAsync detaches from the caller's cancellation but keeps its values (trace id)
func (d *dispatcher) dispatchAsync(ctx context.Context, event Event) {
	asyncCtx := context.WithoutCancel(ctx)
	err := d.pool.Submit(func() {
		if err := d.dispatchSync(asyncCtx, event); err != nil {
			d.logger.ErrorCtx(asyncCtx, "async event dispatch failed",
				zap.String("event", event.Name()),
				zap.Error(err))
		}
	})
	if err != nil {
		d.logger.ErrorCtx(ctx, "submit async event failed",
			zap.String("event", event.Name()),
			zap.Error(err))
	}
}

// buildHandlerChain interceptors wrap the listener run, first registered outermost
func (d *dispatcher) buildHandlerChain(entries []listenerEntry, interceptors []Interceptor) Next {
	handler := func(ctx context.Context, event Event) error {
		return d.executeListeners(ctx, event, entries)
	}
	for i := len(interceptors) - 1; i >= 0; i-- {
		interceptor := interceptors[i]
		next := handler
		handler = func(ctx context.Context, event Event) error {
			return interceptor(ctx, event, next)
		}
	}
	return handler
}

func (d *dispatcher) executeListeners(ctx context.Context, event Event, entries []listenerEntry) error {
	for _, entry := range entries {
		if entry.async {
			listener := entry.listener
			asyncCtx := context.WithoutCancel(ctx)
			err := d.pool.Submit(func() {
				if err := listener.Handle(asyncCtx, event); err != nil && !errors.Is(err, ErrStopPropagation) {
					d.logger.ErrorCtx(asyncCtx, "async listener failed",
						zap.String("event", event.Name()),
						zap.Error(err))
				}
			})
			if err != nil {
				d.logger.ErrorCtx(ctx, "submit async listener failed", zap.String("event", event.Name()), zap.Error(err))
			}
			continue
		}

		if err := entry.listener.Handle(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

// Close rejects further dispatches and waits for pooled work to finish
func (d *dispatcher) Close() {
	if !d.closed.CompareAndSwap(false, true) {
		return
	}
	if d.pool != nil {
		d.pool.Release()
	}
}

// ListenerCount listeners currently subscribed to eventName
func (d *dispatcher) ListenerCount(eventName string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.listeners[eventName])
}

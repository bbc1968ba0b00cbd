package event

import "github.com/KOMKZ/go-yogan-tiercache/logger"

type listenerEntry struct {
	id       uint64
	listener Listener
	priority int  // lower runs first
	async    bool // runs on the pool even during a synchronous dispatch
	once     bool // unsubscribed after its first run
}

// SubscribeOption subscription options
type SubscribeOption func(*listenerEntry)

// WithPriority lower values run first (default 0)
func WithPriority(priority int) SubscribeOption {
	return func(e *listenerEntry) {
		e.priority = priority
	}
}

// WithAsync the listener runs on the pool; its errors are logged, not returned
func WithAsync() SubscribeOption {
	return func(e *listenerEntry) {
		e.async = true
	}
}

func WithOnce() SubscribeOption {
	return func(e *listenerEntry) {
		e.once = true
	}
}

// DispatcherOption Dispatcher configuration options
type DispatcherOption func(*dispatcher)

// WithPoolSize async goroutine pool size (default 100)
func WithPoolSize(size int) DispatcherOption {
	return func(d *dispatcher) {
		d.poolSize = size
	}
}

// WithSetAllSync forces every listener and dispatch to run synchronously (tests, CLI)
func WithSetAllSync(v bool) DispatcherOption {
	return func(d *dispatcher) {
		d.setAllSync = v
	}
}

func WithLogger(l *logger.CtxZapLogger) DispatcherOption {
	return func(d *dispatcher) {
		d.logger = l
	}
}

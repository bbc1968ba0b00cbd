package event

import "context"

// Listener handles dispatched events.
// A returned error stops a synchronous dispatch; ErrStopPropagation stops it without failing.
type Listener interface {
	Handle(ctx context.Context, event Event) error
}

// ListenerFunc functional listener adapter
type ListenerFunc func(ctx context.Context, event Event) error

func (f ListenerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

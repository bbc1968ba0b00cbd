package event

type dispatchOptions struct {
	async bool
}

// DispatchOption per-dispatch options
type DispatchOption func(*dispatchOptions)

// WithDispatchAsync submits the whole dispatch to the pool and returns immediately
func WithDispatchAsync() DispatchOption {
	return func(o *dispatchOptions) {
		o.async = true
	}
}

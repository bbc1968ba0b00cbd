package event

import "context"

// Next continues with the next interceptor or the listeners
type Next func(ctx context.Context, event Event) error

// Interceptor wraps every dispatch (logging, filtering, error mapping)
type Interceptor func(ctx context.Context, event Event, next Next) error

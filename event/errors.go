package event

import "errors"

// ErrStopPropagation stops later listeners without making Dispatch fail
var ErrStopPropagation = errors.New("stop propagation")

// ErrDispatcherClosed returned by Dispatch after Close
var ErrDispatcherClosed = errors.New("event dispatcher closed")

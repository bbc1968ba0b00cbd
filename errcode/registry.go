package errcode

import (
	"fmt"
	"sort"
	"sync"
)

// Registry error code registry (prevents code collisions between packages)
type Registry struct {
	mu    sync.RWMutex
	codes map[int]string // code -> module:msgKey
}

var globalRegistry = NewRegistry()

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{codes: make(map[int]string)}
}

// Register registers an error code in the global registry.
// Panics if the code is already taken by a different module:msgKey.
func Register(err *LayeredError) *LayeredError {
	return globalRegistry.Register(err)
}

// Register registers an error code
func (r *Registry) Register(err *LayeredError) *LayeredError {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := err.Module() + ":" + err.MsgKey()
	if existing, ok := r.codes[err.Code()]; ok && existing != key {
		panic(fmt.Sprintf(
			"error code conflict: code %d is already registered as %s, cannot register as %s",
			err.Code(), existing, key,
		))
	}
	// same code and key registers idempotently
	r.codes[err.Code()] = key
	return err
}

// Codes returns registered codes in ascending order
func (r *Registry) Codes() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	codes := make([]int, 0, len(r.codes))
	for code := range r.codes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	return codes
}

// Lookup returns the module:msgKey registered for a code
func (r *Registry) Lookup(code int) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	key, ok := r.codes[code]
	return key, ok
}

// RegisteredCodes returns all codes in the global registry
func RegisteredCodes() []int {
	return globalRegistry.Codes()
}

// LookupCode resolves a code in the global registry
func LookupCode(code int) (string, bool) {
	return globalRegistry.Lookup(code)
}

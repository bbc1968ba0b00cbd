// Package cache is a local multi-level cache: a sharded memory tier in front of
// an optional persistent tier (files, SQL or Redis), with per-key single-flight
// recomputation, freshness policies per category, batch loading and memoization.
package cache

import (
	"context"
)

// RecomputeFunc the caller's expensive operation; its error is returned to every waiter unchanged
type RecomputeFunc func(ctx context.Context) ([]byte, error)

// Item one (identifier, value) pair of a batch
type Item struct {
	ID    string
	Value []byte
}

// Tier key→entry store. Tiers are policy-agnostic: they return expired
// entries as stored and never age entries on their own.
type Tier interface {
	// Name 层名称 (memory, file, sql, redis)
	Name() string

	// Lookup returns ErrCacheMiss when absent
	Lookup(ctx context.Context, key Key) (*Entry, error)

	// Store overwrites any existing entry for the key
	Store(ctx context.Context, e *Entry) error

	// Remove nil when absent
	Remove(ctx context.Context, key Key) error

	Close() error
}

// BatchTier stores a group of entries with amortized I/O
type BatchTier interface {
	StoreBatch(ctx context.Context, entries []*Entry) error
}

// CategoryRemover drops every entry of a category
type CategoryRemover interface {
	RemoveCategory(ctx context.Context, category Category) (int, error)
}

// Scanner visits every stored entry until fn returns false
type Scanner interface {
	Scan(ctx context.Context, fn func(*Entry) bool) error
}

// Pinger reports whether a persistent tier is reachable (health checks)
type Pinger interface {
	Ping(ctx context.Context) error
}

// CategoryCounter live entry counts by category
type CategoryCounter interface {
	CategoryCounts() map[Category]int
}

package cache

import (
	"sync/atomic"
	"time"
)

// Entry unit of cached data. Everything except the last-access time is
// immutable once built; re-writing a key creates a new Entry.
type Entry struct {
	Key       Key
	Payload   []byte
	CreatedAt time.Time
	ExpiresAt time.Time // zero for Static
	Policy    Policy
	SizeBytes int

	lastAccess atomic.Int64 // unix nanos, only moves forward
}

// NewEntry computes ExpiresAt once from policy and now
func NewEntry(key Key, payload []byte, policy Policy, now time.Time) *Entry {
	e := &Entry{
		Key:       key,
		Payload:   payload,
		CreatedAt: now,
		ExpiresAt: policy.expiresAt(now),
		Policy:    policy,
		SizeBytes: len(payload),
	}
	e.lastAccess.Store(now.UnixNano())
	return e
}

// RestoreEntry rebuilds an entry read back from a persistent tier
func RestoreEntry(key Key, payload []byte, policy Policy, createdAt, expiresAt, lastAccessedAt time.Time) *Entry {
	e := &Entry{
		Key:       key,
		Payload:   payload,
		CreatedAt: createdAt,
		ExpiresAt: expiresAt,
		Policy:    policy,
		SizeBytes: len(payload),
	}
	if lastAccessedAt.Before(createdAt) {
		lastAccessedAt = createdAt
	}
	e.lastAccess.Store(lastAccessedAt.UnixNano())
	return e
}

// LastAccessedAt never earlier than CreatedAt
func (e *Entry) LastAccessedAt() time.Time {
	return time.Unix(0, e.lastAccess.Load())
}

// Touch records a read at now; earlier timestamps are ignored
func (e *Entry) Touch(now time.Time) {
	n := now.UnixNano()
	for {
		cur := e.lastAccess.Load()
		if n <= cur {
			return
		}
		if e.lastAccess.CompareAndSwap(cur, n) {
			return
		}
	}
}

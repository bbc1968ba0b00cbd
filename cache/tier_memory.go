package cache

import (
	"context"
	"sync"
	"sync/atomic"
)

const (
	defaultShards = 32
	maxShards     = 1 << 16

	fnvOffset64 = 14695981039346656037
	fnvPrime64  = 1099511628211
)

// MemoryTier 分片内存层
// Unbounded by default. With MaxEntries > 0 a full shard displaces one entry
// per insert: the soonest-expiring first, then the least recently accessed.
type MemoryTier struct {
	shards      []*memoryShard
	mask        uint64
	maxPerShard int

	counts    sync.Map // Category -> *atomic.Int64
	evictions atomic.Int64
}

type memoryShard struct {
	mu    sync.RWMutex
	items map[Key]*Entry
}

// MemoryOption 内存层选项
type MemoryOption func(*memoryOptions)

type memoryOptions struct {
	shards     int
	maxEntries int
}

// WithShards rounded up to a power of two
func WithShards(n int) MemoryOption {
	return func(o *memoryOptions) {
		o.shards = n
	}
}

// WithMaxEntries bounds the tier; 0 keeps it unbounded
func WithMaxEntries(n int) MemoryOption {
	return func(o *memoryOptions) {
		o.maxEntries = n
	}
}

// NewMemoryTier 创建内存层
func NewMemoryTier(opts ...MemoryOption) *MemoryTier {
	o := memoryOptions{shards: defaultShards}
	for _, opt := range opts {
		opt(&o)
	}

	n := nextPowerOfTwo(o.shards)
	t := &MemoryTier{
		shards: make([]*memoryShard, n),
		mask:   uint64(n - 1),
	}
	if o.maxEntries > 0 {
		t.maxPerShard = max(1, (o.maxEntries+n-1)/n)
	}
	for i := range t.shards {
		t.shards[i] = &memoryShard{items: make(map[Key]*Entry)}
	}
	return t
}

func nextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	if n > maxShards {
		n = maxShards
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// shardFor FNV-1a over category, a separator byte and the identifier
func (t *MemoryTier) shardFor(key Key) *memoryShard {
	h := uint64(fnvOffset64)
	for i := 0; i < len(key.Category); i++ {
		h ^= uint64(key.Category[i])
		h *= fnvPrime64
	}
	h ^= ':'
	h *= fnvPrime64
	for i := 0; i < len(key.ID); i++ {
		h ^= uint64(key.ID[i])
		h *= fnvPrime64
	}
	return t.shards[h&t.mask]
}

func (t *MemoryTier) Name() string {
	return "memory"
}

func (t *MemoryTier) Lookup(_ context.Context, key Key) (*Entry, error) {
	s := t.shardFor(key)
	s.mu.RLock()
	e, ok := s.items[key]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrCacheMiss
	}
	return e, nil
}

func (t *MemoryTier) Store(_ context.Context, e *Entry) error {
	s := t.shardFor(e.Key)
	s.mu.Lock()
	t.storeLocked(s, e)
	s.mu.Unlock()
	return nil
}

// StoreBatch groups entries by shard so each shard lock is taken once
func (t *MemoryTier) StoreBatch(_ context.Context, entries []*Entry) error {
	byShard := make(map[*memoryShard][]*Entry)
	for _, e := range entries {
		s := t.shardFor(e.Key)
		byShard[s] = append(byShard[s], e)
	}
	for s, group := range byShard {
		s.mu.Lock()
		for _, e := range group {
			t.storeLocked(s, e)
		}
		s.mu.Unlock()
	}
	return nil
}

func (t *MemoryTier) storeLocked(s *memoryShard, e *Entry) {
	if _, exists := s.items[e.Key]; !exists {
		if t.maxPerShard > 0 && len(s.items) >= t.maxPerShard {
			t.displaceLocked(s)
		}
		t.counter(e.Key.Category).Add(1)
	}
	s.items[e.Key] = e
}

// displaceLocked soonest expiry wins; Static entries only when nothing expires
func (t *MemoryTier) displaceLocked(s *memoryShard) {
	var victim *Entry
	for _, e := range s.items {
		if victim == nil || displaceBefore(e, victim) {
			victim = e
		}
	}
	if victim == nil {
		return
	}
	delete(s.items, victim.Key)
	t.counter(victim.Key.Category).Add(-1)
	t.evictions.Add(1)
}

func displaceBefore(a, b *Entry) bool {
	aExp, bExp := !a.ExpiresAt.IsZero(), !b.ExpiresAt.IsZero()
	switch {
	case aExp && bExp:
		if !a.ExpiresAt.Equal(b.ExpiresAt) {
			return a.ExpiresAt.Before(b.ExpiresAt)
		}
	case aExp != bExp:
		return aExp
	}
	return a.lastAccess.Load() < b.lastAccess.Load()
}

func (t *MemoryTier) Remove(_ context.Context, key Key) error {
	s := t.shardFor(key)
	s.mu.Lock()
	if _, ok := s.items[key]; ok {
		delete(s.items, key)
		t.counter(key.Category).Add(-1)
	}
	s.mu.Unlock()
	return nil
}

// RemoveCategory 删除某分类的全部条目
func (t *MemoryTier) RemoveCategory(_ context.Context, category Category) (int, error) {
	removed := 0
	for _, s := range t.shards {
		s.mu.Lock()
		for key := range s.items {
			if key.Category == category {
				delete(s.items, key)
				removed++
			}
		}
		s.mu.Unlock()
	}
	t.counter(category).Add(int64(-removed))
	return removed, nil
}

// Scan visits a per-shard snapshot, so fn may call back into the tier
func (t *MemoryTier) Scan(ctx context.Context, fn func(*Entry) bool) error {
	for _, s := range t.shards {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.mu.RLock()
		snapshot := make([]*Entry, 0, len(s.items))
		for _, e := range s.items {
			snapshot = append(snapshot, e)
		}
		s.mu.RUnlock()

		for _, e := range snapshot {
			if !fn(e) {
				return nil
			}
		}
	}
	return nil
}

func (t *MemoryTier) counter(category Category) *atomic.Int64 {
	if c, ok := t.counts.Load(category); ok {
		return c.(*atomic.Int64)
	}
	c, _ := t.counts.LoadOrStore(category, new(atomic.Int64))
	return c.(*atomic.Int64)
}

// CategoryCounts live entries by category; empty categories are omitted
func (t *MemoryTier) CategoryCounts() map[Category]int {
	out := make(map[Category]int)
	t.counts.Range(func(k, v any) bool {
		if n := v.(*atomic.Int64).Load(); n > 0 {
			out[k.(Category)] = int(n)
		}
		return true
	})
	return out
}

// Len 当前条目总数
func (t *MemoryTier) Len() int {
	n := 0
	for _, s := range t.shards {
		s.mu.RLock()
		n += len(s.items)
		s.mu.RUnlock()
	}
	return n
}

// Evictions entries displaced because the tier was full
func (t *MemoryTier) Evictions() int64 {
	return t.evictions.Load()
}

// Close 清空
func (t *MemoryTier) Close() error {
	for _, s := range t.shards {
		s.mu.Lock()
		s.items = make(map[Key]*Entry)
		s.mu.Unlock()
	}
	t.counts.Clear()
	return nil
}

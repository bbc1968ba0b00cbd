package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/KOMKZ/go-yogan-tiercache/logger"
	"github.com/jonboulle/clockwork"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// LogModule 缓存日志模块名
const LogModule = "tiercache"

// Manager owns entry lifecycle across a memory tier and an optional persistent
// tier. All methods are safe for concurrent use.
//
// Read path: memory → persistent (promoting hits) → single-flight recompute →
// write-through. Writes to one key are serialized by an exact per-key lock;
// the memory-hit path never takes it.
type Manager struct {
	memory  Tier
	disk    Tier
	clock   clockwork.Clock
	log     *logger.CtxZapLogger
	metrics *Metrics

	policyMu sync.RWMutex
	policies map[Category]Policy
	pending  map[Category]Policy

	sf    singleflight.Group
	locks *keyLocks
	stats statsCollector

	evictionBase atomic.Int64
	closed       atomic.Bool
}

// Option Manager 选项
type Option func(*Manager)

func WithLogger(l *logger.CtxZapLogger) Option {
	return func(m *Manager) {
		m.log = l
	}
}

// WithClock tests pass clockwork.NewFakeClock() to simulate days passing
func WithClock(c clockwork.Clock) Option {
	return func(m *Manager) {
		m.clock = c
	}
}

func WithMetrics(metrics *Metrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// WithCategoryPolicies overrides category defaults; invalid entries are logged and skipped
func WithCategoryPolicies(policies map[Category]Policy) Option {
	return func(m *Manager) {
		for c, p := range policies {
			m.pending[c] = p
		}
	}
}

// NewManager memory nil → a default MemoryTier; disk may be nil
func NewManager(memory Tier, disk Tier, opts ...Option) *Manager {
	if memory == nil {
		memory = NewMemoryTier()
	}
	m := &Manager{
		memory:   memory,
		disk:     disk,
		clock:    clockwork.NewRealClock(),
		policies: DefaultPolicies(),
		pending:  make(map[Category]Policy),
		locks:    newKeyLocks(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		m.log = logger.GetLogger(LogModule)
	}
	for c, p := range m.pending {
		if err := m.RegisterCategory(c, p); err != nil {
			m.log.Warn("category policy ignored", zap.String("category", string(c)), zap.Error(err))
		}
	}
	m.pending = nil

	if cc, ok := memory.(CategoryCounter); ok {
		m.metrics.bindEntries(cc)
	}

	diskName := "none"
	if disk != nil {
		diskName = disk.Name()
	}
	m.log.Debug("cache manager created", zap.String("memory", memory.Name()), zap.String("disk", diskName))
	return m
}

// Memory 内存层
func (m *Manager) Memory() Tier { return m.memory }

// Disk persistent tier, nil when running memory-only
func (m *Manager) Disk() Tier { return m.disk }

func (m *Manager) Clock() clockwork.Clock { return m.clock }

// RegisterCategory sets the default policy of a category
func (m *Manager) RegisterCategory(category Category, policy Policy) error {
	if err := category.Validate(); err != nil {
		return err
	}
	if err := policy.Validate(); err != nil {
		return err
	}
	m.policyMu.Lock()
	m.policies[category] = policy
	m.policyMu.Unlock()
	return nil
}

// PolicyFor default policy of a category; Daily when none is registered
func (m *Manager) PolicyFor(category Category) Policy {
	m.policyMu.RLock()
	defer m.policyMu.RUnlock()
	if p, ok := m.policies[category]; ok {
		return p
	}
	return Daily
}

func (m *Manager) resolvePolicy(category Category, p Policy) (Policy, error) {
	if p.IsZero() {
		p = m.PolicyFor(category)
	}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

func (m *Manager) checkOpen() error {
	if m.closed.Load() {
		return ErrManagerClosed
	}
	return nil
}

func (m *Manager) prepare(category Category, id string, p Policy) (Key, Policy, error) {
	if err := m.checkOpen(); err != nil {
		return Key{}, Policy{}, err
	}
	key, err := NewKey(category, id)
	if err != nil {
		return Key{}, Policy{}, err
	}
	p, err = m.resolvePolicy(category, p)
	if err != nil {
		return Key{}, Policy{}, err
	}
	return key, p, nil
}

// Get returns a fresh cached value or runs recompute once per key, storing its
// result in every tier. Errors from recompute are returned unchanged and leave
// nothing behind. A zero policy uses the category default.
func (m *Manager) Get(ctx context.Context, category Category, id string, policy Policy, recompute RecomputeFunc) ([]byte, error) {
	key, policy, err := m.prepare(category, id, policy)
	if err != nil {
		return nil, err
	}
	if recompute == nil {
		return nil, ErrInvalidArgument.WithMsg("recompute function is required")
	}

	if policy.Kind() == PolicyAlwaysFresh {
		m.recordMiss(ctx, key)
		return m.await(ctx, "fresh|"+key.String(), func() ([]byte, error) {
			return m.runRecompute(ctx, key, recompute)
		})
	}

	if payload, ok := m.lookup(ctx, key); ok {
		return payload, nil
	}
	m.recordMiss(ctx, key)
	return m.await(ctx, key.String(), func() ([]byte, error) {
		return m.resolve(ctx, key, policy, recompute)
	})
}

// await joins or starts the flight for flightKey; a caller whose ctx ends stops
// waiting, the flight itself keeps the leader's ctx
func (m *Manager) await(ctx context.Context, flightKey string, fn func() ([]byte, error)) ([]byte, error) {
	ch := m.sf.DoChan(flightKey, func() (any, error) {
		v, err := fn()
		return v, err
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		// every waiter gets its own copy of the shared result
		return bytes.Clone(res.Val.([]byte)), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// resolve runs inside the flight
func (m *Manager) resolve(ctx context.Context, key Key, policy Policy, recompute RecomputeFunc) ([]byte, error) {
	// a flight that ended just before this one may have stored the value already
	if e, err := m.memory.Lookup(ctx, key); err == nil && IsFresh(e, m.clock.Now()) {
		return e.Payload, nil
	}

	payload, err := m.runRecompute(ctx, key, recompute)
	if err != nil {
		return nil, err
	}

	unlock := m.locks.lock(key)
	m.writeLocked(ctx, NewEntry(key, cloneValue(payload), policy, m.clock.Now()))
	unlock()
	return payload, nil
}

func (m *Manager) runRecompute(ctx context.Context, key Key, recompute RecomputeFunc) (payload []byte, err error) {
	start := m.clock.Now()
	m.stats.recomputes.Add(1)
	defer func() {
		if r := recover(); r != nil {
			m.log.ErrorCtx(ctx, "recompute panicked",
				zap.String("key", key.String()),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			payload = nil
			err = ErrRecomputePanicked.WithMsgf("recompute for %s panicked: %v", key, r).WithData("key", key.String())
		}
		if err != nil {
			m.stats.recomputeErrors.Add(1)
		}
		m.metrics.recordRecompute(ctx, key.Category, m.clock.Since(start), err)
	}()

	payload, err = recompute(ctx)
	if err != nil {
		return nil, err
	}
	if payload == nil {
		payload = []byte{}
	}
	return payload, nil
}

// lookup memory first without any lock, then the persistent tier under the key lock
func (m *Manager) lookup(ctx context.Context, key Key) ([]byte, bool) {
	now := m.clock.Now()
	e, err := m.memory.Lookup(ctx, key)
	if err == nil && IsFresh(e, now) {
		m.recordHit(ctx, m.memory, e, now)
		return bytes.Clone(e.Payload), true
	}
	if m.disk == nil && err != nil {
		return nil, false
	}

	unlock := m.locks.lock(key)
	defer unlock()

	// 等锁期间可能已被其他调用者提升
	if e, err := m.memory.Lookup(ctx, key); err == nil {
		if IsFresh(e, now) {
			m.recordHit(ctx, m.memory, e, now)
			return bytes.Clone(e.Payload), true
		}
		// 过期条目惰性回收
		_ = m.memory.Remove(ctx, key)
	}
	if m.disk == nil {
		return nil, false
	}

	e, err = m.disk.Lookup(ctx, key)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, false
		}
		m.tierError(ctx, m.disk, "lookup", err, zap.String("key", key.String()))
		if errors.Is(err, ErrSerialize) {
			if rmErr := m.disk.Remove(ctx, key); rmErr != nil {
				m.tierError(ctx, m.disk, "remove", rmErr, zap.String("key", key.String()))
			}
		}
		return nil, false
	}
	if !IsFresh(e, now) {
		if rmErr := m.disk.Remove(ctx, key); rmErr != nil {
			m.tierError(ctx, m.disk, "remove", rmErr, zap.String("key", key.String()))
		}
		return nil, false
	}

	if err := m.memory.Store(ctx, e); err != nil {
		m.tierError(ctx, m.memory, "promote", err, zap.String("key", key.String()))
	}
	m.recordHit(ctx, m.disk, e, now)
	return bytes.Clone(e.Payload), true
}

// Peek reads without recomputing, promoting, touching or counting
func (m *Manager) Peek(ctx context.Context, category Category, id string) ([]byte, bool, error) {
	if err := m.checkOpen(); err != nil {
		return nil, false, err
	}
	key, err := NewKey(category, id)
	if err != nil {
		return nil, false, err
	}
	now := m.clock.Now()
	if e, err := m.memory.Lookup(ctx, key); err == nil && IsFresh(e, now) {
		return bytes.Clone(e.Payload), true, nil
	}
	if m.disk == nil {
		return nil, false, nil
	}
	e, err := m.disk.Lookup(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			m.tierError(ctx, m.disk, "lookup", err, zap.String("key", key.String()))
		}
		return nil, false, nil
	}
	if !IsFresh(e, now) {
		return nil, false, nil
	}
	return e.Payload, true, nil
}

// Set write-through; overwrites the key and resets CreatedAt.
// The persistent write is best-effort. AlwaysFresh removes the key instead.
func (m *Manager) Set(ctx context.Context, category Category, id string, value []byte, policy Policy) error {
	key, policy, err := m.prepare(category, id, policy)
	if err != nil {
		return err
	}

	unlock := m.locks.lock(key)
	defer unlock()

	if policy.Kind() == PolicyAlwaysFresh {
		return m.removeLocked(ctx, key)
	}
	m.writeLocked(ctx, NewEntry(key, cloneValue(value), policy, m.clock.Now()))
	return nil
}

func cloneValue(v []byte) []byte {
	if v == nil {
		return []byte{}
	}
	return bytes.Clone(v)
}

// SetBatch validates every item before touching any tier; persistent tiers
// implementing BatchTier receive one StoreBatch call. Duplicate ids: last wins.
func (m *Manager) SetBatch(ctx context.Context, category Category, policy Policy, items []Item) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	if err := category.Validate(); err != nil {
		return err
	}
	policy, err := m.resolvePolicy(category, policy)
	if err != nil {
		return err
	}

	keys := make([]Key, len(items))
	for i, it := range items {
		k, err := NewKey(category, it.ID)
		if err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
		keys[i] = k
	}
	if len(items) == 0 {
		return nil
	}

	unlock := m.locks.lockAll(keys)
	defer unlock()

	if policy.Kind() == PolicyAlwaysFresh {
		var errs error
		for _, k := range keys {
			errs = multierr.Append(errs, m.removeLocked(ctx, k))
		}
		return errs
	}

	now := m.clock.Now()
	entries := make([]*Entry, 0, len(items))
	index := make(map[Key]int, len(items))
	for i, it := range items {
		e := NewEntry(keys[i], cloneValue(it.Value), policy, now)
		if j, ok := index[e.Key]; ok {
			entries[j] = e
			continue
		}
		index[e.Key] = len(entries)
		entries = append(entries, e)
	}

	m.storeMany(ctx, m.memory, entries)
	if m.disk != nil {
		m.storeMany(ctx, m.disk, entries)
	}
	m.stats.writes.Add(int64(len(entries)))
	m.metrics.recordWrite(ctx, category, len(entries))
	return nil
}

func (m *Manager) storeMany(ctx context.Context, tier Tier, entries []*Entry) {
	if bt, ok := tier.(BatchTier); ok {
		if err := bt.StoreBatch(ctx, entries); err != nil {
			m.tierError(ctx, tier, "store_batch", err, zap.Int("entries", len(entries)))
		}
		return
	}
	for _, e := range entries {
		if err := tier.Store(ctx, e); err != nil {
			m.tierError(ctx, tier, "store", err, zap.String("key", e.Key.String()))
		}
	}
}

// writeLocked caller holds the key lock
func (m *Manager) writeLocked(ctx context.Context, e *Entry) {
	if err := m.memory.Store(ctx, e); err != nil {
		m.tierError(ctx, m.memory, "store", err, zap.String("key", e.Key.String()))
	}
	if m.disk != nil {
		if err := m.disk.Store(ctx, e); err != nil {
			m.tierError(ctx, m.disk, "store", err, zap.String("key", e.Key.String()))
		}
	}
	m.stats.writes.Add(1)
	m.metrics.recordWrite(ctx, e.Key.Category, 1)
}

// removeLocked a failed persistent removal is returned: the stale record could be promoted later
func (m *Manager) removeLocked(ctx context.Context, key Key) error {
	if err := m.memory.Remove(ctx, key); err != nil {
		m.tierError(ctx, m.memory, "remove", err, zap.String("key", key.String()))
	}
	if m.disk == nil {
		return nil
	}
	if err := m.disk.Remove(ctx, key); err != nil {
		m.tierError(ctx, m.disk, "remove", err, zap.String("key", key.String()))
		return err
	}
	return nil
}

// Invalidate removes the key from every tier; absent keys are a no-op
func (m *Manager) Invalidate(ctx context.Context, category Category, id string) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	key, err := NewKey(category, id)
	if err != nil {
		return err
	}

	unlock := m.locks.lock(key)
	err = m.removeLocked(ctx, key)
	unlock()

	m.stats.invalidations.Add(1)
	m.log.InfoCtx(ctx, "cache invalidated", zap.String("key", key.String()))
	return err
}

// InvalidateCategory removes every entry of a category. Writes racing with it may survive.
func (m *Manager) InvalidateCategory(ctx context.Context, category Category) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	if err := category.Validate(); err != nil {
		return err
	}

	var errs error
	removed := 0
	for _, tier := range m.tiers() {
		n, err := m.removeCategory(ctx, tier, category)
		removed += n
		if err != nil {
			m.tierError(ctx, tier, "remove_category", err, zap.String("category", string(category)))
			errs = multierr.Append(errs, err)
		}
	}

	m.stats.invalidations.Add(1)
	m.log.InfoCtx(ctx, "cache category invalidated",
		zap.String("category", string(category)),
		zap.Int("removed", removed),
	)
	return errs
}

func (m *Manager) removeCategory(ctx context.Context, tier Tier, category Category) (int, error) {
	if r, ok := tier.(CategoryRemover); ok {
		return r.RemoveCategory(ctx, category)
	}
	scanner, ok := tier.(Scanner)
	if !ok {
		return 0, ErrInvalidArgument.WithMsgf("tier %s cannot remove by category", tier.Name())
	}
	var keys []Key
	err := scanner.Scan(ctx, func(e *Entry) bool {
		if e.Key.Category == category {
			keys = append(keys, e.Key)
		}
		return true
	})
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, k := range keys {
		if err := tier.Remove(ctx, k); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// ForceRefresh invalidates the key and recomputes it, still one flight per key
func (m *Manager) ForceRefresh(ctx context.Context, category Category, id string, policy Policy, recompute RecomputeFunc) ([]byte, error) {
	key, policy, err := m.prepare(category, id, policy)
	if err != nil {
		return nil, err
	}
	if recompute == nil {
		return nil, ErrInvalidArgument.WithMsg("recompute function is required")
	}

	// a record that survives a failed removal is normally overwritten by the
	// recomputed entry; when recompute fails too it is removed again
	rmErr := m.Invalidate(ctx, category, id)

	m.recordMiss(ctx, key)
	flightKey, run := key.String(), func() ([]byte, error) {
		return m.resolve(ctx, key, policy, recompute)
	}
	if policy.Kind() == PolicyAlwaysFresh {
		flightKey, run = "fresh|"+key.String(), func() ([]byte, error) {
			return m.runRecompute(ctx, key, recompute)
		}
	}
	v, err := m.await(ctx, flightKey, run)
	if err != nil && rmErr != nil {
		unlock := m.locks.lock(key)
		retryErr := m.removeLocked(ctx, key)
		unlock()
		if retryErr != nil {
			return nil, multierr.Append(err, retryErr)
		}
	}
	return v, err
}

func (m *Manager) tiers() []Tier {
	if m.disk == nil {
		return []Tier{m.memory}
	}
	return []Tier{m.memory, m.disk}
}

// Sweep eagerly reclaims expired entries from every tier implementing Scanner.
// Returns the number of distinct keys reclaimed.
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	if err := m.checkOpen(); err != nil {
		return 0, err
	}
	now := m.clock.Now()
	reclaimed := make(map[Key]struct{})
	var errs error

	for _, tier := range m.tiers() {
		scanner, ok := tier.(Scanner)
		if !ok {
			continue
		}
		var expired []Key
		err := scanner.Scan(ctx, func(e *Entry) bool {
			if !IsFresh(e, now) {
				expired = append(expired, e.Key)
			}
			return true
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("scan %s: %w", tier.Name(), err))
			continue
		}
		for _, key := range expired {
			ok, err := m.reclaim(ctx, tier, key, now)
			if err != nil {
				m.tierError(ctx, tier, "sweep", err, zap.String("key", key.String()))
				errs = multierr.Append(errs, err)
				continue
			}
			if ok {
				reclaimed[key] = struct{}{}
			}
		}
	}

	m.log.InfoCtx(ctx, "cache sweep finished", zap.Int("reclaimed", len(reclaimed)))
	return len(reclaimed), errs
}

// reclaim removes key from tier if it is still expired once the key lock is held
func (m *Manager) reclaim(ctx context.Context, tier Tier, key Key, now time.Time) (bool, error) {
	unlock := m.locks.lock(key)
	defer unlock()

	e, err := tier.Lookup(ctx, key)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return false, nil
		}
		return false, err
	}
	if IsFresh(e, now) {
		return false, nil
	}
	if err := tier.Remove(ctx, key); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Manager) recordHit(ctx context.Context, tier Tier, e *Entry, now time.Time) {
	e.Touch(now)
	if tier == m.memory {
		m.stats.memoryHit(e.Key.Category)
	} else {
		m.stats.diskHit(e.Key.Category)
	}
	m.metrics.recordHit(ctx, tier.Name(), e.Key.Category)
	m.log.DebugCtx(ctx, "cache hit", zap.String("tier", tier.Name()), zap.String("key", e.Key.String()))
}

func (m *Manager) recordMiss(ctx context.Context, key Key) {
	m.stats.miss(key.Category)
	m.metrics.recordMiss(ctx, key.Category)
	m.log.DebugCtx(ctx, "cache miss", zap.String("key", key.String()))
}

// tierError absorbs a tier failure: logged, counted, never returned from reads
func (m *Manager) tierError(ctx context.Context, tier Tier, op string, err error, fields ...zap.Field) {
	m.stats.tierErrors.Add(1)
	m.metrics.recordTierError(ctx, tier.Name(), op)
	fields = append(fields, zap.String("tier", tier.Name()), zap.String("op", op), zap.Error(err))
	m.log.WarnCtx(ctx, "cache tier operation failed", fields...)
}

// Stats 统计快照，不阻塞缓存操作
func (m *Manager) Stats() Stats {
	st := m.stats.snapshot()
	if ev, ok := m.memory.(interface{ Evictions() int64 }); ok {
		st.Evictions = ev.Evictions() - m.evictionBase.Load()
	}
	if cc, ok := m.memory.(CategoryCounter); ok {
		st.EntriesByCategory = cc.CategoryCounts()
	} else {
		st.EntriesByCategory = make(map[Category]int)
	}
	return st
}

// ResetStats zeroes the counters; entry counts are live values and are kept
func (m *Manager) ResetStats() {
	m.stats.reset()
	if ev, ok := m.memory.(interface{ Evictions() int64 }); ok {
		m.evictionBase.Store(ev.Evictions())
	}
}

// Close closes every tier; later calls return ErrManagerClosed
func (m *Manager) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return ErrManagerClosed
	}
	var errs error
	for _, tier := range m.tiers() {
		if err := tier.Close(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("close %s: %w", tier.Name(), err))
		}
	}
	m.log.Info("cache manager closed")
	return errs
}

// Shutdown implements samber/do.Shutdownable
func (m *Manager) Shutdown() error {
	if err := m.Close(); err != nil && !errors.Is(err, ErrManagerClosed) {
		return err
	}
	return nil
}

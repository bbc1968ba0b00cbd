package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_GetComputesOnceThenHits(t *testing.T) {
	env := newTestManager(t, nil)
	ctx := context.Background()
	var calls atomic.Int32

	v, err := env.mgr.Get(ctx, CategorySubsidy, "region:idf", Policy{}, counting("42", &calls))
	require.NoError(t, err)
	assert.Equal(t, "42", string(v))

	v, err = env.mgr.Get(ctx, CategorySubsidy, "region:idf", Policy{}, counting("43", &calls))
	require.NoError(t, err)
	assert.Equal(t, "42", string(v))
	assert.EqualValues(t, 1, calls.Load())

	st := env.mgr.Stats()
	assert.EqualValues(t, 1, st.MemoryHits)
	assert.EqualValues(t, 1, st.Misses)
	assert.EqualValues(t, 1, st.Recomputes)
	assert.EqualValues(t, 1, st.Writes)
	assert.InDelta(t, 0.5, st.HitRatio, 1e-9)
	assert.Equal(t, 1, st.EntriesByCategory[CategorySubsidy])
	assert.EqualValues(t, 1, st.ByCategory[CategorySubsidy].MemoryHits)
}

func TestManager_FixedTTLBoundary(t *testing.T) {
	env := newTestManager(t, nil)
	ctx := context.Background()
	var calls atomic.Int32
	policy := FixedTTL(time.Hour)

	_, err := env.mgr.Get(ctx, CategoryGeneric, "k", policy, counting("a", &calls))
	require.NoError(t, err)

	env.clock.Advance(time.Hour - time.Nanosecond)
	_, err = env.mgr.Get(ctx, CategoryGeneric, "k", policy, counting("b", &calls))
	require.NoError(t, err)
	assert.EqualValues(t, 1, calls.Load())

	env.clock.Advance(time.Nanosecond)
	v, err := env.mgr.Get(ctx, CategoryGeneric, "k", policy, counting("b", &calls))
	require.NoError(t, err)
	assert.Equal(t, "b", string(v))
	assert.EqualValues(t, 2, calls.Load())
}

func TestManager_GeoParcelWeekly(t *testing.T) {
	disk := newFileTier(t)
	env := newTestManager(t, disk)
	ctx := context.Background()
	var calls atomic.Int32

	_, err := env.mgr.Get(ctx, CategoryGeo, "parcel:75056000AB0012", Policy{}, counting(`{"area":812}`, &calls))
	require.NoError(t, err)

	env.clock.Advance(6 * 24 * time.Hour)
	v, err := env.mgr.Get(ctx, CategoryGeo, "parcel:75056000AB0012", Policy{}, counting(`{"area":900}`, &calls))
	require.NoError(t, err)
	assert.Equal(t, `{"area":812}`, string(v))
	assert.EqualValues(t, 1, calls.Load())

	env.clock.Advance(2 * 24 * time.Hour)
	v, err = env.mgr.Get(ctx, CategoryGeo, "parcel:75056000AB0012", Policy{}, counting(`{"area":900}`, &calls))
	require.NoError(t, err)
	assert.Equal(t, `{"area":900}`, string(v))
	assert.EqualValues(t, 2, calls.Load())

	e, err := disk.Lookup(ctx, Key{Category: CategoryGeo, ID: "parcel:75056000AB0012"})
	require.NoError(t, err)
	assert.Equal(t, `{"area":900}`, string(e.Payload))
	assert.Equal(t, env.clock.Now().Add(7*24*time.Hour).UnixNano(), e.ExpiresAt.UnixNano())
}

func TestManager_StaticNeverExpires(t *testing.T) {
	env := newTestManager(t, nil)
	ctx := context.Background()
	var calls atomic.Int32

	_, err := env.mgr.Get(ctx, CategoryRegulatory, "plu:article-7", Static(), counting("text", &calls))
	require.NoError(t, err)
	env.clock.Advance(10 * 365 * 24 * time.Hour)
	_, err = env.mgr.Get(ctx, CategoryRegulatory, "plu:article-7", Static(), counting("text2", &calls))
	require.NoError(t, err)
	assert.EqualValues(t, 1, calls.Load())
}

func TestManager_AlwaysFreshStoresNothing(t *testing.T) {
	disk := newFileTier(t)
	env := newTestManager(t, disk)
	ctx := context.Background()
	var calls atomic.Int32

	for range 3 {
		v, err := env.mgr.Get(ctx, CategoryExternalAPI, "quote", AlwaysFresh(), counting("live", &calls))
		require.NoError(t, err)
		assert.Equal(t, "live", string(v))
	}
	assert.EqualValues(t, 3, calls.Load())
	assert.Equal(t, 0, env.mem.Len())
	assert.EqualValues(t, 3, env.mgr.Stats().Misses)

	_, ok, err := env.mgr.Peek(ctx, CategoryExternalAPI, "quote")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestManager_SingleFlight(t *testing.T) {
	env := newTestManager(t, newFileTier(t))
	ctx := context.Background()

	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	recompute := func(context.Context) ([]byte, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return []byte("v"), nil
	}

	const n = 32
	var wg sync.WaitGroup
	results := make([]string, n)
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := env.mgr.Get(ctx, CategoryClimate, "station:07149", Policy{}, recompute)
			results[i], errs[i] = string(v), err
		}()
	}

	<-started
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := range n {
		require.NoError(t, errs[i])
		assert.Equal(t, "v", results[i])
	}
	assert.EqualValues(t, 1, calls.Load())
	assert.EqualValues(t, 1, env.mgr.Stats().Recomputes)
	assert.Equal(t, 0, env.mgr.locks.held())
}

func TestManager_WaiterContextCancelled(t *testing.T) {
	env := newTestManager(t, nil)
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		_, err := env.mgr.Get(context.Background(), CategoryGeneric, "slow", Policy{}, func(context.Context) ([]byte, error) {
			close(started)
			<-release
			return []byte("ok"), nil
		})
		done <- err
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := env.mgr.Get(ctx, CategoryGeneric, "slow", Policy{}, func(context.Context) ([]byte, error) {
		t.Error("waiter must not recompute")
		return nil, nil
	})
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
	require.NoError(t, <-done)
	v, ok, err := env.mgr.Peek(context.Background(), CategoryGeneric, "slow")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "ok", string(v))
}

func TestManager_LeaderCancelReleasesKey(t *testing.T) {
	env := newTestManager(t, newFileTier(t))
	leaderCtx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	leaderDone := make(chan error, 1)
	waiterDone := make(chan error, 1)

	go func() {
		_, err := env.mgr.Get(leaderCtx, CategoryExternalAPI, "quote", Policy{}, func(ctx context.Context) ([]byte, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		})
		leaderDone <- err
	}()
	<-started

	go func() {
		_, err := env.mgr.Get(context.Background(), CategoryExternalAPI, "quote", Policy{}, func(context.Context) ([]byte, error) {
			return []byte("waiter ran its own recompute"), nil
		})
		waiterDone <- err
	}()
	// the waiter has counted its miss and is about to join the flight
	require.Eventually(t, func() bool { return env.mgr.Stats().Misses == 2 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-leaderDone, context.Canceled)
	assert.ErrorIs(t, <-waiterDone, context.Canceled)
	assert.Zero(t, env.mgr.locks.held())

	_, ok, err := env.mgr.Peek(context.Background(), CategoryExternalAPI, "quote")
	require.NoError(t, err)
	assert.False(t, ok)

	var calls atomic.Int32
	v, err := env.mgr.Get(context.Background(), CategoryExternalAPI, "quote", Policy{}, counting("fresh", &calls))
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(v))
	assert.EqualValues(t, 1, calls.Load())
}

func TestManager_RecomputeErrorLeavesNothing(t *testing.T) {
	disk := newFileTier(t)
	env := newTestManager(t, disk)
	ctx := context.Background()
	boom := errors.New("upstream 503")

	_, err := env.mgr.Get(ctx, CategorySubsidy, "aid:maprimerenov", Policy{}, func(context.Context) ([]byte, error) {
		return nil, boom
	})
	assert.Same(t, boom, err)

	_, ok, err := env.mgr.Peek(ctx, CategorySubsidy, "aid:maprimerenov")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.EqualValues(t, 1, env.mgr.Stats().RecomputeErrors)
	assert.EqualValues(t, 0, env.mgr.Stats().Writes)
}

func TestManager_RecomputePanicRecovered(t *testing.T) {
	env := newTestManager(t, nil)
	ctx := context.Background()

	_, err := env.mgr.Get(ctx, CategoryGeneric, "p", Policy{}, func(context.Context) ([]byte, error) {
		panic("nil map")
	})
	assert.ErrorIs(t, err, ErrRecomputePanicked)
	assert.Equal(t, 1, env.logs.FilterMessage("recompute panicked").Len())

	var calls atomic.Int32
	v, err := env.mgr.Get(ctx, CategoryGeneric, "p", Policy{}, counting("recovered", &calls))
	require.NoError(t, err)
	assert.Equal(t, "recovered", string(v))
	assert.Equal(t, 0, env.mgr.locks.held())
}

func TestManager_PromotesFromDisk(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	var calls atomic.Int32

	disk1, err := NewFileTier(dir)
	require.NoError(t, err)
	first := newTestManager(t, disk1)
	_, err = first.mgr.Get(ctx, CategoryGeo, "commune:75056", Policy{}, counting("paris", &calls))
	require.NoError(t, err)
	require.NoError(t, first.mgr.Close())

	// a new process: empty memory, same directory
	disk2, err := NewFileTier(dir)
	require.NoError(t, err)
	second := newTestManager(t, disk2)

	v, err := second.mgr.Get(ctx, CategoryGeo, "commune:75056", Policy{}, counting("other", &calls))
	require.NoError(t, err)
	assert.Equal(t, "paris", string(v))
	assert.Equal(t, 1, second.mem.Len())

	_, err = second.mgr.Get(ctx, CategoryGeo, "commune:75056", Policy{}, counting("other", &calls))
	require.NoError(t, err)

	st := second.mgr.Stats()
	assert.EqualValues(t, 1, st.DiskHits)
	assert.EqualValues(t, 1, st.MemoryHits)
	assert.EqualValues(t, 0, st.Misses)
	assert.EqualValues(t, 1, calls.Load())
}

func TestManager_ExpiredDiskEntryRecomputed(t *testing.T) {
	disk := newFileTier(t)
	env := newTestManager(t, disk)
	ctx := context.Background()
	key := Key{Category: CategoryClimate, ID: "station:1"}

	old := NewEntry(key, []byte("old"), FixedTTL(time.Hour), epoch.Add(-2*time.Hour))
	require.NoError(t, disk.Store(ctx, old))

	var calls atomic.Int32
	v, err := env.mgr.Get(ctx, key.Category, key.ID, FixedTTL(time.Hour), counting("new", &calls))
	require.NoError(t, err)
	assert.Equal(t, "new", string(v))
	assert.EqualValues(t, 1, calls.Load())

	e, err := disk.Lookup(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "new", string(e.Payload))
}

func TestManager_CorruptDiskRecordRecovered(t *testing.T) {
	disk := newFileTier(t)
	env := newTestManager(t, disk)
	ctx := context.Background()
	key := Key{Category: CategoryGeneric, ID: "broken"}

	require.NoError(t, disk.Store(ctx, NewEntry(key, []byte("x"), Daily, epoch)))
	require.NoError(t, writeRaw(disk.path(key), []byte("{not json")))

	var calls atomic.Int32
	v, err := env.mgr.Get(ctx, key.Category, key.ID, Policy{}, counting("fixed", &calls))
	require.NoError(t, err)
	assert.Equal(t, "fixed", string(v))
	assert.EqualValues(t, 1, env.mgr.Stats().TierErrors)
	assert.Equal(t, 1, env.logs.FilterMessage("cache tier operation failed").Len())

	e, err := disk.Lookup(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "fixed", string(e.Payload))
}

func TestManager_SetOverwritesAndResetsCreation(t *testing.T) {
	env := newTestManager(t, newFileTier(t))
	ctx := context.Background()

	require.NoError(t, env.mgr.Set(ctx, CategoryGeneric, "k", []byte("1"), FixedTTL(time.Hour)))
	env.clock.Advance(50 * time.Minute)
	require.NoError(t, env.mgr.Set(ctx, CategoryGeneric, "k", []byte("2"), FixedTTL(time.Hour)))
	env.clock.Advance(50 * time.Minute)

	v, ok, err := env.mgr.Peek(ctx, CategoryGeneric, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2", string(v))

	// AlwaysFresh on Set drops the key
	require.NoError(t, env.mgr.Set(ctx, CategoryGeneric, "k", []byte("3"), AlwaysFresh()))
	_, ok, err = env.mgr.Peek(ctx, CategoryGeneric, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestManager_SetCopiesValue(t *testing.T) {
	env := newTestManager(t, nil)
	buf := []byte("abc")
	require.NoError(t, env.mgr.Set(context.Background(), CategoryGeneric, "k", buf, Policy{}))
	buf[0] = 'z'

	v, _, err := env.mgr.Peek(context.Background(), CategoryGeneric, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(v))
}

func TestManager_ReturnedValueIsCallerOwned(t *testing.T) {
	disk := newFileTier(t)
	env := newTestManager(t, disk)
	ctx := context.Background()
	key := Key{Category: CategoryGeo, ID: "13097000B0012"}

	require.NoError(t, env.mgr.Set(ctx, key.Category, key.ID, []byte("parcel"), Static()))
	v, err := env.mgr.Get(ctx, key.Category, key.ID, Static(), mustNotRecompute(t))
	require.NoError(t, err)
	v[0] = 'X'

	v, err = env.mgr.Get(ctx, key.Category, key.ID, Static(), mustNotRecompute(t))
	require.NoError(t, err)
	assert.Equal(t, "parcel", string(v))

	p, ok, err := env.mgr.Peek(ctx, key.Category, key.ID)
	require.NoError(t, err)
	require.True(t, ok)
	p[0] = 'Y'

	mem, err := env.mem.Lookup(ctx, key)
	require.NoError(t, err)
	onDisk, err := disk.Lookup(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "parcel", string(mem.Payload))
	assert.Equal(t, string(onDisk.Payload), string(mem.Payload))
}

func TestManager_RecomputeResultIsCopied(t *testing.T) {
	env := newTestManager(t, newFileTier(t))
	ctx := context.Background()
	buf := []byte("climate")

	v, err := env.mgr.Get(ctx, CategoryClimate, "station:42", Static(), func(context.Context) ([]byte, error) {
		return buf, nil
	})
	require.NoError(t, err)
	buf[0] = 'z'
	v[1] = 'z'

	v, err = env.mgr.Get(ctx, CategoryClimate, "station:42", Static(), mustNotRecompute(t))
	require.NoError(t, err)
	assert.Equal(t, "climate", string(v))
}

func TestManager_SetBatch(t *testing.T) {
	disk := newFileTier(t)
	env := newTestManager(t, disk)
	ctx := context.Background()

	err := env.mgr.SetBatch(ctx, CategorySubsidy, Policy{}, []Item{
		{ID: "a", Value: []byte("1")},
		{ID: "b", Value: []byte("2")},
		{ID: "a", Value: []byte("3")},
	})
	require.NoError(t, err)

	v, ok, err := env.mgr.Peek(ctx, CategorySubsidy, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "3", string(v))
	assert.Equal(t, 2, env.mem.Len())
	assert.EqualValues(t, 2, env.mgr.Stats().Writes)

	err = env.mgr.SetBatch(ctx, CategorySubsidy, Policy{}, []Item{{ID: "c"}, {ID: ""}})
	assert.ErrorIs(t, err, ErrInvalidKey)
	_, ok, _ = env.mgr.Peek(ctx, CategorySubsidy, "c")
	assert.False(t, ok, "a rejected batch writes nothing")
}

func TestManager_InvalidateIsIdempotent(t *testing.T) {
	disk := newFileTier(t)
	env := newTestManager(t, disk)
	ctx := context.Background()
	var calls atomic.Int32

	_, err := env.mgr.Get(ctx, CategoryGeo, "p", Policy{}, counting("v", &calls))
	require.NoError(t, err)

	require.NoError(t, env.mgr.Invalidate(ctx, CategoryGeo, "p"))
	require.NoError(t, env.mgr.Invalidate(ctx, CategoryGeo, "p"))
	require.NoError(t, env.mgr.Invalidate(ctx, CategoryGeo, "never-cached"))

	_, err = disk.Lookup(ctx, Key{Category: CategoryGeo, ID: "p"})
	assert.ErrorIs(t, err, ErrCacheMiss)

	_, err = env.mgr.Get(ctx, CategoryGeo, "p", Policy{}, counting("v", &calls))
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load())
}

func TestManager_SameIdDifferentCategories(t *testing.T) {
	env := newTestManager(t, nil)
	ctx := context.Background()
	require.NoError(t, env.mgr.Set(ctx, CategoryGeo, "75056", []byte("geo"), Policy{}))
	require.NoError(t, env.mgr.Set(ctx, CategoryClimate, "75056", []byte("climate"), Policy{}))

	require.NoError(t, env.mgr.Invalidate(ctx, CategoryGeo, "75056"))
	v, ok, err := env.mgr.Peek(ctx, CategoryClimate, "75056")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "climate", string(v))
}

func TestManager_InvalidateCategory(t *testing.T) {
	disk := newFileTier(t)
	env := newTestManager(t, disk)
	ctx := context.Background()

	require.NoError(t, env.mgr.SetBatch(ctx, CategoryGeo, Policy{}, []Item{{ID: "a"}, {ID: "b"}}))
	require.NoError(t, env.mgr.Set(ctx, CategorySubsidy, "a", []byte("s"), Policy{}))

	require.NoError(t, env.mgr.InvalidateCategory(ctx, CategoryGeo))

	for _, id := range []string{"a", "b"} {
		_, ok, err := env.mgr.Peek(ctx, CategoryGeo, id)
		require.NoError(t, err)
		assert.False(t, ok)
	}
	_, ok, err := env.mgr.Peek(ctx, CategorySubsidy, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, map[Category]int{CategorySubsidy: 1}, env.mgr.Stats().EntriesByCategory)
}

func TestManager_ForceRefresh(t *testing.T) {
	env := newTestManager(t, newFileTier(t))
	ctx := context.Background()
	var calls atomic.Int32

	_, err := env.mgr.Get(ctx, CategoryRegulatory, "rule", Policy{}, counting("v1", &calls))
	require.NoError(t, err)
	v, err := env.mgr.ForceRefresh(ctx, CategoryRegulatory, "rule", Policy{}, counting("v2", &calls))
	require.NoError(t, err)
	assert.Equal(t, "v2", string(v))

	v, err = env.mgr.Get(ctx, CategoryRegulatory, "rule", Policy{}, counting("v3", &calls))
	require.NoError(t, err)
	assert.Equal(t, "v2", string(v))
	assert.EqualValues(t, 2, calls.Load())
}

// flakyRemoveTier fails the first failures Remove calls
type flakyRemoveTier struct {
	*MemoryTier
	failures int
	removes  int
}

func (f *flakyRemoveTier) Name() string { return "flaky" }

func (f *flakyRemoveTier) Remove(ctx context.Context, key Key) error {
	f.removes++
	if f.removes <= f.failures {
		return ErrTierIO.WithMsg("remove refused")
	}
	return f.MemoryTier.Remove(ctx, key)
}

func TestManager_ForceRefreshFailureRetriesRemoval(t *testing.T) {
	ctx := context.Background()
	key := Key{Category: CategoryRegulatory, ID: "rule"}
	boom := errors.New("legifrance unavailable")
	failing := func(context.Context) ([]byte, error) { return nil, boom }

	tests := []struct {
		name      string
		failures  int
		wantStale bool
	}{
		{name: "retry succeeds", failures: 1, wantStale: false},
		{name: "retry fails", failures: 2, wantStale: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			disk := &flakyRemoveTier{MemoryTier: NewMemoryTier(), failures: tt.failures}
			env := newTestManager(t, disk)
			require.NoError(t, disk.Store(ctx, NewEntry(key, []byte("stale"), Static(), epoch)))

			_, err := env.mgr.ForceRefresh(ctx, key.Category, key.ID, Static(), failing)
			assert.ErrorIs(t, err, boom)
			assert.Equal(t, 2, disk.removes)
			assert.Equal(t, tt.wantStale, errors.Is(err, ErrTierIO), "removal failure reported only when it persists")

			_, lookupErr := disk.Lookup(ctx, key)
			if tt.wantStale {
				assert.NoError(t, lookupErr)
				return
			}
			assert.ErrorIs(t, lookupErr, ErrCacheMiss)
			_, err = env.mgr.Get(ctx, key.Category, key.ID, Static(), failing)
			assert.Same(t, boom, err, "no stale record left to promote")
		})
	}
}

func TestManager_ForceRefreshOverwritesAfterFailedRemoval(t *testing.T) {
	ctx := context.Background()
	disk := &flakyRemoveTier{MemoryTier: NewMemoryTier(), failures: 1}
	env := newTestManager(t, disk)
	key := Key{Category: CategoryRegulatory, ID: "rule"}
	require.NoError(t, disk.Store(ctx, NewEntry(key, []byte("stale"), Static(), epoch)))

	v, err := env.mgr.ForceRefresh(ctx, key.Category, key.ID, Static(), func(context.Context) ([]byte, error) {
		return []byte("fresh"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(v))
	assert.Equal(t, 1, disk.removes)

	e, err := disk.Lookup(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(e.Payload))
}

func TestManager_PeekIsPure(t *testing.T) {
	disk := newFileTier(t)
	env := newTestManager(t, disk)
	ctx := context.Background()
	require.NoError(t, disk.Store(ctx, NewEntry(Key{Category: CategoryGeo, ID: "d"}, []byte("v"), Daily, epoch)))

	v, ok, err := env.mgr.Peek(ctx, CategoryGeo, "d")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", string(v))
	assert.Equal(t, 0, env.mem.Len(), "peek does not promote")

	st := env.mgr.Stats()
	assert.Zero(t, st.DiskHits+st.MemoryHits+st.Misses)
}

func TestManager_Sweep(t *testing.T) {
	disk := newFileTier(t)
	env := newTestManager(t, disk)
	ctx := context.Background()

	require.NoError(t, env.mgr.Set(ctx, CategoryClimate, "short", []byte("x"), FixedTTL(time.Hour)))
	require.NoError(t, env.mgr.Set(ctx, CategoryClimate, "long", []byte("y"), FixedTTL(48*time.Hour)))
	require.NoError(t, env.mgr.Set(ctx, CategoryRegulatory, "static", []byte("z"), Static()))

	env.clock.Advance(2 * time.Hour)
	n, err := env.mgr.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 2, env.mem.Len())

	_, err = disk.Lookup(ctx, Key{Category: CategoryClimate, ID: "short"})
	assert.ErrorIs(t, err, ErrCacheMiss)

	n, err = env.mgr.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestManager_InputValidation(t *testing.T) {
	env := newTestManager(t, nil)
	ctx := context.Background()
	ok := func(context.Context) ([]byte, error) { return []byte("x"), nil }

	_, err := env.mgr.Get(ctx, CategoryGeo, "", Policy{}, ok)
	assert.ErrorIs(t, err, ErrInvalidKey)
	_, err = env.mgr.Get(ctx, "GEO", "x", Policy{}, ok)
	assert.ErrorIs(t, err, ErrInvalidKey)
	_, err = env.mgr.Get(ctx, CategoryGeo, "x", FixedTTL(0), ok)
	assert.ErrorIs(t, err, ErrInvalidPolicy)
	_, err = env.mgr.Get(ctx, CategoryGeo, "x", Policy{}, nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.ErrorIs(t, env.mgr.Set(ctx, CategoryGeo, "", nil, Policy{}), ErrInvalidKey)
	assert.ErrorIs(t, env.mgr.RegisterCategory("Bad", Daily), ErrInvalidKey)
	assert.ErrorIs(t, env.mgr.RegisterCategory("cadastre", Policy{}), ErrInvalidPolicy)
}

func TestManager_RegisterCategory(t *testing.T) {
	env := newTestManager(t, nil, WithCategoryPolicies(map[Category]Policy{
		"cadastre": Weekly,
		"BAD":      Daily,
	}))

	assert.Equal(t, Weekly, env.mgr.PolicyFor("cadastre"))
	assert.Equal(t, Daily, env.mgr.PolicyFor("unknown"))
	assert.Equal(t, Monthly, env.mgr.PolicyFor(CategoryRegulatory))
	assert.Equal(t, 1, env.logs.FilterMessage("category policy ignored").Len())

	require.NoError(t, env.mgr.RegisterCategory("cadastre", Static()))
	assert.Equal(t, Static(), env.mgr.PolicyFor("cadastre"))
}

func TestManager_StatsReset(t *testing.T) {
	env := newTestManager(t, nil)
	ctx := context.Background()
	var calls atomic.Int32
	_, _ = env.mgr.Get(ctx, CategoryGeneric, "a", Policy{}, counting("v", &calls))
	_, _ = env.mgr.Get(ctx, CategoryGeneric, "a", Policy{}, counting("v", &calls))

	env.mgr.ResetStats()
	st := env.mgr.Stats()
	assert.Zero(t, st.MemoryHits)
	assert.Zero(t, st.Misses)
	assert.Zero(t, st.HitRatio)
	assert.Empty(t, st.ByCategory)
	assert.Equal(t, 1, st.EntriesByCategory[CategoryGeneric])
}

func TestManager_Closed(t *testing.T) {
	env := newTestManager(t, newFileTier(t))
	ctx := context.Background()

	require.NoError(t, env.mgr.Close())
	assert.ErrorIs(t, env.mgr.Close(), ErrManagerClosed)
	assert.NoError(t, env.mgr.Shutdown())

	_, err := env.mgr.Get(ctx, CategoryGeo, "x", Policy{}, func(context.Context) ([]byte, error) { return nil, nil })
	assert.ErrorIs(t, err, ErrManagerClosed)
	assert.ErrorIs(t, env.mgr.Set(ctx, CategoryGeo, "x", nil, Policy{}), ErrManagerClosed)
	assert.ErrorIs(t, env.mgr.Invalidate(ctx, CategoryGeo, "x"), ErrManagerClosed)
	_, err = env.mgr.Sweep(ctx)
	assert.ErrorIs(t, err, ErrManagerClosed)
}

func TestManager_DiskFailureIsAbsorbed(t *testing.T) {
	disk := &failingTier{MemoryTier: NewMemoryTier(), err: ErrTierIO.WithMsg("disk gone")}
	env := newTestManager(t, disk)
	ctx := context.Background()
	var calls atomic.Int32

	v, err := env.mgr.Get(ctx, CategoryGeneric, "k", Policy{}, counting("v", &calls))
	require.NoError(t, err)
	assert.Equal(t, "v", string(v))

	v, err = env.mgr.Get(ctx, CategoryGeneric, "k", Policy{}, counting("w", &calls))
	require.NoError(t, err)
	assert.Equal(t, "v", string(v))
	assert.EqualValues(t, 2, env.mgr.Stats().TierErrors, "lookup and store")

	// a failed persistent removal is reported
	assert.ErrorIs(t, env.mgr.Invalidate(ctx, CategoryGeneric, "k"), ErrTierIO)
}

// failingTier persistent tier whose every operation fails
type failingTier struct {
	*MemoryTier
	err error
}

func (f *failingTier) Name() string { return "failing" }

func (f *failingTier) Lookup(context.Context, Key) (*Entry, error) { return nil, f.err }

func (f *failingTier) Store(context.Context, *Entry) error { return f.err }

func (f *failingTier) Remove(context.Context, Key) error { return f.err }

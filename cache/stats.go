package cache

import (
	"sync"
	"sync/atomic"
)

// Stats 缓存统计快照
type Stats struct {
	MemoryHits        int64                      `json:"memory_hits"`
	DiskHits          int64                      `json:"disk_hits"`
	Misses            int64                      `json:"misses"`
	HitRatio          float64                    `json:"hit_ratio"`
	Recomputes        int64                      `json:"recomputes"`
	RecomputeErrors   int64                      `json:"recompute_errors"`
	Writes            int64                      `json:"writes"`
	Invalidations     int64                      `json:"invalidations"`
	TierErrors        int64                      `json:"tier_errors"`
	Evictions         int64                      `json:"evictions"`
	EntriesByCategory map[Category]int           `json:"entries_by_category"`
	ByCategory        map[Category]CategoryStats `json:"by_category"`
}

// CategoryStats per-category read counters
type CategoryStats struct {
	MemoryHits int64   `json:"memory_hits"`
	DiskHits   int64   `json:"disk_hits"`
	Misses     int64   `json:"misses"`
	HitRatio   float64 `json:"hit_ratio"`
}

func hitRatio(hits, misses int64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// statsCollector lock-free counters; never shares a lock with entry storage
type statsCollector struct {
	memoryHits      atomic.Int64
	diskHits        atomic.Int64
	misses          atomic.Int64
	recomputes      atomic.Int64
	recomputeErrors atomic.Int64
	writes          atomic.Int64
	invalidations   atomic.Int64
	tierErrors      atomic.Int64

	byCategory sync.Map // Category -> *categoryCounters
}

type categoryCounters struct {
	memoryHits atomic.Int64
	diskHits   atomic.Int64
	misses     atomic.Int64
}

func (s *statsCollector) category(c Category) *categoryCounters {
	if v, ok := s.byCategory.Load(c); ok {
		return v.(*categoryCounters)
	}
	v, _ := s.byCategory.LoadOrStore(c, new(categoryCounters))
	return v.(*categoryCounters)
}

func (s *statsCollector) memoryHit(c Category) {
	s.memoryHits.Add(1)
	s.category(c).memoryHits.Add(1)
}

func (s *statsCollector) diskHit(c Category) {
	s.diskHits.Add(1)
	s.category(c).diskHits.Add(1)
}

func (s *statsCollector) miss(c Category) {
	s.misses.Add(1)
	s.category(c).misses.Add(1)
}

func (s *statsCollector) snapshot() Stats {
	st := Stats{
		MemoryHits:      s.memoryHits.Load(),
		DiskHits:        s.diskHits.Load(),
		Misses:          s.misses.Load(),
		Recomputes:      s.recomputes.Load(),
		RecomputeErrors: s.recomputeErrors.Load(),
		Writes:          s.writes.Load(),
		Invalidations:   s.invalidations.Load(),
		TierErrors:      s.tierErrors.Load(),
		ByCategory:      make(map[Category]CategoryStats),
	}
	st.HitRatio = hitRatio(st.MemoryHits+st.DiskHits, st.Misses)

	s.byCategory.Range(func(k, v any) bool {
		c := v.(*categoryCounters)
		cs := CategoryStats{
			MemoryHits: c.memoryHits.Load(),
			DiskHits:   c.diskHits.Load(),
			Misses:     c.misses.Load(),
		}
		cs.HitRatio = hitRatio(cs.MemoryHits+cs.DiskHits, cs.Misses)
		st.ByCategory[k.(Category)] = cs
		return true
	})
	return st
}

func (s *statsCollector) reset() {
	s.memoryHits.Store(0)
	s.diskHits.Store(0)
	s.misses.Store(0)
	s.recomputes.Store(0)
	s.recomputeErrors.Store(0)
	s.writes.Store(0)
	s.invalidations.Store(0)
	s.tierErrors.Store(0)
	s.byCategory.Clear()
}

package cache

import (
	"sync/atomic"
	"time"
)

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	LastSweep          time.Time `json:"last_sweep,omitzero"`
	Tags               []string  `json:"tags"`
	TotalKeys          int       `json:"total_keys"`
	Hits               int64     `json:"hits"`
	Misses             int64     `json:"misses"`
	HitRate            float64   `json:"hit_rate"`
	MemoryUsage        int64     `json:"memory_usage"`
	Expired            int64     `json:"expired"`
	Invalidated        int64     `json:"invalidated"`
	Refreshes          int64     `json:"refreshes"`
	RefreshFailures    int64     `json:"refresh_failures"`
	LastSweepReclaimed int       `json:"last_sweep_reclaimed"`
}

// counters are updated without the store lock.
type counters struct {
	lastSweep          atomic.Int64 // unix nanos, 0 = never
	hits               atomic.Int64
	misses             atomic.Int64
	expired            atomic.Int64
	invalidated        atomic.Int64
	refreshes          atomic.Int64
	refreshFailures    atomic.Int64
	lastSweepReclaimed atomic.Int64
}

func (c *counters) reset() {
	c.lastSweep.Store(0)
	c.hits.Store(0)
	c.misses.Store(0)
	c.expired.Store(0)
	c.invalidated.Store(0)
	c.refreshes.Store(0)
	c.refreshFailures.Store(0)
	c.lastSweepReclaimed.Store(0)
}

// fill copies the counters into s and derives the hit rate.
func (c *counters) fill(s *Stats) {
	s.Hits = c.hits.Load()
	s.Misses = c.misses.Load()
	s.Expired = c.expired.Load()
	s.Invalidated = c.invalidated.Load()
	s.Refreshes = c.refreshes.Load()
	s.RefreshFailures = c.refreshFailures.Load()
	s.LastSweepReclaimed = int(c.lastSweepReclaimed.Load())
	if ns := c.lastSweep.Load(); ns > 0 {
		s.LastSweep = time.Unix(0, ns)
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
}

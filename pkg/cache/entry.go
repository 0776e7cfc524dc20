package cache

import (
	"reflect"
	"sync/atomic"
	"time"
)

// entry holds a cached payload with the metadata that decides its liveness.
// createdAt, ttl, tags and size are fixed at insertion; only hits changes afterwards.
type entry struct {
	createdAt time.Time
	payload   any
	tags      []string
	ttl       time.Duration
	size      int64
	hits      atomic.Int64
}

// age reports how long ago the entry was inserted.
func (e *entry) age(now time.Time) time.Duration {
	return now.Sub(e.createdAt)
}

// isExpired reports whether the entry has outlived its TTL.
func (e *entry) isExpired(now time.Time) bool {
	return e.age(now) > e.ttl
}

// isStale reports whether the entry must not be served for a namespace whose
// freshness window may be shorter than the stored TTL.
func (e *entry) isStale(now time.Time, window time.Duration) bool {
	if e.isExpired(now) {
		return true
	}
	return window > 0 && e.age(now) > window
}

// entryOverhead approximates the bookkeeping cost of one entry (struct, map slot, timestamps).
const entryOverhead = 96

// estimateSize returns a coarse memory estimate for a stored payload.
// Only byte-like payloads are measured exactly; other values count their shallow size.
func estimateSize(key string, payload any) int64 {
	n := int64(entryOverhead + len(key))
	switch v := payload.(type) {
	case nil:
	case []byte:
		n += int64(len(v))
	case string:
		n += int64(len(v))
	default:
		n += int64(reflect.TypeOf(v).Size())
	}
	return n
}

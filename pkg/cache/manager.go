package cache

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// EvictReason tells an eviction callback why an entry left the cache.
type EvictReason int

const (
	// EvictExpired is reported when an entry outlived its TTL or freshness window.
	EvictExpired EvictReason = iota + 1
	// EvictInvalidated is reported for entries removed by InvalidateByTag.
	EvictInvalidated
	// EvictDeleted is reported for entries removed by Delete.
	EvictDeleted
	// EvictCleared is reported for entries dropped by Clear or Close.
	EvictCleared
)

func (r EvictReason) String() string {
	switch r {
	case EvictExpired:
		return "expired"
	case EvictInvalidated:
		return "invalidated"
	case EvictDeleted:
		return "deleted"
	case EvictCleared:
		return "cleared"
	default:
		return "unknown"
	}
}

// Manager is an in-process key/value cache with per-entry TTL, tag-based
// invalidation, hit/miss accounting and optional background refresh.
//
// Keys are built from a Namespace and an identifier. The store and its tag
// index are guarded by one lock; counters are atomic. Caller-supplied code
// (fetch functions, eviction callbacks) never runs while the lock is held.
type Manager struct {
	store  *store
	opts   *options
	cron   *cron.Cron
	sf     singleflight.Group
	stats  counters
	mu     sync.RWMutex
	closed bool
}

// EntryInfo describes a stored entry.
type EntryInfo struct {
	CreatedAt time.Time
	Key       string
	Tags      []string
	TTL       time.Duration
	Size      int64
	Hits      int64
}

// Result is the outcome of one lookup in MGet.
type Result struct {
	Value any
	ID    string
	Found bool
}

// New creates a cache manager and starts its periodic sweep.
// Call Close to stop the sweep and release all entries.
//
// Example:
//
//	m, err := cache.New(
//	    cache.WithLogger(log),
//	    cache.WithSweepInterval(5 * time.Minute),
//	)
//	if err != nil {
//	    return err
//	}
//	defer m.Close()
func New(opts ...Option) (*Manager, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	m := &Manager{
		store: newStore(),
		opts:  o,
	}

	if err := m.startSweep(); err != nil {
		return nil, err
	}

	return m, nil
}

// Set stores payload under the namespace key for id.
// The TTL and tags default to the namespace's and can be overridden with
// WithTTL and WithTags. Overwriting a key replaces its tag memberships.
func (m *Manager) Set(_ context.Context, ns Namespace, id string, payload any, opts ...SetOption) error {
	e, err := m.newEntry(ns, id, payload, opts)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	m.store.put(ns.Key(id), e)
	return nil
}

func (m *Manager) newEntry(ns Namespace, id string, payload any, opts []SetOption) (*entry, error) {
	if err := ns.Validate(); err != nil {
		return nil, err
	}

	so := newSetOptions(ns, opts)
	return &entry{
		createdAt: m.opts.now(),
		payload:   payload,
		ttl:       so.ttl,
		tags:      so.tags,
		size:      estimateSize(ns.Key(id), payload),
	}, nil
}

// replace stores e under key only while key still holds prev.
// It reports false when prev was removed or overwritten in the meantime.
func (m *Manager) replace(key string, prev, e *entry) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false, ErrClosed
	}
	if cur, ok := m.store.get(key); !ok || cur != prev {
		return false, nil
	}

	m.store.put(key, e)
	m.stats.refreshes.Add(1)
	return true, nil
}

// Get returns the payload stored for id in ns.
// Returns ErrNotFound if the key is absent, expired, or older than the
// namespace freshness window. Expired entries are removed on the spot.
func (m *Manager) Get(_ context.Context, ns Namespace, id string) (any, error) {
	e, err := m.lookup(ns, id)
	if err != nil {
		return nil, err
	}
	return e.payload, nil
}

// lookup finds the live entry for id and records the hit or miss.
// Counters change under the same lock Clear resets them under, so a lookup
// is counted either entirely before a reset or entirely after it.
func (m *Manager) lookup(ns Namespace, id string) (*entry, error) {
	key := ns.Key(id)

	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return nil, ErrClosed
	}

	now := m.opts.now()
	e, ok := m.store.get(key)
	switch {
	case !ok || e == nil:
		m.stats.misses.Add(1)
		m.mu.RUnlock()
		return nil, ErrNotFound
	case !e.isStale(now, ns.FreshnessWindow):
		e.hits.Add(1)
		m.stats.hits.Add(1)
		m.mu.RUnlock()
		return e, nil
	}
	m.mu.RUnlock()

	return nil, m.expire(key, e)
}

// Inspect returns metadata of the live entry stored for id in ns, including
// its own hit count. It is not a lookup: counters are unchanged and stale
// entries are reported absent but left for Get or the sweep to remove.
func (m *Manager) Inspect(_ context.Context, ns Namespace, id string) (EntryInfo, bool) {
	key := ns.Key(id)

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return EntryInfo{}, false
	}
	e, ok := m.store.get(key)
	if !ok || e == nil || e.isStale(m.opts.now(), ns.FreshnessWindow) {
		return EntryInfo{}, false
	}

	return EntryInfo{
		CreatedAt: e.createdAt,
		Key:       key,
		Tags:      slices.Clone(e.tags),
		TTL:       e.ttl,
		Size:      e.size,
		Hits:      e.hits.Load(),
	}, true
}

// MGet looks up every id in ns and returns one Result per id, in input order.
// Each lookup behaves exactly like Get.
func (m *Manager) MGet(ctx context.Context, ns Namespace, ids []string) []Result {
	results := make([]Result, len(ids))
	lookup := func(i int) {
		v, err := m.Get(ctx, ns, ids[i])
		results[i] = Result{ID: ids[i], Value: v, Found: err == nil}
	}

	if m.opts.mgetLimit <= 1 || len(ids) < 2 {
		for i := range ids {
			lookup(i)
		}
		return results
	}

	var g errgroup.Group
	g.SetLimit(m.opts.mgetLimit)
	for i := range ids {
		g.Go(func() error {
			lookup(i)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// Delete removes the entry for id in ns. It reports whether an entry was removed.
func (m *Manager) Delete(_ context.Context, ns Namespace, id string) bool {
	key := ns.Key(id)

	m.mu.Lock()
	_, ok := m.store.remove(key)
	m.mu.Unlock()

	if ok {
		m.notify(EvictDeleted, key)
	}
	return ok
}

// InvalidateByTag removes every entry carrying tag and returns how many were removed.
// An unknown tag is a no-op.
func (m *Manager) InvalidateByTag(ctx context.Context, tag string) int {
	m.mu.Lock()
	keys := m.store.keysForTag(tag)
	for _, key := range keys {
		m.store.remove(key)
	}
	m.stats.invalidated.Add(int64(len(keys)))
	m.mu.Unlock()

	if len(keys) == 0 {
		return 0
	}

	m.opts.logger.DebugContext(ctx, "cache tag invalidated",
		slog.String("tag", tag),
		slog.Int("keys", len(keys)),
	)
	m.notify(EvictInvalidated, keys...)

	return len(keys)
}

// Stats returns a snapshot of the cache counters.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Stats{
		TotalKeys:   m.store.len(),
		MemoryUsage: m.store.memory,
		Tags:        m.store.tagNames(),
	}
	m.stats.fill(&s)
	return s
}

// Clear removes all entries and resets the counters.
// A lookup running concurrently is counted either before the reset or after it,
// never half in each.
func (m *Manager) Clear(_ context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	keys := m.drain()
	m.mu.Unlock()

	m.notify(EvictCleared, keys...)
	return nil
}

// Close stops the periodic sweep, drops all entries and marks the manager closed.
// Background refreshes still running are abandoned; their results are discarded.
// Close is idempotent.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	keys := m.drain()
	m.mu.Unlock()

	m.stopSweep()
	m.notify(EvictCleared, keys...)
	return nil
}

// drain empties the store and resets counters, returning the dropped keys
// when an eviction callback needs them. Caller must hold the write lock.
func (m *Manager) drain() []string {
	var keys []string
	if m.opts.onEvict != nil {
		keys = make([]string, 0, m.store.len())
		for key := range m.store.items {
			keys = append(keys, key)
		}
		slices.Sort(keys)
	}

	m.store.reset()
	m.stats.reset()
	return keys
}

// expire counts a miss for a stale e and removes it if it is still the entry
// stored under key. Another writer may have replaced it since the read lock
// was released.
func (m *Manager) expire(key string, e *entry) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}

	m.stats.misses.Add(1)
	cur, ok := m.store.get(key)
	removed := ok && cur == e
	if removed {
		m.store.remove(key)
		m.stats.expired.Add(1)
	}
	m.mu.Unlock()

	if removed {
		m.notify(EvictExpired, key)
	}
	return ErrNotFound
}

// count adds n to c unless the manager is closed. The read lock orders the
// update against the reset done by Clear and Close.
func (m *Manager) count(c *atomic.Int64, n int64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.closed {
		c.Add(n)
	}
}

func (m *Manager) isClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

// notify runs the eviction callback. Caller must not hold the lock.
func (m *Manager) notify(reason EvictReason, keys ...string) {
	if m.opts.onEvict == nil {
		return
	}
	for _, key := range keys {
		m.opts.onEvict(key, reason)
	}
}

// SetOption configures a single Set call.
type SetOption func(*setOptions)

type setOptions struct {
	tags []string
	ttl  time.Duration
}

func newSetOptions(ns Namespace, opts []SetOption) *setOptions {
	so := &setOptions{ttl: ns.TTL, tags: ns.Tags}
	for _, opt := range opts {
		opt(so)
	}
	so.tags = normalizeTags(so.tags)
	return so
}

// WithTTL overrides the namespace TTL for this entry. Non-positive values are ignored.
func WithTTL(d time.Duration) SetOption {
	return func(o *setOptions) {
		if d > 0 {
			o.ttl = d
		}
	}
}

// WithTags replaces the namespace default tags for this entry.
// Calling it with no tags stores the entry untagged.
func WithTags(tags ...string) SetOption {
	return func(o *setOptions) {
		o.tags = slices.Clone(tags)
	}
}

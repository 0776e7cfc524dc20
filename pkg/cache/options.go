package cache

import (
	"log/slog"
	"time"
)

const (
	defaultSweepInterval  = 5 * time.Minute
	defaultRefreshTimeout = 30 * time.Second
)

// Option configures a Manager.
type Option func(*options)

type options struct {
	logger         *slog.Logger
	now            func() time.Time
	onEvict        func(key string, reason EvictReason)
	sweepSchedule  string
	sweepInterval  time.Duration
	refreshTimeout time.Duration
	mgetLimit      int
	coalesce       bool
}

func defaultOptions() *options {
	return &options{
		logger:         slog.New(slog.DiscardHandler),
		now:            time.Now,
		sweepInterval:  defaultSweepInterval,
		refreshTimeout: defaultRefreshTimeout,
	}
}

// WithLogger sets the logger used for sweep reports and background refresh failures.
// Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithSweepInterval sets how often expired entries are reclaimed by the
// background sweep. Sub-second intervals are honored as given. Zero or a
// negative value disables the sweep; lazy expiry still applies.
// Default: 5 minutes.
func WithSweepInterval(d time.Duration) Option {
	return func(o *options) {
		o.sweepInterval = d
		o.sweepSchedule = ""
	}
}

// WithSweepSchedule schedules the sweep with a cron expression
// (5 fields: min hour day month weekday) or a descriptor such as "@hourly".
// It takes precedence over WithSweepInterval.
func WithSweepSchedule(expr string) Option {
	return func(o *options) {
		o.sweepSchedule = expr
	}
}

// WithClock overrides the time source. Intended for tests that simulate time.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithRefreshTimeout bounds each background refresh started by GetOrFetch.
// Default: 30 seconds.
func WithRefreshTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.refreshTimeout = d
		}
	}
}

// WithParallelMGet makes MGet look identifiers up concurrently with at most
// limit goroutines. Zero or one keeps lookups sequential.
func WithParallelMGet(limit int) Option {
	return func(o *options) {
		o.mgetLimit = limit
	}
}

// WithFetchCoalescing collapses concurrent GetOrFetch misses on the same key
// into a single fetch call.
// Default: disabled, each missing caller runs its own fetch.
func WithFetchCoalescing() Option {
	return func(o *options) {
		o.coalesce = true
	}
}

// WithEvictCallback sets a function called for every entry removed from the
// cache other than by overwrite. It runs after the cache lock is released.
func WithEvictCallback(fn func(key string, reason EvictReason)) Option {
	return func(o *options) {
		o.onEvict = fn
	}
}

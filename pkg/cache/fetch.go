package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// FetchFunc produces the payload for a cache miss, typically by querying a
// database or a remote service.
type FetchFunc func(ctx context.Context) (any, error)

// FetchOption configures a single GetOrFetch call.
type FetchOption func(*fetchOptions)

type fetchOptions struct {
	set               []SetOption
	backgroundRefresh bool
}

// WithBackgroundRefresh makes a cache hit also start an asynchronous fetch
// whose result replaces the entry. The caller gets the cached value at once.
func WithBackgroundRefresh() FetchOption {
	return func(o *fetchOptions) {
		o.backgroundRefresh = true
	}
}

// WithFetchTTL overrides the namespace TTL for the value stored after a fetch.
func WithFetchTTL(d time.Duration) FetchOption {
	return func(o *fetchOptions) {
		o.set = append(o.set, WithTTL(d))
	}
}

// WithFetchTags replaces the namespace tags for the value stored after a fetch.
func WithFetchTags(tags ...string) FetchOption {
	return func(o *fetchOptions) {
		o.set = append(o.set, WithTags(tags...))
	}
}

// GetOrFetch returns the cached payload for id in ns, or calls fetch on a miss
// and caches its result.
//
// Errors from fetch are returned unchanged and nothing is cached. The fetch
// runs without any cache lock held. With WithBackgroundRefresh, a hit returns
// the cached value immediately and refreshes the entry in a separate goroutine;
// refresh failures are logged and never reach the caller. A refresh result is
// dropped when the entry it started from was invalidated, deleted or
// overwritten while fetch was running.
//
// Example:
//
//	v, err := m.GetOrFetch(ctx, products, "sku-123", func(ctx context.Context) (any, error) {
//	    return repo.FindProduct(ctx, "sku-123")
//	}, cache.WithBackgroundRefresh())
func (m *Manager) GetOrFetch(ctx context.Context, ns Namespace, id string, fetch FetchFunc, opts ...FetchOption) (any, error) {
	if err := ns.Validate(); err != nil {
		return nil, err
	}

	fo := &fetchOptions{}
	for _, opt := range opts {
		opt(fo)
	}

	e, err := m.lookup(ns, id)
	if err == nil {
		if fo.backgroundRefresh {
			m.refresh(ctx, ns, id, e, fetch, fo)
		}
		return e.payload, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	if !m.opts.coalesce {
		return m.fetchAndStore(ctx, ns, id, fetch, fo)
	}

	// Only one caller per key runs fetch; the others share its result.
	v, err, _ := m.sf.Do("fetch:"+ns.Key(id), func() (any, error) {
		return m.fetchAndStore(ctx, ns, id, fetch, fo)
	})
	return v, err
}

// fetchAndStore runs fetch and caches a successful result on a best-effort basis.
func (m *Manager) fetchAndStore(ctx context.Context, ns Namespace, id string, fetch FetchFunc, fo *fetchOptions) (any, error) {
	v, err := fetch(ctx)
	if err != nil {
		return nil, err
	}

	if err := m.Set(ctx, ns, id, v, fo.set...); err != nil {
		m.opts.logger.WarnContext(ctx, "failed to cache fetched value",
			slog.String("key", ns.Key(id)),
			slog.Any("error", err),
		)
	}

	return v, nil
}

// refresh runs fetch in its own goroutine and replaces prev with the result.
// The goroutine is detached from the caller's cancellation and bounded by the
// refresh timeout. Concurrent refreshes of one key share a single fetch.
func (m *Manager) refresh(ctx context.Context, ns Namespace, id string, prev *entry, fetch FetchFunc, fo *fetchOptions) {
	key := ns.Key(id)
	ctx = context.WithoutCancel(ctx)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				m.count(&m.stats.refreshFailures, 1)
				m.opts.logger.ErrorContext(ctx, "cache refresh panicked",
					slog.String("key", key),
					slog.Any("panic", r),
				)
			}
		}()

		_, _, _ = m.sf.Do("refresh:"+key, func() (any, error) {
			rctx, cancel := context.WithTimeout(ctx, m.opts.refreshTimeout)
			defer cancel()

			applied, err := m.refreshEntry(rctx, ns, id, prev, fetch, fo)
			switch {
			case err != nil:
				m.count(&m.stats.refreshFailures, 1)
				m.opts.logger.WarnContext(rctx, "cache refresh failed",
					slog.String("key", key),
					slog.Any("error", err),
				)
			case !applied:
				m.opts.logger.DebugContext(rctx, "cache refresh discarded, entry changed",
					slog.String("key", key),
				)
			}
			return nil, nil
		})
	}()
}

// refreshEntry fetches a new payload and swaps it in for prev.
func (m *Manager) refreshEntry(ctx context.Context, ns Namespace, id string, prev *entry, fetch FetchFunc, fo *fetchOptions) (bool, error) {
	v, err := fetch(ctx)
	if err != nil {
		return false, err
	}

	e, err := m.newEntry(ns, id, v, fo.set)
	if err != nil {
		return false, err
	}

	return m.replace(ns.Key(id), prev, e)
}

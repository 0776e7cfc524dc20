// Package cache provides the application-level cache: an in-process key/value
// store with per-entry TTL, tag-based invalidation, hit/miss accounting and
// optional stale-while-revalidate refresh.
//
// # Namespaces
//
// Callers never invent keys or TTLs ad hoc. A [Namespace] bundles a key prefix,
// a default TTL, an optional freshness window and default tags; the composite
// key is "prefix:id". [DefaultCatalog] ships the storefront namespaces, and
// [Catalog.LoadCatalog] merges YAML definitions over them at startup:
//
//	catalog := cache.DefaultCatalog()
//	products := catalog.MustLookup(cache.NamespaceProducts)
//
// # Manager
//
// [New] creates a [Manager] and starts its periodic sweep (every 5 minutes by
// default, scheduled with robfig/cron). [Manager.Close] stops the sweep and
// drops all entries:
//
//	m, err := cache.New(cache.WithLogger(log))
//	if err != nil {
//	    return err
//	}
//	defer m.Close()
//
//	_ = m.Set(ctx, products, "sku-123", product)
//	v, err := m.Get(ctx, products, "sku-123")
//
// Expired entries are never returned: Get removes them on access, and the
// sweep reclaims the ones nobody reads. A namespace with a FreshnessWindow
// shorter than its TTL stops serving entries once the window has passed.
//
// # Get or fetch
//
// [Manager.GetOrFetch] is the usual call shape. On a miss it runs the fetch
// function, caches the result and returns it; fetch errors are returned as is
// and nothing is cached. With [WithBackgroundRefresh] a hit also starts an
// asynchronous fetch that replaces the entry:
//
//	v, err := m.GetOrFetch(ctx, products, id, func(ctx context.Context) (any, error) {
//	    return repo.FindProduct(ctx, id)
//	}, cache.WithBackgroundRefresh())
//
// Concurrent misses on one key each run their own fetch unless the manager is
// created with [WithFetchCoalescing].
//
// # Tags
//
// Entries carry the namespace tags, or the tags given with [WithTags].
// [Manager.InvalidateByTag] removes every entry with a tag in one call:
//
//	m.InvalidateByTag(ctx, "catalog")
//
// # Typed access
//
// [Bucket] binds a namespace to a Go type. With a [Marshaler] values are kept
// as encoded bytes, and encoding failures are reported as [ErrWrite]:
//
//	b := cache.NewBucket[Product](m, products, cache.WithMarshaler[Product](cache.JSONMarshaler[Product]{}))
//	p, err := b.Get(ctx, "sku-123")
//
// # Observability
//
// [Manager.Stats] returns counters and the hit rate. [NewCollector] exports
// them to Prometheus and [Healthcheck] plugs the manager into readiness probes.
//
// # Error Handling
//
// The package defines sentinel errors:
//
//   - [ErrNotFound] — key does not exist or has expired
//   - [ErrClosed] — operation on a closed manager
//   - [ErrWrite] — payload could not be stored
//   - [ErrMarshal] — value serialization failed
//   - [ErrUnmarshal] — value deserialization failed
//   - [ErrTypeMismatch] — stored payload is not of the bucket's type
//   - [ErrInvalidNamespace] — namespace without prefix or TTL
//
// Use [errors.Is] to check:
//
//	v, err := m.Get(ctx, products, "sku-123")
//	if errors.Is(err, cache.ErrNotFound) {
//	    // handle miss
//	}
package cache

// Package middlewares provides net/http middleware for the storefront API.
// All middleware has the func(http.Handler) http.Handler shape used by chi.
//
// # Request ID
//
// [RequestID] assigns an ID to each request, reusing X-Request-ID or
// X-Correlation-ID from upstream proxies, and echoes it in the response.
// Pair it with [RequestIDExtractor] so every log line carries the ID:
//
//	log, cleanup, err := logger.New(cfg.Log, middlewares.RequestIDExtractor())
//	r.Use(middlewares.RequestID())
//
// # Recover
//
// [Recover] converts handler panics into a JSON 500 response and logs the
// panic value with its stack trace.
//
//	r.Use(middlewares.Recover(log))
//
// # Response cache
//
// [ResponseCache] stores successful GET responses in a cache namespace and
// replays them on later requests with the same method and URI. Responses carry
// an X-Cache header of HIT or MISS. Because entries inherit the namespace tags,
// invalidating a tag also drops the cached responses:
//
//	search := catalog.MustLookup(cache.NamespaceSearchResults)
//	r.With(middlewares.ResponseCache(m, search)).Get("/search", h.Search)
//
//	m.InvalidateByTag(ctx, "catalog") // next /search request is a MISS
package middlewares

// Package server exposes the storefront catalog and the cache administration
// endpoints over HTTP.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrymomot/appcache/internal/storefront"
	"github.com/dmitrymomot/appcache/middlewares"
	"github.com/dmitrymomot/appcache/pkg/cache"
	"github.com/dmitrymomot/appcache/pkg/health"
)

// Server holds the HTTP handlers and their dependencies.
type Server struct {
	cache    *cache.Manager
	catalog  *cache.Catalog
	repo     *storefront.Repository
	log      *slog.Logger
	products *cache.Bucket[storefront.Product]
	registry *prometheus.Registry
	search   cache.Namespace
	metrics  string
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger. Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithRegistry sets the Prometheus registry served on /metrics.
// Default: a new registry with Go runtime and process collectors.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		if reg != nil {
			s.registry = reg
		}
	}
}

// WithMetricsNamespace sets the prefix of the cache metrics. Default: "appcache".
func WithMetricsNamespace(ns string) Option {
	return func(s *Server) {
		s.metrics = ns
	}
}

// New wires the handlers. Products are cached in the product-details namespace
// as JSON, search pages in search-results.
func New(m *cache.Manager, catalog *cache.Catalog, repo *storefront.Repository, opts ...Option) *Server {
	products := cache.NewBucket[storefront.Product](m,
		catalog.MustLookup(cache.NamespaceProductDetails),
		cache.WithMarshaler[storefront.Product](cache.JSONMarshaler[storefront.Product]{}),
	)

	s := &Server{
		cache:    m,
		catalog:  catalog,
		repo:     repo,
		log:      slog.New(slog.DiscardHandler),
		products: products,
		search:   catalog.MustLookup(cache.NamespaceSearchResults),
		metrics:  "appcache",
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
		s.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	s.registry.MustRegister(cache.NewCollector(m, s.metrics))

	return s
}

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RealIP,
		middlewares.RequestID(),
		s.logRequests,
		middlewares.Recover(s.log),
	)

	r.Get("/health/live", health.LivenessHandler())
	r.Get("/health/ready", health.ReadinessHandler(health.Checks{
		"cache": cache.Healthcheck(s.cache),
	}, health.WithTimeout(3*time.Second), health.WithLogger(s.log)))
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Route("/products", func(r chi.Router) {
		r.Get("/", s.listProducts)
		r.Get("/{id}", s.getProduct)
		r.Put("/{id}", s.updateProduct)
	})
	r.With(middlewares.ResponseCache(s.cache, s.search)).Get("/search", s.searchProducts)

	r.Route("/admin/cache", func(r chi.Router) {
		r.Get("/stats", s.cacheStats)
		r.Get("/namespaces", s.cacheNamespaces)
		r.Delete("/tags/{tag}", s.invalidateTag)
		r.Delete("/", s.clearCache)
	})

	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.DebugContext(r.Context(), "request served",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.String("cache", ww.Header().Get(middlewares.CacheStatusHeader)),
			slog.Duration("duration", time.Since(start)),
		)
	})
}

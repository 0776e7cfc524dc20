package middlewares

import (
	"bytes"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrymomot/appcache/pkg/cache"
)

// CacheStatusHeader reports whether a response was served from the cache.
const CacheStatusHeader = "X-Cache"

// CachedResponse is a stored HTTP response.
type CachedResponse struct {
	Header http.Header `json:"header"`
	Body   []byte      `json:"body"`
	Status int         `json:"status"`
}

type responseCacheConfig struct {
	key func(r *http.Request) string
	set []cache.SetOption
}

// ResponseCacheOption configures the ResponseCache middleware.
type ResponseCacheOption func(*responseCacheConfig)

// WithCacheKey overrides how the cache key is derived from a request.
// Default: method and request URI, e.g. "GET /search?q=lamp".
func WithCacheKey(fn func(r *http.Request) string) ResponseCacheOption {
	return func(cfg *responseCacheConfig) {
		if fn != nil {
			cfg.key = fn
		}
	}
}

// WithResponseTTL overrides the namespace TTL for cached responses.
func WithResponseTTL(d time.Duration) ResponseCacheOption {
	return func(cfg *responseCacheConfig) {
		cfg.set = append(cfg.set, cache.WithTTL(d))
	}
}

// WithResponseTags replaces the namespace tags for cached responses.
func WithResponseTags(tags ...string) ResponseCacheOption {
	return func(cfg *responseCacheConfig) {
		cfg.set = append(cfg.set, cache.WithTags(tags...))
	}
}

// ResponseCache serves GET and HEAD requests from the cache namespace ns.
//
// A hit is written without calling next and carries "X-Cache: HIT". A miss
// calls next, marks the response "X-Cache: MISS" and stores it when the status
// is 200 and the response sets no cookie and does not forbid storing. A request
// with "Cache-Control: no-cache" skips the lookup and refreshes the stored copy.
//
// Example:
//
//	r.With(middlewares.ResponseCache(m, catalog.MustLookup(cache.NamespaceSearchResults))).
//	    Get("/search", searchHandler)
func ResponseCache(m *cache.Manager, ns cache.Namespace, opts ...ResponseCacheOption) func(http.Handler) http.Handler {
	cfg := &responseCacheConfig{key: defaultCacheKey}
	for _, opt := range opts {
		opt(cfg)
	}

	responses := cache.NewBucket[CachedResponse](m, ns)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet && r.Method != http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}

			key := cfg.key(r)
			if !hasDirective(r.Header.Get("Cache-Control"), "no-cache") {
				if resp, err := responses.Get(r.Context(), key); err == nil {
					writeCached(w, r, resp)
					return
				}
			}

			w.Header().Set(CacheStatusHeader, "MISS")
			rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			if !cacheable(rec) {
				return
			}

			header := w.Header().Clone()
			header.Del(CacheStatusHeader)
			header.Del("X-Request-ID")
			_ = responses.Set(r.Context(), key, CachedResponse{
				Status: rec.status,
				Header: header,
				Body:   rec.body.Bytes(),
			}, cfg.set...)
		})
	}
}

func defaultCacheKey(r *http.Request) string {
	return r.Method + " " + r.URL.RequestURI()
}

func writeCached(w http.ResponseWriter, r *http.Request, resp CachedResponse) {
	h := w.Header()
	for k, v := range resp.Header {
		h[k] = append([]string(nil), v...)
	}
	h.Set(CacheStatusHeader, "HIT")
	w.WriteHeader(resp.Status)
	if r.Method != http.MethodHead {
		_, _ = w.Write(resp.Body)
	}
}

func cacheable(rec *responseRecorder) bool {
	if rec.status != http.StatusOK {
		return false
	}
	h := rec.Header()
	if h.Get("Set-Cookie") != "" {
		return false
	}
	cc := h.Get("Cache-Control")
	return !hasDirective(cc, "no-store") && !hasDirective(cc, "private")
}

func hasDirective(header, directive string) bool {
	for part := range strings.SplitSeq(header, ",") {
		name, _, _ := strings.Cut(strings.TrimSpace(part), "=")
		if strings.EqualFold(name, directive) {
			return true
		}
	}
	return false
}

// responseRecorder passes the response through while keeping a copy of the
// status and body.
type responseRecorder struct {
	http.ResponseWriter
	body        bytes.Buffer
	status      int
	wroteHeader bool
}

func (r *responseRecorder) WriteHeader(status int) {
	if r.wroteHeader {
		return
	}
	r.wroteHeader = true
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(p []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	r.body.Write(p)
	return r.ResponseWriter.Write(p)
}

func (r *responseRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

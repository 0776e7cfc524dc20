package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/appcache/internal/storefront"
	"github.com/dmitrymomot/appcache/pkg/cache"
)

// Tags dropped when a product changes.
var productChangeTags = []string{"products", "search"}

type productItem struct {
	Product *storefront.Product `json:"product,omitempty"`
	ID      string              `json:"id"`
	Error   string              `json:"error,omitempty"`
	Cached  bool                `json:"cached"`
}

type namespaceView struct {
	Name            string   `json:"name"`
	Prefix          string   `json:"prefix"`
	TTL             string   `json:"ttl"`
	FreshnessWindow string   `json:"freshness_window,omitempty"`
	Tags            []string `json:"tags"`
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	p, err := s.products.GetOrFetch(r.Context(), id, s.fetchProduct(id), cache.WithBackgroundRefresh())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// listProducts answers GET /products?ids=a,b,c. Cached products come from one
// MGet; the rest are loaded and cached individually.
func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	ids := splitIDs(r.URL.Query().Get("ids"))
	if len(ids) == 0 {
		writeError(w, http.StatusBadRequest, "ids query parameter is required")
		return
	}

	items, err := s.products.MGet(r.Context(), ids)
	if err != nil {
		s.log.WarnContext(r.Context(), "cached products could not be decoded", slog.Any("error", err))
	}

	out := make([]productItem, len(items))
	for i, item := range items {
		out[i].ID = item.ID
		if item.Found {
			out[i].Product = &item.Value
			out[i].Cached = true
			continue
		}

		p, err := s.products.GetOrFetch(r.Context(), item.ID, s.fetchProduct(item.ID))
		if err != nil {
			out[i].Error = err.Error()
			continue
		}
		out[i].Product = &p
	}

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) updateProduct(w http.ResponseWriter, r *http.Request) {
	var p storefront.Product
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	p.ID = chi.URLParam(r, "id")

	updated, err := s.repo.Update(r.Context(), p)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	invalidated := 0
	for _, tag := range productChangeTags {
		invalidated += s.cache.InvalidateByTag(r.Context(), tag)
	}
	s.log.InfoContext(r.Context(), "product updated",
		slog.String("id", updated.ID),
		slog.Int("invalidated", invalidated),
	)

	writeJSON(w, http.StatusOK, map[string]any{
		"product":     updated,
		"invalidated": invalidated,
	})
}

func (s *Server) searchProducts(w http.ResponseWriter, r *http.Request) {
	results, err := s.repo.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) cacheStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.cache.Stats())
}

func (s *Server) cacheNamespaces(w http.ResponseWriter, _ *http.Request) {
	names := s.catalog.Names()
	out := make([]namespaceView, 0, len(names))
	for _, name := range names {
		ns, _ := s.catalog.Lookup(name)
		v := namespaceView{Name: ns.Name, Prefix: ns.Prefix, TTL: ns.TTL.String(), Tags: ns.Tags}
		if ns.FreshnessWindow > 0 {
			v.FreshnessWindow = ns.FreshnessWindow.String()
		}
		out = append(out, v)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) invalidateTag(w http.ResponseWriter, r *http.Request) {
	tag := chi.URLParam(r, "tag")
	n := s.cache.InvalidateByTag(r.Context(), tag)
	writeJSON(w, http.StatusOK, map[string]any{"tag": tag, "invalidated": n})
}

func (s *Server) clearCache(w http.ResponseWriter, r *http.Request) {
	if err := s.cache.Clear(r.Context()); err != nil {
		s.fail(w, r, err)
		return
	}
	s.log.InfoContext(r.Context(), "cache cleared")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) fetchProduct(id string) func(ctx context.Context) (storefront.Product, error) {
	return func(ctx context.Context) (storefront.Product, error) {
		return s.repo.Find(ctx, id)
	}
}

// fail maps domain and cache errors to HTTP statuses.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, storefront.ErrProductNotFound):
		writeError(w, http.StatusNotFound, "product not found")
	case errors.Is(err, storefront.ErrInvalidProduct):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, cache.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, "cache unavailable")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "request timed out")
	default:
		s.log.ErrorContext(r.Context(), "request failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	}
}

func splitIDs(raw string) []string {
	var ids []string
	for id := range strings.SplitSeq(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

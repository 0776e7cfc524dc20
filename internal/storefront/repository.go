// Package storefront is the in-memory product store behind the demo server.
// Every read pays a configurable latency so cache hits and misses are visible.
package storefront

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrProductNotFound is returned when no product has the requested ID.
	ErrProductNotFound = errors.New("storefront: product not found")

	// ErrInvalidProduct is returned by Update for a product without an ID or name.
	ErrInvalidProduct = errors.New("storefront: invalid product")
)

// Product is a catalog item.
type Product struct {
	UpdatedAt  time.Time `json:"updated_at"`
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Category   string    `json:"category"`
	PriceCents int64     `json:"price_cents"`
	Stock      int       `json:"stock"`
}

// Repository stores products in memory.
type Repository struct {
	products map[string]Product
	now      func() time.Time
	latency  time.Duration
	queries  atomic.Int64
	mu       sync.RWMutex
}

// NewRepository creates a repository holding products. Reads wait for latency
// or until their context is done.
func NewRepository(latency time.Duration, products ...Product) *Repository {
	r := &Repository{
		products: make(map[string]Product, len(products)),
		now:      time.Now,
		latency:  latency,
	}
	for _, p := range products {
		r.products[p.ID] = p
	}
	return r
}

// SeedProducts returns the demo catalog.
func SeedProducts() []Product {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return []Product{
		{ID: "sku-100", Name: "Oak Desk", Category: "furniture", PriceCents: 34900, Stock: 12, UpdatedAt: ts},
		{ID: "sku-101", Name: "Walnut Desk", Category: "furniture", PriceCents: 45900, Stock: 4, UpdatedAt: ts},
		{ID: "sku-102", Name: "Desk Lamp", Category: "lighting", PriceCents: 3900, Stock: 58, UpdatedAt: ts},
		{ID: "sku-103", Name: "Floor Lamp", Category: "lighting", PriceCents: 8900, Stock: 21, UpdatedAt: ts},
		{ID: "sku-104", Name: "Office Chair", Category: "furniture", PriceCents: 19900, Stock: 9, UpdatedAt: ts},
		{ID: "sku-105", Name: "Monitor Arm", Category: "accessories", PriceCents: 7900, Stock: 33, UpdatedAt: ts},
		{ID: "sku-106", Name: "Cable Tray", Category: "accessories", PriceCents: 2400, Stock: 75, UpdatedAt: ts},
		{ID: "sku-107", Name: "Bookshelf", Category: "furniture", PriceCents: 12900, Stock: 6, UpdatedAt: ts},
	}
}

// Find returns the product with id.
func (r *Repository) Find(ctx context.Context, id string) (Product, error) {
	if err := r.wait(ctx); err != nil {
		return Product{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.products[id]
	if !ok {
		return Product{}, ErrProductNotFound
	}
	return p, nil
}

// Search returns products whose name or category contains query, ignoring
// case, ordered by ID. An empty query matches everything.
func (r *Repository) Search(ctx context.Context, query string) ([]Product, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}

	q := strings.ToLower(strings.TrimSpace(query))

	r.mu.RLock()
	out := make([]Product, 0, len(r.products))
	for _, p := range r.products {
		if q == "" || strings.Contains(strings.ToLower(p.Name), q) || strings.Contains(p.Category, q) {
			out = append(out, p)
		}
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b Product) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

// Update replaces an existing product and stamps its update time.
func (r *Repository) Update(_ context.Context, p Product) (Product, error) {
	if p.ID == "" || p.Name == "" {
		return Product{}, ErrInvalidProduct
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.products[p.ID]; !ok {
		return Product{}, ErrProductNotFound
	}
	p.UpdatedAt = r.now()
	r.products[p.ID] = p
	return p, nil
}

// Queries reports how many reads reached the repository.
func (r *Repository) Queries() int64 {
	return r.queries.Load()
}

func (r *Repository) wait(ctx context.Context) error {
	r.queries.Add(1)
	if r.latency <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(r.latency)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

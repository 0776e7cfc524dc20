package cache

import (
	"context"
	"errors"
	"fmt"
)

// Bucket is a typed view of one namespace in a Manager.
// Without a marshaler values are stored as V; with one they are stored as
// encoded bytes and decoded on every read.
type Bucket[V any] struct {
	m         *Manager
	marshaler Marshaler[V]
	ns        Namespace
}

// BucketOption configures a Bucket.
type BucketOption[V any] func(*Bucket[V])

// WithMarshaler stores bucket values as bytes produced by mm.
func WithMarshaler[V any](mm Marshaler[V]) BucketOption[V] {
	return func(b *Bucket[V]) {
		b.marshaler = mm
	}
}

// Item is the typed outcome of one lookup in Bucket.MGet.
type Item[V any] struct {
	Value V
	ID    string
	Found bool
}

// NewBucket binds a manager and a namespace to the value type V.
//
// Example:
//
//	products := cache.NewBucket[Product](m, catalog.MustLookup(cache.NamespaceProducts),
//	    cache.WithMarshaler[Product](cache.JSONMarshaler[Product]{}),
//	)
//	p, err := products.GetOrFetch(ctx, "sku-123", repo.FindProduct)
func NewBucket[V any](m *Manager, ns Namespace, opts ...BucketOption[V]) *Bucket[V] {
	b := &Bucket[V]{m: m, ns: ns}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Namespace returns the namespace the bucket writes to.
func (b *Bucket[V]) Namespace() Namespace {
	return b.ns
}

// Set stores v under id. Returns ErrWrite if v cannot be encoded; the cache is
// left unchanged in that case.
func (b *Bucket[V]) Set(ctx context.Context, id string, v V, opts ...SetOption) error {
	payload, err := b.encode(v)
	if err != nil {
		return err
	}
	return b.m.Set(ctx, b.ns, id, payload, opts...)
}

// Get returns the value stored under id, or ErrNotFound.
func (b *Bucket[V]) Get(ctx context.Context, id string) (V, error) {
	p, err := b.m.Get(ctx, b.ns, id)
	if err != nil {
		var zero V
		return zero, err
	}
	return b.decode(p)
}

// GetOrFetch is the typed form of Manager.GetOrFetch.
func (b *Bucket[V]) GetOrFetch(ctx context.Context, id string, fetch func(ctx context.Context) (V, error), opts ...FetchOption) (V, error) {
	p, err := b.m.GetOrFetch(ctx, b.ns, id, func(ctx context.Context) (any, error) {
		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		return b.encode(v)
	}, opts...)
	if err != nil {
		var zero V
		return zero, err
	}
	return b.decode(p)
}

// MGet looks up every id in input order. Values that cannot be decoded are
// reported as not found and their errors are joined into the returned error.
func (b *Bucket[V]) MGet(ctx context.Context, ids []string) ([]Item[V], error) {
	results := b.m.MGet(ctx, b.ns, ids)
	items := make([]Item[V], len(results))

	var errs []error
	for i, r := range results {
		items[i].ID = r.ID
		if !r.Found {
			continue
		}
		v, err := b.decode(r.Value)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.ID, err))
			continue
		}
		items[i].Value = v
		items[i].Found = true
	}

	return items, errors.Join(errs...)
}

// Delete removes the value stored under id.
func (b *Bucket[V]) Delete(ctx context.Context, id string) bool {
	return b.m.Delete(ctx, b.ns, id)
}

func (b *Bucket[V]) encode(v V) (any, error) {
	if b.marshaler == nil {
		return v, nil
	}
	data, err := b.marshaler.Marshal(v)
	if err != nil {
		return nil, errors.Join(ErrWrite, err)
	}
	return data, nil
}

func (b *Bucket[V]) decode(p any) (V, error) {
	var zero V

	if b.marshaler != nil {
		data, ok := p.([]byte)
		if !ok {
			return zero, fmt.Errorf("%w: want []byte, got %T", ErrTypeMismatch, p)
		}
		return b.marshaler.Unmarshal(data)
	}

	if p == nil {
		return zero, nil
	}
	v, ok := p.(V)
	if !ok {
		return zero, fmt.Errorf("%w: want %T, got %T", ErrTypeMismatch, zero, p)
	}
	return v, nil
}

package cache

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Namespace names shipped with DefaultCatalog.
const (
	NamespaceProducts           = "products"
	NamespaceProductDetails     = "product-details"
	NamespacePerformanceMetrics = "performance-metrics"
	NamespaceUserData           = "user-data"
	NamespaceCart               = "cart"
	NamespaceSearchResults      = "search-results"
	NamespaceBuilds             = "builds"
	NamespaceAPIResponses       = "api-responses"
)

// Catalog is a table of namespaces addressed by name.
// Namespaces are registered at startup and read afterwards.
type Catalog struct {
	namespaces map[string]Namespace
	mu         sync.RWMutex
}

// NewCatalog creates a catalog holding the given namespaces.
func NewCatalog(namespaces ...Namespace) (*Catalog, error) {
	c := &Catalog{namespaces: make(map[string]Namespace, len(namespaces))}
	for _, ns := range namespaces {
		if err := c.Register(ns); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// DefaultCatalog returns the namespaces used by the storefront.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(
		Namespace{Name: NamespaceProducts, Prefix: "products", TTL: 15 * time.Minute, Tags: []string{"products", "catalog"}},
		Namespace{Name: NamespaceProductDetails, Prefix: "product-details", TTL: 30 * time.Minute, Tags: []string{"products", "catalog"}},
		Namespace{Name: NamespacePerformanceMetrics, Prefix: "perf", TTL: 5 * time.Minute, FreshnessWindow: time.Minute, Tags: []string{"metrics"}},
		Namespace{Name: NamespaceUserData, Prefix: "user", TTL: 10 * time.Minute, Tags: []string{"users"}},
		Namespace{Name: NamespaceCart, Prefix: "cart", TTL: 5 * time.Minute, Tags: []string{"cart"}},
		Namespace{Name: NamespaceSearchResults, Prefix: "search", TTL: 10 * time.Minute, Tags: []string{"search", "catalog"}},
		Namespace{Name: NamespaceBuilds, Prefix: "builds", TTL: time.Hour, Tags: []string{"builds"}},
		Namespace{Name: NamespaceAPIResponses, Prefix: "api", TTL: 5 * time.Minute, Tags: []string{"api"}},
	)
	if err != nil {
		panic(err)
	}
	return c
}

// Register validates ns and adds it to the catalog, replacing any namespace with the same name.
func (c *Catalog) Register(ns Namespace) error {
	if ns.Name == "" {
		return errors.Join(ErrInvalidNamespace, errors.New("namespace name is required"))
	}
	if err := ns.Validate(); err != nil {
		return err
	}

	ns.Tags = normalizeTags(ns.Tags)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.namespaces[ns.Name] = ns
	return nil
}

// Lookup returns the namespace registered under name.
func (c *Catalog) Lookup(name string) (Namespace, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ns, ok := c.namespaces[name]
	return ns, ok
}

// MustLookup returns the namespace registered under name or panics.
// Use during startup wiring where a missing namespace is a programming error.
func (c *Catalog) MustLookup(name string) Namespace {
	ns, ok := c.Lookup(name)
	if !ok {
		panic(fmt.Errorf("%w: %s", ErrUnknownNamespace, name))
	}
	return ns
}

// Names returns the registered namespace names in sorted order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Sorted(maps.Keys(c.namespaces))
}

type catalogFile struct {
	Namespaces []Namespace `yaml:"namespaces"`
}

// LoadCatalog reads YAML namespace definitions and registers them into c,
// overriding namespaces with the same name. Durations use Go syntax ("15m").
//
// Example file:
//
//	namespaces:
//	  - name: products
//	    prefix: products
//	    ttl: 15m
//	    tags: [products, catalog]
//	  - name: performance-metrics
//	    prefix: perf
//	    ttl: 5m
//	    freshness_window: 1m
func (c *Catalog) LoadCatalog(r io.Reader) error {
	var f catalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("cache: decode catalog: %w", err)
	}

	for _, ns := range f.Namespaces {
		if err := c.Register(ns); err != nil {
			return err
		}
	}
	return nil
}

package cache

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// Namespace is a named bundle of key prefix, default TTL and default tags.
// Callers pick a namespace instead of passing raw TTLs on every call.
type Namespace struct {
	Name   string        `yaml:"name"`
	Prefix string        `yaml:"prefix"`
	TTL    time.Duration `yaml:"ttl"`

	// FreshnessWindow limits how long an entry may be served even when its TTL
	// has not elapsed yet. Zero means the TTL alone decides.
	FreshnessWindow time.Duration `yaml:"freshness_window"`

	Tags []string `yaml:"tags"`
}

// Key returns the composite store key for id.
func (ns Namespace) Key(id string) string {
	return ns.Prefix + ":" + id
}

// Validate checks the namespace can be used to store entries.
func (ns Namespace) Validate() error {
	switch {
	case ns.Prefix == "":
		return errors.Join(ErrInvalidNamespace, fmt.Errorf("namespace %q: empty prefix", ns.Name))
	case ns.TTL <= 0:
		return errors.Join(ErrInvalidNamespace, fmt.Errorf("namespace %q: ttl must be positive", ns.Name))
	case ns.FreshnessWindow < 0:
		return errors.Join(ErrInvalidNamespace, fmt.Errorf("namespace %q: negative freshness window", ns.Name))
	}
	return nil
}

// normalizeTags drops empty and duplicate tags, preserving first-seen order.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t == "" || slices.Contains(out, t) {
			continue
		}
		out = append(out, t)
	}
	return out
}

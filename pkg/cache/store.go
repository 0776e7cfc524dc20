package cache

import (
	"maps"
	"slices"
)

// store is the key/value map together with the tag index that points into it.
// Both structures are mutated only through put and remove so the index never
// references a key that is absent or no longer carries the tag.
// Callers must hold the manager's write lock for mutations and at least the
// read lock for lookups.
type store struct {
	items  map[string]*entry
	tags   map[string]map[string]struct{}
	memory int64
}

func newStore() *store {
	return &store{
		items: make(map[string]*entry),
		tags:  make(map[string]map[string]struct{}),
	}
}

// get returns the entry stored under key.
func (s *store) get(key string) (*entry, bool) {
	e, ok := s.items[key]
	return e, ok
}

// put inserts or replaces the entry under key. A replaced entry is detached
// from all of its tags before the new entry is attached to its own.
func (s *store) put(key string, e *entry) (replaced *entry) {
	if old, ok := s.items[key]; ok {
		s.detach(key, old)
		replaced = old
	}

	s.items[key] = e
	s.memory += e.size
	for _, tag := range e.tags {
		keys, ok := s.tags[tag]
		if !ok {
			keys = make(map[string]struct{})
			s.tags[tag] = keys
		}
		keys[key] = struct{}{}
	}

	return replaced
}

// remove deletes key from the store and from every tag set that holds it.
func (s *store) remove(key string) (*entry, bool) {
	e, ok := s.items[key]
	if !ok {
		return nil, false
	}
	s.detach(key, e)
	return e, true
}

// detach drops key from the item map and the tag index. Empty tag sets are deleted.
func (s *store) detach(key string, e *entry) {
	delete(s.items, key)
	if e == nil {
		return
	}

	s.memory -= e.size
	for _, tag := range e.tags {
		keys, ok := s.tags[tag]
		if !ok {
			continue
		}
		delete(keys, key)
		if len(keys) == 0 {
			delete(s.tags, tag)
		}
	}
}

// keysForTag returns a snapshot of the keys currently carrying tag.
func (s *store) keysForTag(tag string) []string {
	keys, ok := s.tags[tag]
	if !ok {
		return nil
	}
	return slices.Collect(maps.Keys(keys))
}

// tagNames returns the indexed tags in sorted order.
func (s *store) tagNames() []string {
	return slices.Sorted(maps.Keys(s.tags))
}

func (s *store) len() int {
	return len(s.items)
}

// reset drops every entry and tag.
func (s *store) reset() {
	clear(s.items)
	clear(s.tags)
	s.memory = 0
}

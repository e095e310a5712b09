// Package audiocache keeps at most one synthesized audio resource per
// segment and releases resources as soon as they are replaced or dropped.
package audiocache

import (
	"errors"
	"sync"
)

// Resource is anything holding an external allocation that must be released.
type Resource interface {
	Release() error
}

// Cache maps segment ids to resources. It is safe for concurrent use.
type Cache[R Resource] struct {
	mu      sync.Mutex
	entries map[string]R
}

// New returns an empty cache.
func New[R Resource]() *Cache[R] {
	return &Cache[R]{entries: make(map[string]R)}
}

// Get returns the resource cached for id.
func (c *Cache[R]) Get(id string) (R, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	resource, ok := c.entries[id]

	return resource, ok
}

// Set caches resource for id, releasing the resource it replaces.
func (c *Cache[R]) Set(id string, resource R) error {
	c.mu.Lock()
	previous, ok := c.entries[id]
	c.entries[id] = resource
	c.mu.Unlock()

	if ok && Resource(previous) != Resource(resource) {
		return previous.Release()
	}

	return nil
}

// Invalidate drops and releases the resource cached for id, if any.
func (c *Cache[R]) Invalidate(id string) error {
	c.mu.Lock()
	resource, ok := c.entries[id]
	delete(c.entries, id)
	c.mu.Unlock()

	if !ok {
		return nil
	}

	return resource.Release()
}

// InvalidateAll drops and releases every resource.
func (c *Cache[R]) InvalidateAll() error {
	c.mu.Lock()
	entries := c.entries
	c.entries = make(map[string]R)
	c.mu.Unlock()

	var errs []error

	for _, resource := range entries {
		err := resource.Release()
		if err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// IDs returns the ids that currently hold a resource.
func (c *Cache[R]) IDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]string, 0, len(c.entries))
	for id := range c.entries {
		ids = append(ids, id)
	}

	return ids
}

// Len returns the number of cached resources.
func (c *Cache[R]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

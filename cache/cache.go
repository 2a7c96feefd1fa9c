// Package cache provides a fixed-capacity map with least-recently-used
// eviction and eviction-triggered disposal of evicted values. It backs the
// driver's prepared-statement cache, but holds no statement-specific
// knowledge of its own.
package cache

import (
	"reflect"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
)

// Disposer is invoked with a value as it leaves the Cache, whether by
// capacity eviction, replacement, explicit removal, or Clear. It runs
// under the Cache lock: implementations must be fast and must not
// re-enter the Cache.
type Disposer func(key, value interface{})

// Cache is a fixed-capacity LRU map. All operations serialize under one
// internal lock scoped to pointer bookkeeping plus disposal of the
// departing value.
type Cache struct {
	lru      *lru.Cache
	capacity int
}

// New returns a Cache of the given capacity, which must be positive.
// dispose may be nil if values require no cleanup.
func New(capacity int, dispose Disposer) (*Cache, error) {
	if capacity < 1 {
		return nil, errors.Errorf("capacity must be positive (got %d)", capacity)
	}
	var onEvict func(key, value interface{})
	if dispose != nil {
		onEvict = func(key, value interface{}) { dispose(key, value) }
	}
	var l, err = lru.NewWithEvict(capacity, onEvict)
	if err != nil {
		// NewWithEvict only errors on a non-positive size, checked above.
		return nil, err
	}
	return &Cache{lru: l, capacity: capacity}, nil
}

// Capacity returns the configured capacity.
func (c *Cache) Capacity() int { return c.capacity }

// Len returns the current number of entries.
func (c *Cache) Len() int { return c.lru.Len() }

// Get returns the value stored under key, promoting it to
// most-recently-used.
func (c *Cache) Get(key interface{}) (interface{}, bool) {
	return c.lru.Get(key)
}

// Put inserts or replaces the value stored under key, moving it to
// most-recently-used. Inserting a new key at capacity first evicts and
// disposes the least-recently-used entry. Replacing an existing key
// disposes the prior value.
func (c *Cache) Put(key, value interface{}) {
	// The underlying LRU disposes evicted entries but not replaced ones;
	// dispose a replaced value through Remove to uphold the exactly-once
	// release contract.
	if prior, ok := c.lru.Peek(key); ok && !identical(prior, value) {
		c.lru.Remove(key)
	}
	c.lru.Add(key, value)
}

// identical reports whether a and b are the same value. Values of
// non-comparable dynamic type (slices, maps, funcs) are never identical:
// re-putting one is a replacement, disposing the prior value.
func identical(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == b
	}
	if !reflect.TypeOf(a).Comparable() || !reflect.TypeOf(b).Comparable() {
		return false
	}
	return a == b
}

// Remove drops and disposes the entry stored under key, and returns
// whether an entry was present.
func (c *Cache) Remove(key interface{}) bool {
	return c.lru.Remove(key)
}

// Clear drops and disposes every entry.
func (c *Cache) Clear() { c.lru.Purge() }

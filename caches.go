package qi

import (
	"errors"
	"fmt"
	"sync"
)

var errNotFound = errors.New("cache entry not found")

// cache memoizes the outcome of an expensive computation keyed by K,
// including failures.
type cache[K comparable, V any] struct {
	m sync.Map
}

type cacheEntry[V any] struct {
	val V
	err error
}

// Get returns the cached value for k, or the cached error. If k has
// never been stored, Get returns errNotFound.
func (c *cache[K, V]) Get(k K) (V, error) {
	ent, ok := c.m.Load(k)
	if !ok {
		var zero V
		return zero, errNotFound
	}
	if e, ok := ent.(cacheEntry[V]); ok {
		return e.val, e.err
	}
	panic(fmt.Sprintf("mystery value %v (%T) in cache", ent, ent))
}

// Set records a successful value for k.
func (c *cache[K, V]) Set(k K, v V) {
	c.m.Store(k, cacheEntry[V]{val: v})
}

// SetErr records that computing the value for k failed with err.
func (c *cache[K, V]) SetErr(k K, err error) {
	c.m.Store(k, cacheEntry[V]{err: err})
}

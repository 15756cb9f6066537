package pool

import (
	"sync"
	"time"

	"github.com/allegro/bigcache/v3"
)

// BigCache bigcache wrapper for L1 caching.
// Stores raw []byte; serialization belongs to the service layer, so the
// cache itself adds no GC pressure.
type BigCache struct {
	cache *bigcache.BigCache
}

// NewBigCache creates a bigcache instance.
// capacityMB: hard cache size in MB, expiration: entry TTL.
func NewBigCache(capacityMB int, expiration time.Duration) (*BigCache, error) {
	config := bigcache.DefaultConfig(expiration)
	config.HardMaxCacheSize = capacityMB
	config.MaxEntrySize = 512 * 1024

	cache, err := bigcache.NewBigCache(config)
	if err != nil {
		return nil, err
	}

	return &BigCache{cache: cache}, nil
}

// Get returns the stored bytes; deserialization is the caller's job.
func (c *BigCache) Get(key string) ([]byte, bool) {
	data, err := c.cache.Get(key)
	if err != nil {
		return nil, false
	}
	return data, true
}

// Set stores raw bytes under key.
func (c *BigCache) Set(key string, value []byte) error {
	return c.cache.Set(key, value)
}

// Remove deletes a key.
func (c *BigCache) Remove(key string) error {
	return c.cache.Delete(key)
}

// Flush clears the cache.
func (c *BigCache) Flush() error {
	return c.cache.Reset()
}

// Close closes the cache.
func (c *BigCache) Close() error {
	return c.cache.Close()
}

// SimpleCache map-backed typed cache for small hot sets (forums, categories).
// Unlike BigCache it holds pointers and therefore has GC cost; use only where
// the entry count stays small.
type SimpleCache[K comparable, V any] struct {
	mu   sync.RWMutex
	data map[K]*V
}

// NewSimpleCache creates a SimpleCache
func NewSimpleCache[K comparable, V any]() *SimpleCache[K, V] {
	return &SimpleCache[K, V]{
		data: make(map[K]*V),
	}
}

func (c *SimpleCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.data[key]
	if !ok {
		var zero V
		return zero, false
	}
	return *v, true
}

func (c *SimpleCache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = &value
}

func (c *SimpleCache[K, V]) Remove(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
}

func (c *SimpleCache[K, V]) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[K]*V)
}

package cache

import (
	"time"

	"github.com/dgraph-io/ristretto"
)

// TTLCache is a bounded, typed cache whose entries expire ttl after their
// last Set. Each entry costs 1, so maxEntries bounds the entry count.
type TTLCache[V any] struct {
	c   *ristretto.Cache
	ttl time.Duration
}

func NewTTLCache[V any](maxEntries int64, ttl time.Duration) (*TTLCache[V], error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &TTLCache[V]{c: c, ttl: ttl}, nil
}

func (c *TTLCache[V]) Get(key string) (V, bool) {
	v, ok := c.c.Get(key)
	if !ok {
		var z V
		return z, false
	}
	return v.(V), true
}

// Set stores v and restarts its ttl. Writes are applied before Set
// returns. It reports false when the write was dropped; a key the
// admission policy turns away is simply absent on the next Get.
func (c *TTLCache[V]) Set(key string, v V) bool {
	if !c.c.SetWithTTL(key, v, 1, c.ttl) {
		return false
	}
	c.c.Wait()
	return true
}

func (c *TTLCache[V]) Del(key string) { c.c.Del(key) }

func (c *TTLCache[V]) Close() { c.c.Close() }

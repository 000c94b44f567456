package cache

import "sync"

// MapCache is a typed, concurrency-safe map.
type MapCache[K comparable, V any] struct{ m sync.Map }

func NewMapCache[K comparable, V any]() *MapCache[K, V] {
	return &MapCache[K, V]{}
}

func (c *MapCache[K, V]) Set(k K, v V) {
	c.m.Store(k, v)
}

func (c *MapCache[K, V]) Get(k K) (V, bool) {
	v, ok := c.m.Load(k)
	if !ok {
		var z V
		return z, false
	}
	return v.(V), true
}

func (c *MapCache[K, V]) Delete(k K) { c.m.Delete(k) }

// Values returns every value for which keep returns true.
func (c *MapCache[K, V]) Values(keep func(V) bool) []V {
	var out []V
	c.m.Range(func(_, v any) bool {
		if keep == nil || keep(v.(V)) {
			out = append(out, v.(V))
		}
		return true
	})
	return out
}

func (c *MapCache[K, V]) Clear() { c.m.Range(func(k, _ any) bool { c.m.Delete(k); return true }) }

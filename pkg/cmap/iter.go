package cmap

// Range iterates over all key-value pairs.
//
// The callback returns false to stop iteration. Locks are taken shard by
// shard, so the view is not a consistent snapshot, and the callback must
// not write to the same map.
func (m *Map[V]) Range(fn func(key string, value V) bool) {
	for _, s := range m.shards {
		s.mu.RLock()
		for k, v := range s.items {
			if !fn(k, v) {
				s.mu.RUnlock()
				return
			}
		}
		s.mu.RUnlock()
	}
}

// Snapshot copies every entry out of the map. Unlike Range, the caller
// may mutate the map while walking the result.
func (m *Map[V]) Snapshot() map[string]V {
	out := make(map[string]V, m.Count())
	m.Range(func(k string, v V) bool {
		out[k] = v
		return true
	})
	return out
}

// Keys returns all keys.
func (m *Map[V]) Keys() []string {
	keys := make([]string, 0, m.Count())
	m.Range(func(key string, _ V) bool {
		keys = append(keys, key)
		return true
	})
	return keys
}

// Package cmap provides a concurrent-safe sharded map keyed by strings.
//
// Keys are distributed over a power-of-two number of shards using
// murmur3, so unrelated keys rarely contend on the same lock.
package cmap

import (
	"sync"

	"github.com/spaolacci/murmur3"
)

// DefaultShardCount is the default number of shards.
const DefaultShardCount = 16

// Map is a concurrent-safe sharded map.
type Map[V any] struct {
	shards    []*shard[V]
	shardMask uint64
}

type shard[V any] struct {
	mu    sync.RWMutex
	items map[string]V
}

// New creates a new sharded map with the default shard count.
func New[V any]() *Map[V] {
	return NewWithShards[V](DefaultShardCount)
}

// NewWithShards creates a new sharded map with the specified shard count.
// shardCount must be a power of 2; anything else falls back to the default.
func NewWithShards[V any](shardCount int) *Map[V] {
	if shardCount <= 0 || shardCount&(shardCount-1) != 0 {
		shardCount = DefaultShardCount
	}

	m := &Map[V]{
		shards:    make([]*shard[V], shardCount),
		shardMask: uint64(shardCount - 1),
	}
	for i := range m.shards {
		m.shards[i] = &shard[V]{items: make(map[string]V)}
	}
	return m
}

func (m *Map[V]) getShard(key string) *shard[V] {
	return m.shards[murmur3.Sum64([]byte(key))&m.shardMask]
}

// Get retrieves a value by key.
func (m *Map[V]) Get(key string) (V, bool) {
	s := m.getShard(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.items[key]
	return val, ok
}

// Set stores a key-value pair.
func (m *Map[V]) Set(key string, value V) {
	s := m.getShard(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = value
}

// Pop removes a key and returns its value.
// Returns the value and true if the key existed, zero value and false otherwise.
func (m *Map[V]) Pop(key string) (V, bool) {
	s := m.getShard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	val, ok := s.items[key]
	if ok {
		delete(s.items, key)
	}
	return val, ok
}

// Upsert atomically computes the new value for key from the existing
// one (if any) and stores it.
func (m *Map[V]) Upsert(key string, fn func(existing V, exists bool) V) V {
	s := m.getShard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.items[key]
	value := fn(existing, exists)
	s.items[key] = value
	return value
}

// DeleteIf removes key only while pred holds for its current value.
func (m *Map[V]) DeleteIf(key string, pred func(V) bool) bool {
	s := m.getShard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	val, ok := s.items[key]
	if !ok || !pred(val) {
		return false
	}
	delete(s.items, key)
	return true
}

// Count returns the total number of items.
func (m *Map[V]) Count() int {
	count := 0
	for _, s := range m.shards {
		s.mu.RLock()
		count += len(s.items)
		s.mu.RUnlock()
	}
	return count
}

// Clear removes all items.
func (m *Map[V]) Clear() {
	for _, s := range m.shards {
		s.mu.Lock()
		s.items = make(map[string]V)
		s.mu.Unlock()
	}
}

// ShardCount returns the number of shards.
func (m *Map[V]) ShardCount() int {
	return len(m.shards)
}

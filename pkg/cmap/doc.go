// Package cmap provides a concurrent map implementation for stashkv.
//
// It backs the in-memory record store and the service's per-key write
// locks:
//
//   - Sharding: configurable power-of-two shard count
//   - Hashing: murmur3 over the key bytes
//   - Fine-grained locking: per-shard RWMutex
//   - Atomic read-modify-write through Upsert and DeleteIf
//   - KeyLocks: striped mutexes for serializing work per key
//
// Usage:
//
//	m := cmap.New[*domain.Record]()
//	m.Set("key", rec)
//	val, ok := m.Get("key")
package cmap

package cmap

import (
	"sync"

	"github.com/spaolacci/murmur3"
)

// KeyLocks serializes work per key over a fixed set of striped mutexes.
// Keys hashing to the same stripe share a lock.
type KeyLocks struct {
	stripes []sync.Mutex
	mask    uint64
}

// NewKeyLocks creates a lock set with stripeCount stripes. stripeCount
// must be a power of 2; anything else falls back to DefaultShardCount.
func NewKeyLocks(stripeCount int) *KeyLocks {
	if stripeCount <= 0 || stripeCount&(stripeCount-1) != 0 {
		stripeCount = DefaultShardCount
	}
	return &KeyLocks{
		stripes: make([]sync.Mutex, stripeCount),
		mask:    uint64(stripeCount - 1),
	}
}

// Lock acquires the stripe for key and returns its unlock function.
func (l *KeyLocks) Lock(key string) (unlock func()) {
	mu := &l.stripes[murmur3.Sum64([]byte(key))&l.mask]
	mu.Lock()
	return mu.Unlock
}

// Package memory provides in-memory record storage for stashkv.
//
// It backs a namespace with a sharded concurrent map. Contents live only
// as long as the process.
package memory

import (
	"context"
	"sync/atomic"

	"github.com/yndnr/stashkv/internal/core/domain"
	"github.com/yndnr/stashkv/pkg/cmap"
)

// Store keeps the records of one namespace in memory.
type Store struct {
	records *cmap.Map[*domain.Record]
	closed  atomic.Bool
}

// Option configures the Store.
type Option func(*config)

type config struct {
	shards int
}

// WithShards sets the shard count of the underlying map.
func WithShards(n int) Option {
	return func(c *config) {
		c.shards = n
	}
}

// New creates a new in-memory store.
func New(opts ...Option) *Store {
	cfg := config{shards: cmap.DefaultShardCount}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Store{records: cmap.NewWithShards[*domain.Record](cfg.shards)}
}

// Get returns a copy of the record for key, or nil when absent.
func (s *Store) Get(_ context.Context, key string) (*domain.Record, error) {
	if s.closed.Load() {
		return nil, domain.ErrStoreClosed
	}
	rec, ok := s.records.Get(key)
	if !ok {
		return nil, nil
	}
	// Return a clone to prevent external modification
	return rec.Clone(), nil
}

// Put stores a copy of rec.
func (s *Store) Put(_ context.Context, rec *domain.Record) error {
	if s.closed.Load() {
		return domain.ErrStoreClosed
	}
	if rec == nil || rec.Key == "" {
		return domain.ErrInvalidArgument.WithDetails("record key must not be empty")
	}
	s.records.Set(rec.Key, rec.Clone())
	return nil
}

// Delete removes key.
func (s *Store) Delete(_ context.Context, key string) error {
	if s.closed.Load() {
		return domain.ErrStoreClosed
	}
	s.records.Pop(key)
	return nil
}

// Clear removes every record.
func (s *Store) Clear(_ context.Context) error {
	if s.closed.Load() {
		return domain.ErrStoreClosed
	}
	s.records.Clear()
	return nil
}

// Scan walks a point-in-time copy of the records, so fn may safely call
// back into the store.
func (s *Store) Scan(ctx context.Context, fn func(rec *domain.Record) bool) error {
	if s.closed.Load() {
		return domain.ErrStoreClosed
	}
	for _, rec := range s.records.Snapshot() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !fn(rec.Clone()) {
			return nil
		}
	}
	return nil
}

// Len returns the number of stored records.
func (s *Store) Len(_ context.Context) (int, error) {
	if s.closed.Load() {
		return 0, domain.ErrStoreClosed
	}
	return s.records.Count(), nil
}

// CleanupExpired removes records that expired at or before nowMs and
// returns how many were removed.
func (s *Store) CleanupExpired(nowMs int64) int {
	removed := 0
	for key, rec := range s.records.Snapshot() {
		exp, ok := rec.Metadata.ExpiresAt()
		if !ok || exp > nowMs {
			continue
		}
		// Recheck under the shard lock: a concurrent Put may have
		// replaced the record with a live one.
		if s.records.DeleteIf(key, func(cur *domain.Record) bool {
			e, ok := cur.Metadata.ExpiresAt()
			return ok && e <= nowMs
		}) {
			removed++
		}
	}
	return removed
}

// DeleteExpired implements storage.ExpiryIndex.
func (s *Store) DeleteExpired(_ context.Context, nowMs int64) (int, error) {
	if s.closed.Load() {
		return 0, domain.ErrStoreClosed
	}
	return s.CleanupExpired(nowMs), nil
}

// NextExpiry implements storage.ExpiryIndex.
func (s *Store) NextExpiry(_ context.Context, nowMs int64) (int64, bool, error) {
	if s.closed.Load() {
		return 0, false, domain.ErrStoreClosed
	}
	var (
		next  int64
		found bool
	)
	s.records.Range(func(_ string, rec *domain.Record) bool {
		if exp, ok := rec.Metadata.ExpiresAt(); ok && exp > nowMs && (!found || exp < next) {
			next, found = exp, true
		}
		return true
	})
	return next, found, nil
}

// Close marks the store closed and drops its contents.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.records.Clear()
	return nil
}

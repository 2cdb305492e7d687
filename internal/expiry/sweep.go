package expiry

import (
	"context"
	"time"

	"github.com/yndnr/stashkv/internal/core/domain"
	"github.com/yndnr/stashkv/internal/storage"
)

// SweepResult summarizes one sweep.
type SweepResult struct {
	// Deleted counts removed records.
	Deleted int
	// Failed counts expired records whose deletion failed.
	Failed int
	// Next is the smallest future expiry in epoch milliseconds, valid
	// when HasNext is true.
	Next    int64
	HasNext bool
}

// NextAt returns Next as a time.
func (r SweepResult) NextAt() time.Time {
	return time.UnixMilli(r.Next)
}

// Sweep deletes every record of store whose expiry is at or before now
// and reports the earliest remaining expiry. Failures to delete single
// records are counted, not returned; an error means the store could not
// be enumerated at all.
func Sweep(ctx context.Context, store storage.Store, now time.Time) (SweepResult, error) {
	nowMs := now.UnixMilli()

	if idx, ok := store.(storage.ExpiryIndex); ok {
		deleted, err := idx.DeleteExpired(ctx, nowMs)
		if err != nil {
			return SweepResult{}, err
		}
		next, has, err := idx.NextExpiry(ctx, nowMs)
		if err != nil {
			return SweepResult{Deleted: deleted}, err
		}
		return SweepResult{Deleted: deleted, Next: next, HasNext: has}, nil
	}

	var (
		res     SweepResult
		expired []string
	)
	err := store.Scan(ctx, func(rec *domain.Record) bool {
		exp, ok := rec.Metadata.ExpiresAt()
		switch {
		case !ok:
		case exp <= nowMs:
			expired = append(expired, rec.Key)
		case !res.HasNext || exp < res.Next:
			res.Next, res.HasNext = exp, true
		}
		return true
	})
	if err != nil {
		return SweepResult{}, err
	}

	for _, key := range expired {
		if err := store.Delete(ctx, key); err != nil {
			res.Failed++
			continue
		}
		res.Deleted++
	}
	return res, nil
}

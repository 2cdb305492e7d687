package domain

import (
	"encoding/json"
	"math"
	"time"
)

// OperationKind names a storage verb.
type OperationKind string

const (
	OpGet         OperationKind = "get"
	OpSet         OperationKind = "set"
	OpRemove      OperationKind = "remove"
	OpClear       OperationKind = "clear"
	OpKeys        OperationKind = "keys"
	OpLength      OperationKind = "length"
	OpGetMetadata OperationKind = "get-metadata"
)

// AllOperations lists every OperationKind in a stable order.
var AllOperations = []OperationKind{OpGet, OpSet, OpRemove, OpClear, OpKeys, OpLength, OpGetMetadata}

// Reserved metadata fields.
const (
	// MetaExpires holds the absolute expiry instant in epoch milliseconds.
	MetaExpires = "expires"
	// MetaTTL holds a relative duration supplied by the caller. It never
	// reaches storage: normalization rewrites it into MetaExpires.
	MetaTTL = "ttl"
)

// Metadata is a free-form attribute map attached to a record. A nil
// Metadata is valid and means "no attributes".
type Metadata map[string]any

// Clone returns a shallow copy of m, or nil if m is nil.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	c := make(Metadata, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

// ExpiresAt returns the absolute expiry in epoch milliseconds.
// The second return is false when the record never expires.
func (m Metadata) ExpiresAt() (int64, bool) {
	if m == nil {
		return 0, false
	}
	return AsEpochMillis(m[MetaExpires])
}

// IsExpired reports whether the record expired at or before now.
func (m Metadata) IsExpired(now time.Time) bool {
	exp, ok := m.ExpiresAt()
	if !ok {
		return false
	}
	return exp <= now.UnixMilli()
}

// AsEpochMillis converts a decoded numeric metadata value to int64.
// Values coming back from JSON arrive as float64 or json.Number.
func AsEpochMillis(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return math.MaxInt64, true
		}
		return int64(n), true
	case float64:
		if math.IsNaN(n) {
			return 0, false
		}
		if n >= math.MaxInt64 {
			return math.MaxInt64, true
		}
		if n <= math.MinInt64 {
			return math.MinInt64, true
		}
		return int64(n), true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		if f, err := n.Float64(); err == nil {
			return AsEpochMillis(f)
		}
	}
	return 0, false
}

// Record is the persisted unit of a namespace. At most one live Record
// exists per key.
type Record struct {
	Key      string          `json:"key"`
	Value    json.RawMessage `json:"value"`
	Metadata Metadata        `json:"metadata,omitempty"`
	// Version counts writes to this key, starting at 1.
	Version uint64 `json:"version"`
}

// IsExpired reports whether the record is past its expiry instant.
func (r *Record) IsExpired(now time.Time) bool {
	return r != nil && r.Metadata.IsExpired(now)
}

// Clone returns a deep-enough copy for callers that mutate records.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	if r.Value != nil {
		c.Value = append(json.RawMessage(nil), r.Value...)
	}
	c.Metadata = r.Metadata.Clone()
	return &c
}

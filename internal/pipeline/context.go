package pipeline

import (
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/stashkv/internal/core/domain"
	"github.com/yndnr/stashkv/internal/storage"
)

// OperationContext carries one invocation through the hook chain.
//
// Hooks may rewrite Key, Value and Metadata in their before stage; the
// core operation sees the rewritten fields. A context belongs to exactly
// one invocation and must not be retained after it completes.
type OperationContext struct {
	// ID is a unique, time-ordered identifier for the invocation.
	ID string

	Op        domain.OperationKind
	Namespace string

	// Key is empty for namespace-wide operations (clear, keys, length).
	Key      string
	Value    any
	Metadata domain.Metadata

	// PreviousValue and PreviousMetadata are filled by the core set
	// operation when it overwrites an existing record.
	PreviousValue    any
	PreviousMetadata domain.Metadata

	// CacheHit is a hint hooks may set when they answered from a cache.
	CacheHit bool

	// Store is the namespace's raw store. Hooks use it for side work such
	// as deleting an expired record; regular writes go through the core.
	Store storage.Store

	Started    time.Time
	Extensions map[string]any
}

// NewOperationContext creates a context with a fresh ID.
func NewOperationContext(namespace string, op domain.OperationKind, key string) *OperationContext {
	now := time.Now()
	return &OperationContext{
		ID:        ulid.Make().String(),
		Op:        op,
		Namespace: namespace,
		Key:       key,
		Started:   now,
	}
}

// SetExtension stores a hook-defined value on the context.
func (oc *OperationContext) SetExtension(name string, v any) {
	if oc.Extensions == nil {
		oc.Extensions = make(map[string]any)
	}
	oc.Extensions[name] = v
}

// Extension returns a hook-defined value.
func (oc *OperationContext) Extension(name string) (any, bool) {
	v, ok := oc.Extensions[name]
	return v, ok
}

package ttl

import (
	"context"
	"time"

	"github.com/yndnr/stashkv/internal/core/domain"
	"github.com/yndnr/stashkv/internal/pipeline"
)

// Normalizer rewrites ttl/expires metadata into a single absolute
// expires field.
type Normalizer struct {
	// DefaultTTL applies when a write carries neither ttl nor expires.
	// Zero means records without an explicit expiry never expire.
	DefaultTTL time.Duration

	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
}

// NewNormalizer creates a normalizer with the given default TTL.
func NewNormalizer(defaultTTL time.Duration) *Normalizer {
	return &Normalizer{DefaultTTL: defaultTTL, Now: time.Now}
}

func (n *Normalizer) now() time.Time {
	if n.Now == nil {
		return time.Now()
	}
	return n.Now()
}

// Normalize returns a copy of meta in which any ttl has been replaced
// by an absolute expires. A relative ttl takes precedence over an
// absolute expires supplied in the same call; the default applies only
// when neither is present. meta itself is never modified.
func (n *Normalizer) Normalize(meta domain.Metadata) (domain.Metadata, error) {
	var (
		expires int64
		set     bool
	)
	switch rawTTL, rawExp := meta[domain.MetaTTL], meta[domain.MetaExpires]; {
	case rawTTL != nil:
		d, err := ParseDuration(rawTTL)
		if err != nil {
			return nil, err
		}
		expires, set = n.now().Add(d).UnixMilli(), true
	case rawExp != nil:
		ms, err := ResolveExpires(rawExp)
		if err != nil {
			return nil, err
		}
		expires, set = ms, true
	case n.DefaultTTL != 0:
		expires, set = n.now().Add(n.DefaultTTL).UnixMilli(), true
	}

	if meta == nil && !set {
		return nil, nil
	}
	out := meta.Clone()
	if out == nil {
		out = make(domain.Metadata, 1)
	}
	delete(out, domain.MetaTTL)
	delete(out, domain.MetaExpires)
	if set {
		out[domain.MetaExpires] = expires
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

// Hook applies a Normalizer to every set operation.
type Hook struct {
	n *Normalizer
}

// NewHook creates the ttl hook.
func NewHook(n *Normalizer) *Hook {
	if n == nil {
		n = NewNormalizer(0)
	}
	return &Hook{n: n}
}

// Name implements pipeline.Hook.
func (h *Hook) Name() string { return "ttl" }

// Before implements pipeline.BeforeHook.
func (h *Hook) Before(_ context.Context, oc *pipeline.OperationContext) error {
	if oc.Op != domain.OpSet {
		return nil
	}
	meta, err := h.n.Normalize(oc.Metadata)
	if err != nil {
		return err
	}
	oc.Metadata = meta
	return nil
}

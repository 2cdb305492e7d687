package service

import (
	"log/slog"
	"maps"

	"github.com/yndnr/stashkv/internal/core/domain"
	"github.com/yndnr/stashkv/internal/pipeline"
)

// Option configures a KVService.
type Option func(*KVService)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *KVService) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRunner replaces the pipeline runner.
func WithRunner(r *pipeline.Runner) Option {
	return func(s *KVService) {
		if r != nil {
			s.runner = r
		}
	}
}

// SetOption adjusts a single Set call.
type SetOption func(domain.Metadata)

// WithTTL sets a relative lifetime. It accepts a time.Duration, a number
// of milliseconds, or a string such as "30s", "5m", "2h" or "7d".
func WithTTL(ttl any) SetOption {
	return func(m domain.Metadata) { m[domain.MetaTTL] = ttl }
}

// WithExpires sets an absolute expiry as a time.Time, epoch milliseconds
// or an RFC 3339 string.
func WithExpires(expires any) SetOption {
	return func(m domain.Metadata) { m[domain.MetaExpires] = expires }
}

// WithMetadata merges arbitrary metadata into the record.
func WithMetadata(md domain.Metadata) SetOption {
	return func(m domain.Metadata) { maps.Copy(m, md) }
}

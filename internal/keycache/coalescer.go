// Package keycache derives per-key ciphers from credentials and caches
// them.
//
// Derivation is PBKDF2 and deliberately slow, so concurrent requests for
// the same logical key share one derivation, and finished ciphers are kept
// in a bounded cache that evicts in insertion order.
package keycache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/elliotchance/orderedmap/v3"
	"golang.org/x/sync/singleflight"

	"github.com/yndnr/stashkv/internal/core/domain"
	"github.com/yndnr/stashkv/pkg/crypto/adaptive"
)

// DefaultCapacity is the cache size used by DefaultConfig.
const DefaultCapacity = 128

// Credential is the secret material a cipher is derived from.
type Credential struct {
	Password string
	Salt     string
}

// CredentialProvider resolves the credential for a logical key. It may
// block. Returning a nil credential means the key is stored unencrypted.
type CredentialProvider interface {
	Credential(ctx context.Context, key string) (*Credential, error)
}

// ProviderFunc adapts a function to CredentialProvider.
type ProviderFunc func(ctx context.Context, key string) (*Credential, error)

// Credential implements CredentialProvider.
func (f ProviderFunc) Credential(ctx context.Context, key string) (*Credential, error) {
	return f(ctx, key)
}

// Static returns a provider that hands out c for every key.
func Static(c *Credential) CredentialProvider {
	return ProviderFunc(func(context.Context, string) (*Credential, error) {
		return c, nil
	})
}

// Config configures a Coalescer.
type Config struct {
	// Capacity bounds the number of cached ciphers. Zero disables the
	// cache; a negative value leaves it unbounded.
	Capacity int
	// KDF selects the password hash; empty selects PBKDF2.
	KDF adaptive.KDF
	// Iterations is the KDF work factor; <= 0 selects the KDF default.
	Iterations int
	// Cipher selects the AEAD; empty selects the platform preference.
	Cipher adaptive.CipherType
	// Provider resolves credentials. A nil provider disables encryption.
	Provider CredentialProvider
}

// DefaultConfig returns a configuration with the default capacity and
// work factor and no credentials.
func DefaultConfig() Config {
	return Config{
		Capacity: DefaultCapacity,
		KDF:      adaptive.KDFPBKDF2,
	}
}

// Stats are cumulative counters.
type Stats struct {
	Hits        uint64 `json:"hits" yaml:"hits"`
	Misses      uint64 `json:"misses" yaml:"misses"`
	Shared      uint64 `json:"shared" yaml:"shared"`
	Derivations uint64 `json:"derivations" yaml:"derivations"`
	Evictions   uint64 `json:"evictions" yaml:"evictions"`
	Skipped     uint64 `json:"skipped" yaml:"skipped"`
	Size        int    `json:"size" yaml:"size"`
}

// Coalescer hands out ciphers per logical key.
type Coalescer struct {
	cfg    Config
	logger *slog.Logger
	group  singleflight.Group

	mu    sync.Mutex
	cache *orderedmap.OrderedMap[string, adaptive.Cipher]
	epoch uint64

	hits, misses, shared, derivations, evictions, skipped atomic.Uint64
}

// New creates a Coalescer.
func New(cfg Config, logger *slog.Logger) (*Coalescer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	typ, err := adaptive.ParseType(string(cfg.Cipher))
	if err != nil {
		return nil, domain.ErrInvalidArgument.WithCause(err)
	}
	cfg.Cipher = typ
	if cfg.KDF, err = adaptive.ParseKDF(string(cfg.KDF)); err != nil {
		return nil, domain.ErrInvalidArgument.WithCause(err)
	}
	return &Coalescer{
		cfg:    cfg,
		logger: logger.With("component", "keycache"),
		cache:  orderedmap.NewOrderedMap[string, adaptive.Cipher](),
	}, nil
}

// CipherType reports the AEAD the coalescer builds.
func (c *Coalescer) CipherType() adaptive.CipherType {
	return c.cfg.Cipher
}

// GetKey returns the cipher for key, deriving it at most once at a time
// per key. A nil cipher with a nil error means key is not encrypted.
func (c *Coalescer) GetKey(ctx context.Context, key string) (adaptive.Cipher, error) {
	if ci, ok := c.lookup(key); ok {
		c.hits.Add(1)
		return ci, nil
	}
	c.misses.Add(1)

	c.mu.Lock()
	epoch := c.epoch
	c.mu.Unlock()

	flightCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		return c.derive(flightCtx, key, epoch)
	})

	select {
	case res := <-ch:
		if res.Shared {
			c.shared.Add(1)
		}
		if res.Err != nil {
			return nil, res.Err
		}
		ci, _ := res.Val.(adaptive.Cipher)
		return ci, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Coalescer) derive(ctx context.Context, key string, epoch uint64) (adaptive.Cipher, error) {
	if ci, ok := c.lookup(key); ok {
		return ci, nil
	}
	if c.cfg.Provider == nil {
		c.skipped.Add(1)
		return nil, nil
	}

	cred, err := c.cfg.Provider.Credential(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("keycache: credential provider: %w", err)
	}
	if cred == nil {
		c.skipped.Add(1)
		return nil, nil
	}
	if cred.Password == "" || cred.Salt == "" {
		return nil, domain.ErrInvalidCredential.WithDetails("password and salt must be non-empty")
	}

	ci, err := adaptive.NewFromPassword(c.cfg.KDF, []byte(cred.Password), []byte(cred.Salt), c.cfg.Iterations, c.cfg.Cipher)
	if err != nil {
		return nil, domain.ErrInvalidCredential.WithCause(err)
	}
	c.derivations.Add(1)
	c.logger.Debug("cipher derived", "cipher", ci.Type(), "kdf", c.cfg.KDF, "iterations", c.cfg.Iterations)
	c.store(key, ci, epoch)
	return ci, nil
}

func (c *Coalescer) lookup(key string) (adaptive.Cipher, bool) {
	if c.cfg.Capacity == 0 {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Get(key)
}

// store inserts ci unless the cache was invalidated since the derivation
// started.
func (c *Coalescer) store(key string, ci adaptive.Cipher, epoch uint64) {
	if c.cfg.Capacity == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.epoch {
		return
	}
	if c.cache.Set(key, ci) && c.cfg.Capacity > 0 {
		for c.cache.Len() > c.cfg.Capacity {
			oldest := c.cache.Front()
			c.cache.Delete(oldest.Key)
			c.evictions.Add(1)
		}
	}
}

// Invalidate drops the cached cipher for key.
func (c *Coalescer) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Delete(key)
	c.epoch++
}

// Clear drops every cached cipher.
func (c *Coalescer) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = orderedmap.NewOrderedMap[string, adaptive.Cipher]()
	c.epoch++
}

// Len returns the number of cached ciphers.
func (c *Coalescer) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Len()
}

// Stats returns a snapshot of the counters.
func (c *Coalescer) Stats() Stats {
	return Stats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Shared:      c.shared.Load(),
		Derivations: c.derivations.Load(),
		Evictions:   c.evictions.Load(),
		Skipped:     c.skipped.Load(),
		Size:        c.Len(),
	}
}

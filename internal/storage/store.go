package storage

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/yndnr/stashkv/internal/core/domain"
	"github.com/yndnr/stashkv/internal/storage/memory"
)

// Supported drivers.
const (
	DriverMemory = "memory"
	DriverBadger = "badger"
	DriverSQLite = "sqlite"
)

// Store is the raw object store of one namespace.
//
// Implementations must be safe for concurrent use. Store does not look at
// expiry metadata: expired records are returned like any other and are
// filtered by the layers above.
type Store interface {
	// Get returns the record for key, or (nil, nil) when absent.
	Get(ctx context.Context, key string) (*domain.Record, error)

	// Put writes rec, replacing any record with the same key.
	Put(ctx context.Context, rec *domain.Record) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Clear removes every record of the namespace.
	Clear(ctx context.Context) error

	// Scan calls fn for every record until fn returns false.
	// fn must not call back into the same Store.
	Scan(ctx context.Context, fn func(rec *domain.Record) bool) error

	// Len returns the number of stored records, expired ones included.
	Len(ctx context.Context) (int, error)
}

// ExpiryIndex is implemented by stores that can answer expiry queries
// without a full scan.
type ExpiryIndex interface {
	// DeleteExpired removes every record whose expires is <= nowMs and
	// returns how many were removed.
	DeleteExpired(ctx context.Context, nowMs int64) (int, error)

	// NextExpiry returns the smallest expires value strictly greater
	// than nowMs.
	NextExpiry(ctx context.Context, nowMs int64) (int64, bool, error)
}

// Backend opens namespaces on one physical storage engine.
type Backend interface {
	// Namespace returns the Store for name, creating it if needed.
	Namespace(name string) (Store, error)

	// Driver returns the backend's driver name.
	Driver() string

	// Close releases the engine. Stores obtained from it become unusable.
	Close() error
}

// Config configures the storage backend.
type Config struct {
	// Driver selects the engine ("memory", "badger", "sqlite").
	// Default: "memory"
	Driver string

	// Dir is the data directory for badger, and the default parent of
	// the sqlite database file.
	Dir string

	Badger BadgerConfig
	SQLite SQLiteConfig
}

// DefaultConfig returns the default storage configuration.
func DefaultConfig(dir string) Config {
	return Config{
		Driver: DriverMemory,
		Dir:    dir,
		Badger: DefaultBadgerConfig(),
		SQLite: DefaultSQLiteConfig(),
	}
}

// Open creates the backend selected by cfg.Driver.
func Open(cfg Config, logger *slog.Logger) (Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch strings.ToLower(cfg.Driver) {
	case "", DriverMemory:
		return newMemoryBackend(), nil
	case DriverBadger:
		return NewBadgerEngine(cfg, logger)
	case DriverSQLite:
		return NewSQLiteEngine(cfg, logger)
	default:
		return nil, domain.ErrInvalidArgument.WithDetailsf("unknown storage driver %q", cfg.Driver)
	}
}

// memoryBackend hands out one memory.Store per namespace.
type memoryBackend struct {
	mu     sync.Mutex
	stores map[string]*memory.Store
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{stores: make(map[string]*memory.Store)}
}

func (b *memoryBackend) Namespace(name string) (Store, error) {
	if err := validateNamespace(name); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.stores[name]; ok {
		return s, nil
	}
	s := memory.New()
	b.stores[name] = s
	return s, nil
}

func (b *memoryBackend) Driver() string { return DriverMemory }

func (b *memoryBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.stores {
		s.Close()
	}
	b.stores = make(map[string]*memory.Store)
	return nil
}

// validateNamespace rejects names that cannot be embedded in a key prefix.
func validateNamespace(name string) error {
	if name == "" {
		return domain.ErrInvalidArgument.WithDetails("namespace must not be empty")
	}
	if strings.ContainsRune(name, 0) {
		return domain.ErrInvalidArgument.WithDetails("namespace must not contain NUL")
	}
	return nil
}

// wrapStorageErr tags engine errors with the storage error code.
func wrapStorageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return domain.ErrStorage.WithDetails(op).WithCause(err)
}

var _ Store = (*memory.Store)(nil)

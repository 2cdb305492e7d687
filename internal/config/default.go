// Package config defines the stashkv configuration structure.
package config

import (
	"time"

	"github.com/yndnr/stashkv/internal/expiry"
	"github.com/yndnr/stashkv/internal/keycache"
	"github.com/yndnr/stashkv/internal/storage"
	"github.com/yndnr/stashkv/internal/telemetry/tracer"
	"github.com/yndnr/stashkv/pkg/crypto/adaptive"
)

// Default configuration values.
const (
	DefaultDriver    = storage.DriverMemory
	DefaultDataDir   = "./data"
	DefaultNamespace = "default"

	DefaultStrategy     = string(expiry.StrategyProactive)
	DefaultInterval     = time.Minute
	DefaultThrottle     = time.Second
	DefaultInitTimeout  = 5 * time.Second
	DefaultSendTimeout  = time.Second
	DefaultSweepTimeout = 30 * time.Second

	DefaultKDF           = string(adaptive.KDFPBKDF2)
	DefaultCacheCapacity = keycache.DefaultCapacity

	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"

	DefaultTraceExporter = tracer.ExporterNone

	// MinInterval is the smallest background sweep interval; the
	// interval scheduler has one-second resolution.
	MinInterval = time.Second
)

// Default returns the default configuration.
func Default() *Config {
	badgerDefaults := storage.DefaultBadgerConfig()
	sqliteDefaults := storage.DefaultSQLiteConfig()

	return &Config{
		Storage: StorageSection{
			Driver:    DefaultDriver,
			DataDir:   DefaultDataDir,
			Namespace: DefaultNamespace,
			Badger: BadgerSection{
				GCInterval:  badgerDefaults.GCInterval,
				GCThreshold: badgerDefaults.GCThreshold,
				CacheSize:   badgerDefaults.CacheSize,
			},
			SQLite: SQLiteSection{
				Path:        sqliteDefaults.Path,
				BusyTimeout: sqliteDefaults.BusyTimeout,
			},
		},
		Expiration: ExpirationSection{
			Strategy:     DefaultStrategy,
			Interval:     DefaultInterval,
			Throttle:     DefaultThrottle,
			InitTimeout:  DefaultInitTimeout,
			SendTimeout:  DefaultSendTimeout,
			SweepTimeout: DefaultSweepTimeout,
		},
		Encryption: EncryptionSection{
			KDF:           DefaultKDF,
			CacheCapacity: DefaultCacheCapacity,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Telemetry: TelemetrySection{
			TraceExporter: DefaultTraceExporter,
		},
	}
}

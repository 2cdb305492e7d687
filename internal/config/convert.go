package config

import (
	"github.com/yndnr/stashkv/internal/expiry"
	"github.com/yndnr/stashkv/internal/keycache"
	"github.com/yndnr/stashkv/internal/storage"
	"github.com/yndnr/stashkv/internal/telemetry/logger"
	"github.com/yndnr/stashkv/internal/telemetry/tracer"
	"github.com/yndnr/stashkv/pkg/crypto/adaptive"
)

// StorageConfig returns the backend configuration for the storage section.
func (c *Config) StorageConfig() storage.Config {
	sc := storage.DefaultConfig(c.Storage.DataDir)
	sc.Driver = c.Storage.Driver

	sc.Badger.GCInterval = c.Storage.Badger.GCInterval
	sc.Badger.GCThreshold = c.Storage.Badger.GCThreshold
	if c.Storage.Badger.CacheSize > 0 {
		sc.Badger.CacheSize = c.Storage.Badger.CacheSize
	}
	sc.Badger.SyncWrites = c.Storage.Badger.SyncWrites

	if c.Storage.SQLite.Path != "" {
		sc.SQLite.Path = c.Storage.SQLite.Path
	}
	if c.Storage.SQLite.BusyTimeout > 0 {
		sc.SQLite.BusyTimeout = c.Storage.SQLite.BusyTimeout
	}
	return sc
}

// ExpiryConfig returns the scheduler configuration. Verify must have
// accepted the strategy.
func (c *Config) ExpiryConfig(observer expiry.Observer) expiry.Config {
	strategy, _ := expiry.ParseStrategy(c.Expiration.Strategy)
	ec := expiry.DefaultConfig()
	ec.Strategy = strategy
	ec.Interval = c.Expiration.Interval
	ec.Throttle = c.Expiration.Throttle
	ec.InitTimeout = c.Expiration.InitTimeout
	ec.SendTimeout = c.Expiration.SendTimeout
	ec.SweepTimeout = c.Expiration.SweepTimeout
	ec.Observer = observer
	return ec
}

// KeyCacheConfig returns the key-derivation cache configuration. The
// provider is nil unless encryption is enabled.
func (c *Config) KeyCacheConfig() keycache.Config {
	kc := keycache.DefaultConfig()
	kc.Capacity = c.Encryption.CacheCapacity
	kc.KDF = adaptive.KDF(c.Encryption.KDF)
	kc.Iterations = c.Encryption.Iterations
	kc.Cipher = adaptive.CipherType(c.Encryption.Cipher)
	if c.Encryption.Enabled {
		kc.Provider = keycache.Static(&keycache.Credential{
			Password: c.Encryption.Password,
			Salt:     c.Encryption.Salt,
		})
	}
	return kc
}

// LoggerConfig returns the logger configuration for the log section.
func (c *Config) LoggerConfig() logger.Config {
	lc := logger.DefaultConfig()
	lc.Level = c.Log.Level
	lc.Format = c.Log.Format
	return lc
}

// TracerConfig returns the tracer configuration for the telemetry section.
func (c *Config) TracerConfig() tracer.Config {
	return tracer.Config{
		ServiceName: tracer.DefaultServiceName,
		Exporter:    c.Telemetry.TraceExporter,
	}
}

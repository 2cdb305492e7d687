// Package config defines the stashkv configuration structure.
package config

import "time"

// Config is the root configuration structure.
type Config struct {
	Storage    StorageSection    `koanf:"storage"`
	Expiration ExpirationSection `koanf:"expiration"`
	Encryption EncryptionSection `koanf:"encryption"`
	Log        LogSection        `koanf:"log"`
	Telemetry  TelemetrySection  `koanf:"telemetry"`
}

// StorageSection selects and tunes the storage backend.
type StorageSection struct {
	// Driver is one of "memory", "badger", "sqlite".
	Driver string `koanf:"driver"`
	// DataDir holds the badger files and, by default, the sqlite database.
	DataDir string `koanf:"data_dir"`
	// Namespace is used by commands that do not pass --namespace.
	Namespace string `koanf:"namespace"`

	Badger BadgerSection `koanf:"badger"`
	SQLite SQLiteSection `koanf:"sqlite"`
}

// BadgerSection tunes the badger engine.
type BadgerSection struct {
	GCInterval  time.Duration `koanf:"gc_interval"`
	GCThreshold float64       `koanf:"gc_threshold"`
	CacheSize   int64         `koanf:"cache_size"`
	SyncWrites  bool          `koanf:"sync_writes"`
}

// SQLiteSection tunes the sqlite engine.
type SQLiteSection struct {
	Path        string        `koanf:"path"`
	BusyTimeout time.Duration `koanf:"busy_timeout"`
}

// ExpirationSection configures TTL handling and the expiry scheduler.
type ExpirationSection struct {
	// Strategy is one of "immediate", "background", "hybrid", "proactive".
	Strategy string `koanf:"strategy"`
	// DefaultTTL applies to writes that carry neither ttl nor expires.
	// Zero means records never expire by default.
	DefaultTTL   time.Duration `koanf:"default_ttl"`
	Interval     time.Duration `koanf:"interval"`
	Throttle     time.Duration `koanf:"throttle"`
	InitTimeout  time.Duration `koanf:"init_timeout"`
	SendTimeout  time.Duration `koanf:"send_timeout"`
	SweepTimeout time.Duration `koanf:"sweep_timeout"`
}

// EncryptionSection configures value encryption.
type EncryptionSection struct {
	Enabled  bool   `koanf:"enabled"`
	Password string `koanf:"password"`
	Salt     string `koanf:"salt"`
	// Cipher is "aes-gcm", "chacha20-poly1305", "xchacha20-poly1305"
	// or empty for the platform preference.
	Cipher string `koanf:"cipher"`
	// KDF is "pbkdf2" or "argon2id".
	KDF string `koanf:"kdf"`
	// Iterations is the KDF work factor; 0 selects the KDF default.
	Iterations    int `koanf:"iterations"`
	CacheCapacity int `koanf:"cache_capacity"`
}

// LogSection contains logging configuration.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetrySection configures metrics and tracing.
type TelemetrySection struct {
	// MetricsAddr is the listen address of the /metrics endpoint served by
	// `stashkv watch`. Empty disables it.
	MetricsAddr string `koanf:"metrics_addr"`
	// TraceExporter is "none" or "stdout".
	TraceExporter string `koanf:"trace_exporter"`
}

// Package config defines the stashkv configuration structure.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/yndnr/stashkv/internal/expiry"
	"github.com/yndnr/stashkv/internal/storage"
	"github.com/yndnr/stashkv/internal/telemetry/tracer"
	"github.com/yndnr/stashkv/pkg/crypto/adaptive"
)

// Verify validates the configuration.
func Verify(cfg *Config) error {
	if err := verifyStorage(&cfg.Storage); err != nil {
		return err
	}
	if err := verifyExpiration(&cfg.Expiration); err != nil {
		return err
	}
	if err := verifyEncryption(&cfg.Encryption); err != nil {
		return err
	}
	if err := verifyLog(&cfg.Log); err != nil {
		return err
	}
	return verifyTelemetry(&cfg.Telemetry)
}

func verifyStorage(cfg *StorageSection) error {
	switch strings.ToLower(cfg.Driver) {
	case storage.DriverMemory:
	case storage.DriverBadger:
		if cfg.DataDir == "" {
			return errors.New("storage.data_dir is required for the badger driver")
		}
	case storage.DriverSQLite:
		if cfg.DataDir == "" && cfg.SQLite.Path == "" {
			return errors.New("storage.data_dir or storage.sqlite.path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("storage.driver %q is not one of memory, badger, sqlite", cfg.Driver)
	}

	if cfg.Namespace == "" {
		return errors.New("storage.namespace is required")
	}
	if cfg.Badger.GCThreshold < 0 || cfg.Badger.GCThreshold > 1 {
		return errors.New("storage.badger.gc_threshold must be between 0 and 1")
	}
	if cfg.SQLite.BusyTimeout < 0 {
		return errors.New("storage.sqlite.busy_timeout must not be negative")
	}
	return nil
}

func verifyExpiration(cfg *ExpirationSection) error {
	if _, err := expiry.ParseStrategy(cfg.Strategy); err != nil {
		return fmt.Errorf("expiration.strategy: %w", err)
	}
	if cfg.DefaultTTL < 0 {
		return errors.New("expiration.default_ttl must not be negative")
	}
	if cfg.Interval < MinInterval {
		return fmt.Errorf("expiration.interval must be at least %s", MinInterval)
	}
	if cfg.Throttle < 0 {
		return errors.New("expiration.throttle must not be negative")
	}
	if cfg.InitTimeout <= 0 || cfg.SendTimeout <= 0 || cfg.SweepTimeout <= 0 {
		return errors.New("expiration timeouts must be positive")
	}
	return nil
}

func verifyEncryption(cfg *EncryptionSection) error {
	if _, err := adaptive.ParseType(cfg.Cipher); err != nil {
		return fmt.Errorf("encryption.cipher: %w", err)
	}
	if _, err := adaptive.ParseKDF(cfg.KDF); err != nil {
		return fmt.Errorf("encryption.kdf: %w", err)
	}
	if !cfg.Enabled {
		return nil
	}
	if cfg.Password == "" {
		return errors.New("encryption.password is required when encryption is enabled")
	}
	if cfg.Salt == "" {
		return errors.New("encryption.salt is required when encryption is enabled")
	}
	if cfg.Iterations < 0 {
		return errors.New("encryption.iterations must not be negative")
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	switch strings.ToLower(cfg.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", cfg.Level)
	}
	switch strings.ToLower(cfg.Format) {
	case "", "json", "text", "console":
	default:
		return fmt.Errorf("log.format %q is not one of json, text", cfg.Format)
	}
	return nil
}

func verifyTelemetry(cfg *TelemetrySection) error {
	switch cfg.TraceExporter {
	case "", tracer.ExporterNone, tracer.ExporterStdout:
		return nil
	default:
		return fmt.Errorf("telemetry.trace_exporter %q is not one of none, stdout", cfg.TraceExporter)
	}
}

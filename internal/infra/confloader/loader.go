// Package confloader provides configuration loading mechanism.
//
// It uses Koanf for flexible configuration loading from multiple
// sources with priority: Flag > Env > File > Default.
package confloader

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix is the default environment variable prefix.
const DefaultEnvPrefix = "STASHKV_"

// EnvNestingSeparator separates nested keys in environment variable names.
// A single underscore stays part of the key.
const EnvNestingSeparator = "__"

// Loader loads configuration from multiple sources.
type Loader struct {
	k         *koanf.Koanf
	envPrefix string
	filePath  string
	loaded    bool
}

// Option is a function that configures the Loader.
type Option func(*Loader)

// WithEnvPrefix sets the environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) {
		l.envPrefix = prefix
	}
}

// WithConfigFile sets the configuration file path.
func WithConfigFile(path string) Option {
	return func(l *Loader) {
		l.filePath = path
	}
}

// NewLoader creates a new configuration loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		k:         koanf.New("."),
		envPrefix: DefaultEnvPrefix,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Load loads configuration from all sources and unmarshals into target.
// Fields of target that no source sets keep their current value, so
// callers pass a target pre-filled with defaults.
// Loading order (later sources override earlier):
//  1. Configuration file (YAML, JSON or TOML)
//  2. Environment variables
//
// CLI flags are applied afterwards with LoadMap and Unmarshal.
func (l *Loader) Load(target any) error {
	if l.filePath != "" {
		if err := l.LoadFile(l.filePath); err != nil {
			return fmt.Errorf("load config file: %w", err)
		}
	}

	if err := l.LoadEnv(); err != nil {
		return fmt.Errorf("load env: %w", err)
	}

	if err := l.Unmarshal(target); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}

	l.loaded = true
	return nil
}

// LoadFile loads configuration from a file. Files ending in .toml are
// decoded as TOML; everything else goes through the YAML parser, which
// also accepts JSON.
func (l *Loader) LoadFile(path string) error {
	if path == "" {
		return nil
	}

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		data := make(map[string]any)
		if _, err := toml.DecodeFile(path, &data); err != nil {
			return fmt.Errorf("load file %s: %w", path, err)
		}
		if err := l.k.Load(mapProvider(data), nil); err != nil {
			return fmt.Errorf("load file %s: %w", path, err)
		}
		return nil
	}

	if err := l.k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("load file %s: %w", path, err)
	}
	return nil
}

// LoadEnv loads configuration from environment variables.
// Nested keys are separated by a double underscore.
// Example: STASHKV_STORAGE__DATA_DIR=/var/lib/stashkv -> storage.data_dir
func (l *Loader) LoadEnv() error {
	envTransformer := func(s string) string {
		s = strings.TrimPrefix(s, l.envPrefix)
		s = strings.ToLower(s)
		return strings.ReplaceAll(s, EnvNestingSeparator, ".")
	}

	provider := env.Provider(l.envPrefix, ".", envTransformer)
	if err := l.k.Load(provider, nil); err != nil {
		return fmt.Errorf("load env: %w", err)
	}

	return nil
}

// LoadMap loads configuration from a map (useful for flags or testing).
// Keys may be nested maps or dotted paths.
func (l *Loader) LoadMap(data map[string]any) error {
	if err := l.k.Load(mapProvider(data), nil); err != nil {
		return fmt.Errorf("load map: %w", err)
	}
	return nil
}

// Unmarshal unmarshals the loaded configuration into the target struct.
// Uses koanf tags for struct field mapping.
func (l *Loader) Unmarshal(target any) error {
	return l.k.Unmarshal("", target)
}

// Get returns a value from the configuration by key.
func (l *Loader) Get(key string) any {
	return l.k.Get(key)
}

// GetString returns a string value from the configuration.
func (l *Loader) GetString(key string) string {
	return l.k.String(key)
}

// GetInt returns an int value from the configuration.
func (l *Loader) GetInt(key string) int {
	return l.k.Int(key)
}

// GetBool returns a bool value from the configuration.
func (l *Loader) GetBool(key string) bool {
	return l.k.Bool(key)
}

// IsLoaded returns true if configuration has been loaded.
func (l *Loader) IsLoaded() bool {
	return l.loaded
}

// All returns all configuration as a flattened map.
func (l *Loader) All() map[string]any {
	return l.k.All()
}

// Keys returns all configuration keys.
func (l *Loader) Keys() []string {
	return l.k.Keys()
}

// Package config provides the stashkv configuration.
//
// This package defines the configuration structure and validation:
//
//   - spec.go: Config struct definition
//   - default.go: Default configuration values
//   - verify.go: Validation of drivers, strategies, ciphers and durations
//   - sanitize.go: Log sanitization (hide encryption credentials)
//   - convert.go: Per-component configuration derived from a Config
//
// Configuration is loaded via internal/infra/confloader and supports
// YAML and TOML files, STASHKV_ environment variables and CLI flags.
package config

// Package config defines the stashkv configuration structure.
package config

import "strings"

// Sanitize returns a copy of the config with the encryption credentials
// masked, for logging and `stashkv config`.
func Sanitize(cfg *Config) *Config {
	sanitized := *cfg

	if sanitized.Encryption.Password != "" {
		sanitized.Encryption.Password = maskSecret(sanitized.Encryption.Password)
	}
	if sanitized.Encryption.Salt != "" {
		sanitized.Encryption.Salt = maskSecret(sanitized.Encryption.Salt)
	}

	return &sanitized
}

// maskSecret masks a secret value for safe logging.
func maskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}

package logger

import (
	"log/slog"
	"strings"
)

// envelopeMarker identifies a serialized encryption envelope.
const envelopeMarker = `"__kvenc"`

// Sensitive key patterns that should be redacted.
var sensitiveKeyPatterns = []string{
	"password",
	"passphrase",
	"salt",
	"secret",
	"credential",
	"ciphertext",
	"plaintext",
	"token",
	"auth",
}

// redactedValue is the placeholder for redacted sensitive data.
const redactedValue = "***REDACTED***"

// redactSensitive redacts attributes whose key names a secret and
// string values that carry an encryption envelope.
func redactSensitive(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindString:
		strVal := a.Value.String()
		if strVal == "" {
			return a
		}
		if IsSensitiveKey(a.Key) {
			return slog.String(a.Key, redactedValue)
		}
		if IsSensitiveValue(strVal) {
			return slog.String(a.Key, RedactString(strVal))
		}
	case slog.KindAny:
		if IsSensitiveKey(a.Key) && a.Value.Any() != nil {
			return slog.String(a.Key, redactedValue)
		}
	case slog.KindGroup:
		attrs := a.Value.Group()
		newAttrs := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			newAttrs[i] = redactSensitive(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(newAttrs...)}
	}
	return a
}

// maskValue keeps the first and last three characters of value.
func maskValue(value string) string {
	if len(value) <= 12 {
		return "***"
	}
	return value[:3] + "..." + value[len(value)-3:]
}

// RedactString manually redacts a string value. Envelopes are replaced
// wholesale; anything else is returned unchanged.
func RedactString(value string) string {
	if IsSensitiveValue(value) {
		return "<encrypted " + maskValue(value) + ">"
	}
	return value
}

// IsSensitiveKey checks if a key name suggests sensitive content.
func IsSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(keyLower, pattern) {
			return true
		}
	}
	return false
}

// IsSensitiveValue checks if a value looks like a serialized envelope.
func IsSensitiveValue(value string) bool {
	return strings.Contains(value, envelopeMarker)
}

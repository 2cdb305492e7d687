package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func newJSONLogger(t *testing.T) (*slog.Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	l, err := New(Config{Level: "info", Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return l, &buf
}

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to parse JSON log: %v", err)
	}
	return entry
}

func TestRedactSensitive_SensitiveKeyName(t *testing.T) {
	tests := []struct {
		key   string
		value any
	}{
		{"password", "hunter2"},
		{"db_password", "hunter2"},
		{"salt", "pepper"},
		{"Credential", "user:pw"},
		{"client_secret", "abc"},
		{"ciphertext", "AAAA"},
		{"credential", map[string]string{"password": "pw"}},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			l, buf := newJSONLogger(t)
			l.Info("test", tt.key, tt.value)

			entry := decodeEntry(t, buf)
			if entry[tt.key] != redactedValue {
				t.Errorf("%s = %v, want redacted", tt.key, entry[tt.key])
			}
		})
	}
}

func TestRedactSensitive_Envelope(t *testing.T) {
	l, buf := newJSONLogger(t)
	raw := `{"__kvenc":true,"alg":"chacha20-poly1305","fmt":"string","ct":"c2VjcmV0IHN0dWZm"}`
	l.Info("stored", "value", raw)

	entry := decodeEntry(t, buf)
	got, _ := entry["value"].(string)
	if got == raw || strings.Contains(got, "c2VjcmV0") {
		t.Errorf("envelope leaked: %s", got)
	}
	if !strings.HasPrefix(got, "<encrypted ") {
		t.Errorf("value = %q, want an <encrypted ...> placeholder", got)
	}
}

func TestRedactSensitive_NormalValues(t *testing.T) {
	l, buf := newJSONLogger(t)
	l.Info("test", "namespace", "sessions", "deleted", 3, "password", "")

	entry := decodeEntry(t, buf)
	if entry["namespace"] != "sessions" {
		t.Errorf("namespace = %v", entry["namespace"])
	}
	if entry["deleted"] != float64(3) {
		t.Errorf("deleted = %v", entry["deleted"])
	}
	if entry["password"] != "" {
		t.Errorf("empty password should stay empty, got %v", entry["password"])
	}
}

func TestRedactSensitive_Group(t *testing.T) {
	l, buf := newJSONLogger(t)
	l.WithGroup("encryption").Info("grouped", "salt", "s", "cipher", "aes-256-gcm")

	entry := decodeEntry(t, buf)
	group, _ := entry["encryption"].(map[string]any)
	if group["salt"] != redactedValue {
		t.Errorf("salt = %v, want redacted", group["salt"])
	}
	if group["cipher"] != "aes-256-gcm" {
		t.Errorf("cipher = %v", group["cipher"])
	}
}

func TestRedactString(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "hello", "hello"},
		{"empty", "", ""},
		{"short envelope", `"__kvenc"`, "<encrypted ***>"},
		{"long envelope", `{"__kvenc":true,"ct":"xyz"}`, `<encrypted {"_...z"}>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RedactString(tt.input); got != tt.want {
				t.Errorf("RedactString(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestIsSensitiveKey(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"password", true},
		{"PASSWORD", true},
		{"key_salt", true},
		{"auth_header", true},
		{"namespace", false},
		{"deleted", false},
		{"worker_id", false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := IsSensitiveKey(tt.key); got != tt.want {
				t.Errorf("IsSensitiveKey(%q) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}
}

func TestMaskValue(t *testing.T) {
	if got := maskValue("short"); got != "***" {
		t.Errorf("maskValue(short) = %q", got)
	}
	if got := maskValue("abcdefghijklmnop"); got != "abc...nop" {
		t.Errorf("maskValue = %q", got)
	}
}

package confloader

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type testConfig struct {
	Storage struct {
		Driver  string `koanf:"driver"`
		DataDir string `koanf:"data_dir"`
	} `koanf:"storage"`
	Expiration struct {
		Strategy   string        `koanf:"strategy"`
		DefaultTTL time.Duration `koanf:"default_ttl"`
	} `koanf:"expiration"`
	Encryption struct {
		Enabled    bool `koanf:"enabled"`
		Iterations int  `koanf:"iterations"`
	} `koanf:"encryption"`
}

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestNewLoader(t *testing.T) {
	l := NewLoader()
	if l.envPrefix != DefaultEnvPrefix {
		t.Errorf("envPrefix = %q, want %q", l.envPrefix, DefaultEnvPrefix)
	}

	l = NewLoader(WithEnvPrefix("TEST_"), WithConfigFile("/path/to/config.yaml"))
	if l.envPrefix != "TEST_" {
		t.Errorf("envPrefix = %q, want TEST_", l.envPrefix)
	}
	if l.filePath != "/path/to/config.yaml" {
		t.Errorf("filePath = %q", l.filePath)
	}
}

func TestLoader_LoadFile(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"yaml", "stashkv.yaml", `
storage:
  driver: badger
  data_dir: /var/lib/stashkv
expiration:
  default_ttl: 30m
`},
		{"json", "stashkv.json", `{"storage": {"driver": "badger", "data_dir": "/var/lib/stashkv"}, "expiration": {"default_ttl": "30m"}}`},
		{"toml", "stashkv.toml", `
[storage]
driver = "badger"
data_dir = "/var/lib/stashkv"

[expiration]
default_ttl = "30m"
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLoader()
			if err := l.LoadFile(writeConfig(t, tt.file, tt.content)); err != nil {
				t.Fatalf("LoadFile() error = %v", err)
			}
			if got := l.GetString("storage.driver"); got != "badger" {
				t.Errorf("storage.driver = %q, want badger", got)
			}

			var cfg testConfig
			if err := l.Unmarshal(&cfg); err != nil {
				t.Fatal(err)
			}
			if cfg.Storage.DataDir != "/var/lib/stashkv" {
				t.Errorf("DataDir = %q", cfg.Storage.DataDir)
			}
			if cfg.Expiration.DefaultTTL != 30*time.Minute {
				t.Errorf("DefaultTTL = %v, want 30m", cfg.Expiration.DefaultTTL)
			}
		})
	}
}

func TestLoader_LoadFile_Errors(t *testing.T) {
	l := NewLoader()
	if err := l.LoadFile("/nonexistent/config.yaml"); err == nil {
		t.Error("LoadFile() should return error for nonexistent file")
	}
	if err := l.LoadFile("/nonexistent/config.toml"); err == nil {
		t.Error("LoadFile() should return error for nonexistent TOML file")
	}
	if err := l.LoadFile(writeConfig(t, "bad.toml", "[storage\n")); err == nil {
		t.Error("LoadFile() should reject malformed TOML")
	}
	if err := l.LoadFile(""); err != nil {
		t.Errorf("LoadFile(\"\") should not error, got: %v", err)
	}
}

func TestLoader_LoadEnv(t *testing.T) {
	t.Setenv("STASHKV_STORAGE__DATA_DIR", "/srv/kv")
	t.Setenv("STASHKV_EXPIRATION__STRATEGY", "hybrid")

	l := NewLoader()
	if err := l.LoadEnv(); err != nil {
		t.Fatalf("LoadEnv() error = %v", err)
	}

	if got := l.GetString("storage.data_dir"); got != "/srv/kv" {
		t.Errorf("storage.data_dir = %q, want /srv/kv", got)
	}
	if got := l.GetString("expiration.strategy"); got != "hybrid" {
		t.Errorf("expiration.strategy = %q, want hybrid", got)
	}
}

func TestLoader_LoadEnv_CustomPrefix(t *testing.T) {
	t.Setenv("MYAPP_STORAGE__DRIVER", "sqlite")

	l := NewLoader(WithEnvPrefix("MYAPP_"))
	if err := l.LoadEnv(); err != nil {
		t.Fatalf("LoadEnv() error = %v", err)
	}

	if got := l.GetString("storage.driver"); got != "sqlite" {
		t.Errorf("storage.driver = %q, want sqlite", got)
	}
}

func TestLoader_LoadMap(t *testing.T) {
	l := NewLoader()
	err := l.LoadMap(map[string]any{
		"storage.driver":     "memory",
		"encryption.enabled": true,
		"expiration": map[string]any{
			"strategy": "immediate",
		},
	})
	if err != nil {
		t.Fatalf("LoadMap() error = %v", err)
	}

	var cfg testConfig
	if err := l.Unmarshal(&cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Storage.Driver != "memory" || !cfg.Encryption.Enabled || cfg.Expiration.Strategy != "immediate" {
		t.Errorf("Unmarshal() = %+v", cfg)
	}
}

func TestLoader_Load_Priority(t *testing.T) {
	path := writeConfig(t, "stashkv.yaml", `
storage:
  driver: badger
  data_dir: /from/file
`)
	t.Setenv("STASHKV_STORAGE__DATA_DIR", "/from/env")

	l := NewLoader(WithConfigFile(path))

	var cfg testConfig
	if err := l.Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Storage.DataDir != "/from/env" {
		t.Errorf("DataDir = %q, want /from/env (env should override file)", cfg.Storage.DataDir)
	}
	if cfg.Storage.Driver != "badger" {
		t.Errorf("Driver = %q, want badger", cfg.Storage.Driver)
	}

	if err := l.LoadMap(map[string]any{"storage.data_dir": "/from/flag"}); err != nil {
		t.Fatal(err)
	}
	if err := l.Unmarshal(&cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Storage.DataDir != "/from/flag" {
		t.Errorf("DataDir = %q, want /from/flag (flags should override env)", cfg.Storage.DataDir)
	}
}

func TestLoader_Load_KeepsDefaults(t *testing.T) {
	path := writeConfig(t, "stashkv.yaml", "storage:\n  driver: sqlite\n")

	var cfg testConfig
	cfg.Encryption.Iterations = 100000
	cfg.Expiration.Strategy = "proactive"

	if err := NewLoader(WithConfigFile(path)).Load(&cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Storage.Driver != "sqlite" {
		t.Errorf("Driver = %q, want sqlite", cfg.Storage.Driver)
	}
	if cfg.Encryption.Iterations != 100000 || cfg.Expiration.Strategy != "proactive" {
		t.Errorf("defaults were overwritten: %+v", cfg)
	}
}

func TestLoader_IsLoaded(t *testing.T) {
	l := NewLoader()
	if l.IsLoaded() {
		t.Error("IsLoaded() should be false before Load()")
	}

	var cfg testConfig
	if err := l.Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !l.IsLoaded() {
		t.Error("IsLoaded() should be true after Load()")
	}
}

func TestLoader_Accessors(t *testing.T) {
	l := NewLoader()
	_ = l.LoadMap(map[string]any{
		"encryption.iterations": 8080,
		"encryption.enabled":    true,
	})

	if got := l.GetInt("encryption.iterations"); got != 8080 {
		t.Errorf("GetInt() = %d, want 8080", got)
	}
	if !l.GetBool("encryption.enabled") {
		t.Error("GetBool() = false, want true")
	}
	if l.Get("encryption.missing") != nil {
		t.Error("Get() of a missing key should be nil")
	}
	if len(l.Keys()) != 2 || len(l.All()) != 2 {
		t.Errorf("Keys() = %v, All() = %v", l.Keys(), l.All())
	}
}

package config

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/celerix-dev/celerix-store/internal/storage"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		name, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(name, "CELERIX_") {
			t.Setenv(name, "")
			os.Unsetenv(name)
		}
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "celerix.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Server.Addr != DefaultAddr {
		t.Errorf("Server.Addr = %q, want %q", cfg.Server.Addr, DefaultAddr)
	}
	if cfg.Server.Limits.Connections != DefaultMaxConnections {
		t.Errorf("Limits.Connections = %d, want %d", cfg.Server.Limits.Connections, DefaultMaxConnections)
	}
	if cfg.Storage.Backend != storage.BackendFile {
		t.Errorf("Storage.Backend = %q", cfg.Storage.Backend)
	}
	if !cfg.Storage.Badger.Sync {
		t.Error("badger sync writes disabled by default")
	}
	if err := Verify(cfg); err != nil {
		t.Errorf("Verify(Default()) error = %v", err)
	}
}

func TestLoad_DefaultsMatchDefault(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(NewLoader(""))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("loaded defaults differ (-want +got):\n%s", diff)
	}
}

func TestLoad_Priority(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, `
server:
  addr: 127.0.0.1:7100
  timeouts:
    idle: 1m
storage:
  dir: /from/file
log:
  level: debug
`)
	t.Setenv("CELERIX_LOG_LEVEL", "warn")
	t.Setenv("CELERIX_STORAGE_BACKEND", "badger")

	l := NewLoader(path)
	if err := l.LoadMap(map[string]any{"storage.dir": "/from/flag"}); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(l)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Addr != "127.0.0.1:7100" {
		t.Errorf("Server.Addr = %q (file)", cfg.Server.Addr)
	}
	if cfg.Server.Timeouts.Idle != time.Minute {
		t.Errorf("Timeouts.Idle = %v (file)", cfg.Server.Timeouts.Idle)
	}
	if cfg.Server.Timeouts.Read != DefaultReadTimeout {
		t.Errorf("Timeouts.Read = %v (default)", cfg.Server.Timeouts.Read)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, env should override file", cfg.Log.Level)
	}
	if cfg.Storage.Backend != "badger" {
		t.Errorf("Storage.Backend = %q (env)", cfg.Storage.Backend)
	}
	if cfg.Storage.Dir != "/from/flag" {
		t.Errorf("Storage.Dir = %q, flag should win", cfg.Storage.Dir)
	}
}

func TestLoad_LegacyAliases(t *testing.T) {
	clearEnv(t)
	t.Setenv("CELERIX_PORT", "7555")
	t.Setenv("CELERIX_DATA_DIR", "/legacy")

	cfg, err := Load(NewLoader(""))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := cfg.Server.ListenAddr(); got != ":7555" {
		t.Errorf("ListenAddr() = %q, want :7555", got)
	}
	if cfg.Storage.Dir != "/legacy" {
		t.Errorf("Storage.Dir = %q, want /legacy", cfg.Storage.Dir)
	}
}

func TestLoad_Invalid(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "storage:\n  backend: tape\n")
	if _, err := Load(NewLoader(path)); err == nil {
		t.Fatal("Load() accepted unknown backend")
	}
}

func TestListenAddr(t *testing.T) {
	tests := []struct {
		addr, port, want string
	}{
		{":7001", "", ":7001"},
		{"127.0.0.1:7001", "8000", "127.0.0.1:8000"},
		{"bogus", "8000", ":8000"},
	}
	for _, tt := range tests {
		s := ServerSection{Addr: tt.addr, Port: tt.port}
		if got := s.ListenAddr(); got != tt.want {
			t.Errorf("ListenAddr(%q, %q) = %q, want %q", tt.addr, tt.port, got, tt.want)
		}
	}
}

func TestVerify(t *testing.T) {
	validKey := base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123"))

	tests := []struct {
		name    string
		mutate  func(*ServerConfig)
		wantErr string
	}{
		{name: "default", mutate: func(*ServerConfig) {}},
		{name: "valid key", mutate: func(c *ServerConfig) { c.Storage.Key = validKey }},
		{name: "bad addr", mutate: func(c *ServerConfig) { c.Server.Addr = "nope" }, wantErr: "server.addr"},
		{name: "negative limit", mutate: func(c *ServerConfig) { c.Server.Limits.Connections = -1 }, wantErr: "connections"},
		{name: "negative rate", mutate: func(c *ServerConfig) { c.Server.Limits.Rate = -5 }, wantErr: "rate"},
		{name: "tls without files", mutate: func(c *ServerConfig) { c.Server.TLS.Enabled = true }, wantErr: "server.tls"},
		{name: "missing cert", mutate: func(c *ServerConfig) {
			c.Server.TLS = TLSConfig{Enabled: true, Cert: "/nonexistent.crt", Key: "/nonexistent.key"}
		}, wantErr: "server.tls"},
		{name: "empty dir", mutate: func(c *ServerConfig) { c.Storage.Dir = "" }, wantErr: "storage.dir"},
		{name: "unknown cipher", mutate: func(c *ServerConfig) { c.Storage.Cipher = "rot13" }, wantErr: "storage.cipher"},
		{name: "key not base64", mutate: func(c *ServerConfig) { c.Storage.Key = "%%%" }, wantErr: "storage.key"},
		{name: "short key", mutate: func(c *ServerConfig) { c.Storage.Key = base64.StdEncoding.EncodeToString([]byte("short")) }, wantErr: "storage.key"},
		{name: "metrics addr", mutate: func(c *ServerConfig) { c.Metrics = MetricsSection{Enabled: true, Addr: "x"} }, wantErr: "metrics.addr"},
		{name: "log level", mutate: func(c *ServerConfig) { c.Log.Level = "chatty" }, wantErr: "log.level"},
		{name: "log format", mutate: func(c *ServerConfig) { c.Log.Format = "xml" }, wantErr: "log.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := Verify(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Verify() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Verify() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestStorageConfig(t *testing.T) {
	key := []byte("0123456789abcdef")
	cfg := Default()
	cfg.Storage.Dir = "/var/lib/celerix"
	cfg.Storage.Backend = storage.BackendBadger
	cfg.Storage.Key = base64.StdEncoding.EncodeToString(key)
	cfg.Storage.Badger = BadgerSection{GC: time.Minute, Sync: false}

	sc, err := cfg.StorageConfig()
	if err != nil {
		t.Fatalf("StorageConfig() error = %v", err)
	}
	if sc.Dir != "/var/lib/celerix" || sc.Backend != storage.BackendBadger {
		t.Errorf("StorageConfig() = %+v", sc)
	}
	if diff := cmp.Diff(key, sc.Key); diff != "" {
		t.Errorf("key mismatch (-want +got):\n%s", diff)
	}
	if sc.Badger.GCInterval != time.Minute || sc.Badger.SyncWrites {
		t.Errorf("badger config = %+v", sc.Badger)
	}
	if !sc.ImportLegacy {
		t.Error("legacy import disabled")
	}
}

func TestSanitize(t *testing.T) {
	cfg := Default()
	cfg.Storage.Key = "c3VwZXItc2VjcmV0LWtleQ=="

	sanitized := Sanitize(cfg)
	if cfg.Storage.Key != "c3VwZXItc2VjcmV0LWtleQ==" {
		t.Error("original config modified")
	}
	if sanitized.Storage.Key != secretMask {
		t.Errorf("storage key = %q, want %q", sanitized.Storage.Key, secretMask)
	}
	if Sanitize(Default()).Storage.Key != "" {
		t.Error("empty key should stay empty")
	}
}

func TestMaskSecret(t *testing.T) {
	tests := map[string]string{
		"":                         "",
		"a":                        secretMask,
		"abcdef":                   secretMask,
		"c3VwZXItc2VjcmV0LWtleQ==": secretMask,
	}
	for in, want := range tests {
		if got := maskSecret(in); got != want {
			t.Errorf("maskSecret(%q) = %q, want %q", in, got, want)
		}
	}
}

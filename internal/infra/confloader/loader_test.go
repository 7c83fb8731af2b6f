package confloader

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type testConfig struct {
	Server struct {
		Addr     string        `koanf:"addr"`
		Port     int           `koanf:"port"`
		Timeouts struct {
			Read time.Duration `koanf:"read"`
		} `koanf:"timeouts"`
	} `koanf:"server"`
	Log struct {
		Level string `koanf:"level"`
	} `koanf:"log"`
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "celerix.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestNewLoader_WithOptions(t *testing.T) {
	l := NewLoader()
	if l.envPrefix != DefaultEnvPrefix {
		t.Errorf("envPrefix = %q, want %q", l.envPrefix, DefaultEnvPrefix)
	}

	l = NewLoader(WithEnvPrefix("TEST_"), WithConfigFile("/path/to/config.yaml"))
	if l.envPrefix != "TEST_" {
		t.Errorf("envPrefix = %q, want %q", l.envPrefix, "TEST_")
	}
	if l.FilePath() != "/path/to/config.yaml" {
		t.Errorf("FilePath() = %q", l.FilePath())
	}
}

func TestLoader_LoadFile(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: "0.0.0.0:7001"
  timeouts:
    read: 45s
`)
	l := NewLoader()
	if err := l.LoadFile(path); err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if addr := l.GetString("server.addr"); addr != "0.0.0.0:7001" {
		t.Errorf("server.addr = %q", addr)
	}

	if err := l.LoadFile("/nonexistent/config.yaml"); err == nil {
		t.Error("LoadFile() should fail for a missing file")
	}
	if err := l.LoadFile(""); err != nil {
		t.Errorf("LoadFile(\"\") error = %v", err)
	}
}

func TestLoader_LoadEnv(t *testing.T) {
	t.Setenv("CELERIX_SERVER_ADDR", "127.0.0.1:9001")

	l := NewLoader()
	if err := l.LoadEnv(); err != nil {
		t.Fatalf("LoadEnv() error = %v", err)
	}
	if addr := l.GetString("server.addr"); addr != "127.0.0.1:9001" {
		t.Errorf("server.addr = %q", addr)
	}
}

func TestLoader_Load_Priority(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: "from-file:7001"
  port: 1
log:
  level: warn
`)
	t.Setenv("CELERIX_SERVER_ADDR", "from-env:7001")
	t.Setenv("CELERIX_PORT", "7002")

	l := NewLoader(
		WithConfigFile(path),
		WithDefaults(map[string]any{
			"server.addr":          "default:7001",
			"server.timeouts.read": "30s",
			"log.level":            "info",
		}),
		WithEnvAliases(map[string]string{"CELERIX_PORT": "server.port"}),
	)

	var cfg testConfig
	if err := l.Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Addr != "from-env:7001" {
		t.Errorf("Addr = %q, env should override file", cfg.Server.Addr)
	}
	if cfg.Server.Port != 7002 {
		t.Errorf("Port = %d, alias should override file", cfg.Server.Port)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Level = %q, file should override defaults", cfg.Log.Level)
	}
	if cfg.Server.Timeouts.Read != 30*time.Second {
		t.Errorf("Timeouts.Read = %v, want default 30s", cfg.Server.Timeouts.Read)
	}
	if !l.IsLoaded() {
		t.Error("IsLoaded() should be true after Load()")
	}
}

func TestLoader_LoadMap_SurvivesReload(t *testing.T) {
	path := writeConfig(t, "log:\n  level: info\nserver:\n  addr: file:1\n")

	l := NewLoader(WithConfigFile(path))
	var cfg testConfig
	if err := l.Load(&cfg); err != nil {
		t.Fatal(err)
	}
	if err := l.LoadMap(map[string]any{"server.addr": "flag:1"}); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(path, []byte("log:\n  level: debug\nserver:\n  addr: file:2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := l.Reload(&cfg); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Level = %q after reload, want debug", cfg.Log.Level)
	}
	if cfg.Server.Addr != "flag:1" {
		t.Errorf("Addr = %q, flag override lost on reload", cfg.Server.Addr)
	}
}

func TestLoader_ReloadKeepsStateOnError(t *testing.T) {
	path := writeConfig(t, "log:\n  level: info\n")
	l := NewLoader(WithConfigFile(path))
	var cfg testConfig
	if err := l.Load(&cfg); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(path, []byte("log: [unbalanced\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := l.Reload(&cfg); err == nil {
		t.Fatal("Reload() should fail on invalid YAML")
	}
	if got := l.GetString("log.level"); got != "info" {
		t.Errorf("log.level = %q after failed reload, want info", got)
	}
}

func TestLoader_MapAccessors(t *testing.T) {
	l := NewLoader()
	if err := l.LoadMap(map[string]any{
		"server.port": 7001,
		"debug":       true,
	}); err != nil {
		t.Fatal(err)
	}

	if port := l.GetInt("server.port"); port != 7001 {
		t.Errorf("GetInt(server.port) = %d", port)
	}
	if !l.GetBool("debug") {
		t.Error("debug should be true")
	}
	if len(l.Keys()) != 2 || len(l.All()) != 2 {
		t.Errorf("Keys() = %v, All() = %v", l.Keys(), l.All())
	}
	if l.Get("missing") != nil {
		t.Error("Get(missing) should be nil")
	}
}

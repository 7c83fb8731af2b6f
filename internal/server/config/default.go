package config

import (
	"time"

	"github.com/celerix-dev/celerix-store/internal/storage"
	"github.com/celerix-dev/celerix-store/pkg/crypto/adaptive"
	"github.com/celerix-dev/celerix-store/pkg/protocol"
)

// Default configuration values.
const (
	DefaultAddr           = ":7001"
	DefaultMaxConnections = 100
	DefaultReadTimeout    = 30 * time.Second
	DefaultWriteTimeout   = 30 * time.Second
	DefaultIdleTimeout    = 5 * time.Minute

	DefaultDataDir  = "data"
	DefaultBadgerGC = 10 * time.Minute

	DefaultMetricsAddr = "127.0.0.1:9101"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultShutdownTimeout = 15 * time.Second
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			Addr: DefaultAddr,
			Limits: LimitsConfig{
				Connections: DefaultMaxConnections,
				FrameSize:   protocol.DefaultMaxBulkLen,
			},
			Timeouts: TimeoutsConfig{
				Read:  DefaultReadTimeout,
				Write: DefaultWriteTimeout,
				Idle:  DefaultIdleTimeout,
			},
		},
		Storage: StorageSection{
			Dir:     DefaultDataDir,
			Backend: storage.BackendFile,
			Cipher:  string(adaptive.CipherAESGCM),
			Legacy:  true,
			Badger: BadgerSection{
				GC:   DefaultBadgerGC,
				Sync: true,
			},
		},
		Metrics: MetricsSection{
			Addr: DefaultMetricsAddr,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Shutdown: ShutdownSection{
			Timeout: DefaultShutdownTimeout,
		},
	}
}

// DefaultMap returns Default as a confloader defaults map.
func DefaultMap() map[string]any {
	d := Default()
	return map[string]any{
		"server.addr":               d.Server.Addr,
		"server.limits.connections": d.Server.Limits.Connections,
		"server.limits.rate":        d.Server.Limits.Rate,
		"server.limits.framesize":   d.Server.Limits.FrameSize,
		"server.timeouts.read":      d.Server.Timeouts.Read.String(),
		"server.timeouts.write":     d.Server.Timeouts.Write.String(),
		"server.timeouts.idle":      d.Server.Timeouts.Idle.String(),
		"storage.dir":               d.Storage.Dir,
		"storage.backend":           d.Storage.Backend,
		"storage.cipher":            d.Storage.Cipher,
		"storage.legacy":            d.Storage.Legacy,
		"storage.badger.gc":         d.Storage.Badger.GC.String(),
		"storage.badger.sync":       d.Storage.Badger.Sync,
		"metrics.enabled":           d.Metrics.Enabled,
		"metrics.addr":              d.Metrics.Addr,
		"log.level":                 d.Log.Level,
		"log.format":                d.Log.Format,
		"shutdown.timeout":          d.Shutdown.Timeout.String(),
	}
}

// StorageConfig maps the storage section onto a backend configuration.
func (c *ServerConfig) StorageConfig() (storage.Config, error) {
	cfg := storage.DefaultConfig(c.Storage.Dir)
	if c.Storage.Backend != "" {
		cfg.Backend = c.Storage.Backend
	}
	if c.Storage.Cipher != "" {
		cfg.Cipher = c.Storage.Cipher
	}
	cfg.ImportLegacy = c.Storage.Legacy
	cfg.Badger.SyncWrites = c.Storage.Badger.Sync
	if c.Storage.Badger.GC > 0 {
		cfg.Badger.GCInterval = c.Storage.Badger.GC
	}
	key, err := c.StorageKey()
	if err != nil {
		return storage.Config{}, err
	}
	cfg.Key = key
	return cfg, nil
}

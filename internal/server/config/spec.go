package config

import "time"

// ServerConfig is the root configuration for celerix-stored.
type ServerConfig struct {
	Server   ServerSection   `koanf:"server"`
	Storage  StorageSection  `koanf:"storage"`
	Metrics  MetricsSection  `koanf:"metrics"`
	Log      LogSection      `koanf:"log"`
	Shutdown ShutdownSection `koanf:"shutdown"`
}

// ServerSection configures the TCP endpoint.
type ServerSection struct {
	Addr string `koanf:"addr"`
	// Port, when set, replaces the port of Addr. Kept for CELERIX_PORT.
	Port     string         `koanf:"port"`
	TLS      TLSConfig      `koanf:"tls"`
	Limits   LimitsConfig   `koanf:"limits"`
	Timeouts TimeoutsConfig `koanf:"timeouts"`
}

// TLSConfig configures TLS for the store protocol.
type TLSConfig struct {
	Enabled bool   `koanf:"enabled"`
	Cert    string `koanf:"cert"`
	Key     string `koanf:"key"`
	// ClientCA requires client certificates signed by this bundle.
	ClientCA string `koanf:"clientca"`
}

// LimitsConfig bounds resource use per server and per connection.
type LimitsConfig struct {
	Connections int `koanf:"connections"`
	// Rate is requests per second per connection; 0 disables limiting.
	Rate int `koanf:"rate"`
	// FrameSize bounds one protocol element in bytes.
	FrameSize int `koanf:"framesize"`
}

// TimeoutsConfig configures connection deadlines.
type TimeoutsConfig struct {
	Read  time.Duration `koanf:"read"`
	Write time.Duration `koanf:"write"`
	Idle  time.Duration `koanf:"idle"`
}

// StorageSection configures the persistence backend.
type StorageSection struct {
	Dir     string `koanf:"dir"`
	Backend string `koanf:"backend"`
	// Key is the base64 master key for at-rest encryption.
	Key    string        `koanf:"key"`
	Cipher string        `koanf:"cipher"`
	Legacy bool          `koanf:"legacy"`
	Badger BadgerSection `koanf:"badger"`
}

// BadgerSection tunes the badger backend.
type BadgerSection struct {
	GC   time.Duration `koanf:"gc"`
	Sync bool          `koanf:"sync"`
}

// MetricsSection configures the Prometheus endpoint.
type MetricsSection struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// ShutdownSection bounds graceful shutdown.
type ShutdownSection struct {
	Timeout time.Duration `koanf:"timeout"`
}

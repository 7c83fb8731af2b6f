package config

import (
	"github.com/celerix-dev/celerix-store/internal/infra/confloader"
)

// LegacyEnvAliases maps the environment of the first daemon releases.
var LegacyEnvAliases = map[string]string{
	"CELERIX_PORT":     "server.port",
	"CELERIX_DATA_DIR": "storage.dir",
}

// NewLoader returns a loader with defaults, the optional file and the
// legacy aliases installed.
func NewLoader(path string) *confloader.Loader {
	opts := []confloader.Option{
		confloader.WithDefaults(DefaultMap()),
		confloader.WithEnvAliases(LegacyEnvAliases),
	}
	if path != "" {
		opts = append(opts, confloader.WithConfigFile(path))
	}
	return confloader.NewLoader(opts...)
}

// Load reads and verifies the configuration through l.
func Load(l *confloader.Loader) (*ServerConfig, error) {
	cfg := &ServerConfig{}
	if err := l.Load(cfg); err != nil {
		return nil, err
	}
	if err := Verify(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

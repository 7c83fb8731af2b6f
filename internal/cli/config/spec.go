package config

import "time"

// CLIConfig is the configuration for celerix-cli.
type CLIConfig struct {
	// DataDir is used in embedded mode.
	DataDir string `yaml:"data_dir,omitempty"`
	// Addr selects remote mode.
	Addr string `yaml:"addr,omitempty"`

	CAFile   string `yaml:"ca_file,omitempty"`
	Insecure bool   `yaml:"insecure,omitempty"`
	// TLS is used for remote mode unless false.
	TLS *bool `yaml:"tls,omitempty"`

	Output  string        `yaml:"output,omitempty"` // table, json, yaml
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// VaultKeyFile holds the default vault key.
	VaultKeyFile string `yaml:"vault_key_file,omitempty"`
}

// Default returns the default CLI configuration.
func Default() *CLIConfig {
	return &CLIConfig{
		DataDir: "data",
		Output:  "table",
		Timeout: 10 * time.Second,
	}
}

// TLSEnabled reports whether remote connections use TLS.
func (c *CLIConfig) TLSEnabled() bool {
	return c.TLS == nil || *c.TLS
}

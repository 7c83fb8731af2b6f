// Package config defines the celerix-cli configuration file.
//
// The file lives at ~/.celerix/cli.yaml and holds defaults for the
// global flags. A missing file is not an error.
package config

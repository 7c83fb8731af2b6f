// Package confloader loads layered configuration with koanf.
//
// Sources, lowest priority first:
//
//  1. Defaults (WithDefaults)
//  2. YAML file (WithConfigFile)
//  3. Legacy environment aliases (WithEnvAliases)
//  4. Environment variables with the CELERIX_ prefix
//  5. Explicit overrides such as command-line flags (LoadMap after Load)
//
// Environment names map to keys by dropping the prefix, lowercasing and
// turning underscores into dots: CELERIX_SERVER_ADDR is server.addr.
//
// Watcher reports changes to configuration files so a daemon can call
// Reload and apply settings that are safe to change at runtime.
package confloader

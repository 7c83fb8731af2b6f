package config

// secretMask replaces every secret in sanitized output.
const secretMask = "********"

// Sanitize returns a copy of the config with sensitive fields masked.
//
// This is used for logging configuration without exposing secrets.
func Sanitize(cfg *ServerConfig) *ServerConfig {
	sanitized := *cfg
	sanitized.Storage.Key = maskSecret(sanitized.Storage.Key)
	return &sanitized
}

// maskSecret hides a secret entirely. Empty stays empty so logs still
// show whether a secret is configured.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	return secretMask
}

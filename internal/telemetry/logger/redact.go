package logger

import (
	"log/slog"
	"strings"
)

// Attribute names containing one of these are redacted.
var sensitiveKeyPatterns = []string{
	"password",
	"passphrase",
	"secret",
	"token",
	"credential",
}

// redactedValue is the placeholder for redacted sensitive data.
const redactedValue = "***REDACTED***"

// redactSensitive masks non-empty values of sensitive attributes and
// recurses into groups.
func redactSensitive(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		redacted := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			redacted[i] = redactSensitive(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(redacted...)}
	}

	if !IsSensitiveKey(a.Key) {
		return a
	}
	switch a.Value.Kind() {
	case slog.KindString:
		if a.Value.String() == "" {
			return a
		}
	case slog.KindAny:
		if a.Value.Any() == nil {
			return a
		}
	default:
		return a
	}
	return slog.String(a.Key, redactedValue)
}

// IsSensitiveKey reports whether an attribute name suggests a secret.
// Store keys are logged under "key" and stay visible; names ending in
// "_key" (master_key, vault_key) are secrets.
func IsSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	if strings.HasSuffix(k, "_key") || strings.HasSuffix(k, "-key") {
		return true
	}
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(k, pattern) {
			return true
		}
	}
	return false
}

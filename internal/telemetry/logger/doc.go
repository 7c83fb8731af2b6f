// Package logger configures structured logging for celerix-store.
//
// It builds log/slog handlers:
//
//   - logger.go: handler construction and the process-wide dynamic level
//   - context.go: loggers and request IDs carried in a context
//   - redact.go: masking of secrets in attribute values
//
// Components take a *slog.Logger; this package only decides how
// records are formatted and filtered.
package logger

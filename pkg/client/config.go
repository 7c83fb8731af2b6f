package client

import (
	"crypto/tls"
	"log/slog"
	"time"

	"github.com/celerix-dev/celerix-store/pkg/domain"
	"github.com/celerix-dev/celerix-store/pkg/protocol"
)

// Config holds the client configuration.
type Config struct {
	// Addr is the server address, host:port.
	Addr string
	// TLSConfig enables TLS when non-nil.
	TLSConfig *tls.Config

	DialTimeout    time.Duration
	RequestTimeout time.Duration

	BaseBackoff time.Duration
	MaxBackoff  time.Duration

	// FailFast returns domain.ErrDisconnected instead of waiting for a
	// reconnect.
	FailFast bool
	// RetryReads retries idempotent operations after transport failures.
	RetryReads bool
	// RetryWrites also retries SET, DEL and MOVE (at-least-once).
	RetryWrites bool
	// MaxRetries bounds retries per call.
	MaxRetries int

	// MaxFrameSize bounds one response element.
	MaxFrameSize int

	Logger *slog.Logger
}

// DefaultConfig returns the default configuration for addr.
func DefaultConfig(addr string) Config {
	return Config{
		Addr:           addr,
		DialTimeout:    5 * time.Second,
		RequestTimeout: 10 * time.Second,
		BaseBackoff:    100 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
		MaxRetries:     3,
		MaxFrameSize:   protocol.DefaultMaxBulkLen,
	}
}

func (c Config) withDefaults() (Config, error) {
	if c.Addr == "" {
		return c, domain.ErrInvalidArgument.WithDetails("client address is required")
	}
	def := DefaultConfig(c.Addr)
	if c.DialTimeout <= 0 {
		c.DialTimeout = def.DialTimeout
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = def.BaseBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = def.MaxBackoff
	}
	if c.MaxBackoff < c.BaseBackoff {
		c.MaxBackoff = c.BaseBackoff
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.MaxFrameSize <= 0 {
		c.MaxFrameSize = def.MaxFrameSize
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c, nil
}

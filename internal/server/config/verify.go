package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/celerix-dev/celerix-store/internal/storage"
	"github.com/celerix-dev/celerix-store/internal/telemetry/logger"
	"github.com/celerix-dev/celerix-store/pkg/crypto/adaptive"
)

// minStorageKeyLen is the shortest accepted at-rest master key.
const minStorageKeyLen = 16

// Verify validates the configuration.
func Verify(cfg *ServerConfig) error {
	var errs []error
	errs = append(errs, verifyServer(&cfg.Server)...)
	errs = append(errs, verifyStorage(cfg)...)
	errs = append(errs, verifyMetrics(&cfg.Metrics)...)
	if _, err := logger.ParseLevel(cfg.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch cfg.Log.Format {
	case "", "json", "text", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", cfg.Log.Format))
	}
	return errors.Join(errs...)
}

func verifyServer(cfg *ServerSection) []error {
	var errs []error
	if _, _, err := net.SplitHostPort(cfg.ListenAddr()); err != nil {
		errs = append(errs, fmt.Errorf("server.addr: %w", err))
	}
	if cfg.Limits.Connections < 0 {
		errs = append(errs, errors.New("server.limits.connections must not be negative"))
	}
	if cfg.Limits.Rate < 0 {
		errs = append(errs, errors.New("server.limits.rate must not be negative"))
	}
	if cfg.TLS.Enabled {
		if cfg.TLS.Cert == "" || cfg.TLS.Key == "" {
			errs = append(errs, errors.New("server.tls.cert and server.tls.key are required when TLS is enabled"))
		}
		for _, f := range []string{cfg.TLS.Cert, cfg.TLS.Key, cfg.TLS.ClientCA} {
			if f == "" {
				continue
			}
			if _, err := os.Stat(f); err != nil {
				errs = append(errs, fmt.Errorf("server.tls: %w", err))
			}
		}
	}
	return errs
}

func verifyStorage(cfg *ServerConfig) []error {
	var errs []error
	s := &cfg.Storage
	if s.Dir == "" {
		errs = append(errs, errors.New("storage.dir is required"))
	}
	switch s.Backend {
	case "", storage.BackendFile, storage.BackendBadger:
	default:
		errs = append(errs, fmt.Errorf("storage.backend: unknown backend %q", s.Backend))
	}
	if s.Cipher != "" {
		if _, err := adaptive.ParseType(s.Cipher); err != nil {
			errs = append(errs, fmt.Errorf("storage.cipher: %w", err))
		}
	}
	if _, err := cfg.StorageKey(); err != nil {
		errs = append(errs, err)
	}
	return errs
}

func verifyMetrics(cfg *MetricsSection) []error {
	if !cfg.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(cfg.Addr); err != nil {
		return []error{fmt.Errorf("metrics.addr: %w", err)}
	}
	return nil
}

// ListenAddr returns Addr with Port applied.
func (s *ServerSection) ListenAddr() string {
	if s.Port == "" {
		return s.Addr
	}
	host, _, err := net.SplitHostPort(s.Addr)
	if err != nil {
		host = ""
	}
	return net.JoinHostPort(host, s.Port)
}

// StorageKey decodes the at-rest master key. No key means no encryption.
func (c *ServerConfig) StorageKey() ([]byte, error) {
	if c.Storage.Key == "" {
		return nil, nil
	}
	key, err := base64.StdEncoding.DecodeString(c.Storage.Key)
	if err != nil {
		return nil, fmt.Errorf("storage.key: not base64: %w", err)
	}
	if len(key) < minStorageKeyLen {
		return nil, fmt.Errorf("storage.key: %d bytes, need at least %d", len(key), minStorageKeyLen)
	}
	return key, nil
}

package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/celerix-dev/celerix-store/internal/storage/snapshot"
	"github.com/celerix-dev/celerix-store/pkg/codec"
	"github.com/celerix-dev/celerix-store/pkg/crypto/adaptive"
	"github.com/celerix-dev/celerix-store/pkg/vault"
)

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendBadger = "badger"
)

// atRestInfo binds storage keys derived from the master key to this use.
const atRestInfo = "celerix-store/at-rest/v1"

// Backend persists App snapshots.
type Backend interface {
	// Load returns the App's snapshot; a missing App is an empty snapshot.
	Load(ctx context.Context, persona, app string) (codec.Snapshot, error)

	// Save atomically replaces the App's snapshot. An empty snapshot
	// removes the App.
	Save(ctx context.Context, persona, app string, snap codec.Snapshot) error

	// Remove deletes the App. Removing a missing App is a no-op.
	Remove(ctx context.Context, persona, app string) error

	// ListPersonas returns, sorted, personas owning at least one App.
	ListPersonas(ctx context.Context) ([]string, error)

	// ListApps returns the persona's Apps, sorted.
	ListApps(ctx context.Context, persona string) ([]string, error)

	Close() error
}

// Config selects and configures a backend.
type Config struct {
	// Backend is BackendFile (default) or BackendBadger.
	Backend string

	// Dir is the data directory.
	Dir string

	// Key enables at-rest encryption. Any length >= 16; the actual
	// cipher key is derived with HKDF.
	Key []byte

	// Cipher names the at-rest algorithm for the file backend.
	Cipher string

	// ImportLegacy converts single-file personas on open (file backend).
	ImportLegacy bool

	Badger BadgerConfig

	Logger *slog.Logger

	// Registerer receives backend metrics when non-nil.
	Registerer prometheus.Registerer
}

// DefaultConfig returns the default configuration for dir.
func DefaultConfig(dir string) Config {
	return Config{
		Backend: BackendFile,
		Dir:     dir,
		Cipher:  string(adaptive.CipherAESGCM),
		Badger:  DefaultBadgerConfig(),
	}
}

// Open creates the configured backend and prepares it for use: stale
// temp files are removed and, if requested, legacy files imported.
func Open(ctx context.Context, cfg Config) (Backend, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var subkey []byte
	if len(cfg.Key) > 0 {
		k, err := vault.DeriveSubkey(cfg.Key, atRestInfo)
		if err != nil {
			return nil, fmt.Errorf("storage: at-rest key: %w", err)
		}
		subkey = k
	}

	switch cfg.Backend {
	case "", BackendFile:
		return openFile(ctx, cfg, subkey, logger)
	case BackendBadger:
		b, err := NewBadgerBackend(cfg.Dir, subkey, cfg.Badger, logger)
		if err != nil {
			return nil, err
		}
		if cfg.Registerer != nil {
			if err := b.RegisterMetrics(cfg.Registerer); err != nil {
				b.Close()
				return nil, err
			}
		}
		return b, nil
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", cfg.Backend)
	}
}

func openFile(ctx context.Context, cfg Config, subkey []byte, logger *slog.Logger) (Backend, error) {
	var c adaptive.Cipher
	if subkey != nil {
		typ, err := adaptive.ParseType(cfg.Cipher)
		if err != nil {
			return nil, fmt.Errorf("storage: %w", err)
		}
		if c, err = adaptive.NewWithType(subkey, typ); err != nil {
			return nil, fmt.Errorf("storage: %w", err)
		}
	}

	s, err := snapshot.New(snapshot.Config{Dir: cfg.Dir, Cipher: c, Logger: logger})
	if err != nil {
		return nil, err
	}
	if _, err := s.Cleanup(); err != nil {
		return nil, err
	}
	if cfg.ImportLegacy {
		if _, err := s.ImportLegacy(ctx); err != nil {
			return nil, err
		}
	}
	return s, nil
}

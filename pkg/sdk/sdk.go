package sdk

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	"github.com/celerix-dev/celerix-store/internal/infra/confloader"
	"github.com/celerix-dev/celerix-store/internal/infra/tlsroots"
	"github.com/celerix-dev/celerix-store/internal/storage"
	"github.com/celerix-dev/celerix-store/pkg/client"
	"github.com/celerix-dev/celerix-store/pkg/store"
)

// DefaultDataDir is used when no data directory is configured.
const DefaultDataDir = "data"

// pingTimeout bounds the initial PING of a remote store.
const pingTimeout = 5 * time.Second

// Mode is the way a store reaches its data.
type Mode string

const (
	ModeEmbedded Mode = "embedded"
	ModeRemote   Mode = "remote"
)

// Options configures Open.
type Options struct {
	// DataDir is the embedded data directory.
	DataDir string
	// Backend is the embedded storage backend, "file" (default) or "badger".
	Backend string
	// StorageKey enables at-rest encryption of embedded data.
	StorageKey []byte

	// Addr selects remote mode.
	Addr string
	// TLSConfig enables TLS to the daemon.
	TLSConfig *tls.Config
	// Client overrides client settings; Addr and TLSConfig above win.
	Client *client.Config

	// FallbackToEmbedded opens DataDir when the daemon is unreachable.
	FallbackToEmbedded bool

	Logger *slog.Logger
}

// Open returns a remote store when opts.Addr is set and an embedded one
// otherwise.
func Open(ctx context.Context, opts Options) (store.Store, error) {
	s, _, err := open(ctx, opts)
	return s, err
}

// OpenWithMode is Open that also reports the mode chosen, which differs
// from what opts asked for after a fallback.
func OpenWithMode(ctx context.Context, opts Options) (store.Store, Mode, error) {
	return open(ctx, opts)
}

func open(ctx context.Context, opts Options) (store.Store, Mode, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if opts.Addr != "" {
		s, err := openRemote(ctx, opts, logger)
		if err == nil {
			logger.Info("store opened", "mode", ModeRemote, "addr", opts.Addr)
			return s, ModeRemote, nil
		}
		if !opts.FallbackToEmbedded {
			return nil, "", err
		}
		logger.Warn("remote store unavailable, using embedded store",
			"addr", opts.Addr, "error", err)
	}

	s, err := openEmbedded(ctx, opts, logger)
	if err != nil {
		return nil, "", err
	}
	logger.Info("store opened", "mode", ModeEmbedded, "dir", opts.DataDir)
	return s, ModeEmbedded, nil
}

func openRemote(ctx context.Context, opts Options, logger *slog.Logger) (store.Store, error) {
	cfg := client.DefaultConfig(opts.Addr)
	if opts.Client != nil {
		cfg = *opts.Client
		cfg.Addr = opts.Addr
	}
	if opts.TLSConfig != nil {
		cfg.TLSConfig = opts.TLSConfig
	}
	if cfg.Logger == nil {
		cfg.Logger = logger
	}

	c, err := client.Dial(ctx, cfg)
	if err != nil {
		return nil, err
	}

	pctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := c.Ping(pctx); err != nil {
		c.Close()
		return nil, fmt.Errorf("sdk: ping %s: %w", opts.Addr, err)
	}
	return store.Wrap(c), nil
}

func openEmbedded(ctx context.Context, opts Options, logger *slog.Logger) (store.Store, error) {
	dir := opts.DataDir
	if dir == "" {
		dir = DefaultDataDir
	}
	cfg := storage.DefaultConfig(dir)
	if opts.Backend != "" {
		cfg.Backend = opts.Backend
	}
	cfg.Key = opts.StorageKey
	cfg.Logger = logger
	cfg.ImportLegacy = true

	h, err := store.Open(ctx, cfg, store.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	return h, nil
}

type envConfig struct {
	Store struct {
		Addr string `koanf:"addr"`
	} `koanf:"store"`
	Disable struct {
		TLS string `koanf:"tls"`
	} `koanf:"disable"`
	CA struct {
		File string `koanf:"file"`
	} `koanf:"ca"`
	Data struct {
		Dir string `koanf:"dir"`
	} `koanf:"data"`
}

// OpenFromEnv opens a remote store when CELERIX_STORE_ADDR is set, with
// TLS unless CELERIX_DISABLE_TLS is "true". An unreachable daemon falls
// back to the embedded store in dataDir, or CELERIX_DATA_DIR when
// dataDir is empty.
func OpenFromEnv(ctx context.Context, dataDir string) (store.Store, error) {
	opts, err := optionsFromEnv(dataDir)
	if err != nil {
		return nil, err
	}
	return Open(ctx, opts)
}

func optionsFromEnv(dataDir string) (Options, error) {
	var env envConfig
	loader := confloader.NewLoader(confloader.WithEnvPrefix(confloader.DefaultEnvPrefix))
	if err := loader.Load(&env); err != nil {
		return Options{}, fmt.Errorf("sdk: %w", err)
	}

	opts := Options{
		DataDir:            dataDir,
		Addr:               env.Store.Addr,
		FallbackToEmbedded: true,
	}
	if opts.DataDir == "" {
		opts.DataDir = env.Data.Dir
	}
	if opts.Addr != "" && env.Disable.TLS != "true" {
		tc, err := tlsroots.ClientTLS(tlsroots.ClientOptions{CAFile: env.CA.File})
		if err != nil {
			return Options{}, fmt.Errorf("sdk: %w", err)
		}
		opts.TLSConfig = tc
	}
	return opts, nil
}

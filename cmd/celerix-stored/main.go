package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/celerix-dev/celerix-store/internal/infra/buildinfo"
	"github.com/celerix-dev/celerix-store/internal/infra/confloader"
	"github.com/celerix-dev/celerix-store/internal/infra/shutdown"
	"github.com/celerix-dev/celerix-store/internal/infra/tlsroots"
	"github.com/celerix-dev/celerix-store/internal/server/config"
	"github.com/celerix-dev/celerix-store/internal/server/httpserver"
	"github.com/celerix-dev/celerix-store/internal/server/storeserver"
	"github.com/celerix-dev/celerix-store/internal/telemetry/logger"
	"github.com/celerix-dev/celerix-store/internal/telemetry/metric"
	"github.com/celerix-dev/celerix-store/pkg/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		dataDir     = flag.String("data-dir", "", "Data directory (overrides storage.dir)")
		port        = flag.String("port", "", "Listen port (overrides server.port)")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("celerix-stored %s\n", buildinfo.Get().String())
		return nil
	}

	loader := config.NewLoader(*configFile)
	overrides := map[string]any{}
	if *dataDir != "" {
		overrides["storage.dir"] = *dataDir
	}
	if *port != "" {
		overrides["server.port"] = *port
	}
	if len(overrides) > 0 {
		if err := loader.LoadMap(overrides); err != nil {
			return fmt.Errorf("flags: %w", err)
		}
	}

	cfg, err := config.Load(loader)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.Setup(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	info := buildinfo.Get()
	log.Info("starting celerix-stored",
		"version", info.Version,
		"commit", info.Commit,
		"config", *configFile)
	log.Debug("effective configuration", "config", config.Sanitize(cfg))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sh := shutdown.NewHandler(cfg.Shutdown.Timeout, log)

	reg := metric.NewRegistry()

	storageCfg, err := cfg.StorageConfig()
	if err != nil {
		return err
	}
	storageCfg.Logger = log
	storageCfg.Registerer = reg

	locks := store.NewLockTable()
	st, err := store.OpenEmbedded(ctx, storageCfg, store.WithLogger(log), store.WithLockTable(locks))
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	sh.OnShutdown("storage", shutdown.CloserHook(st.Close))

	if personas, err := st.GetPersonas(ctx); err == nil {
		log.Info("storage opened",
			"dir", cfg.Storage.Dir,
			"backend", cfg.Storage.Backend,
			"encrypted", storageCfg.Key != nil,
			"personas", len(personas))
	}

	if err := reg.Register(metric.NewCollector(func() metric.StoreStats {
		return metric.StoreStats{LockedApps: locks.Len()}
	})); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	serverMetrics, err := metric.NewServerMetrics(reg)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	srvCfg := &storeserver.Config{
		Addr:           cfg.Server.ListenAddr(),
		ReadTimeout:    cfg.Server.Timeouts.Read,
		WriteTimeout:   cfg.Server.Timeouts.Write,
		IdleTimeout:    cfg.Server.Timeouts.Idle,
		MaxConnections: cfg.Server.Limits.Connections,
		RateLimit:      cfg.Server.Limits.Rate,
		MaxFrameSize:   cfg.Server.Limits.FrameSize,
	}
	if cfg.Server.TLS.Enabled {
		tlsCfg, stop, err := serverTLS(cfg, log)
		if err != nil {
			return err
		}
		sh.OnShutdown("tls watcher", func(context.Context) error { stop(); return nil })
		srvCfg.TLSConfig = tlsCfg
	}

	srv := storeserver.New(srvCfg, st, log, storeserver.WithMetrics(serverMetrics))
	if err := srv.Start(ctx); err != nil {
		return err
	}
	sh.OnShutdown("store server", srv.Shutdown)

	if cfg.Metrics.Enabled {
		admin := httpserver.New(cfg.Metrics.Addr, httpserver.NewRouter(&httpserver.RouterConfig{
			Metrics: metric.Handler(reg),
			Ready: func(ctx context.Context) error {
				_, err := st.GetPersonas(ctx)
				return err
			},
			Logger: log,
		}), log)
		if err := admin.Start(); err != nil {
			return err
		}
		sh.OnShutdown("admin http", admin.Shutdown)
	}

	if *configFile != "" {
		stop, err := watchConfig(*configFile, loader, log)
		if err != nil {
			log.Warn("config watcher disabled", "error", err)
		} else {
			sh.OnShutdown("config watcher", stop)
		}
	}

	log.Info("celerix-stored ready", "addr", srv.Addr().String(), "tls", cfg.Server.TLS.Enabled)
	if err := sh.Wait(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}
	log.Info("celerix-stored stopped")
	return nil
}

func serverTLS(cfg *config.ServerConfig, log *slog.Logger) (*tls.Config, func(), error) {
	w, err := tlsroots.NewWatcher(cfg.Server.TLS.Cert, cfg.Server.TLS.Key, tlsroots.WithLogger(log))
	if err != nil {
		return nil, nil, err
	}
	var clientCAs *tlsroots.Pool
	if cfg.Server.TLS.ClientCA != "" {
		clientCAs = tlsroots.NewEmptyPool()
		if err := clientCAs.AddCertFile(cfg.Server.TLS.ClientCA); err != nil {
			return nil, nil, err
		}
	}
	w.StartAsync()
	return tlsroots.ServerTLS(w, clientCAs), w.Stop, nil
}

// watchConfig reloads the file on change and applies the log level.
// Other settings need a restart.
func watchConfig(path string, loader *confloader.Loader, log *slog.Logger) (shutdown.Hook, error) {
	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
	if err != nil {
		return nil, err
	}
	if err := w.Watch(path); err != nil {
		w.Stop()
		return nil, err
	}
	w.OnChange(func(string) {
		next, err := config.Load(loader)
		if err != nil {
			log.Warn("config reload rejected", "error", err)
			return
		}
		if next.Log.Level == logger.GetLevel() {
			return
		}
		if err := logger.SetLevel(next.Log.Level); err != nil {
			log.Warn("config reload rejected", "error", err)
			return
		}
		log.Info("log level changed", "level", next.Log.Level)
	})
	w.StartAsync()
	return shutdown.CloserHook(w.Stop), nil
}

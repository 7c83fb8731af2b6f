package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/celerix-dev/celerix-store/pkg/codec"
	"github.com/celerix-dev/celerix-store/pkg/domain"
)

// appPrefix namespaces App snapshot keys: app\x00<persona>\x00<app>.
// Persona and app names cannot contain NUL.
var appPrefix = []byte("app\x00")

// BadgerConfig contains Badger-specific tuning parameters.
type BadgerConfig struct {
	// GCInterval is the interval between value log GC runs.
	GCInterval time.Duration

	// GCThreshold is the discard ratio passed to RunValueLogGC.
	GCThreshold float64

	// CacheSize is the block cache size in bytes.
	CacheSize int64

	// SyncWrites fsyncs every commit. Disabling it trades durability of
	// the last writes for throughput.
	SyncWrites bool
}

// DefaultBadgerConfig returns the default Badger configuration.
func DefaultBadgerConfig() BadgerConfig {
	return BadgerConfig{
		GCInterval:  10 * time.Minute,
		GCThreshold: 0.5,
		CacheSize:   64 << 20,
		SyncWrites:  true,
	}
}

// BadgerBackend stores each App snapshot under one Badger key.
// Every Save is a single transaction, so App replacement is atomic.
type BadgerBackend struct {
	db     *badger.DB
	cfg    BadgerConfig
	logger *slog.Logger

	lastGCTime atomic.Int64
	gcRuns     prometheus.Counter

	stopCh    chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewBadgerBackend opens (or creates) a Badger database in dir.
// A non-nil key enables Badger's native encryption at rest.
func NewBadgerBackend(dir string, key []byte, cfg BadgerConfig, logger *slog.Logger) (*BadgerBackend, error) {
	if dir == "" {
		return nil, fmt.Errorf("badger: dir is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "badger")

	opts := badger.DefaultOptions(dir)
	opts.Logger = &badgerLogger{logger: logger}
	opts.SyncWrites = cfg.SyncWrites
	if cfg.CacheSize > 0 {
		opts.BlockCacheSize = cfg.CacheSize
	}
	if len(key) > 0 {
		opts.EncryptionKey = key
		opts.IndexCacheSize = 16 << 20
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, domain.ErrStorageIO.Wrap(fmt.Errorf("badger: open: %w", err))
	}

	b := &BadgerBackend{
		db:     db,
		cfg:    cfg,
		logger: logger,
		stopCh: make(chan struct{}),
	}
	if cfg.GCInterval > 0 {
		b.wg.Add(1)
		go b.gcLoop()
	}

	logger.Info("badger backend started", "dir", dir, "sync_writes", cfg.SyncWrites, "encrypted", len(key) > 0)
	return b, nil
}

func appKey(persona, app string) []byte {
	k := make([]byte, 0, len(appPrefix)+len(persona)+1+len(app))
	k = append(k, appPrefix...)
	k = append(k, persona...)
	k = append(k, 0)
	return append(k, app...)
}

// Load returns the App's snapshot.
func (b *BadgerBackend) Load(_ context.Context, persona, app string) (codec.Snapshot, error) {
	var data []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(appKey(persona, app))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return codec.Snapshot{}, nil
	}
	if err != nil {
		return nil, domain.ErrStorageIO.Wrap(err)
	}

	snap, err := codec.DecodeSnapshot(data)
	if err != nil {
		return nil, domain.ErrCorruption.WithDetailsf("%s/%s: %v", persona, app, err).WithCause(err)
	}
	return snap, nil
}

// Save replaces the App's snapshot in one transaction.
func (b *BadgerBackend) Save(ctx context.Context, persona, app string, snap codec.Snapshot) error {
	if len(snap) == 0 {
		return b.Remove(ctx, persona, app)
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return domain.ErrInvalidValue.Wrap(err)
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(appKey(persona, app), data)
	})
	if err != nil {
		return domain.ErrStorageIO.Wrap(err)
	}
	return nil
}

// Remove deletes the App.
func (b *BadgerBackend) Remove(_ context.Context, persona, app string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(appKey(persona, app))
	})
	if err != nil {
		return domain.ErrStorageIO.Wrap(err)
	}
	return nil
}

// ListPersonas returns personas with at least one App. Keys iterate in
// byte order, so the result is sorted.
func (b *BadgerBackend) ListPersonas(_ context.Context) ([]string, error) {
	personas := []string{}
	err := b.scanKeys(appPrefix, func(rest []byte) {
		i := bytes.IndexByte(rest, 0)
		if i < 0 {
			return
		}
		p := string(rest[:i])
		if n := len(personas); n == 0 || personas[n-1] != p {
			personas = append(personas, p)
		}
	})
	if err != nil {
		return nil, err
	}
	return personas, nil
}

// ListApps returns the persona's Apps, sorted.
func (b *BadgerBackend) ListApps(_ context.Context, persona string) ([]string, error) {
	prefix := appKey(persona, "")
	apps := []string{}
	err := b.scanKeys(prefix, func(rest []byte) {
		apps = append(apps, string(rest))
	})
	if err != nil {
		return nil, err
	}
	return apps, nil
}

// scanKeys calls fn with each key under prefix, prefix stripped.
func (b *BadgerBackend) scanKeys(prefix []byte, fn func(rest []byte)) error {
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			fn(it.Item().Key()[len(prefix):])
		}
		return nil
	})
	if err != nil {
		return domain.ErrStorageIO.Wrap(err)
	}
	return nil
}

// GC runs value log GC until Badger reports nothing left to rewrite.
// It returns the number of rewritten log files.
func (b *BadgerBackend) GC(ctx context.Context) (int, error) {
	rewrites := 0
	for ctx.Err() == nil {
		err := b.db.RunValueLogGC(b.cfg.GCThreshold)
		if errors.Is(err, badger.ErrNoRewrite) {
			break
		}
		if err != nil {
			return rewrites, fmt.Errorf("badger: gc: %w", err)
		}
		rewrites++
	}
	b.lastGCTime.Store(time.Now().UnixMilli())
	if b.gcRuns != nil {
		b.gcRuns.Inc()
	}
	return rewrites, nil
}

func (b *BadgerBackend) gcLoop() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.cfg.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			n, err := b.GC(ctx)
			cancel()
			if err != nil {
				b.logger.Error("value log gc failed", "error", err)
			} else if n > 0 {
				b.logger.Info("value log gc completed", "rewrites", n)
			}
		case <-b.stopCh:
			return
		}
	}
}

// RegisterMetrics exports Badger size gauges and a GC counter.
func (b *BadgerBackend) RegisterMetrics(reg prometheus.Registerer) error {
	size := func(pick func(lsm, vlog int64) int64) func() float64 {
		return func() float64 {
			lsm, vlog := b.db.Size()
			return float64(pick(lsm, vlog))
		}
	}
	b.gcRuns = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "celerix",
		Subsystem: "badger",
		Name:      "gc_runs_total",
		Help:      "Completed value log GC passes.",
	})

	collectors := []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "celerix",
			Subsystem: "badger",
			Name:      "lsm_size_bytes",
			Help:      "Badger LSM tree size in bytes.",
		}, size(func(lsm, _ int64) int64 { return lsm })),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "celerix",
			Subsystem: "badger",
			Name:      "value_log_size_bytes",
			Help:      "Badger value log size in bytes.",
		}, size(func(_, vlog int64) int64 { return vlog })),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "celerix",
			Subsystem: "badger",
			Name:      "last_gc_timestamp_seconds",
			Help:      "Unix time of the last value log GC pass.",
		}, func() float64 { return float64(b.lastGCTime.Load()) / 1000 }),
		b.gcRuns,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return fmt.Errorf("badger: register metrics: %w", err)
		}
	}
	return nil
}

// Close stops background GC and closes the database.
func (b *BadgerBackend) Close() error {
	var err error
	b.closeOnce.Do(func() {
		close(b.stopCh)
		b.wg.Wait()
		if cerr := b.db.Close(); cerr != nil {
			err = domain.ErrStorageIO.Wrap(cerr)
		}
		b.logger.Info("badger backend closed")
	})
	return err
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
// Badger's info chatter is demoted to debug.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

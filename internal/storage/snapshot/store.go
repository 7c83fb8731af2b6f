package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/celerix-dev/celerix-store/pkg/codec"
	"github.com/celerix-dev/celerix-store/pkg/crypto/adaptive"
	"github.com/celerix-dev/celerix-store/pkg/domain"
)

// magicBytes prefix encrypted snapshot files.
var magicBytes = []byte("CLXENC01")

const (
	fileExtension   = ".json"
	tempMarker      = ".tmp-"
	migratedSuffix  = ".migrated"
	defaultDirMode  = 0o750
	defaultFileMode = 0o600
)

// Config configures the file backend.
type Config struct {
	// Dir is the data directory; created if missing.
	Dir string

	// Cipher enables at-rest encryption of new snapshots. Plain snapshots
	// remain readable so existing data can be migrated in place.
	Cipher adaptive.Cipher

	Logger *slog.Logger
}

// Store persists one JSON file per (persona, app).
// It performs no locking; callers serialize writes per App.
type Store struct {
	dir    string
	cipher adaptive.Cipher
	logger *slog.Logger

	// beforeRename runs after the temp file is synced and closed.
	// Tests use it to simulate a crash before the swap.
	beforeRename func(tmpPath, finalPath string) error
}

// New creates the data directory if needed and returns a Store.
func New(cfg Config) (*Store, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("snapshot: dir is required")
	}
	if err := os.MkdirAll(cfg.Dir, defaultDirMode); err != nil {
		return nil, domain.ErrStorageIO.Wrap(err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		dir:    cfg.Dir,
		cipher: cfg.Cipher,
		logger: logger.With("component", "snapshot"),
	}, nil
}

// Dir returns the data directory.
func (s *Store) Dir() string { return s.dir }

func (s *Store) personaDir(persona string) string {
	return filepath.Join(s.dir, persona)
}

func (s *Store) appPath(persona, app string) string {
	return filepath.Join(s.dir, persona, app+fileExtension)
}

// Load returns the App's snapshot. A missing file is an empty App.
func (s *Store) Load(_ context.Context, persona, app string) (codec.Snapshot, error) {
	path := s.appPath(persona, app)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return codec.Snapshot{}, nil
		}
		return nil, domain.ErrStorageIO.Wrap(err)
	}
	return s.decode(data, persona, app)
}

func (s *Store) decode(data []byte, persona, app string) (codec.Snapshot, error) {
	if bytes.HasPrefix(data, magicBytes) {
		if s.cipher == nil {
			return nil, domain.ErrAuthenticationFailure.WithDetailsf("%s/%s is encrypted and no storage key is configured", persona, app)
		}
		plain, err := s.cipher.Decrypt(data[len(magicBytes):], aad(persona, app))
		if err != nil {
			return nil, domain.ErrAuthenticationFailure.WithDetailsf("%s/%s: %v", persona, app, err).WithCause(err)
		}
		data = plain
	}

	snap, err := codec.DecodeSnapshot(data)
	if err != nil {
		return nil, domain.ErrCorruption.WithDetailsf("%s/%s: %v", persona, app, err).WithCause(err)
	}
	return snap, nil
}

func (s *Store) encode(snap codec.Snapshot, persona, app string) ([]byte, error) {
	data, err := codec.EncodeSnapshot(snap)
	if err != nil {
		return nil, err
	}
	if s.cipher == nil {
		return data, nil
	}
	sealed, err := s.cipher.Encrypt(data, aad(persona, app))
	if err != nil {
		return nil, domain.ErrInternal.Wrap(err)
	}
	return append(append([]byte(nil), magicBytes...), sealed...), nil
}

func aad(persona, app string) []byte {
	return []byte(persona + "/" + app)
}

// Save atomically replaces the App's snapshot. An empty snapshot
// removes the App file.
func (s *Store) Save(ctx context.Context, persona, app string, snap codec.Snapshot) error {
	if len(snap) == 0 {
		return s.Remove(ctx, persona, app)
	}
	data, err := s.encode(snap, persona, app)
	if err != nil {
		return err
	}
	return s.writeAtomic(s.personaDir(persona), app+fileExtension, data)
}

// writeAtomic writes data to dir/name via temp file, fsync and rename.
// On any failure the canonical file is left untouched.
func (s *Store) writeAtomic(dir, name string, data []byte) error {
	if err := os.MkdirAll(dir, defaultDirMode); err != nil {
		return domain.ErrStorageIO.Wrap(err)
	}

	f, err := os.CreateTemp(dir, "."+name+tempMarker+"*")
	if err != nil {
		return domain.ErrStorageIO.Wrap(err)
	}
	tmpPath := f.Name()
	renamed := false
	defer func() {
		if !renamed {
			os.Remove(tmpPath)
		}
	}()

	if _, err := f.Write(data); err != nil {
		f.Close()
		return domain.ErrStorageIO.Wrap(fmt.Errorf("write temp: %w", err))
	}
	if err := f.Chmod(defaultFileMode); err != nil {
		f.Close()
		return domain.ErrStorageIO.Wrap(fmt.Errorf("chmod temp: %w", err))
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return domain.ErrStorageIO.Wrap(fmt.Errorf("sync temp: %w", err))
	}
	if err := f.Close(); err != nil {
		return domain.ErrStorageIO.Wrap(fmt.Errorf("close temp: %w", err))
	}

	finalPath := filepath.Join(dir, name)
	if s.beforeRename != nil {
		if err := s.beforeRename(tmpPath, finalPath); err != nil {
			return domain.ErrStorageIO.Wrap(err)
		}
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return domain.ErrStorageIO.Wrap(fmt.Errorf("rename: %w", err))
	}
	renamed = true

	if err := syncDir(dir); err != nil {
		return domain.ErrStorageIO.Wrap(fmt.Errorf("sync dir: %w", err))
	}
	return nil
}

// Remove deletes the App file. Removing a missing App is a no-op.
// The persona directory is kept.
func (s *Store) Remove(_ context.Context, persona, app string) error {
	err := os.Remove(s.appPath(persona, app))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return domain.ErrStorageIO.Wrap(err)
	}
	if err := syncDir(s.personaDir(persona)); err != nil {
		return domain.ErrStorageIO.Wrap(err)
	}
	return nil
}

// ListPersonas returns, sorted, the personas that own at least one App.
func (s *Store) ListPersonas(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, domain.ErrStorageIO.Wrap(err)
	}

	personas := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		apps, err := s.ListApps(ctx, e.Name())
		if err != nil {
			return nil, err
		}
		if len(apps) > 0 {
			personas = append(personas, e.Name())
		}
	}
	return personas, nil
}

// ListApps returns the persona's Apps, sorted. An unknown persona has none.
func (s *Store) ListApps(_ context.Context, persona string) ([]string, error) {
	entries, err := os.ReadDir(s.personaDir(persona))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, domain.ErrStorageIO.Wrap(err)
	}

	apps := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, fileExtension) {
			continue
		}
		apps = append(apps, strings.TrimSuffix(name, fileExtension))
	}
	sort.Strings(apps)
	return apps, nil
}

// Cleanup removes temp files left behind by interrupted writes and
// returns how many were removed. Call it before serving requests.
func (s *Store) Cleanup() (int, error) {
	personas, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, domain.ErrStorageIO.Wrap(err)
	}

	removed := 0
	for _, p := range personas {
		if !p.IsDir() {
			continue
		}
		dir := s.personaDir(p.Name())
		entries, err := os.ReadDir(dir)
		if err != nil {
			return removed, domain.ErrStorageIO.Wrap(err)
		}
		for _, e := range entries {
			if strings.HasPrefix(e.Name(), ".") && strings.Contains(e.Name(), tempMarker) {
				if err := os.Remove(filepath.Join(dir, e.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
					return removed, domain.ErrStorageIO.Wrap(err)
				}
				removed++
			}
		}
	}
	if removed > 0 {
		s.logger.Warn("removed stale temp files", "count", removed)
	}
	return removed, nil
}

// ImportLegacy converts single-file personas (<dir>/<persona>.json
// holding app -> key -> value) into the per-App layout. Apps that
// already have a file are left alone. Each converted legacy file is
// renamed to <persona>.json.migrated. It returns the number of Apps written.
func (s *Store) ImportLegacy(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, domain.ErrStorageIO.Wrap(err)
	}

	imported := 0
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || !strings.HasSuffix(name, fileExtension) || strings.HasPrefix(name, ".") {
			continue
		}
		persona := strings.TrimSuffix(name, fileExtension)
		if err := domain.ValidateName("persona", persona); err != nil {
			s.logger.Warn("skipping legacy file", "file", name, "error", err)
			continue
		}

		n, err := s.importPersona(ctx, persona, filepath.Join(s.dir, name))
		imported += n
		if err != nil {
			return imported, err
		}
	}
	return imported, nil
}

func (s *Store) importPersona(ctx context.Context, persona, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, domain.ErrStorageIO.Wrap(err)
	}
	var apps map[string]codec.Snapshot
	if err := json.Unmarshal(data, &apps); err != nil {
		return 0, domain.ErrCorruption.WithDetailsf("legacy %s: %v", filepath.Base(path), err).WithCause(err)
	}

	imported := 0
	for app, snap := range apps {
		if err := domain.ValidateName("app", app); err != nil {
			s.logger.Warn("skipping legacy app", "persona", persona, "app", app, "error", err)
			continue
		}
		if _, err := os.Stat(s.appPath(persona, app)); err == nil {
			continue
		}
		if err := s.Save(ctx, persona, app, snap); err != nil {
			return imported, err
		}
		imported++
	}

	if err := os.Rename(path, path+migratedSuffix); err != nil {
		return imported, domain.ErrStorageIO.Wrap(err)
	}
	s.logger.Info("imported legacy persona", "persona", persona, "apps", imported)
	return imported, nil
}

// Close is a no-op; files are closed after every operation.
func (s *Store) Close() error { return nil }

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	if err := d.Sync(); err != nil && !errors.Is(err, os.ErrInvalid) {
		return err
	}
	return nil
}

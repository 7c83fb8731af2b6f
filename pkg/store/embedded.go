package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"

	"github.com/celerix-dev/celerix-store/internal/storage"
	"github.com/celerix-dev/celerix-store/internal/telemetry/logger"
	"github.com/celerix-dev/celerix-store/pkg/codec"
	"github.com/celerix-dev/celerix-store/pkg/domain"
)

// Embedded is the in-process RawStore. Writes to one App run
// load-mutate-save under that App's lock; reads load the current
// snapshot without locking, relying on the backend's atomic replace.
// Safe for concurrent use.
type Embedded struct {
	backend storage.Backend
	locks   *LockTable
	logger  *slog.Logger
	closed  atomic.Bool
}

// EmbeddedOption configures an Embedded store.
type EmbeddedOption func(*Embedded)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) EmbeddedOption {
	return func(e *Embedded) { e.logger = l }
}

// WithLockTable shares a lock table between stores on the same backend.
func WithLockTable(t *LockTable) EmbeddedOption {
	return func(e *Embedded) { e.locks = t }
}

// NewEmbedded wraps an open backend. The Embedded store owns it and
// closes it on Close.
func NewEmbedded(backend storage.Backend, opts ...EmbeddedOption) *Embedded {
	e := &Embedded{
		backend: backend,
		locks:   NewLockTable(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// OpenEmbedded opens the configured backend and returns an Embedded store.
func OpenEmbedded(ctx context.Context, cfg storage.Config, opts ...EmbeddedOption) (*Embedded, error) {
	backend, err := storage.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewEmbedded(backend, opts...), nil
}

// Open is OpenEmbedded wrapped in a Handle.
func Open(ctx context.Context, cfg storage.Config, opts ...EmbeddedOption) (*Handle, error) {
	e, err := OpenEmbedded(ctx, cfg, opts...)
	if err != nil {
		return nil, err
	}
	return Wrap(e), nil
}

// log prefers the request-scoped logger set by the server.
func (e *Embedded) log(ctx context.Context) *slog.Logger {
	if _, ok := logger.Lookup(ctx); ok {
		return logger.L(ctx)
	}
	return e.logger
}

func (e *Embedded) check(ctx context.Context) error {
	if e.closed.Load() {
		return domain.ErrClosed
	}
	return ctx.Err()
}

// Ping fails only once the store is closed or ctx is done.
func (e *Embedded) Ping(ctx context.Context) error {
	return e.check(ctx)
}

// GetRaw returns the serialized value or domain.ErrNotFound.
func (e *Embedded) GetRaw(ctx context.Context, persona, app, key string) (json.RawMessage, error) {
	if err := domain.ValidateAddress(persona, app, key); err != nil {
		return nil, err
	}
	if err := e.check(ctx); err != nil {
		return nil, err
	}

	snap, err := e.backend.Load(ctx, persona, app)
	if err != nil {
		return nil, err
	}
	v, ok := snap[key]
	if !ok {
		return nil, domain.ErrNotFound.WithDetailsf("%s/%s/%s", persona, app, key)
	}
	return v, nil
}

// SetRaw stores a serialized value.
func (e *Embedded) SetRaw(ctx context.Context, persona, app, key string, value json.RawMessage) error {
	if err := domain.ValidateAddress(persona, app, key); err != nil {
		return err
	}
	if !codec.Valid(value) {
		return domain.ErrInvalidValue.WithDetails("value is not valid json")
	}
	if err := e.check(ctx); err != nil {
		return err
	}

	unlock := e.locks.Lock(persona, app)
	defer unlock()

	snap, err := e.backend.Load(ctx, persona, app)
	if err != nil {
		return err
	}
	snap[key] = append(json.RawMessage(nil), value...)
	return e.backend.Save(ctx, persona, app, snap)
}

// Delete removes a key; a missing key is a no-op.
func (e *Embedded) Delete(ctx context.Context, persona, app, key string) error {
	if err := domain.ValidateAddress(persona, app, key); err != nil {
		return err
	}
	if err := e.check(ctx); err != nil {
		return err
	}

	unlock := e.locks.Lock(persona, app)
	defer unlock()

	snap, err := e.backend.Load(ctx, persona, app)
	if err != nil {
		return err
	}
	if _, ok := snap[key]; !ok {
		return nil
	}
	delete(snap, key)
	return e.backend.Save(ctx, persona, app, snap)
}

// GetPersonas lists personas that own at least one non-empty App.
func (e *Embedded) GetPersonas(ctx context.Context) ([]string, error) {
	if err := e.check(ctx); err != nil {
		return nil, err
	}
	return e.backend.ListPersonas(ctx)
}

// GetApps lists a persona's Apps.
func (e *Embedded) GetApps(ctx context.Context, persona string) ([]string, error) {
	if err := domain.ValidateName("persona", persona); err != nil {
		return nil, err
	}
	if err := e.check(ctx); err != nil {
		return nil, err
	}
	return e.backend.ListApps(ctx, persona)
}

// DumpRaw returns a copy of one App's snapshot. Unknown Apps are empty.
func (e *Embedded) DumpRaw(ctx context.Context, persona, app string) (codec.Snapshot, error) {
	if err := domain.ValidateName("persona", persona); err != nil {
		return nil, err
	}
	if err := domain.ValidateName("app", app); err != nil {
		return nil, err
	}
	if err := e.check(ctx); err != nil {
		return nil, err
	}
	return e.backend.Load(ctx, persona, app)
}

// DumpAppRaw collects one App across all personas that have it.
func (e *Embedded) DumpAppRaw(ctx context.Context, app string) (map[string]codec.Snapshot, error) {
	if err := domain.ValidateName("app", app); err != nil {
		return nil, err
	}
	personas, err := e.GetPersonas(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[string]codec.Snapshot)
	for _, p := range personas {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		snap, err := e.backend.Load(ctx, p, app)
		if err != nil {
			return nil, err
		}
		if len(snap) > 0 {
			out[p] = snap
		}
	}
	return out, nil
}

// GetGlobalRaw searches personas in sorted order for app/key.
func (e *Embedded) GetGlobalRaw(ctx context.Context, app, key string) (json.RawMessage, string, error) {
	if err := domain.ValidateName("app", app); err != nil {
		return nil, "", err
	}
	if err := domain.ValidateKey(key); err != nil {
		return nil, "", err
	}
	personas, err := e.GetPersonas(ctx)
	if err != nil {
		return nil, "", err
	}

	for _, p := range personas {
		snap, err := e.backend.Load(ctx, p, app)
		if err != nil {
			return nil, "", err
		}
		if v, ok := snap[key]; ok {
			return v, p, nil
		}
	}
	return nil, "", domain.ErrNotFound.WithDetailsf("*/%s/%s", app, key)
}

// Move transfers app/key from srcPersona to dstPersona. The destination
// is written before the source is cleared, so an interruption between
// the two saves leaves the key in both Apps, never in neither.
func (e *Embedded) Move(ctx context.Context, srcPersona, dstPersona, app, key string) error {
	if err := domain.ValidateAddress(srcPersona, app, key); err != nil {
		return err
	}
	if err := domain.ValidateName("persona", dstPersona); err != nil {
		return err
	}
	if err := e.check(ctx); err != nil {
		return err
	}
	if srcPersona == dstPersona {
		_, err := e.GetRaw(ctx, srcPersona, app, key)
		return err
	}

	unlock := e.locks.LockPair(srcPersona, app, dstPersona, app)
	defer unlock()

	src, err := e.backend.Load(ctx, srcPersona, app)
	if err != nil {
		return err
	}
	v, ok := src[key]
	if !ok {
		return domain.ErrNotFound.WithDetailsf("%s/%s/%s", srcPersona, app, key)
	}
	dst, err := e.backend.Load(ctx, dstPersona, app)
	if err != nil {
		return err
	}

	dst[key] = v
	if err := e.backend.Save(ctx, dstPersona, app, dst); err != nil {
		return err
	}
	delete(src, key)
	if err := e.backend.Save(ctx, srcPersona, app, src); err != nil {
		e.log(ctx).Error("move left key in both personas", "src", srcPersona, "dst", dstPersona, "app", app, "key", key, "error", err)
		return err
	}
	return nil
}

// Close closes the backend. Further calls fail with domain.ErrClosed.
func (e *Embedded) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	return e.backend.Close()
}

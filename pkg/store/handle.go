package store

import (
	"context"
	"errors"

	"github.com/celerix-dev/celerix-store/pkg/codec"
	"github.com/celerix-dev/celerix-store/pkg/domain"
)

// Handle implements Store on top of any RawStore. It is the single
// place where values are encoded and decoded.
type Handle struct {
	raw RawStore
}

var _ Store = (*Handle)(nil)

// Wrap returns a Store backed by raw.
func Wrap(raw RawStore) *Handle {
	return &Handle{raw: raw}
}

// Raw returns the underlying RawStore.
func (h *Handle) Raw() RawStore { return h.raw }

// Get returns the decoded value or domain.ErrNotFound.
func (h *Handle) Get(ctx context.Context, persona, app, key string) (any, error) {
	raw, err := h.raw.GetRaw(ctx, persona, app, key)
	if err != nil {
		return nil, err
	}
	return decode(raw)
}

// GetInto decodes the value into target.
func (h *Handle) GetInto(ctx context.Context, persona, app, key string, target any) error {
	raw, err := h.raw.GetRaw(ctx, persona, app, key)
	if err != nil {
		return err
	}
	return decodeInto(raw, target)
}

// Set encodes value and stores it.
func (h *Handle) Set(ctx context.Context, persona, app, key string, value any) error {
	raw, err := codec.Marshal(value)
	if err != nil {
		return err
	}
	return h.raw.SetRaw(ctx, persona, app, key, raw)
}

// Delete removes a key.
func (h *Handle) Delete(ctx context.Context, persona, app, key string) error {
	return h.raw.Delete(ctx, persona, app, key)
}

// GetPersonas lists personas.
func (h *Handle) GetPersonas(ctx context.Context) ([]string, error) {
	return h.raw.GetPersonas(ctx)
}

// GetApps lists a persona's Apps.
func (h *Handle) GetApps(ctx context.Context, persona string) ([]string, error) {
	return h.raw.GetApps(ctx, persona)
}

// GetAppStore returns every key of one App, decoded.
func (h *Handle) GetAppStore(ctx context.Context, persona, app string) (map[string]any, error) {
	snap, err := h.raw.DumpRaw(ctx, persona, app)
	if err != nil {
		return nil, err
	}
	return decodeSnapshot(snap)
}

// DumpApp returns the named App for every persona that has it.
func (h *Handle) DumpApp(ctx context.Context, app string) (map[string]map[string]any, error) {
	dump, err := h.raw.DumpAppRaw(ctx, app)
	if err != nil {
		return nil, err
	}
	out := make(map[string]map[string]any, len(dump))
	for persona, snap := range dump {
		m, err := decodeSnapshot(snap)
		if err != nil {
			return nil, err
		}
		out[persona] = m
	}
	return out, nil
}

// GetGlobal finds app/key in any persona.
func (h *Handle) GetGlobal(ctx context.Context, app, key string) (any, string, error) {
	raw, persona, err := h.raw.GetGlobalRaw(ctx, app, key)
	if err != nil {
		return nil, "", err
	}
	v, err := decode(raw)
	if err != nil {
		return nil, "", err
	}
	return v, persona, nil
}

// Move transfers app/key between personas.
func (h *Handle) Move(ctx context.Context, srcPersona, dstPersona, app, key string) error {
	return h.raw.Move(ctx, srcPersona, dstPersona, app, key)
}

// App returns a scope bound to persona and app.
func (h *Handle) App(persona, app string) *AppScope {
	return &AppScope{h: h, persona: persona, app: app}
}

// Ping delegates to the underlying RawStore.
func (h *Handle) Ping(ctx context.Context) error {
	return h.raw.Ping(ctx)
}

// Close closes the underlying RawStore.
func (h *Handle) Close() error {
	return h.raw.Close()
}

// decode maps malformed stored bytes to ErrCorruption: anything that
// reached a snapshot was validated on the way in.
func decode(raw []byte) (any, error) {
	v, err := codec.Unmarshal(raw)
	if err != nil {
		return nil, domain.ErrCorruption.Wrap(err)
	}
	return v, nil
}

// decodeInto reports a value that does not fit target as ErrInvalidValue.
func decodeInto(raw []byte, target any) error {
	if err := codec.DecodeInto(raw, target); err != nil {
		if errors.Is(err, codec.ErrMalformed) {
			return domain.ErrInvalidValue.Wrap(err)
		}
		return err
	}
	return nil
}

func decodeSnapshot(snap codec.Snapshot) (map[string]any, error) {
	out := make(map[string]any, len(snap))
	for k, raw := range snap {
		v, err := decode(raw)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}

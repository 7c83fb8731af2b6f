package store

import (
	"context"
	"encoding/json"

	"github.com/celerix-dev/celerix-store/pkg/codec"
)

// KVReader reads single values.
type KVReader interface {
	// Get returns the decoded value or domain.ErrNotFound.
	Get(ctx context.Context, persona, app, key string) (any, error)

	// GetInto decodes the value into target.
	GetInto(ctx context.Context, persona, app, key string, target any) error
}

// KVWriter writes single values.
type KVWriter interface {
	// Set creates or overwrites a key. Personas and Apps are created implicitly.
	Set(ctx context.Context, persona, app, key string, value any) error

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, persona, app, key string) error
}

// AppEnumeration lists the hierarchy.
type AppEnumeration interface {
	GetPersonas(ctx context.Context) ([]string, error)
	GetApps(ctx context.Context, persona string) ([]string, error)
}

// BatchExporter exports whole Apps.
type BatchExporter interface {
	// GetAppStore returns every key of one App.
	GetAppStore(ctx context.Context, persona, app string) (map[string]any, error)

	// DumpApp returns the named App across all personas, keyed by persona.
	DumpApp(ctx context.Context, app string) (map[string]map[string]any, error)
}

// GlobalSearcher finds a key regardless of persona.
type GlobalSearcher interface {
	// GetGlobal returns the value of app/key from the first persona (in
	// sorted order) that has it, together with that persona.
	GetGlobal(ctx context.Context, app, key string) (any, string, error)
}

// Orchestrator moves data between personas.
type Orchestrator interface {
	// Move transfers app/key from one persona to another.
	Move(ctx context.Context, srcPersona, dstPersona, app, key string) error
}

// Store is the full application-facing API.
type Store interface {
	KVReader
	KVWriter
	AppEnumeration
	BatchExporter
	GlobalSearcher
	Orchestrator

	// App returns a handle bound to one persona and app.
	App(persona, app string) *AppScope

	// Ping reports whether the store can serve requests. Remotely it
	// is a round trip to the server.
	Ping(ctx context.Context) error

	Close() error
}

// RawStore is the mode-independent core. Values are serialized JSON;
// decoding is left to the caller. Embedded and client.Client implement it.
type RawStore interface {
	GetRaw(ctx context.Context, persona, app, key string) (json.RawMessage, error)
	SetRaw(ctx context.Context, persona, app, key string, value json.RawMessage) error
	Delete(ctx context.Context, persona, app, key string) error

	GetPersonas(ctx context.Context) ([]string, error)
	GetApps(ctx context.Context, persona string) ([]string, error)

	DumpRaw(ctx context.Context, persona, app string) (codec.Snapshot, error)
	DumpAppRaw(ctx context.Context, app string) (map[string]codec.Snapshot, error)
	GetGlobalRaw(ctx context.Context, app, key string) (json.RawMessage, string, error)

	Move(ctx context.Context, srcPersona, dstPersona, app, key string) error

	Ping(ctx context.Context) error
	Close() error
}

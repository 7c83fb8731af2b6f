package store

import (
	"context"

	"github.com/celerix-dev/celerix-store/pkg/codec"
	"github.com/celerix-dev/celerix-store/pkg/vault"
)

// AppScope is a Store bound to one persona and app.
type AppScope struct {
	h       *Handle
	persona string
	app     string
}

// Persona returns the bound persona.
func (a *AppScope) Persona() string { return a.persona }

// Name returns the bound app.
func (a *AppScope) Name() string { return a.app }

func (a *AppScope) Get(ctx context.Context, key string) (any, error) {
	return a.h.Get(ctx, a.persona, a.app, key)
}

func (a *AppScope) GetInto(ctx context.Context, key string, target any) error {
	return a.h.GetInto(ctx, a.persona, a.app, key, target)
}

func (a *AppScope) Set(ctx context.Context, key string, value any) error {
	return a.h.Set(ctx, a.persona, a.app, key, value)
}

func (a *AppScope) Delete(ctx context.Context, key string) error {
	return a.h.Delete(ctx, a.persona, a.app, key)
}

// All returns every key of the App.
func (a *AppScope) All(ctx context.Context) (map[string]any, error) {
	return a.h.GetAppStore(ctx, a.persona, a.app)
}

// Vault returns a scope that encrypts values with key before they
// leave the process. key must be 32 bytes.
func (a *AppScope) Vault(key []byte, opts ...vault.Option) (*VaultScope, error) {
	v, err := vault.New(key, opts...)
	if err != nil {
		return nil, err
	}
	return &VaultScope{app: a, vault: v}, nil
}

// VaultScope stores only vault envelopes. Reading a key that holds a
// plain value fails with domain.ErrAuthenticationFailure.
type VaultScope struct {
	app   *AppScope
	vault *vault.Vault
}

func (s *VaultScope) raw() RawStore { return s.app.h.raw }

// Get decrypts and decodes the value at key.
func (s *VaultScope) Get(ctx context.Context, key string) (any, error) {
	plain, err := s.open(ctx, key)
	if err != nil {
		return nil, err
	}
	return decode(plain)
}

// GetInto decrypts the value at key into target.
func (s *VaultScope) GetInto(ctx context.Context, key string, target any) error {
	plain, err := s.open(ctx, key)
	if err != nil {
		return err
	}
	return decodeInto(plain, target)
}

// GetString is Get for string secrets.
func (s *VaultScope) GetString(ctx context.Context, key string) (string, error) {
	var out string
	err := s.GetInto(ctx, key, &out)
	return out, err
}

func (s *VaultScope) open(ctx context.Context, key string) ([]byte, error) {
	env, err := s.raw().GetRaw(ctx, s.app.persona, s.app.app, key)
	if err != nil {
		return nil, err
	}
	return s.vault.Open(env)
}

// Set encrypts value and stores the envelope.
func (s *VaultScope) Set(ctx context.Context, key string, value any) error {
	plain, err := codec.Marshal(value)
	if err != nil {
		return err
	}
	env, err := s.vault.Seal(plain)
	if err != nil {
		return err
	}
	return s.raw().SetRaw(ctx, s.app.persona, s.app.app, key, env)
}

// Delete removes key.
func (s *VaultScope) Delete(ctx context.Context, key string) error {
	return s.app.Delete(ctx, key)
}

// Package vault implements client-side authenticated encryption of values.
//
// A Vault turns a value into an Envelope: a fresh random nonce, the
// ciphertext of the value's JSON encoding, and the AEAD tag. The
// envelope is itself a JSON value, so storage and transport treat it
// like any other value and never see plaintext.
package vault

import (
	"encoding/json"
	"errors"

	"github.com/celerix-dev/celerix-store/pkg/codec"
	"github.com/celerix-dev/celerix-store/pkg/crypto/adaptive"
	"github.com/celerix-dev/celerix-store/pkg/domain"
)

// EnvelopeVersion is the only envelope format understood by this package.
const EnvelopeVersion = 1

// Envelope is the persisted form of an encrypted value.
// Byte fields are base64 encoded in JSON.
type Envelope struct {
	V          int    `json:"v"`
	Alg        string `json:"alg"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ct"`
	Tag        []byte `json:"tag"`
}

// aad binds the envelope header to the ciphertext.
func (e *Envelope) aad() []byte {
	return []byte("celerix-vault/v1/" + e.Alg)
}

// Option configures a Vault.
type Option func(*Vault)

// WithAlgorithm selects the AEAD algorithm for new envelopes.
// Decryption always follows the algorithm recorded in the envelope.
func WithAlgorithm(t adaptive.CipherType) Option {
	return func(v *Vault) { v.alg = t }
}

// Vault encrypts and decrypts values under one 32-byte key.
// It is stateless apart from the key and safe for concurrent use.
type Vault struct {
	key []byte
	alg adaptive.CipherType
}

// New returns a Vault bound to key, which must be exactly 32 bytes.
func New(key []byte, opts ...Option) (*Vault, error) {
	if len(key) != adaptive.KeySize {
		return nil, domain.ErrInvalidVaultKey.WithDetailsf("key is %d bytes, want %d", len(key), adaptive.KeySize)
	}
	v := &Vault{
		key: append([]byte(nil), key...),
		alg: adaptive.CipherAESGCM,
	}
	for _, opt := range opts {
		opt(v)
	}
	alg, err := adaptive.ParseType(string(v.alg))
	if err != nil {
		return nil, domain.ErrInvalidVaultKey.Wrap(err)
	}
	v.alg = alg
	return v, nil
}

// Encrypt serializes value and seals it in a new envelope.
func (v *Vault) Encrypt(value any) (*Envelope, error) {
	plaintext, err := codec.Marshal(value)
	if err != nil {
		return nil, err
	}
	return v.encryptRaw(plaintext)
}

func (v *Vault) encryptRaw(plaintext []byte) (*Envelope, error) {
	c, err := adaptive.NewWithType(v.key, v.alg)
	if err != nil {
		return nil, domain.ErrInternal.Wrap(err)
	}
	nonce, err := adaptive.NewNonce(c)
	if err != nil {
		return nil, domain.ErrInternal.Wrap(err)
	}

	env := &Envelope{V: EnvelopeVersion, Alg: string(v.alg), Nonce: nonce}
	sealed, err := c.Seal(nonce, plaintext, env.aad())
	if err != nil {
		return nil, domain.ErrInternal.Wrap(err)
	}
	split := len(sealed) - c.Overhead()
	env.Ciphertext = sealed[:split]
	env.Tag = sealed[split:]
	return env, nil
}

// Decrypt verifies env and returns the decoded value.
func (v *Vault) Decrypt(env *Envelope) (any, error) {
	plaintext, err := v.decryptRaw(env)
	if err != nil {
		return nil, err
	}
	out, err := codec.Unmarshal(plaintext)
	if err != nil {
		return nil, domain.ErrAuthenticationFailure.Wrap(err)
	}
	return out, nil
}

// DecryptInto verifies env and decodes the plaintext into target.
func (v *Vault) DecryptInto(env *Envelope, target any) error {
	plaintext, err := v.decryptRaw(env)
	if err != nil {
		return err
	}
	if err := codec.DecodeInto(plaintext, target); err != nil {
		return domain.ErrInvalidValue.Wrap(err)
	}
	return nil
}

func (v *Vault) decryptRaw(env *Envelope) ([]byte, error) {
	if env == nil || env.V != EnvelopeVersion {
		return nil, domain.ErrAuthenticationFailure.WithDetails("not a vault envelope")
	}
	alg, err := adaptive.ParseType(env.Alg)
	if err != nil || alg != adaptive.CipherType(env.Alg) {
		return nil, domain.ErrAuthenticationFailure.WithDetails("unknown envelope algorithm")
	}
	c, err := adaptive.NewWithType(v.key, alg)
	if err != nil {
		return nil, domain.ErrAuthenticationFailure.Wrap(err)
	}
	if len(env.Tag) != c.Overhead() {
		return nil, domain.ErrAuthenticationFailure.WithDetails("truncated tag")
	}

	sealed := make([]byte, 0, len(env.Ciphertext)+len(env.Tag))
	sealed = append(sealed, env.Ciphertext...)
	sealed = append(sealed, env.Tag...)
	plaintext, err := c.Open(env.Nonce, sealed, env.aad())
	if err != nil {
		return nil, domain.ErrAuthenticationFailure.Wrap(err)
	}
	return plaintext, nil
}

// Seal encrypts an already serialized value and returns the envelope
// in serialized form, ready to hand to a store.
func (v *Vault) Seal(raw json.RawMessage) (json.RawMessage, error) {
	if !codec.Valid(raw) {
		return nil, domain.ErrInvalidValue.WithDetails("value is not valid json")
	}
	env, err := v.encryptRaw(raw)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// Open parses a serialized envelope and returns the serialized plaintext.
// Values that are not envelopes fail with ErrAuthenticationFailure.
func (v *Vault) Open(raw json.RawMessage) (json.RawMessage, error) {
	env, err := ParseEnvelope(raw)
	if err != nil {
		return nil, err
	}
	return v.decryptRaw(env)
}

// ParseEnvelope decodes a serialized envelope.
func ParseEnvelope(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := codec.DecodeInto(raw, &env); err != nil {
		if errors.Is(err, codec.ErrMalformed) {
			return nil, domain.ErrAuthenticationFailure.WithDetails("not a vault envelope")
		}
		return nil, domain.ErrAuthenticationFailure.Wrap(err)
	}
	return &env, nil
}

// Zero wipes the vault key. The vault is unusable afterwards.
func (v *Vault) Zero() {
	Zero(v.key)
}

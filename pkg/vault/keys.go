package vault

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"

	"github.com/celerix-dev/celerix-store/pkg/crypto/adaptive"
	"github.com/celerix-dev/celerix-store/pkg/domain"
)

const (
	// SaltLength is the salt length used by DeriveKey.
	SaltLength = 16

	// MinMasterKeyLength bounds the input accepted by DeriveSubkey.
	MinMasterKeyLength = 16

	argon2Time    = 3
	argon2Memory  = 64 * 1024
	argon2Threads = 4
)

// GenerateKey returns a random 32-byte vault key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, adaptive.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("vault: generate key: %w", err)
	}
	return key, nil
}

// NewSalt returns a random salt for DeriveKey.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("vault: generate salt: %w", err)
	}
	return salt, nil
}

// DeriveKey stretches a passphrase into a 32-byte key with Argon2id.
// The same passphrase and salt always yield the same key.
func DeriveKey(passphrase, salt []byte) ([]byte, error) {
	if len(passphrase) == 0 {
		return nil, domain.ErrInvalidVaultKey.WithDetails("empty passphrase")
	}
	if len(salt) < SaltLength {
		return nil, domain.ErrInvalidVaultKey.WithDetailsf("salt must be at least %d bytes", SaltLength)
	}
	return argon2.IDKey(passphrase, salt, argon2Time, argon2Memory, argon2Threads, adaptive.KeySize), nil
}

// DeriveSubkey derives a purpose-bound 32-byte key from master with
// HKDF-SHA256. Distinct info strings yield independent keys.
func DeriveSubkey(master []byte, info string) ([]byte, error) {
	if len(master) < MinMasterKeyLength {
		return nil, domain.ErrInvalidVaultKey.WithDetailsf("master key must be at least %d bytes", MinMasterKeyLength)
	}
	r := hkdf.New(sha256.New, master, nil, []byte(info))
	key := make([]byte, adaptive.KeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("vault: derive subkey: %w", err)
	}
	return key, nil
}

// ParseKey decodes a textual key (hex or standard base64) and checks
// that it is 32 bytes.
func ParseKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	key, err := hex.DecodeString(s)
	if err != nil {
		key, err = base64.StdEncoding.DecodeString(s)
	}
	if err != nil {
		return nil, domain.ErrInvalidVaultKey.WithDetails("key is neither hex nor base64")
	}
	if len(key) != adaptive.KeySize {
		return nil, domain.ErrInvalidVaultKey.WithDetailsf("key is %d bytes, want %d", len(key), adaptive.KeySize)
	}
	return key, nil
}

// Zero overwrites key with zeros.
func Zero(key []byte) {
	for i := range key {
		key[i] = 0
	}
}

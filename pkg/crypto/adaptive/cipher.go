package adaptive

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"runtime"

	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize is the only accepted key length.
const KeySize = 32

// CipherType identifies the cipher algorithm.
type CipherType string

const (
	CipherAESGCM   CipherType = "aes-gcm"
	CipherChaCha20 CipherType = "chacha20-poly1305"
)

var (
	// ErrKeySize is returned for keys that are not KeySize bytes.
	ErrKeySize = errors.New("adaptive: key must be 32 bytes")

	// ErrUnknownCipher is returned for unrecognized cipher names.
	ErrUnknownCipher = errors.New("adaptive: unknown cipher type")

	// ErrShortCiphertext is returned when input cannot hold a nonce and tag.
	ErrShortCiphertext = errors.New("adaptive: ciphertext too short")

	// ErrOpen is returned when authentication fails.
	ErrOpen = errors.New("adaptive: message authentication failed")
)

// Cipher provides authenticated encryption.
type Cipher interface {
	// Type returns the cipher type.
	Type() CipherType

	// Encrypt seals plaintext under a fresh random nonce and returns
	// nonce||ciphertext||tag.
	Encrypt(plaintext, additionalData []byte) ([]byte, error)

	// Decrypt reverses Encrypt.
	Decrypt(sealed, additionalData []byte) ([]byte, error)

	// Seal encrypts with a caller-supplied nonce and returns ciphertext||tag.
	Seal(nonce, plaintext, additionalData []byte) ([]byte, error)

	// Open reverses Seal.
	Open(nonce, ciphertext, additionalData []byte) ([]byte, error)

	// NonceSize returns the nonce size in bytes.
	NonceSize() int

	// Overhead returns the authentication tag size in bytes.
	Overhead() int
}

// New creates a cipher using the preferred algorithm for this platform.
func New(key []byte) (Cipher, error) {
	return NewWithType(key, Preferred())
}

// Preferred returns AES-GCM where Go uses hardware AES (amd64, arm64)
// and ChaCha20-Poly1305 elsewhere.
func Preferred() CipherType {
	switch runtime.GOARCH {
	case "amd64", "arm64":
		return CipherAESGCM
	default:
		return CipherChaCha20
	}
}

// ParseType validates a cipher name. The empty string selects AES-GCM.
func ParseType(name string) (CipherType, error) {
	switch CipherType(name) {
	case "", CipherAESGCM:
		return CipherAESGCM, nil
	case CipherChaCha20:
		return CipherChaCha20, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCipher, name)
	}
}

// NewWithType creates a cipher of the specified type.
func NewWithType(key []byte, cipherType CipherType) (Cipher, error) {
	if len(key) != KeySize {
		return nil, ErrKeySize
	}

	var (
		a   cipher.AEAD
		err error
	)
	switch cipherType {
	case CipherAESGCM:
		var block cipher.Block
		block, err = aes.NewCipher(key)
		if err == nil {
			a, err = cipher.NewGCM(block)
		}
	case CipherChaCha20:
		a, err = chacha20poly1305.New(key)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCipher, cipherType)
	}
	if err != nil {
		return nil, err
	}
	return &aead{typ: cipherType, aead: a}, nil
}

// aead adapts a cipher.AEAD to Cipher. Safe for concurrent use.
type aead struct {
	typ  CipherType
	aead cipher.AEAD
}

func (c *aead) Type() CipherType { return c.typ }

func (c *aead) NonceSize() int { return c.aead.NonceSize() }

func (c *aead) Overhead() int { return c.aead.Overhead() }

func (c *aead) Encrypt(plaintext, additionalData []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plaintext)+c.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return c.aead.Seal(nonce, nonce, plaintext, additionalData), nil
}

func (c *aead) Decrypt(sealed, additionalData []byte) ([]byte, error) {
	ns := c.aead.NonceSize()
	if len(sealed) < ns+c.aead.Overhead() {
		return nil, ErrShortCiphertext
	}
	return c.Open(sealed[:ns], sealed[ns:], additionalData)
}

func (c *aead) Seal(nonce, plaintext, additionalData []byte) ([]byte, error) {
	if len(nonce) != c.aead.NonceSize() {
		return nil, fmt.Errorf("adaptive: nonce must be %d bytes", c.aead.NonceSize())
	}
	return c.aead.Seal(nil, nonce, plaintext, additionalData), nil
}

func (c *aead) Open(nonce, ciphertext, additionalData []byte) ([]byte, error) {
	if len(nonce) != c.aead.NonceSize() || len(ciphertext) < c.aead.Overhead() {
		return nil, ErrShortCiphertext
	}
	pt, err := c.aead.Open(nil, nonce, ciphertext, additionalData)
	if err != nil {
		return nil, ErrOpen
	}
	return pt, nil
}

// NewNonce returns a fresh random nonce for c.
func NewNonce(c Cipher) ([]byte, error) {
	nonce := make([]byte, c.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return nonce, nil
}

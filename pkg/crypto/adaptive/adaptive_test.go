package adaptive

import (
	"bytes"
	"errors"
	"testing"
)

var key32 = make([]byte, 32)

func init() {
	for i := range key32 {
		key32[i] = byte(i)
	}
}

var allTypes = []CipherType{CipherAESGCM, CipherChaCha20}

func TestNew(t *testing.T) {
	c, err := New(key32)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if c.Type() != Preferred() {
		t.Errorf("New() type = %s, want %s", c.Type(), Preferred())
	}
}

func TestNewWithType_KeySize(t *testing.T) {
	tests := []struct {
		name    string
		key     []byte
		wantErr bool
	}{
		{"Valid 32 bytes", key32, false},
		{"Invalid 16 bytes", make([]byte, 16), true},
		{"Invalid 24 bytes", make([]byte, 24), true},
		{"Invalid 31 bytes", make([]byte, 31), true},
		{"Invalid 33 bytes", make([]byte, 33), true},
	}

	for _, typ := range allTypes {
		for _, tt := range tests {
			t.Run(string(typ)+"/"+tt.name, func(t *testing.T) {
				_, err := NewWithType(tt.key, typ)
				if tt.wantErr && !errors.Is(err, ErrKeySize) {
					t.Errorf("NewWithType() error = %v, want ErrKeySize", err)
				}
				if !tt.wantErr && err != nil {
					t.Errorf("NewWithType() error = %v", err)
				}
			})
		}
	}
}

func TestNewWithType_Unknown(t *testing.T) {
	if _, err := NewWithType(key32, "rot13"); !errors.Is(err, ErrUnknownCipher) {
		t.Errorf("NewWithType(unknown) error = %v", err)
	}
}

func TestParseType(t *testing.T) {
	for in, want := range map[string]CipherType{
		"":                  CipherAESGCM,
		"aes-gcm":           CipherAESGCM,
		"chacha20-poly1305": CipherChaCha20,
	} {
		got, err := ParseType(in)
		if err != nil || got != want {
			t.Errorf("ParseType(%q) = %s, %v", in, got, err)
		}
	}
	if _, err := ParseType("des"); err == nil {
		t.Error("ParseType(des) should fail")
	}
}

func TestEncryptDecrypt(t *testing.T) {
	tests := []struct {
		name           string
		plaintext      []byte
		additionalData []byte
	}{
		{"Empty", []byte{}, nil},
		{"Simple", []byte("hello world"), nil},
		{"With AAD", []byte("secret data"), []byte("authenticated")},
		{"Large", bytes.Repeat([]byte("A"), 1024), nil},
		{"Binary", []byte{0x00, 0xFF, 0x7F, 0x80}, []byte{0x01, 0x02}},
	}

	for _, typ := range allTypes {
		c, err := NewWithType(key32, typ)
		if err != nil {
			t.Fatal(err)
		}
		for _, tt := range tests {
			t.Run(string(typ)+"/"+tt.name, func(t *testing.T) {
				sealed, err := c.Encrypt(tt.plaintext, tt.additionalData)
				if err != nil {
					t.Fatalf("Encrypt() error = %v", err)
				}
				if want := len(tt.plaintext) + c.NonceSize() + c.Overhead(); len(sealed) != want {
					t.Errorf("sealed length = %d, want %d", len(sealed), want)
				}
				pt, err := c.Decrypt(sealed, tt.additionalData)
				if err != nil {
					t.Fatalf("Decrypt() error = %v", err)
				}
				if !bytes.Equal(pt, tt.plaintext) {
					t.Errorf("Decrypt() = %v, want %v", pt, tt.plaintext)
				}
			})
		}
	}
}

func TestSealOpen(t *testing.T) {
	for _, typ := range allTypes {
		t.Run(string(typ), func(t *testing.T) {
			c, _ := NewWithType(key32, typ)
			nonce, err := NewNonce(c)
			if err != nil {
				t.Fatal(err)
			}
			ct, err := c.Seal(nonce, []byte("payload"), []byte("hdr"))
			if err != nil {
				t.Fatal(err)
			}
			pt, err := c.Open(nonce, ct, []byte("hdr"))
			if err != nil || string(pt) != "payload" {
				t.Fatalf("Open() = %q, %v", pt, err)
			}
			if _, err := c.Seal(nonce[:4], nil, nil); err == nil {
				t.Error("Seal() with short nonce should fail")
			}
		})
	}
}

func TestDecrypt_Tampered(t *testing.T) {
	for _, typ := range allTypes {
		t.Run(string(typ), func(t *testing.T) {
			c, _ := NewWithType(key32, typ)
			aad := []byte("authenticated data")
			sealed, err := c.Encrypt([]byte("secret message"), aad)
			if err != nil {
				t.Fatal(err)
			}

			tampered := bytes.Clone(sealed)
			tampered[len(tampered)-1] ^= 0xFF
			if _, err := c.Decrypt(tampered, aad); !errors.Is(err, ErrOpen) {
				t.Errorf("tampered: error = %v, want ErrOpen", err)
			}
			if _, err := c.Decrypt(sealed, []byte("wrong aad")); !errors.Is(err, ErrOpen) {
				t.Errorf("wrong aad: error = %v, want ErrOpen", err)
			}
			if _, err := c.Decrypt(sealed[:c.NonceSize()+3], aad); !errors.Is(err, ErrShortCiphertext) {
				t.Errorf("truncated: error = %v, want ErrShortCiphertext", err)
			}

			other := bytes.Clone(key32)
			other[0] ^= 1
			wrong, _ := NewWithType(other, typ)
			if _, err := wrong.Decrypt(sealed, aad); !errors.Is(err, ErrOpen) {
				t.Errorf("wrong key: error = %v, want ErrOpen", err)
			}
		})
	}
}

func TestEncrypt_Uniqueness(t *testing.T) {
	c, _ := NewWithType(key32, CipherAESGCM)
	seen := make(map[string]bool)

	for i := 0; i < 10; i++ {
		sealed, err := c.Encrypt([]byte("same plaintext"), nil)
		if err != nil {
			t.Fatalf("Encrypt() error = %v", err)
		}
		if seen[string(sealed)] {
			t.Error("Encrypt() produced duplicate ciphertext (nonce collision)")
		}
		seen[string(sealed)] = true
	}
}

func BenchmarkEncrypt_1KB(b *testing.B) {
	plaintext := bytes.Repeat([]byte("A"), 1024)
	for _, typ := range allTypes {
		c, _ := NewWithType(key32, typ)
		b.Run(string(typ), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				c.Encrypt(plaintext, nil)
			}
		})
	}
}

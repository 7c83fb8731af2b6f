// Package adaptive provides the AEAD primitives behind vault envelopes
// and at-rest snapshot encryption.
//
// Supported algorithms, both with 256-bit keys, 96-bit nonces and
// 128-bit tags:
//
//   - AES-256-GCM: preferred where the CPU accelerates AES
//   - ChaCha20-Poly1305: software-friendly alternative
//
// Encrypt/Decrypt use the combined nonce||ciphertext||tag layout.
// Seal/Open take the nonce separately for formats that store it as
// its own field.
//
// Usage:
//
//	c, err := adaptive.NewWithType(key, adaptive.CipherAESGCM)
//	sealed, err := c.Encrypt(plaintext, aad)
//	plaintext, err := c.Decrypt(sealed, aad)
package adaptive

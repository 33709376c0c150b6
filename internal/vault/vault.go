// ABOUTME: Encrypted-at-rest vault for provider credentials.
// ABOUTME: AES-256-GCM keyed by a process-wide master key; plaintext never persisted.

package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"
)

// MasterKeySize is the required master key length (AES-256).
const MasterKeySize = 32

// ErrKeyMismatch is returned when a ciphertext fails authentication,
// which in practice means the master key was rotated without
// re-encrypting existing secrets. It is deliberately distinct from
// ErrMalformed so operators can diagnose key-rotation incidents.
var ErrKeyMismatch = errors.New("vault master key mismatch")

// ErrMalformed is returned when ciphertext or IV bytes are structurally invalid.
var ErrMalformed = errors.New("malformed ciphertext")

// ErrBadMasterKey is returned when the configured master key has the wrong length.
var ErrBadMasterKey = errors.New("master key must be 32 bytes")

// Vault encrypts and decrypts provider credentials with one master key.
// It holds no plaintext between calls.
type Vault struct {
	aead cipher.AEAD
}

// New creates a Vault from a 32-byte master key.
func New(masterKey []byte) (*Vault, error) {
	if len(masterKey) != MasterKeySize {
		return nil, fmt.Errorf("%w: got %d", ErrBadMasterKey, len(masterKey))
	}

	block, err := aes.NewCipher(masterKey)
	if err != nil {
		return nil, fmt.Errorf("initializing cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("initializing GCM: %w", err)
	}

	return &Vault{aead: aead}, nil
}

// Encrypt seals a plaintext secret under the master key.
// Returns the ciphertext (including the GCM tag) and the random IV used.
func (v *Vault) Encrypt(plaintext []byte) (ciphertext, iv []byte, err error) {
	iv = make([]byte, v.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, nil, fmt.Errorf("generating iv: %w", err)
	}

	ciphertext = v.aead.Seal(nil, iv, plaintext, nil)
	return ciphertext, iv, nil
}

// Decrypt opens a ciphertext produced by Encrypt. Returns ErrMalformed
// for structurally invalid input and ErrKeyMismatch when authentication
// fails (wrong or rotated master key, or tampered ciphertext).
func (v *Vault) Decrypt(ciphertext, iv []byte) ([]byte, error) {
	if len(iv) != v.aead.NonceSize() {
		return nil, fmt.Errorf("%w: iv is %d bytes, want %d", ErrMalformed, len(iv), v.aead.NonceSize())
	}
	if len(ciphertext) < v.aead.Overhead() {
		return nil, fmt.Errorf("%w: ciphertext shorter than auth tag", ErrMalformed)
	}

	plaintext, err := v.aead.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, ErrKeyMismatch
	}
	return plaintext, nil
}

// Mask returns a preview of a secret safe for logs and listings:
// the first four and last two characters with the middle elided.
// Short secrets are fully elided.
func Mask(secret string) string {
	if len(secret) <= 8 {
		return strings.Repeat("*", len(secret))
	}
	return secret[:4] + "..." + secret[len(secret)-2:]
}

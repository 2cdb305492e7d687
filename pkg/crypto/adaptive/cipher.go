// Package adaptive provides authenticated encryption with automatic
// algorithm selection.
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

// CipherType identifies the cipher algorithm.
type CipherType string

const (
	CipherAESGCM    CipherType = "aes-gcm"
	CipherChaCha20  CipherType = "chacha20-poly1305"
	CipherXChaCha20 CipherType = "xchacha20-poly1305"
)

// KeySize is the key length, in bytes, every supported algorithm accepts.
const KeySize = 32

// ErrCiphertextTooShort is returned when a sealed payload is shorter than
// its nonce.
var ErrCiphertextTooShort = errors.New("adaptive: ciphertext too short")

// Cipher provides authenticated encryption. Implementations are safe for
// concurrent use.
type Cipher interface {
	// Type returns the cipher type.
	Type() CipherType

	// Encrypt seals plaintext. The random nonce is prepended to the result.
	Encrypt(plaintext, additionalData []byte) ([]byte, error)

	// Decrypt opens a payload produced by Encrypt with the same additional data.
	Decrypt(ciphertext, additionalData []byte) ([]byte, error)

	// NonceSize returns the nonce size in bytes.
	NonceSize() int

	// Overhead returns the bytes Encrypt adds on top of the plaintext.
	Overhead() int
}

// New creates a cipher for key, preferring AES-GCM where the platform
// accelerates it and ChaCha20-Poly1305 elsewhere.
func New(key []byte) (Cipher, error) {
	return NewWithType(key, Preferred())
}

// Preferred returns the cipher type New would pick on this platform.
func Preferred() CipherType {
	switch runtime.GOARCH {
	case "amd64", "arm64", "s390x", "ppc64le":
		return CipherAESGCM
	default:
		return CipherChaCha20
	}
}

// ParseType validates a configured algorithm name. The empty string
// selects Preferred.
func ParseType(name string) (CipherType, error) {
	switch t := CipherType(name); t {
	case "":
		return Preferred(), nil
	case CipherAESGCM, CipherChaCha20, CipherXChaCha20:
		return t, nil
	default:
		return "", fmt.Errorf("adaptive: unknown cipher type %q", name)
	}
}

// NewWithType creates a cipher of the specified type.
func NewWithType(key []byte, cipherType CipherType) (Cipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("adaptive: %s requires a %d-byte key, got %d", cipherType, KeySize, len(key))
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
	case CipherXChaCha20:
		a, err = chacha20poly1305.NewX(key)
	default:
		return nil, fmt.Errorf("adaptive: unknown cipher type %q", cipherType)
	}
	if err != nil {
		return nil, fmt.Errorf("adaptive: init %s: %w", cipherType, err)
	}

	return &aeadCipher{typ: cipherType, aead: a}, nil
}

// aeadCipher adapts a cipher.AEAD to Cipher with nonce-prefixed output.
type aeadCipher struct {
	typ  CipherType
	aead cipher.AEAD
}

func (c *aeadCipher) Type() CipherType { return c.typ }

func (c *aeadCipher) NonceSize() int { return c.aead.NonceSize() }

func (c *aeadCipher) Overhead() int { return c.aead.NonceSize() + c.aead.Overhead() }

func (c *aeadCipher) Encrypt(plaintext, additionalData []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plaintext)+c.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return c.aead.Seal(nonce, nonce, plaintext, additionalData), nil
}

func (c *aeadCipher) Decrypt(ciphertext, additionalData []byte) ([]byte, error) {
	ns := c.aead.NonceSize()
	if len(ciphertext) < ns {
		return nil, ErrCiphertextTooShort
	}
	return c.aead.Open(nil, ciphertext[:ns], ciphertext[ns:], additionalData)
}

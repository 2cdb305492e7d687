package adaptive

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"
)

// KDF names a password-based key derivation function.
type KDF string

const (
	KDFPBKDF2   KDF = "pbkdf2"
	KDFArgon2id KDF = "argon2id"
)

// DefaultIterations is the PBKDF2 work factor used when none is configured.
const DefaultIterations = 100_000

// Argon2id parameters. The iteration count passed to DeriveKeyWith is the
// time parameter.
const (
	DefaultArgon2Time = 3
	argon2Memory      = 64 * 1024
	argon2Threads     = 4
)

// ErrEmptySecret is returned by DeriveKey for an empty password or salt.
var ErrEmptySecret = errors.New("adaptive: password and salt must be non-empty")

// ParseKDF validates a KDF name. The empty string selects KDFPBKDF2.
func ParseKDF(name string) (KDF, error) {
	switch k := KDF(strings.ToLower(strings.TrimSpace(name))); k {
	case "":
		return KDFPBKDF2, nil
	case KDFPBKDF2, KDFArgon2id:
		return k, nil
	default:
		return "", fmt.Errorf("adaptive: unsupported kdf %q", name)
	}
}

// DeriveKey stretches a password into a KeySize key with
// PBKDF2-HMAC-SHA256. iterations <= 0 selects DefaultIterations.
func DeriveKey(password, salt []byte, iterations int) ([]byte, error) {
	return DeriveKeyWith(KDFPBKDF2, password, salt, iterations)
}

// DeriveKeyWith stretches a password into a KeySize key with kdf.
// iterations <= 0 selects the KDF's default work factor.
func DeriveKeyWith(kdf KDF, password, salt []byte, iterations int) ([]byte, error) {
	if len(password) == 0 || len(salt) == 0 {
		return nil, ErrEmptySecret
	}

	switch kdf {
	case "", KDFPBKDF2:
		if iterations <= 0 {
			iterations = DefaultIterations
		}
		return pbkdf2.Key(password, salt, iterations, KeySize, sha256.New), nil
	case KDFArgon2id:
		if iterations <= 0 {
			iterations = DefaultArgon2Time
		}
		return argon2.IDKey(password, salt, uint32(iterations), argon2Memory, argon2Threads, KeySize), nil
	default:
		return nil, fmt.Errorf("adaptive: unsupported kdf %q", kdf)
	}
}

// NewFromPassword derives a key with kdf and builds a cipher of the
// given type.
func NewFromPassword(kdf KDF, password, salt []byte, iterations int, cipherType CipherType) (Cipher, error) {
	key, err := DeriveKeyWith(kdf, password, salt, iterations)
	if err != nil {
		return nil, err
	}
	return NewWithType(key, cipherType)
}

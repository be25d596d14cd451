// Package credvault seals secret values before they are persisted. Sealed
// blobs carry their algorithm in the first byte and bind the secret name as
// associated data, so a blob copied onto another name fails to open.
package credvault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize is the master key size in bytes.
const KeySize = 32

type Algorithm = int8

const (
	AlgorithmNone              Algorithm = 0
	AlgorithmXChaCha20Poly1305 Algorithm = 1
	AlgorithmAES256GCM         Algorithm = 2
)

var (
	ErrInvalidKeySize  = errors.New("credvault: key must be 32 bytes")
	ErrSealedTooShort  = errors.New("credvault: sealed value too short")
	ErrUnsupportedAlgo = errors.New("credvault: unsupported algorithm")
	ErrOpenFailed      = errors.New("credvault: cannot open sealed value")
)

// Argon2id parameters for passphrase derived keys.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

type Vault struct {
	key  []byte
	algo Algorithm
}

// New returns a vault sealing with XChaCha20-Poly1305.
func New(key []byte) (*Vault, error) {
	return NewWithAlgorithm(key, AlgorithmXChaCha20Poly1305)
}

func NewWithAlgorithm(key []byte, algo Algorithm) (*Vault, error) {
	if algo != AlgorithmNone {
		if len(key) != KeySize {
			return nil, ErrInvalidKeySize
		}
		if _, err := newAEAD(key, algo); err != nil {
			return nil, err
		}
	}
	return &Vault{key: append([]byte(nil), key...), algo: algo}, nil
}

// KeyFromHex decodes a 64 character hex master key.
func KeyFromHex(s string) ([]byte, error) {
	key, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("credvault: decode key: %w", err)
	}
	if len(key) != KeySize {
		return nil, ErrInvalidKeySize
	}
	return key, nil
}

// KeyFromPassphrase derives a master key with Argon2id.
func KeyFromPassphrase(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, KeySize)
}

func (v *Vault) Algorithm() Algorithm {
	return v.algo
}

// Seal encrypts plaintext for the secret called name.
// Output format: [algorithm][nonce][ciphertext+tag]
func (v *Vault) Seal(name string, plaintext []byte) ([]byte, error) {
	if v.algo == AlgorithmNone {
		return append([]byte{byte(AlgorithmNone)}, plaintext...), nil
	}
	aead, err := newAEAD(v.key, v.algo)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 1+aead.NonceSize(), 1+aead.NonceSize()+len(plaintext)+aead.Overhead())
	out[0] = byte(v.algo)
	nonce := out[1:]
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("credvault: generate nonce: %w", err)
	}
	return aead.Seal(out, nonce, plaintext, []byte(name)), nil
}

// Open reverses Seal. The algorithm is read from the blob, so values sealed
// before a vault's algorithm changed still open.
func (v *Vault) Open(name string, sealed []byte) ([]byte, error) {
	if len(sealed) < 1 {
		return nil, ErrSealedTooShort
	}
	algo := Algorithm(sealed[0])
	if algo == AlgorithmNone {
		return append([]byte(nil), sealed[1:]...), nil
	}
	aead, err := newAEAD(v.key, algo)
	if err != nil {
		return nil, err
	}

	body := sealed[1:]
	if len(body) < aead.NonceSize()+aead.Overhead() {
		return nil, ErrSealedTooShort
	}
	nonce, ciphertext := body[:aead.NonceSize()], body[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, []byte(name))
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrOpenFailed, name, err)
	}
	return plaintext, nil
}

func (v *Vault) SealString(name, plaintext string) ([]byte, error) {
	return v.Seal(name, []byte(plaintext))
}

func (v *Vault) OpenString(name string, sealed []byte) (string, error) {
	plaintext, err := v.Open(name, sealed)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

func newAEAD(key []byte, algo Algorithm) (cipher.AEAD, error) {
	switch algo {
	case AlgorithmXChaCha20Poly1305:
		aead, err := chacha20poly1305.NewX(key)
		if err != nil {
			return nil, fmt.Errorf("credvault: create xchacha20 cipher: %w", err)
		}
		return aead, nil
	case AlgorithmAES256GCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("credvault: create aes cipher: %w", err)
		}
		aead, err := cipher.NewGCM(block)
		if err != nil {
			return nil, fmt.Errorf("credvault: create gcm: %w", err)
		}
		return aead, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedAlgo, algo)
	}
}

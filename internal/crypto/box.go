// Package crypto seals group-session payloads with a key shared by everyone
// who knows the session secret. The relay forwards sealed bytes it cannot read.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	KeySize   = 32
	NonceSize = 24
	Overhead  = NonceSize + secretbox.Overhead
)

var (
	ErrEmptySecret = errors.New("empty session secret")
	ErrOpen        = errors.New("cannot open sealed payload")
)

const keyInfo = "multipass group session v1"

// SessionKey derives the sealing key for session from secret with
// HKDF-SHA256, salted by the session name.
func SessionKey(secret, session string) (*[KeySize]byte, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	r := hkdf.New(sha256.New, []byte(secret), []byte(session), []byte(keyInfo))
	var key [KeySize]byte
	if _, err := io.ReadFull(r, key[:]); err != nil {
		return nil, err
	}
	return &key, nil
}

// Seal encrypts plaintext under key. The random nonce is prepended.
func Seal(plaintext []byte, key *[KeySize]byte) ([]byte, error) {
	var nonce [NonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, err
	}
	return secretbox.Seal(nonce[:], plaintext, &nonce, key), nil
}

// Open decrypts a payload produced by Seal.
func Open(sealed []byte, key *[KeySize]byte) ([]byte, error) {
	if len(sealed) < Overhead {
		return nil, ErrOpen
	}
	var nonce [NonceSize]byte
	copy(nonce[:], sealed[:NonceSize])
	out, ok := secretbox.Open(nil, sealed[NonceSize:], &nonce, key)
	if !ok {
		return nil, ErrOpen
	}
	return out, nil
}

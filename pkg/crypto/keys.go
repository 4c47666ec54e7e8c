// Package crypto implements the NaCl envelope pipeline: Curve25519 key
// handling, box sealing of typed messages with trailing random padding,
// symmetric blob encryption with fixed nonces and HMAC identity hashing.
package crypto

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/nacl/box"
)

const (
	// KeySize is the length of Curve25519 public and private keys.
	KeySize = 32

	// NonceSize is the length of a box nonce.
	NonceSize = 24
)

var (
	ErrInvalidKey       = errors.New("invalid key")
	ErrDecryptionFailed = errors.New("decryption failed")
)

// randReader is the process-wide secure random source. Tests swap it for a
// deterministic reader.
var randReader io.Reader = rand.Reader

// GenerateKeyPair generates a new Curve25519 key pair.
func GenerateKeyPair() (publicKey, privateKey []byte, err error) {
	pub, priv, err := box.GenerateKey(randReader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate key pair: %w", err)
	}
	return pub[:], priv[:], nil
}

// DerivePublicKey computes the public key belonging to a private key.
func DerivePublicKey(privateKey []byte) ([]byte, error) {
	if len(privateKey) != KeySize {
		return nil, ErrInvalidKey
	}
	pub, err := curve25519.X25519(privateKey, curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return pub, nil
}

// RandomNonce generates a fresh 24-byte nonce.
func RandomNonce() ([]byte, error) {
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(randReader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return nonce, nil
}

func toKeyArray(key []byte) (*[KeySize]byte, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	var arr [KeySize]byte
	copy(arr[:], key)
	return &arr, nil
}

func toNonceArray(nonce []byte) (*[NonceSize]byte, error) {
	if len(nonce) != NonceSize {
		return nil, fmt.Errorf("%w: nonce must be %d bytes", ErrInvalidKey, NonceSize)
	}
	var arr [NonceSize]byte
	copy(arr[:], nonce)
	return &arr, nil
}

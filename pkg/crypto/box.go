package crypto

import (
	"fmt"

	"golang.org/x/crypto/nacl/box"

	"github.com/threema-gateway/go-msgapi/pkg/protocol"
)

// Encrypt seals plaintext with Curve25519-XSalsa20-Poly1305 under the given
// nonce and key pair.
func Encrypt(plaintext, nonce, privateKey, publicKey []byte) ([]byte, error) {
	priv, err := toKeyArray(privateKey)
	if err != nil {
		return nil, err
	}
	pub, err := toKeyArray(publicKey)
	if err != nil {
		return nil, err
	}
	n, err := toNonceArray(nonce)
	if err != nil {
		return nil, err
	}
	return box.Seal(nil, plaintext, n, pub, priv), nil
}

// Decrypt opens a box. A rejected authenticator fails with
// ErrDecryptionFailed.
func Decrypt(ciphertext, nonce, privateKey, publicKey []byte) ([]byte, error) {
	priv, err := toKeyArray(privateKey)
	if err != nil {
		return nil, err
	}
	pub, err := toKeyArray(publicKey)
	if err != nil {
		return nil, err
	}
	n, err := toNonceArray(nonce)
	if err != nil {
		return nil, err
	}
	plaintext, ok := box.Open(nil, ciphertext, n, pub, priv)
	if !ok {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// EncryptMessage runs a typed message through the envelope pipeline:
// serialize (type byte plus body), append random trailing padding, seal
// under a fresh nonce. Returns the box and the nonce.
func EncryptMessage(msg protocol.Message, senderPrivate, recipientPublic []byte) (ciphertext, nonce []byte, err error) {
	data, err := protocol.Marshal(msg)
	if err != nil {
		return nil, nil, err
	}
	padded, err := addPadding(data)
	if err != nil {
		return nil, nil, err
	}
	nonce, err = RandomNonce()
	if err != nil {
		return nil, nil, err
	}
	ciphertext, err = Encrypt(padded, nonce, senderPrivate, recipientPublic)
	if err != nil {
		return nil, nil, err
	}
	return ciphertext, nonce, nil
}

// DecryptMessage inverts EncryptMessage: open the box, strip the padding and
// decode the typed message.
func DecryptMessage(ciphertext, nonce, recipientPrivate, senderPublic []byte) (protocol.Message, error) {
	padded, err := Decrypt(ciphertext, nonce, recipientPrivate, senderPublic)
	if err != nil {
		return nil, err
	}
	data, err := removePadding(padded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", protocol.ErrBadMessage, err)
	}
	return protocol.DecodeMessage(data)
}

package crypto

import (
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"

	"github.com/threema-gateway/go-msgapi/pkg/protocol"
)

// Fixed nonces for symmetric blob encryption. The file and its thumbnail
// share one random key, so they must use distinct nonces.
var (
	fileNonce      = [NonceSize]byte{23: 0x01}
	thumbnailNonce = [NonceSize]byte{23: 0x02}
)

// EncryptFileData encrypts file contents with a fresh random 32-byte key
// under the fixed file nonce. The key is returned so the caller can reuse it
// for the thumbnail and embed it in the file message.
func EncryptFileData(data []byte) ([]byte, protocol.BlobKey, error) {
	var key protocol.BlobKey
	if _, err := io.ReadFull(randReader, key[:]); err != nil {
		return nil, key, fmt.Errorf("failed to generate blob key: %w", err)
	}
	return secretbox.Seal(nil, data, &fileNonce, (*[32]byte)(&key)), key, nil
}

// EncryptFileThumbnailData encrypts thumbnail contents with the key of the
// primary file under the fixed thumbnail nonce.
func EncryptFileThumbnailData(data []byte, key protocol.BlobKey) []byte {
	return secretbox.Seal(nil, data, &thumbnailNonce, (*[32]byte)(&key))
}

// DecryptFileData decrypts file contents downloaded from the blob server.
func DecryptFileData(ciphertext []byte, key protocol.BlobKey) ([]byte, error) {
	plaintext, ok := secretbox.Open(nil, ciphertext, &fileNonce, (*[32]byte)(&key))
	if !ok {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// DecryptFileThumbnailData decrypts a thumbnail blob.
func DecryptFileThumbnailData(ciphertext []byte, key protocol.BlobKey) ([]byte, error) {
	plaintext, ok := secretbox.Open(nil, ciphertext, &thumbnailNonce, (*[32]byte)(&key))
	if !ok {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

package crypto

import (
	"fmt"
	"io"
)

// addPadding appends PKCS7-style trailing padding: p copies of the byte p
// for a uniformly random p in [1,255]. At least one byte is always added so
// the padding length is never ambiguous.
func addPadding(data []byte) ([]byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(randReader, b[:]); err != nil {
		return nil, fmt.Errorf("failed to draw padding length: %w", err)
	}
	padLen := int(b[0])%255 + 1

	padded := make([]byte, len(data)+padLen)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}
	return padded, nil
}

// removePadding strips trailing padding. The result must still hold at
// least a type byte and one body byte.
func removePadding(padded []byte) ([]byte, error) {
	if len(padded) == 0 {
		return nil, fmt.Errorf("padded message is empty")
	}
	padLen := int(padded[len(padded)-1])
	if padLen < 1 || len(padded)-padLen < 2 {
		return nil, fmt.Errorf("invalid padding length %d for %d bytes", padLen, len(padded))
	}
	return padded[:len(padded)-padLen], nil
}

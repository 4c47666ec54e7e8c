// Package datautil provides the primitive byte-level codecs shared by the
// protocol and gateway packages: hex conversion, integer packing and the
// key file format.
package datautil

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"strings"
)

var ErrInvalidHex = errors.New("invalid hex")

// EncodeHex encodes bytes as lowercase hex.
func EncodeHex(data []byte) string {
	return hex.EncodeToString(data)
}

// DecodeHex decodes a hex string. Input is accepted case-insensitively and
// whitespace is stripped before decoding. Odd length or non-hex characters
// fail with ErrInvalidHex.
func DecodeHex(s string) ([]byte, error) {
	s = stripWhitespace(s)
	if len(s)%2 != 0 {
		return nil, ErrInvalidHex
	}
	data, err := hex.DecodeString(strings.ToLower(s))
	if err != nil {
		return nil, ErrInvalidHex
	}
	return data, nil
}

func stripWhitespace(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, s)
}

// PutUint32LE writes v to buf in little-endian order.
func PutUint32LE(buf []byte, v uint32) {
	binary.LittleEndian.PutUint32(buf, v)
}

// Uint32LE reads a little-endian uint32 from buf.
func Uint32LE(buf []byte) uint32 {
	return binary.LittleEndian.Uint32(buf)
}

// PutUint64BE writes v to buf in big-endian order.
func PutUint64BE(buf []byte, v uint64) {
	binary.BigEndian.PutUint64(buf, v)
}

// Uint64BE reads a big-endian uint64 from buf.
func Uint64BE(buf []byte) uint64 {
	return binary.BigEndian.Uint64(buf)
}

// RandomBytes fills a new buffer of length n from the process-wide secure
// random source.
func RandomBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

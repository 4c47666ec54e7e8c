package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"strings"
)

// Fixed HMAC-SHA256 keys for identity lookup hashing. These are protocol
// constants and must match the gateway byte-for-byte.
var (
	emailHashKey = []byte{
		0x30, 0xa5, 0x50, 0x0f, 0xed, 0x97, 0x01, 0xfa,
		0x6d, 0xef, 0xdb, 0x61, 0x08, 0x41, 0x90, 0x0f,
		0xeb, 0xb8, 0xe4, 0x30, 0x88, 0x1f, 0x7a, 0xd8,
		0x16, 0x82, 0x62, 0x64, 0xec, 0x09, 0xba, 0xd7,
	}
	phoneHashKey = []byte{
		0x85, 0xad, 0xf8, 0x22, 0x69, 0x53, 0xf3, 0xd9,
		0x6c, 0xfd, 0x5d, 0x09, 0xbf, 0x29, 0x55, 0x5e,
		0xb9, 0x55, 0xfc, 0xd8, 0xaa, 0x5e, 0xc4, 0xf9,
		0xfc, 0xd8, 0x69, 0xe2, 0x58, 0x37, 0x07, 0x23,
	}
)

// HashEmail normalizes an email address (trim surrounding whitespace,
// lowercase) and hashes it for the lookup endpoint.
func HashEmail(email string) []byte {
	normalized := strings.ToLower(strings.TrimSpace(email))
	mac := hmac.New(sha256.New, emailHashKey)
	mac.Write([]byte(normalized))
	return mac.Sum(nil)
}

// HashPhone normalizes a phone number (strip every non-digit) and hashes it
// for the lookup endpoint.
func HashPhone(phone string) []byte {
	var digits strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	mac := hmac.New(sha256.New, phoneHashKey)
	mac.Write([]byte(digits.String()))
	return mac.Sum(nil)
}

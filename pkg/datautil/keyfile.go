package datautil

import (
	"fmt"
	"os"
	"strings"
)

// Key file type prefixes.
const (
	KeyTypePublic  = "public"
	KeyTypePrivate = "private"
)

// WriteKeyFile writes a 32-byte key to path as a single line
// "<keyType>:<64 hex>\n" with mode 0600.
func WriteKeyFile(path, keyType string, key []byte) error {
	if keyType != KeyTypePublic && keyType != KeyTypePrivate {
		return fmt.Errorf("unknown key type %q", keyType)
	}
	if len(key) != 32 {
		return fmt.Errorf("key must be 32 bytes, got %d", len(key))
	}
	line := keyType + ":" + EncodeHex(key) + "\n"
	return os.WriteFile(path, []byte(line), 0600)
}

// ReadKeyFile reads a key file written by WriteKeyFile and checks that the
// type prefix matches expectedType.
func ReadKeyFile(path, expectedType string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	line := strings.TrimSpace(string(data))
	keyType, hexPart, found := strings.Cut(line, ":")
	if !found {
		return nil, fmt.Errorf("malformed key file %s: missing type prefix", path)
	}
	if keyType != expectedType {
		return nil, fmt.Errorf("key file %s holds a %s key, expected %s", path, keyType, expectedType)
	}
	key, err := DecodeHex(hexPart)
	if err != nil {
		return nil, fmt.Errorf("malformed key file %s: %w", path, err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("key file %s holds %d bytes, expected 32", path, len(key))
	}
	return key, nil
}

// WriteHexFile writes data to path as a single lowercase hex line.
func WriteHexFile(path string, data []byte) error {
	return os.WriteFile(path, []byte(EncodeHex(data)+"\n"), 0600)
}

// ReadHexFile reads a hex-encoded file written by WriteHexFile.
func ReadHexFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DecodeHex(string(data))
}

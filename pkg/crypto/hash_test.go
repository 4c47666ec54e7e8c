package crypto

import (
	"bytes"
	"encoding/hex"
	"testing"
)

func TestHashEmail(t *testing.T) {
	// Precomputed with the fixed email key.
	want, _ := hex.DecodeString("da5c2ed8e30b6d71b0dce2d7b0d32bbddcbd4b6417f2f6d245a9412a5e6d2e3e")
	if got := HashEmail("test@mail.box"); !bytes.Equal(got, want) {
		t.Errorf("HashEmail = %x, want %x", got, want)
	}
}

func TestHashEmailNormalization(t *testing.T) {
	a := HashEmail("  Abc@Example.COM ")
	b := HashEmail("abc@example.com")
	if !bytes.Equal(a, b) {
		t.Errorf("normalization mismatch: %x != %x", a, b)
	}

	want, _ := hex.DecodeString("1220c42d135d4fcf0b7c75a806c6a0ad02fcfa925f6b1f7e69eea1bd5e766cca")
	if !bytes.Equal(a, want) {
		t.Errorf("HashEmail = %x, want %x", a, want)
	}
}

func TestHashPhoneNormalization(t *testing.T) {
	a := HashPhone("+41 79 123 45 67")
	b := HashPhone("41791234567")
	if !bytes.Equal(a, b) {
		t.Errorf("normalization mismatch: %x != %x", a, b)
	}

	// Matches the published gateway documentation example.
	want, _ := hex.DecodeString("ad398f4d7ebe63c6550a486cc6e07f9baa09bd9d8b3d8cb9d9be106d35a7fdbc")
	if !bytes.Equal(a, want) {
		t.Errorf("HashPhone = %x, want %x", a, want)
	}
}

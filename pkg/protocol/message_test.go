package protocol

import (
	"bytes"
	"errors"
	"reflect"
	"testing"
)

func mustMarshal(t *testing.T, m Message) []byte {
	t.Helper()
	data, err := Marshal(m)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	return data
}

func TestTextMessageRoundTrip(t *testing.T) {
	orig := &TextMessage{Text: "Dies ist eine Testnachricht. äöü"}
	data := mustMarshal(t, orig)

	if data[0] != TypeText {
		t.Errorf("type byte = 0x%02x, want 0x%02x", data[0], TypeText)
	}

	decoded, err := DecodeMessage(data)
	if err != nil {
		t.Fatalf("DecodeMessage failed: %v", err)
	}
	got, ok := decoded.(*TextMessage)
	if !ok {
		t.Fatalf("decoded type %T, want *TextMessage", decoded)
	}
	if got.Text != orig.Text {
		t.Errorf("text = %q, want %q", got.Text, orig.Text)
	}
}

func TestTextMessageRejectsEmpty(t *testing.T) {
	if _, err := (&TextMessage{}).MarshalBody(); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty text marshaled, err = %v", err)
	}
	if _, err := DecodeMessage([]byte{TypeText}); !errors.Is(err, ErrBadMessage) {
		t.Errorf("empty text decoded, err = %v", err)
	}
}

func TestDeliveryReceiptRoundTrip(t *testing.T) {
	orig := &DeliveryReceipt{
		ReceiptType: ReceiptUserAck,
		MessageIDs: []MessageID{
			{1, 2, 3, 4, 5, 6, 7, 8},
			{8, 7, 6, 5, 4, 3, 2, 1},
		},
	}
	decoded, err := DecodeMessage(mustMarshal(t, orig))
	if err != nil {
		t.Fatalf("DecodeMessage failed: %v", err)
	}
	got, ok := decoded.(*DeliveryReceipt)
	if !ok {
		t.Fatalf("decoded type %T, want *DeliveryReceipt", decoded)
	}
	if !reflect.DeepEqual(got, orig) {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, orig)
	}
}

func TestDeliveryReceiptRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		body []byte
	}{
		{"no ids", []byte{byte(ReceiptRead)}},
		{"truncated id", append([]byte{byte(ReceiptRead)}, make([]byte, 12)...)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := append([]byte{TypeDeliveryReceipt}, tt.body...)
			if _, err := DecodeMessage(data); !errors.Is(err, ErrBadMessage) {
				t.Errorf("DecodeMessage = %v, want ErrBadMessage", err)
			}
		})
	}
}

func TestImageMessageRoundTrip(t *testing.T) {
	orig := &ImageMessage{Size: 0x01020304}
	copy(orig.BlobID[:], bytes.Repeat([]byte{0xab}, BlobIDLen))
	copy(orig.Nonce[:], bytes.Repeat([]byte{0xcd}, NonceLen))

	data := mustMarshal(t, orig)
	// little-endian size right after the blob id
	if data[1+BlobIDLen] != 0x04 || data[1+BlobIDLen+3] != 0x01 {
		t.Errorf("size not little-endian: % x", data[1+BlobIDLen:1+BlobIDLen+4])
	}

	decoded, err := DecodeMessage(data)
	if err != nil {
		t.Fatalf("DecodeMessage failed: %v", err)
	}
	if !reflect.DeepEqual(decoded, orig) {
		t.Errorf("round trip mismatch: got %+v", decoded)
	}
}

func TestLocationMessageRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		msg  LocationMessage
	}{
		{"coords only", LocationMessage{Latitude: 47.3765, Longitude: 8.5214}},
		{"with accuracy", LocationMessage{Latitude: -33.8, Longitude: 151.2, Accuracy: 12.5}},
		{"with address", LocationMessage{Latitude: 47.3765, Longitude: 8.5214, Address: "Bahnhofstrasse 1\n8001 Zürich"}},
		{"with poi and address", LocationMessage{Latitude: 47.3765, Longitude: 8.5214, POIName: "HB", Address: "Zürich"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoded, err := DecodeMessage(mustMarshal(t, &tt.msg))
			if err != nil {
				t.Fatalf("DecodeMessage failed: %v", err)
			}
			got, ok := decoded.(*LocationMessage)
			if !ok {
				t.Fatalf("decoded type %T, want *LocationMessage", decoded)
			}
			if !reflect.DeepEqual(got, &tt.msg) {
				t.Errorf("round trip mismatch: got %+v, want %+v", got, &tt.msg)
			}
		})
	}
}

func TestLocationMessageRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no comma", "47.3765"},
		{"bad latitude", "abc,8.5"},
		{"out of range", "120.0,8.5"},
		{"too many lines", "47.3,8.5\na\nb\nc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := append([]byte{TypeLocation}, tt.body...)
			if _, err := DecodeMessage(data); !errors.Is(err, ErrBadMessage) {
				t.Errorf("DecodeMessage = %v, want ErrBadMessage", err)
			}
		})
	}
}

func TestDecodeMessageUnknownType(t *testing.T) {
	_, err := DecodeMessage([]byte{0x7f, 'x'})
	if !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("DecodeMessage = %v, want ErrUnsupportedType", err)
	}
}

func TestDecodeMessageEmpty(t *testing.T) {
	if _, err := DecodeMessage(nil); !errors.Is(err, ErrBadMessage) {
		t.Errorf("DecodeMessage(nil) = %v, want ErrBadMessage", err)
	}
}

func TestParseMessageID(t *testing.T) {
	id, err := ParseMessageID("0123456789abcdef")
	if err != nil {
		t.Fatalf("ParseMessageID failed: %v", err)
	}
	if id.String() != "0123456789abcdef" {
		t.Errorf("String = %q", id.String())
	}

	if _, err := ParseMessageID("0123"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("short id accepted, err = %v", err)
	}
}

func TestIdentityValidate(t *testing.T) {
	if err := Identity("ECHOECHO").Validate(); err != nil {
		t.Errorf("valid identity rejected: %v", err)
	}
	if err := Identity("SHORT").Validate(); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("short identity accepted, err = %v", err)
	}
}

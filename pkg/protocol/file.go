package protocol

import (
	"encoding/json"
	"fmt"
)

// FileMessage references an uploaded blob, optionally with a thumbnail blob
// protected by the same symmetric key. The body is compact JSON with fixed
// single-letter keys; optional fields are omitted entirely when absent.
type FileMessage struct {
	BlobID             BlobID         `json:"b"`
	ThumbnailBlobID    *BlobID        `json:"t,omitempty"`
	ThumbnailMediaType string         `json:"p,omitempty"`
	EncryptionKey      BlobKey        `json:"k"`
	MimeType           string         `json:"m"`
	FileName           string         `json:"n,omitempty"`
	Size               int            `json:"s"`
	Caption            string         `json:"d,omitempty"`
	Rendering          RenderingType  `json:"j"`
	CorrelationID      string         `json:"c,omitempty"`
	Metadata           map[string]any `json:"x,omitempty"`
}

func (m *FileMessage) TypeCode() byte { return TypeFile }

func (m *FileMessage) MarshalBody() ([]byte, error) {
	if m.MimeType == "" {
		return nil, fmt.Errorf("%w: file message needs a mime type", ErrInvalidInput)
	}
	if m.Rendering < RenderingFile || m.Rendering > RenderingSticker {
		return nil, fmt.Errorf("%w: bad rendering type %d", ErrInvalidInput, m.Rendering)
	}
	return json.Marshal(m)
}

func decodeFile(body []byte) (*FileMessage, error) {
	m, err := parseFileJSON(body)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func parseFileJSON(body []byte) (*FileMessage, error) {
	// Probe for required keys first so a missing field is reported as a
	// structural error rather than a zero value.
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, fmt.Errorf("%w: file message is not valid JSON", ErrBadMessage)
	}
	for _, key := range []string{"b", "k", "m", "s"} {
		if _, ok := probe[key]; !ok {
			return nil, fmt.Errorf("%w: file message missing key %q", ErrBadMessage, key)
		}
	}

	m := &FileMessage{}
	if err := json.Unmarshal(body, m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadMessage, err)
	}
	if m.Rendering < RenderingFile || m.Rendering > RenderingSticker {
		return nil, fmt.Errorf("%w: bad rendering type %d", ErrBadMessage, m.Rendering)
	}
	return m, nil
}

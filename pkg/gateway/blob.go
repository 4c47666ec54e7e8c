package gateway

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"net/http"

	"github.com/threema-gateway/go-msgapi/pkg/protocol"
)

const boundaryChars = "-_0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// randomBoundary draws a fresh multipart boundary of 30 to 40 characters
// from [-_0-9a-zA-Z].
func randomBoundary() (string, error) {
	var lb [1]byte
	if _, err := rand.Read(lb[:]); err != nil {
		return "", err
	}
	length := 30 + int(lb[0])%11

	raw := make([]byte, length)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	buf := make([]byte, length)
	for i, b := range raw {
		buf[i] = boundaryChars[int(b)%len(boundaryChars)]
	}
	return string(buf), nil
}

// UploadBlob uploads encrypted blob data as a multipart form with a single
// part named "blob". With persist the blob survives its first download.
// Returns the 16-byte blob id.
func (c *Client) UploadBlob(data []byte, persist bool) (protocol.BlobID, error) {
	var id protocol.BlobID
	if len(data) == 0 {
		return id, fmt.Errorf("%w: empty blob", protocol.ErrInvalidInput)
	}

	boundary, err := randomBoundary()
	if err != nil {
		return id, fmt.Errorf("failed to generate boundary: %w", err)
	}

	var body bytes.Buffer
	body.WriteString("--" + boundary + "\r\n")
	body.WriteString("Content-Disposition: form-data; name=\"blob\"; filename=\"blob.file\"\r\n")
	body.WriteString("Content-Type: application/octet-stream\r\n\r\n")
	body.Write(data)
	body.WriteString("\r\n--" + boundary + "--\r\n")

	u := c.endpoint("upload_blob")
	query := c.auth()
	if persist {
		query.Set("persist", "true")
	}
	u.RawQuery = query.Encode()

	respBody, _, err := c.do(c.httpClient, http.MethodPost, u.String(),
		"multipart/form-data;boundary="+boundary, &body)
	if err != nil {
		return id, err
	}

	id, err = protocol.ParseBlobID(string(bytes.TrimSpace(respBody)))
	if err != nil {
		return id, fmt.Errorf("gateway returned malformed blob id: %w", err)
	}
	return id, nil
}

// DownloadBlob fetches blob ciphertext. The request is bounded by a 20
// second timeout; the full body is returned at once.
func (c *Client) DownloadBlob(id protocol.BlobID) ([]byte, error) {
	u := c.endpoint("blobs/" + id.String())
	u.RawQuery = c.auth().Encode()

	body, _, err := c.do(c.blobClient, http.MethodGet, u.String(), "", nil)
	if err != nil {
		return nil, err
	}
	return body, nil
}

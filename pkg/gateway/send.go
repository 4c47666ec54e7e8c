package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/threema-gateway/go-msgapi/pkg/datautil"
	"github.com/threema-gateway/go-msgapi/pkg/protocol"
)

// SendSimple sends a plain text message in basic mode: the gateway encrypts
// server-side. Returns the assigned message id.
func (c *Client) SendSimple(to protocol.Identity, text string) (string, error) {
	if err := to.Validate(); err != nil {
		return "", err
	}
	if text == "" {
		return "", fmt.Errorf("%w: empty text", protocol.ErrInvalidInput)
	}
	form := url.Values{}
	form.Set("to", string(to))
	form.Set("text", text)
	return c.postForm("send_simple", form)
}

// SendE2E submits one encrypted envelope. Nonce and box travel hex-encoded
// in form fields. Returns the assigned message id.
func (c *Client) SendE2E(to protocol.Identity, nonce, box []byte) (string, error) {
	if err := to.Validate(); err != nil {
		return "", err
	}
	form := url.Values{}
	form.Set("to", string(to))
	form.Set("nonce", datautil.EncodeHex(nonce))
	form.Set("box", datautil.EncodeHex(box))
	return c.postForm("send_e2e", form)
}

// BulkMessage is one per-recipient entry of a bulk send. Nonce and box are
// emitted as standard base64 by the JSON encoder.
type BulkMessage struct {
	To    protocol.Identity `json:"to"`
	Nonce []byte            `json:"nonce"`
	Box   []byte            `json:"box"`
	Group bool              `json:"group,omitempty"`
}

// BulkResult is the per-recipient outcome of a bulk send, positionally
// matching the submitted array.
type BulkResult struct {
	MessageID string `json:"messageId"`
}

// SendE2EBulk submits independently encrypted envelopes for a list of
// recipients in one request. The response array preserves input order and
// length.
func (c *Client) SendE2EBulk(messages []BulkMessage) ([]BulkResult, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("%w: empty bulk send", protocol.ErrInvalidInput)
	}
	for _, m := range messages {
		if err := m.To.Validate(); err != nil {
			return nil, err
		}
	}

	payload, err := json.Marshal(messages)
	if err != nil {
		return nil, err
	}

	u := c.endpoint("send_e2e_bulk")
	u.RawQuery = c.auth().Encode()

	body, _, err := c.do(c.httpClient, http.MethodPost, u.String(),
		"application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}

	var results []BulkResult
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, fmt.Errorf("malformed bulk response: %w", err)
	}
	if len(results) != len(messages) {
		return nil, fmt.Errorf("bulk response has %d entries for %d messages", len(results), len(messages))
	}
	return results, nil
}

package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/threema-gateway/go-msgapi/pkg/crypto"
	"github.com/threema-gateway/go-msgapi/pkg/datautil"
	"github.com/threema-gateway/go-msgapi/pkg/protocol"
)

// Capability tokens a recipient's client may advertise.
const (
	CapabilityText  = "text"
	CapabilityImage = "image"
	CapabilityAudio = "audio"
	CapabilityVideo = "video"
	CapabilityFile  = "file"
)

// Capabilities is the token set advertised for an identity.
type Capabilities []string

// Has reports whether a capability token is present.
func (c Capabilities) Has(token string) bool {
	for _, t := range c {
		if t == token {
			return true
		}
	}
	return false
}

// LookupPhone resolves a phone number to an identity. The number is hashed
// locally; only the hash leaves the process. A miss fails with ErrNotFound.
func (c *Client) LookupPhone(phone string) (protocol.Identity, error) {
	return c.lookupHash("lookup/phone_hash/", crypto.HashPhone(phone))
}

// LookupEmail resolves an email address to an identity; see LookupPhone.
func (c *Client) LookupEmail(email string) (protocol.Identity, error) {
	return c.lookupHash("lookup/email_hash/", crypto.HashEmail(email))
}

func (c *Client) lookupHash(prefix string, hash []byte) (protocol.Identity, error) {
	text, err := c.getText(prefix + datautil.EncodeHex(hash))
	if err != nil {
		var ce *ClientError
		if errors.As(err, &ce) && ce.StatusCode == http.StatusNotFound {
			return "", ErrNotFound
		}
		return "", err
	}
	id := protocol.Identity(text)
	if err := id.Validate(); err != nil {
		return "", fmt.Errorf("gateway returned malformed identity %q", text)
	}
	return id, nil
}

// LookupPublicKey resolves a recipient public key through the cache. On a
// cache miss the gateway is queried exactly once, also under concurrent
// callers for the same identity.
func (c *Client) LookupPublicKey(id protocol.Identity) ([]byte, error) {
	return c.keys.GetPublicKey(id)
}

// LookupCapabilities queries which message types an identity's client
// understands.
func (c *Client) LookupCapabilities(id protocol.Identity) (Capabilities, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	text, err := c.getText("capabilities/" + string(id))
	if err != nil {
		return nil, err
	}
	var caps Capabilities
	for _, token := range strings.Split(text, ",") {
		if token = strings.TrimSpace(token); token != "" {
			caps = append(caps, token)
		}
	}
	return caps, nil
}

// Credits returns the remaining message credits of the sender account.
func (c *Client) Credits() (int, error) {
	text, err := c.getText("credits")
	if err != nil {
		return 0, err
	}
	credits, err := strconv.Atoi(text)
	if err != nil {
		return 0, fmt.Errorf("gateway returned malformed credits %q", text)
	}
	return credits, nil
}

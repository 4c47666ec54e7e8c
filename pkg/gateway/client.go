// Package gateway implements the HTTPS client for the message gateway: the
// send endpoints, identity lookups, capability and credit queries and the
// blob store. Every request carries the from/secret authentication pair.
package gateway

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/carlmjohnson/versioninfo"

	"github.com/threema-gateway/go-msgapi/pkg/crypto"
	"github.com/threema-gateway/go-msgapi/pkg/datautil"
	"github.com/threema-gateway/go-msgapi/pkg/keystore"
	"github.com/threema-gateway/go-msgapi/pkg/logging"
	"github.com/threema-gateway/go-msgapi/pkg/protocol"
)

const (
	// DefaultBaseURL is the hosted gateway endpoint.
	DefaultBaseURL = "https://msgapi.threema.ch/"

	// blobDownloadTimeout bounds a blob fetch.
	blobDownloadTimeout = 20 * time.Second
)

// Options tune a Client. The zero value is usable: hosted gateway, default
// http.Client, in-memory key cache, disabled logging.
type Options struct {
	// BaseURL overrides the gateway endpoint, e.g. for an on-premise
	// installation or a test server.
	BaseURL string

	// HTTPClient overrides the transport, e.g. to set timeouts or proxies.
	HTTPClient *http.Client

	// UserAgent overrides the User-Agent header.
	UserAgent string

	// KeyFetch/KeySave attach a persistent backing (such as
	// keystore.SQLiteStore) to the public-key cache. KeyFetch is consulted
	// before the gateway; KeySave persists gateway results.
	KeyFetch keystore.FetchFunc
	KeySave  keystore.SaveFunc

	// LogBackend enables logging.
	LogBackend *logging.Backend
}

// Client talks to one gateway on behalf of one sender identity. It is safe
// for concurrent use; the public-key cache coalesces concurrent lookups.
type Client struct {
	identity   protocol.Identity
	secret     string
	baseURL    *url.URL
	httpClient *http.Client
	blobClient *http.Client
	userAgent  string
	keys       *keystore.MemoryStore
	log        logger
}

type logger interface {
	Debugf(format string, args ...interface{})
	Warningf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...interface{})   {}
func (nopLogger) Warningf(string, ...interface{}) {}

// NewClient creates a gateway client for the given sender identity and API
// secret.
func NewClient(identity protocol.Identity, secret string, opts *Options) (*Client, error) {
	if err := identity.Validate(); err != nil {
		return nil, err
	}
	if secret == "" {
		return nil, fmt.Errorf("%w: empty API secret", protocol.ErrInvalidInput)
	}
	if opts == nil {
		opts = &Options{}
	}

	rawURL := opts.BaseURL
	if rawURL == "" {
		rawURL = DefaultBaseURL
	}
	if !strings.HasSuffix(rawURL, "/") {
		rawURL += "/"
	}
	base, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	c := &Client{
		identity:   identity,
		secret:     secret,
		baseURL:    base,
		httpClient: opts.HTTPClient,
		userAgent:  opts.UserAgent,
		log:        nopLogger{},
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	c.blobClient = &http.Client{
		Transport: c.httpClient.Transport,
		Timeout:   blobDownloadTimeout,
	}
	if c.userAgent == "" {
		c.userAgent = "threema-msgapi-sdk-go/" + versioninfo.Short()
	}
	if opts.LogBackend != nil {
		c.log = opts.LogBackend.GetLogger("gateway")
	}

	keyFetch, keySave := opts.KeyFetch, opts.KeySave
	c.keys = keystore.NewMemoryStore(func(id protocol.Identity) ([]byte, error) {
		if keyFetch != nil {
			key, err := keyFetch(id)
			if err == nil && key != nil {
				return key, nil
			}
			if err != nil {
				c.log.Warningf("key backing lookup for %s failed: %v", id, err)
			}
		}
		key, err := c.fetchPublicKey(id)
		if err != nil {
			return nil, err
		}
		if keySave != nil {
			if err := keySave(id, key); err != nil {
				c.log.Warningf("failed to persist public key for %s: %v", id, err)
			}
		}
		return key, nil
	}, keySave)

	return c, nil
}

// Identity returns the sender identity the client authenticates as.
func (c *Client) Identity() protocol.Identity {
	return c.identity
}

// SetPublicKey seeds the key cache, e.g. with keys obtained out of band.
func (c *Client) SetPublicKey(id protocol.Identity, key []byte) error {
	return c.keys.SetPublicKey(id, key)
}

// endpoint resolves a path against the base URL.
func (c *Client) endpoint(path string) *url.URL {
	ref := &url.URL{Path: path}
	return c.baseURL.ResolveReference(ref)
}

// auth returns the from/secret pair attached to every request.
func (c *Client) auth() url.Values {
	v := url.Values{}
	v.Set("from", string(c.identity))
	v.Set("secret", c.secret)
	return v
}

// getText performs an authenticated GET and returns the trimmed body text.
func (c *Client) getText(path string) (string, error) {
	u := c.endpoint(path)
	u.RawQuery = c.auth().Encode()

	body, _, err := c.do(c.httpClient, http.MethodGet, u.String(), "", nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}

// postForm performs an authenticated form POST and returns the trimmed body
// text.
func (c *Client) postForm(path string, form url.Values) (string, error) {
	form.Set("from", string(c.identity))
	form.Set("secret", c.secret)

	body, _, err := c.do(c.httpClient, http.MethodPost, c.endpoint(path).String(),
		"application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}

// do runs one exchange and maps the status code to the error taxonomy:
// 4xx ClientError, 5xx ServerError, IO failures TransportError.
func (c *Client) do(client *http.Client, method, url, contentType string, body io.Reader) ([]byte, http.Header, error) {
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	c.log.Debugf("%s %s", method, req.URL.Path)
	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.Header, &TransportError{Err: err}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return respBody, resp.Header, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, resp.Header, &ClientError{
			StatusCode: resp.StatusCode,
			Header:     resp.Header,
			Body:       strings.TrimSpace(string(respBody)),
		}
	case resp.StatusCode >= 500:
		return nil, resp.Header, &ServerError{
			StatusCode: resp.StatusCode,
			Header:     resp.Header,
			Body:       strings.TrimSpace(string(respBody)),
		}
	default:
		return nil, resp.Header, fmt.Errorf("unexpected gateway status %d", resp.StatusCode)
	}
}

// fetchPublicKey resolves a public key against the gateway. A 404 is fatal:
// the identity is unknown and nothing can be sent to it.
func (c *Client) fetchPublicKey(id protocol.Identity) ([]byte, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	text, err := c.getText("pubkeys/" + string(id))
	if err != nil {
		var ce *ClientError
		if errors.As(err, &ce) && ce.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("no public key for %s: %w", id, crypto.ErrInvalidKey)
		}
		return nil, err
	}
	key, err := datautil.DecodeHex(text)
	if err != nil {
		return nil, fmt.Errorf("%w: gateway returned malformed key", crypto.ErrInvalidKey)
	}
	if len(key) != protocol.KeyLen {
		return nil, fmt.Errorf("%w: gateway returned %d key bytes", crypto.ErrInvalidKey, len(key))
	}
	return key, nil
}

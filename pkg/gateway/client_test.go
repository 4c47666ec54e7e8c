package gateway

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threema-gateway/go-msgapi/pkg/crypto"
	"github.com/threema-gateway/go-msgapi/pkg/datautil"
	"github.com/threema-gateway/go-msgapi/pkg/protocol"
)

const (
	testIdentity = protocol.Identity("*TESTTST")
	testSecret   = "sekrit"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(testIdentity, testSecret, &Options{BaseURL: srv.URL})
	require.NoError(t, err)
	return c, srv
}

func requireAuth(t *testing.T, r *http.Request) {
	t.Helper()
	if r.Method == http.MethodPost && r.Header.Get("Content-Type") == "application/x-www-form-urlencoded" {
		require.NoError(t, r.ParseForm())
		require.Equal(t, string(testIdentity), r.PostForm.Get("from"))
		require.Equal(t, testSecret, r.PostForm.Get("secret"))
		return
	}
	q := r.URL.Query()
	require.Equal(t, string(testIdentity), q.Get("from"))
	require.Equal(t, testSecret, q.Get("secret"))
}

func TestSendE2E(t *testing.T) {
	nonce := []byte("0123456789abcdefghijklmn")
	box := []byte{0xde, 0xad, 0xbe, 0xef}

	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/send_e2e", r.URL.Path)
		requireAuth(t, r)
		assert.Equal(t, "ECHOECHO", r.PostForm.Get("to"))
		assert.Equal(t, datautil.EncodeHex(nonce), r.PostForm.Get("nonce"))
		assert.Equal(t, "deadbeef", r.PostForm.Get("box"))
		fmt.Fprint(w, "0123456789abcdef")
	}))

	id, err := c.SendE2E("ECHOECHO", nonce, box)
	require.NoError(t, err)
	assert.Equal(t, "0123456789abcdef", id)
}

func TestSendSimple(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/send_simple", r.URL.Path)
		requireAuth(t, r)
		assert.Equal(t, "hello", r.PostForm.Get("text"))
		fmt.Fprint(w, "fedcba9876543210")
	}))

	id, err := c.SendSimple("ECHOECHO", "hello")
	require.NoError(t, err)
	assert.Equal(t, "fedcba9876543210", id)
}

func TestSendE2EBulkPositional(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/send_e2e_bulk", r.URL.Path)
		requireAuth(t, r)

		var msgs []map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&msgs))
		require.Len(t, msgs, 2)
		// []byte fields travel as standard base64
		assert.Equal(t, "AAEC", msgs[0]["box"])
		assert.Equal(t, true, msgs[0]["group"])

		fmt.Fprint(w, `[{"messageId":"1111111111111111"},{"messageId":"2222222222222222"}]`)
	}))

	results, err := c.SendE2EBulk([]BulkMessage{
		{To: "AAAAAAA1", Nonce: make([]byte, 24), Box: []byte{0, 1, 2}, Group: true},
		{To: "BBBBBBB2", Nonce: make([]byte, 24), Box: []byte{3, 4, 5}, Group: true},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "1111111111111111", results[0].MessageID)
	assert.Equal(t, "2222222222222222", results[1].MessageID)
}

func TestSendE2EBulkLengthMismatch(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"messageId":"1111111111111111"}]`)
	}))

	_, err := c.SendE2EBulk([]BulkMessage{
		{To: "AAAAAAA1", Nonce: make([]byte, 24), Box: []byte{1}},
		{To: "BBBBBBB2", Nonce: make([]byte, 24), Box: []byte{2}},
	})
	assert.Error(t, err)
}

func TestLookupPhoneNotFound(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requireAuth(t, r)
		http.NotFound(w, r)
	}))

	_, err := c.LookupPhone("+41 79 123 45 67")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLookupPhoneHashesLocally(t *testing.T) {
	wantHash := datautil.EncodeHex(crypto.HashPhone("41791234567"))

	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/lookup/phone_hash/"+wantHash, r.URL.Path)
		fmt.Fprint(w, "ECHOECHO")
	}))

	id, err := c.LookupPhone("+41 79 123 45 67")
	require.NoError(t, err)
	assert.Equal(t, protocol.Identity("ECHOECHO"), id)
}

func TestLookupPublicKeyNotFoundIsFatal(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))

	_, err := c.LookupPublicKey("NOBODY00")
	assert.ErrorIs(t, err, crypto.ErrInvalidKey)
}

func TestLookupPublicKeyCached(t *testing.T) {
	var hits atomic.Int32
	key := make([]byte, protocol.KeyLen)
	key[0] = 0x42

	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/pubkeys/ECHOECHO", r.URL.Path)
		hits.Add(1)
		fmt.Fprint(w, datautil.EncodeHex(key))
	}))

	for i := 0; i < 3; i++ {
		got, err := c.LookupPublicKey("ECHOECHO")
		require.NoError(t, err)
		assert.Equal(t, key, got)
	}
	assert.Equal(t, int32(1), hits.Load(), "public key must be fetched once")
}

func TestLookupCapabilities(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/capabilities/ECHOECHO", r.URL.Path)
		fmt.Fprint(w, "text,image,file")
	}))

	caps, err := c.LookupCapabilities("ECHOECHO")
	require.NoError(t, err)
	assert.True(t, caps.Has(CapabilityFile))
	assert.True(t, caps.Has(CapabilityImage))
	assert.False(t, caps.Has(CapabilityVideo))
}

func TestCredits(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/credits", r.URL.Path)
		fmt.Fprint(w, "1337\n")
	}))

	credits, err := c.Credits()
	require.NoError(t, err)
	assert.Equal(t, 1337, credits)
}

func TestUploadBlob(t *testing.T) {
	blobData := []byte("encrypted blob bytes")

	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/upload_blob", r.URL.Path)
		requireAuth(t, r)
		assert.Equal(t, "true", r.URL.Query().Get("persist"))

		mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		require.NoError(t, err)
		require.Equal(t, "multipart/form-data", mediaType)

		boundary := params["boundary"]
		assert.Regexp(t, regexp.MustCompile(`^[-_0-9a-zA-Z]{30,40}$`), boundary)

		mr := multipart.NewReader(r.Body, boundary)
		part, err := mr.NextPart()
		require.NoError(t, err)
		assert.Equal(t, "blob", part.FormName())
		assert.Equal(t, "blob.file", part.FileName())
		content, err := io.ReadAll(part)
		require.NoError(t, err)
		assert.Equal(t, blobData, content)

		fmt.Fprint(w, "0123456789abcdef0123456789abcdef")
	}))

	id, err := c.UploadBlob(blobData, true)
	require.NoError(t, err)
	assert.Equal(t, "0123456789abcdef0123456789abcdef", id.String())
}

func TestDownloadBlob(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/blobs/0123456789abcdef0123456789abcdef", r.URL.Path)
		requireAuth(t, r)
		w.Write([]byte("ciphertext"))
	}))

	id, err := protocol.ParseBlobID("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)

	data, err := c.DownloadBlob(id)
	require.NoError(t, err)
	assert.Equal(t, []byte("ciphertext"), data)
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(t *testing.T, err error)
	}{
		{"client error", http.StatusPaymentRequired, func(t *testing.T, err error) {
			var ce *ClientError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, http.StatusPaymentRequired, ce.StatusCode)
		}},
		{"server error", http.StatusInternalServerError, func(t *testing.T, err error) {
			var se *ServerError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, http.StatusInternalServerError, se.StatusCode)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, "nope")
			}))
			_, err := c.Credits()
			tt.check(t, err)
		})
	}
}

func TestTransportError(t *testing.T) {
	c, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := c.Credits()
	var te *TransportError
	assert.ErrorAs(t, err, &te)
}

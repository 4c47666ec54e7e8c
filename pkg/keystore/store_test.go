package keystore

import (
	"bytes"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/threema-gateway/go-msgapi/pkg/protocol"
)

func testKey(b byte) []byte {
	return bytes.Repeat([]byte{b}, protocol.KeyLen)
}

func TestMemoryStoreFetchCoalescing(t *testing.T) {
	var fetches atomic.Int32
	release := make(chan struct{})
	store := NewMemoryStore(func(id protocol.Identity) ([]byte, error) {
		fetches.Add(1)
		<-release
		return testKey(0xaa), nil
	}, nil)

	const n = 16
	var wg sync.WaitGroup
	results := make([][]byte, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key, err := store.GetPublicKey("ECHOECHO")
			if err != nil {
				t.Errorf("GetPublicKey failed: %v", err)
			}
			results[i] = key
		}(i)
	}
	close(release)
	wg.Wait()

	if got := fetches.Load(); got != 1 {
		t.Errorf("fetch ran %d times, want exactly 1", got)
	}
	for i, key := range results {
		if !bytes.Equal(key, testKey(0xaa)) {
			t.Errorf("caller %d got %x", i, key)
		}
	}

	// Cached now: another call must not fetch again.
	if _, err := store.GetPublicKey("ECHOECHO"); err != nil {
		t.Fatal(err)
	}
	if got := fetches.Load(); got != 1 {
		t.Errorf("fetch ran %d times after cache hit", got)
	}
}

func TestMemoryStoreDoesNotCacheAbsent(t *testing.T) {
	var fetches atomic.Int32
	store := NewMemoryStore(func(id protocol.Identity) ([]byte, error) {
		fetches.Add(1)
		return nil, nil
	}, nil)

	for i := 0; i < 3; i++ {
		key, err := store.GetPublicKey("NOBODY00")
		if err != nil {
			t.Fatal(err)
		}
		if key != nil {
			t.Errorf("absent identity returned key %x", key)
		}
	}
	if got := fetches.Load(); got != 3 {
		t.Errorf("fetch ran %d times, want 3 (absent is not cached)", got)
	}
}

func TestMemoryStoreDoesNotCacheErrors(t *testing.T) {
	fetchErr := errors.New("gateway down")
	var fetches atomic.Int32
	store := NewMemoryStore(func(id protocol.Identity) ([]byte, error) {
		fetches.Add(1)
		return nil, fetchErr
	}, nil)

	for i := 0; i < 2; i++ {
		if _, err := store.GetPublicKey("ECHOECHO"); !errors.Is(err, fetchErr) {
			t.Errorf("GetPublicKey = %v, want fetch error", err)
		}
	}
	if got := fetches.Load(); got != 2 {
		t.Errorf("fetch ran %d times, want 2", got)
	}
}

func TestMemoryStoreSetCallsSave(t *testing.T) {
	var savedID protocol.Identity
	var savedKey []byte
	store := NewMemoryStore(nil, func(id protocol.Identity, key []byte) error {
		savedID = id
		savedKey = append([]byte(nil), key...)
		return nil
	})

	if err := store.SetPublicKey("ECHOECHO", testKey(0xbb)); err != nil {
		t.Fatal(err)
	}
	if savedID != "ECHOECHO" || !bytes.Equal(savedKey, testKey(0xbb)) {
		t.Errorf("save hook got (%s, %x)", savedID, savedKey)
	}

	key, err := store.GetPublicKey("ECHOECHO")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(key, testKey(0xbb)) {
		t.Errorf("GetPublicKey = %x", key)
	}
}

func TestMemoryStoreRejectsBadKeyLength(t *testing.T) {
	store := NewMemoryStore(nil, nil)
	if err := store.SetPublicKey("ECHOECHO", []byte("short")); err == nil {
		t.Error("short key accepted")
	}
}

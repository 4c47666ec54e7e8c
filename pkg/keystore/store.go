// Package keystore caches recipient public keys. The memory store coalesces
// concurrent fetches per identity; the sqlite store provides a persistent
// backing for it.
package keystore

import (
	"fmt"
	"sync"

	"github.com/threema-gateway/go-msgapi/pkg/protocol"
)

// FetchFunc resolves a public key for an identity, typically against the
// gateway. A (nil, nil) return means the identity is unknown.
type FetchFunc func(id protocol.Identity) ([]byte, error)

// SaveFunc persists a resolved public key.
type SaveFunc func(id protocol.Identity, key []byte) error

// Store maps identities to public keys. GetPublicKey returns (nil, nil)
// when the identity is unknown. Implementations are safe for concurrent
// readers and writers.
type Store interface {
	GetPublicKey(id protocol.Identity) ([]byte, error)
	SetPublicKey(id protocol.Identity, key []byte) error
}

type fetchCall struct {
	done chan struct{}
	key  []byte
	err  error
}

// MemoryStore is an in-memory Store with single-fetch coalescing: under
// concurrent GetPublicKey calls for the same missing identity the fetch hook
// runs exactly once. A nil fetch result is not cached, so transient lookup
// failures don't poison the cache.
type MemoryStore struct {
	mu       sync.Mutex
	keys     map[protocol.Identity][]byte
	inflight map[protocol.Identity]*fetchCall
	fetch    FetchFunc
	save     SaveFunc
}

// NewMemoryStore creates a memory store. Both hooks may be nil: without a
// fetch hook misses report unknown, without a save hook writes stay in
// memory only.
func NewMemoryStore(fetch FetchFunc, save SaveFunc) *MemoryStore {
	return &MemoryStore{
		keys:     make(map[protocol.Identity][]byte),
		inflight: make(map[protocol.Identity]*fetchCall),
		fetch:    fetch,
		save:     save,
	}
}

// GetPublicKey returns the cached key or runs the fetch hook on a miss.
func (s *MemoryStore) GetPublicKey(id protocol.Identity) ([]byte, error) {
	s.mu.Lock()
	if key, ok := s.keys[id]; ok {
		s.mu.Unlock()
		return append([]byte(nil), key...), nil
	}
	if s.fetch == nil {
		s.mu.Unlock()
		return nil, nil
	}
	if call, ok := s.inflight[id]; ok {
		s.mu.Unlock()
		<-call.done
		if call.err != nil {
			return nil, call.err
		}
		return append([]byte(nil), call.key...), nil
	}

	call := &fetchCall{done: make(chan struct{})}
	s.inflight[id] = call
	s.mu.Unlock()

	call.key, call.err = s.fetch(id)

	s.mu.Lock()
	delete(s.inflight, id)
	if call.err == nil && call.key != nil {
		s.keys[id] = append([]byte(nil), call.key...)
	}
	s.mu.Unlock()
	close(call.done)

	if call.err != nil {
		return nil, call.err
	}
	if call.key == nil {
		return nil, nil
	}
	return append([]byte(nil), call.key...), nil
}

// SetPublicKey stores a key and runs the save hook.
func (s *MemoryStore) SetPublicKey(id protocol.Identity, key []byte) error {
	if len(key) != protocol.KeyLen {
		return fmt.Errorf("public key for %s must be %d bytes, got %d", id, protocol.KeyLen, len(key))
	}
	s.mu.Lock()
	s.keys[id] = append([]byte(nil), key...)
	s.mu.Unlock()

	if s.save != nil {
		if err := s.save(id, key); err != nil {
			return fmt.Errorf("failed to save public key for %s: %w", id, err)
		}
	}
	return nil
}

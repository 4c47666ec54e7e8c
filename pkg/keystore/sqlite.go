package keystore

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/threema-gateway/go-msgapi/pkg/protocol"
)

// SQLiteStore persists public keys in a local sqlite database. It satisfies
// Store directly and its Load/Save methods plug into a MemoryStore as the
// persistent backing of the in-process cache.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and if needed initializes) the key database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open key database: %w", err)
	}

	// WAL mode for concurrent readers
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS public_keys (
		identity TEXT PRIMARY KEY,
		public_key BLOB NOT NULL,
		fetched_at INTEGER NOT NULL
	);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load reads a key from the database; (nil, nil) when absent. The signature
// matches FetchFunc.
func (s *SQLiteStore) Load(id protocol.Identity) ([]byte, error) {
	var key []byte
	err := s.db.QueryRow(
		`SELECT public_key FROM public_keys WHERE identity = ?`, string(id),
	).Scan(&key)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load public key for %s: %w", id, err)
	}
	return key, nil
}

// Save writes or replaces a key. The signature matches SaveFunc.
func (s *SQLiteStore) Save(id protocol.Identity, key []byte) error {
	_, err := s.db.Exec(`
		INSERT INTO public_keys (identity, public_key, fetched_at)
		VALUES (?, ?, ?)
		ON CONFLICT(identity) DO UPDATE SET
			public_key = excluded.public_key,
			fetched_at = excluded.fetched_at
	`, string(id), key, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save public key for %s: %w", id, err)
	}
	return nil
}

// GetPublicKey implements Store.
func (s *SQLiteStore) GetPublicKey(id protocol.Identity) ([]byte, error) {
	return s.Load(id)
}

// SetPublicKey implements Store.
func (s *SQLiteStore) SetPublicKey(id protocol.Identity, key []byte) error {
	if len(key) != protocol.KeyLen {
		return fmt.Errorf("public key for %s must be %d bytes, got %d", id, protocol.KeyLen, len(key))
	}
	return s.Save(id, key)
}

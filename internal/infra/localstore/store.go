// Package localstore is the device-local key-value backend, backed by
// SQLite. It is the reliability backstop of the dual store: writes here must
// succeed before a mutation is considered durable, and the wallet stays
// usable offline when the cloud replica is unreachable.
package localstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// ─── Schema ─────────────────────────────────────────────────────────────────

// migrations returns the schema statements. Each string is a single SQL
// statement (SQLite executes one at a time).
func migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS kv (
			key        TEXT PRIMARY KEY,
			value      BLOB NOT NULL,
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
	}
}

// ─── Store ──────────────────────────────────────────────────────────────────

// Store is a SQLite-backed implementation of domain.Backend.
type Store struct {
	db *sql.DB
}

// Open creates or opens the wallet database under dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, "wallet.db"))
	if err != nil {
		return nil, fmt.Errorf("open wallet db: %w", err)
	}

	// Single writer; the ledger serializes mutations anyway.
	db.SetMaxOpenConns(1)

	for _, stmt := range migrations() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// Get returns the stored value and whether the key exists.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Set inserts or replaces a key.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at)
		VALUES (?, ?, datetime('now'))
		ON CONFLICT(key) DO UPDATE SET
			value      = excluded.value,
			updated_at = datetime('now')
	`, key, value)
	return err
}

// Delete removes a key. Deleting an absent key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
	return err
}

// Keys returns all stored keys with the given prefix, for reset sweeps.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM kv WHERE key LIKE ? ORDER BY key`, prefix+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SQLStore implements the KeyValue interface on top of a single-table
// database/sql schema. The production driver is the pure-Go sqlite driver
// (registered by the binary); tests substitute sqlmock.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore creates a new SQLStore instance.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Migrate creates the backing table if it does not exist yet.
func (s *SQLStore) Migrate(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS kv_entries (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("storage: Migrate failed to create kv_entries: %w", err)
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, key string) (string, bool, error) {
	query := `SELECT value FROM kv_entries WHERE key = ?;`
	var value string
	err := s.db.QueryRowContext(ctx, query, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("storage: Get failed for key %q: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLStore) Set(ctx context.Context, key string, value string) error {
	query := `
		INSERT INTO kv_entries (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP;
	`
	if _, err := s.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("storage: Set failed for key %q: %w", key, err)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, key string) error {
	query := `DELETE FROM kv_entries WHERE key = ?;`
	if _, err := s.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("storage: Delete failed for key %q: %w", key, err)
	}
	return nil
}

// Close closes the underlying database handle.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

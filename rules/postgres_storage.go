package rules

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgresStorage implements Storage backed by one row of the rule_collections table
type PostgresStorage struct {
	db  *sql.DB
	key string
}

// NewPostgresStorage creates a PostgreSQL-backed Storage for a collection key
func NewPostgresStorage(db *sql.DB, key string) *PostgresStorage {
	if key == "" {
		key = DefaultStorageKey
	}
	return &PostgresStorage{
		db:  db,
		key: key,
	}
}

// Read fetches the collection blob, returning nil when the row does not exist yet
func (s *PostgresStorage) Read(ctx context.Context) ([]byte, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT blob
		FROM rule_collections
		WHERE key = $1
	`, s.key).Scan(&blob)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read rule collection: %w", err)
	}

	return blob, nil
}

// Write upserts the whole collection blob
func (s *PostgresStorage) Write(ctx context.Context, blob []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rule_collections (key, blob, updated_at)
		VALUES ($1, $2::jsonb, NOW())
		ON CONFLICT (key) DO UPDATE
		SET blob = EXCLUDED.blob, updated_at = EXCLUDED.updated_at
	`, s.key, string(blob))

	if err != nil {
		return fmt.Errorf("failed to write rule collection: %w", err)
	}

	return nil
}

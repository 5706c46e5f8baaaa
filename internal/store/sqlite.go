// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Persists the admin session in a key/value table with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// The dashboard reads while the CLI writes from another process
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS kv (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return nil
}

// runMigrations applies schema migrations for existing databases.
// These are idempotent - safe to run multiple times.
func (s *SQLiteStore) runMigrations() error {
	// SQLite doesn't support ADD COLUMN IF NOT EXISTS, so we check first
	migrations := []struct {
		check  string
		apply  string
		column string
	}{
		{
			check:  `SELECT 1 FROM pragma_table_info('kv') WHERE name = 'updated_at'`,
			apply:  `ALTER TABLE kv ADD COLUMN updated_at TEXT NOT NULL DEFAULT ''`,
			column: "updated_at",
		},
	}

	for _, m := range migrations {
		var exists int
		err := s.db.QueryRow(m.check).Scan(&exists)
		if err == nil {
			continue
		}
		if _, err := s.db.Exec(m.apply); err != nil {
			return fmt.Errorf("adding %s column to kv: %w", m.column, err)
		}
		s.logger.Info("applied migration", "column", m.column, "table", "kv")
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// Get returns the raw entry for key.
// Returns ErrNotFound if the key doesn't exist.
func (s *SQLiteStore) Get(ctx context.Context, key string) (*Entry, error) {
	var e Entry
	var updatedAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT key, value, updated_at FROM kv WHERE key = ?`, key,
	).Scan(&e.Key, &e.Value, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying key %q: %w", key, err)
	}

	if updatedAt != "" {
		e.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	}
	return &e, nil
}

// Set upserts key with value.
func (s *SQLiteStore) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("writing key %q: %w", key, err)
	}

	s.logger.Debug("stored value", "key", key)
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("deleting key %q: %w", key, err)
	}
	return nil
}

// Token returns the stored bearer token. It is read from disk on every
// call so a fresh `tripdesk-admin login` takes effect without a restart.
func (s *SQLiteStore) Token(ctx context.Context) (string, error) {
	e, err := s.Get(ctx, KeyAuthToken)
	if errors.Is(err, ErrNotFound) {
		return "", ErrNoToken
	}
	if err != nil {
		return "", err
	}
	if e.Value == "" {
		return "", ErrNoToken
	}
	return e.Value, nil
}

// SetToken stores the bearer token.
func (s *SQLiteStore) SetToken(ctx context.Context, token string) error {
	return s.Set(ctx, KeyAuthToken, token)
}

// Profile returns the cached admin profile.
func (s *SQLiteStore) Profile(ctx context.Context) (*Profile, error) {
	e, err := s.Get(ctx, KeyUserProfile)
	if err != nil {
		return nil, err
	}

	var p Profile
	if err := json.Unmarshal([]byte(e.Value), &p); err != nil {
		return nil, fmt.Errorf("decoding stored profile: %w", err)
	}
	return &p, nil
}

// SetProfile stores the admin profile as JSON.
func (s *SQLiteStore) SetProfile(ctx context.Context, p *Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding profile: %w", err)
	}
	return s.Set(ctx, KeyUserProfile, string(data))
}

// ClearSession removes the token and profile in one transaction.
func (s *SQLiteStore) ClearSession(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM kv WHERE key IN (?, ?)`, KeyAuthToken, KeyUserProfile); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing: %w", err)
	}

	s.logger.Info("session cleared")
	return nil
}

// Ensure SQLiteStore implements Store
var _ Store = (*SQLiteStore)(nil)

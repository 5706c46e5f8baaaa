// ABOUTME: Tests for SQLite store implementation
// ABOUTME: Covers schema creation, key/value round trips, and session token/profile handling

package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNewSQLiteStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "subdir", "nested", "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created in nested directory")
	}
}

func TestNewSQLiteStore_MigratesLegacyTable(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "legacy.db")

	// A database from before updated_at existed
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("opening legacy db: %v", err)
	}
	if _, err := db.Exec(`CREATE TABLE kv (key TEXT PRIMARY KEY, value TEXT NOT NULL)`); err != nil {
		t.Fatalf("creating legacy table: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO kv (key, value) VALUES ('authToken', 'old-token')`); err != nil {
		t.Fatalf("seeding legacy table: %v", err)
	}
	db.Close()

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed on legacy db: %v", err)
	}
	defer store.Close()

	token, err := store.Token(context.Background())
	if err != nil {
		t.Fatalf("Token failed: %v", err)
	}
	if token != "old-token" {
		t.Errorf("Token = %q, want old-token", token)
	}
}

func TestSetAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "theme", "dark"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	e, err := store.Get(ctx, "theme")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if e.Value != "dark" {
		t.Errorf("Value = %q, want dark", e.Value)
	}
	if e.UpdatedAt.IsZero() {
		t.Error("UpdatedAt should be set")
	}

	// Overwrite
	if err := store.Set(ctx, "theme", "light"); err != nil {
		t.Fatalf("Set overwrite failed: %v", err)
	}
	e, err = store.Get(ctx, "theme")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if e.Value != "light" {
		t.Errorf("Value after overwrite = %q, want light", e.Value)
	}
}

func TestGet_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}

	// Deleting again is fine
	if err := store.Delete(ctx, "k"); err != nil {
		t.Errorf("second Delete should succeed, got %v", err)
	}
}

func TestToken(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Token(ctx); !errors.Is(err, ErrNoToken) {
		t.Fatalf("expected ErrNoToken on empty store, got %v", err)
	}

	if err := store.SetToken(ctx, "tok-123"); err != nil {
		t.Fatalf("SetToken failed: %v", err)
	}
	token, err := store.Token(ctx)
	if err != nil {
		t.Fatalf("Token failed: %v", err)
	}
	if token != "tok-123" {
		t.Errorf("Token = %q, want tok-123", token)
	}

	// An empty token counts as no token
	if err := store.SetToken(ctx, ""); err != nil {
		t.Fatalf("SetToken failed: %v", err)
	}
	if _, err := store.Token(ctx); !errors.Is(err, ErrNoToken) {
		t.Errorf("expected ErrNoToken for empty value, got %v", err)
	}
}

func TestProfile(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Profile(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	want := &Profile{ID: "42", Name: "Ada Admin", Email: "ada@example.com", Role: "admin"}
	if err := store.SetProfile(ctx, want); err != nil {
		t.Fatalf("SetProfile failed: %v", err)
	}

	got, err := store.Profile(ctx)
	if err != nil {
		t.Fatalf("Profile failed: %v", err)
	}
	if *got != *want {
		t.Errorf("Profile = %+v, want %+v", got, want)
	}
}

func TestProfile_Corrupt(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, KeyUserProfile, "{not json"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, err := store.Profile(ctx); err == nil {
		t.Error("expected decode error for corrupt profile")
	}
}

func TestClearSession(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.SetToken(ctx, "tok"); err != nil {
		t.Fatalf("SetToken failed: %v", err)
	}
	if err := store.SetProfile(ctx, &Profile{ID: "1", Name: "A"}); err != nil {
		t.Fatalf("SetProfile failed: %v", err)
	}
	if err := store.Set(ctx, "other", "kept"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if err := store.ClearSession(ctx); err != nil {
		t.Fatalf("ClearSession failed: %v", err)
	}

	if _, err := store.Token(ctx); !errors.Is(err, ErrNoToken) {
		t.Errorf("token should be cleared, got %v", err)
	}
	if _, err := store.Profile(ctx); !errors.Is(err, ErrNotFound) {
		t.Errorf("profile should be cleared, got %v", err)
	}
	if _, err := store.Get(ctx, "other"); err != nil {
		t.Errorf("unrelated keys should survive, got %v", err)
	}
}

func TestTokenVisibleAcrossConnections(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "shared.db")
	ctx := context.Background()

	reader, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore reader: %v", err)
	}
	defer reader.Close()

	writer, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore writer: %v", err)
	}
	defer writer.Close()

	if err := writer.SetToken(ctx, "fresh"); err != nil {
		t.Fatalf("SetToken: %v", err)
	}

	token, err := reader.Token(ctx)
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if token != "fresh" {
		t.Errorf("reader saw %q, want fresh", token)
	}
}

func TestMockStore(t *testing.T) {
	m := NewMockStore()
	ctx := context.Background()

	if _, err := m.Token(ctx); !errors.Is(err, ErrNoToken) {
		t.Fatalf("expected ErrNoToken, got %v", err)
	}
	if err := m.SetToken(ctx, "t"); err != nil {
		t.Fatal(err)
	}
	if err := m.SetProfile(ctx, &Profile{ID: "7"}); err != nil {
		t.Fatal(err)
	}
	if p, err := m.Profile(ctx); err != nil || p.ID != "7" {
		t.Fatalf("Profile = %+v, %v", p, err)
	}
	if err := m.ClearSession(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Token(ctx); !errors.Is(err, ErrNoToken) {
		t.Errorf("expected ErrNoToken after clear, got %v", err)
	}
	if m.TokenReads != 2 {
		t.Errorf("TokenReads = %d, want 2", m.TokenReads)
	}
}

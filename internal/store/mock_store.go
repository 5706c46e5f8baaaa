// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu     sync.RWMutex
	values map[string]Entry

	// TokenReads counts Token calls so tests can assert the token is
	// read per request.
	TokenReads int
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		values: make(map[string]Entry),
	}
}

// Get returns the entry for key.
func (m *MockStore) Get(ctx context.Context, key string) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	return &e, nil
}

// Set stores value under key.
func (m *MockStore) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[key] = Entry{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	return nil
}

// Delete removes key.
func (m *MockStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.values, key)
	return nil
}

// Token returns the stored token or ErrNoToken.
func (m *MockStore) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	m.TokenReads++
	e, ok := m.values[KeyAuthToken]
	m.mu.Unlock()

	if !ok || e.Value == "" {
		return "", ErrNoToken
	}
	return e.Value, nil
}

// SetToken stores the token.
func (m *MockStore) SetToken(ctx context.Context, token string) error {
	return m.Set(ctx, KeyAuthToken, token)
}

// Profile returns the stored profile.
func (m *MockStore) Profile(ctx context.Context) (*Profile, error) {
	e, err := m.Get(ctx, KeyUserProfile)
	if err != nil {
		return nil, err
	}
	var p Profile
	if err := json.Unmarshal([]byte(e.Value), &p); err != nil {
		return nil, fmt.Errorf("decoding stored profile: %w", err)
	}
	return &p, nil
}

// SetProfile stores the profile.
func (m *MockStore) SetProfile(ctx context.Context, p *Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding profile: %w", err)
	}
	return m.Set(ctx, KeyUserProfile, string(data))
}

// ClearSession removes token and profile.
func (m *MockStore) ClearSession(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.values, KeyAuthToken)
	delete(m.values, KeyUserProfile)
	return nil
}

// Close is a no-op.
func (m *MockStore) Close() error {
	return nil
}

var _ Store = (*MockStore)(nil)

// ABOUTME: Store interface and data types for the local dashboard session
// ABOUTME: Holds the admin bearer token and cached admin profile under fixed keys

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested key does not exist
var ErrNotFound = errors.New("not found")

// ErrNoToken is returned when no admin token has been stored yet
var ErrNoToken = errors.New("no auth token stored; run tripdesk-admin login")

// Fixed keys in the key/value table.
const (
	KeyAuthToken   = "authToken"
	KeyUserProfile = "userProfile"
)

// Profile is the signed-in admin's cached user profile
type Profile struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email,omitempty"`
	Role         string `json:"role,omitempty"`
	ProfileImage string `json:"profileImage,omitempty"`
}

// Entry is a raw key/value row
type Entry struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}

// Store defines the session persistence used by the dashboard and the CLI.
// The dashboard only reads; the CLI writes on login and logout.
type Store interface {
	// Token returns the stored bearer token or ErrNoToken.
	Token(ctx context.Context) (string, error)
	SetToken(ctx context.Context, token string) error

	// Profile returns the cached admin profile or ErrNotFound.
	Profile(ctx context.Context) (*Profile, error)
	SetProfile(ctx context.Context, p *Profile) error

	// ClearSession removes both the token and the profile.
	ClearSession(ctx context.Context) error

	Get(ctx context.Context, key string) (*Entry, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error

	Close() error
}

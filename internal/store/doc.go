// Package store persists the admin session for tripdesk-admin using SQLite.
//
// # Data Model
//
// A single key/value table holds two fixed keys:
//
//   - authToken: the bearer token passed verbatim to the remote API
//   - userProfile: the signed-in admin's profile as JSON
//
// The CLI writes both on login and clears them on logout. The dashboard only
// reads, and it reads the token on every outbound request so a new login is
// picked up without a restart.
//
// # SQLite Configuration
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA busy_timeout=5000;
//
// # Errors
//
//   - ErrNotFound: key does not exist
//   - ErrNoToken: no usable token stored
//
// # Testing
//
// Use NewMockStore() for unit tests and NewSQLiteStore(t.TempDir()+"/x.db")
// for integration tests with real SQLite.
package store

// Package auth inspects the admin bearer token and carries the per-request
// dashboard session.
//
// The dashboard never verifies token signatures. The platform API is the
// authority; this package only decodes claims so the UI can show who is
// signed in and warn before the token expires.
package auth

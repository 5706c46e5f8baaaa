// Package webadmin serves the tripdesk dashboard: a stats home page, the
// conversations sidebar and window, user details and embedded help.
//
// # Rendering
//
// Pages are html/template files embedded in the binary. Interactive parts
// are htmx partials:
//
//   - /conversations/list: sidebar page (search, sort, paging, selection)
//   - /conversations/{id}/view: conversation header and first message page
//   - /conversations/{id}/messages: older message pages, and sending
//   - /stats/summary and /media/preview
//
// Partials render into a buffer behind a recover boundary. A failure is
// replaced by an error panel with a retry control for the same request, so
// one broken conversation never blanks the page.
//
// # Sessions
//
// Each browser gets a random session cookie. It scopes the stale-response
// tracker, the send nonces and the remembered conversation list. There is
// no login: the admin token written by tripdesk-admin is read from the store
// on every request and passed to the platform API, which decides access.
//
// # Staleness
//
// List and window loads register with a latest.Tracker. A newer request
// with different parameters cancels the older one; an answer that is no
// longer current is dropped with 204 No Content so htmx keeps the DOM.
package webadmin

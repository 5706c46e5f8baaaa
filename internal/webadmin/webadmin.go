// ABOUTME: Admin web UI package for the tripdesk dashboard
// ABOUTME: Provides browser sessions, CSRF protection, locale negotiation, and route registration

package webadmin

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/tripdesk/tripdesk-admin/internal/apiclient"
	"github.com/tripdesk/tripdesk-admin/internal/auth"
	"github.com/tripdesk/tripdesk-admin/internal/chat"
	"github.com/tripdesk/tripdesk-admin/internal/dedupe"
	"github.com/tripdesk/tripdesk-admin/internal/i18n"
	"github.com/tripdesk/tripdesk-admin/internal/latest"
	"github.com/tripdesk/tripdesk-admin/internal/render"
	"github.com/tripdesk/tripdesk-admin/internal/store"
)

const (
	// SessionCookieName identifies the browser for stale guards and nonces
	SessionCookieName = "tripdesk_session"

	// CSRFCookieName is the name of the CSRF token cookie
	CSRFCookieName = "tripdesk_csrf"

	// LocaleCookieName remembers an explicit language choice
	LocaleCookieName = "tripdesk_locale"

	// SessionDuration is how long the browser session cookie lasts
	SessionDuration = 30 * 24 * time.Hour

	// SendDedupeWindow is how long a send nonce stays claimed
	SendDedupeWindow = 5 * time.Minute
)

// Names of the independently guarded lists.
const (
	listConversations = "conversations"
	listMessages      = "messages"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const csrfContextKey contextKey = "csrf_token"

// API is the part of the platform client the dashboard calls.
type API interface {
	ListConversations(ctx context.Context, q apiclient.ConversationQuery) (json.RawMessage, error)
	ListMessages(ctx context.Context, q apiclient.MessageQuery) (json.RawMessage, error)
	SendMessage(ctx context.Context, msg apiclient.OutgoingMessage) (json.RawMessage, error)
	Statistics(ctx context.Context) (*apiclient.Statistics, error)
	GetUser(ctx context.Context, id string) (json.RawMessage, error)
}

// TokenReader exposes the stored admin token. The dashboard never writes it.
type TokenReader interface {
	Token(ctx context.Context) (string, error)
}

// Config holds admin UI configuration
type Config struct {
	AssetBaseURL          string
	Placeholder           string
	ConversationsPageSize int
	MessagesPageSize      int
	Location              *time.Location
}

// Admin handles the dashboard routes
type Admin struct {
	api           API
	conversations *chat.ConversationLoader
	messages      *chat.MessageLoader
	tokens        TokenReader
	bundle        *i18n.Bundle
	tracker       *latest.Tracker
	sends         *dedupe.Cache
	sessions      *sessionCache
	templates     map[string]*template.Template
	config        Config
	logger        *slog.Logger
	now           func() time.Time
}

// New creates a new Admin handler
func New(api API, tokens TokenReader, bundle *i18n.Bundle, cfg Config) (*Admin, error) {
	templates, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.ConversationsPageSize < 1 {
		cfg.ConversationsPageSize = 20
	}
	if cfg.MessagesPageSize < 1 {
		cfg.MessagesPageSize = 30
	}

	return &Admin{
		api:           api,
		conversations: chat.NewConversationLoader(api),
		messages:      chat.NewMessageLoader(api),
		tokens:        tokens,
		bundle:        bundle,
		tracker:       latest.New(latest.DefaultIdleTimeout),
		sends:         dedupe.New(SendDedupeWindow, 10000),
		sessions:      newSessionCache(latest.DefaultIdleTimeout),
		templates:     templates,
		config:        cfg,
		logger:        slog.Default().With("component", "admin"),
		now:           time.Now,
	}, nil
}

// Close cleans up admin resources
func (a *Admin) Close() {
	a.tracker.Close()
	a.sends.Close()
	a.sessions.Close()
}

// RegisterRoutes registers all dashboard routes on the given mux
func (a *Admin) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(staticFS)))

	mux.HandleFunc("GET /{$}", a.withSession(a.handleHome))
	mux.HandleFunc("GET /stats/summary", a.withSession(a.handleStatsSummary))

	// Conversations (htmx partials except the page itself)
	mux.HandleFunc("GET /conversations", a.withSession(a.handleConversationsPage))
	mux.HandleFunc("GET /conversations/list", a.withSession(a.handleConversationList))
	mux.HandleFunc("GET /conversations/{id}/view", a.withSession(a.handleConversationView))
	mux.HandleFunc("GET /conversations/{id}/messages", a.withSession(a.handleMessagePage))
	mux.HandleFunc("POST /conversations/{id}/messages", a.withSession(a.handleSendMessage))
	mux.HandleFunc("GET /media/preview", a.withSession(a.handleMediaPreview))

	mux.HandleFunc("GET /users/{id}", a.withSession(a.handleUserDetails))

	mux.HandleFunc("GET /help", a.withSession(a.handleHelp))
	mux.HandleFunc("GET /help/{topic}", a.withSession(a.handleHelp))

	a.logger.Info("admin routes registered")
}

// withSession attaches the browser session, locale and admin identity to
// the request. Access control stays with the platform API.
func (a *Admin) withSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := &auth.Session{
			ID:     a.ensureSessionID(w, r),
			Locale: a.negotiateLocale(w, r),
		}

		token, err := a.tokens.Token(r.Context())
		switch {
		case err == nil:
			sess.Signed = true
			if info, err := auth.Inspect(token); err == nil {
				sess.Admin = info
			}
		case errors.Is(err, store.ErrNoToken):
		default:
			a.logger.Warn("reading stored token", "error", err)
		}

		r, _ = a.ensureCSRFToken(w, r)
		next(w, r.WithContext(auth.WithSession(r.Context(), sess)))
	}
}

// ensureSessionID returns the browser session id, issuing one if needed.
func (a *Admin) ensureSessionID(w http.ResponseWriter, r *http.Request) string {
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		if _, err := uuid.Parse(cookie.Value); err == nil {
			return cookie.Value
		}
	}

	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    id,
		Path:     "/",
		Expires:  a.now().Add(SessionDuration),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// negotiateLocale honours ?lang= (remembered in a cookie), then the
// cookie, then Accept-Language.
func (a *Admin) negotiateLocale(w http.ResponseWriter, r *http.Request) string {
	if lang := r.URL.Query().Get("lang"); lang != "" {
		locale := a.bundle.Match(lang)
		http.SetCookie(w, &http.Cookie{
			Name:     LocaleCookieName,
			Value:    locale,
			Path:     "/",
			Expires:  a.now().Add(SessionDuration),
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		return locale
	}

	var prefs []string
	if cookie, err := r.Cookie(LocaleCookieName); err == nil && cookie.Value != "" {
		prefs = append(prefs, cookie.Value)
	}
	if accept := r.Header.Get("Accept-Language"); accept != "" {
		prefs = append(prefs, accept)
	}
	return a.bundle.Match(prefs...)
}

// session returns the request's browser session. withSession guarantees it.
func session(r *http.Request) *auth.Session {
	if s := auth.FromContext(r.Context()); s != nil {
		return s
	}
	return &auth.Session{}
}

// printer returns a translator for the request's locale.
func (a *Admin) printer(r *http.Request) *i18n.Printer {
	return a.bundle.Printer(session(r).Locale)
}

// renderOptions builds message view settings for the request.
func (a *Admin) renderOptions(r *http.Request) render.Options {
	return render.Options{
		AssetBase:   a.config.AssetBaseURL,
		Placeholder: a.config.Placeholder,
		Clock:       render.Clock{Now: a.now, Location: a.config.Location},
		Printer:     a.printer(r),
	}
}

// getCSRFToken retrieves the CSRF token from the request context
func getCSRFToken(r *http.Request) string {
	token, _ := r.Context().Value(csrfContextKey).(string)
	return token
}

// ensureCSRFToken generates a CSRF token if not present and adds it to context
func (a *Admin) ensureCSRFToken(w http.ResponseWriter, r *http.Request) (*http.Request, string) {
	cookie, err := r.Cookie(CSRFCookieName)
	if err == nil && cookie.Value != "" {
		ctx := context.WithValue(r.Context(), csrfContextKey, cookie.Value)
		return r.WithContext(ctx), cookie.Value
	}

	token, err := generateSecureToken(32)
	if err != nil {
		a.logger.Error("failed to generate CSRF token", "error", err)
		token = "" // Will fail validation, but won't crash
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})

	ctx := context.WithValue(r.Context(), csrfContextKey, token)
	return r.WithContext(ctx), token
}

// validateCSRF checks the CSRF token from form or htmx header against cookie
func (a *Admin) validateCSRF(r *http.Request) bool {
	cookie, err := r.Cookie(CSRFCookieName)
	if err != nil || cookie.Value == "" {
		return false
	}

	formToken := r.FormValue("csrf_token")
	if formToken == "" {
		formToken = r.Header.Get("X-CSRF-Token")
	}

	return formToken != "" && formToken == cookie.Value
}

// isHTMX reports whether the request came from htmx.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// generateSecureToken generates a cryptographically secure random token
func generateSecureToken(bytes int) (string, error) {
	b := make([]byte, bytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// ABOUTME: Template parsing and rendering for the dashboard
// ABOUTME: Renders pages and htmx partials behind a recover boundary with a retryable error panel

package webadmin

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/tripdesk/tripdesk-admin/internal/auth"
	"github.com/tripdesk/tripdesk-admin/internal/chat"
	"github.com/tripdesk/tripdesk-admin/internal/i18n"
	"github.com/tripdesk/tripdesk-admin/internal/metrics"
	"github.com/tripdesk/tripdesk-admin/internal/render"
)

// Pages each get their own template set so their "content" blocks do not
// collide. partialsSet holds the htmx fragments only.
const partialsSet = "partials"

var pageNames = []string{"home", "conversations", "user", "help"}

// templateFuncs are available to every template. "t" is replaced per
// request with the locale's translator.
var templateFuncs = template.FuncMap{
	"t":        func(key string, args ...any) string { return key },
	"initials": render.Initials,
	"add":      func(a, b int) int { return a + b },
	"sub":      func(a, b int) int { return a - b },
}

func parseTemplates() (map[string]*template.Template, error) {
	partials, err := template.New(partialsSet).Funcs(templateFuncs).ParseFS(templateFS, "templates/partials/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing partials: %w", err)
	}

	sets := map[string]*template.Template{partialsSet: partials}
	for _, name := range pageNames {
		set, err := partials.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning partials for %s: %w", name, err)
		}
		if _, err := set.ParseFS(templateFS, "templates/base.html", "templates/"+name+".html"); err != nil {
			return nil, fmt.Errorf("parsing %s page: %w", name, err)
		}
		sets[name] = set
	}
	return sets, nil
}

// shellData is shared by every full page.
type shellData struct {
	Title     string
	Nav       string
	Locale    string
	Locales   []string
	CSRFToken string
	Signed    bool
	AdminName string
	Expiry    string
	Expired   bool
}

// errorPanelData drives the scoped error panel. Retry replaces the panel
// itself unless Target names a container; Reload retries with a plain link.
type errorPanelData struct {
	Message  string
	RetryURL string
	Target   string
	Reload   bool
}

type statsData struct {
	Stats *statsView
	Error *errorPanelData
}

type statsView struct {
	TotalConversations  int
	ActiveConversations int
	TotalMessages       int
	UnreadMessages      int
	MessagesToday       int
}

type conversationRow struct {
	ID          string
	Title       string
	Subtitle    string
	Avatar      string
	Preview     string
	Time        string
	UnreadCount int
	Selected    bool
	ViewURL     string
}

type conversationListData struct {
	Rows       []conversationRow
	Page       int
	TotalPages int
	HasPrev    bool
	HasNext    bool
	PrevURL    string
	NextURL    string
	Search     string
	Sort       string
	SelectedID string
	Error      *errorPanelData
}

type conversationsPageData struct {
	shellData
	ListURL    string
	ViewURL    string
	Search     string
	Sort       string
	SelectedID string
}

type messagePageData struct {
	ConversationID string
	Messages       []render.Message
	OlderURL       string
	Empty          bool
}

type conversationViewData struct {
	Header    render.Header
	Page      messagePageData
	SendURL   string
	CSRFToken string
	Nonce     string
	Error     *errorPanelData
	CanSend   bool
}

type sentBubbleData struct {
	Message render.Message
	Nonce   string
}

type sendErrorData struct {
	Message   string
	Content   string
	Nonce     string
	SendURL   string
	CSRFToken string
}

type mediaModalData struct {
	Src         string
	Placeholder string
}

type userPageData struct {
	shellData
	User     *chat.UserDetails
	Avatar   string
	RoleKey  string
	Since    string
	BackURL  string
	NotFound bool
	Error    *errorPanelData
}

type helpTopic struct {
	Slug   string
	Title  string
	Active bool
}

type helpPageData struct {
	shellData
	Topics  []helpTopic
	Content template.HTML
}

// shell builds the top bar data for a full page.
func (a *Admin) shell(r *http.Request, p *i18n.Printer, titleKey, nav string) shellData {
	sess := session(r)
	d := shellData{
		Title:     p.T(titleKey),
		Nav:       nav,
		Locale:    p.Locale(),
		Locales:   a.bundle.Locales(),
		CSRFToken: getCSRFToken(r),
		Signed:    sess.Signed,
	}
	if sess.Admin != nil {
		d.AdminName = firstNonEmpty(sess.Admin.Name, sess.Admin.Email, sess.Admin.Subject)
		d.Expired = sess.Admin.Expired(a.now())
		if !sess.Admin.ExpiresAt.IsZero() && !d.Expired {
			d.Expiry = a.clock().Timestamp(p, sess.Admin.ExpiresAt)
		}
	}
	return d
}

func (a *Admin) clock() render.Clock {
	return render.Clock{Now: a.now, Location: a.config.Location}
}

// execute renders name from set into a buffer. Template errors and panics
// are returned as errors so nothing partial reaches the client.
func (a *Admin) execute(r *http.Request, set, name string, data any) (out []byte, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic rendering %s: %v", name, rec)
		}
	}()

	base, ok := a.templates[set]
	if !ok {
		return nil, fmt.Errorf("unknown template set %q", set)
	}
	tmpl, err := base.Clone()
	if err != nil {
		return nil, err
	}
	tmpl.Funcs(template.FuncMap{"t": a.printer(r).T})

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// renderPage writes a full page with the given status.
func (a *Admin) renderPage(w http.ResponseWriter, r *http.Request, status int, page string, data any) {
	body, err := a.execute(r, page, "base.html", data)
	if err != nil {
		metrics.IncRenderFailure(page)
		a.logger.Error("failed to render page", "page", page, "error", err)
		http.Error(w, a.printer(r).T(chat.MsgRenderFailed), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(body)
}

// renderPartial writes an htmx fragment. When rendering fails, the
// fragment is replaced by an error panel offering to request retryURL
// again, so the rest of the page keeps working.
func (a *Admin) renderPartial(w http.ResponseWriter, r *http.Request, view, name string, data any, retryURL string) {
	body, err := a.execute(r, partialsSet, name, data)
	if err != nil {
		metrics.IncRenderFailure(view)
		a.logger.Error("failed to render view", "view", view, "error", err)

		panel := &errorPanelData{
			Message:  a.printer(r).T(chat.MsgRenderFailed),
			RetryURL: retryURL,
		}
		body, err = a.execute(r, partialsSet, "error_panel", panel)
		if err != nil {
			a.logger.Error("failed to render error panel", "error", err)
			http.Error(w, panel.Message, http.StatusInternalServerError)
			return
		}
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(body)
}

// errorPanel describes a load failure for the given retry request.
func (a *Admin) errorPanel(r *http.Request, err error, retryURL string) *errorPanelData {
	panel := &errorPanelData{Message: a.printer(r).T(chat.MessageKeyFor(err))}
	if chat.Retryable(err) {
		panel.RetryURL = retryURL
	}
	return panel
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// sessionExpired reports whether the stored token is known to be expired.
func sessionExpired(s *auth.Session, now time.Time) bool {
	return s.Admin != nil && s.Admin.Expired(now)
}

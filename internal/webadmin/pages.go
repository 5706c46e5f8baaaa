// ABOUTME: Handlers for the stats home page, user details and embedded help
// ABOUTME: Help topics are markdown files rendered with goldmark

package webadmin

import (
	"bytes"
	"errors"
	"html/template"
	"net/http"
	"path"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tripdesk/tripdesk-admin/internal/apiclient"
	"github.com/tripdesk/tripdesk-admin/internal/chat"
	"github.com/tripdesk/tripdesk-admin/internal/render"
)

// handleHome renders the stats home page; the numbers load as a partial
func (a *Admin) handleHome(w http.ResponseWriter, r *http.Request) {
	p := a.printer(r)
	a.renderPage(w, r, http.StatusOK, "home", a.shell(r, p, "app.home", "home"))
}

// handleStatsSummary returns the chat statistics cards (htmx partial)
func (a *Admin) handleStatsSummary(w http.ResponseWriter, r *http.Request) {
	const self = "/stats/summary"

	stats, err := a.api.Statistics(r.Context())
	if err != nil {
		a.logger.Warn("failed to load statistics", "error", err)
		data := statsData{Error: a.errorPanel(r, &chat.LoadError{Op: "loading statistics", Err: err}, self)}
		a.renderPartial(w, r, "stats", "stats_summary", data, self)
		return
	}

	data := statsData{Stats: &statsView{
		TotalConversations:  stats.TotalConversations,
		ActiveConversations: stats.ActiveConversations,
		TotalMessages:       stats.TotalMessages,
		UnreadMessages:      stats.UnreadMessages,
		MessagesToday:       stats.MessagesToday,
	}}
	a.renderPartial(w, r, "stats", "stats_summary", data, self)
}

// handleUserDetails renders a user's details with a way back to the
// conversation the operator came from
func (a *Admin) handleUserDetails(w http.ResponseWriter, r *http.Request) {
	p := a.printer(r)
	id := r.PathValue("id")
	q := r.URL.Query()

	data := userPageData{
		shellData: a.shell(r, p, "user.title", "conversations"),
		BackURL:   backURL(q.Get("from"), q.Get("return"), q.Get("conversation")),
	}

	raw, err := a.api.GetUser(r.Context(), id)
	if err != nil {
		a.logger.Warn("failed to load user", "user", id, "error", err)
		var status int
		if isNotFound(err) {
			data.NotFound = true
			status = http.StatusNotFound
		} else {
			data.Error = a.errorPanel(r, &chat.LoadError{Op: "loading user", Err: err}, r.URL.RequestURI())
			data.Error.Reload = true
			status = http.StatusBadGateway
		}
		a.renderPage(w, r, status, "user", data)
		return
	}

	var user chat.UserDetails
	if err := user.UnmarshalJSON(raw); err != nil || user.ID == "" {
		data.NotFound = true
		a.renderPage(w, r, http.StatusNotFound, "user", data)
		return
	}

	data.User = &user
	data.Avatar = render.AssetURL(a.config.AssetBaseURL, user.ProfileImage)
	data.RoleKey = roleKey(user.Role)
	if !user.CreatedAt.IsZero() {
		data.Since = p.Date(user.CreatedAt.In(a.config.Location))
	}
	a.renderPage(w, r, http.StatusOK, "user", data)
}

// backURL honours the return path when the page was opened from a
// conversation, falling back to reselecting that conversation.
func backURL(from, returnPath, conversationID string) string {
	if from != "chat" {
		return ""
	}
	if rp := render.SafeReturnPath(returnPath); rp != "" {
		return rp
	}
	if conversationID != "" {
		return conversationReturnPath(conversationID, nil)
	}
	return "/conversations"
}

func isNotFound(err error) bool {
	var httpErr *apiclient.HTTPError
	return errors.As(err, &httpErr) && httpErr.Status == http.StatusNotFound
}

// helpTopicOrder lists topics in reading order; others sort after by slug.
var helpTopicOrder = map[string]int{
	"getting-started": 1,
	"conversations":   2,
	"cli":             3,
	"configuration":   4,
	"troubleshooting": 5,
}

const defaultHelpTopic = "getting-started"

// handleHelp renders an embedded help topic
func (a *Admin) handleHelp(w http.ResponseWriter, r *http.Request) {
	selected := r.PathValue("topic")
	if selected == "" {
		selected = defaultHelpTopic
	}

	entries, err := helpDocsFS.ReadDir("docs/help")
	if err != nil {
		a.logger.Error("failed to read help docs", "error", err)
		http.Error(w, "Failed to load help", http.StatusInternalServerError)
		return
	}

	var topics []helpTopic
	found := false
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		slug := strings.TrimSuffix(entry.Name(), ".md")
		topics = append(topics, helpTopic{
			Slug:   slug,
			Title:  formatHelpTitle(slug),
			Active: slug == selected,
		})
		found = found || slug == selected
	}
	sort.Slice(topics, func(i, j int) bool {
		oi, ok := helpTopicOrder[topics[i].Slug]
		if !ok {
			oi = 100
		}
		oj, ok := helpTopicOrder[topics[j].Slug]
		if !ok {
			oj = 100
		}
		if oi != oj {
			return oi < oj
		}
		return topics[i].Slug < topics[j].Slug
	})

	status := http.StatusOK
	var md []byte
	if found {
		md, err = helpDocsFS.ReadFile(path.Join("docs/help", selected+".md"))
	}
	if !found || err != nil {
		md = []byte("# Not Found\n\nThis help topic could not be found.")
		status = http.StatusNotFound
	}

	var buf bytes.Buffer
	if err := goldmark.Convert(md, &buf); err != nil {
		a.logger.Error("failed to convert markdown", "topic", selected, "error", err)
		buf.Reset()
		buf.WriteString("<p>Failed to render help content.</p>")
	}

	p := a.printer(r)
	a.renderPage(w, r, status, "help", helpPageData{
		shellData: a.shell(r, p, "app.help", "help"),
		Topics:    topics,
		Content:   template.HTML(buf.String()),
	})
}

// formatHelpTitle converts a slug to a display title
func formatHelpTitle(slug string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(slug, "-", " "))
}

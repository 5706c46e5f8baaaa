// ABOUTME: Conversation handlers for the sidebar list, the conversation window and sending
// ABOUTME: Every load is guarded by the stale tracker so superseded responses are dropped

package webadmin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/tripdesk/tripdesk-admin/internal/apiclient"
	"github.com/tripdesk/tripdesk-admin/internal/auth"
	"github.com/tripdesk/tripdesk-admin/internal/chat"
	"github.com/tripdesk/tripdesk-admin/internal/config"
	"github.com/tripdesk/tripdesk-admin/internal/dedupe"
	"github.com/tripdesk/tripdesk-admin/internal/latest"
	"github.com/tripdesk/tripdesk-admin/internal/metrics"
	"github.com/tripdesk/tripdesk-admin/internal/render"
)

// listParams reads the conversation list state from the query string.
func (a *Admin) listParams(r *http.Request) chat.ListParams {
	q := r.URL.Query()
	p := chat.ListParams{
		Search:    strings.TrimSpace(q.Get("search")),
		SortOrder: q.Get("sort"),
	}
	p.Page, _ = strconv.Atoi(q.Get("page"))
	p.PageSize, _ = strconv.Atoi(q.Get("pageSize"))
	if p.PageSize > config.MaxPageSize {
		p.PageSize = config.MaxPageSize
	}
	return p.Normalized(a.config.ConversationsPageSize)
}

func listURL(p chat.ListParams, selected string) string {
	v := p.Values()
	if selected != "" {
		v.Set("selected", selected)
	}
	return "/conversations/list?" + v.Encode()
}

// listState encodes the list parameters that differ from the defaults so
// conversation links can find their way back to the same list page.
func (a *Admin) listState(p chat.ListParams) url.Values {
	v := url.Values{}
	if p.Page > 1 {
		v.Set("page", strconv.Itoa(p.Page))
	}
	if p.PageSize != a.config.ConversationsPageSize {
		v.Set("pageSize", strconv.Itoa(p.PageSize))
	}
	if p.Search != "" {
		v.Set("search", p.Search)
	}
	if p.SortOrder != chat.SortNewest {
		v.Set("sort", p.SortOrder)
	}
	return v
}

func viewURL(id string, state url.Values) string {
	u := "/conversations/" + url.PathEscape(id) + "/view"
	if len(state) > 0 {
		u += "?" + state.Encode()
	}
	return u
}

func messagesURL(id string, page int) string {
	return "/conversations/" + url.PathEscape(id) + "/messages?page=" + strconv.Itoa(page)
}

// conversationReturnPath is where user details pages send the operator back to.
func conversationReturnPath(id string, state url.Values) string {
	v := url.Values{}
	for k, vs := range state {
		v[k] = vs
	}
	v.Set("selected", id)
	return "/conversations?" + v.Encode()
}

// discardStale answers a superseded request with 204 so htmx leaves the
// DOM alone. It reports whether the response was discarded.
func discardStale(w http.ResponseWriter, ticket *latest.Ticket, list string) bool {
	if ticket.Current() {
		return false
	}
	metrics.IncStaleDiscarded(list)
	w.WriteHeader(http.StatusNoContent)
	return true
}

// handleConversationsPage renders the sidebar and window shell
func (a *Admin) handleConversationsPage(w http.ResponseWriter, r *http.Request) {
	p := a.printer(r)
	params := a.listParams(r)
	selected := r.URL.Query().Get("selected")

	data := conversationsPageData{
		shellData:  a.shell(r, p, "app.conversations", "conversations"),
		ListURL:    listURL(params, selected),
		Search:     params.Search,
		Sort:       params.SortOrder,
		SelectedID: selected,
	}
	if selected != "" {
		data.ViewURL = viewURL(selected, a.listState(params))
	}
	a.renderPage(w, r, http.StatusOK, "conversations", data)
}

// handleConversationList returns one page of the sidebar (htmx partial)
func (a *Admin) handleConversationList(w http.ResponseWriter, r *http.Request) {
	sess := session(r)
	params := a.listParams(r)
	selected := r.URL.Query().Get("selected")
	self := listURL(params, selected)

	ticket, ctx := a.tracker.Begin(r.Context(), sess.ID, listConversations, params.Key())
	defer ticket.Done()

	page, err := a.conversations.Load(ctx, params)
	if discardStale(w, ticket, listConversations) {
		return
	}

	data := conversationListData{
		Page:       params.Page,
		Search:     params.Search,
		Sort:       params.SortOrder,
		SelectedID: selected,
	}
	if err != nil {
		a.logger.Warn("failed to load conversations", "error", err, "params", params.Key())
		data.Error = a.errorPanel(r, err, self)
		if chat.MessageKeyFor(err) == chat.MsgLoadFailed {
			data.Error.Message = a.printer(r).T("chat.error.conversations")
		}
		a.renderPartial(w, r, "conversation_list", "conversation_list", data, self)
		return
	}

	a.sessions.remember(sess.ID, page.Items)

	data.TotalPages = page.TotalPages
	data.HasPrev = page.HasPrev()
	data.HasNext = page.HasNext()
	if data.HasPrev {
		data.PrevURL = listURL(params.WithPage(params.Page-1), selected)
	}
	if data.HasNext {
		data.NextURL = listURL(params.WithPage(params.Page+1), selected)
	}
	data.Rows = a.conversationRows(r, page.Items, selected, a.listState(params))

	a.renderPartial(w, r, "conversation_list", "conversation_list", data, self)
}

func (a *Admin) conversationRows(r *http.Request, convs []chat.Conversation, selected string, state url.Values) []conversationRow {
	p := a.printer(r)
	clock := a.clock()

	rows := make([]conversationRow, 0, len(convs))
	for i := range convs {
		c := &convs[i]
		row := conversationRow{
			ID:          string(c.ID),
			UnreadCount: c.UnreadCount,
			Selected:    selected != "" && string(c.ID) == selected,
			ViewURL:     viewURL(string(c.ID), state),
		}
		if other := chat.ResolveOtherParty(c); other != nil {
			row.Title = other.DisplayName()
			row.Subtitle = p.T(roleKey(other.Role))
			row.Avatar = render.AssetURL(a.config.AssetBaseURL, other.ProfileImage)
		}
		if row.Title == "" {
			row.Title = string(c.ID)
		}
		if c.LastMessage != nil {
			row.Preview = c.LastMessage.Content
			row.Time = clock.Timestamp(p, c.LastMessage.CreatedAt)
		}
		rows = append(rows, row)
	}
	return rows
}

func roleKey(r chat.Role) string {
	switch r {
	case chat.RoleAdmin, chat.RoleProvider, chat.RoleCustomer:
		return "role." + string(r)
	default:
		return "role.unknown"
	}
}

// findConversation returns a conversation this browser has listed. When
// it is not remembered (bookmark, restart, swept session) the list page
// named by params is loaded, then the default first page.
func (a *Admin) findConversation(ctx context.Context, sess *auth.Session, id chat.ID, params chat.ListParams) (*chat.Conversation, error) {
	if conv, ok := a.sessions.lookup(sess.ID, id); ok {
		return conv, nil
	}

	candidates := []chat.ListParams{params}
	if first := a.defaultListParams(); first.Key() != params.Key() {
		candidates = append(candidates, first)
	}
	for _, p := range candidates {
		page, err := a.conversations.Load(ctx, p)
		if err != nil {
			return nil, err
		}
		a.sessions.remember(sess.ID, page.Items)
		if conv, ok := a.sessions.lookup(sess.ID, id); ok {
			return conv, nil
		}
	}
	return nil, &chat.NotFoundError{ConversationID: id}
}

// notFoundPanel points a missing conversation back at a full page reload
// of the list it was opened from.
func notFoundPanel(panel *errorPanelData, err error, returnPath string) {
	var nf *chat.NotFoundError
	if errors.As(err, &nf) {
		panel.RetryURL = returnPath
		panel.Reload = true
	}
}

// handleConversationView returns the conversation window (htmx partial)
func (a *Admin) handleConversationView(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "Conversation ID required", http.StatusBadRequest)
		return
	}
	params := a.listParams(r)
	state := a.listState(params)
	returnPath := conversationReturnPath(id, state)
	if !isHTMX(r) {
		http.Redirect(w, r, returnPath, http.StatusSeeOther)
		return
	}

	sess := session(r)
	self := viewURL(id, state)

	ticket, ctx := a.tracker.Begin(r.Context(), sess.ID, listMessages, id+"|1")
	defer ticket.Done()

	conv, err := a.findConversation(ctx, sess, chat.ID(id), params)
	if err != nil {
		if discardStale(w, ticket, listMessages) {
			return
		}
		a.logger.Warn("failed to resolve conversation", "conversation", id, "error", err)
		data := conversationViewData{Error: a.errorPanel(r, err, self)}
		data.Error.Target = "#conversation-window"
		notFoundPanel(data.Error, err, returnPath)
		a.renderPartial(w, r, "conversation", "conversation_view", data, self)
		return
	}

	view := chat.LoadView(conv, func() (*chat.Page[chat.Message], error) {
		return a.messages.Load(ctx, conv, 1, a.config.MessagesPageSize)
	})
	if discardStale(w, ticket, listMessages) {
		return
	}

	data := conversationViewData{
		Header:    render.NewHeader(conv, returnPath, a.config.AssetBaseURL),
		SendURL:   "/conversations/" + url.PathEscape(id) + "/messages",
		CSRFToken: getCSRFToken(r),
		Nonce:     uuid.NewString(),
	}
	if view.Phase == chat.PhaseError {
		a.logger.Warn("failed to load messages", "conversation", id, "error", view.Err)
		data.Error = a.errorPanel(r, view.Err, self)
		data.Error.Target = "#conversation-window"
	} else {
		data.Page = a.messagePage(r, id, view.Messages)
		data.CanSend = chat.ResolveOtherParty(conv) != nil && !sessionExpired(sess, a.now())
	}
	a.renderPartial(w, r, "conversation", "conversation_view", data, self)
}

// handleMessagePage returns an older page of messages (htmx partial)
func (a *Admin) handleMessagePage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}

	sess := session(r)
	self := messagesURL(id, page)

	ticket, ctx := a.tracker.Begin(r.Context(), sess.ID, listMessages, id+"|"+strconv.Itoa(page))
	defer ticket.Done()

	conv, err := a.findConversation(ctx, sess, chat.ID(id), a.defaultListParams())
	var msgs *chat.Page[chat.Message]
	if err == nil {
		msgs, err = a.messages.Load(ctx, conv, page, a.config.MessagesPageSize)
	}
	if discardStale(w, ticket, listMessages) {
		return
	}
	if err != nil {
		a.logger.Warn("failed to load message page", "conversation", id, "page", page, "error", err)
		panel := a.errorPanel(r, err, self)
		notFoundPanel(panel, err, conversationReturnPath(id, nil))
		a.renderPartial(w, r, "messages", "error_panel", panel, self)
		return
	}

	a.renderPartial(w, r, "messages", "message_page", a.messagePage(r, id, msgs), self)
}

func (a *Admin) defaultListParams() chat.ListParams {
	return chat.ListParams{}.Normalized(a.config.ConversationsPageSize)
}

func (a *Admin) messagePage(r *http.Request, id string, msgs *chat.Page[chat.Message]) messagePageData {
	d := messagePageData{
		ConversationID: id,
		Messages:       render.NewMessages(msgs.Items, a.renderOptions(r)),
	}
	d.Empty = len(d.Messages) == 0 && msgs.Page <= 1
	if msgs.HasNext() {
		d.OlderURL = messagesURL(id, msgs.Page+1)
	}
	return d
}

// handleSendMessage posts an admin message and returns its bubble. The
// pending bubble the browser added is removed out of band.
func (a *Admin) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}
	if !a.validateCSRF(r) {
		http.Error(w, "Invalid request", http.StatusForbidden)
		return
	}

	id := r.PathValue("id")
	content := strings.TrimSpace(r.FormValue("content"))
	if content == "" {
		http.Error(w, "Message required", http.StatusBadRequest)
		return
	}
	nonce := r.FormValue("nonce")
	if _, err := uuid.Parse(nonce); err != nil {
		nonce = uuid.NewString()
	}

	sess := session(r)
	p := a.printer(r)
	self := "/conversations/" + url.PathEscape(id) + "/messages"
	failed := sendErrorData{
		Content:   content,
		Nonce:     nonce,
		SendURL:   self,
		CSRFToken: getCSRFToken(r),
	}

	conv, err := a.findConversation(r.Context(), sess, chat.ID(id), a.defaultListParams())
	if err != nil {
		failed.Message = p.T(chat.MessageKeyFor(err))
		metrics.IncMessageSent("failed")
		a.renderPartial(w, r, "send", "send_error", failed, self)
		return
	}
	receiver := chat.ResolveOtherParty(conv)
	if receiver == nil || receiver.ID == "" {
		failed.Message = p.T(chat.MsgParticipantsUnknown)
		metrics.IncMessageSent("failed")
		a.renderPartial(w, r, "send", "send_error", failed, self)
		return
	}

	key := dedupe.Key(sess.ID, nonce)
	if !a.sends.Claim(key) {
		metrics.IncMessageSent("duplicate")
		a.logger.Debug("duplicate send dropped", "conversation", id)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusConflict)
		a.renderPartial(w, r, "send", "send_duplicate", failed, self)
		return
	}

	raw, err := a.api.SendMessage(r.Context(), apiclient.OutgoingMessage{
		ReceiverID:  string(receiver.ID),
		MessageType: string(chat.MessageTypeText),
		Content:     content,
	})
	if err != nil {
		a.sends.Release(key)
		metrics.IncMessageSent("failed")
		a.logger.Warn("failed to send message", "conversation", id, "error", err)
		failed.Message = p.T("chat.send_failed")
		if msgKey := (&chat.LoadError{Err: err}).MessageKey(); msgKey != chat.MsgLoadFailed {
			failed.Message += " " + p.T(msgKey)
		}
		a.renderPartial(w, r, "send", "send_error", failed, self)
		return
	}
	metrics.IncMessageSent("sent")

	msg := a.sentMessage(raw, sess, content)
	data := sentBubbleData{
		Message: render.NewMessage(msg, a.renderOptions(r)),
		Nonce:   nonce,
	}
	a.renderPartial(w, r, "send", "sent_bubble", data, self)
}

// sentMessage decodes the created message, falling back to what was
// submitted when the API returns nothing usable.
func (a *Admin) sentMessage(raw json.RawMessage, sess *auth.Session, content string) chat.Message {
	var msg chat.Message
	if len(raw) == 0 || json.Unmarshal(raw, &msg) != nil || msg.Content == "" {
		msg = chat.Message{Type: chat.MessageTypeText, Content: content}
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = a.now()
	}
	msg.Sender.Role = chat.RoleAdmin
	if msg.Sender.Name == "" && sess.Admin != nil {
		msg.Sender.Name = firstNonEmpty(sess.Admin.Name, sess.Admin.Email)
	}
	return msg
}

// handleMediaPreview returns the full-screen image modal (htmx partial)
func (a *Admin) handleMediaPreview(w http.ResponseWriter, r *http.Request) {
	src := r.URL.Query().Get("src")
	if !strings.HasPrefix(src, "http://") && !strings.HasPrefix(src, "https://") && render.SafeReturnPath(src) == "" {
		http.Error(w, "Invalid image source", http.StatusBadRequest)
		return
	}

	data := mediaModalData{
		Src:         src,
		Placeholder: a.config.Placeholder,
	}
	a.renderPartial(w, r, "media", "media_modal", data, "")
}

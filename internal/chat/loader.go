// ABOUTME: Conversation list and message loaders over the platform API
// ABOUTME: Own pagination parameters and translate failures into ValidationError or LoadError

package chat

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/tripdesk/tripdesk-admin/internal/apiclient"
)

// Sort orders for the conversation list.
const (
	SortNewest = "desc"
	SortOldest = "asc"
)

// ConversationAPI is the slice of the API client the list loader needs.
type ConversationAPI interface {
	ListConversations(ctx context.Context, q apiclient.ConversationQuery) (json.RawMessage, error)
}

// MessageAPI is the slice of the API client the message loader needs.
type MessageAPI interface {
	ListMessages(ctx context.Context, q apiclient.MessageQuery) (json.RawMessage, error)
}

// ListParams is the conversation list state. Values are immutable; the
// With* methods return updated copies.
type ListParams struct {
	Page      int
	PageSize  int
	Search    string
	SortOrder string
}

// Normalized fills defaults: page 1 and newest first.
func (p ListParams) Normalized(defaultPageSize int) ListParams {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = defaultPageSize
	}
	if p.SortOrder != SortOldest {
		p.SortOrder = SortNewest
	}
	return p
}

// WithSearch changes the search text. A different search starts again
// from page 1.
func (p ListParams) WithSearch(search string) ListParams {
	if search != p.Search {
		p.Search = search
		p.Page = 1
	}
	return p
}

// WithSort changes the sort order. A different order starts again from
// page 1.
func (p ListParams) WithSort(order string) ListParams {
	if order != p.SortOrder {
		p.SortOrder = order
		p.Page = 1
	}
	return p
}

// WithPage moves to page n. It is not clamped to the total page count.
func (p ListParams) WithPage(n int) ListParams {
	p.Page = n
	return p
}

// Key identifies the request these parameters produce.
func (p ListParams) Key() string {
	return p.Values().Encode()
}

// Values encodes the parameters as a query string for links and retries.
func (p ListParams) Values() url.Values {
	v := url.Values{}
	v.Set("page", strconv.Itoa(p.Page))
	v.Set("pageSize", strconv.Itoa(p.PageSize))
	if p.Search != "" {
		v.Set("search", p.Search)
	}
	v.Set("sort", p.SortOrder)
	return v
}

// ConversationLoader fetches conversation summaries.
type ConversationLoader struct {
	api    ConversationAPI
	logger *slog.Logger
}

// NewConversationLoader creates a ConversationLoader.
func NewConversationLoader(api ConversationAPI) *ConversationLoader {
	return &ConversationLoader{
		api:    api,
		logger: slog.Default().With("component", "chat.conversations"),
	}
}

// Load fetches the page described by p.
func (l *ConversationLoader) Load(ctx context.Context, p ListParams) (*Page[Conversation], error) {
	raw, err := l.api.ListConversations(ctx, apiclient.ConversationQuery{
		Page:      p.Page,
		PageSize:  p.PageSize,
		Search:    p.Search,
		SortOrder: p.SortOrder,
	})
	if err != nil {
		return nil, &LoadError{Op: "loading conversations", Err: err}
	}

	page, err := DecodeConversations(raw)
	if err != nil {
		return nil, &LoadError{Op: "decoding conversations", Err: err}
	}
	if page.Page == 0 {
		page.Page = p.Page
	}
	if page.PageSize == 0 {
		page.PageSize = p.PageSize
	}

	l.logger.Debug("loaded conversations", "page", page.Page, "count", len(page.Items), "total_pages", page.TotalPages)
	return page, nil
}

// MessageLoader fetches the messages of a conversation.
type MessageLoader struct {
	api    MessageAPI
	logger *slog.Logger
}

// NewMessageLoader creates a MessageLoader.
func NewMessageLoader(api MessageAPI) *MessageLoader {
	return &MessageLoader{
		api:    api,
		logger: slog.Default().With("component", "chat.messages"),
	}
}

// Load fetches one page of messages. It fails with *ValidationError when
// the participants cannot be identified and *LoadError when the fetch or
// decode fails.
func (l *MessageLoader) Load(ctx context.Context, c *Conversation, page, pageSize int) (*Page[Message], error) {
	id1, id2, shape, err := resolveParticipantIDs(c)
	if err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}

	raw, err := l.api.ListMessages(ctx, apiclient.MessageQuery{
		UserID1:  string(id1),
		UserID2:  string(id2),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		return nil, &LoadError{Op: "loading messages", Err: err}
	}

	result, err := DecodeMessages(raw)
	if err != nil {
		return nil, &LoadError{Op: "decoding messages", Err: err}
	}
	if result.Page == 0 {
		result.Page = page
	}
	if result.PageSize == 0 {
		result.PageSize = pageSize
	}

	l.logger.Debug("loaded messages",
		"conversation", c.ID,
		"participant_shape", shape,
		"page", result.Page,
		"count", len(result.Items),
	)
	return result, nil
}

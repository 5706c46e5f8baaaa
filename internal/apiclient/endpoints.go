// ABOUTME: Typed wrappers for the admin chat endpoints of the platform API
// ABOUTME: List endpoints return raw JSON because the platform's response shapes vary

package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// Endpoint paths on the platform API.
const (
	PathConversations = "/api/admin/chat/conversations"
	PathMessages      = "/api/admin/chat/messages"
	PathStatistics    = "/api/admin/chat/statistics"
	PathSearch        = "/api/admin/chat/search"
	PathUsers         = "/api/admin/users"
	PathLogin         = "/api/admin/auth/login"
)

// ConversationQuery filters the conversation list.
type ConversationQuery struct {
	Page      int
	PageSize  int
	Search    string
	SortOrder string
}

func (q ConversationQuery) values() url.Values {
	v := url.Values{}
	setInt(v, "page", q.Page)
	setInt(v, "pageSize", q.PageSize)
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.SortOrder != "" {
		v.Set("sortOrder", q.SortOrder)
	}
	return v
}

// MessageQuery selects one page of messages between two users.
type MessageQuery struct {
	UserID1  string
	UserID2  string
	Page     int
	PageSize int
}

func (q MessageQuery) values() url.Values {
	v := url.Values{}
	v.Set("userId1", q.UserID1)
	v.Set("userId2", q.UserID2)
	setInt(v, "page", q.Page)
	setInt(v, "pageSize", q.PageSize)
	return v
}

// OutgoingMessage is the body of a send request.
type OutgoingMessage struct {
	ReceiverID   string   `json:"receiverId"`
	MessageType  string   `json:"messageType"`
	Content      string   `json:"content,omitempty"`
	FileURL      string   `json:"fileUrl,omitempty"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
	LocationName string   `json:"locationName,omitempty"`
}

// Statistics summarises chat activity for the home page.
type Statistics struct {
	TotalConversations  int `json:"totalConversations"`
	ActiveConversations int `json:"activeConversations"`
	TotalMessages       int `json:"totalMessages"`
	UnreadMessages      int `json:"unreadMessages"`
	MessagesToday       int `json:"messagesToday"`
}

// LoginResult is what the login endpoint hands back.
type LoginResult struct {
	Token string          `json:"token"`
	User  json.RawMessage `json:"user"`
}

func setInt(v url.Values, key string, n int) {
	if n > 0 {
		v.Set(key, strconv.Itoa(n))
	}
}

// ListConversations fetches one page of conversation summaries.
func (c *Client) ListConversations(ctx context.Context, q ConversationQuery) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodGet, PathConversations, q.values(), nil, nil)
}

// ListMessages fetches one page of messages between two users.
func (c *Client) ListMessages(ctx context.Context, q MessageQuery) (json.RawMessage, error) {
	if q.UserID1 == "" || q.UserID2 == "" {
		return nil, fmt.Errorf("both user ids are required")
	}
	return c.Do(ctx, http.MethodGet, PathMessages, q.values(), nil, nil)
}

// SendMessage posts an admin message and returns the created message.
func (c *Client) SendMessage(ctx context.Context, msg OutgoingMessage) (json.RawMessage, error) {
	if msg.MessageType == "" {
		msg.MessageType = "text"
	}
	raw, err := c.Do(ctx, http.MethodPost, PathMessages, nil, msg, nil)
	if err != nil {
		return nil, err
	}
	return UnwrapData(raw), nil
}

// Statistics fetches the chat activity summary.
func (c *Client) Statistics(ctx context.Context) (*Statistics, error) {
	raw, err := c.Do(ctx, http.MethodGet, PathStatistics, nil, nil, nil)
	if err != nil {
		return nil, err
	}

	var stats Statistics
	if raw := UnwrapData(raw); raw != nil {
		if err := json.Unmarshal(raw, &stats); err != nil {
			return nil, fmt.Errorf("decoding statistics: %w", err)
		}
	}
	return &stats, nil
}

// Search runs a full-text message search.
func (c *Client) Search(ctx context.Context, query string, page, pageSize int) (json.RawMessage, error) {
	v := url.Values{}
	v.Set("query", query)
	setInt(v, "page", page)
	setInt(v, "pageSize", pageSize)
	return c.Do(ctx, http.MethodGet, PathSearch, v, nil, nil)
}

// GetUser fetches one user's details.
func (c *Client) GetUser(ctx context.Context, id string) (json.RawMessage, error) {
	raw, err := c.do(ctx, request{
		method:        http.MethodGet,
		path:          PathUsers + "/" + url.PathEscape(id),
		endpoint:      PathUsers + "/{id}",
		authenticated: true,
	})
	if err != nil {
		return nil, err
	}
	return UnwrapData(raw), nil
}

// Login exchanges admin credentials for a bearer token. It is the only
// call made without a token.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	raw, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   PathLogin,
		body: map[string]string{
			"email":    email,
			"password": password,
		},
	})
	if err != nil {
		return nil, err
	}

	var res struct {
		LoginResult
		AccessToken string `json:"accessToken"`
	}
	if err := json.Unmarshal(UnwrapData(raw), &res); err != nil {
		return nil, fmt.Errorf("decoding login response: %w", err)
	}
	if res.Token == "" {
		res.Token = res.AccessToken
	}
	if res.Token == "" {
		return nil, fmt.Errorf("login response carried no token")
	}
	return &res.LoginResult, nil
}

// UnwrapData returns the value under a top-level "data" key when the body
// is an object that has one, otherwise the body unchanged.
func UnwrapData(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return raw
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return raw
	}
	if data, ok := obj["data"]; ok && len(data) > 0 && string(data) != "null" {
		var inner map[string]json.RawMessage
		if json.Unmarshal(data, &inner) == nil {
			return data
		}
	}
	return raw
}

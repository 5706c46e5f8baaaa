// ABOUTME: Decodes paginated list responses from the platform API
// ABOUTME: Unwraps the item array and pagination block, defaulting when either is missing

package chat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Page is one page of a list.
type Page[T any] struct {
	Items      []T
	Page       int
	PageSize   int
	TotalPages int
	Total      int
}

// HasPrev reports whether a previous page exists.
func (p *Page[T]) HasPrev() bool { return p.Page > 1 }

// HasNext reports whether the page after this one exists. Pages past the
// end are never clamped, so this is false there too.
func (p *Page[T]) HasNext() bool { return p.Page < p.TotalPages }

type pagination struct {
	Page        json.Number `json:"page"`
	CurrentPage json.Number `json:"currentPage"`
	PageSize    json.Number `json:"pageSize"`
	Limit       json.Number `json:"limit"`
	TotalPages  json.Number `json:"totalPages"`
	Pages       json.Number `json:"pages"`
	Total       json.Number `json:"total"`
}

// decodePage reads items from the first present key in itemKeys. A bare
// JSON array is also accepted. Missing items mean an empty page and
// missing pagination means a single page.
func decodePage[T any](raw json.RawMessage, itemKeys ...string) (*Page[T], error) {
	page := &Page[T]{Items: []T{}, TotalPages: 1}

	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return page, nil
	}

	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &page.Items); err != nil {
			return nil, fmt.Errorf("decoding items: %w", err)
		}
		return page, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	for _, key := range itemKeys {
		items, ok := obj[key]
		if !ok || string(items) == "null" {
			continue
		}
		if err := json.Unmarshal(items, &page.Items); err != nil {
			// data may be an object wrapping the real payload
			var nested map[string]json.RawMessage
			if json.Unmarshal(items, &nested) == nil {
				inner, err := decodePage[T](items, itemKeys...)
				if err != nil {
					return nil, err
				}
				if _, ok := nested["pagination"]; !ok {
					applyPagination(inner, obj["pagination"])
				}
				return inner, nil
			}
			return nil, fmt.Errorf("decoding %s: %w", key, err)
		}
		break
	}
	if page.Items == nil {
		page.Items = []T{}
	}

	applyPagination(page, obj["pagination"])
	return page, nil
}

// applyPagination copies a pagination block onto page. An absent or
// undecodable block leaves the defaults.
func applyPagination[T any](page *Page[T], raw json.RawMessage) {
	if len(raw) == 0 {
		return
	}
	var pg pagination
	if err := json.Unmarshal(raw, &pg); err != nil {
		return
	}
	page.Page = firstInt(pg.Page, pg.CurrentPage)
	page.PageSize = firstInt(pg.PageSize, pg.Limit)
	page.Total = firstInt(pg.Total)
	if n := firstInt(pg.TotalPages, pg.Pages); n > 0 {
		page.TotalPages = n
	}
}

func firstInt(nums ...json.Number) int {
	for _, n := range nums {
		if n == "" {
			continue
		}
		if i, err := strconv.Atoi(n.String()); err == nil {
			return i
		}
		if f, err := n.Float64(); err == nil {
			return int(f)
		}
	}
	return 0
}

// DecodeConversations decodes a conversation list response.
func DecodeConversations(raw json.RawMessage) (*Page[Conversation], error) {
	return decodePage[Conversation](raw, "data", "conversations")
}

// DecodeMessages decodes a message list response.
func DecodeMessages(raw json.RawMessage) (*Page[Message], error) {
	return decodePage[Message](raw, "messages", "data")
}

// DecodeSearchResults decodes a search response.
func DecodeSearchResults(raw json.RawMessage) (*Page[Message], error) {
	return decodePage[Message](raw, "results", "messages", "data")
}

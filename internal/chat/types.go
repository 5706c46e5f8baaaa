// ABOUTME: Conversation, user, and message types decoded from the platform API
// ABOUTME: Decoding tolerates numeric or string ids and the API's alternate field names

package chat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Role classifies a participant.
type Role string

const (
	RoleAdmin       Role = "admin"
	RoleProvider    Role = "provider"
	RoleCustomer    Role = "customer"
	RoleUnspecified Role = ""
)

func normalizeRole(s string) Role {
	return Role(strings.ToLower(strings.TrimSpace(s)))
}

// MessageType selects how a message body is rendered.
type MessageType string

const (
	MessageTypeText     MessageType = "text"
	MessageTypeImage    MessageType = "image"
	MessageTypeLocation MessageType = "location"
)

// ID is an identifier the API sends as either a JSON string or a number.
type ID string

// UnmarshalJSON accepts strings, numbers and null.
func (id *ID) UnmarshalJSON(data []byte) error {
	*id = ID(scalarString(data))
	return nil
}

func (id ID) String() string { return string(id) }

// scalarString renders a JSON string or number as a Go string. Anything
// else yields "".
func scalarString(data []byte) string {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return ""
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return ""
		}
		return strings.TrimSpace(s)
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return ""
		}
		return n.String()
	}
	return ""
}

// UserRef is a participant or message sender.
type UserRef struct {
	ID           ID
	Name         string
	Role         Role
	ProfileImage string
}

// DisplayName falls back to the id when the API sent no name.
func (u *UserRef) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.Name != "" {
		return u.Name
	}
	return string(u.ID)
}

// UnmarshalJSON accepts a full user object or a bare id.
func (u *UserRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		*u = UserRef{ID: ID(scalarString(data))}
		return nil
	}

	var raw struct {
		ID             ID     `json:"id"`
		MongoID        ID     `json:"_id"`
		UserID         ID     `json:"userId"`
		Name           string `json:"name"`
		FullName       string `json:"fullName"`
		FirstName      string `json:"firstName"`
		LastName       string `json:"lastName"`
		Role           string `json:"role"`
		ProfileImage   string `json:"profileImage"`
		ProfilePicture string `json:"profilePicture"`
		Avatar         string `json:"avatar"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*u = UserRef{
		ID:           firstID(raw.ID, raw.MongoID, raw.UserID),
		Name:         firstNonEmpty(raw.Name, raw.FullName, strings.TrimSpace(raw.FirstName+" "+raw.LastName)),
		Role:         normalizeRole(raw.Role),
		ProfileImage: firstNonEmpty(raw.ProfileImage, raw.ProfilePicture, raw.Avatar),
	}
	return nil
}

// UserDetails is the record behind the user details page.
type UserDetails struct {
	UserRef
	Email     string
	Phone     string
	CreatedAt time.Time
}

// UnmarshalJSON decodes the reference fields plus contact details.
func (d *UserDetails) UnmarshalJSON(data []byte) error {
	if err := d.UserRef.UnmarshalJSON(data); err != nil {
		return err
	}
	// A bare id carries no contact details.
	if trimmed := bytes.TrimSpace(data); len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}
	var raw struct {
		Email       string          `json:"email"`
		Phone       json.RawMessage `json:"phone"`
		PhoneNumber json.RawMessage `json:"phoneNumber"`
		CreatedAt   json.RawMessage `json:"createdAt"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decoding user details: %w", err)
	}
	d.Email = strings.TrimSpace(raw.Email)
	d.Phone = firstNonEmpty(scalarString(raw.Phone), scalarString(raw.PhoneNumber))
	d.CreatedAt = parseTime(raw.CreatedAt)
	return nil
}

// LastMessage summarises the newest message of a conversation.
type LastMessage struct {
	Content    string
	SenderName string
	CreatedAt  time.Time
}

// UnmarshalJSON accepts an object or a bare content string.
func (m *LastMessage) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*m = LastMessage{Content: s}
		return nil
	}

	var raw struct {
		Content    string          `json:"content"`
		SenderName string          `json:"senderName"`
		Sender     *UserRef        `json:"sender"`
		CreatedAt  json.RawMessage `json:"createdAt"`
		Timestamp  json.RawMessage `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = LastMessage{
		Content:    raw.Content,
		SenderName: raw.SenderName,
		CreatedAt:  parseTime(raw.CreatedAt),
	}
	if m.SenderName == "" && raw.Sender != nil {
		m.SenderName = raw.Sender.DisplayName()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = parseTime(raw.Timestamp)
	}
	return nil
}

// Conversation is a two-party conversation summary. Exactly one of the
// participant encodings is normally populated; ResolveParticipantIDs
// copes with whichever the API sent.
type Conversation struct {
	ID           ID
	User1        *UserRef
	User2        *UserRef
	User1ID      ID
	User2ID      ID
	Participants []UserRef
	LastMessage  *LastMessage
	UnreadCount  int

	// fields holds every top-level key for the id scan fallback.
	fields map[string]json.RawMessage
}

// UnmarshalJSON decodes the known fields and keeps the raw object.
func (c *Conversation) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	var raw struct {
		ID             ID           `json:"id"`
		ConversationID ID           `json:"conversationId"`
		MongoID        ID           `json:"_id"`
		User1          *UserRef     `json:"user1"`
		User2          *UserRef     `json:"user2"`
		User1ID        ID           `json:"user1Id"`
		User2ID        ID           `json:"user2Id"`
		Participants   []UserRef    `json:"participants"`
		LastMessage    *LastMessage `json:"lastMessage"`
		UnreadCount    json.Number  `json:"unreadCount"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	unread, _ := strconv.Atoi(raw.UnreadCount.String())
	*c = Conversation{
		ID:           firstID(raw.ConversationID, raw.ID, raw.MongoID),
		User1:        raw.User1,
		User2:        raw.User2,
		User1ID:      raw.User1ID,
		User2ID:      raw.User2ID,
		Participants: raw.Participants,
		LastMessage:  raw.LastMessage,
		UnreadCount:  unread,
		fields:       fields,
	}
	return nil
}

// Fields returns the raw top-level keys the conversation was decoded from.
func (c *Conversation) Fields() map[string]json.RawMessage {
	return c.fields
}

// Message is one entry in a conversation.
type Message struct {
	ID           ID
	Sender       UserRef
	Type         MessageType
	Content      string
	FileURL      string
	Latitude     *float64
	Longitude    *float64
	LocationName string
	CreatedAt    time.Time
	IsRead       bool
}

// HasCoordinates reports whether both latitude and longitude are set.
func (m *Message) HasCoordinates() bool {
	return m.Latitude != nil && m.Longitude != nil
}

// UnmarshalJSON tolerates string coordinates and the alternate type field.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID           ID              `json:"id"`
		MongoID      ID              `json:"_id"`
		Sender       *UserRef        `json:"sender"`
		SenderID     ID              `json:"senderId"`
		SenderRole   string          `json:"senderRole"`
		MessageType  string          `json:"messageType"`
		Type         string          `json:"type"`
		Content      string          `json:"content"`
		FileURL      string          `json:"fileUrl"`
		Latitude     json.RawMessage `json:"latitude"`
		Longitude    json.RawMessage `json:"longitude"`
		LocationName string          `json:"locationName"`
		CreatedAt    json.RawMessage `json:"createdAt"`
		IsRead       bool            `json:"isRead"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*m = Message{
		ID:           firstID(raw.ID, raw.MongoID),
		Type:         MessageType(strings.ToLower(firstNonEmpty(raw.MessageType, raw.Type, string(MessageTypeText)))),
		Content:      raw.Content,
		FileURL:      raw.FileURL,
		Latitude:     parseCoordinate(raw.Latitude),
		Longitude:    parseCoordinate(raw.Longitude),
		LocationName: raw.LocationName,
		CreatedAt:    parseTime(raw.CreatedAt),
		IsRead:       raw.IsRead,
	}
	if raw.Sender != nil {
		m.Sender = *raw.Sender
	}
	if m.Sender.ID == "" {
		m.Sender.ID = raw.SenderID
	}
	if m.Sender.Role == RoleUnspecified {
		m.Sender.Role = normalizeRole(raw.SenderRole)
	}
	return nil
}

func parseCoordinate(data json.RawMessage) *float64 {
	s := scalarString(data)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// parseTime accepts RFC 3339 strings, naive timestamps (taken as UTC) and
// epoch milliseconds.
func parseTime(data json.RawMessage) time.Time {
	data = bytes.TrimSpace(data)
	s := scalarString(data)
	if s == "" {
		return time.Time{}
	}
	if data[0] != '"' {
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.UnixMilli(ms).UTC()
		}
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func firstID(ids ...ID) ID {
	for _, id := range ids {
		if id != "" {
			return id
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

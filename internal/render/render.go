// ABOUTME: View models for the conversation window built from chat messages
// ABOUTME: Resolves asset URLs, timestamps, bubble styling, locations, and detail links

package render

import (
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/tripdesk/tripdesk-admin/internal/chat"
	"github.com/tripdesk/tripdesk-admin/internal/i18n"
)

// Bubble classes.
const (
	BubbleSent     = "sent"
	BubbleProvider = "provider"
	BubbleReceived = "received"
)

// AssetURL makes a media path absolute. Paths already starting with http
// are returned unchanged; anything else is joined onto base with exactly
// one slash between them.
func AssetURL(base, p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	if strings.HasPrefix(p, "http") {
		return p
	}
	if base == "" {
		return p
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(p, "/")
}

// BubbleClass picks the bubble styling from the sender's role.
func BubbleClass(r chat.Role) string {
	switch r {
	case chat.RoleAdmin:
		return BubbleSent
	case chat.RoleProvider:
		return BubbleProvider
	default:
		return BubbleReceived
	}
}

// FormatCoordinate renders a coordinate with six decimals.
func FormatCoordinate(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// MapURL opens the raw coordinates in an external map.
func MapURL(lat, lng float64) string {
	q := strconv.FormatFloat(lat, 'f', -1, 64) + "," + strconv.FormatFloat(lng, 'f', -1, 64)
	return "https://www.google.com/maps?q=" + url.QueryEscape(q)
}

// Clock formats message timestamps relative to now in a fixed zone.
type Clock struct {
	Now      func() time.Time
	Location *time.Location
}

// Timestamp shows hour:minute for messages from the same calendar day as
// now and abbreviated month, day and time otherwise.
func (c Clock) Timestamp(p *i18n.Printer, t time.Time) string {
	if t.IsZero() {
		return ""
	}
	loc := c.Location
	if loc == nil {
		loc = time.Local
	}
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}

	local := t.In(loc)
	today := now().In(loc)
	clock := local.Format("15:04")

	y1, m1, d1 := local.Date()
	y2, m2, d2 := today.Date()
	if y1 == y2 && m1 == m2 && d1 == d2 {
		return clock
	}
	return p.DateTime(local, clock)
}

// Options carries the settings message views depend on.
type Options struct {
	AssetBase   string
	Placeholder string // dashboard path or absolute URL, used as given
	Clock       Clock
	Printer     *i18n.Printer
}

// Location is the view of a shared location.
type Location struct {
	Label     string
	Latitude  string
	Longitude string
	MapURL    string
}

// Message is one rendered bubble.
type Message struct {
	ID          string
	Type        chat.MessageType
	Class       string
	SenderName  string
	Content     string
	ImageURL    string
	Placeholder string
	Location    *Location
	Time        string
	ISOTime     string
	ShowReceipt bool
	IsRead      bool
}

// NewMessage builds the view for m.
func NewMessage(m chat.Message, opts Options) Message {
	v := Message{
		ID:          string(m.ID),
		Type:        m.Type,
		Class:       BubbleClass(m.Sender.Role),
		SenderName:  m.Sender.DisplayName(),
		Content:     m.Content,
		Placeholder: opts.Placeholder,
		Time:        opts.Clock.Timestamp(opts.Printer, m.CreatedAt),
		ShowReceipt: m.Sender.Role == chat.RoleAdmin,
		IsRead:      m.IsRead,
	}
	if !m.CreatedAt.IsZero() {
		v.ISOTime = m.CreatedAt.UTC().Format(time.RFC3339)
	}

	switch m.Type {
	case chat.MessageTypeImage:
		src := m.FileURL
		if src == "" {
			src = m.Content
		}
		v.ImageURL = AssetURL(opts.AssetBase, src)
	case chat.MessageTypeLocation:
		if m.HasCoordinates() {
			label := m.LocationName
			if label == "" {
				label = opts.Printer.T("chat.location.unnamed")
			}
			v.Location = &Location{
				Label:     label,
				Latitude:  FormatCoordinate(*m.Latitude),
				Longitude: FormatCoordinate(*m.Longitude),
				MapURL:    MapURL(*m.Latitude, *m.Longitude),
			}
		} else {
			// nothing to point at, show whatever text came along
			v.Type = chat.MessageTypeText
		}
	case chat.MessageTypeText:
	default:
		v.Type = chat.MessageTypeText
	}
	return v
}

// NewMessages builds views for a page of messages.
func NewMessages(msgs []chat.Message, opts Options) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, NewMessage(m, opts))
	}
	return out
}

// DetailsURL builds the user details link carrying enough context for a
// back action: an origin marker, the return path and the conversation.
func DetailsURL(userID chat.ID, returnPath string, conversationID chat.ID) string {
	v := url.Values{}
	v.Set("from", "chat")
	if rp := SafeReturnPath(returnPath); rp != "" {
		v.Set("return", rp)
	}
	if conversationID != "" {
		v.Set("conversation", string(conversationID))
	}
	return "/users/" + url.PathEscape(string(userID)) + "?" + v.Encode()
}

// SafeReturnPath accepts only local absolute paths so a back link can
// never leave the dashboard.
func SafeReturnPath(p string) string {
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return ""
	}
	u, err := url.Parse(p)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return ""
	}
	return p
}

// Participant is a linked name in the conversation header.
type Participant struct {
	ID         string
	Name       string
	Role       chat.Role
	Avatar     string
	DetailsURL string
}

// Header is the conversation window header.
type Header struct {
	ConversationID string
	Provider       *Participant
	Customer       *Participant
	OtherParty     *Participant
}

// NewHeader resolves the provider, customer and other party of c.
func NewHeader(c *chat.Conversation, returnPath, assetBase string) Header {
	h := Header{ConversationID: string(c.ID)}
	provider, customer := chat.ResolveProviderAndCustomer(c)
	h.Provider = participant(provider, c.ID, returnPath, assetBase)
	h.Customer = participant(customer, c.ID, returnPath, assetBase)
	h.OtherParty = participant(chat.ResolveOtherParty(c), c.ID, returnPath, assetBase)
	return h
}

func participant(u *chat.UserRef, convID chat.ID, returnPath, assetBase string) *Participant {
	if u == nil {
		return nil
	}
	p := &Participant{
		ID:     string(u.ID),
		Name:   u.DisplayName(),
		Role:   u.Role,
		Avatar: AssetURL(assetBase, u.ProfileImage),
	}
	if u.ID != "" {
		p.DetailsURL = DetailsURL(u.ID, returnPath, convID)
	}
	return p
}

// Initials returns up to two initials for an avatar fallback.
func Initials(name string) string {
	var out []rune
	for _, f := range strings.Fields(name) {
		out = append(out, unicode.ToUpper([]rune(f)[0]))
		if len(out) == 2 {
			break
		}
	}
	if len(out) == 0 {
		return "?"
	}
	return string(out)
}

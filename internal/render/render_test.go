// ABOUTME: Tests for conversation window view models
// ABOUTME: Covers asset URL joining, timestamps, bubble classes, locations, and detail links

package render

import (
	"encoding/json"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripdesk/tripdesk-admin/internal/chat"
	"github.com/tripdesk/tripdesk-admin/internal/i18n"
)

func testPrinter(t *testing.T, locale string) *i18n.Printer {
	t.Helper()
	b, err := i18n.NewBundle("en")
	require.NoError(t, err)
	return b.Printer(locale)
}

func fixedClock(now time.Time) Clock {
	return Clock{Now: func() time.Time { return now }, Location: time.UTC}
}

func TestAssetURL(t *testing.T) {
	tests := []struct {
		base, path, want string
	}{
		// regression: a trailing slash on the base and a leading slash on
		// the path used to produce a double slash
		{"https://x/", "/img/a.png", "https://x/img/a.png"},
		{"https://x", "img/a.png", "https://x/img/a.png"},
		{"https://x", "/img/a.png", "https://x/img/a.png"},
		{"https://x/", "img/a.png", "https://x/img/a.png"},
		{"https://cdn.example.com/media//", "//img/a.png", "https://cdn.example.com/media/img/a.png"},
		{"https://x/", "https://other/img.png", "https://other/img.png"},
		{"https://x/", "http://other/img.png", "http://other/img.png"},
		{"", "/img/a.png", "/img/a.png"},
		{"https://x/", "", ""},
		{"https://x/", "  ", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, AssetURL(tt.base, tt.path), "AssetURL(%q, %q)", tt.base, tt.path)
	}
}

func TestBubbleClass(t *testing.T) {
	assert.Equal(t, BubbleSent, BubbleClass(chat.RoleAdmin))
	assert.Equal(t, BubbleProvider, BubbleClass(chat.RoleProvider))
	assert.Equal(t, BubbleReceived, BubbleClass(chat.RoleCustomer))
	assert.Equal(t, BubbleReceived, BubbleClass(chat.RoleUnspecified))
	assert.Equal(t, BubbleReceived, BubbleClass(chat.Role("support")))
}

func TestClock_Timestamp(t *testing.T) {
	p := testPrinter(t, "en")
	now := time.Date(2024, time.May, 1, 18, 30, 0, 0, time.UTC)
	c := fixedClock(now)

	assert.Equal(t, "09:05", c.Timestamp(p, time.Date(2024, time.May, 1, 9, 5, 0, 0, time.UTC)))
	assert.Equal(t, "00:00", c.Timestamp(p, time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "Apr 30, 23:59", c.Timestamp(p, time.Date(2024, time.April, 30, 23, 59, 0, 0, time.UTC)))
	assert.Equal(t, "May 1, 10:00", c.Timestamp(p, time.Date(2023, time.May, 1, 10, 0, 0, 0, time.UTC)),
		"same month and day in another year is not today")
	assert.Equal(t, "", c.Timestamp(p, time.Time{}))
}

func TestClock_TimestampUsesDisplayZone(t *testing.T) {
	p := testPrinter(t, "en")
	tokyo := time.FixedZone("JST", 9*60*60)
	now := time.Date(2024, time.May, 1, 23, 0, 0, 0, time.UTC) // May 2 08:00 in Tokyo
	c := Clock{Now: func() time.Time { return now }, Location: tokyo}

	// May 1 20:00 UTC is May 2 05:00 in Tokyo, the same local day
	assert.Equal(t, "05:00", c.Timestamp(p, time.Date(2024, time.May, 1, 20, 0, 0, 0, time.UTC)))
	// May 1 10:00 UTC is May 1 19:00 in Tokyo, the previous local day
	assert.Equal(t, "May 1, 19:00", c.Timestamp(p, time.Date(2024, time.May, 1, 10, 0, 0, 0, time.UTC)))
}

func TestClock_TimestampFrench(t *testing.T) {
	p := testPrinter(t, "fr")
	c := fixedClock(time.Date(2024, time.May, 1, 12, 0, 0, 0, time.UTC))
	assert.Equal(t, "3 févr., 14:15", c.Timestamp(p, time.Date(2024, time.February, 3, 14, 15, 0, 0, time.UTC)))
}

func decodeMessage(t *testing.T, js string) chat.Message {
	t.Helper()
	var m chat.Message
	require.NoError(t, json.Unmarshal([]byte(js), &m))
	return m
}

func TestNewMessage_CustomerText(t *testing.T) {
	p := testPrinter(t, "en")
	m := decodeMessage(t, `{"id":9,"messageType":"text","content":"hi","sender":{"role":"customer"}}`)

	v := NewMessage(m, Options{Printer: p, Clock: fixedClock(time.Now())})

	assert.Equal(t, "9", v.ID)
	assert.Equal(t, BubbleReceived, v.Class)
	assert.Equal(t, "hi", v.Content)
	assert.False(t, v.ShowReceipt, "read receipts are only for admin messages")
	assert.Nil(t, v.Location)
	assert.Empty(t, v.ImageURL)
}

func TestNewMessage_AdminReceipt(t *testing.T) {
	p := testPrinter(t, "en")
	m := decodeMessage(t, `{"id":1,"content":"done","isRead":true,"sender":{"id":99,"role":"admin","name":"Ops"}}`)

	v := NewMessage(m, Options{Printer: p})
	assert.Equal(t, BubbleSent, v.Class)
	assert.True(t, v.ShowReceipt)
	assert.True(t, v.IsRead)
	assert.Equal(t, "Ops", v.SenderName)
}

func TestNewMessage_Image(t *testing.T) {
	p := testPrinter(t, "en")
	m := decodeMessage(t, `{"id":2,"messageType":"image","fileUrl":"/img/a.png","sender":{"role":"provider"}}`)

	v := NewMessage(m, Options{Printer: p, AssetBase: "https://x/", Placeholder: "/static/placeholder.svg"})
	assert.Equal(t, chat.MessageTypeImage, v.Type)
	assert.Equal(t, "https://x/img/a.png", v.ImageURL)
	assert.Equal(t, "/static/placeholder.svg", v.Placeholder)
	assert.Equal(t, BubbleProvider, v.Class)
}

func TestNewMessage_Location(t *testing.T) {
	p := testPrinter(t, "en")

	named := NewMessage(decodeMessage(t, `{"messageType":"location","latitude":48.8584,"longitude":2.2945,"locationName":"Tower"}`), Options{Printer: p})
	require.NotNil(t, named.Location)
	assert.Equal(t, "Tower", named.Location.Label)
	assert.Equal(t, "48.858400", named.Location.Latitude)
	assert.Equal(t, "2.294500", named.Location.Longitude)
	assert.Equal(t, "https://www.google.com/maps?q=48.8584%2C2.2945", named.Location.MapURL)

	unnamed := NewMessage(decodeMessage(t, `{"messageType":"location","latitude":-33.8688197,"longitude":151.2092955}`), Options{Printer: p})
	require.NotNil(t, unnamed.Location)
	assert.Equal(t, "Shared location", unnamed.Location.Label)
	assert.Equal(t, "-33.868820", unnamed.Location.Latitude)

	missing := NewMessage(decodeMessage(t, `{"messageType":"location","content":"somewhere"}`), Options{Printer: p})
	assert.Nil(t, missing.Location)
	assert.Equal(t, chat.MessageTypeText, missing.Type)
}

func TestNewMessage_UnknownTypeRendersAsText(t *testing.T) {
	p := testPrinter(t, "en")
	v := NewMessage(decodeMessage(t, `{"messageType":"video","content":"clip"}`), Options{Printer: p})
	assert.Equal(t, chat.MessageTypeText, v.Type)
	assert.Equal(t, "clip", v.Content)
}

func TestMapURL_UsesRawValues(t *testing.T) {
	u, err := url.Parse(MapURL(1.23456789, -4.5))
	require.NoError(t, err)
	assert.Equal(t, "1.23456789,-4.5", u.Query().Get("q"))
}

func TestDetailsURL(t *testing.T) {
	got := DetailsURL("42", "/conversations?selected=c1", "c1")
	u, err := url.Parse(got)
	require.NoError(t, err)

	assert.Equal(t, "/users/42", u.Path)
	assert.Equal(t, "chat", u.Query().Get("from"))
	assert.Equal(t, "/conversations?selected=c1", u.Query().Get("return"))
	assert.Equal(t, "c1", u.Query().Get("conversation"))

	external := DetailsURL("42", "https://evil.example.com", "c1")
	u, err = url.Parse(external)
	require.NoError(t, err)
	assert.Empty(t, u.Query().Get("return"))
}

func TestSafeReturnPath(t *testing.T) {
	assert.Equal(t, "/conversations", SafeReturnPath("/conversations"))
	assert.Equal(t, "", SafeReturnPath("//evil.example.com"))
	assert.Equal(t, "", SafeReturnPath("/\\evil.example.com"))
	assert.Equal(t, "", SafeReturnPath("https://evil.example.com"))
	assert.Equal(t, "", SafeReturnPath("conversations"))
	assert.Equal(t, "", SafeReturnPath(""))
}

func TestNewHeader(t *testing.T) {
	c, err := chat.NewConversation([]byte(`{
		"conversationId":"c1",
		"user1":{"id":1,"role":"provider","name":"Pat","profileImage":"/p.png"},
		"user2":{"id":2,"role":"customer","name":"Cam"}
	}`))
	require.NoError(t, err)

	h := NewHeader(c, "/conversations", "https://x/")
	require.NotNil(t, h.Provider)
	require.NotNil(t, h.Customer)
	assert.Equal(t, "Pat", h.Provider.Name)
	assert.Equal(t, "https://x/p.png", h.Provider.Avatar)
	assert.Contains(t, h.Provider.DetailsURL, "/users/1?")
	assert.Equal(t, "Cam", h.Customer.Name)
	require.NotNil(t, h.OtherParty)
	assert.Equal(t, "1", h.OtherParty.ID)
}

func TestNewHeader_NoRoles(t *testing.T) {
	c, err := chat.NewConversation([]byte(`{"conversationId":"c1","user1Id":1,"user2Id":2}`))
	require.NoError(t, err)

	h := NewHeader(c, "/conversations", "")
	assert.Nil(t, h.Provider)
	assert.Nil(t, h.Customer)
	assert.Nil(t, h.OtherParty)
}

func TestInitials(t *testing.T) {
	assert.Equal(t, "AL", Initials("ada lovelace king"))
	assert.Equal(t, "É", Initials("élodie"))
	assert.Equal(t, "?", Initials("  "))
}

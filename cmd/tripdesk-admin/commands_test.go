// ABOUTME: Tests for tripdesk-admin commands against a fake platform API
// ABOUTME: Uses httptest for the API and the in-memory store for the session

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripdesk/tripdesk-admin/internal/apiclient"
	"github.com/tripdesk/tripdesk-admin/internal/store"
)

var fixedNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

// fakeAPI records requests and answers from a path-keyed table.
type fakeAPI struct {
	mu        sync.Mutex
	responses map[string]func(r *http.Request) (int, string)
	requests  []*http.Request
	bodies    []string
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, r)
	f.bodies = append(f.bodies, string(body))
	handler, ok := f.responses[r.Method+" "+r.URL.Path]
	f.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	status, out := handler(r)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(out))
}

func fixed(status int, body string) func(*http.Request) (int, string) {
	return func(*http.Request) (int, string) { return status, body }
}

type testEnv struct {
	app   *app
	store *store.MockStore
	api   *fakeAPI
	out   *bytes.Buffer
}

func newTestEnv(t *testing.T, in string, locale string) *testEnv {
	t.Helper()
	color.NoColor = true

	api := &fakeAPI{responses: map[string]func(*http.Request) (int, string){}}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	st := store.NewMockStore()
	out := &bytes.Buffer{}
	a, err := newAppWithStore(&settings{
		APIBaseURL: srv.URL,
		AssetBase:  "https://cdn.example.com/",
		Timeout:    5 * time.Second,
		Location:   time.UTC,
		Locale:     locale,
		PageSize:   20,
	}, st, strings.NewReader(in), out)
	require.NoError(t, err)
	a.now = func() time.Time { return fixedNow }
	t.Cleanup(a.close)

	return &testEnv{app: a, store: st, api: api, out: out}
}

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("k"))
	require.NoError(t, err)
	return s
}

func TestLogin_StoresTokenAndProfile(t *testing.T) {
	env := newTestEnv(t, "", "en")
	t.Setenv("TRIPDESK_PASSWORD", "hunter2")

	token := signToken(t, jwt.MapClaims{"sub": "a1", "exp": fixedNow.Add(48 * time.Hour).Unix()})
	env.api.responses["POST /api/admin/auth/login"] = fixed(200,
		`{"data": {"token": "`+token+`", "user": {"_id": "a1", "firstName": "Ada", "lastName": "Admin", "email": "ada@example.com", "role": "admin"}}}`)

	require.NoError(t, env.app.run("login", []string{"--email", "ada@example.com"}))

	ctx := context.Background()
	stored, err := env.store.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, token, stored)

	profile, err := env.store.Profile(ctx)
	require.NoError(t, err)
	assert.Equal(t, &store.Profile{ID: "a1", Name: "Ada Admin", Email: "ada@example.com", Role: "admin"}, profile)

	var body map[string]string
	require.NoError(t, json.Unmarshal([]byte(env.api.bodies[0]), &body))
	assert.Equal(t, "ada@example.com", body["email"])
	assert.Equal(t, "hunter2", body["password"])
	assert.Empty(t, env.api.requests[0].Header.Get("Authorization"))

	assert.Contains(t, env.out.String(), "✓ Signed in as Ada Admin")
	assert.Contains(t, env.out.String(), "(in 48h0m0s)")
}

func TestLogin_PromptsForEmailAndPassword(t *testing.T) {
	env := newTestEnv(t, "ops@example.com\nsecret\n", "en")
	t.Setenv("TRIPDESK_PASSWORD", "")
	env.api.responses["POST /api/admin/auth/login"] = fixed(200, `{"accessToken": "opaque-token"}`)

	require.NoError(t, env.app.run("login", nil))

	var body map[string]string
	require.NoError(t, json.Unmarshal([]byte(env.api.bodies[0]), &body))
	assert.Equal(t, "ops@example.com", body["email"])
	assert.Equal(t, "secret", body["password"])

	profile, err := env.store.Profile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", profile.Email)
}

func TestLogin_RejectedCredentials(t *testing.T) {
	env := newTestEnv(t, "", "en")
	t.Setenv("TRIPDESK_PASSWORD", "wrong")
	env.api.responses["POST /api/admin/auth/login"] = fixed(401, `{"message": "Invalid credentials"}`)

	err := env.app.run("login", []string{"--email=ops@example.com"})
	require.Error(t, err)
	assert.Equal(t, "login rejected: Invalid credentials", env.app.describe(err))

	_, err = env.store.Token(context.Background())
	assert.ErrorIs(t, err, store.ErrNoToken)
}

func TestTokenSet_FromStdinUsesClaims(t *testing.T) {
	token := signToken(t, jwt.MapClaims{"sub": "a9", "name": "Night Shift", "exp": fixedNow.Add(-time.Hour).Unix()})
	env := newTestEnv(t, token+"\n", "en")
	ctx := context.Background()
	require.NoError(t, env.store.SetProfile(ctx, &store.Profile{ID: "old", Name: "Previous"}))

	require.NoError(t, env.app.run("token", []string{"set", "-"}))

	stored, err := env.store.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, token, stored)

	profile, err := env.store.Profile(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a9", profile.ID)
	assert.Equal(t, "Night Shift", profile.Name)
	assert.Contains(t, env.out.String(), "Token expired Mar 15 11:00")
}

func TestTokenSet_OpaqueClearsProfile(t *testing.T) {
	env := newTestEnv(t, "", "en")
	ctx := context.Background()
	require.NoError(t, env.store.SetProfile(ctx, &store.Profile{ID: "old"}))

	require.NoError(t, env.app.run("token", []string{"set", "opaque"}))

	_, err := env.store.Profile(ctx)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t, "", "en")
	ctx := context.Background()
	require.NoError(t, env.store.SetToken(ctx, "tok"))

	require.NoError(t, env.app.run("logout", nil))

	_, err := env.store.Token(ctx)
	assert.ErrorIs(t, err, store.ErrNoToken)
}

func TestMe(t *testing.T) {
	env := newTestEnv(t, "", "fr")
	ctx := context.Background()
	token := signToken(t, jwt.MapClaims{"sub": "a1", "iat": fixedNow.Add(-time.Hour).Unix(), "exp": fixedNow.Add(90 * time.Minute).Unix()})
	require.NoError(t, env.store.SetToken(ctx, token))
	require.NoError(t, env.store.SetProfile(ctx, &store.Profile{ID: "a1", Name: "Ada", Role: "provider"}))

	require.NoError(t, env.app.run("me", nil))

	out := env.out.String()
	assert.Contains(t, out, "Name:     Ada")
	assert.Contains(t, out, "Subject:  a1")
	assert.Contains(t, out, "Expires:  Mar 15, 2024 13:30 (in 1h30m0s)")
}

func TestMe_NoToken(t *testing.T) {
	env := newTestEnv(t, "", "en")

	err := env.app.run("me", nil)
	require.ErrorIs(t, err, store.ErrNoToken)
	assert.Contains(t, env.app.describe(err), "tripdesk-admin login")
}

const conversationsPage1 = `{
	"data": [
		{"id": "c1", "user1": {"id": "u1", "name": "Maria", "role": "customer"}, "user2": {"id": "a1", "name": "Ops", "role": "admin"},
		 "lastMessage": {"content": "hello there", "createdAt": "2024-03-15T09:30:00Z"}, "unreadCount": 2},
		{"id": "c2", "user1Id": "u5", "user2Id": "u6"}
	],
	"pagination": {"page": 1, "totalPages": 2}
}`

const conversationsPage2 = `{
	"data": [
		{"id": "c3", "participants": [{"id": "p1", "name": "Guide Co", "role": "provider"}, {"id": "u7", "name": "Sam", "role": "customer"}]},
		{"id": "c4", "participants": []}
	],
	"pagination": {"page": 2, "totalPages": 2}
}`

func TestConversations(t *testing.T) {
	env := newTestEnv(t, "", "en")
	require.NoError(t, env.store.SetToken(context.Background(), "tok"))
	env.api.responses["GET /api/admin/chat/conversations"] = fixed(200, conversationsPage1)

	require.NoError(t, env.app.run("conversations", []string{"--search", "mar", "--sort", "oldest"}))

	req := env.api.requests[0]
	assert.Equal(t, "Bearer tok", req.Header.Get("Authorization"))
	assert.Equal(t, "mar", req.URL.Query().Get("search"))
	assert.Equal(t, "asc", req.URL.Query().Get("sortOrder"))
	assert.Equal(t, "1", req.URL.Query().Get("page"))
	assert.Equal(t, "20", req.URL.Query().Get("pageSize"))

	out := env.out.String()
	assert.Contains(t, out, "Maria")
	assert.Contains(t, out, "Customer")
	assert.Contains(t, out, "hello there")
	assert.Contains(t, out, "09:30")
	assert.Contains(t, out, "Page 1 of 2")
}

func TestConversations_BadSort(t *testing.T) {
	env := newTestEnv(t, "", "en")
	err := env.app.run("conversations", []string{"--sort", "sideways"})
	assert.ErrorContains(t, err, "--sort must be newest or oldest")
}

func TestMessages_FindsConversationOnLaterPage(t *testing.T) {
	env := newTestEnv(t, "", "en")
	require.NoError(t, env.store.SetToken(context.Background(), "tok"))
	env.api.responses["GET /api/admin/chat/conversations"] = func(r *http.Request) (int, string) {
		if r.URL.Query().Get("page") == "2" {
			return 200, conversationsPage2
		}
		return 200, conversationsPage1
	}
	env.api.responses["GET /api/admin/chat/messages"] = fixed(200, `{
		"messages": [
			{"id": "m1", "messageType": "text", "content": "hi", "sender": {"id": "u7", "name": "Sam", "role": "customer"}, "createdAt": "2024-03-15T10:00:00Z"},
			{"id": "m2", "messageType": "image", "fileUrl": "/img/a.png", "sender": {"id": "p1", "name": "Guide Co", "role": "provider"}, "createdAt": "2024-03-14T08:05:00Z"},
			{"id": "m3", "content": "on it", "senderId": "a1", "senderRole": "admin", "isRead": true, "createdAt": "2024-03-15T10:02:00Z"}
		],
		"pagination": {"page": 1, "totalPages": 3}
	}`)

	require.NoError(t, env.app.run("messages", []string{"c3"}))

	var msgReq *http.Request
	for _, r := range env.api.requests {
		if r.URL.Path == "/api/admin/chat/messages" {
			msgReq = r
		}
	}
	require.NotNil(t, msgReq)
	ids := []string{msgReq.URL.Query().Get("userId1"), msgReq.URL.Query().Get("userId2")}
	assert.ElementsMatch(t, []string{"p1", "u7"}, ids)

	out := env.out.String()
	assert.Contains(t, out, "Provider: Guide Co")
	assert.Contains(t, out, "Customer: Sam")
	assert.Contains(t, out, "Sam: hi")
	assert.Contains(t, out, "[image] https://cdn.example.com/img/a.png")
	assert.Contains(t, out, "Mar 14, 08:05")
	assert.Contains(t, out, "on it ✓✓ Read")
	assert.Contains(t, out, "--page 2")
}

func TestMessages_UnresolvableParticipants(t *testing.T) {
	env := newTestEnv(t, "", "en")
	require.NoError(t, env.store.SetToken(context.Background(), "tok"))
	env.api.responses["GET /api/admin/chat/conversations"] = fixed(200, conversationsPage2)

	err := env.app.run("messages", []string{"c4"})
	require.Error(t, err)
	assert.Contains(t, env.app.describe(err), "Cannot determine user identifiers for this conversation.")

	for _, r := range env.api.requests {
		assert.NotEqual(t, "/api/admin/chat/messages", r.URL.Path, "messages must not be requested")
	}
}

func TestMessages_UnknownConversation(t *testing.T) {
	env := newTestEnv(t, "", "en")
	require.NoError(t, env.store.SetToken(context.Background(), "tok"))
	env.api.responses["GET /api/admin/chat/conversations"] = fixed(200, conversationsPage2)

	err := env.app.run("messages", []string{"nope"})
	assert.ErrorContains(t, err, "conversation nope not found")
}

func TestSend(t *testing.T) {
	env := newTestEnv(t, "", "en")
	require.NoError(t, env.store.SetToken(context.Background(), "tok"))
	env.api.responses["POST /api/admin/chat/messages"] = fixed(201, `{"data": {"id": "m77", "content": "see you at 9"}}`)

	require.NoError(t, env.app.run("send", []string{"u7", "see", "you", "at", "9"}))

	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(env.api.bodies[0]), &body))
	assert.Equal(t, "u7", body["receiverId"])
	assert.Equal(t, "text", body["messageType"])
	assert.Equal(t, "see you at 9", body["content"])
	assert.Contains(t, env.out.String(), "✓ Sent message m77")
}

func TestSend_NetworkFailureIsLocalized(t *testing.T) {
	env := newTestEnv(t, "", "fr")
	require.NoError(t, env.store.SetToken(context.Background(), "tok"))
	client, err := apiclient.New("http://127.0.0.1:1", env.store, apiclient.WithTimeout(2*time.Second))
	require.NoError(t, err)
	env.app.api = client

	err = env.app.run("send", []string{"u7", "hello"})
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(env.app.describe(err), "Le serveur est injoignable."))
}

func TestDescribe_SessionExpired(t *testing.T) {
	env := newTestEnv(t, "", "en")
	require.NoError(t, env.store.SetToken(context.Background(), "stale"))
	env.api.responses["GET /api/admin/chat/statistics"] = fixed(401, `{"message": "jwt expired"}`)

	err := env.app.run("stats", nil)
	require.Error(t, err)
	assert.Equal(t, "Your session has expired. Run tripdesk-admin login again.", env.app.describe(err))
}

func TestSearch(t *testing.T) {
	env := newTestEnv(t, "", "en")
	require.NoError(t, env.store.SetToken(context.Background(), "tok"))
	env.api.responses["GET /api/admin/chat/search"] = fixed(200, `{
		"results": [{"id": "m1", "content": "refund please", "sender": {"id": "u1", "name": "Maria", "role": "customer"}, "createdAt": "2024-03-15T11:15:00Z"}],
		"pagination": {"page": 1, "totalPages": 1}
	}`)

	require.NoError(t, env.app.run("search", []string{"refund", "please"}))

	assert.Equal(t, "refund please", env.api.requests[0].URL.Query().Get("query"))
	assert.Contains(t, env.out.String(), "Maria: refund please")
	assert.Contains(t, env.out.String(), "11:15")
}

func TestStats(t *testing.T) {
	env := newTestEnv(t, "", "en")
	require.NoError(t, env.store.SetToken(context.Background(), "tok"))
	env.api.responses["GET /api/admin/chat/statistics"] = fixed(200,
		`{"data": {"totalConversations": 12, "activeConversations": 4, "totalMessages": 340, "unreadMessages": 7, "messagesToday": 15}}`)

	require.NoError(t, env.app.run("stats", nil))

	out := env.out.String()
	assert.Contains(t, out, "Chat activity")
	assert.Regexp(t, `Unread\s+7`, out)
	assert.Regexp(t, `Messages today\s+15`, out)
}

func TestUnknownCommand(t *testing.T) {
	env := newTestEnv(t, "", "en")
	assert.ErrorIs(t, env.app.run("frobnicate", nil), errUnknownCommand)
}

func TestFlagValue(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		want     string
		wantRest []string
		wantErr  bool
	}{
		{"separate", []string{"--search", "maria", "x"}, "maria", []string{"x"}, false},
		{"equals", []string{"x", "--search=maria"}, "maria", []string{"x"}, false},
		{"short", []string{"-s", "maria"}, "maria", []string{}, false},
		{"absent", []string{"x"}, "", []string{"x"}, false},
		{"missing value", []string{"--search"}, "", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, rest, err := flagValue(tt.args, "--search", "-s")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantRest, rest)
		})
	}
}

func TestIntFlag(t *testing.T) {
	n, rest, err := intFlag([]string{"--page", "3", "c1"}, 1, "--page")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"c1"}, rest)

	n, _, err = intFlag(nil, 7, "--page")
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	_, _, err = intFlag([]string{"--page", "0"}, 1, "--page")
	assert.Error(t, err)
}

func TestLoadSettings(t *testing.T) {
	t.Setenv("TRIPDESK_CONFIG", "/nonexistent/dashboard.yaml")
	t.Setenv("TRIPDESK_API_URL", "")
	_, err := loadSettings()
	assert.Error(t, err)

	t.Setenv("TRIPDESK_API_URL", "https://api.example.com")
	t.Setenv("TRIPDESK_DB", "/tmp/x.db")
	t.Setenv("TRIPDESK_TOKEN", "override")
	s, err := loadSettings()
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com", s.APIBaseURL)
	assert.Equal(t, "https://api.example.com", s.AssetBase)
	assert.Equal(t, "/tmp/x.db", s.DBPath)
	assert.Equal(t, "override", s.Token)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "héllo wo…", truncate("héllo world", 9))
}

// ABOUTME: tripdesk-admin subcommands
// ABOUTME: Session management plus read and send operations against the platform API

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/tripdesk/tripdesk-admin/internal/apiclient"
	"github.com/tripdesk/tripdesk-admin/internal/auth"
	"github.com/tripdesk/tripdesk-admin/internal/chat"
	"github.com/tripdesk/tripdesk-admin/internal/config"
	"github.com/tripdesk/tripdesk-admin/internal/render"
	"github.com/tripdesk/tripdesk-admin/internal/store"
)

// commandTimeout bounds each command's API traffic.
const commandTimeout = 60 * time.Second

// maxScanPages bounds the conversation lookup behind `messages`.
const maxScanPages = 50

func (a *app) withTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), commandTimeout)
}

// describe turns err into the line shown to the operator, using the
// catalog wording for the cases the dashboard also localizes.
func (a *app) describe(err error) string {
	var validation *chat.ValidationError
	var netErr *apiclient.NetworkError
	switch {
	case errors.Is(err, store.ErrNoToken):
		return err.Error()
	case errors.As(err, &validation):
		return a.printer.T(chat.MsgParticipantsUnknown) + " (" + validation.Error() + ")"
	case apiclient.IsUnauthorized(err):
		return a.printer.T(chat.MsgSessionExpired)
	case errors.As(err, &netErr):
		return a.printer.T(chat.MsgNetwork) + " (" + netErr.Err.Error() + ")"
	default:
		return err.Error()
	}
}

func (a *app) prompt(reader *bufio.Reader, question string) string {
	fmt.Fprintf(a.out, "%s: ", question)
	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		fmt.Fprintln(a.out)
		return ""
	}
	return strings.TrimSpace(input)
}

// readPassword reads without echo from a terminal, or a plain line otherwise.
func (a *app) readPassword(reader *bufio.Reader) (string, error) {
	if f, ok := a.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(a.out, "Password: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(a.out)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(b), nil
	}
	return a.prompt(reader, "Password"), nil
}

// cmdLogin exchanges credentials for a token and stores it with the profile
func (a *app) cmdLogin(args []string) error {
	email, rest, err := flagValue(args, "--email", "-e")
	if err != nil {
		return err
	}
	if len(rest) > 0 {
		return fmt.Errorf("unexpected argument: %s", rest[0])
	}

	reader := bufio.NewReader(a.in)
	if email == "" {
		email = a.prompt(reader, "Email")
	}
	if email == "" {
		return fmt.Errorf("email is required")
	}

	password := os.Getenv("TRIPDESK_PASSWORD")
	if password == "" {
		password, err = a.readPassword(reader)
		if err != nil {
			return err
		}
	}
	if password == "" {
		return fmt.Errorf("password is required")
	}

	ctx, cancel := a.withTimeout()
	defer cancel()

	res, err := a.api.Login(ctx, email, password)
	var httpErr *apiclient.HTTPError
	if errors.As(err, &httpErr) && httpErr.Unauthorized() {
		return fmt.Errorf("login rejected: %s", httpErr.Message)
	}
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	if err := a.store.SetToken(ctx, res.Token); err != nil {
		return fmt.Errorf("storing token: %w", err)
	}

	profile := profileFrom(res.User, res.Token)
	if profile == nil {
		profile = &store.Profile{Email: email}
	}
	if profile.Email == "" {
		profile.Email = email
	}
	if err := a.store.SetProfile(ctx, profile); err != nil {
		return fmt.Errorf("storing profile: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Fprintf(a.out, "✓ Signed in as %s\n", displayName(profile))
	a.printExpiry(res.Token)
	return nil
}

// profileFrom prefers the user object from the login response and falls
// back to the token's claims.
func profileFrom(user json.RawMessage, token string) *store.Profile {
	if len(user) > 0 && string(user) != "null" {
		var d chat.UserDetails
		if err := json.Unmarshal(user, &d); err == nil && d.ID != "" {
			return &store.Profile{
				ID:           string(d.ID),
				Name:         d.Name,
				Email:        d.Email,
				Role:         string(d.Role),
				ProfileImage: d.ProfileImage,
			}
		}
	}

	info, err := auth.Inspect(token)
	if err != nil || info.Subject == "" {
		return nil
	}
	return &store.Profile{ID: info.Subject, Name: info.Name, Email: info.Email, Role: info.Role}
}

func displayName(p *store.Profile) string {
	switch {
	case p == nil:
		return "(unknown)"
	case p.Name != "":
		return p.Name
	case p.Email != "":
		return p.Email
	default:
		return p.ID
	}
}

func (a *app) printExpiry(token string) {
	info, err := auth.Inspect(token)
	if err != nil || info.ExpiresAt.IsZero() {
		return
	}
	now := a.now()
	if info.Expired(now) {
		color.New(color.FgRed).Fprintf(a.out, "  Token expired %s\n", info.ExpiresAt.In(a.loc).Format("Jan 02 15:04"))
		return
	}
	fmt.Fprintf(a.out, "  Token expires %s (in %s)\n",
		info.ExpiresAt.In(a.loc).Format("Jan 02 15:04"),
		info.ExpiresIn(now).Round(time.Minute))
}

func (a *app) cmdLogout() error {
	ctx, cancel := a.withTimeout()
	defer cancel()

	if err := a.store.ClearSession(ctx); err != nil {
		return err
	}
	color.New(color.FgGreen).Fprintln(a.out, "✓ Signed out")
	return nil
}

// cmdToken handles token subcommands
func (a *app) cmdToken(args []string) error {
	if len(args) == 0 || args[0] != "set" {
		return fmt.Errorf("usage: token set <token|->")
	}
	if len(args) != 2 {
		return fmt.Errorf("usage: token set <token|->")
	}

	token := args[1]
	if token == "-" {
		data, err := io.ReadAll(io.LimitReader(a.in, 64<<10))
		if err != nil {
			return fmt.Errorf("reading token from stdin: %w", err)
		}
		token = strings.TrimSpace(string(data))
	}
	if token == "" {
		return fmt.Errorf("token is empty")
	}

	ctx, cancel := a.withTimeout()
	defer cancel()

	if err := a.store.SetToken(ctx, token); err != nil {
		return fmt.Errorf("storing token: %w", err)
	}

	// The cached profile belongs to whoever held the previous token
	if profile := profileFrom(nil, token); profile != nil {
		if err := a.store.SetProfile(ctx, profile); err != nil {
			return fmt.Errorf("storing profile: %w", err)
		}
	} else if err := a.store.Delete(ctx, store.KeyUserProfile); err != nil {
		return fmt.Errorf("clearing profile: %w", err)
	}

	color.New(color.FgGreen).Fprintln(a.out, "✓ Token stored")
	a.printExpiry(token)
	return nil
}

// cmdMe shows the stored identity
func (a *app) cmdMe() error {
	ctx, cancel := a.withTimeout()
	defer cancel()

	cyan := color.New(color.FgCyan)
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)

	token, err := a.tokenForDisplay(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(a.out)
	cyan.Fprintln(a.out, "  Identity")
	cyan.Fprintln(a.out, "  --------")

	profile, err := a.store.Profile(ctx)
	switch {
	case errors.Is(err, store.ErrNotFound):
		fmt.Fprintln(a.out, "  (no cached profile)")
	case err != nil:
		return err
	default:
		fmt.Fprintf(a.out, "  Name:     %s\n", displayName(profile))
		if profile.Email != "" {
			fmt.Fprintf(a.out, "  Email:    %s\n", profile.Email)
		}
		if profile.Role != "" {
			fmt.Fprintf(a.out, "  Role:     %s\n", a.printer.T("role."+string(roleOf(profile.Role))))
		}
		fmt.Fprintf(a.out, "  ID:       %s\n", profile.ID)
	}

	fmt.Fprintln(a.out)
	cyan.Fprintln(a.out, "  Token")
	cyan.Fprintln(a.out, "  -----")

	info, err := auth.Inspect(token)
	if err != nil {
		fmt.Fprintln(a.out, "  Opaque token (expiry unknown)")
		fmt.Fprintln(a.out)
		return nil
	}
	if info.Subject != "" {
		fmt.Fprintf(a.out, "  Subject:  %s\n", info.Subject)
	}
	if !info.IssuedAt.IsZero() {
		fmt.Fprintf(a.out, "  Issued:   %s\n", info.IssuedAt.In(a.loc).Format("Jan 02, 2006 15:04"))
	}
	now := a.now()
	switch {
	case info.ExpiresAt.IsZero():
		fmt.Fprintln(a.out, "  Expires:  never")
	case info.Expired(now):
		red.Fprintf(a.out, "  Expires:  EXPIRED %s\n", info.ExpiresAt.In(a.loc).Format("Jan 02, 2006 15:04"))
	default:
		green.Fprintf(a.out, "  Expires:  %s (in %s)\n",
			info.ExpiresAt.In(a.loc).Format("Jan 02, 2006 15:04"),
			info.ExpiresIn(now).Round(time.Minute))
	}
	fmt.Fprintln(a.out)
	return nil
}

// tokenForDisplay returns the token requests would use.
func (a *app) tokenForDisplay(ctx context.Context) (string, error) {
	if a.tokenOverride != "" {
		return a.tokenOverride, nil
	}
	return a.store.Token(ctx)
}

func roleOf(s string) chat.Role {
	switch r := chat.Role(strings.ToLower(s)); r {
	case chat.RoleAdmin, chat.RoleProvider, chat.RoleCustomer:
		return r
	default:
		return "unknown"
	}
}

// cmdStats shows chat activity totals
func (a *app) cmdStats() error {
	ctx, cancel := a.withTimeout()
	defer cancel()

	stats, err := a.api.Statistics(ctx)
	if err != nil {
		return fmt.Errorf("statistics: %w", err)
	}

	cyan := color.New(color.FgCyan)
	fmt.Fprintln(a.out)
	cyan.Fprintf(a.out, "  %s\n\n", a.printer.T("stats.title"))

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "  %s\t%d\n", a.printer.T("stats.total_conversations"), stats.TotalConversations)
	fmt.Fprintf(w, "  %s\t%d\n", a.printer.T("stats.active_conversations"), stats.ActiveConversations)
	fmt.Fprintf(w, "  %s\t%d\n", a.printer.T("stats.total_messages"), stats.TotalMessages)
	fmt.Fprintf(w, "  %s\t%d\n", a.printer.T("stats.unread_messages"), stats.UnreadMessages)
	fmt.Fprintf(w, "  %s\t%d\n", a.printer.T("stats.messages_today"), stats.MessagesToday)
	w.Flush()
	fmt.Fprintln(a.out)
	return nil
}

func parseSort(s string) (string, error) {
	switch s {
	case "", "newest", chat.SortNewest:
		return chat.SortNewest, nil
	case "oldest", chat.SortOldest:
		return chat.SortOldest, nil
	default:
		return "", fmt.Errorf("--sort must be newest or oldest, got %q", s)
	}
}

func (a *app) clock() render.Clock {
	return render.Clock{Now: a.now, Location: a.loc}
}

// cmdConversations lists one page of conversations
func (a *app) cmdConversations(args []string) error {
	page, args, err := intFlag(args, 1, "--page", "-p")
	if err != nil {
		return err
	}
	pageSize, args, err := intFlag(args, a.pageSize, "--page-size")
	if err != nil {
		return err
	}
	search, args, err := flagValue(args, "--search", "-s")
	if err != nil {
		return err
	}
	sortRaw, args, err := flagValue(args, "--sort")
	if err != nil {
		return err
	}
	if len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}
	sortOrder, err := parseSort(sortRaw)
	if err != nil {
		return err
	}
	if pageSize > config.MaxPageSize {
		pageSize = config.MaxPageSize
	}

	params := chat.ListParams{Page: page, PageSize: pageSize, Search: search, SortOrder: sortOrder}.Normalized(a.pageSize)

	ctx, cancel := a.withTimeout()
	defer cancel()

	result, err := chat.NewConversationLoader(a.api).Load(ctx, params)
	if err != nil {
		return err
	}

	fmt.Fprintln(a.out)
	if len(result.Items) == 0 {
		fmt.Fprintf(a.out, "  %s\n\n", a.printer.T("list.empty"))
		return nil
	}

	clock := a.clock()
	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  ID\tWITH\tROLE\tUNREAD\tLAST MESSAGE\tWHEN")
	fmt.Fprintln(w, "  --\t----\t----\t------\t------------\t----")
	for i := range result.Items {
		c := &result.Items[i]
		other := chat.ResolveOtherParty(c)
		name, role := "-", "-"
		if other != nil {
			name = other.DisplayName()
			role = a.printer.T("role." + string(roleOf(string(other.Role))))
		}
		last, when := "", ""
		if c.LastMessage != nil {
			last = truncate(strings.ReplaceAll(c.LastMessage.Content, "\n", " "), 40)
			when = clock.Timestamp(a.printer, c.LastMessage.CreatedAt)
		}
		unread := ""
		if c.UnreadCount > 0 {
			unread = fmt.Sprintf("%d", c.UnreadCount)
		}
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%s\t%s\n", c.ID, truncate(name, 24), role, unread, last, when)
	}
	w.Flush()

	fmt.Fprintf(a.out, "\n  %s\n\n", a.printer.T("list.page_of", result.Page, max(result.TotalPages, 1)))
	return nil
}

// findConversation pages through the list until id turns up.
func (a *app) findConversation(ctx context.Context, id string) (*chat.Conversation, error) {
	loader := chat.NewConversationLoader(a.api)
	params := chat.ListParams{PageSize: config.MaxPageSize}.Normalized(config.MaxPageSize)

	for params.Page <= maxScanPages {
		result, err := loader.Load(ctx, params)
		if err != nil {
			return nil, err
		}
		for i := range result.Items {
			if string(result.Items[i].ID) == id {
				return &result.Items[i], nil
			}
		}
		if !result.HasNext() || len(result.Items) == 0 {
			break
		}
		params = params.WithPage(params.Page + 1)
	}
	return nil, fmt.Errorf("conversation %s not found", id)
}

// cmdMessages prints one page of a conversation
func (a *app) cmdMessages(args []string) error {
	page, args, err := intFlag(args, 1, "--page", "-p")
	if err != nil {
		return err
	}
	pageSize, args, err := intFlag(args, config.DefaultMessagesPageSize, "--page-size")
	if err != nil {
		return err
	}
	if len(args) != 1 {
		return fmt.Errorf("usage: messages <conversation-id> [--page N] [--page-size N]")
	}

	ctx, cancel := a.withTimeout()
	defer cancel()

	conv, err := a.findConversation(ctx, args[0])
	if err != nil {
		return err
	}

	result, err := chat.NewMessageLoader(a.api).Load(ctx, conv, page, min(pageSize, config.MaxPageSize))
	if err != nil {
		return err
	}

	provider, customer := chat.ResolveProviderAndCustomer(conv)
	cyan := color.New(color.FgCyan)
	fmt.Fprintln(a.out)
	if provider != nil {
		cyan.Fprintf(a.out, "  %s: %s\n", a.printer.T("chat.provider"), provider.DisplayName())
	}
	if customer != nil {
		cyan.Fprintf(a.out, "  %s: %s\n", a.printer.T("chat.customer"), customer.DisplayName())
	}
	fmt.Fprintln(a.out)

	a.printMessages(result.Items)
	if result.HasNext() {
		color.New(color.FgHiBlack).Fprintf(a.out, "  %s: --page %d\n", a.printer.T("chat.older"), result.Page+1)
	}
	fmt.Fprintln(a.out)
	return nil
}

func (a *app) printMessages(items []chat.Message) {
	if len(items) == 0 {
		fmt.Fprintf(a.out, "  %s\n", a.printer.T("chat.no_messages"))
		return
	}

	gray := color.New(color.FgHiBlack)
	views := render.NewMessages(items, render.Options{
		AssetBase: a.assetBase,
		Clock:     a.clock(),
		Printer:   a.printer,
	})
	for _, v := range views {
		gray.Fprintf(a.out, "  %-14s ", v.Time)
		fmt.Fprintf(a.out, "%s: %s\n", v.SenderName, messageText(v, a.printer.T("chat.read")))
	}
}

// messageText flattens a bubble into one terminal line.
func messageText(v render.Message, readLabel string) string {
	var text string
	switch v.Type {
	case chat.MessageTypeImage:
		text = "[image] " + v.ImageURL
	case chat.MessageTypeLocation:
		text = fmt.Sprintf("[location] %s (%s, %s) %s", v.Location.Label, v.Location.Latitude, v.Location.Longitude, v.Location.MapURL)
	default:
		text = v.Content
	}
	if v.ShowReceipt && v.IsRead {
		text += " ✓✓ " + readLabel
	}
	return text
}

// cmdSend sends a text message as the admin
func (a *app) cmdSend(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: send <user-id> <message...>")
	}
	receiver := args[0]
	content := strings.TrimSpace(strings.Join(args[1:], " "))
	if content == "" {
		return fmt.Errorf("message is empty")
	}

	ctx, cancel := a.withTimeout()
	defer cancel()

	raw, err := a.api.SendMessage(ctx, apiclient.OutgoingMessage{
		ReceiverID:  receiver,
		MessageType: string(chat.MessageTypeText),
		Content:     content,
	})
	if err != nil {
		return fmt.Errorf("sending message: %w", err)
	}

	green := color.New(color.FgGreen)
	var sent chat.Message
	if len(raw) > 0 && json.Unmarshal(raw, &sent) == nil && sent.ID != "" {
		green.Fprintf(a.out, "✓ Sent message %s\n", sent.ID)
		return nil
	}
	green.Fprintln(a.out, "✓ Sent")
	return nil
}

// cmdSearch runs a message search
func (a *app) cmdSearch(args []string) error {
	page, args, err := intFlag(args, 1, "--page", "-p")
	if err != nil {
		return err
	}
	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" {
		return fmt.Errorf("usage: search <query> [--page N]")
	}

	ctx, cancel := a.withTimeout()
	defer cancel()

	raw, err := a.api.Search(ctx, query, page, a.pageSize)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}
	result, err := chat.DecodeSearchResults(raw)
	if err != nil {
		return fmt.Errorf("decoding search results: %w", err)
	}

	fmt.Fprintln(a.out)
	a.printMessages(result.Items)
	if result.TotalPages > 0 {
		fmt.Fprintf(a.out, "\n  %s\n", a.printer.T("list.page_of", max(result.Page, page), result.TotalPages))
	}
	fmt.Fprintln(a.out)
	return nil
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-1]) + "…"
}

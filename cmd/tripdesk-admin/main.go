// ABOUTME: Admin CLI for the tripdesk platform chat API
// ABOUTME: Manages the stored admin session and reads or sends conversation messages

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/fatih/color"

	"github.com/tripdesk/tripdesk-admin/internal/apiclient"
	"github.com/tripdesk/tripdesk-admin/internal/config"
	"github.com/tripdesk/tripdesk-admin/internal/i18n"
	"github.com/tripdesk/tripdesk-admin/internal/store"
)

const banner = `
  _        _           _           _                  _           _
 | |_ _ __(_)_ __   __| | ___  ___| | __     __ _  __| |_ __ ___ (_)_ __
 | __| '__| | '_ \ / _' |/ _ \/ __| |/ /____/ _' |/ _' | '_ ' _ \| | '_ \
 | |_| |  | | |_) | (_| |  __/\__ \   <_____| (_| | (_| | | | | | | | | | |
  \__|_|  |_| .__/ \__,_|\___||___/_|\_\     \__,_|\__,_|_| |_| |_|_|_| |_|
            |_|
`

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	if cmd == "help" || cmd == "-h" || cmd == "--help" {
		printUsage()
		return
	}

	s, err := loadSettings()
	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}

	a, err := newApp(s, os.Stdin, os.Stdout)
	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
	defer a.close()

	err = a.run(cmd, args)
	if errors.Is(err, errUnknownCommand) {
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		a.close()
		os.Exit(1)
	}
	if err != nil {
		color.Red("Error: %v\n", a.describe(err))
		a.close()
		os.Exit(1)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()
	fmt.Println("Usage: tripdesk-admin <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  login [--email E]                     Sign in and store the admin token")
	fmt.Println("  logout                                Remove the stored token and profile")
	fmt.Println("  token set <token|->                   Store a token obtained elsewhere")
	fmt.Println("  me                                    Show the stored identity and token expiry")
	fmt.Println("  stats                                 Show chat activity totals")
	fmt.Println("  conversations [--page N] [--search S] [--sort newest|oldest] [--page-size N]")
	fmt.Println("                                        List conversations")
	fmt.Println("  messages <conversation-id> [--page N] [--page-size N]")
	fmt.Println("                                        Show one page of a conversation")
	fmt.Println("  send <user-id> <message...>           Send a text message as admin")
	fmt.Println("  search <query> [--page N]             Search message content")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  TRIPDESK_CONFIG     Dashboard config file (default: ~/.config/tripdesk/dashboard.yaml)")
	fmt.Println("  TRIPDESK_API_URL    Platform API base URL (overrides api.base_url)")
	fmt.Println("  TRIPDESK_DB         Session store path (overrides database.path)")
	fmt.Println("  TRIPDESK_TOKEN      Use this token instead of the stored one")
	fmt.Println("  TRIPDESK_PASSWORD   Password for non-interactive login")
	fmt.Println("  TRIPDESK_LANG       Language for error messages (en, fr)")
	fmt.Println()
	yellow.Println("Examples:")
	fmt.Println("  tripdesk-admin login --email ops@example.com")
	fmt.Println("  tripdesk-admin conversations --search maria")
	fmt.Println("  tripdesk-admin messages 65f1c0de --page 2")
	fmt.Println()
}

// settings are the CLI's view of the shared dashboard configuration.
type settings struct {
	APIBaseURL string
	AssetBase  string
	DBPath     string
	Timeout    time.Duration
	Location   *time.Location
	Locale     string
	Token      string // TRIPDESK_TOKEN override
	PageSize   int
}

// getConfigPath mirrors tripdesk-dashboard's lookup.
func getConfigPath() string {
	if envPath := os.Getenv("TRIPDESK_CONFIG"); envPath != "" {
		return envPath
	}
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "dashboard.yaml"
		}
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "tripdesk", "dashboard.yaml")
}

func defaultDBPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join("data", "dashboard.db")
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}
	return filepath.Join(dataDir, "tripdesk", "dashboard.db")
}

// loadSettings reads the dashboard config when present and applies the
// environment overrides. A missing config file is fine as long as
// TRIPDESK_API_URL is set.
func loadSettings() (*settings, error) {
	s := &settings{
		DBPath:   defaultDBPath(),
		Timeout:  config.DefaultAPITimeout,
		Location: time.Local,
		Locale:   config.DefaultLocale,
		PageSize: config.DefaultConversationsPageSize,
	}

	path := getConfigPath()
	if _, err := os.Stat(path); err == nil {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("loading config %s: %w", path, err)
		}
		s.APIBaseURL = cfg.API.BaseURL
		s.AssetBase = cfg.Assets.BaseURL
		s.DBPath = cfg.Database.Path
		s.Timeout = cfg.API.Timeout
		s.Location = cfg.Location()
		s.Locale = cfg.Dashboard.Locale
		s.PageSize = cfg.Dashboard.ConversationsPageSize
	}

	if v := os.Getenv("TRIPDESK_API_URL"); v != "" {
		s.APIBaseURL = v
	}
	if v := os.Getenv("TRIPDESK_DB"); v != "" {
		s.DBPath = config.ExpandHome(v)
	}
	if v := os.Getenv("TRIPDESK_LANG"); v != "" {
		s.Locale = v
	}
	s.Token = os.Getenv("TRIPDESK_TOKEN")
	if s.AssetBase == "" {
		s.AssetBase = s.APIBaseURL
	}

	if s.APIBaseURL == "" {
		return nil, fmt.Errorf("no API URL: set TRIPDESK_API_URL or run tripdesk-dashboard init")
	}
	return s, nil
}

// app holds what every command needs.
type app struct {
	store   store.Store
	api     *apiclient.Client
	printer *i18n.Printer
	in      io.Reader
	out     io.Writer
	now     func() time.Time
	loc     *time.Location

	assetBase     string
	pageSize      int
	tokenOverride string
	closed        bool
}

func newApp(s *settings, in io.Reader, out io.Writer) (*app, error) {
	st, err := store.NewSQLiteStore(s.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening session store: %w", err)
	}
	return newAppWithStore(s, st, in, out)
}

func newAppWithStore(s *settings, st store.Store, in io.Reader, out io.Writer) (*app, error) {
	var tokens apiclient.TokenSource = st
	if s.Token != "" {
		tokens = apiclient.StaticToken(s.Token)
	}

	api, err := apiclient.New(s.APIBaseURL, tokens, apiclient.WithTimeout(s.Timeout))
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("creating API client: %w", err)
	}

	bundle, err := i18n.NewBundle(config.DefaultLocale)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	return &app{
		store:     st,
		api:       api,
		printer:   bundle.Printer(s.Locale),
		in:        in,
		out:       out,
		now:       time.Now,
		loc:       s.Location,
		assetBase: s.AssetBase,
		pageSize:  s.PageSize,

		tokenOverride: s.Token,
	}, nil
}

func (a *app) close() {
	if a.closed {
		return
	}
	a.closed = true
	_ = a.store.Close()
}

var errUnknownCommand = errors.New("unknown command")

func (a *app) run(cmd string, args []string) error {
	switch cmd {
	case "login":
		return a.cmdLogin(args)
	case "logout":
		return a.cmdLogout()
	case "token":
		return a.cmdToken(args)
	case "me":
		return a.cmdMe()
	case "stats":
		return a.cmdStats()
	case "conversations":
		return a.cmdConversations(args)
	case "messages":
		return a.cmdMessages(args)
	case "send":
		return a.cmdSend(args)
	case "search":
		return a.cmdSearch(args)
	default:
		return errUnknownCommand
	}
}

// flagValue returns the value following name (or name=value) in args and
// the args with that flag removed.
func flagValue(args []string, names ...string) (string, []string, error) {
	rest := make([]string, 0, len(args))
	var value string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		matched := false
		for _, name := range names {
			switch {
			case arg == name:
				if i+1 >= len(args) {
					return "", nil, fmt.Errorf("%s requires a value", name)
				}
				value = args[i+1]
				i++
				matched = true
			case len(arg) > len(name)+1 && arg[:len(name)+1] == name+"=":
				value = arg[len(name)+1:]
				matched = true
			}
			if matched {
				break
			}
		}
		if !matched {
			rest = append(rest, arg)
		}
	}
	return value, rest, nil
}

// intFlag parses an optional positive integer flag.
func intFlag(args []string, def int, names ...string) (int, []string, error) {
	raw, rest, err := flagValue(args, names...)
	if err != nil || raw == "" {
		return def, rest, err
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, nil, fmt.Errorf("%s must be a positive integer, got %q", names[0], raw)
	}
	return n, rest, nil
}

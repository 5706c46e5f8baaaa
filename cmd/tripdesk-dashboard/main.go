// ABOUTME: Entry point for tripdesk-dashboard, the operator web dashboard
// ABOUTME: Serves conversations and statistics from the platform API to the browser

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/tripdesk/tripdesk-admin/internal/config"
	"github.com/tripdesk/tripdesk-admin/internal/gateway"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
  _        _           _           _
 | |_ _ __(_)_ __   __| | ___  ___| | __
 | __| '__| | '_ \ / _' |/ _ \/ __| |/ /
 | |_| |  | | |_) | (_| |  __/\__ \   <
  \__|_|  |_| .__/ \__,_|\___||___/_|\_\
            |_|          dashboard
`

// getConfigPath returns the path to the dashboard config file.
// Priority: TRIPDESK_CONFIG env var > XDG_CONFIG_HOME/tripdesk/dashboard.yaml > ~/.config/tripdesk/dashboard.yaml
func getConfigPath() string {
	if envPath := os.Getenv("TRIPDESK_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "dashboard.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "tripdesk", "dashboard.yaml")
}

// getDataPath returns the path to the tripdesk data directory.
// Priority: XDG_DATA_HOME/tripdesk > ~/.local/share/tripdesk
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "tripdesk")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: tripdesk-dashboard <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve     Start the dashboard server")
		fmt.Println("  init      Create a new config file interactively")
		fmt.Println("  health    Check dashboard liveness and readiness")
		fmt.Println("  version   Print the version")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit(os.Stdin, os.Stdout)
	case "health":
		err = runHealth(ctx, os.Stdout)
	case "version":
		fmt.Println(version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("API:       %s\n", cfg.API.BaseURL)
	green.Print("    ▶ ")
	fmt.Printf("Store:     %s\n", cfg.Database.Path)
	if !cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	}

	if cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Tailscale: ")
		cyan.Print(cfg.Tailscale.Hostname)
		if cfg.Tailscale.HTTPS {
			yellow.Print(" [https]")
		}
		if cfg.Tailscale.Ephemeral {
			gray.Print(" (ephemeral)")
		}
		fmt.Println()
	}
	if cfg.Metrics.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Metrics:   %s\n", cfg.Metrics.Path)
	}

	fmt.Println()

	logger.Info("starting tripdesk-dashboard",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"api", cfg.API.BaseURL,
	)

	gw, err := gateway.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating dashboard: %w", err)
	}

	return gw.Run(ctx)
}

// healthBaseURL returns where a locally running dashboard answers.
func healthBaseURL(cfg *config.Config) string {
	if cfg.Tailscale.Enabled {
		scheme := "http"
		if cfg.Tailscale.HTTPS {
			scheme = "https"
		}
		return scheme + "://" + cfg.Tailscale.Hostname
	}
	return "http://" + cfg.Server.HTTPAddr
}

func runHealth(ctx context.Context, out io.Writer) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	base := healthBaseURL(cfg)

	live, err := probe(ctx, client, base+"/health")
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if live.status != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", live.status)
	}
	fmt.Fprintln(out, "healthy")

	ready, err := probe(ctx, client, base+"/health/ready")
	if err != nil {
		return fmt.Errorf("readiness check failed: %w", err)
	}
	fmt.Fprintln(out, ready.body)
	if ready.status != http.StatusOK {
		return fmt.Errorf("not ready: status %d", ready.status)
	}
	return nil
}

type probeResult struct {
	status int
	body   string
}

func probe(ctx context.Context, client *http.Client, url string) (*probeResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return &probeResult{status: resp.StatusCode, body: strings.TrimSpace(string(body))}, nil
}

// initAnswers are the values collected by runInit.
type initAnswers struct {
	HTTPAddr         string
	APIBaseURL       string
	AssetBaseURL     string
	DBPath           string
	TimeZone         string
	Locale           string
	TailscaleEnabled bool
	TSHostname       string
	TSAuthKey        string
	TSEphemeral      bool
	TSHTTPS          bool
	LogLevel         string
	LogFormat        string
	MetricsEnabled   bool
}

func runInit(in io.Reader, out io.Writer) error {
	reader := bufio.NewReader(in)

	fmt.Fprintln(out, "tripdesk-dashboard configuration setup")
	fmt.Fprintln(out, "======================================")
	fmt.Fprintln(out)

	defaultDBPath := filepath.Join(getDataPath(), "dashboard.db")

	outputFile := prompt(reader, out, "Config file path", getConfigPath())

	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, out, "File exists. Overwrite?", "no")
		if !isYes(overwrite) {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	var a initAnswers

	fmt.Fprintln(out, "\n--- Server Configuration ---")
	a.HTTPAddr = prompt(reader, out, "HTTP address", "localhost:8090")

	fmt.Fprintln(out, "\n--- Platform API ---")
	a.APIBaseURL = prompt(reader, out, "API base URL", "https://api.example.com")
	a.AssetBaseURL = prompt(reader, out, "Asset base URL", a.APIBaseURL)

	fmt.Fprintln(out, "\n--- Storage ---")
	a.DBPath = prompt(reader, out, "SQLite database path", defaultDBPath)

	fmt.Fprintln(out, "\n--- Display ---")
	a.TimeZone = prompt(reader, out, "Time zone", "Local")
	a.Locale = prompt(reader, out, "Default language ("+strings.Join(config.KnownLocales, "/")+")", config.DefaultLocale)

	fmt.Fprintln(out, "\n--- Tailscale Configuration ---")
	a.TailscaleEnabled = isYes(prompt(reader, out, "Enable Tailscale?", "no"))
	if a.TailscaleEnabled {
		a.TSHostname = prompt(reader, out, "Tailscale hostname", "tripdesk-admin")
		a.TSAuthKey = prompt(reader, out, "Tailscale auth key (leave empty to use TS_AUTHKEY)", "")
		a.TSEphemeral = isYes(prompt(reader, out, "Ephemeral node?", "no"))
		a.TSHTTPS = isYes(prompt(reader, out, "Serve HTTPS with tailnet certs?", "yes"))
	}

	fmt.Fprintln(out, "\n--- Logging Configuration ---")
	a.LogLevel = prompt(reader, out, "Log level (debug/info/warn/error)", "info")
	a.LogFormat = prompt(reader, out, "Log format (text/json)", "text")

	a.MetricsEnabled = isYes(prompt(reader, out, "Expose Prometheus metrics?", "yes"))

	content := renderConfig(a)
	if _, err := config.Parse([]byte(content)); err != nil {
		return fmt.Errorf("generated config is invalid: %w", err)
	}

	configDir := filepath.Dir(outputFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	// May hold a tailscale auth key
	if err := os.WriteFile(outputFile, []byte(content), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	dataDir := filepath.Dir(config.ExpandHome(a.DBPath))
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	fmt.Fprintf(out, "\nConfig written to %s\n", outputFile)
	fmt.Fprintf(out, "Data directory: %s\n", dataDir)
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "  tripdesk-admin login        # store an admin token")
	fmt.Fprintln(out, "  tripdesk-dashboard serve    # start the dashboard")

	return nil
}

// renderConfig produces the YAML written by init.
func renderConfig(a initAnswers) string {
	var cfg strings.Builder
	cfg.WriteString("# tripdesk-dashboard configuration\n")
	cfg.WriteString("# Generated by tripdesk-dashboard init\n\n")

	cfg.WriteString("server:\n")
	fmt.Fprintf(&cfg, "  http_addr: %q\n\n", a.HTTPAddr)

	cfg.WriteString("api:\n")
	fmt.Fprintf(&cfg, "  base_url: %q\n", a.APIBaseURL)
	cfg.WriteString("  timeout: \"15s\"\n\n")

	cfg.WriteString("assets:\n")
	fmt.Fprintf(&cfg, "  base_url: %q\n", a.AssetBaseURL)
	fmt.Fprintf(&cfg, "  placeholder: %q\n\n", config.DefaultPlaceholder)

	cfg.WriteString("database:\n")
	fmt.Fprintf(&cfg, "  path: %q\n\n", a.DBPath)

	cfg.WriteString("dashboard:\n")
	fmt.Fprintf(&cfg, "  conversations_page_size: %d\n", config.DefaultConversationsPageSize)
	fmt.Fprintf(&cfg, "  messages_page_size: %d\n", config.DefaultMessagesPageSize)
	fmt.Fprintf(&cfg, "  time_zone: %q\n", a.TimeZone)
	fmt.Fprintf(&cfg, "  locale: %q\n\n", a.Locale)

	cfg.WriteString("tailscale:\n")
	fmt.Fprintf(&cfg, "  enabled: %t\n", a.TailscaleEnabled)
	if a.TailscaleEnabled {
		fmt.Fprintf(&cfg, "  hostname: %q\n", a.TSHostname)
		if a.TSAuthKey != "" {
			fmt.Fprintf(&cfg, "  auth_key: %q\n", a.TSAuthKey)
		}
		fmt.Fprintf(&cfg, "  ephemeral: %t\n", a.TSEphemeral)
		fmt.Fprintf(&cfg, "  https: %t\n", a.TSHTTPS)
	}
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	fmt.Fprintf(&cfg, "  level: %q\n", a.LogLevel)
	fmt.Fprintf(&cfg, "  format: %q\n\n", a.LogFormat)

	cfg.WriteString("metrics:\n")
	fmt.Fprintf(&cfg, "  enabled: %t\n", a.MetricsEnabled)
	fmt.Fprintf(&cfg, "  path: %q\n", config.DefaultMetricsPath)

	return cfg.String()
}

func isYes(s string) bool {
	s = strings.ToLower(s)
	return s == "yes" || s == "y"
}

func prompt(reader *bufio.Reader, out io.Writer, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Fprintf(out, "%s [%s]: ", question, defaultVal)
	} else {
		fmt.Fprintf(out, "%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Fprintln(out)
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}

// ABOUTME: Gateway orchestrator that serves the dashboard in front of the platform API
// ABOUTME: Wires store, API client, web admin and metrics, and manages listener lifecycle

package gateway

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tsnet"

	"github.com/tripdesk/tripdesk-admin/internal/apiclient"
	"github.com/tripdesk/tripdesk-admin/internal/auth"
	"github.com/tripdesk/tripdesk-admin/internal/config"
	"github.com/tripdesk/tripdesk-admin/internal/i18n"
	"github.com/tripdesk/tripdesk-admin/internal/metrics"
	"github.com/tripdesk/tripdesk-admin/internal/store"
	"github.com/tripdesk/tripdesk-admin/internal/webadmin"
)

// Gateway serves the operator dashboard. It owns the HTTP server, the
// optional tailnet node, the token store and the web admin handlers.
type Gateway struct {
	config      *config.Config
	store       store.Store
	api         *apiclient.Client
	httpServer  *http.Server
	tsnetServer *tsnet.Server
	webAdmin    *webadmin.Admin
	logger      *slog.Logger

	// publicURL is where operators reach the dashboard, updated once the
	// tailnet name is known
	publicURL string

	now func() time.Time
}

// New creates a Gateway backed by the SQLite store named in cfg.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	gw, err := NewWithStore(cfg, s, logger)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	return gw, nil
}

// NewWithStore creates a Gateway around an existing store. The gateway takes
// ownership and closes it on Shutdown.
func NewWithStore(cfg *config.Config, s store.Store, logger *slog.Logger) (*Gateway, error) {
	api, err := apiclient.New(cfg.API.BaseURL, s,
		apiclient.WithTimeout(cfg.API.Timeout),
		apiclient.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("creating API client: %w", err)
	}

	bundle, err := i18n.NewBundle(cfg.Dashboard.Locale)
	if err != nil {
		return nil, fmt.Errorf("loading message catalogs: %w", err)
	}

	admin, err := webadmin.New(api, s, bundle, webadmin.Config{
		AssetBaseURL:          cfg.Assets.BaseURL,
		Placeholder:           cfg.Assets.Placeholder,
		ConversationsPageSize: cfg.Dashboard.ConversationsPageSize,
		MessagesPageSize:      cfg.Dashboard.MessagesPageSize,
		Location:              cfg.Location(),
	})
	if err != nil {
		return nil, fmt.Errorf("creating web admin: %w", err)
	}

	gw := &Gateway{
		config:    cfg,
		store:     s,
		api:       api,
		webAdmin:  admin,
		logger:    logger.With("component", "gateway"),
		publicURL: "http://" + cfg.Server.HTTPAddr,
		now:       time.Now,
	}

	mux := http.NewServeMux()

	// Health endpoints - no session required
	mux.HandleFunc("GET /health", gw.handleHealth)
	mux.HandleFunc("GET /health/ready", gw.handleReady)

	if cfg.Metrics.Enabled {
		mux.Handle("GET "+cfg.Metrics.Path, metrics.Handler())
		logger.Info("metrics enabled", "path", cfg.Metrics.Path)
	}

	admin.RegisterRoutes(mux)

	var handler http.Handler = mux
	if cfg.Metrics.Enabled {
		handler = metrics.Middleware(mux)
	}

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return gw, nil
}

// Handler returns the root HTTP handler.
func (g *Gateway) Handler() http.Handler {
	return g.httpServer.Handler
}

// PublicURL returns the dashboard address operators should open.
func (g *Gateway) PublicURL() string {
	return g.publicURL
}

// setupTCPListener creates a standard TCP listener for HTTP.
func (g *Gateway) setupTCPListener() (net.Listener, error) {
	g.logger.Info("starting dashboard", "http_addr", g.config.Server.HTTPAddr, "api", g.api.BaseURL())

	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("listening on HTTP address: %w", err)
	}
	g.publicURL = "http://" + ln.Addr().String()
	return ln, nil
}

// setupListener creates the listener based on configuration (Tailscale or TCP).
func (g *Gateway) setupListener(ctx context.Context) (net.Listener, error) {
	if g.config.Tailscale.Enabled {
		if g.config.Server.HTTPAddr != "" {
			g.logger.Warn("server.http_addr is ignored when tailscale is enabled",
				"http_addr", g.config.Server.HTTPAddr,
			)
		}
		return g.setupTailscaleListener(ctx)
	}
	return g.setupTCPListener()
}

// startServer serves HTTP in a goroutine, returning its error channel.
func (g *Gateway) startServer(ln net.Listener) chan error {
	errCh := make(chan error, 1)

	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String(), "url", g.publicURL)
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	return errCh
}

// waitForShutdownSignal blocks until ctx is done or the listener fails.
func (g *Gateway) waitForShutdownSignal(ctx context.Context, errCh chan error) error {
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
		return nil
	case err := <-errCh:
		g.logger.Error("server error", "error", err)
		return err
	}
}

// Run starts serving and blocks until the context is canceled.
// Returns nil on graceful shutdown, or the error that stopped the server.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := g.setupListener(ctx)
	if err != nil {
		return err
	}

	errCh := g.startServer(ln)
	serverErr := g.waitForShutdownSignal(ctx, errCh)

	shutdownErr := g.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context since the run
// context is already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// resolveTailscaleStateDir defaults to ~/.local/share/tripdesk/tailscale.
func resolveTailscaleStateDir(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory for tailscale state (set tailscale.state_dir explicitly): %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "tripdesk", "tailscale"), nil
}

// resolveTailscaleAuthKey returns the auth key from config or environment.
func resolveTailscaleAuthKey(configured string) (string, error) {
	authKey := configured
	if authKey == "" {
		authKey = os.Getenv("TS_AUTHKEY")
	}
	if authKey == "" {
		return "", errors.New("tailscale auth key required: set tailscale.auth_key or TS_AUTHKEY")
	}
	return authKey, nil
}

// setupTailscaleListener joins the tailnet and listens on :80, or on :443
// with tailnet certificates when HTTPS is enabled.
func (g *Gateway) setupTailscaleListener(ctx context.Context) (net.Listener, error) {
	tsCfg := g.config.Tailscale

	stateDir, err := resolveTailscaleStateDir(tsCfg.StateDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return nil, fmt.Errorf("creating tailscale state dir: %w", err)
	}

	authKey, err := resolveTailscaleAuthKey(tsCfg.AuthKey)
	if err != nil {
		return nil, err
	}

	g.tsnetServer = &tsnet.Server{
		Hostname:  tsCfg.Hostname,
		Dir:       stateDir,
		Ephemeral: tsCfg.Ephemeral,
		AuthKey:   authKey,
	}

	g.logger.Info("starting tailscale node", "hostname", tsCfg.Hostname, "state_dir", stateDir, "ephemeral", tsCfg.Ephemeral)
	status, err := g.tsnetServer.Up(ctx)
	if err != nil {
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("starting tailscale: %w", err)
	}

	g.logTailscaleStatus(tsCfg.Hostname, status)
	g.publicURL = tailnetURL(status, tsCfg.HTTPS, g.publicURL)

	if tsCfg.HTTPS {
		return g.createTailscaleTLSListener()
	}

	ln, err := g.tsnetServer.Listen("tcp", ":80")
	if err != nil {
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("listening on tailscale HTTP port: %w", err)
	}
	return ln, nil
}

// logTailscaleStatus reports the node name and tailnet IPs once the node is up.
func (g *Gateway) logTailscaleStatus(hostname string, status *ipnstate.Status) {
	var tsAddr, dnsName string
	if len(status.TailscaleIPs) > 0 {
		tsAddr = status.TailscaleIPs[0].String()
	} else {
		g.logger.Warn("tailscale node has no IP addresses assigned")
	}
	if status.Self != nil {
		dnsName = status.Self.DNSName
	}
	g.logger.Info("tailscale node ready", "hostname", hostname, "tailscale_ip", tsAddr, "dns_name", dnsName)
}

// tailnetURL builds the dashboard URL from the node's MagicDNS name,
// keeping fallback when the name is not known yet.
func tailnetURL(status *ipnstate.Status, https bool, fallback string) string {
	if status == nil || status.Self == nil || status.Self.DNSName == "" {
		return fallback
	}
	host := strings.TrimSuffix(status.Self.DNSName, ".")
	if https {
		return "https://" + host
	}
	return "http://" + host
}

// createTailscaleTLSListener serves HTTPS on :443 with the tailnet-issued certificate.
func (g *Gateway) createTailscaleTLSListener() (net.Listener, error) {
	g.logger.Info("enabling HTTPS with Tailscale certs on :443")
	ln, err := g.tsnetServer.Listen("tcp", ":443")
	if err != nil {
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("listening on tailscale HTTPS port: %w", err)
	}
	lc, err := g.tsnetServer.LocalClient()
	if err != nil {
		_ = ln.Close()
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("getting tailscale local client: %w", err)
	}
	return tls.NewListener(ln, &tls.Config{
		GetCertificate: lc.GetCertificate,
		MinVersion:     tls.VersionTLS12,
	}), nil
}

// appendCloseError records a labelled close failure.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown stops the HTTP server and releases every resource.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down dashboard")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))

	if g.tsnetServer != nil {
		errs = appendCloseError(errs, "tailscale shutdown", g.tsnetServer.Close())
	}

	g.webAdmin.Close()
	errs = appendCloseError(errs, "store close", g.store.Close())

	return errors.Join(errs...)
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK once an admin token is stored and, when it is a
// JWT, not yet expired. Opaque tokens are taken on trust.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	token, err := g.store.Token(r.Context())
	if errors.Is(err, store.ErrNoToken) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("no admin token stored"))
		return
	}
	if err != nil {
		g.logger.Warn("readiness check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("token store unavailable"))
		return
	}

	info, err := auth.Inspect(token)
	if err != nil {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	now := g.now()
	if info.Expired(now) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = fmt.Fprintf(w, "admin token expired at %s", info.ExpiresAt.UTC().Format(time.RFC3339))
		return
	}

	w.WriteHeader(http.StatusOK)
	if info.ExpiresAt.IsZero() {
		_, _ = w.Write([]byte("ready"))
		return
	}
	_, _ = fmt.Fprintf(w, "ready (token expires in %s)", info.ExpiresIn(now).Round(time.Minute))
}

// Package gateway serves the tripdesk operator dashboard.
//
// # Overview
//
// The gateway package is the central coordinator of tripdesk-dashboard. It
// owns the HTTP server, the optional tailnet node, the local token store,
// the platform API client and the web admin handlers.
//
//	type Gateway struct {
//	    config      *config.Config
//	    store       store.Store
//	    api         *apiclient.Client
//	    httpServer  *http.Server
//	    tsnetServer *tsnet.Server
//	    webAdmin    *webadmin.Admin
//	}
//
// # HTTP Surface
//
// Besides the dashboard routes registered by webadmin:
//
//   - GET /health - Liveness check
//   - GET /health/ready - 200 once an unexpired admin token is stored
//   - GET /metrics - Prometheus scrape endpoint (when metrics.enabled)
//
// # Listeners
//
// Without Tailscale the dashboard listens on server.http_addr. With
// tailscale.enabled it joins the tailnet through tsnet and serves on :80,
// or on :443 with tailnet certificates when tailscale.https is set.
//
// # Lifecycle
//
//	gw, err := gateway.New(cfg, logger)
//	ctx, cancel := context.WithCancel(context.Background())
//	go gw.Run(ctx)
//
// Canceling the context shuts the server down gracefully and closes the
// store. Call Shutdown directly when Run was never started.
package gateway

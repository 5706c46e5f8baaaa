// Package config handles configuration loading for tripdesk-dashboard.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package fills sensible defaults and then validates the result.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from TRIPDESK_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/tripdesk/dashboard.yaml
//  3. ~/.config/tripdesk/dashboard.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	tailscale:
//	  auth_key: "${TS_AUTHKEY}"
//
// Unset variables expand to the empty string.
//
// # Configuration Sections
//
// Server and remote API:
//
//	server:
//	  http_addr: "localhost:8090"
//	api:
//	  base_url: "https://api.example.com"
//	  timeout: "15s"
//
// Media assets (relative image paths are joined onto base_url):
//
//	assets:
//	  base_url: "https://cdn.example.com/"
//	  placeholder: "/static/placeholder.svg"
//
// Local store holding the admin token and profile:
//
//	database:
//	  path: "~/.local/share/tripdesk/dashboard.db"
//
// Presentation:
//
//	dashboard:
//	  conversations_page_size: 20
//	  messages_page_size: 30
//	  time_zone: "Local"
//	  locale: "en"   # en, fr
//
// Logging and metrics:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//	metrics:
//	  enabled: true
//	  path: "/metrics"
//
// # Usage
//
//	cfg, err := config.Load("/etc/tripdesk/dashboard.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config

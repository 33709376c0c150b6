// Package config handles configuration loading for hearth-gateway.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	vault:
//	  master_key: "${HEARTH_MASTER_KEY}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	pop:
//	  window: "90s"
//	sessions:
//	  ttl: "15m"
//	  sweep_interval: "1h"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8420"   # API and admin surface
//	  base_url: "https://gateway.example.com"
//
// Database:
//
//	database:
//	  path: "/var/lib/hearth/gateway.db"
//
// Credential vault:
//
//	vault:
//	  master_key: "${HEARTH_MASTER_KEY}"  # base64, 32 bytes
//
// Authentication:
//
//	auth:
//	  jwt_secret: "${HEARTH_JWT_SECRET}"
//
// Plugins:
//
//	plugins:
//	  manifest_path: "/etc/hearth/plugins.toml"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Usage
//
// Load configuration from a path:
//
//	cfg, err := config.Load("/etc/hearth/gateway.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config

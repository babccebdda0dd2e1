// Package config handles configuration loading for guday-portal.
//
// # Overview
//
// Configuration is loaded from YAML or TOML files (chosen by extension)
// with environment variable expansion. Every field has a default, so an
// empty file is a valid configuration.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from the --config flag
//  2. Path from GUDAY_CONFIG environment variable
//  3. $XDG_CONFIG_HOME/guday/portal.yaml
//  4. ~/.config/guday/portal.yaml
//
// A .env file in the working directory is loaded before the config file.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	backend:
//	  base_url: "${GUDAY_BACKEND_URL}"
//
// Syntax: ${VAR_NAME}. Unset variables expand to an empty string, which
// then falls back to the field default.
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	backend:
//	  timeout: "15s"
//	session:
//	  duration: "12h"
//	cache:
//	  ttl: "30s"
//
// # Configuration Sections
//
//	server:    http_addr, base_url, trust_proxy
//	backend:   base_url, timeout, user_agent
//	database:  path
//	session:   duration, secure_cookies
//	cache:     ttl, max_entries
//	admin:     login_rate, login_burst
//	portal:    site_name, featured_count, search_page_size
//	logging:   level (debug|info|warn|error), format (text|json)
package config

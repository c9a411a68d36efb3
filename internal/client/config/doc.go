// Package config loads runtime configuration for the ExpertEase CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c / -config or $EXPERTEASE_CONFIG.
//  3. $EXPERTEASE_API_URL.
//  4. Command-line flags, which override everything above.
//
// Supported flags
//
//	-a string   backend base URL
//	-t int      request timeout (seconds)
//	-s string   sqlite session store path
//	-l string   log level
//
// # JSON schema
//
//	{
//	  "api_base_url": "http://127.0.0.1:5000",
//	  "request_timeout": "10s",
//	  "store_path": "session.db",
//	  "resend_cooldown": "60s",
//	  "online_check_interval": "30s",
//	  "log_level": "info"
//	}
package config

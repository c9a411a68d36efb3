package config

import "time"

// Config holds runtime settings for the ExpertEase CLI.
//
// Fields:
//   - APIBaseURL: scheme://host:port of the marketplace REST backend.
//   - RequestTimeout: per-request deadline applied by the HTTP client.
//   - StorePath: sqlite file that keeps the persisted session keys.
//   - ResendCooldown: wait enforced between OTP resend requests.
//   - OnlineCheckInterval: how often the client checks backend reachability.
//   - LogLevel: debug, info, warn or error.
type Config struct {
	APIBaseURL          string
	RequestTimeout      time.Duration
	StorePath           string
	ResendCooldown      time.Duration
	OnlineCheckInterval time.Duration
	LogLevel            string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.APIBaseURL = "http://127.0.0.1:5000"
	c.RequestTimeout = 10 * time.Second
	c.StorePath = "session.db"
	c.ResendCooldown = 60 * time.Second
	c.OnlineCheckInterval = 30 * time.Second
	c.LogLevel = "info"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present), the environment and command-line flags. Later sources
// take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}

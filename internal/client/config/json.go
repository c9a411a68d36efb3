package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/expertease/internal/flagx"
	"github.com/dmitrijs2005/expertease/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Durations go
// through timex.Duration so they may be written as "10s" or as integer
// nanoseconds. Zero values leave the corresponding Config field untouched.
type JsonConfig struct {
	APIBaseURL          string         `json:"api_base_url"`
	RequestTimeout      timex.Duration `json:"request_timeout"`
	StorePath           string         `json:"store_path"`
	ResendCooldown      timex.Duration `json:"resend_cooldown"`
	OnlineCheckInterval timex.Duration `json:"online_check_interval"`
	LogLevel            string         `json:"log_level"`
}

// parseJson overlays cfg with values from the file named by -c/-config or
// $EXPERTEASE_CONFIG. It panics on read or decode errors.
func parseJson(cfg *Config) {
	path := flagx.ConfigPath()
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.APIBaseURL != "" {
		cfg.APIBaseURL = jc.APIBaseURL
	}
	if jc.RequestTimeout.Duration > 0 {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
	if jc.StorePath != "" {
		cfg.StorePath = jc.StorePath
	}
	if jc.ResendCooldown.Duration > 0 {
		cfg.ResendCooldown = jc.ResendCooldown.Duration
	}
	if jc.OnlineCheckInterval.Duration > 0 {
		cfg.OnlineCheckInterval = jc.OnlineCheckInterval.Duration
	}
	if jc.LogLevel != "" {
		cfg.LogLevel = jc.LogLevel
	}
}

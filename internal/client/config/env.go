package config

import "os"

// APIURLEnvVar overrides the backend address when set.
const APIURLEnvVar = "EXPERTEASE_API_URL"

func parseEnv(cfg *Config) {
	if v := os.Getenv(APIURLEnvVar); v != "" {
		cfg.APIBaseURL = v
	}
}

// Package config reads the gateway's configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// DefaultPayTo is the development payee wallet used when PAY_TO is unset.
const DefaultPayTo = "0x1A8e29Bf35F3297A8b836b694Ab5AF54b5a07712"

// Config is the full environment-derived configuration.
type Config struct {
	Port             int
	PublicURL        string
	PayTo            string
	SnapshotFile     string
	SnapshotInterval time.Duration
	StatsAPIKey      string
	ScreenshotAPIURL string
	ScreenshotAPIKey string
	GeminiAPIKey     string
	FacilitatorURL   string
	ExecutorTimeout  time.Duration
}

// FromEnv builds the configuration, applying defaults for anything unset.
// An invalid PAY_TO address is an error; everything else degrades to a
// default.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:             envInt("PORT", 4002),
		PublicURL:        envStr("PUBLIC_URL", ""),
		PayTo:            envStr("PAY_TO", DefaultPayTo),
		SnapshotFile:     envStr("SNAPSHOT_FILE", "gateway-state.json"),
		SnapshotInterval: envDuration("SNAPSHOT_INTERVAL", 60*time.Second),
		StatsAPIKey:      envStr("STATS_API_KEY", ""),
		ScreenshotAPIURL: envStr("SCREENSHOT_API_URL", ""),
		ScreenshotAPIKey: envStr("SCREENSHOT_API_KEY", ""),
		GeminiAPIKey:     envStr("GEMINI_API_KEY", ""),
		FacilitatorURL:   envStr("FACILITATOR_URL", ""),
		ExecutorTimeout:  30 * time.Second,
	}
	if cfg.PublicURL == "" {
		cfg.PublicURL = fmt.Sprintf("http://localhost:%d", cfg.Port)
	}
	if !common.IsHexAddress(cfg.PayTo) {
		return nil, fmt.Errorf("PAY_TO is not a valid address: %q", cfg.PayTo)
	}
	return cfg, nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

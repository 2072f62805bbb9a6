// Package config loads server configuration from an optional YAML file with
// environment-variable overrides. Env always wins.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port string `yaml:"port"`

	// Document backend connection
	BackendURL    string `yaml:"backend_url"`
	BackendAPIKey string `yaml:"backend_api_key"`

	// Auth for this server's own API
	ReviewAPIKey string `yaml:"review_api_key"`

	// Job polling
	PollInterval    time.Duration `yaml:"poll_interval"`
	PollMaxAttempts int           `yaml:"poll_max_attempts"`

	// Session state
	SessionTTL time.Duration `yaml:"session_ttl"`

	// Refetch after job completion
	RefetchTimeout time.Duration `yaml:"refetch_timeout"`

	// Notification buffer per session
	MaxNotifications int `yaml:"max_notifications"`
}

// Load reads the YAML file named by REVIEWD_CONFIG (if set), then applies
// env overrides and defaults.
func Load() (Config, error) {
	var cfg Config
	if path := os.Getenv("REVIEWD_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Port = envOr("PORT", c.Port)
	c.BackendURL = envOr("BACKEND_URL", c.BackendURL)
	c.BackendAPIKey = envOr("BACKEND_API_KEY", c.BackendAPIKey)
	c.ReviewAPIKey = envOr("REVIEW_API_KEY", c.ReviewAPIKey)
	c.PollInterval = envDuration("POLL_INTERVAL", c.PollInterval)
	c.PollMaxAttempts = envInt("POLL_MAX_ATTEMPTS", c.PollMaxAttempts)
	c.SessionTTL = envDuration("SESSION_TTL", c.SessionTTL)
	c.RefetchTimeout = envDuration("REFETCH_TIMEOUT", c.RefetchTimeout)
	c.MaxNotifications = envInt("MAX_NOTIFICATIONS", c.MaxNotifications)
}

func (c *Config) applyDefaults() {
	if c.Port == "" {
		c.Port = "8091"
	}
	if c.BackendURL == "" {
		c.BackendURL = "http://localhost:8080"
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 2500 * time.Millisecond
	}
	if c.PollMaxAttempts <= 0 {
		c.PollMaxAttempts = 120
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = 1 * time.Hour
	}
	if c.RefetchTimeout <= 0 {
		c.RefetchTimeout = 30 * time.Second
	}
	if c.MaxNotifications <= 0 {
		c.MaxNotifications = 50
	}
}

func (c Config) Validate() error {
	if c.BackendAPIKey == "" {
		return fmt.Errorf("BACKEND_API_KEY is required")
	}
	if c.ReviewAPIKey == "" {
		return fmt.Errorf("REVIEW_API_KEY is required")
	}
	return nil
}

func envOr(key, fallback string) string {
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

/*
Package configs is responsible for loading and parsing the application's configuration settings.

All settings are read from environment variables into the AppConfig struct,
with defaults suitable for local development and validation of the values a
production deployment must provide.
*/
package configs

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// AppConfig contains all configuration parameters required for the relay to run.
type AppConfig struct {
	// General Server Settings
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Port        int    `env:"PORT" envDefault:"8080"`

	// Security Settings
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`
	SessionSecret  string   `env:"SESSION_SECRET"`

	// App Server Settings (external presence record store)
	AppServerURL     string        `env:"APP_SERVER_URL" envDefault:"http://localhost:3000"`
	AppServerTimeout time.Duration `env:"APP_SERVER_TIMEOUT" envDefault:"5s"`

	// Relay Throttle Settings
	StateUpdateInterval  time.Duration `env:"STATE_UPDATE_INTERVAL" envDefault:"200ms"`
	PresencePingInterval time.Duration `env:"PRESENCE_PING_INTERVAL" envDefault:"5s"`
	ConnectRate          float64       `env:"CONNECT_RATE" envDefault:"0.2"`
	ConnectBurst         int           `env:"CONNECT_BURST" envDefault:"5"`
}

// LoadConfig reads and validates the application configuration from environment
// variables. It returns a pointer to the AppConfig struct and any error encountered.
func LoadConfig() (*AppConfig, error) {
	cfg := &AppConfig{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.Port < 1024 || cfg.Port > 65535 {
		return nil, fmt.Errorf("port number %d is outside the recommended range (%d-%d) to avoid privileged ports", cfg.Port, 1024, 65535)
	}

	origins := cfg.AllowedOrigins
	cfg.AllowedOrigins = nil
	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, trimmed)
		}
	}

	if cfg.SessionSecret == "" {
		if cfg.Environment == "development" {
			cfg.SessionSecret = "your_default_insecure_secret_key_change_me"
		} else {
			return nil, fmt.Errorf("SESSION_SECRET environment variable is required in %s environment for security", cfg.Environment)
		}
	}

	if cfg.StateUpdateInterval <= 0 || cfg.PresencePingInterval <= 0 {
		return nil, fmt.Errorf("throttle intervals must be positive (state_update=%s, presence_ping=%s)", cfg.StateUpdateInterval, cfg.PresencePingInterval)
	}

	return cfg, nil
}

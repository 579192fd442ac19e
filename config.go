package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds all server configuration
// Tags:
//
//	env: Environment variable name
//	envDefault: Default value if not set
type Config struct {
	// Listeners
	Addr     string `env:"CHAT_ADDR" envDefault:":42069"`
	HTTPAddr string `env:"CHAT_HTTP_ADDR" envDefault:":8080"`

	// Capacity
	MaxConnections int `env:"CHAT_MAX_CONNECTIONS" envDefault:"100"`

	// Chat limits
	RateLimit      int           `env:"CHAT_RATE_LIMIT" envDefault:"5"`
	RateWindow     time.Duration `env:"CHAT_RATE_WINDOW" envDefault:"10s"`
	MaxMessageSize int           `env:"CHAT_MAX_MESSAGE_SIZE" envDefault:"1024"`
	IdleTimeout    time.Duration `env:"CHAT_IDLE_TIMEOUT" envDefault:"5m"`

	// Rooms is the fixed, comma-separated room list published to clients.
	// Rooms are never created at runtime.
	Rooms string `env:"CHAT_ROOMS" envDefault:"General,Python,Linux & Open Source,Off-Topic,Help"`

	// Accept-path flood guard (distinct from the per-message rate limit)
	AcceptGuardEnabled bool    `env:"CHAT_ACCEPT_GUARD_ENABLED" envDefault:"true"`
	AcceptIPBurst      int     `env:"CHAT_ACCEPT_IP_BURST" envDefault:"10"`
	AcceptIPRate       float64 `env:"CHAT_ACCEPT_IP_RATE" envDefault:"1.0"`
	AcceptGlobalBurst  int     `env:"CHAT_ACCEPT_GLOBAL_BURST" envDefault:"100"`
	AcceptGlobalRate   float64 `env:"CHAT_ACCEPT_GLOBAL_RATE" envDefault:"25.0"`

	// Monitoring
	StatsInterval time.Duration `env:"CHAT_STATS_INTERVAL" envDefault:"15s"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Environment
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
}

// LoadConfig reads configuration from .env file and environment variables.
// Priority: ENV vars > .env file > defaults.
func LoadConfig(logger *zerolog.Logger) (*Config, error) {
	// .env is a development convenience; in production the environment is
	// set directly, so a missing file is not an error.
	if err := godotenv.Load(); err != nil {
		if logger != nil {
			logger.Info().Msg("No .env file found (using environment variables only)")
		}
	} else if logger != nil {
		logger.Info().Msg("Loaded configuration from .env file")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration for errors
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("CHAT_ADDR is required")
	}
	if c.HTTPAddr == "" {
		return fmt.Errorf("CHAT_HTTP_ADDR is required")
	}

	if c.MaxConnections < 1 {
		return fmt.Errorf("CHAT_MAX_CONNECTIONS must be > 0, got %d", c.MaxConnections)
	}
	if c.RateLimit < 1 {
		return fmt.Errorf("CHAT_RATE_LIMIT must be > 0, got %d", c.RateLimit)
	}
	if c.RateWindow <= 0 {
		return fmt.Errorf("CHAT_RATE_WINDOW must be > 0, got %s", c.RateWindow)
	}
	if c.MaxMessageSize < 64 {
		return fmt.Errorf("CHAT_MAX_MESSAGE_SIZE must be >= 64, got %d", c.MaxMessageSize)
	}
	if c.IdleTimeout < 0 {
		return fmt.Errorf("CHAT_IDLE_TIMEOUT must be >= 0, got %s", c.IdleTimeout)
	}
	if len(c.RoomList()) == 0 {
		return fmt.Errorf("CHAT_ROOMS must name at least one room")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error (got: %s)", c.LogLevel)
	}

	validLogFormats := map[string]bool{"json": true, "pretty": true}
	if !validLogFormats[c.LogFormat] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, pretty (got: %s)", c.LogFormat)
	}

	return nil
}

// RoomList splits the configured room string into the published room list,
// dropping empty entries.
func (c *Config) RoomList() []string {
	rooms := []string{}
	for _, r := range strings.Split(c.Rooms, ",") {
		if trimmed := strings.TrimSpace(r); trimmed != "" {
			rooms = append(rooms, trimmed)
		}
	}
	return rooms
}

// LogConfig logs configuration using structured logging
func (c *Config) LogConfig(logger zerolog.Logger) {
	logger.Info().
		Str("environment", c.Environment).
		Str("addr", c.Addr).
		Str("http_addr", c.HTTPAddr).
		Int("max_connections", c.MaxConnections).
		Int("rate_limit", c.RateLimit).
		Dur("rate_window", c.RateWindow).
		Int("max_message_size", c.MaxMessageSize).
		Dur("idle_timeout", c.IdleTimeout).
		Strs("rooms", c.RoomList()).
		Bool("accept_guard", c.AcceptGuardEnabled).
		Dur("stats_interval", c.StatsInterval).
		Str("log_level", c.LogLevel).
		Str("log_format", c.LogFormat).
		Msg("Server configuration loaded")
}

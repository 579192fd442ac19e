package main

import (
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseConfig(t *testing.T) *Config {
	t.Helper()
	cfg := &Config{}
	require.NoError(t, env.Parse(cfg))
	return cfg
}

func TestConfigDefaults(t *testing.T) {
	cfg := parseConfig(t)

	assert.Equal(t, ":42069", cfg.Addr)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 100, cfg.MaxConnections)
	assert.Equal(t, 5, cfg.RateLimit)
	assert.Equal(t, 10*time.Second, cfg.RateWindow)
	assert.Equal(t, 1024, cfg.MaxMessageSize)
	assert.Equal(t, 5*time.Minute, cfg.IdleTimeout)
	assert.True(t, cfg.AcceptGuardEnabled)

	assert.NoError(t, cfg.Validate())
}

func TestConfigEnvOverrides(t *testing.T) {
	t.Setenv("CHAT_ADDR", ":9000")
	t.Setenv("CHAT_RATE_LIMIT", "20")
	t.Setenv("CHAT_RATE_WINDOW", "30s")
	t.Setenv("CHAT_ROOMS", "Lobby,Dev")

	cfg := parseConfig(t)

	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, 20, cfg.RateLimit)
	assert.Equal(t, 30*time.Second, cfg.RateWindow)
	assert.Equal(t, []string{"Lobby", "Dev"}, cfg.RoomList())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "zero max connections",
			mutate:  func(c *Config) { c.MaxConnections = 0 },
			wantErr: "CHAT_MAX_CONNECTIONS",
		},
		{
			name:    "zero rate limit",
			mutate:  func(c *Config) { c.RateLimit = 0 },
			wantErr: "CHAT_RATE_LIMIT",
		},
		{
			name:    "negative rate window",
			mutate:  func(c *Config) { c.RateWindow = -time.Second },
			wantErr: "CHAT_RATE_WINDOW",
		},
		{
			name:    "message size below floor",
			mutate:  func(c *Config) { c.MaxMessageSize = 10 },
			wantErr: "CHAT_MAX_MESSAGE_SIZE",
		},
		{
			name:    "empty room list",
			mutate:  func(c *Config) { c.Rooms = " , ," },
			wantErr: "CHAT_ROOMS",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.LogLevel = "verbose" },
			wantErr: "LOG_LEVEL",
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.LogFormat = "xml" },
			wantErr: "LOG_FORMAT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := parseConfig(t)
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRoomListTrimsAndDropsEmpty(t *testing.T) {
	cfg := &Config{Rooms: " General , ,Python,, Help "}
	assert.Equal(t, []string{"General", "Python", "Help"}, cfg.RoomList())
}

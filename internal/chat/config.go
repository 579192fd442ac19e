package chat

import (
	"time"

	"github.com/rs/zerolog"
)

// Reference defaults, matching the observed server behavior.
const (
	DefaultRateLimit      = 5
	DefaultRateWindow     = 10 * time.Second
	DefaultMaxMessageSize = 1024
	DefaultSelectRetries  = 3
	DefaultSendBuffer     = 64
)

// DefaultRooms is the fixed room list published when none is configured.
var DefaultRooms = []string{"General", "Python", "Linux & Open Source", "Off-Topic", "Help"}

// Config holds the engine's startup-time constants. None of these are
// mutable at runtime.
type Config struct {
	// Rooms is the fixed, ordered room list clients select from by index.
	Rooms []string

	// RateLimit admits at most this many messages per RateWindow per session.
	RateLimit  int
	RateWindow time.Duration

	// MaxMessageSize bounds one framed message in bytes.
	MaxMessageSize int

	// IdleTimeout reaps silently dead connections; 0 disables the read
	// deadline entirely.
	IdleTimeout time.Duration

	// SelectRetries bounds invalid room selections before disconnect.
	SelectRetries int

	// SendBuffer is the per-session outbound queue length. A session whose
	// queue fills is treated as a failed recipient.
	SendBuffer int

	Logger  zerolog.Logger
	Metrics Metrics
}

func (c *Config) applyDefaults() {
	if len(c.Rooms) == 0 {
		c.Rooms = DefaultRooms
	}
	if c.RateLimit <= 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.RateWindow <= 0 {
		c.RateWindow = DefaultRateWindow
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = DefaultMaxMessageSize
	}
	if c.SelectRetries <= 0 {
		c.SelectRetries = DefaultSelectRetries
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = DefaultSendBuffer
	}
	if c.Metrics == nil {
		c.Metrics = NopMetrics{}
	}
}

// Metrics receives counters from the engine's hot paths. The server wires a
// Prometheus-backed implementation; tests run with NopMetrics.
type Metrics interface {
	SessionOpened()
	SessionClosed(reason string, duration time.Duration)
	MessageBroadcast(recipients int)
	MessageRateLimited()
	MessageOversized()
}

// NopMetrics discards all engine counters.
type NopMetrics struct{}

func (NopMetrics) SessionOpened()                        {}
func (NopMetrics) SessionClosed(string, time.Duration)   {}
func (NopMetrics) MessageBroadcast(int)                  {}
func (NopMetrics) MessageRateLimited()                   {}
func (NopMetrics) MessageOversized()                     {}

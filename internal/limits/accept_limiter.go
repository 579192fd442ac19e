// Package limits guards the accept path against connection floods.
package limits

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// AcceptLimiter rate-limits inbound connection attempts before any protocol
// state is created. It is separate from the per-message sliding window: this
// guards the acceptor, that guards the chat path.
//
// Two levels, both token buckets (golang.org/x/time/rate):
//   - per-IP: one misbehaving client cannot monopolize the accept loop
//   - global: distributed floods cannot either
//
// Idle per-IP buckets are evicted after a TTL so the map stays bounded.
type AcceptLimiter struct {
	ipMu       sync.Mutex
	ipLimiters map[string]*ipEntry
	ipBurst    int
	ipRate     float64
	ipTTL      time.Duration

	global *rate.Limiter
	logger zerolog.Logger

	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	stopOnce      sync.Once
}

type ipEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// AcceptLimiterConfig holds the accept-guard knobs. Zero values get the
// defaults noted per field.
type AcceptLimiterConfig struct {
	IPBurst     int           // burst connections per IP (default 10)
	IPRate      float64       // sustained connections/sec per IP (default 1.0)
	IPTTL       time.Duration // evict idle IP buckets after this (default 5m)
	GlobalBurst int           // burst connections system-wide (default 100)
	GlobalRate  float64       // sustained connections/sec system-wide (default 25.0)
	Logger      zerolog.Logger
}

// NewAcceptLimiter creates the guard and starts its eviction loop.
func NewAcceptLimiter(config AcceptLimiterConfig) *AcceptLimiter {
	if config.IPBurst == 0 {
		config.IPBurst = 10
	}
	if config.IPRate == 0 {
		config.IPRate = 1.0
	}
	if config.IPTTL == 0 {
		config.IPTTL = 5 * time.Minute
	}
	if config.GlobalBurst == 0 {
		config.GlobalBurst = 100
	}
	if config.GlobalRate == 0 {
		config.GlobalRate = 25.0
	}

	al := &AcceptLimiter{
		ipLimiters:  make(map[string]*ipEntry),
		ipBurst:     config.IPBurst,
		ipRate:      config.IPRate,
		ipTTL:       config.IPTTL,
		global:      rate.NewLimiter(rate.Limit(config.GlobalRate), config.GlobalBurst),
		logger:      config.Logger.With().Str("component", "accept_limiter").Logger(),
		stopCleanup: make(chan struct{}),
	}

	al.cleanupTicker = time.NewTicker(1 * time.Minute)
	go al.cleanupLoop()

	return al
}

// Allow reports whether a connection attempt from ip may proceed. The global
// bucket is checked first (no map lookup), then the per-IP bucket.
func (al *AcceptLimiter) Allow(ip string) bool {
	if !al.global.Allow() {
		al.logger.Debug().Str("ip", ip).Msg("Connection rejected: global accept rate exceeded")
		return false
	}
	if !al.ipLimiter(ip).Allow() {
		al.logger.Debug().Str("ip", ip).Msg("Connection rejected: per-IP accept rate exceeded")
		return false
	}
	return true
}

func (al *AcceptLimiter) ipLimiter(ip string) *rate.Limiter {
	al.ipMu.Lock()
	defer al.ipMu.Unlock()

	if entry, ok := al.ipLimiters[ip]; ok {
		entry.lastAccess = time.Now()
		return entry.limiter
	}
	entry := &ipEntry{
		limiter:    rate.NewLimiter(rate.Limit(al.ipRate), al.ipBurst),
		lastAccess: time.Now(),
	}
	al.ipLimiters[ip] = entry
	return entry.limiter
}

func (al *AcceptLimiter) cleanupLoop() {
	for {
		select {
		case <-al.cleanupTicker.C:
			al.cleanup()
		case <-al.stopCleanup:
			al.cleanupTicker.Stop()
			return
		}
	}
}

func (al *AcceptLimiter) cleanup() {
	al.ipMu.Lock()
	defer al.ipMu.Unlock()

	now := time.Now()
	removed := 0
	for ip, entry := range al.ipLimiters {
		if now.Sub(entry.lastAccess) > al.ipTTL {
			delete(al.ipLimiters, ip)
			removed++
		}
	}
	if removed > 0 {
		al.logger.Debug().
			Int("removed", removed).
			Int("remaining", len(al.ipLimiters)).
			Msg("Evicted idle IP buckets")
	}
}

// Stop halts the eviction loop. Called during shutdown.
func (al *AcceptLimiter) Stop() {
	al.stopOnce.Do(func() { close(al.stopCleanup) })
}

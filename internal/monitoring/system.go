package monitoring

import (
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/process"
)

// SystemStats holds one measurement of the server process's resource usage,
// reported by the health endpoint.
type SystemStats struct {
	CPUPercent float64   `json:"cpu_percent"`
	MemoryMB   float64   `json:"memory_mb"`
	Goroutines int       `json:"goroutines"`
	Timestamp  time.Time `json:"timestamp"`
}

// SystemMonitor samples process CPU and memory on a fixed interval so that
// health requests read a cached value instead of probing the OS per request.
// Thread-safe for concurrent access.
type SystemMonitor struct {
	proc   *process.Process
	logger zerolog.Logger

	mu    sync.RWMutex
	stats SystemStats

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewSystemMonitor creates a monitor for the current process. gopsutil
// failures are logged and leave the previous sample in place.
func NewSystemMonitor(logger zerolog.Logger) (*SystemMonitor, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	return &SystemMonitor{
		proc:   proc,
		logger: logger.With().Str("component", "system_monitor").Logger(),
		stop:   make(chan struct{}),
	}, nil
}

// Start begins periodic sampling. Call once during startup.
func (sm *SystemMonitor) Start(interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	sm.wg.Add(1)
	go func() {
		defer sm.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		sm.sample()
		for {
			select {
			case <-ticker.C:
				sm.sample()
			case <-sm.stop:
				return
			}
		}
	}()
}

// Stop halts sampling and waits for the goroutine to exit.
func (sm *SystemMonitor) Stop() {
	sm.stopOnce.Do(func() { close(sm.stop) })
	sm.wg.Wait()
}

// Stats returns the most recent sample.
func (sm *SystemMonitor) Stats() SystemStats {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.stats
}

func (sm *SystemMonitor) sample() {
	cpuPercent, err := sm.proc.CPUPercent()
	if err != nil {
		sm.logger.Debug().Err(err).Msg("CPU sample failed")
	}

	var memMB float64
	if memInfo, err := sm.proc.MemoryInfo(); err != nil {
		sm.logger.Debug().Err(err).Msg("Memory sample failed")
	} else {
		memMB = float64(memInfo.RSS) / (1024 * 1024)
	}

	sm.mu.Lock()
	sm.stats = SystemStats{
		CPUPercent: cpuPercent,
		MemoryMB:   memMB,
		Goroutines: runtime.NumGoroutine(),
		Timestamp:  time.Now(),
	}
	sm.mu.Unlock()
}

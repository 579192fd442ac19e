package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/DunamisMax/PyChat/internal/chat"
	"github.com/DunamisMax/PyChat/internal/limits"
	"github.com/DunamisMax/PyChat/internal/monitoring"
)

// Server owns the TCP acceptor, the monitoring HTTP listener, and the
// lifecycle around the chat engine. The engine never touches sockets it did
// not receive from here.
type Server struct {
	cfg    *Config
	logger zerolog.Logger
	engine *chat.Engine

	listener   net.Listener
	httpServer *http.Server

	// connSem is the connection ceiling: one slot per live connection,
	// acquired before the handler goroutine starts and released when it
	// exits. Over-limit connections are rejected with a notice, not queued.
	connSem chan struct{}

	acceptGuard *limits.AcceptLimiter
	sysmon      *monitoring.SystemMonitor

	startedAt time.Time
	wg        sync.WaitGroup
}

// NewServer wires the engine and its collaborators from config.
func NewServer(cfg *Config, logger zerolog.Logger) (*Server, error) {
	engine := chat.NewEngine(chat.Config{
		Rooms:          cfg.RoomList(),
		RateLimit:      cfg.RateLimit,
		RateWindow:     cfg.RateWindow,
		MaxMessageSize: cfg.MaxMessageSize,
		IdleTimeout:    cfg.IdleTimeout,
		Logger:         logger,
		Metrics:        promMetrics{},
	})

	s := &Server{
		cfg:     cfg,
		logger:  logger.With().Str("component", "server").Logger(),
		engine:  engine,
		connSem: make(chan struct{}, cfg.MaxConnections),
	}

	if cfg.AcceptGuardEnabled {
		s.acceptGuard = limits.NewAcceptLimiter(limits.AcceptLimiterConfig{
			IPBurst:     cfg.AcceptIPBurst,
			IPRate:      cfg.AcceptIPRate,
			GlobalBurst: cfg.AcceptGlobalBurst,
			GlobalRate:  cfg.AcceptGlobalRate,
			Logger:      logger,
		})
	}

	sysmon, err := monitoring.NewSystemMonitor(logger)
	if err != nil {
		s.logger.Warn().Err(err).Msg("System monitor unavailable")
	} else {
		s.sysmon = sysmon
	}

	return s, nil
}

// Start binds both listeners and begins accepting. A bind failure is fatal
// and returned to the caller; transient accept errors are logged and the
// loop continues.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", s.cfg.Addr, err)
	}
	s.listener = listener
	s.startedAt = time.Now()
	connectionsMax.Set(float64(s.cfg.MaxConnections))

	if s.sysmon != nil {
		s.sysmon.Start(s.cfg.StatsInterval)
	}
	s.startHTTP()

	s.wg.Add(1)
	go s.acceptLoop()

	s.logger.Info().
		Str("addr", listener.Addr().String()).
		Str("http_addr", s.cfg.HTTPAddr).
		Int("max_connections", s.cfg.MaxConnections).
		Msg("Server listening")
	return nil
}

// Addr returns the bound chat listener address (useful with ":0").
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn().Err(err).Msg("Accept failed")
			continue
		}

		if s.acceptGuard != nil && !s.acceptGuard.Allow(remoteIP(conn)) {
			connectionsRejected.WithLabelValues("flood_guard").Inc()
			_ = conn.Close()
			continue
		}

		select {
		case s.connSem <- struct{}{}:
		default:
			s.reject(conn)
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer func() { <-s.connSem }()
			s.engine.Handle(conn)
		}()
	}
}

// reject turns away a connection at the ceiling: a notice, then close, with
// no session state created.
func (s *Server) reject(conn net.Conn) {
	connectionsRejected.WithLabelValues("server_full").Inc()
	_ = conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	_, _ = conn.Write([]byte("* Server is full. Try again later.\n"))
	_ = conn.Close()
	s.logger.Warn().
		Str("remote_addr", conn.RemoteAddr().String()).
		Int("max_connections", s.cfg.MaxConnections).
		Msg("Connection rejected: server full")
}

func remoteIP(conn net.Conn) string {
	if host, _, err := net.SplitHostPort(conn.RemoteAddr().String()); err == nil {
		return host
	}
	return conn.RemoteAddr().String()
}

// startHTTP serves the read-only monitoring surface: online users at /,
// health at /healthz, Prometheus at /metrics. It reads engine snapshots only
// and has no side effects on chat state.
func (s *Server) startHTTP() {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleUsers)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("Monitoring HTTP server failed")
		}
	}()
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, s.engine.Snapshot())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	payload := map[string]any{
		"status":          "ok",
		"uptime_seconds":  int64(time.Since(s.startedAt).Seconds()),
		"active_sessions": s.engine.ActiveSessions(),
		"max_connections": s.cfg.MaxConnections,
	}
	if s.sysmon != nil {
		payload["system"] = s.sysmon.Stats()
	}
	writeJSON(w, payload)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// Shutdown stops accepting, disconnects every session, and drains the HTTP
// side.
func (s *Server) Shutdown() error {
	s.logger.Info().Msg("Shutting down")

	var firstErr error
	if s.listener != nil {
		if err := s.listener.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	s.engine.CloseAll()

	if s.acceptGuard != nil {
		s.acceptGuard.Stop()
	}
	if s.sysmon != nil {
		s.sysmon.Stop()
	}

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	s.wg.Wait()
	s.logger.Info().Msg("Shutdown complete")
	return firstErr
}

package chat

import (
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// SessionState tracks where a connection is in the protocol. Input that is
// not valid for the current state is rejected rather than best-effort parsed.
//
// Valid transitions:
//
//	Connecting → NegotiatingName → SelectingRoom → Active → Closed
//
// Any state may transition to Closed.
type SessionState int32

const (
	StateConnecting SessionState = iota
	StateNegotiatingName
	StateSelectingRoom
	StateActive
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateNegotiatingName:
		return "negotiating_name"
	case StateSelectingRoom:
		return "selecting_room"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is the server-side state for one connected client. It is owned by
// its handling goroutine; the registries hold references for routing only.
// Identity and room membership live in the registries, not here, so no other
// goroutine ever mutates a session's private fields.
type Session struct {
	id          int64
	conn        net.Conn
	reader      *LineReader
	limiter     *SlidingWindow
	connectedAt time.Time

	// Outbound path. All writes to the peer go through send and are drained
	// by a single write loop, which keeps broadcast fan-out non-blocking and
	// serializes writes without a per-write lock. done is closed exactly once
	// on cleanup.
	send      chan string
	done      chan struct{}
	closeOnce sync.Once

	state atomic.Int32
}

var sessionSeq atomic.Int64

func newSession(conn net.Conn, cfg Config) *Session {
	s := &Session{
		id:          sessionSeq.Add(1),
		conn:        conn,
		reader:      NewLineReader(conn, cfg.MaxMessageSize),
		limiter:     NewSlidingWindow(cfg.RateLimit, cfg.RateWindow),
		connectedAt: time.Now(),
		send:        make(chan string, cfg.SendBuffer),
		done:        make(chan struct{}),
	}
	s.state.Store(int32(StateConnecting))
	return s
}

// ID returns the session's process-unique numeric identifier, used for log
// correlation before a nickname is assigned.
func (s *Session) ID() int64 { return s.id }

// RemoteAddr reports the peer address.
func (s *Session) RemoteAddr() string { return s.conn.RemoteAddr().String() }

// State returns the current protocol state.
func (s *Session) State() SessionState { return SessionState(s.state.Load()) }

func (s *Session) setState(st SessionState) { s.state.Store(int32(st)) }

// Send enqueues one outbound line for the session's write loop. It never
// blocks: a closed session reports false, and so does a session whose buffer
// is full (a slow client the caller should schedule for disconnect).
func (s *Session) Send(line string) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- line:
		return true
	case <-s.done:
		return false
	default:
		return false
	}
}

// closed reports whether cleanup has already run.
func (s *Session) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

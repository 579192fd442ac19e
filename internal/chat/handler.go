package chat

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Time allowed to flush one outbound write before the peer is considered
// failed.
const writeWait = 5 * time.Second

// Engine is the connection lifecycle and message-routing core. The acceptor
// hands it raw TCP connections; everything from nickname negotiation to
// disconnect cleanup happens here.
//
// One goroutine per connection runs the protocol (Handle), plus one write
// loop per connection draining the session's outbound buffer. Cross-session
// effects (broadcast, snapshots) go through the mutex-guarded registries;
// no handler ever touches another session's private state.
type Engine struct {
	cfg       Config
	nicknames *NicknameRegistry
	rooms     *RoomRegistry
	router    *Router
	metrics   Metrics
	logger    zerolog.Logger

	sessions sync.Map // map[*Session]struct{}
}

// NewEngine wires the registries and router. Zero-valued Config fields get
// the reference defaults.
func NewEngine(cfg Config) *Engine {
	cfg.applyDefaults()

	e := &Engine{
		cfg:       cfg,
		nicknames: NewNicknameRegistry(),
		rooms:     NewRoomRegistry(cfg.Rooms),
		metrics:   cfg.Metrics,
		logger:    cfg.Logger.With().Str("component", "engine").Logger(),
	}
	e.router = NewRouter(e.rooms, cfg.Logger, func(s *Session, reason string) {
		go e.cleanup(s, reason)
	})
	return e
}

// Rooms returns the fixed room list the engine was started with.
func (e *Engine) Rooms() []string { return e.rooms.Names() }

// ActiveSessions reports the number of sessions holding a nickname.
func (e *Engine) ActiveSessions() int { return e.nicknames.Len() }

// Handle runs the full protocol for one accepted connection and blocks until
// the session ends. The caller owns concurrency (one goroutine per
// connection) and the connection ceiling; the engine owns everything after.
func (e *Engine) Handle(conn net.Conn) {
	s := newSession(conn, e.cfg)
	e.sessions.Store(s, struct{}{})
	e.metrics.SessionOpened()

	e.logger.Info().
		Int64("session_id", s.id).
		Str("remote_addr", s.RemoteAddr()).
		Msg("Connection accepted")

	go e.writeLoop(s)
	e.cleanup(s, e.run(s))
}

// run drives the protocol state machine and returns the disconnect reason.
func (e *Engine) run(s *Session) string {
	nick, reason := e.negotiateNickname(s)
	if reason != "" {
		return reason
	}

	room, reason := e.selectRoom(s, nick)
	if reason != "" {
		return reason
	}

	s.setState(StateActive)
	e.router.Notice(room, nick+" has joined the room.", s)
	s.Send(fmt.Sprintf("* You have joined %s. Type /quit to exit, /help for commands.", room))

	e.logger.Info().
		Int64("session_id", s.id).
		Str("nick", nick).
		Str("room", room).
		Msg("Session active")

	return e.messageLoop(s, nick, room)
}

// negotiateNickname prompts for a display name and claims a unique identity.
// A disconnect here leaves no registry state behind: cleanup releases
// whatever was claimed, and no room was joined yet so nothing is broadcast.
func (e *Engine) negotiateNickname(s *Session) (string, string) {
	s.setState(StateNegotiatingName)
	s.Send("Welcome to PyChat. Enter your desired username:")

	candidate, err := e.readLine(s)
	if err != nil && !errors.Is(err, ErrMessageTooLong) {
		return "", disconnectReason(err)
	}
	if errors.Is(err, ErrMessageTooLong) {
		candidate = "" // oversized candidate falls back to the default base
	}

	nick := e.nicknames.Claim(candidate, s)
	s.Send("Your username is: " + nick)
	return nick, ""
}

// selectRoom publishes the room list and reads a 1-based numeric selection,
// re-prompting on invalid input up to the retry bound.
func (e *Engine) selectRoom(s *Session, nick string) (string, string) {
	s.setState(StateSelectingRoom)

	names := e.rooms.Names()
	var b strings.Builder
	b.WriteString("Available rooms:")
	for i, name := range names {
		b.WriteString(fmt.Sprintf("\n  %d. %s", i+1, name))
	}
	s.Send(b.String())
	s.Send("Enter the number of the room to join:")

	for attempt := 1; attempt <= e.cfg.SelectRetries; attempt++ {
		line, err := e.readLine(s)
		if errors.Is(err, ErrMessageTooLong) {
			line = "" // treated as an invalid selection below
		} else if err != nil {
			return "", disconnectReason(err)
		}

		index, convErr := strconv.Atoi(strings.TrimSpace(line))
		if convErr == nil {
			if room, joinErr := e.rooms.Join(s, index); joinErr == nil {
				return room, ""
			}
		}
		e.logger.Debug().
			Int64("session_id", s.id).
			Str("nick", nick).
			Str("input", line).
			Msg("Invalid room selection")
		if attempt < e.cfg.SelectRetries {
			s.Send(fmt.Sprintf("* Invalid selection. Enter a number between 1 and %d:", len(names)))
		}
	}

	s.Send("* Too many invalid selections. Goodbye.")
	return "", "invalid_room_selection"
}

// messageLoop reads, sanitizes, rate-limits, and routes messages until the
// session ends.
func (e *Engine) messageLoop(s *Session, nick, room string) string {
	for {
		line, err := e.readLine(s)
		if errors.Is(err, ErrMessageTooLong) {
			e.metrics.MessageOversized()
			s.Send(fmt.Sprintf("* Message too long (max %d bytes). Not sent.", e.cfg.MaxMessageSize))
			continue
		}
		if err != nil {
			return disconnectReason(err)
		}

		text := strings.TrimSpace(Sanitize(line))
		if text == "" {
			continue
		}

		if strings.HasPrefix(text, "/") {
			if quit := e.handleCommand(s, nick, room, text); quit {
				return "quit"
			}
			continue
		}

		if !s.limiter.Allow() {
			e.metrics.MessageRateLimited()
			s.Send("* Rate limit exceeded. Please slow down.")
			e.logger.Debug().
				Int64("session_id", s.id).
				Str("nick", nick).
				Msg("Message rate limited")
			continue
		}

		delivered := e.router.Deliver(s, nick, text)
		e.metrics.MessageBroadcast(delivered)
	}
}

// handleCommand dispatches slash commands in the Active state. Returns true
// when the session should terminate.
func (e *Engine) handleCommand(s *Session, nick, room, text string) bool {
	switch strings.ToLower(strings.Fields(text)[0]) {
	case "/quit":
		return true
	case "/help":
		s.Send("* Commands: /quit leave the chat, /who list users in your room, /help show this message.")
	case "/who":
		occupants := e.rooms.Occupancy(e.nicknames)[room]
		s.Send(fmt.Sprintf("* In %s (%d): %s", room, len(occupants), strings.Join(occupants, ", ")))
	default:
		s.Send("* Unknown command. Type /help for available commands.")
	}
	return false
}

// readLine reads one framed message, arming the idle deadline if configured.
func (e *Engine) readLine(s *Session) (string, error) {
	if e.cfg.IdleTimeout > 0 {
		_ = s.conn.SetReadDeadline(time.Now().Add(e.cfg.IdleTimeout))
	}
	return s.reader.ReadLine()
}

// writeLoop drains the session's outbound buffer onto the connection. It is
// the only writer for the connection, so broadcasts from any goroutine
// serialize here without a per-write lock. Batches whatever is queued behind
// a single flush to cut syscalls on busy rooms.
func (e *Engine) writeLoop(s *Session) {
	writer := bufio.NewWriter(s.conn)
	for {
		select {
		case <-s.done:
			return
		case line := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := writeLine(writer, line); err != nil {
				e.writeFailed(s, err)
				return
			}
			for n := len(s.send); n > 0; n-- {
				if err := writeLine(writer, <-s.send); err != nil {
					e.writeFailed(s, err)
					return
				}
			}
			if err := writer.Flush(); err != nil {
				e.writeFailed(s, err)
				return
			}
		}
	}
}

func writeLine(w *bufio.Writer, line string) error {
	if _, err := w.WriteString(line); err != nil {
		return err
	}
	return w.WriteByte('\n')
}

// writeFailed tears the session down from the write path. A write failure to
// one recipient never propagates beyond that recipient's own cleanup.
func (e *Engine) writeFailed(s *Session, err error) {
	e.logger.Debug().
		Err(err).
		Int64("session_id", s.id).
		Msg("Write failed")
	e.cleanup(s, "write_error")
}

// cleanup tears down one session: removes it from both registries, closes
// the connection, and notifies its former room. Idempotent: concurrent
// read-error and write-error paths may both invoke it, the second is a no-op.
func (e *Engine) cleanup(s *Session, reason string) {
	s.closeOnce.Do(func() {
		s.setState(StateClosed)
		close(s.done)
		_ = s.conn.Close()

		room := e.rooms.Leave(s)
		nick := e.nicknames.Release(s)
		e.sessions.Delete(s)

		if room != "" && nick != "" {
			e.router.Notice(room, nick+" has left the room.", nil)
		}

		e.metrics.SessionClosed(reason, time.Since(s.connectedAt))
		e.logger.Info().
			Int64("session_id", s.id).
			Str("nick", nick).
			Str("room", room).
			Str("reason", reason).
			Dur("duration", time.Since(s.connectedAt)).
			Msg("Session closed")
	})
}

// CloseAll disconnects every session, used during server shutdown.
func (e *Engine) CloseAll() {
	e.sessions.Range(func(key, _ any) bool {
		s := key.(*Session)
		s.Send("* Server is shutting down. Goodbye.")
		e.cleanup(s, "server_shutdown")
		return true
	})
}

// disconnectReason classifies a terminal read error for logs and metrics.
func disconnectReason(err error) string {
	var netErr net.Error
	switch {
	case errors.Is(err, io.EOF):
		return "client_disconnect"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "idle_timeout"
	default:
		return "read_error"
	}
}

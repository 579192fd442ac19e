package chat

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Router fans admitted messages out to the sender's room. Delivery is
// best-effort: a recipient whose outbound buffer is full (or whose connection
// already failed) is logged and handed to the drop callback for its own
// cleanup, and delivery to the remaining recipients continues.
//
// Ordering: a single sender's messages reach every recipient in send order,
// because each sender's read loop delivers sequentially and each recipient
// has a single write loop. No global order across senders is guaranteed.
type Router struct {
	rooms  *RoomRegistry
	logger zerolog.Logger

	// drop schedules a failed recipient's disconnect without blocking the
	// broadcast path. Set by the engine.
	drop func(s *Session, reason string)
}

func NewRouter(rooms *RoomRegistry, logger zerolog.Logger, drop func(*Session, string)) *Router {
	return &Router{
		rooms:  rooms,
		logger: logger.With().Str("component", "router").Logger(),
		drop:   drop,
	}
}

// Deliver broadcasts one chat message from sender to every other member of
// its room. The sender receives no echo. Returns the number of recipients the
// message was enqueued to.
func (rt *Router) Deliver(sender *Session, nick, text string) int {
	room := rt.rooms.RoomOf(sender)
	if room == "" {
		return 0
	}
	return rt.fanOut(room, sender, fmt.Sprintf("%s: %s", nick, text))
}

// Notice broadcasts a server notice to the named room. exclude, if non-nil,
// is skipped (used for join notices, where the joiner gets a tailored
// confirmation instead).
func (rt *Router) Notice(room string, text string, exclude *Session) int {
	return rt.fanOut(room, exclude, "* "+text)
}

func (rt *Router) fanOut(room string, exclude *Session, line string) int {
	delivered := 0
	for _, member := range rt.rooms.Members(room) {
		if member == exclude {
			continue
		}
		if member.Send(line) {
			delivered++
			continue
		}
		if member.closed() {
			// Already tearing down; its cleanup broadcasts the leave notice.
			continue
		}
		rt.logger.Warn().
			Int64("session_id", member.ID()).
			Str("room", room).
			Msg("Recipient buffer full, scheduling disconnect")
		rt.drop(member, "slow_client")
	}
	return delivered
}

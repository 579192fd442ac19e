package chat

import (
	"fmt"
	"sort"
	"sync"
)

// RoomRegistry is the process-wide room membership map. Rooms come from a
// fixed list known at startup; none are created or destroyed at runtime.
//
// Invariants held under the registry lock:
//   - a session is a member of at most one room at a time
//   - Members returns a point-in-time snapshot, so broadcast iteration never
//     races with concurrent joins and leaves
type RoomRegistry struct {
	mu       sync.RWMutex
	names    []string // published order, fixed at construction
	rooms    map[string]map[*Session]struct{}
	memberOf map[*Session]string
}

// NewRoomRegistry creates the registry with the given fixed room list.
func NewRoomRegistry(names []string) *RoomRegistry {
	r := &RoomRegistry{
		names:    append([]string(nil), names...),
		rooms:    make(map[string]map[*Session]struct{}, len(names)),
		memberOf: make(map[*Session]string),
	}
	for _, name := range r.names {
		r.rooms[name] = make(map[*Session]struct{})
	}
	return r
}

// Names returns the published room list in its fixed order.
func (r *RoomRegistry) Names() []string {
	return append([]string(nil), r.names...)
}

// Join adds s to the room at the 1-based index clients select from the
// published list. The session must not already be in a room.
func (r *RoomRegistry) Join(s *Session, index int) (string, error) {
	if index < 1 || index > len(r.names) {
		return "", fmt.Errorf("room index out of range: %d", index)
	}
	name := r.names[index-1]

	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.memberOf[s]; ok {
		return "", fmt.Errorf("session already in room %q", current)
	}
	r.rooms[name][s] = struct{}{}
	r.memberOf[s] = name
	return name, nil
}

// Leave removes s from its room and returns the room name. Idempotent:
// leaving twice, or without ever joining, returns "".
func (r *RoomRegistry) Leave(s *Session) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	name, ok := r.memberOf[s]
	if !ok {
		return ""
	}
	delete(r.memberOf, s)
	delete(r.rooms[name], s)
	return name
}

// RoomOf returns the room s currently belongs to, or "" if none.
func (r *RoomRegistry) RoomOf(s *Session) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.memberOf[s]
}

// Members returns a snapshot of the sessions currently in the named room.
func (r *RoomRegistry) Members(name string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.rooms[name]
	if !ok {
		return nil
	}
	members := make([]*Session, 0, len(set))
	for s := range set {
		members = append(members, s)
	}
	return members
}

// Occupancy returns per-room nickname lists, sorted, for the monitoring
// snapshot. Nicknames are resolved through the given registry so the two
// views stay consistent with the routing state.
func (r *RoomRegistry) Occupancy(nicknames *NicknameRegistry) map[string][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string][]string, len(r.names))
	for _, name := range r.names {
		nicks := make([]string, 0, len(r.rooms[name]))
		for s := range r.rooms[name] {
			if nick := nicknames.NickOf(s); nick != "" {
				nicks = append(nicks, nick)
			}
		}
		sort.Strings(nicks)
		out[name] = nicks
	}
	return out
}

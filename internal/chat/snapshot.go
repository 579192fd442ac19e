package chat

// Snapshot is the read-only view of online users consumed by the HTTP
// monitoring endpoint.
type Snapshot struct {
	Status      string              `json:"status"`
	UsersOnline []string            `json:"users_online"`
	Rooms       map[string][]string `json:"rooms"`
}

// Snapshot takes a momentary read lock over each registry and returns the
// current identities, flat and grouped by room. It never blocks the message
// path beyond those brief critical sections and has no side effects on chat
// state.
func (e *Engine) Snapshot() Snapshot {
	return Snapshot{
		Status:      "ok",
		UsersOnline: e.nicknames.Online(),
		Rooms:       e.rooms.Occupancy(e.nicknames),
	}
}

package chat

import (
	"sort"
	"strconv"
	"strings"
	"sync"
)

// defaultNickBase substitutes for an empty or fully non-printable candidate.
const defaultNickBase = "User"

// maxNickLen bounds the accepted nickname length in runes; longer candidates
// are truncated before the uniqueness check.
const maxNickLen = 32

// NicknameRegistry is the process-wide identity map. It guarantees that no
// two simultaneously-connected sessions ever hold the same nickname.
//
// Claim is the only mutation path for assignment and is atomic under the
// registry lock: the lookup, suffix derivation, and registration happen in a
// single critical section, closing the race where two connections request the
// same name mid-flight.
type NicknameRegistry struct {
	mu        sync.RWMutex
	byNick    map[string]*Session
	bySession map[*Session]string
}

func NewNicknameRegistry() *NicknameRegistry {
	return &NicknameRegistry{
		byNick:    make(map[string]*Session),
		bySession: make(map[*Session]string),
	}
}

// Claim registers a unique nickname for s derived from candidate and returns
// the assigned name. If the candidate is taken, an incrementing integer
// suffix is appended (bob → bob1 → bob2 …) until a free name is found.
func (r *NicknameRegistry) Claim(candidate string, s *Session) string {
	base := normalizeNick(candidate)

	r.mu.Lock()
	defer r.mu.Unlock()

	nick := base
	for i := 1; ; i++ {
		if _, taken := r.byNick[nick]; !taken {
			break
		}
		nick = base + strconv.Itoa(i)
	}
	r.byNick[nick] = s
	r.bySession[s] = nick
	return nick
}

// Release removes s's nickname and returns it. Releasing a session that holds
// no nickname is a no-op returning "".
func (r *NicknameRegistry) Release(s *Session) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	nick, ok := r.bySession[s]
	if !ok {
		return ""
	}
	delete(r.bySession, s)
	delete(r.byNick, nick)
	return nick
}

// Lookup returns the session currently holding nick, if any.
func (r *NicknameRegistry) Lookup(nick string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byNick[nick]
	return s, ok
}

// NickOf returns the nickname assigned to s, or "" if it holds none.
func (r *NicknameRegistry) NickOf(s *Session) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.bySession[s]
}

// Online returns a sorted snapshot of all assigned nicknames.
func (r *NicknameRegistry) Online() []string {
	r.mu.RLock()
	nicks := make([]string, 0, len(r.byNick))
	for nick := range r.byNick {
		nicks = append(nicks, nick)
	}
	r.mu.RUnlock()

	sort.Strings(nicks)
	return nicks
}

// Len reports the number of registered nicknames.
func (r *NicknameRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byNick)
}

func normalizeNick(candidate string) string {
	nick := strings.TrimSpace(Sanitize(candidate))
	if nick == "" {
		return defaultNickBase
	}
	runes := []rune(nick)
	if len(runes) > maxNickLen {
		nick = string(runes[:maxNickLen])
	}
	return nick
}

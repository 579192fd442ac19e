package chat

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNicknameRegistry_ClaimAndRelease(t *testing.T) {
	r := NewNicknameRegistry()
	s := &Session{}

	nick := r.Claim("bob", s)
	assert.Equal(t, "bob", nick)
	assert.Equal(t, 1, r.Len())

	got, ok := r.Lookup("bob")
	require.True(t, ok)
	assert.Same(t, s, got)
	assert.Equal(t, "bob", r.NickOf(s))

	assert.Equal(t, "bob", r.Release(s))
	assert.Equal(t, 0, r.Len())

	// Release is idempotent.
	assert.Equal(t, "", r.Release(s))
}

func TestNicknameRegistry_CollisionSuffixing(t *testing.T) {
	r := NewNicknameRegistry()

	assert.Equal(t, "bob", r.Claim("bob", &Session{}))
	assert.Equal(t, "bob1", r.Claim("bob", &Session{}))
	assert.Equal(t, "bob2", r.Claim("bob", &Session{}))

	// Releasing the base name frees it for the next claimant.
	s4 := &Session{}
	base, _ := r.Lookup("bob")
	r.Release(base)
	assert.Equal(t, "bob", r.Claim("bob", s4))
}

func TestNicknameRegistry_EmptyCandidateGetsDefault(t *testing.T) {
	r := NewNicknameRegistry()

	assert.Equal(t, "User", r.Claim("", &Session{}))
	assert.Equal(t, "User1", r.Claim("   ", &Session{}))
	assert.Equal(t, "User2", r.Claim("\x1b\x00", &Session{}))
}

func TestNicknameRegistry_CandidateSanitizedAndBounded(t *testing.T) {
	r := NewNicknameRegistry()

	assert.Equal(t, "bob", r.Claim("b\x00o\x07b", &Session{}))

	long := ""
	for i := 0; i < 10; i++ {
		long += "abcdefgh"
	}
	got := r.Claim(long, &Session{})
	assert.Len(t, got, maxNickLen)
}

func TestNicknameRegistry_ConcurrentClaimsStayUnique(t *testing.T) {
	r := NewNicknameRegistry()

	const claimants = 100
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		nicks = make(map[string]struct{}, claimants)
	)

	for i := 0; i < claimants; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			nick := r.Claim("bob", &Session{})
			mu.Lock()
			nicks[nick] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	// Every concurrent claimant of "bob" got a distinct identity.
	assert.Len(t, nicks, claimants)
	assert.Equal(t, claimants, r.Len())
	_, hasBase := nicks["bob"]
	assert.True(t, hasBase, "exactly one claimant should win the unsuffixed name")
}

func TestNicknameRegistry_OnlineSorted(t *testing.T) {
	r := NewNicknameRegistry()
	for _, n := range []string{"zoe", "alice", "bob"} {
		r.Claim(n, &Session{})
	}
	assert.Equal(t, []string{"alice", "bob", "zoe"}, r.Online())
}

func TestNicknameRegistry_ConcurrentChurn(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping stress test in short mode")
	}

	r := NewNicknameRegistry()
	const workers = 50

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s := &Session{}
				r.Claim(fmt.Sprintf("user%d", id%10), s)
				r.Release(s)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, r.Len(), "all claims churned through should be released")
}

package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRooms() *RoomRegistry {
	return NewRoomRegistry([]string{"General", "Python", "Help"})
}

func TestRoomRegistry_JoinByIndex(t *testing.T) {
	r := testRooms()
	s := &Session{}

	room, err := r.Join(s, 2)
	require.NoError(t, err)
	assert.Equal(t, "Python", room)
	assert.Equal(t, "Python", r.RoomOf(s))
	assert.Len(t, r.Members("Python"), 1)
}

func TestRoomRegistry_InvalidIndexRejected(t *testing.T) {
	r := testRooms()
	s := &Session{}

	for _, idx := range []int{0, -1, 4, 100} {
		_, err := r.Join(s, idx)
		assert.Error(t, err, "index %d must be rejected", idx)
	}
	assert.Equal(t, "", r.RoomOf(s))
}

func TestRoomRegistry_AtMostOneRoom(t *testing.T) {
	r := testRooms()
	s := &Session{}

	_, err := r.Join(s, 1)
	require.NoError(t, err)

	// A second join without leaving violates the single-room invariant.
	_, err = r.Join(s, 2)
	require.Error(t, err)
	assert.Equal(t, "General", r.RoomOf(s))
	assert.Empty(t, r.Members("Python"))
}

func TestRoomRegistry_LeaveIdempotent(t *testing.T) {
	r := testRooms()
	s := &Session{}

	_, err := r.Join(s, 1)
	require.NoError(t, err)

	assert.Equal(t, "General", r.Leave(s))
	assert.Equal(t, "", r.Leave(s))
	assert.Equal(t, "", r.Leave(&Session{}))
	assert.Empty(t, r.Members("General"))
}

func TestRoomRegistry_MembersIsSnapshot(t *testing.T) {
	r := testRooms()
	a, b := &Session{}, &Session{}

	_, err := r.Join(a, 1)
	require.NoError(t, err)
	_, err = r.Join(b, 1)
	require.NoError(t, err)

	snapshot := r.Members("General")
	r.Leave(a)

	// The snapshot taken before the leave is unaffected.
	assert.Len(t, snapshot, 2)
	assert.Len(t, r.Members("General"), 1)
}

func TestRoomRegistry_Occupancy(t *testing.T) {
	rooms := testRooms()
	nicks := NewNicknameRegistry()

	a, b, c := &Session{}, &Session{}, &Session{}
	nicks.Claim("zoe", a)
	nicks.Claim("alice", b)
	nicks.Claim("bob", c)

	_, err := rooms.Join(a, 1)
	require.NoError(t, err)
	_, err = rooms.Join(b, 1)
	require.NoError(t, err)
	_, err = rooms.Join(c, 3)
	require.NoError(t, err)

	occ := rooms.Occupancy(nicks)
	assert.Equal(t, []string{"alice", "zoe"}, occ["General"])
	assert.Empty(t, occ["Python"])
	assert.Equal(t, []string{"bob"}, occ["Help"])
}

package registry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"live-quiz-service/internal/conntest"
	"live-quiz-service/internal/domain"
)

func newRoom(t *testing.T) (*Registry, *conntest.Recorder) {
	t.Helper()
	reg := New()
	host := conntest.NewRecorder("host")
	require.NoError(t, reg.RegisterHost("123456", host))
	return reg, host
}

func TestRegisterHostRejectsDuplicateRoom(t *testing.T) {
	reg, _ := newRoom(t)
	err := reg.RegisterHost("123456", conntest.NewRecorder("other"))
	require.ErrorIs(t, err, domain.ErrDuplicateRoom)

	host, ok := reg.Host("123456")
	require.True(t, ok)
	require.Equal(t, "host", host.ID(), "host binding is immutable")
}

func TestJoinFreshThenRejoin(t *testing.T) {
	req := require.New(t)
	reg, _ := newRoom(t)
	first := conntest.NewRecorder("c1")
	second := conntest.NewRecorder("c2")

	kind, err := reg.JoinParticipant("123456", domain.Participant{ID: "u1", Name: "Alice"}, first)
	req.NoError(err)
	req.Equal(JoinFresh, kind)

	kind, err = reg.JoinParticipant("123456", domain.Participant{ID: "u1", Name: "Alice"}, second)
	req.NoError(err)
	req.Equal(JoinRejoin, kind)

	req.Len(reg.Participants("123456"), 1)
	conn, ok := reg.Conn("123456", "u1")
	req.True(ok)
	req.Equal("c2", conn.ID())
}

func TestJoinNameConflictChangesNothing(t *testing.T) {
	req := require.New(t)
	reg, _ := newRoom(t)

	_, err := reg.JoinParticipant("123456", domain.Participant{ID: "u1", Name: "Alice"}, conntest.NewRecorder("c1"))
	req.NoError(err)

	_, err = reg.JoinParticipant("123456", domain.Participant{ID: "u2", Name: "Alice"}, conntest.NewRecorder("c2"))
	req.ErrorIs(err, domain.ErrNameConflict)
	req.Len(reg.Participants("123456"), 1)
	_, bound := reg.Conn("123456", "u2")
	req.False(bound)
}

func TestJoinUnknownRoom(t *testing.T) {
	_, err := New().JoinParticipant("nope", domain.Participant{ID: "u1", Name: "A"}, conntest.NewRecorder("c"))
	require.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestConnectionClosedKeepsRosterAndAllowsReconnect(t *testing.T) {
	req := require.New(t)
	reg, _ := newRoom(t)
	c1 := conntest.NewRecorder("c1")
	_, err := reg.JoinParticipant("123456", domain.Participant{ID: "u1", Name: "Alice"}, c1)
	req.NoError(err)

	req.True(reg.OnConnectionClosed("123456", "u1", c1))
	_, bound := reg.Conn("123456", "u1")
	req.False(bound)
	req.Len(reg.Participants("123456"), 1)

	c2 := conntest.NewRecorder("c2")
	p, err := reg.Reconnect("123456", "u1", c2)
	req.NoError(err)
	req.Equal("Alice", p.Name)
	bound2, ok := reg.Conn("123456", "u1")
	req.True(ok)
	req.Equal("c2", bound2.ID())
}

func TestStaleCloseDoesNotUnbindNewConnection(t *testing.T) {
	req := require.New(t)
	reg, _ := newRoom(t)
	old := conntest.NewRecorder("old")
	fresh := conntest.NewRecorder("fresh")
	_, err := reg.JoinParticipant("123456", domain.Participant{ID: "u1", Name: "Alice"}, old)
	req.NoError(err)
	_, err = reg.Reconnect("123456", "u1", fresh)
	req.NoError(err)

	req.False(reg.OnConnectionClosed("123456", "u1", old))
	conn, ok := reg.Conn("123456", "u1")
	req.True(ok)
	req.Equal("fresh", conn.ID())
}

func TestReconnectUnknownParticipant(t *testing.T) {
	reg, _ := newRoom(t)
	_, err := reg.Reconnect("123456", "ghost", conntest.NewRecorder("c"))
	require.ErrorIs(t, err, domain.ErrParticipantNotFound)
}

func TestRemoveParticipantClosesConnection(t *testing.T) {
	req := require.New(t)
	reg, _ := newRoom(t)
	c1 := conntest.NewRecorder("c1")
	c2 := conntest.NewRecorder("c2")
	_, _ = reg.JoinParticipant("123456", domain.Participant{ID: "u1", Name: "Alice"}, c1)
	_, _ = reg.JoinParticipant("123456", domain.Participant{ID: "u2", Name: "Bob"}, c2)

	removed, err := reg.RemoveParticipant("123456", "u1")
	req.NoError(err)
	req.Equal("u1", removed.ID)
	req.False(c1.Open())
	req.True(c2.Open())
	req.Equal([]domain.Participant{{ID: "u2", Name: "Bob"}}, reg.Participants("123456"))

	_, err = reg.RemoveParticipant("123456", "u1")
	req.ErrorIs(err, domain.ErrParticipantNotFound)
}

func TestDestinationsFollowRosterOrder(t *testing.T) {
	req := require.New(t)
	reg, host := newRoom(t)
	for _, id := range []string{"u1", "u2", "u3"} {
		_, err := reg.JoinParticipant("123456", domain.Participant{ID: id, Name: "name-" + id}, conntest.NewRecorder("c-"+id))
		req.NoError(err)
	}
	reg.OnConnectionClosed("123456", "u2", nil)

	gotHost, conns := reg.Destinations("123456")
	req.Equal(host.ID(), gotHost.ID())
	req.Len(conns, 2)
	req.Equal("c-u1", conns[0].ID())
	req.Equal("c-u3", conns[1].ID())
}

func TestRemoveRoom(t *testing.T) {
	reg, _ := newRoom(t)
	reg.RemoveRoom("123456")
	_, ok := reg.Host("123456")
	require.False(t, ok)
	host, conns := reg.Destinations("123456")
	require.Nil(t, host)
	require.Empty(t, conns)
}

func TestConcurrentJoinsWithSameNameAdmitOne(t *testing.T) {
	reg, _ := newRoom(t)
	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i))
			_, err := reg.JoinParticipant("123456", domain.Participant{ID: id, Name: "Same"}, conntest.NewRecorder(id))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	ok := 0
	for err := range errs {
		if err == nil {
			ok++
		} else {
			require.ErrorIs(t, err, domain.ErrNameConflict)
		}
	}
	require.Equal(t, 1, ok)
	require.Len(t, reg.Participants("123456"), 1)
}

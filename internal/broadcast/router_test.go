package broadcast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"live-quiz-service/internal/conntest"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/protocol"
	"live-quiz-service/internal/registry"
	"live-quiz-service/internal/replay"
)

func setup(t *testing.T) (*Router, *registry.Registry, *replay.Buffer, *conntest.Recorder) {
	t.Helper()
	reg := registry.New()
	buf := replay.NewBuffer(replay.DefaultCapacity)
	host := conntest.NewRecorder("host")
	require.NoError(t, reg.RegisterHost("123456", host))
	return NewRouter(reg, buf, nil), reg, buf, host
}

func TestBroadcastReachesHostAndParticipants(t *testing.T) {
	req := require.New(t)
	router, reg, buf, host := setup(t)
	alice := conntest.NewRecorder("alice")
	bob := conntest.NewRecorder("bob")
	_, _ = reg.JoinParticipant("123456", domain.Participant{ID: "u1", Name: "Alice"}, alice)
	_, _ = reg.JoinParticipant("123456", domain.Participant{ID: "u2", Name: "Bob"}, bob)

	n := router.Broadcast("123456", protocol.NewCountdown("123456", 3*time.Second))

	req.Equal(3, n)
	req.Equal([]string{protocol.EventCountdown}, host.Types())
	req.Equal([]string{protocol.EventCountdown}, alice.Types())
	req.Equal([]string{protocol.EventCountdown}, bob.Types())
	req.Equal(1, buf.Len("123456"))
}

func TestBroadcastSkipsClosedAndUnboundConnections(t *testing.T) {
	req := require.New(t)
	router, reg, buf, host := setup(t)
	alice := conntest.NewRecorder("alice")
	bob := conntest.NewRecorder("bob")
	_, _ = reg.JoinParticipant("123456", domain.Participant{ID: "u1", Name: "Alice"}, alice)
	_, _ = reg.JoinParticipant("123456", domain.Participant{ID: "u2", Name: "Bob"}, bob)
	_ = host.Close()
	reg.OnConnectionClosed("123456", "u2", bob)

	n := router.Broadcast("123456", protocol.NewServerTime(time.Now()))

	req.Equal(1, n)
	req.Empty(host.Events())
	req.Empty(bob.Events())
	req.Len(alice.Events(), 1)
	req.Equal(1, buf.Len("123456"), "events are buffered even when nobody is listening")
}

func TestBroadcastNeverDoubleSendsToHost(t *testing.T) {
	router, reg, _, host := setup(t)
	_, _ = reg.JoinParticipant("123456", domain.Participant{ID: "u1", Name: "Alice"}, host)

	n := router.Broadcast("123456", protocol.NewServerTime(time.Now()))

	require.Equal(t, 1, n)
	require.Len(t, host.Events(), 1)
}

func TestUnicastIsNotBuffered(t *testing.T) {
	router, _, buf, host := setup(t)
	require.NoError(t, router.Unicast(host, protocol.NewServerTime(time.Now())))
	require.Len(t, host.Events(), 1)
	require.Zero(t, buf.Len("123456"))
	require.NoError(t, router.Unicast(nil, protocol.NewServerTime(time.Now())))
}

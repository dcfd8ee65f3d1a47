package group

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/SWAI-Ltd/multipass/internal/hub"
	"github.com/SWAI-Ltd/multipass/internal/proto"
	"github.com/SWAI-Ltd/multipass/internal/transport"
	"github.com/SWAI-Ltd/multipass/internal/wire"
)

type buzz struct {
	Round int `json:"round" validate:"gte=1"`
}

func (buzz) MessageType() int { return 11 }

var buzzShape = wire.ShapeOf(func() proto.Message { return &buzz{} })

func startRelay(t *testing.T) *Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	s, err := RunServer(ctx, "127.0.0.1:0", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func joinEngine(t *testing.T, relay *Server, session, secret string) (*hub.Engine, *Connector) {
	t.Helper()
	e := hub.New(hub.Config{Types: []wire.Shape{buzzShape}})
	c, err := NewConnector(e, Config{RelayAddr: relay.Addr(), Session: session, Secret: secret})
	require.NoError(t, err)
	e.Register(c)
	e.Start()
	t.Cleanup(e.Stop)
	return e, c
}

func TestGroup_MembersLearnEachOther(t *testing.T) {
	req := require.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	relay := startRelay(t)
	e1, _ := joinEngine(t, relay, "lobby", "s3cret")
	e2, c2 := joinEngine(t, relay, "lobby", "s3cret")
	p1, p2 := e1.LocalParticipant(), e2.LocalParticipant()

	// Given both joined the same session
	req.Eventually(func() bool { return len(relay.Members("lobby")) == 2 }, 5*time.Second, 10*time.Millisecond)

	// Then the hellos carried each roster across
	req.Eventually(func() bool {
		return e1.Store().IsRemote(p2) && e2.Store().IsRemote(p1)
	}, 5*time.Second, 10*time.Millisecond)
	req.Len(c2.Members(), 2)

	// And messages reach the other member
	msgs := e2.Messages(ctx)
	req.NoError(e1.Send(&buzz{Round: 3}))
	req.Eventually(func() bool {
		select {
		case r := <-msgs:
			return r.TypeID == 11 && r.Message.(*buzz).Round == 3
		default:
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)

	// When e2 leaves, e1 forgets it
	c2.Stop()
	req.Eventually(func() bool { return !e1.Store().IsRemote(p2) }, 5*time.Second, 10*time.Millisecond)
	req.Eventually(func() bool { return len(relay.Members("lobby")) == 1 }, 5*time.Second, 10*time.Millisecond)
}

func TestGroup_SessionsAreIsolated(t *testing.T) {
	req := require.New(t)
	relay := startRelay(t)
	e1, _ := joinEngine(t, relay, "red", "")
	e2, _ := joinEngine(t, relay, "blue", "")
	e3, _ := joinEngine(t, relay, "red", "")

	req.Eventually(func() bool { return e1.Store().IsRemote(e3.LocalParticipant()) }, 5*time.Second, 10*time.Millisecond)
	req.False(e1.Store().IsRemote(e2.LocalParticipant()))
	req.False(e2.Store().IsRemote(e1.LocalParticipant()))
	req.Len(relay.Members("blue"), 1)
}

func TestGroup_WrongSecretLearnsNothing(t *testing.T) {
	req := require.New(t)
	relay := startRelay(t)
	e1, _ := joinEngine(t, relay, "lobby", "right")
	e2, _ := joinEngine(t, relay, "lobby", "right")
	e3, _ := joinEngine(t, relay, "lobby", "wrong")

	req.Eventually(func() bool { return len(relay.Members("lobby")) == 3 }, 5*time.Second, 10*time.Millisecond)
	req.Eventually(func() bool { return e1.Store().IsRemote(e2.LocalParticipant()) }, 5*time.Second, 10*time.Millisecond)
	req.Never(func() bool {
		return e3.Store().IsRemote(e1.LocalParticipant()) || e1.Store().IsRemote(e3.LocalParticipant())
	}, 300*time.Millisecond, 20*time.Millisecond)
}

func TestConnector_Lifecycle(t *testing.T) {
	req := require.New(t)
	e := hub.New(hub.Config{})
	c, err := NewConnector(e, Config{RelayAddr: "127.0.0.1:1", Session: "x"})
	req.NoError(err)

	c.Stop()
	c.Send([]byte("dropped"), true)
	c.Start()
	c.Start()
	c.Stop()
	c.Stop()
	req.Empty(c.Members())
}

func joinRaw(t *testing.T, relay *Server, session string, participant uuid.UUID) *transport.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := transport.Dial(ctx, relay.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, conn.SendFrame(&proto.Frame{
		Type: proto.FrameTypeJoin,
		Join: &proto.JoinFrame{Session: session, Participant: participant},
	}))
	var f proto.Frame
	for {
		require.NoError(t, conn.RecvFrame(&f))
		if f.Type == proto.FrameTypeAck {
			return conn
		}
	}
}

func TestServer_RejoinReplacesStaleMember(t *testing.T) {
	req := require.New(t)
	relay := startRelay(t)
	p := uuid.New()

	// Given a participant joined on one connection
	joinRaw(t, relay, "lobby", p)
	req.Equal([]uuid.UUID{p}, relay.Members("lobby"))

	// When it joins again on a second connection before the first fails
	joinRaw(t, relay, "lobby", p)

	// Then it is listed once
	req.Equal([]uuid.UUID{p}, relay.Members("lobby"))
}

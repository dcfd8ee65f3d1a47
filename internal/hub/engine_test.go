package hub

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/SWAI-Ltd/multipass/internal/codec"
	"github.com/SWAI-Ltd/multipass/internal/connector"
	"github.com/SWAI-Ltd/multipass/internal/connector/mocks"
	"github.com/SWAI-Ltd/multipass/internal/pipe"
	"github.com/SWAI-Ltd/multipass/internal/proto"
	"github.com/SWAI-Ltd/multipass/internal/registry"
	"github.com/SWAI-Ltd/multipass/internal/roster"
	"github.com/SWAI-Ltd/multipass/internal/wire"
)

type point struct {
	X int `json:"x" validate:"required"`
}

func (point) MessageType() int { return 42 }

type chat struct {
	Text string `json:"text" validate:"required"`
}

func (chat) MessageType() int { return 42 }

type typeOne struct {
	A string `json:"a" validate:"required"`
}

func (typeOne) MessageType() int { return 1 }

type typeTwo struct {
	B string `json:"b" validate:"required"`
}

func (typeTwo) MessageType() int { return 2 }

var (
	pointShape = wire.ShapeOf(func() proto.Message { return &point{} })
	oneShape   = wire.ShapeOf(func() proto.Message { return &typeOne{} })
	twoShape   = wire.ShapeOf(func() proto.Message { return &typeTwo{} })
)

func mockConnector(ctrl *gomock.Controller) (*mocks.MockConnector, connector.ID) {
	m := mocks.NewMockConnector(ctrl)
	id := connector.NewID()
	m.EXPECT().ID().Return(id).AnyTimes()
	return m, id
}

func encode(t *testing.T, msg proto.Message, from uuid.UUID) []byte {
	t.Helper()
	data, err := wire.Encode(codec.JSON(), msg, from)
	require.NoError(t, err)
	return data
}

func TestEngine_NewAddsLocalManaged(t *testing.T) {
	req := require.New(t)
	local := uuid.New()
	e := New(Config{LocalID: local})

	req.Equal(local, e.LocalID())
	req.True(e.Store().IsManaged(roster.FromID(local)))
	req.Equal([]roster.Participant{roster.FromID(local)}, e.Participants())

	// A zero id gets a random one
	req.NotEqual(uuid.Nil, New(Config{}).LocalID())
}

func TestEngine_FloodExcludesSource(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	a, _ := mockConnector(ctrl)
	b, _ := mockConnector(ctrl)
	c, _ := mockConnector(ctrl)

	e := New(Config{Types: []wire.Shape{pointShape}})
	e.Register(a, b, c)
	data := encode(t, &point{X: 1}, uuid.New())

	// Then only b and c get the original bytes, reliably
	b.EXPECT().Send(data, true).Times(1)
	c.EXPECT().Send(data, true).Times(1)

	// When a message arrives via a
	req.NoError(e.Claim(data, a, nil))
}

func TestEngine_RegisterIgnoresDuplicates(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	a, _ := mockConnector(ctrl)
	e := New(Config{})

	e.Register(a, a, nil)
	e.Register(a)

	req.Len(e.Connectors(), 1)
}

func TestEngine_RosterMerge(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	src, _ := mockConnector(ctrl)
	e := New(Config{})
	e.Register(src)
	x, y, z := uuid.New(), uuid.New(), uuid.New()

	// When y announces x, y and z
	data := encode(t, &proto.ParticipantList{Participants: []uuid.UUID{x, y, z}}, y)
	var seen []roster.Participant
	req.NoError(e.Claim(data, src, func(p roster.Participant) { seen = append(seen, p) }))

	// Then all three are remote, and the transport learned about y only
	req.ElementsMatch([]roster.Participant{roster.FromID(x), roster.FromID(y), roster.FromID(z)}, e.Store().Remote())
	req.Equal([]roster.Participant{roster.FromID(y)}, seen)
	req.Len(e.Participants(), 4)
}

func TestEngine_PlainMessageMergesSender(t *testing.T) {
	req := require.New(t)
	e := New(Config{Types: []wire.Shape{pointShape}})
	sender := uuid.New()

	req.NoError(e.Claim(encode(t, &point{X: 3}, sender), nil, nil))

	req.Equal([]roster.Participant{roster.FromID(sender)}, e.Store().Remote())
}

func TestEngine_DuplicateTypesDoNotCrash(t *testing.T) {
	req := require.New(t)
	core, logs := observer.New(zap.WarnLevel)

	// Given two application types sharing id 42
	e := New(Config{
		Types:  []wire.Shape{pointShape, wire.ShapeOf(func() proto.Message { return &chat{} })},
		Logger: zap.New(core),
	})

	// Then the conflict is reported and the first type still decodes
	req.Equal([]int{42}, e.Registry().Conflicts())
	entries := logs.FilterField(zap.Error(registry.ErrDuplicateMessageType)).All()
	req.Len(entries, 1)
	req.NoError(e.Claim(encode(t, &point{X: 1}, uuid.New()), nil, nil))
	req.Error(e.Claim(encode(t, &chat{Text: "hi"}, uuid.New()), nil, nil))
}

func TestEngine_SendReachesAllConnectors(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	a, _ := mockConnector(ctrl)
	b, _ := mockConnector(ctrl)
	local := uuid.New()
	e := New(Config{LocalID: local, Types: []wire.Shape{pointShape}})
	e.Register(a, b)
	want := encode(t, &point{X: 5}, local)

	a.EXPECT().Send(want, true).Times(1)
	b.EXPECT().Send(want, true).Times(1)

	req.NoError(e.Send(&point{X: 5}))
}

func TestEngine_SendFromUsesGivenSender(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	a, _ := mockConnector(ctrl)
	e := New(Config{Types: []wire.Shape{pointShape}})
	e.Register(a)
	pad := roster.New()

	a.EXPECT().Send(gomock.Any(), true).Do(func(data []byte, _ bool) {
		h, _, err := wire.ParseHeader(data)
		req.NoError(err)
		req.Equal(pad.ID, h.From)
		req.Equal(42, h.MessageType)
	})

	req.NoError(e.SendFrom(&point{X: 5}, pad))
	req.Error(e.Send(nil))
}

func TestEngine_DecodeFailureIsNotRelayed(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	a, _ := mockConnector(ctrl)
	b, _ := mockConnector(ctrl)
	e := New(Config{Types: []wire.Shape{pointShape}})
	e.Register(a, b)

	// No Send expectations: gomock fails the test on any relay
	e.Receive([]byte("not a message"), a, nil)
	e.Receive(encode(t, &typeOne{A: "x"}, uuid.New()), a, nil)

	err := e.Claim(encode(t, &typeOne{A: "x"}, uuid.New()), a, nil)
	req.ErrorIs(err, wire.ErrUnrecognizedMessage)
	req.Empty(e.Store().Remote())
}

func TestEngine_HeaderWithoutSenderIsRejected(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	a, _ := mockConnector(ctrl)
	b, _ := mockConnector(ctrl)
	e := New(Config{Types: []wire.Shape{pointShape}})
	e.Register(a, b)

	// Given a header with no sender, when claimed
	err := e.Claim([]byte(`{"messageType":42,"size":7}{"x":1}`), a, nil)

	// Then it is malformed, nobody joins the roster and b gets nothing
	req.ErrorIs(err, wire.ErrMalformedHeader)
	req.Empty(e.Store().Remote())
}

func TestEngine_MessagesLatestValue(t *testing.T) {
	req := require.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e := New(Config{Types: []wire.Shape{pointShape}})
	sender := uuid.New()

	req.NoError(e.Claim(encode(t, &point{X: 1}, sender), nil, nil))
	req.NoError(e.Claim(encode(t, &point{X: 2}, sender), nil, nil))

	// A late subscriber only sees the newest message
	got := <-e.Messages(ctx)
	req.Equal(42, got.TypeID)
	req.Equal(&point{X: 2}, got.Message)
	req.Equal(roster.FromID(sender), got.From)
}

func TestEngine_Metrics(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	a, _ := mockConnector(ctrl)
	b, _ := mockConnector(ctrl)
	m := NewMetrics(prometheus.NewRegistry())
	e := New(Config{Types: []wire.Shape{pointShape}, Metrics: m})
	e.Register(a, b)
	b.EXPECT().Send(gomock.Any(), true).Times(2)
	a.EXPECT().Send(gomock.Any(), true).Times(1)

	e.Receive(encode(t, &point{X: 1}, uuid.New()), a, nil)
	e.Receive([]byte("{}"), a, nil)
	req.NoError(e.Send(&point{X: 1}))

	req.Equal(1.0, testutil.ToFloat64(m.received.WithLabelValues("claimed")))
	req.Equal(1.0, testutil.ToFloat64(m.received.WithLabelValues("rejected")))
	req.Equal(1.0, testutil.ToFloat64(m.relays))
	req.Equal(2.0, testutil.ToFloat64(m.sends))
	req.Equal(2.0, testutil.ToFloat64(m.size))
}

func TestHelloMessage(t *testing.T) {
	req := require.New(t)
	local := uuid.New()
	e := New(Config{LocalID: local})
	pad := roster.New()
	e.AddManaged(pad)
	e.AddRemote(roster.New())

	first, err := e.HelloMessage(false)
	req.NoError(err)
	again, err := e.HelloMessage(true)
	req.NoError(err)
	req.Equal(first, again)

	typeID, msg, from, err := wire.Decode(codec.JSON(), first, []wire.Shape{registry.ParticipantListShape})
	req.NoError(err)
	req.Equal(proto.ParticipantListType, typeID)
	req.Equal(local, from)
	req.ElementsMatch([]uuid.UUID{local, pad.ID}, msg.(*proto.ParticipantList).ActualParticipants())
}

func TestMetrics_SharedRegistry(t *testing.T) {
	req := require.New(t)
	reg := prometheus.NewRegistry()

	// Two sets on one registry share the collectors
	var m1, m2 *Metrics
	req.NotPanics(func() {
		m1 = NewMetrics(reg)
		m2 = NewMetrics(reg)
	})
	m1.sent()
	m2.sent()
	req.Equal(2.0, testutil.ToFloat64(m1.sends))
	req.Equal(2.0, testutil.ToFloat64(m2.sends))

	m1.claimed()
	m2.claimed()
	req.Equal(2.0, testutil.ToFloat64(m2.received.WithLabelValues("claimed")))
}

func TestEngine_EndToEndOverPipe(t *testing.T) {
	req := require.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a1, a2 := uuid.New(), uuid.New()
	e1 := New(Config{LocalID: a1, Types: []wire.Shape{pointShape}})
	e2 := New(Config{LocalID: a2, Types: []wire.Shape{pointShape}})
	c1, c2 := pipe.Pair(e1, e2, nil)
	e1.Register(c1)
	e2.Register(c2)
	e1.Start()
	e2.Start()
	defer e1.Stop()
	defer e2.Stop()

	// Given the hellos have been exchanged
	req.Eventually(func() bool {
		return e2.Store().IsRemote(roster.FromID(a1)) && e1.Store().IsRemote(roster.FromID(a2))
	}, time.Second, 5*time.Millisecond)
	msgs := e2.Messages(ctx)

	// When E1 sends {x:1}
	req.NoError(e1.Send(&point{X: 1}))

	// Then E2 yields it exactly once, from A1
	var got []Received
	deadline := time.After(300 * time.Millisecond)
collect:
	for {
		select {
		case r := <-msgs:
			if r.TypeID == 42 {
				got = append(got, r)
			}
		case <-deadline:
			break collect
		}
	}
	req.Len(got, 1)
	req.Equal(&point{X: 1}, got[0].Message)
	req.Equal(roster.FromID(a1), got[0].From)
	req.True(e2.Store().IsRemote(roster.FromID(a1)))

	// And dropping the link removes A1 from E2's remote set
	c1.Stop()
	req.Eventually(func() bool { return !e2.Store().IsRemote(roster.FromID(a1)) }, time.Second, 5*time.Millisecond)
}

func TestDirectory_Demux(t *testing.T) {
	req := require.New(t)
	dir := NewDirectory()
	ones := New(Config{Types: []wire.Shape{oneShape}, Directory: dir})
	twos := New(Config{Types: []wire.Shape{twoShape}, Directory: dir})
	sender := New(Config{Types: []wire.Shape{oneShape, twoShape}})
	req.Equal(2, dir.Len())

	// Given both engines share one connector
	out, shared := pipe.Pair(sender, ones, nil)
	sender.Register(out)
	ones.Register(shared)
	twos.Register(shared)
	sender.Start()
	ones.Start()
	defer sender.Stop()
	defer ones.Stop()

	// When a type 2 message arrives
	req.NoError(sender.Send(&typeTwo{B: "two"}))

	// Then only the engine owning type 2 claims it
	req.Eventually(func() bool {
		r, _ := twos.messages.Load()
		return r.TypeID == 2
	}, time.Second, 5*time.Millisecond)
	r, _ := ones.messages.Load()
	req.NotEqual(2, r.TypeID)

	// And type 1 falls through to the older engine
	req.NoError(sender.Send(&typeOne{A: "one"}))
	req.Eventually(func() bool {
		r, _ := ones.messages.Load()
		return r.TypeID == 1
	}, time.Second, 5*time.Millisecond)
	r, _ = twos.messages.Load()
	req.Equal(2, r.TypeID)
}

func TestDirectory_Unclaimed(t *testing.T) {
	req := require.New(t)
	dir := NewDirectory()
	req.ErrorIs(dir.Dispatch([]byte("x"), nil, nil), ErrUnclaimed)

	e := New(Config{Directory: dir})
	err := dir.Dispatch([]byte("garbage"), nil, nil)
	req.True(errors.Is(err, ErrUnclaimed))
	req.True(errors.Is(err, wire.ErrMalformedHeader))

	e.Close()
	req.Equal(0, dir.Len())
}

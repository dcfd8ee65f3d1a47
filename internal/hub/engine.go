// Package hub is the relay engine: it decodes what connectors hand it, keeps
// the roster current, publishes messages to the application and floods the
// original bytes to every other connector.
package hub

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/SWAI-Ltd/multipass/internal/codec"
	"github.com/SWAI-Ltd/multipass/internal/connector"
	"github.com/SWAI-Ltd/multipass/internal/observe"
	"github.com/SWAI-Ltd/multipass/internal/proto"
	"github.com/SWAI-Ltd/multipass/internal/registry"
	"github.com/SWAI-Ltd/multipass/internal/roster"
	"github.com/SWAI-Ltd/multipass/internal/wire"
)

// Config configures an Engine. Every field is optional.
type Config struct {
	// LocalID is the local participant. A random id is used when zero.
	LocalID uuid.UUID
	// Types are the application message shapes this engine understands.
	Types []wire.Shape
	// Codec serializes payloads. JSON when nil.
	Codec codec.Codec
	// Directory, when set, lets several engines share connectors.
	Directory *Directory
	Logger    *zap.Logger
	Metrics   *Metrics
}

// Received is a decoded application message and its sender.
type Received struct {
	TypeID  int
	Message proto.Message
	From    roster.Participant
}

// Engine is safe for concurrent use by connectors and the application.
type Engine struct {
	log      *zap.Logger
	local    roster.Participant
	codec    codec.Codec
	reg      *registry.Registry
	store    *roster.Store
	dir      *Directory
	metrics  *Metrics
	messages *observe.Value[Received]

	mu    sync.RWMutex
	conns []connector.Connector
}

var _ connector.Host = (*Engine)(nil)

// New builds an engine, adds the local participant to the managed set and
// joins cfg.Directory if one is given.
func New(cfg Config) *Engine {
	log := cfg.Logger
	if log == nil {
		log = zap.L()
	}
	id := cfg.LocalID
	if id == uuid.Nil {
		id = uuid.New()
	}
	c := cfg.Codec
	if c == nil {
		c = codec.JSON()
	}
	e := &Engine{
		log:      log.With(zap.String("local", id.String())),
		local:    roster.FromID(id),
		codec:    c,
		reg:      registry.New(log, cfg.Types...),
		store:    roster.NewStore(),
		dir:      cfg.Directory,
		metrics:  cfg.Metrics,
		messages: observe.NewValue[Received](),
	}
	e.store.AddManaged(e.local)
	if e.dir != nil {
		e.dir.add(e)
	}
	return e
}

// Register attaches connectors. A connector already attached is ignored.
func (e *Engine) Register(cs ...connector.Connector) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, c := range cs {
		if c == nil {
			continue
		}
		id := c.ID()
		if lo.ContainsBy(e.conns, func(x connector.Connector) bool { return x.ID() == id }) {
			continue
		}
		e.conns = append(e.conns, c)
	}
}

// Connectors returns the attached connectors in registration order.
func (e *Engine) Connectors() []connector.Connector {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]connector.Connector(nil), e.conns...)
}

// Start starts every attached connector.
func (e *Engine) Start() {
	for _, c := range e.Connectors() {
		c.Start()
	}
}

// Stop stops every attached connector.
func (e *Engine) Stop() {
	for _, c := range e.Connectors() {
		c.Stop()
	}
}

// Close stops the connectors and leaves the directory.
func (e *Engine) Close() {
	e.Stop()
	if e.dir != nil {
		e.dir.remove(e)
	}
}

// Receive is what connectors call with inbound bytes. Decode failures are
// expected when engines share a connector and are only logged at debug.
func (e *Engine) Receive(data []byte, src connector.Connector, observed func(roster.Participant)) {
	var err error
	if e.dir != nil {
		err = e.dir.Dispatch(data, src, observed)
	} else {
		err = e.Claim(data, src, observed)
	}
	if err != nil {
		e.log.Debug("message discarded", zap.Int("bytes", len(data)), zap.Error(err))
	}
}

// Claim decodes data and, on success, merges the sender into the roster,
// reports it through observed, publishes the message and relays the original
// bytes to every connector other than src. Nothing happens when decoding fails.
func (e *Engine) Claim(data []byte, src connector.Connector, observed func(roster.Participant)) error {
	h, payload, err := wire.ParseHeader(data)
	if err != nil {
		e.metrics.rejected()
		return err
	}
	typeID, msg, err := wire.DecodePayload(e.codec, h, payload, e.reg.Candidates(h.MessageType))
	if err != nil {
		e.metrics.rejected()
		return err
	}
	e.metrics.claimed()

	sender := roster.FromID(h.From)
	if list, ok := asParticipantList(msg); ok {
		ps := lo.Map(list.ActualParticipants(), func(id uuid.UUID, _ int) roster.Participant { return roster.FromID(id) })
		e.store.AddRemote(append(ps, sender)...)
	} else {
		e.store.AddRemote(sender)
	}
	e.metrics.roster(len(e.store.All()))

	if observed != nil {
		observed(sender)
	}
	e.messages.Publish(Received{TypeID: typeID, Message: msg, From: sender})

	e.relay(data, src)
	return nil
}

func (e *Engine) relay(data []byte, src connector.Connector) {
	for _, c := range e.Connectors() {
		if src != nil && c.ID() == src.ID() {
			continue
		}
		c.Send(data, true)
		e.metrics.relayed()
	}
}

// Send encodes msg as coming from the local participant and sends it to every
// connector.
func (e *Engine) Send(msg proto.Message) error {
	return e.SendFrom(msg, e.local)
}

// SendFrom encodes msg with from as sender and sends it to every connector.
func (e *Engine) SendFrom(msg proto.Message, from roster.Participant) error {
	data, err := wire.Encode(e.codec, msg, from.ID)
	if err != nil {
		return err
	}
	for _, c := range e.Connectors() {
		c.Send(data, true)
		e.metrics.sent()
	}
	return nil
}

// Messages streams decoded messages. A slow reader only sees the newest one.
func (e *Engine) Messages(ctx context.Context) <-chan Received {
	return e.messages.Subscribe(ctx)
}

func (e *Engine) AddManaged(p roster.Participant)    { e.store.AddManaged(p) }
func (e *Engine) RemoveManaged(p roster.Participant) { e.store.RemoveManaged(p) }
func (e *Engine) AddRemote(ps ...roster.Participant) { e.store.AddRemote(ps...) }
func (e *Engine) RemoveRemote(p roster.Participant)  { e.store.RemoveRemote(p) }

// Participants returns the merged roster.
func (e *Engine) Participants() []roster.Participant { return e.store.All() }

// Updates streams the merged roster.
func (e *Engine) Updates(ctx context.Context) <-chan []roster.Participant {
	return e.store.Updates(ctx)
}

func (e *Engine) Store() *roster.Store                 { return e.store }
func (e *Engine) LocalParticipant() roster.Participant { return e.local }
func (e *Engine) LocalID() uuid.UUID                   { return e.local.ID }
func (e *Engine) Registry() *registry.Registry         { return e.reg }
func (e *Engine) Logger() *zap.Logger                  { return e.log }

func asParticipantList(m proto.Message) (*proto.ParticipantList, bool) {
	switch v := m.(type) {
	case *proto.ParticipantList:
		return v, true
	case proto.ParticipantList:
		return &v, true
	}
	return nil, false
}

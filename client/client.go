// Package client is the multipass SDK: configure the message types and the
// transports once, then send and receive typed messages addressed to
// participants without caring which transport carries them.
package client

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/SWAI-Ltd/multipass/internal/codec"
	"github.com/SWAI-Ltd/multipass/internal/config"
	"github.com/SWAI-Ltd/multipass/internal/connector"
	"github.com/SWAI-Ltd/multipass/internal/controller"
	"github.com/SWAI-Ltd/multipass/internal/group"
	"github.com/SWAI-Ltd/multipass/internal/hub"
	"github.com/SWAI-Ltd/multipass/internal/mesh"
	"github.com/SWAI-Ltd/multipass/internal/proto"
	"github.com/SWAI-Ltd/multipass/internal/roster"
	"github.com/SWAI-Ltd/multipass/internal/touchscreen"
	"github.com/SWAI-Ltd/multipass/internal/wire"
)

// ErrClosed is returned when using a client after Close.
var ErrClosed = errors.New("client closed")

// ErrNoMesh is returned by mesh operations when no mesh is configured.
var ErrNoMesh = errors.New("mesh not configured")

type (
	// Message is implemented by every application message.
	Message = proto.Message
	// Shape tells the client how to decode one message type.
	Shape = wire.Shape
	// Participant is a player, local or remote.
	Participant = roster.Participant
	// Entry is a participant with its display kind.
	Entry = roster.Entry
	// Received is a decoded message and its sender.
	Received = hub.Received
	// Device is a game controller; ControllerSource enumerates them.
	Device           = controller.Device
	ControllerSource = controller.Source
)

// ShapeOf describes the message type newFn constructs.
func ShapeOf(newFn func() Message) Shape { return wire.ShapeOf(newFn) }

// Config configures the client. The zero value gives a single touchscreen
// player per New's defaults and no network transports.
type Config struct {
	// LocalID is the local participant; random when zero.
	LocalID uuid.UUID
	// Types are the application messages to understand.
	Types []Shape
	// Codec is "json" (default) or "cbor".
	Codec string

	// TouchscreenLimit is the number of local touch players; the local
	// participant takes the first slot. Zero leaves the slots uncapped and the
	// local participant off the touchscreen.
	TouchscreenLimit int
	// ControllerLimit caps game controller players. Zero disables them.
	ControllerLimit int
	Controllers     ControllerSource

	// MeshService enables the LAN mesh under this mDNS service type.
	MeshService      string
	MeshAddr         string
	MeshManual       bool // wait for StartMesh instead of listening at once
	DisableDiscovery bool

	// GroupSession joins a relay-backed session at GroupRelayAddr.
	GroupRelayAddr string
	GroupSession   string
	GroupSecret    string

	Logger  *zap.Logger
	Metrics prometheus.Registerer
}

// FromConfig maps loaded configuration onto a Config. Types and Controllers
// are left for the caller.
func FromConfig(c *config.Config, localID uuid.UUID) Config {
	return Config{
		LocalID:          localID,
		Codec:            c.Messages.Codec,
		TouchscreenLimit: c.LocalPlayers.Touchscreen,
		ControllerLimit:  c.LocalPlayers.Controllers,
		MeshService:      c.Mesh.ServiceName,
		MeshAddr:         c.Mesh.Addr,
		MeshManual:       c.Mesh.Listening == mesh.ListenManual,
		DisableDiscovery: c.Mesh.DisableDiscovery,
		GroupRelayAddr:   c.Group.RelayAddr,
		GroupSession:     c.Group.Session,
		GroupSecret:      c.Group.Secret,
	}
}

// Client is the developer-facing handle.
type Client struct {
	engine *hub.Engine
	log    *zap.Logger

	touch       *touchscreen.Connector
	controllers *controller.Connector
	mesh        *mesh.Node
	group       *group.Connector

	mu     sync.Mutex
	closed bool
}

// New builds the engine and the configured connectors. Network connectors
// other than a manual mesh start immediately.
func New(cfg Config) (*Client, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.L()
	}
	c, err := codec.ByName(cfg.Codec)
	if err != nil {
		return nil, err
	}
	var metrics *hub.Metrics
	if cfg.Metrics != nil {
		metrics = hub.NewMetrics(cfg.Metrics)
	}
	cl := &Client{log: log}
	cl.engine = hub.New(hub.Config{
		LocalID: cfg.LocalID,
		Types:   cfg.Types,
		Codec:   c,
		Logger:  log,
		Metrics: metrics,
	})

	cl.touch = touchscreen.New(cl.engine, cfg.TouchscreenLimit, log)
	if cfg.TouchscreenLimit > 0 {
		if _, err := cl.touch.AddParticipant(cl.engine.LocalID()); err != nil {
			return nil, err
		}
	}
	conns := []connector.Connector{cl.touch}

	if cfg.GroupSession != "" {
		cl.group, err = group.NewConnector(cl.engine, group.Config{
			RelayAddr: cfg.GroupRelayAddr,
			Session:   cfg.GroupSession,
			Secret:    cfg.GroupSecret,
			Logger:    log,
		})
		if err != nil {
			return nil, err
		}
		conns = append(conns, cl.group)
	}

	if cfg.ControllerLimit > 0 {
		src := cfg.Controllers
		if src == nil {
			src = controller.NewChanSource()
		}
		cl.controllers = controller.New(cl.engine, src, cfg.ControllerLimit, log)
		conns = append(conns, cl.controllers)
	}

	if cfg.MeshService != "" {
		cl.mesh = mesh.NewNode(cl.engine, mesh.Config{
			Service:          cfg.MeshService,
			Addr:             cfg.MeshAddr,
			DisableDiscovery: cfg.DisableDiscovery,
			Logger:           log,
		})
		conns = append(conns, cl.mesh)
	}

	cl.engine.Register(conns...)
	if cl.group != nil {
		cl.group.Start()
	}
	if cl.controllers != nil {
		cl.controllers.Start()
	}
	if cl.mesh != nil && !cfg.MeshManual {
		cl.mesh.Start()
	}
	return cl, nil
}

func (c *Client) live() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return nil
}

// Start starts every connector, including a manual mesh.
func (c *Client) Start() error {
	if err := c.live(); err != nil {
		return err
	}
	c.engine.Start()
	return nil
}

// Stop stops every connector. The client can be started again.
func (c *Client) Stop() error {
	if err := c.live(); err != nil {
		return err
	}
	c.engine.Stop()
	return nil
}

// Send delivers msg from the local participant.
func (c *Client) Send(msg Message) error {
	if err := c.live(); err != nil {
		return err
	}
	return c.engine.Send(msg)
}

// SendFrom delivers msg on behalf of a managed participant.
func (c *Client) SendFrom(msg Message, from Participant) error {
	if err := c.live(); err != nil {
		return err
	}
	return c.engine.SendFrom(msg, from)
}

// Messages streams received messages until ctx is done. A slow reader only
// sees the newest.
func (c *Client) Messages(ctx context.Context) <-chan Received { return c.engine.Messages(ctx) }

// Participants returns everyone currently in the roster.
func (c *Client) Participants() []Participant { return c.engine.Participants() }

// Updates streams the roster until ctx is done.
func (c *Client) Updates(ctx context.Context) <-chan []Participant { return c.engine.Updates(ctx) }

// Entries returns the roster with display kinds; an id that is both local
// and remote shows as remote.
func (c *Client) Entries() []Entry { return c.engine.Store().Entries() }

// IsLocal reports whether p plays on this device.
func (c *Client) IsLocal(p Participant) bool { return c.engine.Store().IsManaged(p) }

// LocalParticipant returns the local participant.
func (c *Client) LocalParticipant() Participant { return c.engine.LocalParticipant() }

// AddTouchParticipant claims a touchscreen slot, for a fresh id when id is zero.
func (c *Client) AddTouchParticipant(id uuid.UUID) (Participant, error) {
	if err := c.live(); err != nil {
		return Participant{}, err
	}
	return c.touch.AddParticipant(id)
}

// RemoveTouchParticipant frees p's touchscreen slot.
func (c *Client) RemoveTouchParticipant(p Participant) { c.touch.RemoveParticipant(p) }

// StartMesh starts listening on the mesh when it was configured as manual.
func (c *Client) StartMesh() error {
	if err := c.live(); err != nil {
		return err
	}
	if c.mesh == nil {
		return ErrNoMesh
	}
	c.mesh.Start()
	return nil
}

// Connect invites a mesh peer at addr directly.
func (c *Client) Connect(ctx context.Context, addr string) error {
	if err := c.live(); err != nil {
		return err
	}
	if c.mesh == nil {
		return ErrNoMesh
	}
	return c.mesh.Connect(ctx, addr)
}

// MeshAddr returns the mesh listen address, or "" when not listening.
func (c *Client) MeshAddr() string {
	if c.mesh == nil {
		return ""
	}
	return c.mesh.Addr()
}

// Engine exposes the relay engine for callers inside this module.
func (c *Client) Engine() *hub.Engine { return c.engine }

// Close stops every connector. Further calls return ErrClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	c.engine.Close()
	return nil
}

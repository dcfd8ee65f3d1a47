package group

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/SWAI-Ltd/multipass/internal/connector"
	"github.com/SWAI-Ltd/multipass/internal/crypto"
	"github.com/SWAI-Ltd/multipass/internal/proto"
	"github.com/SWAI-Ltd/multipass/internal/roster"
	"github.com/SWAI-Ltd/multipass/internal/transport"
)

const (
	sendQueue     = 64
	dialTimeout   = 10 * time.Second
	minRetryDelay = 250 * time.Millisecond
	maxRetryDelay = 10 * time.Second
)

// Config for Connector.
type Config struct {
	RelayAddr string
	Session   string
	// Secret, when set, seals every payload so the relay cannot read it.
	Secret string
	Logger *zap.Logger
}

// Connector implements connector.Connector for one group session. It keeps
// reconnecting to the relay until stopped.
type Connector struct {
	id   connector.ID
	host connector.Host
	cfg  Config
	key  *[crypto.KeySize]byte
	log  *zap.Logger
	out  chan []byte

	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	conn     *transport.Conn
	members  []uuid.UUID
	observed map[uuid.UUID]roster.Participant
}

// NewConnector validates cfg and derives the session key.
func NewConnector(host connector.Host, cfg Config) (*Connector, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.L()
	}
	c := &Connector{
		id:       connector.NewID(),
		host:     host,
		cfg:      cfg,
		out:      make(chan []byte, sendQueue),
		observed: make(map[uuid.UUID]roster.Participant),
	}
	c.log = log.With(zap.String("connector", c.id.String()), zap.String("kind", "group"), zap.String("session", cfg.Session))
	if cfg.Secret != "" {
		key, err := crypto.SessionKey(cfg.Secret, cfg.Session)
		if err != nil {
			return nil, err
		}
		c.key = key
	}
	return c, nil
}

func (c *Connector) ID() connector.ID { return c.id }

// Send queues data for the session. The relay path is reliable either way.
func (c *Connector) Send(data []byte, _ bool) {
	c.mu.Lock()
	joined := c.conn != nil
	c.mu.Unlock()
	if !joined {
		c.log.Debug("not joined, dropping payload", zap.Int("bytes", len(data)))
		return
	}
	select {
	case c.out <- data:
	default:
		c.log.Warn("group queue full, dropping payload", zap.Int("bytes", len(data)))
	}
}

// Start joins the session in the background.
func (c *Connector) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.run(ctx, c.done)
}

// Stop leaves the session.
func (c *Connector) Stop() {
	c.mu.Lock()
	cancel, done, conn := c.cancel, c.done, c.conn
	c.cancel, c.done = nil, nil
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	if conn != nil {
		_ = conn.SendFrame(&proto.Frame{Type: proto.FrameTypeLeave, Leave: &proto.LeaveFrame{Session: c.cfg.Session}})
		_ = conn.Close()
	}
	<-done
}

// Members returns the session members from the relay's last update.
func (c *Connector) Members() []uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]uuid.UUID(nil), c.members...)
}

func (c *Connector) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	delay := minRetryDelay
	for {
		joined, err := c.session(ctx)
		if ctx.Err() != nil {
			return
		}
		if joined {
			delay = minRetryDelay
		}
		c.log.Warn("group session lost, retrying", zap.Duration("in", delay), zap.Error(err))
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay = min(delay*2, maxRetryDelay)
	}
}

// session runs one relay connection until it fails. joined reports whether
// the relay accepted the join.
func (c *Connector) session(ctx context.Context) (joined bool, err error) {
	dctx, cancel := context.WithTimeout(ctx, dialTimeout)
	conn, err := transport.Dial(dctx, c.cfg.RelayAddr)
	cancel()
	if err != nil {
		return false, err
	}
	defer c.drop(conn)

	if err := conn.SendFrame(&proto.Frame{Type: proto.FrameTypeJoin, Join: &proto.JoinFrame{
		Session: c.cfg.Session, Participant: c.host.LocalID(),
	}}); err != nil {
		return false, err
	}

	wctx, stopWriter := context.WithCancel(ctx)
	writerDone := make(chan struct{})
	go c.writeLoop(wctx, conn, writerDone)
	defer func() {
		stopWriter()
		_ = conn.Close()
		<-writerDone
	}()

	var f proto.Frame
	for {
		if err := conn.RecvFrame(&f); err != nil {
			return joined, err
		}
		switch f.Type {
		case proto.FrameTypeAck:
			if f.Ack != nil && f.Ack.OK && !joined {
				joined = true
				c.mu.Lock()
				c.conn = conn
				c.mu.Unlock()
				c.log.Info("joined group session", zap.String("relay", c.cfg.RelayAddr))
			}
		case proto.FrameTypeMembers:
			if f.Members != nil {
				c.membersChanged(f.Members.Participants)
			}
		case proto.FrameTypeData:
			if f.Data != nil {
				c.deliver(f.Data.Payload)
			}
		case proto.FrameTypeError:
			if f.Error != nil {
				c.log.Warn("relay error", zap.String("code", f.Error.Code), zap.String("message", f.Error.Message))
			}
		}
	}
}

func (c *Connector) writeLoop(ctx context.Context, conn *transport.Conn, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-c.out:
			payload := data
			if c.key != nil {
				sealed, err := crypto.Seal(data, c.key)
				if err != nil {
					c.log.Error("seal failed", zap.Error(err))
					continue
				}
				payload = sealed
			}
			err := conn.SendFrame(&proto.Frame{Type: proto.FrameTypeData, Data: &proto.DataFrame{
				Session: c.cfg.Session, Payload: payload,
			}})
			if err != nil {
				c.log.Debug("group write failed", zap.Error(err))
				return
			}
		}
	}
}

func (c *Connector) deliver(payload []byte) {
	data := payload
	if c.key != nil {
		plain, err := crypto.Open(payload, c.key)
		if err != nil {
			c.log.Debug("dropping payload sealed with another secret", zap.Error(err))
			return
		}
		data = plain
	}
	c.host.Receive(data, c, c.observe)
}

func (c *Connector) observe(p roster.Participant) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observed[p.ID] = p
}

// membersChanged says hello again and forgets participants whose member left.
func (c *Connector) membersChanged(ids []uuid.UUID) {
	c.mu.Lock()
	gone, _ := lo.Difference(c.members, ids)
	c.members = append([]uuid.UUID(nil), ids...)
	var removed []roster.Participant
	for _, id := range gone {
		if p, ok := c.observed[id]; ok {
			delete(c.observed, id)
			removed = append(removed, p)
		}
	}
	c.mu.Unlock()

	for _, p := range removed {
		c.host.RemoveRemote(p)
	}
	hello, err := c.host.HelloMessage(true)
	if err != nil {
		c.log.Error("could not build hello", zap.Error(err))
		return
	}
	c.Send(hello, true)
}

// drop clears the joined state after a connection ends and forgets everyone
// seen through it.
func (c *Connector) drop(conn *transport.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	seen := c.observed
	c.observed = make(map[uuid.UUID]roster.Participant)
	c.members = nil
	c.mu.Unlock()
	for _, p := range seen {
		c.host.RemoveRemote(p)
	}
}

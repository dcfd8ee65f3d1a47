// Package pipe connects two hosts in the same process over net.Pipe. It is a
// full connector: framed, ordered, asynchronous, with a hello on start and
// roster cleanup when the link drops.
package pipe

import (
	"net"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SWAI-Ltd/multipass/internal/connector"
	"github.com/SWAI-Ltd/multipass/internal/proto"
	"github.com/SWAI-Ltd/multipass/internal/roster"
)

const queueSize = 64

// Connector is one end of a pipe.
type Connector struct {
	id   connector.ID
	host connector.Host
	log  *zap.Logger
	conn net.Conn
	out  chan []byte
	done chan struct{}

	mu       sync.Mutex
	started  bool
	stopped  bool
	observed map[uuid.UUID]roster.Participant
	wg       sync.WaitGroup
}

// Pair returns two connected ends; a delivers to host b and b to host a.
func Pair(a, b connector.Host, log *zap.Logger) (*Connector, *Connector) {
	if log == nil {
		log = zap.L()
	}
	c1, c2 := net.Pipe()
	return newEnd(a, c1, log), newEnd(b, c2, log)
}

func newEnd(h connector.Host, c net.Conn, log *zap.Logger) *Connector {
	id := connector.NewID()
	return &Connector{
		id:       id,
		host:     h,
		log:      log.With(zap.String("connector", id.String()), zap.String("kind", "pipe")),
		conn:     c,
		out:      make(chan []byte, queueSize),
		done:     make(chan struct{}),
		observed: make(map[uuid.UUID]roster.Participant),
	}
}

func (c *Connector) ID() connector.ID { return c.id }

// Send queues data for the peer. It never blocks; when the queue is full or
// the pipe is stopped the payload is dropped.
func (c *Connector) Send(data []byte, _ bool) {
	select {
	case <-c.done:
		c.log.Debug("send on stopped pipe dropped")
		return
	default:
	}
	select {
	case c.out <- append([]byte(nil), data...):
	default:
		c.log.Warn("pipe queue full, dropping payload", zap.Int("bytes", len(data)))
	}
}

// Start runs the reader and writer and queues a hello for the peer.
func (c *Connector) Start() {
	c.mu.Lock()
	if c.started || c.stopped {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	c.wg.Add(2)
	go c.writeLoop()
	go c.readLoop()
	c.hello(false)
}

// Stop closes the pipe. The peer sees the link drop.
func (c *Connector) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	c.mu.Unlock()
	close(c.done)
	_ = c.conn.Close()
	c.wg.Wait()
}

// Observed returns the participants seen on this end that are still linked.
func (c *Connector) Observed() []roster.Participant {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]roster.Participant, 0, len(c.observed))
	for _, p := range c.observed {
		out = append(out, p)
	}
	return out
}

func (c *Connector) hello(again bool) {
	data, err := c.host.HelloMessage(again)
	if err != nil {
		c.log.Warn("hello failed", zap.Error(err))
		return
	}
	c.Send(data, true)
}

func (c *Connector) writeLoop() {
	defer c.wg.Done()
	for {
		select {
		case <-c.done:
			return
		case data := <-c.out:
			if err := proto.WriteChunk(c.conn, data); err != nil {
				c.log.Debug("pipe write failed", zap.Error(err))
				return
			}
		}
	}
}

func (c *Connector) readLoop() {
	defer c.wg.Done()
	defer c.dropObserved()
	for {
		data, err := proto.ReadChunk(c.conn)
		if err != nil {
			c.log.Debug("pipe closed", zap.Error(err))
			return
		}
		c.host.Receive(data, c, c.observe)
	}
}

func (c *Connector) observe(p roster.Participant) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observed[p.ID] = p
}

func (c *Connector) dropObserved() {
	c.mu.Lock()
	seen := c.observed
	c.observed = make(map[uuid.UUID]roster.Participant)
	c.mu.Unlock()
	for _, p := range seen {
		c.host.RemoveRemote(p)
	}
}

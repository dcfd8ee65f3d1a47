// Package controller turns attached game controllers into managed
// participants, one per device. Controllers are input only, so Send is a
// no-op.
package controller

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/SWAI-Ltd/multipass/internal/connector"
	"github.com/SWAI-Ltd/multipass/internal/roster"
)

// Connector implements connector.Connector over a Source.
type Connector struct {
	id     connector.ID
	host   connector.Host
	source Source
	limit  int
	log    *zap.Logger

	mu     sync.Mutex
	router map[string]roster.Participant
	cancel context.CancelFunc
	done   chan struct{}
}

// New maps every device source already knows about. limit <= 0 means no cap.
func New(host connector.Host, source Source, limit int, log *zap.Logger) *Connector {
	if log == nil {
		log = zap.L()
	}
	id := connector.NewID()
	c := &Connector{
		id:     id,
		host:   host,
		source: source,
		limit:  limit,
		log:    log.With(zap.String("connector", id.String()), zap.String("kind", "controller")),
		router: make(map[string]roster.Participant),
	}
	c.sync()
	return c
}

func (c *Connector) ID() connector.ID  { return c.id }
func (c *Connector) Send([]byte, bool) {}

// Start begins discovery.
func (c *Connector) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		err := c.source.Discover(ctx, c.handle)
		if err != nil && !errors.Is(err, context.Canceled) {
			c.log.Warn("controller discovery stopped", zap.Error(err))
		}
	}(c.done)
}

// Stop ends discovery. Mapped controllers stay managed.
func (c *Connector) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Participant returns the participant mapped to a device.
func (c *Connector) Participant(deviceID string) (roster.Participant, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.router[deviceID]
	return p, ok
}

// Len returns the number of mapped devices.
func (c *Connector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.router)
}

func (c *Connector) handle(ev Event) {
	switch ev.Kind {
	case Attached:
		c.sync()
	case Detached:
		c.detach(ev.Device)
	}
}

func (c *Connector) sync() {
	for _, d := range c.source.Devices() {
		c.ensure(d)
	}
}

func (c *Connector) ensure(d Device) {
	c.mu.Lock()
	if _, ok := c.router[d.ID]; ok {
		c.mu.Unlock()
		return
	}
	if c.limit > 0 && len(c.router) >= c.limit {
		c.mu.Unlock()
		c.log.Info("controller ignored, player limit reached", zap.String("device", d.Name))
		return
	}
	p := roster.New()
	c.router[d.ID] = p
	c.mu.Unlock()

	c.host.AddManaged(p)
	c.log.Info("controller attached", zap.String("device", d.Name), zap.Stringer("participant", p))
}

func (c *Connector) detach(d Device) {
	c.mu.Lock()
	p, ok := c.router[d.ID]
	delete(c.router, d.ID)
	c.mu.Unlock()
	if !ok {
		return
	}
	c.host.RemoveManaged(p)
	c.log.Info("controller detached", zap.String("device", d.Name), zap.Stringer("participant", p))
}

// Package touchscreen hands out local input slots on a shared screen. Each
// slot is a managed participant; nothing travels over a network.
package touchscreen

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SWAI-Ltd/multipass/internal/connector"
	"github.com/SWAI-Ltd/multipass/internal/roster"
)

// ErrSlotLimit is returned when every slot is taken.
var ErrSlotLimit = errors.New("touchscreen slot limit reached")

// Connector implements connector.Connector. Send, Start and Stop do nothing.
type Connector struct {
	id    connector.ID
	host  connector.Host
	limit int
	log   *zap.Logger

	mu    sync.Mutex
	slots []roster.Participant
}

// New returns a connector with room for limit participants; limit <= 0 means
// no cap.
func New(host connector.Host, limit int, log *zap.Logger) *Connector {
	if log == nil {
		log = zap.L()
	}
	id := connector.NewID()
	return &Connector{
		id:    id,
		host:  host,
		limit: limit,
		log:   log.With(zap.String("connector", id.String()), zap.String("kind", "touchscreen")),
	}
}

func (c *Connector) ID() connector.ID  { return c.id }
func (c *Connector) Send([]byte, bool) {}
func (c *Connector) Start()            {}
func (c *Connector) Stop()             {}

// AddParticipant claims a slot for id, or for a fresh id when id is zero.
// Claiming an id that already holds a slot returns it unchanged.
func (c *Connector) AddParticipant(id uuid.UUID) (roster.Participant, error) {
	if id == uuid.Nil {
		id = uuid.New()
	}
	p := roster.FromID(id)

	c.mu.Lock()
	for _, s := range c.slots {
		if s == p {
			c.mu.Unlock()
			return p, nil
		}
	}
	if c.limit > 0 && len(c.slots) >= c.limit {
		c.mu.Unlock()
		return roster.Participant{}, ErrSlotLimit
	}
	c.slots = append(c.slots, p)
	c.mu.Unlock()

	c.host.AddManaged(p)
	c.log.Info("touch participant added", zap.Stringer("participant", p))
	return p, nil
}

// RemoveParticipant frees p's slot.
func (c *Connector) RemoveParticipant(p roster.Participant) {
	c.mu.Lock()
	idx := -1
	for i, s := range c.slots {
		if s == p {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.mu.Unlock()
		return
	}
	c.slots = append(c.slots[:idx], c.slots[idx+1:]...)
	c.mu.Unlock()

	c.host.RemoveManaged(p)
}

// Participants returns the slot holders in the order they joined.
func (c *Connector) Participants() []roster.Participant {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]roster.Participant(nil), c.slots...)
}

package controller

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/SWAI-Ltd/multipass/internal/hub"
	"github.com/SWAI-Ltd/multipass/internal/roster"
)

func TestConnector_MapsExistingDevices(t *testing.T) {
	req := require.New(t)
	e := hub.New(hub.Config{})
	src := NewChanSource(Device{ID: "pad-1", Name: "Pad"}, Device{ID: "pad-2", Name: "Pad"})

	c := New(e, src, 0, nil)

	req.Equal(2, c.Len())
	p, ok := c.Participant("pad-1")
	req.True(ok)
	req.True(e.Store().IsManaged(p))
	req.Len(e.Store().Managed(), 3)
}

func TestConnector_AttachDetach(t *testing.T) {
	req := require.New(t)
	e := hub.New(hub.Config{})
	src := NewChanSource()
	c := New(e, src, 0, nil)
	c.Start()
	defer c.Stop()

	// When a controller is attached
	pad := Device{ID: "pad", Name: "Pad"}
	src.Attach(pad)

	// Then it becomes a managed participant
	var p roster.Participant
	req.Eventually(func() bool {
		var ok bool
		p, ok = c.Participant("pad")
		return ok
	}, time.Second, 5*time.Millisecond)
	req.True(e.Store().IsManaged(p))

	// And detaching removes it
	src.Detach(pad)
	req.Eventually(func() bool { return !e.Store().IsManaged(p) }, time.Second, 5*time.Millisecond)
	req.Equal(0, c.Len())
}

func TestConnector_Limit(t *testing.T) {
	req := require.New(t)
	e := hub.New(hub.Config{})
	src := NewChanSource(Device{ID: "a"}, Device{ID: "b"}, Device{ID: "c"})

	c := New(e, src, 2, nil)

	req.Equal(2, c.Len())
	_, ok := c.Participant("c")
	req.False(ok)
}

func TestConnector_StopIdempotent(t *testing.T) {
	c := New(hub.New(hub.Config{}), NewChanSource(), 0, nil)
	c.Stop()
	c.Start()
	c.Start()
	c.Stop()
	c.Stop()
}

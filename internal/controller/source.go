package controller

import (
	"context"
	"sync"
)

// Device is a physical game controller.
type Device struct {
	ID   string
	Name string
}

// EventKind says whether a device appeared or went away.
type EventKind int

const (
	Attached EventKind = iota + 1
	Detached
)

// Event reports a device change.
type Event struct {
	Kind   EventKind
	Device Device
}

// Source enumerates controllers. Discover blocks, calling fn for every change,
// until ctx is done.
type Source interface {
	Devices() []Device
	Discover(ctx context.Context, fn func(Event)) error
}

// ChanSource is a Source fed by Attach and Detach, for tests and for hosts
// that learn about devices from elsewhere.
type ChanSource struct {
	mu      sync.Mutex
	devices []Device
	events  chan Event
}

func NewChanSource(devices ...Device) *ChanSource {
	return &ChanSource{devices: devices, events: make(chan Event, 16)}
}

func (s *ChanSource) Devices() []Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Device(nil), s.devices...)
}

func (s *ChanSource) Attach(d Device) {
	s.mu.Lock()
	s.devices = append(s.devices, d)
	s.mu.Unlock()
	s.events <- Event{Kind: Attached, Device: d}
}

func (s *ChanSource) Detach(d Device) {
	s.mu.Lock()
	for i, x := range s.devices {
		if x.ID == d.ID {
			s.devices = append(s.devices[:i], s.devices[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	s.events <- Event{Kind: Detached, Device: d}
}

func (s *ChanSource) Discover(ctx context.Context, fn func(Event)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-s.events:
			fn(ev)
		}
	}
}

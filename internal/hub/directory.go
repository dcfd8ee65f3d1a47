package hub

import (
	"errors"
	"fmt"
	"sync"

	"github.com/SWAI-Ltd/multipass/internal/connector"
	"github.com/SWAI-Ltd/multipass/internal/roster"
)

// ErrUnclaimed is returned by Dispatch when no engine decodes the bytes.
var ErrUnclaimed = errors.New("no engine claimed message")

// Directory lists the engines sharing a set of connectors. Engines join when
// built with it and leave on Close.
type Directory struct {
	mu      sync.RWMutex
	engines []*Engine
}

func NewDirectory() *Directory { return &Directory{} }

func (d *Directory) add(e *Engine) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.engines = append(d.engines, e)
}

func (d *Directory) remove(e *Engine) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, x := range d.engines {
		if x == e {
			d.engines = append(d.engines[:i], d.engines[i+1:]...)
			return
		}
	}
}

// Len returns the number of member engines.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.engines)
}

// Dispatch offers data to every engine, most recently built first, and stops
// at the first one that claims it.
func (d *Directory) Dispatch(data []byte, src connector.Connector, observed func(roster.Participant)) error {
	d.mu.RLock()
	engines := append([]*Engine(nil), d.engines...)
	d.mu.RUnlock()

	var last error
	for i := len(engines) - 1; i >= 0; i-- {
		err := engines[i].Claim(data, src, observed)
		if err == nil {
			return nil
		}
		last = err
	}
	if last == nil {
		return ErrUnclaimed
	}
	return fmt.Errorf("%w: %w", ErrUnclaimed, last)
}

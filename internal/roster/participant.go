// Package roster keeps track of who is playing: participants this process
// manages (the local user, attached controllers, touch slots) and participants
// learned from the network.
package roster

import (
	"bytes"

	"github.com/google/uuid"
)

// Participant is identified solely by its id.
type Participant struct {
	ID uuid.UUID
}

// New returns a participant with a fresh random id.
func New() Participant { return Participant{ID: uuid.New()} }

// FromID wraps an existing id.
func FromID(id uuid.UUID) Participant { return Participant{ID: id} }

func (p Participant) String() string { return p.ID.String() }

// Kind says how a participant is displayed.
type Kind int

const (
	KindManaged Kind = iota
	KindRemote
)

func (k Kind) String() string {
	switch k {
	case KindManaged:
		return "managed"
	case KindRemote:
		return "remote"
	default:
		return "unknown"
	}
}

// Entry pairs a participant with its display kind.
type Entry struct {
	Participant Participant
	Kind        Kind
}

func less(a, b Participant) bool { return bytes.Compare(a.ID[:], b.ID[:]) < 0 }

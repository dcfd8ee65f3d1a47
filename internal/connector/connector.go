// Package connector defines the contract between the hub and the transports
// that carry its bytes.
package connector

import (
	"github.com/google/uuid"

	"github.com/SWAI-Ltd/multipass/internal/roster"
)

//go:generate mockgen -destination=mocks/connector_mock.go -package=mocks github.com/SWAI-Ltd/multipass/internal/connector Connector,Host

// ID distinguishes connector instances. The hub uses it to avoid echoing a
// message back to the connector it arrived on.
type ID uuid.UUID

// NewID returns a fresh random connector id.
func NewID() ID { return ID(uuid.New()) }

func (id ID) String() string { return uuid.UUID(id).String() }

// Connector is one transport attached to a hub.
//
// Send must not block the caller on the network. When reliable is false the
// transport may drop or reorder the payload; transports without an unreliable
// path send reliably. Start and Stop are idempotent.
type Connector interface {
	ID() ID
	Send(data []byte, reliable bool)
	Start()
	Stop()
}

// Host is the side of the hub a connector talks back to.
type Host interface {
	// LocalID is the local participant's id.
	LocalID() uuid.UUID
	// Receive hands over an inbound payload. observed, when non-nil, is called
	// with the sender once the payload has been decoded.
	Receive(data []byte, src Connector, observed func(roster.Participant))
	AddManaged(p roster.Participant)
	RemoveManaged(p roster.Participant)
	RemoveRemote(p roster.Participant)
	// HelloMessage encodes a roster announcement for every managed
	// participant. again marks a repeat announcement on an existing link.
	HelloMessage(again bool) ([]byte, error)
}

// Package proto holds the message contracts shared by every component: the
// application message interface, the built-in roster announcement and the
// frames spoken between group-session members and their relay.
package proto

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// ParticipantListType is reserved for the roster announcement and must not be
// used by application messages.
const ParticipantListType = 6000

// Message is a typed payload carried between participants. MessageType must
// return the same non-zero id for every value of a given type.
type Message interface {
	MessageType() int
}

// ParticipantList announces every participant the sender manages.
type ParticipantList struct {
	Participants []uuid.UUID `json:"participants" cbor:"participants" validate:"required"`
}

func (ParticipantList) MessageType() int { return ParticipantListType }

// ActualParticipants returns the announced ids in order.
func (l ParticipantList) ActualParticipants() []uuid.UUID {
	out := make([]uuid.UUID, len(l.Participants))
	copy(out, l.Participants)
	return out
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validate checks the `validate` struct tags of a decoded message. Messages
// that are not structs (or pointers to structs) are accepted as is.
func Validate(m Message) error {
	if m == nil {
		return fmt.Errorf("nil message")
	}
	v := reflect.ValueOf(m)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return fmt.Errorf("nil %T", m)
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil
	}
	validateOnce.Do(func() { validate = validator.New(validator.WithRequiredStructEnabled()) })
	if err := validate.Struct(m); err != nil {
		return fmt.Errorf("invalid %T: %w", m, err)
	}
	return nil
}

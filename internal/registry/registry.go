// Package registry resolves which registered message shape a received byte
// blob represents.
package registry

import (
	"errors"
	"sort"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/SWAI-Ltd/multipass/internal/proto"
	"github.com/SWAI-Ltd/multipass/internal/wire"
)

var (
	// ErrDuplicateMessageType is logged when two application shapes share an id.
	ErrDuplicateMessageType = errors.New("duplicate message type")
	// ErrReservedMessageType is logged when an application shape claims the
	// roster announcement id.
	ErrReservedMessageType = errors.New("reserved message type")
)

// Registry is built once at configuration time and is read-only afterwards,
// so it is safe for concurrent use without locking.
type Registry struct {
	byID      map[int]wire.Shape
	ids       []int
	conflicts []int
}

// ParticipantListShape is the built-in roster announcement.
var ParticipantListShape = wire.ShapeOf(func() proto.Message { return &proto.ParticipantList{} })

// New registers shapes plus the roster announcement. Conflicting ids are
// reported through log and the first registration wins; construction never
// fails.
func New(log *zap.Logger, shapes ...wire.Shape) *Registry {
	if log == nil {
		log = zap.L()
	}
	r := &Registry{byID: map[int]wire.Shape{proto.ParticipantListType: ParticipantListShape}}
	for _, s := range shapes {
		switch {
		case s.New == nil:
			log.Warn("message type without constructor ignored", zap.Int("type", s.TypeID))
			continue
		case s.TypeID == proto.ParticipantListType:
			log.Error("message type ignored",
				zap.Int("type", s.TypeID),
				zap.Error(ErrReservedMessageType))
			continue
		}
		if _, dup := r.byID[s.TypeID]; dup {
			r.conflicts = append(r.conflicts, s.TypeID)
			log.Error("duplicate message types found, each message needs a unique type id; some conflicting messages will not be sent or received",
				zap.Int("type", s.TypeID),
				zap.Error(ErrDuplicateMessageType))
			continue
		}
		r.byID[s.TypeID] = s
	}
	r.ids = lo.Keys(r.byID)
	sort.Ints(r.ids)
	r.conflicts = lo.Uniq(r.conflicts)
	return r
}

// Lookup returns the shape registered for id.
func (r *Registry) Lookup(id int) (wire.Shape, bool) {
	s, ok := r.byID[id]
	return s, ok
}

// IDs returns every registered id in ascending order.
func (r *Registry) IDs() []int { return append([]int(nil), r.ids...) }

// Len returns the number of resolvable shapes, roster announcement included.
func (r *Registry) Len() int { return len(r.ids) }

// Conflicts returns the ids that were supplied more than once.
func (r *Registry) Conflicts() []int { return append([]int(nil), r.conflicts...) }

// Candidates returns all shapes in decode order: the one registered for hint
// first (the id the sender put in the header), then the rest by ascending id.
func (r *Registry) Candidates(hint int) []wire.Shape {
	out := make([]wire.Shape, 0, len(r.ids))
	if s, ok := r.byID[hint]; ok {
		out = append(out, s)
	}
	for _, id := range r.ids {
		if id != hint {
			out = append(out, r.byID[id])
		}
	}
	return out
}

package hub

import (
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/SWAI-Ltd/multipass/internal/proto"
	"github.com/SWAI-Ltd/multipass/internal/roster"
	"github.com/SWAI-Ltd/multipass/internal/wire"
)

// HelloMessage encodes a roster announcement listing every managed
// participant, sent by the local participant. Transports send it whenever a
// peer connects. again only marks a repeat handshake in the log; the bytes
// are the same either way.
func (e *Engine) HelloMessage(again bool) ([]byte, error) {
	ids := lo.Map(e.store.Managed(), func(p roster.Participant, _ int) uuid.UUID { return p.ID })
	data, err := wire.Encode(e.codec, &proto.ParticipantList{Participants: ids}, e.local.ID)
	if err != nil {
		return nil, err
	}
	if again {
		e.log.Debug("hello again", zap.Int("participants", len(ids)))
	} else {
		e.log.Debug("hello", zap.Int("participants", len(ids)))
	}
	return data, nil
}

package touchscreen

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/SWAI-Ltd/multipass/internal/connector/mocks"
	"github.com/SWAI-Ltd/multipass/internal/roster"
)

func TestConnector_SlotLimit(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	host := mocks.NewMockHost(ctrl)
	c := New(host, 2, nil)
	host.EXPECT().AddManaged(gomock.Any()).Times(2)

	// When three players try to join two slots
	first, err := c.AddParticipant(uuid.Nil)
	req.NoError(err)
	explicit := uuid.New()
	second, err := c.AddParticipant(explicit)
	req.NoError(err)
	_, err = c.AddParticipant(uuid.Nil)

	// Then the third is refused
	req.ErrorIs(err, ErrSlotLimit)
	req.NotEqual(uuid.Nil, first.ID)
	req.Equal(roster.FromID(explicit), second)
	req.Equal([]roster.Participant{first, second}, c.Participants())

	// Rejoining with a held id is not a new slot
	again, err := c.AddParticipant(explicit)
	req.NoError(err)
	req.Equal(second, again)
}

func TestConnector_RemoveFreesSlot(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	host := mocks.NewMockHost(ctrl)
	c := New(host, 1, nil)
	host.EXPECT().AddManaged(gomock.Any()).Times(2)

	p, err := c.AddParticipant(uuid.Nil)
	req.NoError(err)
	host.EXPECT().RemoveManaged(p).Times(1)
	c.RemoveParticipant(p)
	c.RemoveParticipant(p)

	_, err = c.AddParticipant(uuid.Nil)
	req.NoError(err)
}

func TestConnector_NoopTransport(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := New(mocks.NewMockHost(ctrl), 0, nil)

	// No host calls expected
	c.Start()
	c.Send([]byte("x"), true)
	c.Stop()
	c.Stop()
}

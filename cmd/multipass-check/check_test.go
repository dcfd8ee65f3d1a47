package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/SWAI-Ltd/multipass/internal/codec"
	"github.com/SWAI-Ltd/multipass/internal/proto"
	"github.com/SWAI-Ltd/multipass/internal/wire"
)

type ping struct {
	N int `json:"n" cbor:"n"`
}

func (ping) MessageType() int { return 3 }

func TestInspect(t *testing.T) {
	req := require.New(t)
	reg, err := newCodecs()
	req.NoError(err)
	cbor, err := codec.CBOR()
	req.NoError(err)
	from := uuid.New()

	// Given a JSON app message
	data, err := wire.Encode(codec.JSON(), ping{N: 1}, from)
	req.NoError(err)
	r := inspect(reg, data)
	req.NoError(r.Err)
	req.Equal(codec.ContentJSON, r.ContentType)
	req.Equal(3, r.Header.MessageType)
	req.Equal(from, r.Header.From)
	req.False(r.Roster)

	// Given a CBOR roster announcement
	data, err = wire.Encode(cbor, proto.ParticipantList{Participants: []uuid.UUID{from}}, from)
	req.NoError(err)
	r = inspect(reg, data)
	req.NoError(r.Err)
	req.Equal(codec.ContentCBOR, r.ContentType)
	req.True(r.Roster)
	req.True(strings.HasPrefix(r.String(), "OK"))
}

func TestInspect_Rejects(t *testing.T) {
	req := require.New(t)
	reg, err := newCodecs()
	req.NoError(err)

	// Size disagreeing with the payload
	r := inspect(reg, []byte(`{"messageType":3,"from":"`+uuid.NewString()+`","size":10}{"n":1}`))
	req.ErrorIs(r.Err, wire.ErrMalformedHeader)
	req.True(strings.HasPrefix(r.String(), "FAIL"))

	// Roster announcement without its list
	r = inspect(reg, []byte(`{"messageType":6000,"from":"`+uuid.NewString()+`","size":2}{}`))
	req.Error(r.Err)
}

func TestWatcher_Counts(t *testing.T) {
	req := require.New(t)
	reg, err := newCodecs()
	req.NoError(err)
	var out bytes.Buffer
	w := newWatcher(reg, &out)

	hello, err := w.HelloMessage(false)
	req.NoError(err)
	w.Receive(hello, nil, nil)
	w.Receive([]byte("garbage"), nil, nil)

	ok, failed := w.counts()
	req.Equal(1, ok)
	req.Equal(1, failed)
	req.Contains(out.String(), "FAIL")
}

func TestFileCmd(t *testing.T) {
	req := require.New(t)
	data, err := wire.Encode(codec.JSON(), ping{N: 2}, uuid.New())
	req.NoError(err)

	cmd := fileCmd()
	var out bytes.Buffer
	cmd.SetIn(bytes.NewReader(data))
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	req.NoError(cmd.Execute())
	req.Contains(out.String(), "type=3")
}

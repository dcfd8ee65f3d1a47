package main

import (
	"fmt"

	"github.com/SWAI-Ltd/multipass/internal/codec"
	"github.com/SWAI-Ltd/multipass/internal/proto"
	"github.com/SWAI-Ltd/multipass/internal/wire"
)

// payloadTypes is the detection order; JSON first since a JSON object also
// parses as a CBOR text string prefix.
var payloadTypes = []string{codec.ContentJSON, codec.ContentCBOR}

type report struct {
	Header      wire.Header
	ContentType string
	Roster      bool
	Err         error
}

func (r report) String() string {
	if r.Err != nil {
		return fmt.Sprintf("FAIL %v", r.Err)
	}
	kind := "app"
	if r.Roster {
		kind = "roster"
	}
	return fmt.Sprintf("OK   type=%d (%s) from=%s size=%d payload=%s",
		r.Header.MessageType, kind, r.Header.From, r.Header.Size, r.ContentType)
}

func newCodecs() (*codec.Registry, error) {
	reg := codec.NewRegistry()
	cbor, err := codec.CBOR()
	if err != nil {
		return nil, err
	}
	reg.Register(cbor)
	return reg, nil
}

// inspect checks the header and identifies the payload codec. Roster
// announcements are additionally decoded and validated.
func inspect(reg *codec.Registry, data []byte) report {
	h, payload, err := wire.ParseHeader(data)
	if err != nil {
		return report{Err: err}
	}
	r := report{Header: h, Roster: h.MessageType == proto.ParticipantListType}
	for _, ct := range payloadTypes {
		c := reg.Get(ct)
		if c == nil {
			continue
		}
		var v any
		if c.Unmarshal(payload, &v) != nil {
			continue
		}
		r.ContentType = ct
		if r.Roster {
			var list proto.ParticipantList
			if err := c.Unmarshal(payload, &list); err != nil {
				r.Err = fmt.Errorf("roster announcement: %w", err)
			} else if err := proto.Validate(list); err != nil {
				r.Err = fmt.Errorf("roster announcement: %w", err)
			}
		}
		return r
	}
	r.Err = fmt.Errorf("payload is neither JSON nor CBOR")
	return r
}

// Package wire frames typed messages as a self-delimiting JSON header
// followed by the payload bytes:
//
//	{"messageType":42,"from":"5b1c...","size":7}{"x":1}
//
// The header always ends at its first closing brace, so its length never has
// to be known up front. Size must equal the number of bytes that follow.
package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/SWAI-Ltd/multipass/internal/codec"
	"github.com/SWAI-Ltd/multipass/internal/proto"
)

var (
	// ErrMalformedHeader is returned when the header delimiter is missing, the
	// header does not parse, or its size disagrees with the payload.
	ErrMalformedHeader = errors.New("malformed header")
	// ErrUnrecognizedMessage is returned when no candidate shape decodes the payload.
	ErrUnrecognizedMessage = errors.New("unrecognized message")
)

// Header precedes every payload.
type Header struct {
	MessageType int       `json:"messageType"`
	From        uuid.UUID `json:"from"`
	Size        int       `json:"size"`
}

// rawHeader tells absent keys from zero values.
type rawHeader struct {
	MessageType *int       `json:"messageType"`
	From        *uuid.UUID `json:"from"`
	Size        *int       `json:"size"`
}

// Shape describes a decodable message type. New must return a fresh pointer
// the payload codec can decode into.
type Shape struct {
	TypeID int
	New    func() proto.Message
}

// ShapeOf builds a Shape, reading the type id from a fresh value.
func ShapeOf(newFn func() proto.Message) Shape {
	return Shape{TypeID: newFn().MessageType(), New: newFn}
}

// Encode serializes msg with c and prepends the header naming from as sender.
func Encode(c codec.Codec, msg proto.Message, from uuid.UUID) ([]byte, error) {
	if msg == nil {
		return nil, errors.New("wire: nil message")
	}
	payload, err := c.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("wire: encode %T: %w", msg, err)
	}
	prefix, err := json.Marshal(Header{MessageType: msg.MessageType(), From: from, Size: len(payload)})
	if err != nil {
		return nil, fmt.Errorf("wire: encode header: %w", err)
	}
	out := make([]byte, 0, len(prefix)+len(payload))
	out = append(out, prefix...)
	return append(out, payload...), nil
}

// ParseHeader splits data into its header and payload.
func ParseHeader(data []byte) (Header, []byte, error) {
	end := bytes.IndexByte(data, '}')
	if end < 0 {
		return Header{}, nil, fmt.Errorf("%w: no header delimiter", ErrMalformedHeader)
	}
	var raw rawHeader
	if err := json.Unmarshal(data[:end+1], &raw); err != nil {
		return Header{}, nil, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}
	if raw.MessageType == nil || raw.From == nil || raw.Size == nil {
		return Header{}, nil, fmt.Errorf("%w: missing field", ErrMalformedHeader)
	}
	if *raw.From == uuid.Nil {
		return Header{}, nil, fmt.Errorf("%w: nil sender", ErrMalformedHeader)
	}
	h := Header{MessageType: *raw.MessageType, From: *raw.From, Size: *raw.Size}
	payload := data[end+1:]
	if h.Size < 0 || h.Size != len(payload) {
		return Header{}, nil, fmt.Errorf("%w: size %d, payload %d bytes", ErrMalformedHeader, h.Size, len(payload))
	}
	return h, payload, nil
}

// Decode parses data and tries each candidate in order until one decodes and
// validates. The returned type id is the matching candidate's, which may
// differ from the header's when the sender knows a type this side does not.
//
// Every candidate is attempted, so decoding costs O(len(candidates)).
func Decode(c codec.Codec, data []byte, candidates []Shape) (int, proto.Message, uuid.UUID, error) {
	h, payload, err := ParseHeader(data)
	if err != nil {
		return 0, nil, uuid.Nil, err
	}
	typeID, msg, err := DecodePayload(c, h, payload, candidates)
	if err != nil {
		return 0, nil, uuid.Nil, err
	}
	return typeID, msg, h.From, nil
}

// DecodePayload is Decode for a header that has already been parsed.
func DecodePayload(c codec.Codec, h Header, payload []byte, candidates []Shape) (int, proto.Message, error) {
	for _, s := range candidates {
		msg := s.New()
		if err := c.Unmarshal(payload, msg); err != nil {
			continue
		}
		if err := proto.Validate(msg); err != nil {
			continue
		}
		return s.TypeID, msg, nil
	}
	return 0, nil, fmt.Errorf("%w: type %d from %s", ErrUnrecognizedMessage, h.MessageType, h.From)
}

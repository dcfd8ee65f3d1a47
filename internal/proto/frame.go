package proto

import (
	"encoding/binary"
	"encoding/json"
	"io"

	"github.com/google/uuid"
)

// Frame types spoken between group-session members and the relay.
const (
	FrameTypeJoin    = 1
	FrameTypeLeave   = 2
	FrameTypeData    = 3
	FrameTypeMembers = 4
	FrameTypeAck     = 5
	FrameTypeError   = 6
)

// MaxFrameSize bounds a single length-prefixed frame.
const MaxFrameSize = 1024 * 1024

// JoinFrame asks the relay to add the sender to a session.
type JoinFrame struct {
	Session     string    `json:"session"`
	Participant uuid.UUID `json:"participant"`
}

// LeaveFrame removes the sender from a session.
type LeaveFrame struct {
	Session string `json:"session"`
}

// DataFrame carries opaque (possibly sealed) multipass bytes. The relay never
// looks inside Payload.
type DataFrame struct {
	Session string `json:"session"`
	Payload []byte `json:"payload"`
}

// MembersFrame lists the active participants of a session after a change.
type MembersFrame struct {
	Session      string      `json:"session"`
	Participants []uuid.UUID `json:"participants"`
}

// AckFrame
type AckFrame struct {
	OK bool `json:"ok"`
}

// ErrorFrame
type ErrorFrame struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Frame is the top-level group wire message
type Frame struct {
	Type    int           `json:"t"`
	Join    *JoinFrame    `json:"j,omitempty"`
	Leave   *LeaveFrame   `json:"l,omitempty"`
	Data    *DataFrame    `json:"d,omitempty"`
	Members *MembersFrame `json:"m,omitempty"`
	Ack     *AckFrame     `json:"a,omitempty"`
	Error   *ErrorFrame   `json:"e,omitempty"`
}

// Encode writes a length-prefixed JSON frame to w
func (f *Frame) Encode(w io.Writer) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return WriteChunk(w, data)
}

// Decode reads a length-prefixed JSON frame from r
func (f *Frame) Decode(r io.Reader) error {
	data, err := ReadChunk(r)
	if err != nil {
		return err
	}
	*f = Frame{}
	return json.Unmarshal(data, f)
}

// WriteChunk writes data behind a 4-byte big-endian length prefix in a single
// Write call so concurrent writers never interleave a prefix and its body.
func WriteChunk(w io.Writer, data []byte) error {
	if len(data) > MaxFrameSize {
		return io.ErrShortBuffer
	}
	buf := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(buf, uint32(len(data)))
	copy(buf[4:], data)
	_, err := w.Write(buf)
	return err
}

// ReadChunk reads one chunk written by WriteChunk.
func ReadChunk(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(lenBuf[:])
	if length > MaxFrameSize {
		return nil, io.ErrShortBuffer
	}
	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}

// Package codec serializes message payloads. Decoding is strict: a payload
// carrying fields the target type does not declare is rejected, which is what
// lets the wire decoder tell candidate message types apart.
package codec

import (
	"fmt"
	"strings"
)

// Content types of the built-in codecs.
const (
	ContentJSON = "application/json"
	ContentCBOR = "application/cbor"
)

// Codec marshals typed messages. Implementations must be deterministic and
// safe for concurrent use.
type Codec interface {
	ContentType() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// Registry maps content types to codecs.
type Registry struct{ byType map[string]Codec }

// NewRegistry returns a registry holding the JSON codec. CBOR can be added
// with Register.
func NewRegistry() *Registry {
	r := &Registry{byType: make(map[string]Codec)}
	r.Register(JSON())
	return r
}

// Register adds a codec, replacing any codec with the same content type.
func (r *Registry) Register(c Codec) { r.byType[c.ContentType()] = c }

// Get returns a codec by content type, or nil.
func (r *Registry) Get(contentType string) Codec { return r.byType[contentType] }

// ByName resolves the short names used in configuration ("json", "cbor").
func ByName(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return JSON(), nil
	case "cbor":
		return CBOR()
	default:
		return nil, fmt.Errorf("unknown payload codec %q", name)
	}
}

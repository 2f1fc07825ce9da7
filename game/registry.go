package game

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/luca-patrignani/mental-ledger/ledger"
)

// Variant is a decoded action payload. Every game defines one concrete type
// per action kind; Unknown covers everything else.
type Variant interface {
	ActionKind() string
}

// Unknown is produced for unregistered kinds and undecodable payloads.
// Reducers never apply it.
type Unknown struct {
	Kind    string
	Payload json.RawMessage
	Err     error
}

func (u Unknown) ActionKind() string { return u.Kind }

// Decoder turns a raw payload into a Variant.
type Decoder func(payload json.RawMessage) (Variant, error)

// Registry maps action kinds to their decoder. It is built once per game and
// read concurrently afterwards.
type Registry struct {
	decoders map[string]Decoder
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{decoders: make(map[string]Decoder)}
}

// Register binds kind to decode. Registering a kind twice panics.
func (r *Registry) Register(kind string, decode Decoder) *Registry {
	if _, ok := r.decoders[kind]; ok {
		panic(fmt.Sprintf("game: decoder for %q already registered", kind))
	}
	r.decoders[kind] = decode
	return r
}

// Has reports whether kind has a decoder.
func (r *Registry) Has(kind string) bool {
	_, ok := r.decoders[kind]
	return ok
}

// Decode returns the typed variant for a, or Unknown.
func (r *Registry) Decode(a ledger.Action) Variant {
	decode, ok := r.decoders[a.Kind]
	if !ok {
		return Unknown{Kind: a.Kind, Payload: a.Payload}
	}
	v, err := decode(a.Payload)
	if err != nil || v == nil {
		return Unknown{Kind: a.Kind, Payload: a.Payload, Err: err}
	}
	return v
}

// JSONDecoder builds a Decoder that unmarshals the payload into T. An empty
// payload yields the zero T.
func JSONDecoder[T Variant]() Decoder {
	return func(payload json.RawMessage) (Variant, error) {
		var v T
		if len(bytes.TrimSpace(payload)) == 0 {
			return v, nil
		}
		if err := json.Unmarshal(payload, &v); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", v.ActionKind(), err)
		}
		return v, nil
	}
}

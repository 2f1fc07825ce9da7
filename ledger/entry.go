package ledger

import (
	"bytes"
	"encoding/json"
)

// GenesisPrevHash is the prevHash carried by the first entry of every ledger.
const GenesisPrevHash = "0"

// Action is the authoritative description of what happened.
// Payload is kept as raw JSON so the ledger never needs to know the game.
type Action struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewAction marshals payload and builds an Action of the given kind.
func NewAction(kind string, payload any) (Action, error) {
	if payload == nil {
		return Action{Kind: kind}, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return Action{}, err
	}
	return Action{Kind: kind, Payload: b}, nil
}

// Entry is a single link of the ledger. It is immutable once appended.
type Entry struct {
	Index           int    `json:"index"`
	Timestamp       int64  `json:"timestamp"` // unix millis, informational only
	Action          Action `json:"action"`
	PrevHash        string `json:"prevHash"`
	Hash            string `json:"hash"`
	Signature       string `json:"signature,omitempty"`
	SignerPublicKey string `json:"signerPublicKey,omitempty"`
}

// clone returns a copy of the entry that shares no memory with the original.
func (e Entry) clone() Entry {
	c := e
	if e.Action.Payload != nil {
		c.Action.Payload = bytes.Clone(e.Action.Payload)
	}
	return c
}

// CloneEntries deep-copies entries.
func CloneEntries(entries []Entry) []Entry {
	out := make([]Entry, len(entries))
	for i, e := range entries {
		out[i] = e.clone()
	}
	return out
}

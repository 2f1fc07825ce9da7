// Package signaling is the connection broker peers use to find each other
// before a data channel exists. Hosts publish offers, guests list and answer
// them, and answers are forwarded to the host's socket.
package signaling

import (
	"encoding/json"
	"errors"
	"fmt"
)

type Status string

const (
	StatusWaiting Status = "waiting"
	StatusFull    Status = "full"
)

// Participant is a guest that answered an offer.
type Participant struct {
	ConnectionID string `json:"connectionId"`
	Name         string `json:"name"`
	PublicKey    string `json:"publicKey"`
}

// Record is a published offer keyed by the host's connection id.
type Record struct {
	ConnectionID string          `json:"connectionId"`
	CategoryID   string          `json:"categoryId"`
	RoundID      string          `json:"roundId"`
	Name         string          `json:"name"`
	PublicKey    string          `json:"publicKey"`
	Status       Status          `json:"status"`
	Slots        json.RawMessage `json:"slots,omitempty"`
	SDP          string          `json:"sdp,omitempty"`
	Participants []Participant   `json:"participants"`
	CreatedAt    int64           `json:"createdAt"`
}

// Capacity reads the seat count from the slots descriptor, counting the host.
// Zero means unbounded.
func (r Record) Capacity() int {
	var d struct {
		Capacity int `json:"capacity"`
	}
	if len(r.Slots) == 0 || json.Unmarshal(r.Slots, &d) != nil || d.Capacity < 0 {
		return 0
	}
	return d.Capacity
}

// hasIdentity reports whether publicKey is the host or a participant.
func (r Record) hasIdentity(publicKey string) bool {
	if r.PublicKey == publicKey {
		return true
	}
	for _, p := range r.Participants {
		if p.PublicKey == publicKey {
			return true
		}
	}
	return false
}

func (r Record) clone() Record {
	c := r
	c.Participants = append([]Participant{}, r.Participants...)
	if r.Slots != nil {
		c.Slots = append(json.RawMessage{}, r.Slots...)
	}
	return c
}

// Error codes carried by error replies.
const (
	CodeDuplicateIdentity = "DUPLICATE_IDENTITY"
	CodeNotFound          = "NOT_FOUND"
	CodeBadRequest        = "BAD_REQUEST"
	CodeUnknownType       = "UNKNOWN_TYPE"
)

// Error is a protocol error reported to the client.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches errors by code.
func (e *Error) Is(target error) bool {
	var t *Error
	return errors.As(target, &t) && t.Code == e.Code
}

var (
	ErrNotFound          = &Error{Code: CodeNotFound, Message: "offer not found"}
	ErrDuplicateIdentity = &Error{Code: CodeDuplicateIdentity, Message: "identity already in this round"}
)

func badRequest(format string, args ...any) *Error {
	return &Error{Code: CodeBadRequest, Message: fmt.Sprintf(format, args...)}
}

// codeOf maps any error to a wire code.
func codeOf(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Code: CodeBadRequest, Message: err.Error()}
}

package consensus

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/luca-patrignani/mental-ledger/ledger"
)

// Namespace tags every message of the game protocol.
const Namespace = "game"

const (
	TypeLedgerSync      = "LEDGER_SYNC"
	TypeSnapshotRequest = "LEDGER_SNAPSHOT_REQUEST"

	requestSuffix = "_REQUEST"
)

var (
	ErrMalformed        = errors.New("consensus: malformed message")
	ErrForeignNamespace = errors.New("consensus: foreign namespace")
)

// Message is the envelope shared by requests and broadcasts.
type Message struct {
	Namespace string          `json:"namespace"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// SyncPayload is the body of a LEDGER_SYNC broadcast.
type SyncPayload struct {
	Entries []ledger.Entry `json:"entries"`
}

// SnapshotRequest is the body of a LEDGER_SNAPSHOT_REQUEST.
type SnapshotRequest struct {
	PlayerID string `json:"playerId"`
}

// RequestType is the message type proposing an action of kind.
func RequestType(kind string) string {
	return strings.ToUpper(kind) + requestSuffix
}

// KindOf extracts the action kind from a request type. Kinds travel upper
// cased and are restored lower cased.
func KindOf(msgType string) (string, bool) {
	if msgType == TypeSnapshotRequest || !strings.HasSuffix(msgType, requestSuffix) {
		return "", false
	}
	kind := strings.TrimSuffix(msgType, requestSuffix)
	if kind == "" {
		return "", false
	}
	return strings.ToLower(kind), true
}

// ParseMessage decodes raw and checks the namespace.
func ParseMessage(raw string) (Message, error) {
	var m Message
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if m.Type == "" {
		return Message{}, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	if m.Namespace != Namespace {
		return Message{}, fmt.Errorf("%w: %q", ErrForeignNamespace, m.Namespace)
	}
	return m, nil
}

func encode(msgType string, payload any) (string, error) {
	m := Message{Namespace: Namespace, Type: msgType}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return "", err
		}
		m.Payload = b
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// EncodeRequest builds the request proposing action.
func EncodeRequest(action ledger.Action) (string, error) {
	if action.Kind == "" {
		return "", ledger.ErrEmptyKind
	}
	m := Message{Namespace: Namespace, Type: RequestType(action.Kind), Payload: action.Payload}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// EncodeSync builds a LEDGER_SYNC broadcast.
func EncodeSync(entries []ledger.Entry) (string, error) {
	if entries == nil {
		entries = []ledger.Entry{}
	}
	return encode(TypeLedgerSync, SyncPayload{Entries: entries})
}

// EncodeSnapshotRequest builds a LEDGER_SNAPSHOT_REQUEST.
func EncodeSnapshotRequest(playerID string) (string, error) {
	return encode(TypeSnapshotRequest, SnapshotRequest{PlayerID: playerID})
}

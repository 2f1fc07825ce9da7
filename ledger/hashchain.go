package ledger

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
)

// canonicalBytes serializes the hashed fields of an entry in their documented
// order: index, timestamp, action (kind, payload), prevHash, signerPublicKey.
// The signer key is written only when present. Hash and Signature are never
// part of the digest input.
func canonicalBytes(e Entry) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"index":`)
	buf.WriteString(strconv.Itoa(e.Index))
	buf.WriteString(`,"timestamp":`)
	buf.WriteString(strconv.FormatInt(e.Timestamp, 10))

	kind, err := json.Marshal(e.Action.Kind)
	if err != nil {
		return nil, err
	}
	buf.WriteString(`,"action":{"kind":`)
	buf.Write(kind)
	buf.WriteString(`,"payload":`)
	if len(bytes.TrimSpace(e.Action.Payload)) == 0 {
		buf.WriteString("null")
	} else if err := json.Compact(&buf, e.Action.Payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	buf.WriteString(`}`)

	prev, err := json.Marshal(e.PrevHash)
	if err != nil {
		return nil, err
	}
	buf.WriteString(`,"prevHash":`)
	buf.Write(prev)

	if e.SignerPublicKey != "" {
		signer, err := json.Marshal(e.SignerPublicKey)
		if err != nil {
			return nil, err
		}
		buf.WriteString(`,"signerPublicKey":`)
		buf.Write(signer)
	}
	buf.WriteString(`}`)
	return buf.Bytes(), nil
}

// ComputeHash returns the hex encoded SHA-256 digest of the entry's canonical
// serialization. The Hash and Signature fields of e are ignored.
func ComputeHash(e Entry) (string, error) {
	data, err := canonicalBytes(e)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// VerifyChain reports whether entries form a consistent hash chain. An empty
// sequence is valid. Any failure while digesting counts as a broken chain.
func VerifyChain(entries []Entry) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	for i, current := range entries {
		if err := validateLink(entries, i, current); err != nil {
			return false
		}
	}
	return true
}

// validateLink checks a single entry against its predecessor.
func validateLink(entries []Entry, i int, current Entry) error {
	if i == 0 {
		if current.Index != 0 {
			return fmt.Errorf("invalid genesis index: %d", current.Index)
		}
		if current.PrevHash != GenesisPrevHash {
			return fmt.Errorf("invalid genesis prev hash: %s", current.PrevHash)
		}
	} else {
		previous := entries[i-1]
		if current.Index != previous.Index+1 {
			return fmt.Errorf("invalid index: expected %d, got %d", previous.Index+1, current.Index)
		}
		if current.PrevHash != previous.Hash {
			return fmt.Errorf("invalid prev hash: expected %s, got %s", previous.Hash, current.PrevHash)
		}
	}
	expected, err := ComputeHash(current)
	if err != nil {
		return err
	}
	if current.Hash != expected {
		return fmt.Errorf("invalid hash: expected %s, got %s", expected, current.Hash)
	}
	return nil
}

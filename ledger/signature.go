package ledger

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
)

// VerifySignature checks the entry signature against its signer public key.
// It returns an error when the entry carries no signature.
func (e Entry) VerifySignature() (bool, error) {
	if e.Signature == "" || e.SignerPublicKey == "" {
		return false, errors.New("missing signature")
	}
	pub, err := hex.DecodeString(e.SignerPublicKey)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return false, errors.New("malformed signer public key")
	}
	sig, err := hex.DecodeString(e.Signature)
	if err != nil {
		return false, errors.New("malformed signature")
	}
	return ed25519.Verify(ed25519.PublicKey(pub), []byte(e.Hash), sig), nil
}

// AllSigned reports whether every entry carries a signature. It does not
// check them.
func AllSigned(entries []Entry) bool {
	for _, e := range entries {
		if e.Signature == "" {
			return false
		}
	}
	return true
}

// VerifySignatures reports whether every signed entry carries a valid
// signature. Unsigned entries are skipped.
func VerifySignatures(entries []Entry) bool {
	for _, e := range entries {
		if e.Signature == "" && e.SignerPublicKey == "" {
			continue
		}
		ok, err := e.VerifySignature()
		if err != nil || !ok {
			return false
		}
	}
	return true
}

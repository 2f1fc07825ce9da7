package ledger

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sync"
	"time"
)

var (
	// ErrInvalidPayload is returned when an action payload is not valid JSON.
	ErrInvalidPayload = errors.New("ledger: invalid action payload")
	// ErrEmptyKind is returned when an action has no kind.
	ErrEmptyKind = errors.New("ledger: empty action kind")
)

// Ledger is an append-only, hash-chained sequence of entries.
// Only the sequencer appends; Append is serialized by an internal mutex.
type Ledger struct {
	mu      sync.RWMutex
	entries []Entry
	now     func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the clock used to stamp new entries.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// New creates an empty ledger.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		entries: make([]Entry, 0),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// FromEntries builds a ledger holding a copy of entries. The chain is not
// verified: a partially synced ledger can be held until Verify is called.
func FromEntries(entries []Entry, opts ...Option) *Ledger {
	l := New(opts...)
	l.entries = CloneEntries(entries)
	return l
}

// Append extends the chain with a new entry carrying action and returns it.
func (l *Ledger) Append(action Action) (Entry, error) {
	return l.append(action, nil)
}

// AppendSigned is like Append but records the signer's public key in the
// hashed fields and signs the resulting hash.
func (l *Ledger) AppendSigned(action Action, priv ed25519.PrivateKey) (Entry, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return Entry{}, errors.New("ledger: invalid private key")
	}
	return l.append(action, priv)
}

func (l *Ledger) append(action Action, priv ed25519.PrivateKey) (Entry, error) {
	if action.Kind == "" {
		return Entry{}, ErrEmptyKind
	}
	if len(bytes.TrimSpace(action.Payload)) > 0 && !json.Valid(action.Payload) {
		return Entry{}, ErrInvalidPayload
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	e := Entry{
		Index:     0,
		Timestamp: l.now().UnixMilli(),
		Action:    Action{Kind: action.Kind, Payload: bytes.Clone(action.Payload)},
		PrevHash:  GenesisPrevHash,
	}
	if n := len(l.entries); n > 0 {
		latest := l.entries[n-1]
		e.Index = latest.Index + 1
		e.PrevHash = latest.Hash
	}
	if priv != nil {
		e.SignerPublicKey = hex.EncodeToString(priv.Public().(ed25519.PublicKey))
	}

	hash, err := ComputeHash(e)
	if err != nil {
		return Entry{}, err
	}
	e.Hash = hash
	if priv != nil {
		e.Signature = hex.EncodeToString(ed25519.Sign(priv, []byte(hash)))
	}

	l.entries = append(l.entries, e)
	return e.clone(), nil
}

// Verify reports whether the stored sequence is a valid hash chain and every
// signed entry carries a valid signature.
func (l *Ledger) Verify() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return VerifyChain(l.entries) && VerifySignatures(l.entries)
}

// Entries returns a snapshot of the ledger. Mutating it never affects the ledger.
func (l *Ledger) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return CloneEntries(l.entries)
}

// Len returns the number of entries.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Latest returns the most recently appended entry.
func (l *Ledger) Latest() (Entry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.entries) == 0 {
		return Entry{}, false
	}
	return l.entries[len(l.entries)-1].clone(), true
}

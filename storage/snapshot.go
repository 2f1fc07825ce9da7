package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/luca-patrignani/mental-ledger/ledger"
)

// ErrCorruptSnapshot is returned when a stored ledger no longer verifies.
var ErrCorruptSnapshot = errors.New("storage: snapshot does not verify")

const snapshotPrefix = "snapshot/"

// SnapshotStore keeps the last known ledger of each session so a reloading
// client resumes where it stopped.
type SnapshotStore struct {
	db *DB
}

func NewSnapshotStore(db *DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

func snapshotKey(session string) []byte {
	return []byte(snapshotPrefix + session)
}

// Save replaces the snapshot of session.
func (s *SnapshotStore) Save(session string, entries []ledger.Entry) error {
	if entries == nil {
		entries = []ledger.Entry{}
	}
	b, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return s.db.Put(snapshotKey(session), b)
}

// Load returns the snapshot of session, ErrNotFound when there is none and
// ErrCorruptSnapshot when its chain is broken.
func (s *SnapshotStore) Load(session string) ([]ledger.Entry, error) {
	b, err := s.db.Get(snapshotKey(session))
	if err != nil {
		return nil, err
	}
	var entries []ledger.Entry
	if err := json.Unmarshal(b, &entries); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", session, err)
	}
	if !ledger.VerifyChain(entries) || !ledger.VerifySignatures(entries) {
		return nil, ErrCorruptSnapshot
	}
	return entries, nil
}

func (s *SnapshotStore) Delete(session string) error {
	return s.db.Delete(snapshotKey(session))
}

// Sessions lists the stored sessions in key order.
func (s *SnapshotStore) Sessions() ([]string, error) {
	var out []string
	err := s.db.Scan([]byte(snapshotPrefix), func(key, _ []byte) error {
		out = append(out, strings.TrimPrefix(string(key), snapshotPrefix))
		return nil
	})
	return out, err
}

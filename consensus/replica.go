package consensus

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/luca-patrignani/mental-ledger/ledger"
	"github.com/luca-patrignani/mental-ledger/network"
)

// Replica is a guest's read-only copy of the ledger. Each accepted broadcast
// replaces the copy wholesale.
type Replica struct {
	mu       sync.Mutex
	ch       network.Channel
	id       network.ListenerID
	playerID string
	entries  []ledger.Entry
	onSync   []func([]ledger.Entry)
	onTamper []func([]ledger.Entry)
	opts     options
	logger   *slog.Logger
}

// NewReplica listens for broadcasts on ch, the channel to the sequencer.
func NewReplica(ch network.Channel, playerID string, opts ...Option) *Replica {
	o := newOptions("replica", opts)
	r := &Replica{
		ch:       ch,
		playerID: playerID,
		opts:     o,
		logger:   o.logger.With("player", playerID),
	}
	r.id = ch.AddMessageListener(r.handle)
	return r
}

// OnSync registers f to be called with every accepted ledger.
func (r *Replica) OnSync(f func(entries []ledger.Entry)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onSync = append(r.onSync, f)
}

// OnTamper registers f to be called with every rejected ledger.
func (r *Replica) OnTamper(f func(entries []ledger.Entry)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onTamper = append(r.onTamper, f)
}

// Entries returns a copy of the last accepted ledger.
func (r *Replica) Entries() []ledger.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return ledger.CloneEntries(r.entries)
}

// Propose sends action to the sequencer. The local copy is unchanged.
func (r *Replica) Propose(action ledger.Action) error {
	msg, err := EncodeRequest(action)
	if err != nil {
		return err
	}
	return r.ch.Send(msg)
}

// RequestSnapshot asks the sequencer to resend the ledger.
func (r *Replica) RequestSnapshot() error {
	msg, err := EncodeSnapshotRequest(r.playerID)
	if err != nil {
		return err
	}
	return r.ch.Send(msg)
}

// Close stops listening on the channel.
func (r *Replica) Close() {
	r.ch.RemoveMessageListener(r.id)
}

func (r *Replica) handle(raw string) {
	m, err := ParseMessage(raw)
	if err != nil {
		r.logger.Debug("message discarded", "err", err)
		return
	}
	if m.Type != TypeLedgerSync {
		r.logger.Debug("message discarded", "type", m.Type)
		return
	}
	var p SyncPayload
	if err := json.Unmarshal(m.Payload, &p); err != nil {
		r.logger.Debug("message discarded", "type", m.Type, "err", err)
		return
	}
	r.sync(p.Entries)
}

func (r *Replica) sync(entries []ledger.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !ledger.VerifyChain(entries) || !ledger.VerifySignatures(entries) ||
		(r.opts.requireSigned && !ledger.AllSigned(entries)) {
		r.logger.Warn("ledger rejected: chain or signatures do not verify", "entries", len(entries))
		for _, f := range r.onTamper {
			f(entries)
		}
		return
	}
	if len(entries) < len(r.entries) {
		r.logger.Debug("stale ledger ignored", "entries", len(entries), "held", len(r.entries))
		return
	}
	r.entries = entries
	for _, f := range r.onSync {
		f(ledger.CloneEntries(entries))
	}
}

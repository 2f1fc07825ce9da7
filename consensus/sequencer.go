package consensus

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/luca-patrignani/mental-ledger/ledger"
	"github.com/luca-patrignani/mental-ledger/metrics"
	"github.com/luca-patrignani/mental-ledger/network"
)

// Discard reasons reported to metrics.
const (
	reasonMalformed = "malformed"
	reasonNamespace = "namespace"
	reasonType      = "unknown_type"
	reasonPayload   = "invalid_payload"
	reasonStamp     = "stamp"
)

type attachment struct {
	ch network.Channel
	id network.ListenerID
}

// Sequencer is the single writer of the ledger. Requests from every attached
// channel are handled to completion one at a time.
type Sequencer struct {
	mu       sync.Mutex
	ledger   *ledger.Ledger
	fanout   *network.Fanout
	peers    map[string]attachment
	onAppend []func([]ledger.Entry)
	opts     options
	logger   *slog.Logger
	metrics  *metrics.Relay
}

// NewSequencer creates a sequencer over a fresh ledger unless WithLedger is
// given.
func NewSequencer(opts ...Option) *Sequencer {
	o := newOptions("sequencer", opts)
	l := o.ledger
	if l == nil {
		l = ledger.New()
	}
	return &Sequencer{
		ledger:  l,
		fanout:  network.NewFanout(o.logger),
		peers:   make(map[string]attachment),
		opts:    o,
		logger:  o.logger,
		metrics: o.metrics,
	}
}

// Ledger is the ledger owned by s.
func (s *Sequencer) Ledger() *ledger.Ledger {
	return s.ledger
}

// OnAppend registers f to be called with the full ledger after every append.
// f runs while s is locked and must not call back into s.
func (s *Sequencer) OnAppend(f func(entries []ledger.Entry)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onAppend = append(s.onAppend, f)
}

// Attach starts handling requests arriving on ch and includes ch in
// broadcasts. Attaching the same peer twice replaces the old channel.
func (s *Sequencer) Attach(peerID string, ch network.Channel) {
	s.Detach(peerID)
	id := ch.AddMessageListener(func(msg string) {
		s.handle(peerID, ch, msg)
	})
	s.mu.Lock()
	s.peers[peerID] = attachment{ch: ch, id: id}
	s.mu.Unlock()
	s.fanout.Add(peerID, ch)
	s.logger.Debug("peer attached", "peer", peerID)
}

// Detach stops serving peerID.
func (s *Sequencer) Detach(peerID string) {
	s.mu.Lock()
	a, ok := s.peers[peerID]
	delete(s.peers, peerID)
	s.mu.Unlock()
	if !ok {
		return
	}
	a.ch.RemoveMessageListener(a.id)
	s.fanout.Remove(peerID)
	s.logger.Debug("peer detached", "peer", peerID)
}

// Submit appends an action of the sequencer's own player and broadcasts the
// new ledger.
func (s *Sequencer) Submit(action ledger.Action) (ledger.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(action)
}

// Broadcast resends the current ledger to every peer.
func (s *Sequencer) Broadcast() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcastLocked(s.ledger.Entries())
}

func (s *Sequencer) handle(peerID string, from network.Channel, raw string) {
	m, err := ParseMessage(raw)
	if err != nil {
		reason := reasonMalformed
		if errors.Is(err, ErrForeignNamespace) {
			reason = reasonNamespace
		}
		s.discard(peerID, reason, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if m.Type == TypeSnapshotRequest {
		s.sendSnapshotLocked(peerID, from)
		return
	}
	kind, ok := KindOf(m.Type)
	if !ok {
		s.discard(peerID, reasonType, nil, "type", m.Type)
		return
	}
	action := ledger.Action{Kind: kind, Payload: m.Payload}
	if s.opts.stamper != nil {
		stamped, err := s.opts.stamper(kind, m.Payload)
		if err != nil {
			s.discard(peerID, reasonStamp, err, "kind", kind)
			return
		}
		action.Payload = stamped
	}
	if _, err := s.appendLocked(action); err != nil {
		s.discard(peerID, reasonPayload, err, "kind", kind)
	}
}

func (s *Sequencer) appendLocked(action ledger.Action) (ledger.Entry, error) {
	var (
		e   ledger.Entry
		err error
	)
	if s.opts.signer != nil {
		e, err = s.ledger.AppendSigned(action, s.opts.signer)
	} else {
		e, err = s.ledger.Append(action)
	}
	if err != nil {
		return ledger.Entry{}, err
	}
	s.metrics.IncAppended()
	s.logger.Debug("entry appended", "index", e.Index, "kind", e.Action.Kind)

	entries := s.ledger.Entries()
	s.broadcastLocked(entries)
	for _, f := range s.onAppend {
		f(entries)
	}
	return e, nil
}

func (s *Sequencer) broadcastLocked(entries []ledger.Entry) {
	msg, err := EncodeSync(entries)
	if err != nil {
		s.logger.Error("encode ledger failed", "err", err)
		return
	}
	s.fanout.Broadcast(msg)
	s.metrics.IncBroadcasts()
}

func (s *Sequencer) sendSnapshotLocked(peerID string, to network.Channel) {
	msg, err := EncodeSync(s.ledger.Entries())
	if err != nil {
		s.logger.Error("encode ledger failed", "err", err)
		return
	}
	if err := to.Send(msg); err != nil {
		s.logger.Warn("snapshot send failed", "peer", peerID, "err", err)
	}
}

func (s *Sequencer) discard(peerID, reason string, err error, attrs ...any) {
	s.metrics.IncDiscarded(reason)
	args := append([]any{"peer", peerID, "reason", reason}, attrs...)
	if err != nil {
		args = append(args, "err", err)
	}
	s.logger.Debug("message discarded", args...)
}

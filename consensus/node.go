package consensus

import (
	"errors"
	"log/slog"

	"github.com/luca-patrignani/mental-ledger/fsm"
	"github.com/luca-patrignani/mental-ledger/ledger"
)

// ErrNotSequencer is returned when a sequencer-only operation is called on a
// guest node.
var ErrNotSequencer = errors.New("consensus: node is not the sequencer")

// Node drives a game's state machine from either role.
type Node[S any] struct {
	machine  *fsm.Machine[S]
	playerID string
	seq      *Sequencer
	rep      *Replica
	logger   *slog.Logger
}

// NewSequencerNode binds seq to a machine for def. The machine is synced with
// the current ledger immediately.
func NewSequencerNode[S any](def fsm.Definition[S], playerID string, seq *Sequencer) *Node[S] {
	n := &Node[S]{
		machine:  fsm.NewMachine(def),
		playerID: playerID,
		seq:      seq,
		logger:   seq.logger.With("player", playerID),
	}
	seq.OnAppend(n.sync)
	n.sync(seq.Ledger().Entries())
	return n
}

// NewGuestNode binds rep to a machine for def and asks for a snapshot.
func NewGuestNode[S any](def fsm.Definition[S], playerID string, rep *Replica) *Node[S] {
	n := &Node[S]{
		machine:  fsm.NewMachine(def),
		playerID: playerID,
		rep:      rep,
		logger:   rep.logger,
	}
	rep.OnSync(n.sync)
	if err := rep.RequestSnapshot(); err != nil {
		n.logger.Warn("snapshot request failed", "err", err)
	}
	return n
}

func (n *Node[S]) sync(entries []ledger.Entry) {
	if _, err := n.machine.Dispatch(fsm.Sync{Entries: entries}); err != nil {
		n.logger.Warn("sync rejected by state machine", "err", err)
	}
}

// Act performs a local user action. A guest records a prediction and proposes
// the action; the sequencer appends it directly.
func (n *Node[S]) Act(action ledger.Action) error {
	if n.seq != nil {
		if n.machine.Snapshot().Phase == fsm.Terminal {
			return fsm.ErrTerminal
		}
		_, err := n.seq.Submit(action)
		return err
	}
	if _, err := n.machine.Dispatch(fsm.LocalAction{Action: action, PlayerID: n.playerID}); err != nil {
		return err
	}
	return n.rep.Propose(action)
}

// IsSequencer reports the node's role.
func (n *Node[S]) IsSequencer() bool {
	return n.seq != nil
}

// Sequencer returns the sequencer of an initiator node.
func (n *Node[S]) Sequencer() (*Sequencer, error) {
	if n.seq == nil {
		return nil, ErrNotSequencer
	}
	return n.seq, nil
}

func (n *Node[S]) PlayerID() string {
	return n.playerID
}

func (n *Node[S]) Snapshot() fsm.Snapshot[S] {
	return n.machine.Snapshot()
}

// Machine exposes the state machine, mainly to register OnChange callbacks.
func (n *Node[S]) Machine() *fsm.Machine[S] {
	return n.machine
}

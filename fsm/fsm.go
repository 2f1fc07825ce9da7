// Package fsm is the per-client game state machine. A Snapshot holds the
// authoritative state rebuilt from the ledger and a separate prediction
// overlay; Transition is a pure function from a snapshot and an event to the
// next snapshot.
package fsm

import (
	"errors"
	"fmt"

	"github.com/luca-patrignani/mental-ledger/game"
	"github.com/luca-patrignani/mental-ledger/ledger"
)

// Phase names a state of the controller.
type Phase string

const (
	// AwaitingSync is the phase before the first ledger arrives.
	AwaitingSync Phase = "awaiting_sync"
	// Terminal is the phase of a finished game. No local action is accepted.
	Terminal Phase = "terminal"
)

// MaxSettleSteps bounds the automatic transitions run after one event.
const MaxSettleSteps = 32

var (
	// ErrTransitionCycle is returned when automatic rules do not settle.
	ErrTransitionCycle = errors.New("fsm: automatic transitions did not settle")
	// ErrTerminal is returned for a local action after the game ended.
	ErrTerminal = errors.New("fsm: game is over")
	// ErrUnknownEvent is returned for events Transition does not handle.
	ErrUnknownEvent = errors.New("fsm: unknown event")
)

// PredictionStatus is the UI-facing state of a pending local action.
type PredictionStatus string

const StatusSent PredictionStatus = "sent"

// Prediction is the transient overlay for an action that was proposed but is
// not yet in the ledger.
type Prediction struct {
	Action   ledger.Action    `json:"action"`
	PlayerID string           `json:"playerId"`
	Status   PredictionStatus `json:"status"`
}

// Snapshot is the full view of one client.
type Snapshot[S any] struct {
	Phase         Phase       `json:"phase"`
	Authoritative S           `json:"authoritative"`
	Prediction    *Prediction `json:"prediction,omitempty"`
	LedgerLen     int         `json:"ledgerLen"`
}

// Rule is an automatic transition: whenever the snapshot is in From and
// Guard holds, the phase moves to To. An empty From matches any phase.
type Rule[S any] struct {
	Name  string
	From  Phase
	To    Phase
	Guard func(Snapshot[S]) bool
}

// Event is either Sync or LocalAction.
type Event interface {
	event()
}

// Sync carries a fresh authoritative ledger.
type Sync struct {
	Entries []ledger.Entry
}

// LocalAction is a user action on this client.
type LocalAction struct {
	Action   ledger.Action
	PlayerID string
}

func (Sync) event()        {}
func (LocalAction) event() {}

// Definition binds a game to the controller.
type Definition[S any] struct {
	Players []game.Player
	Reduce  game.Reducer[S]
	// PhaseOf maps an authoritative state to the phase it implies.
	PhaseOf func(S) Phase
	Rules   []Rule[S]
}

// Initial is the snapshot before any sync.
func (d Definition[S]) Initial() Snapshot[S] {
	return Snapshot[S]{
		Phase:         AwaitingSync,
		Authoritative: d.Reduce(d.Players, nil),
	}
}

// Transition returns the snapshot following ev. On error the input snapshot is
// returned unchanged.
func (d Definition[S]) Transition(s Snapshot[S], ev Event) (Snapshot[S], error) {
	var next Snapshot[S]
	switch e := ev.(type) {
	case Sync:
		next = Snapshot[S]{
			Authoritative: d.Reduce(d.Players, e.Entries),
			LedgerLen:     len(e.Entries),
		}
		next.Phase = d.PhaseOf(next.Authoritative)
	case LocalAction:
		if s.Phase == Terminal {
			return s, ErrTerminal
		}
		next = s
		next.Prediction = &Prediction{Action: e.Action, PlayerID: e.PlayerID, Status: StatusSent}
	default:
		return s, fmt.Errorf("%w: %T", ErrUnknownEvent, ev)
	}
	settled, err := d.settle(next)
	if err != nil {
		return s, err
	}
	return settled, nil
}

// settle applies rules until none fires.
func (d Definition[S]) settle(s Snapshot[S]) (Snapshot[S], error) {
	for step := 0; ; step++ {
		r, ok := d.firing(s)
		if !ok {
			return s, nil
		}
		if step == MaxSettleSteps {
			return s, fmt.Errorf("%w: last rule %q", ErrTransitionCycle, r.Name)
		}
		s.Phase = r.To
	}
}

func (d Definition[S]) firing(s Snapshot[S]) (Rule[S], bool) {
	for _, r := range d.Rules {
		if r.From != "" && r.From != s.Phase {
			continue
		}
		if r.To == s.Phase {
			continue
		}
		if r.Guard == nil || r.Guard(s) {
			return r, true
		}
	}
	return Rule[S]{}, false
}

// Pending reports whether a prediction is shown.
func (s Snapshot[S]) Pending() bool {
	return s.Prediction != nil
}

// Package game defines the contract every board game satisfies: a pure
// reducer from the initial roster and the ledger to the current state.
//
// A reducer must be deterministic, total over malformed or illegal actions
// (they are skipped), free of hidden state between calls, and must either
// apply an action completely or not at all. Fold implements the loop once so
// games only write the per-action step.
package game

import (
	"github.com/luca-patrignani/mental-ledger/ledger"
)

// Player describes a seat at the table, in roster order.
type Player struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	PublicKey string `json:"publicKey,omitempty"`
}

// Reducer maps an initial roster and an ordered ledger to the game state.
type Reducer[S any] func(players []Player, entries []ledger.Entry) S

// Cloner is implemented by states that can be deep copied.
type Cloner[S any] interface {
	Clone() S
}

// Step applies a decoded variant to a private copy of the state. It returns
// false when a precondition fails; the copy is then thrown away.
type Step[S any] func(state *S, v Variant, entry ledger.Entry) bool

// Fold replays entries from genesis over init. Each entry is decoded through
// registry; unknown variants and rejected steps leave the state untouched.
func Fold[S Cloner[S]](init S, entries []ledger.Entry, registry *Registry, step Step[S]) S {
	state := init
	for _, e := range entries {
		v := registry.Decode(e.Action)
		if _, unknown := v.(Unknown); unknown {
			continue
		}
		next := state.Clone()
		if applied := safeStep(step, &next, v, e); applied {
			state = next
		}
	}
	return state
}

// safeStep turns a panicking step into a skipped action.
func safeStep[S any](step Step[S], state *S, v Variant, e ledger.Entry) (applied bool) {
	defer func() {
		if r := recover(); r != nil {
			applied = false
		}
	}()
	return step(state, v, e)
}

// IndexOf returns the roster position of id, or -1.
func IndexOf(players []Player, id string) int {
	for i, p := range players {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// ClonePlayers copies a roster.
func ClonePlayers(players []Player) []Player {
	out := make([]Player, len(players))
	copy(out, players)
	return out
}

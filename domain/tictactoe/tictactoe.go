// Package tictactoe is the tic-tac-toe reducer. The first player in the roster
// plays X, the second plays O, and X moves first.
package tictactoe

import (
	"encoding/json"

	"github.com/luca-patrignani/mental-ledger/fsm"
	"github.com/luca-patrignani/mental-ledger/game"
	"github.com/luca-patrignani/mental-ledger/ledger"
)

const KindMove = "move"

// Mark is the content of a cell. The empty mark encodes as JSON null.
type Mark string

const (
	Empty Mark = ""
	X     Mark = "X"
	O     Mark = "O"
)

func (m Mark) MarshalJSON() ([]byte, error) {
	if m == Empty {
		return []byte("null"), nil
	}
	return json.Marshal(string(m))
}

func (m *Mark) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*m = Empty
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*m = Mark(s)
	return nil
}

// Move places the mover's mark on Cell.
type Move struct {
	Cell     *int   `json:"cell"`
	PlayerID string `json:"playerId"`
}

func (Move) ActionKind() string { return KindMove }

// State is the board after replay.
type State struct {
	Players []game.Player `json:"players"`
	Board   [9]Mark       `json:"board"`
	Turn    int           `json:"turn"`
	Winner  Mark          `json:"winner"`
	Draw    bool          `json:"draw"`
}

func (s State) Clone() State {
	s.Players = game.ClonePlayers(s.Players)
	return s
}

// Over reports whether no further move is accepted.
func (s State) Over() bool {
	return s.Winner != Empty || s.Draw
}

// ToMove returns the mark expected next.
func (s State) ToMove() Mark {
	if s.Turn%2 == 0 {
		return X
	}
	return O
}

var registry = game.NewRegistry().Register(KindMove, game.JSONDecoder[Move]())

// NewMove builds a move action.
func NewMove(cell int, playerID string) (ledger.Action, error) {
	return ledger.NewAction(KindMove, Move{Cell: &cell, PlayerID: playerID})
}

// Reduce replays entries over an empty board.
func Reduce(players []game.Player, entries []ledger.Entry) State {
	init := State{Players: game.ClonePlayers(players)}
	return game.Fold(init, entries, registry, apply)
}

var lines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

func apply(s *State, v game.Variant, _ ledger.Entry) bool {
	m, ok := v.(Move)
	if !ok || m.Cell == nil || s.Over() || len(s.Players) < 2 {
		return false
	}
	cell := *m.Cell
	if cell < 0 || cell >= len(s.Board) || s.Board[cell] != Empty {
		return false
	}
	seat := game.IndexOf(s.Players[:2], m.PlayerID)
	if seat < 0 || seat != s.Turn%2 {
		return false
	}
	s.Board[cell] = s.ToMove()
	s.Turn++
	for _, l := range lines {
		if a := s.Board[l[0]]; a != Empty && a == s.Board[l[1]] && a == s.Board[l[2]] {
			s.Winner = a
			return true
		}
	}
	s.Draw = s.Turn == len(s.Board)
	return true
}

const (
	PhasePlaying fsm.Phase = "playing"
	PhaseWon     fsm.Phase = "won"
	PhaseDraw    fsm.Phase = "draw"
)

// Phase maps a board to its controller phase.
func Phase(s State) fsm.Phase {
	switch {
	case s.Winner != Empty:
		return PhaseWon
	case s.Draw:
		return PhaseDraw
	default:
		return PhasePlaying
	}
}

// Rules end the session once the board is decided.
var Rules = []fsm.Rule[State]{
	{Name: "won", From: PhaseWon, To: fsm.Terminal},
	{Name: "draw", From: PhaseDraw, To: fsm.Terminal},
}

// Definition binds the reducer to a roster.
func Definition(players []game.Player) fsm.Definition[State] {
	return fsm.Definition[State]{
		Players: players,
		Reduce:  Reduce,
		PhaseOf: Phase,
		Rules:   Rules,
	}
}

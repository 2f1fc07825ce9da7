// Package ludo is the Ludo reducer for two to four players with four tokens
// each. Dice values are carried in the ledger.
package ludo

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"

	"github.com/luca-patrignani/mental-ledger/fsm"
	"github.com/luca-patrignani/mental-ledger/game"
	"github.com/luca-patrignani/mental-ledger/ledger"
)

const (
	KindRoll = "roll"
	KindMove = "move"
	KindPass = "pass"
)

const (
	// TrackLength is the number of squares of the shared loop.
	TrackLength = 52
	// HomeStretch is the number of private squares before home.
	HomeStretch = 6
	// Tokens per player.
	Tokens = 4

	// Base is the progress of a token that has not entered the track.
	Base = -1
	// lastTrack is the progress of the last shared square before the
	// home stretch.
	lastTrack = TrackLength - 2
	// Home is the progress of a finished token.
	Home = lastTrack + HomeStretch
)

type Roll struct {
	Value    int    `json:"value"`
	PlayerID string `json:"playerId"`
}

type Move struct {
	Token    *int   `json:"token"`
	PlayerID string `json:"playerId"`
}

type Pass struct {
	PlayerID string `json:"playerId"`
}

func (Roll) ActionKind() string { return KindRoll }
func (Move) ActionKind() string { return KindMove }
func (Pass) ActionKind() string { return KindPass }

var registry = game.NewRegistry().
	Register(KindRoll, game.JSONDecoder[Roll]()).
	Register(KindMove, game.JSONDecoder[Move]()).
	Register(KindPass, game.JSONDecoder[Pass]())

// State is the board after replay. Progress counts squares travelled from the
// owner's start square.
type State struct {
	Players  []game.Player `json:"players"`
	Progress [][Tokens]int `json:"progress"`
	Current  int           `json:"current"`
	Rolled   int           `json:"rolled"`
	Winner   string        `json:"winner,omitempty"`
}

func (s State) Clone() State {
	s.Players = game.ClonePlayers(s.Players)
	s.Progress = append([][Tokens]int(nil), s.Progress...)
	return s
}

func initial(players []game.Player) State {
	s := State{Players: game.ClonePlayers(players)}
	if len(players) < 2 || len(players) > 4 {
		return s
	}
	s.Progress = make([][Tokens]int, len(players))
	for i := range s.Progress {
		for t := range s.Progress[i] {
			s.Progress[i][t] = Base
		}
	}
	return s
}

// Reduce replays entries from the starting position.
func Reduce(players []game.Player, entries []ledger.Entry) State {
	return game.Fold(initial(players), entries, registry, apply)
}

// Playable reports whether the roster size supports a game.
func (s State) Playable() bool {
	return s.Progress != nil
}

// Square returns the shared square of a token, or -1 when it is in base, in
// the home stretch or home.
func (s State) Square(seat, token int) int {
	p := s.Progress[seat][token]
	if p < 0 || p > lastTrack {
		return -1
	}
	return (seat*TrackLength/len(s.Players) + p) % TrackLength
}

// CanMove reports whether token of the current player may move by the
// pending roll.
func (s State) CanMove(token int) bool {
	if s.Rolled == 0 || token < 0 || token >= Tokens {
		return false
	}
	p := s.Progress[s.Current][token]
	switch {
	case p == Base:
		return s.Rolled == 6
	case p == Home:
		return false
	default:
		return p+s.Rolled <= Home
	}
}

// LegalMoves lists the tokens the current player may move.
func (s State) LegalMoves() []int {
	var moves []int
	for t := 0; t < Tokens; t++ {
		if s.CanMove(t) {
			moves = append(moves, t)
		}
	}
	return moves
}

func (s State) onTurn(playerID string) bool {
	return s.Playable() && s.Winner == "" && game.IndexOf(s.Players, playerID) == s.Current
}

func apply(s *State, v game.Variant, _ ledger.Entry) bool {
	switch a := v.(type) {
	case Roll:
		if !s.onTurn(a.PlayerID) || s.Rolled != 0 || a.Value < 1 || a.Value > 6 {
			return false
		}
		s.Rolled = a.Value
		return true
	case Move:
		if !s.onTurn(a.PlayerID) || a.Token == nil || !s.CanMove(*a.Token) {
			return false
		}
		s.move(*a.Token)
		return true
	case Pass:
		if !s.onTurn(a.PlayerID) || s.Rolled == 0 || len(s.LegalMoves()) > 0 {
			return false
		}
		s.endTurn(false)
		return true
	}
	return false
}

func (s *State) move(token int) {
	seat := s.Current
	if s.Progress[seat][token] == Base {
		s.Progress[seat][token] = 0
	} else {
		s.Progress[seat][token] += s.Rolled
	}
	if sq := s.Square(seat, token); sq >= 0 {
		for other := range s.Progress {
			if other == seat {
				continue
			}
			for t := range s.Progress[other] {
				if s.Square(other, t) == sq {
					s.Progress[other][t] = Base
				}
			}
		}
	}
	if s.finished(seat) {
		s.Winner = s.Players[seat].ID
		s.Rolled = 0
		return
	}
	s.endTurn(s.Rolled == 6)
}

func (s *State) endTurn(again bool) {
	s.Rolled = 0
	if !again {
		s.Current = (s.Current + 1) % len(s.Players)
	}
}

func (s State) finished(seat int) bool {
	for _, p := range s.Progress[seat] {
		if p != Home {
			return false
		}
	}
	return true
}

// NewRoll builds a roll action with a chosen value.
func NewRoll(value int, playerID string) (ledger.Action, error) {
	return ledger.NewAction(KindRoll, Roll{Value: value, PlayerID: playerID})
}

// NewMove builds a move action.
func NewMove(token int, playerID string) (ledger.Action, error) {
	return ledger.NewAction(KindMove, Move{Token: &token, PlayerID: playerID})
}

// NewPass builds a pass action.
func NewPass(playerID string) (ledger.Action, error) {
	return ledger.NewAction(KindPass, Pass{PlayerID: playerID})
}

// RollStamper returns a payload stamper that overwrites the value of every
// roll with a die drawn from r. Sequencers install it so that guests cannot
// choose their own dice.
func RollStamper(r io.Reader) func(kind string, payload json.RawMessage) (json.RawMessage, error) {
	if r == nil {
		r = rand.Reader
	}
	return func(kind string, payload json.RawMessage) (json.RawMessage, error) {
		if kind != KindRoll {
			return payload, nil
		}
		var roll Roll
		if err := json.Unmarshal(payload, &roll); err != nil {
			return nil, fmt.Errorf("stamp roll: %w", err)
		}
		var b [1]byte
		for {
			if _, err := io.ReadFull(r, b[:]); err != nil {
				return nil, fmt.Errorf("stamp roll: %w", err)
			}
			if b[0] < 252 {
				break
			}
		}
		roll.Value = int(b[0]%6) + 1
		return json.Marshal(roll)
	}
}

const (
	PhaseRolling fsm.Phase = "rolling"
	PhaseMoving  fsm.Phase = "moving"
	PhaseWon     fsm.Phase = "won"
	PhaseLobby   fsm.Phase = "lobby"
)

// Phase maps a board to its controller phase.
func Phase(s State) fsm.Phase {
	switch {
	case !s.Playable():
		return PhaseLobby
	case s.Winner != "":
		return PhaseWon
	case s.Rolled != 0:
		return PhaseMoving
	default:
		return PhaseRolling
	}
}

var Rules = []fsm.Rule[State]{
	{Name: "won", From: PhaseWon, To: fsm.Terminal},
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

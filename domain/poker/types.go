package poker

import (
	"github.com/luca-patrignani/mental-ledger/domain/deck"
	"github.com/luca-patrignani/mental-ledger/game"
)

// Seat is a player at the table.
type Seat struct {
	ID     string `json:"id"`
	Hand   []Card `json:"hand,omitempty"`
	Folded bool   `json:"folded"`
	Chips  uint   `json:"chips"`
	// Bet is the amount put in during the current street.
	Bet uint `json:"bet"`
	// Contributed is the amount put in during the whole hand.
	Contributed uint `json:"contributed"`
	Acted       bool `json:"acted"`
}

// AllIn reports whether the seat is still in the hand without chips.
func (s Seat) AllIn() bool {
	return !s.Folded && s.Chips == 0 && s.Contributed > 0
}

// CanAct reports whether the seat still takes betting decisions.
func (s Seat) CanAct() bool {
	return !s.Folded && s.Chips > 0 && len(s.Hand) > 0
}

// Pot is an amount and the seats that can win it.
type Pot struct {
	Amount   uint  `json:"amount"`
	Eligible []int `json:"eligible"`
}

// Payout records chips won by a seat at the end of a hand.
type Payout struct {
	Seat   int    `json:"seat"`
	Amount uint   `json:"amount"`
	Hand   string `json:"hand,omitempty"`
}

// State is the table after replay.
type State struct {
	Players    []game.Player `json:"players"`
	Seats      []Seat        `json:"seats"`
	Board      []Card        `json:"board"`
	Deck       deck.Deck     `json:"deck"`
	Street     Street        `json:"street"`
	Dealer     int           `json:"dealer"`
	Current    int           `json:"current"`
	HighestBet uint          `json:"highestBet"`
	MinRaise   uint          `json:"minRaise"`
	Pots       []Pot         `json:"pots"`
	Hands      int           `json:"hands"`
	LastResult []Payout      `json:"lastResult,omitempty"`
}

func (s State) Clone() State {
	s.Players = game.ClonePlayers(s.Players)
	seats := make([]Seat, len(s.Seats))
	for i, seat := range s.Seats {
		seat.Hand = append([]Card(nil), seat.Hand...)
		seats[i] = seat
	}
	s.Seats = seats
	s.Board = append([]Card(nil), s.Board...)
	s.Deck = s.Deck.Clone()
	s.Pots = clonePots(s.Pots)
	s.LastResult = append([]Payout(nil), s.LastResult...)
	return s
}

func clonePots(pots []Pot) []Pot {
	if pots == nil {
		return nil
	}
	out := make([]Pot, len(pots))
	for i, p := range pots {
		out[i] = Pot{Amount: p.Amount, Eligible: append([]int(nil), p.Eligible...)}
	}
	return out
}

// Table holds the stakes of a game.
type Table struct {
	StartingChips uint
	SmallBlind    uint
	BigBlind      uint
}

// DefaultTable is used by Reduce.
var DefaultTable = Table{StartingChips: 1000, SmallBlind: 5, BigBlind: 10}

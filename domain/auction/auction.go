// Package auction is a planet auction. Planets come up one at a time from a
// deck ordered by the hash of the genesis entry; players bid in turn or pass
// and the last bidder standing buys the planet.
package auction

import (
	"github.com/luca-patrignani/mental-ledger/domain/deck"
	"github.com/luca-patrignani/mental-ledger/fsm"
	"github.com/luca-patrignani/mental-ledger/game"
	"github.com/luca-patrignani/mental-ledger/ledger"
)

const (
	KindBid  = "bid"
	KindPass = "pass"
)

// StartingCoins is the purse of every player.
const StartingCoins = 100

// Planet is an auction lot.
type Planet struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// Catalogue is the full set of lots in their canonical order.
var Catalogue = []Planet{
	{"Mercury", 2}, {"Venus", 5}, {"Earth", 9}, {"Mars", 6},
	{"Jupiter", 12}, {"Saturn", 10}, {"Uranus", 7}, {"Neptune", 7},
	{"Pluto", 1}, {"Ceres", 3}, {"Eris", 2}, {"Haumea", 4},
}

type Bid struct {
	Amount   int    `json:"amount"`
	PlayerID string `json:"playerId"`
}

type Pass struct {
	PlayerID string `json:"playerId"`
}

func (Bid) ActionKind() string  { return KindBid }
func (Pass) ActionKind() string { return KindPass }

var registry = game.NewRegistry().
	Register(KindBid, game.JSONDecoder[Bid]()).
	Register(KindPass, game.JSONDecoder[Pass]())

// State is the auction after replay. Lot is an index into Catalogue, or -1
// when nothing is on sale.
type State struct {
	Players    []game.Player `json:"players"`
	Coins      []int         `json:"coins"`
	Holdings   [][]int       `json:"holdings"`
	Deck       deck.Deck     `json:"deck"`
	Lot        int           `json:"lot"`
	HighBid    int           `json:"highBid"`
	HighBidder int           `json:"highBidder"`
	Passed     []bool        `json:"passed"`
	Current    int           `json:"current"`
	Opener     int           `json:"opener"`
	Over       bool          `json:"over"`
}

func (s State) Clone() State {
	s.Players = game.ClonePlayers(s.Players)
	s.Coins = append([]int(nil), s.Coins...)
	holdings := make([][]int, len(s.Holdings))
	for i, h := range s.Holdings {
		if h != nil {
			holdings[i] = append([]int(nil), h...)
		}
	}
	s.Holdings = holdings
	s.Deck = s.Deck.Clone()
	s.Passed = append([]bool(nil), s.Passed...)
	return s
}

// Reduce replays entries. The deck is seeded with the genesis entry hash, so
// an empty ledger has no lot on sale.
func Reduce(players []game.Player, entries []ledger.Entry) State {
	s := State{Players: game.ClonePlayers(players), Lot: -1, HighBidder: -1}
	if len(players) < 2 || len(entries) == 0 {
		return s
	}
	n := len(players)
	s.Coins = make([]int, n)
	for i := range s.Coins {
		s.Coins[i] = StartingCoins
	}
	s.Holdings = make([][]int, n)
	s.Passed = make([]bool, n)
	s.Deck = deck.New([]byte(entries[0].Hash), len(Catalogue))
	s.nextLot()
	s.Current = s.Opener
	return game.Fold(s, entries, registry, apply)
}

func apply(s *State, v game.Variant, _ ledger.Entry) bool {
	if s.Over || s.Lot < 0 {
		return false
	}
	switch a := v.(type) {
	case Bid:
		seat := game.IndexOf(s.Players, a.PlayerID)
		if seat != s.Current || s.Passed[seat] {
			return false
		}
		if a.Amount <= s.HighBid || a.Amount > s.Coins[seat] {
			return false
		}
		s.HighBid = a.Amount
		s.HighBidder = seat
		s.advance()
		return true
	case Pass:
		seat := game.IndexOf(s.Players, a.PlayerID)
		if seat != s.Current || s.Passed[seat] {
			return false
		}
		s.Passed[seat] = true
		s.advance()
		return true
	}
	return false
}

// advance moves the turn to the next active player or closes the lot.
func (s *State) advance() {
	active := 0
	for i, p := range s.Passed {
		if !p && i != s.HighBidder {
			active++
		}
	}
	if active == 0 {
		s.close()
		return
	}
	n := len(s.Players)
	for i := 1; i <= n; i++ {
		seat := (s.Current + i) % n
		if !s.Passed[seat] {
			s.Current = seat
			return
		}
	}
}

func (s *State) close() {
	if s.HighBidder >= 0 {
		s.Coins[s.HighBidder] -= s.HighBid
		s.Holdings[s.HighBidder] = append(s.Holdings[s.HighBidder], s.Lot)
	}
	s.Opener = (s.Opener + 1) % len(s.Players)
	s.nextLot()
	s.Current = s.Opener
}

func (s *State) nextLot() {
	s.HighBid = 0
	s.HighBidder = -1
	for i := range s.Passed {
		s.Passed[i] = false
	}
	lot, rest, err := s.Deck.Draw()
	if err != nil {
		s.Lot = -1
		s.Over = true
		return
	}
	s.Lot = lot
	s.Deck = rest
}

// Score is the total planet value held by each seat.
func (s State) Score() []int {
	scores := make([]int, len(s.Holdings))
	for i, h := range s.Holdings {
		for _, lot := range h {
			scores[i] += Catalogue[lot].Value
		}
	}
	return scores
}

// Leader returns the seat with the highest score, or -1 on a tie.
func (s State) Leader() int {
	best, leader := -1, -1
	for i, v := range s.Score() {
		switch {
		case v > best:
			best, leader = v, i
		case v == best:
			leader = -1
		}
	}
	return leader
}

// OnSale returns the planet currently auctioned.
func (s State) OnSale() (Planet, bool) {
	if s.Lot < 0 {
		return Planet{}, false
	}
	return Catalogue[s.Lot], true
}

func NewBid(amount int, playerID string) (ledger.Action, error) {
	return ledger.NewAction(KindBid, Bid{Amount: amount, PlayerID: playerID})
}

func NewPass(playerID string) (ledger.Action, error) {
	return ledger.NewAction(KindPass, Pass{PlayerID: playerID})
}

const (
	PhaseLobby   fsm.Phase = "lobby"
	PhaseBidding fsm.Phase = "bidding"
	PhaseEnded   fsm.Phase = "ended"
)

func Phase(s State) fsm.Phase {
	switch {
	case s.Over:
		return PhaseEnded
	case s.Lot < 0:
		return PhaseLobby
	default:
		return PhaseBidding
	}
}

var Rules = []fsm.Rule[State]{
	{Name: "ended", From: PhaseEnded, To: fsm.Terminal},
}

func Definition(players []game.Player) fsm.Definition[State] {
	return fsm.Definition[State]{
		Players: players,
		Reduce:  Reduce,
		PhaseOf: Phase,
		Rules:   Rules,
	}
}

package poker

import (
	"encoding/json"

	"github.com/luca-patrignani/mental-ledger/domain/deck"
	"github.com/luca-patrignani/mental-ledger/fsm"
	"github.com/luca-patrignani/mental-ledger/game"
	"github.com/luca-patrignani/mental-ledger/ledger"
)

type ActionType string

const (
	ActionDeal  ActionType = "deal"
	ActionBet   ActionType = "bet"
	ActionCall  ActionType = "call"
	ActionRaise ActionType = "raise"
	ActionAllIn ActionType = "allin"
	ActionFold  ActionType = "fold"
	ActionCheck ActionType = "check"
)

// PokerAction is the payload of every poker ledger entry. The entry kind is
// the action type.
type PokerAction struct {
	Type     ActionType `json:"-"`
	PlayerID string     `json:"playerId"`
	Amount   uint       `json:"amount,omitempty"`
}

func (a PokerAction) ActionKind() string { return string(a.Type) }

func decoderFor(t ActionType) game.Decoder {
	decode := game.JSONDecoder[PokerAction]()
	return func(payload json.RawMessage) (game.Variant, error) {
		v, err := decode(payload)
		if err != nil {
			return nil, err
		}
		a := v.(PokerAction)
		a.Type = t
		return a, nil
	}
}

var registry = func() *game.Registry {
	r := game.NewRegistry()
	for _, t := range []ActionType{ActionDeal, ActionBet, ActionCall, ActionRaise, ActionAllIn, ActionFold, ActionCheck} {
		r.Register(string(t), decoderFor(t))
	}
	return r
}()

// NewAction builds a ledger action for playerID.
func NewAction(t ActionType, playerID string, amount uint) (ledger.Action, error) {
	return ledger.NewAction(string(t), PokerAction{PlayerID: playerID, Amount: amount})
}

// Reduce replays entries at the default table.
func Reduce(players []game.Player, entries []ledger.Entry) State {
	return NewReducer(DefaultTable)(players, entries)
}

// NewReducer returns the reducer for the stakes of t.
func NewReducer(t Table) game.Reducer[State] {
	return func(players []game.Player, entries []ledger.Entry) State {
		s := State{Players: game.ClonePlayers(players), Dealer: -1, Current: -1, MinRaise: t.BigBlind}
		s.Seats = make([]Seat, len(players))
		for i, p := range players {
			s.Seats[i] = Seat{ID: p.ID, Chips: t.StartingChips}
		}
		return game.Fold(s, entries, registry, func(s *State, v game.Variant, e ledger.Entry) bool {
			return apply(s, t, v, e)
		})
	}
}

func (s *State) seatOf(playerID string) int {
	for i, seat := range s.Seats {
		if seat.ID == playerID {
			return i
		}
	}
	return -1
}

func apply(s *State, t Table, v game.Variant, e ledger.Entry) bool {
	a, ok := v.(PokerAction)
	if !ok {
		return false
	}
	idx := s.seatOf(a.PlayerID)
	if idx < 0 {
		return false
	}
	if a.Type == ActionDeal {
		return s.deal(t, idx, e)
	}
	if s.Street == Idle || idx != s.Current || !s.Seats[idx].CanAct() {
		return false
	}
	if err := checkPokerLogic(a.Type, a.Amount, s, t, idx); err != nil {
		return false
	}
	s.applyAction(a.Type, a.Amount, idx)
	s.advanceTurn(t)
	return true
}

// applyAction moves chips for a validated action.
func (s *State) applyAction(a ActionType, amount uint, idx int) {
	seat := &s.Seats[idx]
	toCall := s.HighestBet - seat.Bet
	switch a {
	case ActionFold:
		seat.Folded = true
	case ActionCheck:
	case ActionCall:
		s.put(idx, toCall)
	case ActionBet, ActionRaise:
		s.put(idx, toCall+amount)
		s.raiseTo(idx, amount)
	case ActionAllIn:
		raise := uint(0)
		if seat.Chips > toCall {
			raise = seat.Chips - toCall
		}
		s.put(idx, seat.Chips)
		if raise > 0 {
			s.raiseTo(idx, raise)
		}
	}
	seat.Acted = true
	s.recalculatePots()
}

func (s *State) put(idx int, amount uint) {
	seat := &s.Seats[idx]
	seat.Chips -= amount
	seat.Bet += amount
	seat.Contributed += amount
}

// raiseTo records a raise by seat idx. A raise smaller than the minimum, only
// possible all-in, does not reopen the betting.
func (s *State) raiseTo(idx int, raise uint) {
	s.HighestBet = s.Seats[idx].Bet
	if raise < s.MinRaise {
		return
	}
	s.MinRaise = raise
	for i := range s.Seats {
		if i != idx {
			s.Seats[i].Acted = false
		}
	}
}

// deal starts a new hand. The deck is shuffled with the hash of the deal
// entry so every replica sees the same cards.
func (s *State) deal(t Table, idx int, e ledger.Entry) bool {
	if s.Street != Idle || !hasChips(s.Seats[idx]) {
		return false
	}
	funded := 0
	for _, seat := range s.Seats {
		if hasChips(seat) {
			funded++
		}
	}
	if funded < 2 {
		return false
	}

	s.Hands++
	s.Board = nil
	s.LastResult = nil
	s.Deck = deck.New([]byte(e.Hash), DeckSize)
	s.Dealer = s.nextSeat(s.Dealer, hasChips)
	for i := range s.Seats {
		seat := &s.Seats[i]
		seat.Hand = nil
		seat.Folded = !hasChips(*seat)
		seat.Bet, seat.Contributed, seat.Acted = 0, 0, false
	}
	for round := 0; round < 2; round++ {
		for i := range s.Seats {
			seat := (s.Dealer + 1 + i) % len(s.Seats)
			if s.Seats[seat].Folded {
				continue
			}
			c, rest, err := s.Deck.Draw()
			if err != nil {
				return false
			}
			s.Deck = rest
			card, _ := CardAt(c)
			s.Seats[seat].Hand = append(s.Seats[seat].Hand, card)
		}
	}

	s.Street = PreFlop
	s.MinRaise = t.BigBlind
	small := s.nextSeat(s.Dealer, hasChips)
	if funded == 2 {
		small = s.Dealer
	}
	big := s.nextSeat(small, hasChips)
	s.put(small, min(t.SmallBlind, s.Seats[small].Chips))
	s.put(big, min(t.BigBlind, s.Seats[big].Chips))
	s.HighestBet = max(s.Seats[small].Bet, s.Seats[big].Bet)
	s.recalculatePots()

	s.Current = s.nextSeat(big, Seat.CanAct)
	if s.Current < 0 || (s.actors() < 2 && s.Seats[s.Current].Bet >= s.HighestBet) {
		s.advanceStreet(t)
	}
	return true
}

// Winner returns the seat holding every chip, or -1.
func (s State) Winner() int {
	winner := -1
	for i, seat := range s.Seats {
		if seat.Chips > 0 {
			if winner >= 0 {
				return -1
			}
			winner = i
		}
	}
	if s.Street != Idle || s.Hands == 0 {
		return -1
	}
	return winner
}

const (
	PhaseWaiting  fsm.Phase = "waiting_deal"
	PhaseBetting  fsm.Phase = "betting"
	PhaseFinished fsm.Phase = "finished"
)

func Phase(s State) fsm.Phase {
	switch {
	case s.Winner() >= 0:
		return PhaseFinished
	case s.Street == Idle:
		return PhaseWaiting
	default:
		return PhaseBetting
	}
}

var Rules = []fsm.Rule[State]{
	{Name: "finished", From: PhaseFinished, To: fsm.Terminal},
}

func Definition(players []game.Player) fsm.Definition[State] {
	return fsm.Definition[State]{
		Players: players,
		Reduce:  Reduce,
		PhaseOf: Phase,
		Rules:   Rules,
	}
}

package poker

// Street is the betting round of a hand. Idle is the gap between hands.
type Street string

const (
	Idle     Street = ""
	PreFlop  Street = "preflop"
	Flop     Street = "flop"
	Turn     Street = "turn"
	River    Street = "river"
	Showdown Street = "showdown"
)

// nextStreet returns the street after current. Showdown and unknown values
// return Idle.
func nextStreet(current Street) Street {
	streets := []Street{PreFlop, Flop, Turn, River, Showdown}
	for i, r := range streets {
		if r == current && i < len(streets)-1 {
			return streets[i+1]
		}
	}
	return Idle
}

// boardCards is the number of community cards dealt when entering a street.
func boardCards(s Street) int {
	switch s {
	case Flop:
		return 3
	case Turn, River:
		return 1
	}
	return 0
}

// nextSeat returns the first seat after from, wrapping around, that satisfies
// ok, or -1.
func (s *State) nextSeat(from int, ok func(Seat) bool) int {
	n := len(s.Seats)
	for i := 1; i <= n; i++ {
		next := (from + i) % n
		if ok(s.Seats[next]) {
			return next
		}
	}
	return -1
}

func inHand(seat Seat) bool  { return !seat.Folded && len(seat.Hand) > 0 }
func hasChips(seat Seat) bool { return seat.Chips > 0 }

// contenders counts the seats still holding cards.
func (s *State) contenders() int {
	n := 0
	for _, seat := range s.Seats {
		if inHand(seat) {
			n++
		}
	}
	return n
}

// actors counts the seats that can still bet.
func (s *State) actors() int {
	n := 0
	for _, seat := range s.Seats {
		if seat.CanAct() {
			n++
		}
	}
	return n
}

// isRoundFinished reports whether every seat that can act has acted and
// matched the highest bet.
func (s *State) isRoundFinished() bool {
	for _, seat := range s.Seats {
		if seat.CanAct() && (!seat.Acted || seat.Bet != s.HighestBet) {
			return false
		}
	}
	return true
}

// advanceTurn moves the turn to the next seat that can act, or ends the
// street when betting is complete.
func (s *State) advanceTurn(t Table) {
	if s.contenders() == 1 {
		s.settle(t)
		return
	}
	if !s.isRoundFinished() {
		s.Current = s.nextSeat(s.Current, Seat.CanAct)
		return
	}
	s.advanceStreet(t)
}

// advanceStreet deals the next community cards and opens a new betting round.
// When fewer than two seats can still bet the board is run out.
func (s *State) advanceStreet(t Table) {
	for {
		s.Street = nextStreet(s.Street)
		if s.Street == Showdown || s.Street == Idle {
			s.settle(t)
			return
		}
		cards, rest, err := s.Deck.DrawN(boardCards(s.Street))
		if err != nil {
			s.settle(t)
			return
		}
		s.Deck = rest
		for _, c := range cards {
			card, _ := CardAt(c)
			s.Board = append(s.Board, card)
		}
		s.HighestBet = 0
		s.MinRaise = t.BigBlind
		for i := range s.Seats {
			s.Seats[i].Bet = 0
			s.Seats[i].Acted = false
		}
		if s.actors() >= 2 {
			s.Current = s.nextSeat(s.Dealer, Seat.CanAct)
			return
		}
	}
}

package poker

import "fmt"

// checkPokerLogic validates a betting action of seat idx against the table.
// For bet and raise, amount is the number of chips added on top of a call.
func checkPokerLogic(a ActionType, amount uint, s *State, t Table, idx int) error {
	seat := s.Seats[idx]
	toCall := s.HighestBet - seat.Bet
	switch a {
	case ActionFold:
		return nil
	case ActionBet:
		if s.HighestBet != 0 {
			return fmt.Errorf("cannot bet after a bet, raise instead")
		}
		if amount < t.BigBlind {
			return fmt.Errorf("bet below the big blind")
		}
		if amount > seat.Chips {
			return fmt.Errorf("insufficient funds")
		}
	case ActionRaise:
		if s.HighestBet == 0 {
			return fmt.Errorf("nothing to raise, bet instead")
		}
		if amount < s.MinRaise {
			return fmt.Errorf("raise below the minimum of %d", s.MinRaise)
		}
		if toCall+amount > seat.Chips {
			return fmt.Errorf("insufficient funds to raise")
		}
	case ActionCall:
		if toCall == 0 {
			return fmt.Errorf("nothing to call")
		}
		if toCall > seat.Chips {
			return fmt.Errorf("insufficient funds to call")
		}
	case ActionAllIn:
		if seat.Chips == 0 {
			return fmt.Errorf("no chips left")
		}
	case ActionCheck:
		if toCall != 0 {
			return fmt.Errorf("cannot check, must call, raise or fold")
		}
	default:
		return fmt.Errorf("unknown action %q", a)
	}
	return nil
}

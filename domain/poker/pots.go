package poker

// recalculatePots rebuilds the pot structure from what every seat contributed
// during the hand. Each layer of the smallest remaining contribution forms a
// pot; a seat is eligible for a pot if it paid into it and has not folded.
// Adjacent layers with the same eligible seats are merged, and a layer nobody
// can win is added to the pot below it.
func (s *State) recalculatePots() {
	s.Pots = nil

	bets := make([]uint, len(s.Seats))
	for i, seat := range s.Seats {
		bets[i] = seat.Contributed
	}

	for {
		contributors := []int{}
		for i, b := range bets {
			if b > 0 {
				contributors = append(contributors, i)
			}
		}
		if len(contributors) == 0 {
			break
		}

		minBet := bets[contributors[0]]
		for _, idx := range contributors {
			if bets[idx] < minBet {
				minBet = bets[idx]
			}
		}

		amount := uint(0)
		eligible := []int{}
		for _, idx := range contributors {
			amount += minBet
			bets[idx] -= minBet
			if !s.Seats[idx].Folded {
				eligible = append(eligible, idx)
			}
		}

		last := len(s.Pots) - 1
		switch {
		case last >= 0 && (len(eligible) == 0 || sameSeats(s.Pots[last].Eligible, eligible)):
			s.Pots[last].Amount += amount
		default:
			s.Pots = append(s.Pots, Pot{Amount: amount, Eligible: eligible})
		}
	}
}

func sameSeats(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// TotalPot is the sum of every pot.
func (s State) TotalPot() uint {
	total := uint(0)
	for _, p := range s.Pots {
		total += p.Amount
	}
	return total
}

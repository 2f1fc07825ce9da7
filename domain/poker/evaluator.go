package poker

import (
	"fmt"
	"sort"

	"github.com/paulhankin/poker"
)

// settle distributes the pots and closes the hand.
func (s *State) settle(t Table) {
	s.recalculatePots()
	payouts, err := s.winnerEval()
	if err != nil {
		// An unevaluable hand returns every contribution.
		payouts = nil
		for i, seat := range s.Seats {
			if seat.Contributed > 0 {
				payouts = append(payouts, Payout{Seat: i, Amount: seat.Contributed})
			}
		}
	}
	for _, p := range payouts {
		s.Seats[p.Seat].Chips += p.Amount
	}
	s.LastResult = payouts
	s.Pots = nil
	s.Street = Idle
	s.HighestBet = 0
	s.MinRaise = t.BigBlind
	for i := range s.Seats {
		s.Seats[i].Bet = 0
		s.Seats[i].Contributed = 0
		s.Seats[i].Acted = false
	}
}

// winnerEval evaluates the final hand of every eligible seat for each pot and
// splits the pot among the best hands. Odd chips go to the winners closest to
// the left of the dealer.
func (s *State) winnerEval() ([]Payout, error) {
	won := make(map[int]uint)
	described := make(map[int]string)

	for _, pot := range s.Pots {
		if len(pot.Eligible) == 1 {
			won[pot.Eligible[0]] += pot.Amount
			continue
		}
		type scored struct {
			idx   int
			score int16
		}
		var scoredSeats []scored
		for _, idx := range pot.Eligible {
			finalHand, err := s.makeFinalHand(idx)
			if err != nil {
				return nil, err
			}
			scoredSeats = append(scoredSeats, scored{idx: idx, score: poker.Eval7(&finalHand)})
			if _, ok := described[idx]; !ok {
				if d, err := poker.Describe(finalHand[:]); err == nil {
					described[idx] = d
				}
			}
		}
		if len(scoredSeats) == 0 {
			continue
		}

		sort.SliceStable(scoredSeats, func(i, j int) bool {
			return scoredSeats[i].score > scoredSeats[j].score
		})
		best := scoredSeats[0].score
		winners := []int{}
		for _, sc := range scoredSeats {
			if sc.score == best {
				winners = append(winners, sc.idx)
			}
		}
		sort.Slice(winners, func(i, j int) bool {
			return s.leftOfDealer(winners[i]) < s.leftOfDealer(winners[j])
		})

		share := pot.Amount / uint(len(winners))
		odd := pot.Amount % uint(len(winners))
		for i, w := range winners {
			won[w] += share
			if uint(i) < odd {
				won[w]++
			}
		}
	}

	payouts := make([]Payout, 0, len(won))
	for seat, amount := range won {
		payouts = append(payouts, Payout{Seat: seat, Amount: amount, Hand: described[seat]})
	}
	sort.Slice(payouts, func(i, j int) bool { return payouts[i].Seat < payouts[j].Seat })
	return payouts, nil
}

func (s *State) leftOfDealer(seat int) int {
	n := len(s.Seats)
	return (seat - s.Dealer - 1 + n) % n
}

// DescribeHand names the best five-card hand of a seat once the board is
// complete.
func (s State) DescribeHand(seat int) (string, error) {
	c, err := s.makeFinalHand(seat)
	if err != nil {
		return "", err
	}
	return poker.Describe(c[:])
}

func (s State) makeFinalHand(seat int) ([7]poker.Card, error) {
	var finalHand [7]poker.Card
	hand := s.Seats[seat].Hand
	if len(s.Board) != 5 || len(hand) != 2 {
		return finalHand, fmt.Errorf("incomplete hand for seat %d", seat)
	}
	cards := append(append([]Card(nil), s.Board...), hand...)
	for i, c := range cards {
		card, err := poker.MakeCard(poker.Suit(c.Suit), poker.Rank(c.Rank))
		if err != nil {
			return [7]poker.Card{}, fmt.Errorf("invalid card at idx %d: %w", i, err)
		}
		finalHand[i] = card
	}
	return finalHand, nil
}

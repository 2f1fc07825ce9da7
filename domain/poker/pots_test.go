package poker

import "testing"

// TestRecalculatePotsBasic checks a simple pot without any side pots
func TestRecalculatePotsBasic(t *testing.T) {
	s := State{Seats: []Seat{
		{ID: "alice", Contributed: 50},
		{ID: "bob", Contributed: 50},
	}}
	s.recalculatePots()

	if len(s.Pots) != 1 {
		t.Fatalf("expected 1 pot, got %d", len(s.Pots))
	}
	if s.Pots[0].Amount != 100 {
		t.Errorf("expected pot amount 100, got %d", s.Pots[0].Amount)
	}
	if len(s.Pots[0].Eligible) != 2 {
		t.Errorf("expected 2 eligible players, got %d", len(s.Pots[0].Eligible))
	}
}

// TestRecalculatePotsWithFold ensures folded players pay in but cannot win
func TestRecalculatePotsWithFold(t *testing.T) {
	s := State{Seats: []Seat{
		{ID: "alice", Contributed: 50},
		{ID: "bob", Contributed: 100, Folded: true},
		{ID: "carol", Contributed: 200},
	}}
	s.recalculatePots()

	// 50*3=150 for alice and carol, then 50*2 and 100*1 for carol alone
	expectedAmounts := []uint{150, 200}
	expectedEligible := [][]int{{0, 2}, {2}}

	if len(s.Pots) != len(expectedAmounts) {
		t.Fatalf("expected %d pots, got %d: %+v", len(expectedAmounts), len(s.Pots), s.Pots)
	}
	for i, pot := range s.Pots {
		if pot.Amount != expectedAmounts[i] {
			t.Errorf("pot %d: expected amount %d, got %d", i, expectedAmounts[i], pot.Amount)
		}
		if !sameSeats(pot.Eligible, expectedEligible[i]) {
			t.Errorf("pot %d: expected eligible %v, got %v", i, expectedEligible[i], pot.Eligible)
		}
	}
}

// TestRecalculatePotsAllIn verifies the side pots of different all-in sizes
func TestRecalculatePotsAllIn(t *testing.T) {
	s := State{Seats: []Seat{
		{ID: "alice", Contributed: 50},
		{ID: "bob", Contributed: 200},
		{ID: "carol", Contributed: 100},
	}}
	s.recalculatePots()

	expectedAmounts := []uint{150, 100, 100}
	expectedEligible := [][]int{{0, 1, 2}, {1, 2}, {1}}
	if len(s.Pots) != len(expectedAmounts) {
		t.Fatalf("expected %d pots, got %d", len(expectedAmounts), len(s.Pots))
	}
	for i, pot := range s.Pots {
		if pot.Amount != expectedAmounts[i] || !sameSeats(pot.Eligible, expectedEligible[i]) {
			t.Errorf("pot %d: expected %d %v, got %d %v", i, expectedAmounts[i], expectedEligible[i], pot.Amount, pot.Eligible)
		}
	}
	if s.TotalPot() != 350 {
		t.Errorf("expected total 350, got %d", s.TotalPot())
	}
}

// TestWinnerEvalSplitsOddChip gives the odd chip to the first seat left of
// the dealer.
func TestWinnerEvalSplitsOddChip(t *testing.T) {
	board := []Card{{Club, 2}, {Diamond, 7}, {Heart, 9}, {Spade, Jack}, {Club, King}}
	s := State{
		Dealer: 0,
		Board:  board,
		Seats: []Seat{
			{ID: "alice", Hand: []Card{{Heart, 3}, {Diamond, 4}}},
			{ID: "bob", Hand: []Card{{Spade, 3}, {Club, 4}}},
		},
		Pots: []Pot{{Amount: 21, Eligible: []int{0, 1}}},
	}
	payouts, err := s.winnerEval()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(payouts) != 2 {
		t.Fatalf("expected a split pot, got %+v", payouts)
	}
	if payouts[0].Amount != 10 || payouts[1].Amount != 11 {
		t.Fatalf("odd chip should go left of the dealer: %+v", payouts)
	}
}

// TestWinnerEvalBestHand checks that the stronger hand takes the pot.
func TestWinnerEvalBestHand(t *testing.T) {
	s := State{
		Board: []Card{{Club, 2}, {Diamond, 7}, {Heart, 9}, {Spade, Jack}, {Club, King}},
		Seats: []Seat{
			{ID: "alice", Hand: []Card{{Heart, King}, {Diamond, King}}},
			{ID: "bob", Hand: []Card{{Spade, 3}, {Club, 4}}},
		},
		Pots: []Pot{{Amount: 40, Eligible: []int{0, 1}}},
	}
	payouts, err := s.winnerEval()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(payouts) != 1 || payouts[0].Seat != 0 || payouts[0].Amount != 40 {
		t.Fatalf("expected alice to win 40, got %+v", payouts)
	}
	if payouts[0].Hand == "" {
		t.Fatal("expected a hand description")
	}
}

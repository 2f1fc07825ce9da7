package poker

import "testing"

func TestCheckPokerLogic(t *testing.T) {
	tbl := DefaultTable
	tests := []struct {
		name    string
		action  ActionType
		amount  uint
		seat    Seat
		highest uint
		wantErr bool
	}{
		{"bet insufficient funds", ActionBet, 100, Seat{Chips: 50}, 0, true},
		{"bet sufficient funds", ActionBet, 50, Seat{Chips: 100}, 0, false},
		{"bet below big blind", ActionBet, 5, Seat{Chips: 100}, 0, true},
		{"bet facing a bet", ActionBet, 50, Seat{Chips: 100}, 20, true},
		{"raise without a bet", ActionRaise, 20, Seat{Chips: 100}, 0, true},
		{"raise below minimum", ActionRaise, 5, Seat{Chips: 100}, 20, true},
		{"raise insufficient funds", ActionRaise, 60, Seat{Chips: 70, Bet: 0}, 20, true},
		{"raise", ActionRaise, 20, Seat{Chips: 100, Bet: 10}, 20, false},
		{"call insufficient funds", ActionCall, 0, Seat{Chips: 30, Bet: 50}, 100, true},
		{"call sufficient funds", ActionCall, 0, Seat{Chips: 100, Bet: 50}, 100, false},
		{"call nothing", ActionCall, 0, Seat{Chips: 100, Bet: 100}, 100, true},
		{"check when bet required", ActionCheck, 0, Seat{Chips: 100, Bet: 50}, 100, true},
		{"check", ActionCheck, 0, Seat{Chips: 100, Bet: 100}, 100, false},
		{"allin", ActionAllIn, 0, Seat{Chips: 1}, 100, false},
		{"allin without chips", ActionAllIn, 0, Seat{}, 100, true},
		{"fold", ActionFold, 0, Seat{Chips: 1}, 100, false},
		{"unknown", "ban", 0, Seat{Chips: 1}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &State{Seats: []Seat{tt.seat}, HighestBet: tt.highest, MinRaise: tt.highest}
			err := checkPokerLogic(tt.action, tt.amount, s, tbl, 0)
			if tt.wantErr && err == nil {
				t.Fatal("expected error")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

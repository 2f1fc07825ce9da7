package poker

import (
	"testing"

	"github.com/pterm/pterm"
)

func TestCardAt(t *testing.T) {
	expectedCard := Card{Suit: Heart, Rank: 2}
	testCard, err := CardAt(27)
	if err != nil {
		t.Fatal(err)
	}
	if testCard != expectedCard {
		t.Fatalf("expected %v, get %v", expectedCard, testCard)
	}
}

func TestAllCardsDistinct(t *testing.T) {
	seen := make(map[Card]bool)
	for i := 0; i < DeckSize; i++ {
		c, err := CardAt(i)
		if err != nil {
			t.Fatal(err)
		}
		if seen[c] {
			t.Fatalf("card %v appears twice", c)
		}
		seen[c] = true
	}
	if _, err := CardAt(DeckSize); err == nil {
		t.Fatal("expected error past the last card")
	}
}

func TestCardStringFaces(t *testing.T) {
	tests := []struct {
		card     Card
		expected string
	}{
		{Card{Suit: Heart, Rank: Ace}, "A♥"},
		{Card{Suit: Club, Rank: Jack}, "J♣"},
		{Card{Suit: Spade, Rank: 10}, "10♠"},
		{Card{}, FaceDown},
	}
	for _, tt := range tests {
		if got := pterm.RemoveColorFromString(tt.card.String()); got != tt.expected {
			t.Fatalf("expected %s, got %s", tt.expected, got)
		}
	}
}

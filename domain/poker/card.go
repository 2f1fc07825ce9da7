package poker

import (
	"fmt"

	"github.com/pterm/pterm"
)

// Card suit constants (0-3)
const (
	Club    = 0 // ♣ (black)
	Diamond = 1 // ♦ (red)
	Heart   = 2 // ♥ (red)
	Spade   = 3 // ♠ (black)
)

// Card rank constants for face cards and ace
const (
	Jack  = 11 // J
	Queen = 12 // Q
	King  = 13 // K
	Ace   = 1  // A (low in straights, high in value)
)

// DeckSize is the number of cards of a standard deck.
const DeckSize = 52

// FaceDown is the display character for hidden cards
const FaceDown = "▓"

// Card is a playing card. Rank 0 is a face-down card.
type Card struct {
	Suit uint8 `json:"suit"` // 0-3: clubs, diamonds, hearts, spades
	Rank uint8 `json:"rank"` // 1-13: ace through king
}

// NewCard creates a new Card with validation.
//
// Parameters:
//   - suit: 0-3 (Club, Diamond, Heart, Spade)
//   - rank: 1-13 (Ace=1, 2-10=face value, Jack=11, Queen=12, King=13)
func NewCard(suit uint8, rank uint8) (Card, error) {
	if suit > 3 || rank == 0 || rank > 13 {
		return Card{}, fmt.Errorf("invalid card %d, %d", suit, rank)
	}
	return Card{Suit: suit, Rank: rank}, nil
}

// CardAt maps a deck index in [0, 52) to its card: thirteen ranks per suit,
// clubs first.
func CardAt(i int) (Card, error) {
	if i < 0 || i >= DeckSize {
		return Card{}, fmt.Errorf("card index %d out of range", i)
	}
	return NewCard(uint8(i/13), uint8(i%13+1))
}

// String returns a human-readable representation of the Card using suit symbols
// (♣, ♦, ♥, ♠) and rank abbreviations (A, J, Q, K, or number).
func (c Card) String() string {
	if c.Rank == 0 {
		return FaceDown
	}
	var suit string
	switch c.Suit {
	case Club:
		suit = pterm.Black("♣")
	case Diamond:
		suit = pterm.LightRed("♦")
	case Heart:
		suit = pterm.LightRed("♥")
	case Spade:
		suit = pterm.Black("♠")
	default:
		suit = "?"
	}

	var rank string
	switch c.Rank {
	case Ace:
		rank = "A"
	case Jack:
		rank = "J"
	case Queen:
		rank = "Q"
	case King:
		rank = "K"
	default:
		rank = fmt.Sprintf("%d", c.Rank)
	}
	return rank + suit
}

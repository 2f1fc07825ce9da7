// Package poker implements Texas Hold'em betting as a ledger reducer,
// including hand evaluation, pot management, player actions, and game flow.
//
// # Core Types
//
// State: The complete table rebuilt from the ledger: seats, pots, community
// cards, the deck and the current street.
//
// Seat: A single player with their chips, hand, and betting state.
//
// Card: A playing card with suit and rank.
//
// PokerAction: A player's action (deal, bet, raise, call, fold, etc.).
//
// # Game Flow
//
// A deal entry starts a hand: the deck is shuffled with the hash of that
// entry, blinds are posted and hole cards dealt. The hand progresses through
// PreFlop → Flop → Turn → River → Showdown. Actions out of turn or against
// the betting rules are skipped like any other illegal entry.
//
// # Hand Evaluation
//
// The package uses 7-card poker hand evaluation to determine winners at showdown.
// It handles ties by splitting pots equally among winners.
package poker

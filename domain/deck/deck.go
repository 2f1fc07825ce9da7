// Package deck provides a deterministically ordered deck. The order is a
// permutation drawn from the Ed25519 suite XOF keyed by a seed that every
// replica reads from the ledger, so all peers deal the same cards without
// exchanging anything else.
package deck

import (
	"encoding/binary"
	"errors"

	"go.dedis.ch/kyber/v4"
	"go.dedis.ch/kyber/v4/suites"
)

var suite suites.Suite = suites.MustFind("Ed25519")

// ErrEmpty is returned by Draw when no card is left.
var ErrEmpty = errors.New("deck: empty")

// Deck is an ordered sequence of card indexes in [0, size) and the position of
// the next card to deal.
type Deck struct {
	Cards []int `json:"cards"`
	Next  int   `json:"next"`
}

// New returns a deck of size cards shuffled by seed.
func New(seed []byte, size int) Deck {
	return Deck{Cards: Permutation(seed, size)}
}

// Permutation returns a Fisher-Yates shuffle of 0..n-1 driven by the XOF
// stream seeded with seed.
func Permutation(seed []byte, n int) []int {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	xof := suite.XOF(seed)
	for i := n - 1; i > 0; i-- {
		j := uniform(xof, uint64(i+1))
		perm[i], perm[j] = perm[j], perm[i]
	}
	return perm
}

// uniform reads a value in [0, bound) from xof by rejection sampling.
func uniform(xof kyber.XOF, bound uint64) int {
	limit := ^uint64(0) - ^uint64(0)%bound
	var buf [8]byte
	for {
		if _, err := xof.Read(buf[:]); err != nil {
			panic(err)
		}
		v := binary.BigEndian.Uint64(buf[:])
		if v < limit {
			return int(v % bound)
		}
	}
}

// Draw returns the next card and the deck without it. The receiver is not
// modified.
func (d Deck) Draw() (int, Deck, error) {
	if d.Next >= len(d.Cards) {
		return 0, d, ErrEmpty
	}
	card := d.Cards[d.Next]
	d.Next++
	return card, d, nil
}

// DrawN deals n cards.
func (d Deck) DrawN(n int) ([]int, Deck, error) {
	if n < 0 || d.Remaining() < n {
		return nil, d, ErrEmpty
	}
	cards := append([]int(nil), d.Cards[d.Next:d.Next+n]...)
	d.Next += n
	return cards, d, nil
}

// Remaining is the number of undealt cards.
func (d Deck) Remaining() int {
	return len(d.Cards) - d.Next
}

func (d Deck) Clone() Deck {
	d.Cards = append([]int(nil), d.Cards...)
	return d
}

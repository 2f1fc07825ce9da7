package deck

import (
	"slices"
	"testing"
)

// TestPermutationIsDeterministic checks that two replicas with the same seed
// agree on the order.
func TestPermutationIsDeterministic(t *testing.T) {
	a := Permutation([]byte("genesis-hash"), 52)
	b := Permutation([]byte("genesis-hash"), 52)
	if !slices.Equal(a, b) {
		t.Fatalf("same seed produced different orders:\n%v\n%v", a, b)
	}
	c := Permutation([]byte("another-hash"), 52)
	if slices.Equal(a, c) {
		t.Fatal("different seeds produced the same order")
	}
}

// TestPermutationIsComplete checks that every card appears exactly once.
func TestPermutationIsComplete(t *testing.T) {
	for _, n := range []int{0, 1, 2, 13, 52} {
		perm := Permutation([]byte("seed"), n)
		sorted := slices.Clone(perm)
		slices.Sort(sorted)
		for i, v := range sorted {
			if v != i {
				t.Fatalf("n=%d: not a permutation: %v", n, perm)
			}
		}
	}
}

// TestDrawDoesNotMutate checks the value semantics reducers rely on.
func TestDrawDoesNotMutate(t *testing.T) {
	d := New([]byte("seed"), 5)
	first, next, err := d.Draw()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Next != 0 || next.Next != 1 || first != d.Cards[0] {
		t.Fatalf("unexpected draw state: d=%+v next=%+v first=%d", d, next, first)
	}
	hand, rest, err := next.DrawN(4)
	if err != nil || len(hand) != 4 || rest.Remaining() != 0 {
		t.Fatalf("DrawN failed: hand=%v rest=%+v err=%v", hand, rest, err)
	}
	if _, _, err := rest.Draw(); err != ErrEmpty {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
	if _, _, err := next.DrawN(5); err != ErrEmpty {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
}

func TestClone(t *testing.T) {
	d := New([]byte("seed"), 3)
	c := d.Clone()
	c.Cards[0] = 99
	if d.Cards[0] == 99 {
		t.Fatal("clone shares card storage")
	}
}

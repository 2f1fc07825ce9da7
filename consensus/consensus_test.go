package consensus

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/luca-patrignani/mental-ledger/domain/ludo"
	"github.com/luca-patrignani/mental-ledger/domain/tictactoe"
	"github.com/luca-patrignani/mental-ledger/fsm"
	"github.com/luca-patrignani/mental-ledger/game"
	"github.com/luca-patrignani/mental-ledger/ledger"
	"github.com/luca-patrignani/mental-ledger/metrics"
	"github.com/luca-patrignani/mental-ledger/network"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var players = []game.Player{{ID: "alice", Name: "Alice"}, {ID: "bob", Name: "Bob"}}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func move(t *testing.T, cell int, playerID string) ledger.Action {
	t.Helper()
	a, err := tictactoe.NewMove(cell, playerID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return a
}

// guest attaches a new pipe to seq and returns a replica on the far end.
func guest(seq *Sequencer, id string, opts ...Option) (*Replica, *network.PipeEnd) {
	host, remote := network.Pipe()
	seq.Attach(id, host)
	return NewReplica(remote, id, opts...), remote
}

// TestRequestType checks the kind to type mapping.
func TestRequestType(t *testing.T) {
	if got := RequestType("move"); got != "MOVE_REQUEST" {
		t.Fatalf("unexpected type %s", got)
	}
	cases := map[string]struct {
		kind string
		ok   bool
	}{
		"MOVE_REQUEST":            {"move", true},
		"ALLIN_REQUEST":           {"allin", true},
		"_REQUEST":                {"", false},
		"LEDGER_SYNC":             {"", false},
		"LEDGER_SNAPSHOT_REQUEST": {"", false},
	}
	for in, want := range cases {
		kind, ok := KindOf(in)
		if kind != want.kind || ok != want.ok {
			t.Errorf("KindOf(%q) = %q, %v; want %q, %v", in, kind, ok, want.kind, want.ok)
		}
	}
}

// TestParseMessage checks envelope validation.
func TestParseMessage(t *testing.T) {
	if _, err := ParseMessage("not json"); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
	if _, err := ParseMessage(`{"namespace":"game"}`); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for missing type, got %v", err)
	}
	if _, err := ParseMessage(`{"namespace":"chat","type":"MOVE_REQUEST"}`); !errors.Is(err, ErrForeignNamespace) {
		t.Fatalf("expected ErrForeignNamespace, got %v", err)
	}
	raw, err := EncodeRequest(move(t, 4, "bob"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m, err := ParseMessage(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Type != "MOVE_REQUEST" || !bytes.Contains(m.Payload, []byte(`"playerId":"bob"`)) {
		t.Fatalf("unexpected message %+v", m)
	}
}

// TestSequencerAppendsAndBroadcasts checks that a guest request ends up in
// every replica.
func TestSequencerAppendsAndBroadcasts(t *testing.T) {
	seq := NewSequencer()
	bob, _ := guest(seq, "bob")
	carol, _ := guest(seq, "carol")

	if _, err := seq.Submit(move(t, 0, "alice")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := bob.Propose(move(t, 4, "bob")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	eventually(t, "two entries on every replica", func() bool {
		return len(bob.Entries()) == 2 && len(carol.Entries()) == 2
	})
	if !ledger.VerifyChain(carol.Entries()) {
		t.Fatal("replicated chain does not verify")
	}
	if got := carol.Entries()[1].Action.Kind; got != tictactoe.KindMove {
		t.Fatalf("unexpected kind %s", got)
	}
}

// TestSequencerConcurrentRequests checks appends stay monotonic when guests
// fire at the same time.
func TestSequencerConcurrentRequests(t *testing.T) {
	seq := NewSequencer()
	const guests, each = 5, 20
	var wg sync.WaitGroup
	errc := make(chan error, guests*each)
	for g := 0; g < guests; g++ {
		id := fmt.Sprintf("g%d", g)
		rep, _ := guest(seq, id)
		actions := make([]ledger.Action, each)
		for i := range actions {
			actions[i] = move(t, i%9, id)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, a := range actions {
				errc <- rep.Propose(a)
			}
		}()
	}
	wg.Wait()
	close(errc)
	for err := range errc {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	eventually(t, "all requests appended", func() bool {
		return seq.Ledger().Len() == guests*each
	})
	entries := seq.Ledger().Entries()
	for i, e := range entries {
		if e.Index != i {
			t.Fatalf("entry %d has index %d", i, e.Index)
		}
	}
	if !seq.Ledger().Verify() {
		t.Fatal("ledger does not verify")
	}
}

// TestSnapshotAnsweredToRequesterOnly checks that a snapshot is not broadcast.
func TestSnapshotAnsweredToRequesterOnly(t *testing.T) {
	seq := NewSequencer()
	if _, err := seq.Submit(move(t, 0, "alice")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bob, _ := guest(seq, "bob")
	carol, _ := guest(seq, "carol")
	if err := bob.RequestSnapshot(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	eventually(t, "snapshot on bob", func() bool { return len(bob.Entries()) == 1 })
	time.Sleep(50 * time.Millisecond)
	if n := len(carol.Entries()); n != 0 {
		t.Fatalf("carol should not receive the snapshot, has %d entries", n)
	}
}

// TestSequencerDiscardsMalformed checks that bad messages never reach the
// ledger.
func TestSequencerDiscardsMalformed(t *testing.T) {
	m, err := metrics.NewRelay(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	seq := NewSequencer(WithMetrics(m))
	_, remote := guest(seq, "bob")
	inputs := []string{
		"garbage",
		`{"namespace":"chat","type":"MOVE_REQUEST","payload":{}}`,
		`{"namespace":"game","type":"LEDGER_SYNC","payload":{"entries":[]}}`,
		`{"namespace":"game","type":"_REQUEST","payload":{}}`,
	}
	for _, in := range inputs {
		if err := remote.Send(in); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	eventually(t, "all discards counted", func() bool {
		total := 0.0
		for _, r := range []string{reasonMalformed, reasonNamespace, reasonType} {
			total += testutil.ToFloat64(m.Discarded.WithLabelValues(r))
		}
		return total == float64(len(inputs))
	})
	if seq.Ledger().Len() != 0 {
		t.Fatalf("expected an empty ledger, got %d entries", seq.Ledger().Len())
	}
}

// TestSequencerAcceptsIllegalActions checks that legality is left to replay.
func TestSequencerAcceptsIllegalActions(t *testing.T) {
	seq := NewSequencer()
	bob, _ := guest(seq, "bob")
	seq.Submit(move(t, 0, "alice"))
	bob.Propose(move(t, 0, "bob"))
	eventually(t, "both entries", func() bool { return len(bob.Entries()) == 2 })
	s := tictactoe.Reduce(players, bob.Entries())
	if s.Board[0] != tictactoe.X || s.Turn != 1 {
		t.Fatalf("occupied cell should be skipped, got %+v", s)
	}
}

// TestSequencerStampsPayloads checks the stamper rewrites guest payloads.
func TestSequencerStampsPayloads(t *testing.T) {
	seq := NewSequencer(WithStamper(ludo.RollStamper(bytes.NewReader([]byte{3}))))
	bob, _ := guest(seq, "bob")
	roll, err := ludo.NewRoll(6, "bob")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bob.Propose(roll)
	eventually(t, "roll appended", func() bool { return len(bob.Entries()) == 1 })
	var got ludo.Roll
	if err := json.Unmarshal(bob.Entries()[0].Action.Payload, &got); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Value != 4 || got.PlayerID != "bob" {
		t.Fatalf("unexpected stamped roll %+v", got)
	}
}

// TestReplicaRejectsTamperedLedger checks a broken chain never replaces the
// local copy.
func TestReplicaRejectsTamperedLedger(t *testing.T) {
	l := ledger.New()
	for i := 0; i < 3; i++ {
		if _, err := l.Append(move(t, i, "alice")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	host, remote := network.Pipe()
	rep := NewReplica(remote, "bob")
	tampered := make(chan int, 1)
	rep.OnTamper(func(entries []ledger.Entry) { tampered <- len(entries) })

	good, _ := EncodeSync(l.Entries()[:2])
	host.Send(good)
	eventually(t, "good ledger", func() bool { return len(rep.Entries()) == 2 })

	bad := l.Entries()
	bad[1].Action.Payload = json.RawMessage(`{"cell":8,"playerId":"alice"}`)
	msg, _ := EncodeSync(bad)
	host.Send(msg)
	select {
	case n := <-tampered:
		if n != 3 {
			t.Fatalf("unexpected tampered length %d", n)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("tamper not reported")
	}
	if len(rep.Entries()) != 2 {
		t.Fatalf("tampered ledger replaced the copy")
	}
}

// TestReplicaIgnoresStaleLedger checks shorter broadcasts do not roll back.
func TestReplicaIgnoresStaleLedger(t *testing.T) {
	l := ledger.New()
	for i := 0; i < 3; i++ {
		l.Append(move(t, i, "alice"))
	}
	host, remote := network.Pipe()
	rep := NewReplica(remote, "bob")
	full, _ := EncodeSync(l.Entries())
	short, _ := EncodeSync(l.Entries()[:1])
	host.Send(full)
	host.Send(short)
	marker, _ := EncodeSync(l.Entries())
	synced := make(chan struct{}, 4)
	rep.OnSync(func([]ledger.Entry) { synced <- struct{}{} })
	host.Send(marker)
	select {
	case <-synced:
	case <-time.After(5 * time.Second):
		t.Fatal("no sync")
	}
	if len(rep.Entries()) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(rep.Entries()))
	}
}

// TestReplicaSignatureCheck checks that signed ledgers verify and that a
// forged signature is rejected even without WithRequireSigned.
func TestReplicaSignatureCheck(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	seq := NewSequencer(WithSigner(priv))
	bob, _ := guest(seq, "bob", WithRequireSigned())
	seq.Submit(move(t, 0, "alice"))
	eventually(t, "signed entry", func() bool { return len(bob.Entries()) == 1 })
	if bob.Entries()[0].Signature == "" {
		t.Fatal("expected a signature")
	}

	host, remote := network.Pipe()
	rep := NewReplica(remote, "carol")
	tampered := make(chan struct{}, 1)
	rep.OnTamper(func([]ledger.Entry) { tampered <- struct{}{} })
	forged := seq.Ledger().Entries()
	forged[0].Signature = forged[0].Signature[:len(forged[0].Signature)-2] + "00"
	if forged[0].Signature == seq.Ledger().Entries()[0].Signature {
		forged[0].Signature = forged[0].Signature[:len(forged[0].Signature)-2] + "11"
	}
	msg, _ := EncodeSync(forged)
	host.Send(msg)
	select {
	case <-tampered:
	case <-time.After(5 * time.Second):
		t.Fatal("forged signature accepted")
	}
}

// TestReplicaRequireSigned rejects an unsigned ledger only when signatures
// are required.
func TestReplicaRequireSigned(t *testing.T) {
	seq := NewSequencer()
	strict, _ := guest(seq, "bob", WithRequireSigned())
	lenient, _ := guest(seq, "carol")
	tampered := make(chan struct{}, 1)
	strict.OnTamper(func([]ledger.Entry) { tampered <- struct{}{} })
	seq.Submit(move(t, 0, "alice"))
	eventually(t, "lenient sync", func() bool { return len(lenient.Entries()) == 1 })
	select {
	case <-tampered:
	case <-time.After(5 * time.Second):
		t.Fatal("unsigned ledger accepted")
	}
	if len(strict.Entries()) != 0 {
		t.Fatalf("strict replica holds %d entries", len(strict.Entries()))
	}
}

// TestNodeGuestPrediction plays a full tic-tac-toe game between a sequencer
// node and a guest node.
func TestNodeGuestPrediction(t *testing.T) {
	seq := NewSequencer()
	alice := NewSequencerNode(tictactoe.Definition(players), "alice", seq)
	rep, _ := guest(seq, "bob")
	bob := NewGuestNode(tictactoe.Definition(players), "bob", rep)

	eventually(t, "bob synced", func() bool { return bob.Snapshot().Phase == tictactoe.PhasePlaying })
	if !alice.IsSequencer() || bob.IsSequencer() {
		t.Fatal("roles swapped")
	}
	if _, err := bob.Sequencer(); !errors.Is(err, ErrNotSequencer) {
		t.Fatalf("expected ErrNotSequencer, got %v", err)
	}

	if err := alice.Act(move(t, 0, "alice")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	eventually(t, "bob sees X", func() bool { return bob.Snapshot().Authoritative.Board[0] == tictactoe.X })

	if err := bob.Act(move(t, 3, "bob")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	eventually(t, "prediction dropped", func() bool {
		s := bob.Snapshot()
		return s.Prediction == nil && s.Authoritative.Board[3] == tictactoe.O
	})

	for _, step := range []struct {
		node *Node[tictactoe.State]
		cell int
	}{{alice, 1}, {bob, 4}, {alice, 2}} {
		if err := step.node.Act(move(t, step.cell, step.node.PlayerID())); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := step.cell
		eventually(t, fmt.Sprintf("cell %d", want), func() bool {
			return alice.Snapshot().Authoritative.Board[want] != tictactoe.Empty &&
				bob.Snapshot().Authoritative.Board[want] != tictactoe.Empty
		})
	}
	eventually(t, "terminal on both", func() bool {
		return alice.Snapshot().Phase == fsm.Terminal && bob.Snapshot().Phase == fsm.Terminal
	})
	if w := bob.Snapshot().Authoritative.Winner; w != tictactoe.X {
		t.Fatalf("expected X to win, got %q", w)
	}
	if err := alice.Act(move(t, 8, "alice")); !errors.Is(err, fsm.ErrTerminal) {
		t.Fatalf("expected ErrTerminal, got %v", err)
	}
	if err := bob.Act(move(t, 8, "bob")); !errors.Is(err, fsm.ErrTerminal) {
		t.Fatalf("expected ErrTerminal, got %v", err)
	}
}

// TestGuestPredictionIsTransient checks the overlay is set locally and
// dropped by the next sync.
func TestGuestPredictionIsTransient(t *testing.T) {
	host, remote := network.Pipe()
	rep := NewReplica(remote, "bob")
	bob := NewGuestNode(tictactoe.Definition(players), "bob", rep)

	if err := bob.Act(move(t, 4, "bob")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := bob.Snapshot()
	if s.Prediction == nil || s.Prediction.Status != fsm.StatusSent {
		t.Fatalf("expected a sent prediction, got %+v", s.Prediction)
	}
	if len(rep.Entries()) != 0 {
		t.Fatal("guest must not append locally")
	}

	msg, _ := EncodeSync(nil)
	host.Send(msg)
	eventually(t, "prediction dropped", func() bool { return bob.Snapshot().Prediction == nil })
	if bob.Snapshot().Authoritative.Board[4] != tictactoe.Empty {
		t.Fatal("prediction leaked into the authoritative board")
	}
}

package main

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/luca-patrignani/mental-ledger/consensus"
	"github.com/luca-patrignani/mental-ledger/domain/tictactoe"
	"github.com/luca-patrignani/mental-ledger/fsm"
	"github.com/luca-patrignani/mental-ledger/game"
	"github.com/luca-patrignani/mental-ledger/ledger"
	"github.com/luca-patrignani/mental-ledger/network"
	"github.com/luca-patrignani/mental-ledger/storage"
)

const syncTimeout = 5 * time.Second

// prompter asks player to pick one of options.
type prompter func(player string, options []string) (string, error)

func interactivePrompt(player string, options []string) (string, error) {
	return pterm.DefaultInteractiveSelect.
		WithDefaultText(fmt.Sprintf("%s, pick a cell", player)).
		WithOptions(options).
		Show()
}

type playOptions struct {
	players []game.Player
	data    string
	session string
	sign    bool
	prompt  prompter
	render  func(string)
}

func newPlayCmd() *cobra.Command {
	var opts playOptions
	var names []string
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play tic-tac-toe between a sequencer and a guest on this terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(names) != 2 {
				return errors.New("--names needs exactly two names")
			}
			banner()
			opts.players = []game.Player{{ID: "host", Name: names[0]}, {ID: "guest", Name: names[1]}}
			opts.prompt = interactivePrompt
			opts.render = func(s string) { pterm.Println(s) }
			s, err := runPlay(cmd.Context(), opts)
			if err != nil {
				return err
			}
			pterm.Success.Printfln("game over after %d moves", s.Turn)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&names, "names", []string{"Alice", "Bob"}, "display names of X and O")
	cmd.Flags().StringVar(&opts.data, "data", "", "leveldb directory persisting the ledger between runs")
	cmd.Flags().StringVar(&opts.session, "session", "default", "snapshot name inside --data")
	cmd.Flags().BoolVar(&opts.sign, "sign", false, "sign every entry with a fresh ed25519 key")
	return cmd
}

// runPlay wires a sequencer node and a guest node over an in-memory pipe and
// plays until the board is decided. The guest's view is the one rendered, so
// every move makes the full request and broadcast round trip.
func runPlay(ctx context.Context, opts playOptions) (tictactoe.State, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	host, guest := opts.players[0], opts.players[1]

	seqOpts := []consensus.Option{consensus.WithLogger(logger)}
	repOpts := []consensus.Option{consensus.WithLogger(logger)}
	var snaps *storage.SnapshotStore
	resumed := false
	if opts.data != "" {
		db, err := storage.Open(opts.data)
		if err != nil {
			return tictactoe.State{}, err
		}
		defer db.Close()
		snaps = storage.NewSnapshotStore(db)
		entries, err := snaps.Load(opts.session)
		switch {
		case err == nil:
			logger.Info("resuming session", "session", opts.session, "entries", len(entries))
			seqOpts = append(seqOpts, consensus.WithLedger(ledger.FromEntries(entries)))
			resumed = true
		case errors.Is(err, storage.ErrNotFound):
		default:
			return tictactoe.State{}, err
		}
	}
	if opts.sign {
		_, priv, err := ed25519.GenerateKey(nil)
		if err != nil {
			return tictactoe.State{}, err
		}
		seqOpts = append(seqOpts, consensus.WithSigner(priv))
		// A resumed ledger may hold unsigned entries.
		if !resumed {
			repOpts = append(repOpts, consensus.WithRequireSigned())
		}
	}

	seq := consensus.NewSequencer(seqOpts...)
	if snaps != nil {
		seq.OnAppend(func(entries []ledger.Entry) {
			if err := snaps.Save(opts.session, entries); err != nil {
				logger.Warn("snapshot not saved", "err", err)
			}
		})
	}
	def := tictactoe.Definition(opts.players)
	hostNode := consensus.NewSequencerNode(def, host.ID, seq)

	hostEnd, guestEnd := network.Pipe()
	defer hostEnd.Close()
	seq.Attach(guest.ID, hostEnd)
	rep := consensus.NewReplica(guestEnd, guest.ID, repOpts...)
	defer rep.Close()

	changes := make(chan fsm.Snapshot[tictactoe.State], 16)
	rep.OnTamper(func([]ledger.Entry) { logger.Error("sequencer sent a broken ledger") })
	guestNode := consensus.NewGuestNode(def, guest.ID, rep)
	guestNode.Machine().OnChange(func(s fsm.Snapshot[tictactoe.State]) {
		select {
		case changes <- s:
		default:
		}
	})

	// Guest requests reach the sequencer asynchronously, so the expected
	// length is counted here rather than read back from the sequencer.
	want := seq.Ledger().Len()
	for {
		if err := waitSynced(ctx, guestNode, want, changes); err != nil {
			return tictactoe.State{}, err
		}
		snap := guestNode.Snapshot()
		opts.render(renderTicTacToe(snap.Authoritative))
		if snap.Phase == fsm.Terminal {
			return snap.Authoritative, nil
		}

		node, player := hostNode, host
		if snap.Authoritative.ToMove() == tictactoe.O {
			node, player = guestNode, guest
		}
		cell, err := askCell(opts.prompt, player, snap.Authoritative)
		if err != nil {
			return tictactoe.State{}, err
		}
		move, err := tictactoe.NewMove(cell, player.ID)
		if err != nil {
			return tictactoe.State{}, err
		}
		if err := node.Act(move); err != nil {
			return tictactoe.State{}, err
		}
		want++
	}
}

func askCell(prompt prompter, player game.Player, s tictactoe.State) (int, error) {
	var free []string
	for i, m := range s.Board {
		if m == tictactoe.Empty {
			free = append(free, strconv.Itoa(i))
		}
	}
	choice, err := prompt(player.Name, free)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(choice)
}

// waitSynced blocks until the guest has reduced a ledger of at least want
// entries.
func waitSynced(ctx context.Context, n *consensus.Node[tictactoe.State], want int, changes <-chan fsm.Snapshot[tictactoe.State]) error {
	timer := time.NewTimer(syncTimeout)
	defer timer.Stop()
	for {
		s := n.Snapshot()
		if s.Phase != fsm.AwaitingSync && s.LedgerLen >= want {
			return nil
		}
		select {
		case <-changes:
		case <-timer.C:
			return fmt.Errorf("guest did not sync %d entries within %s", want, syncTimeout)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

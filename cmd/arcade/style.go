package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pterm/pterm"

	"github.com/luca-patrignani/mental-ledger/domain/auction"
	"github.com/luca-patrignani/mental-ledger/domain/ludo"
	"github.com/luca-patrignani/mental-ledger/domain/poker"
	"github.com/luca-patrignani/mental-ledger/domain/tictactoe"
	"github.com/luca-patrignani/mental-ledger/game"
)

func nameOf(players []game.Player, seat int) string {
	if seat < 0 || seat >= len(players) {
		return "-"
	}
	if players[seat].Name != "" {
		return players[seat].Name
	}
	return players[seat].ID
}

func table(data pterm.TableData) string {
	out, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err.Error()
	}
	return out
}

func box(title, body string) string {
	pbox := pterm.DefaultBox.WithLeftPadding(4).WithRightPadding(4).WithTopPadding(1).WithBottomPadding(1)
	return pbox.WithTitle(title).WithTitleTopLeft().Sprint(body)
}

func renderTicTacToe(s tictactoe.State) string {
	var rows []string
	for r := 0; r < 3; r++ {
		cells := make([]string, 3)
		for c := 0; c < 3; c++ {
			i := r*3 + c
			switch s.Board[i] {
			case tictactoe.X:
				cells[c] = pterm.LightRed("X")
			case tictactoe.O:
				cells[c] = pterm.LightCyan("O")
			default:
				cells[c] = pterm.Gray(strconv.Itoa(i))
			}
		}
		rows = append(rows, " "+strings.Join(cells, " | "))
	}
	grid := strings.Join(rows, "\n---+---+---\n")

	var status string
	switch {
	case s.Winner == tictactoe.X:
		status = pterm.LightGreen(nameOf(s.Players, 0) + " wins")
	case s.Winner == tictactoe.O:
		status = pterm.LightGreen(nameOf(s.Players, 1) + " wins")
	case s.Draw:
		status = pterm.LightYellow("draw")
	default:
		seat := 0
		if s.ToMove() == tictactoe.O {
			seat = 1
		}
		status = fmt.Sprintf("%s to move (%s)", pterm.LightCyan(nameOf(s.Players, seat)), s.ToMove())
	}
	return box("|TIC-TAC-TOE|", grid+"\n\n"+status)
}

func renderLudo(s ludo.State) string {
	if !s.Playable() {
		return box("|LUDO|", "waiting for 2 to 4 players")
	}
	data := pterm.TableData{{"Player", "Token 1", "Token 2", "Token 3", "Token 4"}}
	for seat, progress := range s.Progress {
		row := []string{nameOf(s.Players, seat)}
		if seat == s.Current && s.Winner == "" {
			row[0] = pterm.LightCyan("> " + row[0])
		}
		for _, p := range progress {
			switch {
			case p == ludo.Base:
				row = append(row, "base")
			case p == ludo.Home:
				row = append(row, pterm.LightGreen("home"))
			default:
				row = append(row, strconv.Itoa(p))
			}
		}
		data = append(data, row)
	}
	footer := fmt.Sprintf("rolled: %d", s.Rolled)
	if s.Winner != "" {
		footer = pterm.LightGreen(s.Winner + " wins")
	}
	return table(data) + "\n" + footer
}

func renderAuction(s auction.State) string {
	if len(s.Coins) == 0 {
		return box("|AUCTION|", "waiting for players")
	}
	scores := s.Score()
	data := pterm.TableData{{"Player", "Coins", "Planets", "Score"}}
	for seat := range s.Coins {
		var planets []string
		for _, lot := range s.Holdings[seat] {
			planets = append(planets, auction.Catalogue[lot].Name)
		}
		name := nameOf(s.Players, seat)
		if seat == s.Current && !s.Over {
			name = pterm.LightCyan("> " + name)
		}
		data = append(data, []string{name, strconv.Itoa(s.Coins[seat]), strings.Join(planets, ", "), strconv.Itoa(scores[seat])})
	}
	footer := "auction over"
	if p, ok := s.OnSale(); ok {
		footer = fmt.Sprintf("on sale: %s (%d), high bid %d by %s", p.Name, p.Value, s.HighBid, nameOf(s.Players, s.HighBidder))
	} else if leader := s.Leader(); leader >= 0 {
		footer = pterm.LightGreen(nameOf(s.Players, leader) + " leads")
	}
	return table(data) + "\n" + footer
}

func renderPoker(s poker.State) string {
	if len(s.Seats) == 0 {
		return box("|POKER|", "waiting for players")
	}
	data := pterm.TableData{{"Player", "Chips", "Bet", "Hand", "Status"}}
	for seat, st := range s.Seats {
		name := nameOf(s.Players, seat)
		if seat == s.Current && s.Street != poker.Idle {
			name = pterm.LightCyan("> " + name)
		}
		var hand []string
		for _, c := range st.Hand {
			hand = append(hand, c.String())
		}
		status := pterm.LightGreen("Active")
		switch {
		case st.Folded:
			status = pterm.LightRed("Folded")
		case st.AllIn():
			status = pterm.LightYellow("All-in")
		}
		data = append(data, []string{name, strconv.Itoa(int(st.Chips)), strconv.Itoa(int(st.Bet)), strings.Join(hand, " - "), status})
	}
	board := ""
	for _, c := range s.Board {
		board += c.String() + " - "
	}
	for i, p := range s.Pots {
		board += " Pot" + strconv.Itoa(i) + ": " + strconv.Itoa(int(p.Amount)) + " | "
	}
	board += string(s.Street)
	for _, p := range s.LastResult {
		board += pterm.Sprintf("\n%s won %d %s", pterm.LightCyan(nameOf(s.Players, p.Seat)), p.Amount, p.Hand)
	}
	return table(data) + "\n" + board
}

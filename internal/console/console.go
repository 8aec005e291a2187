// Package console renders a game session as text and parses the commands typed by the
// player.
package console

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mjappgame/mesa/internal/game"
	"github.com/mjappgame/mesa/internal/session"
)

// Render writes the board and the status lines of v to w.
func Render(w io.Writer, v session.View) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (%s) score %d", v.Username, v.Self, v.Score)
	if !v.Connected {
		sb.WriteString(" [desconectado]")
	}
	sb.WriteString("\n")

	for row := range game.Rows {
		for col := range game.Cols {
			i := row*game.Cols + col
			if i >= len(v.Board) {
				break
			}
			if v.Board[i].Revealed {
				fmt.Fprintf(&sb, " %+7d", v.Board[i].Value)
			} else {
				fmt.Fprintf(&sb, " %7s", "["+strconv.Itoa(i)+"]")
			}
		}
		fmt.Fprintf(&sb, "   %d/%d\n", v.Rows[row], game.RowQuota)
	}

	switch {
	case v.Terminated:
		sb.WriteString("Sesión terminada\n")
	case v.Turn == session.MyTurnActive:
		fmt.Fprintf(&sb, "Tu turno: %ds\n", v.Remaining)
	case v.Turn == session.MyTurnExpired:
		sb.WriteString("Tu turno terminó\n")
	case v.CurrentPlayer != nil:
		name := v.CurrentPlayer.Username
		if name == "" {
			name = string(v.CurrentPlayer.ID)
		}
		fmt.Fprintf(&sb, "Turno de %s\n", name)
	}
	if v.Alert != nil {
		fmt.Fprintf(&sb, "** %s **\n", v.Alert.Text)
	}
	if v.Message != nil && (v.Alert == nil || v.Message.Text != v.Alert.Text) {
		fmt.Fprintf(&sb, "%s\n", v.Message.Text)
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

// Command typed by the player.
type Command struct {
	Name string // "tap", "board" or "quit"
	Tile int    // For "tap".
}

// ParseCommand parses one input line: "tap N" (or just "N"), "board" or "quit".
func ParseCommand(line string) (Command, error) {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return Command{}, fmt.Errorf("empty command")
	}
	switch fields[0] {
	case "tap", "t":
		if len(fields) != 2 {
			return Command{}, fmt.Errorf("usage: tap <0-%d>", game.BoardSize-1)
		}
		return parseTap(fields[1])
	case "board", "b":
		return Command{Name: "board"}, nil
	case "quit", "q", "exit":
		return Command{Name: "quit"}, nil
	}
	if len(fields) == 1 {
		if cmd, err := parseTap(fields[0]); err == nil {
			return cmd, nil
		}
	}
	return Command{}, fmt.Errorf("unknown command %q", fields[0])
}

func parseTap(s string) (Command, error) {
	tile, err := strconv.Atoi(s)
	if err != nil || tile < 0 || tile >= game.BoardSize {
		return Command{}, fmt.Errorf("invalid tile %q, use 0-%d", s, game.BoardSize-1)
	}
	return Command{Name: "tap", Tile: tile}, nil
}

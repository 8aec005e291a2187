package game

import (
	"fmt"
	"math/rand/v2"
	"strings"
)

// Tile is one cell of the board. Value never changes once the tile is created, and
// Revealed only ever goes from false to true.
type Tile struct {
	Value    int  `json:"value"`
	Revealed bool `json:"revealed"`
}

// Board is the client's own copy of the 4x4 grid.
//
// The values on it are generated locally and are not expected to match the server's:
// only the revealed flags are ever taken from the server.
type Board struct {
	tiles []Tile
}

// NewBoard generates a board where every row holds PositivesPerRow tiles worth +magnitude
// and the remaining tiles worth -magnitude, shuffled within the row.
//
// A non-positive magnitude means DefaultMagnitude. If rng is nil the global random source
// is used.
func NewBoard(magnitude int, rng *rand.Rand) *Board {
	if magnitude <= 0 {
		magnitude = DefaultMagnitude
	}
	intN := rand.IntN
	if rng != nil {
		intN = rng.IntN
	}

	tiles := make([]Tile, 0, BoardSize)
	for range Rows {
		row := make([]Tile, 0, Cols)
		for range PositivesPerRow {
			row = append(row, Tile{Value: magnitude})
		}
		for range Cols - PositivesPerRow {
			row = append(row, Tile{Value: -magnitude})
		}

		// Fisher-Yates over the row slice only.
		for i := len(row) - 1; i > 0; i-- {
			j := intN(i + 1)
			row[i], row[j] = row[j], row[i]
		}
		tiles = append(tiles, row...)
	}
	return &Board{tiles: tiles}
}

// Len returns the number of tiles on the board.
func (b *Board) Len() int {
	return len(b.tiles)
}

// Tile returns a copy of the tile at index.
func (b *Board) Tile(index int) (Tile, error) {
	if index < 0 || index >= len(b.tiles) {
		return Tile{}, fmt.Errorf("%w: %d", ErrInvalidTile, index)
	}
	return b.tiles[index], nil
}

// Tiles returns a copy of all tiles, in board order.
func (b *Board) Tiles() []Tile {
	tiles := make([]Tile, len(b.tiles))
	copy(tiles, b.tiles)
	return tiles
}

// Reveal turns the tile at index face up and returns its value.
// It is the only operation that reveals a tile because of a local action.
func (b *Board) Reveal(index int) (int, error) {
	if index < 0 || index >= len(b.tiles) {
		return 0, fmt.Errorf("%w: %d", ErrInvalidTile, index)
	}
	if b.tiles[index].Revealed {
		return 0, fmt.Errorf("%w: %d", ErrAlreadyRevealed, index)
	}
	b.tiles[index].Revealed = true
	return b.tiles[index].Value, nil
}

// MarkRevealed flags the tile at index as revealed because the server said so.
// The local value is kept. It returns false if index is outside the board.
func (b *Board) MarkRevealed(index int) bool {
	if index < 0 || index >= len(b.tiles) {
		return false
	}
	b.tiles[index].Revealed = true
	return true
}

// ImportRevealed copies the revealed flags of the server's board into this one, for the
// indices both boards have. Values are never imported.
func (b *Board) ImportRevealed(server []Tile) {
	n := min(len(b.tiles), len(server))
	for i := range n {
		if server[i].Revealed {
			b.tiles[i].Revealed = true
		}
	}
}

// AllRevealed reports whether every tile is face up.
func (b *Board) AllRevealed() bool {
	return AllRevealed(b.tiles)
}

func (b *Board) String() string {
	var sb strings.Builder
	for i, t := range b.tiles {
		if i > 0 && i%Cols == 0 {
			sb.WriteString(" | ")
		} else if i > 0 {
			sb.WriteString(" ")
		}
		if t.Revealed {
			fmt.Fprintf(&sb, "%+d", t.Value)
		} else {
			sb.WriteString("?")
		}
	}
	return sb.String()
}

// NeedsNewBoard reports whether a board received from the server cannot be used as the
// base for the local board: it is empty, fully revealed, or some row does not hold exactly
// PositivesPerRow positive tiles. Rows missing from a short board count as zero positives.
func NeedsNewBoard(server []Tile) bool {
	if len(server) == 0 || AllRevealed(server) {
		return true
	}
	var positives [Rows]int
	for i, t := range server {
		row := Row(i)
		if row >= Rows {
			break
		}
		if t.Value > 0 {
			positives[row]++
		}
	}
	for _, count := range positives {
		if count != PositivesPerRow {
			return true
		}
	}
	return false
}

// AllRevealed reports whether every tile of a non-empty slice is face up.
func AllRevealed(tiles []Tile) bool {
	if len(tiles) == 0 {
		return false
	}
	for _, t := range tiles {
		if !t.Revealed {
			return false
		}
	}
	return true
}

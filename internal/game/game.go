package game

// Version of the client protocol.
// It is sent in the diagnostic echo so the server logs can tell client builds apart.
var Version = "v0.1.0"

// Board geometry.
const (
	Rows      = 4
	Cols      = 4
	BoardSize = Rows * Cols

	// PositivesPerRow is the number of winning tiles in every row; the rest of the row
	// holds the same magnitude negated.
	PositivesPerRow = 2

	// RowQuota is the number of tiles that may be revealed in a single row.
	RowQuota = 2
)

// DefaultMagnitude is the absolute tile value of a "Mesa Gold" table.
const DefaultMagnitude = 30000

// Row returns the row of the tile at index.
func Row(index int) int {
	return index / Cols
}

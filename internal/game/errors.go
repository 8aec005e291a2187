package game

import "errors"

var (
	// ErrAlreadyRevealed is returned when revealing a tile that is already face up.
	ErrAlreadyRevealed = errors.New("tile already revealed")

	// ErrRowQuotaExceeded is returned when a row already had RowQuota tiles revealed.
	ErrRowQuotaExceeded = errors.New("row quota exceeded")

	// ErrInvalidTile is returned for tile indices outside the board.
	ErrInvalidTile = errors.New("invalid tile index")
)

package session

import "errors"

var (
	// ErrTurnNotActive is returned when selecting a tile while another player is current.
	ErrTurnNotActive = errors.New("not your turn")

	// ErrTimeExpired is returned when selecting a tile after the turn's countdown ran out.
	ErrTimeExpired = errors.New("turn time expired")

	// ErrSessionTerminated is returned once the session ended for good, e.g. the account
	// was blocked by an administrator.
	ErrSessionTerminated = errors.New("session terminated")
)

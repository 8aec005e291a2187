package session

import (
	"slices"

	"github.com/mjappgame/mesa/internal/game"
)

// View is a consistent copy of the session state, for rendering.
type View struct {
	Self     game.PlayerID
	Username string

	Board []game.Tile
	Rows  game.RowSelections

	Turn      TurnState
	Remaining int
	CanSelect bool

	CurrentPlayer *game.Player
	Players       []game.Player
	Status        game.Status

	Score              int
	AuthoritativeScore int

	Connected  bool
	Terminated bool

	// Message is the banner text and Alert the reveal alert; nil when nothing is shown.
	Message *Notice
	Alert   *Notice
}

// IsMyTurn reports whether the local player holds the turn, expired or not.
func (v View) IsMyTurn() bool {
	return v.Turn != NotMyTurn
}

// View returns a copy of the current state.
func (e *Engine) View() View {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.viewLocked()
}

func (e *Engine) viewLocked() View {
	v := View{
		Self:               e.self,
		Username:           e.username,
		Board:              e.board.Tiles(),
		Rows:               e.rows,
		Turn:               e.turn.State(),
		Remaining:          e.turn.Remaining(),
		CanSelect:          e.turn.CanSelect() && !e.terminated,
		Players:            slices.Clone(e.players),
		Status:             e.status,
		Score:              e.ledger.Local(),
		AuthoritativeScore: e.ledger.Authoritative(),
		Connected:          e.connected,
		Terminated:         e.terminated,
	}
	if e.current != nil {
		current := *e.current
		v.CurrentPlayer = &current
	}
	now := e.clock.Now()
	if e.message.Active(now) {
		n := e.message
		v.Message = &n
	}
	if e.alert.Active(now) {
		n := e.alert
		v.Alert = &n
	}
	return v
}

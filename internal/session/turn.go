package session

// TurnState is the state of the local player's turn.
type TurnState int

const (
	NotMyTurn TurnState = iota
	MyTurnActive
	MyTurnExpired
)

func (s TurnState) String() string {
	switch s {
	case NotMyTurn:
		return "NotMyTurn"
	case MyTurnActive:
		return "MyTurnActive"
	case MyTurnExpired:
		return "MyTurnExpired"
	}
	return "TurnState(?)"
}

// DefaultTurnTicks is the length of a turn, in timer ticks (seconds).
const DefaultTurnTicks = 4

// Turn is the turn and countdown state machine.
//
// It does not own a timer: the Engine ticks it and restarts its ticker whenever the
// generation changes while the turn is active. Whether selection is allowed is derived
// from the state, never stored.
type Turn struct {
	state     TurnState
	remaining int
	ticks     int
	solo      bool
	gen       uint64
}

// NewTurn returns a turn in NotMyTurn whose active phase lasts ticks ticks.
func NewTurn(ticks int) *Turn {
	if ticks <= 0 {
		ticks = DefaultTurnTicks
	}
	return &Turn{ticks: ticks}
}

func (t *Turn) State() TurnState   { return t.state }
func (t *Turn) Remaining() int     { return t.remaining }
func (t *Turn) Solo() bool         { return t.solo }
func (t *Turn) Generation() uint64 { return t.gen }

// SetSolo marks whether the local player is alone in the session. A solo player never
// cedes the turn.
func (t *Turn) SetSolo(solo bool) {
	t.solo = solo
}

// Begin enters MyTurnActive with a full countdown. Calling it while already active
// restarts the countdown.
func (t *Turn) Begin() {
	t.state = MyTurnActive
	t.remaining = t.ticks
	t.gen++
}

// Tick advances the countdown by one tick and reports whether the turn ran out.
// When solo, running out starts a fresh turn instead of expiring.
func (t *Turn) Tick() bool {
	if t.state != MyTurnActive {
		return false
	}
	t.remaining--
	if t.remaining > 0 {
		return false
	}
	if t.solo {
		t.Begin()
	} else {
		t.expire()
	}
	return true
}

// Timeout applies a server-side timeout for the local player, regardless of the local
// countdown. When solo the timeout is suppressed and a fresh turn starts.
func (t *Turn) Timeout() {
	if t.solo {
		t.Begin()
		return
	}
	t.expire()
}

// Yield moves to NotMyTurn: another player is now current.
func (t *Turn) Yield() {
	if t.state == NotMyTurn {
		return
	}
	t.state = NotMyTurn
	t.remaining = 0
	t.gen++
}

func (t *Turn) expire() {
	t.state = MyTurnExpired
	t.remaining = 0
	t.gen++
}

// CanSelect reports whether the local player may reveal a tile now.
func (t *Turn) CanSelect() bool {
	return t.state == MyTurnActive && t.remaining > 0
}

// Check returns the error explaining why a selection is not allowed, or nil.
func (t *Turn) Check() error {
	switch {
	case t.CanSelect():
		return nil
	case t.state == MyTurnExpired, t.state == MyTurnActive:
		return ErrTimeExpired
	default:
		return ErrTurnNotActive
	}
}

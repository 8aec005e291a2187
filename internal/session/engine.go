package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mjappgame/mesa/internal/game"
	"k8s.io/klog/v2"
)

// Outbox receives the intents emitted by the engine. Emit must not block.
type Outbox interface {
	Emit(msg game.WsMessage)
}

// Options configure a new Engine.
type Options struct {
	Self     game.PlayerID
	Username string
	Score    int        // Last persisted score
	Store    ScoreStore // Durable mirror of the score, may be nil
	Blocks   BlockStore // Records a server-side block, may be nil

	Clock        clockwork.Clock // Defaults to the real clock
	Rand         *rand.Rand      // Board shuffling; nil uses the global source
	Magnitude    int             // Absolute tile value; defaults to game.DefaultMagnitude
	TurnTicks    int             // Defaults to DefaultTurnTicks
	TickInterval time.Duration   // Defaults to one second
	NoticeWindow time.Duration   // Defaults to DefaultNoticeWindow

	// DiagnosticEcho sends a "test" message on every connection.
	DiagnosticEcho bool
}

// Engine is the client-side game session.
//
// It owns the local board, the row counters, the turn countdown and the score ledger, and
// reconciles them with the server's messages. All state changes go through update, and
// in production they are all issued from the single Run goroutine: inbound messages and
// taps are posted with Dispatch, ticks come from the engine's own ticker.
type Engine struct {
	mu sync.Mutex

	self      game.PlayerID
	username  string
	clock     clockwork.Clock
	rng       *rand.Rand
	magnitude int
	echo      bool

	tickInterval time.Duration
	noticeWindow time.Duration

	out       Outbox
	connected bool

	board   *game.Board
	rows    game.RowSelections
	turn    *Turn
	ledger  *Ledger
	blocks  BlockStore
	current *game.Player
	players []game.Player
	status  game.Status

	message Notice
	alert   Notice

	ticker    clockwork.Ticker
	tickerGen uint64
	expiry    clockwork.Timer

	terminated bool
	done       chan struct{}

	dispatch chan func()
	stopped  chan struct{}
	runOnce  sync.Once

	listeners map[string]func(View)
}

// NewEngine creates an engine with a freshly generated local board.
func NewEngine(opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second
	}
	if opts.NoticeWindow <= 0 {
		opts.NoticeWindow = DefaultNoticeWindow
	}
	turn := NewTurn(opts.TurnTicks)
	turn.SetSolo(true) // Nobody else is known until the first snapshot.

	e := &Engine{
		self:         opts.Self,
		username:     opts.Username,
		clock:        opts.Clock,
		rng:          opts.Rand,
		magnitude:    opts.Magnitude,
		echo:         opts.DiagnosticEcho,
		tickInterval: opts.TickInterval,
		noticeWindow: opts.NoticeWindow,
		board:        game.NewBoard(opts.Magnitude, opts.Rand),
		turn:         turn,
		ledger:       NewLedger(string(opts.Self), opts.Score, opts.Store),
		blocks:       opts.Blocks,
		status:       game.StatusPlaying,
		done:         make(chan struct{}),
		dispatch:     make(chan func(), 64),
		stopped:      make(chan struct{}),
		listeners:    make(map[string]func(View)),
	}
	klog.V(1).Infof("NewEngine: player %s (%s), score %d, board %v", e.self, e.username, opts.Score, e.board)
	return e
}

// Run serializes all work on the session until ctx is canceled or the session is
// terminated. It must be called at most once.
func (e *Engine) Run(ctx context.Context) error {
	err := errors.New("engine already ran")
	e.runOnce.Do(func() {
		defer close(e.stopped)
		defer e.stopTimers()
		klog.Infof("Engine.Run: started for player %s", e.self)
		err = e.loop(ctx)
		klog.Infof("Engine.Run: stopped: %v", err)
	})
	return err
}

func (e *Engine) loop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.done:
			return ErrSessionTerminated
		case fn := <-e.dispatch:
			fn()
		case <-e.tickChan():
			e.Tick()
		case <-e.expiryChan():
			e.update(func() error { return nil })
		}
	}
}

// Dispatch queues fn to run on the Run goroutine. It returns false if Run has exited.
func (e *Engine) Dispatch(fn func()) bool {
	select {
	case <-e.stopped:
		return false
	default:
	}
	select {
	case e.dispatch <- fn:
		return true
	case <-e.stopped:
		return false
	}
}

// Tap queues a tile selection from the user.
func (e *Engine) Tap(index int) bool {
	return e.Dispatch(func() {
		if err := e.SelectTile(index); err != nil {
			klog.V(1).Infof("Engine.Tap: tile %d rejected: %v", index, err)
		}
	})
}

// Stopped is closed when Run has returned. Work dispatched but not yet run by then is
// never run.
func (e *Engine) Stopped() <-chan struct{} {
	return e.stopped
}

// Done is closed when the session is terminated by the server.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// Terminated reports whether the session ended for good.
func (e *Engine) Terminated() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.terminated
}

// AddListener registers fn to be called with a fresh View after every state change.
func (e *Engine) AddListener(name string, fn func(View)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners[name] = fn
}

// RemoveListener unregisters the listener with the given name.
func (e *Engine) RemoveListener(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.listeners, name)
}

// update runs fn under the lock, realigns the timers with the new state and notifies the
// listeners.
func (e *Engine) update(fn func() error) error {
	e.mu.Lock()
	err := fn()
	e.syncTickerLocked()
	e.armExpiryLocked()
	view := e.viewLocked()
	listeners := make([]func(View), 0, len(e.listeners))
	for _, l := range e.listeners {
		if l != nil {
			listeners = append(listeners, l)
		}
	}
	e.mu.Unlock()

	klog.V(2).Infof("Engine: notifying %d listeners", len(listeners))
	for _, l := range listeners {
		l(view)
	}
	return err
}

// SelectTile is the local player's attempt to reveal the tile at index.
//
// Rejections never reach the server. On success the board, row counters and score change
// at once and the selectTile intent is emitted without waiting for confirmation.
func (e *Engine) SelectTile(index int) error {
	return e.update(func() error {
		tile, err := e.board.Tile(index)
		if err != nil {
			return err
		}
		if tile.Revealed {
			return fmt.Errorf("%w: %d", game.ErrAlreadyRevealed, index)
		}
		if e.terminated {
			return ErrSessionTerminated
		}
		if err := e.turn.Check(); err != nil {
			if errors.Is(err, ErrTimeExpired) {
				e.flashLocked(NoticeWarning, textTimeUp)
			} else {
				e.flashLocked(NoticeWarning, textWaitTurn)
			}
			return err
		}
		row := game.Row(index)
		if !e.rows.CanSelect(row) {
			e.flashLocked(NoticeWarning, fmt.Sprintf(textRowFull, game.RowQuota, row+1))
			return fmt.Errorf("%w: row %d", game.ErrRowQuotaExceeded, row)
		}

		value, err := e.board.Reveal(index)
		if err != nil {
			return err
		}
		if err := e.rows.Increment(row); err != nil {
			return err
		}
		score := e.ledger.ApplyLocalDelta(value)
		e.alertLocked(pointsNotice(value))
		if value > 0 {
			e.flashLocked(NoticeGain, pointsMessage(value))
		} else {
			e.flashLocked(NoticeLoss, pointsMessage(value))
		}
		klog.Infof("Engine.SelectTile: tile %d revealed locally, value %+d, score %d", index, value, score)

		e.emitLocked(game.MsgTypeSelectTile, game.SelectTileMessage{TileIndex: index})
		return nil
	})
}

// Tick advances the turn countdown by one tick.
func (e *Engine) Tick() {
	e.update(func() error {
		if !e.turn.Tick() {
			klog.V(2).Infof("Engine.Tick: %s, %d left", e.turn.State(), e.turn.Remaining())
			return nil
		}
		if e.turn.State() == MyTurnExpired {
			klog.Infof("Engine.Tick: turn expired")
			e.flashLocked(NoticeWarning, textTurnExpired)
		} else {
			klog.V(1).Infof("Engine.Tick: solo turn ran out, starting a new one")
		}
		return nil
	})
}

// HandleMessage reconciles one message from the server.
func (e *Engine) HandleMessage(msg game.WsMessage) error {
	p, err := msg.Parse()
	if err != nil {
		klog.Errorf("Engine.HandleMessage: failed to parse %s message: %v", msg.Type, err)
		return fmt.Errorf("parse %s: %w", msg.Type, err)
	}
	klog.V(1).Infof("Engine.HandleMessage: %s", msg.Type)

	return e.update(func() error {
		switch m := p.(type) {
		case *game.StateMessage:
			e.applySnapshotLocked(m)
		case *game.TileSelectedMessage:
			e.applyTileSelectedLocked(m)
		case *game.TurnTimeoutMessage:
			e.applyTurnTimeoutLocked(m)
		case *game.ScoreMessage:
			e.applyScoreLocked(msg.Type, m)
		case *game.BlockedMessage:
			e.terminateLocked()
		case *game.TextMessage:
			e.flashLocked(NoticeInfo, m.Text)
		case *game.DiagnosticMessage:
			klog.Infof("Engine.HandleMessage: %s: %s", msg.Type, m.Raw)
		case *game.PingMessage:
			// Answered by the connection.
		default:
			klog.Warningf("Engine.HandleMessage: unexpected %s message from the server", msg.Type)
		}
		return nil
	})
}

func (e *Engine) applySnapshotLocked(m *game.StateMessage) {
	if game.NeedsNewBoard(m.Board) {
		e.board = game.NewBoard(e.magnitude, e.rng)
		e.rows.Reset()
		klog.Infof("Engine: new local board generated")
	}
	e.board.ImportRevealed(m.Board)

	if m.CurrentPlayer != nil {
		current := *m.CurrentPlayer
		e.current = &current
	} else {
		e.current = nil
	}
	e.players = slices.Clone(m.Players)
	solo := len(e.players) <= 1
	e.status = m.Status
	if solo || e.status == "" {
		e.status = game.StatusPlaying
	}

	e.turn.SetSolo(solo)
	if solo || (e.current != nil && e.current.ID == e.self) {
		e.turn.Begin()
	} else {
		e.turn.Yield()
	}

	if m.RowSelections != nil {
		e.rows.Replace(m.RowSelections)
	}
}

func (e *Engine) applyTileSelectedLocked(m *game.TileSelectedMessage) {
	if !e.board.MarkRevealed(m.TileIndex) {
		klog.Warningf("Engine: tileSelected for tile %d outside the board", m.TileIndex)
	}
	if m.PlayerID == e.self {
		// The server confirms our own move: the alert uses our local value, the score is
		// the server's.
		if tile, err := e.board.Tile(m.TileIndex); err == nil {
			e.alertLocked(pointsNotice(tile.Value))
		}
		if m.NewScore != nil {
			e.ledger.ApplyAuthoritative(*m.NewScore)
		}
	}
	if m.RowSelections != nil {
		e.rows.Replace(m.RowSelections)
	}
}

func (e *Engine) applyTurnTimeoutLocked(m *game.TurnTimeoutMessage) {
	if m.PlayerID != e.self {
		return
	}
	e.turn.Timeout()
	if e.turn.State() == MyTurnExpired {
		e.flashLocked(NoticeWarning, textServerTimeout)
	}
}

func (e *Engine) applyScoreLocked(t game.MessageType, m *game.ScoreMessage) {
	if m.UserID != nil && *m.UserID != e.self {
		return
	}
	klog.Infof("Engine: %s: score %d -> %d", t, e.ledger.Local(), m.NewScore)
	e.ledger.ApplyAuthoritative(m.NewScore)
}

func (e *Engine) terminateLocked() {
	if e.terminated {
		return
	}
	klog.Warningf("Engine: session terminated by the server")
	e.terminated = true
	e.turn.Yield()
	e.message = Notice{Kind: NoticeFatal, Text: textBlocked}
	e.persistBlockedLocked()
	close(e.done)
}

// persistBlockedLocked records the block so the profile refuses to start again.
func (e *Engine) persistBlockedLocked() {
	if e.blocks == nil || e.self == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := e.blocks.SetBlocked(ctx, string(e.self), true); err != nil {
		klog.Errorf("Engine: failed to store the block of %s: %v", e.self, err)
	}
}

// Connected attaches the engine to a new connection and sends the join intents. first is
// true only for the very first connection of the session.
func (e *Engine) Connected(out Outbox, first bool) {
	e.update(func() error {
		e.out = out
		e.connected = true
		if e.echo {
			e.emitLocked(game.MsgTypeTest, game.EchoMessage{Message: "Prueba de conexión desde juego", Version: game.Version})
		}
		if first {
			e.emitLocked(game.MsgTypeSyncScore, game.SyncScoreMessage{UserID: e.self})
		}
		e.emitLocked(game.MsgTypeJoinGame, nil)
		if e.turn.Solo() && e.turn.State() != MyTurnActive && !e.terminated {
			e.turn.Begin()
		}
		if !first {
			e.flashLocked(NoticeInfo, textReconnected)
		}
		return nil
	})
}

// Disconnected detaches the engine from its connection. Board, turn and score are left
// as they are until the next snapshot.
func (e *Engine) Disconnected(err error) {
	e.update(func() error {
		e.out = nil
		e.connected = false
		if err != nil && !e.terminated {
			e.flashLocked(NoticeWarning, fmt.Sprintf(textConnectionError, err))
		}
		return nil
	})
}

// Leave emits the leaveGame intent and detaches from the connection.
func (e *Engine) Leave() {
	e.update(func() error {
		e.emitLocked(game.MsgTypeLeaveGame, nil)
		e.out = nil
		e.connected = false
		return nil
	})
}

func (e *Engine) emitLocked(msgType game.MessageType, payload any) {
	msg, err := game.NewWsMessage(msgType, payload)
	if err != nil {
		klog.Errorf("Engine.emit: failed to create %s message: %v", msgType, err)
		return
	}
	if e.out == nil {
		klog.Warningf("Engine.emit: not connected, dropping %s", msgType)
		return
	}
	e.out.Emit(msg)
}

func (e *Engine) flashLocked(kind NoticeKind, text string) {
	e.message = Notice{Kind: kind, Text: text, Expires: e.clock.Now().Add(e.noticeWindow)}
}

func (e *Engine) alertLocked(n Notice) {
	n.Expires = e.clock.Now().Add(e.noticeWindow)
	e.alert = n
}

// syncTickerLocked keeps exactly one ticker running while the turn is active, restarted
// on every new activation.
func (e *Engine) syncTickerLocked() {
	if e.turn.State() == MyTurnActive && !e.terminated {
		if e.ticker != nil && e.tickerGen == e.turn.Generation() {
			return
		}
		if e.ticker != nil {
			e.ticker.Stop()
		}
		e.ticker = e.clock.NewTicker(e.tickInterval)
		e.tickerGen = e.turn.Generation()
		return
	}
	if e.ticker != nil {
		e.ticker.Stop()
		e.ticker = nil
	}
}

// armExpiryLocked schedules a wake-up for the next notice to clear.
func (e *Engine) armExpiryLocked() {
	if e.expiry != nil {
		e.expiry.Stop()
		e.expiry = nil
	}
	now := e.clock.Now()
	var next time.Time
	for _, n := range []Notice{e.message, e.alert} {
		if !n.Active(now) || n.Expires.IsZero() {
			continue
		}
		if next.IsZero() || n.Expires.Before(next) {
			next = n.Expires
		}
	}
	if !next.IsZero() {
		e.expiry = e.clock.NewTimer(next.Sub(now))
	}
}

func (e *Engine) tickChan() <-chan time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ticker == nil {
		return nil
	}
	return e.ticker.Chan()
}

func (e *Engine) expiryChan() <-chan time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.expiry == nil {
		return nil
	}
	return e.expiry.Chan()
}

func (e *Engine) stopTimers() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ticker != nil {
		e.ticker.Stop()
		e.ticker = nil
	}
	if e.expiry != nil {
		e.expiry.Stop()
		e.expiry = nil
	}
}

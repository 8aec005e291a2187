package client

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/mjappgame/mesa/internal/game"
	"github.com/mjappgame/mesa/internal/session"
	"k8s.io/klog/v2"
)

// State of the connection to the game server.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Reconnecting
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case Reconnecting:
		return "Reconnecting"
	}
	return "State(?)"
}

// Session is the game session served by a Lifecycle. It is implemented by
// *session.Engine.
type Session interface {
	// Dispatch runs fn on the session's own goroutine. It returns false if the session
	// stopped.
	Dispatch(fn func()) bool
	HandleMessage(msg game.WsMessage) error
	Connected(out session.Outbox, first bool)
	Disconnected(err error)
	Leave()
	Done() <-chan struct{}
	// Stopped is closed once dispatched work no longer runs.
	Stopped() <-chan struct{}
}

var _ Session = (*session.Engine)(nil)

// Options configure the connection and its reconnection policy.
type Options struct {
	URL         string
	Attempts    int           // Consecutive failed dials before giving up.
	Delay       time.Duration // Delay before the first retry, doubled on each failure.
	DelayMax    time.Duration
	DialTimeout time.Duration

	Clock      clockwork.Clock
	HTTPClient *http.Client

	// OnStateChange, if set, is called on every state transition.
	OnStateChange func(State)
}

const closeTimeout = 2 * time.Second

// Lifecycle keeps a Session connected to the game server, reconnecting when the
// connection drops, until the context is canceled or the session is terminated.
type Lifecycle struct {
	opts Options
	sess Session

	mu    sync.Mutex
	state State
}

// NewLifecycle creates the lifecycle of sess. It does not connect until Run.
func NewLifecycle(sess Session, opts Options) *Lifecycle {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Attempts <= 0 {
		opts.Attempts = 10
	}
	if opts.Delay <= 0 {
		opts.Delay = time.Second
	}
	if opts.DelayMax < opts.Delay {
		opts.DelayMax = opts.Delay
	}
	return &Lifecycle{opts: opts, sess: sess}
}

// State returns the current connection state.
func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Lifecycle) setState(s State) {
	l.mu.Lock()
	changed := l.state != s
	l.state = s
	l.mu.Unlock()
	if !changed {
		return
	}
	klog.V(1).Infof("Lifecycle: %s", s)
	if l.opts.OnStateChange != nil {
		l.opts.OnStateChange(s)
	}
}

// backoff returns the delay before retry number n (1-based).
func (l *Lifecycle) backoff(n int) time.Duration {
	d := l.opts.Delay
	for i := 1; i < n && d < l.opts.DelayMax; i++ {
		d *= 2
	}
	return min(d, l.opts.DelayMax)
}

// Run connects and serves the session. It returns ctx.Err() when ctx is canceled,
// session.ErrSessionTerminated when the server ends the session, or an error wrapping
// ErrConnection when the server could not be reached after the configured attempts.
func (l *Lifecycle) Run(ctx context.Context) error {
	defer l.setState(Disconnected)

	first := true
	failures := 0
	l.setState(Connecting)
	for {
		conn, err := Dial(ctx, l.opts.URL, l.opts.DialTimeout, l.opts.HTTPClient)
		if err != nil {
			if stopErr := l.stopped(ctx); stopErr != nil {
				return stopErr
			}
			failures++
			if failures >= l.opts.Attempts {
				klog.Errorf("Lifecycle.Run: giving up after %d attempts: %v", failures, err)
				return fmt.Errorf("%w: %d attempts: %w", ErrConnection, failures, err)
			}
			delay := l.backoff(failures)
			klog.Warningf("Lifecycle.Run: attempt %d failed, retrying in %s: %v", failures, delay, err)
			if err := l.wait(ctx, delay); err != nil {
				return err
			}
			continue
		}

		failures = 0
		l.setState(Connected)
		isFirst := first
		first = false
		if !l.sess.Dispatch(func() { l.sess.Connected(conn, isFirst) }) {
			_ = conn.CloseNow()
			if err := l.stopped(ctx); err != nil {
				return err
			}
			return ErrSessionStopped
		}

		err = l.serve(ctx, conn)
		if stopErr := l.stopped(ctx); stopErr != nil {
			return stopErr
		}

		klog.Warningf("Lifecycle.Run: connection %s lost: %v", conn.ID, err)
		_ = conn.CloseNow()
		l.sess.Dispatch(func() { l.sess.Disconnected(err) })
		l.setState(Reconnecting)
		if err := l.wait(ctx, l.opts.Delay); err != nil {
			return err
		}
	}
}

// serve reads from conn until it fails. When ctx is canceled the session leaves and conn is
// closed normally; when the session is terminated conn is closed as a policy violation.
func (l *Lifecycle) serve(ctx context.Context, conn *Conn) error {
	served := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
		defer cancel()
		select {
		case <-served:
		case <-ctx.Done():
			l.leave(closeCtx)
			_ = conn.Close(closeCtx, websocket.StatusNormalClosure, "leaving")
		case <-l.sess.Done():
			_ = conn.Close(closeCtx, websocket.StatusPolicyViolation, "blocked")
		}
	}()

	err := conn.ReadLoop(context.Background(), func(msg game.WsMessage) {
		l.sess.Dispatch(func() {
			if err := l.sess.HandleMessage(msg); err != nil {
				klog.Warningf("Lifecycle: dropping %s message: %v", msg.Type, err)
			}
		})
	})
	close(served)
	wg.Wait()
	return err
}

// leave has the session emit leaveGame before its connection is closed. The intent is
// dispatched like every other change; the session's Run shares the canceled context and
// may stop first, and then nothing else touches the session, so Leave is called here.
func (l *Lifecycle) leave(ctx context.Context) {
	left := make(chan struct{})
	if l.sess.Dispatch(func() {
		l.sess.Leave()
		close(left)
	}) {
		select {
		case <-left:
			return
		case <-ctx.Done():
			return
		case <-l.sess.Stopped():
		}
		select {
		case <-left:
			return
		default:
		}
	}
	l.sess.Leave()
}

// stopped returns the error Run should return if it must not reconnect, or nil.
func (l *Lifecycle) stopped(ctx context.Context) error {
	select {
	case <-l.sess.Done():
		return session.ErrSessionTerminated
	default:
	}
	return ctx.Err()
}

func (l *Lifecycle) wait(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.sess.Done():
		return session.ErrSessionTerminated
	case <-l.opts.Clock.After(d):
		return nil
	}
}

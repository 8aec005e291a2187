package client

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/mjappgame/mesa/internal/game"
	"github.com/mjappgame/mesa/internal/session"
)

// pipeListener serves HTTP connections over net.Pipe
type pipeListener struct {
	ch   chan net.Conn
	done chan struct{}
}

func (l *pipeListener) Accept() (net.Conn, error) {
	select {
	case c := <-l.ch:
		return c, nil
	case <-l.done:
		return nil, net.ErrClosed
	}
}

func (l *pipeListener) Close() error {
	select {
	case <-l.done:
	default:
		close(l.done)
	}
	return nil
}

func (l *pipeListener) Addr() net.Addr { return &net.TCPAddr{} }

// fakeServer is a game server that records what each connection sent. handle, if set, is
// called for every message and may answer on the connection; returning false closes it.
type fakeServer struct {
	mu       sync.Mutex
	received [][]game.MessageType
	handle   func(n int, c *websocket.Conn, msg game.WsMessage) bool
}

func (s *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer c.CloseNow()
	s.mu.Lock()
	n := len(s.received)
	s.received = append(s.received, nil)
	s.mu.Unlock()

	ctx := context.Background()
	for {
		var msg game.WsMessage
		if err := wsjson.Read(ctx, c, &msg); err != nil {
			return
		}
		s.mu.Lock()
		s.received[n] = append(s.received[n], msg.Type)
		s.mu.Unlock()
		if s.handle != nil && !s.handle(n, c, msg) {
			return
		}
	}
}

func (s *fakeServer) connections() [][]game.MessageType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]game.MessageType, len(s.received))
	for i, r := range s.received {
		out[i] = append([]game.MessageType(nil), r...)
	}
	return out
}

// startServer serves handler over in-memory pipes and returns the client to reach it.
func startServer(t *testing.T, handler http.Handler) *http.Client {
	listener := &pipeListener{ch: make(chan net.Conn, 10), done: make(chan struct{})}
	srv := &http.Server{Handler: handler}
	go srv.Serve(listener)
	t.Cleanup(func() {
		srv.Close()
		listener.Close()
	})
	return &http.Client{
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				cli, srv := net.Pipe()
				listener.ch <- srv
				return cli, nil
			},
		},
	}
}

func sameTypes(got []game.MessageType, want ...game.MessageType) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range want {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestLifecycleReconnect(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		server := &fakeServer{}
		server.handle = func(n int, c *websocket.Conn, msg game.WsMessage) bool {
			if n == 0 && msg.Type == game.MsgTypeJoinGame {
				// Drop the first connection right after the join.
				c.Close(websocket.StatusGoingAway, "restarting")
				return false
			}
			return true
		}
		httpClient := startServer(t, server)

		engine := session.NewEngine(session.Options{Self: "ana"})
		engineDone := make(chan error, 1)
		go func() { engineDone <- engine.Run(ctx) }()

		var states []State
		var statesMu sync.Mutex
		lc := NewLifecycle(engine, Options{
			URL:         "http://localhost/ws",
			Attempts:    3,
			Delay:       time.Second,
			DelayMax:    5 * time.Second,
			DialTimeout: 20 * time.Second,
			HTTPClient:  httpClient,
			OnStateChange: func(s State) {
				statesMu.Lock()
				defer statesMu.Unlock()
				states = append(states, s)
			},
		})
		errCh := make(chan error, 1)
		go func() { errCh <- lc.Run(ctx) }()

		// The retry waits one second; the reconnection notice lasts two.
		time.Sleep(1500 * time.Millisecond)
		synctest.Wait()
		if lc.State() != Connected {
			t.Fatalf("state after reconnection: %s", lc.State())
		}
		conns := server.connections()
		if len(conns) != 2 {
			t.Fatalf("server saw %d connections, wanted 2", len(conns))
		}
		if !sameTypes(conns[0], game.MsgTypeSyncScore, game.MsgTypeJoinGame) {
			t.Errorf("first connection sent %v", conns[0])
		}
		if !sameTypes(conns[1], game.MsgTypeJoinGame) {
			t.Errorf("second connection sent %v, wanted only joinGame", conns[1])
		}
		if v := engine.View(); !v.Connected || v.Message == nil || v.Message.Text != "Reconectado al servidor" {
			t.Errorf("engine after reconnection: connected=%v message=%+v", v.Connected, v.Message)
		}

		cancel()
		if err := <-errCh; !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v, wanted context.Canceled", err)
		}
		<-engineDone
		synctest.Wait()
		conns = server.connections()
		if last := conns[1][len(conns[1])-1]; last != game.MsgTypeLeaveGame {
			t.Errorf("last message of the second connection: %s, wanted leaveGame", last)
		}

		statesMu.Lock()
		defer statesMu.Unlock()
		want := []State{Connecting, Connected, Reconnecting, Connected, Disconnected}
		if len(states) != len(want) {
			t.Fatalf("state transitions %v, wanted %v", states, want)
		}
		for i := range want {
			if states[i] != want[i] {
				t.Fatalf("state transitions %v, wanted %v", states, want)
			}
		}
	})
}

func TestLifecycleBlocked(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		server := &fakeServer{}
		server.handle = func(n int, c *websocket.Conn, msg game.WsMessage) bool {
			if msg.Type == game.MsgTypeJoinGame {
				blocked, _ := game.NewWsMessage(game.MsgTypeBlocked, nil)
				_ = wsjson.Write(context.Background(), c, blocked)
			}
			return true
		}
		httpClient := startServer(t, server)

		engine := session.NewEngine(session.Options{Self: "ana"})
		go engine.Run(ctx)
		lc := NewLifecycle(engine, Options{URL: "http://localhost/ws", HTTPClient: httpClient})

		err := lc.Run(ctx)
		if !errors.Is(err, session.ErrSessionTerminated) {
			t.Fatalf("Run returned %v, wanted ErrSessionTerminated", err)
		}
		if !engine.Terminated() {
			t.Error("engine not terminated")
		}

		// No reconnection.
		time.Sleep(time.Minute)
		synctest.Wait()
		if n := len(server.connections()); n != 1 {
			t.Errorf("server saw %d connections, wanted 1", n)
		}
	})
}

func TestLifecycleLeaveOnCancel(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		server := &fakeServer{}
		httpClient := startServer(t, server)

		// The session outlives the connection: leaveGame goes through its Run goroutine.
		engineCtx, stopEngine := context.WithCancel(context.Background())
		defer stopEngine()
		engine := session.NewEngine(session.Options{Self: "ana"})
		go engine.Run(engineCtx)

		ctx, cancel := context.WithCancel(context.Background())
		lc := NewLifecycle(engine, Options{URL: "http://localhost/ws", HTTPClient: httpClient})
		errCh := make(chan error, 1)
		go func() { errCh <- lc.Run(ctx) }()
		synctest.Wait()
		if lc.State() != Connected {
			t.Fatalf("state: %s", lc.State())
		}

		cancel()
		if err := <-errCh; !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v, wanted context.Canceled", err)
		}
		synctest.Wait()
		conns := server.connections()
		if len(conns) != 1 || !sameTypes(conns[0], game.MsgTypeSyncScore, game.MsgTypeJoinGame, game.MsgTypeLeaveGame) {
			t.Errorf("server received %v", conns)
		}
		if engine.View().Connected {
			t.Error("session still connected after leaving")
		}
	})
}

func TestLifecycleSessionStopped(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		server := &fakeServer{}
		httpClient := startServer(t, server)

		engineCtx, stopEngine := context.WithCancel(context.Background())
		engine := session.NewEngine(session.Options{Self: "ana"})
		engineDone := make(chan error, 1)
		go func() { engineDone <- engine.Run(engineCtx) }()
		stopEngine()
		<-engineDone

		lc := NewLifecycle(engine, Options{URL: "http://localhost/ws", HTTPClient: httpClient})
		if err := lc.Run(context.Background()); !errors.Is(err, ErrSessionStopped) {
			t.Errorf("Run returned %v, wanted ErrSessionStopped", err)
		}
		if lc.State() != Disconnected {
			t.Errorf("state: %s", lc.State())
		}
	})
}

func TestLifecycleGivesUp(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var dials int
		httpClient := &http.Client{
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
					dials++
					return nil, errors.New("connection refused")
				},
			},
		}
		engine := session.NewEngine(session.Options{Self: "ana"})
		go engine.Run(ctx)
		lc := NewLifecycle(engine, Options{
			URL:        "http://localhost/ws",
			Attempts:   3,
			Delay:      time.Second,
			DelayMax:   5 * time.Second,
			HTTPClient: httpClient,
		})

		start := time.Now()
		err := lc.Run(ctx)
		if !errors.Is(err, ErrConnection) {
			t.Fatalf("Run returned %v, wanted ErrConnection", err)
		}
		if dials != 3 {
			t.Errorf("dialed %d times, wanted 3", dials)
		}
		// Retries waited 1s and 2s.
		if elapsed := time.Since(start); elapsed != 3*time.Second {
			t.Errorf("gave up after %s, wanted 3s", elapsed)
		}
		if lc.State() != Disconnected {
			t.Errorf("state: %s", lc.State())
		}
	})
}

func TestBackoff(t *testing.T) {
	lc := NewLifecycle(nil, Options{Delay: time.Second, DelayMax: 5 * time.Second})
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}
	for i, w := range want {
		if got := lc.backoff(i + 1); got != w {
			t.Errorf("backoff(%d) = %s, wanted %s", i+1, got, w)
		}
	}
}

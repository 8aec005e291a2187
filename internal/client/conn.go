// Package client connects a game session to the game server over a websocket and keeps it
// connected.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/mjappgame/mesa/internal/game"
	"k8s.io/klog/v2"
)

var (
	// ErrConnection is returned when the server cannot be reached.
	ErrConnection = errors.New("connection to the game server failed")

	// ErrSessionStopped is returned when the session stopped serving before the
	// connection could be handed to it.
	ErrSessionStopped = errors.New("session stopped")
)

const (
	sendQueueSize = 64
	writeTimeout  = 2 * time.Second
)

// Conn is one websocket connection to the game server.
//
// Writes go through a buffered queue drained by a single write pump, so Emit never blocks.
type Conn struct {
	ID string

	ws   *websocket.Conn
	send chan game.WsMessage

	mu        sync.Mutex
	closed    bool
	pumpDone  chan struct{}
	closeOnce sync.Once
}

// Dial connects to url. The dial is abandoned after timeout if it is positive.
// httpClient may be nil.
func Dial(ctx context.Context, url string, timeout time.Duration, httpClient *http.Client) (*Conn, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	var opts *websocket.DialOptions
	if httpClient != nil {
		opts = &websocket.DialOptions{HTTPClient: httpClient}
	}
	ws, _, err := websocket.Dial(ctx, url, opts)
	if err != nil {
		return nil, fmt.Errorf("dial failed: %w", err)
	}
	c := &Conn{
		ID:       uuid.NewString(),
		ws:       ws,
		send:     make(chan game.WsMessage, sendQueueSize),
		pumpDone: make(chan struct{}),
	}
	go c.writePump()
	klog.Infof("Dial: connection %s to %s established", c.ID, url)
	return c, nil
}

// Emit queues msg to be sent. If the queue is full or the connection is closed the message
// is dropped.
func (c *Conn) Emit(msg game.WsMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		klog.Warningf("Conn.Emit: connection %s closed, dropping %s", c.ID, msg.Type)
		return
	}
	select {
	case c.send <- msg:
	default:
		klog.Warningf("Conn.Emit: send queue of %s full, dropping %s", c.ID, msg.Type)
	}
}

func (c *Conn) writePump() {
	defer close(c.pumpDone)
	for msg := range c.send {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := wsjson.Write(ctx, c.ws, msg)
		cancel()
		if err != nil {
			klog.Errorf("Conn.writePump: failed to send %s on %s: %v", msg.Type, c.ID, err)
			continue
		}
		klog.V(2).Infof("Conn.writePump: sent %s", msg.Type)
	}
}

// ReadLoop reads messages until the connection fails or ctx is done, passing each one to
// handle. Pings are answered here.
func (c *Conn) ReadLoop(ctx context.Context, handle func(game.WsMessage)) error {
	for {
		var msg game.WsMessage
		if err := wsjson.Read(ctx, c.ws, &msg); err != nil {
			return err
		}
		klog.V(1).Infof("Conn.ReadLoop: received message type: %s", msg.Type)
		if msg.Type == game.MsgTypePing {
			c.pong(msg)
		}
		handle(msg)
	}
}

func (c *Conn) pong(msg game.WsMessage) {
	p, err := msg.Parse()
	if err != nil {
		klog.Errorf("Conn.pong: failed to parse ping message: %v", err)
		return
	}
	ping, ok := p.(*game.PingMessage)
	if !ok {
		return
	}
	pongMsg, _ := game.NewWsMessage(game.MsgTypePong, game.PongMessage{
		ServerTime: ping.ServerTime,
		ClientTime: time.Now().UnixNano(),
	})
	c.Emit(pongMsg)
}

// Close flushes the queued messages and closes the connection with code and reason.
// The flush is abandoned when ctx is done.
func (c *Conn) Close(ctx context.Context, code websocket.StatusCode, reason string) error {
	var err error
	c.closeOnce.Do(func() {
		c.closeQueue()
		select {
		case <-c.pumpDone:
		case <-ctx.Done():
			klog.Warningf("Conn.Close: abandoning unsent messages of %s", c.ID)
		}
		err = c.ws.Close(code, reason)
		klog.V(1).Infof("Conn.Close: connection %s closed (%d %q)", c.ID, code, reason)
	})
	return err
}

// CloseNow closes the connection without flushing or handshake.
func (c *Conn) CloseNow() error {
	c.closeQueue()
	return c.ws.CloseNow()
}

func (c *Conn) closeQueue() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Package transport carries the exchange over WebSocket connections.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"firestige.xyz/ferry/internal/core"
)

const closeGrace = time.Second

// Conn adapts a WebSocket connection to transfer.Conn. Each message is one
// text frame; a peer's normal closure reads as io.EOF.
type Conn struct {
	ws        *websocket.Conn
	closeOnce sync.Once
	closed    chan struct{}
}

func newConn(ws *websocket.Conn) *Conn {
	return &Conn{ws: ws, closed: make(chan struct{})}
}

// Dial connects to a receiver, e.g. ws://localhost:8080/ws.
func Dial(ctx context.Context, url string) (*Conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	return newConn(ws), nil
}

func (c *Conn) ReadMessage(ctx context.Context) ([]byte, error) {
	// Unblock the read when ctx ends.
	stop := context.AfterFunc(ctx, func() {
		_ = c.ws.SetReadDeadline(time.Now())
	})
	defer stop()

	_, data, err := c.ws.ReadMessage()
	if err == nil {
		return data, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return nil, io.EOF
	}
	select {
	case <-c.closed:
		return nil, core.ErrConnClosed
	default:
	}
	return nil, err
}

func (c *Conn) WriteMessage(ctx context.Context, msg []byte) error {
	select {
	case <-c.closed:
		return core.ErrConnClosed
	default:
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = c.ws.SetWriteDeadline(dl)
		defer c.ws.SetWriteDeadline(time.Time{})
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
		if errors.Is(err, websocket.ErrCloseSent) {
			return core.ErrConnClosed
		}
		return err
	}
	return nil
}

// Close sends a normal-closure frame and closes the socket.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGrace))
		err = c.ws.Close()
	})
	return err
}

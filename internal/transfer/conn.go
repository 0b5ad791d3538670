// Package transfer implements the stop-and-wait exchange that drives
// retransmission until every unit is acknowledged.
package transfer

import (
	"context"
	"io"
	"sync"

	"firestige.xyz/ferry/internal/core"
)

// Conn is a reliable, ordered, message-oriented connection.
type Conn interface {
	// ReadMessage blocks for the next message. It returns io.EOF once the
	// peer has closed and every message it wrote has been read.
	ReadMessage(ctx context.Context) ([]byte, error)
	// WriteMessage sends one message.
	WriteMessage(ctx context.Context, msg []byte) error
	Close() error
}

const pipeBuffer = 16

type pipeEnd struct {
	in  <-chan []byte
	out chan<- []byte

	mu     sync.Mutex
	closed bool
	done   chan struct{} // closed by this end's Close
	peer   chan struct{} // the other end's done
}

// Pipe returns an in-memory connection pair. Messages written before Close
// are delivered before the reader sees io.EOF.
func Pipe() (Conn, Conn) {
	ab := make(chan []byte, pipeBuffer)
	ba := make(chan []byte, pipeBuffer)
	aDone := make(chan struct{})
	bDone := make(chan struct{})

	a := &pipeEnd{in: ba, out: ab, done: aDone, peer: bDone}
	b := &pipeEnd{in: ab, out: ba, done: bDone, peer: aDone}
	return a, b
}

func (p *pipeEnd) ReadMessage(ctx context.Context) ([]byte, error) {
	select {
	case msg, ok := <-p.in:
		if !ok {
			return nil, io.EOF
		}
		return msg, nil
	case <-p.done:
		return nil, core.ErrConnClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *pipeEnd) WriteMessage(ctx context.Context, msg []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return core.ErrConnClosed
	}
	select {
	case <-p.peer:
		return core.ErrConnClosed
	default:
	}

	buf := append(make([]byte, 0, len(msg)), msg...)
	select {
	case p.out <- buf:
		return nil
	case <-p.peer:
		return core.ErrConnClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *pipeEnd) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	close(p.out)
	close(p.done)
	return nil
}

package ws

import (
	"sync"

	"github.com/gorilla/websocket"

	"github.com/vijikalavarkar/sanvi-technologies/internal/core"
	"github.com/vijikalavarkar/sanvi-technologies/internal/domain"
)

// roomConn adapts a websocket to core.ConnectionHandle: TrySend enqueues
// onto a buffered channel drained by the write pump, or fails immediately.
type roomConn struct {
	conn *websocket.Conn
	send chan domain.Event

	mu     sync.RWMutex
	closed bool
}

func newRoomConn(conn *websocket.Conn, buffer int) *roomConn {
	return &roomConn{
		conn: conn,
		send: make(chan domain.Event, buffer),
	}
}

func (c *roomConn) TrySend(ev domain.Event) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrConnectionClosed
	}
	select {
	case c.send <- ev:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *roomConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

package ws

import (
	"sync"

	"github.com/dkeye/Camlink/internal/core"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// Conn is the transport endpoint of one client. It implements
// core.SignalConnection.
type Conn struct {
	id      core.ConnID
	conn    *websocket.Conn
	send    chan core.Message
	limiter *rate.Limiter

	mu     sync.RWMutex
	closed bool
}

func newConn(id core.ConnID, ws *websocket.Conn, opts Options) *Conn {
	return &Conn{
		id:      id,
		conn:    ws,
		send:    make(chan core.Message, opts.SendBuffer),
		limiter: newEventLimiter(opts.EventsPerSecond, opts.EventBurst),
	}
}

func (c *Conn) ID() core.ConnID { return c.id }

// TrySend queues m without blocking.
func (c *Conn) TrySend(m core.Message) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrClosed
	}
	select {
	case c.send <- m:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *Conn) Close() {
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

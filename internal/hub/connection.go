package hub

import (
	"sync"

	"github.com/google/uuid"

	"creator_collab/internal/domain"
)

// Connection is one authenticated channel. Frames are queued on a bounded
// buffer drained by the socket write pump.
type Connection struct {
	id       string
	identity domain.Identity
	send     chan []byte

	mu     sync.Mutex
	closed bool
}

func NewConnection(identity domain.Identity, buffer int) *Connection {
	return &Connection{
		id:       uuid.NewString(),
		identity: identity,
		send:     make(chan []byte, buffer),
	}
}

func (c *Connection) ID() string                { return c.id }
func (c *Connection) Identity() domain.Identity { return c.identity }

// Frames is closed once the connection is closed.
func (c *Connection) Frames() <-chan []byte { return c.send }

// enqueue never blocks. It reports false when the connection is closed or
// its buffer is full.
func (c *Connection) enqueue(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Connection) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *Connection) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

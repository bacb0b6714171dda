package store

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrConnClosed is returned when a disconnect hook is registered on a
// connection that has already been detached or dropped.
var ErrConnClosed = errors.New("The connection is no longer live")

type connState int

const (
	connLive connState = iota
	connDetached
	connDropped
)

// Conn models one live client connection to the store. Fallback writes
// registered through OnDisconnectSet are applied as a single atomic batch
// the moment the connection drops without an explicit Detach. A clean
// Detach discards them.
type Conn struct {
	id string
	st *Store

	mu    sync.Mutex
	state connState
	hooks []*DisconnectHook
}

// Connect opens a new connection against the store.
func (s *Store) Connect() *Conn {
	return &Conn{id: uuid.NewString(), st: s}
}

func (c *Conn) ID() string {
	return c.id
}

// DisconnectHook is one pre-registered fallback write. Cancelling it
// deterministically releases the registration, so owners (a presence
// session, a typing session) can clean up on logout instead of waiting
// for a drop that never comes.
type DisconnectHook struct {
	conn      *Conn
	path      string
	value     any
	cancelled bool
}

// OnDisconnectSet registers a fallback write of value at path, to run
// automatically when the connection drops. Hooks fire in registration
// order; a later hook on the same path wins.
func (c *Conn) OnDisconnectSet(path string, value any) (*DisconnectHook, error) {
	parts, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != connLive {
		return nil, ErrConnClosed
	}
	h := &DisconnectHook{conn: c, path: joinPath(parts), value: value}
	c.hooks = append(c.hooks, h)
	return h, nil
}

// Cancel removes the fallback write. A no-op once the connection has
// already detached or dropped.
func (h *DisconnectHook) Cancel() {
	h.conn.mu.Lock()
	h.cancelled = true
	h.conn.mu.Unlock()
}

// Detach closes the connection cleanly: pending fallback writes are
// discarded, not applied.
func (c *Conn) Detach() {
	c.mu.Lock()
	if c.state == connLive {
		c.state = connDetached
		c.hooks = nil
	}
	c.mu.Unlock()
}

// Drop simulates (or reports) connection loss: every still-registered
// fallback write is applied as one atomic batch, in registration order,
// with no further involvement of the client.
func (c *Conn) Drop() error {
	c.mu.Lock()
	if c.state != connLive {
		c.mu.Unlock()
		return nil
	}
	c.state = connDropped
	writes := make([]Write, 0, len(c.hooks))
	for _, h := range c.hooks {
		if !h.cancelled {
			writes = append(writes, Write{Path: h.path, Value: h.value})
		}
	}
	c.hooks = nil
	c.mu.Unlock()

	if len(writes) == 0 {
		return nil
	}
	return c.st.apply(writes)
}

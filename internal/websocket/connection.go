package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"careline/pkg/types"
)

const (
	defaultWriteBuffer  = 100
	defaultWriteTimeout = 5 * time.Second
)

// Params fixes a connection's attributes at creation. Class and Identity
// never change for the lifetime of the connection.
type Params struct {
	Class        types.ClassTag
	Identity     *int64 // nil for anonymous (general) connections
	BufferSize   int
	WriteTimeout time.Duration
}

// Connection wraps a WebSocket with a single writer goroutine so that
// concurrent senders never interleave frames. Sends are synchronous and
// bounded: the caller learns about transport failure at send time, which
// is the only failure-detection path (no out-of-band heartbeat state).
type Connection struct {
	conn         *websocket.Conn
	writeCh      chan writeRequest
	class        types.ClassTag
	identity     int64
	hasIdentity  bool
	writeTimeout time.Duration
	ctx          context.Context
	cancel       context.CancelFunc
	closeOnce    sync.Once
}

type writeRequest struct {
	data   []byte
	result chan error
}

// NewConnection wraps an upgraded WebSocket. The connection is open once
// this returns; it closes on the first failed send or an explicit Close.
func NewConnection(conn *websocket.Conn, p Params) *Connection {
	if p.BufferSize <= 0 {
		p.BufferSize = defaultWriteBuffer
	}
	if p.WriteTimeout <= 0 {
		p.WriteTimeout = defaultWriteTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		conn:         conn,
		writeCh:      make(chan writeRequest, p.BufferSize),
		class:        p.Class,
		writeTimeout: p.WriteTimeout,
		ctx:          ctx,
		cancel:       cancel,
	}
	if p.Identity != nil {
		c.identity = *p.Identity
		c.hasIdentity = true
	}

	go c.writeLoop()

	return c
}

// Class returns the connection's class tag.
func (c *Connection) Class() types.ClassTag {
	return c.class
}

// Identity returns the bound user identity, if any.
func (c *Connection) Identity() (int64, bool) {
	return c.identity, c.hasIdentity
}

// writeLoop is the single writer. A failed write closes the connection;
// queued senders are released with ErrConnectionClosed.
func (c *Connection) writeLoop() {
	defer func() {
		// Release any senders that queued before cancellation.
		for {
			select {
			case req := <-c.writeCh:
				req.result <- ErrConnectionClosed
			default:
				return
			}
		}
	}()

	for {
		select {
		case req := <-c.writeCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
				req.result <- err
				c.cancel()
				return
			}
			err := c.conn.WriteMessage(websocket.TextMessage, req.data)
			req.result <- err
			if err != nil {
				c.cancel()
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// Send writes raw bytes as one text frame and reports the transport
// error, waiting at most the write timeout. One slow peer therefore
// delays a broadcast by a bounded amount and is then pruned.
func (c *Connection) Send(data []byte) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	req := writeRequest{data: data, result: make(chan error, 1)}

	select {
	case c.writeCh <- req:
	case <-time.After(c.writeTimeout):
		return ErrWriteTimeout
	case <-c.ctx.Done():
		return ErrConnectionClosed
	}

	select {
	case err := <-req.result:
		return err
	case <-time.After(c.writeTimeout):
		return ErrWriteTimeout
	case <-c.ctx.Done():
		return ErrConnectionClosed
	}
}

// WriteJSON marshals v and sends it as one text frame.
func (c *Connection) WriteJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return ErrInvalidJSON
	}
	return c.Send(data)
}

// Done is closed when the connection is no longer usable.
func (c *Connection) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Close tears down the connection. Idempotent; terminal.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		if c.conn != nil {
			err = c.conn.Close()
		}
	})
	return err
}

// Package gorillaws implements connection.Connection on top of
// github.com/gorilla/websocket.
package gorillaws

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"

	gorilla "github.com/gorilla/websocket"

	"github.com/kanbanlive/boardsync.go/pkg/connection"
	"github.com/kanbanlive/boardsync.go/pkg/constants"
	"github.com/kanbanlive/boardsync.go/pkg/logger"
)

// DefaultDialer is the default gorilla dialer used by Connection.
//
// It uses the default gorilla dialer as of gorilla/websocket v1.5.0 with
// EnableCompression set to true.
var DefaultDialer = &gorilla.Dialer{
	Proxy:             gorilla.DefaultDialer.Proxy,
	HandshakeTimeout:  gorilla.DefaultDialer.HandshakeTimeout,
	EnableCompression: true,
}

// MessageBuffer is how many received frames may wait for the reader.
const MessageBuffer = 64

type Option func(c *Connection)

func WithDialer(d *gorilla.Dialer) Option {
	return func(c *Connection) {
		c.dialer = d
	}
}

func WithHeader(h http.Header) Option {
	return func(c *Connection) {
		c.header = h.Clone()
	}
}

func WithLogger(l logger.Logger) Option {
	return func(c *Connection) {
		c.logger = l
	}
}

type Connection struct {
	config *connection.Config
	dialer *gorilla.Dialer
	header http.Header
	logger logger.Logger

	conn *gorilla.Conn
	// connLock guards conn. It is taken only after a successful dial so
	// that Close is never blocked behind a slow handshake.
	connLock sync.Mutex

	messages chan connection.Message

	// connCloseCh signals that the connection stopped receiving, either
	// because Close was called or because the read loop hit an error.
	connCloseCh chan struct{}

	// errMu guards closed and connCloseError. closed never goes back to
	// false: to reconnect, create a new Connection.
	errMu          sync.Mutex
	closed         bool
	connCloseError error
}

var _ connection.Connection = (*Connection)(nil)

func New(cfg *connection.Config, opts ...Option) *Connection {
	c := &Connection{
		config:      cfg,
		dialer:      DefaultDialer,
		logger:      cfg.Logger,
		messages:    make(chan connection.Message, MessageBuffer),
		connCloseCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.Discard()
	}
	return c
}

// Connect dials the board channel and starts receiving.
func (c *Connection) Connect(ctx context.Context) error {
	if err := c.config.Validate(); err != nil {
		return err
	}
	if c.IsClosed() {
		return constants.ErrClosed
	}

	if c.config.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.DialTimeout)
		defer cancel()
	}

	addr := c.config.URL.String()
	conn, res, err := c.dialer.DialContext(ctx, addr, c.header)
	if err != nil {
		if res != nil {
			return &HandshakeError{URL: addr, StatusCode: res.StatusCode, Err: err}
		}
		return fmt.Errorf("gorillaws: failed to dial %s: %w", addr, err)
	}
	defer res.Body.Close()

	// Delaying the lock until this point keeps Close from waiting on the
	// handshake.
	c.connLock.Lock()
	defer c.connLock.Unlock()

	if c.conn != nil {
		conn.Close()
		return errors.New("gorillaws: already connected")
	}
	c.conn = conn

	c.logger.Debug("gorillaws.Connection connected", "url", addr)

	go c.readLoop(conn)

	return nil
}

func (c *Connection) Messages() <-chan connection.Message {
	return c.messages
}

func (c *Connection) Done() <-chan struct{} {
	return c.connCloseCh
}

func (c *Connection) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.connCloseError
}

// IsClosed reports whether the connection stopped receiving. Callers use it
// to decide when to reconnect.
func (c *Connection) IsClosed() bool {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.closed
}

// Close closes the connection and stops receiving.
//
// The context bounds the close handshake. If it expires before the close
// frame is written, the underlying network connection is closed anyway.
func (c *Connection) Close(ctx context.Context) error {
	c.closeWithError(constants.ErrClosed)

	c.connLock.Lock()
	defer c.connLock.Unlock()

	conn := c.conn
	c.conn = nil
	if conn == nil {
		return nil
	}

	// Phase 1: tell the server we are leaving. A failed write is logged
	// and the connection is closed locally regardless.
	writeErr := make(chan error, 1)

	go func() {
		if deadline, ok := ctx.Deadline(); ok {
			if err := conn.SetWriteDeadline(deadline); err != nil {
				writeErr <- fmt.Errorf("BUG: gorillaws.Connection.Close: failed to set write deadline: %w", err)
				return
			}
		}

		err := conn.WriteMessage(gorilla.CloseMessage, gorilla.FormatCloseMessage(constants.CloseMessageCode, ""))

		select {
		case writeErr <- err:
		case <-ctx.Done():
		}
	}()

	select {
	case err := <-writeErr:
		if err != nil && !errors.Is(err, gorilla.ErrCloseSent) && !errors.Is(err, net.ErrClosed) {
			c.logger.Error("gorillaws.Connection failed to write close message", "error", err)
		}
	case <-ctx.Done():
	}

	// Phase 2: close the network connection. This also unblocks the read
	// loop.
	return conn.Close()
}

func (c *Connection) closeWithError(err error) {
	c.errMu.Lock()
	defer c.errMu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.connCloseError = err
	close(c.connCloseCh)
}

func (c *Connection) readLoop(conn *gorilla.Conn) {
	defer close(c.messages)

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			c.closeWithError(c.handleError(err))
			return
		}

		msg := connection.Message{Type: connection.TextMessage, Data: data}
		if mt == gorilla.BinaryMessage {
			msg.Type = connection.BinaryMessage
		}

		select {
		case c.messages <- msg:
		case <-c.connCloseCh:
			return
		}
	}
}

// handleError maps a read error to the error reported by Err.
func (c *Connection) handleError(err error) error {
	if errors.Is(err, net.ErrClosed) {
		return net.ErrClosed
	}

	var closeErr *gorilla.CloseError
	if errors.As(err, &closeErr) {
		if gorilla.IsUnexpectedCloseError(err, gorilla.CloseNormalClosure, gorilla.CloseGoingAway) {
			c.logger.Error("gorillaws.Connection closed unexpectedly", "code", closeErr.Code, "text", closeErr.Text)
		} else {
			c.logger.Debug("gorillaws.Connection closed by server", "code", closeErr.Code)
		}
		return fmt.Errorf("%w: %w", io.ErrClosedPipe, closeErr)
	}

	c.logger.Error("gorillaws.Connection read failed", "error", err)
	return err
}

// HandshakeError is returned by Connect when the server answered the
// upgrade request with something other than 101.
type HandshakeError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("gorillaws: handshake with %s failed: status=%d: %v", e.URL, e.StatusCode, e.Err)
}

func (e *HandshakeError) Unwrap() error {
	return e.Err
}

// Temporary reports whether retrying the handshake could succeed.
func (e *HandshakeError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

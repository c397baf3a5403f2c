// Package connection defines the push channel a board session reads from.
package connection

import "context"

type MessageType int

const (
	TextMessage MessageType = iota + 1
	BinaryMessage
)

func (t MessageType) String() string {
	switch t {
	case TextMessage:
		return "text"
	case BinaryMessage:
		return "binary"
	default:
		return "unknown"
	}
}

// Message is one frame received from the server.
type Message struct {
	Type MessageType
	Data []byte
}

// Connection is a single-use push channel. Once it is closed, by either
// side, a new Connection has to be created to receive again.
type Connection interface {
	Connect(ctx context.Context) error
	Close(ctx context.Context) error

	// Messages delivers frames in the order they were received. It is
	// closed once the connection is lost or closed.
	Messages() <-chan Message

	// Done is closed as soon as the connection stops receiving.
	Done() <-chan struct{}

	// Err tells why the connection stopped. It is nil while receiving.
	Err() error

	IsClosed() bool
}

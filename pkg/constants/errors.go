package constants

import "errors"

// Errors
var (
	ErrNoBaseURL          = errors.New("base url not set")
	ErrNoBoardID          = errors.New("board id not set")
	ErrNoUsername         = errors.New("username not set")
	ErrNoMarshaler        = errors.New("marshaler is not set")
	ErrNoUnmarshaler      = errors.New("unmarshaler is not set")
	ErrClosed             = errors.New("connection closed")
	ErrNotConnected       = errors.New("not connected")
	ErrReconnectExhausted = errors.New("reconnect attempts exhausted")
	ErrMoveInFlight       = errors.New("another move is still in flight")
	ErrMovePending        = errors.New("refresh refused while a move is pending")
	ErrRolledBack         = errors.New("move rolled back")
	ErrNotLoaded          = errors.New("board not loaded")
	ErrBoardChanged       = errors.New("board changed while reloading")
)

package session

import "fmt"

type State int

const (
	StateUnknown State = iota
	StateConnecting
	StateOpen
	StateReconnecting
	StateClosing
	StateClosed
)

func (state State) String() string {
	switch state {
	case StateUnknown:
		return "Unknown"
	case StateConnecting:
		return "Connecting"
	case StateOpen:
		return "Open"
	case StateReconnecting:
		return "Reconnecting"
	case StateClosing:
		return "Closing"
	case StateClosed:
		return "Closed"
	default:
		return "InvalidState"
	}
}

// Label is the connection status shown to users.
func (state State) Label() string {
	switch state {
	case StateConnecting:
		return "Connecting"
	case StateOpen:
		return "Connected"
	case StateClosing:
		return "Closing"
	default:
		return "Disconnected"
	}
}

func (s State) validateTransitionTo(newState State) error {
	switch s {
	case StateUnknown:
		switch newState {
		case StateConnecting, StateClosing:
			return nil
		}
	case StateConnecting:
		switch newState {
		// Connecting to Closed happens when the first dial fails.
		case StateOpen, StateClosing, StateClosed:
			return nil
		}
	case StateOpen:
		switch newState {
		case StateReconnecting, StateClosing:
			return nil
		}
	case StateReconnecting:
		switch newState {
		// Reconnecting to Closed happens when the retryer gives up.
		case StateOpen, StateClosing, StateClosed:
			return nil
		}
	case StateClosing:
		if newState == StateClosed {
			return nil
		}
	}

	return fmt.Errorf("invalid state transition from %v to %v", s, newState)
}

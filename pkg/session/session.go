// Package session keeps a board's push channel open and feeds what it
// receives to a sink, usually the snapshot store.
//
// A Session dials once in Connect. If that first dial fails, Connect returns
// the error and the session is closed: a wrong URL or board id is not fixed
// by retrying. Once connected, losing the channel starts reconnect attempts
// paced by a Retryer. While disconnected the presence roster is marked stale
// and the board keeps its last state. When the Retryer gives up, the
// session closes with ErrReconnectExhausted and OnFatal is called.
//
// Frames are decoded and handed to the sink by a single goroutine, in the
// order the server sent them. Text frames are decoded as JSON and binary
// frames as CBOR. Frames that cannot be decoded are dropped.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kanbanlive/boardsync.go/pkg/connection"
	"github.com/kanbanlive/boardsync.go/pkg/connection/gorillaws"
	"github.com/kanbanlive/boardsync.go/pkg/constants"
	"github.com/kanbanlive/boardsync.go/pkg/event"
	"github.com/kanbanlive/boardsync.go/pkg/logger"
	"github.com/kanbanlive/boardsync.go/pkg/models"
)

var ErrReconnectExhausted = constants.ErrReconnectExhausted

// Sink receives decoded events. store.Store satisfies it.
type Sink interface {
	ApplyEvent(ev event.Event) bool
}

type Option func(*Session)

// WithRetryer sets the reconnect policy. A nil Retryer disables reconnects.
func WithRetryer(r Retryer) Option {
	return func(s *Session) {
		if r == nil {
			r = noRetry{}
		}
		s.retryer = r
	}
}

func WithLogger(l logger.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// WithOnFatal registers fn to be called once, with the final error, when the
// session gives up reconnecting.
func WithOnFatal(fn func(error)) Option {
	return func(s *Session) {
		s.onFatal = fn
	}
}

// WithStateListener registers fn to be called after every state change.
func WithStateListener(fn func(State)) Option {
	return func(s *Session) {
		s.listeners = append(s.listeners, fn)
	}
}

// WithDialer replaces how connections are created. The returned connection
// must not be connected yet.
func WithDialer(newConn func(*connection.Config) connection.Connection) Option {
	return func(s *Session) {
		s.newConn = newConn
	}
}

type Session struct {
	config  *connection.Config
	sink    Sink
	retryer Retryer
	logger  logger.Logger
	onFatal func(error)
	newConn func(*connection.Config) connection.Connection

	listeners []func(State)

	jsonDecoder event.Decoder
	cborDecoder event.Decoder

	// ctx is cancelled by Close. It stops the receive loop and any pending
	// reconnect attempt.
	ctx    context.Context
	cancel context.CancelFunc

	// done is closed when the session reaches Closed.
	done     chan struct{}
	doneOnce sync.Once

	// loopDone is closed when the receive loop exits.
	loopDone chan struct{}

	// stateMu guards everything below.
	stateMu  sync.Mutex
	state    State
	conn     connection.Connection
	running  bool
	err      error
	presence models.Roster
	stale    bool
}

// New creates a session for the channel described by cfg. Nothing is dialed
// until Connect.
func New(cfg *connection.Config, sink Sink, opts ...Option) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		config:   cfg,
		sink:     sink,
		retryer:  NewExponentialBackoffRetryer(),
		logger:   cfg.Logger,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		loopDone: make(chan struct{}),
		state:    StateUnknown,
		stale:    true,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Discard()
	}
	if s.newConn == nil {
		s.newConn = func(cfg *connection.Config) connection.Connection {
			return gorillaws.New(cfg, gorillaws.WithLogger(s.logger))
		}
	}
	s.jsonDecoder = event.NewJSONDecoder(s.logger)
	s.cborDecoder = event.NewCBORDecoder(s.logger)
	return s
}

func (s *Session) transitionTo(newState State) error {
	return s.transitionWith(newState, nil)
}

// transitionWith moves to newState and, if the move is valid, runs fn while
// still holding stateMu.
func (s *Session) transitionWith(newState State, fn func()) error {
	s.stateMu.Lock()
	return s.transitionLocked(newState, fn)
}

// transitionFrom is transitionWith for a move that is only valid while the
// session is still in state from.
func (s *Session) transitionFrom(from, newState State, fn func()) error {
	s.stateMu.Lock()
	if s.state != from {
		cur := s.state
		s.stateMu.Unlock()
		return fmt.Errorf("session left %v for %v before moving to %v", from, cur, newState)
	}
	return s.transitionLocked(newState, fn)
}

// transitionLocked must be called with stateMu held and releases it.
func (s *Session) transitionLocked(newState State, fn func()) error {
	if err := s.state.validateTransitionTo(newState); err != nil {
		s.stateMu.Unlock()
		return err
	}
	s.state = newState
	if fn != nil {
		fn()
	}
	s.stateMu.Unlock()

	s.logger.Debug("session.Session state transitioned", "new_state", newState)

	for _, l := range s.listeners {
		l(newState)
	}
	if newState == StateClosed {
		s.doneOnce.Do(func() { close(s.done) })
	}
	return nil
}

// Connect dials the channel and starts receiving.
//
// A failed first dial closes the session. The error is returned and not
// retried.
func (s *Session) Connect(ctx context.Context) error {
	if err := s.config.Validate(); err != nil {
		return fmt.Errorf("session: invalid config: %w", err)
	}
	if err := s.transitionTo(StateConnecting); err != nil {
		return err
	}

	conn, err := s.dial(ctx)
	if err != nil {
		// A Close that started during the dial finishes the transition to
		// Closed itself.
		stateErr := s.transitionFrom(StateConnecting, StateClosed, func() {
			s.err = err
		})
		if stateErr != nil {
			s.logger.Debug("session.Session closed while connecting", "error", stateErr)
		}
		return fmt.Errorf("session: failed to connect: %w", err)
	}

	err = s.transitionWith(StateOpen, func() {
		s.conn = conn
		s.running = true
	})
	if err != nil {
		s.logger.Debug("session.Session closed while connecting", "error", err)
		_ = conn.Close(ctx)
		return fmt.Errorf("session: failed to connect: %w", constants.ErrClosed)
	}

	go s.run(conn)

	return nil
}

func (s *Session) dial(ctx context.Context) (connection.Connection, error) {
	conn := s.newConn(s.config)
	if err := conn.Connect(ctx); err != nil {
		return nil, err
	}
	return conn, nil
}

func (s *Session) run(conn connection.Connection) {
	defer close(s.loopDone)

	for {
		s.receive(conn)

		if s.ctx.Err() != nil {
			return
		}

		lost := conn.Err()
		_ = conn.Close(context.Background())

		s.logger.Info("session.Session lost connection", "error", lost)

		s.stateMu.Lock()
		s.stale = true
		s.stateMu.Unlock()

		if err := s.transitionTo(StateReconnecting); err != nil {
			return
		}

		next, err := s.reconnect(lost)
		if err != nil {
			if s.ctx.Err() == nil {
				s.fail(err)
			}
			return
		}
		conn = next
	}
}

// receive forwards frames until conn stops or the session is closed.
func (s *Session) receive(conn connection.Connection) {
	for {
		select {
		case <-s.ctx.Done():
			return
		case msg, ok := <-conn.Messages():
			if !ok {
				return
			}
			s.deliver(msg)
		}
	}
}

func (s *Session) deliver(msg connection.Message) {
	dec := s.jsonDecoder
	if msg.Type == connection.BinaryMessage {
		dec = s.cborDecoder
	}

	ev, ok := dec.Decode(msg.Data)
	if !ok {
		return
	}

	if p, ok := ev.(event.PresenceUpdate); ok {
		s.stateMu.Lock()
		s.presence = models.NewRoster(p.Users...)
		s.stale = false
		s.stateMu.Unlock()
	}

	s.sink.ApplyEvent(ev)
}

func (s *Session) reconnect(lastErr error) (connection.Connection, error) {
	for attempt := 0; ; attempt++ {
		delay, ok := s.retryer.NextDelay(attempt, lastErr)
		if !ok {
			if Refused(lastErr) {
				s.logger.Warn("session.Session was refused by the server", "attempt", attempt, "error", lastErr)
			}
			return nil, fmt.Errorf("%w after %d attempts: %w", ErrReconnectExhausted, attempt, lastErr)
		}

		s.logger.Debug("session.Session is waiting before reconnecting", "attempt", attempt, "delay", delay)

		timer := time.NewTimer(delay)
		select {
		case <-s.ctx.Done():
			timer.Stop()
			return nil, s.ctx.Err()
		case <-timer.C:
		}

		s.logger.Info("session.Session is attempting to reconnect", "attempt", attempt)

		conn, err := s.dial(s.ctx)
		if err != nil {
			if s.ctx.Err() != nil {
				return nil, s.ctx.Err()
			}
			s.logger.Error("session.Session failed to reconnect", "attempt", attempt, "error", err)
			lastErr = err
			continue
		}

		s.retryer.Reset()

		err = s.transitionWith(StateOpen, func() {
			s.conn = conn
		})
		if err != nil {
			_ = conn.Close(context.Background())
			return nil, err
		}
		s.logger.Info("session.Session reconnected", "attempt", attempt)
		return conn, nil
	}
}

func (s *Session) fail(err error) {
	s.stateMu.Lock()
	s.err = err
	s.stateMu.Unlock()

	if stateErr := s.transitionTo(StateClosed); stateErr != nil {
		// Close got there first.
		s.logger.Debug("session.Session failed to transition to closed state", "error", stateErr)
		return
	}

	s.logger.Error("session.Session gave up reconnecting", "error", err)
	if s.onFatal != nil {
		s.onFatal(err)
	}
}

// Close stops receiving and closes the channel. It is safe to call more than
// once, and after the session failed.
//
// ctx bounds the close handshake with the server.
func (s *Session) Close(ctx context.Context) error {
	if err := s.transitionTo(StateClosing); err != nil {
		s.logger.Debug("session.Session is already closing or closed", "error", err)
		return nil
	}

	s.cancel()

	s.stateMu.Lock()
	running := s.running
	s.stateMu.Unlock()
	if running {
		<-s.loopDone
	}

	s.stateMu.Lock()
	conn := s.conn
	s.conn = nil
	s.stale = true
	s.stateMu.Unlock()

	var err error
	if conn != nil {
		err = conn.Close(ctx)
	}

	if stateErr := s.transitionTo(StateClosed); stateErr != nil {
		s.logger.Error("BUG: session.Session failed to transition to closed state", "error", stateErr)
	}
	return err
}

func (s *Session) State() State {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

// Done is closed once the session is Closed, by Close or by giving up.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns why the session closed on its own. It is nil while the
// session runs and after a plain Close.
func (s *Session) Err() error {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.err
}

// Presence returns the last roster received.
func (s *Session) Presence() models.Roster {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.presence
}

// PresenceStale reports whether the roster may be out of date: before the
// first roster arrives and from a connection loss until the next one.
func (s *Session) PresenceStale() bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.stale
}

// IsFatal reports whether err is the error a session closes with when it
// gives up reconnecting.
func IsFatal(err error) bool {
	return errors.Is(err, ErrReconnectExhausted)
}

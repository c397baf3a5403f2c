// Package optimistic applies card moves locally before the server confirms
// them, and rolls them back when the server refuses.
//
// A move goes through these steps:
//
//  1. The current snapshot is kept as the rollback target.
//  2. The moved board is computed and swapped into the store at once, before
//     any request is sent.
//  3. The server is asked to file the card under its new column.
//  4. On failure the rollback target is restored and an error notice is
//     shown, unless a newer move has replaced this one in the meantime.
//
// Restoring the rollback target also discards events applied while the
// request was in flight. A later event or refresh brings them back.
//
// Reordering within a column is only sent to the server when PersistOrder is
// enabled. Otherwise it stays local and is lost on the next full load.
package optimistic

import (
	"context"
	"fmt"
	"sync"

	"github.com/kanbanlive/boardsync.go/pkg/constants"
	"github.com/kanbanlive/boardsync.go/pkg/logger"
	"github.com/kanbanlive/boardsync.go/pkg/models"
	"github.com/kanbanlive/boardsync.go/pkg/notice"
	"github.com/kanbanlive/boardsync.go/pkg/reducer"
)

var (
	ErrMoveInFlight = constants.ErrMoveInFlight
	ErrMovePending  = constants.ErrMovePending
	ErrRolledBack   = constants.ErrRolledBack
)

// Store is the part of store.Store the coordinator needs.
type Store interface {
	Update(fn func(models.Snapshot) (models.Snapshot, error)) (models.Snapshot, error)
	Replace(models.Snapshot)
}

// CardMover persists a move. order is nil unless order persistence is on.
type CardMover interface {
	MoveCard(ctx context.Context, id models.CardID, column models.ColumnID, order *int) error
}

type Notifier interface {
	Error(msg string) notice.Notice
}

// Policy decides what happens when a move starts while another is in flight.
type Policy int

const (
	// PolicySerialize refuses the second move with ErrMoveInFlight.
	PolicySerialize Policy = iota
	// PolicyLastWins accepts it. The earlier move no longer rolls back
	// when it fails.
	PolicyLastWins
)

func (p Policy) String() string {
	switch p {
	case PolicySerialize:
		return "serialize"
	case PolicyLastWins:
		return "last-wins"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// MoveRequest describes a drag. A nil Destination means the card was dropped
// outside any column.
type MoveRequest struct {
	CardID      models.CardID
	Source      reducer.Location
	Destination *reducer.Location
}

type pendingMove struct {
	token    uint64
	rollback models.Snapshot
}

type Coordinator struct {
	store   Store
	remote  CardMover
	notices Notifier
	logger  logger.Logger

	policy       Policy
	persistOrder bool

	// mu guards pending and lastToken. It is held while a rollback is
	// restored so that no new move can capture a snapshot in between.
	mu        sync.Mutex
	pending   *pendingMove
	lastToken uint64
}

type Option func(*Coordinator)

func WithPolicy(p Policy) Option {
	return func(c *Coordinator) {
		c.policy = p
	}
}

// WithPersistOrder sends the destination index along with every move,
// including moves within one column.
func WithPersistOrder(enabled bool) Option {
	return func(c *Coordinator) {
		c.persistOrder = enabled
	}
}

func WithNotifier(n Notifier) Option {
	return func(c *Coordinator) {
		c.notices = n
	}
}

func WithLogger(l logger.Logger) Option {
	return func(c *Coordinator) {
		c.logger = l
	}
}

func New(store Store, remote CardMover, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:   store,
		remote:  remote,
		notices: notice.NewCenter(),
		logger:  logger.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Pending reports whether a move is waiting for the server.
func (c *Coordinator) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != nil
}

// WhenIdle runs fn unless a move is waiting for the server, in which case it
// returns ErrMovePending. No move can start while fn runs.
//
// It is meant for wholesale replacements of the board that must not drop an
// optimistic move or be undone by its rollback.
func (c *Coordinator) WhenIdle(fn func()) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending != nil {
		return ErrMovePending
	}
	fn()
	return nil
}

// Move applies req locally and persists it.
//
// It returns nil when the move was a no-op, stayed local, or was confirmed.
// When the server refuses, the returned *MoveError wraps the server's error
// and matches ErrRolledBack if the board was restored.
func (c *Coordinator) Move(ctx context.Context, req MoveRequest) error {
	if req.Destination == nil {
		return nil
	}
	dest := *req.Destination

	token, err := c.begin()
	if err != nil {
		return err
	}

	noop := false
	rollback, err := c.store.Update(func(cur models.Snapshot) (models.Snapshot, error) {
		moved, err := reducer.MoveCardByID(cur.Board, req.CardID, req.Source, dest)
		if err != nil {
			return cur, err
		}
		noop = moved == cur.Board
		return cur.WithBoard(moved), nil
	})
	if err != nil {
		c.finish(token)
		return fmt.Errorf("optimistic: failed to move card %d: %w", req.CardID, err)
	}
	if noop {
		c.finish(token)
		return nil
	}

	sameColumn := req.Source.Column == dest.Column
	if sameColumn && !c.persistOrder {
		c.logger.Debug("optimistic.Coordinator kept reorder local", "card", req.CardID, "column", dest.Column)
		c.finish(token)
		return nil
	}

	c.mu.Lock()
	if c.pending != nil && c.pending.token == token {
		c.pending.rollback = rollback
	}
	c.mu.Unlock()

	var order *int
	if c.persistOrder {
		order = &dest.Index
	}

	c.logger.Debug("optimistic.Coordinator persisting move", "card", req.CardID, "column", dest.Column, "index", dest.Index)

	remoteErr := c.remote.MoveCard(ctx, req.CardID, dest.Column, order)
	if remoteErr == nil {
		c.finish(token)
		return nil
	}

	rolledBack := c.rollback(token)
	if rolledBack {
		c.logger.Info("optimistic.Coordinator rolled back move", "card", req.CardID, "error", remoteErr)
		c.notices.Error(notice.MsgMoveFailed)
	} else {
		c.logger.Debug("optimistic.Coordinator ignored failure of superseded move", "card", req.CardID, "error", remoteErr)
	}

	return &MoveError{CardID: req.CardID, Err: remoteErr, RolledBack: rolledBack}
}

func (c *Coordinator) begin() (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending != nil && c.policy == PolicySerialize {
		return 0, ErrMoveInFlight
	}
	c.lastToken++
	c.pending = &pendingMove{token: c.lastToken}
	return c.lastToken, nil
}

// finish drops the pending move if it is still the one identified by token.
func (c *Coordinator) finish(token uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != nil && c.pending.token == token {
		c.pending = nil
	}
}

// rollback restores the snapshot saved for token, if that move is still
// the pending one.
func (c *Coordinator) rollback(token uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending == nil || c.pending.token != token {
		return false
	}
	snap := c.pending.rollback
	c.pending = nil
	c.store.Replace(snap)
	return true
}

// MoveError reports a move the server refused.
type MoveError struct {
	CardID     models.CardID
	Err        error
	RolledBack bool
}

func (e *MoveError) Error() string {
	if e.RolledBack {
		return fmt.Sprintf("optimistic: move of card %d rolled back: %v", e.CardID, e.Err)
	}
	return fmt.Sprintf("optimistic: move of card %d failed: %v", e.CardID, e.Err)
}

func (e *MoveError) Unwrap() error {
	return e.Err
}

func (e *MoveError) Is(target error) bool {
	return target == ErrRolledBack && e.RolledBack
}

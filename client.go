package boardsync

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/kanbanlive/boardsync.go/internal/codec"
	"github.com/kanbanlive/boardsync.go/pkg/connection"
	"github.com/kanbanlive/boardsync.go/pkg/constants"
	"github.com/kanbanlive/boardsync.go/pkg/event"
	"github.com/kanbanlive/boardsync.go/pkg/logger"
	"github.com/kanbanlive/boardsync.go/pkg/models"
	"github.com/kanbanlive/boardsync.go/pkg/notice"
	"github.com/kanbanlive/boardsync.go/pkg/optimistic"
	"github.com/kanbanlive/boardsync.go/pkg/reducer"
	"github.com/kanbanlive/boardsync.go/pkg/remote"
	"github.com/kanbanlive/boardsync.go/pkg/session"
	"github.com/kanbanlive/boardsync.go/pkg/store"
)

var (
	ErrMovePending  = constants.ErrMovePending
	ErrNotLoaded    = constants.ErrNotLoaded
	ErrBoardChanged = constants.ErrBoardChanged
)

type (
	MoveRequest = optimistic.MoveRequest
	Location    = reducer.Location
	CardPatch   = remote.CardPatch
)

// Client is one user's live view of one board. It is safe for concurrent
// use.
type Client struct {
	config Config
	logger logger.Logger

	remote  *remote.Client
	store   *store.Store
	mover   *optimistic.Coordinator
	notices *notice.Center
	session *session.Session

	// reconnected is set while the push channel is down.
	reconnected atomic.Bool

	// resync is signalled after every reconnect. A single goroutine
	// drains it so that reloads never overlap.
	resync     chan struct{}
	resyncDone chan struct{}
	stop       context.CancelFunc
}

// Open loads the board and subscribes to its push channel.
//
// It fails if the board cannot be loaded or the channel cannot be opened.
// Neither is retried.
func Open(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("boardsync: invalid config: %w", err)
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Discard()
	}

	remoteOpts := []remote.Option{remote.WithLogger(log)}
	if cfg.HTTPClient != nil {
		remoteOpts = append(remoteOpts, remote.WithHTTPClient(cfg.HTTPClient))
	}
	if cfg.CBOR {
		remoteOpts = append(remoteOpts, remote.WithCodec(codec.NewCBOR()))
	}
	api, err := remote.NewClient(cfg.APIURL, remoteOpts...)
	if err != nil {
		return nil, fmt.Errorf("boardsync: %w", err)
	}

	board, err := api.GetBoard(ctx, cfg.BoardID)
	if err != nil {
		return nil, fmt.Errorf("boardsync: failed to load board %d: %w", cfg.BoardID, err)
	}
	board = board.Sorted()

	c := &Client{
		config:     cfg,
		logger:     log,
		remote:     api,
		store:      store.New(models.Snapshot{Board: board}, store.WithLogger(log)),
		notices:    notice.NewCenter(notice.WithTTL(cfg.noticeTTL()), notice.WithLogger(log)),
		resync:     make(chan struct{}, 1),
		resyncDone: make(chan struct{}),
	}

	c.mover = optimistic.New(c.store, api,
		optimistic.WithPolicy(cfg.MovePolicy),
		optimistic.WithPersistOrder(cfg.PersistOrder),
		optimistic.WithNotifier(c.notices),
		optimistic.WithLogger(log),
	)

	base, err := cfg.channelBase()
	if err != nil {
		return nil, err
	}
	connCfg := connection.NewConfig(base, cfg.BoardID, cfg.Username)
	connCfg.Logger = log

	sessOpts := []session.Option{
		session.WithLogger(log),
		session.WithStateListener(c.onState),
	}
	if cfg.Retryer != nil {
		sessOpts = append(sessOpts, session.WithRetryer(cfg.Retryer))
	}
	if cfg.OnFatal != nil {
		sessOpts = append(sessOpts, session.WithOnFatal(cfg.OnFatal))
	}
	c.session = session.New(connCfg, c, sessOpts...)

	loopCtx, stop := context.WithCancel(context.Background())
	c.stop = stop
	go c.resyncLoop(loopCtx)

	if err := c.session.Connect(ctx); err != nil {
		stop()
		<-c.resyncDone
		c.notices.Close()
		return nil, fmt.Errorf("boardsync: failed to subscribe to board %d: %w", cfg.BoardID, err)
	}

	log.Info("boardsync.Client opened board", "board", cfg.BoardID, "name", board.Name, "summary", board.Summary())

	return c, nil
}

// ApplyEvent applies an event received from the server and announces it.
// It is called by the session and is exported to satisfy session.Sink.
func (c *Client) ApplyEvent(ev event.Event) bool {
	var (
		changed  bool
		message  string
		announce bool
	)
	_, _ = c.store.Update(func(cur models.Snapshot) (models.Snapshot, error) {
		next := reducer.Reduce(cur, ev)
		changed = reducer.Changed(cur, next)
		if changed {
			message, announce = notice.Describe(cur, ev)
		}
		return next, nil
	})

	if !changed {
		c.logger.Debug("boardsync.Client ignored event", "kind", ev.Kind())
		return false
	}
	if announce {
		c.notices.Success(message)
	}
	return true
}

func (c *Client) onState(s session.State) {
	c.logger.Debug("boardsync.Client connection state changed", "state", s, "label", s.Label())

	switch s {
	case session.StateReconnecting:
		c.reconnected.Store(true)
	case session.StateOpen:
		// Changes may have been missed while disconnected.
		if !c.reconnected.CompareAndSwap(true, false) {
			return
		}
		select {
		case c.resync <- struct{}{}:
		default:
		}
	}
}

func (c *Client) resyncLoop(ctx context.Context) {
	defer close(c.resyncDone)

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.resync:
		}

		for {
			err := c.Refresh(ctx)
			if err == nil || ctx.Err() != nil {
				break
			}
			if !retryReload(err) {
				c.logger.Error("boardsync.Client failed to reload board after reconnect", "error", err)
				break
			}
			c.logger.Info("boardsync.Client postponed reload after reconnect", "error", err)

			t := time.NewTimer(constants.ResyncRetryDelay)
			select {
			case <-ctx.Done():
				t.Stop()
				return
			case <-t.C:
			}
		}
	}
}

// retryReload reports whether a failed reload after a reconnect is worth
// another try, because the board was busy or the server error is temporary.
func retryReload(err error) bool {
	if errors.Is(err, ErrMovePending) || errors.Is(err, ErrBoardChanged) {
		return true
	}
	var statusErr *remote.StatusError
	return errors.As(err, &statusErr) && statusErr.Temporary()
}

// Snapshot returns the current board and presence roster.
func (c *Client) Snapshot() models.Snapshot {
	return c.store.Current()
}

// Subscribe calls obs after every change of the snapshot. Observers run on
// the goroutine that made the change and must not modify the board.
func (c *Client) Subscribe(obs store.Observer) (unsubscribe func()) {
	return c.store.Subscribe(obs)
}

// Move drags a card. See optimistic.Coordinator.Move.
func (c *Client) Move(ctx context.Context, req MoveRequest) error {
	return c.mover.Move(ctx, req)
}

// Refresh reloads the whole board from the server.
//
// It returns ErrMovePending while a card move waits for the server, since
// the reload could otherwise be undone by that move's rollback.
//
// A reload is only swapped in if the local board did not change while it
// was fetched; pushed changes that landed in between may not be part of the
// response. The board is then fetched again, up to
// constants.ReloadAttempts times before Refresh gives up with
// ErrBoardChanged.
func (c *Client) Refresh(ctx context.Context) error {
	for attempt := 1; ; attempt++ {
		if c.mover.Pending() {
			return ErrMovePending
		}

		base := c.store.Current().Board
		board, err := c.remote.GetBoard(ctx, c.config.BoardID)
		if err != nil {
			return fmt.Errorf("boardsync: failed to reload board %d: %w", c.config.BoardID, err)
		}
		board = board.Sorted()

		swapped := false
		err = c.mover.WhenIdle(func() {
			_, _ = c.store.Update(func(cur models.Snapshot) (models.Snapshot, error) {
				// The reducer only allocates a new board when something
				// changed, so identity tells whether events arrived.
				if cur.Board != base {
					return cur, nil
				}
				swapped = true
				return cur.WithBoard(board), nil
			})
		})
		if err != nil {
			return err
		}
		if swapped {
			return nil
		}

		if attempt >= constants.ReloadAttempts {
			return fmt.Errorf("boardsync: failed to reload board %d after %d attempts: %w", c.config.BoardID, attempt, ErrBoardChanged)
		}
		c.logger.Debug("boardsync.Client fetching board again, it changed during reload", "board", c.config.BoardID, "attempt", attempt)
	}
}

func (c *Client) RenameBoard(ctx context.Context, name string) error {
	if _, err := c.remote.RenameBoard(ctx, c.config.BoardID, name); err != nil {
		return c.failed(notice.MsgRenameBoardFailed, "rename board", err)
	}
	return nil
}

// CreateColumn appends a column to the board.
func (c *Client) CreateColumn(ctx context.Context, title string) (*models.Column, error) {
	board := c.store.Current().Board
	if board == nil {
		return nil, ErrNotLoaded
	}

	col, err := c.remote.CreateColumn(ctx, remote.NewColumn{
		Title: title,
		Board: c.config.BoardID,
		Order: len(board.Columns),
	})
	if err != nil {
		return nil, c.failed(notice.MsgCreateColumnFailed, "create column", err)
	}
	return col, nil
}

func (c *Client) DeleteColumn(ctx context.Context, id models.ColumnID) error {
	if err := c.remote.DeleteColumn(ctx, id); err != nil {
		return c.failed(notice.MsgDeleteColumnFailed, "delete column", err)
	}
	return nil
}

func (c *Client) CreateCard(ctx context.Context, column models.ColumnID, title, description string) (*models.Card, error) {
	card, err := c.remote.CreateCard(ctx, remote.NewCard{
		Title:       title,
		Description: description,
		Column:      column,
	})
	if err != nil {
		return nil, c.failed(notice.MsgCreateCardFailed, "create card", err)
	}
	return card, nil
}

// UpdateCard edits a card's fields. Use Move to change its column.
func (c *Client) UpdateCard(ctx context.Context, id models.CardID, patch CardPatch) (*models.Card, error) {
	card, err := c.remote.UpdateCard(ctx, id, patch)
	if err != nil {
		return nil, c.failed(notice.MsgUpdateCardFailed, "update card", err)
	}
	return card, nil
}

func (c *Client) DeleteCard(ctx context.Context, id models.CardID) error {
	if err := c.remote.DeleteCard(ctx, id); err != nil {
		return c.failed(notice.MsgDeleteCardFailed, "delete card", err)
	}
	return nil
}

func (c *Client) failed(msg, op string, err error) error {
	c.logger.Error("boardsync.Client request failed", "op", op, "error", err)
	c.notices.Error(msg)
	return fmt.Errorf("boardsync: failed to %s: %w", op, err)
}

func (c *Client) Notices() *notice.Center {
	return c.notices
}

func (c *Client) State() session.State {
	return c.session.State()
}

// Presence returns the users on the board, and whether the list may be out
// of date because the push channel is down.
func (c *Client) Presence() (users models.Roster, stale bool) {
	return c.session.Presence(), c.session.PresenceStale()
}

// Done is closed when the client stops receiving changes, after Close or
// after the push channel gave up reconnecting.
func (c *Client) Done() <-chan struct{} {
	return c.session.Done()
}

// Err returns why the push channel gave up, or nil.
func (c *Client) Err() error {
	return c.session.Err()
}

// Close unsubscribes from the board. Pending notices are dropped.
func (c *Client) Close(ctx context.Context) error {
	err := c.session.Close(ctx)
	c.stop()
	<-c.resyncDone
	c.notices.Close()
	return err
}

package cli

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kanbanlive/boardsync.go/internal/fakeboard"
	"github.com/kanbanlive/boardsync.go/pkg/models"
	"github.com/kanbanlive/boardsync.go/pkg/optimistic"
)

type fixture struct {
	srv   *fakeboard.Server
	board models.BoardID
	todo  models.ColumnID
	done  models.ColumnID
	card  models.CardID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	srv := fakeboard.New()
	srv.Start()
	t.Cleanup(srv.Close)

	f := &fixture{srv: srv}
	f.board = srv.AddBoard("Sprint")
	f.todo = srv.AddColumn(f.board, "Todo")
	f.done = srv.AddColumn(f.board, "Done")
	f.card = srv.AddCard(f.todo, "Write docs")
	return f
}

func (f *fixture) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	environ := map[string]string{
		"BOARDSYNC_API_URL":  f.srv.APIURL(),
		"BOARDSYNC_BOARD_ID": strconv.FormatInt(int64(f.board), 10),
		"BOARDSYNC_USERNAME": "cli",
	}
	var stdout, stderr bytes.Buffer
	err := Main(context.Background(), args, &stdout, &stderr, environ)
	return stdout.String(), err
}

func TestParseEnv(t *testing.T) {
	e, err := ParseEnv(map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000/api", e.APIURL)
	assert.Zero(t, e.BoardID)

	e, err = ParseEnv(map[string]string{
		"BOARDSYNC_API_URL":       "https://boards.example.com/api",
		"BOARDSYNC_BOARD_ID":      "7",
		"BOARDSYNC_USERNAME":      "ana",
		"BOARDSYNC_CBOR":          "true",
		"BOARDSYNC_LAST_WINS":     "true",
		"BOARDSYNC_PERSIST_ORDER": "1",
		"BOARDSYNC_MAX_RETRIES":   "4",
	})
	require.NoError(t, err)

	cfg := e.Config(nil)
	assert.Equal(t, "https://boards.example.com/api", cfg.APIURL)
	assert.Equal(t, models.BoardID(7), cfg.BoardID)
	assert.Equal(t, "ana", cfg.Username)
	assert.True(t, cfg.CBOR)
	assert.True(t, cfg.PersistOrder)
	assert.Equal(t, optimistic.PolicyLastWins, cfg.MovePolicy)
	require.NotNil(t, cfg.Retryer)
	_, ok := cfg.Retryer.NextDelay(4, nil)
	assert.False(t, ok)

	_, err = ParseEnv(map[string]string{"BOARDSYNC_BOARD_ID": "seven"})
	assert.ErrorContains(t, err, "parse env")
}

func TestShow(t *testing.T) {
	f := newFixture(t)

	out, err := f.run(t, "show")
	require.NoError(t, err)
	assert.Contains(t, out, "Sprint (2 columns • 1 cards)")
	assert.Contains(t, out, fmt.Sprintf("Todo [#%d]", f.todo))
	assert.Contains(t, out, fmt.Sprintf("  #%d Write docs", f.card))
}

func TestShowCheck(t *testing.T) {
	f := newFixture(t)

	out, err := f.run(t, "show", "--check")
	require.NoError(t, err)
	assert.Contains(t, out, "\nok\n")
}

func TestFlagsOverrideEnv(t *testing.T) {
	f := newFixture(t)
	other := f.srv.AddBoard("Backlog")

	out, err := f.run(t, "show", "--board", strconv.FormatInt(int64(other), 10))
	require.NoError(t, err)
	assert.Contains(t, out, "Backlog (0 columns • 0 cards)")
}

func TestMove(t *testing.T) {
	f := newFixture(t)

	out, err := f.run(t, "move", strconv.FormatInt(int64(f.card), 10), strconv.FormatInt(int64(f.done), 10))
	require.NoError(t, err)
	assert.Equal(t, "moved card "+strconv.FormatInt(int64(f.card), 10)+" to \"Done\" at 0\n", out)

	b, _ := f.srv.Board(f.board)
	col, _ := b.Column(f.done)
	require.Len(t, col.Cards, 1)
	assert.Equal(t, f.card, col.Cards[0].ID)
}

func TestMoveUnknownCard(t *testing.T) {
	f := newFixture(t)

	_, err := f.run(t, "move", "999", strconv.FormatInt(int64(f.done), 10))
	assert.ErrorContains(t, err, "card 999 is not on board")

	_, err = f.run(t, "move", "abc", "1")
	assert.ErrorContains(t, err, `invalid card id "abc"`)
}

func TestEdits(t *testing.T) {
	f := newFixture(t)

	_, err := f.run(t, "rename", "Sprint 2")
	require.NoError(t, err)

	out, err := f.run(t, "add-column", "Review")
	require.NoError(t, err)
	assert.Contains(t, out, "created column")

	out, err = f.run(t, "add-card", strconv.FormatInt(int64(f.done), 10), "Ship", "-d", "today")
	require.NoError(t, err)
	assert.Contains(t, out, "created card")

	_, err = f.run(t, "delete-card", strconv.FormatInt(int64(f.card), 10))
	require.NoError(t, err)

	b, _ := f.srv.Board(f.board)
	assert.Equal(t, "Sprint 2", b.Name)
	require.Len(t, b.Columns, 3)
	assert.Equal(t, "Review", b.Columns[2].Title)
	assert.Equal(t, 2, b.Columns[2].Order)
	assert.Empty(t, b.Columns[0].Cards)
	require.Len(t, b.Columns[1].Cards, 1)
	assert.Equal(t, "today", b.Columns[1].Cards[0].Description)
}

func TestWatch(t *testing.T) {
	f := newFixture(t)

	done := make(chan struct{})
	var (
		out string
		err error
	)
	go func() {
		defer close(done)
		out, err = f.run(t, "watch", "--for", "500ms")
	}()

	require.Eventually(t, func() bool { return f.srv.Connections() == 1 }, 3*time.Second, 5*time.Millisecond)
	// Presence is published on open; wait for the socket to be registered.
	require.Eventually(t, func() bool { return len(f.srv.Presence(f.board)) == 1 }, 3*time.Second, 5*time.Millisecond)
	f.srv.AddCard(f.done, "Live")

	<-done
	require.NoError(t, err)
	assert.Contains(t, out, `[success] Card "Live" was created`)
	assert.Contains(t, out, "Sprint (2 columns • 2 cards)")
}

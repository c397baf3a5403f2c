package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kanbanlive/boardsync.go/internal/codec"
	"github.com/kanbanlive/boardsync.go/internal/fakeboard"
	"github.com/kanbanlive/boardsync.go/pkg/constants"
	"github.com/kanbanlive/boardsync.go/pkg/models"
)

func newServer(t *testing.T) (*fakeboard.Server, models.BoardID) {
	t.Helper()
	srv := fakeboard.New()
	srv.Start()
	t.Cleanup(srv.Close)
	return srv, srv.AddBoard("Roadmap")
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	_, err := NewClient("")
	assert.ErrorIs(t, err, constants.ErrNoBaseURL)
}

func TestClientCRUD(t *testing.T) {
	for _, cd := range []codec.Codec{codec.JSON{}, codec.NewCBOR()} {
		t.Run(cd.ContentType(), func(t *testing.T) {
			ctx := context.Background()
			srv, boardID := newServer(t)
			c, err := NewClient(srv.APIURL(), WithCodec(cd))
			require.NoError(t, err)

			board, err := c.RenameBoard(ctx, boardID, "Q3")
			require.NoError(t, err)
			assert.Equal(t, "Q3", board.Name)

			todo, err := c.CreateColumn(ctx, NewColumn{Title: "Todo", Board: boardID})
			require.NoError(t, err)
			done, err := c.CreateColumn(ctx, NewColumn{Title: "Done", Board: boardID, Order: 1})
			require.NoError(t, err)

			due := models.NewDate(2024, 6, 1)
			card, err := c.CreateCard(ctx, NewCard{Title: "Login", Column: todo.ID, DueDate: &due})
			require.NoError(t, err)
			assert.Equal(t, todo.ID, card.Column)
			require.NotNil(t, card.DueDate)
			assert.Equal(t, "2024-06-01", card.DueDate.String())

			title := "Login page"
			updated, err := c.UpdateCard(ctx, card.ID, CardPatch{Title: &title})
			require.NoError(t, err)
			assert.Equal(t, title, updated.Title)

			require.NoError(t, c.MoveCard(ctx, card.ID, done.ID, nil))

			got, err := c.GetBoard(ctx, boardID)
			require.NoError(t, err)
			require.Len(t, got.Columns, 2)
			assert.Empty(t, got.Columns[0].Cards)
			require.Len(t, got.Columns[1].Cards, 1)
			assert.Equal(t, "Login page", got.Columns[1].Cards[0].Title)

			require.NoError(t, c.DeleteCard(ctx, card.ID))
			require.NoError(t, c.DeleteColumn(ctx, todo.ID))

			got, err = c.GetBoard(ctx, boardID)
			require.NoError(t, err)
			require.Len(t, got.Columns, 1)
			assert.Equal(t, 0, got.CardCount())
		})
	}
}

func TestClientSendsPartialUpdates(t *testing.T) {
	ctx := context.Background()
	srv, boardID := newServer(t)
	col := srv.AddColumn(boardID, "Todo")
	other := srv.AddColumn(boardID, "Done")
	card := srv.AddCard(col, "Login")

	c, err := NewClient(srv.APIURL())
	require.NoError(t, err)

	order := 0
	require.NoError(t, c.MoveCard(ctx, card, other, &order))

	reqs := srv.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodPatch, reqs[0].Method)
	assert.Equal(t, fmt.Sprintf("/cards/%d/", card), reqs[0].Path)
	assert.JSONEq(t, fmt.Sprintf(`{"column":%d,"order":0}`, other), string(reqs[0].Body))
	assert.Len(t, reqs[0].RequestID, constants.RequestIDLength)

	require.NoError(t, c.MoveCard(ctx, card, col, nil))
	reqs = srv.Requests()
	assert.JSONEq(t, fmt.Sprintf(`{"column":%d}`, col), string(reqs[1].Body))
}

func TestClientStatusErrors(t *testing.T) {
	ctx := context.Background()
	srv, boardID := newServer(t)
	col := srv.AddColumn(boardID, "Todo")
	card := srv.AddCard(col, "Login")

	c, err := NewClient(srv.APIURL() + "/")
	require.NoError(t, err)

	t.Run("not found", func(t *testing.T) {
		_, err := c.GetBoard(ctx, 999)
		var statusErr *StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
		assert.Equal(t, "/boards/999/", statusErr.Path)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.False(t, statusErr.Temporary())
	})

	t.Run("conflict", func(t *testing.T) {
		srv.FailNext(http.MethodPatch, "/cards/", http.StatusConflict, 1)
		err := c.MoveCard(ctx, card, col, nil)
		assert.ErrorIs(t, err, ErrConflict)
		assert.NotErrorIs(t, err, ErrNotFound)
	})

	t.Run("server error", func(t *testing.T) {
		srv.FailNext(http.MethodDelete, "/cards/", http.StatusBadGateway, 1)
		err := c.DeleteCard(ctx, card)
		var statusErr *StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.True(t, statusErr.Temporary())
		assert.Contains(t, err.Error(), "status=502")
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := c.GetBoard(cctx, boardID)
		assert.True(t, errors.Is(err, context.Canceled))
	})
}

func TestClientHeaders(t *testing.T) {
	var got http.Header
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(models.Board{ID: 1, Name: "Roadmap"})
	}))
	defer ts.Close()

	c, err := NewClient(ts.URL + "/api")
	require.NoError(t, err)
	assert.Equal(t, ts.URL+"/api", c.BaseURL())

	b, err := c.RenameBoard(context.Background(), 1, "Roadmap")
	require.NoError(t, err)
	assert.Equal(t, "Roadmap", b.Name)

	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.Equal(t, "application/json", got.Get("Accept"))
	assert.NotEmpty(t, got.Get(RequestIDHeader))
}

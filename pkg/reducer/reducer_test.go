package reducer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kanbanlive/boardsync.go/pkg/event"
	"github.com/kanbanlive/boardsync.go/pkg/models"
)

func card(id models.CardID, column models.ColumnID, order int) models.Card {
	return models.Card{ID: id, Title: "card", Column: column, Order: order}
}

func testSnapshot() models.Snapshot {
	return models.Snapshot{
		Board: &models.Board{
			ID:   1,
			Name: "Roadmap",
			Columns: []models.Column{
				{ID: 1, Title: "Todo", Cards: []models.Card{card(10, 1, 0), card(11, 1, 1), card(12, 1, 2)}},
				{ID: 2, Title: "Doing", Cards: []models.Card{card(20, 2, 0), card(21, 2, 1)}},
				{ID: 3, Title: "Done", Cards: []models.Card{}},
			},
		},
		Presence: models.NewRoster("alice"),
	}
}

func cardIDs(t *testing.T, b *models.Board, column models.ColumnID) []models.CardID {
	t.Helper()
	col, ok := b.Column(column)
	require.True(t, ok, "column %d not found", column)
	ids := make([]models.CardID, 0, len(col.Cards))
	for _, c := range col.Cards {
		ids = append(ids, c.ID)
	}
	return ids
}

type boardArchived struct{}

func (boardArchived) Kind() event.Kind { return "BOARD_ARCHIVED" }

func TestReduceIgnoresUnknownEvents(t *testing.T) {
	s := testSnapshot()
	want := s.Clone()

	got := Reduce(s, boardArchived{})

	assert.Same(t, s.Board, got.Board)
	assert.Equal(t, want, got)
	assert.False(t, Changed(s, got))
}

func TestReduceIgnoresMissingTargets(t *testing.T) {
	events := map[string]event.Event{
		"delete unknown column":      event.ColumnDeleted{ColumnID: 99},
		"create card in unknown col": event.CardCreated{Card: card(30, 99, 0)},
		"delete card unknown column": event.CardDeleted{ColumnID: 99, CardID: 10},
		"delete unknown card":        event.CardDeleted{ColumnID: 1, CardID: 99},
		"delete card from other col": event.CardDeleted{ColumnID: 2, CardID: 10},
		"update unknown card":        event.CardUpdated{Card: card(99, 1, 0)},
		"rename to the same name":    event.BoardUpdated{Name: "Roadmap"},
		"duplicate column":           event.ColumnCreated{Column: models.Column{ID: 1, Title: "again"}},
		"duplicate card":             event.CardCreated{Card: card(10, 1, 5)},
	}

	for name, ev := range events {
		t.Run(name, func(t *testing.T) {
			s := testSnapshot()
			want := s.Clone()

			got := Reduce(s, ev)
			assert.Same(t, s.Board, got.Board)
			assert.Equal(t, want, got)
		})
	}
}

func TestReduceWithoutBoard(t *testing.T) {
	s := models.Snapshot{}
	for _, ev := range []event.Event{
		event.BoardUpdated{Name: "x"},
		event.ColumnCreated{Column: models.Column{ID: 1}},
		event.ColumnDeleted{ColumnID: 1},
		event.CardCreated{Card: card(1, 1, 0)},
		event.CardDeleted{ColumnID: 1, CardID: 1},
		event.CardUpdated{Card: card(1, 1, 0)},
	} {
		assert.Nil(t, Reduce(s, ev).Board, ev.Kind())
	}
}

func TestReducePresenceUpdate(t *testing.T) {
	s := testSnapshot()

	got := Reduce(s, event.PresenceUpdate{Users: []string{"carol", "bob", "carol"}})

	assert.Same(t, s.Board, got.Board)
	assert.Equal(t, []string{"bob", "carol"}, got.Presence.Users())
	assert.Equal(t, []string{"alice"}, s.Presence.Users())
	assert.True(t, Changed(s, got))

	empty := Reduce(got, event.PresenceUpdate{Users: []string{}})
	assert.Equal(t, 0, empty.Presence.Len())
}

func TestReduceBoardUpdated(t *testing.T) {
	s := testSnapshot()

	got := Reduce(s, event.BoardUpdated{Name: "Q3"})

	assert.Equal(t, "Q3", got.Board.Name)
	assert.Equal(t, "Roadmap", s.Board.Name)
	assert.Equal(t, s.Board.Columns, got.Board.Columns)
}

func TestReduceColumnCreatedAppends(t *testing.T) {
	testCases := map[string]models.Column{
		"without cards": {ID: 4, Title: "Review"},
		"with cards":    {ID: 4, Title: "Review", Cards: []models.Card{card(40, 4, 0)}},
	}

	for name, col := range testCases {
		t.Run(name, func(t *testing.T) {
			s := testSnapshot()
			before := s.Clone()

			got := Reduce(s, event.ColumnCreated{Column: col})

			require.Len(t, got.Board.Columns, len(before.Board.Columns)+1)
			assert.Equal(t, before.Board.Columns, got.Board.Columns[:len(before.Board.Columns)])

			last := got.Board.Columns[len(got.Board.Columns)-1]
			assert.Equal(t, col.ID, last.ID)
			assert.NotNil(t, last.Cards)
			assert.Len(t, last.Cards, len(col.Cards))

			assert.Equal(t, before, s)
		})
	}
}

func TestReduceColumnDeletedDropsItsCards(t *testing.T) {
	s := testSnapshot()
	before := s.Clone()

	got := Reduce(s, event.ColumnDeleted{ColumnID: 2})

	require.Len(t, got.Board.Columns, 2)
	assert.Equal(t, before.Board.Columns[0], got.Board.Columns[0])
	assert.Equal(t, before.Board.Columns[2], got.Board.Columns[1])
	for _, id := range []models.CardID{20, 21} {
		_, ok := got.Board.FindCard(id)
		assert.False(t, ok)
	}
	assert.Equal(t, before, s)
}

func TestReduceCardCreated(t *testing.T) {
	s := testSnapshot()
	before := s.Clone()

	got := Reduce(s, event.CardCreated{Card: card(13, 1, 3)})

	assert.Equal(t, []models.CardID{10, 11, 12, 13}, cardIDs(t, got.Board, 1))
	assert.Equal(t, []models.CardID{20, 21}, cardIDs(t, got.Board, 2))
	assert.Equal(t, before, s)
}

func TestReduceCardDeleted(t *testing.T) {
	s := testSnapshot()
	before := s.Clone()

	got := Reduce(s, event.CardDeleted{ColumnID: 1, CardID: 11})

	assert.Equal(t, []models.CardID{10, 12}, cardIDs(t, got.Board, 1))
	assert.Equal(t, before, s)
}

func TestReduceCardUpdated(t *testing.T) {
	t.Run("replaced in place", func(t *testing.T) {
		s := testSnapshot()
		updated := card(11, 1, 1)
		updated.Title = "renamed"

		got := Reduce(s, event.CardUpdated{Card: updated})

		assert.Equal(t, []models.CardID{10, 11, 12}, cardIDs(t, got.Board, 1))
		c, _ := got.Board.Card(11)
		assert.Equal(t, "renamed", c.Title)
		old, _ := s.Board.Card(11)
		assert.Equal(t, "card", old.Title)
	})

	t.Run("column changed server side keeps local position", func(t *testing.T) {
		s := testSnapshot()

		got := Reduce(s, event.CardUpdated{Card: card(20, 3, 0)})

		assert.Equal(t, []models.CardID{20, 21}, cardIDs(t, got.Board, 2))
		c, _ := got.Board.Card(20)
		assert.Equal(t, models.ColumnID(3), c.Column)
	})

	t.Run("only the first duplicate is replaced", func(t *testing.T) {
		s := testSnapshot()
		s.Board.Columns[2].Cards = []models.Card{card(10, 3, 0)}

		updated := card(10, 1, 0)
		updated.Title = "first"
		got := Reduce(s, event.CardUpdated{Card: updated})

		assert.Equal(t, "first", got.Board.Columns[0].Cards[0].Title)
		assert.Equal(t, "card", got.Board.Columns[2].Cards[0].Title)
	})
}

func TestReduceOrdering(t *testing.T) {
	s0 := testSnapshot()
	e1 := event.CardCreated{Card: card(13, 1, 3)}
	e2 := event.CardUpdated{Card: models.Card{ID: 13, Title: "second", Column: 1, Order: 3}}

	got := Reduce(Reduce(s0, e1), e2)

	c, ok := got.Board.Card(13)
	require.True(t, ok)
	assert.Equal(t, "second", c.Title)

	reversed := Reduce(Reduce(s0, e2), e1)
	c, _ = reversed.Board.Card(13)
	assert.Equal(t, "card", c.Title)
}

func TestEndToEndScenario(t *testing.T) {
	s := models.Snapshot{Board: &models.Board{
		Columns: []models.Column{{ID: 1, Title: "Todo", Cards: []models.Card{{ID: 10, Column: 1, Order: 0}}}},
	}}

	s = Reduce(s, event.CardCreated{Card: models.Card{ID: 11, Column: 1, Order: 1}})
	assert.Equal(t, []models.CardID{10, 11}, cardIDs(t, s.Board, 1))

	s = Reduce(s, event.CardDeleted{ColumnID: 1, CardID: 10})
	assert.Equal(t, []models.CardID{11}, cardIDs(t, s.Board, 1))
}

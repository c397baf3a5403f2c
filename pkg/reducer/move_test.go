package reducer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kanbanlive/boardsync.go/pkg/models"
)

func TestMoveCardWithinColumn(t *testing.T) {
	testCases := []struct {
		from, to int
		want     []models.CardID
	}{
		{from: 0, to: 2, want: []models.CardID{11, 12, 10}},
		{from: 2, to: 0, want: []models.CardID{12, 10, 11}},
		{from: 0, to: 1, want: []models.CardID{11, 10, 12}},
		{from: 1, to: 2, want: []models.CardID{10, 12, 11}},
	}

	for _, tc := range testCases {
		s := testSnapshot()
		before := s.Clone()

		got, err := MoveCard(s.Board, Location{Column: 1, Index: tc.from}, Location{Column: 1, Index: tc.to})
		require.NoError(t, err)

		assert.Equal(t, tc.want, cardIDs(t, got, 1), "move %d -> %d", tc.from, tc.to)
		col, _ := got.Column(1)
		for i, c := range col.Cards {
			assert.Equal(t, i, c.Order)
		}
		assert.Equal(t, before, s)
	}
}

func TestMoveCardAcrossColumns(t *testing.T) {
	b := &models.Board{Columns: []models.Column{
		{ID: 1, Cards: []models.Card{card(1, 1, 0), card(2, 1, 1)}},
		{ID: 2, Cards: []models.Card{card(3, 2, 0), card(4, 2, 1)}},
	}}
	before := b.Clone()

	got, err := MoveCard(b, Location{Column: 1, Index: 0}, Location{Column: 2, Index: 1})
	require.NoError(t, err)

	assert.Equal(t, []models.CardID{2}, cardIDs(t, got, 1))
	assert.Equal(t, []models.CardID{3, 1, 4}, cardIDs(t, got, 2))

	moved, _ := got.Card(1)
	assert.Equal(t, models.ColumnID(2), moved.Column)
	assert.Equal(t, 1, moved.Order)
	assert.NoError(t, got.Validate())

	assert.Equal(t, before, b)
}

func TestMoveCardIntoEmptyColumn(t *testing.T) {
	s := testSnapshot()

	got, err := MoveCard(s.Board, Location{Column: 2, Index: 1}, Location{Column: 3, Index: 0})
	require.NoError(t, err)

	assert.Equal(t, []models.CardID{20}, cardIDs(t, got, 2))
	assert.Equal(t, []models.CardID{21}, cardIDs(t, got, 3))
	assert.Equal(t, s.Board.Columns[0], got.Columns[0])
}

func TestMoveCardSamePositionIsNoop(t *testing.T) {
	s := testSnapshot()

	got, err := MoveCard(s.Board, Location{Column: 1, Index: 1}, Location{Column: 1, Index: 1})
	require.NoError(t, err)
	assert.Same(t, s.Board, got)
}

func TestMoveCardErrors(t *testing.T) {
	s := testSnapshot()

	testCases := []struct {
		name     string
		from, to Location
		want     error
	}{
		{name: "unknown source", from: Location{Column: 9}, to: Location{Column: 1}, want: ErrColumnNotFound},
		{name: "unknown destination", from: Location{Column: 1}, to: Location{Column: 9}, want: ErrColumnNotFound},
		{name: "source index too large", from: Location{Column: 1, Index: 3}, to: Location{Column: 2}, want: ErrIndexOutOfRange},
		{name: "negative source index", from: Location{Column: 1, Index: -1}, to: Location{Column: 2}, want: ErrIndexOutOfRange},
		{name: "destination past end", from: Location{Column: 1}, to: Location{Column: 2, Index: 3}, want: ErrIndexOutOfRange},
		{name: "same column past end", from: Location{Column: 1}, to: Location{Column: 1, Index: 3}, want: ErrIndexOutOfRange},
		{name: "empty source column", from: Location{Column: 3}, to: Location{Column: 1}, want: ErrIndexOutOfRange},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := MoveCard(s.Board, tc.from, tc.to)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestMoveCardByID(t *testing.T) {
	s := testSnapshot()

	_, err := MoveCardByID(s.Board, 11, Location{Column: 1, Index: 0}, Location{Column: 2, Index: 0})
	assert.ErrorIs(t, err, ErrCardMismatch)

	got, err := MoveCardByID(s.Board, 10, Location{Column: 1, Index: 0}, Location{Column: 2, Index: 0})
	require.NoError(t, err)
	assert.Equal(t, []models.CardID{10, 20, 21}, cardIDs(t, got, 2))
}

// Package reducer computes new board snapshots from events and local moves.
//
// Every function here is pure. Inputs are never modified; results share the
// columns and cards they did not change with the input.
package reducer

import (
	"github.com/kanbanlive/boardsync.go/pkg/event"
	"github.com/kanbanlive/boardsync.go/pkg/models"
)

// Reduce returns the snapshot that results from applying ev to s.
//
// When ev is of an unknown kind, or refers to a column or card that s does
// not contain, s is returned as is, with the same Board pointer.
func Reduce(s models.Snapshot, ev event.Event) models.Snapshot {
	switch e := ev.(type) {
	case event.PresenceUpdate:
		return s.WithPresence(models.NewRoster(e.Users...))
	case event.BoardUpdated:
		return withBoard(s, renameBoard(s.Board, e.Name))
	case event.ColumnCreated:
		return withBoard(s, appendColumn(s.Board, e.Column))
	case event.ColumnDeleted:
		return withBoard(s, deleteColumn(s.Board, e.ColumnID))
	case event.CardCreated:
		return withBoard(s, appendCard(s.Board, e.Card))
	case event.CardDeleted:
		return withBoard(s, deleteCard(s.Board, e.ColumnID, e.CardID))
	case event.CardUpdated:
		return withBoard(s, replaceCard(s.Board, e.Card))
	}
	return s
}

// Changed reports whether a reduction produced a different snapshot.
func Changed(before, after models.Snapshot) bool {
	return before.Board != after.Board || !before.Presence.Equal(after.Presence)
}

func withBoard(s models.Snapshot, b *models.Board) models.Snapshot {
	if b == s.Board {
		return s
	}
	return s.WithBoard(b)
}

// shallow copies the board header and its column slice.
func shallow(b *models.Board) *models.Board {
	out := *b
	out.Columns = append([]models.Column(nil), b.Columns...)
	return &out
}

func renameBoard(b *models.Board, name string) *models.Board {
	if b == nil || b.Name == name {
		return b
	}
	out := *b
	out.Name = name
	return &out
}

func appendColumn(b *models.Board, col models.Column) *models.Board {
	if b == nil || b.ColumnIndex(col.ID) >= 0 {
		return b
	}
	col = col.Clone()
	if col.Cards == nil {
		col.Cards = []models.Card{}
	}
	out := shallow(b)
	out.Columns = append(out.Columns, col)
	return out
}

func deleteColumn(b *models.Board, id models.ColumnID) *models.Board {
	i := b.ColumnIndex(id)
	if i < 0 {
		return b
	}
	out := *b
	out.Columns = make([]models.Column, 0, len(b.Columns)-1)
	out.Columns = append(out.Columns, b.Columns[:i]...)
	out.Columns = append(out.Columns, b.Columns[i+1:]...)
	return &out
}

func appendCard(b *models.Board, card models.Card) *models.Board {
	i := b.ColumnIndex(card.Column)
	if i < 0 || b.Columns[i].CardIndex(card.ID) >= 0 {
		return b
	}
	out := shallow(b)
	col := out.Columns[i]
	cards := make([]models.Card, 0, len(col.Cards)+1)
	cards = append(cards, col.Cards...)
	col.Cards = append(cards, card.Clone())
	out.Columns[i] = col
	return out
}

func deleteCard(b *models.Board, columnID models.ColumnID, cardID models.CardID) *models.Board {
	i := b.ColumnIndex(columnID)
	if i < 0 {
		return b
	}
	j := b.Columns[i].CardIndex(cardID)
	if j < 0 {
		return b
	}
	out := shallow(b)
	col := out.Columns[i]
	col.Cards = removeAt(col.Cards, j)
	out.Columns[i] = col
	return out
}

// replaceCard swaps in the first card with a matching id, wherever it sits.
// The card keeps its current position even if its column field now names a
// different column.
func replaceCard(b *models.Board, card models.Card) *models.Board {
	loc, ok := b.FindCard(card.ID)
	if !ok {
		return b
	}
	i := b.ColumnIndex(loc.Column)
	out := shallow(b)
	col := out.Columns[i]
	col.Cards = append([]models.Card(nil), col.Cards...)
	col.Cards[loc.Index] = card.Clone()
	out.Columns[i] = col
	return out
}

func removeAt(cards []models.Card, i int) []models.Card {
	out := make([]models.Card, 0, len(cards)-1)
	out = append(out, cards[:i]...)
	return append(out, cards[i+1:]...)
}

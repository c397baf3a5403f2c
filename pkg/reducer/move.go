package reducer

import (
	"errors"
	"fmt"

	"github.com/kanbanlive/boardsync.go/pkg/models"
)

var (
	ErrColumnNotFound  = errors.New("column not found")
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrCardMismatch    = errors.New("card is not at the source position")
)

// Location addresses a slot in a column.
type Location struct {
	Column models.ColumnID
	Index  int
}

// MoveCard removes the card at from and inserts it at to.
//
// Removal happens first and to.Index is an index into the destination after
// removal, so moving the first of [A B C] to index 2 yields [B C A]. The moved
// card's Column is set to the destination, and Order of every card in the
// touched columns is renumbered to its position.
//
// If the move leaves the board unchanged, b itself is returned.
func MoveCard(b *models.Board, from, to Location) (*models.Board, error) {
	si := b.ColumnIndex(from.Column)
	if si < 0 {
		return nil, fmt.Errorf("%w: source %d", ErrColumnNotFound, from.Column)
	}
	di := b.ColumnIndex(to.Column)
	if di < 0 {
		return nil, fmt.Errorf("%w: destination %d", ErrColumnNotFound, to.Column)
	}

	src := b.Columns[si]
	if from.Index < 0 || from.Index >= len(src.Cards) {
		return nil, fmt.Errorf("%w: source index %d of %d", ErrIndexOutOfRange, from.Index, len(src.Cards))
	}

	destLen := len(b.Columns[di].Cards)
	if si == di {
		destLen--
	}
	if to.Index < 0 || to.Index > destLen {
		return nil, fmt.Errorf("%w: destination index %d of %d", ErrIndexOutOfRange, to.Index, destLen)
	}

	if si == di && from.Index == to.Index {
		return b, nil
	}

	moved := src.Cards[from.Index]
	moved.Column = to.Column

	out := shallow(b)

	srcCards := removeAt(src.Cards, from.Index)
	if si == di {
		out.Columns[si].Cards = renumber(insertAt(srcCards, to.Index, moved))
		return out, nil
	}

	out.Columns[si].Cards = renumber(srcCards)
	out.Columns[di].Cards = renumber(insertAt(b.Columns[di].Cards, to.Index, moved))
	return out, nil
}

// MoveCardByID is MoveCard with a check that the card at from has the given id.
func MoveCardByID(b *models.Board, id models.CardID, from, to Location) (*models.Board, error) {
	col, ok := b.Column(from.Column)
	if !ok {
		return nil, fmt.Errorf("%w: source %d", ErrColumnNotFound, from.Column)
	}
	if from.Index < 0 || from.Index >= len(col.Cards) {
		return nil, fmt.Errorf("%w: source index %d of %d", ErrIndexOutOfRange, from.Index, len(col.Cards))
	}
	if col.Cards[from.Index].ID != id {
		return nil, fmt.Errorf("%w: want card %d, found %d", ErrCardMismatch, id, col.Cards[from.Index].ID)
	}
	return MoveCard(b, from, to)
}

func insertAt(cards []models.Card, i int, card models.Card) []models.Card {
	out := make([]models.Card, 0, len(cards)+1)
	out = append(out, cards[:i]...)
	out = append(out, card)
	return append(out, cards[i:]...)
}

// renumber sets Order to the position of each card. cards must be owned by
// the caller.
func renumber(cards []models.Card) []models.Card {
	for i := range cards {
		cards[i].Order = i
	}
	return cards
}

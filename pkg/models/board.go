// Package models holds the board graph shared by every other package:
// boards own ordered columns, columns own ordered cards.
//
// Values reachable from a Snapshot are treated as immutable. Code that needs
// a different board builds new slices for the parts it changes and may share
// the rest.
package models

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"time"
)

type (
	BoardID  int64
	ColumnID int64
	CardID   int64
)

type Card struct {
	ID          CardID     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Column      ColumnID   `json:"column"`
	Order       int        `json:"order"`
	DueDate     *Date      `json:"due_date,omitempty"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// Clone returns a copy of the card that shares no pointers with c.
func (c Card) Clone() Card {
	out := c
	if c.DueDate != nil {
		d := *c.DueDate
		out.DueDate = &d
	}
	if c.CreatedAt != nil {
		t := *c.CreatedAt
		out.CreatedAt = &t
	}
	if c.UpdatedAt != nil {
		t := *c.UpdatedAt
		out.UpdatedAt = &t
	}
	return out
}

type Column struct {
	ID    ColumnID `json:"id"`
	Title string   `json:"title"`
	Board BoardID  `json:"board,omitempty"`
	Order int      `json:"order"`
	Cards []Card   `json:"cards"`
}

func (c Column) Clone() Column {
	out := c
	if c.Cards == nil {
		return out
	}
	out.Cards = make([]Card, len(c.Cards))
	for i, card := range c.Cards {
		out.Cards[i] = card.Clone()
	}
	return out
}

// CardIndex returns the position of the card in the column, or -1.
func (c Column) CardIndex(id CardID) int {
	for i, card := range c.Cards {
		if card.ID == id {
			return i
		}
	}
	return -1
}

type Board struct {
	ID        BoardID    `json:"id"`
	Name      string     `json:"name"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	Columns   []Column   `json:"columns"`
}

// Clone deep copies the board.
func (b *Board) Clone() *Board {
	if b == nil {
		return nil
	}
	out := *b
	if b.CreatedAt != nil {
		t := *b.CreatedAt
		out.CreatedAt = &t
	}
	if b.Columns == nil {
		return &out
	}
	out.Columns = make([]Column, len(b.Columns))
	for i, col := range b.Columns {
		out.Columns[i] = col.Clone()
	}
	return &out
}

// ColumnIndex returns the position of the column on the board, or -1.
func (b *Board) ColumnIndex(id ColumnID) int {
	if b == nil {
		return -1
	}
	for i, col := range b.Columns {
		if col.ID == id {
			return i
		}
	}
	return -1
}

// Column returns the column with the given id. The returned value shares its
// card slice with the board and must not be modified.
func (b *Board) Column(id ColumnID) (Column, bool) {
	i := b.ColumnIndex(id)
	if i < 0 {
		return Column{}, false
	}
	return b.Columns[i], true
}

// CardLocation is the position of a card on a board.
type CardLocation struct {
	Column ColumnID
	Index  int
}

// FindCard returns where the first card with the given id sits, scanning
// columns in board order.
func (b *Board) FindCard(id CardID) (CardLocation, bool) {
	if b == nil {
		return CardLocation{}, false
	}
	for _, col := range b.Columns {
		if i := col.CardIndex(id); i >= 0 {
			return CardLocation{Column: col.ID, Index: i}, true
		}
	}
	return CardLocation{}, false
}

// Card returns the first card with the given id.
func (b *Board) Card(id CardID) (Card, bool) {
	loc, ok := b.FindCard(id)
	if !ok {
		return Card{}, false
	}
	col, _ := b.Column(loc.Column)
	return col.Cards[loc.Index], true
}

func (b *Board) CardCount() int {
	if b == nil {
		return 0
	}
	n := 0
	for _, col := range b.Columns {
		n += len(col.Cards)
	}
	return n
}

// Summary renders the one line overview shown under a board title.
func (b *Board) Summary() string {
	if b == nil {
		return "0 columns • 0 cards"
	}
	return fmt.Sprintf("%d columns • %d cards", len(b.Columns), b.CardCount())
}

// Sorted returns the board with columns and each column's cards in
// ascending Order. Equal orders keep their relative position. b itself is
// returned when it is already sorted.
func (b *Board) Sorted() *Board {
	if b == nil {
		return nil
	}

	byOrder := func(x, y Column) int { return cmp.Compare(x.Order, y.Order) }
	cardsByOrder := func(x, y Card) int { return cmp.Compare(x.Order, y.Order) }

	sorted := slices.IsSortedFunc(b.Columns, byOrder)
	for _, col := range b.Columns {
		sorted = sorted && slices.IsSortedFunc(col.Cards, cardsByOrder)
	}
	if sorted {
		return b
	}

	out := *b
	out.Columns = slices.Clone(b.Columns)
	slices.SortStableFunc(out.Columns, byOrder)
	for i := range out.Columns {
		if !slices.IsSortedFunc(out.Columns[i].Cards, cardsByOrder) {
			out.Columns[i].Cards = slices.Clone(out.Columns[i].Cards)
			slices.SortStableFunc(out.Columns[i].Cards, cardsByOrder)
		}
	}
	return &out
}

// Validate reports structural problems: cards filed under a column other
// than the one holding them, card orders that do not ascend within their
// column, and duplicated column or card ids.
func (b *Board) Validate() error {
	if b == nil {
		return errors.New("nil board")
	}

	var errs []error
	columns := make(map[ColumnID]struct{}, len(b.Columns))
	cards := make(map[CardID]ColumnID)

	for _, col := range b.Columns {
		if _, dup := columns[col.ID]; dup {
			errs = append(errs, fmt.Errorf("column %d appears more than once", col.ID))
		}
		columns[col.ID] = struct{}{}

		for i, card := range col.Cards {
			if card.Column != col.ID {
				errs = append(errs, fmt.Errorf("card %d is in column %d but references column %d", card.ID, col.ID, card.Column))
			}
			if other, dup := cards[card.ID]; dup {
				errs = append(errs, fmt.Errorf("card %d appears in columns %d and %d", card.ID, other, col.ID))
			}
			cards[card.ID] = col.ID

			if i > 0 && card.Order <= col.Cards[i-1].Order {
				errs = append(errs, fmt.Errorf("card %d has order %d after order %d in column %d", card.ID, card.Order, col.Cards[i-1].Order, col.ID))
			}
		}
	}

	return errors.Join(errs...)
}

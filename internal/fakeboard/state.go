package fakeboard

import (
	"github.com/kanbanlive/boardsync.go/pkg/event"
	"github.com/kanbanlive/boardsync.go/pkg/models"
)

// The helpers below mutate server state and queue the matching event.
// They must be called with s.mu held.

func (s *Server) columnLocked(id models.ColumnID) (*models.Board, int) {
	for _, b := range s.boards {
		if i := b.ColumnIndex(id); i >= 0 {
			return b, i
		}
	}
	return nil, -1
}

func (s *Server) cardLocked(id models.CardID) (*models.Board, models.CardLocation, bool) {
	for _, b := range s.boards {
		if loc, ok := b.FindCard(id); ok {
			return b, loc, true
		}
	}
	return nil, models.CardLocation{}, false
}

func (s *Server) addColumnLocked(b *models.Board, title string, order int) models.Column {
	col := models.Column{
		ID:    models.ColumnID(s.newID()),
		Title: title,
		Board: b.ID,
		Order: order,
		Cards: []models.Card{},
	}
	b.Columns = append(b.Columns, col)
	s.publishLocked(b.ID, event.ColumnCreated{Column: col.Clone()})
	return col.Clone()
}

// addCardLocked appends a card built from tmpl; id, column and order are assigned.
func (s *Server) addCardLocked(b *models.Board, column int, tmpl models.Card) models.Card {
	col := &b.Columns[column]
	card := tmpl.Clone()
	card.ID = models.CardID(s.newID())
	card.Column = col.ID
	card.Order = len(col.Cards)
	col.Cards = append(col.Cards, card)
	s.publishLocked(b.ID, event.CardCreated{Card: card.Clone()})
	return card.Clone()
}

// moveCardLocked files the card at loc under dest, at order when given and
// at the end otherwise, and renumbers the touched columns.
func (s *Server) moveCardLocked(b *models.Board, loc models.CardLocation, dest models.ColumnID, order *int) {
	si := b.ColumnIndex(loc.Column)
	src := &b.Columns[si]
	card := src.Cards[loc.Index]
	src.Cards = append(src.Cards[:loc.Index:loc.Index], src.Cards[loc.Index+1:]...)

	di := b.ColumnIndex(dest)
	dst := &b.Columns[di]
	at := len(dst.Cards)
	if order != nil && *order >= 0 && *order < at {
		at = *order
	}
	card.Column = dest
	cards := make([]models.Card, 0, len(dst.Cards)+1)
	cards = append(cards, dst.Cards[:at]...)
	cards = append(cards, card)
	dst.Cards = append(cards, dst.Cards[at:]...)

	for _, c := range []*models.Column{src, dst} {
		for i := range c.Cards {
			c.Cards[i].Order = i
		}
	}
}

// updateCardLocked applies fn to the card and announces the result.
func (s *Server) updateCardLocked(b *models.Board, id models.CardID, fn func(*models.Card)) models.Card {
	loc, _ := b.FindCard(id)
	col := &b.Columns[b.ColumnIndex(loc.Column)]
	fn(&col.Cards[loc.Index])
	card := col.Cards[loc.Index].Clone()
	s.publishLocked(b.ID, event.CardUpdated{Card: card})
	return card
}

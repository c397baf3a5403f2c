package notice

import (
	"fmt"

	"github.com/kanbanlive/boardsync.go/pkg/event"
	"github.com/kanbanlive/boardsync.go/pkg/models"
)

const (
	MsgMoveFailed         = "Error moving card, another user may have changed it."
	MsgCreateCardFailed   = "Error creating card"
	MsgUpdateCardFailed   = "Error updating card"
	MsgDeleteCardFailed   = "Error deleting card"
	MsgCreateColumnFailed = "Error creating column"
	MsgDeleteColumnFailed = "Error deleting column"
	MsgRenameBoardFailed  = "Error updating board title"
)

// Describe renders the message for an event that changed before. Presence
// changes are not announced.
func Describe(before models.Snapshot, ev event.Event) (string, bool) {
	switch e := ev.(type) {
	case event.BoardUpdated:
		return fmt.Sprintf("Board title updated to %q", e.Name), true
	case event.ColumnCreated:
		return fmt.Sprintf("Column %q was created", e.Column.Title), true
	case event.ColumnDeleted:
		if col, ok := before.Board.Column(e.ColumnID); ok {
			return fmt.Sprintf("Column %q was deleted", col.Title), true
		}
		return "A column was deleted", true
	case event.CardCreated:
		return fmt.Sprintf("Card %q was created", e.Card.Title), true
	case event.CardDeleted:
		// Named after the card the deletion removes, which is looked up in
		// the event's column only.
		if col, ok := before.Board.Column(e.ColumnID); ok {
			if i := col.CardIndex(e.CardID); i >= 0 {
				return fmt.Sprintf("Card %q was deleted", col.Cards[i].Title), true
			}
		}
		return "A card was deleted", true
	case event.CardUpdated:
		return fmt.Sprintf("Card %q was updated", e.Card.Title), true
	}
	return "", false
}

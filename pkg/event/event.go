// Package event defines the typed change notifications pushed by the board
// server and the decoders that turn raw frames into them.
//
// Frames arrive as an envelope {"type": KIND, "payload": {...}}. A frame that
// cannot be decoded is dropped rather than reported, so one bad message never
// stalls the stream.
package event

import "github.com/kanbanlive/boardsync.go/pkg/models"

type Kind string

const (
	KindPresenceUpdate Kind = "PRESENCE_UPDATE"
	KindBoardUpdated   Kind = "BOARD_UPDATED"
	KindColumnCreated  Kind = "COLUMN_CREATED"
	KindColumnDeleted  Kind = "COLUMN_DELETED"
	KindCardCreated    Kind = "CARD_CREATED"
	KindCardDeleted    Kind = "CARD_DELETED"
	KindCardUpdated    Kind = "CARD_UPDATED"
)

// Kinds lists every kind the decoders recognize.
var Kinds = []Kind{
	KindPresenceUpdate,
	KindBoardUpdated,
	KindColumnCreated,
	KindColumnDeleted,
	KindCardCreated,
	KindCardDeleted,
	KindCardUpdated,
}

type Event interface {
	Kind() Kind
}

// PresenceUpdate carries the full list of users connected to the board.
type PresenceUpdate struct {
	Users []string
}

type BoardUpdated struct {
	Name string
}

type ColumnCreated struct {
	Column models.Column
}

type ColumnDeleted struct {
	ColumnID models.ColumnID
}

type CardCreated struct {
	Card models.Card
}

type CardDeleted struct {
	ColumnID models.ColumnID
	CardID   models.CardID
}

// CardUpdated carries the card as the server now has it. Its Column may
// differ from the column currently holding it locally.
type CardUpdated struct {
	Card models.Card
}

func (PresenceUpdate) Kind() Kind { return KindPresenceUpdate }
func (BoardUpdated) Kind() Kind   { return KindBoardUpdated }
func (ColumnCreated) Kind() Kind  { return KindColumnCreated }
func (ColumnDeleted) Kind() Kind  { return KindColumnDeleted }
func (CardCreated) Kind() Kind    { return KindCardCreated }
func (CardDeleted) Kind() Kind    { return KindCardDeleted }
func (CardUpdated) Kind() Kind    { return KindCardUpdated }

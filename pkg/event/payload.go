package event

import (
	"errors"
	"fmt"

	"github.com/kanbanlive/boardsync.go/pkg/models"
)

var (
	ErrUnknownKind     = errors.New("unknown event kind")
	ErrMissingField    = errors.New("missing required field")
	ErrMalformedFrame  = errors.New("malformed frame")
	ErrUnsupportedType = errors.New("unsupported event type")
)

type unmarshalFunc func(data []byte, dst any) error

// Payload shapes on the wire. Required fields are pointers so that a
// missing key can be told apart from a zero value.
type (
	presencePayload struct {
		Users *[]string `json:"users"`
	}
	boardPayload struct {
		Name *string `json:"name"`
	}
	columnDeletedPayload struct {
		ColumnID *models.ColumnID `json:"columnId"`
	}
	cardDeletedPayload struct {
		ColumnID *models.ColumnID `json:"columnId"`
		CardID   *models.CardID   `json:"cardId"`
	}
	columnKey struct {
		ID *models.ColumnID `json:"id"`
	}
	cardKey struct {
		ID     *models.CardID   `json:"id"`
		Column *models.ColumnID `json:"column"`
	}
)

func missing(field string) error {
	return fmt.Errorf("%w: %s", ErrMissingField, field)
}

// build decodes the payload of a frame whose kind is already known.
func build(kind Kind, payload []byte, unmarshal unmarshalFunc) (Event, error) {
	switch kind {
	case KindPresenceUpdate:
		var p presencePayload
		if err := unmarshal(payload, &p); err != nil {
			return nil, err
		}
		if p.Users == nil {
			return nil, missing("users")
		}
		users := *p.Users
		if users == nil {
			users = []string{}
		}
		return PresenceUpdate{Users: users}, nil

	case KindBoardUpdated:
		var p boardPayload
		if err := unmarshal(payload, &p); err != nil {
			return nil, err
		}
		if p.Name == nil {
			return nil, missing("name")
		}
		return BoardUpdated{Name: *p.Name}, nil

	case KindColumnCreated:
		var key columnKey
		if err := unmarshal(payload, &key); err != nil {
			return nil, err
		}
		if key.ID == nil {
			return nil, missing("id")
		}
		var col models.Column
		if err := unmarshal(payload, &col); err != nil {
			return nil, err
		}
		if col.Cards == nil {
			col.Cards = []models.Card{}
		}
		return ColumnCreated{Column: col}, nil

	case KindColumnDeleted:
		var p columnDeletedPayload
		if err := unmarshal(payload, &p); err != nil {
			return nil, err
		}
		if p.ColumnID == nil {
			return nil, missing("columnId")
		}
		return ColumnDeleted{ColumnID: *p.ColumnID}, nil

	case KindCardCreated, KindCardUpdated:
		card, err := buildCard(payload, unmarshal)
		if err != nil {
			return nil, err
		}
		if kind == KindCardCreated {
			return CardCreated{Card: card}, nil
		}
		return CardUpdated{Card: card}, nil

	case KindCardDeleted:
		var p cardDeletedPayload
		if err := unmarshal(payload, &p); err != nil {
			return nil, err
		}
		if p.ColumnID == nil {
			return nil, missing("columnId")
		}
		if p.CardID == nil {
			return nil, missing("cardId")
		}
		return CardDeleted{ColumnID: *p.ColumnID, CardID: *p.CardID}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

func buildCard(payload []byte, unmarshal unmarshalFunc) (models.Card, error) {
	var key cardKey
	if err := unmarshal(payload, &key); err != nil {
		return models.Card{}, err
	}
	if key.ID == nil {
		return models.Card{}, missing("id")
	}
	if key.Column == nil {
		return models.Card{}, missing("column")
	}
	var card models.Card
	if err := unmarshal(payload, &card); err != nil {
		return models.Card{}, err
	}
	return card, nil
}

// Envelope is the wire form of an event.
type Envelope struct {
	Type    Kind `json:"type"`
	Payload any  `json:"payload"`
}

type (
	usersWire struct {
		Users []string `json:"users"`
	}
	nameWire struct {
		Name string `json:"name"`
	}
	columnIDWire struct {
		ColumnID models.ColumnID `json:"columnId"`
	}
	cardDeletedWire struct {
		ColumnID models.ColumnID `json:"columnId"`
		CardID   models.CardID   `json:"cardId"`
	}
)

// NewEnvelope wraps ev in the shape the server pushes, so that encoding the
// result and decoding it again yields an equal event.
func NewEnvelope(ev Event) (Envelope, error) {
	var payload any
	switch e := ev.(type) {
	case PresenceUpdate:
		users := e.Users
		if users == nil {
			users = []string{}
		}
		payload = usersWire{Users: users}
	case BoardUpdated:
		payload = nameWire{Name: e.Name}
	case ColumnCreated:
		payload = e.Column
	case ColumnDeleted:
		payload = columnIDWire{ColumnID: e.ColumnID}
	case CardCreated:
		payload = e.Card
	case CardDeleted:
		payload = cardDeletedWire{ColumnID: e.ColumnID, CardID: e.CardID}
	case CardUpdated:
		payload = e.Card
	default:
		return Envelope{}, fmt.Errorf("%w: %T", ErrUnsupportedType, ev)
	}
	return Envelope{Type: ev.Kind(), Payload: payload}, nil
}

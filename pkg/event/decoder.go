package event

import (
	"fmt"

	"github.com/buger/jsonparser"
	"github.com/fxamacker/cbor/v2"
	"github.com/goccy/go-json"

	"github.com/kanbanlive/boardsync.go/pkg/logger"
)

// Decoder turns one inbound frame into an event. The boolean is false when
// the frame was ignored.
type Decoder interface {
	Decode(data []byte) (Event, bool)
}

// JSONDecoder decodes text frames.
type JSONDecoder struct {
	logger logger.Logger
}

var _ Decoder = (*JSONDecoder)(nil)

func NewJSONDecoder(log logger.Logger) *JSONDecoder {
	if log == nil {
		log = logger.Discard()
	}
	return &JSONDecoder{logger: log}
}

func (d *JSONDecoder) Decode(data []byte) (Event, bool) {
	ev, err := d.decode(data)
	if err != nil {
		d.logger.Debug("event.JSONDecoder dropped frame", "error", err, "size", len(data))
		return nil, false
	}
	return ev, true
}

func (d *JSONDecoder) decode(data []byte) (Event, error) {
	kind, err := jsonparser.GetString(data, "type")
	if err != nil {
		return nil, fmt.Errorf("%w: reading type: %w", ErrMalformedFrame, err)
	}

	payload, dataType, _, err := jsonparser.Get(data, "payload")
	if err != nil {
		return nil, fmt.Errorf("%w: reading payload of %s: %w", ErrMalformedFrame, kind, err)
	}
	if dataType != jsonparser.Object {
		return nil, fmt.Errorf("%w: payload of %s is %s, not an object", ErrMalformedFrame, kind, dataType)
	}

	return build(Kind(kind), payload, json.Unmarshal)
}

// CBORDecoder decodes binary frames carrying the same envelope in CBOR.
type CBORDecoder struct {
	logger logger.Logger
}

var _ Decoder = (*CBORDecoder)(nil)

func NewCBORDecoder(log logger.Logger) *CBORDecoder {
	if log == nil {
		log = logger.Discard()
	}
	return &CBORDecoder{logger: log}
}

type cborEnvelope struct {
	Type    *string         `json:"type"`
	Payload cbor.RawMessage `json:"payload"`
}

func (d *CBORDecoder) Decode(data []byte) (Event, bool) {
	ev, err := d.decode(data)
	if err != nil {
		d.logger.Debug("event.CBORDecoder dropped frame", "error", err, "size", len(data))
		return nil, false
	}
	return ev, true
}

func (d *CBORDecoder) decode(data []byte) (Event, error) {
	var env cborEnvelope
	if err := cbor.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}
	if env.Type == nil {
		return nil, fmt.Errorf("%w: missing type", ErrMalformedFrame)
	}
	if len(env.Payload) == 0 {
		return nil, fmt.Errorf("%w: missing payload of %s", ErrMalformedFrame, *env.Type)
	}
	return build(Kind(*env.Type), env.Payload, cbor.Unmarshal)
}

// Encode renders ev as a JSON text frame.
func Encode(ev Event) ([]byte, error) {
	env, err := NewEnvelope(ev)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// EncodeCBOR renders ev as a CBOR binary frame.
func EncodeCBOR(ev Event) ([]byte, error) {
	env, err := NewEnvelope(ev)
	if err != nil {
		return nil, err
	}
	return cbor.Marshal(env)
}

package events

import (
	"bytes"
	"encoding/json"
	"fmt"

	relay_errors "convo-relay/pkg/errors"
)

// Inbound is a client event frame.
type Inbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Broadcast is the frame fanned out to participants. AckLocalID is always
// present on the wire, null when there is nothing to correlate.
type Broadcast struct {
	Type       string      `json:"type"`
	Payload    interface{} `json:"payload"`
	AckLocalID *string     `json:"ack_local_id"`
}

type ErrorFrame struct {
	Type  string `json:"type"`
	Error string `json:"error"`
	Code  string `json:"code"`
}

type HelloFrame struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
}

// Decode parses a raw frame. Any failure, including a well-formed frame
// with an unhandled type, wraps ErrProtocol; the returned Kind is then
// KindUnknown.
func Decode(raw []byte) (Kind, json.RawMessage, error) {
	var in Inbound
	if err := json.Unmarshal(raw, &in); err != nil {
		return KindUnknown, nil, fmt.Errorf("%w: invalid JSON", relay_errors.ErrProtocol)
	}
	if in.Type == "" {
		return KindUnknown, nil, fmt.Errorf("%w: missing event type", relay_errors.ErrProtocol)
	}
	kind := ParseKind(in.Type)
	if kind == KindUnknown {
		return KindUnknown, nil, fmt.Errorf("%w: unknown event type %q", relay_errors.ErrProtocol, in.Type)
	}
	if !isObjectOrNull(in.Payload) {
		return KindUnknown, nil, fmt.Errorf("%w: payload must be an object", relay_errors.ErrProtocol)
	}
	return kind, in.Payload, nil
}

func isObjectOrNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || trimmed[0] == '{'
}

// DecodePayload unmarshals an object payload into v. A missing or null
// payload decodes as an empty object so field validation reports what is
// missing. Mistyped fields wrap ErrValidation.
func DecodePayload(raw json.RawMessage, v interface{}) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		trimmed = []byte("{}")
	}
	if err := json.Unmarshal(trimmed, v); err != nil {
		return fmt.Errorf("%w: malformed payload", relay_errors.ErrValidation)
	}
	return nil
}

func NewBroadcast(kind Kind, payload interface{}, ackLocalID *string) Broadcast {
	return Broadcast{Type: kind.String(), Payload: payload, AckLocalID: ackLocalID}
}

// NewErrorFrame renders err for the originating connection only.
func NewErrorFrame(err error) ErrorFrame {
	return ErrorFrame{
		Type:  TypeError,
		Error: relay_errors.Message(err),
		Code:  relay_errors.Code(err),
	}
}

func NewHelloFrame(userID string) HelloFrame {
	return HelloFrame{Type: TypeHello, UserID: userID}
}

func Encode(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

package adapters

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"

	"github.com/huddlewire/signaling/internal/domain"
)

// Inbound messages are a closed set of tagged variants, validated here so
// the core only ever sees well-formed input.

type Envelope struct {
	Type string          `json:"type" validate:"required,oneof=create-session join-session leave-session offer answer candidate update-state heartbeat"`
	Seq  int64           `json:"seq,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

type CreatePayload struct {
	ClientInfo string `json:"clientInfo,omitempty"`
}

type SessionPayload struct {
	SessionID string `json:"sessionId" validate:"required"`
}

type SignalPayload struct {
	To      string          `json:"to" validate:"required"`
	Payload json.RawMessage `json:"payload" validate:"required"`
}

type StatePayload struct {
	SessionID string `json:"sessionId" validate:"required"`
	State     string `json:"state" validate:"required"`
}

// Message is a decoded envelope with exactly one variant set, matching Type.
type Message struct {
	Envelope
	Create  *CreatePayload
	Session *SessionPayload
	Signal  *SignalPayload
	State   *StatePayload
}

var validate = validator.New()

// DecodeMessage parses and validates one inbound frame. Any failure maps
// to ErrInvalidMessage; the raw cause is not surfaced to clients.
func DecodeMessage(data []byte) (*Message, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, domain.ErrInvalidMessage
	}
	if err := validate.Struct(env); err != nil {
		return nil, domain.ErrInvalidMessage
	}

	m := &Message{Envelope: env}
	switch env.Type {
	case "create-session":
		var p CreatePayload
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &p); err != nil {
				return nil, domain.ErrInvalidMessage
			}
		}
		m.Create = &p
	case "join-session", "leave-session":
		var p SessionPayload
		if err := unmarshalValid(env.Data, &p); err != nil {
			return nil, err
		}
		m.Session = &p
	case "offer", "answer", "candidate":
		var p SignalPayload
		if err := unmarshalValid(env.Data, &p); err != nil {
			return nil, err
		}
		m.Signal = &p
	case "update-state":
		var p StatePayload
		if err := unmarshalValid(env.Data, &p); err != nil {
			return nil, err
		}
		m.State = &p
	}
	return m, nil
}

func unmarshalValid(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return domain.ErrInvalidMessage
	}
	if err := json.Unmarshal(data, v); err != nil {
		return domain.ErrInvalidMessage
	}
	if err := validate.Struct(v); err != nil {
		return domain.ErrInvalidMessage
	}
	return nil
}

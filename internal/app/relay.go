package app

import (
	"bytes"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/huddlewire/signaling/internal/core"
	"github.com/huddlewire/signaling/internal/domain"
)

// Negotiation message kinds the relay forwards.
const (
	SignalOffer     = "offer"
	SignalAnswer    = "answer"
	SignalCandidate = "candidate"
)

// SignalMessage is what the target receives. The payload is forwarded
// verbatim; negotiation semantics belong to the peers.
type SignalMessage struct {
	From    domain.ConnectionID `json:"from"`
	Payload json.RawMessage     `json:"payload"`
}

// Relay forwards negotiation messages point-to-point. Participant IDs are
// bound 1:1 to connection IDs, so addressing a participant is addressing
// its connection.
type Relay struct {
	transport core.Transport
}

func NewRelay(transport core.Transport) *Relay {
	return &Relay{transport: transport}
}

// Forward validates presence of target and payload, then delivers
// {from, payload} to the target's connection. Delivery is best-effort:
// an absent target drops the message silently and the caller still acks
// the sender.
func (r *Relay) Forward(kind string, from domain.ConnectionID, to domain.ParticipantID, payload json.RawMessage) error {
	if to == "" || emptyPayload(payload) {
		return domain.ErrInvalidMessage
	}
	if err := r.transport.Send(domain.ConnectionID(to), kind, SignalMessage{From: from, Payload: payload}); err != nil {
		log.Debug().Str("module", "app.relay").Str("kind", kind).Str("from", string(from)).Str("to", string(to)).Err(err).Msg("signal dropped")
	}
	return nil
}

func emptyPayload(p json.RawMessage) bool {
	trimmed := bytes.TrimSpace(p)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

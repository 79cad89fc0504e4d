package app

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huddlewire/signaling/internal/domain"
)

func TestForwardDeliversFromAndPayload(t *testing.T) {
	transport := newFakeTransport()
	relay := NewRelay(transport)

	payload := json.RawMessage(`{"sdp":"v=0..."}`)
	err := relay.Forward(SignalOffer, "conn-a", "conn-b", payload)
	require.NoError(t, err)

	sent := transport.sentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, domain.ConnectionID("conn-b"), sent[0].conn)
	assert.Equal(t, SignalOffer, sent[0].event)

	msg, ok := sent[0].payload.(SignalMessage)
	require.True(t, ok)
	assert.Equal(t, domain.ConnectionID("conn-a"), msg.From)
	assert.JSONEq(t, `{"sdp":"v=0..."}`, string(msg.Payload))
}

func TestForwardRejectsMissingTargetOrPayload(t *testing.T) {
	transport := newFakeTransport()
	relay := NewRelay(transport)

	cases := []struct {
		name    string
		to      domain.ParticipantID
		payload json.RawMessage
	}{
		{"empty target", "", json.RawMessage(`{"x":1}`)},
		{"empty payload", "conn-b", nil},
		{"null payload", "conn-b", json.RawMessage(`null`)},
		{"whitespace payload", "conn-b", json.RawMessage("  ")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := relay.Forward(SignalAnswer, "conn-a", tc.to, tc.payload)
			assert.ErrorIs(t, err, domain.ErrInvalidMessage)
		})
	}
	// Nothing was forwarded for any invalid message.
	assert.Empty(t, transport.sentMessages())
}

func TestForwardToAbsentTargetIsFireAndForget(t *testing.T) {
	transport := newFakeTransport()
	transport.sendErr = errors.New("unknown connection")
	relay := NewRelay(transport)

	// The sender still gets its ack; the message is silently dropped.
	err := relay.Forward(SignalCandidate, "conn-a", "gone", json.RawMessage(`{"candidate":"..."}`))
	assert.NoError(t, err)
}

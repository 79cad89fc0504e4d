package core

import (
	"context"

	"github.com/huddlewire/signaling/internal/domain"
)

// Outbound event names on the signaling surface.
const (
	EventConnected          = "connected"
	EventSessionCreated     = "session-created"
	EventJoinResult         = "join-result"
	EventParticipantJoined  = "participant-joined"
	EventParticipantLeft    = "participant-left"
	EventParticipantUpdated = "participant-updated"
	EventSessionExpired     = "session-expired"
	EventSignalAck          = "signal-ack"
	EventStateAck           = "state-ack"
	EventHeartbeatAck       = "heartbeat-ack"
	EventError              = "error"
)

// Transport abstracts the bidirectional message layer the relay runs on.
// Owned by the adapter; the adapter must close the underlying connections.
type Transport interface {
	// Send delivers one event to one connection. Best-effort: a full or
	// missing connection returns an error the caller may ignore.
	Send(conn domain.ConnectionID, event string, payload any) error

	// Broadcast delivers an event to every connection associated with the
	// session, skipping exclude when non-empty.
	Broadcast(session domain.SessionID, event string, payload any, exclude domain.ConnectionID)

	JoinRoom(conn domain.ConnectionID, session domain.SessionID)
	LeaveRoom(conn domain.ConnectionID, session domain.SessionID)

	// Drop force-closes a connection (liveness timeout, admin eviction).
	Drop(conn domain.ConnectionID)
}

// Bus is the cross-instance fan-out channel. Publish must not block the
// connection-handling path; implementations queue and drop on overflow.
type Bus interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(ctx context.Context, pattern string, handler func(topic string, payload []byte)) error
	Close() error
}

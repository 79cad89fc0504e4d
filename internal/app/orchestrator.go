package app

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/huddlewire/signaling/internal/core"
	"github.com/huddlewire/signaling/internal/domain"
)

// SessionTopicPattern matches every session topic on the bus.
const SessionTopicPattern = "session:*"

// SessionTopic is the bus topic carrying membership events for a session.
func SessionTopic(id domain.SessionID) string {
	return "session:" + string(id)
}

// BridgeEvent is the wire form of a membership event on the bus. Origin
// identifies the publishing instance so receivers can filter their own
// events and avoid echo.
type BridgeEvent struct {
	Origin      string               `json:"origin"`
	Session     domain.SessionID     `json:"session"`
	Event       string               `json:"event"`
	Participant domain.ParticipantID `json:"participant"`
	State       string               `json:"state,omitempty"`
}

// ParticipantEvent is the payload of membership broadcasts to clients.
type ParticipantEvent struct {
	ID    domain.ParticipantID `json:"id"`
	State string               `json:"state,omitempty"`
}

// Orchestrator coordinates the store, the connection registry, the
// transport and the fan-out bus. One instance per process, wired in main.
type Orchestrator struct {
	InstanceID string
	Store      *core.Store
	Registry   *Registry
	Transport  core.Transport
	Bus        core.Bus
}

// CreateSession stores a fresh session and returns its shareable code.
func (o *Orchestrator) CreateSession(meta domain.SessionMeta) (domain.SessionID, error) {
	return o.Store.Create(meta)
}

// Join adds the connection to the session and returns the membership
// snapshot excluding the joiner. A connection holds at most one session;
// joining while in another leaves the old one first.
func (o *Orchestrator) Join(conn domain.ConnectionID, sid domain.SessionID) ([]domain.Participant, error) {
	if prev, ok := o.Registry.SessionOf(conn); ok && prev != sid {
		o.leave(conn, prev)
	}
	others, err := o.Store.Join(sid, domain.ParticipantID(conn))
	if err != nil {
		return nil, err
	}
	if !o.Registry.SetSession(conn, sid) {
		// A liveness timeout consumed the connection mid-join; roll the
		// insertion back so no phantom participant survives until sweep.
		o.Store.Leave(sid, domain.ParticipantID(conn))
		return nil, domain.ErrConnectionClosed
	}
	o.Transport.JoinRoom(conn, sid)
	o.announce(sid, core.EventParticipantJoined, domain.ParticipantID(conn), domain.StateConnecting, conn)
	return others, nil
}

// Leave removes the connection from the session, keeping the socket open.
// Naming a session the connection is not in is a no-op: it must neither
// touch the membership the connection actually holds nor leak events into
// a foreign room.
func (o *Orchestrator) Leave(conn domain.ConnectionID, sid domain.SessionID) {
	current, ok := o.Registry.SessionOf(conn)
	if !ok || current != sid {
		return
	}
	o.leave(conn, sid)
	o.Registry.ClearSession(conn)
}

func (o *Orchestrator) leave(conn domain.ConnectionID, sid domain.SessionID) {
	removed := o.Store.Leave(sid, domain.ParticipantID(conn))
	o.Transport.LeaveRoom(conn, sid)
	if removed {
		o.announce(sid, core.EventParticipantLeft, domain.ParticipantID(conn), "", conn)
	}
}

// UpdateState records and broadcasts the participant's reported state. If
// a disconnect won the race the update is silently ignored, never torn.
func (o *Orchestrator) UpdateState(conn domain.ConnectionID, sid domain.SessionID, state string) {
	if !o.Store.UpdateState(sid, domain.ParticipantID(conn), state) {
		return
	}
	o.announce(sid, core.EventParticipantUpdated, domain.ParticipantID(conn), state, conn)
}

// Disconnect runs connection cleanup exactly once: the registry consumes
// the record, membership is dropped, the room is notified and the socket
// closed. Both timeout-forced and transport-level closes funnel here.
func (o *Orchestrator) Disconnect(conn domain.ConnectionID) {
	sid, ok := o.Registry.Release(conn)
	if !ok {
		return
	}
	if sid != "" {
		o.leave(conn, sid)
	}
	o.Transport.Drop(conn)
}

// EvictSession deletes the session outright, notifying and detaching any
// remaining participants. Used by the expiry sweep and the admin API.
func (o *Orchestrator) EvictSession(sid domain.SessionID) bool {
	remaining, ok := o.Store.Delete(sid)
	if !ok {
		return false
	}
	o.Transport.Broadcast(sid, core.EventSessionExpired, map[string]any{"sessionId": sid}, "")
	for _, p := range remaining {
		conn := domain.ConnectionID(p.ID)
		o.Transport.LeaveRoom(conn, sid)
		o.Registry.ClearSession(conn)
	}
	return true
}

// StartBridge subscribes to membership events from other instances.
func (o *Orchestrator) StartBridge(ctx context.Context) error {
	if o.Bus == nil {
		return nil
	}
	return o.Bus.Subscribe(ctx, SessionTopicPattern, o.handleBridgeEvent)
}

func (o *Orchestrator) handleBridgeEvent(topic string, payload []byte) {
	var ev BridgeEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		log.Warn().Str("module", "app.orchestrator").Str("topic", topic).Err(err).Msg("bad bridge event")
		return
	}
	if ev.Origin == o.InstanceID {
		return
	}
	o.Transport.Broadcast(ev.Session, ev.Event, ParticipantEvent{ID: ev.Participant, State: ev.State}, "")
}

func (o *Orchestrator) announce(sid domain.SessionID, event string, pid domain.ParticipantID, state string, exclude domain.ConnectionID) {
	o.Transport.Broadcast(sid, event, ParticipantEvent{ID: pid, State: state}, exclude)
	o.publish(sid, event, pid, state)
}

func (o *Orchestrator) publish(sid domain.SessionID, event string, pid domain.ParticipantID, state string) {
	if o.Bus == nil {
		return
	}
	b, err := json.Marshal(BridgeEvent{
		Origin:      o.InstanceID,
		Session:     sid,
		Event:       event,
		Participant: pid,
		State:       state,
	})
	if err != nil {
		return
	}
	if err := o.Bus.Publish(context.Background(), SessionTopic(sid), b); err != nil {
		log.Warn().Str("module", "app.orchestrator").Str("session", string(sid)).Err(err).Msg("bridge publish failed")
	}
}

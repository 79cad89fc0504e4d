package adapters

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/huddlewire/signaling/internal/domain"
)

var (
	ErrBackpressure      = errors.New("send buffer full")
	ErrUnknownConnection = errors.New("unknown connection")
)

// wsConn pairs a websocket with its buffered outbound queue.
// The write pump drains send; trySend never blocks.
type wsConn struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func newWSConn(conn *websocket.Conn) *wsConn {
	return &wsConn{conn: conn, send: make(chan []byte, 32)}
}

func (c *wsConn) trySend(b []byte) error {
	select {
	case c.send <- b:
		return nil
	default:
		return ErrBackpressure
	}
}

func (c *wsConn) close() {
	c.once.Do(func() {
		close(c.send)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

type outEnvelope struct {
	Type string `json:"type"`
	Seq  int64  `json:"seq,omitempty"`
	Data any    `json:"data,omitempty"`
}

// Hub implements core.Transport over websocket connections. It owns the
// connection table and the session-keyed rooms used for multicast.
type Hub struct {
	mu    sync.RWMutex
	conns map[domain.ConnectionID]*wsConn
	rooms map[domain.SessionID]map[domain.ConnectionID]struct{}
}

func NewHub() *Hub {
	return &Hub{
		conns: make(map[domain.ConnectionID]*wsConn),
		rooms: make(map[domain.SessionID]map[domain.ConnectionID]struct{}),
	}
}

func (h *Hub) add(id domain.ConnectionID, c *wsConn) {
	h.mu.Lock()
	h.conns[id] = c
	h.mu.Unlock()
}

func (h *Hub) Send(conn domain.ConnectionID, event string, payload any) error {
	return h.SendSeq(conn, event, 0, payload)
}

// SendSeq delivers one event, echoing the client-chosen seq so callers can
// correlate acks.
func (h *Hub) SendSeq(conn domain.ConnectionID, event string, seq int64, payload any) error {
	b, err := json.Marshal(outEnvelope{Type: event, Seq: seq, Data: payload})
	if err != nil {
		return err
	}
	// trySend never blocks, so holding the lock keeps Drop from closing
	// the channel mid-send.
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.conns[conn]
	if !ok {
		return ErrUnknownConnection
	}
	return c.trySend(b)
}

func (h *Hub) Broadcast(session domain.SessionID, event string, payload any, exclude domain.ConnectionID) {
	b, err := json.Marshal(outEnvelope{Type: event, Data: payload})
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	sent, dropped := 0, 0
	for id := range h.rooms[session] {
		if id == exclude {
			continue
		}
		c, ok := h.conns[id]
		if !ok {
			continue
		}
		if err := c.trySend(b); err != nil {
			dropped++
			continue
		}
		sent++
	}
	log.Debug().Str("module", "adapters.hub").Str("session", string(session)).Str("event", event).Int("sent", sent).Int("dropped", dropped).Msg("broadcast")
}

func (h *Hub) JoinRoom(conn domain.ConnectionID, session domain.SessionID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[session]
	if !ok {
		room = make(map[domain.ConnectionID]struct{})
		h.rooms[session] = room
	}
	room[conn] = struct{}{}
}

func (h *Hub) LeaveRoom(conn domain.ConnectionID, session domain.SessionID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if room, ok := h.rooms[session]; ok {
		delete(room, conn)
		if len(room) == 0 {
			delete(h.rooms, session)
		}
	}
}

func (h *Hub) Drop(conn domain.ConnectionID) {
	h.mu.Lock()
	c, ok := h.conns[conn]
	delete(h.conns, conn)
	for session, room := range h.rooms {
		delete(room, conn)
		if len(room) == 0 {
			delete(h.rooms, session)
		}
	}
	h.mu.Unlock()
	if ok {
		c.close()
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

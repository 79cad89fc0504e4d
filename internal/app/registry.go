package app

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/huddlewire/signaling/internal/domain"
)

type connEntry struct {
	session  domain.SessionID
	timer    *time.Timer
	consumed bool
}

// Registry tracks live connections and their liveness timers. A connection
// that neither heartbeats nor sends anything within the timeout is treated
// exactly like a network-dead one: its timer fires and the expire handler
// runs disconnect cleanup.
type Registry struct {
	timeout  time.Duration
	onExpire func(domain.ConnectionID)

	mu    sync.Mutex
	conns map[domain.ConnectionID]*connEntry
}

func NewRegistry(timeout time.Duration) *Registry {
	return &Registry{
		timeout: timeout,
		conns:   make(map[domain.ConnectionID]*connEntry),
	}
}

// OnExpire installs the liveness-timeout handler. Must be called during
// wiring, before the first Connect.
func (r *Registry) OnExpire(fn func(domain.ConnectionID)) {
	r.onExpire = fn
}

// Connect registers a new connection and arms its liveness timer.
func (r *Registry) Connect() domain.ConnectionID {
	id := domain.ConnectionID(uuid.NewString())
	r.mu.Lock()
	r.conns[id] = &connEntry{
		timer: time.AfterFunc(r.timeout, func() { r.expired(id) }),
	}
	r.mu.Unlock()
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Msg("connection registered")
	return id
}

// Heartbeat re-arms the liveness timer. Safe at any rate including never;
// returns false for unknown or already-released connections.
func (r *Registry) Heartbeat(id domain.ConnectionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[id]
	if !ok || e.consumed {
		return false
	}
	e.timer.Reset(r.timeout)
	return true
}

// SetSession records the connection's current session. Returns false when
// the connection is unknown or already released, so callers can undo work
// done on behalf of a connection that died mid-operation.
func (r *Registry) SetSession(id domain.ConnectionID, sid domain.SessionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[id]
	if !ok || e.consumed {
		return false
	}
	e.session = sid
	return true
}

// ClearSession drops the session back-reference without releasing the
// connection (explicit leave keeps the socket open).
func (r *Registry) ClearSession(id domain.ConnectionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.conns[id]; ok {
		e.session = ""
	}
}

// SessionOf returns the session the connection currently belongs to.
func (r *Registry) SessionOf(id domain.ConnectionID) (domain.SessionID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[id]
	if !ok || e.session == "" {
		return "", false
	}
	return e.session, true
}

// Release consumes the connection record: the timer is stopped and the
// current session returned, exactly once. A timeout-forced close racing a
// transport-level close both land here; the consumed flag makes the loser
// a no-op.
func (r *Registry) Release(id domain.ConnectionID) (domain.SessionID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[id]
	if !ok || e.consumed {
		return "", false
	}
	e.consumed = true
	e.timer.Stop()
	sid := e.session
	delete(r.conns, id)
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Msg("connection released")
	return sid, true
}

func (r *Registry) expired(id domain.ConnectionID) {
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Dur("timeout", r.timeout).Msg("liveness timeout")
	if r.onExpire != nil {
		r.onExpire(id)
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

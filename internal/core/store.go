package core

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/huddlewire/signaling/internal/domain"
)

const maxIDAttempts = 16

// Store owns every session on this instance. It is created at process
// start and discarded at shutdown; there is no persistence and no
// package-level state.
type Store struct {
	ctx    context.Context
	cancel context.CancelFunc

	evictionDelay time.Duration
	ttl           time.Duration
	now           func() time.Time

	mu       sync.RWMutex
	sessions map[domain.SessionID]*session
}

func NewStore(parent context.Context, evictionDelay, ttl time.Duration) *Store {
	ctx, cancel := context.WithCancel(parent)
	return &Store{
		ctx:           ctx,
		cancel:        cancel,
		evictionDelay: evictionDelay,
		ttl:           ttl,
		now:           time.Now,
		sessions:      make(map[domain.SessionID]*session),
	}
}

// Close tears the store down. Pending eviction checks become no-ops.
func (s *Store) Close() {
	s.cancel()
}

// Create stores a fresh empty session and returns its identifier. Session
// codes are random; a collision with any existing record (including one
// pending eviction) forces a retry, so identifiers are never reused while
// a record exists for them.
func (s *Store) Create(meta domain.SessionMeta) (domain.SessionID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for range maxIDAttempts {
		id := domain.NewSessionID()
		if _, exists := s.sessions[id]; exists {
			continue
		}
		s.sessions[id] = newSession(id, meta, s.now())
		log.Info().Str("module", "core.store").Str("session", string(id)).Msg("session created")
		return id, nil
	}
	log.Error().Str("module", "core.store").Int("attempts", maxIDAttempts).Msg("could not generate a fresh session id")
	return "", domain.ErrIDSpaceExhausted
}

func (s *Store) lookup(id domain.SessionID) (*session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// Get returns a read-only view of the session.
func (s *Store) Get(id domain.SessionID) (domain.SessionInfo, error) {
	sess, ok := s.lookup(id)
	if !ok {
		return domain.SessionInfo{}, domain.ErrSessionNotFound
	}
	return sess.info(), nil
}

// Participants returns the current membership snapshot.
func (s *Store) Participants(id domain.SessionID) ([]domain.Participant, error) {
	sess, ok := s.lookup(id)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return sess.snapshot(), nil
}

// Join inserts the participant with state connecting and returns the other
// members as of the insertion. Joining never creates a session. A rejoin
// into an emptied session implicitly cancels its pending eviction.
func (s *Store) Join(id domain.SessionID, pid domain.ParticipantID) ([]domain.Participant, error) {
	sess, ok := s.lookup(id)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	others, ok := sess.join(pid)
	if !ok {
		// Evicted between lookup and lock.
		return nil, domain.ErrSessionNotFound
	}
	log.Info().Str("module", "core.store").Str("session", string(id)).Str("participant", string(pid)).Msg("participant joined")
	return others, nil
}

// Leave removes the participant and reports whether it was present.
// Idempotent: absent session or participant is a no-op (disconnect races
// are expected). When the session becomes empty it is not deleted; a
// delayed recheck evicts it only if still empty.
func (s *Store) Leave(id domain.SessionID, pid domain.ParticipantID) bool {
	sess, ok := s.lookup(id)
	if !ok {
		return false
	}
	removed, emptied := sess.leave(pid, s.now())
	if emptied {
		log.Info().Str("module", "core.store").Str("session", string(id)).Dur("delay", s.evictionDelay).Msg("session emptied, eviction scheduled")
		time.AfterFunc(s.evictionDelay, func() { s.evictIfStillEmpty(id) })
	}
	return removed
}

// UpdateState records the participant's reported state and reports whether
// it was applied. Absent session or participant is silently ignored.
func (s *Store) UpdateState(id domain.SessionID, pid domain.ParticipantID, state string) bool {
	sess, ok := s.lookup(id)
	if !ok {
		return false
	}
	if !sess.updateState(pid, state) {
		return false
	}
	log.Debug().Str("module", "core.store").Str("session", string(id)).Str("participant", string(pid)).Str("state", state).Msg("participant state updated")
	return true
}

func (s *Store) evictIfStillEmpty(id domain.SessionID) {
	if s.ctx.Err() != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if len(sess.participants) > 0 || sess.emptiedAt.IsZero() {
		return
	}
	// A stale timer from an earlier emptying must not cut the current
	// window short: the session emptied again since, and the timer
	// scheduled by that emptying will recheck in time.
	if s.now().Sub(sess.emptiedAt) < s.evictionDelay {
		return
	}
	sess.deleted = true
	delete(s.sessions, id)
	log.Info().Str("module", "core.store").Str("session", string(id)).Msg("empty session evicted")
}

// Delete removes the session unconditionally and returns the participants
// it still held. Used by the expiry sweep and the admin API.
func (s *Store) Delete(id domain.SessionID) ([]domain.Participant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	remaining := make([]domain.Participant, 0, len(sess.participants))
	for _, p := range sess.participants {
		remaining = append(remaining, *p)
	}
	sess.deleted = true
	delete(s.sessions, id)
	log.Info().Str("module", "core.store").Str("session", string(id)).Int("participants", len(remaining)).Msg("session deleted")
	return remaining, true
}

// Expired lists sessions past the absolute horizon, occupied or not.
func (s *Store) Expired() []domain.SessionID {
	cutoff := s.now().Add(-s.ttl)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.SessionID
	for id, sess := range s.sessions {
		if sess.createdAt.Before(cutoff) {
			out = append(out, id)
		}
	}
	return out
}

// List returns a view of all sessions, for the admin API.
func (s *Store) List() []domain.SessionInfo {
	s.mu.RLock()
	sessions := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.RUnlock()

	out := make([]domain.SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sess.info())
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

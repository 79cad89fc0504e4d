package core

import (
	"sync"
	"time"

	"github.com/huddlewire/signaling/internal/domain"
)

// session is the store's per-session record. All membership mutation goes
// through its mutex so concurrent join/leave/update on one session are
// serialized without blocking unrelated sessions.
type session struct {
	id        domain.SessionID
	createdAt time.Time
	meta      domain.SessionMeta

	mu           sync.Mutex
	participants map[domain.ParticipantID]*domain.Participant
	emptiedAt    time.Time // zero while occupied
	deleted      bool      // set under mu when evicted; joins arriving late see it
}

func newSession(id domain.SessionID, meta domain.SessionMeta, now time.Time) *session {
	return &session{
		id:           id,
		createdAt:    now,
		meta:         meta,
		participants: make(map[domain.ParticipantID]*domain.Participant),
	}
}

// join inserts the participant and returns a snapshot of the other members
// taken atomically at insertion time. A join into an evicted record fails.
func (s *session) join(pid domain.ParticipantID) ([]domain.Participant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleted {
		return nil, false
	}
	others := make([]domain.Participant, 0, len(s.participants))
	for id, p := range s.participants {
		if id != pid {
			others = append(others, *p)
		}
	}
	s.participants[pid] = &domain.Participant{ID: pid, State: domain.StateConnecting}
	s.emptiedAt = time.Time{}
	return others, true
}

// leave removes the participant if present. removed reports whether the
// participant was actually in the session; emptied reports whether the
// session became empty by this call, i.e. the caller should schedule the
// deferred eviction check.
func (s *session) leave(pid domain.ParticipantID, now time.Time) (removed, emptied bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.participants[pid]; !ok {
		return false, false
	}
	delete(s.participants, pid)
	if len(s.participants) == 0 && !s.deleted {
		s.emptiedAt = now
		return true, true
	}
	return true, false
}

func (s *session) updateState(pid domain.ParticipantID, state string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[pid]
	if !ok {
		return false
	}
	p.State = state
	return true
}

func (s *session) snapshot() []domain.Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Participant, 0, len(s.participants))
	for _, p := range s.participants {
		out = append(out, *p)
	}
	return out
}

func (s *session) info() domain.SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.SessionInfo{
		ID:               s.id,
		CreatedAt:        s.createdAt,
		ParticipantCount: len(s.participants),
		Meta:             s.meta,
	}
}

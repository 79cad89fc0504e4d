package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Sweeper periodically evicts sessions past the absolute expiry horizon,
// regardless of occupancy. It is the backstop for sessions that never
// empty, e.g. one hung connection keeping an abandoned session alive.
type Sweeper struct {
	Orch   *Orchestrator
	Period time.Duration
}

func (s *Sweeper) Run(ctx context.Context) {
	t := time.NewTicker(s.Period)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Sweep()
		}
	}
}

// Sweep runs one pass. Exposed for the admin API and tests.
func (s *Sweeper) Sweep() int {
	evicted := 0
	for _, id := range s.Orch.Store.Expired() {
		if s.Orch.EvictSession(id) {
			evicted++
		}
	}
	if evicted > 0 {
		log.Info().Str("module", "app.sweeper").Int("evicted", evicted).Msg("expired sessions swept")
	}
	return evicted
}

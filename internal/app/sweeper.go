package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Sweeper periodically reclaims empty, idle rooms. A single Run loop
// guarantees sweeps never overlap.
type Sweeper struct {
	Rooms       *RoomRegistry
	Interval    time.Duration
	IdleTimeout time.Duration
}

func (s *Sweeper) Run(ctx context.Context) error {
	if s.Interval <= 0 {
		return fmt.Errorf("sweep interval must be positive, got %s", s.Interval)
	}
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	log.Info().Str("module", "app.sweeper").Dur("interval", s.Interval).Dur("idle_timeout", s.IdleTimeout).Msg("idle sweeper started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "app.sweeper").Msg("idle sweeper stopped")
			return nil
		case now := <-ticker.C:
			if deleted := s.Rooms.SweepIdleRooms(now, s.IdleTimeout); len(deleted) > 0 {
				log.Info().Str("module", "app.sweeper").Int("deleted", len(deleted)).Msg("reclaimed idle rooms")
			}
		}
	}
}

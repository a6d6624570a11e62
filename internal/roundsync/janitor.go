package roundsync

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// StartJanitor evicts sessions idle for longer than idle until ctx ends.
func (c *Coordinator) StartJanitor(ctx context.Context, interval, idle time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	if idle <= 0 {
		idle = 30 * time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				c.evictIdle(now.Add(-idle))
			}
		}
	}()
}

func (c *Coordinator) evictIdle(cutoff time.Time) []string {
	evicted := c.registry.EvictIdleOlderThan(cutoff)
	b := c.currentBroadcaster()
	for _, id := range evicted {
		c.stopTimer(id)
		b.SessionEvicted(id)
		metricSessionsEvicted.Add(1)
		log.Info().Str("game_id", id).Msg("session evicted")
	}
	return evicted
}

package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"telegram-bulk-ops/internal/infra/cache"
)

// SweepWorker periodically purges expired content cache entries from both
// tiers so stale campaign text never outlives its TTL on disk.
type SweepWorker struct {
	interval time.Duration
	cache    *cache.ContentCache
	log      *zerolog.Logger
}

func NewSweepWorker(interval time.Duration, contentCache *cache.ContentCache, logger *zerolog.Logger) *SweepWorker {
	swLog := logger.With().Str("component", "SweepWorker").Logger()
	return &SweepWorker{
		interval: interval,
		cache:    contentCache,
		log:      &swLog,
	}
}

func (w *SweepWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting cache sweep worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping cache sweep worker")
			return ctx.Err()
		case <-ticker.C:
			n := w.cache.Sweep()
			if n > 0 {
				w.log.Info().Int("count", n).Msg("expired cache entries purged")
			}
		}
	}
}

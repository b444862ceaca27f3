package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"telegram-bulk-ops/internal/usecase"
)

// ResumeWorker periodically re-queues active jobs that no runner owns.
// The startup recovery pass handles our own crashes; this catches jobs
// stranded when a peer process dies and its runner lock expires.
type ResumeWorker struct {
	interval time.Duration
	control  usecase.JobControl
	log      *zerolog.Logger
}

func NewResumeWorker(interval time.Duration, control usecase.JobControl, logger *zerolog.Logger) *ResumeWorker {
	rwLog := logger.With().Str("component", "ResumeWorker").Logger()
	return &ResumeWorker{
		interval: interval,
		control:  control,
		log:      &rwLog,
	}
}

func (w *ResumeWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting job resume worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping job resume worker")
			return ctx.Err()
		case <-ticker.C:
			n, err := w.control.ResumeActive(ctx)
			if err != nil {
				w.log.Error().Err(err).Msg("resume sweep failed")
				continue
			}
			if n > 0 {
				w.log.Info().Int("count", n).Msg("stranded jobs re-queued")
			}
		}
	}
}

package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// StaleResetter returns posts stuck in processing to pending.
type StaleResetter interface {
	ResetStale(ctx context.Context, olderThan time.Duration) (int, error)
}

// StaleReclaimer periodically releases posts a crashed worker left in
// processing so the next batch can pick them up again.
type StaleReclaimer struct {
	interval   time.Duration
	staleAfter time.Duration
	posts      StaleResetter
	log        *zerolog.Logger
}

func NewStaleReclaimer(interval, staleAfter time.Duration, posts StaleResetter, logger *zerolog.Logger) *StaleReclaimer {
	if interval <= 0 {
		interval = time.Minute
	}
	l := logger.With().Str("component", "StaleReclaimer").Logger()
	return &StaleReclaimer{interval: interval, staleAfter: staleAfter, posts: posts, log: &l}
}

func (w *StaleReclaimer) Run(ctx context.Context) error {
	w.log.Info().Dur("stale_after", w.staleAfter).Msg("Starting stale reclaimer")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping stale reclaimer")
			return ctx.Err()
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep runs a single reclaim pass and returns the number of posts reset.
func (w *StaleReclaimer) Sweep(ctx context.Context) int {
	n, err := w.posts.ResetStale(ctx, w.staleAfter)
	if err != nil {
		w.log.Error().Err(err).Msg("reset stale posts")
		return 0
	}
	if n > 0 {
		w.log.Warn().Int("count", n).Msg("stale processing posts returned to pending")
	}
	return n
}

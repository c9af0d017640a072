package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// QueueMaintainer is the housekeeping surface of the job queue.
type QueueMaintainer interface {
	Clean(ctx context.Context) (int, error)
	ReclaimStalled(ctx context.Context, olderThan time.Duration) (int, error)
	PublishDepth(ctx context.Context) error
}

// QueueJanitor retries jobs whose worker vanished, prunes finished jobs past
// retention and refreshes the queue depth gauges.
type QueueJanitor struct {
	interval     time.Duration
	stalledAfter time.Duration
	queue        QueueMaintainer
	log          *zerolog.Logger
}

func NewQueueJanitor(interval, stalledAfter time.Duration, q QueueMaintainer, logger *zerolog.Logger) *QueueJanitor {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if stalledAfter <= 0 {
		stalledAfter = 30 * time.Minute
	}
	l := logger.With().Str("component", "QueueJanitor").Logger()
	return &QueueJanitor{interval: interval, stalledAfter: stalledAfter, queue: q, log: &l}
}

func (j *QueueJanitor) Run(ctx context.Context) error {
	j.log.Info().Dur("interval", j.interval).Msg("Starting queue janitor")
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			j.log.Info().Msg("Stopping queue janitor")
			return ctx.Err()
		case <-ticker.C:
			j.Sweep(ctx)
		}
	}
}

func (j *QueueJanitor) Sweep(ctx context.Context) {
	if n, err := j.queue.ReclaimStalled(ctx, j.stalledAfter); err != nil {
		j.log.Error().Err(err).Msg("reclaim stalled jobs failed")
	} else if n > 0 {
		j.log.Warn().Int("reclaimed", n).Dur("stalled_after", j.stalledAfter).Msg("reclaimed stalled jobs")
	}
	removed, err := j.queue.Clean(ctx)
	if err != nil {
		j.log.Error().Err(err).Msg("queue clean failed")
	} else if removed > 0 {
		j.log.Info().Int("removed", removed).Msg("pruned finished jobs")
	}
	if err := j.queue.PublishDepth(ctx); err != nil {
		j.log.Warn().Err(err).Msg("publish queue depth")
	}
}

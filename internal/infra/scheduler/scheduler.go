// Package scheduler wires the cron job that periodically queues embedding
// work for pending posts.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"interview-intel/internal/domain/model"
	"interview-intel/internal/infra/redis"
)

const lockKey = "scheduler:enqueue-pending"

// Enqueuer is the slice of the job queue the scheduler needs.
type Enqueuer interface {
	EnqueueNextPending(ctx context.Context, batchSize int) (*model.EmbeddingJob, error)
}

// Scheduler fires EnqueueNextPending on a cron spec. When several replicas
// run, the redis lock lets one of them enqueue per tick; the queue's
// idempotency key covers the rest.
type Scheduler struct {
	cron      *cron.Cron
	queue     Enqueuer
	locker    redis.Locker
	spec      string
	batchSize int
	lockTTL   time.Duration

	log *zerolog.Logger
}

// New builds a scheduler. locker may be nil for single-instance deployments.
func New(q Enqueuer, locker redis.Locker, spec string, batchSize int, lockTTL time.Duration, logger *zerolog.Logger) *Scheduler {
	l := logger.With().Str("component", "Scheduler").Logger()
	return &Scheduler{
		cron:      cron.New(),
		queue:     q,
		locker:    locker,
		spec:      spec,
		batchSize: batchSize,
		lockTTL:   lockTTL,
		log:       &l,
	}
}

// Start registers the job and starts the cron. One run happens immediately so
// a fresh deployment does not wait for the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.Tick(ctx) }); err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}
	s.cron.Start()
	s.log.Info().Str("spec", s.spec).Int("batch_size", s.batchSize).Msg("cron started")

	go s.Tick(ctx)
	return nil
}

// Stop halts the cron and waits for a running tick to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info().Msg("cron stopped")
}

// Tick runs one enqueue cycle.
func (s *Scheduler) Tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if s.locker != nil {
		token, err := s.locker.TryLock(ctx, lockKey, s.lockTTL)
		if errors.Is(err, redis.ErrLockHeld) {
			s.log.Debug().Msg("enqueue skipped, another instance holds the lock")
			return
		}
		if err != nil {
			// Proceed unlocked; the queue dedups on its job key.
			s.log.Warn().Err(err).Msg("scheduler lock unavailable")
		} else {
			defer func() {
				if err := s.locker.Unlock(context.WithoutCancel(ctx), lockKey, token); err != nil {
					s.log.Warn().Err(err).Msg("scheduler unlock failed")
				}
			}()
		}
	}

	job, err := s.queue.EnqueueNextPending(ctx, s.batchSize)
	if err != nil {
		s.log.Error().Err(err).Msg("enqueue pending failed")
		return
	}
	s.log.Info().Str("job_id", job.ID).Str("state", string(job.State)).Msg("pending batch queued")
}

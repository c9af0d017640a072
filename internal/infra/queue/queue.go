package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"interview-intel/internal/domain"
	"interview-intel/internal/domain/model"
	"interview-intel/internal/domain/ports/adapter"
	"interview-intel/internal/infra/metrics"
)

type Options struct {
	MaxAttempts      int
	BackoffBase      time.Duration
	KeepCompleted    int
	CompletedMaxAge  time.Duration
	KeepFailed       int
	DefaultBatchSize int
	Now              func() time.Time
}

func (o *Options) defaults() {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = 5 * time.Second
	}
	if o.KeepCompleted <= 0 {
		o.KeepCompleted = 1000
	}
	if o.CompletedMaxAge <= 0 {
		o.CompletedMaxAge = 24 * time.Hour
	}
	if o.KeepFailed <= 0 {
		o.KeepFailed = 5000
	}
	if o.DefaultBatchSize <= 0 {
		o.DefaultBatchSize = model.DefaultBatchSize
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Queue is the embedding job queue: durable, prioritised, de-duplicated by
// key, with bounded retries and exponential backoff.
type Queue struct {
	broker adapter.JobBroker
	opts   Options
	log    *zerolog.Logger
}

func New(broker adapter.JobBroker, opts Options, logger *zerolog.Logger) *Queue {
	opts.defaults()
	l := logger.With().Str("component", "embedding_queue").Logger()
	return &Queue{broker: broker, opts: opts, log: &l}
}

// ErrStalled is recorded on jobs reclaimed from a worker that stopped
// reporting.
var ErrStalled = errors.New("job stalled: worker stopped before finishing")

func unavailable(op string, err error) error {
	return domain.NewTransient(op, fmt.Errorf("%w: %w", domain.ErrQueueUnavailable, err))
}

// Enqueue validates spec and adds a job. A live job with the same key is
// returned as-is instead of creating a duplicate.
func (q *Queue) Enqueue(ctx context.Context, spec model.JobSpec) (*model.EmbeddingJob, error) {
	if spec.BatchSize == nil {
		n := q.opts.DefaultBatchSize
		spec.BatchSize = &n
	}
	job, err := model.NewEmbeddingJob(ulid.Make().String(), spec, q.opts.MaxAttempts, q.opts.Now())
	if err != nil {
		return nil, err
	}
	stored, created, err := q.broker.Add(ctx, job)
	if err != nil {
		return nil, unavailable("enqueue", err)
	}
	if !created {
		q.log.Debug().Str("job_id", stored.ID).Str("key", job.Key).Msg("duplicate enqueue ignored")
		return stored, nil
	}
	q.log.Info().
		Str("job_id", stored.ID).
		Str("kind", string(stored.Kind)).
		Int("batch_size", stored.BatchSize).
		Int("post_ids", len(stored.PostIDs)).
		Int("priority", stored.Priority).
		Msg("embedding job enqueued")
	return stored, nil
}

// EnqueueNextPending queues a batch over the oldest pending posts.
func (q *Queue) EnqueueNextPending(ctx context.Context, batchSize int) (*model.EmbeddingJob, error) {
	return q.Enqueue(ctx, model.JobSpec{BatchSize: &batchSize})
}

// Claim hands the next runnable job to the caller, or domain.ErrNotFound.
func (q *Queue) Claim(ctx context.Context) (*model.EmbeddingJob, error) {
	now := q.opts.Now()
	job, err := q.broker.ClaimNext(ctx, now)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, unavailable("claim", err)
	}
	job.State = model.JobStateActive
	job.ProcessedAt = &now
	if err := q.broker.Update(ctx, job); err != nil {
		return nil, unavailable("claim", err)
	}
	return job, nil
}

func (q *Queue) Complete(ctx context.Context, job *model.EmbeddingJob, res model.JobResult) error {
	now := q.opts.Now()
	job.State = model.JobStateCompleted
	job.Result = &res
	job.FinishedAt = &now
	job.LastError = ""
	if err := q.broker.Update(ctx, job); err != nil {
		return unavailable("complete", err)
	}
	return nil
}

// Fail records an attempt. The job is delayed by Backoff(attempts) while
// attempts remain; afterwards it is failed and ExhaustedRetriesError returned.
func (q *Queue) Fail(ctx context.Context, job *model.EmbeddingJob, cause error) error {
	now := q.opts.Now()
	job.Attempts++
	if cause != nil {
		job.LastError = cause.Error()
	}
	if job.Attempts < job.MaxAttempts {
		job.State = model.JobStateDelayed
		job.RunAt = now.Add(q.Backoff(job.Attempts))
		if err := q.broker.Update(ctx, job); err != nil {
			return unavailable("retry", err)
		}
		return nil
	}
	job.State = model.JobStateFailed
	job.FinishedAt = &now
	if err := q.broker.Update(ctx, job); err != nil {
		return unavailable("fail", err)
	}
	return &domain.ExhaustedRetriesError{JobID: job.ID, Attempts: job.Attempts, Err: cause}
}

// Release puts an active job back to waiting without spending an attempt.
// Workers use it when they stop before finishing a job.
func (q *Queue) Release(ctx context.Context, job *model.EmbeddingJob) error {
	job.State = model.JobStateWaiting
	job.ProcessedAt = nil
	if err := q.broker.Update(ctx, job); err != nil {
		return unavailable("release", err)
	}
	return nil
}

// ReclaimStalled fails every active job claimed before now-olderThan, so a
// job orphaned by a dead worker goes through the normal retry path and frees
// its key. Returns how many jobs were reclaimed.
func (q *Queue) ReclaimStalled(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := q.opts.Now().Add(-olderThan)
	jobs, err := q.broker.Stalled(ctx, cutoff)
	if err != nil {
		return 0, unavailable("reclaim", err)
	}
	n := 0
	for _, job := range jobs {
		err := q.Fail(ctx, job, ErrStalled)
		var exhausted *domain.ExhaustedRetriesError
		if err != nil && !errors.As(err, &exhausted) {
			return n, err
		}
		n++
		q.log.Warn().Str("job_id", job.ID).Int("attempts", job.Attempts).Str("state", string(job.State)).Msg("stalled job reclaimed")
	}
	return n, nil
}

// Backoff returns base * 2^(attempt-1).
func (q *Queue) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return q.opts.BackoffBase << (attempt - 1)
}

func (q *Queue) Get(ctx context.Context, id string) (*model.EmbeddingJob, error) {
	job, err := q.broker.Get(ctx, id)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, unavailable("get", err)
	}
	return job, err
}

func (q *Queue) Stats(ctx context.Context) (model.QueueStats, error) {
	s, err := q.broker.Counts(ctx)
	if err != nil {
		return s, unavailable("stats", err)
	}
	return s, nil
}

// Clean applies retention: completed jobs beyond the newest KeepCompleted or
// older than CompletedMaxAge, failed jobs beyond the newest KeepFailed.
func (q *Queue) Clean(ctx context.Context) (int, error) {
	cutoff := q.opts.Now().Add(-q.opts.CompletedMaxAge)
	a, err := q.broker.Prune(ctx, model.JobStateCompleted, q.opts.KeepCompleted, cutoff)
	if err != nil {
		return 0, unavailable("clean", err)
	}
	b, err := q.broker.Prune(ctx, model.JobStateFailed, q.opts.KeepFailed, time.Time{})
	if err != nil {
		return a, unavailable("clean", err)
	}
	return a + b, nil
}

// PublishDepth exports current queue counts as gauges.
func (q *Queue) PublishDepth(ctx context.Context) error {
	s, err := q.Stats(ctx)
	if err != nil {
		return err
	}
	metrics.SetQueueDepth(s.Waiting, s.Active, s.Completed, s.Failed, s.Delayed)
	return nil
}

package adapter

import (
	"context"
	"time"

	"interview-intel/internal/domain/model"
)

// JobBroker is the durable storage behind the embedding job queue. Every
// method must be atomic with respect to concurrent callers.
type JobBroker interface {
	// Add stores job unless a live job already holds job.Key, in which case
	// the existing job is returned with created=false.
	Add(ctx context.Context, job *model.EmbeddingJob) (existing *model.EmbeddingJob, created bool, err error)
	// ClaimNext promotes delayed jobs whose RunAt <= now, then moves the best
	// waiting job (lowest priority, then oldest) to active. Returns
	// domain.ErrNotFound when nothing is runnable.
	ClaimNext(ctx context.Context, now time.Time) (*model.EmbeddingJob, error)
	// Update persists job after a state change and maintains the state indexes.
	Update(ctx context.Context, job *model.EmbeddingJob) error
	Get(ctx context.Context, id string) (*model.EmbeddingJob, error)
	// Stalled returns active jobs claimed before startedBefore.
	Stalled(ctx context.Context, startedBefore time.Time) ([]*model.EmbeddingJob, error)
	Counts(ctx context.Context) (model.QueueStats, error)
	// Prune removes finished jobs in state beyond the newest keep, or
	// finished before olderThan when olderThan is non-zero.
	Prune(ctx context.Context, state model.JobState, keep int, olderThan time.Time) (int, error)
}

package usecase

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"interview-intel/internal/domain"
	"interview-intel/internal/domain/model"
	"interview-intel/internal/domain/ports/repository"
	"interview-intel/internal/infra/logging"
)

// EmbeddingQueue is the producer side of the embedding job queue.
type EmbeddingQueue interface {
	Enqueue(ctx context.Context, spec model.JobSpec) (*model.EmbeddingJob, error)
	Get(ctx context.Context, id string) (*model.EmbeddingJob, error)
	Stats(ctx context.Context) (model.QueueStats, error)
}

// Compile-time check
var _ EmbeddingUseCase = (*embeddingUC)(nil)

type EmbeddingUseCase interface {
	Enqueue(ctx context.Context, spec model.JobSpec) (*model.EmbeddingJob, error)
	GetJob(ctx context.Context, id string) (*model.EmbeddingJob, error)
	QueueStats(ctx context.Context) (model.QueueStats, error)
	CoverageStats(ctx context.Context) (*model.EmbeddingStats, error)
}

type embeddingUC struct {
	queue EmbeddingQueue
	posts repository.PostRepository

	log *zerolog.Logger
}

func NewEmbeddingUseCase(queue EmbeddingQueue, posts repository.PostRepository, logger *zerolog.Logger) *embeddingUC {
	return &embeddingUC{queue: queue, posts: posts, log: logger}
}

func (u *embeddingUC) Enqueue(ctx context.Context, spec model.JobSpec) (*model.EmbeddingJob, error) {
	job, err := u.queue.Enqueue(ctx, spec)
	if err != nil {
		return nil, err
	}
	logging.With(ctx, u.log).Info().
		Str("job_id", job.ID).
		Str("kind", string(job.Kind)).
		Int("posts", len(job.PostIDs)).
		Int("priority", job.Priority).
		Msg("embedding job enqueued")
	return job, nil
}

func (u *embeddingUC) GetJob(ctx context.Context, id string) (*model.EmbeddingJob, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.NewInvalidInput("id", "must not be empty")
	}
	return u.queue.Get(ctx, id)
}

func (u *embeddingUC) QueueStats(ctx context.Context) (model.QueueStats, error) {
	return u.queue.Stats(ctx)
}

func (u *embeddingUC) CoverageStats(ctx context.Context) (*model.EmbeddingStats, error) {
	return u.posts.EmbeddingStats(ctx)
}

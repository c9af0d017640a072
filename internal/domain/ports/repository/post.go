package repository

import (
	"context"
	"time"

	"interview-intel/internal/domain/model"
)

type PostRepository interface {
	// Save upserts content and metadata. Embedding columns are left untouched
	// on conflict.
	Save(ctx context.Context, tx Tx, p *model.Post) error
	FindByID(ctx context.Context, tx Tx, postID string) (*model.Post, error)

	// ClaimPending atomically selects up to limit pending posts (oldest first,
	// retry count below maxRetries) and marks them processing. Concurrent
	// callers never receive the same post.
	ClaimPending(ctx context.Context, limit, maxRetries int) ([]*model.Post, error)
	// ClaimByIDs marks the named posts processing and returns them, skipping
	// posts another worker already holds.
	ClaimByIDs(ctx context.Context, postIDs []string) ([]*model.Post, error)

	SaveEmbedding(ctx context.Context, tx Tx, postID string, vec []float32, modelName string) error
	// MarkEmbeddingFailed bumps the retry count; the post returns to pending
	// until maxRetries is reached, then it is failed.
	MarkEmbeddingFailed(ctx context.Context, tx Tx, postID, reason string, maxRetries int) error
	// ResetStale returns processing posts untouched since olderThan to pending.
	ResetStale(ctx context.Context, olderThan time.Duration) (int, error)

	Search(ctx context.Context, q model.SearchQuery) ([]model.ScoredPost, error)
	EmbeddingStats(ctx context.Context) (*model.EmbeddingStats, error)
	// TopicCounts counts topics over embedded posts created after since
	// (sample capped at 500 posts) and returns the sample size.
	TopicCounts(ctx context.Context, since time.Time, limit int) ([]model.TopicCount, int, error)
}

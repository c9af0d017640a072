package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"interview-intel/internal/domain/model"
	"interview-intel/internal/domain/ports/repository"
	"interview-intel/internal/infra/metrics"
	red "interview-intel/internal/infra/redis"
)

var _ repository.PostRepository = (*postRepoCacheDecorator)(nil)

// postRepoCacheDecorator caches single-post lookups, which the comparison
// endpoint hits for every request against the same anchor post.
type postRepoCacheDecorator struct {
	inner repository.PostRepository
	cache red.RedisClient
	ttl   time.Duration
}

func NewPostRepoCacheDecorator(inner repository.PostRepository, cache red.RedisClient) repository.PostRepository {
	return &postRepoCacheDecorator{
		inner: inner,
		cache: cache,
		ttl:   10 * time.Minute,
	}
}

func postCacheKey(id string) string { return fmt.Sprintf("post:%s", id) }

func postIDs(posts []*model.Post) []string {
	ids := make([]string, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.PostID)
	}
	return ids
}

func (d *postRepoCacheDecorator) invalidate(ctx context.Context, ids ...string) {
	if len(ids) == 0 {
		return
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = postCacheKey(id)
	}
	if err := d.cache.Del(ctx, keys...); err == nil {
		metrics.AddCacheInvalidations("post", len(keys))
	}
}

func (d *postRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, p *model.Post) error {
	d.invalidate(ctx, p.PostID)
	return d.inner.Save(ctx, tx, p)
}

func (d *postRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, postID string) (*model.Post, error) {
	key := postCacheKey(postID)
	val, err := d.cache.Get(ctx, key)
	switch {
	case err == nil:
		var p model.Post
		if json.Unmarshal([]byte(val), &p) == nil {
			metrics.IncCacheRequest("post", "hit")
			return &p, nil
		}
		metrics.IncCacheRequest("post", "error")
	case red.IsMiss(err):
		metrics.IncCacheRequest("post", "miss")
	default:
		metrics.IncCacheRequest("post", "error")
	}

	p, err := d.inner.FindByID(ctx, tx, postID)
	if err != nil {
		return nil, err
	}
	// Posts are only worth caching once their embedding is settled.
	if p != nil && p.EmbeddingStatus != model.EmbeddingStatusProcessing {
		if b, err := json.Marshal(p); err == nil {
			_ = d.cache.Set(ctx, key, b, d.ttl)
		}
	}
	return p, nil
}

func (d *postRepoCacheDecorator) ClaimPending(ctx context.Context, limit, maxRetries int) ([]*model.Post, error) {
	posts, err := d.inner.ClaimPending(ctx, limit, maxRetries)
	d.invalidate(ctx, postIDs(posts)...)
	return posts, err
}

func (d *postRepoCacheDecorator) ClaimByIDs(ctx context.Context, ids []string) ([]*model.Post, error) {
	posts, err := d.inner.ClaimByIDs(ctx, ids)
	d.invalidate(ctx, postIDs(posts)...)
	return posts, err
}

func (d *postRepoCacheDecorator) SaveEmbedding(ctx context.Context, tx repository.Tx, postID string, vec []float32, modelName string) error {
	d.invalidate(ctx, postID)
	return d.inner.SaveEmbedding(ctx, tx, postID, vec, modelName)
}

func (d *postRepoCacheDecorator) MarkEmbeddingFailed(ctx context.Context, tx repository.Tx, postID, reason string, maxRetries int) error {
	d.invalidate(ctx, postID)
	return d.inner.MarkEmbeddingFailed(ctx, tx, postID, reason, maxRetries)
}

// Pass-through methods that don't need caching
func (d *postRepoCacheDecorator) ResetStale(ctx context.Context, olderThan time.Duration) (int, error) {
	return d.inner.ResetStale(ctx, olderThan)
}

func (d *postRepoCacheDecorator) Search(ctx context.Context, q model.SearchQuery) ([]model.ScoredPost, error) {
	return d.inner.Search(ctx, q)
}

func (d *postRepoCacheDecorator) EmbeddingStats(ctx context.Context) (*model.EmbeddingStats, error) {
	return d.inner.EmbeddingStats(ctx)
}

func (d *postRepoCacheDecorator) TopicCounts(ctx context.Context, since time.Time, limit int) ([]model.TopicCount, int, error) {
	return d.inner.TopicCounts(ctx, since, limit)
}

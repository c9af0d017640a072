//go:build !integration

package postgres

import (
	"context"
	"time"

	"interview-intel/internal/domain/model"
	"interview-intel/internal/domain/ports/repository"
	red "interview-intel/internal/infra/redis"
)

// --- Mocks for Cache Decorator Tests ---

// mockInnerPostRepo mocks the database repository that the Post decorator wraps.
type mockInnerPostRepo struct {
	SaveFunc                func(ctx context.Context, tx repository.Tx, p *model.Post) error
	FindByIDFunc            func(ctx context.Context, tx repository.Tx, id string) (*model.Post, error)
	ClaimPendingFunc        func(ctx context.Context, limit, maxRetries int) ([]*model.Post, error)
	ClaimByIDsFunc          func(ctx context.Context, ids []string) ([]*model.Post, error)
	SaveEmbeddingFunc       func(ctx context.Context, tx repository.Tx, id string, vec []float32, modelName string) error
	MarkEmbeddingFailedFunc func(ctx context.Context, tx repository.Tx, id, reason string, maxRetries int) error
	ResetStaleFunc          func(ctx context.Context, olderThan time.Duration) (int, error)
	SearchFunc              func(ctx context.Context, q model.SearchQuery) ([]model.ScoredPost, error)
	EmbeddingStatsFunc      func(ctx context.Context) (*model.EmbeddingStats, error)
	TopicCountsFunc         func(ctx context.Context, since time.Time, limit int) ([]model.TopicCount, int, error)
}

func (m *mockInnerPostRepo) Save(ctx context.Context, tx repository.Tx, p *model.Post) error {
	return m.SaveFunc(ctx, tx, p)
}
func (m *mockInnerPostRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Post, error) {
	return m.FindByIDFunc(ctx, tx, id)
}
func (m *mockInnerPostRepo) ClaimPending(ctx context.Context, limit, maxRetries int) ([]*model.Post, error) {
	return m.ClaimPendingFunc(ctx, limit, maxRetries)
}
func (m *mockInnerPostRepo) ClaimByIDs(ctx context.Context, ids []string) ([]*model.Post, error) {
	return m.ClaimByIDsFunc(ctx, ids)
}
func (m *mockInnerPostRepo) SaveEmbedding(ctx context.Context, tx repository.Tx, id string, vec []float32, modelName string) error {
	return m.SaveEmbeddingFunc(ctx, tx, id, vec, modelName)
}
func (m *mockInnerPostRepo) MarkEmbeddingFailed(ctx context.Context, tx repository.Tx, id, reason string, maxRetries int) error {
	return m.MarkEmbeddingFailedFunc(ctx, tx, id, reason, maxRetries)
}
func (m *mockInnerPostRepo) ResetStale(ctx context.Context, olderThan time.Duration) (int, error) {
	return m.ResetStaleFunc(ctx, olderThan)
}
func (m *mockInnerPostRepo) Search(ctx context.Context, q model.SearchQuery) ([]model.ScoredPost, error) {
	return m.SearchFunc(ctx, q)
}
func (m *mockInnerPostRepo) EmbeddingStats(ctx context.Context) (*model.EmbeddingStats, error) {
	return m.EmbeddingStatsFunc(ctx)
}
func (m *mockInnerPostRepo) TopicCounts(ctx context.Context, since time.Time, limit int) ([]model.TopicCount, int, error) {
	return m.TopicCountsFunc(ctx, since, limit)
}

// mockRedisClient mocks our Redis client wrapper.
type mockRedisClient struct {
	GetFunc   func(ctx context.Context, key string) (string, error)
	SetFunc   func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	DelFunc   func(ctx context.Context, keys ...string) error
	PingFunc  func(ctx context.Context) error
	CloseFunc func() error
}

var _ red.RedisClient = &mockRedisClient{}

func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	return m.GetFunc(ctx, key)
}
func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return m.SetFunc(ctx, key, value, expiration)
}
func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	return m.DelFunc(ctx, keys...)
}
func (m *mockRedisClient) Ping(ctx context.Context) error { return m.PingFunc(ctx) }
func (m *mockRedisClient) Close() error { return m.CloseFunc() }

//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"io"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"interview-intel/internal/domain"
	"interview-intel/internal/domain/model"
	"interview-intel/internal/domain/ports/adapter"
	"interview-intel/internal/domain/ports/repository"
)

// -----------------------------
// Utilities: tiny helpers
// -----------------------------

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func strPtr(s string) *string { return &s }

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// =============================
// Repositories
// =============================

// ---- Mock PostRepository ----

// MockPostRepo keeps posts in memory. Search does a brute-force cosine scan
// with the same filter and ordering rules as the store.
type MockPostRepo struct {
	mu    sync.RWMutex
	posts map[string]*model.Post

	SearchFunc   func(ctx context.Context, q model.SearchQuery) ([]model.ScoredPost, error)
	FindByIDFunc func(ctx context.Context, postID string) (*model.Post, error)
	StatsFunc    func(ctx context.Context) (*model.EmbeddingStats, error)
	TopicsFunc   func(ctx context.Context, since time.Time, limit int) ([]model.TopicCount, int, error)

	Searches []model.SearchQuery
}

var _ repository.PostRepository = (*MockPostRepo)(nil)

func NewMockPostRepo(posts ...*model.Post) *MockPostRepo {
	m := &MockPostRepo{posts: map[string]*model.Post{}}
	for _, p := range posts {
		m.posts[p.PostID] = p
	}
	return m
}

func (m *MockPostRepo) Save(ctx context.Context, tx repository.Tx, p *model.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.posts[p.PostID] = &cp
	return nil
}

func (m *MockPostRepo) FindByID(ctx context.Context, tx repository.Tx, postID string) (*model.Post, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, postID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.posts[postID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockPostRepo) ClaimPending(ctx context.Context, limit, maxRetries int) ([]*model.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var pending []*model.Post
	for _, p := range m.posts {
		if p.EmbeddingStatus == model.EmbeddingStatusPending && p.EmbeddingRetryCount < maxRetries {
			pending = append(pending, p)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].CreatedAt.Before(pending[j].CreatedAt) })
	if len(pending) > limit {
		pending = pending[:limit]
	}
	out := make([]*model.Post, 0, len(pending))
	for _, p := range pending {
		p.EmbeddingStatus = model.EmbeddingStatusProcessing
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MockPostRepo) ClaimByIDs(ctx context.Context, postIDs []string) ([]*model.Post, error) {
	return nil, errors.New("not used")
}

func (m *MockPostRepo) SaveEmbedding(ctx context.Context, tx repository.Tx, postID string, vec []float32, modelName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[postID]
	if !ok {
		return domain.ErrNotFound
	}
	p.Embedding = vec
	p.EmbeddingModel = modelName
	p.EmbeddingStatus = model.EmbeddingStatusCompleted
	return nil
}

func (m *MockPostRepo) MarkEmbeddingFailed(ctx context.Context, tx repository.Tx, postID, reason string, maxRetries int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[postID]
	if !ok {
		return domain.ErrNotFound
	}
	p.EmbeddingRetryCount++
	p.EmbeddingError = reason
	p.EmbeddingStatus = model.EmbeddingStatusPending
	if p.EmbeddingRetryCount >= maxRetries {
		p.EmbeddingStatus = model.EmbeddingStatusFailed
	}
	return nil
}

// Get returns a copy of the stored post.
func (m *MockPostRepo) Get(postID string) *model.Post {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.posts[postID]
	if !ok {
		return nil
	}
	cp := *p
	return &cp
}

func (m *MockPostRepo) ResetStale(ctx context.Context, olderThan time.Duration) (int, error) {
	return 0, nil
}

func (m *MockPostRepo) Search(ctx context.Context, q model.SearchQuery) ([]model.ScoredPost, error) {
	m.mu.Lock()
	m.Searches = append(m.Searches, q)
	m.mu.Unlock()
	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, q)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.ScoredPost
	for _, p := range m.posts {
		if !p.HasEmbedding() || p.PostID == q.ExcludePostID {
			continue
		}
		if !matches(q.Filters.Role, p.Role) || !matches(q.Filters.Level, p.Level) ||
			!matches(q.Filters.Outcome, p.Outcome) || !matches(q.Filters.Company, p.Company) {
			continue
		}
		if q.Since != nil && p.CreatedAt.Before(*q.Since) {
			continue
		}
		sim := cosine(q.Vector, p.Embedding)
		if sim < q.MinSimilarity {
			continue
		}
		cp := *p
		out = append(out, model.ScoredPost{Post: &cp, Similarity: sim})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].Post.CreatedAt.After(out[j].Post.CreatedAt)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func matches(want, got *string) bool {
	return want == nil || (got != nil && *want == *got)
}

func (m *MockPostRepo) EmbeddingStats(ctx context.Context) (*model.EmbeddingStats, error) {
	if m.StatsFunc != nil {
		return m.StatsFunc(ctx)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := &model.EmbeddingStats{Total: len(m.posts)}
	for _, p := range m.posts {
		if p.HasEmbedding() {
			s.WithEmbeddings++
		}
	}
	return s, nil
}

func (m *MockPostRepo) TopicCounts(ctx context.Context, since time.Time, limit int) ([]model.TopicCount, int, error) {
	if m.TopicsFunc != nil {
		return m.TopicsFunc(ctx, since, limit)
	}
	return nil, 0, nil
}

type noopTxManager struct{}

func (noopTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, nil)
}

// ---- Mock IntelligenceRepository ----

type MockIntelligenceRepo struct {
	mu    sync.Mutex
	Calls int

	HiringProcessFunc    func(ctx context.Context, ids []string) (*model.HiringProcessAggregate, error)
	RejectionsFunc       func(ctx context.Context, ids []string) ([]model.RejectionAggregate, error)
	QuestionsFunc        func(ctx context.Context, ids []string) ([]model.QuestionAggregate, error)
	InterviewerFocusFunc func(ctx context.Context, ids []string) ([]model.FocusAggregate, error)
	TimelinesFunc        func(ctx context.Context, ids []string) ([]model.TimelineAggregate, error)
	ExperienceLevelsFunc func(ctx context.Context, ids []string) ([]model.LevelAggregate, error)
}

var _ repository.IntelligenceRepository = (*MockIntelligenceRepo)(nil)

func (m *MockIntelligenceRepo) called() {
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()
}

func (m *MockIntelligenceRepo) HiringProcess(ctx context.Context, ids []string) (*model.HiringProcessAggregate, error) {
	m.called()
	if m.HiringProcessFunc != nil {
		return m.HiringProcessFunc(ctx, ids)
	}
	return &model.HiringProcessAggregate{}, nil
}

func (m *MockIntelligenceRepo) Rejections(ctx context.Context, ids []string) ([]model.RejectionAggregate, error) {
	m.called()
	if m.RejectionsFunc != nil {
		return m.RejectionsFunc(ctx, ids)
	}
	return nil, nil
}

func (m *MockIntelligenceRepo) Questions(ctx context.Context, ids []string) ([]model.QuestionAggregate, error) {
	m.called()
	if m.QuestionsFunc != nil {
		return m.QuestionsFunc(ctx, ids)
	}
	return nil, nil
}

func (m *MockIntelligenceRepo) InterviewerFocus(ctx context.Context, ids []string) ([]model.FocusAggregate, error) {
	m.called()
	if m.InterviewerFocusFunc != nil {
		return m.InterviewerFocusFunc(ctx, ids)
	}
	return nil, nil
}

func (m *MockIntelligenceRepo) Timelines(ctx context.Context, ids []string) ([]model.TimelineAggregate, error) {
	m.called()
	if m.TimelinesFunc != nil {
		return m.TimelinesFunc(ctx, ids)
	}
	return nil, nil
}

func (m *MockIntelligenceRepo) ExperienceLevels(ctx context.Context, ids []string) ([]model.LevelAggregate, error) {
	m.called()
	if m.ExperienceLevelsFunc != nil {
		return m.ExperienceLevelsFunc(ctx, ids)
	}
	return nil, nil
}

// =============================
// Adapters
// =============================

// ---- Mock Embedder ----

// MockEmbedder returns the vector registered for a text, or a fixed fallback.
type MockEmbedder struct {
	mu      sync.Mutex
	Vectors map[string][]float32
	Calls   []string

	EmbedFunc func(ctx context.Context, text string) ([]float32, error)
}

var _ adapter.Embedder = (*MockEmbedder)(nil)

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, text)
	m.mu.Unlock()
	if m.EmbedFunc != nil {
		return m.EmbedFunc(ctx, text)
	}
	if v, ok := m.Vectors[text]; ok {
		return v, nil
	}
	return []float32{1, 0, 0}, nil
}

func (m *MockEmbedder) Model() string   { return "mock-embed" }
func (m *MockEmbedder) Dimensions() int { return 0 }

// ---- Mock AIServiceAdapter ----

type MockAI struct {
	mu sync.Mutex

	CountTokensFunc   func(ctx context.Context, model string, msgs []adapter.Message) (int, error)
	ChatWithUsageFunc func(ctx context.Context, model string, msgs []adapter.Message, opts adapter.ChatOptions) (string, adapter.Usage, error)

	Calls struct {
		Count int
		Chat  [][]adapter.Message
		Opts  []adapter.ChatOptions
	}
}

var _ adapter.AIServiceAdapter = (*MockAI)(nil)

func (m *MockAI) ListModels(ctx context.Context) ([]string, error) {
	return []string{"mock-chat"}, nil
}

func (m *MockAI) GetModelInfo(model string) (adapter.ModelInfo, error) {
	return adapter.ModelInfo{Name: model}, nil
}

func (m *MockAI) CountTokens(ctx context.Context, model string, msgs []adapter.Message) (int, error) {
	m.mu.Lock()
	m.Calls.Count++
	m.mu.Unlock()
	if m.CountTokensFunc != nil {
		return m.CountTokensFunc(ctx, model, msgs)
	}
	n := 0
	for _, msg := range msgs {
		n += len(strings.Fields(msg.Content))
	}
	return n, nil
}

func (m *MockAI) Chat(ctx context.Context, model string, msgs []adapter.Message, opts adapter.ChatOptions) (string, error) {
	reply, _, err := m.ChatWithUsage(ctx, model, msgs, opts)
	return reply, err
}

func (m *MockAI) ChatWithUsage(ctx context.Context, model string, msgs []adapter.Message, opts adapter.ChatOptions) (string, adapter.Usage, error) {
	m.mu.Lock()
	m.Calls.Chat = append(m.Calls.Chat, msgs)
	m.Calls.Opts = append(m.Calls.Opts, opts)
	m.mu.Unlock()
	if m.ChatWithUsageFunc != nil {
		return m.ChatWithUsageFunc(ctx, model, msgs, opts)
	}
	return "mock analysis", adapter.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}, nil
}

// ---- Mock EmbeddingQueue ----

type MockQueue struct {
	EnqueueFunc func(ctx context.Context, spec model.JobSpec) (*model.EmbeddingJob, error)
	GetFunc     func(ctx context.Context, id string) (*model.EmbeddingJob, error)
	StatsFunc   func(ctx context.Context) (model.QueueStats, error)
}

func (m *MockQueue) Enqueue(ctx context.Context, spec model.JobSpec) (*model.EmbeddingJob, error) {
	if m.EnqueueFunc != nil {
		return m.EnqueueFunc(ctx, spec)
	}
	return model.NewEmbeddingJob("job-1", spec, 3, time.Now())
}

func (m *MockQueue) Get(ctx context.Context, id string) (*model.EmbeddingJob, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *MockQueue) Stats(ctx context.Context) (model.QueueStats, error) {
	if m.StatsFunc != nil {
		return m.StatsFunc(ctx)
	}
	return model.QueueStats{}, nil
}

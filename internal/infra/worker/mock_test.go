//go:build !integration

package worker

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"

	"interview-intel/internal/domain"
	"interview-intel/internal/domain/model"
	"interview-intel/internal/domain/ports/repository"
)

// memPostRepo is an in-memory PostRepository with the same claim semantics
// as the SQL implementation.
type memPostRepo struct {
	mu     sync.Mutex
	posts  map[string]*model.Post
	order  []string
	embeds map[string]int
}

func newMemPostRepo(posts ...*model.Post) *memPostRepo {
	r := &memPostRepo{posts: map[string]*model.Post{}, embeds: map[string]int{}}
	for _, p := range posts {
		_ = r.Save(context.Background(), nil, p)
	}
	return r
}

func (r *memPostRepo) Save(_ context.Context, _ repository.Tx, p *model.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.posts[p.PostID]; !ok {
		r.order = append(r.order, p.PostID)
	}
	if p.EmbeddingStatus == "" {
		p.EmbeddingStatus = model.EmbeddingStatusPending
	}
	cp := *p
	r.posts[p.PostID] = &cp
	return nil
}

func (r *memPostRepo) FindByID(_ context.Context, _ repository.Tx, id string) (*model.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memPostRepo) ClaimPending(_ context.Context, limit, maxRetries int) ([]*model.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Post
	for _, id := range r.order {
		p := r.posts[id]
		if p.EmbeddingStatus != model.EmbeddingStatusPending || p.EmbeddingRetryCount >= maxRetries {
			continue
		}
		p.EmbeddingStatus = model.EmbeddingStatusProcessing
		cp := *p
		out = append(out, &cp)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *memPostRepo) ClaimByIDs(_ context.Context, ids []string) ([]*model.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Post
	for _, id := range ids {
		p, ok := r.posts[id]
		if !ok || p.EmbeddingStatus == model.EmbeddingStatusProcessing {
			continue
		}
		p.EmbeddingStatus = model.EmbeddingStatusProcessing
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memPostRepo) SaveEmbedding(_ context.Context, _ repository.Tx, id string, vec []float32, modelName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok {
		return domain.ErrNotFound
	}
	now := time.Now()
	p.Embedding = append([]float32(nil), vec...)
	p.EmbeddingModel = modelName
	p.EmbeddingStatus = model.EmbeddingStatusCompleted
	p.EmbeddingError = ""
	p.EmbeddedAt = &now
	r.embeds[id]++
	return nil
}

func (r *memPostRepo) MarkEmbeddingFailed(_ context.Context, _ repository.Tx, id, reason string, maxRetries int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.EmbeddingRetryCount++
	p.EmbeddingError = reason
	if p.EmbeddingRetryCount >= maxRetries {
		p.EmbeddingStatus = model.EmbeddingStatusFailed
	} else {
		p.EmbeddingStatus = model.EmbeddingStatusPending
	}
	return nil
}

func (r *memPostRepo) ResetStale(context.Context, time.Duration) (int, error) { return 0, nil }

func (r *memPostRepo) Search(context.Context, model.SearchQuery) ([]model.ScoredPost, error) {
	return nil, errors.New("not implemented")
}

func (r *memPostRepo) EmbeddingStats(context.Context) (*model.EmbeddingStats, error) {
	return nil, errors.New("not implemented")
}

func (r *memPostRepo) TopicCounts(context.Context, time.Time, int) ([]model.TopicCount, int, error) {
	return nil, 0, errors.New("not implemented")
}

func (r *memPostRepo) get(id string) model.Post {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.posts[id]
}

func (r *memPostRepo) embedCounts() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int, len(r.embeds))
	for k, v := range r.embeds {
		out[k] = v
	}
	return out
}

type noopTxManager struct{}

func (noopTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, nil)
}

// fakeEmbedder fails for any text containing one of failOn.
type fakeEmbedder struct {
	dims   int
	failOn []string
	mu     sync.Mutex
	calls  []string
}

func (e *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls = append(e.calls, text)
	e.mu.Unlock()
	for _, f := range e.failOn {
		if strings.Contains(text, f) {
			return nil, errors.New("provider rejected input")
		}
	}
	v := make([]float32, e.dims)
	for i := range v {
		v[i] = float32(len(text)%7+i) / 10
	}
	return v, nil
}

func (e *fakeEmbedder) Model() string   { return "fake-embed" }
func (e *fakeEmbedder) Dimensions() int { return e.dims }

func sortedKeys(m map[string]int) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"interview-intel/internal/domain"
	"interview-intel/internal/domain/model"
	"interview-intel/internal/domain/ports/adapter"
	"interview-intel/internal/domain/ports/repository"
)

const (
	maxSearchLimit        = 100
	defaultMatchCount     = 10
	defaultTrendingLimit  = 20
	defaultTrendingWindow = 30 * 24 * time.Hour
)

// Compile-time check
var _ RetrievalUseCase = (*retrievalUC)(nil)

type RetrievalUseCase interface {
	Search(ctx context.Context, vector []float32, filters model.Filters, limit int, minSimilarity float64) (*model.RetrievalResult, error)
	SearchText(ctx context.Context, req model.SearchRequest) (*model.RetrievalResult, error)
	Similar(ctx context.Context, postID string, limit int, minSimilarity float64) (*model.RetrievalResult, error)
	Trending(ctx context.Context, window time.Duration, limit int) ([]model.TopicCount, int, error)
}

type retrievalUC struct {
	posts    repository.PostRepository
	embedder adapter.Embedder
	now      func() time.Time

	log *zerolog.Logger
}

func NewRetrievalUseCase(posts repository.PostRepository, embedder adapter.Embedder, logger *zerolog.Logger) *retrievalUC {
	return &retrievalUC{posts: posts, embedder: embedder, now: time.Now, log: logger}
}

func (r *retrievalUC) Search(ctx context.Context, vector []float32, filters model.Filters, limit int, minSimilarity float64) (*model.RetrievalResult, error) {
	if len(vector) == 0 {
		return nil, domain.NewInvalidInput("queryVector", "must not be empty")
	}
	if limit < 1 || limit > maxSearchLimit {
		return nil, domain.NewInvalidInput("limit", fmt.Sprintf("must be between 1 and %d", maxSearchLimit))
	}
	if minSimilarity < 0 || minSimilarity > 1 {
		return nil, domain.NewInvalidInput("minSimilarity", "must be between 0 and 1")
	}
	since, err := filters.Time.Since(r.now())
	if err != nil {
		return nil, err
	}

	items, err := r.posts.Search(ctx, model.SearchQuery{
		Vector:        vector,
		Filters:       normalizeFilters(filters),
		Since:         since,
		Limit:         limit,
		MinSimilarity: minSimilarity,
	})
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []model.ScoredPost{}
	}
	return &model.RetrievalResult{Items: items}, nil
}

func (r *retrievalUC) SearchText(ctx context.Context, req model.SearchRequest) (*model.RetrievalResult, error) {
	query := strings.TrimSpace(req.QueryText)
	if query == "" {
		return nil, domain.NewInvalidInput("queryText", "must not be empty")
	}
	count := defaultMatchCount
	if req.MatchCount != nil {
		count = *req.MatchCount
	}
	threshold := 0.0
	if req.MatchThreshold != nil {
		threshold = *req.MatchThreshold
	}
	filters := model.Filters{
		Role:    req.FilterRole,
		Level:   req.FilterLevel,
		Outcome: req.FilterOutcome,
		Company: req.FilterCompany,
		Time:    req.TimeFilter,
	}
	// Validate before paying for an embedding call.
	if count < 1 || count > maxSearchLimit {
		return nil, domain.NewInvalidInput("matchCount", fmt.Sprintf("must be between 1 and %d", maxSearchLimit))
	}
	if threshold < 0 || threshold > 1 {
		return nil, domain.NewInvalidInput("matchThreshold", "must be between 0 and 1")
	}
	if _, err := filters.Time.Since(r.now()); err != nil {
		return nil, err
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return r.Search(ctx, vec, filters, count, threshold)
}

// Similar uses a stored post's embedding as the query and leaves the post
// itself out of the result.
func (r *retrievalUC) Similar(ctx context.Context, postID string, limit int, minSimilarity float64) (*model.RetrievalResult, error) {
	postID = strings.TrimSpace(postID)
	if postID == "" {
		return nil, domain.NewInvalidInput("postId", "must not be empty")
	}
	if limit < 1 || limit > maxSearchLimit {
		return nil, domain.NewInvalidInput("limit", fmt.Sprintf("must be between 1 and %d", maxSearchLimit))
	}
	if minSimilarity < 0 || minSimilarity > 1 {
		return nil, domain.NewInvalidInput("minSimilarity", "must be between 0 and 1")
	}
	target, err := r.posts.FindByID(ctx, repository.NoTX, postID)
	if err != nil {
		return nil, err
	}
	if !target.HasEmbedding() {
		return nil, fmt.Errorf("%w: %s", domain.ErrNoEmbedding, postID)
	}
	items, err := r.posts.Search(ctx, model.SearchQuery{
		Vector:        target.Embedding,
		ExcludePostID: target.PostID,
		Limit:         limit,
		MinSimilarity: minSimilarity,
	})
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []model.ScoredPost{}
	}
	return &model.RetrievalResult{Items: items}, nil
}

// Trending reports the most frequent interview topics among recently
// embedded posts.
func (r *retrievalUC) Trending(ctx context.Context, window time.Duration, limit int) ([]model.TopicCount, int, error) {
	if window <= 0 {
		window = defaultTrendingWindow
	}
	if limit <= 0 {
		limit = defaultTrendingLimit
	}
	if limit > maxSearchLimit {
		return nil, 0, domain.NewInvalidInput("limit", fmt.Sprintf("must be at most %d", maxSearchLimit))
	}
	topics, sample, err := r.posts.TopicCounts(ctx, r.now().Add(-window), limit)
	if err != nil {
		return nil, 0, err
	}
	if topics == nil {
		topics = []model.TopicCount{}
	}
	return topics, sample, nil
}

// normalizeFilters drops blank filter values so they do not constrain.
func normalizeFilters(f model.Filters) model.Filters {
	f.Role = nonBlank(f.Role)
	f.Level = nonBlank(f.Level)
	f.Outcome = nonBlank(f.Outcome)
	f.Company = nonBlank(f.Company)
	return f
}

func nonBlank(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

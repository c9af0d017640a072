package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/pgvector/pgvector-go"

	"interview-intel/internal/domain"
	"interview-intel/internal/domain/model"
	"interview-intel/internal/domain/ports/repository"
)

var _ repository.PostRepository = (*postRepo)(nil)

const trendingSampleCap = 500

type postRepo struct {
	pool *pgxpool.Pool
	tm   repository.TransactionManager
}

func NewPostRepo(pool *pgxpool.Pool, tm repository.TransactionManager) *postRepo {
	return &postRepo{pool: pool, tm: tm}
}

const postColumns = `
post_id, title, body, COALESCE(author, ''), COALESCE(source, ''), COALESCE(url, ''), comments::text, created_at,
role, level, company, outcome, tech_stack, frameworks, interview_topics,
is_relevant, total_rounds, interview_format, remote_or_onsite, offer_accepted, negotiation_occurred,
referral_used, rejection_reason, difficulty_level, llm_outcome, llm_extracted_at,
embedding::text, embedding_status, embedding_retry_count, COALESCE(embedding_error, ''),
COALESCE(embedding_model, ''), embedding_generated_at, updated_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPost(s scanner, extra ...interface{}) (*model.Post, error) {
	var (
		p        model.Post
		comments string
		vec      *string
		status   string
	)
	dest := []interface{}{
		&p.PostID, &p.Title, &p.Body, &p.Author, &p.Source, &p.URL, &comments, &p.CreatedAt,
		&p.Role, &p.Level, &p.Company, &p.Outcome, &p.TechStack, &p.Frameworks, &p.Topics,
		&p.IsRelevant, &p.TotalRounds, &p.InterviewFormat, &p.RemoteOrOnsite, &p.OfferAccepted, &p.NegotiationOccurred,
		&p.ReferralUsed, &p.RejectionReason, &p.DifficultyLevel, &p.LLMOutcome, &p.ExtractedAt,
		&vec, &status, &p.EmbeddingRetryCount, &p.EmbeddingError,
		&p.EmbeddingModel, &p.EmbeddedAt, &p.UpdatedAt,
	}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
	p.EmbeddingStatus = model.EmbeddingStatus(status)
	if comments != "" {
		if err := json.Unmarshal([]byte(comments), &p.Comments); err != nil {
			return nil, fmt.Errorf("%w: comments: %v", domain.ErrReadDatabaseRow, err)
		}
	}
	if vec != nil {
		var v pgvector.Vector
		if err := v.Parse(*vec); err != nil {
			return nil, fmt.Errorf("%w: embedding: %v", domain.ErrReadDatabaseRow, err)
		}
		p.Embedding = v.Slice()
	}
	return &p, nil
}

func collectPosts(rows pgx.Rows) ([]*model.Post, error) {
	defer rows.Close()
	var out []*model.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewTransient("read rows", err)
	}
	return out, nil
}

func (r *postRepo) Save(ctx context.Context, tx repository.Tx, p *model.Post) error {
	if p.PostID == "" {
		return domain.NewInvalidInput("post_id", "required")
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	comments, err := json.Marshal(nonNil(p.Comments))
	if err != nil {
		return fmt.Errorf("marshal comments: %w", err)
	}

	const q = `
INSERT INTO posts (
  post_id, title, body, author, source, url, comments, created_at,
  role, level, company, outcome, tech_stack, frameworks, interview_topics,
  is_relevant, total_rounds, interview_format, remote_or_onsite, offer_accepted, negotiation_occurred,
  referral_used, rejection_reason, difficulty_level, llm_outcome, llm_extracted_at)
VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), $7::jsonb, $8,
        $9, $10, $11, $12, $13, $14, $15,
        $16, $17, $18, $19, $20, $21,
        $22, $23, $24, $25, $26)
ON CONFLICT (post_id) DO UPDATE SET
  title = EXCLUDED.title,
  body = EXCLUDED.body,
  comments = EXCLUDED.comments,
  role = EXCLUDED.role,
  level = EXCLUDED.level,
  company = EXCLUDED.company,
  outcome = EXCLUDED.outcome,
  tech_stack = EXCLUDED.tech_stack,
  frameworks = EXCLUDED.frameworks,
  interview_topics = EXCLUDED.interview_topics,
  updated_at = NOW();`

	_, err = execSQL(ctx, r.pool, tx, q,
		p.PostID, p.Title, p.Body, p.Author, p.Source, p.URL, string(comments), p.CreatedAt,
		p.Role, p.Level, p.Company, p.Outcome, nonNil(p.TechStack), nonNil(p.Frameworks), nonNil(p.Topics),
		p.IsRelevant, p.TotalRounds, p.InterviewFormat, p.RemoteOrOnsite, p.OfferAccepted, p.NegotiationOccurred,
		p.ReferralUsed, p.RejectionReason, p.DifficultyLevel, p.LLMOutcome, p.ExtractedAt,
	)
	return err
}

func (r *postRepo) FindByID(ctx context.Context, tx repository.Tx, postID string) (*model.Post, error) {
	defer observe("post_find_by_id")()
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+postColumns+` FROM posts WHERE post_id = $1`, postID)
	if err != nil {
		return nil, err
	}
	return scanPost(row)
}

func (r *postRepo) ClaimPending(ctx context.Context, limit, maxRetries int) ([]*model.Post, error) {
	if limit <= 0 {
		return nil, nil
	}
	var claimed []*model.Post
	err := r.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		const q = `
SELECT ` + postColumns + `
FROM posts
WHERE embedding_status = 'pending'
  AND embedding_retry_count < $1
ORDER BY created_at ASC, id ASC
LIMIT $2
FOR UPDATE SKIP LOCKED`
		rows, err := queryRows(ctx, r.pool, tx, q, maxRetries, limit)
		if err != nil {
			return err
		}
		posts, err := collectPosts(rows)
		if err != nil {
			return err
		}
		if err := markProcessing(ctx, r.pool, tx, posts); err != nil {
			return err
		}
		claimed = posts
		return nil
	})
	return claimed, err
}

func (r *postRepo) ClaimByIDs(ctx context.Context, postIDs []string) ([]*model.Post, error) {
	if len(postIDs) == 0 {
		return nil, nil
	}
	var claimed []*model.Post
	err := r.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		const q = `
SELECT ` + postColumns + `
FROM posts
WHERE post_id = ANY($1)
  AND embedding_status <> 'processing'
ORDER BY created_at ASC, id ASC
FOR UPDATE SKIP LOCKED`
		rows, err := queryRows(ctx, r.pool, tx, q, postIDs)
		if err != nil {
			return err
		}
		posts, err := collectPosts(rows)
		if err != nil {
			return err
		}
		if err := markProcessing(ctx, r.pool, tx, posts); err != nil {
			return err
		}
		claimed = posts
		return nil
	})
	return claimed, err
}

func markProcessing(ctx context.Context, pool *pgxpool.Pool, tx repository.Tx, posts []*model.Post) error {
	if len(posts) == 0 {
		return nil
	}
	ids := make([]string, len(posts))
	for i, p := range posts {
		ids[i] = p.PostID
		p.EmbeddingStatus = model.EmbeddingStatusProcessing
	}
	_, err := execSQL(ctx, pool, tx,
		`UPDATE posts SET embedding_status = 'processing', updated_at = NOW() WHERE post_id = ANY($1)`, ids)
	return err
}

func (r *postRepo) SaveEmbedding(ctx context.Context, tx repository.Tx, postID string, vec []float32, modelName string) error {
	if len(vec) == 0 {
		return domain.NewInvalidInput("embedding", "empty vector")
	}
	const q = `
UPDATE posts SET
  embedding = $2::vector,
  embedding_status = 'completed',
  embedding_error = NULL,
  embedding_model = $3,
  embedding_generated_at = NOW(),
  updated_at = NOW()
WHERE post_id = $1`
	tag, err := execSQL(ctx, r.pool, tx, q, postID, pgvector.NewVector(vec).String(), modelName)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postRepo) MarkEmbeddingFailed(ctx context.Context, tx repository.Tx, postID, reason string, maxRetries int) error {
	const q = `
UPDATE posts SET
  embedding_retry_count = embedding_retry_count + 1,
  embedding_status = CASE WHEN embedding_retry_count + 1 >= $3 THEN 'failed' ELSE 'pending' END,
  embedding_error = $2,
  updated_at = NOW()
WHERE post_id = $1
  AND embedding_status <> 'completed'`
	_, err := execSQL(ctx, r.pool, tx, q, postID, reason, maxRetries)
	return err
}

func (r *postRepo) ResetStale(ctx context.Context, olderThan time.Duration) (int, error) {
	const q = `
UPDATE posts SET embedding_status = 'pending', updated_at = NOW()
WHERE embedding_status = 'processing'
  AND updated_at < NOW() - make_interval(secs => $1)`
	tag, err := execSQL(ctx, r.pool, nil, q, olderThan.Seconds())
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *postRepo) Search(ctx context.Context, sq model.SearchQuery) ([]model.ScoredPost, error) {
	defer observe("post_search")()
	const q = `
SELECT ` + postColumns + `, 1 - (embedding <=> $1::vector) AS similarity
FROM posts
WHERE embedding IS NOT NULL
  AND ($2::text IS NULL OR role = $2)
  AND ($3::text IS NULL OR level = $3)
  AND ($4::text IS NULL OR outcome = $4)
  AND ($5::text IS NULL OR company = $5)
  AND ($6::timestamptz IS NULL OR created_at >= $6)
  AND ($7 = '' OR post_id <> $7)
  AND 1 - (embedding <=> $1::vector) >= $8
ORDER BY embedding <=> $1::vector ASC, created_at DESC, post_id ASC
LIMIT $9`

	f := sq.Filters
	rows, err := queryRows(ctx, r.pool, nil, q,
		pgvector.NewVector(sq.Vector).String(),
		f.Role, f.Level, f.Outcome, f.Company, sq.Since,
		sq.ExcludePostID, sq.MinSimilarity, sq.Limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.ScoredPost, 0, sq.Limit)
	for rows.Next() {
		var sim float64
		p, err := scanPost(rows, &sim)
		if err != nil {
			return nil, err
		}
		out = append(out, model.ScoredPost{Post: p, Similarity: sim})
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewTransient("search rows", err)
	}
	return out, nil
}

func (r *postRepo) EmbeddingStats(ctx context.Context) (*model.EmbeddingStats, error) {
	const q = `
SELECT
  COUNT(*),
  COUNT(embedding),
  COUNT(*) FILTER (WHERE embedding_status = 'pending'),
  COUNT(*) FILTER (WHERE embedding_status = 'processing'),
  COUNT(*) FILTER (WHERE embedding_status = 'completed'),
  COUNT(*) FILTER (WHERE embedding_status = 'failed'),
  MAX(embedding_generated_at),
  COALESCE(AVG(EXTRACT(EPOCH FROM (embedding_generated_at - created_at)))
           FILTER (WHERE embedding_generated_at IS NOT NULL), 0)::float8
FROM posts`
	row, err := pickRow(ctx, r.pool, nil, q)
	if err != nil {
		return nil, err
	}
	var s model.EmbeddingStats
	if err := row.Scan(&s.Total, &s.WithEmbeddings, &s.Pending, &s.Processing, &s.Completed, &s.Failed,
		&s.LastGenerated, &s.AvgDelaySeconds); err != nil {
		return nil, domain.NewTransient("embedding stats", err)
	}
	if s.Total > 0 {
		s.CoveragePct = round(float64(s.WithEmbeddings)/float64(s.Total)*100, 2)
	}
	s.AvgDelaySeconds = round(s.AvgDelaySeconds, 1)
	return &s, nil
}

func (r *postRepo) TopicCounts(ctx context.Context, since time.Time, limit int) ([]model.TopicCount, int, error) {
	const q = `
WITH recent AS (
  SELECT interview_topics
  FROM posts
  WHERE embedding IS NOT NULL AND created_at >= $1
  ORDER BY created_at DESC
  LIMIT $2
)
SELECT (SELECT COUNT(*) FROM recent) AS total, t.topic, COUNT(*) AS cnt
FROM recent, UNNEST(recent.interview_topics) AS t(topic)
GROUP BY t.topic
ORDER BY cnt DESC, t.topic ASC
LIMIT $3`
	rows, err := queryRows(ctx, r.pool, nil, q, since, trendingSampleCap, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var (
		total int
		out   []model.TopicCount
	)
	for rows.Next() {
		var tc model.TopicCount
		if err := rows.Scan(&total, &tc.Topic, &tc.Count); err != nil {
			return nil, 0, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
		}
		out = append(out, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, domain.NewTransient("topic rows", err)
	}
	for i := range out {
		if total > 0 {
			out[i].Percentage = round(float64(out[i].Count)/float64(total)*100, 1)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out, total, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

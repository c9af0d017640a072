package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"interview-intel/internal/domain"
	"interview-intel/internal/domain/model"
	"interview-intel/internal/domain/ports/adapter"
	"interview-intel/internal/domain/ports/repository"
	"interview-intel/internal/infra/logging"
	"interview-intel/internal/infra/metrics"
)

// JobQueue is the slice of the embedding queue the processor consumes.
type JobQueue interface {
	Claim(ctx context.Context) (*model.EmbeddingJob, error)
	Complete(ctx context.Context, job *model.EmbeddingJob, res model.JobResult) error
	Fail(ctx context.Context, job *model.EmbeddingJob, cause error) error
	Release(ctx context.Context, job *model.EmbeddingJob) error
}

type ProcessorConfig struct {
	Concurrency     int
	RateLimitMax    int
	RateLimitWindow time.Duration
	PollInterval    time.Duration
	MaxPostRetries  int
}

// EmbeddingProcessor drains the embedding queue with bounded concurrency and
// a sliding-window cap on job starts.
type EmbeddingProcessor struct {
	queue    JobQueue
	posts    repository.PostRepository
	tm       repository.TransactionManager
	embedder adapter.Embedder
	limiter  *WindowLimiter
	pool     *Pool
	slots    chan struct{}
	cfg      ProcessorConfig
	log      *zerolog.Logger
	now      func() time.Time

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running sync.WaitGroup
}

func NewEmbeddingProcessor(
	queue JobQueue,
	posts repository.PostRepository,
	tm repository.TransactionManager,
	embedder adapter.Embedder,
	cfg ProcessorConfig,
	logger *zerolog.Logger,
) *EmbeddingProcessor {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}
	if cfg.RateLimitMax <= 0 {
		cfg.RateLimitMax = 10
	}
	if cfg.RateLimitWindow <= 0 {
		cfg.RateLimitWindow = time.Minute
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.MaxPostRetries <= 0 {
		cfg.MaxPostRetries = 3
	}
	l := logger.With().Str("component", "embedding_worker").Logger()
	return &EmbeddingProcessor{
		queue:    queue,
		posts:    posts,
		tm:       tm,
		embedder: embedder,
		limiter:  NewWindowLimiter(cfg.RateLimitMax, cfg.RateLimitWindow),
		pool:     NewPool(cfg.Concurrency, &l),
		slots:    make(chan struct{}, cfg.Concurrency),
		cfg:      cfg,
		log:      &l,
		now:      time.Now,
	}
}

// Start launches the pool and the polling loop. It returns immediately.
func (p *EmbeddingProcessor) Start(parent context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(parent)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.pool.Start(ctx)
	go p.loop(ctx)
	p.log.Info().
		Int("concurrency", p.cfg.Concurrency).
		Int("rate_max", p.cfg.RateLimitMax).
		Dur("rate_window", p.cfg.RateLimitWindow).
		Msg("embedding worker started")
}

// Stop halts polling, then stops the pool. Jobs still buffered in the pool
// run with the cancelled context, so each is handed back to the queue.
func (p *EmbeddingProcessor) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel = nil
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	p.pool.Stop()
	p.running.Wait()
	p.log.Info().Msg("embedding worker stopped")
}

func (p *EmbeddingProcessor) loop(ctx context.Context) {
	defer close(p.done)
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.dispatch(ctx)
		}
	}
}

// dispatch starts as many jobs as free slots and the rate window allow.
func (p *EmbeddingProcessor) dispatch(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		select {
		case p.slots <- struct{}{}:
		default:
			return
		}
		if !p.limiter.Ready(p.now()) {
			<-p.slots
			metrics.IncWorkerThrottled()
			return
		}
		job, err := p.queue.Claim(ctx)
		if err == nil && ctx.Err() != nil {
			// Claimed while stopping; give it back.
			<-p.slots
			_ = p.queue.Release(context.WithoutCancel(ctx), job)
			return
		}
		if err != nil {
			<-p.slots
			if !errors.Is(err, domain.ErrNotFound) && ctx.Err() == nil {
				p.log.Error().Err(err).Msg("claim embedding job")
			}
			return
		}
		p.limiter.Allow(p.now())

		p.running.Add(1)
		err = p.pool.Submit(func(ctx context.Context) error {
			defer p.running.Done()
			defer func() { <-p.slots }()
			p.handle(ctx, job)
			return nil
		})
		if err != nil {
			// Slots never exceed pool capacity, so this only happens on misuse.
			p.running.Done()
			<-p.slots
			_ = p.queue.Fail(ctx, job, err)
			return
		}
	}
}

// RunOnce claims and processes at most one job synchronously. It reports
// whether a job was processed.
func (p *EmbeddingProcessor) RunOnce(ctx context.Context) (bool, error) {
	if !p.limiter.Ready(p.now()) {
		return false, nil
	}
	job, err := p.queue.Claim(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	p.limiter.Allow(p.now())
	p.handle(ctx, job)
	return true, nil
}

func (p *EmbeddingProcessor) handle(ctx context.Context, job *model.EmbeddingJob) {
	ctx = logging.WithJobID(ctx, job.ID)
	log := logging.With(ctx, p.log)
	start := time.Now()
	// Queue bookkeeping must outlive a cancelled job context.
	bctx := context.WithoutCancel(ctx)

	if ctx.Err() != nil {
		if err := p.queue.Release(bctx, job); err != nil {
			log.Error().Err(err).Msg("release job on shutdown")
		}
		log.Info().Msg("embedding job released on shutdown")
		return
	}
	log.Info().Str("kind", string(job.Kind)).Int("attempt", job.Attempts+1).Msg("processing embedding job")

	res, err := p.Process(ctx, job)
	metrics.AddPostsEmbedded(res.Succeeded, res.Failed)

	if err == nil {
		if cerr := p.queue.Complete(bctx, job, res); cerr != nil {
			log.Error().Err(cerr).Msg("mark job completed")
		}
		metrics.IncEmbeddingJob("completed")
		log.Info().
			Int("processed", res.Processed).
			Int("succeeded", res.Succeeded).
			Int("failed", res.Failed).
			Dur("duration", time.Since(start)).
			Msg("embedding job completed")
		return
	}

	if ctx.Err() != nil {
		if rerr := p.queue.Release(bctx, job); rerr != nil {
			log.Error().Err(rerr).Msg("release interrupted job")
		}
		log.Warn().Err(err).Int("processed", res.Processed).Msg("embedding job interrupted, released")
		return
	}

	ferr := p.queue.Fail(bctx, job, err)
	var exhausted *domain.ExhaustedRetriesError
	switch {
	case errors.As(ferr, &exhausted):
		metrics.IncEmbeddingJob("failed")
		log.Error().Err(err).Int("attempts", exhausted.Attempts).Msg("embedding job failed permanently")
	case ferr != nil:
		log.Error().Err(ferr).Msg("record job failure")
	default:
		metrics.IncEmbeddingJob("retried")
		log.Warn().Err(err).Time("retry_at", job.RunAt).Msg("embedding job will be retried")
	}
}

// Process embeds the posts a job designates. Each post succeeds or fails on
// its own; the job errors only when posts cannot be resolved or when every
// post of a non-empty batch failed.
func (p *EmbeddingProcessor) Process(ctx context.Context, job *model.EmbeddingJob) (model.JobResult, error) {
	var (
		posts []*model.Post
		err   error
		res   model.JobResult
	)
	if len(job.PostIDs) > 0 {
		posts, err = p.posts.ClaimByIDs(ctx, job.PostIDs)
	} else {
		posts, err = p.posts.ClaimPending(ctx, job.BatchSize, p.cfg.MaxPostRetries)
	}
	if err != nil {
		return res, fmt.Errorf("resolve posts: %w", err)
	}

	log := logging.With(ctx, p.log)
	for i, post := range posts {
		if ctx.Err() != nil {
			// Remaining posts stay processing until the stale sweeper resets them.
			log.Warn().Int("unprocessed", len(posts)-i).Msg("job cancelled mid-batch")
			return res, ctx.Err()
		}
		res.Processed++
		if err := p.embedOne(ctx, post); err != nil {
			res.Failed++
			log.Warn().Err(err).Str("post_id", post.PostID).Msg("post embedding failed")
			reason := err.Error()
			if ferr := p.posts.MarkEmbeddingFailed(context.WithoutCancel(ctx), nil, post.PostID, reason, p.cfg.MaxPostRetries); ferr != nil {
				log.Error().Err(ferr).Str("post_id", post.PostID).Msg("record post failure")
			}
			continue
		}
		res.Succeeded++
	}

	if res.Processed > 0 && res.Succeeded == 0 {
		return res, fmt.Errorf("all %d posts failed to embed", res.Failed)
	}
	return res, nil
}

func (p *EmbeddingProcessor) embedOne(ctx context.Context, post *model.Post) error {
	text := PrepareText(post)
	if text == "" {
		return fmt.Errorf("%w: post has no content", domain.ErrInvalidArgument)
	}
	vec, err := p.embedder.Embed(ctx, text)
	if err != nil {
		return err
	}
	if want := p.embedder.Dimensions(); want > 0 && len(vec) != want {
		return fmt.Errorf("embedding has %d dimensions, want %d", len(vec), want)
	}
	return p.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		return p.posts.SaveEmbedding(ctx, tx, post.PostID, vec, p.embedder.Model())
	})
}

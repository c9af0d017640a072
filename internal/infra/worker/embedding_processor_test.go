//go:build !integration

package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"interview-intel/internal/domain"
	"interview-intel/internal/domain/model"
	"interview-intel/internal/infra/queue"
)

func newPost(id, title string) *model.Post {
	return &model.Post{PostID: id, Title: title, Body: "body of " + id, CreatedAt: time.Now()}
}

func newTestProcessor(posts *memPostRepo, emb *fakeEmbedder, cfg ProcessorConfig) (*EmbeddingProcessor, *queue.Queue) {
	nop := zerolog.Nop()
	q := queue.New(queue.NewMemoryBroker(), queue.Options{BackoffBase: time.Millisecond}, &nop)
	return NewEmbeddingProcessor(q, posts, noopTxManager{}, emb, cfg, &nop), q
}

func TestProcess_IsolatesPostFailures(t *testing.T) {
	// Arrange
	ctx := context.Background()
	repo := newMemPostRepo(newPost("p1", "good one"), newPost("p2", "poison"), newPost("p3", "good two"))
	emb := &fakeEmbedder{dims: 4, failOn: []string{"poison"}}
	p, q := newTestProcessor(repo, emb, ProcessorConfig{})
	job, _ := q.Enqueue(ctx, model.JobSpec{})

	// Act
	ran, err := p.RunOnce(ctx)

	// Assert
	if err != nil || !ran {
		t.Fatalf("expected job to run, ran=%v err=%v", ran, err)
	}
	stored, _ := q.Get(ctx, job.ID)
	if stored.State != model.JobStateCompleted {
		t.Fatalf("expected job completed, got %s", stored.State)
	}
	if stored.Result == nil || stored.Result.Succeeded != 2 || stored.Result.Failed != 1 || stored.Result.Processed != 3 {
		t.Errorf("unexpected result %+v", stored.Result)
	}
	bad := repo.get("p2")
	if bad.EmbeddingStatus != model.EmbeddingStatusPending || bad.EmbeddingRetryCount != 1 {
		t.Errorf("expected failed post back to pending with 1 retry, got %s/%d", bad.EmbeddingStatus, bad.EmbeddingRetryCount)
	}
	if bad.EmbeddingError == "" {
		t.Error("expected failure reason to be recorded")
	}
	good := repo.get("p1")
	if good.EmbeddingStatus != model.EmbeddingStatusCompleted || len(good.Embedding) != 4 || good.EmbeddingModel != "fake-embed" {
		t.Errorf("unexpected embedded post %+v", good)
	}
}

func TestProcess_PostRetriesAreBounded(t *testing.T) {
	ctx := context.Background()
	repo := newMemPostRepo(newPost("p1", "poison"))
	emb := &fakeEmbedder{dims: 4, failOn: []string{"poison"}}
	p, _ := newTestProcessor(repo, emb, ProcessorConfig{MaxPostRetries: 3})

	for i := 0; i < 5; i++ {
		job := &model.EmbeddingJob{ID: fmt.Sprintf("j%d", i), BatchSize: 10}
		_, _ = p.Process(ctx, job)
	}

	got := repo.get("p1")
	if got.EmbeddingStatus != model.EmbeddingStatusFailed {
		t.Errorf("expected post failed after 3 attempts, got %s", got.EmbeddingStatus)
	}
	if got.EmbeddingRetryCount != 3 {
		t.Errorf("expected retry count 3, got %d", got.EmbeddingRetryCount)
	}
	if len(emb.calls) != 3 {
		t.Errorf("expected 3 embed attempts, got %d", len(emb.calls))
	}
}

func TestProcess_AllFailedSchedulesRetry(t *testing.T) {
	ctx := context.Background()
	repo := newMemPostRepo(newPost("p1", "poison"), newPost("p2", "poison"))
	emb := &fakeEmbedder{dims: 4, failOn: []string{"poison"}}
	p, q := newTestProcessor(repo, emb, ProcessorConfig{})
	job, _ := q.Enqueue(ctx, model.JobSpec{})

	if _, err := p.RunOnce(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	stored, _ := q.Get(ctx, job.ID)
	if stored.State != model.JobStateDelayed {
		t.Errorf("expected job delayed for retry, got %s", stored.State)
	}
	if stored.Attempts != 1 || stored.LastError == "" {
		t.Errorf("expected one recorded attempt with an error, got %+v", stored)
	}
}

func TestProcess_EmptyBatchCompletes(t *testing.T) {
	ctx := context.Background()
	p, q := newTestProcessor(newMemPostRepo(), &fakeEmbedder{dims: 4}, ProcessorConfig{})
	job, _ := q.Enqueue(ctx, model.JobSpec{})

	_, _ = p.RunOnce(ctx)

	stored, _ := q.Get(ctx, job.ID)
	if stored.State != model.JobStateCompleted || stored.Result.Processed != 0 {
		t.Errorf("expected empty job to complete with nothing processed, got %+v", stored)
	}
}

func TestProcess_RejectsWrongDimensionsAndEmptyPosts(t *testing.T) {
	ctx := context.Background()
	repo := newMemPostRepo(newPost("p1", "fine"), &model.Post{PostID: "p2"})
	emb := &fakeEmbedder{dims: 3}
	p, _ := newTestProcessor(repo, emb, ProcessorConfig{})
	p.embedder = &fixedDimsEmbedder{fakeEmbedder: emb, claimed: 4}

	res, err := p.Process(ctx, &model.EmbeddingJob{ID: "j", BatchSize: 10})

	if err == nil {
		t.Fatal("expected error when every post fails")
	}
	if res.Failed != 2 {
		t.Errorf("expected 2 failures, got %d", res.Failed)
	}
	if got := repo.get("p2"); got.EmbeddingRetryCount != 1 {
		t.Errorf("expected empty post to count as a failure, got %d retries", got.EmbeddingRetryCount)
	}
}

type fixedDimsEmbedder struct {
	*fakeEmbedder
	claimed int
}

func (e *fixedDimsEmbedder) Dimensions() int { return e.claimed }

func TestProcess_SpecificPostsSkipHeldPosts(t *testing.T) {
	ctx := context.Background()
	held := newPost("p2", "held")
	held.EmbeddingStatus = model.EmbeddingStatusProcessing
	repo := newMemPostRepo(newPost("p1", "free"), held)
	p, _ := newTestProcessor(repo, &fakeEmbedder{dims: 4}, ProcessorConfig{})

	res, err := p.Process(ctx, &model.EmbeddingJob{ID: "j", PostIDs: []string{"p1", "p2", "missing"}})

	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.Processed != 1 || res.Succeeded != 1 {
		t.Errorf("expected only p1 processed, got %+v", res)
	}
	if repo.get("p2").EmbeddingStatus != model.EmbeddingStatusProcessing {
		t.Error("post held by another worker must not be touched")
	}
}

func TestRunOnce_RateWindow(t *testing.T) {
	ctx := context.Background()
	repo := newMemPostRepo()
	p, q := newTestProcessor(repo, &fakeEmbedder{dims: 4}, ProcessorConfig{RateLimitMax: 2, RateLimitWindow: time.Minute})
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }
	for i := 0; i < 3; i++ {
		_, _ = q.Enqueue(ctx, model.JobSpec{PostIDs: []string{fmt.Sprintf("x%d", i)}})
	}

	for i := 0; i < 2; i++ {
		if ran, _ := p.RunOnce(ctx); !ran {
			t.Fatalf("job %d should run inside the window", i)
		}
	}
	if ran, _ := p.RunOnce(ctx); ran {
		t.Fatal("third job must wait for the window")
	}
	stats, _ := q.Stats(ctx)
	if stats.Waiting != 1 {
		t.Errorf("throttled job must stay waiting, got %+v", stats)
	}

	now = now.Add(time.Minute)
	if ran, _ := p.RunOnce(ctx); !ran {
		t.Error("expected job to run after the window slid")
	}
}

func TestStart_ConcurrentWorkersNeverDoubleProcess(t *testing.T) {
	var posts []*model.Post
	for i := 0; i < 40; i++ {
		posts = append(posts, newPost(fmt.Sprintf("p%02d", i), "title"))
	}
	repo := newMemPostRepo(posts...)
	p, q := newTestProcessor(repo, &fakeEmbedder{dims: 4}, ProcessorConfig{
		Concurrency:  2,
		RateLimitMax: 100,
		PollInterval: 2 * time.Millisecond,
	})
	ctx := context.Background()
	for i := 0; i < 8; i++ {
		bs := 5
		_, _ = q.Enqueue(ctx, model.JobSpec{BatchSize: &bs})
		time.Sleep(time.Microsecond)
	}

	p.Start(ctx)
	deadline := time.Now().Add(5 * time.Second)
	for {
		stats, _ := q.Stats(ctx)
		if stats.Completed == 8 {
			break
		}
		if time.Now().After(deadline) {
			p.Stop()
			t.Fatalf("jobs did not finish in time: %+v", stats)
		}
		time.Sleep(5 * time.Millisecond)
	}
	p.Stop()

	counts := repo.embedCounts()
	if len(counts) != 40 {
		t.Errorf("expected 40 embedded posts, got %d", len(counts))
	}
	for _, id := range sortedKeys(counts) {
		if counts[id] != 1 {
			t.Errorf("post %s embedded %d times", id, counts[id])
		}
	}
}

func TestRunOnce_EmptyQueue(t *testing.T) {
	p, _ := newTestProcessor(newMemPostRepo(), &fakeEmbedder{dims: 4}, ProcessorConfig{})
	ran, err := p.RunOnce(context.Background())
	if ran || err != nil {
		t.Errorf("expected idle run, got ran=%v err=%v", ran, err)
	}
}

func TestHandle_ExhaustedJobIsFailed(t *testing.T) {
	ctx := context.Background()
	repo := newMemPostRepo(newPost("p1", "poison"))
	p, q := newTestProcessor(repo, &fakeEmbedder{dims: 4, failOn: []string{"poison"}}, ProcessorConfig{MaxPostRetries: 10})
	job, _ := q.Enqueue(ctx, model.JobSpec{PostIDs: []string{"p1"}})

	for i := 0; i < 3; i++ {
		claimed, err := q.Claim(ctx)
		for errors.Is(err, domain.ErrNotFound) {
			time.Sleep(2 * time.Millisecond)
			claimed, err = q.Claim(ctx)
		}
		if err != nil {
			t.Fatalf("claim: %v", err)
		}
		p.handle(ctx, claimed)
	}

	stored, _ := q.Get(ctx, job.ID)
	if stored.State != model.JobStateFailed || stored.Attempts != 3 {
		t.Errorf("expected job failed after 3 attempts, got %s/%d", stored.State, stored.Attempts)
	}
}

func TestStop_ReturnsWithJobsInFlight(t *testing.T) {
	for iter := 0; iter < 20; iter++ {
		// Arrange
		p, q := newTestProcessor(newMemPostRepo(), &fakeEmbedder{dims: 4}, ProcessorConfig{
			Concurrency:  2,
			RateLimitMax: 10000,
			PollInterval: time.Microsecond,
		})
		ctx := context.Background()
		const total = 200
		for i := 0; i < total; i++ {
			if _, err := q.Enqueue(ctx, model.JobSpec{PostIDs: []string{fmt.Sprintf("p%03d", i)}}); err != nil {
				t.Fatalf("enqueue: %v", err)
			}
		}

		// Act
		p.Start(ctx)
		time.Sleep(200 * time.Microsecond)
		stopped := make(chan struct{})
		go func() {
			p.Stop()
			close(stopped)
		}()

		// Assert
		select {
		case <-stopped:
		case <-time.After(5 * time.Second):
			stats, _ := q.Stats(ctx)
			t.Fatalf("iteration %d: Stop did not return, queue %+v", iter, stats)
		}
		stats, _ := q.Stats(ctx)
		if stats.Active != 0 {
			t.Fatalf("iteration %d: %d jobs left active after Stop", iter, stats.Active)
		}
		if stats.Delayed != 0 || stats.Failed != 0 {
			t.Fatalf("iteration %d: shutdown must not spend attempts: %+v", iter, stats)
		}
		if stats.Waiting+stats.Completed != total {
			t.Fatalf("iteration %d: jobs lost: %+v", iter, stats)
		}
	}
}

func TestHandle_CancelledContextReleasesJob(t *testing.T) {
	repo := newMemPostRepo(newPost("p1", "title"))
	p, q := newTestProcessor(repo, &fakeEmbedder{dims: 4}, ProcessorConfig{})
	ctx := context.Background()
	job, _ := q.Enqueue(ctx, model.JobSpec{PostIDs: []string{"p1"}})
	claimed, err := q.Claim(ctx)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	p.handle(cctx, claimed)

	stored, _ := q.Get(ctx, job.ID)
	if stored.State != model.JobStateWaiting || stored.Attempts != 0 {
		t.Fatalf("expected job back to waiting with no attempt spent, got %s/%d", stored.State, stored.Attempts)
	}
	if repo.get("p1").EmbeddingStatus == model.EmbeddingStatusCompleted {
		t.Error("post must not be embedded by a cancelled job")
	}
}

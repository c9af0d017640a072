//go:build integration

package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"interview-intel/internal/domain"
	"interview-intel/internal/domain/model"
	"interview-intel/internal/domain/ports/repository"
)

func strPtr(s string) *string { return &s }

// unitVec returns a 384-dim vector pointing mostly along axis i.
func unitVec(i int, tilt float32) []float32 {
	v := make([]float32, 384)
	v[i] = 1
	v[(i+1)%384] = tilt
	return v
}

func seedPost(t *testing.T, repo *postRepo, id string, created time.Time, mutate func(p *model.Post)) *model.Post {
	t.Helper()
	p := &model.Post{
		PostID:     id,
		Title:      "title " + id,
		Body:       "body " + id,
		CreatedAt:  created,
		IsRelevant: true,
		Comments:   []string{"c1"},
		TechStack:  []string{"go"},
	}
	if mutate != nil {
		mutate(p)
	}
	if err := repo.Save(context.Background(), repository.NoTX, p); err != nil {
		t.Fatalf("save %s: %v", id, err)
	}
	return p
}

func TestPostRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	ctx := context.Background()
	tm := NewTxManager(testPool)
	repo := NewPostRepo(testPool, tm)

	t.Run("save and read back", func(t *testing.T) {
		cleanup(t)
		seedPost(t, repo, "a", time.Now(), func(p *model.Post) { p.Company = strPtr("Google") })

		got, err := repo.FindByID(ctx, repository.NoTX, "a")
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		if got.Company == nil || *got.Company != "Google" || got.EmbeddingStatus != model.EmbeddingStatusPending {
			t.Errorf("unexpected post %+v", got)
		}
		if len(got.Comments) != 1 || got.HasEmbedding() {
			t.Errorf("unexpected comments/embedding: %+v", got)
		}
		if _, err := repo.FindByID(ctx, repository.NoTX, "missing"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("concurrent claims never overlap", func(t *testing.T) {
		cleanup(t)
		base := time.Now().Add(-time.Hour)
		for i := 0; i < 30; i++ {
			seedPost(t, repo, fmt.Sprintf("p%02d", i), base.Add(time.Duration(i)*time.Second), nil)
		}

		var (
			mu   sync.Mutex
			seen = map[string]int{}
			wg   sync.WaitGroup
		)
		for w := 0; w < 4; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				posts, err := repo.ClaimPending(ctx, 10, 3)
				if err != nil {
					t.Errorf("claim: %v", err)
					return
				}
				mu.Lock()
				for _, p := range posts {
					seen[p.PostID]++
				}
				mu.Unlock()
			}()
		}
		wg.Wait()

		if len(seen) != 30 {
			t.Errorf("expected all 30 posts claimed once, got %d distinct", len(seen))
		}
		for id, n := range seen {
			if n != 1 {
				t.Errorf("post %s claimed %d times", id, n)
			}
		}
	})

	t.Run("retry bookkeeping", func(t *testing.T) {
		cleanup(t)
		seedPost(t, repo, "r", time.Now(), nil)
		for i := 0; i < 3; i++ {
			if err := repo.MarkEmbeddingFailed(ctx, repository.NoTX, "r", "boom", 3); err != nil {
				t.Fatalf("mark failed: %v", err)
			}
		}
		got, _ := repo.FindByID(ctx, repository.NoTX, "r")
		if got.EmbeddingStatus != model.EmbeddingStatusFailed || got.EmbeddingRetryCount != 3 {
			t.Errorf("expected failed after 3 retries, got %s/%d", got.EmbeddingStatus, got.EmbeddingRetryCount)
		}
		posts, _ := repo.ClaimPending(ctx, 10, 3)
		if len(posts) != 0 {
			t.Error("exhausted post must not be claimed again")
		}
	})

	t.Run("search orders by similarity and honours filters", func(t *testing.T) {
		cleanup(t)
		now := time.Now()
		seedPost(t, repo, "near", now, func(p *model.Post) { p.Role = strPtr("backend"); p.Company = strPtr("Meta") })
		seedPost(t, repo, "mid", now, func(p *model.Post) { p.Role = strPtr("backend") })
		seedPost(t, repo, "far", now, func(p *model.Post) { p.Role = strPtr("frontend") })
		seedPost(t, repo, "old", now.AddDate(-2, 0, 0), func(p *model.Post) { p.Role = strPtr("backend") })
		seedPost(t, repo, "lower", now, func(p *model.Post) { p.Role = strPtr("backend"); p.Company = strPtr("google") })
		seedPost(t, repo, "unembedded", now, nil)

		for id, v := range map[string][]float32{
			"lower": unitVec(0, 0.2),
			"near":  unitVec(0, 0.1),
			"mid":   unitVec(0, 0.9),
			"far":   unitVec(0, 3),
			"old":   unitVec(0, 0.05),
		} {
			if err := repo.SaveEmbedding(ctx, repository.NoTX, id, v, "test-model"); err != nil {
				t.Fatalf("save embedding %s: %v", id, err)
			}
		}

		res, err := repo.Search(ctx, model.SearchQuery{Vector: unitVec(0, 0), Limit: 10})
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		if len(res) != 5 {
			t.Fatalf("expected 5 embedded posts, got %d", len(res))
		}
		if res[0].Post.PostID != "old" || res[1].Post.PostID != "near" {
			t.Errorf("unexpected order: %s, %s", res[0].Post.PostID, res[1].Post.PostID)
		}
		for i := 1; i < len(res); i++ {
			if res[i].Similarity > res[i-1].Similarity {
				t.Error("results must be ordered by descending similarity")
			}
		}

		since := now.AddDate(-1, 0, 0)
		res, _ = repo.Search(ctx, model.SearchQuery{
			Vector:        unitVec(0, 0),
			Filters:       model.Filters{Role: strPtr("backend"), Company: strPtr("Meta")},
			Since:         &since,
			Limit:         10,
			MinSimilarity: 0.5,
		})
		if len(res) != 1 || res[0].Post.PostID != "near" {
			t.Errorf("expected only 'near' after filtering, got %d results", len(res))
		}

		res, _ = repo.Search(ctx, model.SearchQuery{
			Vector:  unitVec(0, 0),
			Filters: model.Filters{Company: strPtr("Google")},
			Limit:   10,
		})
		if len(res) != 0 {
			t.Errorf("company filter must match exactly, 'google' matched 'Google' in %d results", len(res))
		}

		res, _ = repo.Search(ctx, model.SearchQuery{Vector: unitVec(0, 0), ExcludePostID: "old", Limit: 1})
		if len(res) != 1 || res[0].Post.PostID != "near" {
			t.Error("excluded post must not be returned")
		}
	})

	t.Run("stats and stale reset", func(t *testing.T) {
		cleanup(t)
		seedPost(t, repo, "s1", time.Now(), nil)
		seedPost(t, repo, "s2", time.Now(), nil)
		_ = repo.SaveEmbedding(ctx, repository.NoTX, "s1", unitVec(1, 0), "m")
		if _, err := repo.ClaimByIDs(ctx, []string{"s2"}); err != nil {
			t.Fatalf("claim: %v", err)
		}

		stats, err := repo.EmbeddingStats(ctx)
		if err != nil {
			t.Fatalf("stats: %v", err)
		}
		if stats.Total != 2 || stats.WithEmbeddings != 1 || stats.Processing != 1 || stats.CoveragePct != 50 {
			t.Errorf("unexpected stats %+v", stats)
		}

		_, _ = testPool.Exec(ctx, `UPDATE posts SET updated_at = NOW() - INTERVAL '1 hour' WHERE post_id = 's2'`)
		n, err := repo.ResetStale(ctx, 10*time.Minute)
		if err != nil || n != 1 {
			t.Errorf("expected 1 stale post reset, got %d (%v)", n, err)
		}
	})

	t.Run("trending topics", func(t *testing.T) {
		cleanup(t)
		seedPost(t, repo, "t1", time.Now(), func(p *model.Post) { p.Topics = []string{"graphs", "dp"} })
		seedPost(t, repo, "t2", time.Now(), func(p *model.Post) { p.Topics = []string{"graphs"} })
		for _, id := range []string{"t1", "t2"} {
			_ = repo.SaveEmbedding(ctx, repository.NoTX, id, unitVec(2, 0), "m")
		}

		topics, total, err := repo.TopicCounts(ctx, time.Now().Add(-time.Hour), 10)
		if err != nil {
			t.Fatalf("topics: %v", err)
		}
		if total != 2 || len(topics) != 2 || topics[0].Topic != "graphs" || topics[0].Percentage != 100 {
			t.Errorf("unexpected topics %+v (total %d)", topics, total)
		}
	})
}

//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"interview-intel/internal/config"
	"interview-intel/internal/domain"
	"interview-intel/internal/domain/model"
	"interview-intel/internal/usecase"
)

// neighbours builds n posts where the first `rare` mention "Rust" and every
// post mentions "Python".
func neighbours(n, rare int) []model.ScoredPost {
	out := make([]model.ScoredPost, 0, n)
	for i := 0; i < n; i++ {
		p := &model.Post{PostID: fmt.Sprintf("n%d", i), TechStack: []string{"python"}}
		if i < rare {
			p.TechStack = append(p.TechStack, "rust")
		}
		out = append(out, model.ScoredPost{Post: p, Similarity: 0.5})
	}
	return out
}

func TestUniqueAspects_RarityThreshold(t *testing.T) {
	target := &model.Post{Company: strPtr("Google"), TechStack: []string{"Rust", "Python"}}

	cases := []struct {
		name     string
		rare     int
		wantRare bool
	}{
		{"5 of 30 is rare", 5, true},
		{"7 of 30 is not rare", 7, false},
		{"0 of 30 is rare", 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := usecase.UniqueAspects(target, neighbours(30, tc.rare), 20)

			var rust *model.RareSkill
			for i := range got.RareSkills {
				if got.RareSkills[i].Skill == "Rust" {
					rust = &got.RareSkills[i]
				}
				if got.RareSkills[i].Skill == "Python" {
					t.Error("python is in every neighbour and must not be rare")
				}
			}
			if (rust != nil) != tc.wantRare {
				t.Fatalf("expected rare=%v, got %+v", tc.wantRare, got.RareSkills)
			}
			if got.IsUnique != tc.wantRare {
				t.Errorf("expected IsUnique=%v", tc.wantRare)
			}
			if rust != nil {
				want := fmt.Sprintf("%d of 30 similar posts", tc.rare)
				if rust.MentionedIn != want {
					t.Errorf("expected %q, got %q", want, rust.MentionedIn)
				}
			}
		})
	}

	t.Run("no neighbours means nothing is rare", func(t *testing.T) {
		got := usecase.UniqueAspects(target, nil, 20)
		if got.IsUnique || len(got.RareSkills) != 0 {
			t.Errorf("expected no rare skills, got %+v", got.RareSkills)
		}
		if got.UniquenessSummary != "This post follows typical patterns for Google" {
			t.Errorf("unexpected summary %q", got.UniquenessSummary)
		}
	})

	t.Run("rarest first, at most five", func(t *testing.T) {
		tgt := &model.Post{TechStack: []string{"a", "b", "c", "d", "e", "f"}}
		items := neighbours(10, 0)
		items[0].Post.TechStack = append(items[0].Post.TechStack, "b")
		got := usecase.UniqueAspects(tgt, items, 20)
		if len(got.RareSkills) != 5 {
			t.Fatalf("expected 5 rare skills, got %d", len(got.RareSkills))
		}
		for i := 1; i < len(got.RareSkills); i++ {
			if got.RareSkills[i].RarityScore > got.RareSkills[i-1].RarityScore {
				t.Errorf("rarity increased at %d", i)
			}
		}
		if !strings.Contains(got.UniquenessSummary, "6 rare skills") {
			t.Errorf("summary should count every rare skill, got %q", got.UniquenessSummary)
		}
	})
}

func TestComparativeUseCase_Compare(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	cfg := config.DefaultAnalysis()

	target := embeddedPost("target", []float32{1, 0}, now)
	target.Company, target.Role = strPtr("Google"), strPtr("backend")
	target.TechStack = []string{"Go", "SQL"}

	var posts []*model.Post
	posts = append(posts, target)
	for i, o := range []string{"passed", "rejected", "got offer", ""} {
		p := embeddedPost(fmt.Sprintf("p%d", i), []float32{1, float32(i) * 0.1}, now)
		p.Company = strPtr("google")
		p.Role = strPtr("frontend")
		if o != "" {
			p.Outcome = strPtr(o)
		}
		p.TechStack = []string{"go"}
		posts = append(posts, p)
	}
	posts = append(posts, &model.Post{PostID: "raw", EmbeddingStatus: model.EmbeddingStatusPending})
	repo := NewMockPostRepo(posts...)
	uc := usecase.NewComparativeUseCase(repo, cfg, newTestLogger())

	t.Run("metrics over the nearest neighbours", func(t *testing.T) {
		// --- Act ---
		res, err := uc.Compare(ctx, "target")

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		q := repo.Searches[len(repo.Searches)-1]
		if q.ExcludePostID != "target" || q.Limit != 30 || q.MinSimilarity != 0 {
			t.Errorf("unexpected neighbour query %+v", q)
		}
		m := res.ComparativeMetrics
		if m.TotalSimilarPosts != 4 {
			t.Fatalf("expected 4 neighbours, got %d", m.TotalSimilarPosts)
		}
		if m.SameCompany.Count != 4 || m.SameCompany.Percentage != 100 {
			t.Errorf("company match should be case-insensitive, got %+v", m.SameCompany)
		}
		if m.SameRole.Count != 0 {
			t.Errorf("expected no role matches, got %+v", m.SameRole)
		}
		if m.SimilarityInsight != "This is a typical Google experience" {
			t.Errorf("unexpected insight %q", m.SimilarityInsight)
		}
		d := m.OutcomeDistribution
		if d.Success != 2 || d.Failure != 1 || d.Unknown != 1 || d.SuccessRate != 66.7 {
			t.Errorf("unexpected outcome distribution %+v", d)
		}
		if m.SkillComparison["Go"].MentionedInSimilar != 4 || m.SkillComparison["SQL"].Percentage != 0 {
			t.Errorf("unexpected skill comparison %+v", m.SkillComparison)
		}
		if res.PostSummary.Outcome != "Not specified" || res.PostSummary.Level != "Unknown" {
			t.Errorf("unexpected summary defaults %+v", res.PostSummary)
		}
		if len(res.SimilarPosts) != 4 || res.SimilarPosts[0].SimilarityScore != 100 {
			t.Errorf("unexpected similar posts %+v", res.SimilarPosts)
		}
		if !res.UniqueAspects.IsUnique || res.UniqueAspects.RareSkills[0].Skill != "SQL" {
			t.Errorf("expected SQL to be rare, got %+v", res.UniqueAspects)
		}
	})

	t.Run("missing post", func(t *testing.T) {
		if _, err := uc.Compare(ctx, "ghost"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("post without embedding", func(t *testing.T) {
		if _, err := uc.Compare(ctx, "raw"); !errors.Is(err, domain.ErrNoEmbedding) {
			t.Errorf("expected ErrNoEmbedding, got %v", err)
		}
	})
}

func TestRecommendResources(t *testing.T) {
	t.Run("maps known skills and tops up with general prep", func(t *testing.T) {
		got := usecase.RecommendResources(&model.Post{TechStack: []string{"SQL"}})
		var titles []string
		for _, r := range got {
			titles = append(titles, r.Title)
		}
		want := []string{"SQLZoo", "Blind 75", "Grokking the System Design Interview"}
		if strings.Join(titles, "|") != strings.Join(want, "|") {
			t.Errorf("expected %v, got %v", want, titles)
		}
		if got[0].Skill != "SQL" {
			t.Errorf("expected resource to carry the original skill, got %q", got[0].Skill)
		}
	})

	t.Run("no general prep when system design is already covered", func(t *testing.T) {
		got := usecase.RecommendResources(&model.Post{Topics: []string{"System Design"}})
		for _, r := range got {
			if r.Title == "Grokking the System Design Interview" {
				t.Error("system design fallback should be skipped")
			}
		}
		if len(got) != 2 {
			t.Errorf("expected 2 resources, got %d", len(got))
		}
	})

	t.Run("capped at five", func(t *testing.T) {
		got := usecase.RecommendResources(&model.Post{
			TechStack:  []string{"python", "javascript", "sql"},
			Frameworks: []string{"react"},
			Topics:     []string{"algorithms", "behavioral", "leetcode"},
		})
		if len(got) != 5 {
			t.Errorf("expected 5 resources, got %d", len(got))
		}
	})
}

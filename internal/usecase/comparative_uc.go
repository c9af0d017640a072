// File: internal/usecase/comparative_uc.go
package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"interview-intel/internal/config"
	"interview-intel/internal/domain"
	"interview-intel/internal/domain/model"
	"interview-intel/internal/domain/ports/repository"
)

const (
	maxSummarySkills  = 10
	maxSimilarPosts   = 10
	maxRareSkills     = 5
	maxResources      = 5
	minResourcesCount = 3
)

// Compile-time check
var _ ComparativeUseCase = (*comparativeUC)(nil)

type ComparativeUseCase interface {
	Compare(ctx context.Context, postID string) (*model.PostComparison, error)
}

type comparativeUC struct {
	posts repository.PostRepository
	cfg   config.AnalysisConfig

	log *zerolog.Logger
}

func NewComparativeUseCase(posts repository.PostRepository, cfg config.AnalysisConfig, logger *zerolog.Logger) *comparativeUC {
	return &comparativeUC{posts: posts, cfg: cfg, log: logger}
}

func (u *comparativeUC) Compare(ctx context.Context, postID string) (*model.PostComparison, error) {
	postID = strings.TrimSpace(postID)
	if postID == "" {
		return nil, domain.NewInvalidInput("postId", "must not be empty")
	}
	target, err := u.posts.FindByID(ctx, repository.NoTX, postID)
	if err != nil {
		return nil, err
	}
	if !target.HasEmbedding() {
		return nil, fmt.Errorf("%w: %s", domain.ErrNoEmbedding, postID)
	}

	neighbours, err := u.posts.Search(ctx, model.SearchQuery{
		Vector:        target.Embedding,
		ExcludePostID: target.PostID,
		Limit:         u.cfg.ComparativeNeighbors,
	})
	if err != nil {
		return nil, err
	}

	return &model.PostComparison{
		PostSummary:          summarize(target),
		SimilarPosts:         similarPosts(neighbours),
		ComparativeMetrics:   comparativeMetrics(target, neighbours),
		UniqueAspects:        UniqueAspects(target, neighbours, u.cfg.RarityPercent),
		RecommendedResources: RecommendResources(target),
	}, nil
}

func summarize(p *model.Post) model.PostSummary {
	skills := p.Skills()
	if len(skills) > maxSummarySkills {
		skills = skills[:maxSummarySkills]
	}
	topics := p.Topics
	if topics == nil {
		topics = []string{}
	}
	return model.PostSummary{
		PostID:          p.PostID,
		Title:           p.Title,
		Company:         model.StrOr(p.Company, "Unknown"),
		Role:            model.StrOr(p.Role, "Unknown"),
		Level:           model.StrOr(p.Level, "Unknown"),
		Outcome:         model.StrOr(p.Outcome, "Not specified"),
		KeySkills:       skills,
		InterviewTopics: topics,
		Date:            p.CreatedAt.UTC().Format(time.RFC3339),
		URL:             p.URL,
	}
}

func similarPosts(items []model.ScoredPost) []model.SimilarPost {
	n := len(items)
	if n > maxSimilarPosts {
		n = maxSimilarPosts
	}
	out := make([]model.SimilarPost, 0, n)
	for _, it := range items[:n] {
		out = append(out, model.SimilarPost{
			PostID:          it.Post.PostID,
			Title:           it.Post.Title,
			Company:         model.StrOr(it.Post.Company, "Unknown"),
			RoleType:        model.StrOr(it.Post.Role, "Unknown"),
			SimilarityScore: roundTo(it.Similarity*100, 1),
		})
	}
	return out
}

// skillFrequency counts, per lower-cased skill, how many posts mention it.
func skillFrequency(items []model.ScoredPost) map[string]int {
	freq := map[string]int{}
	for _, it := range items {
		for _, s := range it.Post.Skills() {
			freq[strings.ToLower(s)]++
		}
	}
	return freq
}

func pct(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return roundTo(float64(n)/float64(total)*100, 1)
}

func sameFold(a, b *string) bool {
	x, y := model.StrOr(a, ""), model.StrOr(b, "")
	return x != "" && strings.EqualFold(x, y)
}

func comparativeMetrics(target *model.Post, items []model.ScoredPost) model.ComparativeMetrics {
	total := len(items)
	freq := skillFrequency(items)

	skills := map[string]model.SkillShare{}
	for _, s := range target.Skills() {
		c := freq[strings.ToLower(s)]
		skills[s] = model.SkillShare{MentionedInSimilar: c, Percentage: pct(c, total)}
	}

	var company, role int
	var dist model.OutcomeDistribution
	for _, it := range items {
		if sameFold(it.Post.Company, target.Company) {
			company++
		}
		if sameFold(it.Post.Role, target.Role) {
			role++
		}
		switch model.ClassifyOutcome(model.StrOr(it.Post.Outcome, "")) {
		case model.OutcomeSuccess:
			dist.Success++
		case model.OutcomeFailure:
			dist.Failure++
		default:
			dist.Unknown++
		}
	}
	if decided := dist.Success + dist.Failure; decided > 0 {
		dist.SuccessRate = pct(dist.Success, decided)
	}

	insight := "This experience is unique compared to similar posts"
	if total > 0 && float64(company) > float64(total)*0.5 {
		insight = fmt.Sprintf("This is a typical %s experience", model.StrOr(target.Company, "Unknown"))
	}

	return model.ComparativeMetrics{
		TotalSimilarPosts:   total,
		SameCompany:         model.CountShare{Count: company, Percentage: pct(company, total)},
		SameRole:            model.CountShare{Count: role, Percentage: pct(role, total)},
		SkillComparison:     skills,
		OutcomeDistribution: dist,
		SimilarityInsight:   insight,
	}
}

// UniqueAspects lists the target's skills that appear in fewer than
// rarityPercent of the neighbours, rarest first.
func UniqueAspects(target *model.Post, items []model.ScoredPost, rarityPercent float64) model.UniqueAspects {
	out := model.UniqueAspects{RareSkills: []model.RareSkill{}}
	total := len(items)
	if total > 0 {
		freq := skillFrequency(items)
		for _, s := range target.Skills() {
			c := freq[strings.ToLower(s)]
			p := float64(c) / float64(total) * 100
			if p >= rarityPercent {
				continue
			}
			out.RareSkills = append(out.RareSkills, model.RareSkill{
				Skill:       s,
				RarityScore: roundTo(100-p, 1),
				MentionedIn: fmt.Sprintf("%d of %d similar posts", c, total),
				Insight:     fmt.Sprintf("Only %.0f%% of similar posts mention %q", p, s),
			})
		}
		sort.SliceStable(out.RareSkills, func(i, j int) bool {
			return out.RareSkills[i].RarityScore > out.RareSkills[j].RarityScore
		})
	}

	out.IsUnique = len(out.RareSkills) > 0
	if out.IsUnique {
		out.UniquenessSummary = fmt.Sprintf("This post mentions %d rare skills not commonly seen in similar experiences", len(out.RareSkills))
	} else {
		out.UniquenessSummary = fmt.Sprintf("This post follows typical patterns for %s", model.StrOr(target.Company, "this role"))
	}
	if len(out.RareSkills) > maxRareSkills {
		out.RareSkills = out.RareSkills[:maxRareSkills]
	}
	return out
}

var resourceMap = map[string]model.Resource{
	"algorithms":    {Title: "LeetCode", URL: "https://leetcode.com", Type: "Practice"},
	"system design": {Title: "System Design Primer", URL: "https://github.com/donnemartin/system-design-primer", Type: "Guide"},
	"python":        {Title: "Python Official Docs", URL: "https://docs.python.org", Type: "Documentation"},
	"javascript":    {Title: "MDN Web Docs", URL: "https://developer.mozilla.org", Type: "Documentation"},
	"react":         {Title: "React Official Docs", URL: "https://react.dev", Type: "Documentation"},
	"sql":           {Title: "SQLZoo", URL: "https://sqlzoo.net", Type: "Tutorial"},
	"behavioral":    {Title: "STAR Method Guide", URL: "https://www.themuse.com/advice/star-interview-method", Type: "Guide"},
	"leetcode":      {Title: "LeetCode Patterns", URL: "https://seanprashad.com/leetcode-patterns/", Type: "Guide"},
}

// RecommendResources maps the post's skills and topics to study material,
// topping up with general prep when fewer than three match.
func RecommendResources(p *model.Post) []model.Resource {
	out := []model.Resource{}
	seen := map[string]bool{}
	candidates := append(p.Skills(), p.Topics...)
	for _, s := range candidates {
		key := strings.ToLower(strings.TrimSpace(s))
		r, ok := resourceMap[key]
		if !ok || seen[key] {
			continue
		}
		seen[key] = true
		r.Skill = s
		out = append(out, r)
	}

	if len(out) < minResourcesCount {
		if !seen["algorithms"] {
			out = append(out, model.Resource{
				Title: "Blind 75",
				URL:   "https://leetcode.com/discuss/general-discussion/460599/blind-75-leetcode-questions",
				Type:  "Practice List",
				Skill: "General Prep",
			})
		}
		if !seen["system design"] {
			out = append(out, model.Resource{
				Title: "Grokking the System Design Interview",
				URL:   "https://www.educative.io/courses/grokking-the-system-design-interview",
				Type:  "Course",
				Skill: "General Prep",
			})
		}
	}
	if len(out) > maxResources {
		out = out[:maxResources]
	}
	return out
}

// File: internal/usecase/rag_uc.go
package usecase

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"interview-intel/internal/config"
	"interview-intel/internal/domain"
	"interview-intel/internal/domain/model"
	"interview-intel/internal/domain/ports/adapter"
	"interview-intel/internal/infra/logging"
)

const (
	coachSystemPrompt   = "You are an expert technical interview coach with deep knowledge of FAANG and top tech company interview processes."
	analysisMaxTokens   = 2000
	defaultTemperature  = 0.7
	scenarioContextSize = 3
)

// Compile-time check
var _ RAGUseCase = (*ragUC)(nil)

type RAGUseCase interface {
	Analyze(ctx context.Context, req model.AnalysisRequest) (*model.AnalysisResult, error)
	CompareScenarios(ctx context.Context, scenario1, scenario2 string) (*model.ScenarioComparison, error)
}

type ragUC struct {
	posts     RetrievalUseCase
	embedder  adapter.Embedder
	ai        adapter.AIServiceAdapter
	chatModel string
	cfg       config.AnalysisConfig

	log *zerolog.Logger
}

func NewRAGUseCase(posts RetrievalUseCase, embedder adapter.Embedder, ai adapter.AIServiceAdapter, chatModel string, cfg config.AnalysisConfig, logger *zerolog.Logger) *ragUC {
	return &ragUC{posts: posts, embedder: embedder, ai: ai, chatModel: chatModel, cfg: cfg, log: logger}
}

func (u *ragUC) Analyze(ctx context.Context, req model.AnalysisRequest) (*model.AnalysisResult, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, domain.NewInvalidInput("query", "must not be empty")
	}
	size := u.cfg.RAGContextSize
	if req.ContextSize != nil {
		size = *req.ContextSize
	}
	if size < 1 || size > maxSearchLimit {
		return nil, domain.NewInvalidInput("contextSize", fmt.Sprintf("must be between 1 and %d", maxSearchLimit))
	}
	temp := defaultTemperature
	if req.Temperature != nil {
		temp = *req.Temperature
	}
	if temp < 0 || temp > 2 {
		return nil, domain.NewInvalidInput("temperature", "must be between 0 and 2")
	}

	log := logging.With(ctx, u.log)
	vec, err := u.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	filters := model.Filters{Role: req.Role, Level: req.Level, Company: req.Company}
	res, err := u.posts.Search(ctx, vec, filters, size, u.cfg.RAGMinSimilarity)
	if err != nil {
		return nil, err
	}
	if len(res.Items) == 0 {
		return nil, &domain.InsufficientDataError{
			Reason:     "No relevant interview experiences found in the database",
			Suggestion: "Try broadening your search criteria or wait for more data to be collected",
		}
	}

	prompt := BuildPrompt(query, res.Items, normalizeFilters(filters), u.cfg.ExcerptChars)
	messages := []adapter.Message{
		{Role: "system", Content: coachSystemPrompt},
		{Role: "user", Content: prompt},
	}
	if n, err := u.ai.CountTokens(ctx, u.chatModel, messages); err == nil {
		log.Debug().Int("prompt_tokens", n).Int("context_posts", len(res.Items)).Msg("rag prompt built")
	}

	answer, usage, err := u.ai.ChatWithUsage(ctx, u.chatModel, messages, adapter.ChatOptions{
		Temperature: &temp,
		MaxTokens:   analysisMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("generate analysis: %w", err)
	}
	log.Info().
		Int("context_posts", len(res.Items)).
		Int("tokens_in", usage.PromptTokens).
		Int("tokens_out", usage.CompletionTokens).
		Msg("rag analysis generated")

	insights := ExtractInsights(res.Items)
	return &model.AnalysisResult{
		Query:    query,
		Analysis: answer,
		Insights: insights,
		ContextUsed: model.ContextUsed{
			PostCount:     len(res.Items),
			Companies:     distinct(res.Items, func(p *model.Post) *string { return p.Company }),
			Roles:         distinct(res.Items, func(p *model.Post) *string { return p.Role }),
			AvgSimilarity: insights.AvgSimilarity,
		},
		Sources: sources(res.Items),
	}, nil
}

// CompareScenarios retrieves a few experiences for each scenario and asks the
// model to contrast them.
func (u *ragUC) CompareScenarios(ctx context.Context, scenario1, scenario2 string) (*model.ScenarioComparison, error) {
	scenario1, scenario2 = strings.TrimSpace(scenario1), strings.TrimSpace(scenario2)
	if scenario1 == "" {
		return nil, domain.NewInvalidInput("scenario1", "must not be empty")
	}
	if scenario2 == "" {
		return nil, domain.NewInvalidInput("scenario2", "must not be empty")
	}

	var counts [2]int
	g, gctx := errgroup.WithContext(ctx)
	for i, s := range []string{scenario1, scenario2} {
		g.Go(func() error {
			vec, err := u.embedder.Embed(gctx, s)
			if err != nil {
				return fmt.Errorf("embed scenario %d: %w", i+1, err)
			}
			res, err := u.posts.Search(gctx, vec, model.Filters{}, scenarioContextSize, u.cfg.RAGMinSimilarity)
			if err != nil {
				return err
			}
			counts[i] = len(res.Items)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(`Compare these two interview scenarios:

SCENARIO 1: %s
Relevant experiences: %d found

SCENARIO 2: %s
Relevant experiences: %d found

Based on real interview data, provide a detailed comparison covering:
1. Difficulty level
2. Common question types
3. Success rates
4. Preparation time needed
5. Key differences in interviewer expectations

Be specific and data-driven.`, scenario1, counts[0], scenario2, counts[1])

	temp := defaultTemperature
	answer, err := u.ai.Chat(ctx, u.chatModel, []adapter.Message{
		{Role: "system", Content: coachSystemPrompt},
		{Role: "user", Content: prompt},
	}, adapter.ChatOptions{Temperature: &temp, MaxTokens: analysisMaxTokens})
	if err != nil {
		return nil, fmt.Errorf("generate comparison: %w", err)
	}

	out := &model.ScenarioComparison{Scenario1: scenario1, Scenario2: scenario2, Comparison: answer}
	out.ExperienceCounts.Scenario1 = counts[0]
	out.ExperienceCounts.Scenario2 = counts[1]
	return out, nil
}

// BuildPrompt renders the user prompt for a RAG call. It is deterministic for
// a given input.
func BuildPrompt(query string, items []model.ScoredPost, filters model.Filters, excerptChars int) string {
	if excerptChars <= 0 {
		excerptChars = 1000
	}
	var b strings.Builder
	b.WriteString("You are an expert interview coach analyzing real interview experiences from tech companies.\n\n")
	b.WriteString("USER QUERY:\n")
	b.WriteString(query)
	b.WriteString("\n")

	var applied []string
	if filters.Role != nil {
		applied = append(applied, "Role: "+*filters.Role)
	}
	if filters.Level != nil {
		applied = append(applied, "Level: "+*filters.Level)
	}
	if filters.Company != nil {
		applied = append(applied, "Company: "+*filters.Company)
	}
	if len(applied) > 0 {
		b.WriteString("Filters applied: " + strings.Join(applied, ", ") + "\n")
	}

	b.WriteString("\nRELEVANT INTERVIEW EXPERIENCES:\n")
	for i, it := range items {
		if i > 0 {
			b.WriteString("\n---\n")
		}
		p := it.Post
		fmt.Fprintf(&b, "\n### Experience %d (Similarity: %.3f)\n", i+1, it.Similarity)
		fmt.Fprintf(&b, "**Company:** %s\n", model.StrOr(p.Company, "Unknown"))
		fmt.Fprintf(&b, "**Role:** %s\n", model.StrOr(p.Role, "Unknown"))
		fmt.Fprintf(&b, "**Level:** %s\n", model.StrOr(p.Level, "Unknown"))
		fmt.Fprintf(&b, "**Outcome:** %s\n", model.StrOr(p.Outcome, "Unknown"))
		fmt.Fprintf(&b, "**Title:** %s\n\n", p.Title)
		b.WriteString("**Details:**\n")
		b.WriteString(excerpt(p.Body, excerptChars))
		b.WriteString("\n")
	}

	b.WriteString(`
TASK:
Provide a comprehensive analysis that helps the user prepare for their interview. Include:
1. **Key Patterns**: Common themes across these experiences
2. **Question Types**: What kinds of questions were asked
3. **Difficulty Assessment**: How challenging these interviews tend to be
4. **Success Factors**: What helped candidates succeed
5. **Preparation Advice**: Specific recommendations based on these experiences
6. **Red Flags**: What to watch out for

Be specific and reference the actual experiences. Use concrete examples from the context above.`)
	return b.String()
}

func excerpt(body string, max int) string {
	body = strings.TrimSpace(body)
	if body == "" {
		return "No details available"
	}
	r := []rune(body)
	if len(r) <= max {
		return body
	}
	return string(r[:max]) + "..."
}

// ExtractInsights summarises retrieved posts without involving the model.
func ExtractInsights(items []model.ScoredPost) model.Insights {
	ins := model.Insights{
		Outcomes:        map[string]int{},
		TopCompanies:    []model.CountItem{},
		TopRoles:        []model.CountItem{},
		TopicsFrequency: []model.CountItem{},
	}
	if len(items) == 0 {
		return ins
	}
	companies := map[string]int{}
	roles := map[string]int{}
	topics := map[string]int{}
	var sum float64
	for _, it := range items {
		p := it.Post
		if v := model.StrOr(p.Outcome, ""); v != "" {
			ins.Outcomes[v]++
		}
		if v := model.StrOr(p.Company, ""); v != "" {
			companies[v]++
		}
		if v := model.StrOr(p.Role, ""); v != "" {
			roles[v]++
		}
		seen := map[string]struct{}{}
		for _, t := range p.Topics {
			t = strings.TrimSpace(t)
			if t == "" {
				continue
			}
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			topics[t]++
		}
		sum += it.Similarity
	}
	ins.TopCompanies = rankCounts(companies)
	ins.TopRoles = rankCounts(roles)
	ins.TopicsFrequency = rankCounts(topics)
	ins.AvgSimilarity = roundTo(sum/float64(len(items)), 3)
	return ins
}

// rankCounts orders by count descending, then name.
func rankCounts(m map[string]int) []model.CountItem {
	out := make([]model.CountItem, 0, len(m))
	for k, v := range m {
		out = append(out, model.CountItem{Name: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func distinct(items []model.ScoredPost, field func(*model.Post) *string) []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, it := range items {
		v := model.StrOr(field(it.Post), "")
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func sources(items []model.ScoredPost) []model.Source {
	out := make([]model.Source, 0, len(items))
	for _, it := range items {
		out = append(out, model.Source{
			PostID:     it.Post.PostID,
			Title:      it.Post.Title,
			Similarity: it.Similarity,
			Company:    it.Post.Company,
			Role:       it.Post.Role,
			Outcome:    it.Post.Outcome,
		})
	}
	return out
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

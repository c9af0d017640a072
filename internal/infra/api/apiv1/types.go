package apiv1

import (
	"time"

	"interview-intel/internal/domain/model"
)

// Envelope is the common response shape.
type Envelope struct {
	Success    bool   `json:"success"`
	Data       any    `json:"data,omitempty"`
	Error      string `json:"error,omitempty"`
	Field      string `json:"field,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// SearchParams are the query parameters of GET /api/v1/search.
type SearchParams struct {
	QueryText      string
	MatchCount     *int
	MatchThreshold *float64
	Role           *string
	Level          *string
	Outcome        *string
	Company        *string
	TimeFilter     *string
}

type SearchHit struct {
	PostID     string    `json:"post_id"`
	Title      string    `json:"title"`
	Excerpt    string    `json:"excerpt"`
	Company    *string   `json:"company"`
	Role       *string   `json:"role"`
	Level      *string   `json:"level"`
	Outcome    *string   `json:"outcome"`
	Topics     []string  `json:"topics"`
	URL        string    `json:"url,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	Similarity float64   `json:"similarity"`
}

type SearchResponse struct {
	Count   int         `json:"count"`
	Results []SearchHit `json:"results"`
}

type ScenarioRequest struct {
	Scenario1 string `json:"scenario1"`
	Scenario2 string `json:"scenario2"`
}

type ReportRequest struct {
	FoundationPoolIDs []string `json:"foundationPoolIds"`
}

type TrendingResponse struct {
	WindowDays int                `json:"windowDays"`
	SampleSize int                `json:"sampleSize"`
	Topics     []model.TopicCount `json:"topics"`
}

const searchExcerptChars = 300

func toHits(items []model.ScoredPost) []SearchHit {
	out := make([]SearchHit, 0, len(items))
	for _, it := range items {
		p := it.Post
		topics := p.Topics
		if topics == nil {
			topics = []string{}
		}
		out = append(out, SearchHit{
			PostID:     p.PostID,
			Title:      p.Title,
			Excerpt:    excerpt(p.Body, searchExcerptChars),
			Company:    p.Company,
			Role:       p.Role,
			Level:      p.Level,
			Outcome:    p.Outcome,
			Topics:     topics,
			URL:        p.URL,
			CreatedAt:  p.CreatedAt,
			Similarity: it.Similarity,
		})
	}
	return out
}

func excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

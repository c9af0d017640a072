package model

import (
	"time"

	"interview-intel/internal/domain"
)

type TimeFilter string

const (
	TimeFilterAll     TimeFilter = "all"
	TimeFilter3Months TimeFilter = "3months"
	TimeFilter6Months TimeFilter = "6months"
	TimeFilter1Year   TimeFilter = "1year"
	TimeFilter2Years  TimeFilter = "2years"
)

// Since returns the lower bound on created_at for the window, or nil for "all".
func (f TimeFilter) Since(now time.Time) (*time.Time, error) {
	var t time.Time
	switch f {
	case "", TimeFilterAll:
		return nil, nil
	case TimeFilter3Months:
		t = now.AddDate(0, -3, 0)
	case TimeFilter6Months:
		t = now.AddDate(0, -6, 0)
	case TimeFilter1Year:
		t = now.AddDate(-1, 0, 0)
	case TimeFilter2Years:
		t = now.AddDate(-2, 0, 0)
	default:
		return nil, domain.NewInvalidInput("timeFilter", "unknown value "+string(f))
	}
	return &t, nil
}

// Filters narrow retrieval. A nil field means "no constraint".
type Filters struct {
	Role    *string    `json:"role,omitempty"`
	Level   *string    `json:"level,omitempty"`
	Outcome *string    `json:"outcome,omitempty"`
	Company *string    `json:"company,omitempty"`
	Time    TimeFilter `json:"timeFilter,omitempty"`
}

// SearchQuery is what the Post Store executes.
type SearchQuery struct {
	Vector        []float32
	Filters       Filters
	Since         *time.Time
	ExcludePostID string
	Limit         int
	MinSimilarity float64
}

// ScoredPost is a post with its cosine similarity to the query vector.
type ScoredPost struct {
	Post       *Post
	Similarity float64
}

type RetrievalResult struct {
	Items []ScoredPost
}

// SearchRequest is the text form of a retrieval call.
type SearchRequest struct {
	QueryText      string     `json:"queryText"`
	MatchThreshold *float64   `json:"matchThreshold,omitempty"`
	MatchCount     *int       `json:"matchCount,omitempty"`
	FilterRole     *string    `json:"filterRole,omitempty"`
	FilterLevel    *string    `json:"filterLevel,omitempty"`
	FilterOutcome  *string    `json:"filterOutcome,omitempty"`
	FilterCompany  *string    `json:"filterCompany,omitempty"`
	TimeFilter     TimeFilter `json:"timeFilter,omitempty"`
}

package model

import (
	"strings"
	"time"
)

type EmbeddingStatus string

const (
	EmbeddingStatusPending    EmbeddingStatus = "pending"
	EmbeddingStatusProcessing EmbeddingStatus = "processing"
	EmbeddingStatusCompleted  EmbeddingStatus = "completed"
	EmbeddingStatusFailed     EmbeddingStatus = "failed"
)

// Post is one scraped interview experience. Metadata and the LLM-extracted
// fields are produced upstream and are read-only here; only the embedding
// columns are written by this system.
type Post struct {
	PostID    string
	Title     string
	Body      string
	Author    string
	Source    string
	URL       string
	Comments  []string
	CreatedAt time.Time

	Role    *string
	Level   *string
	Company *string
	Outcome *string

	TechStack  []string
	Frameworks []string
	Topics     []string

	IsRelevant          bool
	TotalRounds         *int
	InterviewFormat     *string
	RemoteOrOnsite      *string
	OfferAccepted       *bool
	NegotiationOccurred *bool
	ReferralUsed        *bool
	RejectionReason     *string
	DifficultyLevel     *string
	LLMOutcome          *string
	ExtractedAt         *time.Time

	Embedding           []float32
	EmbeddingStatus     EmbeddingStatus
	EmbeddingRetryCount int
	EmbeddingError      string
	EmbeddingModel      string
	EmbeddedAt          *time.Time
	UpdatedAt           time.Time
}

func (p *Post) HasEmbedding() bool { return len(p.Embedding) > 0 }

// Skills returns tech stack and frameworks, de-duplicated case-insensitively
// in first-seen order.
func (p *Post) Skills() []string {
	seen := make(map[string]struct{}, len(p.TechStack)+len(p.Frameworks))
	out := make([]string, 0, len(p.TechStack)+len(p.Frameworks))
	for _, list := range [][]string{p.TechStack, p.Frameworks} {
		for _, s := range list {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			k := strings.ToLower(s)
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

// StrOr dereferences s or returns def when s is nil or blank.
func StrOr(s *string, def string) string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return def
	}
	return *s
}

// EmbeddingStats summarises embedding coverage of the corpus.
type EmbeddingStats struct {
	Total           int        `json:"total"`
	WithEmbeddings  int        `json:"with_embeddings"`
	Pending         int        `json:"pending"`
	Processing      int        `json:"processing"`
	Completed       int        `json:"completed"`
	Failed          int        `json:"failed"`
	CoveragePct     float64    `json:"coverage_pct"`
	LastGenerated   *time.Time `json:"last_generated,omitempty"`
	AvgDelaySeconds float64    `json:"avg_delay_seconds"`
}

type TopicCount struct {
	Topic      string  `json:"topic"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

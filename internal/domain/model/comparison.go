package model

import "strings"

type OutcomeClass string

const (
	OutcomeSuccess OutcomeClass = "success"
	OutcomeFailure OutcomeClass = "failure"
	OutcomeUnknown OutcomeClass = "unknown"
)

// outcomeKeywords is checked in order; the first class with a matching
// keyword wins.
var outcomeKeywords = []struct {
	class    OutcomeClass
	keywords []string
}{
	{OutcomeSuccess, []string{"pass", "offer", "accept"}},
	{OutcomeFailure, []string{"fail", "reject"}},
}

// ClassifyOutcome maps a free-text outcome to success, failure or unknown.
func ClassifyOutcome(outcome string) OutcomeClass {
	o := strings.ToLower(outcome)
	if o == "" {
		return OutcomeUnknown
	}
	for _, row := range outcomeKeywords {
		for _, k := range row.keywords {
			if strings.Contains(o, k) {
				return row.class
			}
		}
	}
	return OutcomeUnknown
}

type PostSummary struct {
	PostID          string   `json:"post_id"`
	Title           string   `json:"title"`
	Company         string   `json:"company"`
	Role            string   `json:"role"`
	Level           string   `json:"level"`
	Outcome         string   `json:"outcome"`
	KeySkills       []string `json:"key_skills"`
	InterviewTopics []string `json:"interview_topics"`
	Date            string   `json:"date"`
	URL             string   `json:"url,omitempty"`
}

type SimilarPost struct {
	PostID          string  `json:"post_id"`
	Title           string  `json:"title"`
	Company         string  `json:"company"`
	RoleType        string  `json:"role_type"`
	SimilarityScore float64 `json:"similarity_score"`
}

type CountShare struct {
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

type SkillShare struct {
	MentionedInSimilar int     `json:"mentioned_in_similar"`
	Percentage         float64 `json:"percentage"`
}

type OutcomeDistribution struct {
	Success     int     `json:"success"`
	Failure     int     `json:"failure"`
	Unknown     int     `json:"unknown"`
	SuccessRate float64 `json:"success_rate"`
}

type ComparativeMetrics struct {
	TotalSimilarPosts   int                   `json:"total_similar_posts"`
	SameCompany         CountShare            `json:"same_company"`
	SameRole            CountShare            `json:"same_role"`
	SkillComparison     map[string]SkillShare `json:"skill_comparison"`
	OutcomeDistribution OutcomeDistribution   `json:"outcome_distribution"`
	SimilarityInsight   string                `json:"similarity_insight"`
}

type RareSkill struct {
	Skill       string  `json:"skill"`
	RarityScore float64 `json:"rarity_score"`
	MentionedIn string  `json:"mentioned_in"`
	Insight     string  `json:"insight"`
}

type UniqueAspects struct {
	RareSkills        []RareSkill `json:"rare_skills"`
	IsUnique          bool        `json:"is_unique"`
	UniquenessSummary string      `json:"uniqueness_summary"`
}

type Resource struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Type  string `json:"type"`
	Skill string `json:"skill"`
}

type PostComparison struct {
	PostSummary          PostSummary        `json:"post_summary"`
	SimilarPosts         []SimilarPost      `json:"similar_posts"`
	ComparativeMetrics   ComparativeMetrics `json:"comparative_metrics"`
	UniqueAspects        UniqueAspects      `json:"unique_aspects"`
	RecommendedResources []Resource         `json:"recommended_resources"`
}

package model

import "time"

// Aggregates returned by the store. Optional statistics are pointers: nil
// means the underlying column had no data for the pool.

type HiringProcessAggregate struct {
	TotalPosts       int
	CompaniesCovered int

	AvgRounds    *float64
	MedianRounds *float64
	MinRounds    *int
	MaxRounds    *int

	RemoteCount        int
	HybridCount        int
	OnsiteCount        int
	LocationDataPoints int

	VideoCount       int
	PhoneCount       int
	InPersonCount    int
	TakeHomeCount    int
	MixedCount       int
	FormatDataPoints int
	RoundsDataPoints int

	OffersAccepted int
	OffersDeclined int

	NegotiationCount      int
	NegotiatedAccepted    int
	NotNegotiatedCount    int
	NotNegotiatedAccepted int

	ReferralCount     int
	ReferralPassed    int
	NonReferralCount  int
	NonReferralPassed int
	ReferralEntry     int
	ReferralMid       int
	ReferralSenior    int

	CompMentioned       int
	CompMentionedPassed int
	BackgroundChecks    int

	PostsWithExtraction int
}

type RejectionAggregate struct {
	Reason        string
	Frequency     int
	Companies     []string
	Roles         []string
	Levels        []string
	Easy          int
	Medium        int
	Hard          int
	TopCompany    *string
	TopDifficulty *string
	TopLevel      *string
}

type QuestionAggregate struct {
	Text        string
	AskedCount  int
	Difficulty  *string
	Category    *string
	Type        *string
	AvgMinutes  *float64
	MinMinutes  *int
	MaxMinutes  *int
	Approach    *string
	Struggle    *string
	SuccessRate *string
	RealWorld   *string
	Companies   []string
	Roles       []string
	Hints       []string
	Mistakes    []string
	Resources   []string
	Focus       []string
	FollowUps   []string
}

type FocusAggregate struct {
	Area                   string
	Frequency              int
	CorrelationWithSuccess float64
	Companies              []string
	Difficulties           []string
	SuccessCount           int
	FailureCount           int
}

type TimelineAggregate struct {
	Company         string
	Role            string
	Level           *string
	AvgRounds       *float64
	MedianRounds    *float64
	MinRounds       *int
	MaxRounds       *int
	TypicalTimeline *string
	SampleSize      int
	Passed          int
	Failed          int
	SuccessRate     float64
	Format          *string
	Location        *string
	ReferralRate    float64
	NegotiationRate float64
}

type LevelAggregate struct {
	Level             string
	Total             int
	AvgRounds         *float64
	SuccessRate       *float64
	Easy              int
	Medium            int
	Hard              int
	ReferralRate      float64
	NegotiationRate   *float64
	PreferredFormat   *string
	PreferredLocation *string
}

// Report sections.

type Finding struct {
	Category    string `json:"category"`
	Finding     string `json:"finding"`
	Benchmark   string `json:"benchmark"`
	Implication string `json:"implication"`
	DataPoints  int    `json:"data_points"`
}

type ExecutiveSummary struct {
	InsufficientData      bool      `json:"insufficient_data"`
	Findings              []Finding `json:"key_findings"`
	SampleSize            int       `json:"sample_size"`
	Confidence            string    `json:"confidence"`
	ConfidenceExplanation string    `json:"confidence_explanation"`
}

type RoundStats struct {
	Avg    *float64 `json:"avg"`
	Median *float64 `json:"median"`
	Min    *int     `json:"min"`
	Max    *int     `json:"max"`
}

type LocationMix struct {
	RemotePct  *float64 `json:"remote_pct"`
	HybridPct  *float64 `json:"hybrid_pct"`
	OnsitePct  *float64 `json:"onsite_pct"`
	DataPoints int      `json:"data_points"`
}

type FormatMix struct {
	VideoPct    *float64 `json:"video_pct"`
	PhonePct    *float64 `json:"phone_pct"`
	InPersonPct *float64 `json:"in_person_pct"`
	TakeHomePct *float64 `json:"take_home_pct"`
	MixedPct    *float64 `json:"mixed_pct"`
	DataPoints  int      `json:"data_points"`
}

type OfferStats struct {
	Accepted        int      `json:"accepted"`
	Declined        int      `json:"declined"`
	AcceptanceRate  *float64 `json:"acceptance_rate_pct"`
	DeclineRate     *float64 `json:"decline_rate_pct"`
	DecisionPattern string   `json:"decision_pattern"`
}

type NegotiationStats struct {
	Count                    int      `json:"count"`
	Rate                     *float64 `json:"rate_pct"`
	SuccessRate              *float64 `json:"success_rate_pct"`
	NoNegotiationSuccessRate *float64 `json:"no_negotiation_success_rate_pct"`
	Recommendation           string   `json:"recommendation"`
}

type ReferralStats struct {
	Count                  int            `json:"count"`
	UsageRate              *float64       `json:"usage_rate_pct"`
	SuccessRate            *float64       `json:"success_rate_pct"`
	NonReferralSuccessRate *float64       `json:"non_referral_success_rate_pct"`
	Multiplier             *float64       `json:"multiplier"`
	ByLevel                map[string]int `json:"by_level"`
	Advice                 string         `json:"advice"`
}

type CompensationStats struct {
	MentionedCount int      `json:"mentioned_count"`
	DiscussionRate *float64 `json:"discussion_rate_pct"`
	SuccessRate    *float64 `json:"success_rate_pct"`
	Interpretation string   `json:"interpretation"`
}

type HiringProcessSection struct {
	InsufficientData    bool              `json:"insufficient_data"`
	TotalPosts          int               `json:"total_posts"`
	Rounds              RoundStats        `json:"rounds"`
	Location            LocationMix       `json:"location"`
	Format              FormatMix         `json:"format"`
	Offers              OfferStats        `json:"offers"`
	Negotiation         NegotiationStats  `json:"negotiation"`
	Referral            ReferralStats     `json:"referral"`
	Compensation        CompensationStats `json:"compensation"`
	BackgroundCheckRate *float64          `json:"background_check_rate_pct"`
	PostsWithExtraction int               `json:"posts_with_llm_extraction"`
	ExtractionCoverage  float64           `json:"extraction_coverage_pct"`
}

type DifficultySplit struct {
	Easy   int `json:"easy"`
	Medium int `json:"medium"`
	Hard   int `json:"hard"`
}

type RejectionReason struct {
	Reason               string          `json:"reason"`
	Frequency            int             `json:"frequency"`
	Priority             string          `json:"priority"`
	Companies            []string        `json:"companies"`
	Roles                []string        `json:"roles"`
	Levels               []string        `json:"experience_levels"`
	Difficulty           DifficultySplit `json:"difficulty"`
	MostCommonCompany    *string         `json:"most_common_company"`
	MostCommonDifficulty *string         `json:"most_common_difficulty"`
	MostCommonLevel      *string         `json:"most_common_level"`
	Mitigation           string          `json:"mitigation_strategy"`
}

type RejectionSection struct {
	InsufficientData    bool              `json:"insufficient_data"`
	TopReasons          []RejectionReason `json:"top_reasons"`
	ByDifficulty        []CountItem       `json:"by_difficulty"`
	ByLevel             []CountItem       `json:"by_experience_level"`
	TotalRejectionCases int               `json:"total_rejection_cases"`
}

type TimeAllocation struct {
	AvgMinutes     *float64 `json:"avg_minutes"`
	MinMinutes     *int     `json:"min_minutes"`
	MaxMinutes     *int     `json:"max_minutes"`
	Interpretation string   `json:"interpretation"`
}

type QuestionInsight struct {
	Text                  string         `json:"question"`
	AskedCount            int            `json:"asked_count"`
	Difficulty            *string        `json:"difficulty"`
	Category              *string        `json:"category"`
	Type                  *string        `json:"type"`
	PrepPriority          string         `json:"prep_priority"`
	Time                  TimeAllocation `json:"time_allocation"`
	OptimalApproach       *string        `json:"optimal_approach"`
	CommonStruggle        *string        `json:"common_struggle"`
	ReportedSuccessRate   *string        `json:"reported_success_rate"`
	RealWorldApplication  *string        `json:"real_world_application"`
	Companies             []string       `json:"companies_asking"`
	Roles                 []string       `json:"roles"`
	Hints                 []string       `json:"hints_given"`
	CommonMistakes        []string       `json:"common_mistakes"`
	Resources             []string       `json:"prep_resources"`
	InterviewerPriorities []string       `json:"interviewer_priorities"`
	FollowUps             []string       `json:"common_followups"`
}

type FocusInsight struct {
	Area                   string   `json:"focus_area"`
	Frequency              int      `json:"frequency"`
	CorrelationWithSuccess float64  `json:"success_correlation_pct"`
	Priority               string   `json:"priority"`
	Explanation            string   `json:"explanation"`
	HowToDemonstrate       string   `json:"how_to_demonstrate"`
	TopCompanies           []string `json:"top_companies"`
	DifficultyLevels       []string `json:"difficulty_levels"`
	SuccessCount           int      `json:"times_led_to_success"`
	FailureCount           int      `json:"times_led_to_failure"`
}

type QuestionSection struct {
	InsufficientData  bool              `json:"insufficient_data"`
	Questions         []QuestionInsight `json:"top_questions"`
	InterviewerFocus  []FocusInsight    `json:"interviewer_focus"`
	QuestionsAnalyzed int               `json:"questions_analyzed"`
}

type TimelinePattern struct {
	Company             string     `json:"company"`
	Role                string     `json:"role"`
	Level               *string    `json:"experience_level"`
	Rounds              RoundStats `json:"rounds"`
	TypicalTimeline     *string    `json:"typical_timeline"`
	SampleSize          int        `json:"sample_size"`
	Passed              int        `json:"passed"`
	Failed              int        `json:"failed"`
	SuccessRate         float64    `json:"success_rate_pct"`
	Format              *string    `json:"most_common_format"`
	Location            *string    `json:"most_common_location"`
	ReferralRate        float64    `json:"referral_rate_pct"`
	NegotiationRate     float64    `json:"negotiation_rate_pct"`
	Confidence          string     `json:"confidence"`
	PreparationStrategy string     `json:"preparation_strategy"`
}

type TimelineSection struct {
	InsufficientData      bool              `json:"insufficient_data"`
	Patterns              []TimelinePattern `json:"patterns"`
	LongestProcess        *TimelinePattern  `json:"longest_process,omitempty"`
	MostSuccessfulCompany *TimelinePattern  `json:"most_successful_company,omitempty"`
}

type LevelInsight struct {
	Level             string          `json:"experience_level"`
	Total             int             `json:"total_posts"`
	AvgRounds         *float64        `json:"avg_rounds"`
	SuccessRate       *float64        `json:"success_rate_pct"`
	Difficulty        DifficultySplit `json:"difficulty"`
	ReferralRate      float64         `json:"referral_usage_rate_pct"`
	NegotiationRate   *float64        `json:"negotiation_rate_pct"`
	PreferredFormat   *string         `json:"preferred_format"`
	PreferredLocation *string         `json:"preferred_location"`
	Differentiator    string          `json:"key_differentiator"`
}

type LevelSection struct {
	InsufficientData     bool               `json:"insufficient_data"`
	Levels               []LevelInsight     `json:"levels"`
	MostChallengingLevel string             `json:"most_challenging_level,omitempty"`
	NegotiationByLevel   map[string]float64 `json:"negotiation_by_level"`
}

type DataQuality struct {
	FoundationPoolSize    int     `json:"foundation_pool_size"`
	PostsAnalyzed         int     `json:"posts_analyzed"`
	ExtractionCoveragePct float64 `json:"extraction_coverage_pct"`
	QuestionsAnalyzed     int     `json:"questions_analyzed"`
	CompaniesCovered      int     `json:"companies_covered"`
	Confidence            string  `json:"confidence"`
	ConfidenceExplanation string  `json:"confidence_explanation"`
}

type IntelligenceReport struct {
	ExecutiveSummary  ExecutiveSummary     `json:"executive_summary"`
	HiringProcess     HiringProcessSection `json:"hiring_process"`
	RejectionAnalysis RejectionSection     `json:"rejection_analysis"`
	Questions         QuestionSection      `json:"question_intelligence"`
	Timelines         TimelineSection      `json:"timeline_intelligence"`
	ExperienceLevels  LevelSection         `json:"experience_level_insights"`
	DataQuality       DataQuality          `json:"data_quality"`
	GeneratedAt       time.Time            `json:"generated_at"`
}

// InsufficientReport flags every section; used for an empty pool.
func InsufficientReport(poolSize int, now time.Time) *IntelligenceReport {
	return &IntelligenceReport{
		ExecutiveSummary:  ExecutiveSummary{InsufficientData: true, Findings: []Finding{}},
		HiringProcess:     HiringProcessSection{InsufficientData: true},
		RejectionAnalysis: RejectionSection{InsufficientData: true, TopReasons: []RejectionReason{}},
		Questions:         QuestionSection{InsufficientData: true, Questions: []QuestionInsight{}, InterviewerFocus: []FocusInsight{}},
		Timelines:         TimelineSection{InsufficientData: true, Patterns: []TimelinePattern{}},
		ExperienceLevels:  LevelSection{InsufficientData: true, Levels: []LevelInsight{}},
		DataQuality:       DataQuality{FoundationPoolSize: poolSize, Confidence: "low"},
		GeneratedAt:       now,
	}
}

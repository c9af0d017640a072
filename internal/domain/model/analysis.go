package model

// AnalysisRequest asks the RAG service a free-text question.
type AnalysisRequest struct {
	Query       string   `json:"query"`
	Role        *string  `json:"role,omitempty"`
	Level       *string  `json:"level,omitempty"`
	Company     *string  `json:"company,omitempty"`
	ContextSize *int     `json:"contextSize,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

type CountItem struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Insights are computed from the retrieved posts, never from the model.
type Insights struct {
	Outcomes        map[string]int `json:"outcomes"`
	TopCompanies    []CountItem    `json:"topCompanies"`
	TopRoles        []CountItem    `json:"topRoles"`
	TopicsFrequency []CountItem    `json:"topicsFrequency"`
	AvgSimilarity   float64        `json:"avgSimilarity"`
}

type ContextUsed struct {
	PostCount     int      `json:"postCount"`
	Companies     []string `json:"companies"`
	Roles         []string `json:"roles"`
	AvgSimilarity float64  `json:"avgSimilarity"`
}

type Source struct {
	PostID     string  `json:"postId"`
	Title      string  `json:"title"`
	Similarity float64 `json:"similarity"`
	Company    *string `json:"company"`
	Role       *string `json:"role"`
	Outcome    *string `json:"outcome"`
}

type AnalysisResult struct {
	Query       string      `json:"query"`
	Analysis    string      `json:"analysis"`
	Insights    Insights    `json:"insights"`
	ContextUsed ContextUsed `json:"contextUsed"`
	Sources     []Source    `json:"sources"`
}

type ScenarioComparison struct {
	Scenario1        string `json:"scenario1"`
	Scenario2        string `json:"scenario2"`
	Comparison       string `json:"comparison"`
	ExperienceCounts struct {
		Scenario1 int `json:"scenario1"`
		Scenario2 int `json:"scenario2"`
	} `json:"experienceCounts"`
}

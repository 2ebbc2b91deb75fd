// Package types defines the records exchanged between pipeline stages and
// the append-only state container threaded through a run.
package types

// Scenario is the immutable run input.
type Scenario struct {
	Scenario   string `json:"scenario"`
	Goal       string `json:"goal"`
	Constraint string `json:"constraint"`
}

// SearchResult is a single document returned by the search collaborator.
type SearchResult struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
}

// Research is the research stage output: the generated query set plus the
// sources retrieved for them. Sources may be empty when search degraded.
type Research struct {
	Queries []string       `json:"queries"`
	Sources []SearchResult `json:"sources"`
}

// MarketAnalysis holds the analyst stage's findings keyed by topic
// (e.g. "comparables", "demand_signals").
type MarketAnalysis struct {
	Sections map[string]string `json:"sections"`
}

// Diagnosis is the single root-cause statement for the run.
type Diagnosis struct {
	RootCause string `json:"root_cause"`
	Rationale string `json:"rationale"`
}

// StrategyCandidate is one proposed action from the strategist stage.
type StrategyCandidate struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// StrategyList is the strategist stage output.
type StrategyList struct {
	Strategies []StrategyCandidate `json:"strategies"`
}

// EvaluationText carries the evaluator stage's free-text multi-criteria
// assessment. The parse stage turns it into typed evaluations.
type EvaluationText struct {
	Text string `json:"text"`
}

// StrategyEvaluation extends a candidate with bounded sub-scores on a 0-10
// scale. CostRisk is a risk measure: lower is better.
type StrategyEvaluation struct {
	Name     string   `json:"name"`
	Pros     []string `json:"pros,omitempty"`
	Cons     []string `json:"cons,omitempty"`
	Impact   float64  `json:"impact"`
	Speed    float64  `json:"speed"`
	CostRisk float64  `json:"cost_risk"`
}

// EvaluationSet is the parse stage output.
type EvaluationSet struct {
	Evaluations []StrategyEvaluation `json:"evaluations"`
}

// ScoredStrategy is an evaluation with its derived composite score and a
// dense 1-based rank.
type ScoredStrategy struct {
	StrategyEvaluation
	CompositeScore float64 `json:"composite_score"`
	Rank           int     `json:"rank"`
}

// Selection is the finalize stage output: the top-K ranked strategies and
// the run-level confidence score (mean of the top-K composites on a 0-1
// scale, matching the memo disclaimer).
type Selection struct {
	TopStrategies   []ScoredStrategy `json:"top_strategies"`
	SimulationScore float64          `json:"simulation_score"`
	Truncated       bool             `json:"truncated,omitempty"`
}

// BehaviouralAdvice is the coach stage output.
type BehaviouralAdvice struct {
	Guidance string `json:"guidance"`
}

// ActionDetail is one recommended action in the report memo.
type ActionDetail struct {
	Name        string `json:"name"`
	Explanation string `json:"explanation"`
}

// Report is the human-readable memo payload produced by the report stage.
type Report struct {
	DiagnosisSummary      string         `json:"diagnosis_summary"`
	DetailedActions       []ActionDetail `json:"detailed_actions"`
	ForecastAnalysis      string         `json:"forecast_analysis"`
	BehaviouralCommentary string         `json:"behavioural_commentary"`
}

// FinalResult is the terminal artifact of a successful run.
type FinalResult struct {
	TopStrategies   []ScoredStrategy  `json:"top_strategies"`
	SimulationScore float64           `json:"simulation_score"`
	Diagnosis       Diagnosis         `json:"diagnosis"`
	Advice          BehaviouralAdvice `json:"advice"`
	Report          Report            `json:"report"`
}

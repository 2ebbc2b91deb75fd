package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propsim/internal/llm"
	"propsim/internal/scoring"
	"propsim/internal/search"
	"propsim/internal/types"
	"propsim/internal/validate"
)

// stubLLM serves canned responses keyed by the stage name carried in the
// request context.
type stubLLM struct {
	responses map[string]string
	errs      map[string]error
	calls     []string
}

func (s *stubLLM) Name() string                { return "stub" }
func (s *stubLLM) Close() error                { return nil }
func (s *stubLLM) CountTokens(text string) int { return len(text) / 4 }

func (s *stubLLM) Generate(ctx context.Context, req llm.Request) (string, error) {
	stage := llm.StageFrom(ctx)
	s.calls = append(s.calls, stage)
	if err := s.errs[stage]; err != nil {
		return "", err
	}
	resp, ok := s.responses[stage]
	if !ok {
		return "", fmt.Errorf("stub: no response for stage %s", stage)
	}
	return resp, nil
}

type stubSearch struct {
	results []types.SearchResult
	err     error
	queries [][]string
}

func (s *stubSearch) Search(ctx context.Context, queries []string) ([]types.SearchResult, error) {
	s.queries = append(s.queries, queries)
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}

var knightsbridge = types.Scenario{
	Scenario:   "£5.25M Knightsbridge townhouse unsold for 9 months",
	Goal:       "Secure offer within 60 days",
	Constraint: "Do not reduce below £4.2M",
}

func wellFormedResponses() map[string]string {
	return map[string]string{
		StageResearch: `{"queries": ["knightsbridge townhouse price index 2025", "prime central london buyer demand", "knightsbridge listing inventory"]}`,
		StageAnalyze: `{"sections": {
			"market_conditions": "Prime central London volumes are down 12% year on year.",
			"comparables": "Three comparable townhouses sold between £4.4M and £4.8M.",
			"demand_signals": "Average time on market for £5M+ stock is 31 weeks.",
			"pricing_position": "The guide sits roughly 9% above the comparable band."
		}}`,
		StageDiagnose:   `{"root_cause": "The guide price is anchored above the comparable band, so the listing has gone stale.", "rationale": "Comparables cleared 9% below the current guide."}`,
		StageStrategize: `{"strategies": [
			{"name": "Reposition guide to £4.45M", "description": "Relaunch under the comparable ceiling to reset buyer anchoring."},
			{"name": "Switch to performance-led agent within 14 days", "description": "Tie fee to exchange inside 60 days."},
			{"name": "Stage and re-shoot within 10 days", "description": "Full staging refresh and dusk photography."},
			{"name": "Off-market approach to 25 registered buyers", "description": "Direct outreach through buying agents."},
			{"name": "Offer 1% buyer incentive", "description": "Contribution toward stamp duty for exchange inside 45 days."}
		]}`,
		StageEvaluate: "**Strategy**: Reposition guide to £4.45M ... detailed pros, cons and scores per the framework.",
		StageParse: `{"evaluations": [
			{"name": "Reposition guide to £4.45M", "pros": ["resets anchoring"], "cons": ["signals weakness"], "impact": 8, "speed": 8, "cost_risk": 2},
			{"name": "Switch to performance-led agent within 14 days", "pros": ["aligned incentives"], "cons": ["handover friction"], "impact": 9, "speed": 6, "cost_risk": 4},
			{"name": "Stage and re-shoot within 10 days", "pros": ["cheap refresh"], "cons": ["limited reach"], "impact": 6, "speed": 9, "cost_risk": 5},
			{"name": "Off-market approach to 25 registered buyers", "pros": ["discreet"], "cons": ["small pool"], "impact": 9, "speed": 1, "cost_risk": 3}
		]}`,
		StageCoach: "Project scarcity rather than desperation; respond to offers within hours, never counter twice in a row.",
		StageReport: `{"diagnosis_summary": "The sale stalled because the guide sits above every recent comparable.",
			"detailed_actions": [{"name": "Reposition guide to £4.45M", "explanation": "Relaunch below the comparable ceiling."}],
			"forecast_analysis": "The top three strategies cluster around pricing and agency performance.",
			"behavioural_commentary": "Stay responsive and avoid signalling urgency."}`,
	}
}

func newTestEngine(t *testing.T, client llm.Client, searcher *stubSearch, opts ...Option) *Engine {
	t.Helper()
	opts = append(opts, WithLogger(log.New(io.Discard, "", 0)))
	var coll search.Searcher
	if searcher != nil {
		coll = searcher
	}
	eng, err := NewEngine(client, coll, opts...)
	require.NoError(t, err)
	return eng
}

func TestRunEndToEnd(t *testing.T) {
	stub := &stubLLM{responses: wellFormedResponses()}
	searcher := &stubSearch{results: []types.SearchResult{
		{Title: "HPI", Snippet: "prices fell", URL: "https://example.com"},
	}}
	eng := newTestEngine(t, stub, searcher)

	result, state, err := eng.Run(context.Background(), knightsbridge)
	require.NoError(t, err)
	require.NotNil(t, result)

	// Exactly K entries, dense ranks from 1.
	require.Len(t, result.TopStrategies, 3)
	for i, s := range result.TopStrategies {
		assert.Equal(t, i+1, s.Rank)
		assert.Equal(t, scoring.DefaultWeights.Score(s.StrategyEvaluation), s.CompositeScore,
			"composite must be recomputable from stored sub-scores")
	}
	assert.Equal(t, "Reposition guide to £4.45M", result.TopStrategies[0].Name)
	assert.Equal(t, "Switch to performance-led agent within 14 days", result.TopStrategies[1].Name)
	assert.Equal(t, "Stage and re-shoot within 10 days", result.TopStrategies[2].Name)

	wantScore := (result.TopStrategies[0].CompositeScore +
		result.TopStrategies[1].CompositeScore +
		result.TopStrategies[2].CompositeScore) / 3 / 10
	assert.Equal(t, wantScore, result.SimulationScore)

	assert.Equal(t, "The guide price is anchored above the comparable band, so the listing has gone stale.", result.Diagnosis.RootCause)
	assert.NotEmpty(t, result.Advice.Guidance)
	assert.NotEmpty(t, result.Report.DiagnosisSummary)

	// All nine stages committed in order.
	assert.Equal(t, []string{
		StageResearch, StageAnalyze, StageDiagnose, StageStrategize,
		StageEvaluate, StageParse, StageFinalize, StageCoach, StageReport,
	}, state.Stages())

	// Research stage carried the retrieved sources into state.
	research, err := types.StageOutput[types.Research](state, StageResearch)
	require.NoError(t, err)
	assert.Len(t, research.Sources, 1)
	require.Len(t, searcher.queries, 1)
	assert.Len(t, searcher.queries[0], 3)

	// The finalize stage never calls the collaborator.
	assert.NotContains(t, stub.calls, StageFinalize)
}

func TestRunIsDeterministic(t *testing.T) {
	first, _, err := newTestEngine(t, &stubLLM{responses: wellFormedResponses()}, nil).
		Run(context.Background(), knightsbridge)
	require.NoError(t, err)
	second, _, err := newTestEngine(t, &stubLLM{responses: wellFormedResponses()}, nil).
		Run(context.Background(), knightsbridge)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRunDegradesOnSearchFailure(t *testing.T) {
	stub := &stubLLM{responses: wellFormedResponses()}
	searcher := &stubSearch{err: errors.New("tavily: timeout")}
	eng := newTestEngine(t, stub, searcher)

	result, state, err := eng.Run(context.Background(), knightsbridge)
	require.NoError(t, err, "search failure must degrade, not abort")
	require.NotNil(t, result)

	research, err := types.StageOutput[types.Research](state, StageResearch)
	require.NoError(t, err)
	assert.Empty(t, research.Sources)
	assert.NotEmpty(t, research.Queries, "queries survive even when search degrades")
}

func TestRunAbortsOnAuthError(t *testing.T) {
	authErr := llm.NewPermanentError(errors.New("401 invalid api key"))
	stub := &stubLLM{
		responses: wellFormedResponses(),
		errs:      map[string]error{StageDiagnose: authErr},
	}
	eng := newTestEngine(t, stub, nil)

	result, state, err := eng.Run(context.Background(), knightsbridge)
	require.Nil(t, result, "no partial FinalResult on abort")
	require.Error(t, err)

	var pErr *PipelineError
	require.True(t, errors.As(err, &pErr))
	assert.Equal(t, StageDiagnose, pErr.Stage)
	assert.True(t, llm.IsPermanent(err))

	// Partial progress is retained for inspection.
	assert.Equal(t, []string{StageResearch, StageAnalyze}, state.Stages())
}

func TestRunAbortsOnValidationFailure(t *testing.T) {
	responses := wellFormedResponses()
	responses[StageParse] = "I could not find any structured data to extract."
	eng := newTestEngine(t, &stubLLM{responses: responses}, nil)

	result, _, err := eng.Run(context.Background(), knightsbridge)
	require.Nil(t, result)

	var pErr *PipelineError
	require.True(t, errors.As(err, &pErr))
	assert.Equal(t, StageParse, pErr.Stage)

	var vErr *validate.Error
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, validate.SchemaEvaluationSet, vErr.Schema)
}

func TestRunInsufficientCandidates(t *testing.T) {
	responses := wellFormedResponses()
	responses[StageParse] = `{"evaluations": [
		{"name": "Only A", "impact": 8, "speed": 8, "cost_risk": 2},
		{"name": "Only B", "impact": 6, "speed": 5, "cost_risk": 4}
	]}`

	t.Run("fatal by default", func(t *testing.T) {
		eng := newTestEngine(t, &stubLLM{responses: responses}, nil)
		result, _, err := eng.Run(context.Background(), knightsbridge)
		require.Nil(t, result)

		var pErr *PipelineError
		require.True(t, errors.As(err, &pErr))
		assert.Equal(t, StageFinalize, pErr.Stage)

		var icErr *InsufficientCandidatesError
		require.True(t, errors.As(err, &icErr))
		assert.Equal(t, 2, icErr.Have)
		assert.Equal(t, 3, icErr.Want)
	})

	t.Run("truncates when configured", func(t *testing.T) {
		eng := newTestEngine(t, &stubLLM{responses: responses}, nil, WithTruncation())
		result, _, err := eng.Run(context.Background(), knightsbridge)
		require.NoError(t, err)
		require.Len(t, result.TopStrategies, 2)
		assert.Equal(t, 1, result.TopStrategies[0].Rank)
		assert.Equal(t, 2, result.TopStrategies[1].Rank)
	})
}

func TestRunHonorsCancellationBetweenStages(t *testing.T) {
	eng := newTestEngine(t, &stubLLM{responses: wellFormedResponses()}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, _, err := eng.Run(ctx, knightsbridge)
	require.Nil(t, result)

	var pErr *PipelineError
	require.True(t, errors.As(err, &pErr))
	assert.Equal(t, StageResearch, pErr.Stage)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunRejectsMisdeclaredRequires(t *testing.T) {
	broken := []StageSpec{{
		Key:      "orphan",
		Requires: []string{"never-committed"},
		Run: func(ctx context.Context, eng *Engine, st *types.State) (any, error) {
			t.Fatal("stage must not run with unmet requirements")
			return nil, nil
		},
	}}
	eng := newTestEngine(t, &stubLLM{}, nil, WithStages(broken))

	_, _, err := eng.Run(context.Background(), knightsbridge)
	var pErr *PipelineError
	require.True(t, errors.As(err, &pErr))
	assert.Equal(t, "orphan", pErr.Stage)
	assert.Contains(t, err.Error(), "never-committed")
}

func TestNewEngineValidation(t *testing.T) {
	_, err := NewEngine(nil, nil)
	require.Error(t, err)

	_, err = NewEngine(&stubLLM{}, nil, WithWeights(scoring.Weights{Impact: 1, Speed: 1, CostRisk: 1}))
	require.Error(t, err)
}

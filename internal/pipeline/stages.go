package pipeline

import (
	"context"
	"fmt"
	"strings"

	"propsim/internal/types"
	"propsim/internal/validate"
)

// defaultStages returns the fixed nine-stage sequence. The engine consumes
// this list as data; adding behavior to a stage means editing its spec here,
// not the engine loop.
func defaultStages() []StageSpec {
	return []StageSpec{
		{
			Key:    StageResearch,
			Schema: validate.SchemaQueries,
			JSON:   true,
			Run:    runResearch,
		},
		{
			Key:      StageAnalyze,
			Requires: []string{StageResearch},
			Schema:   validate.SchemaMarketAnalysis,
			JSON:     true,
			Prompt:   analyzePrompt,
		},
		{
			Key:      StageDiagnose,
			Requires: []string{StageAnalyze},
			Schema:   validate.SchemaDiagnosis,
			JSON:     true,
			Prompt:   diagnosePrompt,
		},
		{
			Key:      StageStrategize,
			Requires: []string{StageAnalyze, StageDiagnose},
			Schema:   validate.SchemaStrategyList,
			JSON:     true,
			Prompt:   strategizePrompt,
		},
		{
			Key:      StageEvaluate,
			Requires: []string{StageDiagnose, StageStrategize},
			Schema:   validate.SchemaEvaluationText,
			Prompt:   evaluatePrompt,
		},
		{
			Key:      StageParse,
			Requires: []string{StageEvaluate},
			Schema:   validate.SchemaEvaluationSet,
			JSON:     true,
			Prompt:   parsePrompt,
		},
		{
			Key:      StageFinalize,
			Requires: []string{StageParse},
			Run:      runFinalize,
		},
		{
			Key:      StageCoach,
			Requires: []string{StageDiagnose, StageFinalize},
			Schema:   validate.SchemaAdvice,
			Prompt:   coachPrompt,
		},
		{
			Key:      StageReport,
			Requires: []string{StageDiagnose, StageEvaluate, StageParse, StageFinalize, StageCoach},
			Schema:   validate.SchemaReport,
			JSON:     true,
			Prompt:   reportPrompt,
		},
	}
}

// ---------------------------------------------------------------------------
// research
// ---------------------------------------------------------------------------

const researchInstr = `You are an expert at generating web search queries for real estate analysis.
Based on the scenario in the input, create 3-5 distinct and effective search queries to find the most current information.

Cover:
1. The overall economic state of the real estate market in that specific location:
   a. Market price and transaction trends (official house price index for the city/postcode, quarterly changes, sales volumes).
   b. Housing supply and inventory (current listing volume, rate of new listings, construction pipeline).
   c. Buyer demand and sentiment (mortgage approvals, average time on market, sale-to-asking-price ratio).
   d. Local economic context (interest rates, inflation, rental yields).
2. The average price or price range for the type of property mentioned.
3. Average cost of property in that location.

Return STRICT JSON ONLY:
{"queries": ["string", "..."]}`

// runResearch generates the query set via the collaborator, then executes
// the queries against the search collaborator. Search failure degrades to an
// empty source set with a warning; it never aborts the run.
func runResearch(ctx context.Context, eng *Engine, st *types.State) (any, error) {
	out, err := eng.invoke(ctx, StageResearch, researchInstr, st.Scenario(), validate.SchemaQueries, true)
	if err != nil {
		return nil, err
	}
	research := out.(types.Research)
	if eng.search != nil {
		sources, err := eng.search.Search(ctx, research.Queries)
		if err != nil {
			eng.log.Printf("WARNING: research: search unavailable, continuing with empty market context: %v", err)
		} else {
			research.Sources = sources
		}
	}
	return research, nil
}

// ---------------------------------------------------------------------------
// analyze
// ---------------------------------------------------------------------------

const analyzeInstr = `You are an expert real estate analyst performing a detailed diagnosis of a property scenario.
First review the live market context provided in the input to ground your analysis in current information, then proceed step by step.
Produce a detailed analysis based on BOTH the live context and your internal knowledge. Do not suggest solutions yet.

Return STRICT JSON ONLY, with findings keyed by topic:
{"sections": {"market_conditions": "string", "comparables": "string", "demand_signals": "string", "pricing_position": "string"}}`

func analyzePrompt(st *types.State) (string, any, error) {
	research, err := types.StageOutput[types.Research](st, StageResearch)
	if err != nil {
		return "", nil, err
	}
	sc := st.Scenario()
	input := map[string]any{
		"market_context": formatSources(research.Sources),
		"scenario":       sc.Scenario,
		"goal":           sc.Goal,
		"constraint":     sc.Constraint,
	}
	return analyzeInstr, input, nil
}

// formatSources renders retrieved documents as numbered source blocks for
// the analyst prompt.
func formatSources(sources []types.SearchResult) string {
	if len(sources) == 0 {
		return "No live market data available."
	}
	var b strings.Builder
	for i, s := range sources {
		fmt.Fprintf(&b, "**Source Document %d** (%s):\n%s\n\n", i+1, s.Title, s.Snippet)
	}
	return strings.TrimSpace(b.String())
}

// ---------------------------------------------------------------------------
// diagnose
// ---------------------------------------------------------------------------

const diagnoseInstr = `You are a master diagnostician. Read the detailed real estate analysis and identify the single most critical issue.
Synthesize the core problem into one concise sentence, with brief supporting rationale.

Return STRICT JSON ONLY:
{"root_cause": "one concise sentence", "rationale": "string"}`

func diagnosePrompt(st *types.State) (string, any, error) {
	analysis, err := types.StageOutput[types.MarketAnalysis](st, StageAnalyze)
	if err != nil {
		return "", nil, err
	}
	return diagnoseInstr, map[string]any{"analyst_report": analysis.Sections}, nil
}

// ---------------------------------------------------------------------------
// strategize
// ---------------------------------------------------------------------------

const strategizeInstr = `You are a creative real estate strategist. Based on the analysis and the core diagnosis, brainstorm diverse and actionable strategies.
Consider pricing and financial strategies, marketing and exposure, agent representation and incentives, and property staging and presentation.
Strategies must be specific and actionable, with exact numbers where possible
(e.g. "Reposition guide to £4.25M", "Switch to performance-led agent within 14 days").
Brainstorm at least 5-7 strategies.

Return STRICT JSON ONLY:
{"strategies": [{"name": "string", "description": "string"}]}`

func strategizePrompt(st *types.State) (string, any, error) {
	diagnosis, err := types.StageOutput[types.Diagnosis](st, StageDiagnose)
	if err != nil {
		return "", nil, err
	}
	analysis, err := types.StageOutput[types.MarketAnalysis](st, StageAnalyze)
	if err != nil {
		return "", nil, err
	}
	input := map[string]any{
		"core_diagnosis": diagnosis,
		"analyst_report": analysis.Sections,
	}
	return strategizeInstr, input, nil
}

// ---------------------------------------------------------------------------
// evaluate
// ---------------------------------------------------------------------------

const evaluateInstr = `You are a highly analytical real estate simulation engine. Rigorously evaluate every proposed strategy using this multi-criteria framework, and follow the structure precisely for each one:

---
**Strategy**: [name]
**Analysis**:
* Pros (why it might succeed): three numbered reasons considering current market conditions.
* Cons (potential risks or failures): three numbered reasons.

**Scoring (0-10 scale)**:
* Impact Score: potential to achieve the main goal. Justify briefly.
* Speed Score: how quickly it will yield results. Justify briefly.
* Cost-Risk Score: how costly and risky it is (0 = cheap and safe, 10 = expensive and dangerous). Justify briefly.
---

Repeat for every strategy provided. Produce only this text analysis; no summary or conclusion.`

func evaluatePrompt(st *types.State) (string, any, error) {
	diagnosis, err := types.StageOutput[types.Diagnosis](st, StageDiagnose)
	if err != nil {
		return "", nil, err
	}
	strategies, err := types.StageOutput[types.StrategyList](st, StageStrategize)
	if err != nil {
		return "", nil, err
	}
	input := map[string]any{
		"core_diagnosis": diagnosis,
		"strategies":     strategies.Strategies,
	}
	return evaluateInstr, input, nil
}

// ---------------------------------------------------------------------------
// parse
// ---------------------------------------------------------------------------

const parseInstr = `You are a data extraction agent. Parse the block of text containing strategy evaluations into structured JSON.
Every evaluation must carry all three numeric scores exactly as stated in the text; never invent or default a score.

Return STRICT JSON ONLY:
{"evaluations": [{"name": "string", "pros": ["string"], "cons": ["string"], "impact": 0.0, "speed": 0.0, "cost_risk": 0.0}]}`

func parsePrompt(st *types.State) (string, any, error) {
	evalText, err := types.StageOutput[types.EvaluationText](st, StageEvaluate)
	if err != nil {
		return "", nil, err
	}
	return parseInstr, map[string]any{"evaluation_text": evalText.Text}, nil
}

// ---------------------------------------------------------------------------
// finalize (deterministic, no collaborator call)
// ---------------------------------------------------------------------------

// runFinalize ranks the validated evaluations with the scoring engine and
// selects the top-K. The simulation score is the mean of the selected
// composites on a 0-1 scale. Fewer than K candidates is fatal unless
// truncation was explicitly configured.
func runFinalize(ctx context.Context, eng *Engine, st *types.State) (any, error) {
	evals, err := types.StageOutput[types.EvaluationSet](st, StageParse)
	if err != nil {
		return nil, err
	}
	ranked := eng.weights.RankAll(evals.Evaluations)

	k := eng.topK
	truncated := false
	if len(ranked) < k {
		if !eng.allowTruncate {
			return nil, &InsufficientCandidatesError{Have: len(ranked), Want: k}
		}
		eng.log.Printf("WARNING: finalize: only %d validated strategies, truncating top-%d selection", len(ranked), k)
		k = len(ranked)
		truncated = true
	}

	top := ranked[:k]
	var sum float64
	for _, s := range top {
		sum += s.CompositeScore
	}
	score := 0.0
	if len(top) > 0 {
		score = sum / float64(len(top)) / 10
	}
	return types.Selection{TopStrategies: top, SimulationScore: score, Truncated: truncated}, nil
}

// ---------------------------------------------------------------------------
// coach
// ---------------------------------------------------------------------------

const coachInstr = `You are a behavioural psychologist specializing in high-stakes negotiations.
Based on the property's diagnosis and the recommended strategies, what key behaviours should the seller and their agent adopt or avoid?
Focus on mindset, communication, and negotiation posture. Respond with the guidance text only.`

func coachPrompt(st *types.State) (string, any, error) {
	diagnosis, err := types.StageOutput[types.Diagnosis](st, StageDiagnose)
	if err != nil {
		return "", nil, err
	}
	selection, err := types.StageOutput[types.Selection](st, StageFinalize)
	if err != nil {
		return "", nil, err
	}
	input := map[string]any{
		"diagnosis":         diagnosis,
		"chosen_strategies": selection.TopStrategies,
	}
	return coachInstr, input, nil
}

// ---------------------------------------------------------------------------
// report
// ---------------------------------------------------------------------------

const reportInstr = `You are a professional real estate analyst and report writer. Synthesize the simulation data in the input into a single comprehensive memo.

1. diagnosis_summary: a clear, concise paragraph explaining what is going wrong with the sale.
2. detailed_actions: for each recommended strategy, a name and an explanation of what it involves and why it is effective, drawing from the pros.
3. forecast_analysis: start with the overall simulation score; then for each top strategy state its name, composite score, and justify its impact, speed, and cost-risk scores using the raw evaluation text.
4. behavioural_commentary: summarize the top behavioural suggestions concisely.

Return STRICT JSON ONLY:
{"diagnosis_summary": "string", "detailed_actions": [{"name": "string", "explanation": "string"}], "forecast_analysis": "string", "behavioural_commentary": "string"}`

func reportPrompt(st *types.State) (string, any, error) {
	diagnosis, err := types.StageOutput[types.Diagnosis](st, StageDiagnose)
	if err != nil {
		return "", nil, err
	}
	evalText, err := types.StageOutput[types.EvaluationText](st, StageEvaluate)
	if err != nil {
		return "", nil, err
	}
	evals, err := types.StageOutput[types.EvaluationSet](st, StageParse)
	if err != nil {
		return "", nil, err
	}
	selection, err := types.StageOutput[types.Selection](st, StageFinalize)
	if err != nil {
		return "", nil, err
	}
	advice, err := types.StageOutput[types.BehaviouralAdvice](st, StageCoach)
	if err != nil {
		return "", nil, err
	}
	input := map[string]any{
		"core_diagnosis":      diagnosis,
		"evaluations":         evals.Evaluations,
		"selection":           selection,
		"behavioural_advice":  advice.Guidance,
		"raw_evaluation_text": evalText.Text,
	}
	return reportInstr, input, nil
}

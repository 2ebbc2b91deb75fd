// Package validate converts raw collaborator text into typed stage records.
// The policy is strict-then-repair: direct decode first, then bounded shape
// repairs, and a hard failure when a required value is missing. Required
// numeric fields are never defaulted.
package validate

import (
	"fmt"
	"strings"

	"propsim/internal/jsonutil"
	"propsim/internal/types"
)

// Schema tags the expected shape of a stage's output.
type Schema string

const (
	SchemaQueries        Schema = "queries"
	SchemaMarketAnalysis Schema = "market_analysis"
	SchemaDiagnosis      Schema = "diagnosis"
	SchemaStrategyList   Schema = "strategy_list"
	SchemaEvaluationText Schema = "evaluation_text"
	SchemaEvaluationSet  Schema = "evaluation_set"
	SchemaAdvice         Schema = "advice"
	SchemaReport         Schema = "report"
)

// Error reports stage output that could not be coerced to its schema. It
// carries the offending raw text for diagnostics.
type Error struct {
	Schema Schema
	Raw    string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("validate: schema %s: %s", e.Schema, e.Reason)
}

func fail(schema Schema, raw, format string, args ...any) error {
	return &Error{Schema: schema, Raw: raw, Reason: fmt.Sprintf(format, args...)}
}

// Result is a decoded stage output plus whether shape repair was needed.
type Result struct {
	Value    any
	Repaired bool
}

// Decode parses raw against the schema and returns the typed record.
func Decode(raw string, schema Schema) (Result, error) {
	switch schema {
	case SchemaQueries:
		return decodeQueries(raw)
	case SchemaMarketAnalysis:
		return decodeMarketAnalysis(raw)
	case SchemaDiagnosis:
		return decodeDiagnosis(raw)
	case SchemaStrategyList:
		return decodeStrategyList(raw)
	case SchemaEvaluationText:
		v, rep := decodeText(raw, "text")
		if v == "" {
			return Result{}, fail(schema, raw, "empty evaluation text")
		}
		return Result{Value: types.EvaluationText{Text: v}, Repaired: rep}, nil
	case SchemaEvaluationSet:
		return decodeEvaluationSet(raw)
	case SchemaAdvice:
		v, rep := decodeText(raw, "guidance")
		if v == "" {
			return Result{}, fail(schema, raw, "empty guidance")
		}
		return Result{Value: types.BehaviouralAdvice{Guidance: v}, Repaired: rep}, nil
	case SchemaReport:
		return decodeReport(raw)
	default:
		return Result{}, fail(schema, raw, "unknown schema")
	}
}

func decodeQueries(raw string) (Result, error) {
	var shadow struct {
		Queries []string `json:"queries"`
	}
	repaired, err := jsonutil.Unmarshal([]byte(raw), &shadow)
	if err != nil {
		// Last repair: the original emitted one query per line.
		if qs := nonEmptyLines(raw); len(qs) > 0 {
			return Result{Value: types.Research{Queries: qs}, Repaired: true}, nil
		}
		return Result{}, fail(SchemaQueries, raw, "%v", err)
	}
	qs := trimAll(shadow.Queries)
	if len(qs) == 0 {
		return Result{}, fail(SchemaQueries, raw, "no queries")
	}
	return Result{Value: types.Research{Queries: qs}, Repaired: repaired}, nil
}

func decodeMarketAnalysis(raw string) (Result, error) {
	var shadow struct {
		Sections map[string]string `json:"sections"`
	}
	repaired, err := jsonutil.Unmarshal([]byte(raw), &shadow)
	if err != nil || len(shadow.Sections) == 0 {
		// Free-text analysis becomes a single general section.
		text := strings.TrimSpace(raw)
		if text == "" {
			return Result{}, fail(SchemaMarketAnalysis, raw, "empty analysis")
		}
		if err != nil {
			return Result{
				Value:    types.MarketAnalysis{Sections: map[string]string{"general": text}},
				Repaired: true,
			}, nil
		}
		return Result{}, fail(SchemaMarketAnalysis, raw, "no sections")
	}
	return Result{Value: types.MarketAnalysis{Sections: shadow.Sections}, Repaired: repaired}, nil
}

func decodeDiagnosis(raw string) (Result, error) {
	var shadow struct {
		RootCause string `json:"root_cause"`
		Rationale string `json:"rationale"`
	}
	repaired, err := jsonutil.Unmarshal([]byte(raw), &shadow)
	if err != nil {
		// A bare sentence is an acceptable diagnosis.
		text := strings.TrimSpace(raw)
		if text == "" {
			return Result{}, fail(SchemaDiagnosis, raw, "empty diagnosis")
		}
		return Result{Value: types.Diagnosis{RootCause: text}, Repaired: true}, nil
	}
	if strings.TrimSpace(shadow.RootCause) == "" {
		return Result{}, fail(SchemaDiagnosis, raw, "missing root_cause")
	}
	return Result{
		Value:    types.Diagnosis{RootCause: strings.TrimSpace(shadow.RootCause), Rationale: shadow.Rationale},
		Repaired: repaired,
	}, nil
}

func decodeStrategyList(raw string) (Result, error) {
	var shadow struct {
		Strategies []struct {
			Name        string `json:"name"`
			Description string `json:"description"`
		} `json:"strategies"`
	}
	repaired, err := jsonutil.Unmarshal([]byte(raw), &shadow)
	if err != nil {
		return Result{}, fail(SchemaStrategyList, raw, "%v", err)
	}
	var out types.StrategyList
	for _, s := range shadow.Strategies {
		if strings.TrimSpace(s.Name) == "" {
			return Result{}, fail(SchemaStrategyList, raw, "strategy with empty name")
		}
		out.Strategies = append(out.Strategies, types.StrategyCandidate{
			Name:        strings.TrimSpace(s.Name),
			Description: s.Description,
		})
	}
	if len(out.Strategies) == 0 {
		return Result{}, fail(SchemaStrategyList, raw, "no strategies")
	}
	return Result{Value: out, Repaired: repaired}, nil
}

// decodeEvaluationSet enforces presence of every sub-score: a missing
// impact/speed/cost_risk is rejected outright, because silently defaulting
// to zero would corrupt ranking downstream.
func decodeEvaluationSet(raw string) (Result, error) {
	var shadow struct {
		Evaluations []struct {
			Name     string   `json:"name"`
			Pros     []string `json:"pros"`
			Cons     []string `json:"cons"`
			Impact   *float64 `json:"impact"`
			Speed    *float64 `json:"speed"`
			CostRisk *float64 `json:"cost_risk"`
		} `json:"evaluations"`
	}
	repaired, err := jsonutil.Unmarshal([]byte(raw), &shadow)
	if err != nil {
		return Result{}, fail(SchemaEvaluationSet, raw, "%v", err)
	}
	if len(shadow.Evaluations) == 0 {
		return Result{}, fail(SchemaEvaluationSet, raw, "no evaluations")
	}
	var out types.EvaluationSet
	for i, e := range shadow.Evaluations {
		if strings.TrimSpace(e.Name) == "" {
			return Result{}, fail(SchemaEvaluationSet, raw, "evaluation %d: missing name", i)
		}
		for _, f := range []struct {
			name string
			val  *float64
		}{{"impact", e.Impact}, {"speed", e.Speed}, {"cost_risk", e.CostRisk}} {
			if f.val == nil {
				return Result{}, fail(SchemaEvaluationSet, raw, "evaluation %q: missing %s", e.Name, f.name)
			}
			if *f.val < 0 || *f.val > 10 {
				return Result{}, fail(SchemaEvaluationSet, raw, "evaluation %q: %s %.2f out of [0,10]", e.Name, f.name, *f.val)
			}
		}
		out.Evaluations = append(out.Evaluations, types.StrategyEvaluation{
			Name:     strings.TrimSpace(e.Name),
			Pros:     e.Pros,
			Cons:     e.Cons,
			Impact:   *e.Impact,
			Speed:    *e.Speed,
			CostRisk: *e.CostRisk,
		})
	}
	return Result{Value: out, Repaired: repaired}, nil
}

func decodeReport(raw string) (Result, error) {
	var shadow struct {
		DiagnosisSummary string `json:"diagnosis_summary"`
		DetailedActions  []struct {
			Name        string `json:"name"`
			Explanation string `json:"explanation"`
		} `json:"detailed_actions"`
		ForecastAnalysis      string `json:"forecast_analysis"`
		BehaviouralCommentary string `json:"behavioural_commentary"`
	}
	repaired, err := jsonutil.Unmarshal([]byte(raw), &shadow)
	if err != nil {
		return Result{}, fail(SchemaReport, raw, "%v", err)
	}
	if strings.TrimSpace(shadow.DiagnosisSummary) == "" {
		return Result{}, fail(SchemaReport, raw, "missing diagnosis_summary")
	}
	out := types.Report{
		DiagnosisSummary:      shadow.DiagnosisSummary,
		ForecastAnalysis:      shadow.ForecastAnalysis,
		BehaviouralCommentary: shadow.BehaviouralCommentary,
	}
	for _, a := range shadow.DetailedActions {
		out.DetailedActions = append(out.DetailedActions, types.ActionDetail(a))
	}
	return Result{Value: out, Repaired: repaired}, nil
}

// decodeText accepts either a JSON object carrying the named string field or
// bare free text.
func decodeText(raw, field string) (string, bool) {
	var shadow map[string]string
	if repaired, err := jsonutil.Unmarshal([]byte(raw), &shadow); err == nil {
		if v := strings.TrimSpace(shadow[field]); v != "" {
			return v, repaired
		}
	}
	return strings.TrimSpace(raw), false
}

func nonEmptyLines(raw string) []string {
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-*0123456789. "))
		if line != "" && !strings.HasPrefix(line, "```") {
			out = append(out, line)
		}
	}
	return out
}

func trimAll(in []string) []string {
	var out []string
	for _, s := range in {
		if t := strings.TrimSpace(s); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Package scoring derives composite scores for strategy evaluations and
// imposes a total, deterministic order over them.
package scoring

import (
	"fmt"
	"math"
	"sort"

	"propsim/internal/types"
)

// Weights is the fixed weighting for one run. CostRisk weights the inverted
// risk term (10 - cost_risk), since lower risk is better.
type Weights struct {
	Impact   float64
	Speed    float64
	CostRisk float64
}

// DefaultWeights matches the evaluator's documented formula:
// composite = 0.5*impact + 0.3*speed + 0.2*(10 - cost_risk).
var DefaultWeights = Weights{Impact: 0.5, Speed: 0.3, CostRisk: 0.2}

// Validate checks that the weights are non-negative and sum to 1.
func (w Weights) Validate() error {
	if w.Impact < 0 || w.Speed < 0 || w.CostRisk < 0 {
		return fmt.Errorf("scoring: negative weight in %+v", w)
	}
	if sum := w.Impact + w.Speed + w.CostRisk; math.Abs(sum-1) > 1e-9 {
		return fmt.Errorf("scoring: weights sum to %.6f, want 1", sum)
	}
	return nil
}

// Score computes the composite score for one evaluation, in [0,10].
func (w Weights) Score(e types.StrategyEvaluation) float64 {
	return w.Impact*e.Impact + w.Speed*e.Speed + w.CostRisk*(10-e.CostRisk)
}

// RankAll scores every evaluation and returns them in rank order. The order
// is total and deterministic: composite descending, then higher impact, then
// lower cost_risk, then original input order (stable). Ranks are dense,
// starting at 1.
func (w Weights) RankAll(evals []types.StrategyEvaluation) []types.ScoredStrategy {
	out := make([]types.ScoredStrategy, len(evals))
	for i, e := range evals {
		out[i] = types.ScoredStrategy{
			StrategyEvaluation: e,
			CompositeScore:     w.Score(e),
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.CompositeScore != b.CompositeScore {
			return a.CompositeScore > b.CompositeScore
		}
		if a.Impact != b.Impact {
			return a.Impact > b.Impact
		}
		if a.CostRisk != b.CostRisk {
			return a.CostRisk < b.CostRisk
		}
		return false
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

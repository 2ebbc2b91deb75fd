package export

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propsim/internal/types"
)

func sampleResult() *types.FinalResult {
	return &types.FinalResult{
		TopStrategies: []types.ScoredStrategy{
			{
				StrategyEvaluation: types.StrategyEvaluation{
					Name: "Reposition guide", Impact: 8, Speed: 8, CostRisk: 2,
					Pros: []string{"resets anchoring"}, Cons: []string{"signals weakness"},
				},
				CompositeScore: 8.0,
				Rank:           1,
			},
		},
		SimulationScore: 0.8,
		Diagnosis:       types.Diagnosis{RootCause: "Guide price above the comparable band."},
		Advice:          types.BehaviouralAdvice{Guidance: "Respond to offers within hours."},
		Report: types.Report{
			DiagnosisSummary: "The sale stalled on price.",
			DetailedActions:  []types.ActionDetail{{Name: "Reposition guide", Explanation: "Relaunch lower."}},
			ForecastAnalysis: "Score 0.8 overall.",
		},
	}
}

func TestExportWritesArtifacts(t *testing.T) {
	st := types.NewState(types.Scenario{Scenario: "townhouse unsold", Goal: "offer in 60 days"})
	require.NoError(t, st.Commit("research", types.Research{Queries: []string{"q"}}))

	dir := t.TempDir()
	exp := &Exporter{OutDir: filepath.Join(dir, "run"), Log: log.New(io.Discard, "", 0)}
	require.NoError(t, exp.Export(context.Background(), sampleResult(), st))

	var result types.FinalResult
	b, err := os.ReadFile(filepath.Join(exp.OutDir, "output.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, &result))
	assert.Equal(t, *sampleResult(), result)

	var state map[string]any
	b, err = os.ReadFile(filepath.Join(exp.OutDir, "state.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, &state))
	assert.Contains(t, state, "scenario")
	assert.Contains(t, state, "research")

	pdf, err := os.ReadFile(filepath.Join(exp.OutDir, "memo.pdf"))
	require.NoError(t, err)
	assert.True(t, len(pdf) > 0 && string(pdf[:4]) == "%PDF")
}

package pipeline

import (
	"propsim/internal/types"
)

// Finalize assembles the terminal result from a fully committed state. The
// top-K selection and its invariants were already enforced by the finalize
// stage; this only gathers the pieces.
func Finalize(st *types.State) (*types.FinalResult, error) {
	selection, err := types.StageOutput[types.Selection](st, StageFinalize)
	if err != nil {
		return nil, err
	}
	diagnosis, err := types.StageOutput[types.Diagnosis](st, StageDiagnose)
	if err != nil {
		return nil, err
	}
	advice, err := types.StageOutput[types.BehaviouralAdvice](st, StageCoach)
	if err != nil {
		return nil, err
	}
	report, err := types.StageOutput[types.Report](st, StageReport)
	if err != nil {
		return nil, err
	}
	return &types.FinalResult{
		TopStrategies:   selection.TopStrategies,
		SimulationScore: selection.SimulationScore,
		Diagnosis:       diagnosis,
		Advice:          advice,
		Report:          report,
	}, nil
}
